// Copyright 2021 Converter Systems LLC. All rights reserved.

package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/awcullen/uastack/client"
	"github.com/awcullen/uastack/server"
	"github.com/awcullen/uastack/ua"
	"gotest.tools/assert"
)

func dialTestServer(t *testing.T, endpointURL string, opts ...client.Option) *client.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, endpointURL, append([]client.Option{client.WithInsecureSkipVerify(), client.WithLogger(newTestLogger())}, opts...)...)
	assert.NilError(t, err)
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func TestServerGetEndpoints(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	res, err := client.GetEndpoints(context.Background(), &ua.GetEndpointsRequest{EndpointURL: endpointURL})
	assert.NilError(t, err)
	assert.Equal(t, len(res.Endpoints), 7)
	none := res.Endpoints[0]
	assert.Equal(t, none.SecurityPolicyURI, ua.SecurityPolicyURINone)
	assert.Equal(t, len(none.UserIdentityTokens), 2)
	assert.Equal(t, none.UserIdentityTokens[1].SecurityPolicyURI, ua.SecurityPolicyURIBasic256Sha256)
}

func TestServerIdentities(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	cases := []struct {
		name string
		opt  client.Option
		err  error
	}{
		{"anonymous", client.WithAnonymousIdentity(), nil},
		{"root", client.WithUserNameIdentity("root", "secret"), nil},
		{"user1", client.WithUserNameIdentity("user1", "password"), nil},
		{"wrong password", client.WithUserNameIdentity("user2", "password"), ua.BadUserAccessDenied},
		{"unknown user", client.WithUserNameIdentity("nobody", "secret"), ua.BadUserAccessDenied},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			cli, err := client.Dial(ctx, endpointURL, c.opt, client.WithInsecureSkipVerify(), client.WithLogger(newTestLogger()))
			if c.err != nil {
				assert.Equal(t, err, c.err)
				return
			}
			assert.NilError(t, err)
			assert.NilError(t, cli.Close(ctx))
		})
	}
}

func TestServerAnonymousRejected(t *testing.T) {
	_, _, endpointURL := newTestServer(t, server.WithAnonymousIdentity(false))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := client.Dial(ctx, endpointURL, client.WithAnonymousIdentity(), client.WithLogger(newTestLogger()))
	assert.Equal(t, err, ua.BadIdentityTokenRejected)
}

func TestServerSignAndEncrypt(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	cert, key, err := ua.CreateSelfSignedCertificate("testclient")
	assert.NilError(t, err)
	c := dialTestServer(t, endpointURL,
		client.WithCertificate(ua.NewRSACertificateProvider(cert, key)),
		client.WithSecurityPolicyURI(ua.SecurityPolicyURIBasic256Sha256, ua.MessageSecurityModeSignAndEncrypt),
		client.WithUserNameIdentity("root", "secret"),
	)
	assert.Equal(t, c.SecurityPolicyURI(), ua.SecurityPolicyURIBasic256Sha256)
	assert.Equal(t, c.SecurityMode(), ua.MessageSecurityModeSignAndEncrypt)

	res, err := c.Read(context.Background(), &ua.ReadRequest{
		NodesToRead: []ua.ReadValueID{{NodeID: demoString, AttributeID: ua.AttributeIDValue}},
	})
	assert.NilError(t, err)
	assert.Equal(t, res.Results[0].Value, "hello")
}

func TestServerReadWrite(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	c := dialTestServer(t, endpointURL)
	ctx := context.Background()

	assert.DeepEqual(t, c.NamespaceURIs(), []string{"http://opcfoundation.org/UA/", "urn:test:server", "http://github.com/awcullen/uastack/demo"})

	wres, err := c.Write(ctx, &ua.WriteRequest{
		NodesToWrite: []ua.WriteValue{
			{NodeID: demoInt32, AttributeID: ua.AttributeIDValue, Value: ua.NewDataValue(int32(7), ua.Good, time.Time{}, 0, time.Time{}, 0)},
			{NodeID: demoString, AttributeID: ua.AttributeIDValue, Value: ua.NewDataValue("bye", ua.Good, time.Time{}, 0, time.Time{}, 0)},
		},
	})
	assert.NilError(t, err)
	assert.DeepEqual(t, wres.Results, []ua.StatusCode{ua.Good, ua.BadNotWritable})

	rres, err := c.Read(ctx, &ua.ReadRequest{
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		NodesToRead: []ua.ReadValueID{
			{NodeID: demoInt32, AttributeID: ua.AttributeIDValue},
			{NodeID: demoString, AttributeID: ua.AttributeIDValue},
			{NodeID: demoUnknown, AttributeID: ua.AttributeIDValue},
		},
	})
	assert.NilError(t, err)
	assert.Equal(t, len(rres.Results), 3)
	assert.Equal(t, rres.Results[0].Value, int32(7))
	assert.Equal(t, rres.Results[1].Value, "hello")
	assert.Equal(t, rres.Results[2].StatusCode, ua.BadNodeIDUnknown)
}

func TestServerReadServiceErrors(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	c := dialTestServer(t, endpointURL)
	ctx := context.Background()

	_, err := c.Read(ctx, &ua.ReadRequest{})
	assert.Equal(t, err, ua.BadNothingToDo)

	_, err = c.Read(ctx, &ua.ReadRequest{
		MaxAge:      -1,
		NodesToRead: []ua.ReadValueID{{NodeID: demoInt32, AttributeID: ua.AttributeIDValue}},
	})
	assert.Equal(t, err, ua.BadMaxAgeInvalid)

	_, err = c.Read(ctx, &ua.ReadRequest{
		TimestampsToReturn: ua.TimestampsToReturn(9),
		NodesToRead:        []ua.ReadValueID{{NodeID: demoInt32, AttributeID: ua.AttributeIDValue}},
	})
	assert.Equal(t, err, ua.BadTimestampsToReturnInvalid)
}

func TestServerBrowseContinuation(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	c := dialTestServer(t, endpointURL)
	ctx := context.Background()

	res, err := c.Browse(ctx, &ua.BrowseRequest{
		RequestedMaxReferencesPerNode: 3,
		NodesToBrowse: []ua.BrowseDescription{{
			NodeID:          demoFolder,
			BrowseDirection: ua.BrowseDirectionForward,
			ReferenceTypeID: ua.ReferenceTypeIDHierarchicalReferences,
			IncludeSubtypes: true,
			ResultMask:      uint32(ua.BrowseResultMaskAll),
		}},
	})
	assert.NilError(t, err)
	first := res.Results[0]
	assert.Equal(t, first.StatusCode, ua.Good)
	assert.Equal(t, len(first.References), 3)
	assert.Assert(t, len(first.ContinuationPoint) > 0)

	next, err := c.BrowseNext(ctx, &ua.BrowseNextRequest{ContinuationPoints: []ua.ByteString{first.ContinuationPoint}})
	assert.NilError(t, err)
	assert.Equal(t, len(next.Results[0].References), 1)
	assert.Equal(t, next.Results[0].References[0].BrowseName.Name, "Device")
	assert.Equal(t, len(next.Results[0].ContinuationPoint), 0)

	// a released continuation point is no longer valid.
	next, err = c.BrowseNext(ctx, &ua.BrowseNextRequest{ContinuationPoints: []ua.ByteString{first.ContinuationPoint}})
	assert.NilError(t, err)
	assert.Equal(t, next.Results[0].StatusCode, ua.BadContinuationPointInvalid)
}

func TestServerCall(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	c := dialTestServer(t, endpointURL)
	res, err := c.Call(context.Background(), &ua.CallRequest{
		MethodsToCall: []ua.CallMethodRequest{
			{ObjectID: demoDevice, MethodID: demoAdd, InputArguments: []ua.Variant{int32(40), int32(2)}},
			{ObjectID: demoDevice, MethodID: demoAdd, InputArguments: []ua.Variant{"a", "b"}},
		},
	})
	assert.NilError(t, err)
	assert.Equal(t, res.Results[0].StatusCode, ua.Good)
	assert.DeepEqual(t, res.Results[0].OutputArguments, []ua.Variant{int32(42)})
	assert.Equal(t, res.Results[1].StatusCode, ua.BadTypeMismatch)
}

func TestServerHistoryRead(t *testing.T) {
	_, m, endpointURL := newTestServer(t)
	c := dialTestServer(t, endpointURL)
	start := time.Now().Add(-time.Minute)
	for i := 1; i <= 3; i++ {
		assert.NilError(t, m.SetValue(demoDouble, ua.NewDataValue(float64(i), ua.Good, start.Add(time.Duration(i)*time.Second), 0, time.Time{}, 0)))
	}
	res, err := c.HistoryRead(context.Background(), &ua.HistoryReadRequest{
		HistoryReadDetails: ua.ReadRawModifiedDetails{StartTime: start, EndTime: start.Add(10 * time.Second)},
		TimestampsToReturn: ua.TimestampsToReturnSource,
		NodesToRead:        []ua.HistoryReadValueID{{NodeID: demoDouble}},
	})
	assert.NilError(t, err)
	assert.Equal(t, res.Results[0].StatusCode, ua.Good)
	data, ok := res.Results[0].HistoryData.(ua.HistoryData)
	assert.Assert(t, ok)
	assert.Equal(t, len(data.DataValues), 3)
	assert.Equal(t, data.DataValues[0].Value, float64(1))
	assert.Equal(t, data.DataValues[2].Value, float64(3))
}

func TestServerDataChangeSubscription(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	c := dialTestServer(t, endpointURL)
	ctx := context.Background()

	values := make(chan ua.DataValue, 16)
	sub, err := client.NewSubscription(ctx, c, &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 100,
		RequestedMaxKeepAliveCount:  10,
		RequestedLifetimeCount:      30,
		PublishingEnabled:           true,
	}, client.WithDataChangeHandler(func(sub *client.Subscription, handles []uint32, vs []ua.DataValue) {
		for i := range handles {
			if handles[i] == 42 {
				values <- vs[i]
			}
		}
	}))
	assert.NilError(t, err)
	assert.Equal(t, sub.RevisedPublishingInterval(), 100.0)

	res, err := sub.CreateMonitoredItems(ctx, ua.TimestampsToReturnBoth, ua.MonitoredItemCreateRequest{
		ItemToMonitor:       ua.ReadValueID{NodeID: demoInt32, AttributeID: ua.AttributeIDValue},
		MonitoringMode:      ua.MonitoringModeReporting,
		RequestedParameters: ua.MonitoringParameters{ClientHandle: 42, SamplingInterval: 100, QueueSize: 1, DiscardOldest: true},
	})
	assert.NilError(t, err)
	assert.Equal(t, res.Results[0].StatusCode, ua.Good)

	waitValue := func(want int32) {
		timeout := time.After(5 * time.Second)
		for {
			select {
			case v := <-values:
				if v.Value == want {
					return
				}
			case <-timeout:
				t.Fatalf("value %d not received", want)
			}
		}
	}
	waitValue(0)

	_, err = c.Write(ctx, &ua.WriteRequest{NodesToWrite: []ua.WriteValue{
		{NodeID: demoInt32, AttributeID: ua.AttributeIDValue, Value: ua.NewDataValue(int32(5), ua.Good, time.Time{}, 0, time.Time{}, 0)},
	}})
	assert.NilError(t, err)
	waitValue(5)

	assert.NilError(t, sub.Delete(ctx))
}

func TestServerEventSubscription(t *testing.T) {
	srv, _, endpointURL := newTestServer(t)
	c := dialTestServer(t, endpointURL)
	ctx := context.Background()

	events := make(chan *ua.BaseEvent, 16)
	sub, err := client.NewSubscription(ctx, c, &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 100,
		RequestedMaxKeepAliveCount:  10,
		RequestedLifetimeCount:      30,
		PublishingEnabled:           true,
	}, client.WithEventHandler(func(sub *client.Subscription, handles []uint32, fields [][]ua.Variant) {
		for i := range handles {
			events <- ua.NewBaseEvent(fields[i])
		}
	}))
	assert.NilError(t, err)

	res, err := sub.CreateMonitoredItems(ctx, ua.TimestampsToReturnNeither, ua.MonitoredItemCreateRequest{
		ItemToMonitor:  ua.ReadValueID{NodeID: demoDevice, AttributeID: ua.AttributeIDEventNotifier},
		MonitoringMode: ua.MonitoringModeReporting,
		RequestedParameters: ua.MonitoringParameters{
			ClientHandle: 7,
			QueueSize:    10,
			Filter:       ua.EventFilter{SelectClauses: ua.BaseEventSelectClauses},
		},
	})
	assert.NilError(t, err)
	assert.Equal(t, res.Results[0].StatusCode, ua.Good)

	// the folder does not notify events.
	res, err = sub.CreateMonitoredItems(ctx, ua.TimestampsToReturnNeither, ua.MonitoredItemCreateRequest{
		ItemToMonitor:       ua.ReadValueID{NodeID: demoFolder, AttributeID: ua.AttributeIDEventNotifier},
		MonitoringMode:      ua.MonitoringModeReporting,
		RequestedParameters: ua.MonitoringParameters{ClientHandle: 8, Filter: ua.EventFilter{SelectClauses: ua.BaseEventSelectClauses}},
	})
	assert.NilError(t, err)
	assert.Equal(t, res.Results[0].StatusCode, ua.BadNotSupported)

	srv.EmitEvent(demoDevice, &ua.BaseEvent{
		EventID:    ua.ByteString("1"),
		EventType:  ua.ObjectTypeIDBaseEventType,
		SourceName: "Device",
		Time:       time.Now(),
		Message:    ua.NewLocalizedText("overheated", "en"),
		Severity:   700,
	})

	select {
	case ev := <-events:
		assert.Equal(t, ev.SourceName, "Device")
		assert.Equal(t, ev.Severity, uint16(700))
		assert.Equal(t, ev.Message.Text, "overheated")
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}

func TestServerKeepAlive(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	c := dialTestServer(t, endpointURL)
	sub, err := client.NewSubscription(context.Background(), c, &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 50,
		RequestedMaxKeepAliveCount:  2,
		RequestedLifetimeCount:      10,
		PublishingEnabled:           true,
	})
	assert.NilError(t, err)
	deadline := time.Now().Add(5 * time.Second)
	for sub.KeepAliveCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("keep-alive not received")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestServerCloseSession(t *testing.T) {
	srv, _, endpointURL := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, endpointURL, client.WithLogger(newTestLogger()))
	assert.NilError(t, err)
	_, err = client.NewSubscription(ctx, c, &ua.CreateSubscriptionRequest{RequestedPublishingInterval: 100, PublishingEnabled: true})
	assert.NilError(t, err)
	assert.Equal(t, srv.SessionManager().Len(), 1)
	assert.Equal(t, srv.SubscriptionManager().Len(), 1)
	assert.NilError(t, c.Close(ctx))
	assert.Equal(t, srv.SessionManager().Len(), 0)
	assert.Equal(t, srv.SubscriptionManager().Len(), 0)
}
