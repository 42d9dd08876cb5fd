// Copyright 2021 Converter Systems LLC. All rights reserved.

package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/awcullen/uastack/client"
	"github.com/awcullen/uastack/ua"
	"gotest.tools/assert"
)

func TestFindServers(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	res, err := client.FindServers(testContext(t), &ua.FindServersRequest{EndpointURL: endpointURL})
	assert.NilError(t, err)
	assert.Equal(t, len(res.Servers), 1)
	assert.Equal(t, res.Servers[0].ApplicationURI, "urn:test:server")
}

func TestDialAndClose(t *testing.T) {
	srv, _, endpointURL := newTestServer(t)
	ctx := testContext(t)
	c, err := client.Dial(ctx, endpointURL, client.WithSessionName("dial"), client.WithLogger(newTestLogger()))
	assert.NilError(t, err)
	assert.Equal(t, c.SecurityPolicyURI(), ua.SecurityPolicyURINone)
	assert.Equal(t, c.NamespaceURIs()[2], "urn:test:client")
	assert.DeepEqual(t, c.ServerURIs(), []string{"urn:test:server"})
	assert.Equal(t, srv.SessionManager().Len(), 1)
	assert.NilError(t, c.Close(ctx))
	assert.Equal(t, srv.SessionManager().Len(), 0)

	// a closed client may be closed again.
	assert.NilError(t, c.Close(ctx))
}

func TestDialRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Dial(ctx, "opc.tcp://localhost:1", client.WithLogger(newTestLogger()))
	assert.Assert(t, err != nil)
}

func TestDialInvalidURL(t *testing.T) {
	_, err := client.Dial(testContext(t), "opc.tcp://", client.WithLogger(newTestLogger()))
	assert.Equal(t, err, ua.BadTCPEndpointURLInvalid)
}

func TestSubscriptionDataChange(t *testing.T) {
	_, m, endpointURL := newTestServer(t)
	ctx := testContext(t)
	c, err := client.Dial(ctx, endpointURL, client.WithLogger(newTestLogger()))
	assert.NilError(t, err)
	defer c.Close(ctx)

	type change struct {
		handle uint32
		value  ua.DataValue
	}
	changes := make(chan change, 64)
	sub, err := client.NewSubscription(ctx, c, &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 50,
		RequestedMaxKeepAliveCount:  20,
		RequestedLifetimeCount:      60,
		PublishingEnabled:           true,
	}, client.WithDataChangeHandler(func(sub *client.Subscription, handles []uint32, values []ua.DataValue) {
		for i := range handles {
			changes <- change{handles[i], values[i]}
		}
	}))
	assert.NilError(t, err)

	res, err := sub.CreateMonitoredItems(ctx, ua.TimestampsToReturnBoth,
		ua.MonitoredItemCreateRequest{
			ItemToMonitor:       ua.ReadValueID{NodeID: nodeCounter, AttributeID: ua.AttributeIDValue},
			MonitoringMode:      ua.MonitoringModeReporting,
			RequestedParameters: ua.MonitoringParameters{ClientHandle: 1, SamplingInterval: -1, QueueSize: 10, DiscardOldest: true},
		},
		ua.MonitoredItemCreateRequest{
			ItemToMonitor:       ua.ReadValueID{NodeID: ua.NewNodeIDString(2, "Missing"), AttributeID: ua.AttributeIDValue},
			MonitoringMode:      ua.MonitoringModeReporting,
			RequestedParameters: ua.MonitoringParameters{ClientHandle: 2},
		},
	)
	assert.NilError(t, err)
	assert.Equal(t, res.Results[0].StatusCode, ua.Good)
	assert.Equal(t, res.Results[1].StatusCode, ua.BadNodeIDUnknown)
	assert.Equal(t, len(sub.MonitoredItems()), 1)

	receive := func(want int32) {
		timeout := time.After(5 * time.Second)
		for {
			select {
			case ch := <-changes:
				assert.Equal(t, ch.handle, uint32(1))
				if ch.value.Value == want {
					return
				}
			case <-timeout:
				t.Fatalf("value %d not received", want)
			}
		}
	}
	receive(0)
	for i := int32(1); i <= 3; i++ {
		assert.NilError(t, m.SetValue(nodeCounter, ua.NewDataValue(i, ua.Good, time.Now(), 0, time.Time{}, 0)))
		receive(i)
	}

	dres, err := sub.DeleteMonitoredItems(ctx, sub.MonitoredItems()...)
	assert.NilError(t, err)
	assert.DeepEqual(t, dres.Results, []ua.StatusCode{ua.Good})
	assert.NilError(t, sub.Delete(ctx))
	closed, _ := sub.Closed()
	assert.Assert(t, closed)
}

func TestSubscriptionEvents(t *testing.T) {
	srv, _, endpointURL := newTestServer(t)
	ctx := testContext(t)
	c, err := client.Dial(ctx, endpointURL, client.WithLogger(newTestLogger()))
	assert.NilError(t, err)
	defer c.Close(ctx)

	events := make(chan []ua.Variant, 16)
	sub, err := client.NewSubscription(ctx, c, &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 50,
		PublishingEnabled:           true,
	}, client.WithEventHandler(func(sub *client.Subscription, handles []uint32, fields [][]ua.Variant) {
		for i := range handles {
			events <- fields[i]
		}
	}))
	assert.NilError(t, err)
	res, err := sub.CreateMonitoredItems(ctx, ua.TimestampsToReturnNeither, ua.MonitoredItemCreateRequest{
		ItemToMonitor:  ua.ReadValueID{NodeID: ua.ObjectIDServer, AttributeID: ua.AttributeIDEventNotifier},
		MonitoringMode: ua.MonitoringModeReporting,
		RequestedParameters: ua.MonitoringParameters{
			ClientHandle: 3,
			QueueSize:    10,
			Filter: ua.EventFilter{SelectClauses: []ua.SimpleAttributeOperand{
				{TypeDefinitionID: ua.ObjectTypeIDBaseEventType, BrowsePath: ua.ParseBrowsePath("SourceName"), AttributeID: ua.AttributeIDValue},
				{TypeDefinitionID: ua.ObjectTypeIDBaseEventType, BrowsePath: ua.ParseBrowsePath("Severity"), AttributeID: ua.AttributeIDValue},
			}},
		},
	})
	assert.NilError(t, err)
	assert.Equal(t, res.Results[0].StatusCode, ua.Good)

	// events of every source are reported to the Server object.
	srv.EmitEvent(nodeMachine, &ua.BaseEvent{
		EventID:    ua.ByteString("e1"),
		EventType:  ua.ObjectTypeIDBaseEventType,
		SourceName: "Machine",
		Time:       time.Now(),
		Severity:   300,
	})
	select {
	case fields := <-events:
		assert.DeepEqual(t, fields, []ua.Variant{"Machine", uint16(300)})
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}

func TestSubscriptionPublishingMode(t *testing.T) {
	_, _, endpointURL := newTestServer(t)
	ctx := testContext(t)
	c, err := client.Dial(ctx, endpointURL, client.WithLogger(newTestLogger()))
	assert.NilError(t, err)
	defer c.Close(ctx)

	values := make(chan ua.DataValue, 64)
	sub, err := client.NewSubscription(ctx, c, &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 50,
		RequestedMaxKeepAliveCount:  2,
		PublishingEnabled:           false,
	}, client.WithDataChangeHandler(func(sub *client.Subscription, handles []uint32, vs []ua.DataValue) {
		for _, v := range vs {
			values <- v
		}
	}))
	assert.NilError(t, err)
	_, err = sub.CreateMonitoredItems(ctx, ua.TimestampsToReturnBoth, ua.MonitoredItemCreateRequest{
		ItemToMonitor:       ua.ReadValueID{NodeID: nodeSetting, AttributeID: ua.AttributeIDValue},
		MonitoringMode:      ua.MonitoringModeReporting,
		RequestedParameters: ua.MonitoringParameters{ClientHandle: 1, SamplingInterval: 50, QueueSize: 1, DiscardOldest: true},
	})
	assert.NilError(t, err)

	// only keep-alives while publishing is disabled.
	deadline := time.Now().Add(5 * time.Second)
	for sub.KeepAliveCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("keep-alive not received")
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, len(values), 0)

	assert.NilError(t, sub.SetPublishingMode(ctx, true))
	_, err = c.Write(ctx, &ua.WriteRequest{NodesToWrite: []ua.WriteValue{
		{NodeID: nodeSetting, AttributeID: ua.AttributeIDValue, Value: ua.NewDataValue("on", ua.Good, time.Time{}, 0, time.Time{}, 0)},
	}})
	assert.NilError(t, err)
	timeout := time.After(5 * time.Second)
	for {
		select {
		case v := <-values:
			if v.Value == "on" {
				return
			}
		case <-timeout:
			t.Fatal("value not received")
		}
	}
}
