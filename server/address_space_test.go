// Copyright 2021 Converter Systems LLC. All rights reserved.

package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/awcullen/uastack/server"
	"github.com/awcullen/uastack/ua"
	"gotest.tools/assert"
)

var (
	demoFolder  = ua.NewNodeIDString(2, "Demo")
	demoInt32   = ua.NewNodeIDString(2, "Demo.Int32")
	demoDouble  = ua.NewNodeIDString(2, "Demo.Double")
	demoString  = ua.NewNodeIDString(2, "Demo.ReadOnly")
	demoDevice  = ua.NewNodeIDString(2, "Demo.Device")
	demoAdd     = ua.NewNodeIDString(2, "Demo.Device.Add")
	demoUnknown = ua.NewNodeIDString(2, "Demo.Unknown")
)

// newDemoAddressSpace returns an address space with a demo folder in namespace 2.
func newDemoAddressSpace(t *testing.T) *server.MemoryAddressSpace {
	m := server.NewMemoryAddressSpace("urn:test:server")
	ns := m.AddNamespace("http://github.com/awcullen/uastack/demo")
	assert.Equal(t, ns, uint16(2))
	rw := ua.AccessLevelsCurrentRead | ua.AccessLevelsCurrentWrite
	assert.NilError(t, m.AddFolder(ua.ObjectIDObjectsFolder, demoFolder, ua.NewQualifiedName(2, "Demo")))
	assert.NilError(t, m.AddVariable(demoFolder, demoInt32, ua.NewQualifiedName(2, "Int32"), int32(0), ua.DataTypeIDInt32, rw))
	assert.NilError(t, m.AddVariable(demoFolder, demoDouble, ua.NewQualifiedName(2, "Double"), 0.0, ua.DataTypeIDDouble, rw|ua.AccessLevelsHistoryRead))
	assert.NilError(t, m.AddVariable(demoFolder, demoString, ua.NewQualifiedName(2, "ReadOnly"), "hello", ua.DataTypeIDString, ua.AccessLevelsCurrentRead))
	assert.NilError(t, m.AddObject(demoFolder, demoDevice, ua.NewQualifiedName(2, "Device"), ua.EventNotifierSubscribeToEvents))
	assert.NilError(t, m.AddMethod(demoDevice, demoAdd, ua.NewQualifiedName(2, "Add"), func(ctx context.Context, objectID ua.NodeID, inputs []ua.Variant) ([]ua.Variant, ua.StatusCode) {
		if len(inputs) != 2 {
			return nil, ua.BadInvalidArgument
		}
		a, ok1 := inputs[0].(int32)
		b, ok2 := inputs[1].(int32)
		if !ok1 || !ok2 {
			return nil, ua.BadTypeMismatch
		}
		return []ua.Variant{a + b}, ua.Good
	}))
	return m
}

func TestAddressSpaceRead(t *testing.T) {
	m := newDemoAddressSpace(t)
	ctx := context.Background()
	cases := []struct {
		name   string
		id     ua.ReadValueID
		value  ua.Variant
		status ua.StatusCode
	}{
		{"value", ua.ReadValueID{NodeID: demoString, AttributeID: ua.AttributeIDValue}, "hello", ua.Good},
		{"browse name", ua.ReadValueID{NodeID: demoInt32, AttributeID: ua.AttributeIDBrowseName}, ua.NewQualifiedName(2, "Int32"), ua.Good},
		{"data type", ua.ReadValueID{NodeID: demoDouble, AttributeID: ua.AttributeIDDataType}, ua.DataTypeIDDouble, ua.Good},
		{"namespace array", ua.ReadValueID{NodeID: ua.VariableIDServerNamespaceArray, AttributeID: ua.AttributeIDValue}, []string{"http://opcfoundation.org/UA/", "urn:test:server", "http://github.com/awcullen/uastack/demo"}, ua.Good},
		{"unknown node", ua.ReadValueID{NodeID: demoUnknown, AttributeID: ua.AttributeIDValue}, nil, ua.BadNodeIDUnknown},
		{"value of folder", ua.ReadValueID{NodeID: demoFolder, AttributeID: ua.AttributeIDValue}, nil, ua.BadAttributeIDInvalid},
		{"index range", ua.ReadValueID{NodeID: demoInt32, AttributeID: ua.AttributeIDValue, IndexRange: "1"}, nil, ua.BadIndexRangeInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v := m.Read(ctx, c.id, ua.TimestampsToReturnBoth)
			assert.Equal(t, v.StatusCode, c.status)
			assert.DeepEqual(t, v.Value, c.value)
		})
	}
}

func TestAddressSpaceReadTimestamps(t *testing.T) {
	m := newDemoAddressSpace(t)
	id := ua.ReadValueID{NodeID: demoInt32, AttributeID: ua.AttributeIDValue}
	v := m.Read(context.Background(), id, ua.TimestampsToReturnNeither)
	assert.Assert(t, v.SourceTimestamp.IsZero())
	assert.Assert(t, v.ServerTimestamp.IsZero())
	v = m.Read(context.Background(), id, ua.TimestampsToReturnSource)
	assert.Assert(t, !v.SourceTimestamp.IsZero())
	assert.Assert(t, v.ServerTimestamp.IsZero())
}

func TestAddressSpaceWrite(t *testing.T) {
	m := newDemoAddressSpace(t)
	ctx := context.Background()
	cases := []struct {
		name   string
		value  ua.WriteValue
		status ua.StatusCode
	}{
		{"int32", ua.WriteValue{NodeID: demoInt32, AttributeID: ua.AttributeIDValue, Value: ua.NewDataValue(int32(42), ua.Good, time.Time{}, 0, time.Time{}, 0)}, ua.Good},
		{"wrong type", ua.WriteValue{NodeID: demoInt32, AttributeID: ua.AttributeIDValue, Value: ua.NewDataValue("42", ua.Good, time.Time{}, 0, time.Time{}, 0)}, ua.BadTypeMismatch},
		{"read only", ua.WriteValue{NodeID: demoString, AttributeID: ua.AttributeIDValue, Value: ua.NewDataValue("bye", ua.Good, time.Time{}, 0, time.Time{}, 0)}, ua.BadNotWritable},
		{"browse name", ua.WriteValue{NodeID: demoInt32, AttributeID: ua.AttributeIDBrowseName, Value: ua.NewDataValue(ua.NewQualifiedName(2, "x"), ua.Good, time.Time{}, 0, time.Time{}, 0)}, ua.BadNotWritable},
		{"unknown node", ua.WriteValue{NodeID: demoUnknown, AttributeID: ua.AttributeIDValue, Value: ua.NewDataValue(int32(1), ua.Good, time.Time{}, 0, time.Time{}, 0)}, ua.BadNodeIDUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, m.Write(ctx, c.value), c.status)
		})
	}
	v := m.Read(ctx, ua.ReadValueID{NodeID: demoInt32, AttributeID: ua.AttributeIDValue}, ua.TimestampsToReturnBoth)
	assert.Equal(t, v.Value, int32(42))
	assert.Assert(t, !v.SourceTimestamp.IsZero())
}

func TestAddressSpaceBrowse(t *testing.T) {
	m := newDemoAddressSpace(t)
	ctx := context.Background()
	refs, status := m.Browse(ctx, ua.BrowseDescription{
		NodeID:          demoFolder,
		BrowseDirection: ua.BrowseDirectionForward,
		ReferenceTypeID: ua.ReferenceTypeIDHierarchicalReferences,
		IncludeSubtypes: true,
		ResultMask:      uint32(ua.BrowseResultMaskAll),
	})
	assert.Equal(t, status, ua.Good)
	names := []string{}
	for _, r := range refs {
		names = append(names, r.BrowseName.Name)
	}
	assert.DeepEqual(t, names, []string{"Int32", "Double", "ReadOnly", "Device"})

	refs, status = m.Browse(ctx, ua.BrowseDescription{
		NodeID:          demoFolder,
		BrowseDirection: ua.BrowseDirectionForward,
		ReferenceTypeID: ua.ReferenceTypeIDHierarchicalReferences,
		IncludeSubtypes: true,
		NodeClassMask:   uint32(ua.NodeClassObject),
		ResultMask:      uint32(ua.BrowseResultMaskAll),
	})
	assert.Equal(t, status, ua.Good)
	assert.Equal(t, len(refs), 1)
	assert.Equal(t, refs[0].NodeID.NodeID, ua.NodeID(demoDevice))

	refs, status = m.Browse(ctx, ua.BrowseDescription{
		NodeID:          demoFolder,
		BrowseDirection: ua.BrowseDirectionInverse,
		ReferenceTypeID: ua.ReferenceTypeIDOrganizes,
		ResultMask:      uint32(ua.BrowseResultMaskAll),
	})
	assert.Equal(t, status, ua.Good)
	assert.Equal(t, len(refs), 1)
	assert.Equal(t, refs[0].NodeID.NodeID, ua.ObjectIDObjectsFolder)

	_, status = m.Browse(ctx, ua.BrowseDescription{NodeID: demoUnknown, ResultMask: uint32(ua.BrowseResultMaskAll)})
	assert.Equal(t, status, ua.BadNodeIDUnknown)
}

func TestAddressSpaceHistoryRead(t *testing.T) {
	m := newDemoAddressSpace(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)
	for i := 1; i <= 5; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		assert.NilError(t, m.SetValue(demoDouble, ua.NewDataValue(float64(i), ua.Good, ts, 0, time.Time{}, 0)))
	}
	details := ua.ReadRawModifiedDetails{StartTime: start.Add(2 * time.Second), EndTime: start.Add(5 * time.Second)}
	res := m.HistoryRead(ctx, details, ua.HistoryReadValueID{NodeID: demoDouble}, ua.TimestampsToReturnSource)
	assert.Equal(t, res.StatusCode, ua.Good)
	data, ok := res.HistoryData.(ua.HistoryData)
	assert.Assert(t, ok)
	values := []float64{}
	for _, v := range data.DataValues {
		values = append(values, v.Value.(float64))
	}
	assert.DeepEqual(t, values, []float64{2, 3, 4})

	details.NumValuesPerNode = 2
	res = m.HistoryRead(ctx, details, ua.HistoryReadValueID{NodeID: demoDouble}, ua.TimestampsToReturnSource)
	assert.Equal(t, len(res.HistoryData.(ua.HistoryData).DataValues), 2)

	res = m.HistoryRead(ctx, details, ua.HistoryReadValueID{NodeID: demoInt32}, ua.TimestampsToReturnSource)
	assert.Equal(t, res.StatusCode, ua.BadNotReadable)

	res = m.HistoryRead(ctx, ua.ReadRawModifiedDetails{IsReadModified: true}, ua.HistoryReadValueID{NodeID: demoDouble}, ua.TimestampsToReturnSource)
	assert.Equal(t, res.StatusCode, ua.BadHistoryOperationUnsupported)
}

func TestAddressSpaceHistoryReadOrder(t *testing.T) {
	m := newDemoAddressSpace(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)
	// written newest first, after the initial value recorded at creation.
	for _, i := range []int{3, 1, 2} {
		ts := start.Add(time.Duration(i) * time.Second)
		assert.NilError(t, m.SetValue(demoDouble, ua.NewDataValue(float64(i), ua.Good, ts, 0, time.Time{}, 0)))
	}
	details := ua.ReadRawModifiedDetails{StartTime: start, EndTime: time.Now().Add(time.Second)}
	res := m.HistoryRead(ctx, details, ua.HistoryReadValueID{NodeID: demoDouble}, ua.TimestampsToReturnSource)
	assert.Equal(t, res.StatusCode, ua.Good)
	values := []float64{}
	for _, v := range res.HistoryData.(ua.HistoryData).DataValues {
		values = append(values, v.Value.(float64))
	}
	assert.DeepEqual(t, values, []float64{1, 2, 3, 0})
}

func TestAddressSpaceCall(t *testing.T) {
	m := newDemoAddressSpace(t)
	ctx := context.Background()
	res := m.Call(ctx, ua.CallMethodRequest{ObjectID: demoDevice, MethodID: demoAdd, InputArguments: []ua.Variant{int32(2), int32(3)}})
	assert.Equal(t, res.StatusCode, ua.Good)
	assert.DeepEqual(t, res.OutputArguments, []ua.Variant{int32(5)})

	res = m.Call(ctx, ua.CallMethodRequest{ObjectID: demoDevice, MethodID: demoAdd, InputArguments: []ua.Variant{int32(2)}})
	assert.Equal(t, res.StatusCode, ua.BadInvalidArgument)

	res = m.Call(ctx, ua.CallMethodRequest{ObjectID: demoDevice, MethodID: demoUnknown})
	assert.Equal(t, res.StatusCode, ua.BadMethodInvalid)
}
