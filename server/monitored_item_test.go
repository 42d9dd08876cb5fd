// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"testing"
	"time"

	"github.com/awcullen/uastack/ua"
	"gotest.tools/assert"
)

func newQueueTestItem(queueSize uint32, discardOldest bool) *MonitoredItem {
	return &MonitoredItem{
		itemToMonitor:  ua.ReadValueID{NodeID: ua.NewNodeIDNumeric(2, 1), AttributeID: ua.AttributeIDValue},
		monitoringMode: ua.MonitoringModeReporting,
		queueSize:      queueSize,
		discardOldest:  discardOldest,
	}
}

func int32Value(v int32) notification {
	now := time.Now()
	return notification{value: ua.NewDataValue(v, ua.Good, now, 0, now, 0)}
}

func TestMonitoredItemQueueOverflow(t *testing.T) {
	cases := []struct {
		name          string
		discardOldest bool
		want          []int32
	}{
		{"discard oldest", true, []int32{2, 3}},
		{"discard newest", false, []int32{0, 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mi := newQueueTestItem(2, c.discardOldest)
			for i := int32(0); i < 4; i++ {
				mi.enqueue(int32Value(i))
			}
			ns, more := mi.notifications(0)
			assert.Equal(t, more, false)
			assert.Equal(t, len(ns), len(c.want))
			for i, n := range ns {
				assert.Equal(t, n.value.Value, c.want[i])
			}
			assert.Assert(t, ns[0].value.StatusCode.IsOverflow())
			assert.Assert(t, !ns[1].value.StatusCode.IsOverflow())
			assert.Equal(t, ns[0].value.StatusCode.Code(), ua.Good)

			// the flag is cleared after delivery
			mi.enqueue(int32Value(9))
			ns, _ = mi.notifications(0)
			assert.Equal(t, len(ns), 1)
			assert.Assert(t, !ns[0].value.StatusCode.IsOverflow())
		})
	}
}

func TestMonitoredItemNoOverflowWithinQueueSize(t *testing.T) {
	mi := newQueueTestItem(3, true)
	mi.enqueue(int32Value(1))
	mi.enqueue(int32Value(2))
	ns, _ := mi.notifications(0)
	assert.Equal(t, len(ns), 2)
	for _, n := range ns {
		assert.Assert(t, !n.value.StatusCode.IsOverflow())
	}
}

func TestMonitoredItemNotificationsMax(t *testing.T) {
	mi := newQueueTestItem(10, true)
	for i := int32(0); i < 5; i++ {
		mi.enqueue(int32Value(i))
	}
	ns, more := mi.notifications(3)
	assert.Equal(t, len(ns), 3)
	assert.Equal(t, more, true)
	ns, more = mi.notifications(3)
	assert.Equal(t, len(ns), 2)
	assert.Equal(t, more, false)
}

func TestMonitoredItemNotReporting(t *testing.T) {
	mi := newQueueTestItem(2, true)
	mi.monitoringMode = ua.MonitoringModeSampling
	mi.enqueue(int32Value(1))
	assert.Assert(t, !mi.notificationsAvailable())
	ns, _ := mi.notifications(0)
	assert.Equal(t, len(ns), 0)

	mi.monitoringMode = ua.MonitoringModeReporting
	assert.Assert(t, mi.notificationsAvailable())
}

func TestMonitoredItemSetQueueSize(t *testing.T) {
	cases := []struct {
		attributeID uint32
		requested   uint32
		want        uint32
	}{
		{ua.AttributeIDValue, 0, 1},
		{ua.AttributeIDValue, 5, 5},
		{ua.AttributeIDValue, 5000, maxQueueSize},
		{ua.AttributeIDEventNotifier, 0, maxQueueSize},
		{ua.AttributeIDEventNotifier, 10, 10},
	}
	for _, c := range cases {
		mi := &MonitoredItem{itemToMonitor: ua.ReadValueID{AttributeID: c.attributeID}}
		mi.setQueueSize(c.requested)
		assert.Equal(t, mi.queueSize, c.want)
	}
}

func TestMonitoredItemSetSamplingInterval(t *testing.T) {
	cases := []struct {
		requested float64
		want      float64
	}{
		{-1, 500},
		{0, 100},
		{250, 250},
		{1e9, maxSamplingInterval},
	}
	for _, c := range cases {
		mi := &MonitoredItem{itemToMonitor: ua.ReadValueID{AttributeID: ua.AttributeIDValue}, minSamplingInterval: 100}
		mi.setSamplingInterval(c.requested, 500)
		assert.Equal(t, mi.samplingInterval, c.want)
	}
}

func TestMonitoredItemIsDataChange(t *testing.T) {
	t0 := time.Now()
	t1 := t0.Add(time.Second)
	cases := []struct {
		name     string
		filter   ua.DataChangeFilter
		current  ua.DataValue
		previous ua.DataValue
		want     bool
	}{
		{
			"same value",
			ua.DataChangeFilter{Trigger: ua.DataChangeTriggerStatusValue},
			ua.NewDataValue(1.0, ua.Good, t1, 0, t1, 0),
			ua.NewDataValue(1.0, ua.Good, t0, 0, t0, 0),
			false,
		},
		{
			"new value",
			ua.DataChangeFilter{Trigger: ua.DataChangeTriggerStatusValue},
			ua.NewDataValue(2.0, ua.Good, t1, 0, t1, 0),
			ua.NewDataValue(1.0, ua.Good, t0, 0, t0, 0),
			true,
		},
		{
			"new status",
			ua.DataChangeFilter{Trigger: ua.DataChangeTriggerStatus},
			ua.NewDataValue(1.0, ua.BadNotReadable, t1, 0, t1, 0),
			ua.NewDataValue(1.0, ua.Good, t0, 0, t0, 0),
			true,
		},
		{
			"status trigger ignores value",
			ua.DataChangeFilter{Trigger: ua.DataChangeTriggerStatus},
			ua.NewDataValue(2.0, ua.Good, t1, 0, t1, 0),
			ua.NewDataValue(1.0, ua.Good, t0, 0, t0, 0),
			false,
		},
		{
			"new timestamp",
			ua.DataChangeFilter{Trigger: ua.DataChangeTriggerStatusValueTimestamp},
			ua.NewDataValue(1.0, ua.Good, t1, 0, t1, 0),
			ua.NewDataValue(1.0, ua.Good, t0, 0, t0, 0),
			true,
		},
		{
			"within deadband",
			ua.DataChangeFilter{Trigger: ua.DataChangeTriggerStatusValue, DeadbandType: uint32(ua.DeadbandTypeAbsolute), DeadbandValue: 0.5},
			ua.NewDataValue(1.4, ua.Good, t1, 0, t1, 0),
			ua.NewDataValue(1.0, ua.Good, t0, 0, t0, 0),
			false,
		},
		{
			"outside deadband",
			ua.DataChangeFilter{Trigger: ua.DataChangeTriggerStatusValue, DeadbandType: uint32(ua.DeadbandTypeAbsolute), DeadbandValue: 0.5},
			ua.NewDataValue(int32(3), ua.Good, t1, 0, t1, 0),
			ua.NewDataValue(int32(1), ua.Good, t0, 0, t0, 0),
			true,
		},
		{
			"array within deadband",
			ua.DataChangeFilter{Trigger: ua.DataChangeTriggerStatusValue, DeadbandType: uint32(ua.DeadbandTypeAbsolute), DeadbandValue: 1},
			ua.NewDataValue([]float64{1, 2.5}, ua.Good, t1, 0, t1, 0),
			ua.NewDataValue([]float64{1.5, 2}, ua.Good, t0, 0, t0, 0),
			false,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mi := &MonitoredItem{dataChangeFilter: c.filter}
			assert.Equal(t, mi.isDataChange(c.current, c.previous), c.want)
		})
	}
}

func TestEventField(t *testing.T) {
	ev := &ua.BaseEvent{
		EventID:    ua.ByteString("id"),
		EventType:  ua.ObjectTypeIDBaseEventType,
		SourceName: "Demo",
		Message:    ua.NewLocalizedText("hello", ""),
		Severity:   500,
	}
	mi := &MonitoredItem{
		itemToMonitor:  ua.ReadValueID{NodeID: ua.ObjectIDServer, AttributeID: ua.AttributeIDEventNotifier},
		monitoringMode: ua.MonitoringModeReporting,
		queueSize:      10,
		eventFilter: ua.EventFilter{SelectClauses: []ua.SimpleAttributeOperand{
			{TypeDefinitionID: ua.ObjectTypeIDBaseEventType, BrowsePath: []ua.QualifiedName{ua.NewQualifiedName(0, "SourceName")}, AttributeID: ua.AttributeIDValue},
			{TypeDefinitionID: ua.ObjectTypeIDBaseEventType, BrowsePath: []ua.QualifiedName{ua.NewQualifiedName(0, "Severity")}, AttributeID: ua.AttributeIDValue},
			{TypeDefinitionID: ua.ObjectTypeIDBaseEventType, BrowsePath: []ua.QualifiedName{ua.NewQualifiedName(0, "Unknown")}, AttributeID: ua.AttributeIDValue},
		}},
	}
	mi.onEvent(ev)
	ns, _ := mi.notifications(0)
	assert.Equal(t, len(ns), 1)
	assert.DeepEqual(t, ns[0].fields, []ua.Variant{"Demo", uint16(500), nil})
}
