// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"context"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/gammazero/deque"
)

const (
	maxQueueSize        = 1024
	maxSamplingInterval = 60 * 1000.0
)

var (
	monitoredItemID = uint32(0)
)

// notification is a queued data change or event.
type notification struct {
	value  ua.DataValue
	fields []ua.Variant
}

// MonitoredItem specifies the node that is monitored for data changes or events.
type MonitoredItem struct {
	sync.RWMutex
	id                  uint32
	itemToMonitor       ua.ReadValueID
	monitoringMode      ua.MonitoringMode
	clientHandle        uint32
	samplingInterval    float64
	queueSize           uint32
	discardOldest       bool
	timestampsToReturn  ua.TimestampsToReturn
	minSamplingInterval float64
	queue               deque.Deque[notification]
	queueOverflowed     bool
	dataChangeFilter    ua.DataChangeFilter
	eventFilter         ua.EventFilter
	previousQueuedValue ua.DataValue
	hasPrevious         bool
	pollGroup           *PollGroup
	sub                 *Subscription
	srv                 *Server
}

// NewMonitoredItem validates the request and constructs a new MonitoredItem. Monitoring starts when the item
// is not disabled.
func NewMonitoredItem(ctx context.Context, sub *Subscription, req ua.MonitoredItemCreateRequest, timestampsToReturn ua.TimestampsToReturn) (*MonitoredItem, ua.MonitoredItemCreateResult) {
	srv := sub.manager.server
	if req.MonitoringMode < ua.MonitoringModeDisabled || req.MonitoringMode > ua.MonitoringModeReporting {
		return nil, ua.MonitoredItemCreateResult{StatusCode: ua.BadMonitoringModeInvalid}
	}
	item := req.ItemToMonitor
	switch item.AttributeID {
	case ua.AttributeIDEventNotifier:
		v := srv.addressSpace.Read(ctx, item, ua.TimestampsToReturnNeither)
		if v.StatusCode.IsBad() {
			return nil, ua.MonitoredItemCreateResult{StatusCode: v.StatusCode}
		}
		if notifier, ok := v.Value.(byte); !ok || notifier&ua.EventNotifierSubscribeToEvents == 0 {
			return nil, ua.MonitoredItemCreateResult{StatusCode: ua.BadNotSupported}
		}
	default:
		v := srv.addressSpace.Read(ctx, ua.ReadValueID{NodeID: item.NodeID, AttributeID: ua.AttributeIDNodeClass}, ua.TimestampsToReturnNeither)
		if v.StatusCode.IsBad() {
			return nil, ua.MonitoredItemCreateResult{StatusCode: v.StatusCode}
		}
		if v := srv.addressSpace.Read(ctx, item, ua.TimestampsToReturnNeither); v.StatusCode == ua.BadAttributeIDInvalid || v.StatusCode == ua.BadIndexRangeInvalid || v.StatusCode == ua.BadDataEncodingUnsupported {
			return nil, ua.MonitoredItemCreateResult{StatusCode: v.StatusCode}
		}
	}
	mi := &MonitoredItem{
		sub:                 sub,
		srv:                 srv,
		id:                  atomic.AddUint32(&monitoredItemID, 1),
		itemToMonitor:       item,
		monitoringMode:      req.MonitoringMode,
		clientHandle:        req.RequestedParameters.ClientHandle,
		discardOldest:       req.RequestedParameters.DiscardOldest,
		timestampsToReturn:  timestampsToReturn,
		minSamplingInterval: srv.ServerCapabilities().MinSupportedSampleRate,
	}
	filterResult, status := mi.setFilter(req.RequestedParameters.Filter)
	if status.IsBad() {
		return nil, ua.MonitoredItemCreateResult{StatusCode: status}
	}
	mi.setQueueSize(req.RequestedParameters.QueueSize)
	mi.setSamplingInterval(req.RequestedParameters.SamplingInterval, sub.PublishingInterval())
	mi.Lock()
	mi.startMonitoring(ctx)
	mi.Unlock()
	return mi, ua.MonitoredItemCreateResult{
		StatusCode:              ua.Good,
		MonitoredItemID:         mi.id,
		RevisedSamplingInterval: mi.samplingInterval,
		RevisedQueueSize:        mi.queueSize,
		FilterResult:            filterResult,
	}
}

// ID returns the id of the MonitoredItem.
func (mi *MonitoredItem) ID() uint32 {
	return mi.id
}

// Modify modifies the MonitoredItem.
func (mi *MonitoredItem) Modify(ctx context.Context, req ua.MonitoredItemModifyRequest) ua.MonitoredItemModifyResult {
	publishingInterval := mi.sub.PublishingInterval()
	mi.Lock()
	defer mi.Unlock()
	filterResult, status := mi.setFilter(req.RequestedParameters.Filter)
	if status.IsBad() {
		return ua.MonitoredItemModifyResult{StatusCode: status}
	}
	mi.stopMonitoring()
	mi.clientHandle = req.RequestedParameters.ClientHandle
	mi.discardOldest = req.RequestedParameters.DiscardOldest
	mi.setQueueSize(req.RequestedParameters.QueueSize)
	mi.setSamplingInterval(req.RequestedParameters.SamplingInterval, publishingInterval)
	mi.startMonitoring(ctx)
	return ua.MonitoredItemModifyResult{
		StatusCode:              ua.Good,
		RevisedSamplingInterval: mi.samplingInterval,
		RevisedQueueSize:        mi.queueSize,
		FilterResult:            filterResult,
	}
}

// Delete stops the MonitoredItem.
func (mi *MonitoredItem) Delete() {
	mi.Lock()
	defer mi.Unlock()
	mi.stopMonitoring()
	mi.queue.Clear()
	mi.hasPrevious = false
}

// SetMonitoringMode sets the MonitoringMode of the MonitoredItem.
func (mi *MonitoredItem) SetMonitoringMode(ctx context.Context, mode ua.MonitoringMode) ua.StatusCode {
	if mode < ua.MonitoringModeDisabled || mode > ua.MonitoringModeReporting {
		return ua.BadMonitoringModeInvalid
	}
	mi.Lock()
	defer mi.Unlock()
	if mi.monitoringMode == mode {
		return ua.Good
	}
	mi.stopMonitoring()
	mi.monitoringMode = mode
	if mode == ua.MonitoringModeDisabled {
		mi.queue.Clear()
		mi.queueOverflowed = false
		mi.hasPrevious = false
	}
	mi.startMonitoring(ctx)
	return ua.Good
}

// setQueueSize clamps the queue size to [1, maxQueueSize], then trims the queue per the discard policy.
func (mi *MonitoredItem) setQueueSize(queueSize uint32) {
	switch mi.itemToMonitor.AttributeID {
	case ua.AttributeIDEventNotifier:
		if queueSize == 0 || queueSize > maxQueueSize {
			queueSize = maxQueueSize
		}
	default:
		if queueSize > maxQueueSize {
			queueSize = maxQueueSize
		}
		if queueSize < 1 {
			queueSize = 1
		}
	}
	mi.queueSize = queueSize

	// trim to size
	for mi.queue.Len() > int(mi.queueSize) {
		if mi.discardOldest {
			mi.queue.PopFront()
		} else {
			mi.queue.PopBack()
		}
		mi.queueOverflowed = true
	}
}

// SamplingInterval returns the sampling interval in ms of the MonitoredItem.
func (mi *MonitoredItem) SamplingInterval() float64 {
	mi.RLock()
	defer mi.RUnlock()
	return mi.samplingInterval
}

// QueueSize returns the revised queue size of the MonitoredItem.
func (mi *MonitoredItem) QueueSize() uint32 {
	mi.RLock()
	defer mi.RUnlock()
	return mi.queueSize
}

// setSamplingInterval clamps the interval. A negative interval means the publishing interval.
func (mi *MonitoredItem) setSamplingInterval(samplingInterval, publishingInterval float64) {
	switch mi.itemToMonitor.AttributeID {
	case ua.AttributeIDEventNotifier:
		samplingInterval = 0
	default:
		if samplingInterval < 0 {
			samplingInterval = publishingInterval
		}
		if samplingInterval < mi.minSamplingInterval {
			samplingInterval = mi.minSamplingInterval
		}
		if samplingInterval > maxSamplingInterval {
			samplingInterval = maxSamplingInterval
		}
	}
	mi.samplingInterval = samplingInterval
}

// setFilter checks the filter for the attribute, returning the filter result for the client.
func (mi *MonitoredItem) setFilter(filter ua.ExtensionObject) (ua.ExtensionObject, ua.StatusCode) {
	switch mi.itemToMonitor.AttributeID {
	case ua.AttributeIDEventNotifier:
		ef := ua.EventFilter{SelectClauses: ua.BaseEventSelectClauses}
		switch f := filter.(type) {
		case nil:
		case ua.EventFilter:
			if len(f.SelectClauses) == 0 {
				return nil, ua.BadEventFilterInvalid
			}
			ef = f
		default:
			return nil, ua.BadMonitoredItemFilterUnsupported
		}
		results := make([]ua.StatusCode, len(ef.SelectClauses))
		for i, clause := range ef.SelectClauses {
			if clause.AttributeID != ua.AttributeIDValue {
				results[i] = ua.BadAttributeIDInvalid
			}
		}
		mi.eventFilter = ef
		return ua.EventFilterResult{SelectClauseResults: results}, ua.Good
	default:
		dcf := ua.DataChangeFilter{Trigger: ua.DataChangeTriggerStatusValue}
		switch f := filter.(type) {
		case nil:
		case ua.DataChangeFilter:
			switch ua.DeadbandType(f.DeadbandType) {
			case ua.DeadbandTypeNone, ua.DeadbandTypeAbsolute:
			default:
				return nil, ua.BadMonitoredItemFilterUnsupported
			}
			if mi.itemToMonitor.AttributeID != ua.AttributeIDValue {
				return nil, ua.BadFilterNotAllowed
			}
			dcf = f
		case ua.EventFilter:
			return nil, ua.BadFilterNotAllowed
		default:
			return nil, ua.BadMonitoredItemFilterUnsupported
		}
		mi.dataChangeFilter = dcf
		return nil, ua.Good
	}
}

// startMonitoring samples the first value and subscribes to the poll group. Called with the lock held.
func (mi *MonitoredItem) startMonitoring(ctx context.Context) {
	if mi.monitoringMode == ua.MonitoringModeDisabled {
		return
	}
	switch mi.itemToMonitor.AttributeID {
	case ua.AttributeIDEventNotifier:
		// events are pushed by the subscription manager.
	default:
		mi.sample(ctx)
		mi.pollGroup = mi.srv.Scheduler().GetPollGroup(time.Duration(mi.samplingInterval) * time.Millisecond)
		mi.pollGroup.Subscribe(mi)
	}
}

// stopMonitoring unsubscribes from the poll group. Called with the lock held.
func (mi *MonitoredItem) stopMonitoring() {
	if mi.pollGroup != nil {
		mi.pollGroup.Unsubscribe(mi)
		mi.pollGroup = nil
	}
}

// Poll reads the value of the itemToMonitor.
func (mi *MonitoredItem) Poll() {
	mi.Lock()
	defer mi.Unlock()
	if mi.monitoringMode == ua.MonitoringModeDisabled {
		return
	}
	mi.sample(context.Background())
}

func (mi *MonitoredItem) sample(ctx context.Context) {
	v := mi.srv.addressSpace.Read(ctx, mi.itemToMonitor, ua.TimestampsToReturnBoth)
	if mi.hasPrevious && !mi.isDataChange(v, mi.previousQueuedValue) {
		return
	}
	mi.enqueue(notification{value: filterTimestamps(v, mi.timestampsToReturn)})
	mi.previousQueuedValue = v
	mi.hasPrevious = true
}

// onEvent queues the event fields chosen by the select clauses of the filter.
func (mi *MonitoredItem) onEvent(ev *ua.BaseEvent) {
	mi.Lock()
	defer mi.Unlock()
	if mi.monitoringMode == ua.MonitoringModeDisabled || mi.itemToMonitor.AttributeID != ua.AttributeIDEventNotifier {
		return
	}
	mi.enqueue(notification{fields: ev.Select(mi.eventFilter.SelectClauses)})
}

// enqueue adds the notification to the bounded queue. When the queue is full, either the oldest notification
// is dropped or the new one is rejected, and the overflow flag is set.
func (mi *MonitoredItem) enqueue(n notification) {
	if mi.queue.Len() >= int(mi.queueSize) {
		mi.queueOverflowed = true
		if !mi.discardOldest {
			return
		}
		mi.queue.PopFront()
	}
	mi.queue.PushBack(n)
}

// notifications removes up to max notifications from the queue. The first data value delivered after an
// overflow carries the Overflow bit.
func (mi *MonitoredItem) notifications(max int) (notifications []notification, more bool) {
	mi.Lock()
	defer mi.Unlock()
	if mi.monitoringMode != ua.MonitoringModeReporting {
		return nil, false
	}
	notifications = make([]notification, 0, 4)
	for i := 0; (max <= 0 || i < max) && mi.queue.Len() > 0; i++ {
		n := mi.queue.PopFront()
		if mi.queueOverflowed && n.fields == nil {
			n.value.StatusCode = n.value.StatusCode.WithOverflow()
			mi.queueOverflowed = false
		}
		notifications = append(notifications, n)
	}
	if mi.queueOverflowed && len(notifications) > 0 {
		mi.queueOverflowed = false
	}
	return notifications, mi.queue.Len() > 0
}

// notificationsAvailable returns true if the item is reporting and has queued notifications.
func (mi *MonitoredItem) notificationsAvailable() bool {
	mi.RLock()
	defer mi.RUnlock()
	return mi.monitoringMode == ua.MonitoringModeReporting && mi.queue.Len() > 0
}

func (mi *MonitoredItem) isDataChange(current, previous ua.DataValue) bool {
	dcf := mi.dataChangeFilter
	if current.StatusCode&0xFFFF0000 != previous.StatusCode&0xFFFF0000 {
		return true
	}
	switch dcf.Trigger {
	case ua.DataChangeTriggerStatus:
		return false
	case ua.DataChangeTriggerStatusValueTimestamp:
		if !current.SourceTimestamp.Equal(previous.SourceTimestamp) {
			return true
		}
	}
	if ua.DeadbandType(dcf.DeadbandType) == ua.DeadbandTypeAbsolute {
		return !deadbandEqualAbsolute(current.Value, previous.Value, dcf.DeadbandValue)
	}
	return !reflect.DeepEqual(current.Value, previous.Value)
}

// deadbandEqualAbsolute returns true if the numeric values differ by no more than the deadband.
// Arrays are compared element by element.
func deadbandEqualAbsolute(current, previous ua.Variant, deadband float64) bool {
	c, ok1 := toFloat64(current)
	p, ok2 := toFloat64(previous)
	if ok1 && ok2 {
		return math.Abs(c-p) <= deadband
	}
	cv, pv := reflect.ValueOf(current), reflect.ValueOf(previous)
	if cv.Kind() != reflect.Slice || pv.Kind() != reflect.Slice || cv.Type() != pv.Type() || cv.Len() != pv.Len() {
		return reflect.DeepEqual(current, previous)
	}
	for i := 0; i < cv.Len(); i++ {
		if !deadbandEqualAbsolute(cv.Index(i).Interface(), pv.Index(i).Interface(), deadband) {
			return false
		}
	}
	return true
}

func toFloat64(v ua.Variant) (float64, bool) {
	switch x := v.(type) {
	case int8:
		return float64(x), true
	case uint8:
		return float64(x), true
	case int16:
		return float64(x), true
	case uint16:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
