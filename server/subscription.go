// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/gammazero/deque"
	"github.com/sirupsen/logrus"
)

const (
	minPublishingInterval     float64 = 20
	maxPublishingInterval     float64 = 60 * 60 * 1000
	defaultMaxKeepAliveCount  uint32  = 10
	maxKeepAliveCount         uint32  = 30000
	maxRetransmissionMessages         = 64
)

// Subscription collects notifications of its monitored items and publishes them to the session
// once per publishing interval.
type Subscription struct {
	sync.RWMutex
	manager                    *SubscriptionManager
	session                    *Session
	logger                     logrus.FieldLogger
	id                         uint32
	publishingInterval         float64
	lifetimeCount              uint32
	maxKeepAliveCount          uint32
	maxNotificationsPerPublish uint32
	publishingEnabled          bool
	priority                   byte
	items                      map[uint32]*MonitoredItem
	seqNum                     uint32
	keepAliveCounter           uint32
	lifetimeCounter            uint32
	late                       bool
	firstMessageSent           bool
	retransmissionQueue        map[uint32]ua.NotificationMessage
	retransmissionOrder        deque.Deque[uint32]
	modified                   chan struct{}
	trigger                    chan struct{}
	done                       chan struct{}
	stopOnce                   sync.Once
}

// NewSubscription returns a subscription of the session with revised parameters.
func NewSubscription(manager *SubscriptionManager, session *Session, publishingInterval float64, lifetimeCount, maxKeepAliveCount, maxNotificationsPerPublish uint32, publishingEnabled bool, priority byte) *Subscription {
	s := &Subscription{
		manager:             manager,
		session:             session,
		id:                  manager.nextSubscriptionID(),
		publishingEnabled:   publishingEnabled,
		priority:            priority,
		items:               make(map[uint32]*MonitoredItem),
		retransmissionQueue: make(map[uint32]ua.NotificationMessage),
		modified:            make(chan struct{}, 1),
		trigger:             make(chan struct{}, 1),
		done:                make(chan struct{}),
	}
	s.logger = manager.server.logger.WithField("subscription_id", s.id)
	s.revise(publishingInterval, lifetimeCount, maxKeepAliveCount, maxNotificationsPerPublish)
	return s
}

// revise clamps the parameters. The lifetime is at least three keep-alive periods.
func (s *Subscription) revise(publishingInterval float64, lifetimeCount, maxKeepAlive, maxNotificationsPerPublish uint32) {
	if publishingInterval < minPublishingInterval {
		publishingInterval = minPublishingInterval
	}
	if publishingInterval > maxPublishingInterval {
		publishingInterval = maxPublishingInterval
	}
	s.publishingInterval = publishingInterval
	if maxKeepAlive == 0 {
		maxKeepAlive = defaultMaxKeepAliveCount
	}
	if maxKeepAlive > maxKeepAliveCount {
		maxKeepAlive = maxKeepAliveCount
	}
	s.maxKeepAliveCount = maxKeepAlive
	if lifetimeCount < 3*maxKeepAlive {
		lifetimeCount = 3 * maxKeepAlive
	}
	s.lifetimeCount = lifetimeCount
	if limit := s.manager.server.ServerCapabilities().MaxNotificationsPerPublish; limit > 0 && (maxNotificationsPerPublish == 0 || maxNotificationsPerPublish > limit) {
		maxNotificationsPerPublish = limit
	}
	s.maxNotificationsPerPublish = maxNotificationsPerPublish
}

// ID returns the id of the subscription.
func (s *Subscription) ID() uint32 {
	return s.id
}

// Session returns the session that owns the subscription.
func (s *Subscription) Session() *Session {
	return s.session
}

// PublishingInterval returns the revised publishing interval in ms.
func (s *Subscription) PublishingInterval() float64 {
	s.RLock()
	defer s.RUnlock()
	return s.publishingInterval
}

// LifetimeCount returns the revised lifetime count.
func (s *Subscription) LifetimeCount() uint32 {
	s.RLock()
	defer s.RUnlock()
	return s.lifetimeCount
}

// MaxKeepAliveCount returns the revised keep-alive count.
func (s *Subscription) MaxKeepAliveCount() uint32 {
	s.RLock()
	defer s.RUnlock()
	return s.maxKeepAliveCount
}

// Modify revises the parameters and restarts the publishing timer.
func (s *Subscription) Modify(publishingInterval float64, lifetimeCount, maxKeepAliveCount, maxNotificationsPerPublish uint32, priority byte) {
	s.Lock()
	s.revise(publishingInterval, lifetimeCount, maxKeepAliveCount, maxNotificationsPerPublish)
	s.priority = priority
	s.lifetimeCounter = 0
	s.Unlock()
	select {
	case s.modified <- struct{}{}:
	default:
	}
}

// SetPublishingMode enables or disables the sending of notifications. Keep-alives are sent in either mode.
func (s *Subscription) SetPublishingMode(publishingEnabled bool) {
	s.Lock()
	defer s.Unlock()
	s.publishingEnabled = publishingEnabled
	s.lifetimeCounter = 0
}

// AppendItem adds the monitored item.
func (s *Subscription) AppendItem(item *MonitoredItem) {
	s.Lock()
	defer s.Unlock()
	s.items[item.id] = item
}

// FindItem returns the monitored item with the id.
func (s *Subscription) FindItem(id uint32) (*MonitoredItem, bool) {
	s.RLock()
	defer s.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// DeleteItem stops and removes the monitored item with the id.
func (s *Subscription) DeleteItem(id uint32) ua.StatusCode {
	s.Lock()
	item, ok := s.items[id]
	delete(s.items, id)
	s.Unlock()
	if !ok {
		return ua.BadMonitoredItemIDInvalid
	}
	item.Delete()
	return ua.Good
}

// eventItems returns the items monitoring an event notifier.
func (s *Subscription) eventItems() []*MonitoredItem {
	s.RLock()
	defer s.RUnlock()
	items := []*MonitoredItem{}
	for _, item := range s.items {
		if item.itemToMonitor.AttributeID == ua.AttributeIDEventNotifier {
			items = append(items, item)
		}
	}
	return items
}

// startPublishing runs the publishing loop until the subscription is stopped or the server closes.
func (s *Subscription) startPublishing() {
	go func() {
		ticker := time.NewTicker(time.Duration(s.PublishingInterval() * float64(time.Millisecond)))
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.onTick()
			case <-s.trigger:
				s.onPublishRequest()
			case <-s.modified:
				ticker.Reset(time.Duration(s.PublishingInterval() * float64(time.Millisecond)))
			case <-s.done:
				return
			case <-s.manager.server.closing:
				return
			}
		}
	}()
}

// stop ends the publishing loop and the monitored items.
func (s *Subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.Lock()
		items := make([]*MonitoredItem, 0, len(s.items))
		for _, item := range s.items {
			items = append(items, item)
		}
		s.items = map[uint32]*MonitoredItem{}
		s.Unlock()
		for _, item := range items {
			item.Delete()
		}
	})
}

// triggerPublish signals that the session queued a publish request.
func (s *Subscription) triggerPublish() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Subscription) onPublishRequest() {
	s.Lock()
	s.lifetimeCounter = 0
	late := s.late
	s.Unlock()
	if late {
		s.publish()
	}
}

// onTick is called once per publishing interval. The subscription publishes when notifications are
// available, when the keep-alive count is reached, or for the first message. Without a publish request the
// subscription is late, and expires when the lifetime count is reached.
func (s *Subscription) onTick() {
	s.Lock()
	if s.late || (s.publishingEnabled && s.notificationsAvailable()) || !s.firstMessageSent || s.keepAliveCounter+1 >= s.maxKeepAliveCount {
		s.Unlock()
		if !s.publish() {
			s.Lock()
			s.lifetimeCounter++
			if s.lifetimeCounter >= s.lifetimeCount {
				s.Unlock()
				s.expire()
				return
			}
			s.Unlock()
		}
		return
	}
	s.keepAliveCounter++
	s.Unlock()
}

// notificationsAvailable is called with the lock held.
func (s *Subscription) notificationsAvailable() bool {
	for _, item := range s.items {
		if item.notificationsAvailable() {
			return true
		}
	}
	return false
}

// publish answers a queued publish request with a notification message or a keep-alive.
// It returns false when the session has no publish request, leaving the subscription late.
func (s *Subscription) publish() bool {
	op, ok := s.session.removePublishRequest()
	if !ok {
		s.Lock()
		s.late = true
		s.Unlock()
		return false
	}
	s.Lock()
	now := time.Now()
	var msg ua.NotificationMessage
	more := false
	if s.publishingEnabled {
		var data []ua.ExtensionObject
		data, more = s.collectNotifications()
		if len(data) > 0 {
			s.seqNum++
			if s.seqNum == 0 {
				s.seqNum = 1
			}
			msg = ua.NotificationMessage{SequenceNumber: s.seqNum, PublishTime: now, NotificationData: data}
			s.retain(msg)
		}
	}
	if msg.NotificationData == nil {
		// keep-alive carries the next sequence number.
		next := s.seqNum + 1
		if next == 0 {
			next = 1
		}
		msg = ua.NotificationMessage{SequenceNumber: next, PublishTime: now}
	}
	s.firstMessageSent = true
	s.keepAliveCounter = 0
	s.lifetimeCounter = 0
	s.late = more
	res := &ua.PublishResponse{
		ResponseHeader:           ua.NewResponseHeader(now, op.req.RequestHeader.RequestHandle, ua.Good),
		SubscriptionID:           s.id,
		AvailableSequenceNumbers: s.availableSequenceNumbers(),
		MoreNotifications:        more,
		NotificationMessage:      msg,
		Results:                  op.results,
	}
	s.Unlock()
	if err := op.ch.Write(res, op.requestID); err != nil {
		s.logger.WithError(err).Debug("error writing publish response")
	}
	return true
}

// collectNotifications removes up to maxNotificationsPerPublish notifications from the items.
// Called with the lock held.
func (s *Subscription) collectNotifications() ([]ua.ExtensionObject, bool) {
	max := int(s.maxNotificationsPerPublish)
	dataChanges := []ua.MonitoredItemNotification{}
	events := []ua.EventFieldList{}
	more := false
	ids := make([]uint32, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		item := s.items[id]
		remaining := 0
		if max > 0 {
			remaining = max - len(dataChanges) - len(events)
			if remaining <= 0 {
				more = more || item.notificationsAvailable()
				continue
			}
		}
		ns, m := item.notifications(remaining)
		more = more || m
		item.RLock()
		handle := item.clientHandle
		item.RUnlock()
		for _, n := range ns {
			if n.fields != nil {
				events = append(events, ua.EventFieldList{ClientHandle: handle, EventFields: n.fields})
			} else {
				dataChanges = append(dataChanges, ua.MonitoredItemNotification{ClientHandle: handle, Value: n.value})
			}
		}
	}
	data := []ua.ExtensionObject{}
	if len(dataChanges) > 0 {
		data = append(data, ua.DataChangeNotification{MonitoredItems: dataChanges})
	}
	if len(events) > 0 {
		data = append(data, ua.EventNotificationList{Events: events})
	}
	return data, more
}

// retain keeps the message for Republish. Called with the lock held.
func (s *Subscription) retain(msg ua.NotificationMessage) {
	if s.retransmissionOrder.Len() >= maxRetransmissionMessages {
		delete(s.retransmissionQueue, s.retransmissionOrder.PopFront())
	}
	s.retransmissionQueue[msg.SequenceNumber] = msg
	s.retransmissionOrder.PushBack(msg.SequenceNumber)
}

// availableSequenceNumbers is called with the lock held.
func (s *Subscription) availableSequenceNumbers() []uint32 {
	nums := make([]uint32, 0, s.retransmissionOrder.Len())
	for i := 0; i < s.retransmissionOrder.Len(); i++ {
		nums = append(nums, s.retransmissionOrder.At(i))
	}
	return nums
}

// Acknowledge releases the retained message.
func (s *Subscription) Acknowledge(seq uint32) ua.StatusCode {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.retransmissionQueue[seq]; !ok {
		return ua.BadSequenceNumberUnknown
	}
	delete(s.retransmissionQueue, seq)
	for i, n := 0, s.retransmissionOrder.Len(); i < n; i++ {
		if x := s.retransmissionOrder.PopFront(); x != seq {
			s.retransmissionOrder.PushBack(x)
		}
	}
	return ua.Good
}

// Republish returns the retained message.
func (s *Subscription) Republish(seq uint32) (ua.NotificationMessage, ua.StatusCode) {
	s.Lock()
	defer s.Unlock()
	s.lifetimeCounter = 0
	msg, ok := s.retransmissionQueue[seq]
	if !ok {
		return ua.NotificationMessage{}, ua.BadMessageNotAvailable
	}
	return msg, ua.Good
}

// expire deletes the subscription and queues a status change for the session.
func (s *Subscription) expire() {
	s.logger.Info("subscription expired")
	s.Lock()
	next := s.seqNum + 1
	if next == 0 {
		next = 1
	}
	s.Unlock()
	s.session.addStatusChange(ua.PublishResponse{
		SubscriptionID: s.id,
		NotificationMessage: ua.NotificationMessage{
			SequenceNumber:   next,
			PublishTime:      time.Now(),
			NotificationData: []ua.ExtensionObject{ua.StatusChangeNotification{Status: ua.BadTimeout}},
		},
	})
	s.manager.Delete(s)
}

// createMonitoredItems creates the items in the subscription.
func (s *Subscription) createMonitoredItems(ctx context.Context, reqs []ua.MonitoredItemCreateRequest, timestampsToReturn ua.TimestampsToReturn) []ua.MonitoredItemCreateResult {
	results := make([]ua.MonitoredItemCreateResult, len(reqs))
	for i, req := range reqs {
		item, result := NewMonitoredItem(ctx, s, req, timestampsToReturn)
		if item != nil {
			s.AppendItem(item)
		}
		results[i] = result
	}
	return results
}
