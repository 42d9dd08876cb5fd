// Copyright 2021 Converter Systems LLC. All rights reserved.

package client

import (
	"context"
	"sync"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DataChangeHandler receives the data changes of a publish response. The slices are parallel.
type DataChangeHandler func(sub *Subscription, clientHandles []uint32, values []ua.DataValue)

// EventHandler receives the events of a publish response. The slices are parallel.
type EventHandler func(sub *Subscription, clientHandles []uint32, events [][]ua.Variant)

// SubscriptionOption is a functional option to be applied to a subscription.
type SubscriptionOption func(*Subscription)

// WithDataChangeHandler sets the callback for data changes.
func WithDataChangeHandler(f DataChangeHandler) SubscriptionOption {
	return func(s *Subscription) {
		s.onData = f
	}
}

// WithEventHandler sets the callback for events.
func WithEventHandler(f EventHandler) SubscriptionOption {
	return func(s *Subscription) {
		s.onEvent = f
	}
}

// Subscription is a handle to a subscription of the server. Its notifications are delivered to the
// handlers by the publish loop of the client.
type Subscription struct {
	client                    *Client
	id                        uint32
	revisedPublishingInterval float64
	revisedLifetimeCount      uint32
	revisedMaxKeepAliveCount  uint32
	onData                    DataChangeHandler
	onEvent                   EventHandler
	logger                    logrus.FieldLogger

	mu                 sync.Mutex
	items              map[uint32]ua.MonitoredItemCreateRequest
	keepAliveCount     uint64
	lastSequenceNumber uint32
	status             ua.StatusCode
	closed             bool
}

// NewSubscription creates a subscription on the server and starts the publish loop of the client.
func NewSubscription(ctx context.Context, c *Client, req *ua.CreateSubscriptionRequest, opts ...SubscriptionOption) (*Subscription, error) {
	res, err := c.CreateSubscription(ctx, req)
	if err != nil {
		return nil, err
	}
	s := &Subscription{
		client:                    c,
		id:                        res.SubscriptionID,
		revisedPublishingInterval: res.RevisedPublishingInterval,
		revisedLifetimeCount:      res.RevisedLifetimeCount,
		revisedMaxKeepAliveCount:  res.RevisedMaxKeepAliveCount,
		logger:                    c.logger.WithField("subscription_id", res.SubscriptionID),
		items:                     make(map[uint32]ua.MonitoredItemCreateRequest),
	}
	for _, opt := range opts {
		opt(s)
	}
	c.addSubscription(s)
	return s, nil
}

// ID returns the id of the subscription assigned by the server.
func (s *Subscription) ID() uint32 { return s.id }

// RevisedPublishingInterval returns the publishing interval in milliseconds.
func (s *Subscription) RevisedPublishingInterval() float64 { return s.revisedPublishingInterval }

// RevisedLifetimeCount returns the lifetime count.
func (s *Subscription) RevisedLifetimeCount() uint32 { return s.revisedLifetimeCount }

// RevisedMaxKeepAliveCount returns the keep-alive count.
func (s *Subscription) RevisedMaxKeepAliveCount() uint32 { return s.revisedMaxKeepAliveCount }

// KeepAliveCount returns the number of keep-alive messages received.
func (s *Subscription) KeepAliveCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keepAliveCount
}

// Closed returns true after the server reported a status change, or the subscription was deleted.
func (s *Subscription) Closed() (bool, ua.StatusCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed, s.status
}

// MonitoredItems returns the ids of the monitored items created through this handle.
func (s *Subscription) MonitoredItems() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint32, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	return ids
}

// CreateMonitoredItems creates monitored items on the subscription.
func (s *Subscription) CreateMonitoredItems(ctx context.Context, ts ua.TimestampsToReturn, items ...ua.MonitoredItemCreateRequest) (*ua.CreateMonitoredItemsResponse, error) {
	res, err := s.client.CreateMonitoredItems(ctx, &ua.CreateMonitoredItemsRequest{
		SubscriptionID:     s.id,
		TimestampsToReturn: ts,
		ItemsToCreate:      items,
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	for i, r := range res.Results {
		if r.StatusCode.IsGood() && i < len(items) {
			s.items[r.MonitoredItemID] = items[i]
		}
	}
	s.mu.Unlock()
	return res, nil
}

// DeleteMonitoredItems deletes monitored items of the subscription.
func (s *Subscription) DeleteMonitoredItems(ctx context.Context, ids ...uint32) (*ua.DeleteMonitoredItemsResponse, error) {
	res, err := s.client.DeleteMonitoredItems(ctx, &ua.DeleteMonitoredItemsRequest{
		SubscriptionID:   s.id,
		MonitoredItemIDs: ids,
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	for _, id := range ids {
		delete(s.items, id)
	}
	s.mu.Unlock()
	return res, nil
}

// SetPublishingMode enables or disables publishing of the subscription.
func (s *Subscription) SetPublishingMode(ctx context.Context, enabled bool) error {
	res, err := s.client.SetPublishingMode(ctx, &ua.SetPublishingModeRequest{
		PublishingEnabled: enabled,
		SubscriptionIDs:   []uint32{s.id},
	})
	if err != nil {
		return err
	}
	if len(res.Results) == 1 && res.Results[0].IsBad() {
		return res.Results[0]
	}
	return nil
}

// Delete deletes the subscription on the server.
func (s *Subscription) Delete(ctx context.Context) error {
	res, err := s.client.DeleteSubscriptions(ctx, &ua.DeleteSubscriptionsRequest{
		SubscriptionIDs: []uint32{s.id},
	})
	if err != nil {
		return err
	}
	if len(res.Results) == 1 && res.Results[0].IsBad() {
		return res.Results[0]
	}
	return nil
}

func (s *Subscription) close(status ua.StatusCode) {
	s.mu.Lock()
	s.closed = true
	s.status = status
	s.mu.Unlock()
}

// expects returns the sequence numbers missed before seq.
func (s *Subscription) expects(seq uint32) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []uint32
	if s.lastSequenceNumber != 0 && seq > s.lastSequenceNumber+1 {
		for n := s.lastSequenceNumber + 1; n < seq; n++ {
			missing = append(missing, n)
		}
	}
	if seq > s.lastSequenceNumber {
		s.lastSequenceNumber = seq
	}
	return missing
}

// deliver calls the handlers with the notifications of the message.
func (s *Subscription) deliver(msg ua.NotificationMessage) {
	for _, data := range msg.NotificationData {
		switch n := data.(type) {
		case ua.DataChangeNotification:
			if s.onData == nil {
				continue
			}
			handles := make([]uint32, len(n.MonitoredItems))
			values := make([]ua.DataValue, len(n.MonitoredItems))
			for i, item := range n.MonitoredItems {
				handles[i] = item.ClientHandle
				values[i] = item.Value
			}
			s.onData(s, handles, values)
		case ua.EventNotificationList:
			if s.onEvent == nil {
				continue
			}
			handles := make([]uint32, len(n.Events))
			events := make([][]ua.Variant, len(n.Events))
			for i, e := range n.Events {
				handles[i] = e.ClientHandle
				events[i] = e.EventFields
			}
			s.onEvent(s, handles, events)
		case ua.StatusChangeNotification:
			s.logger.WithField("status", n.Status).Info("subscription status changed")
			s.close(n.Status)
			s.client.removeSubscription(s.id)
		default:
			s.logger.Warnf("dropped notification %T", data)
		}
	}
}

func (ch *Client) addSubscription(s *Subscription) {
	ch.subsLock.Lock()
	defer ch.subsLock.Unlock()
	ch.subscriptions[s.id] = s
	if ch.publishing || ch.closed.Load() {
		return
	}
	ch.publishing = true
	go ch.publishLoop()
}

func (ch *Client) removeSubscription(id uint32) {
	ch.subsLock.Lock()
	s, ok := ch.subscriptions[id]
	delete(ch.subscriptions, id)
	ch.subsLock.Unlock()
	if ok {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	}
}

func (ch *Client) findSubscription(id uint32) *Subscription {
	ch.subsLock.Lock()
	defer ch.subsLock.Unlock()
	return ch.subscriptions[id]
}

func (ch *Client) subscriptionCount() int {
	ch.subsLock.Lock()
	defer ch.subsLock.Unlock()
	return len(ch.subscriptions)
}

func (ch *Client) stopPublishing() {
	ch.subsLock.Lock()
	defer ch.subsLock.Unlock()
	select {
	case <-ch.stopPublish:
	default:
		close(ch.stopPublish)
	}
}

// publishLoop keeps Publish requests outstanding while subscriptions exist.
func (ch *Client) publishLoop() {
	released := false
	defer func() {
		if !released {
			ch.subsLock.Lock()
			ch.publishing = false
			ch.subsLock.Unlock()
		}
	}()
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	var acks []ua.SubscriptionAcknowledgement
	outstanding := 0
	for {
		if ch.closed.Load() {
			return
		}
		if outstanding == 0 && ch.donePublishing() {
			released = true
			return
		}
		for ch.subscriptionCount() > 0 && outstanding < ch.publishDepth {
			req := &ua.PublishRequest{SubscriptionAcknowledgements: acks}
			if err := ch.channel.sendPublish(context.Background(), req, ch.publishTimeoutHint()); err != nil {
				if ch.closed.Load() || ch.channel.Status() == statusClosed {
					return
				}
				ch.logger.WithError(err).Warn("error sending publish request")
				break
			}
			acks = nil
			outstanding++
		}
		if outstanding == 0 {
			if !ch.sleep(b.Duration()) {
				return
			}
			continue
		}
		r, ok := ch.channel.nextPublishResult(ch.stopPublish)
		if !ok {
			return
		}
		outstanding--
		if r.err != nil {
			switch errors.Cause(r.err) {
			case ua.BadNoSubscription, ua.BadTooManyPublishRequests:
				if !ch.sleep(b.Duration()) {
					return
				}
			case ua.BadTimeout, ua.BadRequestTimeout:
			default:
				if ch.channel.Status() == statusClosed {
					return
				}
				ch.logger.WithError(r.err).Warn("error publishing")
				if !ch.sleep(b.Duration()) {
					return
				}
			}
			continue
		}
		b.Reset()
		acks = append(acks, ch.onPublishResponse(r.res)...)
	}
}

// donePublishing marks the publish loop stopped if no subscriptions remain.
func (ch *Client) donePublishing() bool {
	ch.subsLock.Lock()
	defer ch.subsLock.Unlock()
	if len(ch.subscriptions) > 0 {
		return false
	}
	ch.publishing = false
	return true
}

// publishTimeoutHint tells the server how long a Publish may be held.
func (ch *Client) publishTimeoutHint() uint32 {
	return uint32(ch.timeout / time.Millisecond)
}

func (ch *Client) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ch.stopPublish:
		return false
	}
}

// onPublishResponse delivers the notification message and returns the acknowledgements for the next Publish.
func (ch *Client) onPublishResponse(res *ua.PublishResponse) []ua.SubscriptionAcknowledgement {
	s := ch.findSubscription(res.SubscriptionID)
	if s == nil {
		return nil
	}
	msg := res.NotificationMessage
	if len(msg.NotificationData) == 0 {
		s.mu.Lock()
		s.keepAliveCount++
		s.mu.Unlock()
		return nil
	}
	var acks []ua.SubscriptionAcknowledgement
	for _, seq := range s.expects(msg.SequenceNumber) {
		ctx, cancel := context.WithTimeout(context.Background(), ch.timeout)
		rep, err := ch.Republish(ctx, &ua.RepublishRequest{SubscriptionID: s.id, RetransmitSequenceNumber: seq})
		cancel()
		if err != nil {
			s.logger.WithError(err).Warnf("missed notification message %d", seq)
			continue
		}
		s.deliver(rep.NotificationMessage)
		acks = append(acks, ua.SubscriptionAcknowledgement{SubscriptionID: s.id, SequenceNumber: seq})
	}
	s.deliver(msg)
	return append(acks, ua.SubscriptionAcknowledgement{SubscriptionID: s.id, SequenceNumber: msg.SequenceNumber})
}
