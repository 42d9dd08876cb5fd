// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"sync"
	"sync/atomic"

	"github.com/awcullen/uastack/ua"
)

// SubscriptionManager manages the subscriptions for a server.
type SubscriptionManager struct {
	sync.RWMutex
	server            *Server
	subscriptionsByID map[uint32]*Subscription
	lastID            atomic.Uint32
}

// NewSubscriptionManager instantiates a new SubscriptionManager.
func NewSubscriptionManager(server *Server) *SubscriptionManager {
	return &SubscriptionManager{server: server, subscriptionsByID: make(map[uint32]*Subscription)}
}

// nextSubscriptionID returns an id that is not zero.
func (m *SubscriptionManager) nextSubscriptionID() uint32 {
	for {
		if id := m.lastID.Add(1); id != 0 {
			return id
		}
	}
}

// Get a subscription from the server.
func (m *SubscriptionManager) Get(id uint32) (*Subscription, bool) {
	m.RLock()
	defer m.RUnlock()
	s, ok := m.subscriptionsByID[id]
	return s, ok
}

// Add a subscription to the server.
func (m *SubscriptionManager) Add(s *Subscription) error {
	m.Lock()
	defer m.Unlock()
	if max := m.server.maxSubscriptionCount; max > 0 && len(m.subscriptionsByID) >= int(max) {
		return ua.BadTooManySubscriptions
	}
	m.subscriptionsByID[s.id] = s
	return nil
}

// Delete the subscription from the server, stopping its publishing loop. When the session has no more
// subscriptions, its queued publish requests are answered with BadNoSubscription.
func (m *SubscriptionManager) Delete(s *Subscription) {
	m.Lock()
	delete(m.subscriptionsByID, s.id)
	m.Unlock()
	s.stop()
	if len(m.bySession(s.session)) == 0 {
		s.session.flushPublishRequests(ua.BadNoSubscription)
	}
}

// Len returns the number of subscriptions.
func (m *SubscriptionManager) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.subscriptionsByID)
}

// bySession returns the subscriptions of the session.
func (m *SubscriptionManager) bySession(session *Session) []*Subscription {
	m.RLock()
	defer m.RUnlock()
	subs := []*Subscription{}
	for _, s := range m.subscriptionsByID {
		if s.session == session {
			subs = append(subs, s)
		}
	}
	return subs
}

// deleteSessionSubscriptions deletes the subscriptions of a closed session.
func (m *SubscriptionManager) deleteSessionSubscriptions(session *Session) {
	for _, s := range m.bySession(session) {
		m.Lock()
		delete(m.subscriptionsByID, s.id)
		m.Unlock()
		s.stop()
	}
}

// onEvent delivers the event to the items monitoring the event notifier of the source node
// or of the Server object.
func (m *SubscriptionManager) onEvent(source ua.NodeID, ev *ua.BaseEvent) {
	m.RLock()
	subs := make([]*Subscription, 0, len(m.subscriptionsByID))
	for _, s := range m.subscriptionsByID {
		subs = append(subs, s)
	}
	m.RUnlock()
	for _, s := range subs {
		for _, item := range s.eventItems() {
			if n := item.itemToMonitor.NodeID; n == source || n == ua.ObjectIDServer {
				item.onEvent(ev)
			}
		}
	}
}

// EmitEvent reports the event to the subscribers of the source node and of the Server object.
func (srv *Server) EmitEvent(source ua.NodeID, ev *ua.BaseEvent) {
	srv.subscriptionManager.onEvent(source, ev)
}
