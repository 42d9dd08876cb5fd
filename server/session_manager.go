// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"sync"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/google/uuid"
)

// SessionManager manages the sessions for a server.
type SessionManager struct {
	sync.RWMutex
	server          *Server
	sessionsByToken map[ua.NodeID]*Session
}

// NewSessionManager instantiates a new SessionManager.
func NewSessionManager(server *Server) *SessionManager {
	m := &SessionManager{server: server, sessionsByToken: make(map[ua.NodeID]*Session)}
	go func(m *SessionManager) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.checkForExpiredSessions()
			case <-m.server.closing:
				return
			}
		}
	}(m)
	return m
}

// newSessionIDs returns a public session id and a secret authentication token.
func newSessionIDs() (ua.NodeID, ua.NodeID) {
	return ua.NewNodeIDGUID(1, uuid.New()), ua.NewNodeIDGUID(0, uuid.New())
}

// Get a session from the server by authenticationToken.
func (m *SessionManager) Get(authenticationToken ua.NodeID) (*Session, bool) {
	if authenticationToken == nil {
		return nil, false
	}
	m.RLock()
	defer m.RUnlock()
	s, ok := m.sessionsByToken[authenticationToken]
	if !ok {
		return nil, false
	}
	s.SetLastAccess(time.Now())
	return s, ok
}

// Add a session to the server.
func (m *SessionManager) Add(s *Session) error {
	m.Lock()
	defer m.Unlock()
	if maxSessionCount := m.server.maxSessionCount; maxSessionCount > 0 && len(m.sessionsByToken) >= int(maxSessionCount) {
		return ua.BadTooManySessions
	}
	m.sessionsByToken[s.authenticationToken] = s
	return nil
}

// Delete the session from the server, together with its subscriptions.
func (m *SessionManager) Delete(s *Session) {
	m.Lock()
	delete(m.sessionsByToken, s.AuthenticationToken())
	m.Unlock()
	m.server.subscriptionManager.deleteSessionSubscriptions(s)
	s.flushPublishRequests(ua.BadSessionClosed)
}

// Len returns the number of sessions.
func (m *SessionManager) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.sessionsByToken)
}

func (m *SessionManager) checkForExpiredSessions() {
	expired := []*Session{}
	m.RLock()
	for _, s := range m.sessionsByToken {
		if s.IsExpired() {
			expired = append(expired, s)
		}
	}
	m.RUnlock()
	for _, s := range expired {
		m.server.logger.WithField("session_id", s.SessionID()).Info("session expired")
		m.Delete(s)
	}
}

// detachChannel unbinds the sessions of a closed channel. The sessions remain until they expire
// or are activated on another channel.
func (m *SessionManager) detachChannel(ch *serverSecureChannel) {
	m.RLock()
	defer m.RUnlock()
	for _, s := range m.sessionsByToken {
		s.Lock()
		if s.channel == ch {
			s.channel = nil
		}
		s.Unlock()
	}
}
