// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/gammazero/deque"
)

const (
	// the number of publish requests a session may queue.
	maxPublishRequests = 64
)

// publishOp is a publish request waiting for a notification message.
type publishOp struct {
	ch        *serverSecureChannel
	requestID uint32
	req       *ua.PublishRequest
	results   []ua.StatusCode
	received  time.Time
}

// expired returns true if the timeout hint of the request has passed.
func (op *publishOp) expired(now time.Time) bool {
	hint := op.req.RequestHeader.TimeoutHint
	if hint == 0 {
		return false
	}
	return now.After(op.received.Add(time.Duration(hint) * time.Millisecond))
}

type browseCP struct {
	data []ua.ReferenceDescription
	max  int
}

// Session is a secure, authenticated context between a client and the server.
type Session struct {
	sync.RWMutex
	server                      *Server
	sessionID                   ua.NodeID
	sessionName                 string
	authenticationToken         ua.NodeID
	timeout                     time.Duration
	userIdentity                any
	sessionNonce                ua.ByteString
	lastAccess                  time.Time
	activated                   bool
	channel                     *serverSecureChannel
	clientDescription           ua.ApplicationDescription
	clientCertificate           []byte
	endpointURL                 string
	maxResponseMessageSize      uint32
	localeIDs                   []string
	timeCreated                 time.Time
	publishRequests             deque.Deque[*publishOp]
	statusChanges               deque.Deque[ua.PublishResponse]
	browseCPs                   map[uint32]browseCP
	lastBrowseCP                uint32
	maxBrowseContinuationPoints int
}

// NewSession returns a session that is not yet activated.
func NewSession(server *Server, sessionID ua.NodeID, sessionName string, authenticationToken ua.NodeID, sessionNonce ua.ByteString, timeout time.Duration, clientDescription ua.ApplicationDescription, clientCertificate []byte, endpointURL string, maxResponseMessageSize uint32) *Session {
	return &Session{
		server:                      server,
		sessionID:                   sessionID,
		sessionName:                 sessionName,
		authenticationToken:         authenticationToken,
		timeout:                     timeout,
		sessionNonce:                sessionNonce,
		lastAccess:                  time.Now(),
		clientDescription:           clientDescription,
		clientCertificate:           clientCertificate,
		endpointURL:                 endpointURL,
		maxResponseMessageSize:      maxResponseMessageSize,
		localeIDs:                   []string{"en-US"},
		timeCreated:                 time.Now(),
		browseCPs:                   make(map[uint32]browseCP, 16),
		maxBrowseContinuationPoints: int(server.ServerCapabilities().MaxBrowseContinuationPoints),
	}
}

// IsExpired returns true if the session has not been used within its timeout.
func (s *Session) IsExpired() bool {
	s.RLock()
	defer s.RUnlock()
	return time.Now().After(s.lastAccess.Add(s.timeout))
}

// SessionID gets the public id of the session.
func (s *Session) SessionID() ua.NodeID {
	s.RLock()
	defer s.RUnlock()
	return s.sessionID
}

// SessionName gets the name given by the client.
func (s *Session) SessionName() string {
	s.RLock()
	defer s.RUnlock()
	return s.sessionName
}

// AuthenticationToken gets the secret id of the session.
func (s *Session) AuthenticationToken() ua.NodeID {
	s.RLock()
	defer s.RUnlock()
	return s.authenticationToken
}

// Timeout gets the revised session timeout.
func (s *Session) Timeout() time.Duration {
	s.RLock()
	defer s.RUnlock()
	return s.timeout
}

// UserIdentity gets the identity of the user, either AnonymousIdentity or UserNameIdentity.
func (s *Session) UserIdentity() any {
	s.RLock()
	defer s.RUnlock()
	return s.userIdentity
}

// SessionNonce gets the nonce for the next ActivateSession.
func (s *Session) SessionNonce() ua.ByteString {
	s.RLock()
	defer s.RUnlock()
	return s.sessionNonce
}

// SetLastAccess records the use of the session.
func (s *Session) SetLastAccess(value time.Time) {
	s.Lock()
	defer s.Unlock()
	s.lastAccess = value
}

// Activated returns true after a successful ActivateSession.
func (s *Session) Activated() bool {
	s.RLock()
	defer s.RUnlock()
	return s.activated
}

// activate binds the session to the channel with the user identity, and stores the next nonce.
func (s *Session) activate(ch *serverSecureChannel, userIdentity any, nonce ua.ByteString, localeIDs []string) {
	s.Lock()
	defer s.Unlock()
	s.activated = true
	s.channel = ch
	s.userIdentity = userIdentity
	s.sessionNonce = nonce
	if len(localeIDs) > 0 {
		s.localeIDs = localeIDs
	}
}

// Channel gets the secure channel the session is bound to.
func (s *Session) Channel() *serverSecureChannel {
	s.RLock()
	defer s.RUnlock()
	return s.channel
}

// addPublishRequest queues a publish request. When the queue is full, the oldest request is answered
// with BadTooManyPublishRequests.
func (s *Session) addPublishRequest(op *publishOp) {
	s.Lock()
	var dropped *publishOp
	if s.publishRequests.Len() >= maxPublishRequests {
		dropped = s.publishRequests.PopFront()
	}
	s.publishRequests.PushBack(op)
	s.Unlock()
	if dropped != nil {
		dropped.ch.Write(&ua.ServiceFault{
			ResponseHeader: ua.NewResponseHeader(time.Now(), dropped.req.RequestHeader.RequestHandle, ua.BadTooManyPublishRequests),
		}, dropped.requestID)
	}
}

// removePublishRequest returns the oldest publish request that has not expired. Expired requests
// are answered with BadTimeout.
func (s *Session) removePublishRequest() (*publishOp, bool) {
	now := time.Now()
	for {
		s.Lock()
		if s.publishRequests.Len() == 0 {
			s.Unlock()
			return nil, false
		}
		op := s.publishRequests.PopFront()
		s.Unlock()
		if op.ch.Closed() {
			continue
		}
		if op.expired(now) {
			op.ch.Write(&ua.ServiceFault{
				ResponseHeader: ua.NewResponseHeader(now, op.req.RequestHeader.RequestHandle, ua.BadTimeout),
			}, op.requestID)
			continue
		}
		return op, true
	}
}

// flushPublishRequests answers every queued publish request with the status.
func (s *Session) flushPublishRequests(status ua.StatusCode) {
	s.Lock()
	ops := make([]*publishOp, 0, s.publishRequests.Len())
	for s.publishRequests.Len() > 0 {
		ops = append(ops, s.publishRequests.PopFront())
	}
	s.Unlock()
	for _, op := range ops {
		op.ch.Write(&ua.ServiceFault{
			ResponseHeader: ua.NewResponseHeader(time.Now(), op.req.RequestHeader.RequestHandle, status),
		}, op.requestID)
	}
}

// addStatusChange stores a status change of a closed subscription until the next publish request.
func (s *Session) addStatusChange(res ua.PublishResponse) {
	s.Lock()
	defer s.Unlock()
	s.statusChanges.PushBack(res)
}

// removeStatusChange returns the oldest stored status change.
func (s *Session) removeStatusChange() (ua.PublishResponse, bool) {
	s.Lock()
	defer s.Unlock()
	if s.statusChanges.Len() == 0 {
		return ua.PublishResponse{}, false
	}
	return s.statusChanges.PopFront(), true
}

func (s *Session) addBrowseContinuationPoint(data []ua.ReferenceDescription, max int) ([]byte, error) {
	s.Lock()
	defer s.Unlock()
	if s.maxBrowseContinuationPoints > 0 && len(s.browseCPs) >= s.maxBrowseContinuationPoints {
		return nil, ua.BadNoContinuationPoints
	}
	s.lastBrowseCP++
	id := s.lastBrowseCP
	s.browseCPs[id] = browseCP{data, max}
	cp := make([]byte, 4)
	binary.LittleEndian.PutUint32(cp, id)
	return cp, nil
}

func (s *Session) removeBrowseContinuationPoint(cp []byte) ([]ua.ReferenceDescription, int, bool) {
	if len(cp) != 4 {
		return nil, 0, false
	}
	s.Lock()
	defer s.Unlock()
	id := binary.LittleEndian.Uint32(cp)
	x, ok := s.browseCPs[id]
	if !ok {
		return nil, 0, false
	}
	delete(s.browseCPs, id)
	return x.data, x.max, true
}
