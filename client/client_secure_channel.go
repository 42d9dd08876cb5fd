// Copyright 2021 Converter Systems LLC. All rights reserved.

package client

import (
	"context"
	"crypto/x509"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/awcullen/uastack/uasc"
	"github.com/gammazero/deque"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// defaultTimeout is the default time to wait for a response.
	defaultTimeout = 15 * time.Second
	// defaultTokenRequestedLifetime is the number of milliseconds before a security token is expired. (60 min)
	defaultTokenRequestedLifetime uint32 = 3600000
	// the default number of milliseconds that a session may be unused before being closed by the server. (2 min)
	defaultSessionTimeout float64 = 120 * 1000
	// the default number of outstanding publish requests.
	defaultPublishDepth = 2
	// the smallest buffer size allowed by the protocol.
	minBufferSize = uasc.MinBufferSize
	// the length of the session nonce in bytes.
	nonceLength = 32
	// the fraction of the token lifetime after which the token is renewed.
	renewFraction = 0.70
)

// channelStatus is the state of a secure channel.
type channelStatus int32

const (
	statusClosed channelStatus = iota
	statusOpening
	statusEstablished
	statusRenewing
)

func (s channelStatus) String() string {
	switch s {
	case statusClosed:
		return "Closed"
	case statusOpening:
		return "Opening"
	case statusEstablished:
		return "Established"
	case statusRenewing:
		return "Renewing"
	default:
		return "Unknown"
	}
}

// pendingKey correlates a response with a waiter. Frames without a request handle use the handle 0.
type pendingKey struct {
	messageType uint32
	handle      uint32
}

var (
	ackKey  = pendingKey{uasc.MessageTypeAck, 0}
	openKey = pendingKey{uasc.MessageTypeOpenFinal, 0}
)

type result struct {
	msg any
	err error
}

// waiter is signaled once with the response of a request.
type waiter struct {
	requestID uint32
	nonce     []byte
	done      chan result
}

// publishResult is a PublishResponse, or the failure of a Publish request.
type publishResult struct {
	res *ua.PublishResponse
	err error
}

// clientSecureChannel implements a secure channel for binary data over Tcp.
type clientSecureChannel struct {
	logger        logrus.FieldLogger
	endpointURL   string
	timeout       time.Duration
	tokenLifetime uint32
	localLimits   uasc.TransportLimits
	validation    ua.CertificateValidationOptions
	registry      *ua.TypeRegistry
	state         *uasc.ChannelState
	writer        *uasc.ChunkWriter
	reader        *uasc.ChunkReader
	receiver      *uasc.Receiver
	conn          net.Conn

	mu         sync.Mutex
	status     channelStatus
	authToken  ua.NodeID
	ec         ua.EncodingContext
	errCode    ua.StatusCode
	renewTimer *time.Timer

	// sendSem is the send-serialization lock. gate is available while no renew is in flight.
	sendSem chan struct{}
	gate    chan struct{}

	pendingLock  sync.Mutex
	pending      map[pendingKey]*waiter
	order        deque.Deque[pendingKey]
	publishes    map[uint32]struct{}
	publishQueue deque.Deque[publishResult]
	publishReady chan struct{}
	stopped      bool
	done         chan struct{}

	requestHandle atomic.Uint32
	requestID     atomic.Uint32
	closing       atomic.Bool
}

// newClientSecureChannel initializes a new instance of the secure channel.
func newClientSecureChannel(
	endpointURL string,
	policyURI string,
	mode ua.MessageSecurityMode,
	provider ua.CertificateProvider,
	remoteCertificate []byte,
	limits uasc.TransportLimits,
	validation ua.CertificateValidationOptions,
	timeout time.Duration,
	tokenLifetime uint32,
	logger logrus.FieldLogger,
) (*clientSecureChannel, error) {
	policy, err := ua.NewSecurityPolicy(policyURI)
	if err != nil {
		return nil, err
	}
	if !ua.IsSecure(policy) {
		provider = nil
		remoteCertificate = nil
	}
	state, err := uasc.NewChannelState(policy, mode, provider, remoteCertificate)
	if err != nil {
		return nil, err
	}
	state.SetLimits(limits)
	registry := ua.NewStandardTypeRegistry()
	return &clientSecureChannel{
		logger:        logger.WithField("remote", endpointURL),
		endpointURL:   endpointURL,
		timeout:       timeout,
		tokenLifetime: tokenLifetime,
		localLimits:   limits,
		validation:    validation,
		registry:      registry,
		state:         state,
		writer:        uasc.NewChunkWriter(state),
		reader:        uasc.NewChunkReader(state),
		ec:            ua.NewEncodingContextWith(nil, nil, registry),
		sendSem:       make(chan struct{}, 1),
		gate:          make(chan struct{}, 1),
		pending:       make(map[pendingKey]*waiter),
		publishes:     make(map[uint32]struct{}),
		publishReady:  make(chan struct{}, 1),
		done:          make(chan struct{}),
	}, nil
}

// EndpointURL gets the EndpointURL of the server.
func (ch *clientSecureChannel) EndpointURL() string {
	return ch.endpointURL
}

// Limits returns the negotiated transport limits.
func (ch *clientSecureChannel) Limits() uasc.TransportLimits {
	return ch.state.Limits()
}

// SetAuthenticationToken sets the token sent in the header of each request.
func (ch *clientSecureChannel) SetAuthenticationToken(value ua.NodeID) {
	ch.mu.Lock()
	ch.authToken = value
	ch.mu.Unlock()
}

// SetNamespaceURIs sets the namespace and server tables used to encode and decode messages.
func (ch *clientSecureChannel) SetNamespaceURIs(namespaceURIs, serverURIs []string) {
	ch.mu.Lock()
	ch.ec = ua.NewEncodingContextWith(namespaceURIs, serverURIs, ch.registry)
	ch.mu.Unlock()
}

// NamespaceURIs returns the namespace table of the server.
func (ch *clientSecureChannel) NamespaceURIs() []string {
	return ch.encodingContext().NamespaceURIs()
}

func (ch *clientSecureChannel) encodingContext() ua.EncodingContext {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.ec
}

func (ch *clientSecureChannel) setStatus(s channelStatus) {
	ch.mu.Lock()
	if ch.status != s {
		ch.logger.WithField("channel_id", ch.state.ChannelID()).Debugf("channel %s", s)
	}
	ch.status = s
	ch.mu.Unlock()
}

// Status returns the state of the channel.
func (ch *clientSecureChannel) Status() channelStatus {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.status
}

// fail records the first failure of the channel.
func (ch *clientSecureChannel) fail(err error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.errCode != ua.Good {
		return
	}
	if code, ok := errors.Cause(err).(ua.StatusCode); ok && code.IsBad() {
		ch.errCode = code
		return
	}
	ch.errCode = ua.BadSecureChannelClosed
}

// stickyError returns the failure that stopped the channel.
func (ch *clientSecureChannel) stickyError() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.errCode == ua.Good {
		return ua.BadSecureChannelClosed
	}
	return ch.errCode
}

// Open connects to the server, exchanges Hello and Acknowledge, and issues the first security token.
func (ch *clientSecureChannel) Open(ctx context.Context) error {
	remoteURL, err := url.Parse(ch.endpointURL)
	if err != nil || remoteURL.Host == "" {
		return ua.BadTCPEndpointURLInvalid
	}
	if cert := ch.state.RemoteCertificate(); len(cert) > 0 {
		opts := ch.validation
		opts.Hostname = remoteURL.Hostname()
		if err := ua.ValidateCertificate(cert, x509.ExtKeyUsageServerAuth, opts); err != nil {
			return err
		}
	}

	ch.setStatus(statusOpening)
	d := net.Dialer{Timeout: ch.timeout}
	conn, err := d.DialContext(ctx, "tcp", remoteURL.Host)
	if err != nil {
		ch.setStatus(statusClosed)
		return errors.Wrap(ua.BadConnectionRejected, err.Error())
	}
	ch.conn = conn
	ch.receiver = uasc.NewReceiver(conn, ch.localLimits.ReceiveBufferSize)
	go ch.receiveLoop()

	if err := ch.hello(ctx); err != nil {
		ch.abort(err)
		return err
	}
	if err := ch.acquire(ctx, ch.deadline(ctx)); err != nil {
		ch.abort(err)
		return err
	}
	err = ch.openToken(ctx, ua.SecurityTokenRequestTypeIssue)
	ch.release()
	if err != nil {
		ch.abort(err)
		return err
	}
	ch.logger.WithFields(logrus.Fields{
		"channel_id": ch.state.ChannelID(),
		"token_id":   ch.state.TokenID(),
		"policy":     ch.state.SecurityPolicy().PolicyURI(),
		"mode":       ch.state.SecurityMode(),
	}).Info("secure channel opened")
	return nil
}

// hello sends the Hello frame and waits for the Acknowledge.
func (ch *clientSecureChannel) hello(ctx context.Context) error {
	w, err := ch.register(ackKey, 0, nil)
	if err != nil {
		return err
	}
	hel := &uasc.Hello{
		ProtocolVersion:   uasc.ProtocolVersion,
		ReceiveBufferSize: ch.localLimits.ReceiveBufferSize,
		SendBufferSize:    ch.localLimits.SendBufferSize,
		MaxMessageSize:    ch.localLimits.MaxMessageSize,
		MaxChunkCount:     ch.localLimits.MaxChunkCount,
		EndpointURL:       ch.endpointURL,
	}
	if _, err := ch.conn.Write(hel.Encode()); err != nil {
		ch.unregister(ackKey)
		return errors.Wrap(ua.BadConnectionClosed, err.Error())
	}
	r, err := ch.await(ctx, ackKey, w, ch.deadline(ctx))
	if err != nil {
		return err
	}
	limits := r.(uasc.TransportLimits)
	ch.logger.WithFields(logrus.Fields{
		"receive_buffer_size": limits.ReceiveBufferSize,
		"send_buffer_size":    limits.SendBufferSize,
		"max_message_size":    limits.MaxMessageSize,
		"max_chunk_count":     limits.MaxChunkCount,
	}).Debug("acknowledged")
	return nil
}

// openToken sends an OpenSecureChannel request and waits until the receive loop installed the token.
// The caller holds the send lock.
func (ch *clientSecureChannel) openToken(ctx context.Context, requestType ua.SecurityTokenRequestType) error {
	policy := ch.state.SecurityPolicy()
	nonce, err := ua.RandomNonce(policy.NonceSize())
	if err != nil {
		return err
	}
	req := &ua.OpenSecureChannelRequest{
		ClientProtocolVersion: uasc.ProtocolVersion,
		RequestType:           requestType,
		SecurityMode:          ch.state.SecurityMode(),
		ClientNonce:           ua.ByteString(nonce),
		RequestedLifetime:     ch.tokenLifetime,
	}
	deadline := ch.deadline(ctx)
	ch.stamp(req.Header(), deadline, false)
	w, err := ch.register(openKey, 0, nonce)
	if err != nil {
		return err
	}
	requestID, err := ch.write(uasc.MessageTypeOpenFinal, req)
	if err != nil {
		ch.unregister(openKey)
		return err
	}
	w.requestID = requestID
	if _, err := ch.await(ctx, openKey, w, deadline); err != nil {
		return err
	}
	return nil
}

// renew renews the security token. Ordinary traffic waits until the new token is installed.
func (ch *clientSecureChannel) renew(ctx context.Context) error {
	deadline := ch.deadline(ctx)
	if err := ch.acquire(ctx, deadline); err != nil {
		return err
	}
	defer ch.release()
	select {
	case <-ch.gate:
	case <-ch.done:
		return ch.stickyError()
	}
	ch.setStatus(statusRenewing)
	if err := ch.openToken(ctx, ua.SecurityTokenRequestTypeRenew); err != nil {
		return err
	}
	ch.logger.WithFields(logrus.Fields{
		"channel_id": ch.state.ChannelID(),
		"token_id":   ch.state.TokenID(),
	}).Info("security token renewed")
	return nil
}

// startRenewalTimer schedules the renewal of the token at 70% of its lifetime.
func (ch *clientSecureChannel) startRenewalTimer() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.renewTimer != nil {
		ch.renewTimer.Stop()
	}
	ch.renewTimer = time.AfterFunc(time.Until(ch.state.RenewAt(renewFraction)), func() {
		if ch.closing.Load() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), ch.timeout)
		defer cancel()
		if err := ch.renew(ctx); err != nil {
			ch.logger.WithError(err).Warn("error renewing security token")
			ch.abort(err)
			return
		}
		ch.startRenewalTimer()
	})
}

func (ch *clientSecureChannel) stopRenewalTimer() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.renewTimer != nil {
		ch.renewTimer.Stop()
		ch.renewTimer = nil
	}
}

// Close sends a CloseSecureChannel request and closes the connection. It does not wait for a reply.
func (ch *clientSecureChannel) Close(ctx context.Context) error {
	if !ch.closing.CompareAndSwap(false, true) {
		return nil
	}
	ch.stopRenewalTimer()
	var err error
	if ch.conn != nil {
		if err = ch.acquire(ctx, ch.deadline(ctx)); err == nil {
			req := &ua.CloseSecureChannelRequest{}
			ch.stamp(req.Header(), ch.deadline(ctx), true)
			_, err = ch.write(uasc.MessageTypeCloseFinal, req)
			ch.release()
		}
	}
	channelID := ch.state.ChannelID()
	ch.shutdown(ua.BadSecureChannelClosed)
	ch.logger.WithField("channel_id", channelID).Info("secure channel closed")
	return err
}

// Abort closes the connection without sending a CloseSecureChannel request.
func (ch *clientSecureChannel) Abort() {
	ch.closing.Store(true)
	ch.stopRenewalTimer()
	ch.shutdown(ua.BadSecureChannelClosed)
}

// abort tears down the connection after a fatal failure.
func (ch *clientSecureChannel) abort(err error) {
	ch.fail(err)
	ch.closing.Store(true)
	ch.stopRenewalTimer()
	ch.shutdown(err)
}

func (ch *clientSecureChannel) shutdown(err error) {
	ch.fail(err)
	ch.setStatus(statusClosed)
	if ch.conn == nil {
		return
	}
	ch.conn.Close()
	<-ch.done
	ch.state.Reset()
}

// deadline returns the earlier of the context deadline and the configured timeout.
func (ch *clientSecureChannel) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(ch.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

// acquire takes the send lock.
func (ch *clientSecureChannel) acquire(ctx context.Context, deadline time.Time) error {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case ch.sendSem <- struct{}{}:
		return nil
	case <-ch.done:
		return ch.stickyError()
	case <-ctx.Done():
		return ua.BadRequestTimeout
	case <-timer.C:
		return ua.BadRequestTimeout
	}
}

// release returns the send lock.
func (ch *clientSecureChannel) release() {
	<-ch.sendSem
}

// waitGate waits until no renew is in flight.
func (ch *clientSecureChannel) waitGate(ctx context.Context, deadline time.Time) error {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-ch.gate:
		ch.openGate()
		return nil
	case <-ch.done:
		return ch.stickyError()
	case <-ctx.Done():
		return ua.BadRequestTimeout
	case <-timer.C:
		return ua.BadRequestTimeout
	}
}

func (ch *clientSecureChannel) openGate() {
	select {
	case ch.gate <- struct{}{}:
	default:
	}
}

// stamp sets the fields of the request header.
func (ch *clientSecureChannel) stamp(header *ua.RequestHeader, deadline time.Time, withToken bool) {
	header.Timestamp = time.Now()
	header.RequestHandle = ch.nextRequestHandle()
	if withToken {
		ch.mu.Lock()
		header.AuthenticationToken = ch.authToken
		ch.mu.Unlock()
	}
	if header.TimeoutHint == 0 {
		if d := time.Until(deadline); d > 0 {
			header.TimeoutHint = uint32(d / time.Millisecond)
		}
	}
}

// nextRequestHandle gets next RequestHandle in sequence, skipping zero.
func (ch *clientSecureChannel) nextRequestHandle() uint32 {
	h := ch.requestHandle.Add(1)
	if h == 0 {
		h = ch.requestHandle.Add(1)
	}
	return h
}

func (ch *clientSecureChannel) nextRequestID() uint32 {
	id := ch.requestID.Add(1)
	if id == 0 {
		id = ch.requestID.Add(1)
	}
	return id
}

// write encodes the message and sends it as one or more chunks. The caller holds the send lock.
func (ch *clientSecureChannel) write(messageType uint32, msg any) (uint32, error) {
	buf := ua.NewPartitionBuffer()
	defer buf.Reset()
	enc := ua.NewBinaryEncoder(buf, ch.encodingContext())
	if err := enc.WriteMessage(msg); err != nil {
		return 0, err
	}
	requestID := ch.nextRequestID()
	var err error
	if messageType == uasc.MessageTypeOpenFinal {
		err = ch.writer.WriteAsymmetric(ch.conn, requestID, buf, int(buf.Len()))
	} else {
		err = ch.writer.WriteSymmetric(ch.conn, messageType, requestID, buf, int(buf.Len()))
	}
	if err != nil {
		if _, ok := err.(ua.StatusCode); ok {
			return 0, err
		}
		return 0, errors.Wrap(ua.BadConnectionClosed, err.Error())
	}
	return requestID, nil
}

// Request sends a service request to the server and returns the response.
// The send lock is held until the response arrives or the request times out.
func (ch *clientSecureChannel) Request(ctx context.Context, req ua.ServiceRequest) (ua.ServiceResponse, error) {
	deadline := ch.deadline(ctx)
	if err := ch.waitGate(ctx, deadline); err != nil {
		return nil, err
	}
	if err := ch.acquire(ctx, deadline); err != nil {
		return nil, err
	}
	defer ch.release()

	header := req.Header()
	ch.stamp(header, deadline, true)
	key := pendingKey{uasc.MessageTypeFinal, header.RequestHandle}
	w, err := ch.register(key, 0, nil)
	if err != nil {
		return nil, err
	}
	requestID, err := ch.write(uasc.MessageTypeFinal, req)
	if err != nil {
		ch.unregister(key)
		return nil, err
	}
	ch.pendingLock.Lock()
	w.requestID = requestID
	ch.pendingLock.Unlock()
	ch.logger.WithField("request_handle", header.RequestHandle).Debugf("%T sent", req)

	r, err := ch.await(ctx, key, w, deadline)
	if err != nil {
		return nil, err
	}
	return checkResponse(r)
}

// checkResponse returns the status of a ServiceFault, or of a response with a bad ServiceResult, as an error.
func checkResponse(msg any) (ua.ServiceResponse, error) {
	switch res := msg.(type) {
	case *ua.ServiceFault:
		if sr := res.ResponseHeader.ServiceResult; sr.IsBad() {
			return nil, sr
		}
		return nil, ua.BadUnknownResponse
	case ua.ServiceResponse:
		if sr := res.Header().ServiceResult; sr.IsBad() {
			return nil, sr
		}
		return res, nil
	default:
		return nil, ua.BadUnknownResponse
	}
}

// sendPublish sends a Publish request. The send lock is released as soon as the request is written,
// and the response is delivered to the publish queue.
func (ch *clientSecureChannel) sendPublish(ctx context.Context, req *ua.PublishRequest, timeoutHint uint32) error {
	deadline := ch.deadline(ctx)
	if err := ch.waitGate(ctx, deadline); err != nil {
		return err
	}
	if err := ch.acquire(ctx, deadline); err != nil {
		return err
	}
	defer ch.release()
	req.RequestHeader.TimeoutHint = timeoutHint
	ch.stamp(&req.RequestHeader, deadline, true)
	handle := req.RequestHeader.RequestHandle

	ch.pendingLock.Lock()
	if ch.stopped {
		ch.pendingLock.Unlock()
		return ch.stickyError()
	}
	ch.publishes[handle] = struct{}{}
	ch.pendingLock.Unlock()

	if _, err := ch.write(uasc.MessageTypeFinal, req); err != nil {
		ch.pendingLock.Lock()
		delete(ch.publishes, handle)
		ch.pendingLock.Unlock()
		return err
	}
	return nil
}

// nextPublishResult waits for the next PublishResponse. It returns false once the channel stopped
// and every outstanding Publish has been reported, or when stop is closed.
func (ch *clientSecureChannel) nextPublishResult(stop <-chan struct{}) (publishResult, bool) {
	for {
		ch.pendingLock.Lock()
		if ch.publishQueue.Len() > 0 {
			r := ch.publishQueue.PopFront()
			ch.pendingLock.Unlock()
			return r, true
		}
		stopped := ch.stopped
		ch.pendingLock.Unlock()
		if stopped {
			return publishResult{}, false
		}
		select {
		case <-ch.publishReady:
		case <-ch.done:
		case <-stop:
			return publishResult{}, false
		}
	}
}

// pushPublishResult queues a result for the subscription engine. The caller holds the pending lock.
func (ch *clientSecureChannel) pushPublishResult(r publishResult) {
	ch.publishQueue.PushBack(r)
	select {
	case ch.publishReady <- struct{}{}:
	default:
	}
}

// register adds a one-shot waiter for the key.
func (ch *clientSecureChannel) register(key pendingKey, requestID uint32, nonce []byte) (*waiter, error) {
	ch.pendingLock.Lock()
	defer ch.pendingLock.Unlock()
	if ch.stopped {
		return nil, ch.stickyError()
	}
	w := &waiter{requestID: requestID, nonce: nonce, done: make(chan result, 1)}
	ch.pending[key] = w
	for ch.order.Len() > 0 {
		if _, ok := ch.pending[ch.order.Front()]; ok {
			break
		}
		ch.order.PopFront()
	}
	ch.order.PushBack(key)
	return w, nil
}

// unregister removes the waiter for the key.
func (ch *clientSecureChannel) unregister(key pendingKey) {
	ch.pendingLock.Lock()
	delete(ch.pending, key)
	ch.pendingLock.Unlock()
}

// pendingCount returns the number of waiters.
func (ch *clientSecureChannel) pendingCount() int {
	ch.pendingLock.Lock()
	defer ch.pendingLock.Unlock()
	return len(ch.pending)
}

// await blocks until the waiter is signaled or the deadline passes. On timeout the waiter is removed.
func (ch *clientSecureChannel) await(ctx context.Context, key pendingKey, w *waiter, deadline time.Time) (any, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case r := <-w.done:
		return r.msg, r.err
	case <-ctx.Done():
	case <-timer.C:
	}
	ch.pendingLock.Lock()
	if ch.pending[key] == w {
		delete(ch.pending, key)
	}
	ch.pendingLock.Unlock()
	ch.logger.WithField("request_handle", key.handle).Debug("request timed out")
	return nil, ua.BadRequestTimeout
}

// deliver signals the waiter for the key. It returns false if no one is waiting.
func (ch *clientSecureChannel) deliver(key pendingKey, r result) bool {
	ch.pendingLock.Lock()
	w, ok := ch.pending[key]
	if ok {
		delete(ch.pending, key)
	}
	ch.pendingLock.Unlock()
	if !ok {
		return false
	}
	w.done <- r
	return true
}

// failOldest signals the oldest waiter with the error.
func (ch *clientSecureChannel) failOldest(err error) {
	ch.pendingLock.Lock()
	defer ch.pendingLock.Unlock()
	for ch.order.Len() > 0 {
		key := ch.order.PopFront()
		if w, ok := ch.pending[key]; ok {
			delete(ch.pending, key)
			w.done <- result{err: err}
			return
		}
	}
}

// failRequest signals the waiter of the request id with the error.
func (ch *clientSecureChannel) failRequest(requestID uint32, err error) {
	ch.pendingLock.Lock()
	defer ch.pendingLock.Unlock()
	for key, w := range ch.pending {
		if w.requestID == requestID {
			delete(ch.pending, key)
			w.done <- result{err: err}
			return
		}
	}
}

// signalAll signals every waiter and every outstanding Publish with the error.
func (ch *clientSecureChannel) signalAll(err error) {
	ch.pendingLock.Lock()
	defer ch.pendingLock.Unlock()
	ch.stopped = true
	for key, w := range ch.pending {
		delete(ch.pending, key)
		w.done <- result{err: err}
	}
	ch.order.Clear()
	for handle := range ch.publishes {
		delete(ch.publishes, handle)
		ch.pushPublishResult(publishResult{err: err})
	}
}

// receiveLoop is the single reader of the connection.
func (ch *clientSecureChannel) receiveLoop() {
	defer close(ch.done)
	for {
		msg, err := ch.receiver.Next()
		if err == nil {
			err = ch.dispatch(msg)
		}
		if err != nil {
			if ch.closing.Load() {
				ch.fail(ua.BadSecureChannelClosed)
			} else {
				ch.logger.WithError(err).Error("error receiving message")
				ch.fail(err)
			}
			ch.setStatus(statusClosed)
			ch.signalAll(ch.stickyError())
			ch.conn.Close()
			return
		}
	}
}

// dispatch classifies a message and hands it to its waiter.
func (ch *clientSecureChannel) dispatch(msg []byte) error {
	switch uasc.MessageTypeOf(msg) {
	case uasc.MessageTypeAck:
		ack, err := uasc.DecodeAcknowledge(msg)
		if err != nil {
			ch.failOldest(err)
			return err
		}
		if ack.ProtocolVersion < uasc.ProtocolVersion {
			ch.failOldest(ua.BadProtocolVersionUnsupported)
			return ua.BadProtocolVersionUnsupported
		}
		limits := uasc.Negotiate(ch.localLimits, ack)
		ch.state.SetLimits(limits)
		ch.receiver.SetLimits(limits)
		ch.deliver(ackKey, result{msg: limits})
		return nil

	case uasc.MessageTypeError:
		em, err := uasc.DecodeErrorMessage(msg)
		if err != nil {
			ch.failOldest(err)
			return err
		}
		ch.logger.WithField("reason", em.Reason).Warnf("server sent error %s", em.Error)
		ch.failOldest(em.Error)
		return em.Error

	case uasc.MessageTypeOpenFinal, uasc.MessageTypeFinal, uasc.MessageTypeChunk, uasc.MessageTypeAbort, uasc.MessageTypeCloseFinal:
		body := ua.NewPartitionBuffer()
		defer body.Reset()
		messageType, requestID, err := ch.reader.ReadMessage(msg, body)
		if err != nil {
			if messageType == uasc.MessageTypeAbort {
				ch.failRequest(requestID, err)
				return nil
			}
			if messageType == 0 && uasc.MessageTypeOf(msg) == uasc.MessageTypeOpenFinal {
				ch.failOldest(err)
			}
			return err
		}
		res, err := ua.NewBinaryDecoder(body, ch.encodingContext()).ReadMessage()
		if err != nil {
			return ua.BadDecodingError
		}
		if messageType == uasc.MessageTypeOpenFinal {
			return ch.onOpenResponse(res)
		}
		ch.onResponse(res)
		return nil

	default:
		return ua.BadTCPMessageTypeInvalid
	}
}

// onOpenResponse installs the new token before any later message is read, then signals the waiter
// and opens the gate for ordinary traffic.
func (ch *clientSecureChannel) onOpenResponse(msg any) error {
	ch.pendingLock.Lock()
	w, ok := ch.pending[openKey]
	if ok {
		delete(ch.pending, openKey)
	}
	ch.pendingLock.Unlock()
	if !ok {
		ch.logger.Warn("unexpected OpenSecureChannel response")
		return nil
	}
	switch res := msg.(type) {
	case *ua.OpenSecureChannelResponse:
		if sr := res.ResponseHeader.ServiceResult; sr.IsBad() {
			w.done <- result{err: sr}
			return sr
		}
		if res.ServerProtocolVersion < uasc.ProtocolVersion {
			w.done <- result{err: ua.BadProtocolVersionUnsupported}
			return ua.BadProtocolVersionUnsupported
		}
		policy := ch.state.SecurityPolicy()
		if ua.IsSecure(policy) && len(res.ServerNonce) != policy.NonceSize() {
			w.done <- result{err: ua.BadNonceInvalid}
			return ua.BadNonceInvalid
		}
		token := res.SecurityToken
		ch.state.InstallToken(token.ChannelID, token.TokenID, time.Now(),
			time.Duration(token.RevisedLifetime)*time.Millisecond, w.nonce, []byte(res.ServerNonce))
		ch.setStatus(statusEstablished)
		ch.openGate()
		w.done <- result{msg: res}
		return nil
	case *ua.ServiceFault:
		w.done <- result{err: res.ResponseHeader.ServiceResult}
		return res.ResponseHeader.ServiceResult
	default:
		w.done <- result{err: ua.BadUnknownResponse}
		return ua.BadUnknownResponse
	}
}

// onResponse routes a response to its waiter, or to the publish queue.
func (ch *clientSecureChannel) onResponse(msg any) {
	res, ok := msg.(ua.ServiceResponse)
	if !ok {
		ch.logger.Warnf("unexpected message %T", msg)
		return
	}
	handle := res.Header().RequestHandle
	ch.pendingLock.Lock()
	if _, ok := ch.publishes[handle]; ok {
		delete(ch.publishes, handle)
		switch res := res.(type) {
		case *ua.PublishResponse:
			if sr := res.ResponseHeader.ServiceResult; sr.IsBad() {
				ch.pushPublishResult(publishResult{err: sr})
			} else {
				ch.pushPublishResult(publishResult{res: res})
			}
		default:
			_, err := checkResponse(res)
			ch.pushPublishResult(publishResult{err: err})
		}
		ch.pendingLock.Unlock()
		return
	}
	ch.pendingLock.Unlock()
	if !ch.deliver(pendingKey{uasc.MessageTypeFinal, handle}, result{msg: res}) {
		ch.logger.WithField("request_handle", handle).Debugf("%T without waiter", res)
	}
}
