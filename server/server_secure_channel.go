// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"crypto/x509"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/awcullen/uastack/uasc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// the time allowed for the client to send Hello and OpenSecureChannel.
	handshakeTimeout = 15 * time.Second
)

// serverSecureChannel implements the server side of a secure channel.
type serverSecureChannel struct {
	srv           *Server
	conn          net.Conn
	logger        logrus.FieldLogger
	state         *uasc.ChannelState
	reader        *uasc.ChunkReader
	writer        *uasc.ChunkWriter
	receiver      *uasc.Receiver
	writeLock     sync.Mutex
	channelID     uint32
	tokenID       uint32
	endpointURL   string
	ec            ua.EncodingContext
	discoveryOnly bool
	closed        atomic.Bool
}

func newServerSecureChannel(srv *Server, conn net.Conn) *serverSecureChannel {
	return &serverSecureChannel{
		srv:      srv,
		conn:     conn,
		logger:   srv.logger.WithField("remote_addr", conn.RemoteAddr().String()),
		receiver: uasc.NewReceiver(conn, srv.limits.ReceiveBufferSize),
	}
}

// DiscoveryOnly returns true if the channel matches no endpoint, and serves only discovery requests.
func (ch *serverSecureChannel) DiscoveryOnly() bool {
	return ch.discoveryOnly
}

// ChannelID returns the id of the channel.
func (ch *serverSecureChannel) ChannelID() uint32 {
	return ch.channelID
}

// EndpointURL returns the url sent by the client in the Hello message.
func (ch *serverSecureChannel) EndpointURL() string {
	return ch.endpointURL
}

// SecurityPolicyURI returns the uri of the security policy of the channel.
func (ch *serverSecureChannel) SecurityPolicyURI() string {
	return ch.state.SecurityPolicy().PolicyURI()
}

// SecurityMode returns the security mode of the channel.
func (ch *serverSecureChannel) SecurityMode() ua.MessageSecurityMode {
	return ch.state.SecurityMode()
}

// RemoteCertificate returns the certificate of the client.
func (ch *serverSecureChannel) RemoteCertificate() []byte {
	return ch.state.RemoteCertificate()
}

// Closed returns true if the channel is closed.
func (ch *serverSecureChannel) Closed() bool {
	return ch.closed.Load()
}

// Open performs the Hello handshake and answers the first OpenSecureChannel request.
// On error, an Error message is sent and the connection is closed.
func (ch *serverSecureChannel) Open() error {
	ch.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if err := ch.open(); err != nil {
		code, ok := errors.Cause(err).(ua.StatusCode)
		if !ok {
			code = ua.BadTCPInternalError
		}
		ch.Abort(code, err.Error())
		return err
	}
	ch.conn.SetReadDeadline(time.Time{})
	ch.logger = ch.logger.WithField("channel_id", ch.channelID)
	ch.logger.WithFields(logrus.Fields{
		"policy": ch.SecurityPolicyURI(),
		"mode":   ch.SecurityMode(),
	}).Info("secure channel opened")
	return nil
}

func (ch *serverSecureChannel) open() error {
	msg, err := ch.receiver.Next()
	if err != nil {
		return err
	}
	if uasc.MessageTypeOf(msg) != uasc.MessageTypeHello {
		return ua.BadTCPMessageTypeInvalid
	}
	hello, err := uasc.DecodeHello(msg)
	if err != nil {
		return err
	}
	limits, ack := uasc.NegotiateHello(ch.srv.limits, hello)
	if limits.ReceiveBufferSize < minBufferSize || limits.SendBufferSize < minBufferSize {
		return errors.Wrap(ua.BadTCPInternalError, "buffer size too small")
	}
	if _, err := ch.conn.Write(ack.Encode()); err != nil {
		return errors.Wrap(ua.BadConnectionClosed, err.Error())
	}
	ch.receiver.SetLimits(limits)
	ch.endpointURL = hello.EndpointURL

	msg, err = ch.receiver.Next()
	if err != nil {
		return err
	}
	if uasc.MessageTypeOf(msg) != uasc.MessageTypeOpenFinal {
		return ua.BadTCPMessageTypeInvalid
	}
	_, hdr, _, err := uasc.ParseAsymmetricHeader(msg)
	if err != nil {
		return err
	}
	policy, err := ua.NewSecurityPolicy(hdr.SecurityPolicyURI)
	if err != nil {
		return ua.BadSecurityPolicyRejected
	}
	// the mode is taken from the request, after the chunk is unsecured.
	mode := ua.MessageSecurityModeNone
	var provider ua.CertificateProvider
	if ua.IsSecure(policy) {
		mode = ua.MessageSecurityModeSign
		provider = ch.srv.certificateProvider
	}
	ch.state, err = uasc.NewChannelState(policy, mode, provider, nil)
	if err != nil {
		return err
	}
	ch.state.SetLimits(limits)
	ch.state.SetTooLargeStatus(ua.BadResponseTooLarge)
	ch.reader = uasc.NewChunkReader(ch.state)
	ch.writer = uasc.NewChunkWriter(ch.state)
	ch.ec = ua.NewEncodingContextWith(ch.srv.NamespaceURIs(), ch.srv.ServerURIs(), ch.srv.registry)

	requestID, req, err := ch.readOpenRequest(msg)
	if err != nil {
		return err
	}
	if req.RequestType != ua.SecurityTokenRequestTypeIssue {
		return ua.BadRequestTypeInvalid
	}
	if err := ch.state.SetSecurityMode(req.SecurityMode); err != nil {
		return err
	}
	if _, ok := ch.srv.findEndpoint(hdr.SecurityPolicyURI, req.SecurityMode); !ok {
		// an unsecured channel may still be used for discovery.
		if ua.IsSecure(policy) {
			return ua.BadSecurityModeRejected
		}
		ch.discoveryOnly = true
	}
	if ua.IsSecure(policy) {
		if err := ua.ValidateCertificate(ch.state.RemoteCertificate(), x509.ExtKeyUsageClientAuth, ch.srv.validation); err != nil {
			return err
		}
	}
	ch.channelID = ch.srv.channelManager.nextChannelID()
	ch.state.SetChannelID(ch.channelID)
	return ch.handleOpenSecureChannel(requestID, req)
}

// readOpenRequest unsecures an OPN message and decodes the request.
func (ch *serverSecureChannel) readOpenRequest(msg []byte) (uint32, *ua.OpenSecureChannelRequest, error) {
	body := ua.NewPartitionBuffer()
	defer body.Reset()
	_, requestID, err := ch.reader.ReadMessage(msg, body)
	if err != nil {
		return 0, nil, err
	}
	v, err := ua.NewBinaryDecoder(body, ch.ec).ReadMessage()
	if err != nil {
		return 0, nil, ua.BadDecodingError
	}
	req, ok := v.(*ua.OpenSecureChannelRequest)
	if !ok {
		return 0, nil, ua.BadDecodingError
	}
	return requestID, req, nil
}

// handleOpenSecureChannel issues or renews a token. The response is written before the new keys are installed.
func (ch *serverSecureChannel) handleOpenSecureChannel(requestID uint32, req *ua.OpenSecureChannelRequest) error {
	policy := ch.state.SecurityPolicy()
	var localNonce []byte
	if ua.IsSecure(policy) {
		if len(req.ClientNonce) != policy.NonceSize() {
			return ua.BadNonceInvalid
		}
		var err error
		localNonce, err = ua.RandomNonce(policy.NonceSize())
		if err != nil {
			return err
		}
	}
	lifetime := req.RequestedLifetime
	if lifetime < minTokenLifetime {
		lifetime = minTokenLifetime
	}
	if lifetime > maxTokenLifetime {
		lifetime = maxTokenLifetime
	}
	ch.tokenID++
	now := time.Now()
	res := &ua.OpenSecureChannelResponse{
		ResponseHeader:        ua.NewResponseHeader(now, req.RequestHeader.RequestHandle, ua.Good),
		ServerProtocolVersion: uasc.ProtocolVersion,
		SecurityToken: ua.ChannelSecurityToken{
			ChannelID:       ch.channelID,
			TokenID:         ch.tokenID,
			CreatedAt:       now,
			RevisedLifetime: lifetime,
		},
		ServerNonce: ua.ByteString(localNonce),
	}
	buf := ua.NewPartitionBuffer()
	defer buf.Reset()
	if err := ua.NewBinaryEncoder(buf, ch.ec).WriteMessage(res); err != nil {
		return err
	}
	ch.writeLock.Lock()
	defer ch.writeLock.Unlock()
	if err := ch.writer.WriteAsymmetric(ch.conn, requestID, buf, int(buf.Len())); err != nil {
		return err
	}
	ch.state.InstallToken(ch.channelID, ch.tokenID, now, time.Duration(lifetime)*time.Millisecond, localNonce, []byte(req.ClientNonce))
	return nil
}

// run reads requests until the channel is closed. Service requests are handled by the worker pool.
func (ch *serverSecureChannel) run() {
	defer ch.Close()
	for {
		msg, err := ch.receiver.Next()
		if err != nil {
			if !ch.closed.Load() && err != ua.BadConnectionClosed {
				ch.logger.WithError(err).Warn("error receiving message")
				if code, ok := err.(ua.StatusCode); ok {
					ch.Abort(code, "")
				}
			}
			return
		}
		switch uasc.MessageTypeOf(msg) {
		case uasc.MessageTypeOpenFinal:
			requestID, req, err := ch.readOpenRequest(msg)
			if err == nil && req.RequestType != ua.SecurityTokenRequestTypeRenew {
				err = ua.BadRequestTypeInvalid
			}
			if err == nil {
				err = ch.handleOpenSecureChannel(requestID, req)
			}
			if err != nil {
				ch.logger.WithError(err).Warn("error renewing secure channel")
				ch.abortWith(err)
				return
			}
			ch.logger.WithField("token_id", ch.tokenID).Debug("secure channel renewed")

		case uasc.MessageTypeCloseFinal:
			ch.logger.Info("secure channel closed by client")
			return

		case uasc.MessageTypeFinal, uasc.MessageTypeChunk, uasc.MessageTypeAbort:
			body := ua.NewPartitionBuffer()
			messageType, requestID, err := ch.reader.ReadMessage(msg, body)
			if err != nil {
				body.Reset()
				if messageType == uasc.MessageTypeAbort {
					// the client abandoned the request.
					continue
				}
				ch.logger.WithError(err).Warn("error reading message")
				ch.abortWith(err)
				return
			}
			v, err := ua.NewBinaryDecoder(body, ch.ec).ReadMessage()
			body.Reset()
			if err != nil {
				ch.Write(&ua.ServiceFault{ResponseHeader: ua.NewResponseHeader(time.Now(), 0, ua.BadDecodingError)}, requestID)
				continue
			}
			req, ok := v.(ua.ServiceRequest)
			if !ok {
				ch.Write(&ua.ServiceFault{ResponseHeader: ua.NewResponseHeader(time.Now(), 0, ua.BadServiceUnsupported)}, requestID)
				continue
			}
			if !ch.srv.submit(func() { ch.srv.handleRequest(ch, requestID, req) }) {
				return
			}

		default:
			ch.Abort(ua.BadTCPMessageTypeInvalid, "")
			return
		}
	}
}

// Write sends a service response. A response that exceeds the limits of the client is replaced
// by a ServiceFault with status BadResponseTooLarge.
func (ch *serverSecureChannel) Write(res ua.ServiceResponse, requestID uint32) error {
	if ch.closed.Load() {
		return ua.BadSecureChannelClosed
	}
	err := ch.write(res, requestID)
	if err == ua.BadResponseTooLarge {
		ch.logger.WithField("request_handle", res.Header().RequestHandle).Warn("response too large")
		fault := &ua.ServiceFault{ResponseHeader: ua.NewResponseHeader(time.Now(), res.Header().RequestHandle, ua.BadResponseTooLarge)}
		err = ch.write(fault, requestID)
	}
	if err != nil {
		ch.logger.WithError(err).Warn("error writing response")
		ch.Close()
	}
	return err
}

func (ch *serverSecureChannel) write(res ua.ServiceResponse, requestID uint32) error {
	buf := ua.NewPartitionBuffer()
	defer buf.Reset()
	if err := ua.NewBinaryEncoder(buf, ch.ec).WriteMessage(res); err != nil {
		return err
	}
	ch.writeLock.Lock()
	defer ch.writeLock.Unlock()
	return ch.writer.WriteSymmetric(ch.conn, uasc.MessageTypeFinal, requestID, buf, int(buf.Len()))
}

func (ch *serverSecureChannel) abortWith(err error) {
	code, ok := errors.Cause(err).(ua.StatusCode)
	if !ok {
		code = ua.BadTCPInternalError
	}
	ch.Abort(code, err.Error())
}

// Abort sends an Error message to the client, then closes the connection.
func (ch *serverSecureChannel) Abort(code ua.StatusCode, reason string) {
	if ch.closed.Load() {
		return
	}
	em := &uasc.ErrorMessage{Error: code, Reason: reason}
	ch.writeLock.Lock()
	ch.conn.SetWriteDeadline(time.Now().Add(time.Second))
	ch.conn.Write(em.Encode())
	ch.writeLock.Unlock()
	ch.Close()
}

// Close closes the connection.
func (ch *serverSecureChannel) Close() {
	if !ch.closed.CompareAndSwap(false, true) {
		return
	}
	ch.conn.Close()
	ch.srv.channelManager.Delete(ch)
	ch.srv.sessionManager.detachChannel(ch)
}
