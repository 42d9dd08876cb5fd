// Copyright 2021 Converter Systems LLC. All rights reserved.

package client

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/awcullen/uastack/uasc"
	"github.com/sirupsen/logrus"
	"gotest.tools/assert"
)

// fakePeer is a minimal server speaking UA-SecureConversation with security policy None.
// Each request is passed to handle; a nil response is never answered.
type fakePeer struct {
	l        net.Listener
	limits   uasc.TransportLimits
	handle   func(req ua.ServiceRequest) ua.ServiceResponse
	hellos   chan uasc.Hello
	opens    chan ua.SecurityTokenRequestType
	requests chan ua.ServiceRequest

	mu    sync.Mutex
	conns []net.Conn
}

func newFakePeer(t *testing.T, limits uasc.TransportLimits, handle func(req ua.ServiceRequest) ua.ServiceResponse) *fakePeer {
	l, err := net.Listen("tcp", "localhost:0")
	assert.NilError(t, err)
	p := &fakePeer{
		l:        l,
		limits:   limits,
		handle:   handle,
		hellos:   make(chan uasc.Hello, 8),
		opens:    make(chan ua.SecurityTokenRequestType, 8),
		requests: make(chan ua.ServiceRequest, 64),
	}
	go p.serve()
	t.Cleanup(p.close)
	return p
}

func (p *fakePeer) endpointURL() string {
	return "opc.tcp://" + p.l.Addr().String()
}

// dropConnections closes the connections without a goodbye.
func (p *fakePeer) dropConnections() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, conn := range p.conns {
		conn.Close()
	}
	p.conns = nil
}

func (p *fakePeer) close() {
	p.l.Close()
	p.dropConnections()
}

func (p *fakePeer) serve() {
	for {
		conn, err := p.l.Accept()
		if err != nil {
			return
		}
		p.mu.Lock()
		p.conns = append(p.conns, conn)
		p.mu.Unlock()
		go p.serveConn(conn)
	}
}

func (p *fakePeer) serveConn(conn net.Conn) {
	defer conn.Close()
	receiver := uasc.NewReceiver(conn, uasc.DefaultBufferSize)
	msg, err := receiver.Next()
	if err != nil || uasc.MessageTypeOf(msg) != uasc.MessageTypeHello {
		return
	}
	hello, err := uasc.DecodeHello(msg)
	if err != nil {
		return
	}
	select {
	case p.hellos <- *hello:
	default:
	}
	limits, ack := uasc.NegotiateHello(p.limits, hello)
	if _, err := conn.Write(ack.Encode()); err != nil {
		return
	}
	receiver.SetLimits(limits)

	policy, _ := ua.NewSecurityPolicy(ua.SecurityPolicyURINone)
	state, err := uasc.NewChannelState(policy, ua.MessageSecurityModeNone, nil, nil)
	if err != nil {
		return
	}
	state.SetLimits(limits)
	reader := uasc.NewChunkReader(state)
	writer := uasc.NewChunkWriter(state)
	ec := ua.NewEncodingContextWith(nil, nil, ua.NewStandardTypeRegistry())
	var writeLock sync.Mutex
	write := func(messageType uint32, requestID uint32, res ua.ServiceResponse) error {
		buf := ua.NewPartitionBuffer()
		defer buf.Reset()
		if err := ua.NewBinaryEncoder(buf, ec).WriteMessage(res); err != nil {
			return err
		}
		writeLock.Lock()
		defer writeLock.Unlock()
		if messageType == uasc.MessageTypeOpenFinal {
			return writer.WriteAsymmetric(conn, requestID, buf, int(buf.Len()))
		}
		return writer.WriteSymmetric(conn, messageType, requestID, buf, int(buf.Len()))
	}

	var tokenID uint32
	for {
		msg, err := receiver.Next()
		if err != nil || uasc.MessageTypeOf(msg) == uasc.MessageTypeCloseFinal {
			return
		}
		body := ua.NewPartitionBuffer()
		_, requestID, err := reader.ReadMessage(msg, body)
		if err != nil {
			body.Reset()
			return
		}
		v, err := ua.NewBinaryDecoder(body, ec).ReadMessage()
		body.Reset()
		if err != nil {
			return
		}
		switch req := v.(type) {
		case *ua.OpenSecureChannelRequest:
			tokenID++
			now := time.Now()
			res := &ua.OpenSecureChannelResponse{
				ResponseHeader:        ua.NewResponseHeader(now, req.RequestHeader.RequestHandle, ua.Good),
				ServerProtocolVersion: uasc.ProtocolVersion,
				SecurityToken: ua.ChannelSecurityToken{
					ChannelID:       1,
					TokenID:         tokenID,
					CreatedAt:       now,
					RevisedLifetime: req.RequestedLifetime,
				},
			}
			if err := write(uasc.MessageTypeOpenFinal, requestID, res); err != nil {
				return
			}
			state.InstallToken(1, tokenID, now, time.Duration(req.RequestedLifetime)*time.Millisecond, nil, nil)
			select {
			case p.opens <- req.RequestType:
			default:
			}

		case ua.ServiceRequest:
			select {
			case p.requests <- req:
			default:
			}
			res := p.handle(req)
			if res == nil {
				continue
			}
			*res.Header() = ua.NewResponseHeader(time.Now(), req.Header().RequestHandle, res.Header().ServiceResult)
			if err := write(uasc.MessageTypeFinal, requestID, res); err != nil {
				return
			}
		}
	}
}

// openFakeChannel opens a channel with security policy None to the peer.
func openFakeChannel(t *testing.T, p *fakePeer, limits uasc.TransportLimits, timeout time.Duration) *clientSecureChannel {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return openFakeChannelWithLogger(t, p, limits, timeout, logger)
}

func openFakeChannelWithLogger(t *testing.T, p *fakePeer, limits uasc.TransportLimits, timeout time.Duration, logger logrus.FieldLogger) *clientSecureChannel {
	ch, err := newClientSecureChannel(
		p.endpointURL(),
		ua.SecurityPolicyURINone,
		ua.MessageSecurityModeNone,
		nil,
		nil,
		limits,
		ua.CertificateValidationOptions{},
		timeout,
		defaultTokenRequestedLifetime,
		logger,
	)
	assert.NilError(t, err)
	assert.NilError(t, ch.Open(testContext(t)))
	t.Cleanup(ch.Abort)
	return ch
}
