// Copyright 2021 Converter Systems LLC. All rights reserved.

package uasc

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"reflect"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/awcullen/uastack/ua"
	"gotest.tools/assert"
)

var certOnce sync.Once

var clientProvider, serverProvider ua.CertificateProvider

// providers returns a client and a server provider with self-signed certificates.
func providers(t *testing.T) (ua.CertificateProvider, ua.CertificateProvider) {
	certOnce.Do(func() {
		c, ck, err := ua.CreateSelfSignedCertificate("uasc-client")
		assert.NilError(t, err)
		s, sk, err := ua.CreateSelfSignedCertificate("uasc-server")
		assert.NilError(t, err)
		clientProvider = ua.NewRSACertificateProvider(c, ck)
		serverProvider = ua.NewRSACertificateProvider(s, sk)
	})
	return clientProvider, serverProvider
}

// countingProvider records calls that touch the private key.
type countingProvider struct {
	ua.CertificateProvider
	signs, decrypts int
}

func (p *countingProvider) Sign(policy ua.SecurityPolicy, data []byte) ([]byte, error) {
	p.signs++
	return p.CertificateProvider.Sign(policy, data)
}

func (p *countingProvider) Decrypt(policy ua.SecurityPolicy, data []byte) ([]byte, error) {
	p.decrypts++
	return p.CertificateProvider.Decrypt(policy, data)
}

func nonce(t *testing.T, n int) []byte {
	b, err := ua.RandomNonce(n)
	assert.NilError(t, err)
	return b
}

// channelPair returns the states of both ends of a channel with token 1 installed.
func channelPair(t *testing.T, uri string, mode ua.MessageSecurityMode) (client, server *ChannelState) {
	policy, err := ua.NewSecurityPolicy(uri)
	assert.NilError(t, err)
	cp, sp := providers(t)
	if mode == ua.MessageSecurityModeNone {
		cp, sp = nil, nil
	}
	client, err = NewChannelState(policy, mode, cp, nil)
	assert.NilError(t, err)
	server, err = NewChannelState(policy, mode, sp, nil)
	assert.NilError(t, err)
	server.SetTooLargeStatus(ua.BadResponseTooLarge)
	renew(t, client, server, 7, 1)
	return client, server
}

func renew(t *testing.T, client, server *ChannelState, channelID, tokenID uint32) {
	n := client.SecurityPolicy().NonceSize()
	var cn, sn []byte
	if n > 0 {
		cn, sn = nonce(t, n), nonce(t, n)
	}
	now := time.Now()
	client.InstallToken(channelID, tokenID, now, time.Hour, cn, sn)
	server.InstallToken(channelID, tokenID, now, time.Hour, sn, cn)
}

func TestNegotiate(t *testing.T) {
	local := TransportLimits{ReceiveBufferSize: 262144, SendBufferSize: 262144, MaxMessageSize: 0, MaxChunkCount: 100}
	ack := &Acknowledge{ReceiveBufferSize: 65536, SendBufferSize: 131072, MaxMessageSize: 4194304, MaxChunkCount: 0}
	limits := Negotiate(local, ack)
	assert.Equal(t, limits.ReceiveBufferSize, uint32(131072))
	assert.Equal(t, limits.SendBufferSize, uint32(65536))
	assert.Equal(t, limits.MaxMessageSize, uint32(4194304))
	assert.Equal(t, limits.MaxChunkCount, uint32(100))

	hello := &Hello{ReceiveBufferSize: 131072, SendBufferSize: 131072, MaxMessageSize: 262144, MaxChunkCount: 0}
	limits, reply := NegotiateHello(TransportLimits{262144, 262144, 131072, 64}, hello)
	assert.Equal(t, limits.SendBufferSize, uint32(131072))
	assert.Equal(t, limits.MaxMessageSize, uint32(131072))
	assert.Equal(t, reply.MaxMessageSize, uint32(131072))
	assert.Equal(t, reply.MaxChunkCount, uint32(64))
}

func TestFrames(t *testing.T) {
	hello := &Hello{ProtocolVersion: 0, ReceiveBufferSize: 65536, SendBufferSize: 65536, MaxMessageSize: 0, MaxChunkCount: 0, EndpointURL: "opc.tcp://localhost:4840"}
	b := hello.Encode()
	assert.Equal(t, len(b), 32+len(hello.EndpointURL))
	assert.Equal(t, MessageTypeOf(b), MessageTypeHello)
	got, err := DecodeHello(b)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, hello)

	ack := &Acknowledge{ReceiveBufferSize: 8192, SendBufferSize: 8192, MaxMessageSize: 1 << 20, MaxChunkCount: 16}
	b = ack.Encode()
	assert.Equal(t, len(b), 28)
	gotAck, err := DecodeAcknowledge(b)
	assert.NilError(t, err)
	assert.DeepEqual(t, gotAck, ack)

	em := &ErrorMessage{Error: ua.BadTCPEndpointURLInvalid, Reason: "no such endpoint"}
	b = em.Encode()
	assert.Equal(t, len(b), 16+len(em.Reason))
	gotErr, err := DecodeErrorMessage(b)
	assert.NilError(t, err)
	assert.DeepEqual(t, gotErr, em)
}

func TestFramesShareContext(t *testing.T) {
	_, ok := frameContext.TypeRegistry().FindEncodingID(reflect.TypeOf(ua.ReadRequest{}))
	assert.Assert(t, !ok)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hello := &Hello{ReceiveBufferSize: uint32(8192 * (i + 1)), EndpointURL: "opc.tcp://localhost:4840"}
			got, err := DecodeHello(hello.Encode())
			assert.Check(t, err == nil)
			assert.Check(t, reflect.DeepEqual(got, hello))
		}(i)
	}
	wg.Wait()
}

func TestFramesMalformed(t *testing.T) {
	ack := (&Acknowledge{ReceiveBufferSize: 8192}).Encode()
	cases := map[string][]byte{
		"truncated":    ack[:20],
		"wrong length": append(append([]byte{}, ack...), 0),
		"wrong type":   (&Hello{}).Encode(),
		"empty":        {},
	}
	for name, frame := range cases {
		_, err := DecodeAcknowledge(frame)
		assert.Equal(t, err, ua.BadDecodingError, name)
	}
}

func TestDeriveKeysets(t *testing.T) {
	policy, _ := ua.NewSecurityPolicy(ua.SecurityPolicyURIBasic256Sha256)
	cn, sn := nonce(t, 32), nonce(t, 32)
	clientLocal, clientRemote := DeriveKeysets(policy, cn, sn)
	serverLocal, serverRemote := DeriveKeysets(policy, sn, cn)
	assert.DeepEqual(t, clientLocal, serverRemote)
	assert.DeepEqual(t, clientRemote, serverLocal)
	again, _ := DeriveKeysets(policy, cn, sn)
	assert.DeepEqual(t, again, clientLocal)
	assert.Equal(t, len(clientLocal.SignKey), 32)
	assert.Equal(t, len(clientLocal.EncKey), 32)
	assert.Equal(t, len(clientLocal.IV), 16)
	assert.Assert(t, !bytes.Equal(clientLocal.SignKey, clientRemote.SignKey))
}

func TestSequenceNumbers(t *testing.T) {
	s, err := NewChannelState(mustPolicy(t, ua.SecurityPolicyURINone), ua.MessageSecurityModeNone, nil, nil)
	assert.NilError(t, err)
	assert.Equal(t, s.NextSequenceNumber(), uint32(1))
	assert.Equal(t, s.NextSequenceNumber(), uint32(2))
	s.sendSeq = sequenceNumberWrapThreshold - 1
	assert.Equal(t, s.NextSequenceNumber(), sequenceNumberWrapThreshold)
	assert.Equal(t, s.NextSequenceNumber(), uint32(1))

	assert.NilError(t, s.CheckSequenceNumber(5))
	assert.Equal(t, s.CheckSequenceNumber(5), ua.BadSequenceNumberInvalid)
	assert.Equal(t, s.CheckSequenceNumber(4), ua.BadSequenceNumberInvalid)
	assert.NilError(t, s.CheckSequenceNumber(6))
	assert.NilError(t, s.CheckSequenceNumber(sequenceNumberWrapThreshold))
	assert.NilError(t, s.CheckSequenceNumber(1))
	assert.Equal(t, s.CheckSequenceNumber(0), ua.BadSequenceNumberInvalid)
}

func mustPolicy(t *testing.T, uri string) ua.SecurityPolicy {
	p, err := ua.NewSecurityPolicy(uri)
	assert.NilError(t, err)
	return p
}

func TestChannelStateModeMismatch(t *testing.T) {
	_, err := NewChannelState(mustPolicy(t, ua.SecurityPolicyURINone), ua.MessageSecurityModeSign, nil, nil)
	assert.Equal(t, err, ua.BadSecurityModeRejected)
	_, err = NewChannelState(mustPolicy(t, ua.SecurityPolicyURIBasic256Sha256), ua.MessageSecurityModeSignAndEncrypt, nil, nil)
	assert.Equal(t, err, ua.BadSecurityChecksFailed)
}

func TestChunkRoundTrip(t *testing.T) {
	cases := []struct {
		uri  string
		mode ua.MessageSecurityMode
	}{
		{ua.SecurityPolicyURINone, ua.MessageSecurityModeNone},
		{ua.SecurityPolicyURIBasic256Sha256, ua.MessageSecurityModeSign},
		{ua.SecurityPolicyURIBasic256Sha256, ua.MessageSecurityModeSignAndEncrypt},
		{ua.SecurityPolicyURIBasic128Rsa15, ua.MessageSecurityModeSignAndEncrypt},
		{ua.SecurityPolicyURIAes256Sha256RsaPss, ua.MessageSecurityModeSignAndEncrypt},
	}
	for _, c := range cases {
		for _, n := range []int{1, 2, 5, 50} {
			client, server := channelPair(t, c.uri, c.mode)
			limits := TransportLimits{ReceiveBufferSize: 8192, SendBufferSize: 8192}
			client.SetLimits(limits)
			server.SetLimits(limits)
			w := NewChunkWriter(client)
			max := w.MaxBodySize()
			body := make([]byte, n*max-3)
			rand.Read(body)

			var wire bytes.Buffer
			assert.NilError(t, w.WriteSymmetric(&wire, MessageTypeFinal, 42, bytes.NewReader(body), len(body)))
			buf := wire.Bytes()

			size, err := SplitMessage(buf, 8192, 0)
			assert.NilError(t, err)
			assert.Equal(t, size, len(buf))
			count := 0
			for off := 0; off < len(buf); off += int(binary.LittleEndian.Uint32(buf[off+4:])) {
				count++
			}
			assert.Equal(t, count, n, "%s %v", c.uri, c.mode)

			var out bytes.Buffer
			mt, id, err := NewChunkReader(server).ReadMessage(buf, &out)
			assert.NilError(t, err, "%s %v n=%d", c.uri, c.mode, n)
			assert.Equal(t, mt, MessageTypeFinal)
			assert.Equal(t, id, uint32(42))
			assert.Assert(t, bytes.Equal(out.Bytes(), body))
		}
	}
}

func TestChunkTampered(t *testing.T) {
	client, server := channelPair(t, ua.SecurityPolicyURIBasic256Sha256, ua.MessageSecurityModeSignAndEncrypt)
	var wire bytes.Buffer
	body := []byte("read request")
	assert.NilError(t, NewChunkWriter(client).WriteSymmetric(&wire, MessageTypeFinal, 1, bytes.NewReader(body), len(body)))
	buf := wire.Bytes()
	buf[len(buf)-20] ^= 0xFF
	_, _, err := NewChunkReader(server).ReadMessage(buf, &bytes.Buffer{})
	assert.Equal(t, err, ua.BadSecurityChecksFailed)
}

func TestChunkWrongChannel(t *testing.T) {
	client, server := channelPair(t, ua.SecurityPolicyURINone, ua.MessageSecurityModeNone)
	server.SetChannelID(8)
	var wire bytes.Buffer
	assert.NilError(t, NewChunkWriter(client).WriteSymmetric(&wire, MessageTypeFinal, 1, bytes.NewReader(nil), 0))
	_, _, err := NewChunkReader(server).ReadMessage(wire.Bytes(), &bytes.Buffer{})
	assert.Equal(t, err, ua.BadTCPSecureChannelUnknown)
}

func TestRenewalContinuity(t *testing.T) {
	client, server := channelPair(t, ua.SecurityPolicyURIBasic256Sha256, ua.MessageSecurityModeSignAndEncrypt)
	w := NewChunkWriter(client)
	write := func() []byte {
		var wire bytes.Buffer
		body := []byte("publish")
		assert.NilError(t, w.WriteSymmetric(&wire, MessageTypeFinal, 3, bytes.NewReader(body), len(body)))
		return wire.Bytes()
	}
	read := func(buf []byte) error {
		_, _, err := NewChunkReader(server).ReadMessage(buf, &bytes.Buffer{})
		return err
	}

	first := write()
	stale := write()
	renew(t, client, server, 7, 2)
	second := write()

	// a message sent under the previous token is still accepted.
	assert.NilError(t, read(first))
	assert.NilError(t, read(second))

	renew(t, client, server, 7, 3)
	assert.Equal(t, read(stale), ua.BadSecureChannelTokenUnknown)
	assert.NilError(t, read(write()))

	_, err := server.remoteKeysFor(7, 2)
	assert.NilError(t, err)
	_, err = server.remoteKeysFor(7, 1)
	assert.Equal(t, err, ua.BadSecureChannelTokenUnknown)
}

func TestMessageTooLarge(t *testing.T) {
	client, server := channelPair(t, ua.SecurityPolicyURINone, ua.MessageSecurityModeNone)
	body := make([]byte, 2000)
	limits := TransportLimits{ReceiveBufferSize: 8192, SendBufferSize: 8192, MaxMessageSize: 1000}
	client.SetLimits(limits)
	server.SetLimits(limits)
	err := NewChunkWriter(client).WriteSymmetric(&bytes.Buffer{}, MessageTypeFinal, 1, bytes.NewReader(body), len(body))
	assert.Equal(t, err, ua.BadRequestTooLarge)
	err = NewChunkWriter(server).WriteSymmetric(&bytes.Buffer{}, MessageTypeFinal, 1, bytes.NewReader(body), len(body))
	assert.Equal(t, err, ua.BadResponseTooLarge)

	client.SetLimits(TransportLimits{ReceiveBufferSize: 8192, SendBufferSize: 8192, MaxChunkCount: 2})
	w := NewChunkWriter(client)
	body = make([]byte, 3*w.MaxBodySize())
	err = w.WriteSymmetric(&bytes.Buffer{}, MessageTypeFinal, 1, bytes.NewReader(body), len(body))
	assert.Equal(t, err, ua.BadRequestTooLarge)
}

func TestAbort(t *testing.T) {
	client, server := channelPair(t, ua.SecurityPolicyURIBasic256Sha256, ua.MessageSecurityModeSign)
	var wire bytes.Buffer
	assert.NilError(t, NewChunkWriter(client).WriteAbort(&wire, 9, ua.BadEncodingLimitsExceeded, "too many chunks"))
	size, err := SplitMessage(wire.Bytes(), 0, 0)
	assert.NilError(t, err)
	assert.Equal(t, size, wire.Len())
	mt, id, err := NewChunkReader(server).ReadMessage(wire.Bytes(), &bytes.Buffer{})
	assert.Equal(t, err, ua.BadEncodingLimitsExceeded)
	assert.Equal(t, mt, MessageTypeAbort)
	assert.Equal(t, id, uint32(9))
}

func TestSplitMessage(t *testing.T) {
	client, _ := channelPair(t, ua.SecurityPolicyURINone, ua.MessageSecurityModeNone)
	client.SetLimits(TransportLimits{ReceiveBufferSize: 8192, SendBufferSize: 8192})
	w := NewChunkWriter(client)
	body := make([]byte, 2*w.MaxBodySize())
	var wire bytes.Buffer
	assert.NilError(t, w.WriteSymmetric(&wire, MessageTypeFinal, 1, bytes.NewReader(body), len(body)))
	buf := wire.Bytes()

	_, err := SplitMessage(buf[:len(buf)-1], 8192, 0)
	assert.Equal(t, err, ErrNeedMoreBytes)
	_, err = SplitMessage(buf[:5], 8192, 0)
	assert.Equal(t, err, ErrNeedMoreBytes)
	_, err = SplitMessage(buf, 4096, 0)
	assert.Equal(t, err, ua.BadTCPMessageTooLarge)
	_, err = SplitMessage(buf, 8192, 1)
	assert.Equal(t, err, ua.BadEncodingLimitsExceeded)
	bad := append([]byte{}, buf...)
	bad[3] = 'X'
	_, err = SplitMessage(bad, 8192, 0)
	assert.Equal(t, err, ua.BadTCPMessageTypeInvalid)
}

func TestReceiver(t *testing.T) {
	client, server := channelPair(t, ua.SecurityPolicyURIBasic256Sha256, ua.MessageSecurityModeSignAndEncrypt)
	w := NewChunkWriter(client)
	var wire bytes.Buffer
	bodies := [][]byte{make([]byte, 100), make([]byte, 3*w.MaxBodySize()), []byte("last")}
	for i, b := range bodies {
		rand.Read(b)
		assert.NilError(t, w.WriteSymmetric(&wire, MessageTypeFinal, uint32(i+1), bytes.NewReader(b), len(b)))
	}

	rc := NewReceiver(iotest.HalfReader(&wire), DefaultBufferSize)
	cr := NewChunkReader(server)
	for i, b := range bodies {
		msg, err := rc.Next()
		assert.NilError(t, err)
		var out bytes.Buffer
		_, id, err := cr.ReadMessage(msg, &out)
		assert.NilError(t, err)
		assert.Equal(t, id, uint32(i+1))
		assert.Assert(t, bytes.Equal(out.Bytes(), b))
	}
	_, err := rc.Next()
	assert.Equal(t, err, ua.BadConnectionClosed)
}

func TestOpenRoundTrip(t *testing.T) {
	cp, sp := providers(t)
	policy := mustPolicy(t, ua.SecurityPolicyURIBasic256Sha256)
	client, err := NewChannelState(policy, ua.MessageSecurityModeSignAndEncrypt, cp, sp.Certificate())
	assert.NilError(t, err)
	server, err := NewChannelState(policy, ua.MessageSecurityModeSignAndEncrypt, sp, nil)
	assert.NilError(t, err)

	req := make([]byte, 300)
	rand.Read(req)
	var wire bytes.Buffer
	assert.NilError(t, NewChunkWriter(client).WriteAsymmetric(&wire, 1, bytes.NewReader(req), len(req)))
	_, hdr, _, err := ParseAsymmetricHeader(wire.Bytes())
	assert.NilError(t, err)
	assert.Equal(t, hdr.SecurityPolicyURI, policy.PolicyURI())
	assert.Assert(t, bytes.Equal(hdr.ReceiverThumbprint, ua.Thumbprint(sp.Certificate())))

	var out bytes.Buffer
	mt, id, err := NewChunkReader(server).ReadMessage(wire.Bytes(), &out)
	assert.NilError(t, err)
	assert.Equal(t, mt, MessageTypeOpenFinal)
	assert.Equal(t, id, uint32(1))
	assert.Assert(t, bytes.Equal(out.Bytes(), req))
	assert.Assert(t, bytes.Equal(server.RemoteCertificate(), cp.Certificate()))

	res := []byte("open secure channel response")
	server.SetChannelID(11)
	wire.Reset()
	assert.NilError(t, NewChunkWriter(server).WriteAsymmetric(&wire, 1, bytes.NewReader(res), len(res)))
	out.Reset()
	_, _, err = NewChunkReader(client).ReadMessage(wire.Bytes(), &out)
	assert.NilError(t, err)
	assert.Assert(t, bytes.Equal(out.Bytes(), res))
}

func TestOpenRejectsWrongReceiver(t *testing.T) {
	cp, sp := providers(t)
	policy := mustPolicy(t, ua.SecurityPolicyURIBasic256Sha256)
	// the client encrypts for itself instead of the server.
	client, err := NewChannelState(policy, ua.MessageSecurityModeSignAndEncrypt, cp, cp.Certificate())
	assert.NilError(t, err)
	server, err := NewChannelState(policy, ua.MessageSecurityModeSignAndEncrypt, sp, nil)
	assert.NilError(t, err)
	var wire bytes.Buffer
	assert.NilError(t, NewChunkWriter(client).WriteAsymmetric(&wire, 1, bytes.NewReader([]byte("x")), 1))
	_, _, err = NewChunkReader(server).ReadMessage(wire.Bytes(), &bytes.Buffer{})
	assert.Equal(t, err, ua.BadSecurityChecksFailed)

	other, err := NewChannelState(mustPolicy(t, ua.SecurityPolicyURIBasic256), ua.MessageSecurityModeSignAndEncrypt, sp, nil)
	assert.NilError(t, err)
	_, _, err = NewChunkReader(other).ReadMessage(wire.Bytes(), &bytes.Buffer{})
	assert.Equal(t, err, ua.BadSecurityPolicyRejected)
}

func TestOpenNoneNeverSigns(t *testing.T) {
	cp, sp := providers(t)
	cc := &countingProvider{CertificateProvider: cp}
	sc := &countingProvider{CertificateProvider: sp}
	policy := mustPolicy(t, ua.SecurityPolicyURINone)
	client, err := NewChannelState(policy, ua.MessageSecurityModeNone, cc, sp.Certificate())
	assert.NilError(t, err)
	server, err := NewChannelState(policy, ua.MessageSecurityModeNone, sc, nil)
	assert.NilError(t, err)

	var wire bytes.Buffer
	req := []byte("issue")
	assert.NilError(t, NewChunkWriter(client).WriteAsymmetric(&wire, 1, bytes.NewReader(req), len(req)))
	_, hdr, _, err := ParseAsymmetricHeader(wire.Bytes())
	assert.NilError(t, err)
	assert.Assert(t, hdr.SenderCertificate == nil)
	assert.Assert(t, hdr.ReceiverThumbprint == nil)

	var out bytes.Buffer
	_, _, err = NewChunkReader(server).ReadMessage(wire.Bytes(), &out)
	assert.NilError(t, err)
	assert.Assert(t, bytes.Equal(out.Bytes(), req))
	assert.Equal(t, cc.signs+cc.decrypts+sc.signs+sc.decrypts, 0)
}
