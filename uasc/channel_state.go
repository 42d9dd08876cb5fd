// Copyright 2021 Converter Systems LLC. All rights reserved.

package uasc

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"hash"
	"sync"
	"time"

	"github.com/awcullen/uastack/ua"
)

// Keyset holds the symmetric keys of one direction of one token.
type Keyset struct {
	SignKey []byte
	EncKey  []byte
	IV      []byte
}

func (k Keyset) isZero() bool {
	return len(k.SignKey) == 0 && len(k.EncKey) == 0
}

func (k Keyset) hmac(policy ua.SecurityPolicy) hash.Hash {
	return policy.SymHMACFactory(k.SignKey)
}

func (k Keyset) block() (cipher.Block, error) {
	b, err := aes.NewCipher(k.EncKey)
	if err != nil {
		return nil, ua.BadSecurityChecksFailed
	}
	return b, nil
}

// DeriveKeysets derives the keys for sending (local) and receiving (remote).
func DeriveKeysets(policy ua.SecurityPolicy, localNonce, remoteNonce []byte) (local, remote Keyset) {
	sigKeySize := policy.SymSignatureKeySize()
	encKeySize := policy.SymEncryptionKeySize()
	blockSize := policy.SymEncryptionBlockSize()
	size := sigKeySize + encKeySize + blockSize
	split := func(b []byte) Keyset {
		return Keyset{
			SignKey: b[:sigKeySize],
			EncKey:  b[sigKeySize : sigKeySize+encKeySize],
			IV:      b[sigKeySize+encKeySize : size],
		}
	}
	local = split(ua.CalculatePSHA(remoteNonce, localNonce, size, policy.PolicyURI()))
	remote = split(ua.CalculatePSHA(localNonce, remoteNonce, size, policy.PolicyURI()))
	return local, remote
}

// ChannelState is the security state of a secure channel. Index 0 holds the current token, index 1 the previous one.
type ChannelState struct {
	sync.Mutex
	channelID      uint32
	tokenIDs       [2]uint32
	createdAt      time.Time
	lifetime       time.Duration
	policy         ua.SecurityPolicy
	mode           ua.MessageSecurityMode
	localNonce     []byte
	remoteNonce    []byte
	localKeys      [2]Keyset
	remoteKeys     [2]Keyset
	provider       ua.CertificateProvider
	remoteCert     []byte
	remoteKey      *rsa.PublicKey
	sendSeq        uint32
	recvSeq        uint32
	recvSeqValid   bool
	limits         TransportLimits
	tooLargeStatus ua.StatusCode
}

// NewChannelState returns the state of a channel that is not yet open. The remote certificate may be empty
// on the server side, where it is taken from the first OpenSecureChannel request.
func NewChannelState(policy ua.SecurityPolicy, mode ua.MessageSecurityMode, provider ua.CertificateProvider, remoteCert []byte) (*ChannelState, error) {
	if policy == nil {
		return nil, ua.BadSecurityPolicyRejected
	}
	if ua.IsSecure(policy) != (mode != ua.MessageSecurityModeNone) {
		return nil, ua.BadSecurityModeRejected
	}
	s := &ChannelState{
		policy:         policy,
		mode:           mode,
		provider:       provider,
		limits:         DefaultTransportLimits(),
		tooLargeStatus: ua.BadRequestTooLarge,
	}
	if ua.IsSecure(policy) {
		if provider == nil {
			return nil, ua.BadSecurityChecksFailed
		}
		if len(remoteCert) > 0 {
			if err := s.setRemoteCertificate(remoteCert); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (s *ChannelState) setRemoteCertificate(cert []byte) error {
	pub, err := ua.PublicKeyOf(cert)
	if err != nil {
		return err
	}
	s.remoteCert = cert
	s.remoteKey = pub
	return nil
}

// SetSecurityMode sets the mode requested in the first OpenSecureChannel request. It is called on the
// server before any symmetric chunk is read or written.
func (s *ChannelState) SetSecurityMode(mode ua.MessageSecurityMode) error {
	if ua.IsSecure(s.policy) != (mode != ua.MessageSecurityModeNone) || mode == ua.MessageSecurityModeInvalid {
		return ua.BadSecurityModeRejected
	}
	s.Lock()
	s.mode = mode
	s.Unlock()
	return nil
}

// SetTooLargeStatus sets the status returned when a message exceeds the limits of the peer.
func (s *ChannelState) SetTooLargeStatus(code ua.StatusCode) {
	s.Lock()
	s.tooLargeStatus = code
	s.Unlock()
}

// SetLimits sets the negotiated transport limits.
func (s *ChannelState) SetLimits(limits TransportLimits) {
	s.Lock()
	s.limits = limits
	s.Unlock()
}

// Limits returns the negotiated transport limits.
func (s *ChannelState) Limits() TransportLimits {
	s.Lock()
	defer s.Unlock()
	return s.limits
}

// ChannelID returns the id assigned by the server.
func (s *ChannelState) ChannelID() uint32 {
	s.Lock()
	defer s.Unlock()
	return s.channelID
}

// SetChannelID sets the channel id before the first token is issued.
func (s *ChannelState) SetChannelID(id uint32) {
	s.Lock()
	s.channelID = id
	s.Unlock()
}

// TokenID returns the id of the current token.
func (s *ChannelState) TokenID() uint32 {
	s.Lock()
	defer s.Unlock()
	return s.tokenIDs[0]
}

// SecurityPolicy returns the policy of the channel.
func (s *ChannelState) SecurityPolicy() ua.SecurityPolicy { return s.policy }

// SecurityMode returns the mode of the channel.
func (s *ChannelState) SecurityMode() ua.MessageSecurityMode { return s.mode }

// CertificateProvider returns the local certificate provider, or nil.
func (s *ChannelState) CertificateProvider() ua.CertificateProvider { return s.provider }

// LocalCertificate returns the local certificate, or nil.
func (s *ChannelState) LocalCertificate() []byte {
	if s.provider == nil {
		return nil
	}
	return s.provider.Certificate()
}

// RemoteCertificate returns the certificate of the peer, or nil.
func (s *ChannelState) RemoteCertificate() []byte {
	s.Lock()
	defer s.Unlock()
	return s.remoteCert
}

// RemotePublicKey returns the public key of the peer, or nil.
func (s *ChannelState) RemotePublicKey() *rsa.PublicKey {
	s.Lock()
	defer s.Unlock()
	return s.remoteKey
}

// LocalNonce returns the nonce of the current token sent by this side.
func (s *ChannelState) LocalNonce() []byte {
	s.Lock()
	defer s.Unlock()
	return s.localNonce
}

// RemoteNonce returns the nonce of the current token sent by the peer.
func (s *ChannelState) RemoteNonce() []byte {
	s.Lock()
	defer s.Unlock()
	return s.remoteNonce
}

// InstallToken makes the token current and keeps the previous one for messages still in flight.
func (s *ChannelState) InstallToken(channelID, tokenID uint32, createdAt time.Time, lifetime time.Duration, localNonce, remoteNonce []byte) {
	var local, remote Keyset
	if s.mode != ua.MessageSecurityModeNone {
		local, remote = DeriveKeysets(s.policy, localNonce, remoteNonce)
	}
	s.Lock()
	defer s.Unlock()
	s.channelID = channelID
	s.tokenIDs[1] = s.tokenIDs[0]
	s.localKeys[1] = s.localKeys[0]
	s.remoteKeys[1] = s.remoteKeys[0]
	s.tokenIDs[0] = tokenID
	s.localKeys[0] = local
	s.remoteKeys[0] = remote
	s.createdAt = createdAt
	s.lifetime = lifetime
	s.localNonce = localNonce
	s.remoteNonce = remoteNonce
}

// TokenExpiresAt returns the time the current token expires.
func (s *ChannelState) TokenExpiresAt() time.Time {
	s.Lock()
	defer s.Unlock()
	return s.createdAt.Add(s.lifetime)
}

// RenewAt returns the time at the given fraction of the lifetime of the current token.
func (s *ChannelState) RenewAt(fraction float64) time.Time {
	s.Lock()
	defer s.Unlock()
	return s.createdAt.Add(time.Duration(float64(s.lifetime) * fraction))
}

// NextSequenceNumber returns the next sequence number to send. It wraps to 1 after MaxUint32-1024.
func (s *ChannelState) NextSequenceNumber() uint32 {
	s.Lock()
	defer s.Unlock()
	return s.nextSequenceNumber()
}

func (s *ChannelState) nextSequenceNumber() uint32 {
	if s.sendSeq >= sequenceNumberWrapThreshold {
		s.sendSeq = 0
	}
	s.sendSeq++
	return s.sendSeq
}

// CheckSequenceNumber checks a received sequence number. A number must be larger than the last one,
// unless the sender wrapped around.
func (s *ChannelState) CheckSequenceNumber(n uint32) error {
	s.Lock()
	defer s.Unlock()
	return s.checkSequenceNumber(n)
}

func (s *ChannelState) checkSequenceNumber(n uint32) error {
	if n == 0 {
		return ua.BadSequenceNumberInvalid
	}
	if !s.recvSeqValid {
		s.recvSeq = n
		s.recvSeqValid = true
		return nil
	}
	if n > s.recvSeq {
		s.recvSeq = n
		return nil
	}
	if s.recvSeq >= sequenceNumberWrapThreshold && n < sequenceNumberWrapWindow {
		s.recvSeq = n
		return nil
	}
	return ua.BadSequenceNumberInvalid
}

// sendSnapshot returns what a writer needs to secure the chunks of one message.
type sendSnapshot struct {
	channelID uint32
	tokenID   uint32
	keys      Keyset
	limits    TransportLimits
	tooLarge  ua.StatusCode
}

func (s *ChannelState) snapshot() sendSnapshot {
	s.Lock()
	defer s.Unlock()
	return sendSnapshot{s.channelID, s.tokenIDs[0], s.localKeys[0], s.limits, s.tooLargeStatus}
}

// remoteKeysFor returns the receive keys of a token, trying the current token first.
func (s *ChannelState) remoteKeysFor(channelID, tokenID uint32) (Keyset, error) {
	s.Lock()
	defer s.Unlock()
	if channelID != s.channelID {
		return Keyset{}, ua.BadTCPSecureChannelUnknown
	}
	if tokenID == s.tokenIDs[0] && tokenID != 0 {
		return s.remoteKeys[0], nil
	}
	if tokenID == s.tokenIDs[1] && tokenID != 0 {
		return s.remoteKeys[1], nil
	}
	return Keyset{}, ua.BadSecureChannelTokenUnknown
}

// adoptRemoteCertificate takes the sender certificate of an OpenSecureChannel request on the server,
// or checks it against the known certificate on the client.
func (s *ChannelState) adoptRemoteCertificate(cert []byte) error {
	s.Lock()
	defer s.Unlock()
	if len(s.remoteCert) == 0 {
		return s.setRemoteCertificate(cert)
	}
	if !bytes.Equal(s.remoteCert, cert) {
		return ua.BadCertificateInvalid
	}
	return nil
}

// Reset clears the state after a disconnect.
func (s *ChannelState) Reset() {
	s.Lock()
	defer s.Unlock()
	s.channelID = 0
	s.tokenIDs = [2]uint32{}
	s.localKeys = [2]Keyset{}
	s.remoteKeys = [2]Keyset{}
	s.createdAt = time.Time{}
	s.lifetime = 0
	s.localNonce = nil
	s.remoteNonce = nil
	s.sendSeq = 0
	s.recvSeq = 0
	s.recvSeqValid = false
}
