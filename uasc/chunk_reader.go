// Copyright 2021 Converter Systems LLC. All rights reserved.

package uasc

import (
	"bytes"
	"crypto/cipher"
	"crypto/hmac"
	"encoding/binary"
	"io"

	"github.com/awcullen/uastack/ua"
	"github.com/pkg/errors"
)

// ErrNeedMoreBytes is returned by SplitMessage when the buffer does not yet hold a complete message.
var ErrNeedMoreBytes = errors.New("uasc: need more bytes")

// SplitMessage scans consecutive chunks at the start of buf and returns the length of the first
// complete message, ending with a final or abort chunk.
func SplitMessage(buf []byte, maxChunkSize, maxChunkCount uint32) (int, error) {
	off := 0
	count := uint32(0)
	for {
		if len(buf)-off < frameHeaderSize {
			return 0, ErrNeedMoreBytes
		}
		messageType := binary.LittleEndian.Uint32(buf[off : off+4])
		length := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		if length < frameHeaderSize {
			return 0, ua.BadDecodingError
		}
		if maxChunkSize > 0 && length > maxChunkSize {
			return 0, ua.BadTCPMessageTooLarge
		}
		count++
		if maxChunkCount > 0 && count > maxChunkCount {
			return 0, ua.BadEncodingLimitsExceeded
		}
		if len(buf)-off < int(length) {
			return 0, ErrNeedMoreBytes
		}
		off += int(length)
		switch chunkTypeOf(messageType) {
		case chunkTypeFinal, chunkTypeAbort:
			return off, nil
		case chunkTypeIntermediate:
			if messageType&messageTypeTagMask != messageTypeMessageTag {
				return 0, ua.BadTCPMessageTypeInvalid
			}
		default:
			return 0, ua.BadTCPMessageTypeInvalid
		}
	}
}

// AsymmetricHeader is the security header of an OPN chunk.
type AsymmetricHeader struct {
	SecurityPolicyURI  string
	SenderCertificate  []byte
	ReceiverThumbprint []byte
}

// ParseAsymmetricHeader reads the channel id and security header of an OPN chunk.
func ParseAsymmetricHeader(chunk []byte) (channelID uint32, hdr AsymmetricHeader, size int, err error) {
	if len(chunk) < 12 || MessageTypeOf(chunk) != MessageTypeOpenFinal {
		return 0, hdr, 0, ua.BadDecodingError
	}
	channelID = binary.LittleEndian.Uint32(chunk[8:12])
	r := bytes.NewReader(chunk[12:])
	dec := ua.NewBinaryDecoder(r, frameContext)
	if err := dec.ReadString(&hdr.SecurityPolicyURI); err != nil {
		return 0, hdr, 0, ua.BadDecodingError
	}
	if err := dec.ReadByteArray(&hdr.SenderCertificate); err != nil {
		return 0, hdr, 0, ua.BadDecodingError
	}
	if err := dec.ReadByteArray(&hdr.ReceiverThumbprint); err != nil {
		return 0, hdr, 0, ua.BadDecodingError
	}
	return channelID, hdr, len(chunk) - r.Len(), nil
}

// ChunkReader removes the security of chunks and reassembles messages.
type ChunkReader struct {
	state *ChannelState
}

// NewChunkReader returns a reader that verifies chunks with the keys of the channel state.
func NewChunkReader(state *ChannelState) *ChunkReader {
	return &ChunkReader{state: state}
}

// Unsecure decrypts and verifies one symmetric chunk in place. It returns the request id and the body.
func (cr *ChunkReader) Unsecure(chunk []byte) (uint32, []byte, error) {
	s := cr.state
	if len(chunk) < minSymmetricChunkSize {
		return 0, nil, ua.BadDecodingError
	}
	if int(binary.LittleEndian.Uint32(chunk[4:8])) != len(chunk) {
		return 0, nil, ua.BadDecodingError
	}
	channelID := binary.LittleEndian.Uint32(chunk[8:12])
	tokenID := binary.LittleEndian.Uint32(chunk[12:16])
	keys, err := s.remoteKeysFor(channelID, tokenID)
	if err != nil {
		return 0, nil, err
	}

	signatureSize := 0
	paddingHeaderSize := 0
	switch s.mode {
	case ua.MessageSecurityModeSignAndEncrypt:
		signatureSize = s.policy.SymSignatureSize()
		paddingHeaderSize = 1
		block, err := keys.block()
		if err != nil {
			return 0, nil, err
		}
		span := chunk[symmetricHeaderSize:]
		if len(span)%block.BlockSize() != 0 {
			return 0, nil, ua.BadSecurityChecksFailed
		}
		cipher.NewCBCDecrypter(block, keys.IV).CryptBlocks(span, span)
	case ua.MessageSecurityModeSign:
		signatureSize = s.policy.SymSignatureSize()
	}

	// verify
	end := len(chunk) - signatureSize
	if end < minSymmetricChunkSize+paddingHeaderSize {
		return 0, nil, ua.BadSecurityChecksFailed
	}
	if signatureSize > 0 {
		mac := keys.hmac(s.policy)
		mac.Write(chunk[:end])
		if !hmac.Equal(mac.Sum(nil), chunk[end:]) {
			return 0, nil, ua.BadSecurityChecksFailed
		}
	}

	// padding
	if paddingHeaderSize > 0 {
		paddingSize := int(chunk[end-1])
		start := end - paddingHeaderSize - paddingSize
		if start < minSymmetricChunkSize {
			return 0, nil, ua.BadSecurityChecksFailed
		}
		for _, b := range chunk[start : end-1] {
			if int(b) != paddingSize {
				return 0, nil, ua.BadSecurityChecksFailed
			}
		}
		end = start
	}

	// sequence header
	seq := binary.LittleEndian.Uint32(chunk[16:20])
	requestID := binary.LittleEndian.Uint32(chunk[20:24])
	if err := s.CheckSequenceNumber(seq); err != nil {
		return 0, nil, err
	}
	return requestID, chunk[minSymmetricChunkSize:end], nil
}

// UnsecureOpen decrypts and verifies an OPN chunk in place. On the server, the sender certificate of the
// first request becomes the remote certificate of the channel.
func (cr *ChunkReader) UnsecureOpen(chunk []byte) (uint32, AsymmetricHeader, []byte, error) {
	s := cr.state
	if len(chunk) < 12 || int(binary.LittleEndian.Uint32(chunk[4:8])) != len(chunk) {
		return 0, AsymmetricHeader{}, nil, ua.BadDecodingError
	}
	_, hdr, plainHeaderSize, err := ParseAsymmetricHeader(chunk)
	if err != nil {
		return 0, hdr, nil, err
	}
	if hdr.SecurityPolicyURI != s.policy.PolicyURI() {
		return 0, hdr, nil, ua.BadSecurityPolicyRejected
	}
	secure := s.mode != ua.MessageSecurityModeNone && ua.IsSecure(s.policy)
	end := len(chunk)
	if secure {
		if s.provider == nil {
			return 0, hdr, nil, ua.BadSecurityChecksFailed
		}
		if !bytes.Equal(hdr.ReceiverThumbprint, ua.Thumbprint(s.provider.Certificate())) {
			return 0, hdr, nil, ua.BadSecurityChecksFailed
		}
		if err := s.adoptRemoteCertificate(hdr.SenderCertificate); err != nil {
			return 0, hdr, nil, err
		}
		remoteKey := s.RemotePublicKey()

		// decrypt with local private key.
		cipherTextBlockSize := s.provider.PublicKeySize()
		if cipherTextBlockSize == 0 || (len(chunk)-plainHeaderSize)%cipherTextBlockSize != 0 {
			return 0, hdr, nil, ua.BadSecurityChecksFailed
		}
		jj := plainHeaderSize
		for ii := plainHeaderSize; ii < len(chunk); ii += cipherTextBlockSize {
			plainText, err := s.provider.Decrypt(s.policy, chunk[ii:ii+cipherTextBlockSize])
			if err != nil {
				return 0, hdr, nil, ua.BadSecurityChecksFailed
			}
			jj += copy(chunk[jj:], plainText)
		}
		end = jj

		// verify with remote public key.
		signatureSize := remoteKey.Size()
		sigStart := end - signatureSize
		if sigStart < plainHeaderSize+sequenceHeaderSize {
			return 0, hdr, nil, ua.BadSecurityChecksFailed
		}
		if err := s.policy.RSAVerify(remoteKey, chunk[:sigStart], chunk[sigStart:end]); err != nil {
			return 0, hdr, nil, ua.BadSecurityChecksFailed
		}

		// padding
		paddingHeaderSize := 1
		if cipherTextBlockSize > 256 {
			paddingHeaderSize = 2
		}
		var paddingSize int
		if paddingHeaderSize == 2 {
			paddingSize = int(binary.LittleEndian.Uint16(chunk[sigStart-2 : sigStart]))
		} else {
			paddingSize = int(chunk[sigStart-1])
		}
		start := sigStart - paddingHeaderSize - paddingSize
		if start < plainHeaderSize+sequenceHeaderSize {
			return 0, hdr, nil, ua.BadSecurityChecksFailed
		}
		end = start
	}

	// sequence header
	seq := binary.LittleEndian.Uint32(chunk[plainHeaderSize : plainHeaderSize+4])
	requestID := binary.LittleEndian.Uint32(chunk[plainHeaderSize+4 : plainHeaderSize+8])
	if end < plainHeaderSize+sequenceHeaderSize {
		return 0, hdr, nil, ua.BadDecodingError
	}
	if err := s.CheckSequenceNumber(seq); err != nil {
		return 0, hdr, nil, err
	}
	return requestID, hdr, chunk[plainHeaderSize+sequenceHeaderSize : end], nil
}

// ReadMessage unsecures the chunks of one message, as returned by SplitMessage, and writes the
// body to w. An abort chunk returns the status sent by the peer.
func (cr *ChunkReader) ReadMessage(buf []byte, w io.Writer) (messageType uint32, requestID uint32, err error) {
	limits := cr.state.Limits()
	var bodySize, count int
	for off := 0; off < len(buf); {
		if len(buf)-off < frameHeaderSize {
			return 0, 0, ua.BadDecodingError
		}
		mt := binary.LittleEndian.Uint32(buf[off : off+4])
		length := int(binary.LittleEndian.Uint32(buf[off+4 : off+8]))
		if length < frameHeaderSize || off+length > len(buf) {
			return 0, 0, ua.BadDecodingError
		}
		chunk := buf[off : off+length]
		off += length
		count++
		if i := int(limits.MaxChunkCount); i > 0 && count > i {
			return 0, 0, ua.BadEncodingLimitsExceeded
		}

		var id uint32
		var body []byte
		switch mt {
		case MessageTypeOpenFinal:
			if count > 1 {
				return 0, 0, ua.BadDecodingError
			}
			id, _, body, err = cr.UnsecureOpen(chunk)
		case MessageTypeFinal, MessageTypeChunk, MessageTypeAbort, MessageTypeCloseFinal:
			id, body, err = cr.Unsecure(chunk)
		default:
			return 0, 0, ua.BadTCPMessageTypeInvalid
		}
		if err != nil {
			return 0, 0, err
		}
		if count > 1 && id != requestID {
			return 0, 0, ua.BadDecodingError
		}
		requestID = id
		messageType = mt
		if mt == MessageTypeAbort {
			return mt, requestID, decodeAbort(body)
		}
		bodySize += len(body)
		if i := int(limits.MaxMessageSize); i > 0 && bodySize > i {
			return 0, 0, ua.BadEncodingLimitsExceeded
		}
		if _, err := w.Write(body); err != nil {
			return 0, 0, ua.BadDecodingError
		}
	}
	if count == 0 {
		return 0, 0, ua.BadDecodingError
	}
	if messageType == MessageTypeChunk {
		return 0, 0, ua.BadDecodingError
	}
	return messageType, requestID, nil
}

func decodeAbort(body []byte) error {
	if len(body) < 4 {
		return ua.BadDecodingError
	}
	code := ua.StatusCode(binary.LittleEndian.Uint32(body[0:4]))
	if code == ua.Good {
		return ua.BadRequestInterrupted
	}
	return code
}
