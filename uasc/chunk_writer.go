// Copyright 2021 Converter Systems LLC. All rights reserved.

package uasc

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"io"
	"sync"

	"github.com/awcullen/uastack/ua"
)

var chunkPool = sync.Pool{
	New: func() any {
		b := make([]byte, DefaultBufferSize)
		return &b
	},
}

// getChunkBuffer returns a buffer of at least size bytes.
func getChunkBuffer(size int) (*[]byte, []byte) {
	p := chunkPool.Get().(*[]byte)
	if len(*p) < size {
		b := make([]byte, size)
		p = &b
	}
	return p, (*p)[:size]
}

// ChunkWriter splits messages into secured chunks.
type ChunkWriter struct {
	state *ChannelState
}

// NewChunkWriter returns a writer that secures chunks with the keys of the channel state.
// Callers serialize writes, so the sequence numbers are in wire order.
func NewChunkWriter(state *ChannelState) *ChunkWriter {
	return &ChunkWriter{state: state}
}

// chunkPlan holds the sizes of a symmetric chunk.
type chunkPlan struct {
	signatureSize     int
	blockSize         int
	paddingHeaderSize int
	maxBodySize       int
}

func (cw *ChunkWriter) planSymmetric(sendBufferSize int) chunkPlan {
	p := chunkPlan{blockSize: 1}
	switch cw.state.mode {
	case ua.MessageSecurityModeSignAndEncrypt:
		p.signatureSize = cw.state.policy.SymSignatureSize()
		p.blockSize = cw.state.policy.SymEncryptionBlockSize()
		p.paddingHeaderSize = 1
	case ua.MessageSecurityModeSign:
		p.signatureSize = cw.state.policy.SymSignatureSize()
	}
	p.maxBodySize = (((sendBufferSize - symmetricHeaderSize) / p.blockSize) * p.blockSize) - sequenceHeaderSize - p.paddingHeaderSize - p.signatureSize
	return p
}

// MaxBodySize returns the largest body that fits one symmetric chunk.
func (cw *ChunkWriter) MaxBodySize() int {
	return cw.planSymmetric(int(cw.state.Limits().SendBufferSize)).maxBodySize
}

// WriteSymmetric writes a MSG or CLO message as one or more chunks.
func (cw *ChunkWriter) WriteSymmetric(w io.Writer, messageType uint32, requestID uint32, body io.Reader, bodySize int) error {
	snap := cw.state.snapshot()
	plan := cw.planSymmetric(int(snap.limits.SendBufferSize))
	if plan.maxBodySize <= 0 {
		return ua.BadTCPMessageTooLarge
	}
	if i := int(snap.limits.MaxMessageSize); i > 0 && bodySize > i {
		return snap.tooLarge
	}
	chunkCount := (bodySize + plan.maxBodySize - 1) / plan.maxBodySize
	if chunkCount == 0 {
		chunkCount = 1
	}
	if i := int(snap.limits.MaxChunkCount); i > 0 && chunkCount > i {
		return snap.tooLarge
	}
	if messageType == MessageTypeCloseFinal && chunkCount > 1 {
		return snap.tooLarge
	}

	var mac = snap.keys.hmac(cw.state.policy)
	var block cipher.Block
	if cw.state.mode == ua.MessageSecurityModeSignAndEncrypt {
		b, err := snap.keys.block()
		if err != nil {
			return err
		}
		block = b
	}

	p, buf := getChunkBuffer(int(snap.limits.SendBufferSize))
	defer chunkPool.Put(p)

	remaining := bodySize
	for i := 0; i < chunkCount; i++ {
		bodyLen := remaining
		if bodyLen > plan.maxBodySize {
			bodyLen = plan.maxBodySize
		}
		paddingSize := 0
		if plan.paddingHeaderSize > 0 {
			paddingSize = (plan.blockSize - ((sequenceHeaderSize + bodyLen + plan.paddingHeaderSize + plan.signatureSize) % plan.blockSize)) % plan.blockSize
		}
		chunkSize := symmetricHeaderSize + sequenceHeaderSize + bodyLen + plan.paddingHeaderSize + paddingSize + plan.signatureSize

		mt := messageType
		if messageType == MessageTypeFinal && i < chunkCount-1 {
			mt = MessageTypeChunk
		}
		binary.LittleEndian.PutUint32(buf[0:4], mt)
		binary.LittleEndian.PutUint32(buf[4:8], uint32(chunkSize))
		binary.LittleEndian.PutUint32(buf[8:12], snap.channelID)
		binary.LittleEndian.PutUint32(buf[12:16], snap.tokenID)
		binary.LittleEndian.PutUint32(buf[16:20], cw.state.NextSequenceNumber())
		binary.LittleEndian.PutUint32(buf[20:24], requestID)
		pos := minSymmetricChunkSize
		if _, err := io.ReadFull(body, buf[pos:pos+bodyLen]); err != nil {
			return ua.BadEncodingError
		}
		pos += bodyLen
		remaining -= bodyLen

		// padding
		if plan.paddingHeaderSize > 0 {
			paddingByte := byte(paddingSize & 0xFF)
			for j := 0; j <= paddingSize; j++ {
				buf[pos] = paddingByte
				pos++
			}
		}

		// sign
		if mac != nil && plan.signatureSize > 0 {
			mac.Reset()
			mac.Write(buf[:pos])
			pos += copy(buf[pos:], mac.Sum(nil))
		}
		if pos != chunkSize {
			return ua.BadEncodingError
		}

		// encrypt
		if block != nil {
			span := buf[symmetricHeaderSize:chunkSize]
			if len(span)%block.BlockSize() != 0 {
				return ua.BadEncodingError
			}
			cipher.NewCBCEncrypter(block, snap.keys.IV).CryptBlocks(span, span)
		}

		if _, err := w.Write(buf[:chunkSize]); err != nil {
			return err
		}
	}
	return nil
}

// WriteAbort writes a MSGA chunk that tells the peer to discard the chunks of the request.
func (cw *ChunkWriter) WriteAbort(w io.Writer, requestID uint32, code ua.StatusCode, reason string) error {
	payload := make([]byte, 8+len(reason))
	binary.LittleEndian.PutUint32(payload[0:4], uint32(code))
	if reason == "" {
		binary.LittleEndian.PutUint32(payload[4:8], 0xFFFFFFFF)
	} else {
		binary.LittleEndian.PutUint32(payload[4:8], uint32(len(reason)))
		copy(payload[8:], reason)
	}
	return cw.WriteSymmetric(w, MessageTypeAbort, requestID, bytes.NewReader(payload), len(payload))
}

// WriteAsymmetric writes an OpenSecureChannel message as a single OPN chunk.
func (cw *ChunkWriter) WriteAsymmetric(w io.Writer, requestID uint32, body io.Reader, bodySize int) error {
	s := cw.state
	snap := s.snapshot()
	secure := s.mode != ua.MessageSecurityModeNone && ua.IsSecure(s.policy)
	uri := s.policy.PolicyURI()
	sendBufferSize := int(snap.limits.SendBufferSize)

	var (
		localCert           []byte
		thumbprint          []byte
		plainHeaderSize     int
		signatureSize       int
		paddingHeaderSize   int
		cipherTextBlockSize = 1
		plainTextBlockSize  = 1
		maxBodySize         int
	)
	if secure {
		remoteKey := s.RemotePublicKey()
		if remoteKey == nil || s.provider == nil {
			return ua.BadSecurityChecksFailed
		}
		localCert = s.provider.Certificate()
		thumbprint = ua.Thumbprint(s.RemoteCertificate())
		plainHeaderSize = 16 + len(uri) + 28 + len(localCert)
		signatureSize = s.provider.PublicKeySize()
		cipherTextBlockSize = remoteKey.Size()
		plainTextBlockSize = cipherTextBlockSize - s.policy.RSAPaddingSize()
		paddingHeaderSize = 1
		if cipherTextBlockSize > 256 {
			paddingHeaderSize = 2
		}
		maxBodySize = (((sendBufferSize - plainHeaderSize) / cipherTextBlockSize) * plainTextBlockSize) - sequenceHeaderSize - paddingHeaderSize - signatureSize
	} else {
		plainHeaderSize = 16 + len(uri) + 8
		maxBodySize = sendBufferSize - plainHeaderSize - sequenceHeaderSize
	}
	if bodySize > maxBodySize {
		return snap.tooLarge
	}

	paddingSize := 0
	if secure {
		paddingSize = (plainTextBlockSize - ((sequenceHeaderSize + bodySize + paddingHeaderSize + signatureSize) % plainTextBlockSize)) % plainTextBlockSize
	}
	plainSize := plainHeaderSize + sequenceHeaderSize + bodySize + paddingHeaderSize + paddingSize + signatureSize
	chunkSize := plainSize
	if secure {
		chunkSize = plainHeaderSize + ((plainSize-plainHeaderSize)/plainTextBlockSize)*cipherTextBlockSize
	}

	p, buf := getChunkBuffer(plainSize)
	defer chunkPool.Put(p)

	// header
	binary.LittleEndian.PutUint32(buf[0:4], MessageTypeOpenFinal)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(chunkSize))
	binary.LittleEndian.PutUint32(buf[8:12], snap.channelID)
	pos := 12
	pos = putByteString(buf, pos, []byte(uri))
	pos = putByteString(buf, pos, localCert)
	pos = putByteString(buf, pos, thumbprint)
	if pos != plainHeaderSize {
		return ua.BadEncodingError
	}

	// sequence header
	binary.LittleEndian.PutUint32(buf[pos:], s.NextSequenceNumber())
	binary.LittleEndian.PutUint32(buf[pos+4:], requestID)
	pos += sequenceHeaderSize

	// body
	if _, err := io.ReadFull(body, buf[pos:pos+bodySize]); err != nil {
		return ua.BadEncodingError
	}
	pos += bodySize

	if !secure {
		_, err := w.Write(buf[:pos])
		return err
	}

	// padding
	paddingByte := byte(paddingSize & 0xFF)
	for i := 0; i <= paddingSize; i++ {
		buf[pos] = paddingByte
		pos++
	}
	if paddingHeaderSize == 2 {
		buf[pos] = byte((paddingSize >> 8) & 0xFF)
		pos++
	}

	// sign
	signature, err := s.provider.Sign(s.policy, buf[:pos])
	if err != nil {
		return err
	}
	if len(signature) != signatureSize {
		return ua.BadEncodingError
	}
	pos += copy(buf[pos:], signature)
	if pos != plainSize {
		return ua.BadEncodingError
	}

	// encrypt
	remoteKey := s.RemotePublicKey()
	ep, out := getChunkBuffer(chunkSize)
	defer chunkPool.Put(ep)
	copy(out, buf[:plainHeaderSize])
	jj := plainHeaderSize
	for ii := plainHeaderSize; ii < plainSize; ii += plainTextBlockSize {
		cipherText, err := s.policy.RSAEncrypt(remoteKey, buf[ii:ii+plainTextBlockSize])
		if err != nil {
			return err
		}
		if len(cipherText) != cipherTextBlockSize {
			return ua.BadEncodingError
		}
		jj += copy(out[jj:], cipherText)
	}
	if jj != chunkSize {
		return ua.BadEncodingError
	}
	binary.LittleEndian.PutUint32(out[4:8], uint32(jj))
	_, err = w.Write(out[:jj])
	return err
}

// putByteString writes a length-prefixed byte string, or a null one for nil or empty input.
func putByteString(buf []byte, pos int, b []byte) int {
	if len(b) == 0 {
		binary.LittleEndian.PutUint32(buf[pos:], 0xFFFFFFFF)
		return pos + 4
	}
	binary.LittleEndian.PutUint32(buf[pos:], uint32(len(b)))
	return pos + 4 + copy(buf[pos+4:], b)
}
