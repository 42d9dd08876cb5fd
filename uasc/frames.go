// Copyright 2021 Converter Systems LLC. All rights reserved.

package uasc

import (
	"bytes"
	"encoding/binary"

	"github.com/awcullen/uastack/ua"
)

// frameContext encodes the transport frames and security headers, which carry no extension objects.
var frameContext = ua.NewEncodingContextWith([]string{"http://opcfoundation.org/UA/"}, []string{}, ua.NewTypeRegistry())

// Hello is the first message sent by a client.
type Hello struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
	EndpointURL       string
}

// Acknowledge is the answer of a server to a Hello.
type Acknowledge struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// ErrorMessage reports a fatal transport error. The connection is closed after sending it.
type ErrorMessage struct {
	Error  ua.StatusCode
	Reason string
}

// TransportLimits are the buffer and message limits of one side of a connection.
// A value of 0 means no limit.
type TransportLimits struct {
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// DefaultTransportLimits returns the limits used when none are configured.
func DefaultTransportLimits() TransportLimits {
	return TransportLimits{
		ReceiveBufferSize: DefaultBufferSize,
		SendBufferSize:    DefaultBufferSize,
		MaxMessageSize:    DefaultMaxMessageSize,
		MaxChunkCount:     DefaultMaxChunkCount,
	}
}

// minLimit returns the smaller limit, where 0 means no limit.
func minLimit(a, b uint32) uint32 {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	case a < b:
		return a
	default:
		return b
	}
}

// Negotiate returns the effective limits of a client, given its local limits and the Acknowledge of the server.
func Negotiate(local TransportLimits, ack *Acknowledge) TransportLimits {
	return TransportLimits{
		ReceiveBufferSize: minLimit(local.ReceiveBufferSize, ack.SendBufferSize),
		SendBufferSize:    minLimit(local.SendBufferSize, ack.ReceiveBufferSize),
		MaxMessageSize:    minLimit(local.MaxMessageSize, ack.MaxMessageSize),
		MaxChunkCount:     minLimit(local.MaxChunkCount, ack.MaxChunkCount),
	}
}

// NegotiateHello returns the effective limits of a server, given its local limits and the Hello of the client,
// together with the Acknowledge to send.
func NegotiateHello(local TransportLimits, hello *Hello) (TransportLimits, *Acknowledge) {
	limits := TransportLimits{
		ReceiveBufferSize: minLimit(local.ReceiveBufferSize, hello.SendBufferSize),
		SendBufferSize:    minLimit(local.SendBufferSize, hello.ReceiveBufferSize),
		MaxMessageSize:    minLimit(local.MaxMessageSize, hello.MaxMessageSize),
		MaxChunkCount:     minLimit(local.MaxChunkCount, hello.MaxChunkCount),
	}
	return limits, &Acknowledge{
		ProtocolVersion:   ProtocolVersion,
		ReceiveBufferSize: limits.ReceiveBufferSize,
		SendBufferSize:    limits.SendBufferSize,
		MaxMessageSize:    limits.MaxMessageSize,
		MaxChunkCount:     limits.MaxChunkCount,
	}
}

// Encode returns the Hello frame.
func (m *Hello) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 32+len(m.EndpointURL)))
	enc := ua.NewBinaryEncoder(buf, frameContext)
	enc.WriteUInt32(MessageTypeHello)
	enc.WriteUInt32(uint32(32 + len(m.EndpointURL)))
	enc.WriteUInt32(m.ProtocolVersion)
	enc.WriteUInt32(m.ReceiveBufferSize)
	enc.WriteUInt32(m.SendBufferSize)
	enc.WriteUInt32(m.MaxMessageSize)
	enc.WriteUInt32(m.MaxChunkCount)
	enc.WriteString(m.EndpointURL)
	return buf.Bytes()
}

// Encode returns the Acknowledge frame.
func (m *Acknowledge) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 28))
	enc := ua.NewBinaryEncoder(buf, frameContext)
	enc.WriteUInt32(MessageTypeAck)
	enc.WriteUInt32(28)
	enc.WriteUInt32(m.ProtocolVersion)
	enc.WriteUInt32(m.ReceiveBufferSize)
	enc.WriteUInt32(m.SendBufferSize)
	enc.WriteUInt32(m.MaxMessageSize)
	enc.WriteUInt32(m.MaxChunkCount)
	return buf.Bytes()
}

// Encode returns the Error frame.
func (m *ErrorMessage) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 16+len(m.Reason)))
	enc := ua.NewBinaryEncoder(buf, frameContext)
	enc.WriteUInt32(MessageTypeError)
	enc.WriteUInt32(uint32(16 + len(m.Reason)))
	enc.WriteUInt32(uint32(m.Error))
	enc.WriteString(m.Reason)
	return buf.Bytes()
}

// frameDecoder checks the header of a frame and returns a decoder positioned after it.
func frameDecoder(frame []byte, messageType uint32, minLength int) (*ua.BinaryDecoder, error) {
	if len(frame) < frameHeaderSize || len(frame) < minLength {
		return nil, ua.BadDecodingError
	}
	if binary.LittleEndian.Uint32(frame[0:4]) != messageType {
		return nil, ua.BadDecodingError
	}
	if int(binary.LittleEndian.Uint32(frame[4:8])) != len(frame) {
		return nil, ua.BadDecodingError
	}
	return ua.NewBinaryDecoder(bytes.NewReader(frame[frameHeaderSize:]), frameContext), nil
}

// DecodeHello decodes a Hello frame.
func DecodeHello(frame []byte) (*Hello, error) {
	dec, err := frameDecoder(frame, MessageTypeHello, 32)
	if err != nil {
		return nil, err
	}
	m := &Hello{}
	if err := dec.Decode(m); err != nil {
		return nil, ua.BadDecodingError
	}
	return m, nil
}

// DecodeAcknowledge decodes an Acknowledge frame.
func DecodeAcknowledge(frame []byte) (*Acknowledge, error) {
	dec, err := frameDecoder(frame, MessageTypeAck, 28)
	if err != nil {
		return nil, err
	}
	m := &Acknowledge{}
	if err := dec.Decode(m); err != nil {
		return nil, ua.BadDecodingError
	}
	return m, nil
}

// DecodeErrorMessage decodes an Error frame.
func DecodeErrorMessage(frame []byte) (*ErrorMessage, error) {
	dec, err := frameDecoder(frame, MessageTypeError, 16)
	if err != nil {
		return nil, err
	}
	m := &ErrorMessage{}
	if err := dec.ReadStatusCode(&m.Error); err != nil {
		return nil, ua.BadDecodingError
	}
	if err := dec.ReadString(&m.Reason); err != nil {
		return nil, ua.BadDecodingError
	}
	return m, nil
}

// MessageTypeOf returns the message type of a frame.
func MessageTypeOf(frame []byte) uint32 {
	if len(frame) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(frame[0:4])
}
