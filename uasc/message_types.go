// Copyright 2021 Converter Systems LLC. All rights reserved.

package uasc

// MessageTypes are the first four bytes of a frame read as a little-endian uint32.
const (
	MessageTypeHello        uint32 = 'H' | 'E'<<8 | 'L'<<16 | 'F'<<24
	MessageTypeAck          uint32 = 'A' | 'C'<<8 | 'K'<<16 | 'F'<<24
	MessageTypeError        uint32 = 'E' | 'R'<<8 | 'R'<<16 | 'F'<<24
	MessageTypeReverseHello uint32 = 'R' | 'H'<<8 | 'E'<<16 | 'F'<<24
	MessageTypeOpenFinal    uint32 = 'O' | 'P'<<8 | 'N'<<16 | 'F'<<24
	MessageTypeCloseFinal   uint32 = 'C' | 'L'<<8 | 'O'<<16 | 'F'<<24
	MessageTypeFinal        uint32 = 'M' | 'S'<<8 | 'G'<<16 | 'F'<<24
	MessageTypeChunk        uint32 = 'M' | 'S'<<8 | 'G'<<16 | 'C'<<24
	MessageTypeAbort        uint32 = 'M' | 'S'<<8 | 'G'<<16 | 'A'<<24
	messageTypeTagMask      uint32 = 0x00FFFFFF
	messageTypeMessageTag   uint32 = MessageTypeFinal & messageTypeTagMask

	chunkTypeFinal              = 'F'
	chunkTypeIntermediate       = 'C'
	chunkTypeAbort              = 'A'
	frameHeaderSize             = 8
	symmetricHeaderSize         = 16
	sequenceHeaderSize          = 8
	minSymmetricChunkSize       = symmetricHeaderSize + sequenceHeaderSize
	sequenceNumberWrapThreshold = ^uint32(0) - 1024
	sequenceNumberWrapWindow    = 1024
)

// Defaults for the transport limits.
const (
	ProtocolVersion       uint32 = 0
	DefaultBufferSize     uint32 = 64 * 1024
	DefaultMaxMessageSize uint32 = 16 * 1024 * 1024
	DefaultMaxChunkCount  uint32 = 4096
	MinBufferSize         uint32 = 8192
)

func chunkTypeOf(messageType uint32) byte {
	return byte(messageType >> 24)
}
