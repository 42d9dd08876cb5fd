// Copyright 2021 Converter Systems LLC. All rights reserved.

package uasc

import (
	"io"

	"github.com/awcullen/uastack/ua"
)

// Receiver accumulates bytes from a connection and returns one complete message at a time.
// It is used by a single reader goroutine.
type Receiver struct {
	r             io.Reader
	buf           []byte
	start, end    int
	maxChunkSize  uint32
	maxChunkCount uint32
}

// NewReceiver returns a Receiver for chunks no larger than receiveBufferSize.
func NewReceiver(r io.Reader, receiveBufferSize uint32) *Receiver {
	size := int(receiveBufferSize)
	if size < int(MinBufferSize) {
		size = int(MinBufferSize)
	}
	return &Receiver{r: r, buf: make([]byte, size), maxChunkSize: receiveBufferSize}
}

// SetLimits updates the limits after the handshake.
func (rc *Receiver) SetLimits(limits TransportLimits) {
	rc.maxChunkSize = limits.ReceiveBufferSize
	rc.maxChunkCount = limits.MaxChunkCount
}

// Next returns the chunks of the next message. The slice is valid until the next call.
func (rc *Receiver) Next() ([]byte, error) {
	for {
		n, err := SplitMessage(rc.buf[rc.start:rc.end], rc.maxChunkSize, rc.maxChunkCount)
		if err == nil {
			msg := rc.buf[rc.start : rc.start+n]
			rc.start += n
			return msg, nil
		}
		if err != ErrNeedMoreBytes {
			return nil, err
		}
		// compact, then grow if full.
		if rc.start > 0 {
			rc.end = copy(rc.buf, rc.buf[rc.start:rc.end])
			rc.start = 0
		}
		if rc.end == len(rc.buf) {
			grown := make([]byte, 2*len(rc.buf))
			copy(grown, rc.buf[:rc.end])
			rc.buf = grown
		}
		m, err := rc.r.Read(rc.buf[rc.end:])
		rc.end += m
		if err != nil {
			if m > 0 {
				continue
			}
			if err == io.EOF {
				return nil, ua.BadConnectionClosed
			}
			return nil, err
		}
	}
}
