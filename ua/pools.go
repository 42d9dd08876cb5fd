// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import (
	"sync"

	"github.com/djherbis/buffer"
)

const defaultBufferSize = 64 * 1024

// bytesPool is a pool of byte slices
var bytesPool = sync.Pool{New: func() any { s := make([]byte, defaultBufferSize); return &s }}

// bufferPool is a pool of capacity buffers
var bufferPool = buffer.NewMemPoolAt(int64(defaultBufferSize))

// NewPartitionBuffer returns an empty buffer whose storage is drawn from a shared pool.
// Call Reset when done to return the storage.
func NewPartitionBuffer() buffer.BufferAt {
	return buffer.NewPartitionAt(bufferPool)
}
