// Package buffers provides reusable copy buffers for downloads.
package buffers

import (
	"sync"
	"sync/atomic"

	"github.com/ncopds/ncopds/internal/constants"
)

var allocations int64

var copyPool = &sync.Pool{
	New: func() interface{} {
		atomic.AddInt64(&allocations, 1)
		buf := make([]byte, constants.DownloadBufferSize)
		return &buf
	},
}

// GetCopyBuffer retrieves a download buffer from the pool.
// Return it with PutCopyBuffer when done.
//
//	buf := buffers.GetCopyBuffer()
//	defer buffers.PutCopyBuffer(buf)
func GetCopyBuffer() *[]byte {
	return copyPool.Get().(*[]byte)
}

// PutCopyBuffer returns a buffer to the pool. Buffers of the wrong size are
// dropped.
func PutCopyBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.DownloadBufferSize {
		copyPool.Put(buf)
	}
}

// Allocations reports how many buffers the pool has created.
func Allocations() int64 {
	return atomic.LoadInt64(&allocations)
}
