// Package pool reduces per-query garbage by reusing packet.Buffer values
// across the query/response lifecycle, instead of allocating a fresh one
// for every datagram a busy resolver handles.
package pool

import (
	"sync"

	"github.com/specCon18/Speculator-DNS/internal/packet"
)

// BufferPool is a sync.Pool of *packet.Buffer.
var BufferPool = sync.Pool{
	New: func() interface{} {
		return packet.NewBuffer()
	},
}

// GetBuffer returns a zeroed, cursor-reset buffer from the pool.
func GetBuffer() *packet.Buffer {
	b := BufferPool.Get().(*packet.Buffer)
	b.Reset()
	return b
}

// PutBuffer resets b and returns it to the pool. Resetting before the put
// (not just on the next get) means a buffer never sits in the pool holding
// a stale datagram from whichever query last used it.
func PutBuffer(b *packet.Buffer) {
	if b == nil {
		return
	}
	b.Reset()
	BufferPool.Put(b)
}

// ResetPool discards the existing pool, useful under test or after a burst
// of abnormally large allocations.
func ResetPool() {
	BufferPool = sync.Pool{
		New: func() interface{} {
			return packet.NewBuffer()
		},
	}
}
