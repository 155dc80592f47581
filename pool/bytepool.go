// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

// Package pool provides reusable byte buffers for per-file read
// destinations, bucketed by power-of-two capacity over sync.Pool.
package pool

import (
	"math/bits"
	"sync"
)

const maxBuckets = 48

// BytePool hands out read buffers sized exactly to the request while
// recycling the underlying power-of-two allocations.
type BytePool struct {
	buckets [maxBuckets]sync.Pool
}

// NewBytePool creates an empty pool.
func NewBytePool() *BytePool {
	return &BytePool{}
}

// Acquire returns a buffer of length n. A zero-length request returns nil.
func (p *BytePool) Acquire(n int) []byte {
	if n <= 0 {
		return nil
	}
	b := bucketFor(n)
	if v := p.buckets[b].Get(); v != nil {
		return v.([]byte)[:n]
	}
	return make([]byte, n, 1<<b)
}

// Release returns a buffer to the pool. Buffers with capacities this pool
// did not produce are dropped for the GC to reclaim.
func (p *BytePool) Release(buf []byte) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	b := bits.Len(uint(c)) - 1
	if b >= maxBuckets {
		return
	}
	p.buckets[b].Put(buf[:c])
}

// bucketFor returns the index of the smallest power-of-two bucket holding n.
func bucketFor(n int) int {
	return bits.Len(uint(n - 1))
}
