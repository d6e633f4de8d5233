// Package pools reuses frame buffers to reduce GC pressure on the transports.
package pools

import "sync"

// Buffer size classes
const (
	SmallSize  = 4 << 10
	MediumSize = 64 << 10
	LargeSize  = 1 << 20
	MaxPool    = LargeSize // larger buffers are not pooled
)

// BytePool provides size-class based pooling for byte slices
type BytePool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

// NewBytePool creates an empty pool
func NewBytePool() *BytePool {
	return &BytePool{}
}

func (p *BytePool) class(size int) (*sync.Pool, int) {
	switch {
	case size <= SmallSize:
		return &p.small, SmallSize
	case size <= MediumSize:
		return &p.medium, MediumSize
	case size <= LargeSize:
		return &p.large, LargeSize
	default:
		return nil, 0
	}
}

// Get returns a slice of length size. Its contents are undefined.
func (p *BytePool) Get(size int) []byte {
	pool, classSize := p.class(size)
	if pool == nil {
		return make([]byte, size)
	}
	if bp, ok := pool.Get().(*[]byte); ok && cap(*bp) >= size {
		return (*bp)[:size]
	}
	return make([]byte, size, classSize)
}

// Put returns b to the pool. Slices that do not match a size class exactly
// are dropped.
func (p *BytePool) Put(b []byte) {
	pool, classSize := p.class(cap(b))
	if pool == nil || cap(b) != classSize {
		return
	}
	b = b[:0]
	pool.Put(&b)
}

var defaultBytePool = NewBytePool()

// GetBytes returns a slice of length size from the default pool
func GetBytes(size int) []byte {
	return defaultBytePool.Get(size)
}

// PutBytes returns a slice to the default pool
func PutBytes(b []byte) {
	defaultBytePool.Put(b)
}
