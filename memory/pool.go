package memory

import (
	"github.com/notargets/BatchKernel/runner/builder"
	"sync"
)

// HostPool is the host-side allocator used by batched containers. It keeps
// allocation statistics and can enforce a byte limit, which lets callers
// exercise the out-of-memory path deterministically.
type HostPool struct {
	mu    sync.Mutex
	limit int64 // 0 means unlimited
	live  int
	bytes int64
	peak  int64
}

// PoolStats is a snapshot of host pool accounting
type PoolStats struct {
	Live  int   // Allocations not yet released
	Bytes int64 // Bytes currently allocated
	Peak  int64 // High-water mark of Bytes
}

// DefaultHostPool is used by containers constructed without WithPool
var DefaultHostPool = NewHostPool(0)

// NewHostPool creates a pool. A positive limit caps the bytes that may be
// allocated at any one time.
func NewHostPool(limit int64) *HostPool {
	return &HostPool{limit: limit}
}

// Stats returns the current pool statistics
func (p *HostPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Live: p.live, Bytes: p.bytes, Peak: p.peak}
}

func (p *HostPool) reserve(bytes int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit > 0 && p.bytes+bytes > p.limit {
		return ErrOutOfMemory
	}
	p.live++
	p.bytes += bytes
	if p.bytes > p.peak {
		p.peak = p.bytes
	}
	return nil
}

func (p *HostPool) release(bytes int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live--
	p.bytes -= bytes
}

// allocHost allocates n zeroed elements accounted against the pool
func allocHost[T builder.Element](p *HostPool, n int) ([]T, error) {
	if err := p.reserve(int64(n) * elemSize[T]()); err != nil {
		return nil, err
	}
	return make([]T, n), nil
}

// freeHost returns an allocation made by allocHost
func freeHost[T builder.Element](p *HostPool, buf []T) {
	p.release(int64(len(buf)) * elemSize[T]())
}
