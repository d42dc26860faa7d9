package parallel

import "sync"

// ScratchPool hands out per-task scratch values (arenas, lane buffers) via
// sync.Pool so a pass does not allocate one per tile.
//
// Thread safety: ScratchPool is safe for concurrent use. A value obtained
// from Get belongs to the caller until it is passed to Put.
type ScratchPool[T any] struct {
	pool sync.Pool
}

// NewScratchPool creates a pool that builds new values with newFn.
func NewScratchPool[T any](newFn func() T) *ScratchPool[T] {
	p := &ScratchPool[T]{}
	p.pool.New = func() any { return newFn() }
	return p
}

// Get returns a pooled value or a new one.
func (p *ScratchPool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put returns v to the pool. The caller must not use v afterwards.
func (p *ScratchPool[T]) Put(v T) {
	p.pool.Put(v)
}
