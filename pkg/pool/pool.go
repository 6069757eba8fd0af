// Package pool provides typed wrappers around sync.Pool for scratch buffers.
// Borrowed values must be returned on every exit path.
package pool

import "sync"

type Pool[T any] struct {
	p sync.Pool
}

func New[T any](newFn func() T) *Pool[T] {
	return &Pool[T]{
		p: sync.Pool{
			New: func() any { return newFn() },
		},
	}
}

func (p *Pool[T]) Get() T {
	return p.p.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	p.p.Put(v)
}
