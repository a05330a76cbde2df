// Package uilock is the advisory "submit in progress" lock. A flow takes it
// before its first network call and drops it when its poll ends.
package uilock

import (
	"context"
	"sync/atomic"
)

type Lock interface {
	// TryAcquire never blocks. false means somebody else holds the lock.
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	// Held reports whether this holder currently owns the lock.
	Held() bool
}

// Memory guards one process.
type Memory struct {
	held atomic.Bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) TryAcquire(context.Context) (bool, error) {
	return m.held.CompareAndSwap(false, true), nil
}

func (m *Memory) Release(context.Context) error {
	m.held.Store(false)
	return nil
}

func (m *Memory) Held() bool { return m.held.Load() }
