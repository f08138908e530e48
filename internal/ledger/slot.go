package ledger

import (
	"context"
	"sync"
)

// Slot grants exclusive execution of the transfer commit phase. The returned
// release func must be called exactly once on every exit path; calling it
// more than once is harmless.
type Slot interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalSlot is a process-wide single-holder slot. Unlike a bare sync.Mutex,
// waiting for it honours context cancellation.
type LocalSlot struct {
	token chan struct{}
}

// NewLocalSlot returns a free slot.
func NewLocalSlot() *LocalSlot {
	return &LocalSlot{token: make(chan struct{}, 1)}
}

// Acquire blocks until the slot is free or ctx is done.
func (s *LocalSlot) Acquire(ctx context.Context) (func(), error) {
	select {
	case s.token <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-s.token })
	}, nil
}
