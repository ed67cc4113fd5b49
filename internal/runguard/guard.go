package runguard

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when another run already holds the guard.
var ErrBusy = errors.New("run already in progress")

// Guard ensures at most one pipeline run executes at a time.
type Guard interface {
	// Acquire takes the guard without waiting. It returns ErrBusy when the guard is held.
	// The returned release func must be called once the run finishes.
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalGuard is an in-process guard.
type LocalGuard struct {
	mu sync.Mutex
}

// NewLocalGuard creates an in-process guard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{}
}

// Acquire takes the guard or returns ErrBusy.
func (g *LocalGuard) Acquire(ctx context.Context) (func(), error) {
	if !g.mu.TryLock() {
		return nil, ErrBusy
	}
	var once sync.Once
	return func() { once.Do(g.mu.Unlock) }, nil
}
