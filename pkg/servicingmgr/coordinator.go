package servicingmgr

import (
	"errors"
	"sync"
)

// ErrBusy is returned by TryAcquireWriter when another servicing task is
// already in flight; callers must not queue, per §5.
var ErrBusy = errors.New("servicing task already in progress")

// Coordinator guards the engine behind a non-blocking try-acquire gate: at
// most one writer (a servicing task) at a time, many concurrent readers
// (status queries) so long as no writer holds the permit.
type Coordinator struct {
	mu sync.RWMutex
}

// TryAcquireWriter attempts to take the unique writer permit. On success it
// returns a release function the caller must call exactly once when the
// servicing task completes. On contention it returns ErrBusy immediately.
func (c *Coordinator) TryAcquireWriter() (release func(), err error) {
	if !c.mu.TryLock() {
		return nil, ErrBusy
	}
	var once sync.Once
	return func() { once.Do(c.mu.Unlock) }, nil
}

// TryAcquireReader attempts to take a shared reader permit, failing with
// ErrBusy only while a writer holds the gate.
func (c *Coordinator) TryAcquireReader() (release func(), err error) {
	if !c.mu.TryRLock() {
		return nil, ErrBusy
	}
	var once sync.Once
	return func() { once.Do(c.mu.RUnlock) }, nil
}
