package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLockHeld is returned when another process owns the write lock.
var ErrLockHeld = errors.New("write lock held by another process")

// WriteLock guarantees a single writer against the target store for the
// duration of one batch apply.
type WriteLock struct {
	lock *flock.Flock
}

// NewWriteLock prepares a file lock at path. An empty path disables locking.
func NewWriteLock(path string) *WriteLock {
	if path == "" {
		return &WriteLock{}
	}
	return &WriteLock{lock: flock.New(path)}
}

// Acquire takes the lock without blocking.
func (w *WriteLock) Acquire() error {
	if w == nil || w.lock == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("lock: create dir: %w", err)
	}
	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock: acquire %s: %w", w.lock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("lock: %s: %w", w.lock.Path(), ErrLockHeld)
	}
	return nil
}

// Release drops the lock. Safe to call when Acquire was never successful.
func (w *WriteLock) Release() error {
	if w == nil || w.lock == nil || !w.lock.Locked() {
		return nil
	}
	return w.lock.Unlock()
}
