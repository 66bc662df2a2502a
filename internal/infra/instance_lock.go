package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another prodmon instance is running")

const lockRetryInterval = 250 * time.Millisecond

// InstanceLock guarantees a single running monitor per user.
// A relaunched process waits on it until the old process exits.
type InstanceLock struct {
	lock *flock.Flock
}

// NewInstanceLock creates a lock backed by the file at path.
func NewInstanceLock(path string) *InstanceLock {
	return &InstanceLock{lock: flock.New(path)}
}

// Path returns the lock file location.
func (l *InstanceLock) Path() string {
	return l.lock.Path()
}

// TryAcquire takes the lock without waiting.
func (l *InstanceLock) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.lock.Path()), 0o700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.lock.Path(), err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Acquire waits for the lock until ctx is done.
func (l *InstanceLock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.lock.Path()), 0o700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	ok, err := l.lock.TryLockContext(ctx, lockRetryInterval)
	if !ok {
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("failed to lock %s: %w", l.lock.Path(), err)
		}
		return ErrAlreadyRunning
	}
	return nil
}

// Release drops the lock. The lock file stays on disk.
func (l *InstanceLock) Release() error {
	return l.lock.Unlock()
}
