package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrInstanceLocked is returned when another process holds the instance lock.
var ErrInstanceLocked = errors.New("another plexlinker instance is running")

// InstanceLock keeps a second scheduler loop from starting on the same host.
type InstanceLock struct {
	path string
	lock *flock.Flock
}

// AcquireInstanceLock takes an exclusive advisory lock on path without
// blocking.
func AcquireInstanceLock(path string) (*InstanceLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock: %s)", ErrInstanceLocked, path)
	}
	return &InstanceLock{path: path, lock: l}, nil
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.path
}

// Release unlocks the instance lock.
func (l *InstanceLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
