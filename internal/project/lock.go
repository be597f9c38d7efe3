package project

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked reports that another invocation holds the project lock.
var ErrLocked = errors.New("project is locked by another scenesmith invocation")

// Lock is an advisory, non-blocking lock on a project directory.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the project lock or fails with ErrLocked.
func Acquire(l Layout) (*Lock, error) {
	path := l.LockPath()
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (k *Lock) Path() string {
	return k.path
}

// Release unlocks. Calling it more than once is safe.
func (k *Lock) Release() error {
	if k == nil || k.lock == nil {
		return nil
	}
	if err := k.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
