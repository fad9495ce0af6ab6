// Package flock guards a local store directory against a second owner
// process with an advisory lock on a LOCK file.
package flock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrLocked is returned when another owner holds the lock.
var ErrLocked = errors.New("flock: store is locked by another owner")

// Lock is an advisory exclusive lock on one file. It is not reentrant.
type Lock struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// New returns an unacquired lock on path.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Acquire takes the lock without blocking. It fails with ErrLocked when the
// file is already locked, including by this process through another Lock.
func (l *Lock) Acquire(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		return fmt.Errorf("%w: %s already acquired", ErrLocked, l.path)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("flock: open %s: %w", l.path, err)
	}
	if err := tryLock(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %s: %v", ErrLocked, l.path, err)
	}
	l.f = f
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := unlock(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

// Held reports whether this Lock holds the file.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f != nil
}
