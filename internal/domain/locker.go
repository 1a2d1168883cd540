package domain

import (
	"context"
	"errors"
)

// ErrLockNotAcquired is returned when a lock cannot be acquired, for
// example when it is already held by another dispatcher process.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Lock represents an acquired distributed lock.
type Lock interface {
	// Unlock releases the lock.
	Unlock(ctx context.Context) error
}

// Locker defines the interface for a distributed locking mechanism used to
// serialize dispatch passes across processes.
type Locker interface {
	// Lock attempts to acquire a lock for the given name. It must not
	// block: if the lock is already held it returns ErrLockNotAcquired.
	Lock(ctx context.Context, name string) (Lock, error)
}
