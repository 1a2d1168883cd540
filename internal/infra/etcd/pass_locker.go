package etcd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scrape-dispatch/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const (
	// lockPrefix is the root path of dispatch locks in etcd.
	lockPrefix = "/scrape-dispatch/locks/"
	// lockSessionTTL bounds how long a crashed dispatcher can hold a pass
	// lock, in seconds.
	lockSessionTTL = 30
)

type passLock struct {
	mutex   *concurrency.Mutex
	session *concurrency.Session
	name    string
}

// Unlock releases the lock and closes its session, dropping the lease.
func (l *passLock) Unlock(ctx context.Context) error {
	defer func() {
		if l.session != nil {
			_ = l.session.Close()
		}
	}()
	if err := l.mutex.Unlock(ctx); err != nil {
		return fmt.Errorf("unlock %s: %w", l.name, err)
	}
	return nil
}

type passLocker struct {
	client *clientv3.Client
}

// NewPassLocker creates an etcd-backed locker that keeps overlapping
// dispatch passes from fetching the same eligible batch.
func NewPassLocker(client *clientv3.Client) domain.Locker {
	return &passLocker{client: client}
}

// Lock makes a single non-blocking attempt to acquire the named lock. Each
// attempt uses its own session so an expired lease releases the lock on its
// own.
func (l *passLocker) Lock(ctx context.Context, name string) (domain.Lock, error) {
	session, err := concurrency.NewSession(l.client, concurrency.WithTTL(lockSessionTTL))
	if err != nil {
		return nil, fmt.Errorf("create etcd session for lock %s: %w", name, err)
	}

	mutex := concurrency.NewMutex(session, lockPrefix+name)

	tryCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	if err := mutex.TryLock(tryCtx); err != nil {
		_ = session.Close()
		if errors.Is(err, concurrency.ErrLocked) || errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrLockNotAcquired
		}
		return nil, fmt.Errorf("acquire etcd lock %s: %w", name, err)
	}

	return &passLock{mutex: mutex, session: session, name: name}, nil
}
