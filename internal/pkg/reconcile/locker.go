package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when the per-order critical section could not
// be entered within the allowed wait. Callers should answer with a retryable
// status.
var ErrLockTimeout = errors.New("order lock wait exceeded")

// OrderLocker serializes state transitions per order. A wait of zero or less
// means wait until ctx is done.
type OrderLocker interface {
	Lock(ctx context.Context, orderID string, wait time.Duration) (unlock func(), err error)
}

// LocalLocker is an in-process OrderLocker for single-instance deployments
// and tests.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

func (l *LocalLocker) Lock(ctx context.Context, orderID string, wait time.Duration) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[orderID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[orderID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.release(orderID, slot)
			})
		}, nil
	case <-timeout:
		l.release(orderID, slot)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		l.release(orderID, slot)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(orderID string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, orderID)
	}
}
