// Package booking holds the capacity ledger and the booking lifecycle. The
// ledger serializes acceptance decisions per slot; the lifecycle decides
// which transitions a booking may take and under which conditions.
package booking

import (
	"context"
	"sync"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
)

// Ledger serializes acceptance decisions per slot. Work on different slots
// runs in parallel. Within one process the ledger is the single writer for
// a slot; across processes the store's row lock on the slot takes over.
type Ledger struct {
	mu    sync.Mutex
	slots map[uint64]*slotLock
}

type slotLock struct {
	ch   chan struct{}
	refs int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{slots: make(map[uint64]*slotLock)}
}

func (l *Ledger) acquire(slotID uint64) *slotLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl, ok := l.slots[slotID]
	if !ok {
		sl = &slotLock{ch: make(chan struct{}, 1)}
		l.slots[slotID] = sl
	}
	sl.refs++
	return sl
}

func (l *Ledger) release(slotID uint64, sl *slotLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.slots, slotID)
	}
}

// Serialize runs fn while holding the slot's lock. If ctx ends before the
// lock is free, fn is not run and ctx.Err() is returned.
func (l *Ledger) Serialize(ctx context.Context, slotID uint64, fn func(ctx context.Context) error) error {
	sl := l.acquire(slotID)
	defer l.release(slotID, sl)

	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sl.ch }()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// Remaining is capacity minus confirmed, floored at zero.
func Remaining(capacity, confirmed int) int {
	if confirmed >= capacity {
		return 0
	}
	return capacity - confirmed
}

// Admit decides one acceptance given the confirmed count observed under the
// slot's lock. It returns apperr.ErrSlotFull when the slot has no room.
func Admit(capacity, confirmed int) error {
	if Remaining(capacity, confirmed) == 0 {
		return apperr.ErrSlotFull
	}
	return nil
}
