// Package service runs the scheduling and booking operations. Every
// operation that changes state asks the authorization gate first, then
// performs its guards and writes inside one store transaction. Storage
// faults come back wrapped as apperr.ErrStorageUnavailable; only idempotent
// reads are retried.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/model"
	"github.com/iliyamo/podium-scheduler/internal/repository"
)

// TxRunner runs fn in one transaction; repository.Store implements it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx repository.Tx) error) error
}

type SessionTypeStore interface {
	GetByID(ctx context.Context, id uint64) (model.SessionType, error)
	List(ctx context.Context, activeOnly bool) ([]model.SessionType, error)
	Create(ctx context.Context, st *model.SessionType) error
	Update(ctx context.Context, st *model.SessionType) error
	Deactivate(ctx context.Context, id uint64) error
}

type SlotReader interface {
	GetByID(ctx context.Context, id uint64) (model.SlotDetail, error)
	List(ctx context.Context, f repository.SlotFilter) ([]model.SlotDetail, error)
}

type BookingReader interface {
	ListByParent(ctx context.Context, parentID uint64) ([]model.BookingDetail, error)
	ListBySlot(ctx context.Context, slotID uint64) ([]model.BookingDetail, error)
	GetForParent(ctx context.Context, id, parentID uint64) (model.BookingDetail, error)
}

type ChildStore interface {
	ListByParent(ctx context.Context, parentID uint64) ([]model.Child, error)
	GetForParent(ctx context.Context, id, parentID uint64) (model.Child, error)
	Create(ctx context.Context, c *model.Child) error
	Update(ctx context.Context, c *model.Child) error
	Deactivate(ctx context.Context, id, parentID uint64) error
}

// RetryPolicy bounds retries of idempotent reads that failed with
// apperr.ErrStorageUnavailable. The delay doubles after every attempt.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetry makes three attempts, 50ms then 100ms apart.
var DefaultRetry = RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}

func (p RetryPolicy) read(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, apperr.ErrStorageUnavailable) || attempt >= attempts {
			return err
		}
		log.Printf("store: %s failed (attempt %d/%d): %v; retrying in %s", op, attempt, attempts, err, backoff)
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		backoff *= 2
	}
}
