package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/model"
)

// Tx is the transactional view of the store. All reads and writes made
// through one Tx commit together or not at all.
type Tx interface {
	// LockSlot returns the slot with its session type and confirmed count
	// and holds an exclusive lock on the slot until the transaction ends.
	LockSlot(ctx context.Context, slotID uint64) (model.SlotDetail, error)
	// InsertSlot reports false when the (session type, start time) pair
	// already exists.
	InsertSlot(ctx context.Context, s *model.Slot) (bool, error)
	DeleteSlot(ctx context.Context, slotID uint64) error

	GetChild(ctx context.Context, childID uint64) (model.Child, error)

	HasConfirmedBooking(ctx context.Context, slotID, childID uint64) (bool, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	LockBooking(ctx context.Context, bookingID uint64) (model.Booking, error)
	SetBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus, at time.Time) error
	BookingDetail(ctx context.Context, bookingID uint64) (model.BookingDetail, error)

	Enqueue(ctx context.Context, m *model.OutboxMessage) error
}

// Store groups the repositories over one database handle.
type Store struct {
	db *sql.DB

	SessionTypes *SessionTypeRepo
	Slots        *SlotRepo
	Bookings     *BookingRepo
	Children     *ChildRepo
	Outbox       *OutboxRepo
	Users        *UserRepo
	Tokens       *TokenRepo
}

// NewStore builds a Store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		SessionTypes: NewSessionTypeRepo(db),
		Slots:        NewSlotRepo(db),
		Bookings:     NewBookingRepo(db),
		Children:     NewChildRepo(db),
		Outbox:       NewOutboxRepo(db),
		Users:        NewUserRepo(db),
		Tokens:       NewTokenRepo(db),
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// InTx runs fn in a transaction. Any error from fn, or a panic, rolls the
// transaction back; otherwise it is committed.
func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type sqlTx struct {
	tx *sql.Tx
	s  *Store
}

func (t *sqlTx) LockSlot(ctx context.Context, slotID uint64) (model.SlotDetail, error) {
	return t.s.Slots.LockTx(ctx, t.tx, slotID)
}

func (t *sqlTx) InsertSlot(ctx context.Context, slot *model.Slot) (bool, error) {
	return t.s.Slots.InsertTx(ctx, t.tx, slot)
}

func (t *sqlTx) DeleteSlot(ctx context.Context, slotID uint64) error {
	return t.s.Slots.DeleteTx(ctx, t.tx, slotID)
}

func (t *sqlTx) GetChild(ctx context.Context, childID uint64) (model.Child, error) {
	return t.s.Children.GetTx(ctx, t.tx, childID)
}

func (t *sqlTx) HasConfirmedBooking(ctx context.Context, slotID, childID uint64) (bool, error) {
	return t.s.Bookings.HasConfirmedTx(ctx, t.tx, slotID, childID)
}

func (t *sqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.s.Bookings.InsertTx(ctx, t.tx, b)
}

func (t *sqlTx) LockBooking(ctx context.Context, bookingID uint64) (model.Booking, error) {
	return t.s.Bookings.LockTx(ctx, t.tx, bookingID)
}

func (t *sqlTx) SetBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus, at time.Time) error {
	return t.s.Bookings.SetStatusTx(ctx, t.tx, bookingID, status, at)
}

func (t *sqlTx) BookingDetail(ctx context.Context, bookingID uint64) (model.BookingDetail, error) {
	return t.s.Bookings.GetDetailTx(ctx, t.tx, bookingID)
}

func (t *sqlTx) Enqueue(ctx context.Context, m *model.OutboxMessage) error {
	return t.s.Outbox.EnqueueTx(ctx, t.tx, m)
}
