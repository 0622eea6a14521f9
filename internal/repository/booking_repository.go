package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/model"
)

// BookingRepo persists bookings. A booking row is written once as confirmed
// and may later move to cancelled; rows are never deleted except together
// with their slot.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, slot_id, child_id, parent_id, status, payment_method, created_at, updated_at`

func scanBooking(row rowScanner, b *model.Booking) error {
	return row.Scan(&b.ID, &b.SlotID, &b.ChildID, &b.ParentID, &b.Status, &b.PaymentMethod, &b.CreatedAt, &b.UpdatedAt)
}

const bookingDetailSelect = `SELECT b.id, b.slot_id, b.child_id, b.parent_id, b.status, b.payment_method, b.created_at, b.updated_at,
       c.id, c.first_name, c.last_name,
       s.id, s.start_time, s.end_time,
       st.id, st.name, st.duration_minutes
FROM bookings b
JOIN children c ON c.id = b.child_id
JOIN schedule_slots s ON s.id = b.slot_id
JOIN session_types st ON st.id = s.session_type_id`

func scanBookingDetail(row rowScanner, d *model.BookingDetail) error {
	return row.Scan(
		&d.ID, &d.SlotID, &d.ChildID, &d.ParentID, &d.Status, &d.PaymentMethod, &d.CreatedAt, &d.UpdatedAt,
		&d.Child.ID, &d.Child.FirstName, &d.Child.LastName,
		&d.Slot.ID, &d.Slot.StartTime, &d.Slot.EndTime,
		&d.Slot.SessionType.ID, &d.Slot.SessionType.Name, &d.Slot.SessionType.DurationMinutes,
	)
}

func (r *BookingRepo) listDetails(ctx context.Context, q querier, where string, args ...any) ([]model.BookingDetail, error) {
	rows, err := q.QueryContext(ctx, bookingDetailSelect+` WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BookingDetail, 0)
	for rows.Next() {
		var d model.BookingDetail
		if err := scanBookingDetail(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListByParent returns the parent's bookings, newest first.
func (r *BookingRepo) ListByParent(ctx context.Context, parentID uint64) ([]model.BookingDetail, error) {
	return r.listDetails(ctx, r.db, `b.parent_id = ? ORDER BY b.created_at DESC, b.id DESC`, parentID)
}

// ListBySlot returns every booking of a slot, confirmed ones first.
func (r *BookingRepo) ListBySlot(ctx context.Context, slotID uint64) ([]model.BookingDetail, error) {
	return r.listDetails(ctx, r.db, `b.slot_id = ? ORDER BY b.status = 'confirmed' DESC, b.created_at, b.id`, slotID)
}

// GetForParent returns one booking if it belongs to parentID. Bookings of
// other parents are reported as not found.
func (r *BookingRepo) GetForParent(ctx context.Context, id, parentID uint64) (model.BookingDetail, error) {
	return r.getDetail(ctx, r.db, `b.id = ? AND b.parent_id = ?`, id, parentID)
}

// GetDetailTx reads a booking inside tx, typically right after InsertTx.
func (r *BookingRepo) GetDetailTx(ctx context.Context, tx *sql.Tx, id uint64) (model.BookingDetail, error) {
	return r.getDetail(ctx, tx, `b.id = ?`, id)
}

func (r *BookingRepo) getDetail(ctx context.Context, q querier, where string, args ...any) (model.BookingDetail, error) {
	var d model.BookingDetail
	err := scanBookingDetail(q.QueryRowContext(ctx, bookingDetailSelect+` WHERE `+where, args...), &d)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrBookingNotFound
	}
	return d, err
}

// HasConfirmedTx reports whether the child already holds a confirmed
// booking on the slot.
func (r *BookingRepo) HasConfirmedTx(ctx context.Context, tx *sql.Tx, slotID, childID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE slot_id = ? AND child_id = ? AND status = 'confirmed'`,
		slotID, childID).Scan(&n)
	return n > 0, err
}

// InsertTx writes b as confirmed. A concurrent confirmed booking for the
// same child and slot surfaces as apperr.ErrDuplicateBooking through the
// active child unique key.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (slot_id, child_id, parent_id, status, payment_method, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.SlotID, b.ChildID, b.ParentID, b.Status, b.PaymentMethod, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return apperr.ErrDuplicateBooking
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// LockTx loads a booking and locks its row for the rest of tx.
func (r *BookingRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	var b model.Booking
	err := scanBooking(tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id), &b)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrBookingNotFound
	}
	return b, err
}

// SetStatusTx moves a booking to status and stamps updated_at.
func (r *BookingRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.BookingStatus, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`, status, at.UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookingNotFound
	}
	return nil
}
