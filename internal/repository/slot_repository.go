package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/model"
)

// SlotRepo persists schedule slots. Slots are immutable once written; the
// only mutation is deletion. Every read joins the owning session type and
// the live count of confirmed bookings.
type SlotRepo struct {
	db *sql.DB
}

func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// SlotFilter narrows List. Zero values mean "no bound".
type SlotFilter struct {
	From          time.Time // start_time >= From
	To            time.Time // start_time < To
	SessionTypeID uint64
}

const slotDetailSelect = `SELECT s.id, s.session_type_id, s.start_time, s.end_time, s.recurrence_tag, s.created_at,
       st.id, st.name, st.description, st.duration_minutes, st.max_participants, st.credits, st.price,
       st.is_active, st.created_at, st.updated_at,
       (SELECT COUNT(*) FROM bookings b WHERE b.slot_id = s.id AND b.status = 'confirmed')
FROM schedule_slots s
JOIN session_types st ON st.id = s.session_type_id`

func scanSlotDetail(row rowScanner, d *model.SlotDetail) error {
	var tag, desc sql.NullString
	st := &d.SessionType
	if err := row.Scan(
		&d.ID, &d.SessionTypeID, &d.StartTime, &d.EndTime, &tag, &d.CreatedAt,
		&st.ID, &st.Name, &desc, &st.DurationMinutes, &st.MaxParticipants, &st.Credits, &st.Price,
		&st.IsActive, &st.CreatedAt, &st.UpdatedAt,
		&d.Confirmed,
	); err != nil {
		return err
	}
	d.RecurrenceTag = nullStringPtr(tag)
	st.Description = nullStringPtr(desc)
	d.Remaining = d.Capacity() - d.Confirmed
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return nil
}

// GetByID returns one slot with its session type and confirmed count.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (model.SlotDetail, error) {
	var d model.SlotDetail
	err := scanSlotDetail(r.db.QueryRowContext(ctx, slotDetailSelect+` WHERE s.id = ?`, id), &d)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrSlotNotFound
	}
	return d, err
}

// List returns slots matching f ordered by start_time.
func (r *SlotRepo) List(ctx context.Context, f SlotFilter) ([]model.SlotDetail, error) {
	query := slotDetailSelect + ` WHERE 1 = 1`
	args := make([]any, 0, 3)
	if !f.From.IsZero() {
		query += ` AND s.start_time >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += ` AND s.start_time < ?`
		args = append(args, f.To.UTC())
	}
	if f.SessionTypeID != 0 {
		query += ` AND s.session_type_id = ?`
		args = append(args, f.SessionTypeID)
	}
	query += ` ORDER BY s.start_time, s.id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SlotDetail, 0)
	for rows.Next() {
		var d model.SlotDetail
		if err := scanSlotDetail(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LockTx loads the slot and takes an exclusive row lock on it for the rest
// of tx. The confirmed count is read after the lock is held, so it cannot
// change underneath the caller until tx ends.
func (r *SlotRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.SlotDetail, error) {
	var locked uint64
	err := tx.QueryRowContext(ctx, `SELECT id FROM schedule_slots WHERE id = ? FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SlotDetail{}, ErrSlotNotFound
	}
	if err != nil {
		return model.SlotDetail{}, err
	}
	var d model.SlotDetail
	if err := scanSlotDetail(tx.QueryRowContext(ctx, slotDetailSelect+` WHERE s.id = ?`, id), &d); err != nil {
		return d, err
	}
	return d, nil
}

// InsertTx writes s and fills its id and created_at. When a slot with the
// same session type and start time already exists, nothing is written and
// inserted is false.
func (r *SlotRepo) InsertTx(ctx context.Context, tx *sql.Tx, s *model.Slot) (inserted bool, err error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO schedule_slots (session_type_id, start_time, end_time, recurrence_tag) VALUES (?, ?, ?, ?)`,
		s.SessionTypeID, s.StartTime.UTC(), s.EndTime.UTC(), s.RecurrenceTag)
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	s.ID = uint64(id)
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM schedule_slots WHERE id = ?`, s.ID).Scan(&s.CreatedAt); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteTx removes the slot together with its cancelled bookings. The
// caller must have checked under LockTx that no confirmed booking remains.
func (r *SlotRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE slot_id = ? AND status = 'cancelled'`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM schedule_slots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSlotNotFound
	}
	return nil
}
