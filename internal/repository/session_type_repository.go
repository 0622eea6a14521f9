package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/podium-scheduler/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SessionTypeRepo provides CRUD operations for session types. Session types
// are never physically deleted: Deactivate clears is_active and existing
// slots keep pointing at the row.
type SessionTypeRepo struct {
	db *sql.DB
}

func NewSessionTypeRepo(db *sql.DB) *SessionTypeRepo { return &SessionTypeRepo{db: db} }

const sessionTypeColumns = `id, name, description, duration_minutes, max_participants, credits, price, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSessionType(row rowScanner, st *model.SessionType) error {
	var desc sql.NullString
	if err := row.Scan(&st.ID, &st.Name, &desc, &st.DurationMinutes, &st.MaxParticipants,
		&st.Credits, &st.Price, &st.IsActive, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return err
	}
	st.Description = nullStringPtr(desc)
	return nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// GetByID returns the session type regardless of is_active.
func (r *SessionTypeRepo) GetByID(ctx context.Context, id uint64) (model.SessionType, error) {
	return r.get(ctx, r.db, id)
}

func (r *SessionTypeRepo) get(ctx context.Context, q querier, id uint64) (model.SessionType, error) {
	var st model.SessionType
	err := scanSessionType(q.QueryRowContext(ctx,
		`SELECT `+sessionTypeColumns+` FROM session_types WHERE id = ?`, id), &st)
	if errors.Is(err, sql.ErrNoRows) {
		return st, ErrSessionTypeNotFound
	}
	return st, err
}

// List returns session types ordered by name. With activeOnly set, retired
// types are left out.
func (r *SessionTypeRepo) List(ctx context.Context, activeOnly bool) ([]model.SessionType, error) {
	query := `SELECT ` + sessionTypeColumns + ` FROM session_types`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SessionType, 0)
	for rows.Next() {
		var st model.SessionType
		if err := scanSessionType(rows, &st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Create inserts st and reloads it so defaults and timestamps are set.
func (r *SessionTypeRepo) Create(ctx context.Context, st *model.SessionType) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO session_types (name, description, duration_minutes, max_participants, credits, price, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.Name, st.Description, st.DurationMinutes, st.MaxParticipants, st.Credits, st.Price, st.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.get(ctx, r.db, uint64(id))
	if err != nil {
		return err
	}
	*st = created
	return nil
}

// Update overwrites the mutable columns of st. Slots already generated keep
// their stored end_time; a new duration only applies to future slots.
func (r *SessionTypeRepo) Update(ctx context.Context, st *model.SessionType) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE session_types
		 SET name = ?, description = ?, duration_minutes = ?, max_participants = ?, credits = ?, price = ?, is_active = ?
		 WHERE id = ?`,
		st.Name, st.Description, st.DurationMinutes, st.MaxParticipants, st.Credits, st.Price, st.IsActive, st.ID)
	if err != nil {
		return err
	}
	// RowsAffected is 0 for an unchanged row as well, so existence is
	// decided by the reload.
	updated, err := r.get(ctx, r.db, st.ID)
	if err != nil {
		return err
	}
	*st = updated
	return nil
}

// Deactivate marks the session type as retired.
func (r *SessionTypeRepo) Deactivate(ctx context.Context, id uint64) error {
	if _, err := r.get(ctx, r.db, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE session_types SET is_active = 0 WHERE id = ?`, id)
	return err
}
