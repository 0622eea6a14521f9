package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/model"
)

// ChildRepo stores the children parents book sessions for. Children are
// soft-deleted so that past bookings keep their names.
type ChildRepo struct {
	db *sql.DB
}

func NewChildRepo(db *sql.DB) *ChildRepo { return &ChildRepo{db: db} }

const childColumns = `id, parent_id, first_name, last_name, date_of_birth, notes, is_active, created_at`

func scanChild(row rowScanner, c *model.Child) error {
	var dob sql.NullTime
	var notes sql.NullString
	if err := row.Scan(&c.ID, &c.ParentID, &c.FirstName, &c.LastName, &dob, &notes, &c.IsActive, &c.CreatedAt); err != nil {
		return err
	}
	if dob.Valid {
		t := dob.Time
		c.DateOfBirth = &t
	}
	c.Notes = nullStringPtr(notes)
	return nil
}

func (r *ChildRepo) get(ctx context.Context, q querier, id uint64) (model.Child, error) {
	var c model.Child
	err := scanChild(q.QueryRowContext(ctx, `SELECT `+childColumns+` FROM children WHERE id = ?`, id), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrChildNotFound
	}
	return c, err
}

// GetTx reads a child inside tx. Ownership is left to the caller.
func (r *ChildRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Child, error) {
	return r.get(ctx, tx, id)
}

// GetForParent returns an active child owned by parentID.
func (r *ChildRepo) GetForParent(ctx context.Context, id, parentID uint64) (model.Child, error) {
	c, err := r.get(ctx, r.db, id)
	if err != nil {
		return c, err
	}
	if c.ParentID != parentID || !c.IsActive {
		return model.Child{}, ErrChildNotFound
	}
	return c, nil
}

// ListByParent returns the parent's active children ordered by first name.
func (r *ChildRepo) ListByParent(ctx context.Context, parentID uint64) ([]model.Child, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+childColumns+` FROM children WHERE parent_id = ? AND is_active = 1 ORDER BY first_name, id`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Child, 0)
	for rows.Next() {
		var c model.Child
		if err := scanChild(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

// Create inserts c as active and reloads it.
func (r *ChildRepo) Create(ctx context.Context, c *model.Child) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO children (parent_id, first_name, last_name, date_of_birth, notes) VALUES (?, ?, ?, ?, ?)`,
		c.ParentID, c.FirstName, c.LastName, dateArg(c.DateOfBirth), c.Notes)
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
	*c = created
	return nil
}

// Update overwrites the editable fields of a child owned by c.ParentID.
func (r *ChildRepo) Update(ctx context.Context, c *model.Child) error {
	if _, err := r.GetForParent(ctx, c.ID, c.ParentID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE children SET first_name = ?, last_name = ?, date_of_birth = ?, notes = ? WHERE id = ?`,
		c.FirstName, c.LastName, dateArg(c.DateOfBirth), c.Notes, c.ID); err != nil {
		return err
	}
	updated, err := r.get(ctx, r.db, c.ID)
	if err != nil {
		return err
	}
	*c = updated
	return nil
}

// Deactivate soft-deletes a child owned by parentID.
func (r *ChildRepo) Deactivate(ctx context.Context, id, parentID uint64) error {
	if _, err := r.GetForParent(ctx, id, parentID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE children SET is_active = 0 WHERE id = ?`, id)
	return err
}
