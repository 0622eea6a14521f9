package repository

import (
	"context"
	"database/sql"
	"unicode/utf8"

	"github.com/iliyamo/podium-scheduler/internal/model"
)

// OutboxRepo stores events awaiting publication.
type OutboxRepo struct {
	db *sql.DB
}

func NewOutboxRepo(db *sql.DB) *OutboxRepo { return &OutboxRepo{db: db} }

// EnqueueTx writes m inside tx so it commits or rolls back with the change
// it describes.
func (r *OutboxRepo) EnqueueTx(ctx context.Context, tx *sql.Tx, m *model.OutboxMessage) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (event_id, routing_key, payload, created_at) VALUES (?, ?, ?, ?)`,
		m.EventID, m.RoutingKey, m.Payload, m.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// Pending returns up to limit unpublished events, oldest first.
func (r *OutboxRepo) Pending(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, routing_key, payload, attempts, last_error, created_at
		 FROM outbox_events WHERE published_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.OutboxMessage, 0)
	for rows.Next() {
		var m model.OutboxMessage
		var lastErr sql.NullString
		if err := rows.Scan(&m.ID, &m.EventID, &m.RoutingKey, &m.Payload, &m.Attempts, &lastErr, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.LastError = nullStringPtr(lastErr)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkPublished stamps the event as delivered to the broker.
func (r *OutboxRepo) MarkPublished(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET published_at = UTC_TIMESTAMP(), attempts = attempts + 1, last_error = NULL WHERE id = ?`, id)
	return err
}

// lastErrorMax caps outbox_events.last_error, in bytes.
const lastErrorMax = 512

// MarkFailed records a failed publish attempt.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id uint64, cause error) error {
	msg := truncateUTF8(cause.Error(), lastErrorMax)
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET attempts = attempts + 1, last_error = ? WHERE id = ?`, msg, id)
	return err
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
