package store

import (
	"context"
	"database/sql"

	"github.com/secureblog/apiserver/types"
)

// AuditRepository handles the append-only security event table.
// Entries are never updated or deleted.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one event. Each insert is a single statement, so
// concurrent appends cannot interleave within an entry.
func (r *AuditRepository) Append(ctx context.Context, event types.AuditEvent) error {
	const query = `
		INSERT INTO audit_events (created_at, severity, category, email, role, ip, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		event.CreatedAt,
		event.Severity,
		event.Category,
		event.Email,
		event.Role,
		event.IP,
		event.Message,
	)
	return err
}

// Recent returns the newest limit entries, most recent first.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]types.AuditEvent, error) {
	const query = `
		SELECT id, created_at, severity, category, email, role, ip, message
		FROM audit_events
		ORDER BY id DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []types.AuditEvent
	for rows.Next() {
		var event types.AuditEvent
		if err := rows.Scan(
			&event.ID,
			&event.CreatedAt,
			&event.Severity,
			&event.Category,
			&event.Email,
			&event.Role,
			&event.IP,
			&event.Message,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
