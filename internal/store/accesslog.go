package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/secureblog/apiserver/types"
)

// AccessLogRepository handles persistence for per-account login history.
type AccessLogRepository struct {
	db *sql.DB
}

func NewAccessLogRepository(db *sql.DB) *AccessLogRepository {
	return &AccessLogRepository{db: db}
}

func (r *AccessLogRepository) GetByUserID(ctx context.Context, userID int) (types.AccessLog, error) {
	const query = `
		SELECT id, user_id, registered_on, latest_login, previous_login, latest_ip, previous_ip
		FROM access_logs
		WHERE user_id = $1`
	var log types.AccessLog
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&log.ID,
		&log.UserID,
		&log.RegisteredOn,
		&log.LatestLogin,
		&log.PreviousLogin,
		&log.LatestIP,
		&log.PreviousIP,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AccessLog{}, ErrNotFound
		}
		return types.AccessLog{}, err
	}
	return log, nil
}

func (r *AccessLogRepository) Create(ctx context.Context, log types.AccessLog) (types.AccessLog, error) {
	const query = `
		INSERT INTO access_logs (user_id, registered_on, latest_login, previous_login, latest_ip, previous_ip)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		log.UserID,
		log.RegisteredOn,
		log.LatestLogin,
		log.PreviousLogin,
		log.LatestIP,
		log.PreviousIP,
	).Scan(&log.ID)
	if err != nil {
		return types.AccessLog{}, err
	}
	return log, nil
}

func (r *AccessLogRepository) Update(ctx context.Context, log types.AccessLog) (types.AccessLog, error) {
	const query = `
		UPDATE access_logs
		SET latest_login = $1,
			previous_login = $2,
			latest_ip = $3,
			previous_ip = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		log.LatestLogin,
		log.PreviousLogin,
		log.LatestIP,
		log.PreviousIP,
		log.ID,
	)
	if err != nil {
		return types.AccessLog{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.AccessLog{}, err
	}
	if affected == 0 {
		return types.AccessLog{}, ErrNotFound
	}
	return log, nil
}

// List returns all access logs, most recently used first. Used by the
// security dashboard.
func (r *AccessLogRepository) List(ctx context.Context) ([]types.AccessLog, error) {
	const query = `
		SELECT id, user_id, registered_on, latest_login, previous_login, latest_ip, previous_ip
		FROM access_logs
		ORDER BY latest_login DESC NULLS LAST`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []types.AccessLog
	for rows.Next() {
		var log types.AccessLog
		if err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.RegisteredOn,
			&log.LatestLogin,
			&log.PreviousLogin,
			&log.LatestIP,
			&log.PreviousIP,
		); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
