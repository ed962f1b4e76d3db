package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SessionRow is a dashboard session as stored in dashboard_sessions.
// UserJSON and GuildsJSON hold JSON documents; a nil GuildsJSON is stored as NULL.
// AccessToken is expected to be encrypted by the caller.
type SessionRow struct {
	Token       string
	UserJSON    []byte
	AccessToken string
	GuildsJSON  []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// CreateDashboardSession inserts row. A row already holding the token is
// replaced only if it expired before now; otherwise created is false.
func (db *DB) CreateDashboardSession(ctx context.Context, row *SessionRow, now time.Time) (created bool, err error) {
	query := `
		INSERT INTO dashboard_sessions (token, user_json, access_token, guilds_json, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token)
		DO UPDATE SET
			user_json = EXCLUDED.user_json,
			access_token = EXCLUDED.access_token,
			guilds_json = EXCLUDED.guilds_json,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE dashboard_sessions.expires_at <= $7
	`

	result, err := db.ExecContext(ctx, query,
		row.Token,
		string(row.UserJSON),
		row.AccessToken,
		nullJSON(row.GuildsJSON),
		row.CreatedAt.UTC(),
		row.ExpiresAt.UTC(),
		now.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create dashboard session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// GetDashboardSession loads a session row by token regardless of expiry.
func (db *DB) GetDashboardSession(ctx context.Context, token string) (*SessionRow, error) {
	query := `
		SELECT token, user_json, access_token, guilds_json, created_at, expires_at
		FROM dashboard_sessions
		WHERE token = $1
	`

	row := &SessionRow{}
	err := db.QueryRowContext(ctx, query, token).Scan(
		&row.Token,
		&row.UserJSON,
		&row.AccessToken,
		&row.GuildsJSON,
		&row.CreatedAt,
		&row.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard session: %w", err)
	}

	return row, nil
}

// UpdateDashboardSessionGuilds replaces the cached guild list of a session.
func (db *DB) UpdateDashboardSessionGuilds(ctx context.Context, token string, guildsJSON []byte) error {
	query := `UPDATE dashboard_sessions SET guilds_json = $2 WHERE token = $1`

	result, err := db.ExecContext(ctx, query, token, nullJSON(guildsJSON))
	if err != nil {
		return fmt.Errorf("failed to update session guilds: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteDashboardSession removes a session. Unknown tokens are ignored.
func (db *DB) DeleteDashboardSession(ctx context.Context, token string) error {
	query := `DELETE FROM dashboard_sessions WHERE token = $1`

	if _, err := db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("failed to delete dashboard session: %w", err)
	}

	return nil
}

// DeleteExpiredDashboardSessions removes every session that expired before now.
func (db *DB) DeleteExpiredDashboardSessions(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM dashboard_sessions WHERE expires_at <= $1`

	result, err := db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		db.logger.Debug("deleted expired dashboard sessions", zap.Int64("count", rows))
	}

	return rows, nil
}

// nullJSON maps a nil document to SQL NULL. lib/pq sends []byte as bytea,
// so documents are passed as text for the JSONB columns.
func nullJSON(doc []byte) sql.NullString {
	if doc == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(doc), Valid: true}
}
