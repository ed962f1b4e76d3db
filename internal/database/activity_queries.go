package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/parsascontentcorner/guilddash/internal/models"
)

// ListWarnings returns up to limit warnings of a guild, newest first. A
// non-empty userID restricts the list to warnings issued to that member.
func (db *DB) ListWarnings(ctx context.Context, guildID, userID string, limit int) ([]models.Warning, error) {
	query := `
		SELECT id, guild_id, user_id, moderator_id, reason, created_at
		FROM warns
		WHERE guild_id = $1 AND ($2::text = '' OR user_id = $2::text)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := db.QueryContext(ctx, query, guildID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list warnings: %w", err)
	}
	defer rows.Close()

	warnings := []models.Warning{}
	for rows.Next() {
		var (
			w      models.Warning
			reason sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.GuildID, &w.UserID, &w.ModeratorID, &reason, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		w.Reason = fromNullString(reason)
		warnings = append(warnings, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list warnings: %w", err)
	}

	return warnings, nil
}

// ListTickets returns up to limit tickets of a guild, newest first.
func (db *DB) ListTickets(ctx context.Context, guildID string, limit int) ([]models.Ticket, error) {
	query := `
		SELECT id, guild_id, channel_id, user_id, status, created_at, closed_at
		FROM tickets
		WHERE guild_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := db.QueryContext(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		var (
			tk       models.Ticket
			channel  sql.NullString
			closedAt sql.NullTime
		)
		if err := rows.Scan(&tk.ID, &tk.GuildID, &channel, &tk.UserID, &tk.Status, &tk.CreatedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tk.ChannelID = fromNullString(channel)
		if closedAt.Valid {
			t := closedAt.Time
			tk.ClosedAt = &t
		}
		tickets = append(tickets, tk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	return tickets, nil
}

// AnalyticsReport returns the latest limit events of a guild together with
// per-type counts over all of its events.
func (db *DB) AnalyticsReport(ctx context.Context, guildID string, limit int) (*models.AnalyticsReport, error) {
	report := &models.AnalyticsReport{
		Events:  []models.AnalyticsEvent{},
		Summary: make(map[string]int),
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, guild_id, event_type, event_data, created_at
		FROM analytics
		WHERE guild_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analytics events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e    models.AnalyticsEvent
			data sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.GuildID, &e.EventType, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analytics event: %w", err)
		}
		e.Data = fromNullString(data)
		report.Events = append(report.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list analytics events: %w", err)
	}

	counts, err := db.QueryContext(ctx, `
		SELECT event_type, COUNT(*)
		FROM analytics
		WHERE guild_id = $1
		GROUP BY event_type
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to count analytics events: %w", err)
	}
	defer counts.Close()

	for counts.Next() {
		var (
			eventType string
			n         int
		)
		if err := counts.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan analytics count: %w", err)
		}
		report.Summary[eventType] = n
	}
	if err := counts.Err(); err != nil {
		return nil, fmt.Errorf("failed to count analytics events: %w", err)
	}

	return report, nil
}
