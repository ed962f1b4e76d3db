package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/parsascontentcorner/guilddash/internal/models"
)

// GetGuildConfig loads the stored configuration of a guild.
// It returns ErrNotFound when the guild was never configured.
func (db *DB) GetGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error) {
	query := `
		SELECT guild_id,
			welcome_enabled, welcome_channel_id, welcome_message,
			leave_enabled, leave_channel_id,
			log_enabled, log_channel_id,
			ticket_enabled, ticket_category_id
		FROM guild_settings
		WHERE guild_id = $1
	`

	var (
		cfg                                        models.GuildConfig
		welcome, leave, logEnabled, ticket         bool
		welcomeChan, leaveChan, logChan, ticketCat sql.NullString
	)
	err := db.QueryRowContext(ctx, query, guildID).Scan(
		&cfg.GuildID,
		&welcome, &welcomeChan, &cfg.WelcomeMessage,
		&leave, &leaveChan,
		&logEnabled, &logChan,
		&ticket, &ticketCat,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild config: %w", err)
	}

	cfg.WelcomeEnabled = models.Flag(welcome)
	cfg.LeaveEnabled = models.Flag(leave)
	cfg.LogEnabled = models.Flag(logEnabled)
	cfg.TicketEnabled = models.Flag(ticket)
	cfg.WelcomeChannelID = fromNullString(welcomeChan)
	cfg.LeaveChannelID = fromNullString(leaveChan)
	cfg.LogChannelID = fromNullString(logChan)
	cfg.TicketCategoryID = fromNullString(ticketCat)

	return &cfg, nil
}

// UpsertGuildConfig stores cfg, replacing every field of an existing row.
func (db *DB) UpsertGuildConfig(ctx context.Context, cfg *models.GuildConfig) error {
	query := `
		INSERT INTO guild_settings (
			guild_id,
			welcome_enabled, welcome_channel_id, welcome_message,
			leave_enabled, leave_channel_id,
			log_enabled, log_channel_id,
			ticket_enabled, ticket_category_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (guild_id)
		DO UPDATE SET
			welcome_enabled = EXCLUDED.welcome_enabled,
			welcome_channel_id = EXCLUDED.welcome_channel_id,
			welcome_message = EXCLUDED.welcome_message,
			leave_enabled = EXCLUDED.leave_enabled,
			leave_channel_id = EXCLUDED.leave_channel_id,
			log_enabled = EXCLUDED.log_enabled,
			log_channel_id = EXCLUDED.log_channel_id,
			ticket_enabled = EXCLUDED.ticket_enabled,
			ticket_category_id = EXCLUDED.ticket_category_id,
			updated_at = NOW()
	`

	_, err := db.ExecContext(ctx, query,
		cfg.GuildID,
		bool(cfg.WelcomeEnabled), toNullString(cfg.WelcomeChannelID), cfg.WelcomeMessage,
		bool(cfg.LeaveEnabled), toNullString(cfg.LeaveChannelID),
		bool(cfg.LogEnabled), toNullString(cfg.LogChannelID),
		bool(cfg.TicketEnabled), toNullString(cfg.TicketCategoryID),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert guild config: %w", err)
	}

	return nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
