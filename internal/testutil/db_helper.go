package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/database"
	"github.com/parsascontentcorner/guilddash/internal/models"
	"github.com/parsascontentcorner/guilddash/internal/testutil/pgtest"
)

// One container serves every test in the binary. The testcontainers reaper
// removes it when the process exits.
var (
	sharedOnce sync.Once
	sharedPG   *pgtest.Server
	sharedErr  error
)

// NewTestDB returns a migrated database on the shared container. Tables are
// emptied and the connection closed when t finishes. The test is skipped in
// -short mode or when no container runtime is available.
//
// Usage:
//
//	db := testutil.NewTestDB(t)
func NewTestDB(t testing.TB) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	sharedOnce.Do(func() {
		sharedPG, sharedErr = pgtest.Start(context.Background())
	})
	if sharedErr != nil {
		t.Skipf("postgres container unavailable: %v", sharedErr)
	}

	db, err := database.NewDB(sharedPG.DatabaseConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(func() {
		if err := ResetTables(context.Background(), db); err != nil {
			t.Logf("failed to reset tables: %v", err)
		}
		_ = db.Close()
	})

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// ResetTables empties every application table, keeping the schema.
func ResetTables(ctx context.Context, db *database.DB) error {
	return pgtest.Truncate(ctx, db.DB)
}

// SeedGuildConfig stores a configuration for each guild ID, with welcome messages enabled.
func SeedGuildConfig(ctx context.Context, db *database.DB, guildIDs ...string) error {
	for _, id := range guildIDs {
		if err := db.UpsertGuildConfig(ctx, GenerateGuildConfig(id)); err != nil {
			return fmt.Errorf("failed to seed guild config %s: %w", id, err)
		}
	}
	return nil
}

// SeedActivity writes the rows of MockActivity for guildID as the bot would.
func SeedActivity(ctx context.Context, db *database.DB, guildID string) error {
	activity := MockActivity(guildID)

	for _, w := range activity.Warnings {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO warns (guild_id, user_id, moderator_id, reason, created_at) VALUES ($1, $2, $3, $4, $5)`,
			w.GuildID, w.UserID, w.ModeratorID, w.Reason, w.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to seed warning: %w", err)
		}
	}
	for _, tk := range activity.Tickets {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO tickets (guild_id, channel_id, user_id, status, created_at, closed_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			tk.GuildID, tk.ChannelID, tk.UserID, string(tk.Status), tk.CreatedAt, tk.ClosedAt,
		); err != nil {
			return fmt.Errorf("failed to seed ticket: %w", err)
		}
	}
	for _, e := range activity.Events {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO analytics (guild_id, event_type, event_data, created_at) VALUES ($1, $2, $3, $4)`,
			e.GuildID, e.EventType, e.Data, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to seed analytics event: %w", err)
		}
	}
	return nil
}

// Activity is a guild's bot-written history, as the activity views return it.
type Activity struct {
	Warnings []models.Warning
	Tickets  []models.Ticket
	Events   []models.AnalyticsEvent
}

// MockActivity returns two warnings for MockUserID and one for another member,
// a closed and an open ticket, and three analytics events. Lists are oldest
// first and IDs follow that order.
func MockActivity(guildID string) Activity {
	at := func(minutes int) time.Time {
		return time.Date(2024, 5, 1, 12, minutes, 0, 0, time.UTC)
	}
	closed := at(40)

	return Activity{
		Warnings: []models.Warning{
			{ID: 1, GuildID: guildID, UserID: MockUserID, ModeratorID: "100000000000000001", Reason: models.StringPtr("spam"), CreatedAt: at(0)},
			{ID: 2, GuildID: guildID, UserID: "100000000000000002", ModeratorID: "100000000000000001", CreatedAt: at(10)},
			{ID: 3, GuildID: guildID, UserID: MockUserID, ModeratorID: "100000000000000001", Reason: models.StringPtr("caps"), CreatedAt: at(20)},
		},
		Tickets: []models.Ticket{
			{ID: 1, GuildID: guildID, ChannelID: models.StringPtr("900000000000000010"), UserID: MockUserID, Status: models.TicketClosed, CreatedAt: at(30), ClosedAt: &closed},
			{ID: 2, GuildID: guildID, ChannelID: models.StringPtr("900000000000000011"), UserID: MockUserID, Status: models.TicketOpen, CreatedAt: at(50)},
		},
		Events: []models.AnalyticsEvent{
			{ID: 1, GuildID: guildID, EventType: "member_join", Data: models.StringPtr(`{"user_id":"1"}`), CreatedAt: at(0)},
			{ID: 2, GuildID: guildID, EventType: "member_join", Data: models.StringPtr(`{"user_id":"2"}`), CreatedAt: at(5)},
			{ID: 3, GuildID: guildID, EventType: "member_leave", Data: models.StringPtr(`{"user_id":"1"}`), CreatedAt: at(9)},
		},
	}
}
