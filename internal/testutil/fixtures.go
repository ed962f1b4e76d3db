package testutil

import (
	"context"
	"crypto/rand"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parsascontentcorner/guilddash/internal/config"
	"github.com/parsascontentcorner/guilddash/internal/database"
	"github.com/parsascontentcorner/guilddash/internal/models"
)

// GenerateUser creates a test user with the given Discord ID.
func GenerateUser(discordID string) models.User {
	avatar := "test_avatar_hash"
	return models.User{
		ID:            discordID,
		Username:      fmt.Sprintf("testuser_%s", discordID),
		Discriminator: "0",
		Avatar:        &avatar,
	}
}

// GenerateSession creates a live session for the mock user, expiring after ttl from now.
// Guilds are left uncached.
func GenerateSession(now time.Time, ttl time.Duration) *models.Session {
	return &models.Session{
		Token:       uuid.NewString(),
		User:        GenerateUser(MockUserID),
		AccessToken: models.NewRedactedToken(MockAccessToken),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// GenerateGuildConfig returns a configuration with the welcome feature enabled.
func GenerateGuildConfig(guildID string) *models.GuildConfig {
	cfg := models.DefaultGuildConfig(guildID)
	cfg.WelcomeEnabled = true
	cfg.WelcomeChannelID = models.StringPtr("900000000000000001")
	cfg.WelcomeMessage = "Hello {user}, welcome to {server}! You are member #{member_count}."
	return cfg
}

// GenerateEncryptionKey generates a 32-byte encryption key for testing.
func GenerateEncryptionKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("failed to generate encryption key: %v", err))
	}
	return key
}

// GenerateTestConfig creates a test configuration with valid values.
// discordURL is the base URL of a MockDiscordServer. Retries are disabled.
func GenerateTestConfig(discordURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPPort:       "8000",
			Host:           "localhost",
			Env:            "test",
			DashboardURL:   "http://localhost:5173",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Discord: config.DiscordConfig{
			ClientID:         "test_client_id",
			ClientSecret:     "test_client_secret",
			RedirectURI:      "http://localhost:8000/api/auth/callback",
			Scopes:           []string{"identify", "guilds"},
			BotToken:         MockBotToken,
			APIBaseURL:       discordURL,
			HTTPTimeout:      5 * time.Second,
			MaxRetries:       0,
			ChannelCacheTTL:  time.Minute,
			ChannelCacheSize: 16,
		},
		Session: config.SessionConfig{
			Backend:         config.SessionBackendMemory,
			TTL:             24 * time.Hour,
			CleanupInterval: time.Minute,
			StateTTL:        10 * time.Minute,
		},
		Database: config.DatabaseConfig{
			Host:         "localhost",
			Port:         "5432",
			User:         "testuser",
			Password:     "testpass",
			Name:         "testdb",
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
		Redis: config.RedisConfig{
			URL:       "redis://localhost:6379/0",
			KeyPrefix: "test:",
		},
		Security: config.SecurityConfig{
			TokenEncryptionKey: GenerateEncryptionKey(),
			StateSigningKey:    GenerateEncryptionKey(),
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}

// MemoryConfigStore is an in-memory guild configuration store with the same
// contract as the database: GetGuildConfig returns database.ErrNotFound for
// guilds that were never saved.
type MemoryConfigStore struct {
	mu      sync.Mutex
	configs map[string]models.GuildConfig
	// FailWrites makes UpsertGuildConfig fail when set.
	FailWrites bool
	Writes     int
}

// NewMemoryConfigStore creates an empty store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{configs: make(map[string]models.GuildConfig)}
}

// GetGuildConfig returns a copy of the stored configuration.
func (m *MemoryConfigStore) GetGuildConfig(_ context.Context, guildID string) (*models.GuildConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[guildID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &cfg, nil
}

// UpsertGuildConfig stores a copy of cfg.
func (m *MemoryConfigStore) UpsertGuildConfig(_ context.Context, cfg *models.GuildConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return fmt.Errorf("failed to upsert guild config: connection refused")
	}
	m.configs[cfg.GuildID] = *cfg
	m.Writes++
	return nil
}

// MemoryActivityStore serves the activity views from an Activity per guild,
// applying the same ordering and limits as the database.
type MemoryActivityStore struct {
	mu       sync.Mutex
	activity map[string]Activity
	// Fail makes every read fail when set.
	Fail bool
}

// NewMemoryActivityStore creates an empty store.
func NewMemoryActivityStore() *MemoryActivityStore {
	return &MemoryActivityStore{activity: make(map[string]Activity)}
}

// Set replaces the activity of guildID.
func (m *MemoryActivityStore) Set(guildID string, a Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity[guildID] = a
}

func (m *MemoryActivityStore) get(guildID string) (Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return Activity{}, fmt.Errorf("failed to query activity: connection refused")
	}
	return m.activity[guildID], nil
}

// ListWarnings returns the guild's warnings, newest first, optionally for one member.
func (m *MemoryActivityStore) ListWarnings(_ context.Context, guildID, userID string, limit int) ([]models.Warning, error) {
	a, err := m.get(guildID)
	if err != nil {
		return nil, err
	}

	out := []models.Warning{}
	for _, w := range slices.Backward(a.Warnings) {
		if userID != "" && w.UserID != userID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, w)
	}
	return out, nil
}

// ListTickets returns the guild's tickets, newest first.
func (m *MemoryActivityStore) ListTickets(_ context.Context, guildID string, limit int) ([]models.Ticket, error) {
	a, err := m.get(guildID)
	if err != nil {
		return nil, err
	}

	out := []models.Ticket{}
	for _, tk := range slices.Backward(a.Tickets) {
		if len(out) == limit {
			break
		}
		out = append(out, tk)
	}
	return out, nil
}

// AnalyticsReport returns the latest events and the per-type counts of all of them.
func (m *MemoryActivityStore) AnalyticsReport(_ context.Context, guildID string, limit int) (*models.AnalyticsReport, error) {
	a, err := m.get(guildID)
	if err != nil {
		return nil, err
	}

	events := slices.Clone(a.Events)
	models.NewestFirst(events)
	if len(events) > limit {
		events = events[:limit]
	}
	if events == nil {
		events = []models.AnalyticsEvent{}
	}
	return &models.AnalyticsReport{Events: events, Summary: models.CountEventTypes(a.Events)}, nil
}
