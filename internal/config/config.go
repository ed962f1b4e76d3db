// Package config provides application configuration management using environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Session store backends.
const (
	SessionBackendMemory   = "memory"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Discord  DiscordConfig
	Session  SessionConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8000"`
	Host     string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Env      string `env:"ENVIRONMENT" envDefault:"development"`
	// DashboardURL is the browser dashboard origin. Callback redirects land here.
	DashboardURL   string   `env:"DASHBOARD_URL" envDefault:"http://localhost:5173"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// DiscordConfig holds Discord OAuth and REST configuration
type DiscordConfig struct {
	ClientID     string        `env:"DISCORD_CLIENT_ID"`
	ClientSecret string        `env:"DISCORD_CLIENT_SECRET"`
	RedirectURI  string        `env:"DISCORD_REDIRECT_URI" envDefault:"http://localhost:8000/api/auth/callback"`
	Scopes       []string      `env:"DISCORD_OAUTH_SCOPES" envDefault:"identify guilds" envSeparator:" "`
	BotToken     string        `env:"DISCORD_BOT_TOKEN"`
	APIBaseURL   string        `env:"DISCORD_API_BASE_URL" envDefault:"https://discord.com/api/v10"`
	HTTPTimeout  time.Duration `env:"DISCORD_HTTP_TIMEOUT" envDefault:"10s"`
	MaxRetries   int           `env:"DISCORD_MAX_RETRIES" envDefault:"2"`

	ChannelCacheTTL  time.Duration `env:"CHANNEL_CACHE_TTL" envDefault:"60s"`
	ChannelCacheSize int           `env:"CHANNEL_CACHE_SIZE" envDefault:"256"`
}

// SessionConfig holds dashboard session and OAuth state configuration
type SessionConfig struct {
	Backend         string        `env:"SESSION_BACKEND" envDefault:"memory"`
	TTL             time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"30m"`
	StateTTL        time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	RequireState    bool          `env:"OAUTH_REQUIRE_STATE" envDefault:"false"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host         string `env:"DB_HOST" envDefault:"localhost"`
	Port         string `env:"DB_PORT" envDefault:"5432"`
	User         string `env:"DB_USER" envDefault:"guilddash"`
	Password     string `env:"DB_PASSWORD"`
	Name         string `env:"DB_NAME" envDefault:"guilddash"`
	SSLMode      string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
}

// RedisConfig holds the connection settings for the redis session backend
type RedisConfig struct {
	URL       string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"guilddash:"`
}

// SecurityConfig holds security-related configuration.
// The hex fields are decoded into the byte slices by Load.
type SecurityConfig struct {
	TokenEncryptionKeyHex string `env:"TOKEN_ENCRYPTION_KEY"`
	StateSigningKeyHex    string `env:"STATE_SIGNING_KEY"`

	TokenEncryptionKey []byte
	StateSigningKey    []byte
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load loads configuration from environment variables
// It optionally loads from a .env file if it exists
func Load() (*Config, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Security.TokenEncryptionKeyHex != "" {
		key, err := hex.DecodeString(cfg.Security.TokenEncryptionKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_ENCRYPTION_KEY: must be a hex-encoded string: %w", err)
		}
		cfg.Security.TokenEncryptionKey = key
	}

	if cfg.Security.StateSigningKeyHex != "" {
		key, err := hex.DecodeString(cfg.Security.StateSigningKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid STATE_SIGNING_KEY: must be a hex-encoded string: %w", err)
		}
		cfg.Security.StateSigningKey = key
	}

	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{cfg.Server.DashboardURL}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Discord.ClientID == "" {
		return fmt.Errorf("DISCORD_CLIENT_ID is required")
	}
	if c.Discord.ClientSecret == "" {
		return fmt.Errorf("DISCORD_CLIENT_SECRET is required")
	}
	if c.Discord.RedirectURI == "" {
		return fmt.Errorf("DISCORD_REDIRECT_URI is required")
	}
	if c.Discord.HTTPTimeout <= 0 {
		return fmt.Errorf("DISCORD_HTTP_TIMEOUT must be positive")
	}
	if c.Discord.MaxRetries < 0 {
		return fmt.Errorf("DISCORD_MAX_RETRIES must not be negative")
	}
	if c.Discord.ChannelCacheSize <= 0 {
		return fmt.Errorf("CHANNEL_CACHE_SIZE must be positive")
	}

	u, err := url.Parse(c.Server.DashboardURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("DASHBOARD_URL must be an absolute URL")
	}

	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis, SessionBackendPostgres:
		if len(c.Security.TokenEncryptionKey) != 32 {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be exactly 32 bytes (64 hex characters) for the %s session backend", c.Session.Backend)
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be one of: memory, redis, postgres")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Session.StateTTL <= 0 {
		return fmt.Errorf("OAUTH_STATE_TTL must be positive")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if n := len(c.Security.StateSigningKey); n != 0 && n < 32 {
		return fmt.Errorf("STATE_SIGNING_KEY must be at least 32 bytes")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}

	return nil
}

// IsProduction reports whether the server runs in the production environment.
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
