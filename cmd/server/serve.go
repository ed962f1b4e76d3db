package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/auth"
	"github.com/parsascontentcorner/guilddash/internal/config"
	"github.com/parsascontentcorner/guilddash/internal/database"
	"github.com/parsascontentcorner/guilddash/internal/guilds"
	httpserver "github.com/parsascontentcorner/guilddash/internal/http"
	"github.com/parsascontentcorner/guilddash/internal/oauth"
	"github.com/parsascontentcorner/guilddash/internal/ratelimit"
	"github.com/parsascontentcorner/guilddash/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP API",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		// Sync errors on stdout/stderr are expected and can be safely ignored
		// for non-syncable file descriptors (pipes, terminals, etc.)
		_ = log.Sync()
	}()

	log.Info("starting guilddash",
		zap.String("environment", cfg.Server.Env),
		zap.String("http_port", cfg.Server.HTTPPort),
		zap.String("session_backend", cfg.Session.Backend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	db, err := database.NewDB(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	clock := clockwork.NewRealClock()

	sessions, closeSessions, err := newSessionStore(ctx, cfg, db, clock)
	if err != nil {
		return err
	}
	defer closeSessions()
	session.StartSweeper(ctx, sessions, cfg.Session.CleanupInterval, log)

	signingKey, err := stateSigningKey(cfg, log)
	if err != nil {
		return err
	}

	// Initialize auth components
	discordClient := auth.NewDiscordClient(cfg, log)
	discordClient.SetRateLimiter(ratelimit.NewRateLimiter(log))
	stateManager := auth.NewStateManager(signingKey, cfg.Session.StateTTL, clock)
	oauthHandler := auth.NewOAuthHandler(discordClient, stateManager, sessions, &cfg.Session, clock, log)

	if cfg.Discord.BotToken == "" {
		log.Warn("DISCORD_BOT_TOKEN is not set; channel, role and guild info routes will fail")
	}
	guildService := guilds.NewService(discordClient, sessions, cfg.Discord.ChannelCacheSize, cfg.Discord.ChannelCacheTTL, log)

	handlers := oauth.NewHandlers(oauth.Options{
		OAuth:        oauthHandler,
		Sessions:     sessions,
		Guilds:       guildService,
		Configs:      db,
		Activity:     db,
		Health:       db,
		DashboardURL: cfg.Server.DashboardURL,
		Logger:       log,
	})
	httpServer := httpserver.NewServer(handlers.Routes(), &cfg.Server, log)

	httpErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(); err != nil {
			httpErrChan <- err
		}
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-httpErrChan:
		return fmt.Errorf("HTTP server error: %w", err)
	case sig := <-sigChan:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server gracefully", zap.Error(err))
	}

	log.Info("server shut down successfully")
	return nil
}

// stateSigningKey returns the configured key, or a random one that does not
// survive a restart.
func stateSigningKey(cfg *config.Config, log *zap.Logger) ([]byte, error) {
	if len(cfg.Security.StateSigningKey) > 0 {
		return cfg.Security.StateSigningKey, nil
	}

	key, err := auth.GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	log.Warn("STATE_SIGNING_KEY is not set; using a random key, logins in flight will fail after a restart or on another instance",
		zap.Bool("production", cfg.Server.IsProduction()),
	)
	return key, nil
}
