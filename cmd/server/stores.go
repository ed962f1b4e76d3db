package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/parsascontentcorner/guilddash/internal/config"
	"github.com/parsascontentcorner/guilddash/internal/crypto"
	"github.com/parsascontentcorner/guilddash/internal/database"
	"github.com/parsascontentcorner/guilddash/internal/session"
)

// newSessionStore builds the configured session backend. The returned func
// releases whatever the backend opened.
func newSessionStore(ctx context.Context, cfg *config.Config, db *database.DB, clock clockwork.Clock) (session.Store, func(), error) {
	noop := func() {}

	switch cfg.Session.Backend {
	case config.SessionBackendMemory:
		return session.NewMemoryStore(clock), noop, nil

	case config.SessionBackendRedis:
		cipher, err := crypto.NewCipher(cfg.Security.TokenEncryptionKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create token cipher: %w", err)
		}
		rdb, err := session.OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(rdb, cfg.Redis.KeyPrefix, cipher, clock), func() { _ = rdb.Close() }, nil

	case config.SessionBackendPostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("postgres session backend needs a database connection")
		}
		cipher, err := crypto.NewCipher(cfg.Security.TokenEncryptionKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create token cipher: %w", err)
		}
		return session.NewPostgresStore(db, cipher, clock), noop, nil
	}

	return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
}
