// Package session stores dashboard sessions: the opaque token handed to the
// browser mapped to the Discord identity, access token and cached guild list.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/metrics"
	"github.com/parsascontentcorner/guilddash/internal/models"
)

var (
	// ErrNotFound is returned for tokens that were never issued or were deleted.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = errors.New("session expired")
	// ErrExists is returned by Put when a live session already holds the token.
	ErrExists = errors.New("session token already in use")
)

// Store is implemented by every session backend. Implementations are safe for
// concurrent use. Get checks expiry on every read; Expire only reclaims space.
type Store interface {
	// Put stores a new session. It fails with ErrExists if the token is live.
	Put(ctx context.Context, s *models.Session) error
	// Get returns the session for token, or ErrNotFound / ErrExpired.
	Get(ctx context.Context, token string) (*models.Session, error)
	// SetGuilds replaces the cached guild list. Last writer wins.
	SetGuilds(ctx context.Context, token string, guilds []models.Guild) error
	// Delete removes the session. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
	// Expire removes expired sessions and reports how many were removed.
	Expire(ctx context.Context) (int, error)
}

// NewToken returns a fresh random session token.
func NewToken() string {
	return uuid.NewString()
}

// IsInvalid reports whether err means the token does not identify a live session.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired)
}

// StartSweeper runs store.Expire every interval until ctx is cancelled.
func StartSweeper(ctx context.Context, store Store, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("session sweeper stopped")
				return
			case <-ticker.C:
				n, err := store.Expire(ctx)
				if err != nil {
					logger.Error("failed to expire sessions", zap.Error(err))
					continue
				}
				if n > 0 {
					metrics.SessionsExpiredTotal.Add(float64(n))
					logger.Info("expired sessions removed", zap.Int("count", n))
				}
			}
		}
	}()

	logger.Info("session sweeper started", zap.Duration("interval", interval))
}
