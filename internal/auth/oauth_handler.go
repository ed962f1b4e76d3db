package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/apperrors"
	"github.com/parsascontentcorner/guilddash/internal/config"
	"github.com/parsascontentcorner/guilddash/internal/metrics"
	"github.com/parsascontentcorner/guilddash/internal/models"
	"github.com/parsascontentcorner/guilddash/internal/session"
)

// Messages carried back to the dashboard in the auth_error query parameter.
const (
	MsgNoCode         = "No authorization code received"
	MsgInvalidState   = "Invalid or expired state"
	MsgExchangeFailed = "Failed to exchange authorization code"
	MsgProfileFailed  = "Failed to fetch user information"
	MsgSessionFailed  = "Failed to create session"
)

const maxTokenAttempts = 3

// OAuthHandler orchestrates the OAuth flow: it issues login URLs, turns a
// callback code into a stored session and ends sessions on logout.
type OAuthHandler struct {
	discordClient *DiscordClient
	stateManager  *StateManager
	sessions      session.Store
	clock         clockwork.Clock
	sessionTTL    time.Duration
	requireState  bool
	logger        *zap.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(
	discordClient *DiscordClient,
	stateManager *StateManager,
	sessions session.Store,
	cfg *config.SessionConfig,
	clock clockwork.Clock,
	logger *zap.Logger,
) *OAuthHandler {
	return &OAuthHandler{
		discordClient: discordClient,
		stateManager:  stateManager,
		sessions:      sessions,
		clock:         clock,
		sessionTTL:    cfg.TTL,
		requireState:  cfg.RequireState,
		logger:        logger,
	}
}

// LoginURL returns the Discord authorize URL carrying a fresh signed state.
func (oh *OAuthHandler) LoginURL() (string, error) {
	state, err := oh.stateManager.GenerateState()
	if err != nil {
		return "", apperrors.Internal("Failed to start login", err)
	}
	return oh.discordClient.AuthURL(state), nil
}

// HandleCallback processes the OAuth callback and returns the new session.
// Errors are *apperrors.Error whose Message is safe to show to the user.
func (oh *OAuthHandler) HandleCallback(ctx context.Context, code, state string) (*models.Session, error) {
	if code == "" {
		return nil, apperrors.ProviderAuth(MsgNoCode)
	}

	// 1. Validate state. A missing state is tolerated unless required.
	if state != "" || oh.requireState {
		if err := oh.stateManager.ValidateState(state); err != nil {
			oh.logger.Warn("state validation failed", zap.Error(err))
			return nil, apperrors.ProviderAuth(MsgInvalidState)
		}
	}

	// 2. Exchange code for token
	token, err := oh.discordClient.ExchangeCode(ctx, code)
	if err != nil {
		oh.logger.Error("failed to exchange code", zap.Error(err))
		return nil, apperrors.TokenExchange(MsgExchangeFailed, err)
	}

	// 3. Fetch user info from Discord
	user, err := oh.discordClient.GetUserInfo(ctx, token.AccessToken)
	if err != nil {
		oh.logger.Error("failed to fetch user info", zap.Error(err))
		return nil, apperrors.TokenExchange(MsgProfileFailed, err)
	}

	// 4. Prefetch guilds. Failure leaves the cache empty and is retried on demand.
	guilds, err := oh.discordClient.GetUserGuilds(ctx, token.AccessToken)
	if err != nil {
		metrics.GuildCacheFillsTotal.WithLabelValues("degraded").Inc()
		oh.logger.Warn("failed to prefetch user guilds",
			zap.String("discord_id", user.ID),
			zap.Error(err),
		)
		guilds = nil
	} else {
		metrics.GuildCacheFillsTotal.WithLabelValues("success").Inc()
		if guilds == nil {
			guilds = []models.Guild{}
		}
	}

	// 5. Mint and store the session
	now := oh.clock.Now()
	expiresAt := now.Add(oh.sessionTTL)
	if !token.Expiry.IsZero() && token.Expiry.Before(expiresAt) {
		expiresAt = token.Expiry
	}

	s := &models.Session{
		User:        *user,
		AccessToken: models.NewRedactedToken(token.AccessToken),
		Guilds:      guilds,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}

	for attempt := 1; ; attempt++ {
		s.Token = session.NewToken()
		err = oh.sessions.Put(ctx, s)
		if err == nil {
			break
		}
		if !errors.Is(err, session.ErrExists) || attempt == maxTokenAttempts {
			oh.logger.Error("failed to store session", zap.Int("attempt", attempt), zap.Error(err))
			return nil, apperrors.Internal(MsgSessionFailed, err)
		}
	}

	metrics.SessionsCreatedTotal.Inc()
	oh.logger.Info("dashboard session created",
		zap.String("discord_id", user.ID),
		zap.String("username", user.Username),
		zap.Bool("guilds_cached", s.GuildsCached()),
		zap.Time("expires_at", expiresAt),
	)

	return s, nil
}

// Logout deletes the session. Unknown tokens are not an error.
func (oh *OAuthHandler) Logout(ctx context.Context, token string) error {
	if err := oh.sessions.Delete(ctx, token); err != nil {
		return apperrors.Internal("Failed to end session", err)
	}
	return nil
}
