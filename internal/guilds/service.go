// Package guilds serves the guild data behind the dashboard: the session's
// guild list with its manage check, and bot-token channel, role and metadata
// lookups with a short-lived channel cache.
package guilds

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/parsascontentcorner/guilddash/internal/apperrors"
	"github.com/parsascontentcorner/guilddash/internal/auth"
	"github.com/parsascontentcorner/guilddash/internal/metrics"
	"github.com/parsascontentcorner/guilddash/internal/models"
	"github.com/parsascontentcorner/guilddash/internal/session"
)

// DiscordAPI is the subset of auth.DiscordClient the service needs.
type DiscordAPI interface {
	GetUserGuilds(ctx context.Context, accessToken string) ([]models.Guild, error)
	GetGuildChannels(ctx context.Context, guildID string) ([]models.Channel, error)
	GetGuildRoles(ctx context.Context, guildID string) ([]models.Role, error)
	GetGuild(ctx context.Context, guildID string) (*models.GuildInfo, error)
}

// Service resolves guild data for dashboard requests.
type Service struct {
	discord  DiscordAPI
	sessions session.Store
	logger   *zap.Logger

	channels       *expirable.LRU[string, []models.Channel]
	guildFills     singleflight.Group
	channelFetches singleflight.Group
}

// NewService creates a guild service. Channel lists are cached for cacheTTL,
// keeping at most cacheSize guilds.
func NewService(discord DiscordAPI, sessions session.Store, cacheSize int, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		discord:  discord,
		sessions: sessions,
		logger:   logger,
		channels: expirable.NewLRU[string, []models.Channel](cacheSize, nil, cacheTTL),
	}
}

// UserGuilds returns the guild list cached on the session, fetching and caching
// it on first use. Concurrent fills for one session share a single upstream call.
// An upstream failure yields an empty list and leaves the cache unfilled.
func (s *Service) UserGuilds(ctx context.Context, sess *models.Session) []models.Guild {
	if sess.GuildsCached() {
		return sess.Guilds
	}

	v, _, _ := s.guildFills.Do(sess.Token, func() (any, error) {
		// Another request may have filled the cache while we waited.
		if current, err := s.sessions.Get(ctx, sess.Token); err == nil && current.GuildsCached() {
			return current.Guilds, nil
		}

		guilds, err := s.discord.GetUserGuilds(ctx, sess.AccessToken.Value())
		if err != nil {
			metrics.GuildCacheFillsTotal.WithLabelValues("degraded").Inc()
			s.logger.Warn("guild list unavailable, returning empty list",
				zap.String("discord_id", sess.User.ID),
				zap.Error(err),
			)
			return []models.Guild{}, nil
		}
		if guilds == nil {
			guilds = []models.Guild{}
		}

		metrics.GuildCacheFillsTotal.WithLabelValues("success").Inc()
		if err := s.sessions.SetGuilds(ctx, sess.Token, guilds); err != nil {
			s.logger.Warn("failed to cache guild list on session", zap.Error(err))
		}
		return guilds, nil
	})

	return v.([]models.Guild)
}

// ManageableGuild returns the guild if the session's user may configure it.
func (s *Service) ManageableGuild(ctx context.Context, sess *models.Session, guildID string) (models.Guild, error) {
	g, ok := models.FindGuild(s.UserGuilds(ctx, sess), guildID)
	if !ok || !g.CanManage() {
		return models.Guild{}, apperrors.Forbidden("You do not have permission to manage this guild").
			WithContext("guild_id", guildID)
	}
	return g, nil
}

// Channels returns the selectable channels of a guild, sorted by position.
func (s *Service) Channels(ctx context.Context, guildID string) ([]models.Channel, error) {
	if cached, ok := s.channels.Get(guildID); ok {
		metrics.ChannelCacheLookupsTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.ChannelCacheLookupsTotal.WithLabelValues("miss").Inc()

	v, err, _ := s.channelFetches.Do(guildID, func() (any, error) {
		channels, err := s.discord.GetGuildChannels(ctx, guildID)
		if err != nil {
			return nil, err
		}
		selectable := models.SelectableChannels(channels)
		s.channels.Add(guildID, selectable)
		return selectable, nil
	})
	if err != nil {
		return nil, upstreamError("Failed to fetch guild channels", err)
	}

	return v.([]models.Channel), nil
}

// InvalidateChannels drops the cached channel list of a guild.
func (s *Service) InvalidateChannels(guildID string) {
	s.channels.Remove(guildID)
}

// Roles returns the roles of a guild ordered by position.
func (s *Service) Roles(ctx context.Context, guildID string) ([]models.Role, error) {
	roles, err := s.discord.GetGuildRoles(ctx, guildID)
	if err != nil {
		return nil, upstreamError("Failed to fetch guild roles", err)
	}

	slices.SortStableFunc(roles, func(a, b models.Role) int {
		return a.Position - b.Position
	})
	return roles, nil
}

// Info returns guild metadata with the approximate member count.
func (s *Service) Info(ctx context.Context, guildID string) (*models.GuildInfo, error) {
	info, err := s.discord.GetGuild(ctx, guildID)
	if err != nil {
		return nil, upstreamError("Failed to fetch guild info", err)
	}
	return info, nil
}

// upstreamError maps a Discord failure to the response the dashboard sees.
// Upstream keeps a 4xx status and reports anything else as a bad gateway.
func upstreamError(message string, err error) error {
	if errors.Is(err, auth.ErrBotTokenMissing) {
		return apperrors.Internal("Bot token not configured", err)
	}

	return apperrors.Upstream(message, auth.StatusCode(err), err)
}
