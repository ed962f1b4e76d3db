// Package auth provides Discord OAuth2 authentication and the Discord REST
// calls the dashboard needs: code exchange, profile and guild list with the
// user's token, and guild channels, roles and metadata with the bot token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/parsascontentcorner/guilddash/internal/config"
	"github.com/parsascontentcorner/guilddash/internal/metrics"
	"github.com/parsascontentcorner/guilddash/internal/models"
	"github.com/parsascontentcorner/guilddash/internal/ratelimit"
)

const (
	discordAuthURL = "https://discord.com/oauth2/authorize"
	userAgent      = "DiscordBot (https://github.com/parsascontentcorner/guilddash, 1.0)"
	maxBodyBytes   = 4 << 20
)

// ErrBotTokenMissing is returned by bot-token routes when DISCORD_BOT_TOKEN is unset.
var ErrBotTokenMissing = errors.New("bot token not configured")

// APIError is a non-2xx response from the Discord REST API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord API returned status %d: %s", e.StatusCode, e.Body)
}

// StatusCode returns the Discord status carried by err, or 0 when err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// discordGuild is the subset of GET /guilds/{id}?with_counts=true we read.
type discordGuild struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	Icon                   *string `json:"icon"`
	OwnerID                string  `json:"owner_id"`
	ApproximateMemberCount int     `json:"approximate_member_count"`
}

// DiscordClient handles Discord OAuth and REST operations
type DiscordClient struct {
	config      *oauth2.Config
	httpClient  *http.Client
	logger      *zap.Logger
	baseURL     string // Discord API base URL (configurable for testing)
	rateLimiter *ratelimit.RateLimiter
	botToken    string

	maxRetries     int
	initialBackoff time.Duration
}

// NewDiscordClient creates a new Discord client from configuration
func NewDiscordClient(cfg *config.Config, logger *zap.Logger) *DiscordClient {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURL:  cfg.Discord.RedirectURI,
		Scopes:       cfg.Discord.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   discordAuthURL,
			TokenURL:  cfg.Discord.APIBaseURL + "/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return &DiscordClient{
		config:         oauthConfig,
		httpClient:     &http.Client{Timeout: cfg.Discord.HTTPTimeout},
		logger:         logger,
		baseURL:        cfg.Discord.APIBaseURL,
		botToken:       cfg.Discord.BotToken,
		maxRetries:     cfg.Discord.MaxRetries,
		initialBackoff: 250 * time.Millisecond,
	}
}

// AuthURL constructs the Discord OAuth authorization URL.
// An empty state omits the parameter.
func (dc *DiscordClient) AuthURL(state string) string {
	return dc.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for an access token
func (dc *DiscordClient) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, dc.httpClient)

	token, err := dc.config.Exchange(ctx, code)
	if err != nil {
		metrics.DiscordRequestsTotal.WithLabelValues("exchange_code", "error").Inc()
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	metrics.DiscordRequestsTotal.WithLabelValues("exchange_code", "success").Inc()

	dc.logger.Debug("successfully exchanged code for token",
		zap.String("token_type", token.TokenType),
		zap.Time("expiry", token.Expiry),
	)

	return token, nil
}

// GetUserInfo fetches the authenticated user's profile
func (dc *DiscordClient) GetUserInfo(ctx context.Context, accessToken string) (*models.User, error) {
	var user models.User
	if err := dc.get(ctx, "get_user", "/users/@me", "Bearer "+accessToken, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	dc.logger.Debug("fetched user info from Discord",
		zap.String("discord_id", user.ID),
		zap.String("username", user.Username),
	)

	return &user, nil
}

// GetUserGuilds fetches the guilds the user belongs to
func (dc *DiscordClient) GetUserGuilds(ctx context.Context, accessToken string) ([]models.Guild, error) {
	var guilds []models.Guild
	if err := dc.get(ctx, "get_user_guilds", "/users/@me/guilds", "Bearer "+accessToken, &guilds); err != nil {
		return nil, fmt.Errorf("failed to fetch user guilds: %w", err)
	}

	dc.logger.Debug("fetched user guilds from Discord", zap.Int("guild_count", len(guilds)))

	return guilds, nil
}

// GetGuildChannels fetches every channel of a guild using the bot token
func (dc *DiscordClient) GetGuildChannels(ctx context.Context, guildID string) ([]models.Channel, error) {
	if dc.botToken == "" {
		return nil, ErrBotTokenMissing
	}

	var channels []models.Channel
	if err := dc.get(ctx, "get_guild_channels", "/guilds/"+guildID+"/channels", "Bot "+dc.botToken, &channels); err != nil {
		return nil, fmt.Errorf("failed to fetch guild channels: %w", err)
	}

	dc.logger.Debug("fetched guild channels from Discord",
		zap.String("guild_id", guildID),
		zap.Int("channel_count", len(channels)),
	)

	return channels, nil
}

// GetGuildRoles fetches the roles of a guild using the bot token
func (dc *DiscordClient) GetGuildRoles(ctx context.Context, guildID string) ([]models.Role, error) {
	if dc.botToken == "" {
		return nil, ErrBotTokenMissing
	}

	var roles []models.Role
	if err := dc.get(ctx, "get_guild_roles", "/guilds/"+guildID+"/roles", "Bot "+dc.botToken, &roles); err != nil {
		return nil, fmt.Errorf("failed to fetch guild roles: %w", err)
	}

	return roles, nil
}

// GetGuild fetches guild metadata with approximate member counts using the bot token
func (dc *DiscordClient) GetGuild(ctx context.Context, guildID string) (*models.GuildInfo, error) {
	if dc.botToken == "" {
		return nil, ErrBotTokenMissing
	}

	var g discordGuild
	if err := dc.get(ctx, "get_guild", "/guilds/"+guildID+"?with_counts=true", "Bot "+dc.botToken, &g); err != nil {
		return nil, fmt.Errorf("failed to fetch guild: %w", err)
	}

	return &models.GuildInfo{
		ID:          g.ID,
		Name:        g.Name,
		Icon:        g.Icon,
		OwnerID:     g.OwnerID,
		MemberCount: g.ApproximateMemberCount,
	}, nil
}

// SetRateLimiter sets the rate limiter for the Discord client
func (dc *DiscordClient) SetRateLimiter(rl *ratelimit.RateLimiter) {
	dc.rateLimiter = rl
}

// SetBaseURL points the REST and token endpoints at another host (used for testing)
func (dc *DiscordClient) SetBaseURL(url string) {
	dc.baseURL = url
	dc.config.Endpoint.TokenURL = url + "/oauth2/token"
}

// SetRetryPolicy overrides how many times transient failures are retried and the first delay.
func (dc *DiscordClient) SetRetryPolicy(maxRetries int, initial time.Duration) {
	dc.maxRetries = maxRetries
	dc.initialBackoff = initial
}

// get performs a rate-limited GET and decodes the JSON body into out.
// Network errors, 429 and 5xx are retried with exponential backoff; 4xx is final.
func (dc *DiscordClient) get(ctx context.Context, operation, route, authorization string, out any) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = dc.initialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(dc.maxRetries)), ctx)

	attempt := 0
	body, err := backoff.RetryWithData(func() ([]byte, error) {
		attempt++
		return dc.doOnce(ctx, route, authorization)
	}, policy)

	if err != nil {
		outcome := "network_error"
		if status := StatusCode(err); status >= 500 || status == http.StatusTooManyRequests {
			outcome = "server_error"
		} else if status >= 400 {
			outcome = "client_error"
		}
		metrics.DiscordRequestsTotal.WithLabelValues(operation, outcome).Inc()

		dc.logger.Debug("discord request failed",
			zap.String("operation", operation),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return err
	}
	metrics.DiscordRequestsTotal.WithLabelValues(operation, "success").Inc()

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}

	return nil
}

func (dc *DiscordClient) doOnce(ctx context.Context, route, authorization string) ([]byte, error) {
	if dc.rateLimiter != nil {
		if err := dc.rateLimiter.Wait(ctx, route); err != nil {
			return nil, backoff.Permanent(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dc.baseURL+route, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("User-Agent", userAgent)

	resp, err := dc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			dc.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if dc.rateLimiter != nil {
		dc.rateLimiter.UpdateFromHeaders(route, resp.Header)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.DiscordRateLimitedTotal.Inc()
		if dc.rateLimiter != nil {
			dc.rateLimiter.HandleRateLimitResponse(route, resp.Header)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	case resp.StatusCode >= 500:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(&APIError{StatusCode: resp.StatusCode, Body: string(data)})
	}

	return data, nil
}
