package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/apperrors"
	"github.com/parsascontentcorner/guilddash/internal/models"
)

const maxResponseBytes = 1 << 20

// ErrUnauthorized is returned for every 401 from the API.
var ErrUnauthorized = errors.New("session is missing, invalid or expired")

// StatusError is a non-2xx answer other than 401.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API returned status %d", e.Status)
	}
	return fmt.Sprintf("API returned status %d: %s", e.Status, e.Message)
}

// Client calls the dashboard API. Every call is bounded by the client timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// LoginURL is where a browser starts the OAuth flow.
func (c *Client) LoginURL() string {
	return c.baseURL + "/api/auth/login"
}

// Me returns the profile of the session's user.
func (c *Client) Me(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Guilds returns the guild list of the session's user.
func (c *Client) Guilds(ctx context.Context, token string) ([]models.Guild, error) {
	var guilds []models.Guild
	if err := c.do(ctx, http.MethodGet, "/api/auth/guilds", token, nil, &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

// Channels returns the selectable channels of a guild.
func (c *Client) Channels(ctx context.Context, token, guildID string) ([]models.Channel, error) {
	var channels []models.Channel
	if err := c.do(ctx, http.MethodGet, "/api/guilds/"+url.PathEscape(guildID)+"/channels", token, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// Config returns the stored configuration of a guild.
func (c *Client) Config(ctx context.Context, token, guildID string) (*models.GuildConfig, error) {
	var cfg models.GuildConfig
	if err := c.do(ctx, http.MethodGet, "/api/config/"+url.PathEscape(guildID), token, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig posts every field of cfg to its guild's config endpoint.
func (c *Client) SaveConfig(ctx context.Context, token string, cfg *models.GuildConfig) error {
	return c.do(ctx, http.MethodPost, "/api/config/"+url.PathEscape(cfg.GuildID), token, cfg, nil)
}

// Logout ends the session server-side.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("dashboard API call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apperrors.ErrorResponse
		_ = json.Unmarshal(data, &apiErr)
		return &StatusError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
