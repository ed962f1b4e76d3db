// Package oauth provides the HTTP handlers of the dashboard API: the OAuth
// login and callback redirects, the session-authenticated identity, guild and
// configuration routes, and the health and metrics endpoints.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/apperrors"
	"github.com/parsascontentcorner/guilddash/internal/auth"
	"github.com/parsascontentcorner/guilddash/internal/database"
	"github.com/parsascontentcorner/guilddash/internal/guilds"
	"github.com/parsascontentcorner/guilddash/internal/models"
	"github.com/parsascontentcorner/guilddash/internal/session"
	"github.com/parsascontentcorner/guilddash/pkg/logger"
)

const maxConfigBodyBytes = 64 << 10

// ConfigStore reads and writes guild configuration. *database.DB implements it.
type ConfigStore interface {
	GetGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error)
	UpsertGuildConfig(ctx context.Context, cfg *models.GuildConfig) error
}

// ActivityStore reads the moderation, ticket and analytics history the bot
// records. *database.DB implements it.
type ActivityStore interface {
	ListWarnings(ctx context.Context, guildID, userID string, limit int) ([]models.Warning, error)
	ListTickets(ctx context.Context, guildID string, limit int) ([]models.Ticket, error)
	AnalyticsReport(ctx context.Context, guildID string, limit int) (*models.AnalyticsReport, error)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the dependencies of Handlers. Health may be nil; without
// Activity the activity routes are not registered.
type Options struct {
	OAuth        *auth.OAuthHandler
	Sessions     session.Store
	Guilds       *guilds.Service
	Configs      ConfigStore
	Activity     ActivityStore
	Health       Pinger
	DashboardURL string
	Logger       *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	oauthHandler *auth.OAuthHandler
	sessions     session.Store
	guilds       *guilds.Service
	configs      ConfigStore
	activity     ActivityStore
	health       Pinger
	dashboardURL string
	logger       *zap.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(opts Options) *Handlers {
	return &Handlers{
		oauthHandler: opts.OAuth,
		sessions:     opts.Sessions,
		guilds:       opts.Guilds,
		configs:      opts.Configs,
		activity:     opts.Activity,
		health:       opts.Health,
		dashboardURL: strings.TrimRight(opts.DashboardURL, "/"),
		logger:       opts.Logger,
	}
}

// sessionHandle is a route that runs after the bearer token resolved to a live session.
type sessionHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *models.Session)

// Routes registers every API route on a new router.
func (h *Handlers) Routes() *httprouter.Router {
	router := httprouter.New()
	router.HandleMethodNotAllowed = true

	router.GET("/api/auth/login", h.instrument("/api/auth/login", h.handleLogin))
	router.GET("/api/auth/callback", h.instrument("/api/auth/callback", h.handleCallback))
	router.GET("/api/auth/me", h.instrument("/api/auth/me", h.requireSession(h.handleMe)))
	router.GET("/api/auth/guilds", h.instrument("/api/auth/guilds", h.requireSession(h.handleGuilds)))
	router.POST("/api/auth/logout", h.instrument("/api/auth/logout", h.requireSession(h.handleLogout)))

	router.GET("/api/config/:guildId", h.instrument("/api/config/:guildId", h.requireSession(h.requireGuildAccess(h.handleGetConfig))))
	router.POST("/api/config/:guildId", h.instrument("/api/config/:guildId", h.requireSession(h.requireGuildAccess(h.handleSaveConfig))))

	if h.activity != nil {
		router.GET("/api/config/:guildId/warns", h.instrument("/api/config/:guildId/warns", h.requireSession(h.requireGuildAccess(h.handleWarnings))))
		router.GET("/api/config/:guildId/tickets", h.instrument("/api/config/:guildId/tickets", h.requireSession(h.requireGuildAccess(h.handleTickets))))
		router.GET("/api/config/:guildId/analytics", h.instrument("/api/config/:guildId/analytics", h.requireSession(h.requireGuildAccess(h.handleAnalytics))))
	}

	router.GET("/api/guilds/:guildId/channels", h.instrument("/api/guilds/:guildId/channels", h.requireSession(h.requireGuildAccess(h.handleChannels))))
	router.GET("/api/guilds/:guildId/roles", h.instrument("/api/guilds/:guildId/roles", h.requireSession(h.requireGuildAccess(h.handleRoles))))
	router.GET("/api/guilds/:guildId/info", h.instrument("/api/guilds/:guildId/info", h.requireSession(h.requireGuildAccess(h.handleInfo))))

	router.GET("/health", h.instrument("/health", h.handleHealth))
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, apperrors.NotFound("Route not found"))
	})

	return router
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	loginURL, err := h.oauthHandler.LoginURL()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, loginURL, http.StatusFound)
}

// handleCallback always answers with a redirect to the dashboard, carrying
// either the new session token or a human-readable auth_error.
func (h *Handlers) handleCallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	log := logger.FromContext(r.Context(), h.logger)

	if errParam := query.Get("error"); errParam != "" {
		log.Warn("oauth error from discord",
			zap.String("error", errParam),
			zap.String("description", query.Get("error_description")),
		)
		h.redirectAuthError(w, r, "Discord OAuth error: "+errParam)
		return
	}

	sess, err := h.oauthHandler.HandleCallback(r.Context(), query.Get("code"), query.Get("state"))
	if err != nil {
		appErr := apperrors.As(err)
		log.Warn("oauth callback failed",
			zap.String("type", string(appErr.Type)),
			zap.String("reason", appErr.Message),
		)
		h.redirectAuthError(w, r, appErr.Message)
		return
	}

	http.Redirect(w, r, h.dashboardURL+"/dashboard?token="+url.QueryEscape(sess.Token), http.StatusFound)
}

func (h *Handlers) redirectAuthError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, h.dashboardURL+"/?auth_error="+EncodeAuthError(message), http.StatusFound)
}

// EncodeAuthError percent-encodes message for the auth_error parameter, with
// spaces as %20 rather than +.
func EncodeAuthError(message string) string {
	return strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}

func (h *Handlers) handleMe(w http.ResponseWriter, _ *http.Request, _ httprouter.Params, sess *models.Session) {
	h.writeJSON(w, http.StatusOK, sess.User)
}

func (h *Handlers) handleGuilds(w http.ResponseWriter, r *http.Request, _ httprouter.Params, sess *models.Session) {
	list := h.guilds.UserGuilds(r.Context(), sess)

	switch r.URL.Query().Get("manageable") {
	case "1", "true":
		list = models.ManageableGuilds(list)
	}

	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request, _ httprouter.Params, sess *models.Session) {
	if err := h.oauthHandler.Logout(r.Context(), sess.Token); err != nil {
		h.writeError(w, r, err)
		return
	}

	logger.FromContext(r.Context(), h.logger).Info("dashboard session ended", zap.String("discord_id", sess.User.ID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleGetConfig(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *models.Session) {
	guildID := ps.ByName("guildId")

	cfg, err := h.configs.GetGuildConfig(r.Context(), guildID)
	if errors.Is(err, database.ErrNotFound) {
		cfg = models.DefaultGuildConfig(guildID)
	} else if err != nil {
		h.writeError(w, r, apperrors.Internal("Failed to load configuration", err).WithContext("guild_id", guildID))
		return
	}

	h.writeJSON(w, http.StatusOK, cfg)
}

type saveConfigResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handlers) handleSaveConfig(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *models.Session) {
	guildID := ps.ByName("guildId")

	var cfg models.GuildConfig
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBodyBytes)).Decode(&cfg); err != nil {
		h.writeError(w, r, apperrors.Validation("Invalid JSON body").WithContext("decode_error", err.Error()))
		return
	}

	if cfg.GuildID != "" && cfg.GuildID != guildID {
		h.writeError(w, r, apperrors.Validation("guild_id does not match the URL"))
		return
	}
	cfg.GuildID = guildID

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		h.writeError(w, r, apperrors.Validation(err.Error()))
		return
	}

	if err := h.configs.UpsertGuildConfig(r.Context(), &cfg); err != nil {
		h.writeError(w, r, apperrors.Internal("Failed to save configuration", err).WithContext("guild_id", guildID))
		return
	}

	logger.FromContext(r.Context(), h.logger).Info("guild configuration updated",
		zap.String("guild_id", guildID),
		zap.String("discord_id", sess.User.ID),
	)

	h.writeJSON(w, http.StatusOK, saveConfigResponse{Success: true, Message: "Configuration updated"})
}

func (h *Handlers) handleChannels(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *models.Session) {
	guildID := ps.ByName("guildId")

	if r.URL.Query().Get("refresh") == "true" {
		h.guilds.InvalidateChannels(guildID)
	}

	channels, err := h.guilds.Channels(r.Context(), guildID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, channels)
}

func (h *Handlers) handleRoles(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *models.Session) {
	roles, err := h.guilds.Roles(r.Context(), ps.ByName("guildId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, roles)
}

func (h *Handlers) handleInfo(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *models.Session) {
	info, err := h.guilds.Info(r.Context(), ps.ByName("guildId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// handleHealth handles health check requests
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.health.Ping(ctx); err != nil {
			logger.FromContext(r.Context(), h.logger).Error("health check failed", zap.Error(err))
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("failed to write health check response", zap.Error(err))
	}
}
