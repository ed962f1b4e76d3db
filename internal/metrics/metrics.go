// Package metrics declares the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	// HTTPRequestsTotal counts handled requests by route, method and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration tracks handler latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Discord Metrics
var (
	// DiscordRequestsTotal counts outbound Discord API calls by operation and outcome
	DiscordRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discord_api_requests_total",
			Help: "Total Discord API requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// DiscordRateLimitedTotal counts 429 responses from Discord
	DiscordRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discord_api_rate_limited_total",
			Help: "Total Discord API responses with status 429",
		},
	)
)

// Session Metrics
var (
	// SessionsCreatedTotal counts sessions minted by the OAuth callback
	SessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Total dashboard sessions created",
		},
	)

	// GuildCacheFillsTotal counts guild list fills by outcome (success, degraded)
	GuildCacheFillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guild_cache_fills_total",
			Help: "Guild list cache fills by outcome",
		},
		[]string{"outcome"},
	)

	// ChannelCacheLookupsTotal counts channel cache lookups by result (hit, miss)
	ChannelCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_cache_lookups_total",
			Help: "Channel cache lookups by result",
		},
		[]string{"result"},
	)

	// SessionsExpiredTotal counts sessions removed by the background sweep
	SessionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_expired_total",
			Help: "Total sessions removed by the expiry sweep",
		},
	)
)
