// Package integration runs the dashboard API end to end: the full middleware
// chain and router in front of a mock Discord server.
package integration

import (
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/auth"
	"github.com/parsascontentcorner/guilddash/internal/config"
	"github.com/parsascontentcorner/guilddash/internal/guilds"
	httpserver "github.com/parsascontentcorner/guilddash/internal/http"
	"github.com/parsascontentcorner/guilddash/internal/oauth"
	"github.com/parsascontentcorner/guilddash/internal/session"
	"github.com/parsascontentcorner/guilddash/internal/testutil"
)

// testEnv is a running API wired to in-memory sessions and a mock Discord.
type testEnv struct {
	server   *httptest.Server
	mock     *testutil.MockDiscordServer
	store    *session.MemoryStore
	configs  oauth.ConfigStore
	activity oauth.ActivityStore
	cfg      *config.Config
}

// newTestEnv starts the API. configs defaults to an in-memory store; when it
// also serves the activity views it backs those too.
func newTestEnv(t *testing.T, configs oauth.ConfigStore) *testEnv {
	t.Helper()

	mock := testutil.NewMockDiscordServer()
	t.Cleanup(mock.Close)

	if configs == nil {
		configs = testutil.NewMemoryConfigStore()
	}
	activity, ok := configs.(oauth.ActivityStore)
	if !ok {
		activity = testutil.NewMemoryActivityStore()
	}

	log := zap.NewNop()
	cfg := testutil.GenerateTestConfig(mock.URL())
	clock := clockwork.NewRealClock()
	store := session.NewMemoryStore(clock)

	client := auth.NewDiscordClient(cfg, log)
	states := auth.NewStateManager(cfg.Security.StateSigningKey, cfg.Session.StateTTL, clock)
	oauthHandler := auth.NewOAuthHandler(client, states, store, &cfg.Session, clock, log)
	service := guilds.NewService(client, store, cfg.Discord.ChannelCacheSize, cfg.Discord.ChannelCacheTTL, log)

	handlers := oauth.NewHandlers(oauth.Options{
		OAuth:        oauthHandler,
		Sessions:     store,
		Guilds:       service,
		Configs:      configs,
		Activity:     activity,
		DashboardURL: cfg.Server.DashboardURL,
		Logger:       log,
	})
	srv := httpserver.NewServer(handlers.Routes(), &cfg.Server, log)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		server:   ts,
		mock:     mock,
		store:    store,
		configs:  configs,
		activity: activity,
		cfg:      cfg,
	}
}
