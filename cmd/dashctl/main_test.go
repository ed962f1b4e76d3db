package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/guilddash/internal/dashboard"
	"github.com/parsascontentcorner/guilddash/internal/models"
	"github.com/parsascontentcorner/guilddash/internal/testutil"
)

const testToken = "session-token"

// fakeAPI serves the dashboard endpoints dashctl calls for guild 42.
type fakeAPI struct {
	mu         sync.Mutex
	saved      *models.GuildConfig
	posts      int
	failConfig bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				http.Error(w, `{"error":"Invalid or expired session","type":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("GET /api/auth/me", authed(func(w http.ResponseWriter, _ *http.Request) {
		reply(w, testutil.GenerateUser(testutil.MockUserID))
	}))
	mux.HandleFunc("GET /api/auth/guilds", authed(func(w http.ResponseWriter, _ *http.Request) {
		reply(w, testutil.MockGuilds())
	}))
	mux.HandleFunc("GET /api/guilds/{id}/channels", authed(func(w http.ResponseWriter, _ *http.Request) {
		reply(w, testutil.MockChannels())
	}))
	mux.HandleFunc("GET /api/config/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failConfig {
			http.Error(w, `{"error":"Failed to load configuration","type":"internal"}`, http.StatusInternalServerError)
			return
		}
		if f.saved != nil {
			reply(w, f.saved)
			return
		}
		reply(w, models.DefaultGuildConfig(r.PathValue("id")))
	}))
	mux.HandleFunc("POST /api/config/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		var cfg models.GuildConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, `{"error":"Invalid JSON body","type":"validation"}`, http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.saved = &cfg
		f.posts++
		f.mu.Unlock()
		reply(w, map[string]any{"success": true, "message": "Configuration updated"})
	}))
	return mux
}

func newFakeAPI(t *testing.T) (*fakeAPI, string) {
	t.Helper()
	f := &fakeAPI{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func run(t *testing.T, apiURL, token string, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCmd(settings{APIURL: apiURL, Token: token, Timeout: 5 * time.Second, LogLevel: "error"})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestLoginURL(t *testing.T) {
	out, _, err := run(t, "http://api.example.com/", "", "login-url")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com/api/auth/login\n", out)
}

func TestWhoami(t *testing.T) {
	_, apiURL := newFakeAPI(t)

	out, _, err := run(t, apiURL, testToken, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, testutil.MockUserID)
	assert.Contains(t, out, "testuser_"+testutil.MockUserID)

	_, _, err = run(t, apiURL, "", "whoami")
	assert.ErrorContains(t, err, "no session token")

	_, _, err = run(t, apiURL, "stale", "whoami")
	assert.ErrorIs(t, err, dashboard.ErrUnauthorized)
}

func TestGuilds(t *testing.T) {
	_, apiURL := newFakeAPI(t)

	out, _, err := run(t, apiURL, testToken, "guilds")
	require.NoError(t, err)
	assert.Contains(t, out, "Owned Guild")
	assert.Contains(t, out, "Managed Guild")
	assert.NotContains(t, out, "Member Guild")

	out, _, err = run(t, apiURL, testToken, "guilds", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Member Guild")
}

func TestChannels(t *testing.T) {
	_, apiURL := newFakeAPI(t)

	out, _, err := run(t, apiURL, testToken, "channels", testutil.OwnedGuildID)
	require.NoError(t, err)
	assert.Contains(t, out, "general")
	assert.Contains(t, out, "Tickets")
	assert.NotContains(t, out, "Voice")
	assert.Less(t, strings.Index(out, "announcements"), strings.Index(out, "general"), "sorted by position")
}

func TestPickerFor(t *testing.T) {
	assert.Equal(t, "welcome, leave, log", pickerFor(models.Channel{Type: discordgo.ChannelTypeGuildText}))
	assert.Equal(t, "ticket", pickerFor(models.Channel{Type: discordgo.ChannelTypeGuildCategory}))
	assert.Contains(t, pickerFor(models.Channel{Type: discordgo.ChannelTypeGuildNews}), "none")
}

func TestConfigSet_AnnouncementChannelShownAsUnknown(t *testing.T) {
	_, apiURL := newFakeAPI(t)

	out, _, err := run(t, apiURL, testToken, "config", "set", testutil.OwnedGuildID,
		"--log-channel", "900000000000000002",
	)
	require.NoError(t, err)
	assert.NotContains(t, out, "#announcements")
	assert.Contains(t, out, "900000000000000002")
	assert.Contains(t, out, "(unknown)")
}

func TestConfigGet_Defaults(t *testing.T) {
	_, apiURL := newFakeAPI(t)

	out, _, err := run(t, apiURL, testToken, "config", "get", testutil.OwnedGuildID)
	require.NoError(t, err)
	assert.Contains(t, out, models.DefaultWelcomeMessage)
	assert.Contains(t, out, "not set")
}

func TestConfigSet(t *testing.T) {
	api, apiURL := newFakeAPI(t)

	out, errOut, err := run(t, apiURL, testToken, "config", "set", testutil.OwnedGuildID,
		"--welcome-enabled",
		"--welcome-channel", "900000000000000001",
		"--ticket-category", "900000000000000004",
	)
	require.NoError(t, err)
	assert.Contains(t, errOut, dashboard.MsgSaved)
	assert.Contains(t, out, "#general (900000000000000001)")
	assert.Contains(t, out, "#Tickets (900000000000000004)")

	require.NotNil(t, api.saved)
	assert.Equal(t, 1, api.posts)
	assert.True(t, bool(api.saved.WelcomeEnabled))
	assert.Equal(t, "900000000000000001", *api.saved.WelcomeChannelID)
	assert.Equal(t, models.DefaultWelcomeMessage, api.saved.WelcomeMessage)
	assert.False(t, bool(api.saved.TicketEnabled))

	// Clearing a channel sends null and leaves other fields alone.
	_, _, err = run(t, apiURL, testToken, "config", "set", testutil.OwnedGuildID, "--welcome-channel", "")
	require.NoError(t, err)
	assert.Nil(t, api.saved.WelcomeChannelID)
	assert.True(t, bool(api.saved.WelcomeEnabled))
	assert.Equal(t, "900000000000000004", *api.saved.TicketCategoryID)
}

func TestConfigSet_NothingToChange(t *testing.T) {
	api, apiURL := newFakeAPI(t)

	_, _, err := run(t, apiURL, testToken, "config", "set", testutil.OwnedGuildID)
	assert.ErrorContains(t, err, "nothing to change")
	assert.Equal(t, 0, api.posts)
}

func TestConfigSet_RefusesToOverwriteUnloadedConfig(t *testing.T) {
	api, apiURL := newFakeAPI(t)
	api.failConfig = true

	_, _, err := run(t, apiURL, testToken, "config", "set", testutil.OwnedGuildID, "--log-enabled")
	assert.ErrorContains(t, err, "--force")
	assert.Equal(t, 0, api.posts)

	_, _, err = run(t, apiURL, testToken, "config", "set", testutil.OwnedGuildID, "--log-enabled", "--force")
	require.NoError(t, err)
	assert.Equal(t, 1, api.posts)
}

func TestConfigSet_UnknownGuild(t *testing.T) {
	_, apiURL := newFakeAPI(t)

	_, _, err := run(t, apiURL, testToken, "config", "set", testutil.MemberGuildID, "--log-enabled")
	assert.ErrorContains(t, err, "not selectable")
}
