package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/ratelimit"
	"github.com/parsascontentcorner/guilddash/internal/testutil"
)

func newTestDiscordClient(t *testing.T) (*DiscordClient, *testutil.MockDiscordServer) {
	t.Helper()

	mock := testutil.NewMockDiscordServer()
	t.Cleanup(mock.Close)

	cfg := testutil.GenerateTestConfig(mock.URL())
	client := NewDiscordClient(cfg, zap.NewNop())
	client.SetRetryPolicy(0, time.Millisecond)
	return client, mock
}

func TestNewDiscordClient(t *testing.T) {
	cfg := testutil.GenerateTestConfig("https://discord.example/api/v10")

	client := NewDiscordClient(cfg, zap.NewNop())

	require.NotNil(t, client)
	assert.Equal(t, cfg.Discord.ClientID, client.config.ClientID)
	assert.Equal(t, cfg.Discord.ClientSecret, client.config.ClientSecret)
	assert.Equal(t, cfg.Discord.RedirectURI, client.config.RedirectURL)
	assert.Equal(t, "https://discord.example/api/v10/oauth2/token", client.config.Endpoint.TokenURL)
	assert.Equal(t, cfg.Discord.HTTPTimeout, client.httpClient.Timeout)
}

func TestAuthURL(t *testing.T) {
	cfg := testutil.GenerateTestConfig("https://discord.example/api/v10")
	client := NewDiscordClient(cfg, zap.NewNop())

	authURL := client.AuthURL("test_state_123")

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "discord.com", u.Host)
	assert.Equal(t, "/oauth2/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, cfg.Discord.ClientID, q.Get("client_id"))
	assert.Equal(t, cfg.Discord.RedirectURI, q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "identify guilds", q.Get("scope"))
	assert.Equal(t, "test_state_123", q.Get("state"))
	assert.Contains(t, authURL, "redirect_uri=http%3A%2F%2Flocalhost%3A8000%2Fapi%2Fauth%2Fcallback")
}

func TestExchangeCode_Success(t *testing.T) {
	client, mock := newTestDiscordClient(t)

	token, err := client.ExchangeCode(context.Background(), "valid_code")

	require.NoError(t, err)
	assert.Equal(t, testutil.MockAccessToken, token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), token.Expiry, time.Minute)
	assert.Equal(t, int32(1), mock.TokenCalls.Load())
}

func TestExchangeCode_InvalidCode(t *testing.T) {
	client, _ := newTestDiscordClient(t)

	token, err := client.ExchangeCode(context.Background(), "error_code")

	assert.Error(t, err)
	assert.Nil(t, token)
	assert.Contains(t, err.Error(), "failed to exchange code for token")
}

func TestExchangeCode_ServerError(t *testing.T) {
	client, _ := newTestDiscordClient(t)

	token, err := client.ExchangeCode(context.Background(), "server_error")

	assert.Error(t, err)
	assert.Nil(t, token)
}

func TestGetUserInfo_Success(t *testing.T) {
	client, _ := newTestDiscordClient(t)

	user, err := client.GetUserInfo(context.Background(), testutil.MockAccessToken)

	require.NoError(t, err)
	assert.Equal(t, testutil.MockUserID, user.ID)
	assert.Equal(t, testutil.MockUsername, user.Username)
	assert.Equal(t, "Test User", user.DisplayName())
}

func TestGetUserInfo_Unauthorized(t *testing.T) {
	client, mock := newTestDiscordClient(t)
	client.SetRetryPolicy(3, time.Millisecond)

	user, err := client.GetUserInfo(context.Background(), "invalid_token")

	assert.Error(t, err)
	assert.Nil(t, user)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, int32(1), mock.UserInfoCalls.Load(), "4xx responses must not be retried")
}

func TestGetUserGuilds_Success(t *testing.T) {
	client, _ := newTestDiscordClient(t)

	guilds, err := client.GetUserGuilds(context.Background(), testutil.MockAccessToken)

	require.NoError(t, err)
	assert.Equal(t, testutil.MockGuilds(), guilds)
}

func TestGetUserGuilds_ServerError(t *testing.T) {
	client, mock := newTestDiscordClient(t)
	client.SetRetryPolicy(2, time.Millisecond)
	mock.SetFailGuilds(true)

	guilds, err := client.GetUserGuilds(context.Background(), testutil.MockAccessToken)

	assert.Error(t, err)
	assert.Nil(t, guilds)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Equal(t, int32(3), mock.GuildsCalls.Load(), "5xx responses are retried")
}

func TestGetGuildChannels_Success(t *testing.T) {
	client, _ := newTestDiscordClient(t)

	channels, err := client.GetGuildChannels(context.Background(), testutil.ManagedGuildID)

	require.NoError(t, err)
	assert.Equal(t, testutil.MockChannels(), channels)
}

func TestGetGuildChannels_UnknownGuild(t *testing.T) {
	client, _ := newTestDiscordClient(t)

	_, err := client.GetGuildChannels(context.Background(), "999")

	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestBotRoutes_TokenMissing(t *testing.T) {
	client, mock := newTestDiscordClient(t)
	client.botToken = ""
	ctx := context.Background()

	_, err := client.GetGuildChannels(ctx, testutil.ManagedGuildID)
	assert.ErrorIs(t, err, ErrBotTokenMissing)

	_, err = client.GetGuildRoles(ctx, testutil.ManagedGuildID)
	assert.ErrorIs(t, err, ErrBotTokenMissing)

	_, err = client.GetGuild(ctx, testutil.ManagedGuildID)
	assert.ErrorIs(t, err, ErrBotTokenMissing)

	assert.Zero(t, mock.ChannelCalls.Load()+mock.RoleCalls.Load()+mock.GuildCalls.Load())
}

func TestGetGuildRoles(t *testing.T) {
	client, _ := newTestDiscordClient(t)

	roles, err := client.GetGuildRoles(context.Background(), testutil.ManagedGuildID)

	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "@everyone", roles[0].Name)
	assert.Equal(t, "Moderator", roles[1].Name)
}

func TestGetGuild(t *testing.T) {
	client, _ := newTestDiscordClient(t)

	info, err := client.GetGuild(context.Background(), testutil.ManagedGuildID)

	require.NoError(t, err)
	assert.Equal(t, testutil.ManagedGuildID, info.ID)
	assert.Equal(t, "Managed Guild", info.Name)
	assert.Equal(t, testutil.MockUserID, info.OwnerID)
	assert.Equal(t, 42, info.MemberCount)
	assert.Nil(t, info.Icon)
}

func TestGet_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","username":"retried"}`))
	}))
	defer server.Close()

	client := NewDiscordClient(testutil.GenerateTestConfig(server.URL), zap.NewNop())
	client.SetRetryPolicy(2, time.Millisecond)

	user, err := client.GetUserInfo(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, "retried", user.Username)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_RateLimitedThenSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.02")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"You are being rate limited.","retry_after":0.02,"global":false}`))
			return
		}
		w.Header().Set("X-RateLimit-Limit", "5")
		w.Header().Set("X-RateLimit-Remaining", "4")
		w.Header().Set("X-RateLimit-Reset-After", "1")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewDiscordClient(testutil.GenerateTestConfig(server.URL), zap.NewNop())
	client.SetRetryPolicy(1, time.Millisecond)
	rl := ratelimit.NewRateLimiter(zap.NewNop())
	client.SetRateLimiter(rl)

	guilds, err := client.GetUserGuilds(context.Background(), "tok")

	require.NoError(t, err)
	assert.Empty(t, guilds)
	assert.Equal(t, int32(2), calls.Load())

	remaining, limit, _ := rl.GetStatus("/users/@me/guilds")
	assert.Equal(t, 4, remaining)
	assert.Equal(t, 5, limit)
}

func TestGet_ContextCancelledStopsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewDiscordClient(testutil.GenerateTestConfig(server.URL), zap.NewNop())
	client.SetRetryPolicy(10, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.GetUserInfo(ctx, "tok")

	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
