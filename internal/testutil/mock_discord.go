package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/parsascontentcorner/guilddash/internal/models"
)

// Fixed identities served by MockDiscordServer.
const (
	MockAccessToken = "mock_access_token_123"
	MockBotToken    = "test_bot_token"
	MockUserID      = "123456789012345678"
	MockUsername    = "TestUser"

	ManagedGuildID = "111111111111111111" // MANAGE_GUILD (0x20)
	AdminGuildID   = "222222222222222222" // ADMINISTRATOR (0x8)
	MemberGuildID  = "333333333333333333" // no management permission
	OwnedGuildID   = "42"                 // owner, no permission bits
)

// MockDiscordServer is an httptest server implementing the Discord REST
// endpoints the dashboard calls. Call counters are safe to read concurrently.
type MockDiscordServer struct {
	Server *httptest.Server

	TokenCalls    atomic.Int32
	UserInfoCalls atomic.Int32
	GuildsCalls   atomic.Int32
	ChannelCalls  atomic.Int32
	RoleCalls     atomic.Int32
	GuildCalls    atomic.Int32

	failGuilds    atomic.Bool
	channelStatus atomic.Int32
}

// DiscordTokenResponse represents the OAuth token response from Discord.
type DiscordTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// DiscordErrorResponse represents an OAuth error response from Discord.
type DiscordErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type discordAPIError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MockGuilds is the guild list returned for MockAccessToken.
func MockGuilds() []models.Guild {
	return []models.Guild{
		{ID: ManagedGuildID, Name: "Managed Guild", Permissions: "32"},
		{ID: AdminGuildID, Name: "Admin Guild", Permissions: "8"},
		{ID: MemberGuildID, Name: "Member Guild", Permissions: "1024"},
		{ID: OwnedGuildID, Name: "Owned Guild", Owner: true, Permissions: "0"},
	}
}

// MockChannels is the channel list returned for every known guild. It mixes
// selectable and non-selectable types and is deliberately out of position order.
func MockChannels() []models.Channel {
	category := "900000000000000004"
	return []models.Channel{
		{ID: "900000000000000001", Name: "general", Type: discordgo.ChannelTypeGuildText, Position: 1, ParentID: &category},
		{ID: "900000000000000002", Name: "announcements", Type: discordgo.ChannelTypeGuildNews, Position: 0},
		{ID: "900000000000000003", Name: "Voice", Type: discordgo.ChannelTypeGuildVoice, Position: 2},
		{ID: category, Name: "Tickets", Type: discordgo.ChannelTypeGuildCategory, Position: 3},
		{ID: "900000000000000005", Name: "forum", Type: discordgo.ChannelTypeGuildForum, Position: 4},
	}
}

// MockRoles returns the role list served for guildID.
func MockRoles(guildID string) []models.Role {
	return []models.Role{
		{ID: guildID, Name: "@everyone", Position: 0, Permissions: "1024"},
		{ID: "800000000000000001", Name: "Moderator", Color: 3447003, Position: 1, Permissions: "32"},
	}
}

// NewMockDiscordServer creates a new mock Discord API server.
func NewMockDiscordServer() *MockDiscordServer {
	mds := &MockDiscordServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v10/oauth2/token", mds.handleToken)
	mux.HandleFunc("GET /api/v10/users/@me", mds.handleUser)
	mux.HandleFunc("GET /api/v10/users/@me/guilds", mds.handleGuilds)
	mux.HandleFunc("GET /api/v10/guilds/{id}/channels", mds.handleChannels)
	mux.HandleFunc("GET /api/v10/guilds/{id}/roles", mds.handleRoles)
	mux.HandleFunc("GET /api/v10/guilds/{id}", mds.handleGuild)

	mds.Server = httptest.NewServer(mux)
	return mds
}

// URL returns the API base URL to pass to DiscordClient.SetBaseURL.
func (mds *MockDiscordServer) URL() string {
	return mds.Server.URL + "/api/v10"
}

// Close closes the mock server.
func (mds *MockDiscordServer) Close() {
	if mds.Server != nil {
		mds.Server.Close()
	}
}

// SetFailGuilds makes the guild list endpoint answer 500.
func (mds *MockDiscordServer) SetFailGuilds(fail bool) {
	mds.failGuilds.Store(fail)
}

// SetChannelStatus makes the channel endpoint answer status. Zero restores normal behaviour.
func (mds *MockDiscordServer) SetChannelStatus(status int) {
	mds.channelStatus.Store(int32(status))
}

func (mds *MockDiscordServer) handleToken(w http.ResponseWriter, r *http.Request) {
	mds.TokenCalls.Add(1)

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch r.FormValue("code") {
	case "valid_code", "abc123":
		writeJSON(w, http.StatusOK, DiscordTokenResponse{
			AccessToken:  MockAccessToken,
			TokenType:    "Bearer",
			ExpiresIn:    604800,
			RefreshToken: "mock_refresh_token_456",
			Scope:        "identify guilds",
		})
	case "server_error":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
	default:
		writeJSON(w, http.StatusBadRequest, DiscordErrorResponse{
			Error:            "invalid_grant",
			ErrorDescription: "Invalid \"code\" in request.",
		})
	}
}

func (mds *MockDiscordServer) handleUser(w http.ResponseWriter, r *http.Request) {
	mds.UserInfoCalls.Add(1)

	if !hasAuth(r, "Bearer "+MockAccessToken) {
		writeJSON(w, http.StatusUnauthorized, discordAPIError{Message: "401: Unauthorized", Code: 0})
		return
	}

	globalName := "Test User"
	writeJSON(w, http.StatusOK, models.User{
		ID:            MockUserID,
		Username:      MockUsername,
		GlobalName:    &globalName,
		Discriminator: "0",
	})
}

func (mds *MockDiscordServer) handleGuilds(w http.ResponseWriter, r *http.Request) {
	mds.GuildsCalls.Add(1)

	if mds.failGuilds.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
		return
	}
	if !hasAuth(r, "Bearer "+MockAccessToken) {
		writeJSON(w, http.StatusUnauthorized, discordAPIError{Message: "401: Unauthorized", Code: 0})
		return
	}

	writeJSON(w, http.StatusOK, MockGuilds())
}

func (mds *MockDiscordServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	mds.ChannelCalls.Add(1)

	if status := int(mds.channelStatus.Load()); status != 0 {
		writeJSON(w, status, discordAPIError{Message: http.StatusText(status), Code: 0})
		return
	}
	if !mds.botRequest(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, MockChannels())
}

func (mds *MockDiscordServer) handleRoles(w http.ResponseWriter, r *http.Request) {
	mds.RoleCalls.Add(1)

	if !mds.botRequest(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, MockRoles(r.PathValue("id")))
}

func (mds *MockDiscordServer) handleGuild(w http.ResponseWriter, r *http.Request) {
	mds.GuildCalls.Add(1)

	if !mds.botRequest(w, r) {
		return
	}

	id := r.PathValue("id")
	g, _ := models.FindGuild(MockGuilds(), id)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                       id,
		"name":                     g.Name,
		"icon":                     nil,
		"owner_id":                 MockUserID,
		"approximate_member_count": 42,
	})
}

// botRequest checks the bot token and that the guild is one the bot is in.
func (mds *MockDiscordServer) botRequest(w http.ResponseWriter, r *http.Request) bool {
	if !hasAuth(r, "Bot "+MockBotToken) {
		writeJSON(w, http.StatusUnauthorized, discordAPIError{Message: "401: Unauthorized", Code: 0})
		return false
	}
	if _, ok := models.FindGuild(MockGuilds(), r.PathValue("id")); !ok {
		writeJSON(w, http.StatusNotFound, discordAPIError{Message: "Unknown Guild", Code: 10004})
		return false
	}
	return true
}

func hasAuth(r *http.Request, want string) bool {
	return strings.TrimSpace(r.Header.Get("Authorization")) == want
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
