package dashboard

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/guilddash/internal/models"
	"github.com/parsascontentcorner/guilddash/internal/testutil"
)

func loggedIn(t *testing.T) State {
	t.Helper()
	s := Reduce(State{}, TokenReceived{Token: "tok"})
	s = Reduce(s, SessionLoaded{User: testutil.GenerateUser(testutil.MockUserID), Guilds: testutil.MockGuilds()})
	require.Equal(t, ScreenGuildList, s.Screen)
	return s
}

func configOpen(t *testing.T) State {
	t.Helper()
	s := loggedIn(t)
	g, _ := models.FindGuild(s.Guilds, testutil.OwnedGuildID)
	s = Reduce(s, GuildSelected{Guild: g})
	s = Reduce(s, GuildDataLoaded{
		GuildID:  testutil.OwnedGuildID,
		Channels: testutil.MockChannels(),
		Config:   testutil.GenerateGuildConfig(testutil.OwnedGuildID),
	})
	require.Equal(t, ScreenGuildConfig, s.Screen)
	return s
}

func TestReduce_Login(t *testing.T) {
	s := Reduce(State{}, TokenReceived{Token: ""})
	assert.Equal(t, State{}, s, "empty token should be ignored")

	s = Reduce(State{}, SessionLoaded{User: testutil.GenerateUser("1")})
	assert.Equal(t, ScreenLogin, s.Screen, "session cannot load without a token")

	s = Reduce(State{}, TokenReceived{Token: "tok"})
	assert.Equal(t, ScreenLogin, s.Screen)
	assert.True(t, s.Loading)

	s = Reduce(s, SessionLoaded{User: testutil.GenerateUser(testutil.MockUserID), Guilds: testutil.MockGuilds()})
	assert.Equal(t, ScreenGuildList, s.Screen)
	assert.False(t, s.Loading)
	assert.Equal(t, "tok", s.Token)
	require.NotNil(t, s.User)
	assert.Equal(t, testutil.MockUserID, s.User.ID)

	ids := make([]string, 0, len(s.Guilds))
	for _, g := range s.Guilds {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{testutil.ManagedGuildID, testutil.AdminGuildID, testutil.OwnedGuildID}, ids)
}

func TestReduce_LoadFailed(t *testing.T) {
	s := Reduce(Reduce(State{}, TokenReceived{Token: "tok"}), LoadFailed{Err: errors.New("boom")})

	assert.Equal(t, ScreenLogin, s.Screen)
	assert.Empty(t, s.Token)
	require.NotNil(t, s.Notice)
	assert.Equal(t, NoticeError, s.Notice.Level)
}

func TestReduce_GuildSelected(t *testing.T) {
	s := loggedIn(t)

	member, _ := models.FindGuild(testutil.MockGuilds(), testutil.MemberGuildID)
	assert.Equal(t, s, Reduce(s, GuildSelected{Guild: member}), "guild without manage rights cannot be opened")

	g, _ := models.FindGuild(s.Guilds, testutil.ManagedGuildID)
	next := Reduce(s, GuildSelected{Guild: g})

	assert.Equal(t, ScreenGuildConfig, next.Screen)
	assert.True(t, next.Loading)
	require.NotNil(t, next.Selected)
	assert.Equal(t, testutil.ManagedGuildID, next.Selected.ID)
	assert.Equal(t, *models.DefaultGuildConfig(testutil.ManagedGuildID), next.Form)
	assert.Equal(t, ScreenGuildList, s.Screen, "input state must not change")
}

func TestReduce_GuildDataLoaded(t *testing.T) {
	s := configOpen(t)

	assert.False(t, s.Loading)
	assert.Len(t, s.TextChannels, 1)
	assert.Len(t, s.Categories, 1)
	assert.Equal(t, "Tickets", s.Categories[0].Name)
	assert.True(t, bool(s.Form.WelcomeEnabled))
	assert.False(t, s.Dirty())
	require.NotNil(t, s.Notice)
	assert.Equal(t, NoticeSuccess, s.Notice.Level)
	assert.True(t, s.Notice.Transient)
}

func TestReduce_TextPickersOfferOnlyTextChannels(t *testing.T) {
	s := loggedIn(t)
	g, _ := models.FindGuild(s.Guilds, testutil.OwnedGuildID)
	s = Reduce(s, GuildSelected{Guild: g})
	s = Reduce(s, GuildDataLoaded{
		GuildID: testutil.OwnedGuildID,
		Channels: []models.Channel{
			{ID: "1", Name: "general", Type: discordgo.ChannelTypeGuildText},
			{ID: "2", Name: "news", Type: discordgo.ChannelTypeGuildNews},
			{ID: "3", Name: "Tickets", Type: discordgo.ChannelTypeGuildCategory},
		},
		Config: models.DefaultGuildConfig(testutil.OwnedGuildID),
	})

	for _, sel := range []Selector{SelectorWelcomeChannel, SelectorLeaveChannel, SelectorLogChannel} {
		opts := s.Options(sel)
		require.Len(t, opts, 1, sel)
		assert.Equal(t, "1", opts[0].ID, sel)
	}
	cats := s.Options(SelectorTicketCategory)
	require.Len(t, cats, 1)
	assert.Equal(t, "3", cats[0].ID)
}

func TestReduce_GuildDataLoaded_Degraded(t *testing.T) {
	s := loggedIn(t)
	g, _ := models.FindGuild(s.Guilds, testutil.ManagedGuildID)
	s = Reduce(s, GuildSelected{Guild: g})

	s = Reduce(s, GuildDataLoaded{
		GuildID:     testutil.ManagedGuildID,
		ChannelsErr: errors.New("502"),
		ConfigErr:   errors.New("500"),
	})

	assert.False(t, s.Loading, "a failed load must not leave the screen loading")
	assert.NotNil(t, s.TextChannels)
	assert.Empty(t, s.TextChannels)
	assert.Empty(t, s.Categories)
	assert.Equal(t, *models.DefaultGuildConfig(testutil.ManagedGuildID), s.Form)
	require.NotNil(t, s.Notice)
	assert.Equal(t, MsgConfigFallback, s.Notice.Message)
}

func TestReduce_GuildDataLoaded_StaleIgnored(t *testing.T) {
	s := configOpen(t)
	s = Reduce(s, BackToGuilds{})
	g, _ := models.FindGuild(s.Guilds, testutil.ManagedGuildID)
	s = Reduce(s, GuildSelected{Guild: g})

	next := Reduce(s, GuildDataLoaded{GuildID: testutil.OwnedGuildID, Channels: testutil.MockChannels()})

	assert.Equal(t, s, next)
	assert.True(t, next.Loading)
}

func TestReduce_SelectorsFollowToggles(t *testing.T) {
	s := configOpen(t)

	assert.True(t, s.SelectorEnabled(SelectorWelcomeChannel))
	assert.False(t, s.SelectorEnabled(SelectorLeaveChannel))
	assert.False(t, s.SelectorEnabled(SelectorTicketCategory))

	form := s.Form
	form.TicketEnabled = true
	s = Reduce(s, ConfigEdited{Config: form})

	assert.True(t, s.SelectorEnabled(SelectorTicketCategory))
	assert.Equal(t, s.Categories, s.Options(SelectorTicketCategory))
	assert.Equal(t, s.TextChannels, s.Options(SelectorLogChannel))
	assert.True(t, s.Dirty())
}

func TestReduce_SaveSucceededKeepsPostedValues(t *testing.T) {
	s := configOpen(t)

	form := s.Form
	form.WelcomeMessage = "Hello {user}"
	s = Reduce(s, ConfigEdited{Config: form})
	s = Reduce(s, SaveStarted{})
	assert.True(t, s.Saving)

	assert.Equal(t, s, Reduce(s, ConfigEdited{Config: *models.DefaultGuildConfig("x")}), "form is locked while saving")

	s = Reduce(s, SaveSucceeded{Config: s.Form})

	assert.False(t, s.Saving)
	assert.Equal(t, "Hello {user}", s.Form.WelcomeMessage)
	assert.Equal(t, "Hello {user}", s.Saved.WelcomeMessage)
	require.NotNil(t, s.Notice)
	assert.Equal(t, MsgSaved, s.Notice.Message)
	assert.True(t, s.Notice.Transient)
}

func TestReduce_SaveFailedRollsBack(t *testing.T) {
	s := configOpen(t)
	saved := s.Saved

	form := s.Form
	form.WelcomeEnabled = false
	form.LogEnabled = true
	form.LogChannelID = models.StringPtr("900000000000000001")
	s = Reduce(s, ConfigEdited{Config: form})
	s = Reduce(s, SaveStarted{})
	s = Reduce(s, SaveFailed{Err: errors.New("500")})

	assert.False(t, s.Saving)
	assert.Equal(t, saved, s.Form)
	assert.False(t, s.Dirty())
	require.NotNil(t, s.Notice)
	assert.Equal(t, NoticeError, s.Notice.Level)
	assert.Equal(t, MsgSaveFailed, s.Notice.Message)
}

func TestReduce_EditDoesNotAliasSaved(t *testing.T) {
	s := configOpen(t)

	form := s.Form
	s = Reduce(s, ConfigEdited{Config: form})
	*form.WelcomeChannelID = "1"

	assert.Equal(t, "900000000000000001", *s.Form.WelcomeChannelID)
	assert.Equal(t, "900000000000000001", *s.Saved.WelcomeChannelID)
}

func TestReduce_BackToGuilds(t *testing.T) {
	s := configOpen(t)

	s = Reduce(s, BackToGuilds{})

	assert.Equal(t, ScreenGuildList, s.Screen)
	assert.Nil(t, s.Selected)
	assert.Nil(t, s.TextChannels)
	assert.Len(t, s.Guilds, 3)
	assert.Equal(t, "tok", s.Token)
}

func TestReduce_UnauthorizedAndLogout(t *testing.T) {
	for _, ev := range []Event{Unauthorized{}, LoggedOut{}} {
		s := Reduce(configOpen(t), ev)

		assert.Equal(t, ScreenLogin, s.Screen)
		assert.Empty(t, s.Token, "token must be discarded")
		assert.Nil(t, s.User)
		assert.Nil(t, s.Guilds)
		require.NotNil(t, s.Notice)
	}
}

func TestReduce_Dismiss(t *testing.T) {
	s := Reduce(configOpen(t), Dismiss{})
	assert.Nil(t, s.Notice)
	assert.Equal(t, ScreenGuildConfig, s.Screen)
}

func TestScreen_String(t *testing.T) {
	assert.Equal(t, "login", ScreenLogin.String())
	assert.Equal(t, "guild_list", ScreenGuildList.String())
	assert.Equal(t, "guild_config", ScreenGuildConfig.String())
	assert.Equal(t, "unknown", Screen(9).String())
}
