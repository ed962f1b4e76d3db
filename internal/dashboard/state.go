// Package dashboard is the configuration editor client: a pure reducer over
// the editor screens, an HTTP client for the dashboard API and a controller
// that runs API calls and feeds their results through the reducer.
package dashboard

import (
	"github.com/parsascontentcorner/guilddash/internal/models"
)

// Screen is the view the editor shows.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenGuildList
	ScreenGuildConfig
)

func (s Screen) String() string {
	switch s {
	case ScreenLogin:
		return "login"
	case ScreenGuildList:
		return "guild_list"
	case ScreenGuildConfig:
		return "guild_config"
	default:
		return "unknown"
	}
}

// NoticeLevel is the severity of a notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a dismissible message. Transient notices may be cleared by a timer.
type Notice struct {
	Level     NoticeLevel
	Message   string
	Transient bool
}

// Notice messages.
const (
	MsgLoadFailed     = "Failed to load dashboard. Please try logging in again."
	MsgConfigFallback = "Failed to load configuration. Using default settings."
	MsgSaved          = "Configuration saved successfully!"
	MsgSaveFailed     = "Failed to save configuration"
	MsgLoggedOut      = "Logged out successfully"
	MsgSessionExpired = "Session expired. Please login again."
)

// Selector names a channel picker of the configuration form.
type Selector string

const (
	SelectorWelcomeChannel Selector = "welcome_channel_id"
	SelectorLeaveChannel   Selector = "leave_channel_id"
	SelectorLogChannel     Selector = "log_channel_id"
	SelectorTicketCategory Selector = "ticket_category_id"
)

// State is the whole editor state. Reduce never mutates anything reachable
// from the state it is given.
type State struct {
	Screen Screen
	Token  string
	User   *models.User
	// Guilds holds only the guilds the user may manage.
	Guilds []models.Guild

	Selected     *models.Guild
	TextChannels []models.Channel
	Categories   []models.Channel
	// Saved is the configuration last confirmed by the server; Form is being edited.
	Saved models.GuildConfig
	Form  models.GuildConfig

	Loading bool
	Saving  bool
	Notice  *Notice
}

// Event is an input to Reduce.
type Event interface {
	event()
}

type (
	// TokenReceived carries the session token from the login redirect.
	TokenReceived struct{ Token string }
	// SessionLoaded carries the profile and guild list fetched with the token.
	SessionLoaded struct {
		User   models.User
		Guilds []models.Guild
	}
	// LoadFailed reports that the session could not be loaded for a reason other than 401.
	LoadFailed struct{ Err error }
	// GuildSelected opens the configuration screen of a guild.
	GuildSelected struct{ Guild models.Guild }
	// GuildDataLoaded carries the results of the channel and configuration fetches.
	GuildDataLoaded struct {
		GuildID     string
		Channels    []models.Channel
		ChannelsErr error
		Config      *models.GuildConfig
		ConfigErr   error
	}
	// ConfigEdited replaces the form with Config.
	ConfigEdited struct{ Config models.GuildConfig }
	SaveStarted  struct{}
	// SaveSucceeded carries the configuration the server accepted.
	SaveSucceeded struct{ Config models.GuildConfig }
	SaveFailed    struct{ Err error }
	BackToGuilds  struct{}
	LoggedOut     struct{}
	// Unauthorized is raised by any 401 from the API.
	Unauthorized struct{}
	Dismiss      struct{}
)

func (TokenReceived) event()   {}
func (SessionLoaded) event()   {}
func (LoadFailed) event()      {}
func (GuildSelected) event()   {}
func (GuildDataLoaded) event() {}
func (ConfigEdited) event()    {}
func (SaveStarted) event()     {}
func (SaveSucceeded) event()   {}
func (SaveFailed) event()      {}
func (BackToGuilds) event()    {}
func (LoggedOut) event()       {}
func (Unauthorized) event()    {}
func (Dismiss) event()         {}

// Reduce returns the state that follows s after ev. Events that do not apply
// to the current screen leave the state unchanged.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case TokenReceived:
		if ev.Token == "" {
			return s
		}
		return State{Screen: ScreenLogin, Token: ev.Token, Loading: true}

	case SessionLoaded:
		if s.Token == "" {
			return s
		}
		user := ev.User
		return State{
			Screen: ScreenGuildList,
			Token:  s.Token,
			User:   &user,
			Guilds: models.ManageableGuilds(ev.Guilds),
			Notice: s.Notice,
		}

	case LoadFailed:
		return State{Screen: ScreenLogin, Notice: &Notice{Level: NoticeError, Message: MsgLoadFailed}}

	case GuildSelected:
		if s.Screen != ScreenGuildList {
			return s
		}
		if _, ok := models.FindGuild(s.Guilds, ev.Guild.ID); !ok {
			return s
		}
		guild := ev.Guild
		defaults := *models.DefaultGuildConfig(guild.ID)
		s.Screen = ScreenGuildConfig
		s.Selected = &guild
		s.TextChannels = nil
		s.Categories = nil
		s.Saved = defaults
		s.Form = defaults
		s.Loading = true
		s.Saving = false
		return s

	case GuildDataLoaded:
		if s.Screen != ScreenGuildConfig || s.Selected == nil || s.Selected.ID != ev.GuildID {
			return s
		}
		s.Loading = false

		if ev.ChannelsErr != nil {
			s.TextChannels, s.Categories = []models.Channel{}, []models.Channel{}
		} else {
			s.TextChannels, s.Categories = models.SplitChannels(ev.Channels)
		}

		if ev.ConfigErr != nil || ev.Config == nil {
			s.Notice = &Notice{Level: NoticeError, Message: MsgConfigFallback}
			return s
		}
		cfg := ev.Config.Clone()
		cfg.GuildID = s.Selected.ID
		s.Saved = cfg
		s.Form = cfg.Clone()
		s.Notice = &Notice{Level: NoticeSuccess, Message: "Loaded configuration for " + s.Selected.Name, Transient: true}
		return s

	case ConfigEdited:
		if s.Screen != ScreenGuildConfig || s.Loading || s.Saving {
			return s
		}
		s.Form = ev.Config.Clone()
		s.Form.GuildID = s.Selected.ID
		return s

	case SaveStarted:
		if s.Screen != ScreenGuildConfig || s.Saving {
			return s
		}
		s.Saving = true
		return s

	case SaveSucceeded:
		if !s.Saving {
			return s
		}
		s.Saving = false
		s.Saved = ev.Config.Clone()
		s.Form = ev.Config.Clone()
		s.Notice = &Notice{Level: NoticeSuccess, Message: MsgSaved, Transient: true}
		return s

	case SaveFailed:
		if !s.Saving {
			return s
		}
		s.Saving = false
		s.Form = s.Saved.Clone()
		s.Notice = &Notice{Level: NoticeError, Message: MsgSaveFailed}
		return s

	case BackToGuilds:
		if s.Screen != ScreenGuildConfig || s.Saving {
			return s
		}
		return State{
			Screen: ScreenGuildList,
			Token:  s.Token,
			User:   s.User,
			Guilds: s.Guilds,
			Notice: s.Notice,
		}

	case LoggedOut:
		return State{Screen: ScreenLogin, Notice: &Notice{Level: NoticeInfo, Message: MsgLoggedOut, Transient: true}}

	case Unauthorized:
		return State{Screen: ScreenLogin, Notice: &Notice{Level: NoticeError, Message: MsgSessionExpired}}

	case Dismiss:
		s.Notice = nil
		return s
	}

	return s
}

// SelectorEnabled reports whether the picker is active, which follows the
// toggle it belongs to.
func (s State) SelectorEnabled(sel Selector) bool {
	switch sel {
	case SelectorWelcomeChannel:
		return bool(s.Form.WelcomeEnabled)
	case SelectorLeaveChannel:
		return bool(s.Form.LeaveEnabled)
	case SelectorLogChannel:
		return bool(s.Form.LogEnabled)
	case SelectorTicketCategory:
		return bool(s.Form.TicketEnabled)
	}
	return false
}

// Options returns the channels a picker offers: categories for the ticket
// category, text channels otherwise.
func (s State) Options(sel Selector) []models.Channel {
	if sel == SelectorTicketCategory {
		return s.Categories
	}
	return s.TextChannels
}

// Dirty reports whether the form differs from the saved configuration.
func (s State) Dirty() bool {
	return !configsEqual(s.Form, s.Saved)
}

func configsEqual(a, b models.GuildConfig) bool {
	return a.GuildID == b.GuildID &&
		a.WelcomeEnabled == b.WelcomeEnabled && ptrEqual(a.WelcomeChannelID, b.WelcomeChannelID) &&
		a.WelcomeMessage == b.WelcomeMessage &&
		a.LeaveEnabled == b.LeaveEnabled && ptrEqual(a.LeaveChannelID, b.LeaveChannelID) &&
		a.LogEnabled == b.LogEnabled && ptrEqual(a.LogChannelID, b.LogChannelID) &&
		a.TicketEnabled == b.TicketEnabled && ptrEqual(a.TicketCategoryID, b.TicketCategoryID)
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
