package models

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultWelcomeMessage is used when a guild has never been configured.
const DefaultWelcomeMessage = "Welcome {user} to {server}!"

// MaxWelcomeMessageLength matches Discord's message content limit.
const MaxWelcomeMessageLength = 2000

// WelcomePlaceholders lists the substitutions the bot performs in welcome messages.
// {guild} is an older alias of {server}.
var WelcomePlaceholders = []string{"{user}", "{server}", "{member_count}", "{guild}"}

// Flag is an enabled toggle. It reads 0/1 or true/false and always writes 0 or 1,
// the form the dashboard has always exchanged.
type Flag bool

// MarshalJSON emits 1 or 0.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON accepts 0, 1, true, false and null (false).
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "1", "true":
		*f = true
	case "0", "false", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag value %s: expected 0, 1, true or false", data)
	}
	return nil
}

// GuildConfig is the per-guild bot configuration edited from the dashboard.
type GuildConfig struct {
	GuildID          string  `json:"guild_id"`
	WelcomeEnabled   Flag    `json:"welcome_enabled"`
	WelcomeChannelID *string `json:"welcome_channel_id"`
	WelcomeMessage   string  `json:"welcome_message"`
	LeaveEnabled     Flag    `json:"leave_enabled"`
	LeaveChannelID   *string `json:"leave_channel_id"`
	LogEnabled       Flag    `json:"log_enabled"`
	LogChannelID     *string `json:"log_channel_id"`
	TicketEnabled    Flag    `json:"ticket_enabled"`
	TicketCategoryID *string `json:"ticket_category_id"`
}

// DefaultGuildConfig returns the configuration reported for a guild with no stored row.
func DefaultGuildConfig(guildID string) *GuildConfig {
	return &GuildConfig{
		GuildID:        guildID,
		WelcomeMessage: DefaultWelcomeMessage,
	}
}

// Normalize turns blank IDs into nil and fills an empty welcome message with the default.
func (c *GuildConfig) Normalize() {
	for _, id := range []**string{&c.WelcomeChannelID, &c.LeaveChannelID, &c.LogChannelID, &c.TicketCategoryID} {
		if *id != nil {
			trimmed := strings.TrimSpace(**id)
			if trimmed == "" {
				*id = nil
			} else {
				*id = &trimmed
			}
		}
	}
	if strings.TrimSpace(c.WelcomeMessage) == "" {
		c.WelcomeMessage = DefaultWelcomeMessage
	}
}

// Validate checks target IDs and the welcome message length.
func (c *GuildConfig) Validate() error {
	if !IsSnowflake(c.GuildID) {
		return fmt.Errorf("guild_id must be a Discord snowflake")
	}

	targets := []struct {
		field string
		value *string
	}{
		{"welcome_channel_id", c.WelcomeChannelID},
		{"leave_channel_id", c.LeaveChannelID},
		{"log_channel_id", c.LogChannelID},
		{"ticket_category_id", c.TicketCategoryID},
	}
	for _, t := range targets {
		if t.value != nil && !IsSnowflake(*t.value) {
			return fmt.Errorf("%s must be a Discord snowflake", t.field)
		}
	}

	if utf8.RuneCountInString(c.WelcomeMessage) > MaxWelcomeMessageLength {
		return fmt.Errorf("welcome_message must be at most %d characters", MaxWelcomeMessageLength)
	}

	return nil
}

// IsSnowflake reports whether s looks like a Discord ID: 1 to 20 decimal digits.
func IsSnowflake(s string) bool {
	if len(s) == 0 || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Clone returns a copy that shares no pointers with c.
func (c GuildConfig) Clone() GuildConfig {
	out := c
	for _, id := range []**string{&out.WelcomeChannelID, &out.LeaveChannelID, &out.LogChannelID, &out.TicketCategoryID} {
		if *id != nil {
			v := **id
			*id = &v
		}
	}
	return out
}
