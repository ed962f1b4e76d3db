// Package models defines the data structures shared by the dashboard backend:
// Discord identities, dashboard sessions, guild metadata and guild configuration.
package models

import (
	"encoding/json"
	"time"
)

const redacted = "[REDACTED]"

// User is the Discord profile cached on a session at login.
type User struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	GlobalName    *string `json:"global_name,omitempty"`
	Discriminator string  `json:"discriminator,omitempty"`
	Avatar        *string `json:"avatar"`
}

// DisplayName returns the global display name when set, else the username.
func (u User) DisplayName() string {
	if u.GlobalName != nil && *u.GlobalName != "" {
		return *u.GlobalName
	}
	return u.Username
}

// RedactedToken holds a Discord access token. Its string, Go-syntax and JSON
// forms never reveal the value, so a session can be logged safely.
type RedactedToken struct {
	value string
}

// NewRedactedToken wraps value.
func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the raw token for outbound Authorization headers.
func (t RedactedToken) Value() string { return t.value }

// IsEmpty reports whether no token is held.
func (t RedactedToken) IsEmpty() bool { return t.value == "" }

func (t RedactedToken) String() string {
	if t.value == "" {
		return ""
	}
	return redacted
}

// GoString keeps %#v from printing the value.
func (t RedactedToken) GoString() string { return t.String() }

// MarshalJSON always emits the redacted marker.
func (t RedactedToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Session is a dashboard session minted after a successful OAuth callback.
// Guilds is nil until the guild list has been fetched once; an empty non-nil
// slice means the user has no guilds.
type Session struct {
	Token       string        `json:"token"`
	User        User          `json:"user"`
	AccessToken RedactedToken `json:"access_token"`
	Guilds      []Guild       `json:"guilds,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// IsExpired reports whether the session is no longer valid at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// GuildsCached reports whether the guild list has been filled.
func (s *Session) GuildsCached() bool {
	return s.Guilds != nil
}

// Clone returns a copy that does not share the guild slice.
func (s *Session) Clone() *Session {
	c := *s
	if s.Guilds != nil {
		c.Guilds = make([]Guild, len(s.Guilds))
		copy(c.Guilds, s.Guilds)
	}
	return &c
}
