package models

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// Guild is a guild entry from the user's guild list.
type Guild struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        *string  `json:"icon"`
	Owner       bool     `json:"owner"`
	Permissions string   `json:"permissions"`
	Features    []string `json:"features,omitempty"`
}

// PermissionBits parses the decimal permission string. Unparseable values count as no permissions.
func (g Guild) PermissionBits() int64 {
	bits, err := strconv.ParseInt(g.Permissions, 10, 64)
	if err != nil {
		return 0
	}
	return bits
}

// CanManage reports whether the user may configure this guild: owners, and
// members holding Manage Server (MANAGE_GUILD) or Administrator.
func (g Guild) CanManage() bool {
	if g.Owner {
		return true
	}
	bits := g.PermissionBits()
	return bits&discordgo.PermissionManageServer != 0 || bits&discordgo.PermissionAdministrator != 0
}

// ManageableGuilds filters guilds down to those CanManage accepts, keeping order.
func ManageableGuilds(guilds []Guild) []Guild {
	out := make([]Guild, 0, len(guilds))
	for _, g := range guilds {
		if g.CanManage() {
			out = append(out, g)
		}
	}
	return out
}

// FindGuild returns the guild with the given ID.
func FindGuild(guilds []Guild, id string) (Guild, bool) {
	for _, g := range guilds {
		if g.ID == id {
			return g, true
		}
	}
	return Guild{}, false
}

// Role is a guild role as listed through the bot token.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Position    int    `json:"position"`
	Managed     bool   `json:"managed"`
	Permissions string `json:"permissions"`
}

// GuildInfo is the guild summary shown on the configuration screen.
type GuildInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Icon        *string `json:"icon"`
	OwnerID     string  `json:"owner_id"`
	MemberCount int     `json:"member_count"`
}
