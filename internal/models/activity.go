package models

import (
	"sort"
	"time"
)

// Row limits of the activity views, newest first.
const (
	WarningListLimit    = 100
	TicketListLimit     = 50
	AnalyticsEventLimit = 50
)

// Warning is a moderation warning the bot recorded against a member.
type Warning struct {
	ID          int64     `json:"id"`
	GuildID     string    `json:"guild_id"`
	UserID      string    `json:"user_id"`
	ModeratorID string    `json:"moderator_id"`
	Reason      *string   `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// Ticket is a support ticket channel opened through the bot.
type Ticket struct {
	ID        int64        `json:"id"`
	GuildID   string       `json:"guild_id"`
	ChannelID *string      `json:"channel_id"`
	UserID    string       `json:"user_id"`
	Status    TicketStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	ClosedAt  *time.Time   `json:"closed_at"`
}

// AnalyticsEvent is one guild event the bot logged, such as a member join.
// Data is stored as the bot wrote it.
type AnalyticsEvent struct {
	ID        int64     `json:"id"`
	GuildID   string    `json:"guild_id"`
	EventType string    `json:"event_type"`
	Data      *string   `json:"event_data"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalyticsReport is the analytics view of a guild: the most recent events and
// a count of every recorded event by type.
type AnalyticsReport struct {
	Events  []AnalyticsEvent `json:"events"`
	Summary map[string]int   `json:"summary"`
}

// CountEventTypes tallies events by type.
func CountEventTypes(events []AnalyticsEvent) map[string]int {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.EventType]++
	}
	return counts
}

// NewestFirst orders events by creation time, newest first, breaking ties by
// descending ID.
func NewestFirst(events []AnalyticsEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.After(events[j].CreatedAt)
		}
		return events[i].ID > events[j].ID
	})
}
