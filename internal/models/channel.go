package models

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// Channel is a guild channel in the slimmed form the dashboard needs.
type Channel struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Type     discordgo.ChannelType `json:"type"`
	Position int                   `json:"position"`
	ParentID *string               `json:"parent_id,omitempty"`
}

// IsTextLike reports whether messages can be posted to the channel
// (text and announcement channels).
func (c Channel) IsTextLike() bool {
	return c.Type == discordgo.ChannelTypeGuildText || c.Type == discordgo.ChannelTypeGuildNews
}

// IsText reports whether the channel is a plain text channel, the only kind
// the welcome, leave and log pickers offer.
func (c Channel) IsText() bool {
	return c.Type == discordgo.ChannelTypeGuildText
}

// IsCategory reports whether the channel is a category.
func (c Channel) IsCategory() bool {
	return c.Type == discordgo.ChannelTypeGuildCategory
}

// SelectableChannels keeps text, announcement and category channels and sorts
// them by position. The input is not modified.
func SelectableChannels(channels []Channel) []Channel {
	out := make([]Channel, 0, len(channels))
	for _, c := range channels {
		if c.IsTextLike() || c.IsCategory() {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b Channel) int {
		return a.Position - b.Position
	})
	return out
}

// SplitChannels returns the picker options: text channels (type 0) and
// categories. Announcement and other channel types are left out.
func SplitChannels(channels []Channel) (text, categories []Channel) {
	text = []Channel{}
	categories = []Channel{}
	for _, c := range channels {
		switch {
		case c.IsText():
			text = append(text, c)
		case c.IsCategory():
			categories = append(categories, c)
		}
	}
	return text, categories
}
