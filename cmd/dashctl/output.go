package main

import (
	"fmt"
	"io"

	"github.com/bwmarrin/discordgo"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/parsascontentcorner/guilddash/internal/dashboard"
	"github.com/parsascontentcorner/guilddash/internal/models"
)

func newTable(w io.Writer, headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = text.FgHiCyan.Sprint(h)
	}
	t.AppendHeader(row)
	return t
}

func renderEmpty(w io.Writer, message string) {
	fmt.Fprintln(w, text.FgYellow.Sprint(message))
}

func yesNo(b bool) string {
	if b {
		return text.FgGreen.Sprint("yes")
	}
	return text.FgHiBlack.Sprint("no")
}

func renderUser(w io.Writer, u *models.User) {
	t := newTable(w, "KEY", "VALUE")
	t.AppendRow(table.Row{"ID", u.ID})
	t.AppendRow(table.Row{"Username", u.Username})
	t.AppendRow(table.Row{"Display name", u.DisplayName()})
	t.Render()
}

func renderGuilds(w io.Writer, guilds []models.Guild) {
	if len(guilds) == 0 {
		renderEmpty(w, "No guilds found")
		return
	}

	t := newTable(w, "ID", "NAME", "OWNER", "MANAGE")
	for _, g := range guilds {
		t.AppendRow(table.Row{g.ID, g.Name, yesNo(g.Owner), yesNo(g.CanManage())})
	}
	t.Render()
}

func channelKind(c models.Channel) string {
	switch c.Type {
	case discordgo.ChannelTypeGuildText:
		return "text"
	case discordgo.ChannelTypeGuildNews:
		return "announcement"
	case discordgo.ChannelTypeGuildCategory:
		return "category"
	}
	return fmt.Sprintf("type %d", c.Type)
}

// pickerFor names the configuration pickers that offer c.
func pickerFor(c models.Channel) string {
	switch {
	case c.IsText():
		return "welcome, leave, log"
	case c.IsCategory():
		return "ticket"
	}
	return text.FgHiBlack.Sprint("none")
}

func renderChannels(w io.Writer, channels []models.Channel) {
	channels = models.SelectableChannels(channels)
	if len(channels) == 0 {
		renderEmpty(w, "No channels found")
		return
	}

	t := newTable(w, "ID", "NAME", "TYPE", "POSITION", "PICKER")
	for _, c := range channels {
		t.AppendRow(table.Row{c.ID, c.Name, channelKind(c), c.Position, pickerFor(c)})
	}
	t.Render()
}

// describeTarget names a configured channel, falling back to the bare ID when
// the channel is no longer offered.
func describeTarget(id *string, options []models.Channel) string {
	if id == nil {
		return text.FgHiBlack.Sprint("not set")
	}
	for _, c := range options {
		if c.ID == *id {
			return fmt.Sprintf("#%s (%s)", c.Name, c.ID)
		}
	}
	return *id + text.FgYellow.Sprint(" (unknown)")
}

func renderConfig(w io.Writer, st dashboard.State) {
	cfg := st.Form
	t := newTable(w, "FIELD", "VALUE")
	t.AppendRow(table.Row{"guild_id", cfg.GuildID})
	t.AppendSeparator()
	t.AppendRow(table.Row{"welcome_enabled", yesNo(bool(cfg.WelcomeEnabled))})
	t.AppendRow(table.Row{"welcome_channel_id", describeTarget(cfg.WelcomeChannelID, st.Options(dashboard.SelectorWelcomeChannel))})
	t.AppendRow(table.Row{"welcome_message", cfg.WelcomeMessage})
	t.AppendSeparator()
	t.AppendRow(table.Row{"leave_enabled", yesNo(bool(cfg.LeaveEnabled))})
	t.AppendRow(table.Row{"leave_channel_id", describeTarget(cfg.LeaveChannelID, st.Options(dashboard.SelectorLeaveChannel))})
	t.AppendSeparator()
	t.AppendRow(table.Row{"log_enabled", yesNo(bool(cfg.LogEnabled))})
	t.AppendRow(table.Row{"log_channel_id", describeTarget(cfg.LogChannelID, st.Options(dashboard.SelectorLogChannel))})
	t.AppendSeparator()
	t.AppendRow(table.Row{"ticket_enabled", yesNo(bool(cfg.TicketEnabled))})
	t.AppendRow(table.Row{"ticket_category_id", describeTarget(cfg.TicketCategoryID, st.Options(dashboard.SelectorTicketCategory))})
	t.Render()
}

func renderNotice(w io.Writer, n *dashboard.Notice) {
	if n == nil {
		return
	}
	switch n.Level {
	case dashboard.NoticeError:
		fmt.Fprintln(w, text.FgRed.Sprint(n.Message))
	case dashboard.NoticeSuccess:
		fmt.Fprintln(w, text.FgGreen.Sprint(n.Message))
	default:
		fmt.Fprintln(w, n.Message)
	}
}
