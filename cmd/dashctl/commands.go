package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parsascontentcorner/guilddash/internal/dashboard"
	"github.com/parsascontentcorner/guilddash/internal/models"
)

func newLoginURLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login-url",
		Short: "Print the URL that starts the Discord login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.client().LoginURL())
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user the session belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			user, err := a.client().Me(cmd.Context(), a.Token)
			if err != nil {
				return err
			}
			renderUser(cmd.OutOrStdout(), user)
			return nil
		},
	}
}

func newGuildsCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "guilds",
		Short: "List the guilds you can configure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			if all {
				guilds, err := a.client().Guilds(cmd.Context(), a.Token)
				if err != nil {
					return err
				}
				renderGuilds(cmd.OutOrStdout(), guilds)
				return nil
			}

			ctrl := a.controller()
			if err := ctrl.Login(cmd.Context(), a.Token); err != nil {
				return err
			}
			renderGuilds(cmd.OutOrStdout(), ctrl.State().Guilds)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include guilds you cannot configure")
	return cmd
}

func newChannelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "channels <guild-id>",
		Short: "List the channels the configuration pickers offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			channels, err := a.client().Channels(cmd.Context(), a.Token, args[0])
			if err != nil {
				return err
			}
			renderChannels(cmd.OutOrStdout(), channels)
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change a guild's bot configuration",
	}
	cmd.AddCommand(newConfigGetCmd(a), newConfigSetCmd(a))
	return cmd
}

// openGuild logs in and opens the configuration screen of guildID.
func openGuild(cmd *cobra.Command, a *app, guildID string) (*dashboard.Controller, error) {
	if err := a.requireToken(); err != nil {
		return nil, err
	}
	ctrl := a.controller()
	if err := ctrl.Login(cmd.Context(), a.Token); err != nil {
		return nil, err
	}
	if err := ctrl.SelectGuild(cmd.Context(), guildID); err != nil {
		return nil, err
	}
	return ctrl, nil
}

func newConfigGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <guild-id>",
		Short: "Show the stored configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := openGuild(cmd, a, args[0])
			if err != nil {
				return err
			}
			st := ctrl.State()
			renderNotice(cmd.ErrOrStderr(), st.Notice)
			renderConfig(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

// configFlags are the editable fields of config set. Only flags given on the
// command line are applied.
type configFlags struct {
	welcomeEnabled bool
	welcomeChannel string
	welcomeMessage string
	leaveEnabled   bool
	leaveChannel   string
	logEnabled     bool
	logChannel     string
	ticketEnabled  bool
	ticketCategory string
	force          bool
}

func (f *configFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&f.welcomeEnabled, "welcome-enabled", false, "send welcome messages")
	fs.StringVar(&f.welcomeChannel, "welcome-channel", "", "welcome channel ID (empty clears)")
	fs.StringVar(&f.welcomeMessage, "welcome-message", "", "welcome message template")
	fs.BoolVar(&f.leaveEnabled, "leave-enabled", false, "send leave messages")
	fs.StringVar(&f.leaveChannel, "leave-channel", "", "leave channel ID (empty clears)")
	fs.BoolVar(&f.logEnabled, "log-enabled", false, "write moderation logs")
	fs.StringVar(&f.logChannel, "log-channel", "", "log channel ID (empty clears)")
	fs.BoolVar(&f.ticketEnabled, "ticket-enabled", false, "enable tickets")
	fs.StringVar(&f.ticketCategory, "ticket-category", "", "ticket category ID (empty clears)")
	fs.BoolVar(&f.force, "force", false, "save even if the stored configuration could not be loaded")
}

// apply copies the flags that were set onto cfg.
func (f *configFlags) apply(cmd *cobra.Command, cfg *models.GuildConfig) int {
	changed := 0
	set := func(name string, fn func()) {
		if cmd.Flags().Changed(name) {
			fn()
			changed++
		}
	}
	optional := func(v string) *string {
		if v == "" {
			return nil
		}
		return models.StringPtr(v)
	}

	set("welcome-enabled", func() { cfg.WelcomeEnabled = models.Flag(f.welcomeEnabled) })
	set("welcome-channel", func() { cfg.WelcomeChannelID = optional(f.welcomeChannel) })
	set("welcome-message", func() { cfg.WelcomeMessage = f.welcomeMessage })
	set("leave-enabled", func() { cfg.LeaveEnabled = models.Flag(f.leaveEnabled) })
	set("leave-channel", func() { cfg.LeaveChannelID = optional(f.leaveChannel) })
	set("log-enabled", func() { cfg.LogEnabled = models.Flag(f.logEnabled) })
	set("log-channel", func() { cfg.LogChannelID = optional(f.logChannel) })
	set("ticket-enabled", func() { cfg.TicketEnabled = models.Flag(f.ticketEnabled) })
	set("ticket-category", func() { cfg.TicketCategoryID = optional(f.ticketCategory) })
	return changed
}

func newConfigSetCmd(a *app) *cobra.Command {
	f := &configFlags{}

	cmd := &cobra.Command{
		Use:   "set <guild-id>",
		Short: "Change configuration fields and save",
		Example: `  dashctl config set 42 --welcome-enabled --welcome-channel 1001
  dashctl config set 42 --ticket-enabled=false --ticket-category ""`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := openGuild(cmd, a, args[0])
			if err != nil {
				return err
			}

			st := ctrl.State()
			if st.Notice != nil && st.Notice.Message == dashboard.MsgConfigFallback && !f.force {
				return errors.New("stored configuration could not be loaded; rerun with --force to overwrite it")
			}

			var changed int
			ctrl.Edit(func(cfg *models.GuildConfig) {
				changed = f.apply(cmd, cfg)
			})
			if changed == 0 {
				return errors.New("nothing to change: pass at least one field flag")
			}

			if err := ctrl.Save(cmd.Context()); err != nil {
				return err
			}
			st = ctrl.State()
			renderNotice(cmd.ErrOrStderr(), st.Notice)
			renderConfig(cmd.OutOrStdout(), st)
			return nil
		},
	}

	f.register(cmd)
	return cmd
}
