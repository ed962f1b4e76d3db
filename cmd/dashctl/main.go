// Package main is dashctl, a terminal client for the guild dashboard API. It
// drives the same editor controller the dashboard uses.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/dashboard"
	"github.com/parsascontentcorner/guilddash/pkg/logger"
)

// settings are the defaults for the global flags.
type settings struct {
	APIURL   string        `env:"DASHCTL_API_URL" envDefault:"http://localhost:8080"`
	Token    string        `env:"DASHCTL_TOKEN"`
	Timeout  time.Duration `env:"DASHCTL_TIMEOUT" envDefault:"10s"`
	LogLevel string        `env:"DASHCTL_LOG_LEVEL" envDefault:"warn"`
}

// app holds what every subcommand needs once flags are parsed.
type app struct {
	settings
	log *zap.Logger
}

func (a *app) client() *dashboard.Client {
	return dashboard.NewClient(a.APIURL, a.Timeout, a.log)
}

func (a *app) controller() *dashboard.Controller {
	return dashboard.NewController(a.client(), a.log)
}

func (a *app) requireToken() error {
	if a.Token == "" {
		return fmt.Errorf("no session token: pass --token or set DASHCTL_TOKEN (run login-url to get one)")
	}
	return nil
}

func newRootCmd(defaults settings) *cobra.Command {
	a := &app{settings: defaults}

	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Inspect and edit guild bot configuration from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			log, err := logger.NewLogger(a.LogLevel, "console")
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.APIURL, "api-url", defaults.APIURL, "base URL of the dashboard API")
	flags.StringVar(&a.Token, "token", defaults.Token, "dashboard session token")
	flags.DurationVar(&a.Timeout, "timeout", defaults.Timeout, "timeout for each API call")
	flags.StringVar(&a.LogLevel, "log-level", defaults.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		newLoginURLCmd(a),
		newWhoamiCmd(a),
		newGuildsCmd(a),
		newChannelsCmd(a),
		newConfigCmd(a),
	)
	return root
}

func main() {
	defaults, err := env.ParseAs[settings]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(defaults).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
