package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parsascontentcorner/guilddash/internal/models"
)

// API is the part of Client the controller uses.
type API interface {
	Me(ctx context.Context, token string) (*models.User, error)
	Guilds(ctx context.Context, token string) ([]models.Guild, error)
	Channels(ctx context.Context, token, guildID string) ([]models.Channel, error)
	Config(ctx context.Context, token, guildID string) (*models.GuildConfig, error)
	SaveConfig(ctx context.Context, token string, cfg *models.GuildConfig) error
	Logout(ctx context.Context, token string) error
}

// Controller runs the editor: it performs API calls and dispatches their
// outcomes to Reduce. Methods are safe for concurrent use.
type Controller struct {
	api    API
	logger *zap.Logger

	mu    sync.Mutex
	state State
}

// NewController creates a controller on the Login screen.
func NewController(api API, logger *zap.Logger) *Controller {
	return &Controller{api: api, logger: logger}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) dispatch(ev Event) State {
	_, after := c.transition(ev)
	return after
}

// transition reduces ev and returns the states on either side of it, both
// observed under one lock.
func (c *Controller) transition(ev Event) (before, after State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before = c.state
	c.state = Reduce(c.state, ev)
	return before, c.state
}

// unauthorized discards the token and reports ErrUnauthorized.
func (c *Controller) unauthorized() error {
	c.dispatch(Unauthorized{})
	return ErrUnauthorized
}

// Login loads the profile and guild list for token and opens the guild list.
// A guild list failure degrades to an empty list.
func (c *Controller) Login(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("empty session token")
	}
	c.dispatch(TokenReceived{Token: token})

	user, err := c.api.Me(ctx, token)
	if errors.Is(err, ErrUnauthorized) {
		return c.unauthorized()
	}
	if err != nil {
		c.logger.Warn("failed to load profile", zap.Error(err))
		c.dispatch(LoadFailed{Err: err})
		return fmt.Errorf("failed to load profile: %w", err)
	}

	guilds, err := c.api.Guilds(ctx, token)
	if errors.Is(err, ErrUnauthorized) {
		return c.unauthorized()
	}
	if err != nil {
		c.logger.Warn("guild list unavailable, showing empty list", zap.Error(err))
		guilds = []models.Guild{}
	}

	c.dispatch(SessionLoaded{User: *user, Guilds: guilds})
	return nil
}

// SelectGuild opens the configuration screen and fetches the channel list and
// the stored configuration concurrently. Channel failures degrade to empty
// pickers; configuration failures fall back to defaults.
func (c *Controller) SelectGuild(ctx context.Context, guildID string) error {
	st := c.State()
	guild, ok := models.FindGuild(st.Guilds, guildID)
	if st.Screen != ScreenGuildList || !ok {
		return fmt.Errorf("guild %s is not selectable", guildID)
	}
	c.dispatch(GuildSelected{Guild: guild})

	loaded := GuildDataLoaded{GuildID: guildID}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		channels, err := c.api.Channels(gctx, st.Token, guildID)
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		loaded.Channels, loaded.ChannelsErr = channels, err
		return nil
	})
	g.Go(func() error {
		cfg, err := c.api.Config(gctx, st.Token, guildID)
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		loaded.Config, loaded.ConfigErr = cfg, err
		return nil
	})

	if err := g.Wait(); err != nil {
		return c.unauthorized()
	}

	if loaded.ChannelsErr != nil {
		c.logger.Warn("channel list unavailable, showing empty pickers",
			zap.String("guild_id", guildID),
			zap.Error(loaded.ChannelsErr),
		)
	}
	if loaded.ConfigErr != nil {
		c.logger.Warn("configuration unavailable, using defaults",
			zap.String("guild_id", guildID),
			zap.Error(loaded.ConfigErr),
		)
	}

	c.dispatch(loaded)
	return nil
}

// Edit applies fn to a copy of the form.
func (c *Controller) Edit(fn func(cfg *models.GuildConfig)) State {
	form := c.State().Form.Clone()
	fn(&form)
	return c.dispatch(ConfigEdited{Config: form})
}

// Save posts the form. On failure the form is restored to the last saved
// configuration; on success the posted values become the saved ones.
func (c *Controller) Save(ctx context.Context) error {
	before, st := c.transition(SaveStarted{})
	if !st.Saving || before.Saving {
		return errors.New("nothing to save")
	}

	cfg := st.Form.Clone()
	err := c.api.SaveConfig(ctx, st.Token, &cfg)
	if errors.Is(err, ErrUnauthorized) {
		return c.unauthorized()
	}
	if err != nil {
		c.logger.Warn("failed to save configuration", zap.String("guild_id", cfg.GuildID), zap.Error(err))
		c.dispatch(SaveFailed{Err: err})
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	c.dispatch(SaveSucceeded{Config: cfg})
	return nil
}

// Back returns to the guild list.
func (c *Controller) Back() State {
	return c.dispatch(BackToGuilds{})
}

// Dismiss clears the current notice.
func (c *Controller) Dismiss() State {
	return c.dispatch(Dismiss{})
}

// Logout ends the session server-side and returns to Login. The local token
// is discarded even when the server call fails.
func (c *Controller) Logout(ctx context.Context) error {
	token := c.State().Token
	var err error
	if token != "" {
		err = c.api.Logout(ctx, token)
		if err != nil && !errors.Is(err, ErrUnauthorized) {
			c.logger.Warn("failed to end session server-side", zap.Error(err))
		} else {
			err = nil
		}
	}

	c.dispatch(LoggedOut{})
	return err
}
