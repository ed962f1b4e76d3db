package session

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/guilddash/internal/models"
)

func newTestSession(clock clockwork.Clock, ttl time.Duration) *models.Session {
	now := clock.Now()
	return &models.Session{
		Token: NewToken(),
		User: models.User{
			ID:       "123456789012345678",
			Username: "TestUser",
		},
		AccessToken: models.NewRedactedToken("mock_access_token_123"),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// runStoreContract checks the behaviour every backend must share.
// newStore must return an empty store driven by clock.
func runStoreContract(t *testing.T, newStore func(t *testing.T, clock *clockwork.FakeClock) Store) {
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)
		s := newTestSession(clock, time.Hour)

		require.NoError(t, store.Put(ctx, s))

		got, err := store.Get(ctx, s.Token)
		require.NoError(t, err)
		assert.Equal(t, s.Token, got.Token)
		assert.Equal(t, s.User, got.User)
		assert.Equal(t, "mock_access_token_123", got.AccessToken.Value())
		assert.WithinDuration(t, s.ExpiresAt, got.ExpiresAt, time.Millisecond)
		assert.False(t, got.GuildsCached())
	})

	t.Run("unknown token", func(t *testing.T) {
		store := newStore(t, clockwork.NewFakeClock())

		_, err := store.Get(ctx, NewToken())
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.SetGuilds(ctx, NewToken(), nil), ErrNotFound)
	})

	t.Run("live duplicate rejected", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)
		s := newTestSession(clock, time.Hour)

		require.NoError(t, store.Put(ctx, s))
		assert.ErrorIs(t, store.Put(ctx, s), ErrExists)
	})

	t.Run("expired token can be reissued", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)
		s := newTestSession(clock, time.Minute)
		require.NoError(t, store.Put(ctx, s))

		clock.Advance(2 * time.Minute)

		fresh := newTestSession(clock, time.Hour)
		fresh.Token = s.Token
		require.NoError(t, store.Put(ctx, fresh))

		got, err := store.Get(ctx, s.Token)
		require.NoError(t, err)
		assert.WithinDuration(t, fresh.ExpiresAt, got.ExpiresAt, time.Millisecond)
	})

	t.Run("expiry is checked on read", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)
		s := newTestSession(clock, time.Hour)
		require.NoError(t, store.Put(ctx, s))

		clock.Advance(time.Hour)

		_, err := store.Get(ctx, s.Token)
		assert.ErrorIs(t, err, ErrExpired)
		assert.True(t, IsInvalid(err))

		_, err = store.Get(ctx, s.Token)
		assert.True(t, IsInvalid(err))
	})

	t.Run("set guilds", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)
		s := newTestSession(clock, time.Hour)
		require.NoError(t, store.Put(ctx, s))

		guilds := []models.Guild{{ID: "111111111111111111", Name: "Managed Guild", Permissions: "32"}}
		require.NoError(t, store.SetGuilds(ctx, s.Token, guilds))

		got, err := store.Get(ctx, s.Token)
		require.NoError(t, err)
		assert.Equal(t, guilds, got.Guilds)
		assert.Equal(t, "mock_access_token_123", got.AccessToken.Value())

		require.NoError(t, store.SetGuilds(ctx, s.Token, []models.Guild{}))
		got, err = store.Get(ctx, s.Token)
		require.NoError(t, err)
		assert.True(t, got.GuildsCached(), "an empty list is still a cached list")
		assert.Empty(t, got.Guilds)
	})

	t.Run("set guilds on expired session", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)
		s := newTestSession(clock, time.Minute)
		require.NoError(t, store.Put(ctx, s))

		clock.Advance(time.Minute)

		assert.True(t, IsInvalid(store.SetGuilds(ctx, s.Token, nil)))
	})

	t.Run("delete", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)
		s := newTestSession(clock, time.Hour)
		require.NoError(t, store.Put(ctx, s))

		require.NoError(t, store.Delete(ctx, s.Token))
		_, err := store.Get(ctx, s.Token)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.NoError(t, store.Delete(ctx, s.Token))
	})

	t.Run("expire keeps live sessions", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)
		short := newTestSession(clock, time.Minute)
		long := newTestSession(clock, time.Hour)
		require.NoError(t, store.Put(ctx, short))
		require.NoError(t, store.Put(ctx, long))

		clock.Advance(5 * time.Minute)

		_, err := store.Expire(ctx)
		require.NoError(t, err)

		_, err = store.Get(ctx, short.Token)
		assert.True(t, IsInvalid(err))
		_, err = store.Get(ctx, long.Token)
		assert.NoError(t, err)
	})

	t.Run("returned sessions are copies", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)
		s := newTestSession(clock, time.Hour)
		require.NoError(t, store.Put(ctx, s))
		require.NoError(t, store.SetGuilds(ctx, s.Token, []models.Guild{{ID: "1", Name: "A"}}))

		got, err := store.Get(ctx, s.Token)
		require.NoError(t, err)
		got.Guilds[0].Name = "mutated"

		again, err := store.Get(ctx, s.Token)
		require.NoError(t, err)
		assert.Equal(t, "A", again.Guilds[0].Name)
	})
}
