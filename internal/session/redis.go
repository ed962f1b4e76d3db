package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/parsascontentcorner/guilddash/internal/crypto"
	"github.com/parsascontentcorner/guilddash/internal/models"
)

// record is the serialized form shared by the Redis and Postgres backends.
// A null guilds value means the list was never fetched.
type record struct {
	Token       string         `json:"token"`
	User        models.User    `json:"user"`
	AccessToken string         `json:"access_token"` // sealed with crypto.Cipher
	Guilds      []models.Guild `json:"guilds"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

func sealRecord(c *crypto.Cipher, s *models.Session) (*record, error) {
	sealed, err := c.Encrypt(s.AccessToken.Value())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	return &record{
		Token:       s.Token,
		User:        s.User,
		AccessToken: sealed,
		Guilds:      s.Guilds,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
	}, nil
}

func (r *record) open(c *crypto.Cipher) (*models.Session, error) {
	accessToken, err := c.Decrypt(r.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return &models.Session{
		Token:       r.Token,
		User:        r.User,
		AccessToken: models.NewRedactedToken(accessToken),
		Guilds:      r.Guilds,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}, nil
}

// RedisStore keeps each session as one JSON string key whose Redis TTL
// matches the session expiry. Access tokens are encrypted at rest.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
	cipher *crypto.Cipher
	clock  clockwork.Clock
}

// NewRedisStore creates a store over rdb. Keys are prefix + "session:" + token.
func NewRedisStore(rdb *goredis.Client, prefix string, cipher *crypto.Cipher, clock clockwork.Clock) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, cipher: cipher, clock: clock}
}

// OpenRedis parses a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return rdb, nil
}

func (r *RedisStore) key(token string) string {
	return r.prefix + "session:" + token
}

// Put stores s with a TTL equal to its remaining lifetime.
func (r *RedisStore) Put(ctx context.Context, s *models.Session) error {
	ttl := s.ExpiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return ErrExpired
	}

	rec, err := sealRecord(r.cipher, s)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := r.rdb.SetNX(ctx, r.key(s.Token), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		// The key may still be held by a record whose Redis TTL has not run out
		// yet but which is expired by our clock.
		existing, err := r.load(ctx, s.Token)
		if err == nil && r.clock.Now().Before(existing.ExpiresAt) {
			return ErrExists
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := r.rdb.Set(ctx, r.key(s.Token), data, ttl).Err(); err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}
	}
	return nil
}

// Get loads and decrypts the session.
func (r *RedisStore) Get(ctx context.Context, token string) (*models.Session, error) {
	rec, err := r.load(ctx, token)
	if err != nil {
		return nil, err
	}

	if !r.clock.Now().Before(rec.ExpiresAt) {
		_ = r.rdb.Del(ctx, r.key(token)).Err()
		return nil, ErrExpired
	}

	return rec.open(r.cipher)
}

// SetGuilds rewrites the record with the new guild list, keeping its TTL.
func (r *RedisStore) SetGuilds(ctx context.Context, token string, guilds []models.Guild) error {
	rec, err := r.load(ctx, token)
	if err != nil {
		return err
	}
	if !r.clock.Now().Before(rec.ExpiresAt) {
		return ErrExpired
	}

	rec.Guilds = guilds
	if rec.Guilds == nil {
		rec.Guilds = []models.Guild{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := r.rdb.SetXX(ctx, r.key(token), data, goredis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to update session guilds: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Delete removes the session key.
func (r *RedisStore) Delete(ctx context.Context, token string) error {
	if err := r.rdb.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Expire is a no-op: Redis evicts keys when their TTL runs out.
func (r *RedisStore) Expire(_ context.Context) (int, error) {
	return 0, nil
}

func (r *RedisStore) load(ctx context.Context, token string) (*record, error) {
	data, err := r.rdb.Get(ctx, r.key(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &rec, nil
}
