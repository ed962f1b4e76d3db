package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/parsascontentcorner/guilddash/internal/crypto"
	"github.com/parsascontentcorner/guilddash/internal/database"
	"github.com/parsascontentcorner/guilddash/internal/models"
)

// PostgresStore keeps sessions in the dashboard_sessions table so they survive
// restarts and are shared by every instance using the same database.
type PostgresStore struct {
	db     *database.DB
	cipher *crypto.Cipher
	clock  clockwork.Clock
}

// NewPostgresStore creates a store over db. Access tokens are sealed with cipher.
func NewPostgresStore(db *database.DB, cipher *crypto.Cipher, clock clockwork.Clock) *PostgresStore {
	return &PostgresStore{db: db, cipher: cipher, clock: clock}
}

// Put inserts s unless a live session already holds the token.
func (p *PostgresStore) Put(ctx context.Context, s *models.Session) error {
	now := p.clock.Now()
	if s.IsExpired(now) {
		return ErrExpired
	}

	rec, err := sealRecord(p.cipher, s)
	if err != nil {
		return err
	}
	row, err := rec.toRow()
	if err != nil {
		return err
	}

	created, err := p.db.CreateDashboardSession(ctx, row, now)
	if err != nil {
		return err
	}
	if !created {
		return ErrExists
	}
	return nil
}

// Get loads and decrypts the session. Expired rows are deleted on read.
func (p *PostgresStore) Get(ctx context.Context, token string) (*models.Session, error) {
	row, err := p.db.GetDashboardSession(ctx, token)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !p.clock.Now().Before(row.ExpiresAt) {
		_ = p.db.DeleteDashboardSession(ctx, token)
		return nil, ErrExpired
	}

	rec, err := recordFromRow(row)
	if err != nil {
		return nil, err
	}
	return rec.open(p.cipher)
}

// SetGuilds replaces the cached guild list of a live session.
func (p *PostgresStore) SetGuilds(ctx context.Context, token string, guilds []models.Guild) error {
	row, err := p.db.GetDashboardSession(ctx, token)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !p.clock.Now().Before(row.ExpiresAt) {
		return ErrExpired
	}

	if guilds == nil {
		guilds = []models.Guild{}
	}
	data, err := json.Marshal(guilds)
	if err != nil {
		return fmt.Errorf("failed to marshal guilds: %w", err)
	}

	err = p.db.UpdateDashboardSessionGuilds(ctx, token, data)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Delete removes the session row.
func (p *PostgresStore) Delete(ctx context.Context, token string) error {
	return p.db.DeleteDashboardSession(ctx, token)
}

// Expire deletes every expired row.
func (p *PostgresStore) Expire(ctx context.Context) (int, error) {
	n, err := p.db.DeleteExpiredDashboardSessions(ctx, p.clock.Now())
	return int(n), err
}

func (r *record) toRow() (*database.SessionRow, error) {
	userJSON, err := json.Marshal(r.User)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user: %w", err)
	}

	var guildsJSON []byte
	if r.Guilds != nil {
		if guildsJSON, err = json.Marshal(r.Guilds); err != nil {
			return nil, fmt.Errorf("failed to marshal guilds: %w", err)
		}
	}

	return &database.SessionRow{
		Token:       r.Token,
		UserJSON:    userJSON,
		AccessToken: r.AccessToken,
		GuildsJSON:  guildsJSON,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}, nil
}

func recordFromRow(row *database.SessionRow) (*record, error) {
	rec := &record{
		Token:       row.Token,
		AccessToken: row.AccessToken,
		CreatedAt:   row.CreatedAt,
		ExpiresAt:   row.ExpiresAt,
	}
	if err := json.Unmarshal(row.UserJSON, &rec.User); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	if row.GuildsJSON != nil {
		if err := json.Unmarshal(row.GuildsJSON, &rec.Guilds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal guilds: %w", err)
		}
		if rec.Guilds == nil {
			rec.Guilds = []models.Guild{}
		}
	}
	return rec, nil
}
