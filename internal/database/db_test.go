package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/config"
)

func TestNewDB_Success(t *testing.T) {
	ctx := context.Background()

	db, err := NewDB(postgresConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	assert.NoError(t, db.PingContext(ctx))
	assert.Equal(t, 5, db.Stats().MaxOpenConnections)
}

func TestNewDB_InvalidCredentials(t *testing.T) {
	cfg := postgresConfig(t)
	cfg.Password = "wrong_password"

	db, err := NewDB(cfg, zap.NewNop())

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestNewDB_InvalidHost(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:         "nonexistent-host-12345",
		Port:         "5432",
		User:         "testuser",
		Password:     "testpass",
		Name:         "testdb",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	db, err := NewDB(cfg, zap.NewNop())

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestDBHealth(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)

	assert.NoError(t, db.Health(ctx))
	assert.NoError(t, db.Ping(ctx))
}

func TestDBHealth_ClosedConnection(t *testing.T) {
	ctx := context.Background()

	db, err := NewDB(postgresConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = db.Health(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database health check failed")
}

func TestRunMigrations_CreatesTables(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)

	var tableCount int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_name IN ('guild_settings', 'dashboard_sessions', 'warns', 'tickets', 'analytics', 'schema_migrations')
	`).Scan(&tableCount)
	require.NoError(t, err)
	assert.Equal(t, 6, tableCount)

	version, dirty, err := db.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := newMigratedDB(t)

	assert.NoError(t, db.RunMigrations(), "running migrations twice should not error")
}

func TestRollbackMigrations(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)
	t.Cleanup(func() {
		if err := db.RunMigrations(); err != nil {
			t.Logf("failed to reapply migrations: %v", err)
		}
	})

	tableExists := func(name string) bool {
		var exists bool
		require.NoError(t, db.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)
		`, name).Scan(&exists))
		return exists
	}

	require.NoError(t, db.RollbackMigrations(1))

	version, _, err := db.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, tableExists("warns"))
	assert.True(t, tableExists("dashboard_sessions"))

	require.NoError(t, db.RollbackMigrations(1))
	assert.False(t, tableExists("dashboard_sessions"))
	assert.True(t, tableExists("guild_settings"))

	assert.Error(t, db.RollbackMigrations(0))
}
