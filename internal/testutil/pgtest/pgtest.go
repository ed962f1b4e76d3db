// Package pgtest runs a throwaway PostgreSQL server in a container for tests
// that need a real database, and resets its tables between tests.
package pgtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/parsascontentcorner/guilddash/internal/config"
)

const (
	image    = "postgres:15-alpine"
	dbName   = "guilddash_test"
	user     = "guilddash"
	password = "guilddash"
)

// Server is a running PostgreSQL container.
type Server struct {
	container *postgres.PostgresContainer
	host      string
	port      string
}

// Start runs a container and waits until it accepts connections.
func Start(ctx context.Context) (*Server, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(image),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			// Postgres logs readiness twice: once for the init run, once for the real server.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	srv := &Server{container: container}
	if srv.host, err = container.Host(ctx); err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}
	srv.port = port.Port()

	return srv, nil
}

// DatabaseConfig returns fresh connection settings for the server, safe for
// the caller to modify.
func (s *Server) DatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:         s.host,
		Port:         s.port,
		User:         user,
		Password:     password,
		Name:         dbName,
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
}

// Stop removes the container and its data.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate postgres container: %w", err)
	}
	return nil
}

// Truncate empties every table of the public schema except the migration
// bookkeeping, and restarts identity sequences.
func Truncate(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT tablename
		FROM pg_tables
		WHERE schemaname = 'public' AND tablename <> 'schema_migrations'
		ORDER BY tablename
	`)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, `"`+name+`"`)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	if len(tables) == 0 {
		return nil
	}

	if _, err := db.ExecContext(ctx, "TRUNCATE "+strings.Join(tables, ", ")+" RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}
