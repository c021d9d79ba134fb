// Package store provides the PostgreSQL persistence layer backing the
// Journal (H) and the Active-Resource Registry (B), grounded in the
// teacher's pkg/database/client.go: pgx driver, golang-migrate with
// embedded migration files, connection pooling. The teacher also wires
// entgo.io/ent on top of its pgx connection; this domain's documents
// (append-only log entries, ordered action lists, scale-out templates) are
// JSONB-shaped and queried ad hoc, so ent's typed schema generation has no
// component to serve here and is dropped (see DESIGN.md).
package store

import (
	stdsql "database/sql"
	"embed"
	"fmt"
	"time"

	"context"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for migrations
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds database connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Store wraps a pgx connection pool and exposes the Journal/Registry
// persistence operations.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL, applies pending migrations, and returns a
// ready Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parsing pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// runMigrations applies every embedded migration using golang-migrate,
// mirroring the teacher's embed-then-iofs-then-postgres-driver pipeline.
func runMigrations(dsn string) error {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	defer sourceDriver.Close()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Healthy reports whether the pool can reach the database, for the
// --healthcheck CLI path.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.pool.Ping(ctx) == nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ClearJournal truncates the journal store (--clear-db-log).
func (s *Store) ClearJournal(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE TABLE journal_entries")
	return err
}

// ClearConfig truncates the registry store (--clear-db-config).
func (s *Store) ClearConfig(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE TABLE resource_entries, action_blacklist")
	return err
}
