// Package store owns every persisted entity of the sieve: invoices and
// their lines, vendors, remit accounts, amount baselines, decisions,
// cases, the audit log and per-tenant config overrides. All other
// components consume snapshots returned from here; mutation happens only
// inside the transactional boundaries this package defines.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// schemaSQL is compiled into the binary so schema bootstrap works in
// container images that do not ship the source tree.
//
//go:embed schema.sql
var schemaSQL string

// Store is a handle over the Postgres connection pool. It is safe for
// concurrent use; sessions are short-lived and scoped per call.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Connect parses the DSN, applies pool tuning and verifies connectivity.
func Connect(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	// Pool settings sized for operation behind PgBouncer.
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, log: log}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping reports database reachability for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InitSchema executes the embedded DDL. Statements are idempotent
// (CREATE TABLE IF NOT EXISTS) so repeated startups are harmless.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	s.log.Info("database schema initialized")
	return nil
}
