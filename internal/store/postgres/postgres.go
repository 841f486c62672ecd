// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/tracknow/internal/model"
	"github.com/alfredjeanlab/tracknow/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateFence(ctx context.Context, f *model.Fence) error {
	return queryCreateFence(ctx, s.db, f)
}

func (s *PostgresStore) GetFence(ctx context.Context, id string) (*model.Fence, error) {
	return queryGetFence(ctx, s.db, id, false)
}

func (s *PostgresStore) UpdateFence(ctx context.Context, f *model.Fence) error {
	return queryUpdateFence(ctx, s.db, f)
}

func (s *PostgresStore) DeleteFence(ctx context.Context, id string) error {
	return queryDeleteFence(ctx, s.db, id)
}

func (s *PostgresStore) ListActiveFences(ctx context.Context) ([]*model.Fence, error) {
	return queryListActiveFences(ctx, s.db)
}

func (s *PostgresStore) ListFencesBySession(ctx context.Context, sessionID string) ([]*model.Fence, error) {
	return queryListFencesBySession(ctx, s.db, sessionID)
}

func (s *PostgresStore) RecordLocation(ctx context.Context, sample *model.LocationSample) error {
	return queryRecordLocation(ctx, s.db, sample)
}

func (s *PostgresStore) ListLocations(ctx context.Context, sessionID, actorID string, limit int) ([]*model.LocationSample, error) {
	return queryListLocations(ctx, s.db, sessionID, actorID, limit)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateFence(ctx context.Context, f *model.Fence) error {
	return queryCreateFence(ctx, s.tx, f)
}

// GetFence inside a transaction locks the row until commit so a concurrent
// update cannot interleave between read and write.
func (s *txStore) GetFence(ctx context.Context, id string) (*model.Fence, error) {
	return queryGetFence(ctx, s.tx, id, true)
}

func (s *txStore) UpdateFence(ctx context.Context, f *model.Fence) error {
	return queryUpdateFence(ctx, s.tx, f)
}

func (s *txStore) DeleteFence(ctx context.Context, id string) error {
	return queryDeleteFence(ctx, s.tx, id)
}

func (s *txStore) ListActiveFences(ctx context.Context) ([]*model.Fence, error) {
	return queryListActiveFences(ctx, s.tx)
}

func (s *txStore) ListFencesBySession(ctx context.Context, sessionID string) ([]*model.Fence, error) {
	return queryListFencesBySession(ctx, s.tx, sessionID)
}

func (s *txStore) RecordLocation(ctx context.Context, sample *model.LocationSample) error {
	return queryRecordLocation(ctx, s.tx, sample)
}

func (s *txStore) ListLocations(ctx context.Context, sessionID, actorID string, limit int) ([]*model.LocationSample, error) {
	return queryListLocations(ctx, s.tx, sessionID, actorID, limit)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
