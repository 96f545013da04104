// Package postgres is the source-of-truth store (§5): projects, blobs,
// profile slots, events, buffer entries and user status records, all
// behind jackc/pgx/v5.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool is the subset of *pgxpool.Pool the store needs, seamed out for
// pgxmock in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store owns the connection pool. Each domain store interface
// (blob.Store, profile.Store, event.Store, buffer.Store,
// userstatus.Store) is implemented by its own small wrapper type rather
// than all on Store directly: profile.Store and event.Store both declare
// a method named List with different signatures, and profile.Store,
// event.Store, buffer.Store and userstatus.Store all declare DeleteUser —
// names a single Go receiver type cannot overload.
type Store struct {
	pool DBPool
}

// BlobStore implements blob.Store.
type BlobStore struct{ pool DBPool }

// ProfileStore implements profile.Store.
type ProfileStore struct{ pool DBPool }

// EventStore implements event.Store.
type EventStore struct{ pool DBPool }

// BufferStore implements buffer.Store.
type BufferStore struct{ pool DBPool }

// UserStatusStore implements userstatus.Store.
type UserStatusStore struct{ pool DBPool }

// Blobs returns the blob.Store view over this pool.
func (s *Store) Blobs() *BlobStore { return &BlobStore{pool: s.pool} }

// Profiles returns the profile.Store view over this pool.
func (s *Store) Profiles() *ProfileStore { return &ProfileStore{pool: s.pool} }

// Events returns the event.Store view over this pool.
func (s *Store) Events() *EventStore { return &EventStore{pool: s.pool} }

// Buffers returns the buffer.Store view over this pool.
func (s *Store) Buffers() *BufferStore { return &BufferStore{pool: s.pool} }

// UserStatuses returns the userstatus.Store view over this pool.
func (s *Store) UserStatuses() *UserStatusStore { return &UserStatusStore{pool: s.pool} }

// Options configures a new Store.
type Options struct {
	ConnString string
}

// New opens a connection pool against a live database.
func New(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool (or a pgxmock pool in tests).
func NewWithPool(pool DBPool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// InitSchema creates every table the store needs if it doesn't already
// exist. Safe to call on every process start.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			config BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blobs (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blobs_user ON blobs (project_id, user_id)`,
		`CREATE TABLE IF NOT EXISTS profile_slots (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			topic TEXT NOT NULL,
			sub_topic TEXT NOT NULL,
			content TEXT NOT NULL,
			update_hits INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profile_slots_user ON profile_slots (project_id, user_id)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			event_tip TEXT NOT NULL DEFAULT '',
			event_tags JSONB,
			profile_delta JSONB,
			embedding JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user ON events (project_id, user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS buffer_entries (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			blob_id TEXT NOT NULL,
			token_size INTEGER NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_buffer_entries_user ON buffer_entries (project_id, user_id, type, status)`,
		`CREATE TABLE IF NOT EXISTS user_status (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			attrs JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_status_user ON user_status (project_id, user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
