package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fraudguard-ai/fraudguard/internal/model"
	"github.com/fraudguard-ai/fraudguard/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS fraud_history (
	identity TEXT PRIMARY KEY,
	fraud_count INTEGER NOT NULL DEFAULT 0,
	last_seen TIMESTAMP NOT NULL
);`

// SQLiteStore implements the history store on SQLite. Durability comes from
// the database itself: the increment commits before RecordVerdict returns.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

var _ service.HistoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-backed history store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes all mutations; SQLite doesn't benefit
	// from more.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Get returns the current fraud count for an identity, 0 if unknown.
func (s *SQLiteStore) Get(ctx context.Context, identity string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateIdentity(identity); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT fraud_count FROM fraud_history WHERE identity = ?", identity).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query fraud count: %w", err)
	}

	return count, nil
}

// RecordVerdict applies one verdict. The fraud-path upsert and read-back
// run in one transaction on the store's single connection, so concurrent
// verdicts for the same identity can never lose an update.
func (s *SQLiteStore) RecordVerdict(ctx context.Context, identity string, isFraud bool) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateIdentity(identity); err != nil {
		return 0, err
	}

	if !isFraud {
		return s.Get(ctx, identity)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %v", ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fraud_history (identity, fraud_count, last_seen)
		VALUES (?, 1, ?)
		ON CONFLICT(identity) DO UPDATE SET
			fraud_count = fraud_count + 1,
			last_seen = excluded.last_seen`,
		identity, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to increment fraud count: %v", ErrPersistence, err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT fraud_count FROM fraud_history WHERE identity = ?", identity).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to read back fraud count: %v", ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit: %v", ErrPersistence, err)
	}

	return count, nil
}

// Entries returns all known identities, sorted by identity.
func (s *SQLiteStore) Entries(ctx context.Context) ([]model.HistoryEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT identity, fraud_count, last_seen FROM fraud_history ORDER BY identity")
	if err != nil {
		return nil, fmt.Errorf("failed to query history entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.Identity, &e.FraudCount, &e.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history entries: %w", err)
	}

	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
