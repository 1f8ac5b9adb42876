// Package store keeps the per-session journal of scribe outcomes in an
// in-memory SQLite database. Nothing is written to disk; the journal ends
// with the process.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// memoryDSN opens a private in-memory database. It only lives as long as
// its connection, so the pool is pinned to one connection.
const memoryDSN = ":memory:"

// Store represents the in-memory journal database.
type Store struct {
	db *sql.DB
}

// New opens the journal database, enables foreign keys, and runs migrations.
func New() (*Store, error) {
	db, err := sql.Open("sqlite", memoryDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection, discarding the journal.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}
