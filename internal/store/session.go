package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session is one run of the scribe pipeline.
type Session struct {
	ID        string
	StartedAt time.Time
}

// SessionRepository creates and looks up sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start records a new session with a fresh ID.
func (r *SessionRepository) Start() (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, started_at_ms) VALUES (?, ?)`,
		sess.ID, sess.StartedAt.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}

	return sess, nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(id string) (*Session, error) {
	var startedMs int64
	err := r.db.QueryRow(
		`SELECT started_at_ms FROM sessions WHERE id = ?`, id,
	).Scan(&startedMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &Session{ID: id, StartedAt: time.UnixMilli(startedMs)}, nil
}
