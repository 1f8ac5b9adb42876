package store

import (
	"database/sql"
	"errors"
	"time"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// Outcome is one journal entry. Kind is the pipeline event name
// ("symbol", "separator", "failed", ...).
type Outcome struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Kind      string    `json:"kind"`
	Symbol    string    `json:"symbol,omitempty"`
	TextAfter string    `json:"textAfter"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// OutcomeRepository records and lists journal entries.
type OutcomeRepository struct {
	db *sql.DB
}

// Outcomes returns the outcome repository for this store.
func (s *Store) Outcomes() *OutcomeRepository {
	return &OutcomeRepository{db: s.db}
}

// Record appends o to the journal and sets its ID.
func (r *OutcomeRepository) Record(o *Outcome) error {
	if o.SessionID == "" {
		return errors.New("outcome has no session")
	}
	if o.At.IsZero() {
		o.At = time.Now()
	}

	res, err := r.db.Exec(
		`INSERT INTO outcomes (session_id, kind, symbol, text_after, error, at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.SessionID, o.Kind, o.Symbol, o.TextAfter, o.Error, o.At.UnixMilli(),
	)
	if err != nil {
		return err
	}

	o.ID, err = res.LastInsertId()
	return err
}

// List returns up to limit entries for a session, newest first.
// A non-positive limit uses DefaultListLimit.
func (r *OutcomeRepository) List(sessionID string, limit int) ([]*Outcome, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT id, session_id, kind, symbol, text_after, error, at_ms
		 FROM outcomes WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*Outcome
	for rows.Next() {
		o := &Outcome{}
		var atMs int64
		if err := rows.Scan(&o.ID, &o.SessionID, &o.Kind, &o.Symbol, &o.TextAfter, &o.Error, &atMs); err != nil {
			return nil, err
		}
		o.At = time.UnixMilli(atMs)
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}

// Counts returns the number of entries per kind for a session.
func (r *OutcomeRepository) Counts(sessionID string) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT kind, COUNT(*) FROM outcomes WHERE session_id = ? GROUP BY kind`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}

	return counts, rows.Err()
}
