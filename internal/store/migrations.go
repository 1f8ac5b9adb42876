package store

// runMigrations creates the journal schema.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per pipeline instance
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at_ms INTEGER NOT NULL
		)`,

		// Outcomes table - every symbol, separator, reset and failure in order
		`CREATE TABLE IF NOT EXISTS outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			symbol TEXT NOT NULL DEFAULT '',
			text_after TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			at_ms INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_outcomes_session_id ON outcomes(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
