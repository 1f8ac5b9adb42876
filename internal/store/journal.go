package store

import "time"

// Journal records outcomes for a single session.
type Journal struct {
	store   *Store
	session *Session
}

// OpenJournal starts a session and returns a journal bound to it.
func (s *Store) OpenJournal() (*Journal, error) {
	sess, err := s.Sessions().Start()
	if err != nil {
		return nil, err
	}
	return &Journal{store: s, session: sess}, nil
}

// Session returns the journal's session.
func (j *Journal) Session() *Session {
	return j.session
}

// Record appends an entry for this session.
func (j *Journal) Record(kind, symbol, textAfter, errMsg string, at time.Time) error {
	return j.store.Outcomes().Record(&Outcome{
		SessionID: j.session.ID,
		Kind:      kind,
		Symbol:    symbol,
		TextAfter: textAfter,
		Error:     errMsg,
		At:        at,
	})
}

// List returns this session's entries, newest first.
func (j *Journal) List(limit int) ([]*Outcome, error) {
	return j.store.Outcomes().List(j.session.ID, limit)
}

// Counts returns this session's entry counts per kind.
func (j *Journal) Counts() (map[string]int, error) {
	return j.store.Outcomes().Counts(j.session.ID)
}
