package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is the stored history of one tracking session.
type Session struct {
	ID             string     `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	ViewportWidth  float64    `json:"viewport_width"`
	ViewportHeight float64    `json:"viewport_height"`
	Calibrated     bool       `json:"calibrated"`
	Frames         int64      `json:"frames"`
	Rejected       int64      `json:"rejected"`
}

// SessionRepository provides access to session history.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, started_at, ended_at, viewport_width, viewport_height, calibrated, frames, rejected`

func scanSession(row rowScanner) (*Session, error) {
	s := &Session{}
	var ended sql.NullTime
	var calibrated int

	err := row.Scan(&s.ID, &s.StartedAt, &ended, &s.ViewportWidth, &s.ViewportHeight,
		&calibrated, &s.Frames, &s.Rejected)
	if err != nil {
		return nil, err
	}

	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	s.Calibrated = calibrated != 0
	return s, nil
}

// Create inserts a new open session.
func (r *SessionRepository) Create(s *Session) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, started_at, viewport_width, viewport_height) VALUES (?, ?, ?, ?)`,
		s.ID, s.StartedAt, s.ViewportWidth, s.ViewportHeight,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns the most recent sessions first. limit <= 0 means no limit.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// MarkCalibrated records that the session has a calibration installed.
func (r *SessionRepository) MarkCalibrated(id string, calibrated bool) error {
	return expectOne(r.db.Exec(`UPDATE sessions SET calibrated = ? WHERE id = ?`, calibrated, id))
}

// End closes the session with its final counters.
func (r *SessionRepository) End(id string, endedAt time.Time, frames, rejected int64) error {
	return expectOne(r.db.Exec(
		`UPDATE sessions SET ended_at = ?, frames = ?, rejected = ? WHERE id = ?`,
		endedAt, frames, rejected, id,
	))
}

// Delete removes a session and, by cascade, its events and audits.
func (r *SessionRepository) Delete(id string) error {
	return expectOne(r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id))
}
