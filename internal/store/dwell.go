package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DwellEvent is one recorded dwell trigger.
type DwellEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	T         int64     `json:"t"`
	CreatedAt time.Time `json:"created_at"`
}

// DwellRepository provides access to dwell history.
type DwellRepository struct {
	db *sql.DB
}

// DwellEvents returns the dwell event repository for this store.
func (s *Store) DwellEvents() *DwellRepository {
	return &DwellRepository{db: s.db}
}

// Create records a dwell event. An empty ID is generated.
func (r *DwellRepository) Create(e *DwellEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO dwell_events (id, session_id, x, y, t_ms, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.X, e.Y, e.T, e.CreatedAt,
	)
	return err
}

// ListBySession returns a session's events in firing order.
func (r *DwellRepository) ListBySession(sessionID string) ([]DwellEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, x, y, t_ms, created_at
		 FROM dwell_events
		 WHERE session_id = ?
		 ORDER BY t_ms, rowid`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []DwellEvent
	for rows.Next() {
		var e DwellEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.X, &e.Y, &e.T, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// CountBySession returns how many dwell events a session recorded.
func (r *DwellRepository) CountBySession(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM dwell_events WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
