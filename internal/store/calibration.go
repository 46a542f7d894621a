package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CalibrationAudit records the diagnostics of one calibration fit. The
// matrix is not stored; it lives only as long as its session.
type CalibrationAudit struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Samples     int       `json:"samples"`
	Determinant float64   `json:"determinant"`
	Condition   float64   `json:"condition"`
	RMSResidual float64   `json:"rms_residual"`
	MaxResidual float64   `json:"max_residual"`
	Degenerate  bool      `json:"degenerate"`
	CreatedAt   time.Time `json:"created_at"`
}

// CalibrationRepository provides access to calibration audits.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration audit repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// Create records an audit. An empty ID is generated.
func (r *CalibrationRepository) Create(a *CalibrationAudit) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO calibrations
		 (id, session_id, samples, determinant, condition_number, rms_px, max_px, degenerate, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.Samples, a.Determinant, a.Condition,
		a.RMSResidual, a.MaxResidual, a.Degenerate, a.CreatedAt,
	)
	return err
}

// ListBySession returns a session's audits, oldest first.
func (r *CalibrationRepository) ListBySession(sessionID string) ([]CalibrationAudit, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, samples, determinant, condition_number, rms_px, max_px, degenerate, created_at
		 FROM calibrations
		 WHERE session_id = ?
		 ORDER BY created_at, rowid`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []CalibrationAudit
	for rows.Next() {
		var a CalibrationAudit
		var degenerate int
		err := rows.Scan(&a.ID, &a.SessionID, &a.Samples, &a.Determinant, &a.Condition,
			&a.RMSResidual, &a.MaxResidual, &degenerate, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		a.Degenerate = degenerate != 0
		audits = append(audits, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return audits, nil
}
