package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per tracking session
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			viewport_width REAL NOT NULL,
			viewport_height REAL NOT NULL,
			calibrated INTEGER NOT NULL DEFAULT 0,
			frames INTEGER NOT NULL DEFAULT 0,
			rejected INTEGER NOT NULL DEFAULT 0
		)`,

		// Dwell events table - every dwell trigger fired during a session
		`CREATE TABLE IF NOT EXISTS dwell_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			x REAL NOT NULL,
			y REAL NOT NULL,
			t_ms INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Calibrations table - fit diagnostics only, never the matrix
		`CREATE TABLE IF NOT EXISTS calibrations (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			samples INTEGER NOT NULL,
			determinant REAL NOT NULL,
			condition_number REAL NOT NULL,
			rms_px REAL NOT NULL,
			max_px REAL NOT NULL,
			degenerate INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Actions table - plugin actions run when a trigger fires
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			trigger_type TEXT NOT NULL CHECK(trigger_type IN ('dwell')),
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_dwell_events_session_id ON dwell_events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_calibrations_session_id ON calibrations(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_trigger ON actions(trigger_type)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
