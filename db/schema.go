// ABOUTME: Database schema definitions and migrations
// ABOUTME: Handles SQLite table creation for users, assignments, subtasks, and sync state
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT,
	access_token TEXT,
	refresh_token TEXT,
	token_expiry DATETIME,
	preferences TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_states (
	state TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_oauth_states_user ON oauth_states(user_id);

CREATE TABLE IF NOT EXISTS assignments (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	subject TEXT,
	description TEXT,
	due_date DATETIME NOT NULL,
	difficulty TEXT NOT NULL DEFAULT 'medium' CHECK(difficulty IN ('easy', 'medium', 'hard')),
	status TEXT NOT NULL DEFAULT 'not_started' CHECK(status IN ('not_started', 'in_progress', 'completed')),
	total_estimated_hours REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assignments_user ON assignments(user_id);

CREATE TABLE IF NOT EXISTS subtasks (
	id TEXT PRIMARY KEY,
	assignment_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	phase TEXT,
	order_index INTEGER NOT NULL DEFAULT 0,
	estimated_minutes INTEGER NOT NULL DEFAULT 0,
	actual_minutes INTEGER,
	status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'in_progress', 'completed', 'skipped')),
	scheduled_start DATETIME,
	scheduled_end DATETIME,
	calendar_event_id TEXT,
	completed_at DATETIME,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (assignment_id) REFERENCES assignments(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_subtasks_assignment ON subtasks(assignment_id);
CREATE INDEX IF NOT EXISTS idx_subtasks_event ON subtasks(calendar_event_id);

CREATE TABLE IF NOT EXISTS sync_state (
	user_id TEXT NOT NULL,
	service TEXT NOT NULL,
	last_sync_time DATETIME,
	last_run_id TEXT,
	status TEXT CHECK(status IN ('idle', 'syncing', 'error')),
	error_message TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, service)
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Tables lists every table InitSchema creates.
var Tables = []string{"users", "oauth_states", "assignments", "subtasks", "sync_state"}

// MissingTables reports which of Tables do not exist yet.
func MissingTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, table := range Tables {
		if !existing[table] {
			missing = append(missing, table)
		}
	}
	return missing, nil
}
