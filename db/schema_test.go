// ABOUTME: Tests for database schema creation
// ABOUTME: Uses in-memory SQLite for fast isolated tests
package db

import (
	"testing"
)

func TestInitSchema(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()

	tables := []string{"users", "oauth_states", "assignments", "subtasks", "sync_state"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	indexes := []string{
		"idx_oauth_states_user",
		"idx_assignments_user",
		"idx_subtasks_assignment",
		"idx_subtasks_event",
	}
	for _, idx := range indexes {
		var indexName string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&indexName)
		if err != nil {
			t.Errorf("Index %s not found: %v", idx, err)
		}
	}

	// Idempotent
	if err := InitSchema(db); err != nil {
		t.Errorf("second InitSchema failed: %v", err)
	}
}

func TestSchemaRejectsUnknownStatus(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()

	_, err = db.Exec(`INSERT INTO assignments (id, user_id, title, due_date, status, created_at, updated_at)
		VALUES ('a', 'u', 't', '2026-03-01', 'bogus', '2026-01-01', '2026-01-01')`)
	if err == nil {
		t.Error("expected CHECK constraint failure for unknown status")
	}
}

func TestMissingTables(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()

	missing, err := MissingTables(db)
	if err != nil {
		t.Fatalf("MissingTables failed: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("expected no missing tables, got %v", missing)
	}

	if _, err := db.Exec("DROP TABLE sync_state"); err != nil {
		t.Fatalf("drop failed: %v", err)
	}

	missing, err = MissingTables(db)
	if err != nil {
		t.Fatalf("MissingTables failed: %v", err)
	}
	if len(missing) != 1 || missing[0] != "sync_state" {
		t.Errorf("expected [sync_state], got %v", missing)
	}
}
