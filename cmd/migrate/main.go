// ABOUTME: Schema upgrade utility for existing studypilot databases.
// ABOUTME: Backs up the database file, then creates any tables and indexes it is missing.

package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/harperreed/studypilot/db"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbPath := flag.String("db", "", "Path to database file (required)")
	dryRun := flag.Bool("dry-run", false, "Show what would happen without making changes")
	backup := flag.Bool("backup", true, "Create backup before migration")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("Error: -db flag is required")
	}

	if _, err := migrate(*dbPath, *dryRun, *backup); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully")
}

// migrate returns the tables that were (or, on a dry run, would be) created.
func migrate(dbPath string, dryRun, createBackup bool) ([]string, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file does not exist: %s", dbPath)
	}

	if createBackup && !dryRun {
		backupPath := fmt.Sprintf("%s.backup.%s", dbPath, time.Now().Format("20060102-150405"))
		log.Printf("Creating backup: %s", backupPath)

		input, err := os.ReadFile(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read database: %w", err)
		}

		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return nil, fmt.Errorf("failed to create backup: %w", err)
		}
		log.Printf("Backup created successfully")
	}

	database, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()

	missing, err := db.MissingTables(database)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect schema: %w", err)
	}

	if len(missing) == 0 {
		log.Printf("Schema is current, nothing to do")
		return nil, nil
	}

	if dryRun {
		log.Printf("[DRY RUN] Would create tables: %v", missing)
		return missing, nil
	}

	log.Printf("Creating tables: %v", missing)
	if err := db.InitSchema(database); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return missing, nil
}
