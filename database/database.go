package database

import (
	"database/sql"
	"discord-indexer/models"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// IndexDB holds the indexer's relational bookkeeping: the exclusion list and
// the ledger of past runs. Archived content itself never goes here.
type IndexDB struct {
	db *sql.DB
}

// InitDB opens (creating if needed) the SQLite database at dbPath and makes
// sure its tables exist.
func InitDB(dbPath string) (*IndexDB, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open the SQLite database. It will be created if it doesn't exist.
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Ping the database to verify the connection.
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createExclusionsTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create exclusions table: %w", err)
	}
	if err := createRunsTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}

	log.Println("Successfully connected to the database at", dbPath)
	return &IndexDB{db: db}, nil
}

// Close closes the database connection.
func (idb *IndexDB) Close() error {
	if idb == nil || idb.db == nil {
		return nil
	}
	return idb.db.Close()
}

// createExclusionsTable creates the 'exclusions' table if it doesn't exist.
func createExclusionsTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS exclusions (
        conversation_id TEXT PRIMARY KEY,
        reason TEXT,
        timestamp INTEGER
    );`
	_, err := db.Exec(query)
	return err
}

// createRunsTable creates the 'runs' ledger if it doesn't exist.
func createRunsTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        started_at INTEGER NOT NULL,
        finished_at INTEGER NOT NULL,
        conversations INTEGER NOT NULL,
        updated INTEGER NOT NULL,
        messages INTEGER NOT NULL,
        failures INTEGER NOT NULL
    );`
	if _, err := db.Exec(query); err != nil {
		return err
	}
	_, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);")
	return err
}

// AddExclusion puts a conversation on the exclusion list, replacing any previous reason.
func (idb *IndexDB) AddExclusion(conversationID, reason string) error {
	query := `INSERT OR REPLACE INTO exclusions (conversation_id, reason, timestamp) VALUES (?, ?, ?)`
	stmt, err := idb.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare exclusion insert: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(conversationID, reason, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to exclude conversation %s: %w", conversationID, err)
	}
	return nil
}

// RemoveExclusion takes a conversation off the exclusion list.
func (idb *IndexDB) RemoveExclusion(conversationID string) error {
	if _, err := idb.db.Exec("DELETE FROM exclusions WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("failed to remove exclusion for %s: %w", conversationID, err)
	}
	return nil
}

// IsExcluded reports whether a conversation is on the exclusion list.
func (idb *IndexDB) IsExcluded(conversationID string) (bool, error) {
	var n int
	err := idb.db.QueryRow("SELECT COUNT(*) FROM exclusions WHERE conversation_id = ?", conversationID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query exclusion for %s: %w", conversationID, err)
	}
	return n > 0, nil
}

// GetExclusions returns the whole exclusion list keyed by conversation ID.
func (idb *IndexDB) GetExclusions() (map[string]models.Exclusion, error) {
	rows, err := idb.db.Query("SELECT conversation_id, reason, timestamp FROM exclusions")
	if err != nil {
		return nil, fmt.Errorf("failed to query exclusions: %w", err)
	}
	defer rows.Close()

	excluded := make(map[string]models.Exclusion)
	for rows.Next() {
		var e models.Exclusion
		if err := rows.Scan(&e.ConversationID, &e.Reason, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		excluded[e.ConversationID] = e
	}
	return excluded, rows.Err()
}

// RecordRun appends one traversal pass to the run ledger.
func (idb *IndexDB) RecordRun(summary models.RunSummary) error {
	query := `
    INSERT INTO runs (started_at, finished_at, conversations, updated, messages, failures)
    VALUES (?, ?, ?, ?, ?, ?);`

	stmt, err := idb.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for recording run: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		summary.StartedAt.Unix(),
		summary.FinishedAt.Unix(),
		summary.Conversations,
		summary.Updated,
		summary.Messages,
		summary.Failures,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// LastRuns returns up to limit runs, newest first.
func (idb *IndexDB) LastRuns(limit int) ([]models.RunSummary, error) {
	rows, err := idb.db.Query(`
    SELECT started_at, finished_at, conversations, updated, messages, failures
    FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var started, finished int64
		var run models.RunSummary
		if err := rows.Scan(&started, &finished, &run.Conversations, &run.Updated, &run.Messages, &run.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = time.Unix(started, 0)
		run.FinishedAt = time.Unix(finished, 0)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
