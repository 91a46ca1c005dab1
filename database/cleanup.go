package database

import (
	"fmt"
	"log"
	"time"
)

// PruneRuns deletes ledger entries that started before now minus keepDays.
// A non-positive keepDays keeps everything.
func (idb *IndexDB) PruneRuns(keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -keepDays).Unix()

	stmt, err := idb.db.Prepare("DELETE FROM runs WHERE started_at < ?")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare run cleanup: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	log.Printf("Pruned %d runs older than %d days", rowsAffected, keepDays)
	return rowsAffected, nil
}
