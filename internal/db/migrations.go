package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: Seed the label sequence counter from the highest
	// sequence number already assigned, for databases that predate the
	// counters table. Does nothing once the counter exists.
	`INSERT OR IGNORE INTO counters (name, value)
	     SELECT 'label_sequence', COALESCE(MAX(sequence_number), 0) FROM labels`,
}

// Migrate runs the database schema migrations.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
