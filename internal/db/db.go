// Package db persists aiming sessions to SQLite: resolved detections,
// dropped-detection accounting and decimated telemetry traces, for
// post-match review and the plotting tools.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// applies connection pragmas. Schema management is the migrations' job;
// see MigrateUp.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// WAL keeps the telemetry writer from blocking status-page reads.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &DB{sqlDB}, nil
}
