package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS sender_memory (
		sender TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		total_urgency REAL NOT NULL,
		avg_urgency REAL NOT NULL,
		total_risk REAL NOT NULL DEFAULT 0,
		avg_risk REAL NOT NULL DEFAULT 0,
		high_risk_count INTEGER NOT NULL,
		patterns TEXT,
		first_seen TEXT,
		last_seen TEXT
	)
`

// NewSQLiteRepository opens (and if needed creates) a SQLite sender memory
func NewSQLiteRepository(dbPath string, logger *zap.Logger) (*SQLRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single connection keeps writers from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)

	return newSQLRepository(db, "sqlite", sqliteSchema, logger)
}
