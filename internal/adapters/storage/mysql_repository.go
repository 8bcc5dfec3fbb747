package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

const mysqlSchema = `
	CREATE TABLE IF NOT EXISTS sender_memory (
		sender VARCHAR(320) PRIMARY KEY,
		count INT NOT NULL,
		total_urgency DOUBLE NOT NULL,
		avg_urgency DOUBLE NOT NULL,
		total_risk DOUBLE NOT NULL DEFAULT 0,
		avg_risk DOUBLE NOT NULL DEFAULT 0,
		high_risk_count INT NOT NULL,
		patterns TEXT,
		first_seen VARCHAR(64) NULL,
		last_seen VARCHAR(64) NULL
	)
`

// NewMySQLRepository connects to MySQL and ensures the sender_memory table exists
func NewMySQLRepository(dsn string, logger *zap.Logger) (*SQLRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return newSQLRepository(db, "mysql", mysqlSchema, logger)
}
