package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/email-intel/internal/core"
	"go.uber.org/zap"
)

// SQLRepository stores one row per sender in a database/sql database.
// The sqlite and mysql backends share it; only the schema differs.
type SQLRepository struct {
	db     *sql.DB
	name   string
	logger *zap.Logger
}

func newSQLRepository(db *sql.DB, name, schema string, logger *zap.Logger) (*SQLRepository, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sender_memory table: %w", err)
	}

	return &SQLRepository{
		db:     db,
		name:   name,
		logger: logger,
	}, nil
}

// Load reads every sender row
func (r *SQLRepository) Load(ctx context.Context) (map[string]core.SenderRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender, count, total_urgency, avg_urgency, total_risk, avg_risk,
			high_risk_count, patterns, first_seen, last_seen
		FROM sender_memory
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s sender memory: %w", r.name, err)
	}
	defer rows.Close()

	records := make(map[string]core.SenderRecord)
	for rows.Next() {
		var (
			sender              string
			rec                 core.SenderRecord
			patterns            sql.NullString
			firstSeen, lastSeen sql.NullString
		)
		if err := rows.Scan(&sender, &rec.Count, &rec.TotalUrgency, &rec.AvgUrgency,
			&rec.TotalRisk, &rec.AvgRisk, &rec.HighRiskCount, &patterns,
			&firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan sender row: %w", err)
		}

		if rec.Patterns, err = parsePatterns(patterns.String); err != nil {
			return nil, fmt.Errorf("invalid patterns for %s: %w", sender, err)
		}

		if rec.FirstSeen, err = parseTimestamp(firstSeen); err != nil {
			return nil, fmt.Errorf("invalid first_seen for %s: %w", sender, err)
		}
		if rec.LastSeen, err = parseTimestamp(lastSeen); err != nil {
			return nil, fmt.Errorf("invalid last_seen for %s: %w", sender, err)
		}
		records[sender] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s sender memory: %w", r.name, err)
	}

	if len(records) == 0 {
		return nil, core.ErrNoSenderData
	}
	return records, nil
}

// Save replaces all rows inside one transaction
func (r *SQLRepository) Save(ctx context.Context, records map[string]core.SenderRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sender_memory`); err != nil {
		return fmt.Errorf("failed to clear sender memory: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sender_memory (sender, count, total_urgency, avg_urgency, total_risk, avg_risk,
			high_risk_count, patterns, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for sender, rec := range records {
		patterns, err := formatPatterns(rec.Patterns)
		if err != nil {
			return fmt.Errorf("failed to encode patterns for %s: %w", sender, err)
		}
		if _, err := stmt.ExecContext(ctx, sender, rec.Count, rec.TotalUrgency, rec.AvgUrgency,
			rec.TotalRisk, rec.AvgRisk, rec.HighRiskCount, patterns,
			formatTimestamp(rec.FirstSeen), formatTimestamp(rec.LastSeen)); err != nil {
			return fmt.Errorf("failed to insert sender %s: %w", sender, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sender memory: %w", err)
	}

	r.logger.Debug("Sender memory saved", zap.String("backend", r.name), zap.Int("senders", len(records)))
	return nil
}

// Close closes the database connection
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func formatTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// patterns are stored as a JSON array in a text column
func formatPatterns(patterns []core.SenderPattern) (string, error) {
	if len(patterns) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(patterns)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parsePatterns(s string) ([]core.SenderPattern, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var patterns []core.SenderPattern
	if err := json.Unmarshal([]byte(s), &patterns); err != nil {
		return nil, err
	}
	return patterns, nil
}
