package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikey/email-intel/internal/core"
	"go.uber.org/zap"
)

// PostgresRepository stores the sender memory in PostgreSQL through a pgx pool
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository connects to PostgreSQL and ensures the table exists
func NewPostgresRepository(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sender_memory (
			sender TEXT PRIMARY KEY,
			count INTEGER NOT NULL,
			total_urgency DOUBLE PRECISION NOT NULL,
			avg_urgency DOUBLE PRECISION NOT NULL,
			total_risk DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_risk DOUBLE PRECISION NOT NULL DEFAULT 0,
			high_risk_count INTEGER NOT NULL,
			patterns TEXT,
			first_seen TIMESTAMPTZ,
			last_seen TIMESTAMPTZ
		)
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create sender_memory table: %w", err)
	}

	logger.Info("PostgreSQL sender memory ready")
	return &PostgresRepository{pool: pool, logger: logger}, nil
}

// Load reads every sender row
func (r *PostgresRepository) Load(ctx context.Context) (map[string]core.SenderRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sender, count, total_urgency, avg_urgency, total_risk, avg_risk,
			high_risk_count, COALESCE(patterns, ''), first_seen, last_seen
		FROM sender_memory
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query postgres sender memory: %w", err)
	}
	defer rows.Close()

	records := make(map[string]core.SenderRecord)
	for rows.Next() {
		var (
			sender   string
			patterns string
			rec      core.SenderRecord
		)
		if err := rows.Scan(&sender, &rec.Count, &rec.TotalUrgency, &rec.AvgUrgency,
			&rec.TotalRisk, &rec.AvgRisk, &rec.HighRiskCount, &patterns,
			&rec.FirstSeen, &rec.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan sender row: %w", err)
		}
		if rec.Patterns, err = parsePatterns(patterns); err != nil {
			return nil, fmt.Errorf("invalid patterns for %s: %w", sender, err)
		}
		records[sender] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read postgres sender memory: %w", err)
	}

	if len(records) == 0 {
		return nil, core.ErrNoSenderData
	}
	return records, nil
}

// Save replaces all rows in one transaction, sending the inserts as a batch
func (r *PostgresRepository) Save(ctx context.Context, records map[string]core.SenderRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM sender_memory`); err != nil {
		return fmt.Errorf("failed to clear sender memory: %w", err)
	}

	batch := &pgx.Batch{}
	for sender, rec := range records {
		patterns, err := formatPatterns(rec.Patterns)
		if err != nil {
			return fmt.Errorf("failed to encode patterns for %s: %w", sender, err)
		}
		batch.Queue(`
			INSERT INTO sender_memory (sender, count, total_urgency, avg_urgency, total_risk, avg_risk,
				high_risk_count, patterns, first_seen, last_seen)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, sender, rec.Count, rec.TotalUrgency, rec.AvgUrgency, rec.TotalRisk, rec.AvgRisk,
			rec.HighRiskCount, patterns, rec.FirstSeen, rec.LastSeen)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert sender memory: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sender memory: %w", err)
	}

	r.logger.Debug("Sender memory saved", zap.String("backend", "postgres"), zap.Int("senders", len(records)))
	return nil
}

// Close closes the connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
