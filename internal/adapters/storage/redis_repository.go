package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mikey/email-intel/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisKey is the key holding the sender mapping when none is configured
const DefaultRedisKey = "email-agent:sender-memory"

// RedisRepository stores the whole mapping as a single JSON value
type RedisRepository struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisRepository connects to Redis and checks the connection
func NewRedisRepository(ctx context.Context, addr, password string, db int, key string, logger *zap.Logger) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return newRedisRepository(client, key, logger), nil
}

func newRedisRepository(client *redis.Client, key string, logger *zap.Logger) *RedisRepository {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRepository{
		client: client,
		key:    key,
		logger: logger,
	}
}

// Load reads and decodes the stored mapping
func (r *RedisRepository) Load(ctx context.Context) (map[string]core.SenderRecord, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNoSenderData
		}
		return nil, fmt.Errorf("failed to read sender memory from redis: %w", err)
	}

	records := make(map[string]core.SenderRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode sender memory from redis: %w", err)
	}
	return records, nil
}

// Save overwrites the stored mapping
func (r *RedisRepository) Save(ctx context.Context, records map[string]core.SenderRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode sender memory: %w", err)
	}

	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write sender memory to redis: %w", err)
	}

	r.logger.Debug("Sender memory saved", zap.String("backend", "redis"), zap.String("key", r.key))
	return nil
}

// Close closes the client
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
