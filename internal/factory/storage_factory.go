package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/email-intel/internal/adapters/storage"
	"github.com/mikey/email-intel/internal/config"
	"github.com/mikey/email-intel/internal/core"
	"go.uber.org/zap"
)

// StorageFactory creates sender memory repositories based on configuration
type StorageFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config, logger *zap.Logger) *StorageFactory {
	return &StorageFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSenderRepository creates the repository selected by memory.type
func (f *StorageFactory) CreateSenderRepository() (core.SenderRepository, error) {
	memCfg := f.cfg.GetMemory()

	f.logger.Debug("Creating sender memory backend", zap.String("type", memCfg.Type))

	var (
		repo core.SenderRepository
		err  error
	)
	switch memCfg.Type {
	case "file", "":
		return storage.NewFileRepository(memCfg.FilePath, f.logger), nil
	case "memory":
		return storage.NewMemoryRepository(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(memCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		repo, err = storage.NewSQLiteRepository(memCfg.SQLitePath, f.logger)
	case "mysql":
		repo, err = storage.NewMySQLRepository(memCfg.MySQLDSN, f.logger)
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), memCfg.Timeout)
		defer cancel()
		repo, err = storage.NewPostgresRepository(ctx, memCfg.PostgresDSN, f.logger)
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), memCfg.Timeout)
		defer cancel()
		repo, err = storage.NewRedisRepository(ctx, memCfg.RedisAddr, memCfg.RedisPassword, memCfg.RedisDB, memCfg.RedisKey, f.logger)
	default:
		return nil, fmt.Errorf("unsupported memory type: %s", memCfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return repo, nil
}
