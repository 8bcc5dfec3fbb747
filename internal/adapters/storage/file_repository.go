// Package storage provides the durable backends for the sender memory.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mikey/email-intel/internal/core"
	"go.uber.org/zap"
)

// FileRepository keeps the whole sender mapping in one indented JSON file
type FileRepository struct {
	path   string
	logger *zap.Logger
}

// NewFileRepository creates a new file repository
func NewFileRepository(path string, logger *zap.Logger) *FileRepository {
	return &FileRepository{
		path:   path,
		logger: logger,
	}
}

// Path returns the backing file path
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the full mapping from disk
func (r *FileRepository) Load(ctx context.Context) (map[string]core.SenderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.ErrNoSenderData
		}
		return nil, fmt.Errorf("failed to read sender memory file: %w", err)
	}

	records := make(map[string]core.SenderRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode sender memory file %s: %w", r.path, err)
	}

	return records, nil
}

// Save overwrites the file with the given mapping. The data is written to a
// temporary file in the same directory and renamed over the target so
// readers never observe a partial file.
func (r *FileRepository) Save(ctx context.Context, records map[string]core.SenderRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sender memory: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create sender memory directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write sender memory: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync sender memory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace sender memory file: %w", err)
	}

	r.logger.Debug("Sender memory saved", zap.String("path", r.path), zap.Int("senders", len(records)))
	return nil
}
