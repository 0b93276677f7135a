// Package export produces compressed data dumps: periodic statistics
// snapshots for operators and per-user questionnaire exports for the
// consultation team.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"carebot/internal/export/interfaces"
	"carebot/internal/providers"
	"carebot/internal/store"
)

const snapshotFileName = "statistics.json.zst"

// Snapshot is the on-disk statistics dump format.
type Snapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Statistics  store.Statistics `json:"statistics"`
}

type ExporterInterface interface {
	SaveSnapshot(ctx context.Context) error
	// UserExport returns the compressed export document and also persists
	// it under the export directory.
	UserExport(ctx context.Context, userID int64) ([]byte, error)
	Close()
}

type Exporter struct {
	dir        string
	store      store.ProgressStore
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewExporter(dir string, progressStore store.ProgressStore, compressor interfaces.CompressorInterface, logger providers.Logger) (ExporterInterface, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", dir, err)
	}
	return &Exporter{
		dir:        dir,
		store:      progressStore,
		compressor: compressor,
		logger:     logger,
	}, nil
}

func (e *Exporter) SaveSnapshot(ctx context.Context) error {
	stats, err := e.store.Statistics(ctx)
	if err != nil {
		return err
	}

	jsonData, err := json.Marshal(Snapshot{GeneratedAt: time.Now().UTC(), Statistics: stats})
	if err != nil {
		return err
	}
	data, err := e.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	return e.writeAtomic(filepath.Join(e.dir, snapshotFileName), data)
}

func (e *Exporter) UserExport(ctx context.Context, userID int64) ([]byte, error) {
	document, err := e.store.ExportUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(document)
	if err != nil {
		return nil, err
	}
	data, err := e.compressor.Compress(jsonData)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(e.dir, fmt.Sprintf("user_%d.json.zst", userID))
	if err := e.writeAtomic(path, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (e *Exporter) Close() {
	e.compressor.Close()
}

// writeAtomic writes through a tmp file and renames, so a crash mid-write
// never leaves a truncated export behind.
func (e *Exporter) writeAtomic(fileName string, data []byte) error {
	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}
	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}
