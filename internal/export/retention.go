package export

import (
	"os"
	"path/filepath"
	"time"

	"carebot/internal/providers"
)

// Retention removes per-user export files once they outlive the configured
// TTL. The statistics snapshot is always kept.
type Retention struct {
	dir    string
	ttl    time.Duration
	logger providers.Logger
}

func NewRetention(dir string, ttl time.Duration, logger providers.Logger) *Retention {
	return &Retention{dir: dir, ttl: ttl, logger: logger}
}

func (r *Retention) Prune() error {
	if r.ttl <= 0 {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(r.dir, "user_*.json.zst"))
	if err != nil {
		return err
	}

	now := time.Now()
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= r.ttl {
			continue
		}
		if err := os.Remove(file); err != nil {
			r.logger.Errorf(providers.TypeApp, "Failed to prune export %s: %s", file, err)
			continue
		}
		r.logger.Infof(providers.TypeApp, "Pruned expired export %s", file)
	}
	return nil
}
