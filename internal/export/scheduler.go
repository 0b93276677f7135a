package export

import (
	"context"
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"carebot/internal/export/interfaces"
	"carebot/internal/providers"
	"carebot/internal/structures"
)

const pruneInterval = time.Hour

type Scheduler struct {
	config    *structures.Config
	logger    providers.Logger
	exporter  ExporterInterface
	retention *Retention
	cron      *gron.Cron
	opsMu     sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()
	interval := s.config.Export.SnapshotInterval

	s.cron.AddFunc(gron.Every(interval*time.Second), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		if err := s.exporter.SaveSnapshot(context.Background()); err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while saving statistics snapshot: %s", err)
			return
		}
		s.logger.Infof(providers.TypeApp, "Statistics snapshot saved")
	})

	if s.config.Export.TTL > 0 {
		s.cron.AddFunc(gron.Every(pruneInterval), func() {
			s.opsMu.Lock()
			defer s.opsMu.Unlock()

			if err := s.retention.Prune(); err != nil {
				s.logger.Errorf(providers.TypeApp, "Error while pruning exports: %s", err)
			}
		})
	}

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Persist writes a final snapshot, used on graceful shutdown.
func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Persisting statistics snapshot...")
	if err := s.exporter.SaveSnapshot(context.Background()); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while saving statistics snapshot: %s", err)
		return err
	}
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, exporter ExporterInterface, retention *Retention) interfaces.SchedulerInterface {
	return &Scheduler{
		config:    config,
		logger:    logger,
		exporter:  exporter,
		retention: retention,
	}
}
