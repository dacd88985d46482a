package app

import (
	"context"

	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"

	"github.com/dokzlo13/rgbd/internal/config"
	"github.com/dokzlo13/rgbd/internal/db"
	"github.com/dokzlo13/rgbd/internal/ledger"
)

// LedgerService owns the SQLite database and the retention cleanup.
type LedgerService struct {
	cfg    *config.Config
	clock  clock.WithTicker
	DB     *db.DB
	Ledger *ledger.Ledger
	done   chan struct{}
}

// NewLedgerService opens the database at database.path.
func NewLedgerService(cfg *config.Config, clk clock.WithTicker) (*LedgerService, error) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	log.Info().Str("path", cfg.Database.Path).Msg("Ledger database opened")
	return &LedgerService{
		cfg:    cfg,
		clock:  clk,
		DB:     database,
		Ledger: ledger.New(database.DB, ledger.WithClock(clk)),
	}, nil
}

// Start begins periodic cleanup of entries past the retention period.
func (s *LedgerService) Start(ctx context.Context) {
	s.done = make(chan struct{})
	go s.runCleanup(ctx)
}

func (s *LedgerService) runCleanup(ctx context.Context) {
	defer close(s.done)

	retention := s.cfg.Ledger.Retention.Duration()
	interval := s.cfg.Ledger.CleanupInterval.Duration()

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			deleted, err := s.Ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}

// Close waits for the cleanup loop, if started, and closes the database.
func (s *LedgerService) Close(ctx context.Context) error {
	if s.done != nil {
		select {
		case <-s.done:
		case <-ctx.Done():
		}
	}
	return s.DB.Close()
}
