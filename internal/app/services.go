package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"

	"github.com/dokzlo13/rgbd/internal/config"
	"github.com/dokzlo13/rgbd/internal/ledger"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	Ledger *LedgerService // nil when the ledger is disabled
	Events *EventService
	Output *OutputService

	// High-level services
	Show   *ShowService
	Health *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config, clk clock.WithTickerAndDelayedExecution) (*Services, error) {
	s := &Services{cfg: cfg}

	var l *ledger.Ledger
	if cfg.Ledger.Enabled {
		ls, err := NewLedgerService(cfg, clk)
		if err != nil {
			return nil, err
		}
		s.Ledger = ls
		l = ls.Ledger
	} else {
		log.Info().Msg("Ledger is disabled")
	}

	s.Events = NewEventService(cfg, l)

	out, err := NewOutputService(cfg)
	if err != nil {
		s.Close(context.Background())
		return nil, err
	}
	s.Output = out

	s.Show, err = NewShowService(cfg, out.Sink, clk, s.Events.Observer())
	if err != nil {
		s.Close(context.Background())
		return nil, err
	}

	s.Health = NewHealthService(cfg, s.Show)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Consumers first so no transition event from the script is missed
	s.Events.Start()
	if s.Ledger != nil {
		s.Ledger.Start(ctx)
	}

	if err := s.Show.Start(ctx); err != nil {
		return err
	}

	s.Health.Start(ctx, onFatalError)
	return nil
}

// Stop gracefully stops all services within the shutdown timeout.
func (s *Services) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
	defer cancel()
	return s.Close(ctx)
}

// Close releases all resources, in reverse dependency order.
func (s *Services) Close(ctx context.Context) error {
	var errs []error
	if s.Show != nil {
		errs = append(errs, s.Show.Stop(ctx))
	}
	if s.Output != nil {
		errs = append(errs, s.Output.Close())
	}
	if s.Events != nil {
		s.Events.Close(ctx)
	}
	if s.Ledger != nil {
		errs = append(errs, s.Ledger.Close(ctx))
	}
	return errors.Join(errs...)
}
