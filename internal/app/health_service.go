package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/channel"
	"github.com/dokzlo13/rgbd/internal/config"
)

// ShowStatus is what the health endpoints report on.
type ShowStatus interface {
	Ready() bool
	Snapshots(ctx context.Context) ([]channel.State, error)
}

// HealthService provides HTTP health check endpoints.
type HealthService struct {
	cfg    *config.Config
	show   ShowStatus
	server *http.Server
}

// NewHealthService creates a new HealthService.
func NewHealthService(cfg *config.Config, show ShowStatus) *HealthService {
	return &HealthService{
		cfg:  cfg,
		show: show,
	}
}

// Start begins the health check server if enabled. A listen failure is
// reported through onFatalError.
func (s *HealthService) Start(ctx context.Context, onFatalError func(error)) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx, onFatalError)
}

// Handler returns the health check routes.
func (s *HealthService) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.show.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("/channels", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		states, err := s.show.Snapshots(ctx)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"channels": states})
	})

	return mux
}

func (s *HealthService) run(ctx context.Context, onFatalError func(error)) {
	addr := s.cfg.Healthcheck.Addr()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
		if onFatalError != nil {
			onFatalError(err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("Failed to write health response")
	}
}
