package app

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/config"
	"github.com/dokzlo13/rgbd/internal/sink"
)

// OutputService owns the PWM sink shared by every channel.
type OutputService struct {
	Sink sink.Sink
}

// NewOutputService opens the configured driver, wrapping it in a paced sink
// when output.rate_limit is set.
func NewOutputService(cfg *config.Config) (*OutputService, error) {
	var out sink.Sink
	switch cfg.Output.Driver {
	case config.DriverRPIO:
		s, err := sink.OpenRPIO(sink.RPIOConfig{
			Frequency:         cfg.Output.PWMFrequency,
			CycleLength:       cfg.Output.CycleLength,
			SoftwareFrequency: cfg.Output.SoftwareFrequency,
		})
		if err != nil {
			return nil, err
		}
		out = s
	case config.DriverMemory:
		out = sink.NewMemory()
	case config.DriverLog:
		out = sink.NewLog()
	default:
		return nil, fmt.Errorf("unknown output driver %q", cfg.Output.Driver)
	}

	if cfg.Output.RateLimit > 0 {
		out = sink.NewPaced(out, cfg.Output.RateLimit, cfg.Output.Burst)
	}

	log.Info().
		Str("driver", cfg.Output.Driver).
		Float64("rate_limit", cfg.Output.RateLimit).
		Msg("Output driver ready")
	return &OutputService{Sink: out}, nil
}

// Close releases the sink if it holds resources.
func (s *OutputService) Close() error {
	if c, ok := s.Sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
