package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"

	"github.com/dokzlo13/rgbd/internal/channel"
	"github.com/dokzlo13/rgbd/internal/config"
	luart "github.com/dokzlo13/rgbd/internal/lua"
	"github.com/dokzlo13/rgbd/internal/scheduler"
	"github.com/dokzlo13/rgbd/internal/sink"
)

// ShowService runs the loop that owns every channel and the Lua runtime.
// Channels, transitions and script callbacks only ever execute on that loop.
type ShowService struct {
	cfg      *config.Config
	Loop     *scheduler.Loop
	Channels *channel.Registry
	Runtime  *luart.Runtime

	started atomic.Bool
	ready   atomic.Bool
	stopped chan struct{}
}

// NewShowService creates the configured channels on out.
func NewShowService(cfg *config.Config, out sink.Sink, clk clock.WithDelayedExecution, observer channel.Observer) (*ShowService, error) {
	loop := scheduler.NewLoop(clk, cfg.Loop.QueueSize)
	registry := channel.NewRegistry()

	for _, cc := range cfg.Channels {
		pins := channel.Pins{Red: *cc.Red, Green: *cc.Green, Blue: *cc.Blue}
		ch := channel.New(cc.Name, pins, out, loop, channel.WithObserver(observer))
		if err := ch.ConfigErr(); err != nil {
			log.Warn().Err(err).Str("channel", cc.Name).Msg("Channel has unconfigured outputs")
		}
		if err := registry.Add(ch); err != nil {
			return nil, err
		}
		log.Info().
			Str("channel", cc.Name).
			Int("red", pins.Red).
			Int("green", pins.Green).
			Int("blue", pins.Blue).
			Msg("Channel registered")
	}

	return &ShowService{
		cfg:      cfg,
		Loop:     loop,
		Channels: registry,
		Runtime:  luart.NewRuntime(luart.RuntimeDeps{Channels: registry, Scheduler: loop}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start runs the loop and loads the show script, if any.
func (s *ShowService) Start(ctx context.Context) error {
	s.started.Store(true)
	go func() {
		defer close(s.stopped)
		// The loop outlives ctx so Stop can still close channels on it.
		s.Loop.Run(context.Background())
	}()

	if s.cfg.Script != "" {
		err := s.Loop.DoSync(ctx, func() error {
			return s.Runtime.LoadScript(s.cfg.Script)
		})
		if err != nil {
			return err
		}
	}

	s.ready.Store(true)
	return nil
}

// Ready reports whether the show script has been loaded.
func (s *ShowService) Ready() bool {
	return s.ready.Load()
}

// Snapshots returns the state of every channel, read on the loop.
func (s *ShowService) Snapshots(ctx context.Context) ([]channel.State, error) {
	var states []channel.State
	err := s.Loop.DoSync(ctx, func() error {
		states = s.Channels.Snapshots()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read channel state: %w", err)
	}
	return states, nil
}

// Stop closes every channel on the loop, then shuts the loop and the Lua
// runtime down.
func (s *ShowService) Stop(ctx context.Context) error {
	s.ready.Store(false)

	if !s.started.Load() {
		s.Loop.Close()
		s.Runtime.Close()
		return s.Channels.CloseAll()
	}

	err := s.Loop.DoSync(ctx, s.Channels.CloseAll)
	s.Loop.Close()

	select {
	case <-s.stopped:
	case <-ctx.Done():
		log.Warn().Msg("Show loop did not stop in time")
		return ctx.Err()
	}

	s.Runtime.Close()
	log.Info().Msg("Show stopped")
	return err
}
