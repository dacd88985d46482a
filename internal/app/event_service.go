package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/channel"
	"github.com/dokzlo13/rgbd/internal/config"
	"github.com/dokzlo13/rgbd/internal/eventbus"
	"github.com/dokzlo13/rgbd/internal/ledger"
)

// EventService carries channel transition events off the show loop and into
// the ledger.
type EventService struct {
	Bus    *eventbus.Bus
	ledger *ledger.Ledger
}

// NewEventService creates the bus. l may be nil when the ledger is disabled.
func NewEventService(cfg *config.Config, l *ledger.Ledger) *EventService {
	return &EventService{
		Bus:    eventbus.NewWithConfig(cfg.EventBus.Workers, cfg.EventBus.QueueSize),
		ledger: l,
	}
}

// Observer returns the channel observer that publishes to the bus. It never
// blocks the loop.
func (s *EventService) Observer() channel.Observer {
	return channel.ObserverFunc(func(e channel.Event) {
		s.Bus.Publish(toBusEvent(e))
	})
}

// Start subscribes the ledger writer.
func (s *EventService) Start() {
	if s.ledger == nil {
		return
	}
	s.Bus.SubscribeTransitions(s.record)
}

func (s *EventService) record(e eventbus.Event) {
	if err := s.ledger.Append(ledger.EventType(e.Type), e.Channel, e.Transition, e.Data); err != nil {
		log.Error().Err(err).
			Str("event_type", string(e.Type)).
			Str("channel", e.Channel).
			Str("transition", e.Transition).
			Msg("Failed to record transition event")
	}
}

// Close drains the bus.
func (s *EventService) Close(ctx context.Context) {
	s.Bus.Close(ctx)
}

func toBusEvent(e channel.Event) eventbus.Event {
	return eventbus.Event{
		Type:       eventbus.EventType(e.Type),
		Channel:    e.Channel,
		Transition: e.Transition.String(),
		Data: map[string]any{
			"kind":  string(e.Kind),
			"red":   e.Target.R(),
			"green": e.Target.G(),
			"blue":  e.Target.B(),
		},
	}
}
