package channel

import (
	"time"

	"github.com/google/uuid"

	"github.com/dokzlo13/rgbd/internal/color"
)

// Kind names the variant of a channel's transition.
type Kind string

const (
	KindIdle   Kind = "idle"
	KindFade   Kind = "fade"
	KindPulse  Kind = "pulse"
	KindStrobe Kind = "strobe"
)

// transition is the live variant of a channel: *fade or *strobe. A nil
// transition is Idle. Ticks capture the transition they belong to and are
// ignored once it is no longer the channel's active one.
type transition interface {
	kind() Kind
	id() uuid.UUID
	target() color.Color
	progress() (step, total int)
}

// fade is a linear interpolation sampled once per TickInterval.
type fade struct {
	tid     uuid.UUID
	k       Kind
	to      color.Color
	dr      float64
	dg      float64
	db      float64
	steps   int
	step    int
	pulsing bool
	// then is a follow-up leg started when this fade completes. Pulse uses it
	// to go from the lead-in to the oscillation.
	then *leg
	done func()
}

type leg struct {
	to       color.Color
	duration time.Duration
}

func (f *fade) kind() Kind                  { return f.k }
func (f *fade) id() uuid.UUID               { return f.tid }
func (f *fade) target() color.Color         { return f.to }
func (f *fade) progress() (step, total int) { return f.step, f.steps }

// strobe alternates between off and the on color every period.
type strobe struct {
	tid     uuid.UUID
	on      color.Color
	toggles int
	toggle  int
	period  time.Duration
	done    func()
}

func (s *strobe) kind() Kind                  { return KindStrobe }
func (s *strobe) id() uuid.UUID               { return s.tid }
func (s *strobe) target() color.Color         { return s.on }
func (s *strobe) progress() (step, total int) { return s.toggle, s.toggles }
