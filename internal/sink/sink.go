// Package sink provides the PWM outputs a channel writes intensities to.
package sink

import "errors"

// ErrClosed is returned by sinks that have been closed.
var ErrClosed = errors.New("sink closed")

// Sink is a set of PWM outputs addressed by integer id (a GPIO pin number for
// hardware drivers). Values passed to Write are duty percentages in [0, 100].
type Sink interface {
	// Configure prepares an output for writing.
	Configure(id int) error
	// Write sets the output's duty percentage.
	Write(id, value int) error
	// Stop drives the output dark and releases it.
	Stop(id int) error
}

// clampValue keeps a duty value within [0, 100].
func clampValue(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
