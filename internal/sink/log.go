package sink

import "github.com/rs/zerolog/log"

// Log is a dry-run Sink that only logs. Useful without PWM hardware.
type Log struct{}

// NewLog creates a Log sink.
func NewLog() *Log {
	return &Log{}
}

// Configure implements Sink.
func (Log) Configure(id int) error {
	log.Info().Int("output", id).Msg("Output configured (dry run)")
	return nil
}

// Write implements Sink.
func (Log) Write(id, value int) error {
	log.Debug().Int("output", id).Int("value", value).Msg("Output write")
	return nil
}

// Stop implements Sink.
func (Log) Stop(id int) error {
	log.Info().Int("output", id).Msg("Output stopped (dry run)")
	return nil
}
