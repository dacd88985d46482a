package sink

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stianeikeland/go-rpio/v4"
)

// BCM pins wired to the SoC's hardware PWM block.
var hardwarePWMPins = map[int]bool{12: true, 13: true, 18: true, 19: true, 40: true, 41: true, 45: true}

const maxBCMPin = 53

// RPIOConfig tunes the Raspberry Pi driver.
type RPIOConfig struct {
	// Frequency is the PWM base frequency in Hz.
	Frequency int
	// CycleLength is the hardware PWM range; duty is value*CycleLength/100.
	CycleLength uint32
	// SoftwareFrequency is the period rate of bit-banged outputs in Hz.
	SoftwareFrequency int
}

// RPIO drives Raspberry Pi GPIO pins. Pins with hardware PWM use it; any
// other pin gets a bit-banged software PWM goroutine.
type RPIO struct {
	cfg RPIOConfig

	mu   sync.Mutex
	soft map[int]*softPWM
	hard map[int]bool
}

// OpenRPIO maps GPIO memory. Close must be called to unmap it.
func OpenRPIO(cfg RPIOConfig) (*RPIO, error) {
	if cfg.Frequency <= 0 {
		cfg.Frequency = 64000
	}
	if cfg.CycleLength == 0 {
		cfg.CycleLength = 100
	}
	if cfg.SoftwareFrequency <= 0 {
		cfg.SoftwareFrequency = 100
	}

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open gpio memory: %w", err)
	}
	log.Info().
		Int("frequency", cfg.Frequency).
		Uint32("cycle_length", cfg.CycleLength).
		Msg("GPIO memory mapped")

	return &RPIO{
		cfg:  cfg,
		soft: make(map[int]*softPWM),
		hard: make(map[int]bool),
	}, nil
}

// Configure implements Sink.
func (s *RPIO) Configure(id int) error {
	if id < 0 || id > maxBCMPin {
		return fmt.Errorf("failed to configure output %d: not a BCM pin", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hard[id] || s.soft[id] != nil {
		return fmt.Errorf("failed to configure output %d: already configured", id)
	}

	pin := rpio.Pin(id)
	if hardwarePWMPins[id] {
		pin.Mode(rpio.Pwm)
		pin.Freq(s.cfg.Frequency)
		rpio.SetDutyCycle(pin, 0, s.cfg.CycleLength)
		s.hard[id] = true
		return nil
	}

	pin.Output()
	pin.Low()
	p := newSoftPWM(pin, time.Second/time.Duration(s.cfg.SoftwareFrequency))
	s.soft[id] = p
	go p.run()
	return nil
}

// Write implements Sink.
func (s *RPIO) Write(id, value int) error {
	value = clampValue(value)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hard[id] {
		rpio.SetDutyCycle(rpio.Pin(id), dutyLength(value, s.cfg.CycleLength), s.cfg.CycleLength)
		return nil
	}
	if p := s.soft[id]; p != nil {
		p.duty.Store(int32(value))
		return nil
	}
	return fmt.Errorf("output %d is not configured", id)
}

// Stop implements Sink.
func (s *RPIO) Stop(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hard[id] {
		pin := rpio.Pin(id)
		rpio.SetDutyCycle(pin, 0, s.cfg.CycleLength)
		pin.Output()
		pin.Low()
		delete(s.hard, id)
		return nil
	}
	if p := s.soft[id]; p != nil {
		p.stop()
		delete(s.soft, id)
		return nil
	}
	return fmt.Errorf("output %d is not configured", id)
}

// Close stops every output still running and unmaps GPIO memory.
func (s *RPIO) Close() error {
	s.mu.Lock()
	for id, p := range s.soft {
		p.stop()
		delete(s.soft, id)
	}
	for id := range s.hard {
		rpio.SetDutyCycle(rpio.Pin(id), 0, s.cfg.CycleLength)
		delete(s.hard, id)
	}
	s.mu.Unlock()

	if err := rpio.Close(); err != nil {
		return fmt.Errorf("failed to close gpio memory: %w", err)
	}
	return nil
}

func dutyLength(value int, cycle uint32) uint32 {
	return uint32(clampValue(value)) * cycle / 100
}

// softPWM toggles a pin from its own goroutine.
type softPWM struct {
	pin    rpio.Pin
	period time.Duration
	duty   atomic.Int32

	quit chan struct{}
	done chan struct{}
}

func newSoftPWM(pin rpio.Pin, period time.Duration) *softPWM {
	return &softPWM{
		pin:    pin,
		period: period,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (p *softPWM) run() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			p.pin.Low()
			return
		default:
		}

		on := onTime(p.period, int(p.duty.Load()))
		if on > 0 {
			p.pin.High()
			time.Sleep(on)
		}
		if on < p.period {
			p.pin.Low()
			time.Sleep(p.period - on)
		}
	}
}

func (p *softPWM) stop() {
	close(p.quit)
	<-p.done
}

func onTime(period time.Duration, value int) time.Duration {
	return period * time.Duration(clampValue(value)) / 100
}
