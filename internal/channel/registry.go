package channel

import (
	"errors"
	"fmt"
)

// ErrUnknownChannel is returned when a lookup names no registered channel.
var ErrUnknownChannel = errors.New("unknown channel")

// Registry holds the named channels of a running daemon in registration
// order. It is populated at startup and then only read from the loop.
type Registry struct {
	order  []*Channel
	byName map[string]*Channel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Channel)}
}

// Add registers c under its name.
func (r *Registry) Add(c *Channel) error {
	if _, ok := r.byName[c.Name()]; ok {
		return fmt.Errorf("channel %q already registered", c.Name())
	}
	r.byName[c.Name()] = c
	r.order = append(r.order, c)
	return nil
}

// Get returns the channel called name.
func (r *Registry) Get(name string) (*Channel, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return c, nil
}

// All returns every channel in registration order.
func (r *Registry) All() []*Channel {
	out := make([]*Channel, len(r.order))
	copy(out, r.order)
	return out
}

// Snapshots returns the state of every channel in registration order.
func (r *Registry) Snapshots() []State {
	out := make([]State, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, c.Snapshot())
	}
	return out
}

// CloseAll closes every channel and joins their errors.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, c := range r.order {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel %q: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
