package sink

import (
	"fmt"
	"sync"
)

// Write is one recorded call to Memory.Write.
type Write struct {
	ID    int
	Value int
}

// Memory is an in-process Sink that records everything written to it.
// It backs tests and the "memory" output driver.
type Memory struct {
	mu         sync.Mutex
	writes     []Write
	levels     map[int]int
	configured map[int]bool
	stopped    map[int]bool
	failures   map[int]error
}

// NewMemory creates an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{
		levels:     make(map[int]int),
		configured: make(map[int]bool),
		stopped:    make(map[int]bool),
		failures:   make(map[int]error),
	}
}

// FailConfigure makes the next Configure of id return err.
func (m *Memory) FailConfigure(id int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = err
}

// Configure implements Sink.
func (m *Memory) Configure(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failures[id]; ok {
		delete(m.failures, id)
		return fmt.Errorf("failed to configure output %d: %w", id, err)
	}
	m.configured[id] = true
	m.stopped[id] = false
	return nil
}

// Write implements Sink.
func (m *Memory) Write(id, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes = append(m.writes, Write{ID: id, Value: value})
	m.levels[id] = value
	return nil
}

// Stop implements Sink.
func (m *Memory) Stop(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.levels[id] = 0
	m.stopped[id] = true
	return nil
}

// Writes returns a copy of every write so far, in order.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

// WritesTo returns the values written to a single output, in order.
func (m *Memory) WritesTo(id int) []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []int
	for _, w := range m.writes {
		if w.ID == id {
			out = append(out, w.Value)
		}
	}
	return out
}

// Level returns the last value written to id.
func (m *Memory) Level(id int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[id]
}

// Configured reports whether id was configured successfully.
func (m *Memory) Configured(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configured[id]
}

// Stopped reports whether id has been stopped.
func (m *Memory) Stopped(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped[id]
}

// Reset forgets recorded writes but keeps levels and configuration.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}
