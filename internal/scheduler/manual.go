package scheduler

import (
	"sort"
	"time"
)

// Manual is a deterministic Scheduler with a virtual clock that only moves
// when told to. Tasks due at the same instant run in scheduling order. It is
// not safe for concurrent use.
type Manual struct {
	now   time.Duration
	seq   uint64
	queue []task
}

type task struct {
	at  time.Duration
	seq uint64
	fn  func()
}

// NewManual returns a Manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// After implements Scheduler.
func (m *Manual) After(d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	t := task{at: m.now + d, seq: m.seq, fn: fn}
	m.seq++

	i := sort.Search(len(m.queue), func(i int) bool {
		q := m.queue[i]
		return q.at > t.at || (q.at == t.at && q.seq > t.seq)
	})
	m.queue = append(m.queue, task{})
	copy(m.queue[i+1:], m.queue[i:])
	m.queue[i] = t
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	return m.now
}

// Pending returns the number of tasks not yet run.
func (m *Manual) Pending() int {
	return len(m.queue)
}

// RunNext moves the clock to the earliest task and runs it.
func (m *Manual) RunNext() bool {
	if len(m.queue) == 0 {
		return false
	}
	t := m.queue[0]
	m.queue = m.queue[1:]
	if t.at > m.now {
		m.now = t.at
	}
	t.fn()
	return true
}

// Advance moves the clock forward by d, running every task that falls due,
// including tasks scheduled by those tasks. It returns how many ran.
func (m *Manual) Advance(d time.Duration) int {
	target := m.now + d
	ran := 0
	for len(m.queue) > 0 && m.queue[0].at <= target {
		m.RunNext()
		ran++
	}
	m.now = target
	return ran
}

// RunUntilIdle runs tasks until none remain or limit tasks have run.
// It returns how many ran.
func (m *Manual) RunUntilIdle(limit int) int {
	ran := 0
	for ran < limit && m.RunNext() {
		ran++
	}
	return ran
}
