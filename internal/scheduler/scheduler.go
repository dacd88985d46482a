// Package scheduler provides the single logical thread that channels, their
// ticks and script callbacks all run on.
package scheduler

import "time"

// Scheduler runs fn once, after at least d, on the same logical thread as
// the caller. Fire-and-forget: there is no handle and no result.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Func adapts a function to Scheduler.
type Func func(d time.Duration, fn func())

// After implements Scheduler.
func (f Func) After(d time.Duration, fn func()) {
	f(d, fn)
}
