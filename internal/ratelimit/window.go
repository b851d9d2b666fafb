// Package ratelimit implements a sliding-window request limiter shared by
// concurrent extraction workers.
package ratelimit

import (
	"time"
)

// Window holds the completion timestamps of recent requests, oldest first.
// It is not safe for concurrent use; Gate serializes access to it.
type Window struct {
	size   time.Duration
	stamps []time.Time
}

// NewWindow creates an empty window spanning size.
func NewWindow(size time.Duration) *Window {
	return &Window{size: size}
}

// Prune evicts timestamps at or before now-size. Timestamps are
// time-ordered, so eviction trims a prefix.
func (w *Window) Prune(now time.Time) {
	cutoff := now.Add(-w.size)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Add appends a timestamp. Callers append in non-decreasing order.
func (w *Window) Add(t time.Time) {
	if n := len(w.stamps); n > 0 && t.Before(w.stamps[n-1]) {
		t = w.stamps[n-1]
	}
	w.stamps = append(w.stamps, t)
}

// Len returns the number of timestamps currently held.
func (w *Window) Len() int {
	return len(w.stamps)
}

// Oldest returns the earliest timestamp, if any.
func (w *Window) Oldest() (time.Time, bool) {
	if len(w.stamps) == 0 {
		return time.Time{}, false
	}
	return w.stamps[0], true
}

// Snapshot returns a copy of the held timestamps.
func (w *Window) Snapshot() []time.Time {
	out := make([]time.Time, len(w.stamps))
	copy(out, w.stamps)
	return out
}

// WaitTime returns how long to wait from now until the oldest timestamp
// leaves the window, plus buffer. It is zero or negative when no wait is needed.
func (w *Window) WaitTime(now time.Time, buffer time.Duration) time.Duration {
	oldest, ok := w.Oldest()
	if !ok {
		return 0
	}
	return oldest.Sub(now.Add(-w.size)) + buffer
}
