// Package boundedlog implements a generic append-only log bounded by both a
// maximum entry count and an age-based retention window. The same abstraction
// backs every per-account record buffer so trim logic lives in one place.
package boundedlog

import "time"

// Log holds up to max entries of type T, dropping the oldest first. Entries
// older than retention are dropped on every append. Not safe for concurrent
// use; callers serialize per account.
type Log[T any] struct {
	max       int
	retention time.Duration
	at        func(T) time.Time
	entries   []T
}

// New returns an empty log. at extracts the timestamp used for retention
// trimming; retention <= 0 disables age-based trimming.
func New[T any](max int, retention time.Duration, at func(T) time.Time) *Log[T] {
	if max < 1 {
		max = 1
	}
	return &Log[T]{
		max:       max,
		retention: retention,
		at:        at,
	}
}

// Append adds records in order and trims to the cap and retention window.
func (l *Log[T]) Append(now time.Time, records ...T) {
	l.entries = append(l.entries, records...)
	l.trim(now)
}

// Restore replaces the contents wholesale, re-applying both bounds. Used when
// reloading a persisted buffer at startup.
func (l *Log[T]) Restore(now time.Time, records []T) {
	l.entries = append(l.entries[:0:0], records...)
	l.trim(now)
}

func (l *Log[T]) trim(now time.Time) {
	if l.retention > 0 && l.at != nil {
		cutoff := now.Add(-l.retention)
		keep := 0
		for keep < len(l.entries) && l.at(l.entries[keep]).Before(cutoff) {
			keep++
		}
		l.entries = l.entries[keep:]
	}
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// Entries returns a copy of the current contents, oldest first.
func (l *Log[T]) Entries() []T {
	out := make([]T, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *Log[T]) Len() int {
	return len(l.entries)
}
