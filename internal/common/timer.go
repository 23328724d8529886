// Package common provides small shared utilities such as stage timing.
package common

import (
	"fmt"
	"time"
)

// Timer measures the duration of a named pipeline stage.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewNamedTimer creates a started timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// String returns a formatted representation of the timer.
func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return fmt.Sprintf("%v", t.duration)
}
