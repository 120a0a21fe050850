// Package clock supplies the naive wall-clock "now" shared by the event
// store and the conversation engine.
//
// Event timestamps are stored without a zone. Both user input and "now" are
// represented as wall-clock readings labelled UTC, so comparisons never
// shift by the process or database session offset.
package clock

import "time"

// Clock reports the current naive wall-clock time.
type Clock interface {
	Now() time.Time
}

// Func adapts a function to Clock.
type Func func() time.Time

// Now implements Clock.
func (f Func) Now() time.Time { return f() }

// Wall reads the system clock in Location and drops the zone.
type Wall struct {
	Location *time.Location
}

// Now implements Clock.
func (w Wall) Now() time.Time {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	return Naive(time.Now().In(loc))
}

// Naive keeps the wall-clock fields of t and relabels them as UTC.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
