// Package conversation implements the multi-step hosting flow.
package conversation

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the step a user is at in the hosting flow.
type State int

const (
	Idle State = iota
	AwaitingStart
	AwaitingEnd
	AwaitingCost
	AwaitingArea
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingStart:
		return "awaiting_start"
	case AwaitingEnd:
		return "awaiting_end"
	case AwaitingCost:
		return "awaiting_cost"
	case AwaitingArea:
		return "awaiting_area"
	default:
		return "unknown"
	}
}

// Draft accumulates the fields of an event being hosted. A field is only set
// once the step that collects it has succeeded.
type Draft struct {
	Start time.Time
	End   time.Time
	Cost  decimal.Decimal
}

// Session is one user's in-progress hosting flow.
type Session struct {
	UserID    int64
	State     State
	Draft     Draft
	UpdatedAt time.Time
}
