package conversation

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned when a flow message arrives for an idle user.
var ErrNoSession = errors.New("no active hosting session")

// Validated fields.
const (
	FieldStart = "start"
	FieldEnd   = "end"
	FieldCost  = "cost"
	FieldArea  = "area"
)

// Rejection reasons.
const (
	ReasonFormat      = "invalid_format"
	ReasonEndNotAfter = "end_not_after_start"
	ReasonNotNumber   = "not_a_number"
	ReasonNegative    = "negative"
	ReasonUnknownArea = "unknown_area"
)

// ValidationError describes rejected user input. It is recovered locally by
// re-prompting and is never returned from Handle.
type ValidationError struct {
	Field  string
	Reason string
	Input  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%s): %q", e.Field, e.Reason, e.Input)
}
