package track

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientSamples is returned when a trace or grid has too few usable points
	ErrInsufficientSamples = errors.New("insufficient samples")
	// ErrMissingSide is returned when a required track edge has no laps
	ErrMissingSide = errors.New("missing track side")
	// ErrGridMismatch is returned when grids of one run differ in size
	ErrGridMismatch = errors.New("grid size mismatch")
	// ErrSingularMatrix is returned when a smoothing kernel cannot be built
	ErrSingularMatrix = errors.New("singular matrix")
)

// DataError reports insufficient or malformed input. It is the only error kind
// raised by the generation core and always aborts the run.
type DataError struct {
	Op     string
	Role   Role
	Source string
	Got    int
	Want   int
	Err    error
}

func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Role != "" {
		fmt.Fprintf(&b, " [%s]", e.Role)
	}
	if e.Source != "" {
		fmt.Fprintf(&b, " %s", e.Source)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Got != 0 || e.Want != 0 {
		fmt.Fprintf(&b, " (got %d, want %d)", e.Got, e.Want)
	}
	return b.String()
}

func (e *DataError) Unwrap() error { return e.Err }
