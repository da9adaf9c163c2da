package core

import "errors"

// Sentinel errors for the planning engine. Callers match these with
// errors.Is; the rpc layer maps them onto wire error codes.
var (
	ErrOutOfBounds    = errors.New("coordinate outside terrain extent")
	ErrNotReachable   = errors.New("no path exists in the road graph")
	ErrUnknownRouteID = errors.New("unknown route id")
	// ErrNoRouteSatisfiesConstraints is carried by *ConstraintError so the
	// per-candidate violation trace travels with the failure.
	ErrNoRouteSatisfiesConstraints = errors.New("no route satisfies the supplied constraints")
	ErrSelectionRequired           = errors.New("no route selection exists")
	ErrSearchTimeout               = errors.New("route search exceeded its time bound")
	ErrInvalidBundle               = errors.New("invalid terrain bundle")
	ErrInvalidRequest              = errors.New("invalid request")
)

// ConstraintError reports a selection in which every candidate violated at
// least one hard constraint. The trace explains, per candidate, which
// constraints failed and why.
type ConstraintError struct {
	Trace []TraceEntry
}

func (e *ConstraintError) Error() string {
	return ErrNoRouteSatisfiesConstraints.Error()
}

// Is lets errors.Is(err, ErrNoRouteSatisfiesConstraints) succeed.
func (e *ConstraintError) Is(target error) bool {
	return target == ErrNoRouteSatisfiesConstraints
}
