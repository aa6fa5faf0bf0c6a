package routing

import "errors"

// Query-path errors. Both surface to the caller without touching manager
// state.
var (
	// ErrConflictingOptions means a request forced HLC and LLC at once.
	ErrConflictingOptions = errors.New("routing: conflicting FORCE_HLC and FORCE_LLC options")

	// ErrUnsatisfiableOption means a forced consumer type has no plans for
	// the requested table.
	ErrUnsatisfiableOption = errors.New("routing: forced consumer type has no routing table")
)
