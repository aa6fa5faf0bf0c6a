package routing

import "strings"

// Routing option strings, matched case-insensitively.
const (
	OptionForceHLC = "FORCE_HLC"
	OptionForceLLC = "FORCE_LLC"
)

// Request is one query-path routing request.
type Request struct {
	Table   string
	Options []string
}

// parseOptions extracts the force flags from a request's options. Unknown
// options are ignored; forcing both consumer types is an error.
func parseOptions(options []string) (forceHLC, forceLLC bool, err error) {
	for _, opt := range options {
		switch strings.ToUpper(strings.TrimSpace(opt)) {
		case OptionForceHLC:
			forceHLC = true
		case OptionForceLLC:
			forceLLC = true
		}
	}
	if forceHLC && forceLLC {
		return false, false, ErrConflictingOptions
	}
	return forceHLC, forceLLC, nil
}
