package schema

import "encoding/json"

// Status is the lifecycle status of the schema registry.
type Status int

const (
	// StatusIdle means no load has been attempted yet.
	StatusIdle Status = iota
	// StatusLoading means a fetch is in flight.
	StatusLoading
	// StatusReady means a compiled validator is available.
	StatusReady
	// StatusError means the most recent load failed.
	StatusError
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// State is an immutable view of the registry.
type State struct {
	Status Status
	// ETag is the last cache validator received with a successfully compiled schema.
	ETag string
	// Err is the most recent load failure. It is kept while a retry is loading
	// and cleared once a load succeeds.
	Err error
	// Validator is non-nil only when Status is StatusReady.
	Validator *Validator
}

// Ready reports whether a usable validator is present.
func (s State) Ready() bool {
	return s.Status == StatusReady && s.Validator != nil
}

// Failed reports whether the schema was loaded and failed, as opposed to never loaded.
func (s State) Failed() bool {
	return s.Err != nil
}

// ErrorMessage returns the failure text or "".
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
