package booking

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrAuthRequired is returned by the Google path when no session token is held.
	ErrAuthRequired = errors.New("google sign-in required")
	// ErrSlotBooked is returned when the slot overlaps a timed event in the current view.
	ErrSlotBooked = errors.New("time slot is already booked")
)

// ValidationError lists the fields that block a submission, keyed by field name.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

// orNil keeps a typed nil from escaping as a non-nil error.
func (e *ValidationError) orNil() error {
	if e.empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid appointment: " + strings.Join(parts, "; ")
}
