package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNoImplementationsRegistered = errors.New("no service implementations are registered")
	ErrUnknownTrigger              = errors.New("no registered service accepts this trigger")
)

// ConfigurationError reports a service that was wired incorrectly. It is
// raised at construction time and never retried.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func (e *ConfigurationError) IsFatal() bool { return true }

// ValidationError collects per-field messages for a rejected message.
// It marshals to {"field": ["message", ...]}.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "invalid message: " + strings.Join(parts, ", ")
}

// DispatchError is returned when a job cannot be routed to any service.
// Redelivering it cannot help, so it reports itself fatal.
type DispatchError struct {
	Trigger string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %q: %v", e.Trigger, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func (e *DispatchError) IsFatal() bool { return true }
