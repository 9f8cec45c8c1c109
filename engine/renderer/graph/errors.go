package graph

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is against a returned *Error.
var (
	ErrConflictingUse    = errors.New("conflicting use")
	ErrUnknownAttachment = errors.New("unknown attachment")
	ErrAllocationFailure = errors.New("allocation failure")
	ErrUnsupportedAccess = errors.New("unsupported access")
)

// Error carries enough context to identify the offending pass and resource.
type Error struct {
	Kind     error
	Pass     string
	Resource Name
	Msg      string
	Cause    error
}

func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Pass != "" {
		s += fmt.Sprintf(" (pass %q)", e.Pass)
	}
	if e.Resource != "" {
		s += fmt.Sprintf(" (resource %q)", e.Resource)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}
