// SPDX-License-Identifier: EPL-2.0

package project

import (
	"errors"
	"fmt"
)

var (
	ErrInvalid  = errors.New("invalid project")
	ErrNotFound = errors.New("not found")
)

// ValidationError describes why a project or an edit was rejected.
type ValidationError struct {
	// Entity names the offending item, e.g. "source 3". Empty for
	// project-wide settings.
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%v: %s: %s", ErrInvalid, e.Field, e.Reason)
	}

	return fmt.Sprintf("%v: %s: %s: %s", ErrInvalid, e.Entity, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func invalid(entity fmt.Stringer, field, format string, args ...any) *ValidationError {
	e := &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
	if entity != nil {
		e.Entity = entity.String()
	}

	return e
}
