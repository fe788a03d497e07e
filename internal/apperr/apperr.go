// Package apperr provides structured error handling with a small taxonomy and
// context propagation.
package apperr

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error for logging and UI routing.
type ErrorType string

const (
	// TypeValidation indicates invalid user input; blocks the call entirely,
	// no provider request is made.
	TypeValidation ErrorType = "validation"
	// TypeAuth indicates a login or logout failure; recoverable by retrying login.
	TypeAuth ErrorType = "auth"
	// TypeCreation indicates the streaming provider rejected or failed a
	// creation call; recoverable via a fresh create.
	TypeCreation ErrorType = "creation"
	// TypeNotification indicates a broadcast was not acknowledged; surfaced
	// only as a transient status, never blocks other state.
	TypeNotification ErrorType = "notification"
	// TypeInternal indicates a bug or local failure.
	TypeInternal ErrorType = "internal"
	// TypeExternal indicates an external service failed in a way that fits no
	// more specific category.
	TypeExternal ErrorType = "external"
)

// Error is a typed error with an optional cause and loggable context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Transient reports whether the error should be shown as a self-dismissing
// status rather than a dedicated error view.
func (e *Error) Transient() bool {
	return e.Type == TypeNotification
}

// WithContext adds a context field to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return &Error{Type: TypeValidation, Message: message}
}

// Auth creates an auth error wrapping the provider failure.
func Auth(message string, cause error) *Error {
	return &Error{Type: TypeAuth, Message: message, Cause: cause}
}

// Creation creates a stream-creation error wrapping the provider failure.
func Creation(message string, cause error) *Error {
	return &Error{Type: TypeCreation, Message: message, Cause: cause}
}

// Notification creates a non-fatal broadcast error.
func Notification(message string, cause error) *Error {
	return &Error{Type: TypeNotification, Message: message, Cause: cause}
}

// Internal creates an internal error.
func Internal(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause}
}

// External creates an external service error.
func External(message string, cause error) *Error {
	return &Error{Type: TypeExternal, Message: message, Cause: cause}
}

// TypeOf returns the ErrorType of err, or TypeInternal when err carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}

// IsType reports whether err carries the given ErrorType.
func IsType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}
