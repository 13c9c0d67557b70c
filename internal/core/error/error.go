package errx

import (
	"errors"
	"fmt"
)

// Kind classifies failures along the assistant's error taxonomy.
type Kind string

const (
	// KindUserInput is an oversized or malformed input; recoverable, no escalation.
	KindUserInput Kind = "user_input"
	// KindSecurity is a sensitive-content or injection rejection; escalates the session counter.
	KindSecurity Kind = "security_violation"
	// KindTransport is a failed upstream model call.
	KindTransport Kind = "transport_failure"
	// KindSchema is a model reply that is not valid JSON or breaks the output schema.
	KindSchema Kind = "schema_violation"
	// KindPersistence is a history read/write failure.
	KindPersistence Kind = "persistence_failure"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "服务暂时不可用，请稍后再试"
	// TransportErrorMessage describes model call failures.
	TransportErrorMessage = "model call failed"
	// SchemaErrorMessage describes replies that failed schema validation.
	SchemaErrorMessage = "model reply violates output schema"
	// PersistenceErrorMessage describes history store failures.
	PersistenceErrorMessage = "history store operation failed"
)

// AppError wraps an underlying error with a taxonomy kind and safe message.
type AppError struct {
	Err     error
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, kind Kind, message string) *AppError {
	return &AppError{
		Err:     err,
		Kind:    kind,
		Message: message,
	}
}

// WrapTransport marks err as an upstream model failure.
func WrapTransport(err error) error {
	if err == nil {
		return nil
	}
	return New(err, KindTransport, TransportErrorMessage)
}

// WrapSchema marks err as a schema violation of the model reply.
func WrapSchema(err error) error {
	if err == nil {
		return nil
	}
	return New(err, KindSchema, SchemaErrorMessage)
}

// WrapPersistence marks err as a history store failure.
func WrapPersistence(err error) error {
	if err == nil {
		return nil
	}
	return New(err, KindPersistence, PersistenceErrorMessage)
}

// KindOf returns the kind of the first AppError in err's chain, or "" when none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
