package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the adapter and the channel dispatch layer.
// ErrNotImplemented and ErrBadRequest translate into 501 / 400 invoke
// response envelopes instead of propagating as raw failures.
var (
	// ErrContextExpired is returned when a TurnContext is used after its
	// turn has completed. The context is revoked when the pipeline ends.
	ErrContextExpired = errors.New("turn context expired: turn has already completed")

	// ErrNotImplemented signals that a dispatch target has no override.
	ErrNotImplemented = errors.New("not implemented")

	// ErrBadRequest signals a structurally invalid invoke payload.
	ErrBadRequest = errors.New("bad request")

	// ErrNotAuthorized is returned when inbound authentication fails. The
	// turn never starts.
	ErrNotAuthorized = errors.New("unauthorized access: request is not authorized")
)

// ValidationError reports a missing or malformed routing field detected
// before any network call. It is never retried.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
