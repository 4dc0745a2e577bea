package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed or missing input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrUpstreamWrite marks a record store read or write failure.
	ErrUpstreamWrite = errors.New("record store request failed")
	// ErrAttachmentUpload marks a failed attachment upload. The dependent row write must not run.
	ErrAttachmentUpload = errors.New("attachment upload failed")
)

// Validationf wraps ErrValidation with a formatted detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// UpstreamError wraps a record store failure, keeping the original cause.
func UpstreamError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstreamWrite) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstreamWrite, op, err)
}
