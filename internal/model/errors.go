package model

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or malformed domain policy.
type ConfigurationError struct {
	Domain string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for domain %q: %v", e.Domain, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError reports a request that was rejected before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamServiceError reports a failed call to the text-generation collaborator.
type UpstreamServiceError struct {
	Op  string
	Err error
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown trace ID.
type NotFoundError struct {
	TraceID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("trace %q not found", e.TraceID)
}

// StorageError reports a failed durable read or append.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
