package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidExecContext  = errors.New("invalid execution context")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrLockBusy            = errors.New("another operation for this streamer is in progress")
	ErrConfirmationExpired = errors.New("confirmation expired or was never requested")
)

// ValidationError reports input that was rejected before any state change.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// DuplicateError means the user already watches the handle.
type DuplicateError struct {
	Handle string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("streamer %q is already watched", e.Handle)
}

func (e *DuplicateError) Unwrap() error { return ErrAlreadyExists }

// StorageError wraps a failure of the session store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// GatewayErrorKind classifies failures of the remote workflow API.
type GatewayErrorKind string

const (
	GatewayAuth      GatewayErrorKind = "auth"
	GatewayNotFound  GatewayErrorKind = "not_found"
	GatewayNetwork   GatewayErrorKind = "network"
	GatewayMalformed GatewayErrorKind = "malformed"
	GatewayRejected  GatewayErrorKind = "rejected"
)

// GatewayError is returned by every remote workflow operation that fails.
// Message is safe to show to the user.
type GatewayError struct {
	Kind    GatewayErrorKind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("gateway %s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match a remote 404.
func (e *GatewayError) Is(target error) bool {
	return target == ErrNotFound && e.Kind == GatewayNotFound
}

// IsGatewayKind reports whether err is a GatewayError of the given kind.
func IsGatewayKind(err error, kind GatewayErrorKind) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == kind
}
