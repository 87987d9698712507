package controller

import (
	"errors"
	"fmt"
)

// Sentinel errors for controller queries.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrQueryFailed matches every failed query: transport failure, timeout,
	// unexpected status or an undecodable body.
	ErrQueryFailed = errors.New("controller: query failed")

	// ErrUnexpectedStatus is returned when the controller answers with a
	// status other than 200 or 202.
	ErrUnexpectedStatus = errors.New("controller: unexpected status")

	// ErrInvalidAction is returned when CallAction is given an empty action
	// name or a non-positive device id.
	ErrInvalidAction = errors.New("controller: invalid action request")
)

// QueryError describes a single failed query.
//
// errors.Is(err, ErrQueryFailed) is true for every QueryError.
type QueryError struct {
	// Path is the API path that was requested, e.g. "/rooms".
	Path string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Details is the human-readable failure reported on the status channel.
	Details string

	// Err is the underlying cause.
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("controller: query %s failed: %s", e.Path, e.Details)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Is reports whether target is ErrQueryFailed.
func (e *QueryError) Is(target error) bool { return target == ErrQueryFailed }

