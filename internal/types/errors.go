// Package types defines the shared error taxonomy and secret-handling
// primitives for the tripbase data access layer. Every error that crosses a
// provider boundary is expressed as a DBError so callers can branch on the
// error kind without knowing which backend produced it.
package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing data access errors.
type ErrorCode string

// Error code constants. Providers MUST use these constants instead of
// hardcoded strings; backend-specific errors (pgx, HTTP) never leak past a
// provider without being wrapped under one of these codes.
const (
	// Connect-time failure (pool creation, liveness check, gateway handshake).
	ErrCodeConnectionFailed ErrorCode = "connection_failed"

	// Operation attempted before Connect or after Disconnect.
	ErrCodeNotConnected ErrorCode = "not_connected"

	// Statement failed during execution. Carries the offending query text
	// and parameters.
	ErrCodeQueryFailed ErrorCode = "query_failed"

	// Transaction protocol violation: nested begin, commit/rollback with no
	// active transaction, reset of a connected provider.
	ErrCodeTransactionProtocol ErrorCode = "transaction_protocol"

	// Missing or invalid settings at factory time.
	ErrCodeConfigurationInvalid ErrorCode = "configuration_invalid"
)

// DBError is the standard error type used throughout the data access layer.
// It carries the taxonomy code, a human-readable message, the wrapped cause,
// and, for query failures, the offending statement text and parameters.
type DBError struct {
	Code    ErrorCode
	Message string
	Err     error
	Query   string
	Params  []any
}

// Error implements the error interface.
func (e *DBError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *DBError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a connect-time failure carrying the original cause.
func NewConnectionError(message string, err error) *DBError {
	return &DBError{Code: ErrCodeConnectionFailed, Message: message, Err: err}
}

// NewNotConnectedError creates the error returned when an operation is
// attempted without an active connection.
func NewNotConnectedError(operation string) *DBError {
	return &DBError{
		Code:    ErrCodeNotConnected,
		Message: fmt.Sprintf("%s requires an active connection: call Connect first", operation),
	}
}

// NewQueryError creates a statement execution failure carrying the offending
// query text and parameters alongside the original cause.
func NewQueryError(message string, err error, query string, params []any) *DBError {
	return &DBError{Code: ErrCodeQueryFailed, Message: message, Err: err, Query: query, Params: params}
}

// NewDatabaseError creates a transaction protocol violation error.
func NewDatabaseError(message string) *DBError {
	return &DBError{Code: ErrCodeTransactionProtocol, Message: message}
}

// NewConfigurationError creates a factory-time configuration error. The
// message must name the missing or invalid setting.
func NewConfigurationError(message string) *DBError {
	return &DBError{Code: ErrCodeConfigurationInvalid, Message: message}
}

// CodeOf extracts the taxonomy code from err, or the empty string when err
// is not a DBError.
func CodeOf(err error) ErrorCode {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	return ""
}

// IsConnectionError reports whether err is a connect-time failure.
func IsConnectionError(err error) bool {
	return CodeOf(err) == ErrCodeConnectionFailed
}

// IsNotConnected reports whether err indicates a missing connection.
func IsNotConnected(err error) bool {
	return CodeOf(err) == ErrCodeNotConnected
}

// IsQueryError reports whether err is a statement execution failure.
func IsQueryError(err error) bool {
	return CodeOf(err) == ErrCodeQueryFailed
}

// IsDatabaseError reports whether err is a transaction protocol violation.
func IsDatabaseError(err error) bool {
	return CodeOf(err) == ErrCodeTransactionProtocol
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	return CodeOf(err) == ErrCodeConfigurationInvalid
}
