// Package errors provides structured error types for the minthttp client toolkit.
//
// This package provides:
//   - Sentinel errors for common error conditions
//   - The transport error taxonomy (refused, reset, resolution, TLS, timeouts)
//   - Response status errors (client/server error families)
//   - Pool errors (acquire timeout, invalid argument, closed pool)
//   - Error codes and wrapping with context preservation
package errors

import (
	"errors"
	"fmt"
)

// Error codes for categorizing errors.
const (
	CodeInternal        = 1000 // Internal error
	CodeInvalidArgument = 1001 // Invalid argument supplied by the caller
	CodeTimeout         = 1002 // Operation timeout
	CodeConnection      = 1003 // Connection error
	CodeClosed          = 1004 // Resource closed
	CodeState           = 1005 // Invalid state
	CodeClientError     = 1400 // HTTP 4xx
	CodeServerError     = 1500 // HTTP 5xx
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrInvalidArgument indicates the caller passed an unusable argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrClosed indicates a resource is closed.
	ErrClosed = errors.New("closed")

	// ErrInvalidState indicates an invalid state transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrConnection indicates a connection error.
	ErrConnection = errors.New("connection error")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")

	// ErrConfiguration indicates a configuration error.
	ErrConfiguration = errors.New("configuration error")

	// ErrResponse indicates the server answered with an error status.
	ErrResponse = errors.New("response error")
)

// Transport errors. Connection failures wrap ErrConnection, phase timeouts wrap ErrTimeout.
var (
	// ErrConnectionRefused indicates the peer refused the connection.
	ErrConnectionRefused = fmt.Errorf("connection refused: %w", ErrConnection)

	// ErrConnectionReset indicates the peer reset the connection.
	ErrConnectionReset = fmt.Errorf("connection reset: %w", ErrConnection)

	// ErrConnectionAborted indicates the connection was aborted.
	ErrConnectionAborted = fmt.Errorf("connection aborted: %w", ErrConnection)

	// ErrConnectionIO indicates an I/O failure on an established connection (EOF, broken pipe).
	ErrConnectionIO = fmt.Errorf("connection i/o: %w", ErrConnection)

	// ErrNameResolution indicates the host name could not be resolved.
	ErrNameResolution = fmt.Errorf("name resolution: %w", ErrConnection)

	// ErrTLS indicates a TLS handshake or verification failure.
	ErrTLS = fmt.Errorf("tls: %w", ErrConnection)

	// ErrOpenTimeout indicates the connection could not be opened in time.
	ErrOpenTimeout = fmt.Errorf("open: %w", ErrTimeout)

	// ErrReadTimeout indicates the response was not read in time.
	ErrReadTimeout = fmt.Errorf("read: %w", ErrTimeout)

	// ErrWriteTimeout indicates the request was not written in time.
	ErrWriteTimeout = fmt.Errorf("write: %w", ErrTimeout)
)

// Response status errors.
var (
	// ErrClientError indicates a 4xx response.
	ErrClientError = fmt.Errorf("client error: %w", ErrResponse)

	// ErrAuthentication indicates a 401 response.
	ErrAuthentication = fmt.Errorf("unauthenticated: %w", ErrClientError)

	// ErrAuthorization indicates a 403 response.
	ErrAuthorization = fmt.Errorf("forbidden: %w", ErrClientError)

	// ErrNotFound indicates a 404 response.
	ErrNotFound = fmt.Errorf("not found: %w", ErrClientError)

	// ErrServerError indicates a 5xx response.
	ErrServerError = fmt.Errorf("server error: %w", ErrResponse)

	// ErrBadGateway indicates a 502 response.
	ErrBadGateway = fmt.Errorf("bad gateway: %w", ErrServerError)

	// ErrServiceUnavailable indicates a 503 response.
	ErrServiceUnavailable = fmt.Errorf("service unavailable: %w", ErrServerError)

	// ErrGatewayTimeout indicates a 504 response.
	ErrGatewayTimeout = fmt.Errorf("gateway timeout: %w", ErrServerError)
)

// Pool errors
var (
	// ErrAcquireTimeout indicates no pooled connection could be obtained in time.
	ErrAcquireTimeout = fmt.Errorf("pool: acquire: %w", ErrTimeout)

	// ErrPoolClosed indicates the pool has been closed.
	ErrPoolClosed = fmt.Errorf("pool: %w", ErrClosed)

	// ErrHandleRequired indicates a nil handle was passed to the pool.
	ErrHandleRequired = fmt.Errorf("pool: handle is required: %w", ErrInvalidArgument)
)

// Error is a structured error with a code and safe message.
type Error struct {
	// Code is the error code for categorization
	Code int `json:"code"`
	// Message is a safe, user-facing error message
	Message string `json:"message"`
	// Err is the underlying error
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// SafeMessage returns the message without the underlying error detail.
func (e *Error) SafeMessage() string {
	return e.Message
}

// New creates a new structured error with the given code and message.
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(code int, message string, err error) *Error {
	if err != nil {
		log.WithField("code", code).WithError(err).Debug("wrapping error")
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FromSentinel creates a structured error from a sentinel error.
// It assigns an error code based on the sentinel family.
func FromSentinel(err error) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    codeFromError(err),
		Message: err.Error(),
		Err:     err,
	}
}

// codeFromError maps sentinel errors to error codes.
func codeFromError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrConnection):
		return CodeConnection
	case errors.Is(err, ErrClosed):
		return CodeClosed
	case errors.Is(err, ErrInvalidState):
		return CodeState
	case errors.Is(err, ErrClientError):
		return CodeClientError
	case errors.Is(err, ErrServerError):
		return CodeServerError
	default:
		return CodeInternal
	}
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsConnection returns true if the error indicates a connection failure.
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsInvalidArgument returns true if the error indicates an invalid argument.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsClosed returns true if the error indicates a resource is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsResponse returns true if the error came from an error response status.
func IsResponse(err error) bool {
	return errors.Is(err, ErrResponse)
}

// Join combines multiple errors into a single error.
// Returns nil if all errors are nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target,
// and if so, sets target to that error value and returns true.
func As(err error, target any) bool {
	return errors.As(err, target)
}
