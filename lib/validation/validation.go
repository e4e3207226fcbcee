// Package validation provides reusable input validators for request
// building and transport options. Validators return nil on success and a
// *Result naming the offending field otherwise. Every failure matches
// errors.ErrInvalidArgument.
package validation

import (
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
)

// Common validation errors. These are sentinel errors that can be checked with errors.Is().
var (
	// ErrRequired indicates a required field is missing or empty.
	ErrRequired = fmt.Errorf("field is required: %w", apperrors.ErrInvalidArgument)

	// ErrInvalidFormat indicates a value doesn't match the expected format.
	ErrInvalidFormat = fmt.Errorf("invalid format: %w", apperrors.ErrInvalidArgument)

	// ErrOutOfRange indicates a numeric value is outside the allowed range.
	ErrOutOfRange = fmt.Errorf("value out of range: %w", apperrors.ErrInvalidArgument)
)

// Result represents a validation result with field context.
type Result struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (r *Result) Error() string {
	if r.Field != "" {
		return fmt.Sprintf("%s: %s", r.Field, r.Message)
	}
	return r.Message
}

// Unwrap returns the underlying error for errors.Is() support.
func (r *Result) Unwrap() error {
	return r.Err
}

// NewResult creates a validation result.
func NewResult(field, message string, err error) *Result {
	return &Result{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// Required validates that a string is non-empty.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewResult(field, "is required", ErrRequired)
	}
	return nil
}

// Port validates a network port number.
func Port(field string, value int) error {
	if value < 1 || value > 65535 {
		return NewResult(field, "must be between 1 and 65535", ErrOutOfRange)
	}
	return nil
}

// OptionalPort accepts zero, meaning a default applies, or a valid port.
func OptionalPort(field string, value int) error {
	if value == 0 {
		return nil
	}
	return Port(field, value)
}

// Host validates a host name or IP address literal.
func Host(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if strings.ContainsAny(value, " \t\r\n/?#@") {
		return NewResult(field, "must be a host name or IP address", ErrInvalidFormat)
	}
	if strings.Contains(value, ":") && net.ParseIP(value) == nil {
		return NewResult(field, "must not contain a port", ErrInvalidFormat)
	}
	return nil
}

// HostPort validates a host:port address.
func HostPort(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}

	_, _, err := net.SplitHostPort(value)
	if err != nil {
		return NewResult(field, "must be in host:port format", ErrInvalidFormat)
	}

	return nil
}

// Timeout validates that a timeout is not negative. Zero means the default.
func Timeout(field string, value time.Duration) error {
	if value < 0 {
		return NewResult(field, "must not be negative", ErrOutOfRange)
	}
	return nil
}

// HeaderName validates an HTTP header field name.
func HeaderName(field, value string) error {
	if !httpguts.ValidHeaderFieldName(value) {
		return NewResult(field, fmt.Sprintf("invalid header name %q", value), ErrInvalidFormat)
	}
	return nil
}

// HeaderValue validates an HTTP header field value. It rejects control
// characters, which would allow header injection.
func HeaderValue(field, value string) error {
	if !httpguts.ValidHeaderFieldValue(value) {
		return NewResult(field, "header value contains invalid characters", ErrInvalidFormat)
	}
	return nil
}

// All runs multiple validation functions and returns the first error.
func All(validators ...func() error) error {
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

// Errors collects multiple validation errors.
type Errors []error

// Add appends an error to the collection (nil errors are ignored).
func (e *Errors) Add(err error) {
	if err != nil {
		*e = append(*e, err)
	}
}

// HasErrors returns true if any errors were collected.
func (e Errors) HasErrors() bool {
	return len(e) > 0
}

// Error returns all errors as a single error message.
func (e Errors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("multiple validation errors: ")
	for i, err := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e Errors) Unwrap() []error {
	return e
}

// Err returns nil when nothing was collected and e otherwise.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// First returns the first error, or nil if none.
func (e Errors) First() error {
	if len(e) == 0 {
		return nil
	}
	return e[0]
}
