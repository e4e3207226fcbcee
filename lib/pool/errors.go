package pool

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
)

var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = apperrors.ErrPoolClosed
	// ErrAcquireTimeout matches every *AcquireTimeoutError.
	ErrAcquireTimeout = apperrors.ErrAcquireTimeout
	// ErrHandleRequired is returned when Release or Discard get a nil handle.
	ErrHandleRequired = apperrors.ErrHandleRequired
)

// AcquireTimeoutError is returned when no connection could be acquired
// within the pool's AcquireTimeout.
type AcquireTimeoutError struct {
	Timeout time.Duration
}

func (e *AcquireTimeoutError) Error() string {
	return fmt.Sprintf("pool: cannot acquire a connection after %v", e.Timeout)
}

// Unwrap lets errors.Is match ErrAcquireTimeout and errors.ErrTimeout.
func (e *AcquireTimeoutError) Unwrap() error {
	return ErrAcquireTimeout
}

// DuplicateHandleError is the panic value raised when a factory returns a
// handle whose identity is already pooled.
type DuplicateHandleError struct {
	ID uuid.UUID
}

func (e *DuplicateHandleError) Error() string {
	return fmt.Sprintf("pool: handle %s already exists in the pool", e.ID)
}

func (e *DuplicateHandleError) Unwrap() error {
	return apperrors.ErrInvalidState
}
