package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
)

// ErrConnClosed is returned when using a Conn after Close.
var ErrConnClosed = fmt.Errorf("transport: conn: %w", apperrors.ErrClosed)

// errUnsolicitedData marks bytes that arrived on an idle connection.
var errUnsolicitedData = errors.New("unsolicited data on idle connection")

// Phase identifies where in an exchange an error happened.
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseTLS
	PhaseWrite
	PhaseRead
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseTLS:
		return "tls"
	case PhaseWrite:
		return "write"
	case PhaseRead:
		return "read"
	default:
		return "unknown"
	}
}

func (p Phase) timeoutErr() error {
	switch p {
	case PhaseWrite:
		return apperrors.ErrWriteTimeout
	case PhaseRead:
		return apperrors.ErrReadTimeout
	default:
		return apperrors.ErrOpenTimeout
	}
}

// Classify maps a network error into the toolkit's error taxonomy.
// The original error stays in the chain. Errors that already belong to the
// taxonomy, nil and context cancellation are returned unchanged.
func Classify(err error, phase Phase) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrConnection) || errors.Is(err, apperrors.ErrTimeout) ||
		errors.Is(err, context.Canceled) {
		return err
	}

	var (
		dnsErr     *net.DNSError
		netErr     net.Error
		verifyErr  *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
	)

	var sentinel error
	switch {
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		sentinel = apperrors.ErrNameResolution
	case errors.Is(err, syscall.ECONNREFUSED):
		sentinel = apperrors.ErrConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		sentinel = apperrors.ErrConnectionReset
	case errors.Is(err, syscall.ECONNABORTED):
		sentinel = apperrors.ErrConnectionAborted
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		sentinel = phase.timeoutErr()
	case errors.As(err, &verifyErr), errors.As(err, &unknownCA), errors.As(err, &hostErr),
		errors.As(err, &invalidErr), errors.As(err, &recordErr), errors.As(err, &alertErr):
		sentinel = apperrors.ErrTLS
	case phase == PhaseTLS:
		sentinel = apperrors.ErrTLS
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.EPIPE), errors.Is(err, net.ErrClosed):
		sentinel = apperrors.ErrConnectionIO
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		sentinel = apperrors.ErrConnection
	default:
		var opErr *net.OpError
		if !errors.As(err, &opErr) {
			return err
		}
		sentinel = apperrors.ErrConnection
	}

	return fmt.Errorf("%w: %w", sentinel, err)
}
