// Package transport opens outbound HTTP/1.1 connections for the pool.
//
// A Conn is created lazily by a Factory and dials on Start, either directly,
// through an HTTP proxy (CONNECT tunnel or forward mode) or through SOCKS5,
// optionally wrapping the stream in TLS. Fingerprint derives the key under
// which compatible connections are pooled.
package transport

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
	"github.com/go-i2p/minthttp/lib/validation"
)

// Default connection parameters.
const (
	DefaultOpenTimeout  = 5 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultReadTimeout  = 20 * time.Second
	DefaultTLSTimeout   = 5 * time.Second
	DefaultProxyPort    = 3128
)

// ProxyType selects how a proxy is spoken to.
type ProxyType string

const (
	// ProxyHTTP tunnels TLS with CONNECT and forwards plain HTTP in absolute form.
	ProxyHTTP ProxyType = "http"
	// ProxySOCKS5 dials through a SOCKS5 proxy.
	ProxySOCKS5 ProxyType = "socks5"
)

// VerifyMode controls server certificate verification.
type VerifyMode int

const (
	// VerifyPeer verifies the server certificate chain.
	VerifyPeer VerifyMode = iota
	// VerifyNone accepts any server certificate.
	VerifyNone
)

func (m VerifyMode) String() string {
	switch m {
	case VerifyPeer:
		return "peer"
	case VerifyNone:
		return "none"
	default:
		return "unknown"
	}
}

// Options holds every setting that shapes an established connection.
// The zero value is usable; WithDefaults fills unset timeouts.
type Options struct {
	// Proxy settings. ProxyAddress empty means a direct connection.
	ProxyType    ProxyType
	ProxyAddress string
	ProxyPort    int
	ProxyUser    string
	ProxyPass    string

	// Per-phase timeouts.
	OpenTimeout  time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	// TLS settings.
	UseTLS     bool
	TLSTimeout time.Duration
	// CAFile is a PEM bundle of trusted roots. Ignored when CAPool is set.
	CAFile string
	// CAPool is an in-memory root pool; CAName identifies it for pooling.
	CAPool *x509.CertPool
	CAName string
	// Certificate and Key form the client certificate.
	Certificate *x509.Certificate
	Key         crypto.PrivateKey
	VerifyMode  VerifyMode
	// SkipHostnameVerify verifies the chain but not the server name.
	SkipHostnameVerify bool
	MinVersion         uint16
	MaxVersion         uint16
}

// WithDefaults returns a copy of o with unset fields set to their defaults.
func (o Options) WithDefaults() Options {
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = DefaultOpenTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.TLSTimeout <= 0 {
		o.TLSTimeout = DefaultTLSTimeout
	}
	if o.HasProxy() {
		if o.ProxyType == "" {
			o.ProxyType = ProxyHTTP
		}
		if o.ProxyPort <= 0 {
			o.ProxyPort = DefaultProxyPort
		}
	}
	return o
}

// HasProxy reports whether a proxy is configured.
func (o Options) HasProxy() bool {
	return o.ProxyAddress != ""
}

// ProxyHostPort returns the proxy address as host:port.
func (o Options) ProxyHostPort() string {
	return net.JoinHostPort(o.ProxyAddress, strconv.Itoa(o.ProxyPort))
}

// Validate checks option combinations that can never produce a connection.
func (o Options) Validate() error {
	var errs validation.Errors
	errs.Add(validation.Timeout("open_timeout", o.OpenTimeout))
	errs.Add(validation.Timeout("write_timeout", o.WriteTimeout))
	errs.Add(validation.Timeout("read_timeout", o.ReadTimeout))
	errs.Add(validation.Timeout("tls_timeout", o.TLSTimeout))
	if o.HasProxy() {
		errs.Add(validation.Host("proxy_address", o.ProxyAddress))
		errs.Add(validation.OptionalPort("proxy_port", o.ProxyPort))
	}
	if err := errs.Err(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	if o.HasProxy() && o.ProxyType != "" && o.ProxyType != ProxyHTTP && o.ProxyType != ProxySOCKS5 {
		return fmt.Errorf("transport: unsupported proxy type %q: %w", o.ProxyType, apperrors.ErrInvalidArgument)
	}
	if (o.Certificate == nil) != (o.Key == nil) {
		return fmt.Errorf("transport: client certificate and key must be set together: %w", apperrors.ErrInvalidArgument)
	}
	if o.VerifyMode != VerifyPeer && o.VerifyMode != VerifyNone {
		return fmt.Errorf("transport: unknown verify mode %d: %w", o.VerifyMode, apperrors.ErrInvalidArgument)
	}
	return nil
}

// tlsConfig builds the client TLS configuration for host.
func (o Options) tlsConfig(host string) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: host,
		MinVersion: o.MinVersion,
		MaxVersion: o.MaxVersion,
		NextProtos: []string{"http/1.1"},
	}

	roots := o.CAPool
	if roots == nil && o.CAFile != "" {
		pem, err := os.ReadFile(o.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in CA file %s: %w", o.CAFile, apperrors.ErrConfiguration)
		}
	}
	cfg.RootCAs = roots

	if o.Certificate != nil {
		cfg.Certificates = []tls.Certificate{{
			Certificate: [][]byte{o.Certificate.Raw},
			PrivateKey:  o.Key,
			Leaf:        o.Certificate,
		}}
	}

	switch {
	case o.VerifyMode == VerifyNone:
		cfg.InsecureSkipVerify = true
	case o.SkipHostnameVerify:
		// Chain verification without the name check.
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			return verifyChain(cs, roots)
		}
	}

	return cfg, nil
}

// verifyChain verifies the peer chain against roots without checking the server name.
func verifyChain(cs tls.ConnectionState, roots *x509.CertPool) error {
	if len(cs.PeerCertificates) == 0 {
		return fmt.Errorf("no peer certificates: %w", apperrors.ErrTLS)
	}
	intermediates := x509.NewCertPool()
	for _, cert := range cs.PeerCertificates[1:] {
		intermediates.AddCert(cert)
	}
	_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
	})
	return err
}
