package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
)

// keepAlivePeriod is the TCP keep-alive interval for dialed sockets.
const keepAlivePeriod = 30 * time.Second

// stream is the result of a successful dial.
type stream struct {
	// conn carries application bytes, TLS-wrapped when requested.
	conn net.Conn
	// raw is the socket under conn, used for liveness probes.
	raw net.Conn
	// forward is true when requests go to an HTTP proxy in absolute form.
	forward bool
}

// DialFunc opens a TCP connection. It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// contextDialer adapts a DialFunc to proxy.ContextDialer.
type contextDialer DialFunc

func (d contextDialer) Dial(network, address string) (net.Conn, error) {
	return d(context.Background(), network, address)
}

func (d contextDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d(ctx, network, address)
}

// dial establishes a stream to host:port according to opts.
func dial(ctx context.Context, dialTCP DialFunc, host string, port int, opts Options) (*stream, error) {
	target := net.JoinHostPort(host, strconv.Itoa(port))

	openCtx, cancel := context.WithTimeout(ctx, opts.OpenTimeout)
	defer cancel()

	s := &stream{}
	var err error

	switch {
	case !opts.HasProxy():
		s.raw, err = dialTCP(openCtx, "tcp", target)

	case opts.ProxyType == ProxySOCKS5:
		s.raw, err = dialSOCKS5(openCtx, dialTCP, target, opts)

	default:
		s.raw, err = dialTCP(openCtx, "tcp", opts.ProxyHostPort())
		if err != nil {
			break
		}
		if !opts.UseTLS {
			s.forward = true
			break
		}
		if err = connectTunnel(openCtx, s.raw, target, opts); err != nil {
			s.raw.Close()
		}
	}
	if err != nil {
		return nil, Classify(err, PhaseOpen)
	}

	s.conn = s.raw
	if opts.UseTLS {
		tlsConn, err := handshake(ctx, s.raw, host, opts)
		if err != nil {
			s.raw.Close()
			return nil, err
		}
		s.conn = tlsConn
	}

	return s, nil
}

func dialSOCKS5(ctx context.Context, dialTCP DialFunc, target string, opts Options) (net.Conn, error) {
	var auth *proxy.Auth
	if opts.ProxyUser != "" {
		auth = &proxy.Auth{User: opts.ProxyUser, Password: opts.ProxyPass}
	}

	d, err := proxy.SOCKS5("tcp", opts.ProxyHostPort(), auth, contextDialer(dialTCP))
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer does not support contexts: %w", apperrors.ErrInternal)
	}
	return cd.DialContext(ctx, "tcp", target)
}

// connectTunnel asks an HTTP proxy to open a tunnel to target.
func connectTunnel(ctx context.Context, conn net.Conn, target string, opts Options) error {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: target},
		Host:   target,
		Header: make(http.Header),
	}
	if auth := ProxyAuthorization(opts); auth != "" {
		req.Header.Set("Proxy-Authorization", auth)
	}
	if err := req.Write(conn); err != nil {
		return fmt.Errorf("writing CONNECT: %w", err)
	}

	// The proxy sends nothing after its response until the tunnel is used,
	// so reading through a bufio.Reader cannot swallow tunneled bytes.
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		return fmt.Errorf("reading CONNECT response: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy CONNECT %s: %s: %w", target, resp.Status, apperrors.ErrConnectionRefused)
	}
	return nil
}

// ProxyAuthorization returns the Proxy-Authorization header value for opts,
// or an empty string when no proxy credentials are configured.
func ProxyAuthorization(opts Options) string {
	if opts.ProxyUser == "" {
		return ""
	}
	cred := opts.ProxyUser + ":" + opts.ProxyPass
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(cred))
}

func handshake(ctx context.Context, raw net.Conn, host string, opts Options) (*tls.Conn, error) {
	cfg, err := opts.tlsConfig(host)
	if err != nil {
		return nil, err
	}

	hctx, cancel := context.WithTimeout(ctx, opts.TLSTimeout)
	defer cancel()

	tlsConn := tls.Client(raw, cfg)
	if err := tlsConn.HandshakeContext(hctx); err != nil {
		return nil, Classify(err, PhaseTLS)
	}
	return tlsConn, nil
}
