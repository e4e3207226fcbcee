package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-i2p/minthttp/lib/metrics"
)

// probeWindow bounds the fallback liveness peek on connections without a
// socket descriptor (SOCKS5 streams, non-unix platforms).
const probeWindow = time.Millisecond

// readBufferSize is the size of the buffered reader wrapping each connection.
const readBufferSize = 32 * 1024

var _ net.Conn = (*Conn)(nil)

// Conn is one outbound connection owned by the pool.
// It is created idle and dials on the first call to Start.
type Conn struct {
	id      uuid.UUID
	host    string
	port    int
	opts    Options
	dialTCP DialFunc
	created time.Time

	mu          sync.Mutex
	conn        net.Conn
	raw         net.Conn
	reader      *bufio.Reader
	forward     bool
	started     bool
	closed      bool
	connectTime time.Duration
}

// ID returns the connection's identity.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Host returns the destination host.
func (c *Conn) Host() string {
	return c.host
}

// Port returns the destination port.
func (c *Conn) Port() int {
	return c.port
}

// Options returns the options the connection was created with, defaults applied.
func (c *Conn) Options() Options {
	return c.opts
}

// Created returns when the handle was created.
func (c *Conn) Created() time.Time {
	return c.created
}

// Start dials the connection if it is not yet established.
func (c *Conn) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	if c.started {
		return nil
	}

	timer := metrics.NewTimer(metrics.ConnectDuration)
	s, err := dial(ctx, c.dialTCP, c.host, c.port, c.opts)
	if err != nil {
		log.WithField("id", c.id).WithField("host", c.host).WithField("port", c.port).
			WithError(err).Debug("Dial failed")
		return err
	}
	c.connectTime = timer.ObserveDuration()
	metrics.ConnectionsDialed.Inc()

	c.conn = s.conn
	c.raw = s.raw
	c.forward = s.forward
	c.reader = bufio.NewReaderSize(s.conn, readBufferSize)
	c.started = true

	log.WithField("id", c.id).
		WithField("local", c.conn.LocalAddr().String()).
		WithField("remote", c.conn.RemoteAddr().String()).
		WithField("tls", c.opts.UseTLS).
		WithField("duration", c.connectTime).
		Debug("Connection established")
	return nil
}

// Started reports whether the connection has been dialed.
func (c *Conn) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Healthy reports whether the connection can carry another request.
// It never blocks on the network for longer than probeWindow.
func (c *Conn) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if !c.started {
		return true
	}

	err := c.probeLocked()
	if err != nil {
		metrics.ProbeFailuresTotal.Inc()
		log.WithField("id", c.id).WithError(err).Debug("Liveness probe failed")
		return false
	}
	return true
}

func (c *Conn) probeLocked() error {
	// Leftover bytes from the previous exchange mean the stream is out of sync.
	if c.reader.Buffered() > 0 {
		return errUnsolicitedData
	}

	supported, err := probeSocket(c.raw)
	if !supported {
		return c.peekLocked()
	}
	if errors.Is(err, errUnsolicitedData) && c.opts.UseTLS {
		// Pending bytes on a TLS socket may be session tickets or other
		// records that carry no application data.
		return c.peekLocked()
	}
	return err
}

// peekLocked waits up to probeWindow for data through the buffered reader.
// Any data read stays buffered.
func (c *Conn) peekLocked() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(probeWindow)); err != nil {
		return err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	_, err := c.reader.Peek(1)
	if err == nil {
		return errUnsolicitedData
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil
	}
	return err
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	log.WithField("id", c.id).Debug("Closing connection")
	return conn.Close()
}

// Reader returns the buffered reader over the connection.
// It is nil until Start succeeds.
func (c *Conn) Reader() *bufio.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reader
}

// Read reads through the buffered reader.
func (c *Conn) Read(p []byte) (int, error) {
	r := c.Reader()
	if r == nil {
		return 0, ErrConnClosed
	}
	return r.Read(p)
}

// Write writes to the connection.
func (c *Conn) Write(p []byte) (int, error) {
	conn := c.netConn()
	if conn == nil {
		return 0, ErrConnClosed
	}
	return conn.Write(p)
}

// SetDeadline sets the read and write deadlines.
func (c *Conn) SetDeadline(t time.Time) error {
	conn := c.netConn()
	if conn == nil {
		return ErrConnClosed
	}
	return conn.SetDeadline(t)
}

// SetReadDeadline sets the read deadline.
func (c *Conn) SetReadDeadline(t time.Time) error {
	conn := c.netConn()
	if conn == nil {
		return ErrConnClosed
	}
	return conn.SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	conn := c.netConn()
	if conn == nil {
		return ErrConnClosed
	}
	return conn.SetWriteDeadline(t)
}

// LocalAddr returns the local address, or nil before Start.
func (c *Conn) LocalAddr() net.Addr {
	if conn := c.netConn(); conn != nil {
		return conn.LocalAddr()
	}
	return nil
}

// RemoteAddr returns the remote address, or nil before Start.
func (c *Conn) RemoteAddr() net.Addr {
	if conn := c.netConn(); conn != nil {
		return conn.RemoteAddr()
	}
	return nil
}

// TLSState returns the TLS connection state, if the connection uses TLS.
func (c *Conn) TLSState() (tls.ConnectionState, bool) {
	tlsConn, ok := c.netConn().(*tls.Conn)
	if !ok {
		return tls.ConnectionState{}, false
	}
	return tlsConn.ConnectionState(), true
}

// ForwardProxy reports whether requests must be sent in absolute form to an HTTP proxy.
func (c *Conn) ForwardProxy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forward
}

// ConnectDuration returns how long Start took to establish the connection.
func (c *Conn) ConnectDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectTime
}

func (c *Conn) netConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.conn
}
