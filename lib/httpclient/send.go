package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
	"github.com/go-i2p/minthttp/lib/metrics"
	"github.com/go-i2p/minthttp/lib/pool"
	"github.com/go-i2p/minthttp/lib/transport"
)

// Send sends the request with the given method to rawURL and reads the
// whole response. Error statuses are not errors; use Response.Raise.
func (r *Request) Send(ctx context.Context, method, rawURL string) (*Response, error) {
	if r.err != nil {
		return nil, r.err
	}

	u, err := r.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	req, body, err := r.build(ctx, method, u)
	if err != nil {
		return nil, err
	}

	host, port := u.Hostname(), defaultPort(u)
	opts := r.opts
	opts.UseTLS = u.Scheme == "https"

	ex := &Exchange{
		Request:     req,
		RequestBody: body,
		Options:     opts.WithDefaults(),
	}
	ex.Timings.Started = time.Now()

	metrics.RequestsTotal.Inc()
	timer := metrics.NewTimer(metrics.RequestDuration)

	resp, err := r.roundTrip(ctx, ex, host, port, opts)
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	ex.Timings.Ended = time.Now()
	ex.Timings.Total = ex.Timings.Ended.Sub(ex.Timings.Started)
	timer.ObserveDuration()

	if err != nil {
		metrics.RequestErrorsTotal.Inc()
		ex.Err = fmt.Errorf("%s %s: %w", method, redactURL(u), err)
		r.log(ex)
		return nil, ex.Err
	}

	resp.Timings = ex.Timings
	ex.Response = resp
	switch {
	case resp.ClientError():
		metrics.ResponsesClientErr.Inc()
	case resp.ServerError():
		metrics.ResponsesServerErr.Inc()
	}
	r.log(ex)
	return resp, nil
}

func (r *Request) log(ex *Exchange) {
	if r.logger != nil {
		r.logger.Log(ex)
	}
}

// build creates the wire request.
func (r *Request) build(ctx context.Context, method string, u *url.URL) (*http.Request, []byte, error) {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil, nil, fmt.Errorf("unsupported HTTP method %q: %w", method, apperrors.ErrInvalidArgument)
	}

	body, contentType, err := r.encodeBody(method)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	if len(body) == 0 {
		req.Body = http.NoBody
		req.ContentLength = 0
	}

	req.Header = r.header.Clone()
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if len(body) == 0 && (method == http.MethodGet || method == http.MethodHead) {
		req.Header.Del("Content-Type")
	}
	if r.pool == nil {
		req.Close = true
	}
	return req, body, nil
}

// roundTrip obtains a connection, writes the request and reads the response.
func (r *Request) roundTrip(ctx context.Context, ex *Exchange, host string, port int, opts transport.Options) (*Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, net.JoinHostPort(host, strconv.Itoa(port))); err != nil {
			return nil, err
		}
	}

	conn, done, err := r.connection(ctx, host, port, opts)
	if err != nil {
		return nil, err
	}

	reusable := false
	defer func() { done(reusable) }()

	reused := conn.Started()
	if err := conn.Start(ctx); err != nil {
		return nil, err
	}
	ex.Timings.Connected = time.Now()
	ex.Timings.Connecting = ex.Timings.Connected.Sub(ex.Timings.Started)
	if state, ok := conn.TLSState(); ok {
		ex.TLS = &state
	}

	// Cancelling ctx interrupts a blocked write or read.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	req := ex.Request
	if conn.ForwardProxy() {
		if auth := transport.ProxyAuthorization(opts); auth != "" {
			req.Header.Set("Proxy-Authorization", auth)
		}
	}

	o := conn.Options()
	if err := conn.SetWriteDeadline(time.Now().Add(o.WriteTimeout)); err != nil {
		return nil, transport.Classify(err, transport.PhaseWrite)
	}
	write := req.Write
	if conn.ForwardProxy() {
		write = req.WriteProxy
	}
	if err := write(conn); err != nil {
		return nil, transport.Classify(err, transport.PhaseWrite)
	}
	conn.SetWriteDeadline(time.Time{})

	if err := conn.SetReadDeadline(time.Now().Add(o.ReadTimeout)); err != nil {
		return nil, transport.Classify(err, transport.PhaseRead)
	}
	httpResp, err := http.ReadResponse(conn.Reader(), req)
	if err != nil {
		return nil, transport.Classify(err, transport.PhaseRead)
	}
	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		return nil, transport.Classify(err, transport.PhaseRead)
	}
	conn.SetReadDeadline(time.Time{})

	resp := newResponse(httpResp, body)
	resp.LocalAddr = conn.LocalAddr()
	resp.RemoteAddr = conn.RemoteAddr()
	resp.TLS = ex.TLS
	resp.Reused = reused

	reusable = !httpResp.Close && !req.Close
	return resp, nil
}

// connection returns a connection for the exchange and the function that
// gives it back. done(true) returns it to the pool for reuse.
func (r *Request) connection(ctx context.Context, host string, port int, opts transport.Options) (*transport.Conn, func(bool), error) {
	if r.pool == nil {
		if err := opts.Validate(); err != nil {
			return nil, nil, err
		}
		f := r.factory
		if f == nil {
			f = transport.NewFactory()
		}
		conn := f.New(host, port, opts)
		return conn, func(bool) { conn.Close() }, nil
	}

	h, err := r.pool.Acquire(ctx, host, port, opts)
	if err != nil {
		return nil, nil, err
	}
	conn, ok := h.(*transport.Conn)
	if !ok {
		r.pool.Discard(h)
		return nil, nil, fmt.Errorf("pool handle %T is not a transport connection: %w", h, apperrors.ErrInternal)
	}

	p := r.pool
	return conn, func(reusable bool) { giveBack(p, h, reusable) }, nil
}

func giveBack(p *pool.Pool, h pool.Handle, reusable bool) {
	if reusable {
		p.Release(h)
		return
	}
	p.Discard(h)
}

func defaultPort(u *url.URL) int {
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

// redactURL drops credentials and the query from u for error messages.
func redactURL(u *url.URL) string {
	c := *u
	c.User = nil
	c.RawQuery = ""
	c.Fragment = ""
	return c.String()
}
