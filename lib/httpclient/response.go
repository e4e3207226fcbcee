package httpclient

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
)

// Timings records when the phases of an exchange happened.
type Timings struct {
	Started    time.Time
	Connected  time.Time
	Ended      time.Time
	Connecting time.Duration
	Total      time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	// Version is the protocol version, such as "1.1".
	Version    string
	StatusCode int
	// StatusText is the reason phrase, such as "Not Found".
	StatusText string
	Header     http.Header
	Body       []byte

	LocalAddr  net.Addr
	RemoteAddr net.Addr
	TLS        *tls.ConnectionState
	Timings    Timings
	// Reused is true when the exchange ran on a connection that had served earlier requests.
	Reused bool

	// Request is the request that produced this response.
	Request *http.Request
}

func newResponse(resp *http.Response, body []byte) *Response {
	return &Response{
		Version:    fmt.Sprintf("%d.%d", resp.ProtoMajor, resp.ProtoMinor),
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Header:     resp.Header,
		Body:       body,
		Request:    resp.Request,
	}
}

// statusText extracts the reason phrase from the status line.
func statusText(resp *http.Response) string {
	prefix := fmt.Sprintf("%d ", resp.StatusCode)
	if text, ok := strings.CutPrefix(resp.Status, prefix); ok {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// Success reports a 2xx status.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Redirect reports a 3xx status.
func (r *Response) Redirect() bool {
	return r.StatusCode >= 300 && r.StatusCode <= 399
}

// ClientError reports a 4xx status.
func (r *Response) ClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode <= 499
}

// ServerError reports a 5xx status.
func (r *Response) ServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode <= 599
}

// Unauthenticated reports a 401 status.
func (r *Response) Unauthenticated() bool {
	return r.StatusCode == http.StatusUnauthorized
}

// Unauthorized reports a 403 status.
func (r *Response) Unauthorized() bool {
	return r.StatusCode == http.StatusForbidden
}

// NotFound reports a 404 status.
func (r *Response) NotFound() bool {
	return r.StatusCode == http.StatusNotFound
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding JSON response: %w", err)
	}
	return nil
}

// IsJSON reports whether the Content-Type is JSON.
func (r *Response) IsJSON() bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// IsXML reports whether the Content-Type is XML.
func (r *Response) IsXML() bool {
	return strings.Contains(r.Header.Get("Content-Type"), "/xml")
}

// HTTPS reports whether the exchange used TLS.
func (r *Response) HTTPS() bool {
	return r.TLS != nil
}

// Raise returns a *ResponseError for 4xx and 5xx statuses and nil otherwise.
func (r *Response) Raise() error {
	var kind error
	var message string

	switch {
	case r.StatusCode == http.StatusUnauthorized:
		kind, message = apperrors.ErrAuthentication, "Unauthenticated"
	case r.StatusCode == http.StatusForbidden:
		kind, message = apperrors.ErrAuthorization, "Forbidden"
	case r.StatusCode == http.StatusNotFound:
		kind, message = apperrors.ErrNotFound, "Not Found"
	case r.StatusCode == http.StatusBadGateway:
		kind, message = apperrors.ErrBadGateway, "Bad Gateway"
	case r.StatusCode == http.StatusServiceUnavailable:
		kind, message = apperrors.ErrServiceUnavailable, "Service Unavailable"
	case r.StatusCode == http.StatusGatewayTimeout:
		kind, message = apperrors.ErrGatewayTimeout, "Gateway Timeout"
	case r.ClientError():
		kind, message = apperrors.ErrClientError, "Client Error"
	case r.ServerError():
		kind, message = apperrors.ErrServerError, "Server Error"
	default:
		return nil
	}

	return &ResponseError{Message: message, Response: r, kind: kind}
}

func (r *Response) String() string {
	return fmt.Sprintf("HTTP/%s %d %s", r.Version, r.StatusCode, r.StatusText)
}

// ResponseError reports an error status. It matches the status family
// sentinels of the errors package with errors.Is.
type ResponseError struct {
	Message  string
	Response *Response
	kind     error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Message, e.Response.StatusCode, e.Response.StatusText)
}

func (e *ResponseError) Unwrap() error {
	return e.kind
}
