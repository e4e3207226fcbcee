// Package httpclient is a fluent HTTP/1.1 client built on the connection pool.
//
// A Request collects headers, query parameters, body, timeouts, TLS and proxy
// settings, then sends itself over a pooled or one-off connection:
//
//	p := pool.New(nil, pool.DefaultConfig())
//	defer p.Close()
//
//	resp, err := httpclient.NewRequest().
//	    UsePool(p).
//	    BaseURL("https://api.example.com").
//	    Bearer(token).
//	    AcceptJSON().
//	    Get(ctx, "/users", url.Values{"page": {"2"}})
package httpclient

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
	"github.com/go-i2p/minthttp/lib/pool"
	"github.com/go-i2p/minthttp/lib/ratelimit"
	"github.com/go-i2p/minthttp/lib/transport"
	"github.com/go-i2p/minthttp/lib/validation"
)

// DefaultUserAgent is sent unless the caller sets its own User-Agent.
const DefaultUserAgent = "Mint Http"

// BodyType selects how a request body is encoded.
type BodyType int

const (
	// BodyNone sends no body.
	BodyNone BodyType = iota
	// BodyRaw sends the body as given.
	BodyRaw
	// BodyJSON encodes the body as JSON.
	BodyJSON
	// BodyForm encodes the body as application/x-www-form-urlencoded.
	BodyForm
	// BodyMultipart encodes fields and files as multipart/form-data.
	BodyMultipart
)

// file is one multipart file part.
type file struct {
	field       string
	reader      io.Reader
	filename    string
	contentType string
}

// Request is a reusable request builder. It is not safe for concurrent use.
type Request struct {
	pool    *pool.Pool
	factory *transport.Factory
	logger  *RequestLogger
	limiter *ratelimit.KeyedLimiter

	baseURL  *url.URL
	header   http.Header
	query    url.Values
	bodyType BodyType
	body     any
	files    []file
	opts     transport.Options

	err error
}

// NewRequest returns a request with the default User-Agent, JSON body
// encoding and default timeouts.
func NewRequest() *Request {
	r := &Request{
		header: make(http.Header),
		query:  make(url.Values),
		opts: transport.Options{
			OpenTimeout:  transport.DefaultOpenTimeout,
			WriteTimeout: transport.DefaultWriteTimeout,
			ReadTimeout:  transport.DefaultReadTimeout,
		},
	}
	r.Header("User-Agent", DefaultUserAgent)
	return r.AsJSON()
}

// UsePool sends requests over connections from p and keeps them alive.
func (r *Request) UsePool(p *pool.Pool) *Request {
	r.pool = p
	return r.Header("Connection", "keep-alive")
}

// UseFactory sets the factory for one-off connections when no pool is used.
func (r *Request) UseFactory(f *transport.Factory) *Request {
	r.factory = f
	return r
}

// UseLogger logs every exchange with l.
func (r *Request) UseLogger(l *RequestLogger) *Request {
	r.logger = l
	return r
}

// UseLimiter paces requests per destination host and port with l.
func (r *Request) UseLimiter(l *ratelimit.KeyedLimiter) *Request {
	r.limiter = l
	return r
}

// Timeout sets the open, write and read timeouts.
func (r *Request) Timeout(open, write, read time.Duration) *Request {
	r.opts.OpenTimeout = open
	r.opts.WriteTimeout = write
	r.opts.ReadTimeout = read
	return r
}

// TLSTimeout sets the handshake timeout.
func (r *Request) TLSTimeout(d time.Duration) *Request {
	r.opts.TLSTimeout = d
	return r
}

// BaseURL resolves every request URL against base.
func (r *Request) BaseURL(base string) *Request {
	u, err := url.Parse(base)
	if err != nil {
		r.setErr(fmt.Errorf("invalid base URL %q: %w", base, apperrors.ErrInvalidArgument))
		return r
	}
	r.baseURL = u
	return r
}

// UseCA trusts the roots in the PEM file at path.
func (r *Request) UseCA(path string) *Request {
	r.opts.CAFile = path
	r.opts.CAPool = nil
	return r
}

// UseCAPool trusts the roots in pool. The name identifies the pool when
// connections are shared.
func (r *Request) UseCAPool(roots *x509.CertPool, name string) *Request {
	r.opts.CAPool = roots
	r.opts.CAName = name
	return r
}

// UseCert presents a client certificate.
func (r *Request) UseCert(cert *x509.Certificate, key crypto.PrivateKey) *Request {
	if cert == nil || key == nil {
		r.setErr(fmt.Errorf("client certificate and key are required: %w", apperrors.ErrInvalidArgument))
		return r
	}
	r.opts.Certificate = cert
	r.opts.Key = key
	return r
}

// SkipVerify disables server certificate verification.
func (r *Request) SkipVerify() *Request {
	r.opts.VerifyMode = transport.VerifyNone
	return r
}

// SkipHostnameVerify verifies the certificate chain but not the server name.
func (r *Request) SkipHostnameVerify() *Request {
	r.opts.SkipHostnameVerify = true
	return r
}

// TLSVersions bounds the negotiated TLS version. Zero leaves a bound unset.
func (r *Request) TLSVersions(minVersion, maxVersion uint16) *Request {
	r.opts.MinVersion = minVersion
	r.opts.MaxVersion = maxVersion
	return r
}

// ViaProxy sends requests through an HTTP proxy. A zero port means 3128.
func (r *Request) ViaProxy(address string, port int, user, pass string) *Request {
	return r.viaProxy(transport.ProxyHTTP, address, port, user, pass)
}

// ViaSOCKS5 sends requests through a SOCKS5 proxy.
func (r *Request) ViaSOCKS5(address string, port int, user, pass string) *Request {
	return r.viaProxy(transport.ProxySOCKS5, address, port, user, pass)
}

func (r *Request) viaProxy(kind transport.ProxyType, address string, port int, user, pass string) *Request {
	r.opts.ProxyType = kind
	r.opts.ProxyAddress = address
	r.opts.ProxyPort = port
	r.opts.ProxyUser = user
	r.opts.ProxyPass = pass
	return r
}

// Query sets a query parameter. An empty value removes it.
func (r *Request) Query(key, value string) *Request {
	if value == "" {
		r.query.Del(key)
		return r
	}
	r.query.Set(key, value)
	return r
}

// QueryValues merges values into the query, replacing existing keys.
func (r *Request) QueryValues(values url.Values) *Request {
	for k, vs := range values {
		r.query.Del(k)
		for _, v := range vs {
			r.query.Add(k, v)
		}
	}
	return r
}

// Header sets a header. An empty value removes it.
func (r *Request) Header(key, value string) *Request {
	err := validation.All(
		func() error { return validation.HeaderName("header", key) },
		func() error { return validation.HeaderValue(key, value) },
	)
	if err != nil {
		r.setErr(err)
		return r
	}
	if value == "" {
		r.header.Del(key)
		return r
	}
	r.header.Set(key, value)
	return r
}

// Headers returns a copy of the headers set so far.
func (r *Request) Headers() http.Header {
	return r.header.Clone()
}

// BasicAuth sets basic authorization.
func (r *Request) BasicAuth(username, password string) *Request {
	cred := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return r.Header("Authorization", "Basic "+cred)
}

// TokenAuth sets an Authorization header of the given scheme.
func (r *Request) TokenAuth(scheme, token string) *Request {
	return r.Header("Authorization", scheme+" "+token)
}

// Bearer sets bearer token authorization.
func (r *Request) Bearer(token string) *Request {
	return r.TokenAuth("Bearer", token)
}

// Accept sets the Accept header.
func (r *Request) Accept(mediaType string) *Request {
	return r.Header("Accept", mediaType)
}

// AcceptJSON accepts application/json.
func (r *Request) AcceptJSON() *Request {
	return r.Accept("application/json")
}

// ContentType sets the Content-Type header.
func (r *Request) ContentType(mediaType string) *Request {
	return r.Header("Content-Type", mediaType)
}

// WithBody sends raw as the body. It accepts []byte, string or io.Reader.
func (r *Request) WithBody(raw any) *Request {
	r.bodyType = BodyRaw
	r.body = raw
	return r.ContentType("")
}

// AsJSON encodes the body as JSON.
func (r *Request) AsJSON() *Request {
	r.bodyType = BodyJSON
	return r.ContentType("application/json")
}

// AsForm encodes the body as a URL-encoded form.
func (r *Request) AsForm() *Request {
	r.bodyType = BodyForm
	return r.ContentType("application/x-www-form-urlencoded")
}

// AsMultipart encodes the body fields and files as multipart/form-data.
func (r *Request) AsMultipart() *Request {
	r.bodyType = BodyMultipart
	return r.ContentType("multipart/form-data")
}

// WithFile adds a multipart file part. Empty filename and contentType take defaults.
func (r *Request) WithFile(field string, reader io.Reader, filename, contentType string) *Request {
	if reader == nil {
		r.setErr(fmt.Errorf("file %q has no reader: %w", field, apperrors.ErrInvalidArgument))
		return r
	}
	r.files = append(r.files, file{field: field, reader: reader, filename: filename, contentType: contentType})
	return r
}

// Get sends a GET request. params are merged into the query.
func (r *Request) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	return r.QueryValues(params).Send(ctx, http.MethodGet, rawURL)
}

// Head sends a HEAD request. params are merged into the query.
func (r *Request) Head(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	return r.QueryValues(params).Send(ctx, http.MethodHead, rawURL)
}

// Post sends a POST request. A non-nil data replaces the body.
func (r *Request) Post(ctx context.Context, rawURL string, data any) (*Response, error) {
	return r.withData(data).Send(ctx, http.MethodPost, rawURL)
}

// Put sends a PUT request. A non-nil data replaces the body.
func (r *Request) Put(ctx context.Context, rawURL string, data any) (*Response, error) {
	return r.withData(data).Send(ctx, http.MethodPut, rawURL)
}

// Patch sends a PATCH request. A non-nil data replaces the body.
func (r *Request) Patch(ctx context.Context, rawURL string, data any) (*Response, error) {
	return r.withData(data).Send(ctx, http.MethodPatch, rawURL)
}

// Delete sends a DELETE request. A non-nil data replaces the body.
func (r *Request) Delete(ctx context.Context, rawURL string, data any) (*Response, error) {
	return r.withData(data).Send(ctx, http.MethodDelete, rawURL)
}

func (r *Request) withData(data any) *Request {
	if data != nil {
		r.body = data
	}
	return r
}

func (r *Request) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Options returns the transport options the request would connect with.
func (r *Request) Options() transport.Options {
	return r.opts
}

// resolve parses rawURL against the base URL and applies the query.
func (r *Request) resolve(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, apperrors.ErrInvalidArgument)
	}
	if r.baseURL != nil {
		u = r.baseURL.ResolveReference(u)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("only HTTP and HTTPS URLs are allowed, got %q: %w", u.Scheme, apperrors.ErrInvalidArgument)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("URL %q has no host: %w", rawURL, apperrors.ErrInvalidArgument)
	}

	if len(r.query) > 0 {
		q := u.Query()
		for k, vs := range r.query {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}
