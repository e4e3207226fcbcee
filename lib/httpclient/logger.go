package httpclient

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-i2p/minthttp/lib/transport"
)

const (
	// maxLoggedBody is the largest body written to the log.
	maxLoggedBody = 15 * 1024

	filtered = "[FILTERED]"
)

var loggableBody = regexp.MustCompile(`^(application|text)/.+`)

// Exchange is one request and its outcome as seen by the logger.
type Exchange struct {
	Request     *http.Request
	RequestBody []byte
	Options     transport.Options
	Timings     Timings
	TLS         *tls.ConnectionState
	Response    *Response
	Err         error
}

// RequestLogger writes one record per exchange with sensitive values masked.
type RequestLogger struct {
	// Output receives the records. When nil they go to the package logger at Info.
	Output io.Writer

	keys   map[string]bool
	filter bool

	once sync.Once
	json []*regexp.Regexp
	xml  []*regexp.Regexp
	// names holds the keys in a stable order for the body patterns.
	names []string
}

// NewRequestLogger masks headers, query parameters and JSON or XML body
// fields whose name is in keys. Matching ignores case. With filter false
// nothing is masked.
func NewRequestLogger(keys []string, filter bool) *RequestLogger {
	l := &RequestLogger{keys: make(map[string]bool, len(keys)), filter: filter}
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || l.keys[k] {
			continue
		}
		l.keys[k] = true
		l.names = append(l.names, k)
	}
	sort.Strings(l.names)
	return l
}

// Log writes the record for ex.
func (l *RequestLogger) Log(ex *Exchange) {
	record := l.Format(ex)
	if l.Output != nil {
		fmt.Fprintln(l.Output, record)
		return
	}
	log.WithField("url", l.maskURL(ex.Request.URL)).Info(record)
}

// Format renders the record for ex.
func (l *RequestLogger) Format(ex *Exchange) string {
	req := ex.Request
	version := "1.1"
	if ex.Response != nil {
		version = ex.Response.Version
	}

	tlsInfo := "None"
	if ex.TLS != nil {
		tlsInfo = fmt.Sprintf("%s Cipher: %s", tls.VersionName(ex.TLS.Version), tls.CipherSuiteName(ex.TLS.CipherSuite))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MintHttp Log (%s)\n", l.maskURL(req.URL))
	fmt.Fprintf(&b, "@@ Timeouts: %s, %s, %s\n", ex.Options.OpenTimeout, ex.Options.WriteTimeout, ex.Options.ReadTimeout)
	fmt.Fprintf(&b, "@@ Time: %s -> %s connecting: %.3f total: %.3f seconds\n",
		clock(ex.Timings.Started), clock(ex.Timings.Connected),
		ex.Timings.Connecting.Seconds(), ex.Timings.Total.Seconds())
	fmt.Fprintf(&b, "@@ TLS: %s\n", tlsInfo)
	fmt.Fprintf(&b, "-> %s %s HTTP/%s\n", req.Method, l.maskPath(req.URL), version)
	l.writeHeaders(&b, req.Header, "-> ")
	fmt.Fprintf(&b, "-> %s\n", l.maskBody(ex.RequestBody, req.Header.Get("Content-Type")))
	b.WriteString("=======\n")

	if resp := ex.Response; resp != nil {
		fmt.Fprintf(&b, "<- Response: HTTP/%s %d %s\n", resp.Version, resp.StatusCode, resp.StatusText)
		l.writeHeaders(&b, resp.Header, "<- ")
		fmt.Fprintf(&b, "<- Length: %d Body: %s\n", len(resp.Body), l.maskBody(resp.Body, resp.Header.Get("Content-Type")))
	}

	if ex.Err != nil {
		fmt.Fprintf(&b, "!! Error: %T, message: %s", ex.Err, ex.Err)
	}
	return strings.TrimSpace(b.String())
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("15:04:05.000")
}

func (l *RequestLogger) masked(key string) bool {
	return l.filter && l.keys[strings.ToLower(key)]
}

func (l *RequestLogger) writeHeaders(b *strings.Builder, h http.Header, prefix string) {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		for _, v := range h[k] {
			if l.masked(k) {
				v = filtered
			}
			fmt.Fprintf(b, "%s%s: %s\n", prefix, http.CanonicalHeaderKey(k), v)
		}
	}
}

func (l *RequestLogger) maskQuery(raw string) string {
	if !l.filter || raw == "" {
		return raw
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	for k, vs := range q {
		if l.masked(k) {
			for i := range vs {
				vs[i] = filtered
			}
		}
	}
	return q.Encode()
}

func (l *RequestLogger) maskPath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + l.maskQuery(u.RawQuery)
	}
	if u.Fragment != "" {
		path += "#" + u.EscapedFragment()
	}
	return path
}

func (l *RequestLogger) maskURL(u *url.URL) string {
	c := *u
	c.User = nil
	c.RawQuery = l.maskQuery(u.RawQuery)
	return c.String()
}

func (l *RequestLogger) maskBody(body []byte, contentType string) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	switch {
	case len(body) == 0:
		return "[EMPTY]"
	case len(body) > maxLoggedBody:
		return "[LARGE]"
	case !loggableBody.MatchString(contentType):
		return "[COMPLEX]"
	case !l.filter:
		return string(body)
	case strings.Contains(contentType, "json"):
		return l.redactJSON(string(body))
	case strings.Contains(contentType, "xml"):
		return l.redactXML(string(body))
	default:
		return string(body)
	}
}

func (l *RequestLogger) compile() {
	l.once.Do(func() {
		for _, k := range l.names {
			q := regexp.QuoteMeta(k)
			l.json = append(l.json, regexp.MustCompile(`(?i)"(`+q+`)"(\s*):(\s*)("(?:[^"\\]|\\.)*"|\d+(?:\.\d+)?)`))
			l.xml = append(l.xml, regexp.MustCompile(`(?is)<(`+q+`)(?:\s[^>]*)?>.*?</`+q+`>`))
		}
	})
}

// redactJSON replaces string and number values of masked keys.
func (l *RequestLogger) redactJSON(s string) string {
	l.compile()
	for _, re := range l.json {
		s = re.ReplaceAllString(s, `"${1}"${2}:${3}"`+filtered+`"`)
	}
	return s
}

// redactXML replaces the content of masked elements.
func (l *RequestLogger) redactXML(s string) string {
	l.compile()
	for _, re := range l.xml {
		s = re.ReplaceAllString(s, `<${1}>`+filtered+`</${1}>`)
	}
	return s
}
