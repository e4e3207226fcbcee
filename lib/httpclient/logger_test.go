package httpclient

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExchange(t *testing.T, rawURL string) *Exchange {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, rawURL, nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("X-Trace", "abc")
	return &Exchange{Request: req}
}

func TestLoggerMasksHeadersAndQuery(t *testing.T) {
	l := NewRequestLogger([]string{"Authorization", "token"}, true)
	ex := testExchange(t, "http://example.com/path?token=s3cr3t&page=2")

	out := l.Format(ex)
	assert.Contains(t, out, "-> Authorization: [FILTERED]")
	assert.Contains(t, out, "-> X-Trace: abc")
	assert.NotContains(t, out, "secret-token")
	assert.NotContains(t, out, "s3cr3t")
	assert.Contains(t, out, "page=2")
	assert.Contains(t, out, "token=%5BFILTERED%5D")
	assert.Contains(t, out, "-> POST /path?")
}

func TestLoggerFilterDisabled(t *testing.T) {
	l := NewRequestLogger([]string{"authorization"}, false)
	ex := testExchange(t, "http://example.com/?token=s3cr3t")
	ex.RequestBody = []byte(`{"password":"pw"}`)

	out := l.Format(ex)
	assert.Contains(t, out, "Bearer secret-token")
	assert.Contains(t, out, "token=s3cr3t")
	assert.Contains(t, out, `{"password":"pw"}`)
}

func TestLoggerMaskBody(t *testing.T) {
	l := NewRequestLogger([]string{"password", "pin"}, true)

	tests := []struct {
		name        string
		body        string
		contentType string
		want        string
	}{
		{"empty", "", "application/json", "[EMPTY]"},
		{"large", strings.Repeat("a", maxLoggedBody+1), "text/plain", "[LARGE]"},
		{"binary", "\x00\x01", "image/png", "[COMPLEX]"},
		// A missing Content-Type counts as application/octet-stream.
		{"no content type", "data", "", "data"},
		{"plain text", "hello", "text/plain", "hello"},
		{
			"json string",
			`{"user":"mint","password" : "p\"w"}`,
			"application/json",
			`{"user":"mint","password" : "[FILTERED]"}`,
		},
		{
			"json number and case",
			`{"PIN": 12.5, "n": 1}`,
			"application/json; charset=utf-8",
			`{"PIN": "[FILTERED]", "n": 1}`,
		},
		{
			"xml",
			"<user><name>mint</name><password type=\"x\">se\ncret</password></user>",
			"application/xml",
			"<user><name>mint</name><password>[FILTERED]</password></user>",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, l.maskBody([]byte(tc.body), tc.contentType))
		})
	}
}

func TestLoggerResponseAndError(t *testing.T) {
	l := NewRequestLogger([]string{"set-cookie"}, true)
	ex := testExchange(t, "http://example.com/")
	ex.Response = &Response{
		Version:    "1.1",
		StatusCode: 201,
		StatusText: "Created",
		Header:     http.Header{"Set-Cookie": {"sid=1"}, "Content-Type": {"text/plain"}},
		Body:       []byte("ok"),
	}
	ex.Err = errors.New("boom")

	out := l.Format(ex)
	assert.Contains(t, out, "<- Response: HTTP/1.1 201 Created")
	assert.Contains(t, out, "<- Set-Cookie: [FILTERED]")
	assert.Contains(t, out, "<- Length: 2 Body: ok")
	assert.Contains(t, out, "!! Error: *errors.errorString, message: boom")
	assert.Contains(t, out, "@@ TLS: None")
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewRequestLogger(nil, true)
	l.Output = &buf

	ex := testExchange(t, "http://user:pw@example.com/a")
	l.Log(ex)

	assert.True(t, strings.HasPrefix(buf.String(), "MintHttp Log (http://example.com/a)"))
	assert.NotContains(t, buf.String(), "user:pw")
}

func TestLoggerMaskURL(t *testing.T) {
	l := NewRequestLogger([]string{"KEY"}, true)
	u, _ := url.Parse("https://example.com/x?key=1&other=2")
	assert.Equal(t, "https://example.com/x?key=%5BFILTERED%5D&other=2", l.maskURL(u))
}
