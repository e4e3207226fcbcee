// Package testutil provides local servers and credentials for minthttp tests.
package testutil

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPServer is a keep-alive HTTP/1.1 server for exercising the client.
//
// Routes:
//
//	GET  /status/{code}   responds with the given status code
//	ANY  /echo            echoes method, path, query, headers and body as JSON
//	GET  /close           responds and asks the client to close the connection
//	GET  /slow/{ms}       responds after a delay
//	GET  /xml             responds with an XML document
type HTTPServer struct {
	*httptest.Server

	mu     sync.Mutex
	opened int
	active map[net.Conn]struct{}
}

// Echo is the body returned by the /echo route.
type Echo struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Query   map[string][]string `json:"query"`
	Headers map[string][]string `json:"headers"`
	Body    string              `json:"body"`
	Remote  string              `json:"remote"`
}

// NewHTTPServer starts a plain HTTP server.
func NewHTTPServer() *HTTPServer {
	s := newHTTPServer()
	s.Start()
	return s
}

// NewTLSServer starts an HTTPS server with a self-signed certificate.
// The certificate is valid for 127.0.0.1, ::1 and example.com.
func NewTLSServer() *HTTPServer {
	s := newHTTPServer()
	s.StartTLS()
	return s
}

func newHTTPServer() *HTTPServer {
	s := &HTTPServer{active: make(map[net.Conn]struct{})}
	s.Server = httptest.NewUnstartedServer(s.routes())
	s.Config.ConnState = s.trackConn
	s.EnableHTTP2 = false
	return s
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(chi.URLParam(r, "code"))
		if err != nil || code < 100 || code > 599 {
			http.Error(w, "bad status", http.StatusBadRequest)
			return
		}
		w.WriteHeader(code)
		io.WriteString(w, http.StatusText(code))
	})

	r.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Echo{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Headers: r.Header,
			Body:    string(body),
			Remote:  r.RemoteAddr,
		})
	})

	r.Get("/close", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		io.WriteString(w, "bye")
	})

	r.Get("/slow/{ms}", func(w http.ResponseWriter, r *http.Request) {
		ms, _ := strconv.Atoi(chi.URLParam(r, "ms"))
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		io.WriteString(w, "done")
	})

	r.Get("/xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<?xml version="1.0"?><user><name>mint</name><password>secret</password></user>`)
	})

	return r
}

func (s *HTTPServer) trackConn(c net.Conn, state http.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch state {
	case http.StateNew:
		s.opened++
		s.active[c] = struct{}{}
	case http.StateClosed, http.StateHijacked:
		delete(s.active, c)
	}
}

// Host returns the listener's host.
func (s *HTTPServer) Host() string {
	host, _, _ := net.SplitHostPort(s.Listener.Addr().String())
	return host
}

// Port returns the listener's port.
func (s *HTTPServer) Port() int {
	return s.Listener.Addr().(*net.TCPAddr).Port
}

// ConnectionsOpened returns how many connections the server has accepted.
func (s *HTTPServer) ConnectionsOpened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// DropConnections closes every open server-side connection, as an idle
// timeout on the server would.
func (s *HTTPServer) DropConnections() {
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.active))
	for c := range s.active {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
