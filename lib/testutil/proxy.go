package testutil

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"sync"
)

// Proxy is an HTTP proxy supporting CONNECT tunnels and absolute-form forwarding.
type Proxy struct {
	mu       sync.Mutex
	listener net.Listener
	auth     string
	requests []string
}

// NewProxy starts a proxy on a random loopback port. A non-empty auth is the
// Proxy-Authorization value every request must carry.
func NewProxy(auth string) (*Proxy, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	p := &Proxy{listener: ln, auth: auth}
	go p.acceptLoop()
	return p, nil
}

// Host returns the proxy host.
func (p *Proxy) Host() string {
	return p.listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the proxy port.
func (p *Proxy) Port() int {
	return p.listener.Addr().(*net.TCPAddr).Port
}

// Requests returns "METHOD target" for every request the proxy has seen.
func (p *Proxy) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

// Close stops the proxy.
func (p *Proxy) Close() error {
	return p.listener.Close()
}

func (p *Proxy) acceptLoop() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		go p.handleConnection(conn)
	}
}

func (p *Proxy) handleConnection(conn net.Conn) {
	defer conn.Close()
	br := bufio.NewReader(conn)

	for {
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}

		p.mu.Lock()
		p.requests = append(p.requests, req.Method+" "+req.RequestURI)
		p.mu.Unlock()

		if p.auth != "" && req.Header.Get("Proxy-Authorization") != p.auth {
			io.WriteString(conn, "HTTP/1.1 407 Proxy Authentication Required\r\nContent-Length: 0\r\n\r\n")
			return
		}

		if req.Method == http.MethodConnect {
			p.tunnel(conn, br, req.Host)
			return
		}
		if !p.forward(conn, req) {
			return
		}
	}
}

func (p *Proxy) tunnel(client net.Conn, br *bufio.Reader, target string) {
	upstream, err := net.Dial("tcp", target)
	if err != nil {
		io.WriteString(client, "HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n")
		return
	}
	defer upstream.Close()

	io.WriteString(client, "HTTP/1.1 200 Connection established\r\n\r\n")

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(upstream, br)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(client, upstream)
		done <- struct{}{}
	}()
	<-done
}

// forward relays one absolute-form request and reports whether the client
// connection can be kept open.
func (p *Proxy) forward(client net.Conn, req *http.Request) bool {
	upstream, err := net.Dial("tcp", req.URL.Host)
	if err != nil {
		io.WriteString(client, "HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n")
		return false
	}
	defer upstream.Close()

	req.Header.Del("Proxy-Authorization")
	req.RequestURI = ""
	if err := req.Write(upstream); err != nil {
		return false
	}

	resp, err := http.ReadResponse(bufio.NewReader(upstream), req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if err := resp.Write(client); err != nil {
		return false
	}
	return !resp.Close && !req.Close
}
