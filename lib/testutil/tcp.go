package testutil

import (
	"net"
	"sync"
)

// TCPServer accepts raw TCP connections and hands the server side to the test.
type TCPServer struct {
	mu       sync.Mutex
	listener net.Listener
	conns    []net.Conn
	accepted chan net.Conn
	running  bool
}

// NewTCPServer starts a TCP server listening on a random loopback port.
func NewTCPServer() (*TCPServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &TCPServer{
		listener: ln,
		accepted: make(chan net.Conn, 64),
		running:  true,
	}

	go s.acceptLoop()

	return s, nil
}

// Addr returns the listen address.
func (s *TCPServer) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listen host.
func (s *TCPServer) Host() string {
	return s.listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listen port.
func (s *TCPServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Accepted delivers the server side of every accepted connection.
func (s *TCPServer) Accepted() <-chan net.Conn {
	return s.accepted
}

// CloseConns closes the server side of every accepted connection.
func (s *TCPServer) CloseConns() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// Close stops accepting and closes every accepted connection.
func (s *TCPServer) Close() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	err := s.listener.Close()
	s.CloseConns()
	return err
}

func (s *TCPServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		select {
		case s.accepted <- conn:
		default:
		}
	}
}
