package transport

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// Factory creates connections. The zero value dials with a default net.Dialer.
type Factory struct {
	// Dial overrides how TCP connections (to the target or the proxy) are opened.
	Dial DialFunc
}

// NewFactory returns a Factory using the default dialer.
func NewFactory() *Factory {
	return &Factory{}
}

// Fingerprint returns the pool namespace for a destination.
func (f *Factory) Fingerprint(host string, port int, opts Options) string {
	return Fingerprint(host, port, opts)
}

// New returns an unstarted connection with a fresh identity.
func (f *Factory) New(host string, port int, opts Options) *Conn {
	c := &Conn{
		id:      uuid.New(),
		host:    host,
		port:    port,
		opts:    opts.WithDefaults(),
		dialTCP: f.dialer(),
		created: time.Now(),
	}
	log.WithField("id", c.id).WithField("host", host).WithField("port", port).Debug("Created connection handle")
	return c
}

func (f *Factory) dialer() DialFunc {
	if f != nil && f.Dial != nil {
		return f.Dial
	}
	d := &net.Dialer{KeepAlive: keepAlivePeriod}
	return d.DialContext
}
