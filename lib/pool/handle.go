package pool

import (
	"github.com/google/uuid"

	"github.com/go-i2p/minthttp/lib/transport"
	"github.com/go-i2p/minthttp/lib/validation"
)

// Handle is a poolable connection.
type Handle interface {
	// ID returns an identity unique among all handles.
	ID() uuid.UUID
	// Healthy reports whether the connection can be reused. It must not block.
	Healthy() bool
	// Close closes the connection.
	Close() error
}

// Factory creates handles and derives their pool namespace.
type Factory interface {
	// Fingerprint returns the namespace for a destination and its options.
	Fingerprint(host string, port int, opts transport.Options) string
	// Create returns a new handle. It must not block on the network.
	Create(host string, port int, opts transport.Options) (Handle, error)
}

// TransportFactory adapts a transport.Factory to the pool. Handles returned
// by Acquire are *transport.Conn and dial on their first Start.
func TransportFactory(f *transport.Factory) Factory {
	return transportFactory{f: f}
}

type transportFactory struct {
	f *transport.Factory
}

func (t transportFactory) Fingerprint(host string, port int, opts transport.Options) string {
	return t.f.Fingerprint(host, port, opts)
}

func (t transportFactory) Create(host string, port int, opts transport.Options) (Handle, error) {
	err := validation.All(
		func() error { return validation.Host("host", host) },
		func() error { return validation.Port("port", port) },
		opts.Validate,
	)
	if err != nil {
		return nil, err
	}
	return t.f.New(host, port, opts), nil
}
