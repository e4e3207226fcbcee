// Package config loads and saves minthttp settings as TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
	"github.com/go-i2p/minthttp/lib/httpclient"
	"github.com/go-i2p/minthttp/lib/pool"
	"github.com/go-i2p/minthttp/lib/transport"
)

// DefaultFilterParams are the names masked in request logs unless configured otherwise.
var DefaultFilterParams = []string{"authorization", "password", "token", "api_key", "secret"}

// Config holds all minthttp settings.
type Config struct {
	Pool   PoolConfig   `toml:"pool"`
	Client ClientConfig `toml:"client"`
	Log    LogConfig    `toml:"log"`
}

// PoolConfig contains connection pool settings. Durations are in milliseconds.
type PoolConfig struct {
	// Capacity is the maximum number of pooled connections
	Capacity int `toml:"capacity"`
	// TTLMillis is the maximum lifetime of a connection
	TTLMillis int64 `toml:"ttl_ms"`
	// IdleTTLMillis is how long a connection may sit unused
	IdleTTLMillis int64 `toml:"idle_ttl_ms"`
	// AcquireTimeoutMillis bounds the wait for a free slot
	AcquireTimeoutMillis int64 `toml:"acquire_timeout_ms"`
	// UsageLimit is how many requests a connection may serve
	UsageLimit int `toml:"usage_limit"`
	// SweepIntervalMillis enables the background sweep when positive
	SweepIntervalMillis int64 `toml:"sweep_interval_ms,omitempty"`
}

// ClientConfig contains request defaults. Durations are in milliseconds.
type ClientConfig struct {
	OpenTimeoutMillis  int64  `toml:"open_timeout_ms"`
	WriteTimeoutMillis int64  `toml:"write_timeout_ms"`
	ReadTimeoutMillis  int64  `toml:"read_timeout_ms"`
	TLSTimeoutMillis   int64  `toml:"tls_timeout_ms"`
	UserAgent          string `toml:"user_agent"`
}

// LogConfig contains request logging settings.
type LogConfig struct {
	// FilterParams enables masking in request logs
	FilterParams bool `toml:"filter_params"`
	// FilterParamsList names the headers, query parameters and body fields to mask
	FilterParamsList []string `toml:"filter_params_list"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	p := pool.DefaultConfig()
	return &Config{
		Pool: PoolConfig{
			Capacity:             p.Capacity,
			TTLMillis:            p.TTL.Milliseconds(),
			IdleTTLMillis:        p.IdleTTL.Milliseconds(),
			AcquireTimeoutMillis: p.AcquireTimeout.Milliseconds(),
			UsageLimit:           p.UsageLimit,
		},
		Client: ClientConfig{
			OpenTimeoutMillis:  transport.DefaultOpenTimeout.Milliseconds(),
			WriteTimeoutMillis: transport.DefaultWriteTimeout.Milliseconds(),
			ReadTimeoutMillis:  transport.DefaultReadTimeout.Milliseconds(),
			TLSTimeoutMillis:   transport.DefaultTLSTimeout.Milliseconds(),
			UserAgent:          httpclient.DefaultUserAgent,
		},
		Log: LogConfig{
			FilterParams:     true,
			FilterParamsList: append([]string(nil), DefaultFilterParams...),
		},
	}
}

// LoadConfig reads configuration from a TOML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Debug("Config file not found, using defaults")
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w: %w", apperrors.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log.WithField("path", path).Debug("Loaded config")
	return cfg, nil
}

// SaveConfig writes the configuration to a TOML file.
// It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch {
	case c.Pool.Capacity < 1:
		return invalid("pool.capacity must be at least 1")
	case c.Pool.TTLMillis < 1:
		return invalid("pool.ttl_ms must be positive")
	case c.Pool.IdleTTLMillis < 1:
		return invalid("pool.idle_ttl_ms must be positive")
	case c.Pool.AcquireTimeoutMillis < 1:
		return invalid("pool.acquire_timeout_ms must be positive")
	case c.Pool.UsageLimit < 1:
		return invalid("pool.usage_limit must be at least 1")
	case c.Pool.SweepIntervalMillis < 0:
		return invalid("pool.sweep_interval_ms must not be negative")
	case c.Client.OpenTimeoutMillis < 1, c.Client.WriteTimeoutMillis < 1,
		c.Client.ReadTimeoutMillis < 1, c.Client.TLSTimeoutMillis < 1:
		return invalid("client timeouts must be positive")
	}
	for _, k := range c.Log.FilterParamsList {
		if strings.TrimSpace(k) == "" {
			return invalid("log.filter_params_list must not contain empty names")
		}
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, apperrors.ErrConfiguration)
}

// PoolConfig returns the pool settings.
func (c *Config) PoolConfig() pool.Config {
	return pool.Config{
		Capacity:       c.Pool.Capacity,
		TTL:            millis(c.Pool.TTLMillis),
		IdleTTL:        millis(c.Pool.IdleTTLMillis),
		AcquireTimeout: millis(c.Pool.AcquireTimeoutMillis),
		UsageLimit:     c.Pool.UsageLimit,
		SweepInterval:  millis(c.Pool.SweepIntervalMillis),
	}
}

// TransportOptions returns the connection timeouts.
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		OpenTimeout:  millis(c.Client.OpenTimeoutMillis),
		WriteTimeout: millis(c.Client.WriteTimeoutMillis),
		ReadTimeout:  millis(c.Client.ReadTimeoutMillis),
		TLSTimeout:   millis(c.Client.TLSTimeoutMillis),
	}
}

// RequestLogger returns a request logger for the log settings.
func (c *Config) RequestLogger() *httpclient.RequestLogger {
	return httpclient.NewRequestLogger(c.Log.FilterParamsList, c.Log.FilterParams)
}

// NewRequest returns a request carrying the client defaults.
func (c *Config) NewRequest() *httpclient.Request {
	o := c.TransportOptions()
	r := httpclient.NewRequest().
		Timeout(o.OpenTimeout, o.WriteTimeout, o.ReadTimeout).
		TLSTimeout(o.TLSTimeout)
	if c.Client.UserAgent != "" {
		r.Header("User-Agent", c.Client.UserAgent)
	}
	return r
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
