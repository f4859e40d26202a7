package devnet

import "time"

const (
	// DefaultListenAddr is the default TCP address the Listener binds (§6).
	DefaultListenAddr = "0.0.0.0:9000"

	// DefaultLoginTimeout bounds the login handshake (§4.3).
	DefaultLoginTimeout = 10 * time.Second
	// DefaultAckTimeout bounds exec_req's wait for an Ack (§4.4).
	DefaultAckTimeout = 1 * time.Second
	// DefaultSimpleTimeout bounds exec_simple_req and exec_ping (§4.4).
	DefaultSimpleTimeout = 1 * time.Second
	// DefaultWriteQueueSize is the outbound queue capacity per connection (§4.4, §8).
	DefaultWriteQueueSize = 32
)

// Option configures a Config via the functional-options pattern.
type Option func(*Config)

// Config holds runtime settings for a Listener/DeviceConn. Zero value is
// not usable directly; build one with ApplyOptions (applyConfig inside this
// package), which starts from defaultConfig() and applies the options.
type Config struct {
	listenAddr string

	loginTimeout   time.Duration
	ackTimeout     time.Duration
	simpleTimeout  time.Duration
	writeQueueSize int

	metrics Metrics
}

func defaultConfig() *Config {
	return &Config{
		listenAddr:     DefaultListenAddr,
		loginTimeout:   DefaultLoginTimeout,
		ackTimeout:     DefaultAckTimeout,
		simpleTimeout:  DefaultSimpleTimeout,
		writeQueueSize: DefaultWriteQueueSize,
		metrics:        NewDefaultMetrics(),
	}
}

func applyConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// ApplyOptions builds a Config from the functional-options pattern's
// defaults plus any overrides, for callers outside this package (e.g.
// cmd/devnetd) that need to construct a Config to pass to Listen.
func ApplyOptions(opts ...Option) *Config {
	return applyConfig(opts)
}

// WithListenAddr overrides the TCP address the Listener binds (§6).
func WithListenAddr(addr string) Option {
	return func(c *Config) {
		if addr != "" {
			c.listenAddr = addr
		}
	}
}

// WithLoginTimeout overrides the login handshake budget (default 10s, §4.3).
func WithLoginTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.loginTimeout = d
		}
	}
}

// WithAckTimeout overrides exec_req's Ack wait (default 1s, §4.4).
func WithAckTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ackTimeout = d
		}
	}
}

// WithSimpleTimeout overrides exec_simple_req/exec_ping's wait (default 1s, §4.4).
func WithSimpleTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.simpleTimeout = d
		}
	}
}

// WithWriteQueueSize overrides the outbound queue capacity (default 32, §4.4).
func WithWriteQueueSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.writeQueueSize = n
		}
	}
}

// WithMetrics installs a custom Metrics implementation; nil is ignored.
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		if m != nil {
			c.metrics = m
		}
	}
}
