package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout    = 30 * time.Second
	DefaultAPIMaxRetries = 3
	DefaultTicketPath    = "/sse/ticket"
	DefaultHaltsPath     = "/halts"
	DefaultMutationPath  = "/halts/action"
	DefaultTransport     = "sse"
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultBufferSize    = 1000
	DefaultReadTimeout   = 60 * time.Second
	DefaultPingInterval  = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultBaseDelay     = 1 * time.Second
	DefaultSessionStore  = "memory"
	DefaultRedisAddr     = "localhost:6379"
	DefaultSessionKey    = "haltwatch:session:token"
	DefaultDismissAfter  = 5 * time.Second
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 4
	DefaultMinConns      = 1
	DefaultBatchSize     = 500
	DefaultFlushInterval = 1 * time.Second
	DefaultMetricsPort   = 9090
	DefaultMetricsPath   = "/metrics"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// Default returns a config with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultAPIMaxRetries
	}
	if c.API.TicketPath == "" {
		c.API.TicketPath = DefaultTicketPath
	}
	if c.API.HaltsPath == "" {
		c.API.HaltsPath = DefaultHaltsPath
	}
	if c.API.MutationPath == "" {
		c.API.MutationPath = DefaultMutationPath
	}

	// Stream defaults
	if c.Stream.Transport == "" {
		c.Stream.Transport = DefaultTransport
	}
	if c.Stream.FrameInterval == 0 {
		c.Stream.FrameInterval = DefaultFrameInterval
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}
	if c.Stream.ReadTimeout == 0 {
		c.Stream.ReadTimeout = DefaultReadTimeout
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}

	// Dispatch defaults
	if c.Dispatch.MaxRetries == 0 {
		c.Dispatch.MaxRetries = DefaultMaxRetries
	}
	if c.Dispatch.BaseDelay == 0 {
		c.Dispatch.BaseDelay = DefaultBaseDelay
	}

	// Session defaults
	if c.Session.Store == "" {
		c.Session.Store = DefaultSessionStore
	}
	if c.Session.Store == "redis" && c.Session.RedisAddr == "" {
		c.Session.RedisAddr = DefaultRedisAddr
	}
	if c.Session.Key == "" {
		c.Session.Key = DefaultSessionKey
	}

	if c.Notify.DismissAfter == 0 {
		c.Notify.DismissAfter = DefaultDismissAfter
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.Database)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
