package config

import "time"

// Config is the root configuration for a haltwatch client.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Stream   StreamConfig   `yaml:"stream"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Session  SessionConfig  `yaml:"session"`
	Notify   NotifyConfig   `yaml:"notify"`
	Journal  JournalConfig  `yaml:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig holds halt REST API settings.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"` // Read requests only; mutations use dispatch settings
	TicketPath   string        `yaml:"ticket_path"`
	HaltsPath    string        `yaml:"halts_path"`
	MutationPath string        `yaml:"mutation_path"`
}

// StreamConfig holds push-stream settings.
type StreamConfig struct {
	URL           string        `yaml:"url"`       // Ticket is appended as ?ticket=
	Transport     string        `yaml:"transport"` // sse | websocket
	FrameInterval time.Duration `yaml:"frame_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	PingInterval  time.Duration `yaml:"ping_interval"`
}

// DispatchConfig holds mutation dispatcher settings.
type DispatchConfig struct {
	MaxRetries int           `yaml:"max_retries"` // -1 disables retries
	BaseDelay  time.Duration `yaml:"base_delay"`
	RateLimit  float64       `yaml:"rate_limit"` // Requests per second, 0 disables
	Breaker    bool          `yaml:"breaker"`
}

// SessionConfig holds the bearer token source and where it is kept.
type SessionConfig struct {
	Store     string `yaml:"store"` // memory | redis
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	Key       string `yaml:"key"`
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// NotifyConfig holds session notifier settings.
type NotifyConfig struct {
	DismissAfter time.Duration `yaml:"dismiss_after"`
}

// JournalConfig holds the optional audit journal.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}
