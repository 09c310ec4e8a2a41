package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
api:
  base_url: https://halts.example.com/api
  mutation_path: /halts/mutate
stream:
  url: https://halts.example.com/api/sse/halts
  transport: websocket
  frame_interval: 32ms
dispatch:
  max_retries: 5
  base_delay: 250ms
  breaker: true
session:
  store: redis
  redis_addr: redis:6379
journal:
  enabled: true
  database:
    host: localhost
    name: halts
    user: haltwatch
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://halts.example.com/api" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://halts.example.com/api")
	}
	if cfg.API.MutationPath != "/halts/mutate" {
		t.Errorf("API.MutationPath = %q, want %q", cfg.API.MutationPath, "/halts/mutate")
	}
	if cfg.Stream.Transport != "websocket" {
		t.Errorf("Stream.Transport = %q, want websocket", cfg.Stream.Transport)
	}
	if cfg.Stream.FrameInterval != 32*time.Millisecond {
		t.Errorf("Stream.FrameInterval = %v, want 32ms", cfg.Stream.FrameInterval)
	}
	if cfg.Dispatch.MaxRetries != 5 || cfg.Dispatch.BaseDelay != 250*time.Millisecond || !cfg.Dispatch.Breaker {
		t.Errorf("Dispatch = %+v", cfg.Dispatch)
	}
	if cfg.Session.Store != "redis" || cfg.Session.RedisAddr != "redis:6379" {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Database.Host != "localhost" {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_HALT_TOKEN", "secret123")

	yaml := `
api:
  base_url: https://halts.example.com/api
session:
  token: ${TEST_HALT_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Session.Token != "secret123" {
		t.Errorf("Session.Token = %q, want %q", cfg.Session.Token, "secret123")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) expected error, got nil")
	}

	path := writeTempFile(t, "api: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Load(bad yaml) expected error, got nil")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
api:
  base_url: https://halts.example.com/api
stream:
  url: https://halts.example.com/api/sse/halts
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.API.TicketPath != DefaultTicketPath {
		t.Errorf("API.TicketPath = %q, want default %q", cfg.API.TicketPath, DefaultTicketPath)
	}
	if cfg.Stream.Transport != DefaultTransport {
		t.Errorf("Stream.Transport = %q, want default %q", cfg.Stream.Transport, DefaultTransport)
	}
	if cfg.Stream.FrameInterval != DefaultFrameInterval {
		t.Errorf("Stream.FrameInterval = %v, want default %v", cfg.Stream.FrameInterval, DefaultFrameInterval)
	}
	if cfg.Dispatch.MaxRetries != DefaultMaxRetries {
		t.Errorf("Dispatch.MaxRetries = %d, want default %d", cfg.Dispatch.MaxRetries, DefaultMaxRetries)
	}
	if cfg.Dispatch.BaseDelay != DefaultBaseDelay {
		t.Errorf("Dispatch.BaseDelay = %v, want default %v", cfg.Dispatch.BaseDelay, DefaultBaseDelay)
	}
	if cfg.Session.Store != DefaultSessionStore {
		t.Errorf("Session.Store = %q, want default %q", cfg.Session.Store, DefaultSessionStore)
	}
	if cfg.Session.RedisAddr != "" {
		t.Errorf("Session.RedisAddr = %q, want empty for memory store", cfg.Session.RedisAddr)
	}
	if cfg.Notify.DismissAfter != DefaultDismissAfter {
		t.Errorf("Notify.DismissAfter = %v, want default %v", cfg.Notify.DismissAfter, DefaultDismissAfter)
	}
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want default %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v, want defaults", cfg.Log)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after defaults: %v", err)
	}
}

func TestRedisAddrDefault(t *testing.T) {
	cfg := &Config{Session: SessionConfig{Store: "redis"}}
	cfg.applyDefaults()
	if cfg.Session.RedisAddr != DefaultRedisAddr {
		t.Errorf("Session.RedisAddr = %q, want %q", cfg.Session.RedisAddr, DefaultRedisAddr)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.API.BaseURL = "https://halts.example.com/api"
		c.Stream.URL = "https://halts.example.com/api/sse/halts"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: "api.base_url is required",
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.API.BaseURL = "/api" },
			wantErr: `api.base_url must be an absolute [http https] URL, got "/api"`,
		},
		{
			name:    "missing stream url",
			mutate:  func(c *Config) { c.Stream.URL = "" },
			wantErr: "stream.url is required",
		},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Stream.Transport = "grpc" },
			wantErr: `stream.transport must be sse or websocket, got "grpc"`,
		},
		{
			name: "websocket accepts wss",
			mutate: func(c *Config) {
				c.Stream.Transport = "websocket"
				c.Stream.URL = "wss://halts.example.com/ws"
			},
			wantErr: "",
		},
		{
			name:    "sse rejects wss",
			mutate:  func(c *Config) { c.Stream.URL = "wss://halts.example.com/ws" },
			wantErr: `stream.url must be an absolute [http https] URL, got "wss://halts.example.com/ws"`,
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Dispatch.RateLimit = -1 },
			wantErr: "dispatch.rate_limit must be >= 0",
		},
		{
			name:    "unknown session store",
			mutate:  func(c *Config) { c.Session.Store = "etcd" },
			wantErr: `session.store must be memory or redis, got "etcd"`,
		},
		{
			name: "token and token file",
			mutate: func(c *Config) {
				c.Session.Token = "abc"
				c.Session.TokenFile = "/run/secrets/token"
			},
			wantErr: "session.token and session.token_file are mutually exclusive",
		},
		{
			name:    "journal missing host",
			mutate:  func(c *Config) { c.Journal.Enabled = true },
			wantErr: "journal.database.host is required",
		},
		{
			name: "journal min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Database = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 5, MinConns: 10}
			},
			wantErr: "journal.database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "journal disabled skips database",
			mutate:  func(c *Config) { c.Journal.Database = DBConfig{} },
			wantErr: "",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := LogConfig{Level: tt.in}.SlogLevel()
		if (err != nil) != tt.wantErr {
			t.Errorf("SlogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "api:\n  base_url: https://halts.example.com/api\n")
	if _, err := LoadAndValidate(path); err == nil {
		t.Error("LoadAndValidate() expected error for missing stream.url, got nil")
	}

	path = writeTempFile(t, "api:\n  base_url: https://halts.example.com/api\nstream:\n  url: https://halts.example.com/sse\n")
	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate() error: %v", err)
	}
	if cfg.Stream.BufferSize != DefaultBufferSize {
		t.Errorf("Stream.BufferSize = %d, want %d", cfg.Stream.BufferSize, DefaultBufferSize)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
