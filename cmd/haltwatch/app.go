package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/haltwatch/internal/api"
	"github.com/rickgao/haltwatch/internal/auth"
	"github.com/rickgao/haltwatch/internal/config"
)

// app holds what every command needs: config, logger, session and REST client.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *auth.Manager
	client  *api.Client
	closers []func()
}

func newApp(ctx context.Context, opts *rootOptions, out io.Writer) (*app, error) {
	cfg, err := config.LoadAndValidate(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	logger, err := newLogger(cfg.Log, out)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}

	store, closeStore := newSessionStore(cfg.Session)
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}
	a.session = auth.NewManager(store,
		auth.WithKey(cfg.Session.Key),
		auth.WithLogger(logger),
	)
	a.session.OnLogout(func(ctx context.Context) {
		logger.Warn("session invalidated, login required")
	})

	token, err := configuredToken(cfg.Session)
	if err != nil {
		a.Close()
		return nil, err
	}
	if token != "" {
		if err := a.session.Login(ctx, token); err != nil {
			a.Close()
			return nil, fmt.Errorf("login: %w", err)
		}
	}

	a.client = api.NewClient(cfg.API.BaseURL, a.session,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.Dispatch.BaseDelay),
		api.WithTicketPath(cfg.API.TicketPath),
		api.WithHaltsPath(cfg.API.HaltsPath),
	)

	return a, nil
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// newLogger builds the process logger from log config.
func newLogger(cfg config.LogConfig, out io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(out, handlerOpts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(out, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func newSessionStore(cfg config.SessionConfig) (auth.Store, func()) {
	if cfg.Store != "redis" {
		return auth.NewMemoryStore(), nil
	}
	rs := auth.NewRedisStore(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	return rs, func() { _ = rs.Close() }
}

// configuredToken returns the bearer token from config, if any. An empty
// result leaves whatever the session store already holds.
func configuredToken(cfg config.SessionConfig) (string, error) {
	if cfg.TokenFile != "" {
		return auth.LoadTokenFile(cfg.TokenFile)
	}
	return cfg.Token, nil
}
