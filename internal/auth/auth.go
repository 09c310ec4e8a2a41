// Package auth holds the session bearer token used against the halt API.
//
// The token lives in a Store (memory or Redis) so that separate processes of
// the same user session can share it. Expiry is read from the JWT exp claim
// without verifying the signature; the server remains the authority and a
// 401 from it ends the session through Invalidate.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors
var (
	ErrNoToken      = errors.New("no session token")
	ErrTokenExpired = errors.New("session token expired")
)

// DefaultTokenKey is the store key holding the bearer token.
const DefaultTokenKey = "haltwatch:session:token"

// LogoutFunc runs after the session has been invalidated.
type LogoutFunc func(ctx context.Context)

// Manager owns the session token. It implements api.TokenSource.
type Manager struct {
	store  Store
	key    string
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	onLogout []LogoutFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithKey sets the store key.
func WithKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.key = key
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		key:    DefaultTokenKey,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login stores token. A JWT's exp claim bounds how long it is kept.
func (m *Manager) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoToken
	}

	var ttl time.Duration
	if exp, ok := ExpiresAt(token); ok {
		ttl = exp.Sub(m.now())
		if ttl <= 0 {
			return ErrTokenExpired
		}
	}

	if err := m.store.Set(ctx, m.key, []byte(token), ttl); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Token returns the current bearer token.
func (m *Manager) Token(ctx context.Context) (string, error) {
	b, found, err := m.store.Get(ctx, m.key)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if !found || len(b) == 0 {
		return "", ErrNoToken
	}

	token := string(b)
	if exp, ok := ExpiresAt(token); ok && !m.now().Before(exp) {
		if err := m.store.Delete(ctx, m.key); err != nil {
			m.logger.Warn("failed to drop expired token", "error", err)
		}
		return "", ErrTokenExpired
	}
	return token, nil
}

// OnLogout registers fn to run on every Invalidate.
func (m *Manager) OnLogout(fn LogoutFunc) {
	m.mu.Lock()
	m.onLogout = append(m.onLogout, fn)
	m.mu.Unlock()
}

// Invalidate drops the token and runs the logout hooks. Hooks run even if
// the store delete fails.
func (m *Manager) Invalidate(ctx context.Context) error {
	err := m.store.Delete(ctx, m.key)

	m.mu.Lock()
	hooks := append([]LogoutFunc(nil), m.onLogout...)
	m.mu.Unlock()

	m.logger.Warn("session invalidated")
	for _, fn := range hooks {
		fn(ctx)
	}

	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// ExpiresAt reads the exp claim of a JWT without verifying it. Opaque
// tokens and JWTs without exp report false.
func ExpiresAt(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// LoadTokenFile reads a bearer token from path.
func LoadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}
