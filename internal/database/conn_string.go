package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/haltwatch/internal/config"
)

const defaultSSLMode = "prefer"

// BuildConnString renders cfg as a postgres:// URL understood by pgxpool.
func BuildConnString(cfg config.DBConfig) string {
	user := url.User(cfg.User)
	if cfg.Password != "" {
		user = url.UserPassword(cfg.User, cfg.Password)
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}
