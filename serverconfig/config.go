// Package serverconfig defines the issuer server's configuration, loaded
// from environment variables the way the teacher loads lnd.conf: a struct
// with jessevdk/go-flags tags, parsed once at startup.
package serverconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
)

// Config is the issuer server's full configuration surface.
type Config struct {
	Host string `long:"host" env:"SERVER_HOST" default:"0.0.0.0" description:"address the HTTP API binds to"`
	Port int    `long:"port" env:"SERVER_PORT" default:"8080" description:"port the HTTP API binds to"`

	DatabaseURL      string `long:"database-url" env:"DATABASE_URL" required:"true" description:"Postgres connection string"`
	DatabaseMaxConns int    `long:"database-max-connections" env:"DATABASE_MAX_CONNECTIONS" default:"10" description:"max open Postgres connections"`

	RedisURL string `long:"redis-url" env:"REDIS_URL" default:"redis://localhost:6379/0" description:"Redis connection URL for the spent-set"`

	InstitutionID  string `long:"institution-id" env:"INSTITUTION_ID" required:"true" description:"identifier this issuer signs tokens as"`
	KeyID          string `long:"key-id" env:"KEY_ID" required:"true" description:"identifier for the active signing key"`
	SigningKeyPath string `long:"signing-key-path" env:"SIGNING_KEY_PATH" required:"true" description:"path to the PEM-encoded RSA private key this issuer signs with"`

	TokenExpiryDays int    `long:"token-expiry-days" env:"TOKEN_EXPIRY_DAYS" default:"90" description:"token validity window in days"`
	Denominations   string `long:"denominations" env:"DENOMINATIONS" required:"true" description:"comma-separated list of accepted denominations"`
	Currency        string `long:"currency" env:"CURRENCY" default:"USD" description:"ISO currency code this issuer mints"`

	LogLevel string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"log level for all subsystems"`
	LogDir   string `long:"log-dir" env:"LOG_DIR" default:"." description:"directory log files are rotated into"`
}

// Load parses Config from the environment, the way lnd's main entrypoint
// parses lnd.conf/flags before anything else runs.
func Load() (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(nil); err != nil {
		return nil, fmt.Errorf("serverconfig: %w", err)
	}
	return cfg, nil
}

// ParsedDenominations splits Denominations into a slice of uint64, in the
// order they are listed; it does not sort or deduplicate them.
func (c *Config) ParsedDenominations() ([]uint64, error) {
	parts := strings.Split(c.Denominations, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("serverconfig: invalid denomination %q: %w", p, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("serverconfig: no denominations configured")
	}
	return out, nil
}

// TokenValidity returns TokenExpiryDays as a time.Duration.
func (c *Config) TokenValidity() time.Duration {
	return time.Duration(c.TokenExpiryDays) * 24 * time.Hour
}

// SpentSetTTL derives the Redis TTL for the spent-set directly from the
// token validity window, so it can never be misconfigured shorter than a
// token's lifetime (design note, spec §9).
func (c *Config) SpentSetTTL() time.Duration {
	return c.TokenValidity()
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
