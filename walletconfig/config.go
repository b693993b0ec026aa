// Package walletconfig defines the wallet CLI's configuration, loaded the
// same way serverconfig loads the issuer server's: jessevdk/go-flags
// struct tags read from the environment.
package walletconfig

import (
	"fmt"

	flags "github.com/jessevdk/go-flags"
)

// Config is the wallet CLI's configuration surface (spec §6).
type Config struct {
	ServerURL string `long:"server-url" env:"ECASH_SERVER_URL" default:"http://localhost:8080" description:"issuer server base URL"`
	DBPath    string `long:"db-path" env:"ECASH_DB_PATH" default:"wallet.db" description:"path to the local SQLite wallet store"`
	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"log level for all subsystems"`
}

// Load parses Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(nil); err != nil {
		return nil, fmt.Errorf("walletconfig: %w", err)
	}
	return cfg, nil
}
