// Package config resolves runtime settings from defaults, an optional
// config file, INCENTIVE_* environment variables and command-line flags
// (highest precedence last).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable: INCENTIVE_PORT, INCENTIVE_DB, ...
const EnvPrefix = "INCENTIVE"

// Keys. Flags with the same name bind onto them.
const (
	KeyConfigFile     = "config"
	KeyPort           = "port"
	KeyDB             = "db"
	KeyDBDriver       = "db-driver"
	KeyCatalog        = "catalog"
	KeyWatchCatalog   = "watch-catalog"
	KeyLogLevel       = "log-level"
	KeyOTLPEndpoint   = "otlp-endpoint"
	KeyOTLPInsecure   = "otlp-insecure"
	KeyAllowedOrigins = "allowed-origins"
)

// Config is the resolved configuration of the server.
type Config struct {
	Port           int
	DBPath         string
	DBDriver       string
	CatalogPath    string // Empty means the embedded default catalog
	WatchCatalog   bool
	LogLevel       string
	OTLPEndpoint   string // Empty disables metric export
	OTLPInsecure   bool
	AllowedOrigins []string
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyDB, "incentive.db")
	v.SetDefault(KeyDBDriver, "sqlite3")
	v.SetDefault(KeyCatalog, "")
	v.SetDefault(KeyWatchCatalog, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyOTLPEndpoint, "")
	v.SetDefault(KeyOTLPInsecure, true)
	v.SetDefault(KeyAllowedOrigins, []string{"http://localhost:3000", "http://localhost:5173"})
	return v
}

// Load reads the optional config file named by the "config" key and
// resolves the final configuration.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Config{
		Port:           v.GetInt(KeyPort),
		DBPath:         v.GetString(KeyDB),
		DBDriver:       v.GetString(KeyDBDriver),
		CatalogPath:    v.GetString(KeyCatalog),
		WatchCatalog:   v.GetBool(KeyWatchCatalog),
		LogLevel:       v.GetString(KeyLogLevel),
		OTLPEndpoint:   v.GetString(KeyOTLPEndpoint),
		OTLPInsecure:   v.GetBool(KeyOTLPInsecure),
		AllowedOrigins: splitList(v.GetStringSlice(KeyAllowedOrigins)),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	switch c.DBDriver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("invalid db driver %q (want sqlite3 or sqlite)", c.DBDriver)
	}
	if c.WatchCatalog && c.CatalogPath == "" {
		return fmt.Errorf("watch-catalog requires a catalog file")
	}
	return nil
}

// splitList accepts both repeated values and a single comma-separated
// value, which is how env vars arrive.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
