// Package config loads entityfilterd settings from flags, environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ENTITYFILTER_ADDRESS or
// ENTITYFILTER_DATABASE_PATH.
const EnvPrefix = "ENTITYFILTER"

// Config holds the server settings.
type Config struct {
	// Address is the listen address.
	Address string `mapstructure:"address"`
	// PublicAddress is advertised in Flight endpoints. Defaults to Address.
	PublicAddress string `mapstructure:"public_address"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	MaxFilterDepth int `mapstructure:"max_filter_depth"`
	MaxMessageSize int `mapstructure:"max_message_size"`

	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// DatabaseConfig selects the DuckDB database whose tables are served.
type DatabaseConfig struct {
	// Path of the database file. Empty opens an in-memory database.
	Path string `mapstructure:"path"`
	// Schema is the database schema to expose.
	Schema string `mapstructure:"schema"`
	// Init is SQL run once after opening, e.g. to attach files or create views.
	Init string `mapstructure:"init"`
}

// AuthConfig lists accepted bearer tokens. No tokens disables authentication.
type AuthConfig struct {
	Tokens []TokenConfig `mapstructure:"tokens"`
}

// TokenConfig maps a token to an identity and, optionally, the collections
// it may read ("schema.collection" or "schema.*").
type TokenConfig struct {
	Token    string   `mapstructure:"token"`
	Identity string   `mapstructure:"identity"`
	Grants   []string `mapstructure:"grants"`
}

var defaults = map[string]any{
	"address":          "127.0.0.1:50051",
	"public_address":   "",
	"log_level":        "info",
	"log_format":       "text",
	"max_filter_depth": 64,
	"max_message_size": 16 << 20,
	"database.path":    "",
	"database.schema":  "main",
	"database.init":    "",
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"address":          "address",
	"public-address":   "public_address",
	"log-level":        "log_level",
	"log-format":       "log_format",
	"max-filter-depth": "max_filter_depth",
	"db":               "database.path",
	"db-schema":        "database.schema",
}

// Load parses args and merges, from lowest to highest precedence, defaults,
// the YAML file named by --config, environment variables and flags.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("entityfilterd", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML configuration file")
	fs.String("address", "", "listen address")
	fs.String("public-address", "", "address advertised in Flight endpoints")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: text or json")
	fs.Int("max-filter-depth", 0, "maximum nesting of Filter and Any expressions")
	fs.String("db", "", "DuckDB database file (empty for in-memory)")
	fs.String("db-schema", "", "database schema to expose")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", *configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.PublicAddress == "" {
		cfg.PublicAddress = cfg.Address
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("address is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.MaxFilterDepth < 0 {
		return fmt.Errorf("max_filter_depth must be non-negative, got %d", c.MaxFilterDepth)
	}
	for i, t := range c.Auth.Tokens {
		if t.Token == "" || t.Identity == "" {
			return fmt.Errorf("auth token %d: token and identity are required", i)
		}
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// TokenTables returns the token to identity table and the per-identity grants.
// Grants is nil when no token restricts collections; otherwise tokens
// without grants can read nothing.
func (a AuthConfig) TokenTables() (tokens map[string]string, grants map[string][]string) {
	tokens = make(map[string]string, len(a.Tokens))
	for _, t := range a.Tokens {
		tokens[t.Token] = t.Identity
		if len(t.Grants) > 0 {
			if grants == nil {
				grants = make(map[string][]string)
			}
			grants[t.Identity] = append(grants[t.Identity], t.Grants...)
		}
	}
	return tokens, grants
}
