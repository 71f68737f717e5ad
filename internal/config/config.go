// Package config loads keygate configuration from environment variables
// (KEYGATE_ prefix) merged over an optional YAML file, with validated
// defaults for everything else.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// envPrefix is the prefix for all environment overrides, e.g.
// KEYGATE_SERVER_PORT.
const envPrefix = "KEYGATE"

// Config represents the complete application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Security    SecurityConfig    `yaml:"security" envconfig:"SECURITY"`
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Store       StoreConfig       `yaml:"store" envconfig:"STORE"`
	Entitlement EntitlementConfig `yaml:"entitlement" envconfig:"ENTITLEMENT"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration.
//
// AdminSecret is a static shared bearer token compared by constant-time
// equality. That is acceptable only because the administrative endpoints
// are assumed to be unreachable from a hostile network path; it is not
// sufficient for public exposure.
type SecurityConfig struct {
	AdminSecret string          `yaml:"admin_secret" envconfig:"ADMIN_SECRET"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/keygate.log"`
}

// StoreConfig selects and configures the entitlement store backend.
type StoreConfig struct {
	// Driver is "file" or "memory". The memory driver is process-lifetime
	// scoped and single-instance only.
	Driver string `yaml:"driver" envconfig:"DRIVER" default:"file"`
	// Path deliberately carries no envconfig alternate name: envconfig
	// consults alternate names without the KEYGATE prefix, and an alternate
	// of PATH would read the system search path. The derived variable is
	// KEYGATE_STORE_PATH.
	Path string `yaml:"path" default:"data/entitlements.json"`
}

// EntitlementConfig tunes the license engine.
type EntitlementConfig struct {
	// ResetLimit is the daily self-service HWID reset cap.
	ResetLimit int `yaml:"reset_limit" envconfig:"RESET_LIMIT" default:"3"`
}

// Load loads configuration with precedence defaults < YAML file <
// environment. The file is named by KEYGATE_CONFIG (config.yml if
// present), and the merged result is validated.
func Load() (*Config, error) {
	var cfg Config

	// Defaults and environment overrides come from the envconfig tags.
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := os.Getenv(envPrefix + "_CONFIG")
	if configFile == "" {
		configFile = "config.yml"
	}
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configFile, err)
		}
		mergeFile(&cfg, fileCfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeFile overlays file values onto the env-loaded config. A file value
// is taken only when it is set in the file and the matching environment
// variable is absent, so the environment always wins and file values beat
// the struct-tag defaults. Re-running envconfig.Process after unmarshaling
// would not work here: it re-applies every default tag over file values
// whose variable is unset.
func mergeFile(cfg *Config, file *Config) {
	if file.Server.Port != 0 && !envSet("SERVER_PORT") {
		cfg.Server.Port = file.Server.Port
	}
	if file.Server.ReadTimeout != 0 && !envSet("SERVER_READ_TIMEOUT") {
		cfg.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if file.Server.WriteTimeout != 0 && !envSet("SERVER_WRITE_TIMEOUT") {
		cfg.Server.WriteTimeout = file.Server.WriteTimeout
	}
	if file.Server.IdleTimeout != 0 && !envSet("SERVER_IDLE_TIMEOUT") {
		cfg.Server.IdleTimeout = file.Server.IdleTimeout
	}
	if file.Server.ShutdownTimeout != 0 && !envSet("SERVER_SHUTDOWN_TIMEOUT") {
		cfg.Server.ShutdownTimeout = file.Server.ShutdownTimeout
	}

	if file.Security.AdminSecret != "" && !envSet("SECURITY_ADMIN_SECRET") {
		cfg.Security.AdminSecret = file.Security.AdminSecret
	}
	if file.Security.RateLimit.RPS != 0 && !envSet("SECURITY_RATE_LIMIT_RPS") {
		cfg.Security.RateLimit.RPS = file.Security.RateLimit.RPS
	}
	if file.Security.RateLimit.Burst != 0 && !envSet("SECURITY_RATE_LIMIT_BURST") {
		cfg.Security.RateLimit.Burst = file.Security.RateLimit.Burst
	}

	if file.Logging.Level != "" && !envSet("LOGGING_LEVEL") {
		cfg.Logging.Level = file.Logging.Level
	}
	if file.Logging.Output != "" && !envSet("LOGGING_OUTPUT") {
		cfg.Logging.Output = file.Logging.Output
	}
	if file.Logging.FilePath != "" && !envSet("LOGGING_FILE_PATH") {
		cfg.Logging.FilePath = file.Logging.FilePath
	}

	if file.Store.Driver != "" && !envSet("STORE_DRIVER") {
		cfg.Store.Driver = file.Store.Driver
	}
	if file.Store.Path != "" && !envSet("STORE_PATH") {
		cfg.Store.Path = file.Store.Path
	}

	if file.Entitlement.ResetLimit != 0 && !envSet("ENTITLEMENT_RESET_LIMIT") {
		cfg.Entitlement.ResetLimit = file.Entitlement.ResetLimit
	}
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(envPrefix + "_" + key)
	return ok
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case "file", "memory":
	default:
		return fmt.Errorf("unknown store driver %q (want file or memory)", c.Store.Driver)
	}
	if c.Store.Driver == "file" && c.Store.Path == "" {
		return fmt.Errorf("store path is required for the file driver")
	}
	if c.Security.AdminSecret == "" {
		return fmt.Errorf("security admin_secret is required")
	}
	if c.Entitlement.ResetLimit < 1 {
		return fmt.Errorf("entitlement reset_limit must be at least 1, got %d", c.Entitlement.ResetLimit)
	}
	return nil
}
