package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hyperengineering/grmsync/internal/validation"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Sync     SyncConfig     `yaml:"sync"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
}

// DatabaseConfig contains database settings. Path is used by the sqlite
// driver, DSN by postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"-"` // env-only, may carry credentials
}

// Target returns the path or DSN for the configured driver.
func (d DatabaseConfig) Target() string {
	if d.Driver == "postgres" {
		return d.DSN
	}
	return d.Path
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string   `yaml:"-"` // env-only, never in YAML
	TokenTTL  Duration `yaml:"token_ttl"`
}

// LogConfig contains logging settings. An empty File logs to stdout.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// SyncConfig contains sync engine settings.
type SyncConfig struct {
	PullTimeout    Duration `yaml:"pull_timeout"`
	PushTimeout    Duration `yaml:"push_timeout"`
	SuperRole      string   `yaml:"super_role"`
	MaxPushRecords int      `yaml:"max_push_records"`

	// PushPolicy maps wire table names to the operations a push may apply.
	PushPolicy map[string][]string `yaml:"push_policy"`
}

// DefaultPushPolicy accepts issue creation only.
func DefaultPushPolicy() map[string][]string {
	return map[string][]string{"issues": {"create"}}
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("GRMSYNC_CONFIG_PATH", "config/grmsync.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	return finish(cfg)
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if cfg.Sync.PushPolicy == nil {
		cfg.Sync.PushPolicy = DefaultPushPolicy()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDefaults returns a Config with all default values. The push policy
// default is applied after loading so a YAML policy replaces it whole.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			MaxBodyBytes:    10 << 20,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/grmsync.db",
		},
		Auth: AuthConfig{
			TokenTTL: Duration(720 * time.Hour),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Sync: SyncConfig{
			PullTimeout:    Duration(60 * time.Second),
			PushTimeout:    Duration(30 * time.Second),
			SuperRole:      "admin",
			MaxPushRecords: 1000,
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values. Unparseable numbers and
// durations are ignored; an unparseable push policy is an error.
func applyEnvOverrides(cfg *Config) error {
	// Server
	envInt("GRMSYNC_PORT", &cfg.Server.Port)
	envDuration("GRMSYNC_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("GRMSYNC_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("GRMSYNC_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if v := os.Getenv("GRMSYNC_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = n
		}
	}

	// Database
	if v := os.Getenv("GRMSYNC_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("GRMSYNC_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GRMSYNC_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Auth
	if v := os.Getenv("GRMSYNC_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	envDuration("GRMSYNC_TOKEN_TTL", &cfg.Auth.TokenTTL)

	// Log
	if v := os.Getenv("GRMSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GRMSYNC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("GRMSYNC_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	// Sync
	envDuration("GRMSYNC_PULL_TIMEOUT", &cfg.Sync.PullTimeout)
	envDuration("GRMSYNC_PUSH_TIMEOUT", &cfg.Sync.PushTimeout)
	envInt("GRMSYNC_MAX_PUSH_RECORDS", &cfg.Sync.MaxPushRecords)
	if v, ok := os.LookupEnv("GRMSYNC_SUPER_ROLE"); ok {
		// Set but empty disables the super role.
		cfg.Sync.SuperRole = v
	}
	if v := os.Getenv("GRMSYNC_PUSH_POLICY"); v != "" {
		p, err := ParsePushPolicy(v)
		if err != nil {
			return err
		}
		cfg.Sync.PushPolicy = p
	}
	return nil
}

// ParsePushPolicy parses "table:op,op;table:op" into a policy map.
func ParsePushPolicy(s string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		table, ops, ok := strings.Cut(entry, ":")
		table = strings.TrimSpace(table)
		if !ok || table == "" {
			return nil, fmt.Errorf("invalid push policy entry %q: want table:op[,op]", entry)
		}
		list := []string{}
		for _, op := range strings.Split(ops, ",") {
			if op = strings.TrimSpace(op); op != "" {
				list = append(list, op)
			}
		}
		out[table] = list
	}
	return out, nil
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// DevMode reports whether GRMSYNC_DEV_MODE is enabled.
func DevMode() bool {
	return os.Getenv("GRMSYNC_DEV_MODE") == "true"
}

// validate checks that configuration values are usable. Table names in the
// push policy are checked when the sync engine builds it.
// In dev mode (GRMSYNC_DEV_MODE=true), the JWT secret is not required.
func (c *Config) validate() error {
	v := &validation.Collector{}
	v.Add(validation.ValidateRange("server.port", float64(c.Server.Port), 1, 65535))
	v.Add(validation.ValidateEnum("database.driver", c.Database.Driver, []string{"sqlite", "postgres"}))
	v.Add(validation.ValidateEnum("log.level", strings.ToLower(c.Log.Level), []string{"debug", "info", "warn", "error"}))
	v.Add(validation.ValidateEnum("log.format", c.Log.Format, []string{"json", "text"}))
	if c.Server.MaxBodyBytes <= 0 {
		v.Add(&validation.ValidationError{Field: "server.max_body_bytes", Message: "must be positive"})
	}
	if c.Sync.MaxPushRecords <= 0 {
		v.Add(&validation.ValidationError{Field: "sync.max_push_records", Message: "must be positive"})
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		v.Add(&validation.ValidationError{Field: "database.dsn", Message: "is required for postgres (GRMSYNC_DB_DSN)"})
	}

	tables := make([]string, 0, len(c.Sync.PushPolicy))
	for t := range c.Sync.PushPolicy {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		for _, op := range c.Sync.PushPolicy[t] {
			v.Add(validation.ValidateEnum("sync.push_policy."+t, op, []string{"create", "update", "delete"}))
		}
	}

	if v.HasErrors() {
		errs := make([]error, 0, len(v.Errors()))
		for _, e := range v.Errors() {
			errs = append(errs, &e)
		}
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	if DevMode() {
		return nil
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("GRMSYNC_JWT_SECRET is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
