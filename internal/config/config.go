// ABOUTME: Configuration loading and parsing for qmserver
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is the insecure placeholder secret used when nothing else
// is configured. Deployments must override it via config or JWT_SECRET_KEY.
const DefaultJWTSecret = "YOUR_SUPER_SECRET_KEY_REPLACE_ME"

// Config represents the complete qmserver configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Modules ModulesConfig `yaml:"modules"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// CORSOrigins lists the browser origins allowed to call the API with
	// credentials. Defaults cover the local frontend dev servers.
	CORSOrigins []string `yaml:"cors_origins"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ModulesConfig holds module repository and installation configuration
type ModulesConfig struct {
	RepoURL     string   `yaml:"repo_url"`
	RepoToken   string   `yaml:"repo_token"`
	InstallRoot string   `yaml:"install_root"`
	CacheRoot   string   `yaml:"cache_root"`
	Enabled     []string `yaml:"enabled"`
	Source      string   `yaml:"source"`

	FetchTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	FetchTimeoutRaw string `yaml:"fetch_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration populated entirely from defaults and
// environment variables, for running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	// Defaults always parse; ignore the error rather than surface one here.
	_ = parseDurations(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// A missing file is not an error; defaults and environment variables apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills unset fields from environment variables and built-in
// defaults. Config file values win over the environment.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8000"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{
			"http://localhost:5173",
			"http://localhost:5174",
		}
	}
	if c.Modules.RepoURL == "" {
		c.Modules.RepoURL = os.Getenv("MODULES_REPO_URL")
	}
	if c.Modules.RepoToken == "" {
		c.Modules.RepoToken = os.Getenv("MODULES_REPO_TOKEN")
	}
	if c.Modules.InstallRoot == "" {
		c.Modules.InstallRoot = "./modules"
	}
	if c.Modules.CacheRoot == "" {
		c.Modules.CacheRoot = filepath.Join(os.TempDir(), "qmserver", "clones")
	}
	if len(c.Modules.Enabled) == 0 {
		c.Modules.Enabled = []string{"sqlite"}
	}
	if c.Modules.Source == "" {
		c.Modules.Source = "branch"
	}
	if c.Modules.FetchTimeoutRaw == "" {
		c.Modules.FetchTimeoutRaw = "60s"
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = os.Getenv("JWT_SECRET_KEY")
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = DefaultJWTSecret
	}
	if c.Logging.Level == "" {
		c.Logging.Level = os.Getenv("APP_LOG_LEVEL")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Modules.Source != "branch" && c.Modules.Source != "directory" {
		return fmt.Errorf("modules.source must be %q or %q, got %q", "branch", "directory", c.Modules.Source)
	}

	if c.Modules.InstallRoot == "" {
		return fmt.Errorf("modules.install_root is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Modules.FetchTimeoutRaw != "" {
		cfg.Modules.FetchTimeout, err = time.ParseDuration(cfg.Modules.FetchTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing fetch_timeout %q: %w", cfg.Modules.FetchTimeoutRaw, err)
		}
	}

	return nil
}
