// Package config loads gateway configuration from a YAML or TOML file with
// environment variable expansion and overrides.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/semisearch/gateway/internal/models"
)

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Backend BackendConfig `yaml:"backend" toml:"backend"`
	Upload  UploadConfig  `yaml:"upload" toml:"upload"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	BindAddress    string   `yaml:"bind_address" toml:"bind_address"`
	Port           int      `yaml:"port" toml:"port"`
	ReadTimeout    Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout" toml:"write_timeout"`
	IdleTimeout    Duration `yaml:"idle_timeout" toml:"idle_timeout"`
	EnableCORS     bool     `yaml:"enable_cors" toml:"enable_cors"`
	AllowOrigins   string   `yaml:"allow_origins" toml:"allow_origins"`
	RequestLogging bool     `yaml:"request_logging" toml:"request_logging"`
}

// BackendConfig points at the document service.
type BackendConfig struct {
	URL          string   `yaml:"url" toml:"url"`
	Timeout      Duration `yaml:"timeout" toml:"timeout"`
	MaxRetries   int      `yaml:"max_retries" toml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff" toml:"retry_backoff"`
}

// UploadConfig controls upload staging and validation.
type UploadConfig struct {
	StagingDir       string   `yaml:"staging_dir" toml:"staging_dir"`
	MaxSize          int64    `yaml:"max_size" toml:"max_size"`
	AllowedMimeTypes []string `yaml:"allowed_mime_types" toml:"allowed_mime_types"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BindAddress:    "0.0.0.0",
			Port:           3000,
			ReadTimeout:    Duration(30 * time.Second),
			WriteTimeout:   Duration(60 * time.Second),
			IdleTimeout:    Duration(120 * time.Second),
			EnableCORS:     true,
			AllowOrigins:   "*",
			RequestLogging: true,
		},
		Backend: BackendConfig{
			URL:          "http://localhost:8001",
			Timeout:      Duration(30 * time.Second),
			MaxRetries:   0,
			RetryBackoff: Duration(200 * time.Millisecond),
		},
		Upload: UploadConfig{
			StagingDir:       filepath.Join(os.TempDir(), "gateway-staging"),
			MaxSize:          models.MaxUploadSize,
			AllowedMimeTypes: []string{models.MimeXLSX, models.MimeXLS},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads configuration from path. A missing file is created with defaults.
// The format is chosen by extension: .toml for TOML, anything else is YAML.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		expanded := expandEnvVars(string(data))
		if err := decode(path, []byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *AppConfig) error {
	if isTOML(path) {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Save writes the configuration to path in the format implied by its extension.
func (c *AppConfig) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("# Gateway configuration (generated on first run)\n\n")
	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	} else {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		enc.Close()
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or "" if unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyEnvironmentOverrides lets the environment win over the file.
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if u := os.Getenv("BACKEND_URL"); u != "" {
		c.Backend.URL = u
	}
	if dir := os.Getenv("STAGING_DIR"); dir != "" {
		c.Upload.StagingDir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks that the configuration is usable.
func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url %q is not an absolute URL", c.Backend.URL)
	}
	if c.Backend.MaxRetries < 0 {
		return fmt.Errorf("backend.max_retries must not be negative")
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive")
	}
	if len(c.Upload.AllowedMimeTypes) == 0 {
		return fmt.Errorf("upload.allowed_mime_types must not be empty")
	}
	if c.Upload.StagingDir == "" {
		return fmt.Errorf("upload.staging_dir is required")
	}
	return nil
}

// GetServerAddr returns the listen address.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetAllowOrigins splits the comma-separated CORS origins. Empty means any origin.
func (c *AppConfig) GetAllowOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// ConfigPath returns GATEWAY_CONFIG or ./gateway.yaml.
func ConfigPath() string {
	if p := os.Getenv("GATEWAY_CONFIG"); p != "" {
		return p
	}
	return "gateway.yaml"
}
