package config

import (
	"fmt"
	"regexp"
	"strings"

	core "github.com/devilmonastery/sessionshare/internal/config"
)

// DefaultBlacklist matches forum paths that never trigger a shared-session login.
// The relative path is prepended at compile time.
const DefaultBlacklist = `(/api|/vendor|/uploads|/language|/templates|/debug|/static|/metrics|/health|/version)`

// WebServerConfig represents the web server configuration. Storage and
// session-sharing sections are shared with the operator CLI.
type WebServerConfig struct {
	core.Config `yaml:",inline"`

	Server  HTTPServer    `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Gate    GateConfig    `yaml:"gate"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPServer holds HTTP server configuration
type HTTPServer struct {
	Host         string `yaml:"host" default:"localhost"`
	Port         int    `yaml:"port" default:"4567"`
	BaseURL      string `yaml:"base_url" default:"http://localhost:4567"` // public origin used in guest redirects
	RelativePath string `yaml:"relative_path"`                            // forum mount point, e.g. "/forum"
}

// SessionConfig holds session configuration
type SessionConfig struct {
	Secret string `yaml:"secret"` // 32-byte base64-encoded string
	Secure bool   `yaml:"secure"` // mark the session cookie Secure
}

// GateConfig holds the session gate's path filter
type GateConfig struct {
	Blacklist string `yaml:"blacklist"` // overrides DefaultBlacklist
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`  // Log level: debug, info, warn, error
	Format string `yaml:"format" default:"json"` // Log format: json, text
	File   string `yaml:"file"`                  // also log to this file when set
}

// Load loads the web server configuration from the specified file or default locations
func Load(configPath string) (*WebServerConfig, error) {
	config := &WebServerConfig{
		Config: *core.Defaults(),
		Server: HTTPServer{
			Host:    "localhost",
			Port:    4567,
			BaseURL: "http://localhost:4567",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if err := core.Decode(configPath, config); err != nil {
		return nil, err
	}

	if err := config.Config.Finalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// RelativePath returns the mount point without a trailing slash
func (c *WebServerConfig) RelativePath() string {
	return strings.TrimRight(c.Server.RelativePath, "/")
}

// BlacklistPattern compiles the gate filter anchored at the relative path
func (c *WebServerConfig) BlacklistPattern() (*regexp.Regexp, error) {
	pattern := c.Gate.Blacklist
	if pattern == "" {
		pattern = "^" + regexp.QuoteMeta(c.RelativePath()) + DefaultBlacklist
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("gate.blacklist: %w", err)
	}
	return re, nil
}

// validate performs basic validation on the web configuration
func validate(config *WebServerConfig) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url cannot be empty")
	}

	if rp := config.Server.RelativePath; rp != "" && !strings.HasPrefix(rp, "/") {
		return fmt.Errorf("server.relative_path must start with /")
	}

	if _, err := config.BlacklistPattern(); err != nil {
		return err
	}

	return nil
}
