package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transport types.
const (
	TransportSSE        = "sse"
	TransportStreamable = "streamable_http"
)

// Config represents the MCP server configuration
type Config struct {
	Name        string      `json:"name" yaml:"name"`
	Version     string      `json:"version" yaml:"version"`
	Description string      `json:"description" yaml:"description"`
	Server      Server      `json:"server" yaml:"server"`
	Transports  []Transport `json:"transports" yaml:"transports"`
	Session     Session     `json:"session" yaml:"session"`
	Logging     Logging     `json:"logging" yaml:"logging"`
}

// Server represents server configuration
type Server struct {
	Host                   string `json:"host" yaml:"host"`
	Port                   int    `json:"port" yaml:"port"`
	Debug                  bool   `json:"debug" yaml:"debug"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// Transport represents a transport configuration. MessagePath is only used
// by the sse transport.
type Transport struct {
	Type        string `json:"type" yaml:"type"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Path        string `json:"path" yaml:"path"`
	MessagePath string `json:"message_path,omitempty" yaml:"message_path,omitempty"`
}

// Session controls session lifetime.
type Session struct {
	IdleTimeoutSeconds int    `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
	CleanupSchedule    string `json:"cleanup_schedule" yaml:"cleanup_schedule"`
	KeepAliveSeconds   int    `json:"keepalive_seconds" yaml:"keepalive_seconds"`
}

// Logging represents logging configuration. An empty Path logs to stdout only.
type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Path   string `json:"path" yaml:"path"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Name:        "Azure App Service Tutorial",
		Version:     "1.0.0",
		Description: "Step-by-step guide for deploying an app to Azure App Service",
		Server: Server{
			Host:                   "localhost",
			Port:                   8787,
			Debug:                  false,
			ShutdownTimeoutSeconds: 10,
		},
		Transports: []Transport{
			{
				Type:        TransportSSE,
				Enabled:     true,
				Path:        "/sse",
				MessagePath: "/sse/message",
			},
			{
				Type:    TransportStreamable,
				Enabled: true,
				Path:    "/mcp",
			},
		},
		Session: Session{
			IdleTimeoutSeconds: 600,
			CleanupSchedule:    "@every 5m",
			KeepAliveSeconds:   25,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads the configuration from a file. Files ending in .yaml or
// .yml are decoded as YAML, everything else as JSON. A .env file next to the
// working directory is loaded first so MCP_* overrides can live there.
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		log.Printf("warning: ignoring unreadable .env file: %v", err)
	}

	cfg := NewConfig()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Override with environment variables (highest priority).
	applyEnvOverrides(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a file in the format implied by its
// extension.
func SaveConfig(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := encode(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func encode(path string, cfg *Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func applyEnvOverrides(cfg *Config) {
	if portStr := os.Getenv("MCP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("warning: ignoring invalid MCP_PORT value %q: %v", portStr, err)
		}
	}

	if host := os.Getenv("MCP_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if debug := os.Getenv("MCP_DEBUG"); debug != "" {
		if parsed, err := strconv.ParseBool(debug); err == nil {
			cfg.Server.Debug = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_DEBUG value %q: %v", debug, err)
		}
	}

	if logLevel := os.Getenv("MCP_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("MCP_LOG_FORMAT"); logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	if logPath := os.Getenv("MCP_LOG_PATH"); logPath != "" {
		cfg.Logging.Path = logPath
	}

	if idle := os.Getenv("MCP_SESSION_IDLE_TIMEOUT_SECONDS"); idle != "" {
		if parsed, err := strconv.Atoi(idle); err == nil {
			cfg.Session.IdleTimeoutSeconds = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_SESSION_IDLE_TIMEOUT_SECONDS value %q: %v", idle, err)
		}
	}

	if schedule := os.Getenv("MCP_SESSION_CLEANUP_SCHEDULE"); schedule != "" {
		cfg.Session.CleanupSchedule = schedule
	}

	if disabled := os.Getenv("MCP_DISABLED_TRANSPORTS"); disabled != "" {
		for _, name := range parseCSV(disabled) {
			for i := range cfg.Transports {
				if strings.EqualFold(cfg.Transports[i].Type, name) {
					cfg.Transports[i].Enabled = false
				}
			}
		}
	}
}

// Normalize canonicalizes config values so downstream validation and runtime
// logic operate on stable representations.
func (c *Config) Normalize() {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Path = strings.TrimSpace(c.Logging.Path)
	c.Session.CleanupSchedule = strings.TrimSpace(c.Session.CleanupSchedule)
	if c.Session.CleanupSchedule == "" {
		c.Session.CleanupSchedule = "@every 5m"
	}
	if c.Session.IdleTimeoutSeconds == 0 {
		c.Session.IdleTimeoutSeconds = 600
	}
	if c.Session.KeepAliveSeconds == 0 {
		c.Session.KeepAliveSeconds = 25
	}
	for i := range c.Transports {
		t := &c.Transports[i]
		t.Type = strings.ToLower(strings.TrimSpace(t.Type))
		t.Path = normalizePath(t.Path)
		t.MessagePath = normalizePath(t.MessagePath)
		if t.Type == TransportSSE && t.MessagePath == "" && t.Path != "" {
			t.MessagePath = strings.TrimSuffix(t.Path, "/") + "/message"
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid port number")
	}

	if c.Server.Host == "" {
		return errors.New("host cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.New("invalid log level")
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return errors.New("invalid log format")
	}

	if c.Session.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("invalid session idle timeout %d", c.Session.IdleTimeoutSeconds)
	}
	if c.Session.KeepAliveSeconds < 0 {
		return fmt.Errorf("invalid session keepalive %d", c.Session.KeepAliveSeconds)
	}

	if len(c.Transports) == 0 {
		return errors.New("at least one transport must be enabled")
	}

	validTransportTypes := map[string]bool{
		TransportSSE:        true,
		TransportStreamable: true,
	}

	enabledTransports := 0
	paths := make(map[string]string)
	for _, t := range c.Transports {
		if !validTransportTypes[t.Type] {
			return fmt.Errorf("invalid transport type: %s", t.Type)
		}
		if !t.Enabled {
			continue
		}
		enabledTransports++
		if t.Path == "" {
			return fmt.Errorf("transport %s: path cannot be empty", t.Type)
		}
		owned := []string{t.Path}
		if t.Type == TransportSSE {
			owned = append(owned, t.MessagePath)
		}
		for _, p := range owned {
			if other, taken := paths[p]; taken {
				return fmt.Errorf("transport %s: path %s already used by %s", t.Type, p, other)
			}
			paths[p] = t.Type
		}
	}

	if enabledTransports == 0 {
		return errors.New("at least one transport must be enabled")
	}

	return nil
}

// EnabledTransports returns the enabled transports in declaration order.
func (c *Config) EnabledTransports() []Transport {
	out := make([]Transport, 0, len(c.Transports))
	for _, t := range c.Transports {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// Transport returns the first enabled transport of the given type.
func (c *Config) Transport(kind string) (Transport, bool) {
	for _, t := range c.Transports {
		if t.Enabled && t.Type == kind {
			return t, true
		}
	}
	return Transport{}, false
}

// ResolveConfigPath returns the path that should be used for configuration.
func ResolveConfigPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv("MCP_CONFIG_PATH")); path != "" {
		return path, nil
	}

	for _, candidate := range []string{"config/mcp_config.yaml", "config/mcp_config.yml", "config/mcp_config.json"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".appservice-mcp", "config", "mcp_config.json"), nil
}

// EnsureDefaultConfig creates a default config file if one does not exist.
func EnsureDefaultConfig(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path cannot be empty")
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	return SaveConfig(NewConfig(), path)
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
