package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MCP_PORT", "MCP_HOST", "MCP_DEBUG", "MCP_LOG_LEVEL", "MCP_LOG_FORMAT", "MCP_LOG_PATH",
		"MCP_SESSION_IDLE_TIMEOUT_SECONDS", "MCP_SESSION_CLEANUP_SCHEDULE", "MCP_DISABLED_TRANSPORTS",
		"MCP_CONFIG_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "Azure App Service Tutorial", cfg.Name)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8787, cfg.Server.Port)

	require.Len(t, cfg.Transports, 2)
	assert.Equal(t, TransportSSE, cfg.Transports[0].Type)
	assert.Equal(t, "/sse", cfg.Transports[0].Path)
	assert.Equal(t, "/sse/message", cfg.Transports[0].MessagePath)
	assert.Equal(t, TransportStreamable, cfg.Transports[1].Type)
	assert.Equal(t, "/mcp", cfg.Transports[1].Path)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_JSON(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "test_config.json")

	testConfig := `{
		"name": "test-server",
		"version": "2.0.0",
		"server": {"host": "127.0.0.1", "port": 8080, "debug": true},
		"transports": [
			{"type": "sse", "enabled": true, "path": "/events"},
			{"type": "streamable_http", "enabled": true, "path": "mcp/"}
		],
		"logging": {"level": "DEBUG", "format": "text", "path": "/tmp/test.log"}
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test-server", cfg.Name)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "/events/message", cfg.Transports[0].MessagePath)
	assert.Equal(t, "/mcp", cfg.Transports[1].Path)
	assert.Equal(t, 600, cfg.Session.IdleTimeoutSeconds)
}

func TestLoadConfig_YAML(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "mcp_config.yaml")

	testConfig := `
name: yaml-server
server:
  host: 0.0.0.0
  port: 9000
transports:
  - type: streamable_http
    enabled: true
    path: /mcp
session:
  idle_timeout_seconds: 30
  cleanup_schedule: "@every 1m"
logging:
  level: warn
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "yaml-server", cfg.Name)
	assert.Equal(t, 9000, cfg.Server.Port)
	require.Len(t, cfg.Transports, 1)
	assert.Equal(t, TransportStreamable, cfg.Transports[0].Type)
	assert.Equal(t, 30, cfg.Session.IdleTimeoutSeconds)
	assert.Equal(t, "@every 1m", cfg.Session.CleanupSchedule)
	assert.Equal(t, "warn", cfg.Logging.Level)

	_, ok := cfg.Transport(TransportSSE)
	assert.False(t, ok)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "mcp_config.json")
	require.NoError(t, SaveConfig(NewConfig(), configPath))

	t.Setenv("MCP_PORT", "9191")
	t.Setenv("MCP_HOST", "0.0.0.0")
	t.Setenv("MCP_LOG_LEVEL", "error")
	t.Setenv("MCP_DISABLED_TRANSPORTS", "sse")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "error", cfg.Logging.Level)

	enabled := cfg.EnabledTransports()
	require.Len(t, enabled, 1)
	assert.Equal(t, TransportStreamable, enabled[0].Type)
}

func TestLoadConfig_InvalidEnvIgnored(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "mcp_config.json")
	require.NoError(t, SaveConfig(NewConfig(), configPath))

	t.Setenv("MCP_PORT", "not-a-number")
	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, 8787, cfg.Server.Port)
}

func TestLoadConfig_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0644))
	_, err = LoadConfig(broken)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"server": {"port": 70000}}`), 0644))
	_, err = LoadConfig(invalid)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"no transports", func(c *Config) { c.Transports = nil }},
		{"unknown transport", func(c *Config) { c.Transports[0].Type = "stdio" }},
		{"all disabled", func(c *Config) {
			c.Transports[0].Enabled = false
			c.Transports[1].Enabled = false
		}},
		{"path clash", func(c *Config) { c.Transports[1].Path = "/sse/message" }},
		{"empty path", func(c *Config) { c.Transports[1].Path = "" }},
		{"negative idle", func(c *Config) { c.Session.IdleTimeoutSeconds = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNormalize(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.Host = "  example.com  "
	cfg.Logging.Level = " INFO "
	cfg.Transports[0].Type = " SSE "
	cfg.Transports[0].Path = "stream/"
	cfg.Transports[0].MessagePath = ""
	cfg.Session.CleanupSchedule = ""

	cfg.Normalize()
	assert.Equal(t, "example.com", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, TransportSSE, cfg.Transports[0].Type)
	assert.Equal(t, "/stream", cfg.Transports[0].Path)
	assert.Equal(t, "/stream/message", cfg.Transports[0].MessagePath)
	assert.Equal(t, "@every 5m", cfg.Session.CleanupSchedule)
	require.NoError(t, cfg.Validate())
}

func TestSaveConfig_RoundTripsYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "mcp_config.yml")

	original := NewConfig()
	original.Server.Port = 7000
	require.NoError(t, SaveConfig(original, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	assert.Error(t, SaveConfig(nil, path))
}

func TestEnsureDefaultConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config", "mcp_config.json")

	require.NoError(t, EnsureDefaultConfig(path))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Name, cfg.Name)

	require.NoError(t, os.WriteFile(path, []byte(`{"name":"custom"}`), 0644))
	require.NoError(t, EnsureDefaultConfig(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"custom"}`, string(data))

	assert.Error(t, EnsureDefaultConfig(" "))
}

func TestResolveConfigPath_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCP_CONFIG_PATH", "/etc/appservice/mcp.yaml")

	path, err := ResolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/appservice/mcp.yaml", path)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "mcp_config.json")
	require.NoError(t, SaveConfig(NewConfig(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, func(cfg *Config) { reloaded <- cfg }))

	updated := NewConfig()
	updated.Logging.Level = "debug"
	require.NoError(t, SaveConfig(updated, path))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
