package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validJWTSecret meets the 32-character minimum.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
controller:
  host: "hc2.local"
  user: "automation"
  password: "pw"
  polling_interval: 500
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
  topic_prefix: "home/hc2"
api:
  port: 9090
  jwt_secret: "`+validJWTSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Controller.Host != "hc2.local" {
		t.Errorf("Controller.Host = %q, want hc2.local", cfg.Controller.Host)
	}
	if cfg.Controller.Port != 80 {
		t.Errorf("Controller.Port = %d, want default 80", cfg.Controller.Port)
	}
	if got := cfg.PollingInterval(); got != 500*time.Millisecond {
		t.Errorf("PollingInterval() = %v, want 500ms", got)
	}
	if got := cfg.ConnectTimeout(); got != 7*time.Second {
		t.Errorf("ConnectTimeout() = %v, want 7s", got)
	}
	if cfg.MQTT.TopicPrefix != "home/hc2" {
		t.Errorf("MQTT.TopicPrefix = %q, want home/hc2", cfg.MQTT.TopicPrefix)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	t.Setenv("HC2SYNC_CONTROLLER_HOST", "10.0.0.5")

	cfg, err := LoadOptional("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOptional() error = %v", err)
	}
	if cfg.Controller.Host != "10.0.0.5" {
		t.Errorf("Controller.Host = %q, want env override", cfg.Controller.Host)
	}
	if cfg.Controller.User != "admin" {
		t.Errorf("Controller.User = %q, want default admin", cfg.Controller.User)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	if _, err := LoadOptional(path); err == nil {
		t.Error("LoadOptional() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
controller:
  host: ""
  port: 0
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"controller.host is required", "controller.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HC2SYNC_CONTROLLER_PASSWORD=from-dotenv\n"), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("HC2SYNC_CONTROLLER_PASSWORD", "")
	os.Unsetenv("HC2SYNC_CONTROLLER_PASSWORD") //nolint:errcheck // Restored by t.Setenv

	cfg, err := LoadOptional(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOptional() error = %v", err)
	}
	if cfg.Controller.Password != "from-dotenv" {
		t.Errorf("Controller.Password = %q, want from-dotenv", cfg.Controller.Password)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing host", func(c *Config) { c.Controller.Host = "" }, true},
		{"port too high", func(c *Config) { c.Controller.Port = 70000 }, true},
		{"zero connect timeout", func(c *Config) { c.Controller.ConnectTimeout = 0 }, true},
		{"zero polling interval", func(c *Config) { c.Controller.PollingInterval = 0 }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"negative retention", func(c *Config) { c.Database.HistoryRetentionDays = -1 }, true},
		{"invalid qos", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"mqtt without prefix", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.TopicPrefix = "" }, true},
		{"api port invalid", func(c *Config) { c.API.Port = 0 }, true},
		{"api disabled ignores port", func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }, false},
		{"short jwt secret", func(c *Config) { c.API.JWTSecret = "short" }, true},
		{"valid jwt secret", func(c *Config) { c.API.JWTSecret = validJWTSecret }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Controller: ControllerConfig{ConnectTimeout: 7000, PollingInterval: 1000, PollingTimeout: 3000},
		Database:   DatabaseConfig{HistoryRetentionDays: 2},
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
	}

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"connect", cfg.ConnectTimeout(), 7 * time.Second},
		{"polling interval", cfg.PollingInterval(), time.Second},
		{"polling timeout", cfg.PollingTimeout(), 3 * time.Second},
		{"retention", cfg.HistoryRetention(), 48 * time.Hour},
		{"read", cfg.GetReadTimeout(), 30 * time.Second},
		{"write", cfg.GetWriteTimeout(), 45 * time.Second},
		{"idle", cfg.GetIdleTimeout(), 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("HC2SYNC_CONTROLLER_HOST", "10.1.1.2")
	t.Setenv("HC2SYNC_CONTROLLER_PORT", "8080")
	t.Setenv("HC2SYNC_CONTROLLER_USER", "viewer")
	t.Setenv("HC2SYNC_CONTROLLER_PASSWORD", "pw")
	t.Setenv("HC2SYNC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("HC2SYNC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("HC2SYNC_MQTT_USERNAME", "testuser")
	t.Setenv("HC2SYNC_MQTT_PASSWORD", "testpass")
	t.Setenv("HC2SYNC_API_HOST", "192.168.1.1")
	t.Setenv("HC2SYNC_API_JWT_SECRET", "jwt-secret")
	t.Setenv("HC2SYNC_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("HC2SYNC_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"controller host", cfg.Controller.Host, "10.1.1.2"},
		{"controller user", cfg.Controller.User, "viewer"},
		{"controller password", cfg.Controller.Password, "pw"},
		{"database path", cfg.Database.Path, "/custom/path.db"},
		{"mqtt host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"mqtt username", cfg.MQTT.Auth.Username, "testuser"},
		{"mqtt password", cfg.MQTT.Auth.Password, "testpass"},
		{"api host", cfg.API.Host, "192.168.1.1"},
		{"jwt secret", cfg.API.JWTSecret, "jwt-secret"},
		{"influx token", cfg.InfluxDB.Token, "secret-token"},
		{"log level", cfg.Logging.Level, "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	if cfg.Controller.Port != 8080 {
		t.Errorf("Controller.Port = %d, want 8080", cfg.Controller.Port)
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("HC2SYNC_CONTROLLER_PORT", "eighty")

	applyEnvOverrides(cfg)

	if cfg.Controller.Port != 80 {
		t.Errorf("Controller.Port = %d, want default 80", cfg.Controller.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Controller.Host != "192.168.1.69" || cfg.Controller.User != "admin" || cfg.Controller.Password != "" {
		t.Errorf("controller defaults = %+v", cfg.Controller)
	}
	if cfg.Controller.ConnectTimeout != 7000 || cfg.Controller.PollingInterval != 1000 || cfg.Controller.PollingTimeout != 3000 {
		t.Errorf("controller timing defaults = %+v", cfg.Controller)
	}
	if cfg.Controller.Debug {
		t.Error("Controller.Debug default = true, want false")
	}
	if cfg.MQTT.TopicPrefix != "hc2" {
		t.Errorf("MQTT.TopicPrefix = %q, want hc2", cfg.MQTT.TopicPrefix)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
}
