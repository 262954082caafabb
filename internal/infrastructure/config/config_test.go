package config

import (
	"os"
	"path/filepath"
	"testing"
)

const (
	testPairingSecret = "pairing-secret-key-at-least-32-chars"
	testJWTSecret     = "test-secret-key-at-least-32-chars!!"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
pairing:
  shared_secret: "pairing-secret-key-at-least-32-chars"
  service_endpoint: "mqtts://acs.local:8883"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!!"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if cfg.Pairing.ServiceEndpoint != "mqtts://acs.local:8883" {
		t.Errorf("Pairing.ServiceEndpoint = %q", cfg.Pairing.ServiceEndpoint)
	}

	// Unset liveness thresholds fall back to defaults.
	if got := cfg.GetOfflineAfter().Seconds(); got != 30 {
		t.Errorf("GetOfflineAfter() = %vs, want 30s", got)
	}
	if got := cfg.GetStaleAfter().Seconds(); got != 300 {
		t.Errorf("GetStaleAfter() = %vs, want 300s", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func validConfig() *Config {
	return &Config{
		Site:     SiteConfig{ID: "site-001"},
		Database: DatabaseConfig{Path: "/data/acs.db"},
		MQTT:     MQTTConfig{QoS: 1},
		API:      APIConfig{Port: 8080},
		Pairing:  PairingConfig{SharedSecret: testPairingSecret},
		Security: SecurityConfig{JWT: JWTConfig{Secret: testJWTSecret}},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"missing pairing secret", func(c *Config) { c.Pairing.SharedSecret = "" }, true},
		{"pairing secret too short", func(c *Config) { c.Pairing.SharedSecret = "short" }, true},
		{"missing JWT secret", func(c *Config) { c.Security.JWT.Secret = "" }, true},
		{"JWT secret too short", func(c *Config) { c.Security.JWT.Secret = "short" }, true},
		{"negative liveness threshold", func(c *Config) { c.Liveness.OfflineAfter = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("ACS_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ACS_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ACS_MQTT_USERNAME", "testuser")
	t.Setenv("ACS_MQTT_PASSWORD", "testpass")
	t.Setenv("ACS_API_HOST", "192.168.1.1")
	t.Setenv("ACS_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("ACS_PAIRING_SECRET", "env-pairing-secret")
	t.Setenv("ACS_JWT_SECRET", "env-jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Pairing.SharedSecret != "env-pairing-secret" {
		t.Errorf("Pairing.SharedSecret = %q, want %q", cfg.Pairing.SharedSecret, "env-pairing-secret")
	}

	if cfg.Security.JWT.Secret != "env-jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "env-jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}

	if cfg.Liveness.OfflineAfter != 30 || cfg.Liveness.StaleAfter != 300 {
		t.Errorf("defaultConfig liveness = %+v, want 30/300", cfg.Liveness)
	}
}
