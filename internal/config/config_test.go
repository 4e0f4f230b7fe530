package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid driver")
	}

	expected := `database.driver must be "memory", "redis" or "badger", got "postgres"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		db      DatabaseConfig
		wantErr bool
	}{
		{"memory", DatabaseConfig{Driver: "memory"}, false},
		{"redis with addrs", DatabaseConfig{Driver: "redis", Addrs: []string{"localhost:6379"}}, false},
		{"redis without addrs", DatabaseConfig{Driver: "redis"}, true},
		{"badger with path", DatabaseConfig{Driver: "badger", Path: "/tmp/archive"}, false},
		{"badger without path", DatabaseConfig{Driver: "badger"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Database = tt.db
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_OpenAIRequiresModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Provider = "openai"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for openai provider without model")
	}
}

func TestValidate_LimitOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultLimit = 200

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when default_limit exceeds max_limit")
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultThreshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for threshold outside [-1, 1]")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 15 {
		t.Errorf("expected WriteTimeoutSec=15, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected Driver=memory, got %q", cfg.Database.Driver)
	}
	if cfg.Embedding.Provider != "hash" {
		t.Errorf("expected Provider=hash, got %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions != 256 {
		t.Errorf("expected Dimensions=256, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.ModelVersion != "hash::256" {
		t.Errorf("expected ModelVersion='hash::256', got %q", cfg.Embedding.ModelVersion)
	}
	if !cfg.Embedding.AsyncEnabled() {
		t.Error("expected async embedding to default to enabled")
	}
	if cfg.Search.DefaultLimit != 20 {
		t.Errorf("expected DefaultLimit=20, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Search.MaxLimit != 100 {
		t.Errorf("expected MaxLimit=100, got %d", cfg.Search.MaxLimit)
	}
	if cfg.Search.DefaultThreshold != 0.5 {
		t.Errorf("expected DefaultThreshold=0.5, got %v", cfg.Search.DefaultThreshold)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	async := false
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:  DatabaseConfig{Driver: "redis", ReadinessTimeout: 15},
		Embedding: EmbeddingConfig{Provider: "openai", Model: "m", ModelVersion: "m@2", Async: &async},
		Search:    SearchConfig{DefaultLimit: 50, MaxLimit: 500, DefaultThreshold: 0.2},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected Driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Embedding.ModelVersion != "m@2" {
		t.Errorf("expected ModelVersion='m@2', got %q", cfg.Embedding.ModelVersion)
	}
	if cfg.Embedding.AsyncEnabled() {
		t.Error("expected async embedding disabled")
	}
	if cfg.Search.DefaultLimit != 50 || cfg.Search.MaxLimit != 500 {
		t.Errorf("expected limits 50/500, got %d/%d", cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("ARCHIVE_TEST_PORT", "9090")

	data := []byte(`
http:
  port: ${ARCHIVE_TEST_PORT}
database:
  driver: ${ARCHIVE_TEST_DRIVER:-memory}
auth:
  api_keys: ["${ARCHIVE_TEST_KEY:-secret}"]
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected driver memory, got %q", cfg.Database.Driver)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0] != "secret" {
		t.Errorf("expected api key default, got %v", cfg.Auth.APIKeys)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("http: [unterminated"))
	if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
