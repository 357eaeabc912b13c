package httpclient

import (
	"testing"
	"time"

	"github.com/kbukum/fetchguard/errors"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", cfg.Timeout)
	}
	if cfg.UserAgent == "" {
		t.Error("expected a default user agent")
	}
	if cfg.MaxBodyBytes != defaultMaxBodyBytes {
		t.Errorf("expected default body cap, got %d", cfg.MaxBodyBytes)
	}
}

func TestConfig_ApplyDefaults_PreservesExisting(t *testing.T) {
	cfg := Config{Timeout: 10 * time.Second, UserAgent: "bot/1.0"}
	cfg.ApplyDefaults()
	if cfg.Timeout != 10*time.Second || cfg.UserAgent != "bot/1.0" {
		t.Errorf("expected explicit values kept, got %v %q", cfg.Timeout, cfg.UserAgent)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Timeout: 10 * time.Second, MaxBodyBytes: 1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg = Config{Timeout: -1, MaxBodyBytes: 1}
	if err := cfg.Validate(); !errors.IsConfiguration(err) {
		t.Fatalf("expected configuration error for negative timeout, got %v", err)
	}
}
