package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CIRCLE_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Fatalf("expected default port 8080 got %d", cfg.AppPort)
	}
	if cfg.Store != StorePostgres {
		t.Fatalf("expected postgres store got %q", cfg.Store)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("expected 24h token ttl got %s", cfg.TokenTTL)
	}
	if cfg.MaxUploadBytes != 30<<20 {
		t.Fatalf("expected 30MiB upload limit got %d", cfg.MaxUploadBytes)
	}
}

func TestLoadOverridesAndEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("CIRCLE_MONGO_DATABASE=fromfile\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CIRCLE_ENV_FILE", envFile)
	t.Setenv("CIRCLE_PORT", "9090")
	t.Setenv("CIRCLE_STORE", "MONGO")
	t.Setenv("CIRCLE_TOKEN_TTL", "1h")
	t.Setenv("CIRCLE_AUTH_RATE_BURST", "not-a-number")
	t.Cleanup(func() { os.Unsetenv("CIRCLE_MONGO_DATABASE") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 9090 || cfg.Store != StoreMongo || cfg.TokenTTL != time.Hour {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.AuthRateBurst != 5 {
		t.Fatalf("expected invalid int to fall back to default, got %d", cfg.AuthRateBurst)
	}
	if cfg.MongoDB != "fromfile" {
		t.Fatalf("expected value from env file, got %q", cfg.MongoDB)
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("CIRCLE_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CIRCLE_STORE", "cassandra")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Setenv("CIRCLE_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CIRCLE_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.TrustedProxies) != 2 {
		t.Fatalf("expected 2 trusted proxies got %v", cfg.TrustedProxies)
	}
	if got := cfg.TrustedProxies[1].String(); got != "192.168.1.7/32" {
		t.Fatalf("expected bare address as /32 got %q", got)
	}

	t.Setenv("CIRCLE_TRUSTED_PROXIES", "not-an-ip")
	if _, err := Load(); err == nil {
		t.Fatal("expected malformed proxy list to be rejected")
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{JWTSecret: "short", TokenTTL: time.Hour}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected short secret to be rejected")
	}

	cfg.JWTSecret = strings.Repeat("s", MinJWTSecretLength)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.TokenTTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected zero ttl to be rejected")
	}
}
