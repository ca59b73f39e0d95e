package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `logLevel: "info"`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.KVBackend != "memory" {
		t.Fatalf("kvBackend = %q, want memory", cfg.KVBackend)
	}
	latency, err := ParseSearchLatency(cfg.SearchLatency)
	if err != nil || latency != 800*time.Millisecond {
		t.Fatalf("search latency = %v, %v", latency, err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOOKAN_KV_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("BOOKAN_SEARCH_LATENCY", "50ms")
	t.Setenv("BOOKAN_VERIFY_CREDENTIALS", "true")
	t.Setenv("BOOKAN_LOAN_REQUESTS_PER_HOUR", "12")
	t.Setenv("BOOKAN_MESSAGES_PER_MINUTE", "30")
	t.Setenv("BOOKAN_DUE_SOON_DAYS", "5")
	t.Setenv("BOOKAN_SEED_DEMO_CATALOG", "1")

	path := writeConfig(t, `
logLevel: "debug"
kvBackend: "memory"
redisAddr: "localhost:6379"
searchLatency: "2s"
loanRequestsPerHour: 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.KVBackend != "redis" || cfg.RedisAddr != "localhost:6380" {
		t.Fatalf("redis = %q %q", cfg.KVBackend, cfg.RedisAddr)
	}
	if cfg.SearchLatency != "50ms" {
		t.Fatalf("searchLatency = %q, want 50ms", cfg.SearchLatency)
	}
	if !cfg.VerifyCredentials || !cfg.SeedDemoCatalog {
		t.Fatalf("bool overrides not applied: %+v", cfg)
	}
	if cfg.LoanRequestsPerHour != 12 || cfg.MessagesPerMinute != 30 || cfg.DueSoonDays != 5 {
		t.Fatalf("int overrides not applied: %+v", cfg)
	}
}

func TestLoadUsesBookanConfigEnv(t *testing.T) {
	path := writeConfig(t, `logLevel: "warn"`)
	t.Setenv("BOOKAN_CONFIG", path)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("logLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestValidateConfigRejectsInvalidSettings(t *testing.T) {
	cases := map[string]FileConfig{
		"unknown backend":  {KVBackend: "etcd"},
		"redis addr":       {KVBackend: "redis"},
		"database url":     {KVBackend: "postgres"},
		"short secret":     {KVBackend: "memory", SessionSecret: "short"},
		"negative limit":   {KVBackend: "memory", LoanRequestsPerHour: -1},
		"negative due":     {KVBackend: "memory", DueSoonDays: -1},
		"bad latency":      {KVBackend: "memory", SearchLatency: "soon"},
		"negative latency": {KVBackend: "memory", SearchLatency: "-1s"},
		"bad ttl":          {KVBackend: "memory", SessionTTL: "forever"},
		"minio bucket":     {KVBackend: "memory", MinioEndpoint: "localhost:9000"},
		"event stream":     {KVBackend: "memory", EventStream: "bookan:events"},
	}
	for name, cfg := range cases {
		if err := validateConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "logLevel: [unclosed"))
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("err = %v, want parse error", err)
	}
}
