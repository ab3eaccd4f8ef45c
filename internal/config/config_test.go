package config

import (
	"strings"
	"testing"
	"time"
)

func validEnv() map[string]string {
	return map[string]string{
		"LISTEN_ADDR":            ":8080",
		"DOCUMENT_DB_DSN":        "postgres://localhost/documents",
		"RELATIONAL_DB_DSN":      "postgres://localhost/orders",
		"CACHE_ADDR":             "localhost:6379",
		"SEARCH_ADDR":            "localhost:6380",
		"SESSION_SECRET":         "secret",
		"PAYMENT_WEBHOOK_SECRET": "webhook-secret",
		"CORS_ALLOWED_ORIGINS":   "https://shop.example.com, https://admin.example.com",
		"RATE_LIMIT_WINDOW":      "1m",
		"RATE_LIMIT_MAX":         "100",
	}
}

func getenv(env map[string]string) Getenv {
	return func(key string) string { return env[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(getenv(validEnv()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("origins not split: %v", cfg.AllowedOrigins)
	}
	if cfg.RateLimitWindow != time.Minute || cfg.RateLimitMax != 100 {
		t.Fatalf("rate limit parsed wrong: %v / %d", cfg.RateLimitWindow, cfg.RateLimitMax)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("default session ttl wrong: %v", cfg.SessionTTL)
	}
	if cfg.WorkerCount != 4 || cfg.JobMaxAttempts != 5 {
		t.Fatalf("worker defaults wrong: %d / %d", cfg.WorkerCount, cfg.JobMaxAttempts)
	}
	if cfg.MaxBodyBytes != 10<<20 {
		t.Fatalf("default body limit wrong: %d", cfg.MaxBodyBytes)
	}
}

func TestLoadReportsAllMissingKeys(t *testing.T) {
	env := validEnv()
	delete(env, "SESSION_SECRET")
	delete(env, "CACHE_ADDR")

	_, err := Load(getenv(env))
	if err == nil {
		t.Fatal("expected error for missing keys")
	}
	for _, key := range []string{"SESSION_SECRET", "CACHE_ADDR"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error must name %s, got %v", key, err)
		}
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"RATE_LIMIT_WINDOW": "soon",
		"RATE_LIMIT_MAX":    "-1",
		"SESSION_TTL":       "0s",
		"WORKER_COUNT":      "zero",
	}
	for key, value := range cases {
		env := validEnv()
		env[key] = value
		if _, err := Load(getenv(env)); err == nil {
			t.Fatalf("expected error for %s=%q", key, value)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	env := validEnv()
	env["SESSION_TTL"] = "1h"
	env["WORKER_COUNT"] = "8"
	env["LOG_LEVEL"] = "debug"

	cfg, err := Load(getenv(env))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SessionTTL != time.Hour || cfg.WorkerCount != 8 || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
