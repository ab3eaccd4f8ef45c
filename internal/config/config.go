// Package config loads platform configuration from the environment. Every
// mandatory key must be present at startup; absence is a construction error
// that prevents the listener from binding.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	ListenAddr string

	DocumentDBDSN   string
	RelationalDBDSN string
	CacheAddr       string
	CachePassword   string
	CacheDB         int
	SearchAddr      string
	SearchPassword  string

	SessionSecret    string
	SessionTTL       time.Duration
	AllowedOrigins   []string
	RateLimitWindow  time.Duration
	RateLimitMax     int
	MaxBodyBytes     int64
	WorkerCount      int
	JobMaxAttempts   int
	JobBackoffBase   time.Duration
	JobBackoffCap    time.Duration
	ShutdownTimeout  time.Duration
	WebhookSecret    string
	GatewayURL       string
	GatewayToken     string
	LogLevel         string
	LogFormat        string
}

// Getenv matches os.Getenv and exists so tests can inject environments.
type Getenv func(key string) string

// Load reads configuration using getenv. Mandatory keys: LISTEN_ADDR,
// DOCUMENT_DB_DSN, RELATIONAL_DB_DSN, CACHE_ADDR, SEARCH_ADDR,
// SESSION_SECRET, CORS_ALLOWED_ORIGINS, RATE_LIMIT_WINDOW, RATE_LIMIT_MAX,
// PAYMENT_WEBHOOK_SECRET.
func Load(getenv Getenv) (*Config, error) {
	cfg := &Config{
		SessionTTL:      24 * time.Hour,
		MaxBodyBytes:    10 << 20,
		WorkerCount:     4,
		JobMaxAttempts:  5,
		JobBackoffBase:  time.Second,
		JobBackoffCap:   5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		LogLevel:        "info",
		LogFormat:       "json",
	}

	var missing []string
	require := func(key string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.ListenAddr = require("LISTEN_ADDR")
	cfg.DocumentDBDSN = require("DOCUMENT_DB_DSN")
	cfg.RelationalDBDSN = require("RELATIONAL_DB_DSN")
	cfg.CacheAddr = require("CACHE_ADDR")
	cfg.SearchAddr = require("SEARCH_ADDR")
	cfg.SessionSecret = require("SESSION_SECRET")
	cfg.WebhookSecret = require("PAYMENT_WEBHOOK_SECRET")

	if raw := require("CORS_ALLOWED_ORIGINS"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if origin := strings.TrimSpace(part); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if raw := require("RATE_LIMIT_WINDOW"); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil || window <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_WINDOW: invalid duration %q", raw)
		}
		cfg.RateLimitWindow = window
	}

	if raw := require("RATE_LIMIT_MAX"); raw != "" {
		max, err := strconv.Atoi(raw)
		if err != nil || max <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_MAX: invalid count %q", raw)
		}
		cfg.RateLimitMax = max
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if v := strings.TrimSpace(getenv("CACHE_PASSWORD")); v != "" {
		cfg.CachePassword = v
	}
	if v := strings.TrimSpace(getenv("SEARCH_PASSWORD")); v != "" {
		cfg.SearchPassword = v
	}
	if v := strings.TrimSpace(getenv("CACHE_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CACHE_DB: invalid index %q", v)
		}
		cfg.CacheDB = db
	}
	if v := strings.TrimSpace(getenv("SESSION_TTL")); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("SESSION_TTL: invalid duration %q", v)
		}
		cfg.SessionTTL = ttl
	}
	if v := strings.TrimSpace(getenv("MAX_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_BODY_BYTES: invalid size %q", v)
		}
		cfg.MaxBodyBytes = n
	}
	if v := strings.TrimSpace(getenv("WORKER_COUNT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("WORKER_COUNT: invalid count %q", v)
		}
		cfg.WorkerCount = n
	}
	if v := strings.TrimSpace(getenv("JOB_MAX_ATTEMPTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("JOB_MAX_ATTEMPTS: invalid count %q", v)
		}
		cfg.JobMaxAttempts = n
	}
	if v := strings.TrimSpace(getenv("SHUTDOWN_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: invalid duration %q", v)
		}
		cfg.ShutdownTimeout = d
	}
	// Without a gateway URL the stub gateway approves every charge; real
	// deployments always set it.
	if v := strings.TrimSpace(getenv("PAYMENT_GATEWAY_URL")); v != "" {
		cfg.GatewayURL = v
	}
	if v := strings.TrimSpace(getenv("PAYMENT_GATEWAY_TOKEN")); v != "" {
		cfg.GatewayToken = v
	}
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(getenv("LOG_FORMAT")); v != "" {
		cfg.LogFormat = v
	}

	return cfg, nil
}
