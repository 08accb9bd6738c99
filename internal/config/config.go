/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	MetricsBind   string

	// Timezone used for day-boundary and premium-window arithmetic.
	Timezone string

	// WindowsFile points at a YAML file describing premium windows.
	// Empty means the built-in night window applies.
	WindowsFile string

	// OvertimeCoefficient is applied when a request does not carry one.
	OvertimeCoefficient float64

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Redis read-side cache. Empty RedisAddr disables caching.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("VAKT_ENV", "development"),
		HTTPBind:      getEnv("VAKT_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvInt("VAKT_HTTP_PORT", 8080),
		DBBackend:     DatabaseBackend(getEnv("VAKT_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:         getEnv("VAKT_DB_DSN", ""),
		JWTSigningKey: getEnv("VAKT_JWT_SIGNING_KEY", ""),
		MetricsBind:   getEnv("VAKT_METRICS_BIND", "127.0.0.1:9000"),

		Timezone:            getEnv("VAKT_TIMEZONE", "Local"),
		WindowsFile:         getEnv("VAKT_WINDOWS_FILE", ""),
		OvertimeCoefficient: getEnvFloat("VAKT_OVERTIME_COEFFICIENT", 1.5),

		TracingEnabled:    getEnvBool("VAKT_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("VAKT_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("VAKT_TRACING_SAMPLE_RATE", 1.0),

		RedisAddr:     getEnv("VAKT_REDIS_ADDR", ""),
		RedisPassword: getEnv("VAKT_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("VAKT_REDIS_DB", 0),
		CacheTTL:      time.Duration(getEnvInt("VAKT_CACHE_TTL_SECONDS", 300)) * time.Second,
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("VAKT_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("VAKT_JWT_SIGNING_KEY must be provided")
	}

	if cfg.OvertimeCoefficient < 1 {
		return nil, fmt.Errorf("VAKT_OVERTIME_COEFFICIENT must be at least 1, got %v", cfg.OvertimeCoefficient)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
