// Package config loads immutable process-wide configuration from the
// environment. Per-project overrides (the profile_config YAML document)
// are a separate, explicitly-threaded value — see package project —
// never folded into this global.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process-wide configuration for a memobase-go deployment.
type Config struct {
	PostgresConnString string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	LLMAPIKey      string
	LLMModel       string
	EmbeddingModel string

	RootProjectID string

	DefaultMaxBufferTokens  int
	DefaultIdleFlushSeconds int
}

const (
	envPostgresConnString = "MEMOBASE_POSTGRES_URL"
	envRedisAddr          = "MEMOBASE_REDIS_ADDR"
	envRedisPassword      = "MEMOBASE_REDIS_PASSWORD"
	envRedisDB            = "MEMOBASE_REDIS_DB"
	envLLMAPIKey          = "MEMOBASE_LLM_API_KEY"
	envLLMModel           = "MEMOBASE_LLM_MODEL"
	envEmbeddingModel     = "MEMOBASE_EMBEDDING_MODEL"
	envRootProjectID      = "MEMOBASE_ROOT_PROJECT_ID"
	envMaxBufferTokens    = "MEMOBASE_MAX_BUFFER_TOKENS"
	envIdleFlushSeconds   = "MEMOBASE_IDLE_FLUSH_SECONDS"
)

// DefaultRootProjectID names the single reserved root project that always
// exists, per the data model's "exactly one reserved root project" rule.
const DefaultRootProjectID = "root"

// Load reads Config from environment variables, applying defaults for
// anything unset. It never reads a config file or makes a network call.
func Load() (*Config, error) {
	c := &Config{
		PostgresConnString: os.Getenv(envPostgresConnString),
		RedisAddr:          getenvDefault(envRedisAddr, "localhost:6379"),
		RedisPassword:      os.Getenv(envRedisPassword),
		LLMAPIKey:          os.Getenv(envLLMAPIKey),
		LLMModel:           getenvDefault(envLLMModel, "gpt-4o-mini"),
		EmbeddingModel:     getenvDefault(envEmbeddingModel, "text-embedding-3-small"),
		RootProjectID:      getenvDefault(envRootProjectID, DefaultRootProjectID),

		DefaultMaxBufferTokens:  1600,
		DefaultIdleFlushSeconds: 300,
	}

	if c.PostgresConnString == "" {
		return nil, fmt.Errorf("config: %s is required", envPostgresConnString)
	}

	var err error
	if c.RedisDB, err = getenvInt(envRedisDB, 0); err != nil {
		return nil, err
	}
	if c.DefaultMaxBufferTokens, err = getenvInt(envMaxBufferTokens, c.DefaultMaxBufferTokens); err != nil {
		return nil, err
	}
	if c.DefaultIdleFlushSeconds, err = getenvInt(envIdleFlushSeconds, c.DefaultIdleFlushSeconds); err != nil {
		return nil, err
	}

	return c, nil
}

// IdleFlushInterval returns DefaultIdleFlushSeconds as a time.Duration.
func (c *Config) IdleFlushInterval() time.Duration {
	return time.Duration(c.DefaultIdleFlushSeconds) * time.Second
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}
