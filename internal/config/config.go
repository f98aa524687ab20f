package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Graph store connection
	GraphstoreURL    string
	GraphstoreAPIKey string

	// Auth
	XmlgestAPIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Source resolution
	ImportRoot    string
	AllowFileURLs bool
	MaxFetchBytes int64
	FetchTimeout  time.Duration

	// XML hardening
	XMLMaxDepth            int
	XMLMaxAttrs            int
	XMLMaxEntityExpansions int

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		GraphstoreURL:    os.Getenv("GRAPHSTORE_URL"),
		GraphstoreAPIKey: os.Getenv("GRAPHSTORE_API_KEY"),

		XmlgestAPIKey: os.Getenv("XMLGEST_API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 32),

		ImportRoot:    envOr("IMPORT_ROOT", ""),
		AllowFileURLs: envBool("ALLOW_FILE_URLS", true),
		MaxFetchBytes: envInt64("MAX_FETCH_BYTES", 67108864), // 64MB
		FetchTimeout:  envDuration("FETCH_TIMEOUT", 30*time.Second),

		XMLMaxDepth:            envInt("XML_MAX_DEPTH", 256),
		XMLMaxAttrs:            envInt("XML_MAX_ATTRS", 256),
		XMLMaxEntityExpansions: envInt("XML_MAX_ENTITY_EXPANSIONS", 10000),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 32
	}
	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = 67108864
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.XMLMaxDepth <= 0 {
		cfg.XMLMaxDepth = 256
	}
	if cfg.XMLMaxAttrs <= 0 {
		cfg.XMLMaxAttrs = 256
	}
	if cfg.XMLMaxEntityExpansions <= 0 {
		cfg.XMLMaxEntityExpansions = 10000
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.XmlgestAPIKey == "" {
		return fmt.Errorf("XMLGEST_API_KEY is required")
	}
	if c.GraphstoreURL == "" {
		return fmt.Errorf("GRAPHSTORE_URL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
