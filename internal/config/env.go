package config

import (
	"os"
	"strconv"

	"github.com/crawlkit/frontier/internal/frontier"
)

// FromEnv overlays FRONTIER_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("FRONTIER_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("FRONTIER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FRONTIER_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("FRONTIER_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("FRONTIER_REDIS_PREFIX"); v != "" {
		cfg.RedisPrefix = v
	}
	if v := os.Getenv("FRONTIER_QUEUE_NAME_REGEX"); v != "" {
		cfg.QueueNameRegex = v
	}
	if v := os.Getenv("FRONTIER_DEDUP"); v != "" {
		cfg.Dedup.Kind = frontier.DedupKind(v)
	}
	if v := os.Getenv("FRONTIER_BLOOM_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dedup.BloomCapacity = n
		}
	}
	if v := os.Getenv("FRONTIER_BLOOM_FP_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Dedup.BloomFPRate = f
		}
	}
	if v := os.Getenv("FRONTIER_DEFAULT_LEASE_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.DefaultLeaseMs = n
		}
	}
	if v := os.Getenv("FRONTIER_SWEEP_INTERVAL_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SweepIntervalMs = n
		}
	}
	if v := os.Getenv("FRONTIER_SWEEP_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SweepMax = n
		}
	}
	if v := os.Getenv("FRONTIER_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
}
