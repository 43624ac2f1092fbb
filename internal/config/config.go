package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/crawlkit/frontier/internal/frontier"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// Backend selects the queue store: "pebble" (default) or "redis".
	Backend string `json:"backend"`
	// DataDir is the Pebble data directory. Empty means the OS default.
	DataDir string `json:"dataDir"`
	// Fsync is the Pebble WAL sync policy: "always", "interval" or "never".
	Fsync string `json:"fsync"`
	// RedisAddr is the Redis host:port for the redis backend.
	RedisAddr string `json:"redisAddr"`
	// RedisPrefix namespaces all Redis keys.
	RedisPrefix string `json:"redisPrefix"`

	// QueueNameRegex restricts queue names created through the API.
	QueueNameRegex string `json:"queueNameRegex"`
	// Dedup is the dedup filter applied to queues created without an
	// explicit configuration.
	Dedup frontier.DedupConfig `json:"dedup"`

	// DefaultLeaseMs is the lease duration applied when a fetch request
	// does not carry one.
	DefaultLeaseMs int64 `json:"defaultLeaseMs"`
	// SweepIntervalMs is the background reclaim cadence. Zero disables the
	// sweeper.
	SweepIntervalMs int64 `json:"sweepIntervalMs"`
	// SweepMax bounds one reclaim pass.
	SweepMax int `json:"sweepMax"`

	// HTTPAddr is the listen address for the HTTP API.
	HTTPAddr string `json:"httpAddr"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Backend:         "pebble",
		Fsync:           "always",
		RedisAddr:       "127.0.0.1:6379",
		RedisPrefix:     "frontier",
		QueueNameRegex:  "^[a-z0-9-_]{1,64}$",
		Dedup:           frontier.DefaultDedupConfig(),
		DefaultLeaseMs:  (5 * time.Minute).Milliseconds(),
		SweepIntervalMs: (10 * time.Second).Milliseconds(),
		SweepMax:        1024,
		HTTPAddr:        ":8080",
	}
}

// Load reads configuration from a JSON file, overlaying defaults. If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// SweepInterval returns the sweeper cadence as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}
