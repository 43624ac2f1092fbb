package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/crawlkit/frontier/internal/config"
	"github.com/crawlkit/frontier/internal/frontier"
	"github.com/crawlkit/frontier/internal/frontier/pebbleq"
	"github.com/crawlkit/frontier/internal/frontier/redisq"
	pebblestore "github.com/crawlkit/frontier/internal/storage/pebble"
)

// Backend names accepted in configuration.
const (
	BackendPebble = "pebble"
	BackendRedis  = "redis"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
}

// Runtime owns the store selected by configuration and opens queues on it.
type Runtime struct {
	config cfgpkg.Config
	db     *pebblestore.DB
	rdb    *redis.Client
}

// Open initializes the configured backend and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	rt := &Runtime{config: cfg}
	switch cfg.Backend {
	case BackendPebble, "":
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = cfgpkg.DefaultDataDir()
		}
		db, err := pebblestore.Open(pebblestore.Options{DataDir: dataDir, Fsync: parseFsync(cfg.Fsync)})
		if err != nil {
			return nil, fmt.Errorf("open pebble at %s: %w", dataDir, err)
		}
		rt.db = db
	case BackendRedis:
		rt.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return rt, nil
}

func parseFsync(s string) pebblestore.FsyncMode {
	switch s {
	case "always":
		return pebblestore.FsyncModeAlways
	case "interval":
		return pebblestore.FsyncModeInterval
	case "never":
		return pebblestore.FsyncModeNever
	default:
		return pebblestore.FsyncModeUnspecified
	}
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	var err error
	if r.db != nil {
		err = r.db.Close()
	}
	if r.rdb != nil {
		if cerr := r.rdb.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// CheckHealth verifies the backing store is reachable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	switch {
	case r.db != nil:
		it, err := r.db.NewIter(nil)
		if err != nil {
			return err
		}
		return it.Close()
	case r.rdb != nil:
		return r.rdb.Ping(ctx).Err()
	default:
		return errors.New("no store open")
	}
}

// OpenQueue opens the named queue with the given dedup filter on the
// configured backend.
func (r *Runtime) OpenQueue(ctx context.Context, name string, dedup frontier.DedupConfig) (frontier.Queue, error) {
	switch {
	case r.db != nil:
		return pebbleq.Open(r.db, name, dedup)
	case r.rdb != nil:
		return redisq.Open(ctx, r.rdb, name, redisq.Options{Prefix: r.config.RedisPrefix, Dedup: dedup})
	default:
		return nil, errors.New("no store open")
	}
}

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

func isRedisNil(err error) bool { return errors.Is(err, redis.Nil) }

// DB exposes the underlying Pebble store for advanced operations. Nil when
// the redis backend is configured.
func (r *Runtime) DB() *pebblestore.DB { return r.db }
