package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"

	"github.com/crawlkit/frontier/internal/frontier"
	pebblestore "github.com/crawlkit/frontier/internal/storage/pebble"
)

// The queue registry records which queues exist and the dedup filter each
// was created with, so a restarted process reopens them with the same
// geometry.

const registryPrefix = "registry/"

func (r *Runtime) registryHashKey() string {
	return r.config.RedisPrefix + ":queues"
}

// SaveQueue records a queue and its dedup configuration.
func (r *Runtime) SaveQueue(ctx context.Context, name string, dedup frontier.DedupConfig) error {
	b, err := json.Marshal(dedup)
	if err != nil {
		return err
	}
	switch {
	case r.db != nil:
		return r.db.Set([]byte(registryPrefix+name), b)
	case r.rdb != nil:
		return r.rdb.HSet(ctx, r.registryHashKey(), name, b).Err()
	default:
		return errors.New("no store open")
	}
}

// LoadQueue returns the recorded dedup configuration for a queue, if any.
func (r *Runtime) LoadQueue(ctx context.Context, name string) (frontier.DedupConfig, bool, error) {
	var raw []byte
	switch {
	case r.db != nil:
		b, err := r.db.Get([]byte(registryPrefix + name))
		if errors.Is(err, pebblestore.ErrNotFound) {
			return frontier.DedupConfig{}, false, nil
		} else if err != nil {
			return frontier.DedupConfig{}, false, err
		}
		raw = b
	case r.rdb != nil:
		s, err := r.rdb.HGet(ctx, r.registryHashKey(), name).Result()
		if err != nil {
			if isRedisNil(err) {
				return frontier.DedupConfig{}, false, nil
			}
			return frontier.DedupConfig{}, false, err
		}
		raw = []byte(s)
	default:
		return frontier.DedupConfig{}, false, errors.New("no store open")
	}

	var cfg frontier.DedupConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return frontier.DedupConfig{}, false, fmt.Errorf("queue %q: corrupt registry record: %w", name, err)
	}
	return cfg, true, nil
}

// ListQueues returns the names of all registered queues, sorted.
func (r *Runtime) ListQueues(ctx context.Context) ([]string, error) {
	switch {
	case r.db != nil:
		lo := []byte(registryPrefix)
		hi := append(append([]byte{}, lo...), 0xFF)
		it, err := r.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
		if err != nil {
			return nil, err
		}
		defer it.Close()
		var names []string
		for ok := it.First(); ok; ok = it.Next() {
			names = append(names, string(it.Key()[len(lo):]))
		}
		if err := it.Error(); err != nil {
			return nil, err
		}
		return names, nil
	case r.rdb != nil:
		names, err := r.rdb.HKeys(ctx, r.registryHashKey()).Result()
		if err != nil {
			return nil, err
		}
		sort.Strings(names)
		return names, nil
	default:
		return nil, errors.New("no store open")
	}
}
