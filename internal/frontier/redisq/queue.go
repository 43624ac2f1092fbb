// Package redisq implements the crawl frontier queue on Redis for
// deployments where many crawler processes share one queue. Each operation
// runs as a single server-side script, so it is atomic to every client and
// no caller observes a key half moved between the queue and the lease
// table.
package redisq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crawlkit/frontier/internal/frontier"
)

const defaultReclaimMax = 1024

// enqueueExactScript admits keys through the exact dedup set. SADD reports
// whether the key is new, which also makes the first occurrence win within
// one batch.
var enqueueExactScript = redis.NewScript(`
local seen = KEYS[1]
local items = KEYS[2]
local enqueued = KEYS[3]
local ready = KEYS[4]
local stats = KEYS[5]
local forefront = ARGV[1] == '1'
local now = ARGV[2]
local n = tonumber(ARGV[3])
local added = {}
for i = 0, n - 1 do
  local key = ARGV[4 + i*2]
  if redis.call('SADD', seen, key) == 1 then
    redis.call('HSET', items, key, ARGV[5 + i*2])
    redis.call('HSET', enqueued, key, now)
    added[#added + 1] = key
  end
end
if #added > 0 then
  if forefront then
    for i = #added, 1, -1 do redis.call('LPUSH', ready, added[i]) end
  else
    for i = 1, #added do redis.call('RPUSH', ready, added[i]) end
  end
  redis.call('HINCRBY', stats, 'enqueued_total', #added)
end
if n - #added > 0 then
  redis.call('HINCRBY', stats, 'dedup_dropped', n - #added)
end
return added
`)

// enqueueBloomScript admits keys through the bloom bitmap. Bit offsets are
// computed client-side and passed per item. SETBIT returns the previous
// bit, so one pass both probes and inserts: a key is fresh when any of its
// bits was still zero.
var enqueueBloomScript = redis.NewScript(`
local bloom = KEYS[1]
local items = KEYS[2]
local enqueued = KEYS[3]
local ready = KEYS[4]
local stats = KEYS[5]
local forefront = ARGV[1] == '1'
local now = ARGV[2]
local n = tonumber(ARGV[3])
local k = tonumber(ARGV[4])
local stride = 2 + k
local added = {}
for i = 0, n - 1 do
  local base = 5 + i*stride
  local key = ARGV[base]
  local fresh = false
  for j = 1, k do
    if redis.call('SETBIT', bloom, ARGV[base + 1 + j], 1) == 0 then
      fresh = true
    end
  end
  if fresh then
    redis.call('HSET', items, key, ARGV[base + 1])
    redis.call('HSET', enqueued, key, now)
    added[#added + 1] = key
  end
end
if #added > 0 then
  if forefront then
    for i = #added, 1, -1 do redis.call('LPUSH', ready, added[i]) end
  else
    for i = 1, #added do redis.call('RPUSH', ready, added[i]) end
  end
  redis.call('HINCRBY', stats, 'enqueued_total', #added)
end
if n - #added > 0 then
  redis.call('HINCRBY', stats, 'dedup_dropped', n - #added)
end
return added
`)

// fetchScript pops from the front until the batch is full or the list is
// empty, leasing each key resolved to a payload. Keys without a payload are
// dropped and counted. Returns a flat array of (key, payload, enqueuedMs).
var fetchScript = redis.NewScript(`
local ready = KEYS[1]
local items = KEYS[2]
local enqueued = KEYS[3]
local leases = KEYS[4]
local leaseExp = KEYS[5]
local stats = KEYS[6]
local batch = tonumber(ARGV[1])
local owner = ARGV[2]
local expMs = ARGV[3]
local out = {}
local skips = 0
while (#out / 3) < batch do
  local key = redis.call('LPOP', ready)
  if not key then break end
  local payload = redis.call('HGET', items, key)
  if not payload then
    skips = skips + 1
  else
    redis.call('HSET', leases, key, expMs .. ':' .. owner)
    redis.call('ZADD', leaseExp, expMs, key)
    out[#out + 1] = key
    out[#out + 1] = payload
    out[#out + 1] = redis.call('HGET', enqueued, key) or '0'
  end
end
if skips > 0 then
  redis.call('HINCRBY', stats, 'payload_skips', skips)
end
return out
`)

// reclaimScript moves up to max leases with expiry strictly below now back
// to the queue tail, oldest expiry first.
var reclaimScript = redis.NewScript(`
local leaseExp = KEYS[1]
local leases = KEYS[2]
local ready = KEYS[3]
local stats = KEYS[4]
local now = ARGV[1]
local max = tonumber(ARGV[2])
local expired = redis.call('ZRANGEBYSCORE', leaseExp, '-inf', '(' .. now, 'LIMIT', 0, max)
for i = 1, #expired do
  redis.call('ZREM', leaseExp, expired[i])
  redis.call('HDEL', leases, expired[i])
  redis.call('RPUSH', ready, expired[i])
end
if #expired > 0 then
  redis.call('HINCRBY', stats, 'reclaimed_total', #expired)
end
return #expired
`)

// Queue is a Redis-backed frontier queue. Safe for concurrent use from any
// number of processes sharing the same Redis database.
type Queue struct {
	cmd    redis.Cmdable
	prefix string
	name   string

	dedup frontier.DedupConfig
	mBits uint64
	k     int

	sweep sweeper
}

var _ frontier.Queue = (*Queue)(nil)

// Options configures a Redis-backed queue.
type Options struct {
	// Prefix namespaces all keys. Defaults to "frontier".
	Prefix string
	// Dedup selects and configures the dedup filter. Zero value means the
	// exact-set default.
	Dedup frontier.DedupConfig
}

// Open binds a queue to cmd. For the bloom variant the filter geometry is
// persisted on first open and later opens with different parameters fail
// with frontier.ErrDedupMismatch.
func Open(ctx context.Context, cmd redis.Cmdable, name string, opts Options) (*Queue, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, frontier.ErrInvalidQueueName
	}
	if opts.Prefix == "" {
		opts.Prefix = "frontier"
	}
	if opts.Dedup.Kind == "" {
		opts.Dedup = frontier.DefaultDedupConfig()
	}
	if err := opts.Dedup.Validate(); err != nil {
		return nil, err
	}

	q := &Queue{cmd: cmd, prefix: opts.Prefix, name: name, dedup: opts.Dedup}
	if opts.Dedup.Kind == frontier.DedupBloom {
		q.mBits, q.k = frontier.BloomParams(opts.Dedup.BloomCapacity, opts.Dedup.BloomFPRate)
		want := fmt.Sprintf("%d:%d", q.mBits, q.k)
		// SETNX settles a racing first open; the GET below sees the winner.
		if err := cmd.SetNX(ctx, q.bloomCfgKey(), want, 0).Err(); err != nil {
			return nil, fmt.Errorf("queue %q: persist bloom geometry: %w", name, err)
		}
		got, err := cmd.Get(ctx, q.bloomCfgKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("queue %q: read bloom geometry: %w", name, err)
		}
		if got != want {
			return nil, frontier.ErrDedupMismatch
		}
	}
	return q, nil
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Enqueue admits the never-seen keys of items and appends them to the back,
// or to the front when forefront is set. The whole call runs as one script.
func (q *Queue) Enqueue(ctx context.Context, items []frontier.Item, forefront bool, nowMs int64) ([]string, error) {
	if len(items) == 0 {
		return []string{}, nil
	}
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}

	ff := "0"
	if forefront {
		ff = "1"
	}

	var (
		script *redis.Script
		keys   []string
		argv   []interface{}
	)
	switch q.dedup.Kind {
	case frontier.DedupBloom:
		script = enqueueBloomScript
		keys = []string{q.bloomKey(), q.itemsKey(), q.enqueuedKey(), q.readyKey(), q.statsKey()}
		argv = make([]interface{}, 0, 4+len(items)*(2+q.k))
		argv = append(argv, ff, nowMs, len(items), q.k)
		for i, it := range items {
			if it.UniqueKey == "" {
				return nil, fmt.Errorf("enqueue into %q: empty unique key at index %d", q.name, i)
			}
			argv = append(argv, it.UniqueKey, it.Payload)
			for _, off := range frontier.BloomOffsets(it.UniqueKey, q.mBits, q.k) {
				argv = append(argv, off)
			}
		}
	default:
		script = enqueueExactScript
		keys = []string{q.seenKey(), q.itemsKey(), q.enqueuedKey(), q.readyKey(), q.statsKey()}
		argv = make([]interface{}, 0, 3+len(items)*2)
		argv = append(argv, ff, nowMs, len(items))
		for i, it := range items {
			if it.UniqueKey == "" {
				return nil, fmt.Errorf("enqueue into %q: empty unique key at index %d", q.name, i)
			}
			argv = append(argv, it.UniqueKey, it.Payload)
		}
	}

	res, err := script.Run(ctx, q.cmd, keys, argv...).Result()
	if err != nil {
		return nil, fmt.Errorf("enqueue into %q: %w", q.name, err)
	}
	raw, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("enqueue into %q: unexpected script result %T", q.name, res)
	}
	added := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("enqueue into %q: unexpected script element %T", q.name, v)
		}
		added = append(added, s)
	}
	return added, nil
}

// Fetch pops up to batchSize keys from the front and leases each to ownerID
// until leaseExpiresAtMs. No minimum lease duration is enforced: an expiry
// at or before nowMs is granted and the next reclaim sweep returns the key
// to the queue.
func (q *Queue) Fetch(ctx context.Context, batchSize int, ownerID string, leaseExpiresAtMs, nowMs int64) ([]frontier.WorkItem, error) {
	if ownerID == "" {
		return nil, frontier.ErrInvalidOwner
	}
	if batchSize <= 0 {
		return []frontier.WorkItem{}, nil
	}

	keys := []string{q.readyKey(), q.itemsKey(), q.enqueuedKey(), q.leasesKey(), q.leaseExpKey(), q.statsKey()}
	res, err := fetchScript.Run(ctx, q.cmd, keys, batchSize, ownerID, leaseExpiresAtMs).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch from %q: %w", q.name, err)
	}
	raw, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("fetch from %q: unexpected script result %T", q.name, res)
	}
	out, err := parseFetchReply(raw, ownerID, leaseExpiresAtMs)
	if err != nil {
		return nil, fmt.Errorf("fetch from %q: %w", q.name, err)
	}
	return out, nil
}

// parseFetchReply decodes the fetch script's flat (key, payload, enqueuedMs)
// triplets, rejecting anything the script would not produce.
func parseFetchReply(raw []interface{}, ownerID string, leaseExpiresAtMs int64) ([]frontier.WorkItem, error) {
	if len(raw)%3 != 0 {
		return nil, fmt.Errorf("reply length %d is not a multiple of 3", len(raw))
	}
	out := make([]frontier.WorkItem, 0, len(raw)/3)
	for i := 0; i < len(raw); i += 3 {
		key, ok := raw[i].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected script element %T", raw[i])
		}
		payload, ok := raw[i+1].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected script element %T", raw[i+1])
		}
		enqStr, ok := raw[i+2].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected script element %T", raw[i+2])
		}
		enqMs, err := strconv.ParseInt(enqStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad enqueue timestamp %q for %q", enqStr, key)
		}
		out = append(out, frontier.WorkItem{
			UniqueKey:        key,
			Payload:          []byte(payload),
			EnqueuedAtMs:     enqMs,
			OwnerID:          ownerID,
			LeaseExpiresAtMs: leaseExpiresAtMs,
		})
	}
	return out, nil
}

// Reclaim moves up to max leases with expiry strictly below nowMs back to
// the queue tail, returning the count moved.
func (q *Queue) Reclaim(ctx context.Context, nowMs int64, max int) (int, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	if max <= 0 {
		max = defaultReclaimMax
	}
	keys := []string{q.leaseExpKey(), q.leasesKey(), q.readyKey(), q.statsKey()}
	moved, err := reclaimScript.Run(ctx, q.cmd, keys, nowMs, max).Int()
	if err != nil {
		return 0, fmt.Errorf("reclaim %q: %w", q.name, err)
	}
	return moved, nil
}

// Stats returns a point-in-time view of the queue. Live counts come from
// the ready list and lease index; lifetime counters from the stats hash.
func (q *Queue) Stats(ctx context.Context) (frontier.Stats, error) {
	pipe := q.cmd.Pipeline()
	readyCmd := pipe.LLen(ctx, q.readyKey())
	leasedCmd := pipe.ZCard(ctx, q.leaseExpKey())
	countersCmd := pipe.HGetAll(ctx, q.statsKey())
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return frontier.Stats{}, fmt.Errorf("stats for %q: %w", q.name, err)
	}

	counters := countersCmd.Val()
	counter := func(field string) uint64 {
		v, _ := strconv.ParseUint(counters[field], 10, 64)
		return v
	}
	return frontier.Stats{
		Ready:          readyCmd.Val(),
		Leased:         leasedCmd.Val(),
		EnqueuedTotal:  counter("enqueued_total"),
		DedupDropped:   counter("dedup_dropped"),
		ReclaimedTotal: counter("reclaimed_total"),
		PayloadSkips:   counter("payload_skips"),
	}, nil
}

// Lease returns the current lease for uniqueKey, if any.
func (q *Queue) Lease(ctx context.Context, uniqueKey string) (frontier.Lease, bool, error) {
	raw, err := q.cmd.HGet(ctx, q.leasesKey(), uniqueKey).Result()
	if errors.Is(err, redis.Nil) {
		return frontier.Lease{}, false, nil
	} else if err != nil {
		return frontier.Lease{}, false, err
	}
	sep := strings.IndexByte(raw, ':')
	if sep < 0 {
		return frontier.Lease{}, false, fmt.Errorf("queue %q: corrupt lease for %q", q.name, uniqueKey)
	}
	expMs, err := strconv.ParseInt(raw[:sep], 10, 64)
	if err != nil {
		return frontier.Lease{}, false, fmt.Errorf("queue %q: corrupt lease for %q", q.name, uniqueKey)
	}
	return frontier.Lease{OwnerID: raw[sep+1:], ExpiresAtMs: expMs}, true, nil
}
