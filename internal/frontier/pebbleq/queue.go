// Package pebbleq implements the crawl frontier queue on a local Pebble
// store. Every operation builds one batch and commits it once, so each is
// all-or-nothing at the store and crash recovery never finds a key half
// moved between the queue and the lease table.
package pebbleq

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/crawlkit/frontier/internal/frontier"
	pebblestore "github.com/crawlkit/frontier/internal/storage/pebble"
)

// defaultReclaimMax caps one reclaim sweep when the caller passes max <= 0.
const defaultReclaimMax = 1024

// compactAfterReclaim is the sweep size beyond which the vacated expiry
// index range is handed to the compactor.
const compactAfterReclaim = 4096

// Queue is a Pebble-backed frontier queue. The mutex serializes mutating
// operations; combined with single-batch commits this keeps the in-memory
// meta header and the store in lockstep.
type Queue struct {
	db    *pebblestore.DB
	name  string
	dedup dedupFilter

	mu   sync.Mutex
	meta queueMeta

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

var _ frontier.Queue = (*Queue)(nil)

// Open loads or creates the named queue on db with the given dedup filter.
// Reopening an existing queue with a different bloom geometry fails with
// frontier.ErrDedupMismatch.
func Open(db *pebblestore.DB, name string, cfg frontier.DedupConfig) (*Queue, error) {
	if name == "" {
		return nil, frontier.ErrInvalidQueueName
	}
	filter, err := newDedupFilter(db, name, cfg)
	if err != nil {
		return nil, err
	}

	q := &Queue{db: db, name: name, dedup: filter}
	raw, err := db.Get(MetaKey(name))
	switch {
	case err == nil:
		m, ok := decodeMeta(raw)
		if !ok {
			return nil, fmt.Errorf("queue %q: corrupt meta record", name)
		}
		q.meta = m
	case errors.Is(err, pebblestore.ErrNotFound):
		// Fresh queue, zero meta.
	default:
		return nil, fmt.Errorf("queue %q: read meta: %w", name, err)
	}
	return q, nil
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Enqueue admits the never-seen keys of items and appends them to the back,
// or to the front when forefront is set. Within one call the first
// occurrence of a key wins and later duplicates are dropped. The whole call
// commits as one batch.
func (q *Queue) Enqueue(ctx context.Context, items []frontier.Item, forefront bool, nowMs int64) ([]string, error) {
	if len(items) == 0 {
		return []string{}, nil
	}
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.db.NewBatch()
	defer b.Close()

	sess := q.dedup.begin(b)
	added := make([]string, 0, len(items))
	for i, it := range items {
		if it.UniqueKey == "" {
			return nil, fmt.Errorf("enqueue into %q: empty unique key at index %d", q.name, i)
		}
		fresh, err := sess.reserve(it.UniqueKey)
		if err != nil {
			return nil, fmt.Errorf("enqueue into %q: %w", q.name, err)
		}
		if !fresh {
			continue
		}
		if err := b.Set(ItemKey(q.name, it.UniqueKey), EncodeItem(nowMs, it.Payload), nil); err != nil {
			return nil, err
		}
		added = append(added, it.UniqueKey)
	}

	meta := q.meta
	if n := int64(len(added)); n > 0 {
		// Sequences are assigned so a forefront batch keeps its relative
		// order while still sorting before everything already queued.
		base := meta.tail
		if forefront {
			base = meta.head - n
			meta.head = base
		} else {
			meta.tail += n
		}
		for i, key := range added {
			if err := b.Set(ReadyKey(q.name, base+int64(i)), []byte(key), nil); err != nil {
				return nil, err
			}
		}
		meta.ready += n
		meta.enqueuedTotal += uint64(n)
	}
	meta.dedupDropped += uint64(len(items) - len(added))

	if err := b.Set(MetaKey(q.name), encodeMeta(meta), nil); err != nil {
		return nil, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("enqueue into %q: commit: %w", q.name, err)
	}
	q.meta = meta
	return added, nil
}

// Fetch pops up to batchSize keys from the front, resolves their payloads,
// and leases each to ownerID until leaseExpiresAtMs. No minimum lease
// duration is enforced: an expiry at or before nowMs is granted and the
// next reclaim sweep returns the key to the queue. Keys whose payload is
// missing or fails its checksum are dropped and counted, never leased.
func (q *Queue) Fetch(ctx context.Context, batchSize int, ownerID string, leaseExpiresAtMs, nowMs int64) ([]frontier.WorkItem, error) {
	if ownerID == "" {
		return nil, frontier.ErrInvalidOwner
	}
	if batchSize <= 0 {
		return []frontier.WorkItem{}, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	lo := ReadyPrefix(q.name)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: keyUpperBound(lo)})
	if err != nil {
		return nil, fmt.Errorf("fetch from %q: %w", q.name, err)
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()

	out := make([]frontier.WorkItem, 0, batchSize)
	var popped, skips int64
	for iter.First(); iter.Valid() && len(out) < batchSize; iter.Next() {
		readyKey := append([]byte(nil), iter.Key()...)
		uniqueKey := string(iter.Value())
		if err := b.Delete(readyKey, nil); err != nil {
			return nil, err
		}
		popped++

		raw, err := q.db.Get(ItemKey(q.name, uniqueKey))
		if errors.Is(err, pebblestore.ErrNotFound) {
			skips++
			continue
		} else if err != nil {
			return nil, fmt.Errorf("fetch from %q: read item %q: %w", q.name, uniqueKey, err)
		}
		enqueuedAtMs, payload, ok := DecodeItem(raw)
		if !ok {
			skips++
			if err := b.Delete(ItemKey(q.name, uniqueKey), nil); err != nil {
				return nil, err
			}
			continue
		}

		if err := b.Set(LeaseKey(q.name, uniqueKey), EncodeLease(leaseExpiresAtMs, ownerID), nil); err != nil {
			return nil, err
		}
		if err := b.Set(LeaseExpKey(q.name, leaseExpiresAtMs, uniqueKey), nil, nil); err != nil {
			return nil, err
		}
		out = append(out, frontier.WorkItem{
			UniqueKey:        uniqueKey,
			Payload:          payload,
			EnqueuedAtMs:     enqueuedAtMs,
			OwnerID:          ownerID,
			LeaseExpiresAtMs: leaseExpiresAtMs,
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("fetch from %q: scan: %w", q.name, err)
	}
	if popped == 0 {
		return out, nil
	}

	meta := q.meta
	meta.ready -= popped
	meta.leased += int64(len(out))
	meta.payloadSkips += uint64(skips)
	if err := b.Set(MetaKey(q.name), encodeMeta(meta), nil); err != nil {
		return nil, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("fetch from %q: commit: %w", q.name, err)
	}
	q.meta = meta
	return out, nil
}

// Reclaim scans the expiry index for leases with ExpiresAtMs < nowMs and
// moves up to max of them back to the queue tail. The scan is ordered by
// expiry so repeated calls drain oldest-first and always make progress.
func (q *Queue) Reclaim(ctx context.Context, nowMs int64, max int) (int, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	if max <= 0 {
		max = defaultReclaimMax
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	lo := LeaseExpPrefix(q.name)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: keyUpperBound(lo)})
	if err != nil {
		return 0, fmt.Errorf("reclaim %q: %w", q.name, err)
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()

	meta := q.meta
	moved := 0
	for iter.First(); iter.Valid() && moved < max; iter.Next() {
		suffix := iter.Key()[len(lo):]
		if len(suffix) < 8 {
			return 0, fmt.Errorf("reclaim %q: malformed expiry index key", q.name)
		}
		expiresAtMs, uniqueKey := decodeLeaseExpSuffix(suffix)
		if expiresAtMs >= nowMs {
			break
		}
		if err := b.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
			return 0, err
		}
		if err := b.Delete(LeaseKey(q.name, uniqueKey), nil); err != nil {
			return 0, err
		}
		if err := b.Set(ReadyKey(q.name, meta.tail), []byte(uniqueKey), nil); err != nil {
			return 0, err
		}
		meta.tail++
		moved++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("reclaim %q: scan: %w", q.name, err)
	}
	if moved == 0 {
		return 0, nil
	}

	meta.ready += int64(moved)
	meta.leased -= int64(moved)
	meta.reclaimedTotal += uint64(moved)
	if err := b.Set(MetaKey(q.name), encodeMeta(meta), nil); err != nil {
		return 0, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return 0, fmt.Errorf("reclaim %q: commit: %w", q.name, err)
	}
	q.meta = meta
	// Compaction hint after a large sweep.
	if moved >= compactAfterReclaim {
		_ = q.db.CompactRange(lo, keyUpperBound(lo))
	}
	return moved, nil
}

// Stats returns a point-in-time view of the queue counters.
func (q *Queue) Stats(_ context.Context) (frontier.Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return frontier.Stats{
		Ready:          q.meta.ready,
		Leased:         q.meta.leased,
		EnqueuedTotal:  q.meta.enqueuedTotal,
		DedupDropped:   q.meta.dedupDropped,
		ReclaimedTotal: q.meta.reclaimedTotal,
		PayloadSkips:   q.meta.payloadSkips,
	}, nil
}

// Lease returns the current lease for uniqueKey, if any.
func (q *Queue) Lease(uniqueKey string) (frontier.Lease, bool, error) {
	raw, err := q.db.Get(LeaseKey(q.name, uniqueKey))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return frontier.Lease{}, false, nil
	} else if err != nil {
		return frontier.Lease{}, false, err
	}
	expiresAtMs, ownerID, ok := DecodeLease(raw)
	if !ok {
		return frontier.Lease{}, false, fmt.Errorf("queue %q: corrupt lease for %q", q.name, uniqueKey)
	}
	return frontier.Lease{OwnerID: ownerID, ExpiresAtMs: expiresAtMs}, true, nil
}

// decodeLeaseExpSuffix splits an expiry index key's suffix into its parts.
func decodeLeaseExpSuffix(suffix []byte) (expiresAtMs int64, uniqueKey string) {
	return int64(binary.BigEndian.Uint64(suffix[:8])), string(suffix[8:])
}
