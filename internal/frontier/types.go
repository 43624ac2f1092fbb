package frontier

import (
	"context"
	"errors"
)

// Item is one unit of enqueue input.
type Item struct {
	// UniqueKey is the stable identity of the work unit, e.g. a normalized
	// URL. Items with a key the dedup filter has admitted before are
	// dropped.
	UniqueKey string `json:"unique_key"`
	// Payload is opaque to the queue and immutable once stored.
	Payload []byte `json:"payload"`
}

// WorkItem is one unit handed to a worker by Fetch.
type WorkItem struct {
	UniqueKey        string `json:"unique_key"`
	Payload          []byte `json:"payload"`
	EnqueuedAtMs     int64  `json:"enqueued_at_ms"`
	OwnerID          string `json:"owner_id"`
	LeaseExpiresAtMs int64  `json:"lease_expires_at_ms"`
}

// Lease records ownership of a checked-out key.
type Lease struct {
	OwnerID     string `json:"owner_id"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

// Stats is a point-in-time view of a queue.
type Stats struct {
	// Ready is the number of keys currently awaiting a worker.
	Ready int64 `json:"ready"`
	// Leased is the number of keys currently checked out.
	Leased int64 `json:"leased"`
	// EnqueuedTotal counts keys ever admitted past the dedup filter.
	EnqueuedTotal uint64 `json:"enqueued_total"`
	// DedupDropped counts enqueue items dropped as duplicates (including
	// Bloom false positives, which are indistinguishable here).
	DedupDropped uint64 `json:"dedup_dropped"`
	// ReclaimedTotal counts leases returned to the queue by reclaim sweeps.
	ReclaimedTotal uint64 `json:"reclaimed_total"`
	// PayloadSkips counts keys popped by Fetch whose payload was missing or
	// corrupt; such keys are dropped from both queue and lease table.
	PayloadSkips uint64 `json:"payload_skips"`
}

// DedupKind selects the dedup filter variant.
type DedupKind string

const (
	// DedupExact is an authoritative set: no false positives, unbounded
	// growth, entries permanent.
	DedupExact DedupKind = "exact"
	// DedupBloom is a fixed-size Bloom bitmap: bounded memory, non-zero
	// false-positive rate, entries permanent. False positives silently drop
	// never-seen keys.
	DedupBloom DedupKind = "bloom"
)

// DedupConfig configures the dedup filter for a queue.
type DedupConfig struct {
	Kind DedupKind `json:"kind"`
	// BloomCapacity is the expected number of distinct keys; sizes the
	// bitmap. Only meaningful for DedupBloom.
	BloomCapacity int `json:"bloomCapacity"`
	// BloomFPRate is the target false-positive rate at capacity, e.g. 1e-4.
	// Only meaningful for DedupBloom.
	BloomFPRate float64 `json:"bloomFpRate"`
}

// DefaultDedupConfig returns the exact-filter default.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{Kind: DedupExact, BloomCapacity: 1_000_000, BloomFPRate: 1e-4}
}

// Validate checks the configuration.
func (c DedupConfig) Validate() error {
	switch c.Kind {
	case DedupExact:
		return nil
	case DedupBloom:
		if c.BloomCapacity <= 0 {
			return errors.New("frontier: bloom capacity must be positive")
		}
		if c.BloomFPRate <= 0 || c.BloomFPRate >= 1 {
			return errors.New("frontier: bloom false-positive rate must be in (0, 1)")
		}
		return nil
	default:
		return errors.New("frontier: unknown dedup kind " + string(c.Kind))
	}
}

// Sentinel errors shared by backends.
var (
	ErrInvalidQueueName = errors.New("frontier: invalid queue name")
	ErrInvalidOwner     = errors.New("frontier: owner id required")
	ErrDedupMismatch    = errors.New("frontier: dedup configuration does not match the queue's persisted filter")
)

// Queue is the operation surface every backend implements.
//
// All time parameters are absolute milliseconds since the Unix epoch; a
// nowMs <= 0 means "use wall-clock now". Every method is safe for
// concurrent use and executes as one atomic unit at the store: no caller
// ever observes a partial effect.
type Queue interface {
	// Enqueue admits the never-seen keys of items, stores their payloads,
	// and appends them to the queue back, or front when forefront is set (a
	// forefront batch keeps its relative order). It returns the keys
	// actually inserted; duplicates are excluded silently. An empty batch
	// returns an empty result.
	Enqueue(ctx context.Context, items []Item, forefront bool, nowMs int64) ([]string, error)

	// Fetch atomically pops up to batchSize keys from the queue front,
	// resolves payloads, and leases each to ownerID until leaseExpiresAtMs.
	// No minimum lease duration is enforced; an expiry already in the past
	// grants a lease the next reclaim sweep immediately returns. An empty
	// queue yields an empty result. Keys with missing or corrupt payloads
	// are skipped and counted, never returned or leased.
	Fetch(ctx context.Context, batchSize int, ownerID string, leaseExpiresAtMs, nowMs int64) ([]WorkItem, error)

	// Reclaim removes up to max leases with ExpiresAtMs < nowMs and appends
	// their keys to the queue back, returning the count moved. Call again
	// to drain beyond the cap. max <= 0 applies a default cap.
	Reclaim(ctx context.Context, nowMs int64, max int) (int, error)

	// Stats returns a point-in-time view of the queue.
	Stats(ctx context.Context) (Stats, error)
}
