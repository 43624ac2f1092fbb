// Package frontier defines the contract for Frontier's lease-based crawl
// work queue and the types shared by its storage backends.
//
// A queue holds unique units of crawl work keyed by a stable unique key
// (typically a normalized URL). Many independent workers cooperate through
// three operations, each executed as one indivisible unit at the backing
// store:
//
//   - Enqueue: dedup-filter a batch of items, store payloads for the keys
//     never seen before, and append those keys to the queue (front or back).
//     Keys the filter already knows are silently dropped; that is the
//     defined behavior, not an error.
//   - Fetch: pop up to N keys from the queue front, resolve payloads, and
//     record a lease {owner, expires_at} for each. An empty queue yields an
//     empty result.
//   - Reclaim: sweep the lease table for entries whose expiry has passed and
//     return their keys to the queue back, bounded per call.
//
// # Key lifecycle
//
//	queued -(Fetch)-> leased -(Reclaim, if expired)-> queued -> ...
//
// An active key lives in exactly one of {queue list, lease table}. The core
// defines no terminal state; completion and deletion are the caller's
// responsibility.
//
// # At-least-once delivery
//
// Delivery is at-least-once: a worker that crashes or stalls past its lease
// expiry sees its items handed to another worker after a reclaim sweep.
// Workers should process idempotently.
//
// # Dedup variants
//
// The dedup filter comes in two variants selected by configuration. The
// exact variant is an authoritative set: no false positives, entries grow
// with the number of distinct keys ever admitted. The probabilistic variant
// is a fixed-size Bloom bitmap: memory is bounded by the configured
// capacity and false-positive rate, but a never-seen key can be misreported
// as present and silently dropped. Choose it only when bounded memory is
// worth losing roughly BloomFPRate of new keys near capacity.
package frontier
