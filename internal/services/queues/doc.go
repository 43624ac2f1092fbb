// Package queuesvc provides the service layer for frontier queue
// operations.
//
// # Overview
//
// A frontier queue hands each admitted key to exactly one worker at a time
// through a lease. The service is a thin coordination layer over the
// configured backend:
//
//  1. Producer → Enqueue → dedup filter → queue (back or forefront)
//  2. Worker → Fetch → lease acquired → crawl
//  3. Lease expires without completion → Reclaim → back of the queue
//
// # Core Concepts
//
//   - Unique key: stable identity of a work unit, e.g. a normalized URL
//   - Dedup filter: exact set or bloom bitmap; admitted keys never re-enter
//   - Lease: temporary exclusive ownership with an absolute expiry
//   - Sweep: bounded background pass returning expired leases to the queue
//
// The service owns the queue registry (which queues exist and their dedup
// configuration), validates names, applies configured defaults, and starts
// the per-queue background sweeper.
package queuesvc
