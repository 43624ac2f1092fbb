// Package client contains Cobra CLI commands for frontier.
//
// Commands talk to the server's HTTP API; the base URL comes from the
// FRONTIER_HTTP environment variable or defaults to the local server.
//
// Queue Operations:
//
//	create    Register a queue with a dedup filter
//	add       Enqueue an item (optionally at the forefront)
//	fetch     Lease a batch of items to a worker
//	reclaim   Return expired leases to the queue
//	stats     Show queue counters
//	list      List registered queues
package client
