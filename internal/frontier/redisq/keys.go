package redisq

// All keys for one queue live under {prefix}:{name}: so multiple logical
// queues can share one Redis database.

func (q *Queue) readyKey() string    { return q.prefix + ":" + q.name + ":ready" }     // list of unique keys, FIFO
func (q *Queue) itemsKey() string    { return q.prefix + ":" + q.name + ":items" }     // hash: unique key -> payload
func (q *Queue) enqueuedKey() string { return q.prefix + ":" + q.name + ":enqueued" }  // hash: unique key -> enqueue ms
func (q *Queue) seenKey() string     { return q.prefix + ":" + q.name + ":seen" }      // set, exact dedup
func (q *Queue) bloomKey() string    { return q.prefix + ":" + q.name + ":bloom" }     // string bitmap, bloom dedup
func (q *Queue) bloomCfgKey() string { return q.prefix + ":" + q.name + ":bloomcfg" }  // persisted filter geometry
func (q *Queue) leasesKey() string   { return q.prefix + ":" + q.name + ":leases" }    // hash: unique key -> "expMs:owner"
func (q *Queue) leaseExpKey() string { return q.prefix + ":" + q.name + ":lease_exp" } // zset: unique key scored by expiry ms
func (q *Queue) statsKey() string    { return q.prefix + ":" + q.name + ":stats" }     // hash of lifetime counters
