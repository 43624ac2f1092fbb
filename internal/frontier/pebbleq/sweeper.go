package pebbleq

import (
	"context"
	"math/rand"
	"time"

	"github.com/crawlkit/frontier/pkg/log"
)

// StartSweeper runs a background loop that reclaims expired leases every
// interval, with a little jitter so many queues on one store do not sweep
// in lockstep. Calling it on a running sweeper is a no-op.
func (q *Queue) StartSweeper(interval time.Duration, maxPerTick int, logger log.Logger) {
	q.sweepMu.Lock()
	defer q.sweepMu.Unlock()
	if q.sweepCancel != nil {
		return
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if maxPerTick <= 0 {
		maxPerTick = defaultReclaimMax
	}
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	q.sweepCancel = cancel
	q.sweepDone = done

	go func() {
		defer close(done)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval + time.Duration(rng.Int63n(int64(interval/10+1)))):
				moved, err := q.Reclaim(ctx, time.Now().UnixMilli(), maxPerTick)
				if err != nil {
					if ctx.Err() == nil {
						logger.Warn("lease sweep failed", log.Str("queue", q.name), log.Err(err))
					}
					continue
				}
				if moved > 0 {
					logger.Debug("reclaimed expired leases", log.Str("queue", q.name), log.Int("count", moved))
				}
			}
		}
	}()
}

// StopSweeper stops the background sweeper and waits for the loop to exit.
func (q *Queue) StopSweeper() {
	q.sweepMu.Lock()
	cancel, done := q.sweepCancel, q.sweepDone
	q.sweepCancel, q.sweepDone = nil, nil
	q.sweepMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
