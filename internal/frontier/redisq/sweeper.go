package redisq

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/crawlkit/frontier/pkg/log"
)

type sweeper struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// StartSweeper runs a background loop that reclaims expired leases every
// interval, with jitter so crawler processes sharing one Redis do not sweep
// in lockstep. Calling it on a running sweeper is a no-op.
func (q *Queue) StartSweeper(interval time.Duration, maxPerTick int, logger log.Logger) {
	q.sweep.mu.Lock()
	defer q.sweep.mu.Unlock()
	if q.sweep.cancel != nil {
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
	q.sweep.cancel = cancel
	q.sweep.done = done

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
	q.sweep.mu.Lock()
	cancel, done := q.sweep.cancel, q.sweep.done
	q.sweep.cancel, q.sweep.done = nil, nil
	q.sweep.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
