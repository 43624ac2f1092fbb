package queuesvc

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/crawlkit/frontier/internal/frontier"
	"github.com/crawlkit/frontier/internal/runtime"
	logpkg "github.com/crawlkit/frontier/pkg/log"
)

// sweepable is implemented by backends that run their own reclaim loop.
type sweepable interface {
	StartSweeper(interval time.Duration, maxPerTick int, logger logpkg.Logger)
	StopSweeper()
}

// Service coordinates queue handles, the registry, and background sweepers.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	nameRe *regexp.Regexp

	mu     sync.Mutex
	queues map[string]frontier.Queue
}

// New creates the service with a default logger.
func New(rt *runtime.Runtime) (*Service, error) {
	logger := logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	return NewWithLogger(rt, logger.With(logpkg.Component("queues")))
}

// NewWithLogger creates the service with a custom logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) (*Service, error) {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel)).With(logpkg.Component("queues"))
	}
	re, err := regexp.Compile(rt.Config().QueueNameRegex)
	if err != nil {
		return nil, fmt.Errorf("queue name regex: %w", err)
	}
	return &Service{rt: rt, logger: logger, nameRe: re, queues: map[string]frontier.Queue{}}, nil
}

// Create registers a queue with the given dedup filter and opens it. A nil
// dedup uses the configured default. Creating an existing queue succeeds
// when the filter matches and fails with frontier.ErrDedupMismatch when it
// does not.
func (s *Service) Create(ctx context.Context, name string, dedup *frontier.DedupConfig) error {
	if !s.nameRe.MatchString(name) {
		return frontier.ErrInvalidQueueName
	}
	cfg := s.rt.Config().Dedup
	if dedup != nil {
		cfg = *dedup
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok, err := s.rt.LoadQueue(ctx, name); err != nil {
		return err
	} else if ok && existing != cfg {
		return frontier.ErrDedupMismatch
	}
	if _, err := s.openLocked(ctx, name, cfg); err != nil {
		return err
	}
	if err := s.rt.SaveQueue(ctx, name, cfg); err != nil {
		return err
	}
	s.logger.Info("queue created", logpkg.Str("queue", name), logpkg.Str("dedup", string(cfg.Kind)))
	return nil
}

// openLocked opens and caches a handle, starting its sweeper. Callers hold
// s.mu.
func (s *Service) openLocked(ctx context.Context, name string, cfg frontier.DedupConfig) (frontier.Queue, error) {
	if q, ok := s.queues[name]; ok {
		return q, nil
	}
	q, err := s.rt.OpenQueue(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	if interval := s.rt.Config().SweepInterval(); interval > 0 {
		if sw, ok := q.(sweepable); ok {
			sw.StartSweeper(interval, s.rt.Config().SweepMax, s.logger)
		}
	}
	s.queues[name] = q
	return q, nil
}

// queue resolves a handle, opening registered queues on demand. Unknown
// names are registered with the configured default filter, so producers do
// not need a separate create step.
func (s *Service) queue(ctx context.Context, name string) (frontier.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[name]; ok {
		return q, nil
	}
	if !s.nameRe.MatchString(name) {
		return nil, frontier.ErrInvalidQueueName
	}
	cfg, ok, err := s.rt.LoadQueue(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		cfg = s.rt.Config().Dedup
		if err := s.rt.SaveQueue(ctx, name, cfg); err != nil {
			return nil, err
		}
		s.logger.Info("queue auto-created", logpkg.Str("queue", name))
	}
	return s.openLocked(ctx, name, cfg)
}

// Enqueue adds items to the named queue and returns the keys actually
// inserted.
func (s *Service) Enqueue(ctx context.Context, name string, items []frontier.Item, forefront bool, nowMs int64) ([]string, error) {
	q, err := s.queue(ctx, name)
	if err != nil {
		return nil, err
	}
	added, err := q.Enqueue(ctx, items, forefront, nowMs)
	if err != nil {
		s.logger.Warn("enqueue failed", logpkg.Str("queue", name), logpkg.Err(err))
		return nil, err
	}
	s.logger.Debug("enqueued",
		logpkg.Str("queue", name),
		logpkg.Int("offered", len(items)),
		logpkg.Int("inserted", len(added)),
		logpkg.Bool("forefront", forefront))
	return added, nil
}

// Fetch leases up to batchSize items to ownerID for leaseMs milliseconds.
// leaseMs <= 0 applies the configured default.
func (s *Service) Fetch(ctx context.Context, name string, batchSize int, ownerID string, leaseMs, nowMs int64) ([]frontier.WorkItem, error) {
	q, err := s.queue(ctx, name)
	if err != nil {
		return nil, err
	}
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	if leaseMs <= 0 {
		leaseMs = s.rt.Config().DefaultLeaseMs
	}
	got, err := q.Fetch(ctx, batchSize, ownerID, nowMs+leaseMs, nowMs)
	if err != nil {
		s.logger.Warn("fetch failed", logpkg.Str("queue", name), logpkg.Err(err))
		return nil, err
	}
	s.logger.Debug("fetched",
		logpkg.Str("queue", name),
		logpkg.Str("owner", ownerID),
		logpkg.Int("count", len(got)))
	return got, nil
}

// Reclaim runs one bounded sweep of expired leases on the named queue.
func (s *Service) Reclaim(ctx context.Context, name string, nowMs int64, max int) (int, error) {
	q, err := s.queue(ctx, name)
	if err != nil {
		return 0, err
	}
	moved, err := q.Reclaim(ctx, nowMs, max)
	if err != nil {
		s.logger.Warn("reclaim failed", logpkg.Str("queue", name), logpkg.Err(err))
		return 0, err
	}
	if moved > 0 {
		s.logger.Info("reclaimed expired leases", logpkg.Str("queue", name), logpkg.Int("count", moved))
	}
	return moved, nil
}

// Stats returns a point-in-time view of the named queue.
func (s *Service) Stats(ctx context.Context, name string) (frontier.Stats, error) {
	q, err := s.queue(ctx, name)
	if err != nil {
		return frontier.Stats{}, err
	}
	return q.Stats(ctx)
}

// List returns the names of all registered queues, sorted.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.rt.ListQueues(ctx)
}

// Close stops all background sweepers. The runtime owns the store and is
// closed separately.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queues {
		if sw, ok := q.(sweepable); ok {
			sw.StopSweeper()
		}
	}
	s.queues = map[string]frontier.Queue{}
}
