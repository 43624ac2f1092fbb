package queuesvc

import (
	"context"
	"errors"
	"testing"

	cfgpkg "github.com/crawlkit/frontier/internal/config"
	"github.com/crawlkit/frontier/internal/frontier"
	"github.com/crawlkit/frontier/internal/runtime"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.SweepIntervalMs = 0 // sweeps are explicit in tests
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	s, err := New(rt)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func items(keys ...string) []frontier.Item {
	out := make([]frontier.Item, len(keys))
	for i, k := range keys {
		out[i] = frontier.Item{UniqueKey: k, Payload: []byte(k)}
	}
	return out
}

func TestCreateAndList(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if err := s.Create(ctx, "news", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	bloom := frontier.DedupConfig{Kind: frontier.DedupBloom, BloomCapacity: 1000, BloomFPRate: 0.01}
	if err := s.Create(ctx, "images", &bloom); err != nil {
		t.Fatalf("create bloom: %v", err)
	}

	// Idempotent with the same filter, refused with a different one.
	if err := s.Create(ctx, "news", nil); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if err := s.Create(ctx, "news", &bloom); !errors.Is(err, frontier.ErrDedupMismatch) {
		t.Fatalf("want ErrDedupMismatch, got %v", err)
	}

	if err := s.Create(ctx, "Bad Name!", nil); !errors.Is(err, frontier.ErrInvalidQueueName) {
		t.Fatalf("want ErrInvalidQueueName, got %v", err)
	}

	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "images" || names[1] != "news" {
		t.Fatalf("list: %v", names)
	}
}

func TestEnqueueFetchReclaimFlow(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	added, err := s.Enqueue(ctx, "crawl", items("a", "b", "a"), false, 1000)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("added: %v", added)
	}

	got, err := s.Fetch(ctx, "crawl", 2, "w1", 1000, 2000)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 || got[0].UniqueKey != "a" {
		t.Fatalf("fetch: %+v", got)
	}
	if got[0].LeaseExpiresAtMs != 3000 {
		t.Fatalf("lease expiry from leaseMs: %+v", got[0])
	}

	moved, err := s.Reclaim(ctx, "crawl", 4000, 0)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if moved != 2 {
		t.Fatalf("moved: %d", moved)
	}

	st, err := s.Stats(ctx, "crawl")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Ready != 2 || st.Leased != 0 || st.ReclaimedTotal != 2 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestFetchUsesDefaultLease(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.Enqueue(ctx, "crawl", items("a"), false, 1000); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got, err := s.Fetch(ctx, "crawl", 1, "w1", 0, 2000)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := int64(2000) + cfgpkg.Default().DefaultLeaseMs
	if len(got) != 1 || got[0].LeaseExpiresAtMs != want {
		t.Fatalf("default lease: %+v", got)
	}
}

func TestAutoCreateOnEnqueue(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.Enqueue(ctx, "fresh", items("x"), false, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "fresh" {
		t.Fatalf("list: %v", names)
	}
	if _, err := s.Enqueue(ctx, "Not Valid", items("x"), false, 0); !errors.Is(err, frontier.ErrInvalidQueueName) {
		t.Fatalf("want ErrInvalidQueueName, got %v", err)
	}
}
