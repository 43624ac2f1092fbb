package redisq

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/frontier/internal/frontier"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func openTestQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	q, err := Open(context.Background(), newTestRedis(t), "crawl", opts)
	require.NoError(t, err)
	return q
}

func items(keys ...string) []frontier.Item {
	out := make([]frontier.Item, len(keys))
	for i, k := range keys {
		out[i] = frontier.Item{UniqueKey: k, Payload: []byte("payload:" + k)}
	}
	return out
}

func fetchKeys(t *testing.T, q *Queue, n int, owner string, expMs, nowMs int64) []string {
	t.Helper()
	got, err := q.Fetch(context.Background(), n, owner, expMs, nowMs)
	require.NoError(t, err)
	keys := make([]string, len(got))
	for i, w := range got {
		keys[i] = w.UniqueKey
	}
	return keys
}

func TestEnqueueDedup(t *testing.T) {
	q := openTestQueue(t, Options{})
	ctx := context.Background()

	added, err := q.Enqueue(ctx, items("a", "b", "a"), false, 1000)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, added)

	added, err = q.Enqueue(ctx, items("a", "b"), false, 2000)
	require.NoError(t, err)
	require.Empty(t, added)

	st, err := q.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, st.Ready)
	require.EqualValues(t, 2, st.EnqueuedTotal)
	require.EqualValues(t, 3, st.DedupDropped)
}

func TestEnqueueEmptyBatch(t *testing.T) {
	q := openTestQueue(t, Options{})
	added, err := q.Enqueue(context.Background(), nil, false, 1000)
	require.NoError(t, err)
	require.Empty(t, added)
}

func TestFetchFIFOAndLease(t *testing.T) {
	q := openTestQueue(t, Options{})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, items("a", "b", "c"), false, 1000)
	require.NoError(t, err)

	got, err := q.Fetch(ctx, 2, "w1", 5000, 1100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].UniqueKey)
	require.Equal(t, "b", got[1].UniqueKey)
	require.Equal(t, []byte("payload:a"), got[0].Payload)
	require.EqualValues(t, 1000, got[0].EnqueuedAtMs)
	require.Equal(t, "w1", got[0].OwnerID)
	require.EqualValues(t, 5000, got[0].LeaseExpiresAtMs)

	lease, ok, err := q.Lease(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "w1", lease.OwnerID)
	require.EqualValues(t, 5000, lease.ExpiresAtMs)

	_, ok, err = q.Lease(ctx, "c")
	require.NoError(t, err)
	require.False(t, ok)

	st, err := q.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, st.Ready)
	require.EqualValues(t, 2, st.Leased)
}

func TestFetchEmptyAndInvalidArgs(t *testing.T) {
	q := openTestQueue(t, Options{})
	ctx := context.Background()

	require.Empty(t, fetchKeys(t, q, 5, "w1", 5000, 1000))

	_, err := q.Enqueue(ctx, items("a"), false, 1000)
	require.NoError(t, err)
	require.Empty(t, fetchKeys(t, q, 0, "w1", 5000, 1000))

	_, err = q.Fetch(ctx, 1, "", 5000, 1000)
	require.ErrorIs(t, err, frontier.ErrInvalidOwner)
}

func TestForefrontKeepsBatchOrder(t *testing.T) {
	q := openTestQueue(t, Options{})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, items("a"), false, 1000)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, items("b", "c"), true, 1001)
	require.NoError(t, err)

	require.Equal(t, []string{"b", "c", "a"}, fetchKeys(t, q, 3, "w1", 5000, 1100))
}

func TestReclaimRestoresExpiredLeases(t *testing.T) {
	q := openTestQueue(t, Options{})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, items("a", "b", "c"), false, 1000)
	require.NoError(t, err)

	require.Len(t, fetchKeys(t, q, 2, "w1", 2000, 1100), 2)
	require.Equal(t, []string{"c"}, fetchKeys(t, q, 2, "w2", 9000, 1200))

	moved, err := q.Reclaim(ctx, 3000, 0)
	require.NoError(t, err)
	require.Equal(t, 2, moved)

	require.Equal(t, []string{"a", "b"}, fetchKeys(t, q, 5, "w3", 9000, 3100))

	st, err := q.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, st.ReclaimedTotal)
	require.EqualValues(t, 3, st.Leased)
	require.EqualValues(t, 0, st.Ready)
}

func TestReclaimCapAndBoundary(t *testing.T) {
	q := openTestQueue(t, Options{})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, items("a", "b", "c"), false, 1000)
	require.NoError(t, err)
	require.Len(t, fetchKeys(t, q, 3, "w1", 2000, 1100), 3)

	moved, err := q.Reclaim(ctx, 5000, 2)
	require.NoError(t, err)
	require.Equal(t, 2, moved)
	moved, err = q.Reclaim(ctx, 5000, 2)
	require.NoError(t, err)
	require.Equal(t, 1, moved)
	moved, err = q.Reclaim(ctx, 5000, 2)
	require.NoError(t, err)
	require.Equal(t, 0, moved)

	// Expiry exactly at nowMs is not yet expired.
	require.Len(t, fetchKeys(t, q, 1, "w2", 6000, 5100), 1)
	moved, err = q.Reclaim(ctx, 6000, 0)
	require.NoError(t, err)
	require.Equal(t, 0, moved)
}

func TestFetchSkipsMissingPayload(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()
	q, err := Open(ctx, c, "crawl", Options{})
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, items("a", "b"), false, 1000)
	require.NoError(t, err)
	require.NoError(t, c.HDel(ctx, q.itemsKey(), "a").Err())

	require.Equal(t, []string{"b"}, fetchKeys(t, q, 2, "w1", 5000, 1100))

	_, ok, err := q.Lease(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	st, err := q.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, st.PayloadSkips)
}

func TestBloomDedupAndGeometryCheck(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()
	opts := Options{Dedup: frontier.DedupConfig{Kind: frontier.DedupBloom, BloomCapacity: 10_000, BloomFPRate: 1e-4}}

	q, err := Open(ctx, c, "crawl", opts)
	require.NoError(t, err)

	added, err := q.Enqueue(ctx, items("a", "b", "a"), false, 1000)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, added)

	added, err = q.Enqueue(ctx, items("b"), false, 2000)
	require.NoError(t, err)
	require.Empty(t, added)

	_, err = Open(ctx, c, "crawl", opts)
	require.NoError(t, err)

	bad := opts
	bad.Dedup.BloomCapacity = 999
	_, err = Open(ctx, c, "crawl", bad)
	require.ErrorIs(t, err, frontier.ErrDedupMismatch)
}

// A saturated bloom filter drops keys it has never seen. This is the
// documented trade-off of the probabilistic variant: the loss is silent.
func TestBloomFalsePositiveDropsFreshKey(t *testing.T) {
	ctx := context.Background()
	// Minimum geometry: a single 64-bit word, saturated by 200 inserts.
	opts := Options{Dedup: frontier.DedupConfig{Kind: frontier.DedupBloom, BloomCapacity: 1, BloomFPRate: 0.5}}
	q := openTestQueue(t, opts)

	batch := make([]frontier.Item, 200)
	for i := range batch {
		batch[i] = frontier.Item{UniqueKey: fmt.Sprintf("u-%03d", i), Payload: []byte("p")}
	}
	admitted, err := q.Enqueue(ctx, batch, false, 1000)
	require.NoError(t, err)
	require.NotEmpty(t, admitted)
	require.Less(t, len(admitted), len(batch))

	fresh, err := q.Enqueue(ctx, items("never-seen-before"), false, 2000)
	require.NoError(t, err)
	require.Empty(t, fresh)

	st, err := q.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, len(admitted), st.EnqueuedTotal)
	require.EqualValues(t, len(batch)-len(admitted)+1, st.DedupDropped)
}

func TestFetchGrantsPastExpiry(t *testing.T) {
	q := openTestQueue(t, Options{})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, items("a"), false, 1000)
	require.NoError(t, err)

	// An expiry already behind nowMs is still granted.
	got, err := q.Fetch(ctx, 1, "w1", 900, 1100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.EqualValues(t, 900, got[0].LeaseExpiresAtMs)

	// The next sweep returns it straight away.
	moved, err := q.Reclaim(ctx, 1100, 0)
	require.NoError(t, err)
	require.Equal(t, 1, moved)
	require.Equal(t, []string{"a"}, fetchKeys(t, q, 1, "w2", 9000, 1200))
}

func TestParseFetchReplyRejectsMalformedElements(t *testing.T) {
	out, err := parseFetchReply([]interface{}{"a", "payload:a", "1000"}, "w1", 5000)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "a", out[0].UniqueKey)
	require.Equal(t, []byte("payload:a"), out[0].Payload)
	require.EqualValues(t, 1000, out[0].EnqueuedAtMs)
	require.Equal(t, "w1", out[0].OwnerID)
	require.EqualValues(t, 5000, out[0].LeaseExpiresAtMs)

	_, err = parseFetchReply([]interface{}{"a", "payload:a"}, "w1", 5000)
	require.Error(t, err)
	_, err = parseFetchReply([]interface{}{"a", int64(7), "1000"}, "w1", 5000)
	require.Error(t, err)
	_, err = parseFetchReply([]interface{}{"a", "payload:a", "not-a-number"}, "w1", 5000)
	require.Error(t, err)
}

func TestQueueNameValidation(t *testing.T) {
	c := newTestRedis(t)
	_, err := Open(context.Background(), c, "  ", Options{})
	require.ErrorIs(t, err, frontier.ErrInvalidQueueName)
}
