package pebbleq

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/crawlkit/frontier/internal/frontier"
	pebblestore "github.com/crawlkit/frontier/internal/storage/pebble"
)

// dedupFilter is the insert-if-absent primitive behind Enqueue. A session is
// scoped to one enqueue batch: reservations it makes are visible to later
// reservations in the same session but hit the store only when the batch
// commits.
type dedupFilter interface {
	begin(b *pebble.Batch) dedupSession
}

type dedupSession interface {
	// reserve reports whether uniqueKey was never seen before, recording it
	// in the batch if so. A false return means duplicate (or, for the bloom
	// variant, a possible false positive).
	reserve(uniqueKey string) (bool, error)
}

// exactFilter stores every admitted key under seen/. Authoritative: no
// false positives, unbounded growth.
type exactFilter struct {
	db    *pebblestore.DB
	queue string
}

func (f *exactFilter) begin(b *pebble.Batch) dedupSession {
	return &exactSession{f: f, b: b, pending: map[string]struct{}{}}
}

type exactSession struct {
	f       *exactFilter
	b       *pebble.Batch
	pending map[string]struct{}
}

func (s *exactSession) reserve(uniqueKey string) (bool, error) {
	if _, ok := s.pending[uniqueKey]; ok {
		return false, nil
	}
	key := SeenKey(s.f.queue, uniqueKey)
	if _, err := s.f.db.Get(key); err == nil {
		return false, nil
	} else if !errors.Is(err, pebblestore.ErrNotFound) {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	if err := s.b.Set(key, nil, nil); err != nil {
		return false, err
	}
	s.pending[uniqueKey] = struct{}{}
	return true, nil
}

// bloomFilter stores a fixed mBits bitmap as 64-bit words under bloom/.
// Bounded memory, but a never-seen key whose probe bits are all set is
// dropped as a false positive. The geometry is persisted under bloomcfg so
// a queue cannot silently be reopened with incompatible parameters.
type bloomFilter struct {
	db    *pebblestore.DB
	queue string
	mBits uint64
	k     int
}

func openBloomFilter(db *pebblestore.DB, queue string, cfg frontier.DedupConfig) (*bloomFilter, error) {
	mBits, k := frontier.BloomParams(cfg.BloomCapacity, cfg.BloomFPRate)

	metaKey := BloomMetaKey(queue)
	if b, err := db.Get(metaKey); err == nil {
		if len(b) < 12 {
			return nil, fmt.Errorf("bloom meta for queue %q is truncated", queue)
		}
		gotM := binary.BigEndian.Uint64(b[:8])
		gotK := int(binary.BigEndian.Uint32(b[8:12]))
		if gotM != mBits || gotK != k {
			return nil, frontier.ErrDedupMismatch
		}
	} else if errors.Is(err, pebblestore.ErrNotFound) {
		buf := make([]byte, 12)
		binary.BigEndian.PutUint64(buf[:8], mBits)
		binary.BigEndian.PutUint32(buf[8:12], uint32(k))
		if err := db.Set(metaKey, buf); err != nil {
			return nil, fmt.Errorf("persist bloom meta: %w", err)
		}
	} else {
		return nil, fmt.Errorf("read bloom meta: %w", err)
	}

	return &bloomFilter{db: db, queue: queue, mBits: mBits, k: k}, nil
}

func (f *bloomFilter) begin(b *pebble.Batch) dedupSession {
	return &bloomSession{f: f, b: b, words: map[uint32]uint64{}}
}

type bloomSession struct {
	f     *bloomFilter
	b     *pebble.Batch
	words map[uint32]uint64 // read-your-writes cache within one batch
}

func (s *bloomSession) word(idx uint32) (uint64, error) {
	if w, ok := s.words[idx]; ok {
		return w, nil
	}
	var w uint64
	v, err := s.f.db.Get(BloomWordKey(s.f.queue, idx))
	switch {
	case err == nil:
		if len(v) >= 8 {
			w = binary.BigEndian.Uint64(v[:8])
		}
	case errors.Is(err, pebblestore.ErrNotFound):
		w = 0
	default:
		return 0, fmt.Errorf("bloom word read: %w", err)
	}
	s.words[idx] = w
	return w, nil
}

func (s *bloomSession) reserve(uniqueKey string) (bool, error) {
	offsets := frontier.BloomOffsets(uniqueKey, s.f.mBits, s.f.k)

	seen := true
	for _, off := range offsets {
		w, err := s.word(uint32(off >> 6))
		if err != nil {
			return false, err
		}
		if w&(1<<(off&63)) == 0 {
			seen = false
			break
		}
	}
	if seen {
		return false, nil
	}

	for _, off := range offsets {
		idx := uint32(off >> 6)
		w, err := s.word(idx)
		if err != nil {
			return false, err
		}
		w |= 1 << (off & 63)
		s.words[idx] = w
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], w)
		// Re-setting the same word key later in the batch overwrites with
		// the accumulated value, so order within the batch stays correct.
		if err := s.b.Set(BloomWordKey(s.f.queue, idx), buf[:], nil); err != nil {
			return false, err
		}
	}
	return true, nil
}

// newDedupFilter builds the configured variant.
func newDedupFilter(db *pebblestore.DB, queue string, cfg frontier.DedupConfig) (dedupFilter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case frontier.DedupExact:
		return &exactFilter{db: db, queue: queue}, nil
	case frontier.DedupBloom:
		return openBloomFilter(db, queue, cfg)
	default:
		return nil, fmt.Errorf("unknown dedup kind %q", cfg.Kind)
	}
}
