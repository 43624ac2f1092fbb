package pebbleq

import (
	"bytes"
	"testing"
)

func TestItemRecordRoundtrip(t *testing.T) {
	rec := EncodeItem(12345, []byte("hello"))
	ms, payload, ok := DecodeItem(rec)
	if !ok || ms != 12345 || string(payload) != "hello" {
		t.Fatalf("roundtrip: ms=%d payload=%q ok=%v", ms, payload, ok)
	}

	// Empty payloads are valid.
	ms, payload, ok = DecodeItem(EncodeItem(7, nil))
	if !ok || ms != 7 || len(payload) != 0 {
		t.Fatalf("empty payload roundtrip: ms=%d payload=%q ok=%v", ms, payload, ok)
	}
}

func TestItemRecordRejectsCorruption(t *testing.T) {
	rec := EncodeItem(1, []byte("abc"))
	rec[9] ^= 0x01
	if _, _, ok := DecodeItem(rec); ok {
		t.Fatalf("corrupt record decoded")
	}
	if _, _, ok := DecodeItem(rec[:5]); ok {
		t.Fatalf("truncated record decoded")
	}
}

func TestLeaseRecordRoundtrip(t *testing.T) {
	exp, owner, ok := DecodeLease(EncodeLease(9999, "worker-1"))
	if !ok || exp != 9999 || owner != "worker-1" {
		t.Fatalf("roundtrip: exp=%d owner=%q ok=%v", exp, owner, ok)
	}
	if _, _, ok := DecodeLease([]byte{1, 2}); ok {
		t.Fatalf("short lease decoded")
	}
}

func TestMetaRoundtrip(t *testing.T) {
	in := queueMeta{head: -3, tail: 10, ready: 4, leased: 2, enqueuedTotal: 13, dedupDropped: 5, reclaimedTotal: 1, payloadSkips: 2}
	out, ok := decodeMeta(encodeMeta(in))
	if !ok || out != in {
		t.Fatalf("roundtrip: in=%+v out=%+v ok=%v", in, out, ok)
	}
	if _, ok := decodeMeta(make([]byte, metaLen-1)); ok {
		t.Fatalf("short meta decoded")
	}
}

func TestOrderKeySortsSignedSequences(t *testing.T) {
	// Bytewise key order must follow signed sequence order so forefront
	// (negative) sequences scan before back (positive) ones.
	seqs := []int64{-1 << 40, -2, -1, 0, 1, 1 << 40}
	for i := 1; i < len(seqs); i++ {
		a := ReadyKey("q", seqs[i-1])
		b := ReadyKey("q", seqs[i])
		if bytes.Compare(a, b) >= 0 {
			t.Fatalf("seq %d should sort before %d", seqs[i-1], seqs[i])
		}
	}
}

func TestLeaseExpKeySortsByExpiry(t *testing.T) {
	a := LeaseExpKey("q", 1000, "zzz")
	b := LeaseExpKey("q", 2000, "aaa")
	if bytes.Compare(a, b) >= 0 {
		t.Fatalf("earlier expiry must sort first")
	}
}
