package pebbleq

import (
	"encoding/binary"
	"hash/crc32"
)

// Item record: enqueuedAtMs(8B BE) | payload | crc32c(record[:len-4])
// Lease record: expiresAtMs(8B BE) | ownerID
// Meta record: 8 big-endian 64-bit fields, see queueMeta.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeItem builds an item record for a payload enqueued at nowMs.
func EncodeItem(enqueuedAtMs int64, payload []byte) []byte {
	out := make([]byte, 8+len(payload)+4)
	binary.BigEndian.PutUint64(out[:8], uint64(enqueuedAtMs))
	copy(out[8:], payload)
	crc := crc32.Checksum(out[:8+len(payload)], castagnoli)
	binary.BigEndian.PutUint32(out[8+len(payload):], crc)
	return out
}

// DecodeItem parses an item record, reporting ok=false on truncation or
// CRC mismatch.
func DecodeItem(b []byte) (enqueuedAtMs int64, payload []byte, ok bool) {
	if len(b) < 12 {
		return 0, nil, false
	}
	body := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return 0, nil, false
	}
	enqueuedAtMs = int64(binary.BigEndian.Uint64(body[:8]))
	payload = append([]byte(nil), body[8:]...)
	return enqueuedAtMs, payload, true
}

// EncodeLease builds a lease record.
func EncodeLease(expiresAtMs int64, ownerID string) []byte {
	out := make([]byte, 8+len(ownerID))
	binary.BigEndian.PutUint64(out[:8], uint64(expiresAtMs))
	copy(out[8:], ownerID)
	return out
}

// DecodeLease parses a lease record.
func DecodeLease(b []byte) (expiresAtMs int64, ownerID string, ok bool) {
	if len(b) < 8 {
		return 0, "", false
	}
	return int64(binary.BigEndian.Uint64(b[:8])), string(b[8:]), true
}

// queueMeta is the persistent per-queue header: the deque sequence bounds
// plus counters. All mutating operations rewrite it inside the same batch
// as their data writes.
type queueMeta struct {
	head           int64 // lowest assigned FIFO sequence (forefront grows downward)
	tail           int64 // next back FIFO sequence
	ready          int64
	leased         int64
	enqueuedTotal  uint64
	dedupDropped   uint64
	reclaimedTotal uint64
	payloadSkips   uint64
}

const metaLen = 64

func encodeMeta(m queueMeta) []byte {
	out := make([]byte, metaLen)
	binary.BigEndian.PutUint64(out[0:8], uint64(m.head))
	binary.BigEndian.PutUint64(out[8:16], uint64(m.tail))
	binary.BigEndian.PutUint64(out[16:24], uint64(m.ready))
	binary.BigEndian.PutUint64(out[24:32], uint64(m.leased))
	binary.BigEndian.PutUint64(out[32:40], m.enqueuedTotal)
	binary.BigEndian.PutUint64(out[40:48], m.dedupDropped)
	binary.BigEndian.PutUint64(out[48:56], m.reclaimedTotal)
	binary.BigEndian.PutUint64(out[56:64], m.payloadSkips)
	return out
}

func decodeMeta(b []byte) (queueMeta, bool) {
	if len(b) < metaLen {
		return queueMeta{}, false
	}
	return queueMeta{
		head:           int64(binary.BigEndian.Uint64(b[0:8])),
		tail:           int64(binary.BigEndian.Uint64(b[8:16])),
		ready:          int64(binary.BigEndian.Uint64(b[16:24])),
		leased:         int64(binary.BigEndian.Uint64(b[24:32])),
		enqueuedTotal:  binary.BigEndian.Uint64(b[32:40]),
		dedupDropped:   binary.BigEndian.Uint64(b[40:48]),
		reclaimedTotal: binary.BigEndian.Uint64(b[48:56]),
		payloadSkips:   binary.BigEndian.Uint64(b[56:64]),
	}, true
}
