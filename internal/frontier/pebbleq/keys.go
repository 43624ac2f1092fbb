package pebbleq

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for queue data structures. All keys for one queue live under
// q/{name}/ so multiple logical queues can share one store.
const (
	prefixReady    = "ready/"     // FIFO order index: orderKey -> unique_key
	prefixItem     = "item/"      // unique_key -> payload record
	prefixSeen     = "seen/"      // exact dedup set: unique_key -> nil
	prefixBloom    = "bloom/"     // bloom bitmap words: wordIdx -> uint64
	prefixLease    = "lease/"     // unique_key -> lease record
	prefixLeaseExp = "lease_exp/" // expiry index: expires_ms + unique_key -> nil
)

// queuePrefix returns the base prefix for a queue.
// Format: q/{name}/
func queuePrefix(name string) string {
	return fmt.Sprintf("q/%s/", name)
}

// MetaKey returns the queue metadata key.
// Format: q/{name}/meta
func MetaKey(name string) []byte {
	return []byte(queuePrefix(name) + "meta")
}

// orderKey flips the sign bit of a signed sequence so that int64 order and
// bytewise order agree: negative (forefront) sequences sort before positive
// (back) ones.
func orderKey(seq int64) uint64 {
	return uint64(seq) ^ (1 << 63)
}

// ReadyKey returns the FIFO index key for a sequence.
// Format: q/{name}/ready/{orderKey(seq)}
func ReadyKey(name string, seq int64) []byte {
	prefix := queuePrefix(name) + prefixReady
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], orderKey(seq))
	return key
}

// ReadyPrefix returns the prefix for scanning the FIFO index.
func ReadyPrefix(name string) []byte {
	return []byte(queuePrefix(name) + prefixReady)
}

// ItemKey returns the payload record key for a unique key.
// Format: q/{name}/item/{unique_key}
func ItemKey(name, uniqueKey string) []byte {
	return []byte(queuePrefix(name) + prefixItem + uniqueKey)
}

// SeenKey returns the exact dedup set key for a unique key.
// Format: q/{name}/seen/{unique_key}
func SeenKey(name, uniqueKey string) []byte {
	return []byte(queuePrefix(name) + prefixSeen + uniqueKey)
}

// BloomWordKey returns the key holding one 64-bit word of the bloom bitmap.
// Format: q/{name}/bloom/{wordIdx}
func BloomWordKey(name string, wordIdx uint32) []byte {
	prefix := queuePrefix(name) + prefixBloom
	key := make([]byte, len(prefix)+4)
	copy(key, prefix)
	binary.BigEndian.PutUint32(key[len(prefix):], wordIdx)
	return key
}

// BloomMetaKey returns the key persisting the filter's geometry (mBits, k).
// Format: q/{name}/bloomcfg
func BloomMetaKey(name string) []byte {
	return []byte(queuePrefix(name) + "bloomcfg")
}

// LeaseKey returns the lease record key for a unique key.
// Format: q/{name}/lease/{unique_key}
func LeaseKey(name, uniqueKey string) []byte {
	return []byte(queuePrefix(name) + prefixLease + uniqueKey)
}

// LeaseExpKey returns the lease expiry index key.
// Format: q/{name}/lease_exp/{expires_ms}/{unique_key}
func LeaseExpKey(name string, expiresMs int64, uniqueKey string) []byte {
	prefix := queuePrefix(name) + prefixLeaseExp
	key := make([]byte, len(prefix)+8+len(uniqueKey))
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(expiresMs))
	copy(key[len(prefix)+8:], uniqueKey)
	return key
}

// LeaseExpPrefix returns the prefix for scanning the lease expiry index.
func LeaseExpPrefix(name string) []byte {
	return []byte(queuePrefix(name) + prefixLeaseExp)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	hi := make([]byte, len(prefix)+1)
	copy(hi, prefix)
	hi[len(prefix)] = 0xFF
	return hi
}
