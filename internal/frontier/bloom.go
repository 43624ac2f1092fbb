package frontier

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// BloomParams derives the bitmap size in bits (m) and the probe count (k)
// for the given expected capacity n and target false-positive rate p, using
// the standard optima m = -n*ln(p)/ln(2)^2 and k = (m/n)*ln(2).
func BloomParams(capacity int, fpRate float64) (mBits uint64, k int) {
	n := float64(capacity)
	m := math.Ceil(-n * math.Log(fpRate) / (math.Ln2 * math.Ln2))
	if m < 64 {
		m = 64
	}
	kf := math.Round(m / n * math.Ln2)
	if kf < 1 {
		kf = 1
	}
	if kf > 32 {
		kf = 32
	}
	return uint64(m), int(kf)
}

// bloomSeed is prepended to the key for the second hash of the
// double-hashing scheme. Both backends must use identical probe positions,
// so this constant is part of the persisted filter format.
var bloomSeed = []byte{0x9e, 0x37, 0x79, 0xb9}

// BloomOffsets returns the k bit positions probed for uniqueKey in an m-bit
// filter, via Kirsch-Mitzenmacher double hashing over xxhash64.
func BloomOffsets(uniqueKey string, mBits uint64, k int) []uint64 {
	h1 := xxhash.Sum64String(uniqueKey)

	d := xxhash.New()
	_, _ = d.Write(bloomSeed)
	_, _ = d.WriteString(uniqueKey)
	h2 := d.Sum64() | 1 // odd stride so probes cover the bitmap

	out := make([]uint64, k)
	for i := 0; i < k; i++ {
		out[i] = (h1 + uint64(i)*h2) % mBits
	}
	return out
}
