// Package hashutil implements the hash functions of the storage engine.
//
// The digests are baked into on-disk formats, so every constant here is
// frozen: changing one breaks every file written before the change.
//
// Besides the one-shot functions the package offers continuous folding, for
// callers that assemble a digest from several chunks (record header, key and
// value are rarely contiguous in memory). Folding chunk by chunk and
// finishing on the last chunk yields exactly the one-shot digest of the
// concatenation.
package hashutil

import "encoding/binary"

const (
	murmurMul = 0xc6a4a7935bd1e995
	murmurRot = 47
)

// Murmur returns the 64-bit Murmur digest of data under the given seed.
func Murmur(data []byte, seed uint64) uint64 {
	h := seed ^ uint64(len(data))*murmurMul

	for len(data) >= 8 {
		k := binary.LittleEndian.Uint64(data)
		k *= murmurMul
		k ^= k >> murmurRot
		k *= murmurMul
		h *= murmurMul
		h ^= k
		data = data[8:]
	}

	if len(data) > 0 {
		for i := len(data) - 1; i >= 0; i-- {
			h ^= uint64(data[i]) << (8 * uint(i))
		}
		h *= murmurMul
	}

	h ^= h >> murmurRot
	h *= murmurMul
	h ^= h >> murmurRot
	return h
}

// MurmurHasher accumulates chunks for a Murmur digest. The mix folds the
// total input length into the initial state, so the hasher has to coalesce
// chunks and run the fold when the digest is requested; memory use grows
// with the input.
type MurmurHasher struct {
	seed uint64
	buf  []byte
}

// NewMurmurHasher returns a hasher producing Murmur digests under seed.
func NewMurmurHasher(seed uint64) *MurmurHasher {
	return &MurmurHasher{seed: seed}
}

// Write implements io.Writer. It never fails.
func (h *MurmurHasher) Write(p []byte) (int, error) {
	h.buf = append(h.buf, p...)
	return len(p), nil
}

// Sum64 returns the digest of everything written so far. The hasher stays
// usable, further writes extend the same input.
func (h *MurmurHasher) Sum64() uint64 {
	return Murmur(h.buf, h.seed)
}

// Reset discards the accumulated input, keeping the seed.
func (h *MurmurHasher) Reset() {
	h.buf = h.buf[:0]
}

// FNVInitial is the streaming state FNVContinuous folding starts from.
const FNVInitial uint64 = 0xCBF29CE484222325

// fnvMul deviates from the textbook 64-bit FNV prime. The digests are baked
// into existing files, so the historical value stays.
const fnvMul = 109951162811

// FNV returns the 64-bit FNV digest of data.
func FNV(data []byte) uint64 {
	return FNVContinuous(data, true, FNVInitial)
}

// FNVContinuous folds data into state and returns the new state. Start from
// FNVInitial and pass each return value into the next call; last is accepted
// for symmetry with the other algorithms, the register needs no
// finalization.
func FNVContinuous(data []byte, last bool, state uint64) uint64 {
	for _, b := range data {
		state = (state ^ uint64(b)) * fnvMul
	}
	return state
}
