package hashutil

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func cyclic(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestMurmur(t *testing.T) {
	const seed = 19780211

	require.Equal(t, uint64(0x15941D6097FA1378), Murmur([]byte("Hello World"), seed))
	require.Equal(t, uint64(0x4C6A0FFD2F090C3A), Murmur([]byte("こんにちは世界"), seed))
	require.Equal(t, uint64(0xD247B93561BD1053), Murmur(cyclic(256), seed))
}

func TestFNV(t *testing.T) {
	require.Equal(t, uint64(0x9AA143013F1E405F), FNV([]byte("Hello World")))
	require.Equal(t, uint64(0x8609C402DAD8A1EF), FNV([]byte("こんにちは世界")))
	require.Equal(t, uint64(0x2F8C4ED90D46DE25), FNV(cyclic(256)))
}

func TestCRC(t *testing.T) {
	for _, tc := range []struct {
		name string
		fn   func([]byte) uint32
		want [4]uint32 // "hello", "Hello World", "こんにちは世界", cyclic(256)
	}{
		{"crc4", CRC4, [4]uint32{0xD, 0x9, 0xE, 0x5}},
		{"crc8", CRC8, [4]uint32{0x92, 0x25, 0xB7, 0x14}},
		{"crc16", CRC16, [4]uint32{0xC362, 0x992A, 0xF802, 0x7E55}},
		{"crc32", CRC32, [4]uint32{0x3610A686, 0x4A17B156, 0x75197186, 0x29058C73}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want[0], tc.fn([]byte("hello")))
			require.Equal(t, tc.want[1], tc.fn([]byte("Hello World")))
			require.Equal(t, tc.want[2], tc.fn([]byte("こんにちは世界")))
			require.Equal(t, tc.want[3], tc.fn(cyclic(256)))
		})
	}
}

func TestContinuous(t *testing.T) {
	chunks := [][]byte{[]byte("Hello"), []byte(" "), []byte("World")}
	whole := []byte("Hello World")

	fold32 := func(fn func([]byte, bool, uint32) uint32, init uint32) uint32 {
		st := init
		for i, c := range chunks {
			st = fn(c, i == len(chunks)-1, st)
		}
		return st
	}

	require.Equal(t, CRC4(whole), fold32(CRC4Continuous, CRC4Initial))
	require.Equal(t, CRC8(whole), fold32(CRC8Continuous, CRC8Initial))
	require.Equal(t, CRC16(whole), fold32(CRC16Continuous, CRC16Initial))
	require.Equal(t, CRC32(whole), fold32(CRC32Continuous, CRC32Initial))

	st := FNVInitial
	for i, c := range chunks {
		st = FNVContinuous(c, i == len(chunks)-1, st)
	}
	require.Equal(t, FNV(whole), st)

	h := NewMurmurHasher(19780211)
	for _, c := range chunks {
		n, err := h.Write(c)
		require.NoError(t, err)
		require.Equal(t, len(c), n)
	}
	require.Equal(t, Murmur(whole, 19780211), h.Sum64())

	h.Reset()
	_, err := h.Write(whole)
	require.NoError(t, err)
	require.Equal(t, Murmur(whole, 19780211), h.Sum64())
}

func TestContinuousRandomSplits(t *testing.T) {
	payload := make([]byte, 8192)
	r := rand.New(rand.NewSource(20260822))
	_, err := r.Read(payload)
	require.NoError(t, err)

	for i := 0; i < 16; i++ {
		var chunks [][]byte
		for rest := payload; len(rest) > 0; {
			n := 1 + r.Intn(len(rest))
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}

		st4, st8, st16, st32 := CRC4Initial, CRC8Initial, CRC16Initial, CRC32Initial
		stFNV := FNVInitial
		mh := NewMurmurHasher(19780211)

		for j, c := range chunks {
			last := j == len(chunks)-1
			st4 = CRC4Continuous(c, last, st4)
			st8 = CRC8Continuous(c, last, st8)
			st16 = CRC16Continuous(c, last, st16)
			st32 = CRC32Continuous(c, last, st32)
			stFNV = FNVContinuous(c, last, stFNV)
			_, _ = mh.Write(c)
		}

		require.Equal(t, CRC4(payload), st4)
		require.Equal(t, CRC8(payload), st8)
		require.Equal(t, CRC16(payload), st16)
		require.Equal(t, CRC32(payload), st32)
		require.Equal(t, FNV(payload), stFNV)
		require.Equal(t, Murmur(payload, 19780211), mh.Sum64())
	}
}
