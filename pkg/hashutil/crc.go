package hashutil

import "hash/crc32"

// Streaming initial states of the CRC family. States are raw shift
// registers: the value a fold starts from, before any final inversion.
const (
	CRC4Initial  uint32 = 0
	CRC8Initial  uint32 = 0
	CRC16Initial uint32 = 0
	CRC32Initial uint32 = 0xFFFFFFFF
)

var (
	crc4Table  [256]uint32 // poly x^4+x+1, reflected
	crc8Table  [256]uint32 // poly 0x07, MSB first
	crc16Table [256]uint32 // poly 0x1021 (XModem), MSB first
)

func init() {
	for i := range crc4Table {
		r := uint32(i)
		for k := 0; k < 8; k++ {
			if r&1 != 0 {
				r = (r >> 1) ^ 0xC
			} else {
				r >>= 1
			}
		}
		crc4Table[i] = r
	}

	for i := range crc8Table {
		r := uint32(i)
		for k := 0; k < 8; k++ {
			if r&0x80 != 0 {
				r = ((r << 1) ^ 0x07) & 0xFF
			} else {
				r = (r << 1) & 0xFF
			}
		}
		crc8Table[i] = r
	}

	for i := range crc16Table {
		r := uint32(i) << 8
		for k := 0; k < 8; k++ {
			if r&0x8000 != 0 {
				r = ((r << 1) ^ 0x1021) & 0xFFFF
			} else {
				r = (r << 1) & 0xFFFF
			}
		}
		crc16Table[i] = r
	}
}

// CRC4 returns the CRC-4 digest of data in the low 4 bits.
func CRC4(data []byte) uint32 {
	return CRC4Continuous(data, true, CRC4Initial)
}

// CRC4Continuous folds data into state and returns the new state. Start from
// CRC4Initial; last is accepted for symmetry, CRC-4 has no finalization.
func CRC4Continuous(data []byte, last bool, state uint32) uint32 {
	for _, b := range data {
		state = crc4Table[(state^uint32(b))&0xFF]
	}
	return state
}

// CRC8 returns the CRC-8 digest of data in the low 8 bits.
func CRC8(data []byte) uint32 {
	return CRC8Continuous(data, true, CRC8Initial)
}

// CRC8Continuous folds data into state and returns the new state. Start from
// CRC8Initial; last is accepted for symmetry, CRC-8 has no finalization.
func CRC8Continuous(data []byte, last bool, state uint32) uint32 {
	for _, b := range data {
		state = crc8Table[(state^uint32(b))&0xFF]
	}
	return state
}

// CRC16 returns the CRC-16 digest of data in the low 16 bits.
func CRC16(data []byte) uint32 {
	return CRC16Continuous(data, true, CRC16Initial)
}

// CRC16Continuous folds data into state and returns the new state. Start
// from CRC16Initial; last is accepted for symmetry, CRC-16 has no
// finalization.
func CRC16Continuous(data []byte, last bool, state uint32) uint32 {
	for _, b := range data {
		state = ((state << 8) ^ crc16Table[((state>>8)^uint32(b))&0xFF]) & 0xFFFF
	}
	return state
}

// CRC32 returns the CRC-32 (IEEE) digest of data.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// CRC32Continuous folds data into state and returns the new state, or the
// finished digest when last is set. Start from CRC32Initial; intermediate
// states are raw registers, the final inversion happens only on the last
// chunk.
func CRC32Continuous(data []byte, last bool, state uint32) uint32 {
	fin := crc32.Update(state^0xFFFFFFFF, crc32.IEEETable, data)
	if last {
		return fin
	}
	return fin ^ 0xFFFFFFFF
}
