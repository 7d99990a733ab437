package varint

import (
	"encoding/binary"
	"math/bits"

	"golang.org/x/sys/cpu"
)

const (
	highBits = 0x8080808080808080
	// lanes covers the 16 bytes loaded by the word-parallel path.
	lanes = 16
)

// scanFastEnabled selects the word-parallel scan. It is on wherever the CPU
// has 128-bit vector registers; the byte loop is used otherwise.
var scanFastEnabled = cpu.X86.HasSSE2 || cpu.ARM64.HasASIMD

// Scan reports the length of the varint at the start of data, or 0 when no
// terminating byte occurs within the first MaxLen64 bytes of data. Only
// buffer underrun is checked; the payload of the tenth byte is not.
func Scan(data []byte) int {
	if scanFastEnabled && len(data) <= MaxLen64 {
		return scanFast(data)
	}
	return scanSlow(data)
}

func scanSlow(data []byte) int {
	for i := 0; i < len(data) && i < MaxLen64; i++ {
		if data[i] < 0x80 {
			return i + 1
		}
	}
	return 0
}

// scanFast loads up to 16 bytes into two words, builds the mask of bytes
// whose continuation bit is clear and intersects it with the bytes actually
// available. The first set bit is the terminator.
func scanFast(data []byte) int {
	var block [lanes]byte
	n := copy(block[:], data)
	lo := binary.LittleEndian.Uint64(block[0:8])
	hi := binary.LittleEndian.Uint64(block[8:16])

	loTerm := ^lo & highBits
	hiTerm := ^hi & highBits
	loAvail, hiAvail := availMask(n)
	loTerm &= loAvail
	hiTerm &= hiAvail

	if loTerm != 0 {
		return bits.TrailingZeros64(loTerm)/8 + 1
	}
	if hiTerm != 0 {
		// bytes 8 and 9 are the only ones that can terminate within MaxLen64
		if i := bits.TrailingZeros64(hiTerm)/8 + 8; i < MaxLen64 {
			return i + 1
		}
	}
	return 0
}

// availMask returns the high-bit masks selecting the first n bytes of the two
// loaded words.
func availMask(n int) (lo, hi uint64) {
	switch {
	case n >= lanes:
		return highBits, highBits
	case n >= 8:
		return highBits, highBits & (uint64(1)<<(8*uint(n-8)) - 1)
	default:
		return highBits & (uint64(1)<<(8*uint(n)) - 1), 0
	}
}
