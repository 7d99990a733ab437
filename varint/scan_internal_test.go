package varint

import (
	"math/rand"
	"testing"
)

func TestScanFastAgreesWithSlow(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20000; i++ {
		n := rng.Intn(MaxLen64 + 1)
		data := make([]byte, n)
		for j := range data {
			// bias towards continuation bytes so long varints are common
			if rng.Intn(4) == 0 {
				data[j] = byte(rng.Intn(0x80))
			} else {
				data[j] = byte(0x80 | rng.Intn(0x80))
			}
		}
		if fast, slow := scanFast(data), scanSlow(data); fast != slow {
			t.Fatalf("data=%x fast=%d slow=%d", data, fast, slow)
		}
	}
}

func TestScanFast_IgnoresBytesPastWindow(t *testing.T) {
	// the terminator lives in the caller's backing array but outside the slice
	backing := []byte{0x80, 0x80, 0x01}
	if got := scanFast(backing[:2]); got != 0 {
		t.Fatalf("scanFast read past the window: %d", got)
	}
}

func TestScanAgreesWithUvarint(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 1 << 21, 1<<63 + 5} {
		buf := AppendUvarint(nil, v)
		if got := Scan(buf); got != len(buf) {
			t.Fatalf("Scan(%x) = %d, want %d", buf, got, len(buf))
		}
	}
}
