package varint_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/reoring/pbjournal/varint"
)

func boundaryValues() []uint64 {
	vs := []uint64{0, 1}
	for shift := 7; shift < 64; shift += 7 {
		vs = append(vs, 1<<uint(shift)-1, 1<<uint(shift))
	}
	return append(vs, math.MaxUint32, math.MaxInt32, math.MaxInt64, math.MaxUint64)
}

func TestRoundTrip_Unsigned64(t *testing.T) {
	for _, v := range boundaryValues() {
		buf := make([]byte, varint.MaxLen64)
		n := varint.Pack(varint.Uint64, buf, v)
		if n == 0 || n != varint.Size(varint.Uint64, v) {
			t.Fatalf("v=%d: pack n=%d size=%d", v, n, varint.Size(varint.Uint64, v))
		}
		if want := protowire.AppendVarint(nil, v); !cmp.Equal(buf[:n], want) {
			t.Fatalf("v=%d: encoding mismatch (-got +want):\n%s", v, cmp.Diff(buf[:n], want))
		}
		got, m := varint.Unpack(varint.Uint64, buf[:n])
		if m != n || got != v {
			t.Fatalf("v=%d: unpack got=%d n=%d", v, got, m)
		}
	}
}

func TestRoundTrip_Signed32(t *testing.T) {
	vals := []int32{0, 1, -1, 63, -64, 127, 128, math.MaxInt32, math.MinInt32, -1000000}
	for _, v := range vals {
		raw := uint64(int64(v))
		enc := varint.Append(varint.Int32, nil, raw)
		if v < 0 && len(enc) != varint.MaxLen64 {
			t.Fatalf("v=%d: negative int32 must take 10 bytes, got %d", v, len(enc))
		}
		if len(enc) != varint.Size(varint.Int32, raw) {
			t.Fatalf("v=%d: size mismatch", v)
		}
		got, n := varint.Unpack(varint.Int32, enc)
		if n != len(enc) || int32(got) != v || int64(got) != int64(v) {
			t.Fatalf("v=%d: got %d (n=%d)", v, int64(got), n)
		}
	}
}

func TestZigzag_Bijection(t *testing.T) {
	vals32 := []int32{0, -1, 1, -2, 2, math.MaxInt32, math.MinInt32, 12345, -12345}
	for _, v := range vals32 {
		if got := varint.Unzigzag32(varint.Zigzag32(v)); got != v {
			t.Fatalf("zigzag32 %d -> %d", v, got)
		}
		if uint64(varint.Zigzag32(v)) != protowire.EncodeZigZag(int64(v)) {
			t.Fatalf("zigzag32 %d disagrees with protowire", v)
		}
	}
	vals64 := []int64{0, -1, 1, math.MaxInt64, math.MinInt64, -1 << 40}
	for _, v := range vals64 {
		if got := varint.Unzigzag64(varint.Zigzag64(v)); got != v {
			t.Fatalf("zigzag64 %d -> %d", v, got)
		}
		if varint.Zigzag64(v) != protowire.EncodeZigZag(v) {
			t.Fatalf("zigzag64 %d disagrees with protowire", v)
		}
	}
}

func TestSint_ShortNegatives(t *testing.T) {
	neg1, neg64 := int32(-1), int64(-64)
	enc := varint.Append(varint.Sint32, nil, uint64(int64(neg1)))
	if !cmp.Equal(enc, []byte{0x01}) {
		t.Fatalf("sint32(-1) = %x", enc)
	}
	got, n := varint.Unpack(varint.Sint64, varint.Append(varint.Sint64, nil, uint64(neg64)))
	if n != 1 || int64(got) != -64 {
		t.Fatalf("sint64(-64) round trip: got %d n=%d", int64(got), n)
	}
}

func TestUnpack_Failures(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", []byte{0x80, 0x80}},
		{"unterminated ten bytes", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
		{"tenth byte overflow", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, n := varint.Unpack(varint.Uint64, tc.data); n != 0 {
				t.Fatalf("expected failure, got n=%d", n)
			}
		})
	}
}

func TestPack_ShortDestination(t *testing.T) {
	if n := varint.Pack(varint.Uint32, make([]byte, 1), 300); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}

func TestBool_Normalizes(t *testing.T) {
	enc := varint.Append(varint.Bool, nil, 42)
	if !cmp.Equal(enc, []byte{1}) {
		t.Fatalf("bool encoding = %x", enc)
	}
}

func TestScan(t *testing.T) {
	cases := []struct {
		data []byte
		want int
	}{
		{nil, 0},
		{[]byte{0x00}, 1},
		{[]byte{0x80}, 0},
		{[]byte{0xac, 0x02, 0xff}, 2},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}, 10},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, 0},
	}
	for _, tc := range cases {
		if got := varint.Scan(tc.data); got != tc.want {
			t.Fatalf("Scan(%x) = %d, want %d", tc.data, got, tc.want)
		}
	}
}
