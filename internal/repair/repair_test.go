package repair

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/reoring/pbjournal/wire"
)

func TestPlan_NoDelta(t *testing.T) {
	r, patches := Plan([]Frame{{Prefix: 1, PrefixLen: 1, Len: 5}}, Range{3, 5}, 2)
	if patches != nil || r != (Range{3, 5}) {
		t.Fatalf("got %v %v", r, patches)
	}
}

func TestPlan_PropagatesPrefixGrowth(t *testing.T) {
	// outer [tag][len=126][ inner [tag][len=124][ ... record at 10..12 ... ] ]
	chain := []Frame{
		{Start: 0, Prefix: 1, PrefixLen: 1, Len: 126},
		{Start: 2, Prefix: 3, PrefixLen: 1, Len: 124},
	}
	got, patches := Plan(chain, Range{10, 12}, 6)
	want := []Patch{
		// inner grows 124 -> 128, prefix becomes two bytes
		{Offset: 3, Old: 1, Data: []byte{0x80, 0x01}},
		// outer grows by 4 payload + 1 prefix byte: 126 -> 131
		{Offset: 1, Old: 1, Data: []byte{0x83, 0x01}},
	}
	if diff := cmp.Diff(want, patches); diff != "" {
		t.Fatalf("patches (-want +got):\n%s", diff)
	}
	if got != (Range{12, 18}) {
		t.Fatalf("range = %v", got)
	}
	if Growth(patches) != 2 {
		t.Fatalf("growth = %d", Growth(patches))
	}
}

func TestPlan_Shrink(t *testing.T) {
	chain := []Frame{{Start: 0, Prefix: 1, PrefixLen: 2, Len: 130}}
	got, patches := Plan(chain, Range{3, 13}, 0)
	if len(patches) != 1 || !cmp.Equal(patches[0].Data, []byte{120}) {
		t.Fatalf("patches = %v", patches)
	}
	if got != (Range{2, 2}) {
		t.Fatalf("range = %v", got)
	}
}

func nested() (buf []byte, leaf Range) {
	var inner []byte
	inner = protowire.AppendTag(inner, 1, protowire.VarintType)
	inner = protowire.AppendVarint(inner, 7)
	leafStart := len(inner)
	inner = protowire.AppendTag(inner, 2, protowire.BytesType)
	inner = protowire.AppendString(inner, "leaf")
	leafEnd := len(inner)

	var mid []byte
	mid = protowire.AppendTag(mid, 9, protowire.Fixed32Type)
	mid = protowire.AppendFixed32(mid, 1)
	mid = protowire.AppendTag(mid, 3, protowire.BytesType)
	mid = protowire.AppendVarint(mid, uint64(len(inner)))
	midInner := len(mid)
	mid = append(mid, inner...)

	buf = protowire.AppendTag(buf, 5, protowire.BytesType)
	buf = protowire.AppendString(buf, "sibling")
	buf = protowire.AppendTag(buf, 4, protowire.BytesType)
	buf = protowire.AppendVarint(buf, uint64(len(mid)))
	base := len(buf) + midInner
	buf = append(buf, mid...)
	return buf, Range{base + leafStart, base + leafEnd}
}

func TestEnclosing_Nested(t *testing.T) {
	buf, leaf := nested()
	chain, err := Enclosing(buf, leaf, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 2 {
		t.Fatalf("chain = %+v", chain)
	}
	for _, f := range chain {
		p := f.Payload()
		if p.Start > leaf.Start || leaf.End > p.End {
			t.Fatalf("frame %+v does not enclose %v", f, leaf)
		}
	}
	if chain[0].Start != 9 {
		t.Fatalf("outer frame starts at %d", chain[0].Start)
	}
}

func TestEnclosing_TopLevel(t *testing.T) {
	buf, _ := nested()
	chain, err := Enclosing(buf, Range{0, 9}, -1)
	if err != nil || len(chain) != 0 {
		t.Fatalf("chain=%v err=%v", chain, err)
	}
}

func TestEnclosing_Packed(t *testing.T) {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 1)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendVarint(buf, 3)
	buf = append(buf, 0x01, 0x96, 0x01)
	chain, err := Enclosing(buf, Range{5, 7}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 1 || chain[0].Start != 2 || chain[0].Len != 3 {
		t.Fatalf("chain = %+v", chain)
	}
}

func TestEnclosing_Misaligned(t *testing.T) {
	buf, leaf := nested()
	_, err := Enclosing(buf, Range{leaf.Start + 1, leaf.End}, -1)
	if !errors.Is(err, wire.ErrOffset) {
		t.Fatalf("got %v", err)
	}
}
