package pbjournal_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/pbjournal"
)

func TestJournal_SpliceAndRemap(t *testing.T) {
	j, err := pbjournal.NewJournal([]byte("abcdef"), pbjournal.WithCopy())
	if err != nil {
		t.Fatal(err)
	}
	v0 := j.Version()

	if err := j.Write(2, 2, []byte("XY")); err != nil {
		t.Fatal(err)
	}
	if err := j.Write(0, 1, []byte("Z")); err != nil {
		t.Fatal(err)
	}
	v2 := j.Version()
	if err := j.Clear(4, 6); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("ZbXYef", string(j.Bytes())); diff != "" {
		t.Fatalf("bytes (-want +got):\n%s", diff)
	}
	if j.Version() != v0+3 {
		t.Fatalf("version = %d, want %d", j.Version(), v0+3)
	}

	cases := []struct {
		pos   int
		since uint64
		want  int
		ok    bool
	}{
		{pos: 1, since: v0, want: 1, ok: true},  // before the insert
		{pos: 0, since: v0, want: 0, ok: true},  // anchored at a replace
		{pos: 4, since: v0, want: 4, ok: true},  // shifted, then shifted back
		{pos: 2, since: v0, want: 0, ok: false}, // pushed into the erased range
		{pos: 5, since: v2, want: 0, ok: false}, // inside the erased range
		{pos: 6, since: v2, want: 4, ok: true},
		{pos: 7, since: v2, want: 5, ok: true},
	}
	for _, c := range cases {
		got, err := j.Remap(c.pos, c.since)
		if c.ok != (err == nil) {
			t.Fatalf("Remap(%d, %d) err = %v", c.pos, c.since, err)
		}
		if c.ok && got != c.want {
			t.Fatalf("Remap(%d, %d) = %d, want %d", c.pos, c.since, got, c.want)
		}
	}
	if got := len(j.Edits(v0)); got != 3 {
		t.Fatalf("edits = %d", got)
	}
}

func TestJournal_RejectsOutOfRange(t *testing.T) {
	j, _ := pbjournal.NewJournal([]byte("abc"))
	v := j.Version()
	err := j.Write(2, 5, []byte("x"))
	if pbjournal.CodeOf(err) != pbjournal.CodeOffset {
		t.Fatalf("got %v, want offset", err)
	}
	if j.Version() != v || string(j.Bytes()) != "abc" {
		t.Fatal("failed write must not change the journal")
	}
}

func TestJournal_CheckpointDropsHistory(t *testing.T) {
	j, _ := pbjournal.NewJournal(nil)
	_ = j.Write(0, 0, []byte("ab"))
	old := j.Version()
	_ = j.Write(1, 1, []byte("c"))
	j.Checkpoint()
	if _, err := j.Remap(0, old); !errors.Is(err, pbjournal.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
	if got, err := j.Remap(1, j.Version()); err != nil || got != 1 {
		t.Fatalf("current version should map to itself, got %d %v", got, err)
	}
}

func TestJournal_HistoryLimit(t *testing.T) {
	j, _ := pbjournal.NewJournal(nil, pbjournal.WithHistoryLimit(2))
	_ = j.Write(0, 0, []byte("a"))
	v1 := j.Version()
	_ = j.Write(1, 1, []byte("b"))
	v2 := j.Version()
	_ = j.Write(0, 0, []byte("c"))
	_ = j.Write(3, 3, []byte("d"))
	if got := len(j.Edits(v2)); got != 2 {
		t.Fatalf("kept %d edits, want 2", got)
	}
	if _, err := j.Remap(0, v1); !errors.Is(err, pbjournal.ErrInvalid) {
		t.Fatalf("dropped history: got %v, want ErrInvalid", err)
	}
	if got, err := j.Remap(1, v2); err != nil || got != 2 {
		t.Fatalf("remap = %d, %v; want 2", got, err)
	}
	if string(j.Bytes()) != "cabd" {
		t.Fatalf("bytes = %q", j.Bytes())
	}
}

func TestJournal_Observer(t *testing.T) {
	var seen []pbjournal.Edit
	j, _ := pbjournal.NewJournal([]byte("abc"), pbjournal.WithObserver(func(e pbjournal.Edit) {
		seen = append(seen, e)
	}))
	_ = j.Write(1, 2, []byte("xyz"))
	_ = j.Clear(0, 1)
	want := []pbjournal.Edit{
		{Version: 1, Kind: pbjournal.EditReplace, Pos: 1, Old: 1, New: 3},
		{Version: 2, Kind: pbjournal.EditErase, Pos: 0, Old: 1, New: 0},
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Fatalf("edits (-want +got):\n%s", diff)
	}
}

func TestJournal_AllocFailureLeavesBufferIntact(t *testing.T) {
	j, err := pbjournal.NewJournal(nil, pbjournal.WithAllocator(pbjournal.LimitAllocator{Max: 8}))
	if err != nil {
		t.Fatal(err)
	}
	m := pbjournal.NewMessage(j, person(t))
	if err := m.Put(1, int32(3)); err != nil {
		t.Fatal(err)
	}
	before := append([]byte(nil), j.Bytes()...)

	err = m.Put(2, "a name that does not fit")
	if pbjournal.CodeOf(err) != pbjournal.CodeAlloc {
		t.Fatalf("got %v, want alloc", err)
	}
	if diff := cmp.Diff(before, j.Bytes()); diff != "" {
		t.Fatalf("journal changed (-want +got):\n%s", diff)
	}
	if m.Valid() {
		t.Fatal("handle should be invalid after a failed write")
	}
	if err := m.Put(1, int32(4)); !errors.Is(err, pbjournal.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestJournal_ReleaseInvalidatesHandles(t *testing.T) {
	m := openPerson(t, nil)
	_ = m.Put(2, "x")
	f, err := m.Field(2)
	if err != nil {
		t.Fatal(err)
	}
	m.Journal().Release()
	if err := f.Get(new(string)); pbjournal.CodeOf(err) != pbjournal.CodeInvalid {
		t.Fatalf("got %v, want invalid", err)
	}
	if m.Journal().Len() != 0 {
		t.Fatal("released journal should be empty")
	}
}
