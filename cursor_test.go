package pbjournal_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/pbjournal"
)

func TestCursor_UnfilteredEndsWithEOM(t *testing.T) {
	m := openPerson(t, nil)
	_ = m.Put(1, int32(1))
	_ = m.Put(2, "n")
	_ = m.Put(4, float32(1))
	_ = m.Put(4, float32(2))

	var tags []uint32
	c := m.Each()
	for ; c.Valid(); c.Next() {
		tags = append(tags, c.Tag())
	}
	if diff := cmp.Diff([]uint32{1, 2, 4, 4}, tags); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
	if !errors.Is(c.Err(), pbjournal.ErrEOM) || !c.End() {
		t.Fatalf("terminal state = %v", c.Err())
	}

	empty := openPerson(t, nil).Each()
	if pbjournal.CodeOf(empty.Err()) != pbjournal.CodeEOM {
		t.Fatalf("empty message: %v", empty.Err())
	}
}

func TestCursor_NavigateFiltered(t *testing.T) {
	m := openPerson(t, nil)
	for _, s := range []string{"a", "b", "c"} {
		_ = m.Put(8, s)
	}
	_ = m.Put(9, uint32(3))

	get := func(c *pbjournal.Cursor) string {
		t.Helper()
		var s string
		if err := c.Get(&s); err != nil {
			t.Fatal(err)
		}
		return s
	}

	c := m.Cursor(8)
	for c.Valid() {
		c.Next()
	}
	if pbjournal.CodeOf(c.Err()) != pbjournal.CodeOffset {
		t.Fatalf("filtered cursor should end with offset, got %v", c.Err())
	}
	if err := c.Prev(); err != nil || get(c) != "c" || c.Index() != 2 {
		t.Fatalf("prev from end: %v index %d", err, c.Index())
	}
	if err := c.Prev(); err != nil || get(c) != "b" || c.Index() != 1 {
		t.Fatalf("prev: %v index %d", err, c.Index())
	}
	if err := c.Rewind(); err != nil || get(c) != "a" || c.Index() != 0 {
		t.Fatalf("rewind: %v", err)
	}
	if err := c.Prev(); pbjournal.CodeOf(err) != pbjournal.CodeOffset || !c.Valid() {
		t.Fatalf("prev before the first: %v", err)
	}

	if err := c.Seek("b"); err != nil || c.Index() != 1 {
		t.Fatalf("seek b: %v index %d", err, c.Index())
	}
	if err := c.Seek("b"); err != nil || c.Index() != 1 {
		t.Fatalf("seek includes the current occurrence: %v", err)
	}
	if err := c.Seek("a"); pbjournal.CodeOf(err) != pbjournal.CodeOffset {
		t.Fatalf("seek is forward-only, got %v", err)
	}
	if m.Each().Seek("a") == nil {
		t.Fatal("seek without a tag filter should fail")
	}
}

func TestCursor_WritesThroughField(t *testing.T) {
	m := openPerson(t, nil)
	for _, s := range []string{"a", "b", "c"} {
		_ = m.Put(8, s)
	}
	c := m.Cursor(8)
	_ = c.Next()
	f, err := c.Field()
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Put("bbbb"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := c.Match("bbbb"); !ok {
		t.Fatal("cursor should see the rewritten value")
	}
	if err := c.Next(); err != nil {
		t.Fatal(err)
	}
	var s string
	if err := c.Get(&s); err != nil || s != "c" {
		t.Fatalf("next = %q, %v", s, err)
	}
}

func TestCursor_Submessages(t *testing.T) {
	m := openPerson(t, nil)
	for _, n := range []string{"111", "222"} {
		phone, err := m.Mutable(3)
		if err != nil {
			t.Fatal(err)
		}
		if err := phone.Put(1, n); err != nil {
			t.Fatal(err)
		}
	}
	var got []string
	for c := m.Cursor(3); c.Valid(); c.Next() {
		phone, err := c.Message()
		if err != nil {
			t.Fatal(err)
		}
		var n string
		_ = phone.Get(1, &n)
		got = append(got, n)
	}
	if diff := cmp.Diff([]string{"111", "222"}, got); diff != "" {
		t.Fatalf("phones (-want +got):\n%s", diff)
	}
	requireConsistent(t, m.Descriptor(), m.Journal().Bytes())
}

func TestCursor_InvalidAfterParentCleared(t *testing.T) {
	m := openPerson(t, nil)
	home, _ := m.Mutable(7)
	_ = home.Put(1, "street")
	c := home.Each()
	if !c.Valid() {
		t.Fatal(c.Err())
	}
	_ = m.Erase(7)
	if err := c.Next(); pbjournal.CodeOf(err) != pbjournal.CodeInvalid {
		t.Fatalf("got %v, want invalid", err)
	}
}
