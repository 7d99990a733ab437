package pbjournal

import (
	"github.com/reoring/pbjournal/descriptor"
	"github.com/reoring/pbjournal/wire"
)

// Cursor iterates over the occurrences of one tag, or of every tag, inside a
// message. Elements of packed records are visited one by one.
//
// A cursor is either positioned on an occurrence (Valid) or in a terminal
// state reported by Err: ErrOffset when a filtered cursor ran out,
// ErrEOM when an unfiltered one did, ErrInvalid when the message is gone, or
// the wire error met while scanning.
//
//	for c := msg.Cursor(4); c.Valid(); c.Next() {
//		var s string
//		_ = c.Get(&s)
//	}
type Cursor struct {
	parent Message
	// tag filters occurrences; 0 visits all
	tag   uint32
	cur   Part
	index int
	err   error
	// atEnd is set once the cursor moved past the last occurrence
	atEnd bool
}

func newCursor(m *Message, tag uint32) *Cursor {
	c := &Cursor{parent: *m, tag: tag}
	c.Rewind()
	return c
}

// Valid reports whether the cursor is positioned on an occurrence.
func (c *Cursor) Valid() bool { return c.err == nil }

// Err returns the terminal state, or nil while positioned.
func (c *Cursor) Err() error { return c.err }

// End reports whether the cursor ran past the last occurrence.
func (c *Cursor) End() bool { return c.atEnd }

// Tag is the field number of the current occurrence.
func (c *Cursor) Tag() uint32 {
	if c.err != nil {
		return 0
	}
	return c.cur.num
}

// Index is the zero-based position of the current occurrence.
func (c *Cursor) Index() int { return c.index }

func (c *Cursor) fieldOf(num uint32) *descriptor.Field {
	return c.parent.desc.Lookup(num)
}

// walk visits every occurrence matching the filter, in order.
func (c *Cursor) walk(fn func(p Part) bool) error {
	if err := c.parent.Align(); err != nil {
		return err
	}
	m := &c.parent
	var inner error
	err := m.each(func(r wire.Record) bool {
		if c.tag != 0 && r.Num != c.tag {
			return true
		}
		f := c.fieldOf(r.Num)
		if !packed(f, r) {
			return fn(recordPart(m.j, r))
		}
		more := true
		inner = m.j.elements(r, f.Type.WireType(), func(start, end int) bool {
			more = fn(elementPart(m.j, r, start, end, f.Type.WireType()))
			return more
		})
		return inner == nil && more
	})
	if err != nil {
		return err
	}
	return inner
}

func (c *Cursor) exhausted() error {
	if c.tag == 0 {
		return newError("cursor", 0, -1, ErrEOM)
	}
	return newError("cursor", c.tag, -1, ErrOffset)
}

func (c *Cursor) settle(p Part, found bool, err error) error {
	switch {
	case err != nil:
		c.err = newError("cursor", c.tag, -1, err)
	case !found:
		c.atEnd = true
		c.err = c.exhausted()
	default:
		c.cur, c.err, c.atEnd = p, nil, false
	}
	return c.err
}

// position returns the offset the current occurrence starts at, realigning
// it first.
func (c *Cursor) position() (int, error) {
	if c.atEnd {
		_, hi := c.parent.payload()
		return hi, c.parent.Align()
	}
	if c.err != nil {
		return 0, c.err
	}
	if err := c.cur.Align(); err != nil {
		return 0, err
	}
	return c.cur.start, nil
}

// Rewind moves to the first occurrence.
func (c *Cursor) Rewind() error {
	var first Part
	found := false
	err := c.walk(func(p Part) bool {
		first, found = p, true
		return false
	})
	c.index = 0
	return c.settle(first, found, err)
}

// Next moves to the following occurrence.
func (c *Cursor) Next() error {
	pos, err := c.position()
	if err != nil {
		return c.settle(Part{}, false, err)
	}
	if c.atEnd {
		return c.err
	}
	var next Part
	found := false
	err = c.walk(func(p Part) bool {
		if p.start > pos {
			next, found = p, true
			return false
		}
		return true
	})
	if found {
		c.index++
	}
	return c.settle(next, found, err)
}

// Prev moves to the preceding occurrence. From the end state it moves to the
// last occurrence.
func (c *Cursor) Prev() error {
	pos, err := c.position()
	if err != nil {
		return c.settle(Part{}, false, err)
	}
	var prev Part
	found := false
	n := 0
	err = c.walk(func(p Part) bool {
		if p.start >= pos {
			return false
		}
		prev, found = p, true
		n++
		return true
	})
	if err != nil {
		return c.settle(Part{}, false, err)
	}
	if !found {
		// already on the first occurrence
		return newError("cursor.prev", c.tag, pos, ErrOffset)
	}
	c.index = n - 1
	return c.settle(prev, true, nil)
}

// Seek moves forward to the first occurrence, starting with the current
// one, whose value equals v. It needs a tag filter. An occurrence before the
// current position is never found.
func (c *Cursor) Seek(v any) error {
	if c.tag == 0 {
		return newError("cursor.seek", 0, -1, ErrDescriptor)
	}
	f := c.fieldOf(c.tag)
	if f == nil {
		return newError("cursor.seek", c.tag, -1, ErrDescriptor)
	}
	pos, err := c.position()
	if err != nil {
		return c.settle(Part{}, false, err)
	}
	var hit Part
	found := false
	skipped := 0
	var inner error
	err = c.walk(func(p Part) bool {
		if p.start < pos {
			return true
		}
		ok, err := matchValue(f, c.parent.j.buf[p.value:p.end], v)
		if err != nil {
			inner = err
			return false
		}
		if ok {
			hit, found = p, true
			return false
		}
		skipped++
		return true
	})
	if err == nil {
		err = inner
	}
	if found {
		c.index += skipped
	}
	return c.settle(hit, found, err)
}

// Part returns a copy of the current position as a raw part.
func (c *Cursor) Part() (*Part, error) {
	if _, err := c.position(); err != nil {
		return nil, err
	}
	if c.atEnd {
		return nil, c.err
	}
	p := c.cur
	return &p, nil
}

// Field returns a handle on the current scalar value.
func (c *Cursor) Field() (*Field, error) {
	p, err := c.Part()
	if err != nil {
		return nil, err
	}
	f := c.fieldOf(p.num)
	if f == nil || f.Type == descriptor.TypeMessage {
		return nil, newError("cursor.field", p.num, p.start, ErrDescriptor)
	}
	return &Field{Part: *p, desc: f, parent: c.parent}, nil
}

// Message returns a handle on the current submessage.
func (c *Cursor) Message() (*Message, error) {
	p, err := c.Part()
	if err != nil {
		return nil, err
	}
	f := c.fieldOf(p.num)
	if f == nil || f.Type != descriptor.TypeMessage || p.typ != wire.Bytes {
		return nil, newError("cursor.message", p.num, p.start, ErrDescriptor)
	}
	return &Message{Part: *p, desc: f.Message}, nil
}

// Get decodes the current value into out.
func (c *Cursor) Get(out any) error {
	fh, err := c.Field()
	if err != nil {
		return err
	}
	return fh.Get(out)
}

// Match compares the current value with v.
func (c *Cursor) Match(v any) (bool, error) {
	fh, err := c.Field()
	if err != nil {
		return false, err
	}
	return fh.Match(v)
}
