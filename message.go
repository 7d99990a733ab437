package pbjournal

import (
	"github.com/reoring/pbjournal/descriptor"
	"github.com/reoring/pbjournal/varint"
	"github.com/reoring/pbjournal/wire"
)

// Message is a handle on a message payload inside a Journal: the root
// message, or the payload of a length-delimited submessage record.
//
// Any number of Message, Field and Cursor handles may share one journal.
// Each realigns on use; writing through one leaves the others unaligned
// until then.
type Message struct {
	Part
	desc *descriptor.Message
}

// NewMessage returns the root message of j.
func NewMessage(j *Journal, desc *descriptor.Message) *Message {
	return &Message{Part: rootPart(j), desc: desc}
}

// Open wraps buf in a new Journal and returns its root message.
func Open(buf []byte, desc *descriptor.Message, opts ...JournalOption) (*Message, error) {
	j, err := NewJournal(buf, opts...)
	if err != nil {
		return nil, err
	}
	return NewMessage(j, desc), nil
}

// Descriptor returns the message type.
func (m *Message) Descriptor() *descriptor.Message { return m.desc }

// Bytes returns the encoded fields of the message, without the enclosing
// tag and length prefix.
func (m *Message) Bytes() ([]byte, error) { return m.Payload() }

// Len is the size of the encoded fields, or 0 when the handle is unusable.
func (m *Message) Len() int {
	if m.Align() != nil {
		return 0
	}
	lo, hi := m.payload()
	return hi - lo
}

func (m *Message) field(op string, tag uint32) (*descriptor.Field, error) {
	if err := m.Align(); err != nil {
		return nil, err
	}
	f := m.desc.Lookup(tag)
	if f == nil {
		return nil, newError(op, tag, -1, ErrDescriptor)
	}
	return f, nil
}

func (m *Message) fail(op string, tag uint32, err error) error {
	switch CodeOf(err) {
	case CodeAlloc, CodeOffset, CodeInvalid:
		m.invalidate()
	}
	return newError(op, tag, -1, err)
}

// packed reports whether r holds packed elements of f.
func packed(f *descriptor.Field, r wire.Record) bool {
	return f != nil && r.Type == wire.Bytes && f.Type.Scalar()
}

// elements walks the element spans of the packed record r.
func (j *Journal) elements(r wire.Record, t wire.Type, fn func(start, end int) bool) error {
	for off := r.Value; off < r.End; {
		n := elementSize(j.buf[off:r.End], t)
		if n == 0 {
			if t == wire.Varint && r.End-off >= varint.MaxLen64 {
				return ErrVarint
			}
			return ErrUnderrun
		}
		if !fn(off, off+n) {
			return nil
		}
		off += n
	}
	return nil
}

// values walks every value of f in order. Packed records contribute one part
// per element.
func (m *Message) values(f *descriptor.Field, fn func(p Part) bool) error {
	var inner error
	err := m.each(func(r wire.Record) bool {
		if r.Num != f.Tag {
			return true
		}
		switch {
		case packed(f, r):
			more := true
			inner = m.j.elements(r, f.Type.WireType(), func(start, end int) bool {
				more = fn(elementPart(m.j, r, start, end, f.Type.WireType()))
				return more
			})
			return inner == nil && more
		case r.Type == f.Type.WireType():
			return fn(recordPart(m.j, r))
		default:
			inner = ErrDescriptor
			return false
		}
	})
	if err != nil {
		return err
	}
	return inner
}

// lastValue finds the last value of f, which is the effective value of a
// non-repeated field.
func (m *Message) lastValue(f *descriptor.Field) (Part, bool, error) {
	var last Part
	ok := false
	err := m.values(f, func(p Part) bool {
		last, ok = p, true
		return true
	})
	return last, ok, err
}

func absent(op string, f *descriptor.Field, out any) error {
	if f.Type == descriptor.TypeMessage {
		return newError(op, f.Tag, -1, ErrDescriptor)
	}
	if f.Default == nil {
		return newError(op, f.Tag, -1, ErrAbsent)
	}
	v, err := canonical(f, f.Default)
	if err == nil {
		err = assign(out, v)
	}
	if err != nil {
		return newError(op, f.Tag, -1, err)
	}
	return nil
}

// Has reports whether tag occurs at least once.
func (m *Message) Has(tag uint32) bool {
	if m.Align() != nil {
		return false
	}
	_, ok, err := m.last(tag)
	return ok && err == nil
}

// Get stores the value of tag into out, which must be a pointer such as
// *int32, *string or *any. An absent field yields its default, or ErrAbsent
// when none is declared. Repeated fields yield their last value.
func (m *Message) Get(tag uint32, out any) error {
	f, err := m.field("get", tag)
	if err != nil {
		return err
	}
	p, ok, err := m.lastValue(f)
	if err != nil {
		return newError("get", tag, -1, err)
	}
	if !ok {
		return absent("get", f, out)
	}
	v, err := decodeValue(f, m.j.buf[p.value:p.end])
	if err == nil {
		err = assign(out, v)
	}
	if err != nil {
		return newError("get", tag, p.start, err)
	}
	return nil
}

// Put writes v to tag. Non-repeated fields are overwritten in place, every
// other occurrence being removed; repeated fields get a new occurrence,
// appended to the last packed record for packed fields. Writing a oneof
// member erases the other members of its group.
func (m *Message) Put(tag uint32, v any) error {
	f, err := m.field("put", tag)
	if err != nil {
		return err
	}
	payload, err := appendValue(nil, f, v)
	if err != nil {
		return newError("put", tag, -1, err)
	}
	if err := m.put(f, payload); err != nil {
		return m.fail("put", tag, err)
	}
	return nil
}

func (m *Message) put(f *descriptor.Field, payload []byte) error {
	if f.Label == descriptor.LabelOneof {
		if err := m.eraseRivals(f); err != nil {
			return err
		}
	}
	if f.Repeated() {
		p, err := m.appendPart(f)
		if err != nil {
			return err
		}
		return p.Write(payload)
	}
	p, err := m.create(f)
	if err != nil {
		return err
	}
	keep := -1
	if !p.fresh {
		keep = p.start
	}
	if err := m.eraseExcept(f.Tag, keep); err != nil {
		return err
	}
	return p.Write(payload)
}

// create resolves the part a write to f goes to: the last occurrence of a
// non-repeated field, or a fresh part at the insertion point.
func (m *Message) create(f *descriptor.Field) (Part, error) {
	wt := f.WireType()
	if !f.Repeated() {
		r, ok, err := m.last(f.Tag)
		if err != nil {
			return Part{}, err
		}
		if ok && r.Type == wt {
			return recordPart(m.j, r), nil
		}
	}
	pos, err := m.insertionPoint(f.Tag)
	if err != nil {
		return Part{}, err
	}
	return freshPart(&m.Part, f.Tag, wt, pos, false, f.Repeated()), nil
}

// appendPart returns a fresh part for a new occurrence of the repeated field
// f. Packed fields grow their last packed record.
func (m *Message) appendPart(f *descriptor.Field) (Part, error) {
	if f.WireType() == wire.Bytes && f.Type.Scalar() {
		r, ok, err := m.last(f.Tag)
		if err != nil {
			return Part{}, err
		}
		if ok && r.Type == wire.Bytes {
			c := recordPart(m.j, r)
			return freshPart(&c, f.Tag, f.Type.WireType(), r.End, true, true), nil
		}
	}
	return m.create(f)
}

func (m *Message) eraseRivals(f *descriptor.Field) error {
	for _, g := range m.desc.OneofMembers(f.Oneof) {
		if g.Tag == f.Tag {
			continue
		}
		if err := m.eraseExcept(g.Tag, -1); err != nil {
			return err
		}
	}
	return nil
}

// eraseExcept removes every record of tag except the one starting at keep.
func (m *Message) eraseExcept(tag uint32, keep int) error {
	if err := m.Align(); err != nil {
		return err
	}
	var parts []Part
	err := m.each(func(r wire.Record) bool {
		if r.Num == tag && r.Start != keep {
			parts = append(parts, recordPart(m.j, r))
		}
		return true
	})
	if err != nil {
		return err
	}
	for i := len(parts) - 1; i >= 0; i-- {
		if err := parts[i].Clear(); err != nil {
			return err
		}
	}
	return nil
}

// Erase removes every occurrence of tag.
func (m *Message) Erase(tag uint32) error {
	if _, err := m.field("erase", tag); err != nil {
		return err
	}
	if err := m.eraseExcept(tag, -1); err != nil {
		return m.fail("erase", tag, err)
	}
	return nil
}

// Clear removes the message from the journal. Every handle inside it becomes
// invalid. Clearing a root message empties the journal instead.
func (m *Message) Clear() error { return m.Part.Clear() }

// Raw returns the bytes of the last value of a fixed-width field for direct
// reading and writing. The slice is nil for other types or when the field is
// absent, and must not be used past the next mutation of the journal.
func (m *Message) Raw(tag uint32) []byte {
	f, err := m.field("raw", tag)
	if err != nil || !fixedWidth(f) {
		return nil
	}
	p, ok, err := m.lastValue(f)
	if err != nil || !ok {
		return nil
	}
	return m.j.buf[p.value:p.end:p.end]
}

func fixedWidth(f *descriptor.Field) bool {
	wt := f.Type.WireType()
	return wt == wire.Fixed32 || wt == wire.Fixed64
}

// Match reports whether the value of tag equals v. An absent field matches
// nothing.
func (m *Message) Match(tag uint32, v any) (bool, error) {
	f, err := m.field("match", tag)
	if err != nil {
		return false, err
	}
	p, ok, err := m.lastValue(f)
	if err != nil {
		return false, newError("match", tag, -1, err)
	}
	if !ok {
		return false, nil
	}
	eq, err := matchValue(f, m.j.buf[p.value:p.end], v)
	if err != nil {
		return false, newError("match", tag, p.start, err)
	}
	return eq, nil
}

// matchValue compares a stored payload with v. Fixed 32-bit integers compare
// byte for byte; everything else is decoded first.
func matchValue(f *descriptor.Field, stored []byte, v any) (bool, error) {
	cand, err := appendValue(nil, f, v)
	if err != nil {
		return false, err
	}
	switch f.Type {
	case descriptor.TypeFixed32, descriptor.TypeSfixed32:
		return len(stored) >= 4 && string(stored[:4]) == string(cand), nil
	}
	a, err := decodeValue(f, stored)
	if err != nil {
		return false, err
	}
	b, err := decodeValue(f, cand)
	if err != nil {
		return false, err
	}
	return equalValues(a, b), nil
}

// Create resolves the part a write to tag should go to, following the
// placement rules of Put: the last occurrence of a non-repeated field, or a
// fresh part at the position keeping tags ascending. Creating a oneof member
// that is not present erases the rest of its group.
func (m *Message) Create(tag uint32) (*Part, error) {
	f, err := m.field("create", tag)
	if err != nil {
		return nil, err
	}
	var p Part
	if f.Repeated() {
		p, err = m.appendPart(f)
	} else {
		p, err = m.create(f)
	}
	if err == nil && p.fresh && f.Label == descriptor.LabelOneof {
		if err = m.eraseRivals(f); err == nil {
			err = p.Align()
		}
	}
	if err != nil {
		return nil, m.fail("create", tag, err)
	}
	return &p, nil
}

// Message returns the submessage stored at tag. For repeated fields this is
// the last occurrence.
func (m *Message) Message(tag uint32) (*Message, error) {
	f, err := m.field("message", tag)
	if err != nil {
		return nil, err
	}
	if f.Type != descriptor.TypeMessage {
		return nil, newError("message", tag, -1, ErrDescriptor)
	}
	p, ok, err := m.lastValue(f)
	if err != nil {
		return nil, newError("message", tag, -1, err)
	}
	if !ok {
		return nil, newError("message", tag, -1, ErrAbsent)
	}
	return &Message{Part: p, desc: f.Message}, nil
}

// Mutable returns the submessage at tag, writing an empty one first when it
// is absent. Repeated fields always get a new, empty occurrence.
func (m *Message) Mutable(tag uint32) (*Message, error) {
	f, err := m.field("mutable", tag)
	if err != nil {
		return nil, err
	}
	if f.Type != descriptor.TypeMessage {
		return nil, newError("mutable", tag, -1, ErrDescriptor)
	}
	if !f.Repeated() {
		sub, err := m.Message(tag)
		if CodeOf(err) != CodeAbsent {
			return sub, err
		}
	}
	p, err := m.Create(tag)
	if err != nil {
		return nil, err
	}
	if err := p.Write(nil); err != nil {
		return nil, m.fail("mutable", tag, err)
	}
	return &Message{Part: *p, desc: f.Message}, nil
}

// Field returns a handle on the last value of tag, or a fresh handle when the
// field is absent.
func (m *Message) Field(tag uint32) (*Field, error) {
	f, err := m.field("field", tag)
	if err != nil {
		return nil, err
	}
	if f.Type == descriptor.TypeMessage {
		return nil, newError("field", tag, -1, ErrDescriptor)
	}
	p, ok, err := m.lastValue(f)
	if err != nil {
		return nil, newError("field", tag, -1, err)
	}
	if !ok {
		if p, err = m.create(f); err != nil {
			return nil, newError("field", tag, -1, err)
		}
	}
	return &Field{Part: p, desc: f, parent: *m}, nil
}

// Cursor returns a cursor over the occurrences of tag, positioned on the
// first one.
func (m *Message) Cursor(tag uint32) *Cursor { return newCursor(m, tag) }

// Each returns a cursor over every field occurrence, positioned on the first
// one.
func (m *Message) Each() *Cursor { return newCursor(m, 0) }

// descend resolves all but the last tag of path through non-repeated
// submessage fields, creating missing ones when create is set.
func (m *Message) descend(op string, path []uint32, create bool) (*Message, uint32, error) {
	if len(path) == 0 {
		return nil, 0, newError(op, 0, -1, ErrOffset)
	}
	cur := m
	for _, tag := range path[:len(path)-1] {
		f, err := cur.field(op, tag)
		if err != nil {
			return nil, tag, err
		}
		if f.Type != descriptor.TypeMessage || f.Repeated() {
			return nil, tag, newError(op, tag, -1, ErrDescriptor)
		}
		if create {
			cur, err = cur.Mutable(tag)
		} else {
			cur, err = cur.Message(tag)
		}
		if err != nil {
			return nil, tag, err
		}
	}
	return cur, path[len(path)-1], nil
}

// NestedMessage resolves a path of submessage tags without creating
// anything.
func (m *Message) NestedMessage(path ...uint32) (*Message, error) {
	parent, tag, err := m.descend("nested.message", path, false)
	if err != nil {
		return nil, err
	}
	return parent.Message(tag)
}

// NestedHas reports whether the field at the end of path is present.
func (m *Message) NestedHas(path ...uint32) bool {
	parent, tag, err := m.descend("nested.has", path, false)
	return err == nil && parent.Has(tag)
}

// NestedGet reads the field at the end of path. A missing intermediate
// message reads as ErrAbsent.
func (m *Message) NestedGet(path []uint32, out any) error {
	parent, tag, err := m.descend("nested.get", path, false)
	if err != nil {
		return err
	}
	return parent.Get(tag, out)
}

// NestedPut writes the field at the end of path, creating intermediate
// messages as needed.
func (m *Message) NestedPut(path []uint32, v any) error {
	parent, tag, err := m.descend("nested.put", path, true)
	if err != nil {
		return err
	}
	return parent.Put(tag, v)
}

// NestedErase removes the field at the end of path. A missing intermediate
// message is not an error.
func (m *Message) NestedErase(path ...uint32) error {
	parent, tag, err := m.descend("nested.erase", path, false)
	if CodeOf(err) == CodeAbsent {
		return nil
	}
	if err != nil {
		return err
	}
	return parent.Erase(tag)
}
