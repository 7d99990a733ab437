package pbjournal

import (
	"bytes"

	"github.com/reoring/pbjournal/internal/repair"
	"github.com/reoring/pbjournal/varint"
	"github.com/reoring/pbjournal/wire"
)

// Diff is the offset bookkeeping of a part.
type Diff struct {
	// Origin is the distance from the part's start back to the start of the
	// packed record holding it, or 0 when the part is a record of its own.
	Origin int
	// Tag and Length are nonzero while the part is fresh: they give the size
	// of the tag still to be written and mark a pending length prefix.
	Tag    int
	Length int
}

// Part is a handle on one encoded record (tag, optional length prefix and
// value) inside a Journal, or on a single element of a packed record.
//
// A part caches offsets valid at the journal version it was last aligned
// with. Every operation aligns first; a part whose record was removed or
// rewritten underneath it becomes invalid.
type Part struct {
	j       *Journal
	version uint64
	// start is the offset of the tag (or of the element), prefix the offset
	// just past the tag, value the offset of the payload and end the offset
	// just past it.
	start, prefix, value, end int
	num               uint32
	typ               wire.Type
	diff              Diff
	root              bool
	invalid           bool

	// fresh parts have not been written yet; they remember where to insert
	fresh     bool
	element   bool
	repeated  bool
	container *Part
}

func rootPart(j *Journal) Part {
	return Part{j: j, version: j.version, end: len(j.buf), root: true}
}

func recordPart(j *Journal, r wire.Record) Part {
	return Part{j: j, version: j.version, start: r.Start, prefix: r.Prefix, value: r.Value, end: r.End, num: r.Num, typ: r.Type}
}

func elementPart(j *Journal, packed wire.Record, start, end int, t wire.Type) Part {
	return Part{
		j: j, version: j.version,
		start: start, prefix: start, value: start, end: end,
		num: packed.Num, typ: t,
		diff:    Diff{Origin: start - packed.Start},
		element: true,
	}
}

func freshPart(c *Part, num uint32, t wire.Type, pos int, element, repeated bool) Part {
	p := Part{
		j: c.j, version: c.j.version,
		start: pos, prefix: pos, value: pos, end: pos,
		num: num, typ: t,
		fresh: true, element: element, repeated: repeated,
	}
	cc := *c
	p.container = &cc
	if !element {
		p.diff.Tag = wire.SizeTag(num)
		if t == wire.Bytes {
			p.diff.Length = 1
		}
	}
	return p
}

// Journal returns the journal the part lives in.
func (p *Part) Journal() *Journal { return p.j }

// Valid reports whether the part has not been cleared or invalidated.
func (p *Part) Valid() bool { return p != nil && p.j != nil && !p.invalid }

// Aligned reports whether the cached offsets match the journal version.
func (p *Part) Aligned() bool { return p.Valid() && p.version == p.j.version }

// Fresh reports whether the part still awaits its first write.
func (p *Part) Fresh() bool { return p.fresh }

// Tag is the field number of the record.
func (p *Part) Tag() uint32 { return p.num }

// WireType is the wire type of the record, or of the element for parts
// inside a packed record.
func (p *Part) WireType() wire.Type { return p.typ }

// Range returns the byte range of the whole record.
func (p *Part) Range() (start, end int) { return p.start, p.end }

// Diff returns the offset bookkeeping.
func (p *Part) Diff() Diff { return p.diff }

// Bytes returns the encoded record. The slice aliases the journal and is
// invalidated by the next mutation.
func (p *Part) Bytes() ([]byte, error) {
	if err := p.Align(); err != nil {
		return nil, err
	}
	return p.j.buf[p.start:p.end:p.end], nil
}

// Payload returns the value bytes, without tag or length prefix.
func (p *Part) Payload() ([]byte, error) {
	if err := p.Align(); err != nil {
		return nil, err
	}
	return p.j.buf[p.value:p.end:p.end], nil
}

func (p *Part) invalidate() { p.invalid = true }

func (p *Part) packedStart() int {
	if p.element {
		return p.start - p.diff.Origin
	}
	return -1
}

// Align re-resolves the cached offsets after the journal changed. It fails
// with ErrInvalid when the record no longer exists; the part is then
// unusable.
func (p *Part) Align() error {
	if !p.Valid() {
		return newError("align", p.num, -1, ErrInvalid)
	}
	if p.version == p.j.version {
		return nil
	}
	var err error
	switch {
	case p.root:
		p.end = len(p.j.buf)
	case p.fresh:
		err = p.relocate()
	case p.element:
		err = p.alignElement()
	default:
		err = p.alignRecord()
	}
	if err != nil {
		p.invalidate()
		return newError("align", p.num, p.start, ErrInvalid)
	}
	p.version = p.j.version
	return nil
}

func (p *Part) alignRecord() error {
	start, err := p.j.Remap(p.start, p.version)
	if err != nil {
		return err
	}
	r, err := p.j.recordAt(start)
	if err != nil {
		return err
	}
	if r.Num != p.num || r.Type != p.typ {
		return ErrInvalid
	}
	p.start, p.prefix, p.value, p.end = r.Start, r.Prefix, r.Value, r.End
	return nil
}

func (p *Part) alignElement() error {
	start, err := p.j.Remap(p.start, p.version)
	if err != nil {
		return err
	}
	ps, err := p.j.Remap(p.start-p.diff.Origin, p.version)
	if err != nil {
		return err
	}
	r, err := p.j.recordAt(ps)
	if err != nil {
		return err
	}
	if r.Num != p.num || r.Type != wire.Bytes || start < r.Value || start >= r.End {
		return ErrInvalid
	}
	n := elementSize(p.j.buf[start:r.End], p.typ)
	if n == 0 {
		return ErrInvalid
	}
	p.start, p.prefix, p.value, p.end = start, start, start, start+n
	p.diff.Origin = start - r.Start
	return nil
}

// relocate recomputes the insertion point of a fresh part. A fresh part of
// a non-repeated field turns into a handle on the record when another handle
// wrote the field in the meantime.
func (p *Part) relocate() error {
	c := p.container
	if err := c.Align(); err != nil {
		return err
	}
	if p.element {
		p.start, p.prefix, p.value, p.end = c.end, c.end, c.end, c.end
		return nil
	}
	if !p.repeated {
		r, ok, err := c.last(p.num)
		if err != nil {
			return err
		}
		if ok && r.Type == p.typ {
			*p = recordPart(p.j, r)
			return nil
		}
	}
	pos, err := c.insertionPoint(p.num)
	if err != nil {
		return err
	}
	p.start, p.prefix, p.value, p.end = pos, pos, pos, pos
	return nil
}

// recordAt parses the record starting at off.
func (j *Journal) recordAt(off int) (wire.Record, error) {
	s := wire.NewStream(j.buf)
	if err := s.Advance(off); err != nil {
		return wire.Record{}, err
	}
	return s.Next()
}

// elementSize is the size of the packed element at the start of b.
func elementSize(b []byte, t wire.Type) int {
	switch t {
	case wire.Varint:
		return varint.Scan(b)
	case wire.Fixed32, wire.Fixed64:
		if n := wire.FixedSize(t); len(b) >= n {
			return n
		}
	}
	return 0
}

// payload is the range holding the fields of a container part.
func (p *Part) payload() (lo, hi int) {
	if p.root {
		return 0, len(p.j.buf)
	}
	return p.value, p.end
}

// each walks the records of a container part in order, with absolute
// offsets. fn returns false to stop.
func (p *Part) each(fn func(r wire.Record) bool) error {
	lo, hi := p.payload()
	s := wire.NewStream(p.j.buf[:hi])
	if err := s.Advance(lo); err != nil {
		return err
	}
	for !s.Done() {
		r, err := s.Next()
		if err != nil {
			return err
		}
		if !fn(r) {
			return nil
		}
	}
	return nil
}

// last finds the last record with field number num.
func (p *Part) last(num uint32) (wire.Record, bool, error) {
	var found wire.Record
	ok := false
	err := p.each(func(r wire.Record) bool {
		if r.Num == num {
			found, ok = r, true
		}
		return true
	})
	return found, ok, err
}

// insertionPoint returns the offset just after the last record whose field
// number is not greater than num, or the start of the payload.
func (p *Part) insertionPoint(num uint32) (int, error) {
	pos, _ := p.payload()
	err := p.each(func(r wire.Record) bool {
		if r.Num <= num {
			pos = r.End
		}
		return true
	})
	return pos, err
}

// chain returns the frames enclosing the part, outermost first. For
// containers, the part's own frame is appended when inner is set.
func (p *Part) chain(inner bool) ([]repair.Frame, error) {
	if p.root {
		return nil, nil
	}
	chain, err := repair.Enclosing(p.j.buf, repair.Range{Start: p.start, End: p.end}, p.packedStart())
	if err != nil {
		return nil, err
	}
	if inner {
		r, err := p.j.recordAt(p.start)
		if err != nil {
			return nil, err
		}
		chain = append(chain, repair.FrameOf(r))
	}
	return chain, nil
}

// splice replaces old with enc and repairs every enclosing length prefix.
// Storage for the whole edit is reserved up front so that a failure leaves
// the journal untouched.
func (p *Part) splice(kind EditKind, chain []repair.Frame, old repair.Range, enc []byte) error {
	_, patches := repair.Plan(chain, old, len(enc))
	if err := p.j.Reserve(len(enc) - old.Len() + repair.Growth(patches)); err != nil {
		return err
	}
	if err := p.j.splice(kind, old.Start, old.End, enc); err != nil {
		return err
	}
	for _, pt := range patches {
		if err := p.j.splice(EditReplace, pt.Offset, pt.Offset+pt.Old, pt.Data); err != nil {
			return err
		}
	}
	return nil
}

// Write replaces the value of the part with data: the payload of a length
// delimited record, or the encoded scalar. A fresh part is inserted, tag
// and length prefix included. Enclosing length prefixes are repaired.
func (p *Part) Write(data []byte) error {
	if err := p.Align(); err != nil {
		return err
	}
	// data may alias the journal
	data = bytes.Clone(data)
	var err error
	switch {
	case p.fresh:
		err = p.insert(data)
	case p.root:
		err = p.splice(EditReplace, nil, repair.Range{Start: 0, End: len(p.j.buf)}, data)
	default:
		err = p.overwrite(data)
	}
	if err != nil {
		p.invalidate()
		return newError("write", p.num, p.start, err)
	}
	return p.Align()
}

func (p *Part) overwrite(data []byte) error {
	chain, err := p.chain(false)
	if err != nil {
		return err
	}
	from, enc := p.value, data
	if p.typ == wire.Bytes && !p.element {
		// keep the tag bytes as found; they need not be minimal
		from = p.prefix
		enc = make([]byte, 0, varint.MaxLen64+len(data))
		enc = varint.AppendUvarint(enc, uint64(len(data)))
		enc = append(enc, data...)
	}
	return p.splice(EditReplace, chain, repair.Range{Start: from, End: p.end}, enc)
}

func (p *Part) insert(data []byte) error {
	c := p.container
	if err := c.Align(); err != nil {
		return err
	}
	chain, err := c.chain(true)
	if err != nil {
		return err
	}
	var enc []byte
	if p.element {
		enc = data
	} else {
		enc = make([]byte, 0, varint.MaxLen64*2+len(data))
		enc = wire.AppendTag(enc, p.num, p.typ)
		if p.typ == wire.Bytes {
			enc = varint.AppendUvarint(enc, uint64(len(data)))
		}
		enc = append(enc, data...)
	}
	pos := p.start
	newRange, _ := repair.Plan(chain, repair.Range{Start: pos, End: pos}, len(enc))
	if err := p.splice(EditInsert, chain, repair.Range{Start: pos, End: pos}, enc); err != nil {
		return err
	}
	if err := c.Align(); err != nil {
		return err
	}
	if p.element {
		r, err := p.j.recordAt(c.start)
		if err != nil {
			return err
		}
		*p = elementPart(p.j, r, newRange.Start, newRange.End, p.typ)
		return nil
	}
	r, err := p.j.recordAt(newRange.Start)
	if err != nil {
		return err
	}
	*p = recordPart(p.j, r)
	return nil
}

// Clear removes the whole record from the journal and invalidates the part.
// Clearing the root part empties the journal and leaves the root usable.
func (p *Part) Clear() error {
	if err := p.Align(); err != nil {
		return err
	}
	if p.fresh {
		p.invalidate()
		return nil
	}
	if p.root {
		if err := p.j.Clear(0, len(p.j.buf)); err != nil {
			return err
		}
		return p.Align()
	}
	chain, err := p.chain(false)
	if err == nil {
		err = p.splice(EditErase, chain, repair.Range{Start: p.start, End: p.end}, nil)
	}
	p.invalidate()
	if err != nil {
		return newError("clear", p.num, p.start, err)
	}
	return nil
}
