package wire

import (
	"encoding/binary"

	"github.com/reoring/pbjournal/varint"
)

// Value holds one decoded payload. Num carries varint and fixed-width
// payloads; Bytes aliases the stream's buffer for length-delimited ones.
type Value struct {
	Type  Type
	Num   uint64
	Bytes []byte
}

// Record describes the position of one tag/value pair inside a buffer.
// Offsets are relative to the start of the stream's buffer.
type Record struct {
	Num  uint32
	Type Type
	// Start is the offset of the tag, Prefix the offset just past it, Value
	// the offset of the payload (after the length prefix for Bytes records)
	// and End the offset just past the payload. Tags are not always minimal
	// varints, so Prefix-Start may exceed SizeTag(Num).
	Start  int
	Prefix int
	Value  int
	End    int
}

// PrefixLen is the size of the length prefix of a Bytes record, 0 otherwise.
func (r Record) PrefixLen() int {
	if r.Type != Bytes {
		return 0
	}
	return r.Value - r.Prefix
}

// Len is the payload size.
func (r Record) Len() int { return r.End - r.Value }

// Stream is a forward-only cursor over a read-only byte range.
type Stream struct {
	buf []byte
	off int
}

// NewStream returns a stream positioned at the start of b.
func NewStream(b []byte) *Stream { return &Stream{buf: b} }

// Offset is the number of bytes consumed so far.
func (s *Stream) Offset() int { return s.off }

// Remaining is the number of unread bytes.
func (s *Stream) Remaining() int { return len(s.buf) - s.off }

// Done reports whether every byte has been consumed.
func (s *Stream) Done() bool { return s.off >= len(s.buf) }

// Buffer returns the underlying byte range.
func (s *Stream) Buffer() []byte { return s.buf }

// Advance skips n bytes.
func (s *Stream) Advance(n int) error {
	if n < 0 || n > s.Remaining() {
		return ErrOffset
	}
	s.off += n
	return nil
}

// ReadVarint reads one unsigned varint.
func (s *Stream) ReadVarint() (uint64, error) {
	v, n := varint.Uvarint(s.buf[s.off:])
	if n == 0 {
		if varint.Scan(s.buf[s.off:]) == 0 && s.Remaining() < varint.MaxLen64 {
			return 0, ErrUnderrun
		}
		return 0, ErrVarint
	}
	s.off += n
	return v, nil
}

// ReadTag reads a tag and splits it.
func (s *Stream) ReadTag() (uint32, Type, error) {
	v, err := s.ReadVarint()
	if err != nil {
		return 0, 0, err
	}
	num, t := SplitTag(v)
	if v>>3 > MaxFieldNumber || num == 0 {
		return 0, 0, ErrVarint
	}
	return num, t, nil
}

// ReadFixed32 reads four little-endian bytes.
func (s *Stream) ReadFixed32() (uint32, error) {
	if s.Remaining() < 4 {
		return 0, ErrUnderrun
	}
	v := binary.LittleEndian.Uint32(s.buf[s.off:])
	s.off += 4
	return v, nil
}

// ReadFixed64 reads eight little-endian bytes.
func (s *Stream) ReadFixed64() (uint64, error) {
	if s.Remaining() < 8 {
		return 0, ErrUnderrun
	}
	v := binary.LittleEndian.Uint64(s.buf[s.off:])
	s.off += 8
	return v, nil
}

// ReadBytes reads a length prefix and returns a view of the payload. The
// view aliases the stream's buffer.
func (s *Stream) ReadBytes() ([]byte, error) {
	l, err := s.ReadVarint()
	if err != nil {
		return nil, err
	}
	if l > uint64(s.Remaining()) {
		return nil, ErrOverflow
	}
	b := s.buf[s.off : s.off+int(l) : s.off+int(l)]
	s.off += int(l)
	return b, nil
}

// Sub reads a length-delimited payload and returns a stream over it.
func (s *Stream) Sub() (*Stream, error) {
	b, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	return NewStream(b), nil
}

// Read reads one payload of wire type t.
func (s *Stream) Read(t Type) (Value, error) {
	v := Value{Type: t}
	var err error
	switch t {
	case Varint:
		v.Num, err = s.ReadVarint()
	case Fixed32:
		var n uint32
		n, err = s.ReadFixed32()
		v.Num = uint64(n)
	case Fixed64:
		v.Num, err = s.ReadFixed64()
	case Bytes:
		v.Bytes, err = s.ReadBytes()
	default:
		err = ErrUnsupported
	}
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

// Skip discards one payload of wire type t.
func (s *Stream) Skip(t Type) error {
	switch t {
	case Varint:
		n := varint.Scan(s.buf[s.off:])
		if n == 0 {
			if s.Remaining() < varint.MaxLen64 {
				return ErrUnderrun
			}
			return ErrVarint
		}
		s.off += n
		return nil
	case Fixed32, Fixed64:
		if err := s.Advance(FixedSize(t)); err != nil {
			return ErrUnderrun
		}
		return nil
	case Bytes:
		_, err := s.ReadBytes()
		return err
	default:
		return ErrUnsupported
	}
}

// Next reads the next tag and skips its payload, reporting where both live.
func (s *Stream) Next() (Record, error) {
	r := Record{Start: s.off}
	num, t, err := s.ReadTag()
	if err != nil {
		return Record{}, err
	}
	r.Num, r.Type, r.Prefix = num, t, s.off
	if t == Bytes {
		l, err := s.ReadVarint()
		if err != nil {
			return Record{}, err
		}
		if l > uint64(s.Remaining()) {
			return Record{}, ErrOverflow
		}
		r.Value = s.off
		s.off += int(l)
		r.End = s.off
		return r, nil
	}
	r.Value = s.off
	if err := s.Skip(t); err != nil {
		return Record{}, err
	}
	r.End = s.off
	return r, nil
}
