// Package repair keeps the length prefixes of nested length-delimited
// records consistent after a record inside them changes size.
//
// The work is split in two steps. Enclosing walks a consistent buffer from
// its origin and collects every record whose payload contains the edited
// span. Plan is pure: given that chain, the old span and the new size it
// returns the new span and the prefix patches, innermost first. Applying the
// patches in order never moves a prefix that has not been patched yet since
// every outer prefix precedes every inner one.
package repair

import (
	"github.com/reoring/pbjournal/varint"
	"github.com/reoring/pbjournal/wire"
)

// Range is a half-open byte range.
type Range struct {
	Start, End int
}

// Len is the size of the range.
func (r Range) Len() int { return r.End - r.Start }

// Frame is a length-delimited record enclosing an edit.
type Frame struct {
	// Start is the offset of the record's tag, Prefix the offset of its
	// length prefix.
	Start     int
	Prefix    int
	PrefixLen int
	// Len is the declared payload length.
	Len int
}

// Payload is the payload range described by the frame.
func (f Frame) Payload() Range {
	return Range{Start: f.Prefix + f.PrefixLen, End: f.Prefix + f.PrefixLen + f.Len}
}

// FrameOf converts a Bytes record into a frame.
func FrameOf(r wire.Record) Frame {
	return Frame{Start: r.Start, Prefix: r.Prefix, PrefixLen: r.PrefixLen(), Len: r.Len()}
}

// Patch replaces Old bytes at Offset with Data.
type Patch struct {
	Offset int
	Old    int
	Data   []byte
}

// Plan computes the prefix patches needed after the record at old grows or
// shrinks to newSize bytes. chain is ordered outermost first. The returned
// range is where the record lives once every patch has been applied.
func Plan(chain []Frame, old Range, newSize int) (Range, []Patch) {
	delta := newSize - old.Len()
	if delta == 0 || len(chain) == 0 {
		return Range{Start: old.Start, End: old.Start + newSize}, nil
	}
	patches := make([]Patch, 0, len(chain))
	shift := 0
	for i := len(chain) - 1; i >= 0; i-- {
		f := chain[i]
		n := f.Len + delta
		data := varint.AppendUvarint(nil, uint64(n))
		patches = append(patches, Patch{Offset: f.Prefix, Old: f.PrefixLen, Data: data})
		grow := len(data) - f.PrefixLen
		delta += grow
		shift += grow
	}
	return Range{Start: old.Start + shift, End: old.Start + shift + newSize}, patches
}

// Growth is the number of bytes the patches add to the buffer.
func Growth(patches []Patch) int {
	n := 0
	for _, p := range patches {
		n += len(p.Data) - p.Old
	}
	return n
}

// Enclosing returns the length-delimited records of buf whose payload
// contains span, outermost first. span must be the exact extent of a record
// (or of an element inside a packed record). packed, when non-negative, is
// the start of the packed record holding span; it is reported but its
// payload is not parsed as fields.
func Enclosing(buf []byte, span Range, packed int) ([]Frame, error) {
	var chain []Frame
	lo, hi := 0, len(buf)
	if span.Start < lo || span.End > hi || span.Start > span.End {
		return nil, wire.ErrOffset
	}
	for {
		s := wire.NewStream(buf[:hi])
		if err := s.Advance(lo); err != nil {
			return nil, err
		}
		descended := false
		for !s.Done() {
			r, err := s.Next()
			if err != nil {
				return nil, err
			}
			if r.End <= span.Start && r.Start < span.Start {
				continue
			}
			if r.Start == span.Start && r.End == span.End {
				return chain, nil
			}
			if r.Type != wire.Bytes || r.Value > span.Start || span.End > r.End {
				// span straddles a record boundary or sits inside a scalar
				return nil, wire.ErrOffset
			}
			chain = append(chain, FrameOf(r))
			if r.Start == packed {
				return chain, nil
			}
			lo, hi = r.Value, r.End
			descended = true
			break
		}
		if !descended {
			return nil, wire.ErrOffset
		}
	}
}
