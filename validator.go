package pbjournal

import (
	"fmt"

	"github.com/reoring/pbjournal/descriptor"
	"github.com/reoring/pbjournal/wire"
)

// Validate checks that every required field of desc, extensions included,
// occurs in buf, descending into the submessages that are present. It
// reports the first problem: a malformed record or ErrAbsent naming the
// missing field. Unknown fields are skipped.
func Validate(desc *descriptor.Message, buf []byte) error {
	return validate(desc, buf, 0)
}

func validate(desc *descriptor.Message, buf []byte, base int) error {
	seen := make(map[uint32]struct{})
	s := wire.NewStream(buf)
	for !s.Done() {
		r, err := s.Next()
		if err != nil {
			return newError("validate", 0, base+s.Offset(), err)
		}
		seen[r.Num] = struct{}{}
		f := desc.Lookup(r.Num)
		if f == nil || f.Type != descriptor.TypeMessage {
			continue
		}
		if r.Type != wire.Bytes {
			return newError("validate", r.Num, base+r.Start, ErrDescriptor)
		}
		if err := validate(f.Message, buf[r.Value:r.End], base+r.Value); err != nil {
			return err
		}
	}
	for _, f := range desc.Required() {
		if _, ok := seen[f.Tag]; !ok {
			return &Error{Code: CodeAbsent, Op: "validate", Tag: f.Tag, Offset: -1,
				Err: fmt.Errorf("%w: required field %s.%s missing", ErrAbsent, desc.Name, f.Name)}
		}
	}
	return nil
}
