package pbjournal

import "github.com/reoring/pbjournal/descriptor"

// Field is a handle on a single scalar, string or bytes value. It is
// obtained from Message.Field or Cursor.Field and may be fresh, in which
// case the first Put inserts the value.
type Field struct {
	Part
	desc   *descriptor.Field
	parent Message
}

// Descriptor returns the field declaration.
func (f *Field) Descriptor() *descriptor.Field { return f.desc }

// Has reports whether the handle refers to a stored value.
func (f *Field) Has() bool { return f.Align() == nil && !f.fresh }

// Get stores the value into out. A fresh field yields its default, or
// ErrAbsent.
func (f *Field) Get(out any) error {
	if err := f.Align(); err != nil {
		return err
	}
	if f.fresh {
		return absent("field.get", f.desc, out)
	}
	v, err := decodeValue(f.desc, f.j.buf[f.value:f.end])
	if err == nil {
		err = assign(out, v)
	}
	if err != nil {
		return newError("field.get", f.num, f.start, err)
	}
	return nil
}

// Put overwrites the value, or inserts it when the field is fresh. Writing a
// oneof member erases the other members of its group.
func (f *Field) Put(v any) error {
	if err := f.Align(); err != nil {
		return err
	}
	payload, err := appendValue(nil, f.desc, v)
	if err != nil {
		return newError("field.put", f.num, f.start, err)
	}
	if f.desc.Label == descriptor.LabelOneof {
		if err := f.parent.eraseRivals(f.desc); err != nil {
			f.invalidate()
			return newError("field.put", f.num, f.start, err)
		}
	}
	return f.Write(payload)
}

// Clear removes the value and invalidates the handle.
func (f *Field) Clear() error { return f.Part.Clear() }

// Match reports whether the stored value equals v. A fresh field matches
// nothing.
func (f *Field) Match(v any) (bool, error) {
	if err := f.Align(); err != nil {
		return false, err
	}
	if f.fresh {
		return false, nil
	}
	eq, err := matchValue(f.desc, f.j.buf[f.value:f.end], v)
	if err != nil {
		return false, newError("field.match", f.num, f.start, err)
	}
	return eq, nil
}

// Raw returns the stored bytes of a fixed-width value, or nil. The slice may
// be written through and must not be used past the next mutation.
func (f *Field) Raw() []byte {
	if f.Align() != nil || f.fresh || !fixedWidth(f.desc) {
		return nil
	}
	return f.j.buf[f.value:f.end:f.end]
}
