package pbjournal

import (
	"fmt"
	"math"

	"github.com/reoring/pbjournal/descriptor"
	"github.com/reoring/pbjournal/wire"
)

// Handler is invoked once per decoded value. Returning an error stops the
// traversal; the error is passed through unchanged.
type Handler func(f *descriptor.Field, v Value) error

// Value is one decoded field value handed to a Handler. Length-delimited
// payloads are views into the decoded buffer.
type Value struct {
	field *descriptor.Field
	v     any
	raw   []byte
}

// Field is the declaration of the value's field.
func (v Value) Field() *descriptor.Field { return v.field }

// Interface returns the value as its canonical Go type.
func (v Value) Interface() any { return v.v }

// Raw is the encoded payload, without tag or length prefix.
func (v Value) Raw() []byte { return v.raw }

// Get stores the value into out, as Message.Get does.
func (v Value) Get(out any) error { return assign(out, v.v) }

// Int64 returns integer values sign-extended, and bools as 0 or 1.
func (v Value) Int64() int64 {
	switch x := v.v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case uint64:
		return int64(x)
	}
	n, _ := toInt64(v.v)
	return n
}

// Uint64 returns integer values as their unsigned 64-bit pattern.
func (v Value) Uint64() uint64 { return uint64(v.Int64()) }

// Float64 returns float and double values, and integers converted.
func (v Value) Float64() float64 {
	x, ok := toFloat64(v.v)
	if !ok {
		return math.NaN()
	}
	return x
}

// Bool reports whether a numeric value is nonzero.
func (v Value) Bool() bool {
	if b, ok := v.v.(bool); ok {
		return b
	}
	return v.Uint64() != 0
}

// Bytes returns the payload of string, bytes and message values.
func (v Value) Bytes() []byte {
	if v.field.Type.WireType() == wire.Bytes {
		return v.raw
	}
	return nil
}

// String returns string values, enum value names and otherwise a formatted
// rendering.
func (v Value) String() string {
	switch x := v.v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int32:
		if v.field.Type == descriptor.TypeEnum && v.field.Enum != nil {
			if name := v.field.Enum.ValueName(x); name != "" {
				return name
			}
		}
	}
	return fmt.Sprint(v.v)
}

// Message returns a decoder over a submessage value, or nil for other types.
// The submessage is only decoded when the handler asks for it.
func (v Value) Message() *Decoder {
	if v.field.Type != descriptor.TypeMessage {
		return nil
	}
	return NewDecoder(v.field.Message, v.raw)
}

// Decoder walks an encoded buffer once, reporting each field value to a
// Handler. It holds no state between calls.
type Decoder struct {
	desc *descriptor.Message
	buf  []byte
}

// NewDecoder returns a decoder over buf.
func NewDecoder(desc *descriptor.Message, buf []byte) *Decoder {
	return &Decoder{desc: desc, buf: buf}
}

// Descriptor returns the message type.
func (d *Decoder) Descriptor() *descriptor.Message { return d.desc }

// Bytes returns the buffer being decoded.
func (d *Decoder) Bytes() []byte { return d.buf }

// Decode invokes h for every known field value. Unknown fields are skipped.
// A length-delimited record of a scalar field is read as a packed run and
// reported element by element. Decoding stops at the first error.
func (d *Decoder) Decode(h Handler) error {
	s := wire.NewStream(d.buf)
	for !s.Done() {
		off := s.Offset()
		num, t, err := s.ReadTag()
		if err != nil {
			return newError("decode", 0, off, err)
		}
		f := d.desc.Lookup(num)
		if f == nil {
			if err := s.Skip(t); err != nil {
				return newError("decode", num, off, err)
			}
			continue
		}
		want := f.Type.WireType()
		switch {
		case t == want:
			err = d.single(s, f, t, h)
		case t == wire.Bytes && f.Type.Scalar():
			err = d.packed(s, f, want, h)
		default:
			err = fmt.Errorf("%w: field %d declared %s, encoded as %s", ErrDescriptor, num, f.Type, t)
		}
		if err != nil {
			if _, ok := err.(*Error); ok || CodeOf(err) == CodeInvalid {
				return err
			}
			return newError("decode", num, off, err)
		}
	}
	return nil
}

// single reads one value of wire type t.
func (d *Decoder) single(s *wire.Stream, f *descriptor.Field, t wire.Type, h Handler) error {
	start := s.Offset()
	wv, err := s.Read(t)
	if err != nil {
		return err
	}
	raw := wv.Bytes
	if t != wire.Bytes {
		raw = s.Buffer()[start:s.Offset()]
	}
	v, err := decodeValue(f, raw)
	if err != nil {
		return err
	}
	return h(f, Value{field: f, v: v, raw: raw})
}

// packed reads a length-delimited run of values of wire type t.
func (d *Decoder) packed(s *wire.Stream, f *descriptor.Field, t wire.Type, h Handler) error {
	sub, err := s.Sub()
	if err != nil {
		return err
	}
	for !sub.Done() {
		start := sub.Offset()
		if err := sub.Skip(t); err != nil {
			return err
		}
		raw := sub.Buffer()[start:sub.Offset()]
		v, err := decodeValue(f, raw)
		if err != nil {
			return err
		}
		if err := h(f, Value{field: f, v: v, raw: raw}); err != nil {
			return err
		}
	}
	return nil
}
