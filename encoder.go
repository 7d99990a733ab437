package pbjournal

import (
	"fmt"

	"github.com/reoring/pbjournal/descriptor"
	"github.com/reoring/pbjournal/varint"
	"github.com/reoring/pbjournal/wire"
)

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithEncoderAllocator sets the allocator the output buffer grows through.
func WithEncoderAllocator(a Allocator) EncoderOption {
	return func(e *Encoder) {
		if a != nil {
			e.alloc = a
		}
	}
}

// Encoder appends fields to a fresh buffer. It never looks at what it wrote
// before: field order is the call order, required fields are not checked and
// absent fields get no defaults.
type Encoder struct {
	desc    *descriptor.Message
	buf     []byte
	scratch []byte
	alloc   Allocator
}

// NewEncoder returns an empty encoder for desc.
func NewEncoder(desc *descriptor.Message, opts ...EncoderOption) *Encoder {
	e := &Encoder{desc: desc, alloc: HeapAllocator}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Descriptor returns the message type.
func (e *Encoder) Descriptor() *descriptor.Message { return e.desc }

// Bytes returns the encoded message.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len is the size of the encoded message.
func (e *Encoder) Len() int { return len(e.buf) }

// Reset empties the encoder, keeping its storage.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// Release returns the storage to the allocator.
func (e *Encoder) Release() {
	if e.buf != nil {
		e.alloc.Free(e.buf)
	}
	e.buf = nil
}

func (e *Encoder) grow(n int) error {
	if len(e.buf)+n <= cap(e.buf) {
		return nil
	}
	var (
		b   []byte
		err error
	)
	if e.buf == nil {
		b, err = e.alloc.Allocate(n)
	} else {
		b, err = e.alloc.Resize(e.buf, len(e.buf)+n)
	}
	if err != nil {
		return err
	}
	e.buf = b
	return nil
}

// Encode appends the values of tag. Several values need a repeated field;
// a packed field then gets a single length-delimited record holding all of
// them. Every other value is written as its own record. Message values are
// *Encoder, *Message or []byte payloads.
func (e *Encoder) Encode(tag uint32, values ...any) error {
	f := e.desc.Lookup(tag)
	if f == nil {
		return newError("encode", tag, -1, ErrDescriptor)
	}
	if len(values) > 1 && !f.Repeated() {
		return newError("encode", tag, -1, fmt.Errorf("%w: %d values for non-repeated field", ErrDescriptor, len(values)))
	}
	if len(values) > 1 && f.WireType() == wire.Bytes && f.Type.Scalar() {
		return e.encodePacked(f, values)
	}
	for _, v := range values {
		if err := e.encodeOne(f, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeOne(f *descriptor.Field, v any) error {
	var err error
	e.scratch, err = appendValue(e.scratch[:0], f, v)
	if err != nil {
		return newError("encode", f.Tag, -1, err)
	}
	t := f.Type.WireType()
	return e.emit(f.Tag, t, e.scratch)
}

func (e *Encoder) encodePacked(f *descriptor.Field, values []any) error {
	e.scratch = e.scratch[:0]
	for _, v := range values {
		var err error
		if e.scratch, err = appendValue(e.scratch, f, v); err != nil {
			return newError("encode", f.Tag, -1, err)
		}
	}
	return e.emit(f.Tag, wire.Bytes, e.scratch)
}

// emit appends one record. payload excludes the length prefix.
func (e *Encoder) emit(num uint32, t wire.Type, payload []byte) error {
	n := wire.SizeTag(num) + len(payload)
	if t == wire.Bytes {
		n += varint.SizeUvarint(uint64(len(payload)))
	}
	if err := e.grow(n); err != nil {
		return newError("encode", num, len(e.buf), err)
	}
	e.buf = wire.AppendTag(e.buf, num, t)
	if t == wire.Bytes {
		e.buf = varint.AppendUvarint(e.buf, uint64(len(payload)))
	}
	e.buf = append(e.buf, payload...)
	return nil
}
