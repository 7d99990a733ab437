package pbjournal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/reoring/pbjournal/descriptor"
	"github.com/reoring/pbjournal/varint"
	"github.com/reoring/pbjournal/wire"
)

// Values cross the API as plain Go values. A field decodes to exactly one
// canonical type:
//
//	bool                          bool
//	int32, sint32, sfixed32, enum int32
//	int64, sint64, sfixed64       int64
//	uint32, fixed32               uint32
//	uint64, fixed64               uint64
//	float                         float32
//	double                        float64
//	string                        string
//	bytes, message                []byte (a view into the buffer)
//
// Encoding is more lenient: any Go integer that fits, strings for bytes and
// enum value names, and *Encoder, *Message or []byte for message fields.

func typeError(f *descriptor.Field, v any) error {
	return fmt.Errorf("%w: cannot use %T as %s field %d", ErrDescriptor, v, f.Type, f.Tag)
}

// appendValue appends the payload of one value of f to dst: the varint, the
// 4 or 8 little-endian bytes, or the raw content of a length-delimited value
// without its prefix.
func appendValue(dst []byte, f *descriptor.Field, v any) ([]byte, error) {
	switch f.Type {
	case descriptor.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, typeError(f, v)
		}
		raw := uint64(0)
		if b {
			raw = 1
		}
		return varint.Append(varint.Bool, dst, raw), nil
	case descriptor.TypeEnum:
		if s, ok := v.(string); ok && f.Enum != nil {
			n, ok := f.Enum.Value(s)
			if !ok {
				return nil, fmt.Errorf("%w: enum %s has no value %q", ErrDescriptor, f.Enum.Name, s)
			}
			v = n
		}
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, typeError(f, v)
		}
		return varint.Append(varint.Enum, dst, uint64(n)), nil
	case descriptor.TypeInt32, descriptor.TypeSint32, descriptor.TypeSfixed32:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, typeError(f, v)
		}
		if f.Type == descriptor.TypeSfixed32 {
			return binary.LittleEndian.AppendUint32(dst, uint32(int32(n))), nil
		}
		vt, _ := f.Type.VarintType()
		return varint.Append(vt, dst, uint64(n)), nil
	case descriptor.TypeInt64, descriptor.TypeSint64, descriptor.TypeSfixed64:
		n, ok := toInt64(v)
		if !ok {
			return nil, typeError(f, v)
		}
		if f.Type == descriptor.TypeSfixed64 {
			return binary.LittleEndian.AppendUint64(dst, uint64(n)), nil
		}
		vt, _ := f.Type.VarintType()
		return varint.Append(vt, dst, uint64(n)), nil
	case descriptor.TypeUint32, descriptor.TypeFixed32:
		n, ok := toUint64(v)
		if !ok || n > math.MaxUint32 {
			return nil, typeError(f, v)
		}
		if f.Type == descriptor.TypeFixed32 {
			return binary.LittleEndian.AppendUint32(dst, uint32(n)), nil
		}
		return varint.Append(varint.Uint32, dst, n), nil
	case descriptor.TypeUint64, descriptor.TypeFixed64:
		n, ok := toUint64(v)
		if !ok {
			return nil, typeError(f, v)
		}
		if f.Type == descriptor.TypeFixed64 {
			return binary.LittleEndian.AppendUint64(dst, n), nil
		}
		return varint.Append(varint.Uint64, dst, n), nil
	case descriptor.TypeFloat:
		x, ok := toFloat64(v)
		if !ok {
			return nil, typeError(f, v)
		}
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(x))), nil
	case descriptor.TypeDouble:
		x, ok := toFloat64(v)
		if !ok {
			return nil, typeError(f, v)
		}
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(x)), nil
	case descriptor.TypeString, descriptor.TypeBytes:
		switch x := v.(type) {
		case string:
			return append(dst, x...), nil
		case []byte:
			return append(dst, x...), nil
		}
		return nil, typeError(f, v)
	case descriptor.TypeMessage:
		switch x := v.(type) {
		case nil:
			return dst, nil
		case []byte:
			return append(dst, x...), nil
		case *Encoder:
			return append(dst, x.Bytes()...), nil
		case *Message:
			b, err := x.Bytes()
			if err != nil {
				return nil, err
			}
			return append(dst, b...), nil
		}
		return nil, typeError(f, v)
	}
	return nil, typeError(f, v)
}

// decodeValue decodes the payload of one value of f. Length-delimited
// payloads are returned as views.
func decodeValue(f *descriptor.Field, b []byte) (any, error) {
	if vt, ok := f.Type.VarintType(); ok {
		raw, n := varint.Unpack(vt, b)
		if n == 0 {
			if len(b) < varint.MaxLen64 {
				return nil, ErrUnderrun
			}
			return nil, ErrVarint
		}
		switch vt {
		case varint.Bool:
			return raw != 0, nil
		case varint.Int32, varint.Sint32, varint.Enum:
			return int32(raw), nil
		case varint.Uint32:
			return uint32(raw), nil
		case varint.Int64, varint.Sint64:
			return int64(raw), nil
		default:
			return raw, nil
		}
	}
	switch f.Type.WireType() {
	case wire.Fixed32:
		if len(b) < 4 {
			return nil, ErrUnderrun
		}
		u := binary.LittleEndian.Uint32(b)
		switch f.Type {
		case descriptor.TypeFloat:
			return math.Float32frombits(u), nil
		case descriptor.TypeSfixed32:
			return int32(u), nil
		default:
			return u, nil
		}
	case wire.Fixed64:
		if len(b) < 8 {
			return nil, ErrUnderrun
		}
		u := binary.LittleEndian.Uint64(b)
		switch f.Type {
		case descriptor.TypeDouble:
			return math.Float64frombits(u), nil
		case descriptor.TypeSfixed64:
			return int64(u), nil
		default:
			return u, nil
		}
	}
	if f.Type == descriptor.TypeString {
		return string(b), nil
	}
	return b, nil
}

// canonical converts v to the canonical Go type of f by a round trip
// through the wire encoding.
func canonical(f *descriptor.Field, v any) (any, error) {
	b, err := appendValue(nil, f, v)
	if err != nil {
		return nil, err
	}
	return decodeValue(f, b)
}

func equalValues(a, b any) bool {
	if x, ok := a.([]byte); ok {
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}
	return a == b
}

// assign stores v into the pointer out, converting between numeric types
// when the value fits.
func assign(out, v any) error {
	bad := func() error {
		return fmt.Errorf("%w: cannot store %T into %T", ErrDescriptor, v, out)
	}
	switch p := out.(type) {
	case *any:
		*p = v
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return bad()
		}
		*p = b
	case *int32:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return bad()
		}
		*p = int32(n)
	case *int64:
		n, ok := toInt64(v)
		if !ok {
			return bad()
		}
		*p = n
	case *int:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt || n > math.MaxInt {
			return bad()
		}
		*p = int(n)
	case *uint32:
		n, ok := toUint64(v)
		if !ok || n > math.MaxUint32 {
			return bad()
		}
		*p = uint32(n)
	case *uint64:
		n, ok := toUint64(v)
		if !ok {
			return bad()
		}
		*p = n
	case *float32:
		x, ok := toFloat64(v)
		if !ok {
			return bad()
		}
		*p = float32(x)
	case *float64:
		x, ok := toFloat64(v)
		if !ok {
			return bad()
		}
		*p = x
	case *string:
		switch x := v.(type) {
		case string:
			*p = x
		case []byte:
			*p = string(x)
		default:
			return bad()
		}
	case *[]byte:
		switch x := v.(type) {
		case []byte:
			*p = x
		case string:
			*p = []byte(x)
		default:
			return bad()
		}
	default:
		return bad()
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	}
	n, ok := toInt64(v)
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	if n, ok := toUint64(v); ok {
		return float64(n), true
	}
	return 0, false
}
