// Package varint implements the base-128 variable-length integer encoding
// used by the protocol buffers wire format.
//
// Values travel through this package as raw 64-bit two's-complement bit
// patterns. The Type selects how a pattern is mapped onto the wire: 32-bit
// types are truncated, negative Int32/Enum values are sign-extended to the
// full 10-byte form, and Sint32/Sint64 are zig-zag mapped first.
package varint

// Type selects the integer flavour being packed or unpacked.
type Type uint8

const (
	Bool Type = iota
	Int32
	Int64
	Uint32
	Uint64
	Sint32
	Sint64
	Enum
)

// Maximum encoded lengths.
const (
	MaxLen32 = 5
	MaxLen64 = 10
)

var typeNames = [...]string{
	Bool:   "bool",
	Int32:  "int32",
	Int64:  "int64",
	Uint32: "uint32",
	Uint64: "uint64",
	Sint32: "sint32",
	Sint64: "sint64",
	Enum:   "enum",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Zigzag32 maps a signed 32-bit integer onto an unsigned one so that values
// of small magnitude stay short on the wire.
func Zigzag32(n int32) uint32 { return uint32(n<<1) ^ uint32(n>>31) }

// Zigzag64 is the 64-bit variant of Zigzag32.
func Zigzag64(n int64) uint64 { return uint64(n<<1) ^ uint64(n>>63) }

// Unzigzag32 inverts Zigzag32.
func Unzigzag32(n uint32) int32 { return int32(n>>1) ^ -int32(n&1) }

// Unzigzag64 inverts Zigzag64.
func Unzigzag64(n uint64) int64 { return int64(n>>1) ^ -int64(n&1) }

// encode maps a value of type t onto the unsigned quantity written to the wire.
func encode(t Type, v uint64) uint64 {
	switch t {
	case Bool:
		if v != 0 {
			return 1
		}
		return 0
	case Int32, Enum:
		return uint64(int64(int32(v)))
	case Uint32:
		return uint64(uint32(v))
	case Sint32:
		return uint64(Zigzag32(int32(v)))
	case Sint64:
		return Zigzag64(int64(v))
	default:
		return v
	}
}

// decode inverts encode.
func decode(t Type, raw uint64) uint64 {
	switch t {
	case Bool:
		if raw != 0 {
			return 1
		}
		return 0
	case Int32, Enum:
		return uint64(int64(int32(raw)))
	case Uint32:
		return uint64(uint32(raw))
	case Sint32:
		return uint64(int64(Unzigzag32(uint32(raw))))
	case Sint64:
		return uint64(Unzigzag64(raw))
	default:
		return raw
	}
}

// SizeUvarint returns the number of bytes needed to encode v.
func SizeUvarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// Size returns the packed size of v interpreted as type t.
func Size(t Type, v uint64) int {
	return SizeUvarint(encode(t, v))
}

// PutUvarint writes v into dst and returns the number of bytes written, or 0
// when dst is too short.
func PutUvarint(dst []byte, v uint64) int {
	n := SizeUvarint(v)
	if len(dst) < n {
		return 0
	}
	i := 0
	for v >= 0x80 {
		dst[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	dst[i] = byte(v)
	return i + 1
}

// Pack writes v as type t into dst and returns the number of bytes written,
// or 0 when dst cannot hold the encoding.
func Pack(t Type, dst []byte, v uint64) int {
	return PutUvarint(dst, encode(t, v))
}

// AppendUvarint appends the encoding of v to dst.
func AppendUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// Append appends v packed as type t to dst.
func Append(t Type, dst []byte, v uint64) []byte {
	return AppendUvarint(dst, encode(t, v))
}

// Uvarint decodes an unsigned varint from data. It returns the value and the
// number of bytes read, or n == 0 when data ends before the terminating byte
// or the encoding does not fit in 64 bits.
func Uvarint(data []byte) (uint64, int) {
	if len(data) > 0 && data[0] < 0x80 {
		return uint64(data[0]), 1
	}
	var v uint64
	for i := 0; i < len(data) && i < MaxLen64; i++ {
		b := data[i]
		if i == MaxLen64-1 && b > 1 {
			// the tenth byte carries a single payload bit
			return 0, 0
		}
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b < 0x80 {
			return v, i + 1
		}
	}
	return 0, 0
}

// Unpack decodes a varint of type t from data. It never reads past len(data)
// and returns n == 0 on failure.
func Unpack(t Type, data []byte) (uint64, int) {
	raw, n := Uvarint(data)
	if n == 0 {
		return 0, 0
	}
	return decode(t, raw), n
}
