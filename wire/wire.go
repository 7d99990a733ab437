// Package wire defines the protocol buffers wire types and a forward-only
// byte stream over an encoded buffer.
package wire

import (
	"errors"

	"github.com/reoring/pbjournal/varint"
)

// Type is the 3-bit encoding kind carried in every field tag.
type Type uint8

const (
	Varint     Type = 0
	Fixed64    Type = 1
	Bytes      Type = 2
	StartGroup Type = 3
	EndGroup   Type = 4
	Fixed32    Type = 5
)

func (t Type) String() string {
	switch t {
	case Varint:
		return "varint"
	case Fixed64:
		return "fixed64"
	case Bytes:
		return "bytes"
	case StartGroup:
		return "start_group"
	case EndGroup:
		return "end_group"
	case Fixed32:
		return "fixed32"
	default:
		return "invalid"
	}
}

// MaxFieldNumber is the largest field number representable in a tag.
const MaxFieldNumber = 1<<29 - 1

// Sentinel errors shared by every layer that reads encoded data.
var (
	ErrOffset      = errors.New("wire: offset out of range")
	ErrUnderrun    = errors.New("wire: read past end of buffer")
	ErrOverflow    = errors.New("wire: declared length exceeds buffer")
	ErrVarint      = errors.New("wire: malformed varint")
	ErrUnsupported = errors.New("wire: unsupported wire type")
)

// Tag packs a field number and wire type into a tag value.
func Tag(num uint32, t Type) uint64 { return uint64(num)<<3 | uint64(t&7) }

// SplitTag separates a tag into field number and wire type.
func SplitTag(tag uint64) (uint32, Type) { return uint32(tag >> 3), Type(tag & 7) }

// SizeTag returns the encoded size of the tag for num.
func SizeTag(num uint32) int { return varint.SizeUvarint(Tag(num, 0)) }

// AppendTag appends the encoded tag to dst.
func AppendTag(dst []byte, num uint32, t Type) []byte {
	return varint.AppendUvarint(dst, Tag(num, t))
}

// FixedSize returns the payload size of fixed-width wire types and 0 for the
// others.
func FixedSize(t Type) int {
	switch t {
	case Fixed32:
		return 4
	case Fixed64:
		return 8
	default:
		return 0
	}
}

// ValidFieldNumber reports whether num may appear in a tag.
func ValidFieldNumber(num uint32) bool { return num > 0 && num <= MaxFieldNumber }
