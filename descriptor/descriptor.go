// Package descriptor defines the read-only schema nodes consumed by the
// journal, decoder, encoder and validator. Descriptors are produced by an
// external schema compiler or loaded from YAML, JSON or a compiled
// FileDescriptorSet; they are never mutated after construction.
package descriptor

import (
	"errors"
	"sort"

	"github.com/reoring/pbjournal/varint"
	"github.com/reoring/pbjournal/wire"
)

// ErrSchema is the cause of every schema construction failure.
var ErrSchema = errors.New("descriptor: invalid schema")

// Type is the declared scalar or composite type of a field.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeDouble
	TypeFloat
	TypeInt32
	TypeInt64
	TypeUint32
	TypeUint64
	TypeSint32
	TypeSint64
	TypeFixed32
	TypeFixed64
	TypeSfixed32
	TypeSfixed64
	TypeBool
	TypeEnum
	TypeString
	TypeBytes
	TypeMessage
)

var typeNames = [...]string{
	TypeInvalid:  "invalid",
	TypeDouble:   "double",
	TypeFloat:    "float",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeUint32:   "uint32",
	TypeUint64:   "uint64",
	TypeSint32:   "sint32",
	TypeSint64:   "sint64",
	TypeFixed32:  "fixed32",
	TypeFixed64:  "fixed64",
	TypeSfixed32: "sfixed32",
	TypeSfixed64: "sfixed64",
	TypeBool:     "bool",
	TypeEnum:     "enum",
	TypeString:   "string",
	TypeBytes:    "bytes",
	TypeMessage:  "message",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// ParseType resolves a type name such as "sint64".
func ParseType(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name && i != int(TypeInvalid) {
			return Type(i), true
		}
	}
	return TypeInvalid, false
}

// WireType is the wire type of a single, unpacked value of t.
func (t Type) WireType() wire.Type {
	switch t {
	case TypeDouble, TypeFixed64, TypeSfixed64:
		return wire.Fixed64
	case TypeFloat, TypeFixed32, TypeSfixed32:
		return wire.Fixed32
	case TypeString, TypeBytes, TypeMessage:
		return wire.Bytes
	default:
		return wire.Varint
	}
}

// VarintType maps varint-encoded types onto the varint codec flavour.
func (t Type) VarintType() (varint.Type, bool) {
	switch t {
	case TypeInt32:
		return varint.Int32, true
	case TypeInt64:
		return varint.Int64, true
	case TypeUint32:
		return varint.Uint32, true
	case TypeUint64:
		return varint.Uint64, true
	case TypeSint32:
		return varint.Sint32, true
	case TypeSint64:
		return varint.Sint64, true
	case TypeBool:
		return varint.Bool, true
	case TypeEnum:
		return varint.Enum, true
	default:
		return 0, false
	}
}

// Scalar reports whether values of t may use packed encoding.
func (t Type) Scalar() bool { return t.WireType() != wire.Bytes }

// Label is the cardinality of a field.
type Label uint8

const (
	LabelOptional Label = iota
	LabelRequired
	LabelRepeated
	LabelOneof
)

var labelNames = [...]string{
	LabelOptional: "optional",
	LabelRequired: "required",
	LabelRepeated: "repeated",
	LabelOneof:    "oneof",
}

func (l Label) String() string {
	if int(l) < len(labelNames) {
		return labelNames[l]
	}
	return "invalid"
}

// ParseLabel resolves a label name; the empty string means optional.
func ParseLabel(name string) (Label, bool) {
	if name == "" {
		return LabelOptional, true
	}
	for i, n := range labelNames {
		if n == name {
			return Label(i), true
		}
	}
	return 0, false
}

// Field describes one field of a message type.
type Field struct {
	Tag   uint32
	Name  string
	Type  Type
	Label Label
	// Message is set for TypeMessage fields, Enum for TypeEnum fields.
	Message *Message
	Enum    *Enum
	// Default is nil or a value normalized by NormalizeDefault.
	Default any
	Packed  bool
	// Oneof names the group of a LabelOneof field.
	Oneof string
}

// Repeated reports whether the field may occur more than once.
func (f *Field) Repeated() bool { return f.Label == LabelRepeated }

// WireType is the wire type a conforming encoder emits for the field.
func (f *Field) WireType() wire.Type {
	if f.Packed && f.Repeated() && f.Type.Scalar() {
		return wire.Bytes
	}
	return f.Type.WireType()
}

// Message describes a message type. Fields are sorted by ascending tag.
type Message struct {
	Name   string
	Fields []*Field
	// Extensions hold fields declared outside the message body; they are
	// consulted after the base fields.
	Extensions []*Message
}

// Lookup returns the field with the given tag, or nil.
func (m *Message) Lookup(tag uint32) *Field {
	if m == nil {
		return nil
	}
	fs := m.Fields
	i := sort.Search(len(fs), func(i int) bool { return fs[i].Tag >= tag })
	if i < len(fs) && fs[i].Tag == tag {
		return fs[i]
	}
	for _, ext := range m.Extensions {
		if f := ext.Lookup(tag); f != nil {
			return f
		}
	}
	return nil
}

// FieldByName returns the field with the given name, or nil.
func (m *Message) FieldByName(name string) *Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	for _, ext := range m.Extensions {
		if f := ext.FieldByName(name); f != nil {
			return f
		}
	}
	return nil
}

// Required lists required fields, including those of extensions.
func (m *Message) Required() []*Field {
	var out []*Field
	for _, f := range m.Fields {
		if f.Label == LabelRequired {
			out = append(out, f)
		}
	}
	for _, ext := range m.Extensions {
		out = append(out, ext.Required()...)
	}
	return out
}

// OneofMembers lists the fields sharing the oneof group.
func (m *Message) OneofMembers(group string) []*Field {
	if group == "" {
		return nil
	}
	var out []*Field
	for _, f := range m.Fields {
		if f.Label == LabelOneof && f.Oneof == group {
			out = append(out, f)
		}
	}
	return out
}

// EnumValue is one named value of an enum.
type EnumValue struct {
	Value int32
	Name  string
}

// Enum describes an enum type.
type Enum struct {
	Name   string
	Values []EnumValue
}

// ValueName returns the name for v, or "" when v is not declared.
func (e *Enum) ValueName(v int32) string {
	for _, ev := range e.Values {
		if ev.Value == v {
			return ev.Name
		}
	}
	return ""
}

// Value returns the number declared for name.
func (e *Enum) Value(name string) (int32, bool) {
	for _, ev := range e.Values {
		if ev.Name == name {
			return ev.Value, true
		}
	}
	return 0, false
}
