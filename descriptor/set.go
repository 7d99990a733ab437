package descriptor

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/reoring/pbjournal/wire"
)

// Set is a collection of named message and enum types whose references have
// been resolved.
type Set struct {
	Messages map[string]*Message
	Enums    map[string]*Enum
}

// Message returns the message type registered under name, or nil.
func (s *Set) Message(name string) *Message {
	if s == nil {
		return nil
	}
	return s.Messages[name]
}

// Enum returns the enum type registered under name, or nil.
func (s *Set) Enum(name string) *Enum {
	if s == nil {
		return nil
	}
	return s.Enums[name]
}

// NewMessage builds a message type from fields, sorting them by tag and
// checking that the schema is usable by the journal.
func NewMessage(name string, fields ...*Field) (*Message, error) {
	m := &Message{Name: name, Fields: fields}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return m, nil
}

// MustMessage is NewMessage for statically known schemas; it panics on error.
func MustMessage(name string, fields ...*Field) *Message {
	m, err := NewMessage(name, fields...)
	if err != nil {
		panic(err)
	}
	return m
}

// Check sorts the fields by tag and rejects duplicate or out-of-range tags,
// unresolved references and defaults that do not match the declared type.
func (m *Message) Check() error {
	sort.SliceStable(m.Fields, func(i, j int) bool { return m.Fields[i].Tag < m.Fields[j].Tag })
	for i, f := range m.Fields {
		if !wire.ValidFieldNumber(f.Tag) {
			return errors.Wrapf(ErrSchema, "%s.%s: tag %d out of range", m.Name, f.Name, f.Tag)
		}
		if i > 0 && m.Fields[i-1].Tag == f.Tag {
			return errors.Wrapf(ErrSchema, "%s: duplicate tag %d", m.Name, f.Tag)
		}
		if f.Type == TypeInvalid || int(f.Type) >= len(typeNames) {
			return errors.Wrapf(ErrSchema, "%s.%s: invalid type", m.Name, f.Name)
		}
		if f.Type == TypeMessage && f.Message == nil {
			return errors.Wrapf(ErrSchema, "%s.%s: message type not resolved", m.Name, f.Name)
		}
		if f.Label == LabelOneof && f.Oneof == "" {
			return errors.Wrapf(ErrSchema, "%s.%s: oneof member without group", m.Name, f.Name)
		}
		if f.Packed && (!f.Repeated() || !f.Type.Scalar()) {
			return errors.Wrapf(ErrSchema, "%s.%s: only repeated scalar fields can be packed", m.Name, f.Name)
		}
		if f.Default != nil {
			if f.Type == TypeMessage || f.Repeated() {
				return errors.Wrapf(ErrSchema, "%s.%s: default not allowed", m.Name, f.Name)
			}
			d, err := NormalizeDefault(f.Type, f.Default)
			if err != nil {
				return errors.Wrapf(err, "%s.%s", m.Name, f.Name)
			}
			f.Default = d
		}
	}
	return nil
}

// NormalizeDefault converts a loosely typed default (as produced by YAML or
// JSON decoding) into the canonical Go type for t: int64 for signed integer
// types, uint64 for unsigned ones, int32 for enums, float64 for floating
// point, and bool, string or []byte.
func NormalizeDefault(t Type, v any) (any, error) {
	switch t {
	case TypeInt32, TypeInt64, TypeSint32, TypeSint64, TypeSfixed32, TypeSfixed64:
		n, ok := toInt64(v)
		if !ok || (is32(t) && (n < math.MinInt32 || n > math.MaxInt32)) {
			return nil, errors.Wrapf(ErrSchema, "default %v is not a valid %s", v, t)
		}
		return n, nil
	case TypeUint32, TypeUint64, TypeFixed32, TypeFixed64:
		if u, isU := v.(uint64); isU {
			if is32(t) && u > math.MaxUint32 {
				return nil, errors.Wrapf(ErrSchema, "default %v is not a valid %s", v, t)
			}
			return u, nil
		}
		n, ok := toInt64(v)
		if !ok || n < 0 || (is32(t) && n > math.MaxUint32) {
			return nil, errors.Wrapf(ErrSchema, "default %v is not a valid %s", v, t)
		}
		return uint64(n), nil
	case TypeEnum:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errors.Wrapf(ErrSchema, "default %v is not a valid enum number", v)
		}
		return int32(n), nil
	case TypeDouble, TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		}
		if n, ok := toInt64(v); ok {
			return float64(n), nil
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBytes:
		switch x := v.(type) {
		case string:
			return []byte(x), nil
		case []byte:
			return x, nil
		}
	}
	return nil, errors.Wrapf(ErrSchema, "default %v is not a valid %s", v, t)
}

func is32(t Type) bool {
	switch t {
	case TypeInt32, TypeSint32, TypeSfixed32, TypeUint32, TypeFixed32:
		return true
	}
	return false
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
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}
