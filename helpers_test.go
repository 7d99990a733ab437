package pbjournal_test

import (
	"testing"

	"github.com/richardartoul/molecule"
	"github.com/richardartoul/molecule/src/codec"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/reoring/pbjournal"
	"github.com/reoring/pbjournal/descriptor"
)

const schemaYAML = `
enums:
  - name: Kind
    values:
      - {value: 0, name: UNKNOWN}
      - {value: 2, name: MOBILE}
      - {value: 3, name: HOME}
messages:
  - name: Geo
    fields:
      - {tag: 1, name: lat, type: double}
  - name: Address
    fields:
      - {tag: 1, name: street, type: string}
      - {tag: 2, name: geo, type: message, message: Geo}
  - name: Phone
    fields:
      - {tag: 1, name: number, type: string, label: required}
      - {tag: 2, name: kind, type: enum, enum: Kind}
  - name: Person
    extensions: [PersonExt]
    fields:
      - {tag: 1, name: id, type: int32}
      - {tag: 2, name: name, type: string, default: anon}
      - {tag: 3, name: phones, type: message, message: Phone, label: repeated}
      - {tag: 4, name: scores, type: float, label: repeated, packed: true}
      - {tag: 5, name: email, type: string, label: oneof, oneof: contact}
      - {tag: 6, name: pager, type: uint64, label: oneof, oneof: contact}
      - {tag: 7, name: home, type: message, message: Address}
      - {tag: 8, name: tags, type: string, label: repeated}
      - {tag: 9, name: weight, type: fixed32}
      - {tag: 10, name: balance, type: double}
      - {tag: 11, name: delta, type: sint64}
      - {tag: 12, name: kind, type: enum, enum: Kind, default: MOBILE}
      - {tag: 13, name: codes, type: sint32, label: repeated, packed: true}
---
messages:
  - name: PersonExt
    fields:
      - {tag: 100, name: badge, type: sint64}
`

func loadSchema(t testing.TB) *descriptor.Set {
	t.Helper()
	set, err := descriptor.LoadYAML([]byte(schemaYAML))
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return set
}

func person(t testing.TB) *descriptor.Message {
	t.Helper()
	return loadSchema(t).Message("Person")
}

// nodeDesc is a self-referencing message: child=1, value=2.
func nodeDesc() *descriptor.Message {
	n := &descriptor.Message{Name: "Node"}
	n.Fields = []*descriptor.Field{
		{Tag: 1, Name: "child", Type: descriptor.TypeMessage, Message: n},
		{Tag: 2, Name: "value", Type: descriptor.TypeInt32},
	}
	return n
}

func openPerson(t testing.TB, buf []byte) *pbjournal.Message {
	t.Helper()
	m, err := pbjournal.Open(buf, person(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return m
}

// requireConsistent walks buf with two independent decoders and fails when
// any declared length disagrees with the bytes actually present.
func requireConsistent(t testing.TB, desc *descriptor.Message, buf []byte) {
	t.Helper()
	for b := buf; len(b) > 0; {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			t.Fatalf("tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			t.Fatalf("field %d: %v", num, protowire.ParseError(m))
		}
		if f := desc.Lookup(uint32(num)); f != nil && f.Type == descriptor.TypeMessage && typ == protowire.BytesType {
			v, _ := protowire.ConsumeBytes(b)
			requireConsistent(t, f.Message, v)
		}
		b = b[m:]
	}
	err := molecule.MessageEach(codec.NewBuffer(buf), func(num int32, v molecule.Value) (bool, error) {
		if f := desc.Lookup(uint32(num)); f != nil && f.Type == descriptor.TypeMessage {
			sub, err := v.AsBytesUnsafe()
			if err != nil {
				return false, err
			}
			return true, molecule.MessageEach(codec.NewBuffer(sub), func(int32, molecule.Value) (bool, error) {
				return true, nil
			})
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("molecule: %v", err)
	}
}

// occurrences counts the records of tag at the top level of buf.
func occurrences(t testing.TB, buf []byte, tag uint32) int {
	t.Helper()
	n := 0
	for b := buf; len(b) > 0; {
		num, typ, k := protowire.ConsumeTag(b)
		if k < 0 {
			t.Fatalf("tag: %v", protowire.ParseError(k))
		}
		b = b[k:]
		k = protowire.ConsumeFieldValue(num, typ, b)
		if k < 0 {
			t.Fatalf("field %d: %v", num, protowire.ParseError(k))
		}
		if uint32(num) == tag {
			n++
		}
		b = b[k:]
	}
	return n
}
