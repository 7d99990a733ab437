package descriptor_test

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/reoring/pbjournal/descriptor"
	"github.com/reoring/pbjournal/wire"
)

const personYAML = `
enums:
  - name: Kind
    values:
      - {value: 0, name: UNKNOWN}
      - {value: 2, name: MOBILE}
messages:
  - name: Phone
    fields:
      - {tag: 2, name: kind, type: enum, enum: Kind, default: MOBILE}
      - {tag: 1, name: number, type: string, label: required}
  - name: Person
    extensions: [PersonExt]
    fields:
      - {tag: 3, name: phones, type: message, message: Phone, label: repeated}
      - {tag: 1, name: id, type: int32, label: required}
      - {tag: 2, name: name, type: string, default: anon}
      - {tag: 4, name: scores, type: float, label: repeated, packed: true}
      - {tag: 5, name: email, type: string, label: oneof, oneof: contact}
      - {tag: 6, name: pager, type: uint64, label: oneof, oneof: contact}
---
messages:
  - name: PersonExt
    fields:
      - {tag: 100, name: badge, type: sint64, label: required}
`

func TestLoadYAML(t *testing.T) {
	set, err := descriptor.LoadYAML([]byte(personYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := set.Message("Person")
	if p == nil {
		t.Fatal("Person not found")
	}
	for i := 1; i < len(p.Fields); i++ {
		if p.Fields[i-1].Tag >= p.Fields[i].Tag {
			t.Fatalf("fields not sorted: %d then %d", p.Fields[i-1].Tag, p.Fields[i].Tag)
		}
	}
	if f := p.Lookup(3); f == nil || f.Message != set.Message("Phone") {
		t.Fatalf("phones not resolved: %+v", f)
	}
	if f := p.Lookup(100); f == nil || f.Name != "badge" {
		t.Fatalf("extension lookup failed: %+v", f)
	}
	if f := p.Lookup(4); f.WireType() != wire.Bytes {
		t.Fatalf("packed float should use bytes wire type, got %v", f.WireType())
	}
	if d := p.FieldByName("name").Default; d != "anon" {
		t.Fatalf("default = %#v", d)
	}
	if d := set.Message("Phone").Lookup(2).Default; d != int32(2) {
		t.Fatalf("enum default = %#v", d)
	}
	req := p.Required()
	if len(req) != 2 || req[0].Name != "id" || req[1].Name != "badge" {
		t.Fatalf("required = %v", req)
	}
	if got := p.OneofMembers("contact"); len(got) != 2 {
		t.Fatalf("oneof members = %v", got)
	}
}

func TestLoadJSON(t *testing.T) {
	doc := `{"messages":[{"name":"M","fields":[{"tag":1,"name":"n","type":"uint32","default":7}]}]}`
	set, err := descriptor.LoadJSON([]byte(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d := set.Message("M").Lookup(1).Default; d != uint64(7) {
		t.Fatalf("default = %#v", d)
	}
	if _, err := descriptor.LoadJSON([]byte(`{"messages":[],"bogus":1}`)); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestBuild_Errors(t *testing.T) {
	cases := map[string]string{
		"duplicate tag":   `{"messages":[{"name":"M","fields":[{"tag":1,"name":"a","type":"int32"},{"tag":1,"name":"b","type":"int32"}]}]}`,
		"unknown type":    `{"messages":[{"name":"M","fields":[{"tag":1,"name":"a","type":"int128"}]}]}`,
		"unknown message": `{"messages":[{"name":"M","fields":[{"tag":1,"name":"a","type":"message","message":"X"}]}]}`,
		"bad packed":      `{"messages":[{"name":"M","fields":[{"tag":1,"name":"a","type":"string","label":"repeated","packed":true}]}]}`,
		"bad default":     `{"messages":[{"name":"M","fields":[{"tag":1,"name":"a","type":"int32","default":"x"}]}]}`,
		"zero tag":        `{"messages":[{"name":"M","fields":[{"tag":0,"name":"a","type":"int32"}]}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := descriptor.LoadJSON([]byte(doc))
			if !errors.Is(err, descriptor.ErrSchema) {
				t.Fatalf("got %v, want ErrSchema", err)
			}
		})
	}
}

func TestNormalizeDefault(t *testing.T) {
	cases := []struct {
		typ  descriptor.Type
		in   any
		want any
		ok   bool
	}{
		{descriptor.TypeInt32, 5, int64(5), true},
		{descriptor.TypeInt32, float64(1 << 40), nil, false},
		{descriptor.TypeUint32, -1, nil, false},
		{descriptor.TypeFixed64, uint64(1 << 63), uint64(1 << 63), true},
		{descriptor.TypeDouble, 2, float64(2), true},
		{descriptor.TypeBool, true, true, true},
		{descriptor.TypeBytes, "ab", []byte("ab"), true},
	}
	for _, tc := range cases {
		got, err := descriptor.NormalizeDefault(tc.typ, tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("%v(%v): err=%v", tc.typ, tc.in, err)
		}
		if !tc.ok {
			continue
		}
		if b, isBytes := tc.want.([]byte); isBytes {
			if string(got.([]byte)) != string(b) {
				t.Fatalf("%v(%v) = %#v", tc.typ, tc.in, got)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("%v(%v) = %#v, want %#v", tc.typ, tc.in, got, tc.want)
		}
	}
}

func TestFromFileDescriptorSet(t *testing.T) {
	fds := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{{
		Name:    proto.String("acme.proto"),
		Package: proto.String("acme"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Sample"),
			Field: []*descriptorpb.FieldDescriptorProto{
				{Name: proto.String("values"), Number: proto.Int32(2), Type: descriptorpb.FieldDescriptorProto_TYPE_SINT32.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()},
				{Name: proto.String("child"), Number: proto.Int32(1), Type: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(), TypeName: proto.String(".acme.Sample.Child")},
				{Name: proto.String("a"), Number: proto.Int32(3), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), OneofIndex: proto.Int32(0)},
			},
			OneofDecl:  []*descriptorpb.OneofDescriptorProto{{Name: proto.String("choice")}},
			NestedType: []*descriptorpb.DescriptorProto{{Name: proto.String("Child")}},
		}},
	}}}
	raw, err := proto.Marshal(fds)
	if err != nil {
		t.Fatal(err)
	}
	set, err := descriptor.LoadProtoSet(raw)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	m := set.Message("acme.Sample")
	if m == nil || len(m.Fields) != 3 || m.Fields[0].Name != "child" {
		t.Fatalf("Sample = %+v", m)
	}
	if f := m.Lookup(2); !f.Packed || f.Type != descriptor.TypeSint32 {
		t.Fatalf("proto3 repeated scalar should be packed: %+v", f)
	}
	if f := m.Lookup(1); f.Message != set.Message("acme.Sample.Child") {
		t.Fatalf("child not resolved")
	}
	if f := m.Lookup(3); f.Label != descriptor.LabelOneof || f.Oneof != "choice" {
		t.Fatalf("oneof = %+v", f)
	}
}
