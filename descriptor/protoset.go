package descriptor

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

var protoTypes = map[descriptorpb.FieldDescriptorProto_Type]Type{
	descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:   TypeDouble,
	descriptorpb.FieldDescriptorProto_TYPE_FLOAT:    TypeFloat,
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    TypeInt64,
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   TypeUint64,
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    TypeInt32,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  TypeFixed64,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  TypeFixed32,
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     TypeBool,
	descriptorpb.FieldDescriptorProto_TYPE_STRING:   TypeString,
	descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:  TypeMessage,
	descriptorpb.FieldDescriptorProto_TYPE_BYTES:    TypeBytes,
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   TypeUint32,
	descriptorpb.FieldDescriptorProto_TYPE_ENUM:     TypeEnum,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: TypeSfixed32,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: TypeSfixed64,
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   TypeSint32,
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   TypeSint64,
}

// LoadProtoSet parses a serialized FileDescriptorSet, as written by
// `protoc --descriptor_set_out`, and converts it with FromFileDescriptorSet.
func LoadProtoSet(data []byte) (*Set, error) {
	var fds descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &fds); err != nil {
		return nil, errors.Wrap(err, "descriptor: decoding FileDescriptorSet")
	}
	return FromFileDescriptorSet(&fds)
}

// FromFileDescriptorSet converts compiled descriptors. Types are registered
// under their fully-qualified names without the leading dot, for example
// "acme.Person.Phone". Groups are not supported.
func FromFileDescriptorSet(fds *descriptorpb.FileDescriptorSet) (*Set, error) {
	c := &protoConv{
		set:    &Set{Messages: map[string]*Message{}, Enums: map[string]*Enum{}},
		proto3: map[string]bool{},
	}
	for _, fd := range fds.GetFile() {
		c.register(fd)
	}
	for _, fd := range fds.GetFile() {
		if err := c.convertFile(fd); err != nil {
			return nil, err
		}
	}
	for _, m := range c.set.Messages {
		if err := m.Check(); err != nil {
			return nil, err
		}
	}
	return c.set, nil
}

type protoConv struct {
	set *Set
	// proto3 per message name, for packed defaults
	proto3 map[string]bool
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func (c *protoConv) register(fd *descriptorpb.FileDescriptorProto) {
	p3 := fd.GetSyntax() == "proto3"
	var walk func(scope string, mds []*descriptorpb.DescriptorProto)
	walk = func(scope string, mds []*descriptorpb.DescriptorProto) {
		for _, md := range mds {
			name := qualify(scope, md.GetName())
			c.set.Messages[name] = &Message{Name: name}
			c.proto3[name] = p3
			for _, ed := range md.GetEnumType() {
				c.addEnum(qualify(name, ed.GetName()), ed)
			}
			walk(name, md.GetNestedType())
		}
	}
	for _, ed := range fd.GetEnumType() {
		c.addEnum(qualify(fd.GetPackage(), ed.GetName()), ed)
	}
	walk(fd.GetPackage(), fd.GetMessageType())
}

func (c *protoConv) addEnum(name string, ed *descriptorpb.EnumDescriptorProto) {
	e := &Enum{Name: name}
	for _, v := range ed.GetValue() {
		e.Values = append(e.Values, EnumValue{Value: v.GetNumber(), Name: v.GetName()})
	}
	c.set.Enums[name] = e
}

func (c *protoConv) convertFile(fd *descriptorpb.FileDescriptorProto) error {
	exts := fd.GetExtension()
	var walk func(scope string, mds []*descriptorpb.DescriptorProto) error
	walk = func(scope string, mds []*descriptorpb.DescriptorProto) error {
		for _, md := range mds {
			name := qualify(scope, md.GetName())
			m := c.set.Messages[name]
			for _, f := range md.GetField() {
				field, err := c.convertField(name, md, f)
				if err != nil {
					return err
				}
				m.Fields = append(m.Fields, field)
			}
			exts = append(exts, md.GetExtension()...)
			if err := walk(name, md.GetNestedType()); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(fd.GetPackage(), fd.GetMessageType()); err != nil {
		return err
	}
	for _, x := range exts {
		target := c.set.Messages[strings.TrimPrefix(x.GetExtendee(), ".")]
		if target == nil {
			return errors.Wrapf(ErrSchema, "extension %s: unknown extendee %s", x.GetName(), x.GetExtendee())
		}
		field, err := c.convertField(target.Name, nil, x)
		if err != nil {
			return err
		}
		target.Extensions = append(target.Extensions, &Message{
			Name:   qualify(fd.GetPackage(), x.GetName()),
			Fields: []*Field{field},
		})
	}
	return nil
}

func (c *protoConv) convertField(owner string, md *descriptorpb.DescriptorProto, f *descriptorpb.FieldDescriptorProto) (*Field, error) {
	t, ok := protoTypes[f.GetType()]
	if !ok {
		return nil, errors.Wrapf(ErrSchema, "%s.%s: unsupported type %s", owner, f.GetName(), f.GetType())
	}
	field := &Field{Tag: uint32(f.GetNumber()), Name: f.GetName(), Type: t}
	switch f.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		field.Label = LabelRequired
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		field.Label = LabelRepeated
		if t.Scalar() {
			if f.GetOptions() != nil && f.GetOptions().Packed != nil {
				field.Packed = f.GetOptions().GetPacked()
			} else {
				field.Packed = c.proto3[owner]
			}
		}
	default:
		field.Label = LabelOptional
	}
	if md != nil && f.OneofIndex != nil && !f.GetProto3Optional() {
		field.Label = LabelOneof
		field.Oneof = md.GetOneofDecl()[f.GetOneofIndex()].GetName()
	}
	ref := strings.TrimPrefix(f.GetTypeName(), ".")
	switch t {
	case TypeMessage:
		if field.Message = c.set.Messages[ref]; field.Message == nil {
			return nil, errors.Wrapf(ErrSchema, "%s.%s: unknown message %s", owner, f.GetName(), ref)
		}
	case TypeEnum:
		if field.Enum = c.set.Enums[ref]; field.Enum == nil {
			return nil, errors.Wrapf(ErrSchema, "%s.%s: unknown enum %s", owner, f.GetName(), ref)
		}
	}
	if f.DefaultValue != nil {
		d, err := parseProtoDefault(field, f.GetDefaultValue())
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", owner, f.GetName())
		}
		field.Default = d
	}
	return field, nil
}

// parseProtoDefault interprets the textual default_value of a compiled
// descriptor.
func parseProtoDefault(f *Field, s string) (any, error) {
	switch f.Type {
	case TypeString:
		return s, nil
	case TypeBytes:
		u, err := strconv.Unquote(`"` + s + `"`)
		if err != nil {
			return []byte(s), nil
		}
		return []byte(u), nil
	case TypeBool:
		return strconv.ParseBool(s)
	case TypeEnum:
		if v, ok := f.Enum.Value(s); ok {
			return v, nil
		}
		return nil, errors.Wrapf(ErrSchema, "unknown enum default %q", s)
	case TypeDouble, TypeFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrSchema, "default %q: %v", s, err)
		}
		return v, nil
	case TypeUint32, TypeUint64, TypeFixed32, TypeFixed64:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrSchema, "default %q: %v", s, err)
		}
		return v, nil
	default:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrSchema, "default %q: %v", s, err)
		}
		return v, nil
	}
}
