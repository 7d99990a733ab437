package descriptor

import (
	"bytes"
	"io"

	j "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Document is the serialized form of a Set accepted by LoadYAML and LoadJSON.
//
//	messages:
//	  - name: Person
//	    fields:
//	      - {tag: 1, name: id, type: int32, label: required}
//	      - {tag: 2, name: phones, type: message, message: Phone, label: repeated}
//	enums:
//	  - name: Kind
//	    values: [{value: 0, name: UNKNOWN}]
type Document struct {
	Messages []MessageDoc `yaml:"messages" json:"messages"`
	Enums    []EnumDoc    `yaml:"enums" json:"enums"`
}

// MessageDoc is the serialized form of a Message.
type MessageDoc struct {
	Name       string     `yaml:"name" json:"name"`
	Fields     []FieldDoc `yaml:"fields" json:"fields"`
	Extensions []string   `yaml:"extensions,omitempty" json:"extensions,omitempty"`
}

// FieldDoc is the serialized form of a Field. Message and Enum name the
// referenced types.
type FieldDoc struct {
	Tag     uint32 `yaml:"tag" json:"tag"`
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type" json:"type"`
	Label   string `yaml:"label,omitempty" json:"label,omitempty"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
	Enum    string `yaml:"enum,omitempty" json:"enum,omitempty"`
	Default any    `yaml:"default,omitempty" json:"default,omitempty"`
	Packed  bool   `yaml:"packed,omitempty" json:"packed,omitempty"`
	Oneof   string `yaml:"oneof,omitempty" json:"oneof,omitempty"`
}

// EnumDoc is the serialized form of an Enum.
type EnumDoc struct {
	Name   string `yaml:"name" json:"name"`
	Values []struct {
		Value int32  `yaml:"value" json:"value"`
		Name  string `yaml:"name" json:"name"`
	} `yaml:"values" json:"values"`
}

// LoadYAML builds a Set from one or more YAML documents. Types declared in
// later documents may reference types from earlier ones.
func LoadYAML(data []byte) (*Set, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var merged Document
	for {
		var doc Document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Wrap(err, "descriptor: decoding YAML")
		}
		merged.Messages = append(merged.Messages, doc.Messages...)
		merged.Enums = append(merged.Enums, doc.Enums...)
	}
	return Build(merged)
}

// LoadJSON builds a Set from a JSON document.
func LoadJSON(data []byte) (*Set, error) {
	var doc Document
	dec := j.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "descriptor: decoding JSON")
	}
	return Build(doc)
}

// Build resolves the references of doc and checks every message type.
func Build(doc Document) (*Set, error) {
	s := &Set{
		Messages: make(map[string]*Message, len(doc.Messages)),
		Enums:    make(map[string]*Enum, len(doc.Enums)),
	}
	for _, ed := range doc.Enums {
		if _, dup := s.Enums[ed.Name]; dup {
			return nil, errors.Wrapf(ErrSchema, "duplicate enum %q", ed.Name)
		}
		e := &Enum{Name: ed.Name}
		for _, v := range ed.Values {
			e.Values = append(e.Values, EnumValue{Value: v.Value, Name: v.Name})
		}
		s.Enums[ed.Name] = e
	}
	// first pass registers names so that fields can reference any message
	for _, md := range doc.Messages {
		if _, dup := s.Messages[md.Name]; dup {
			return nil, errors.Wrapf(ErrSchema, "duplicate message %q", md.Name)
		}
		s.Messages[md.Name] = &Message{Name: md.Name}
	}
	for _, md := range doc.Messages {
		m := s.Messages[md.Name]
		for _, fd := range md.Fields {
			f, err := s.buildField(md.Name, fd)
			if err != nil {
				return nil, err
			}
			m.Fields = append(m.Fields, f)
		}
		for _, name := range md.Extensions {
			ext := s.Messages[name]
			if ext == nil {
				return nil, errors.Wrapf(ErrSchema, "%s: unknown extension %q", md.Name, name)
			}
			m.Extensions = append(m.Extensions, ext)
		}
	}
	for _, md := range doc.Messages {
		if err := s.Messages[md.Name].Check(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) buildField(owner string, fd FieldDoc) (*Field, error) {
	t, ok := ParseType(fd.Type)
	if !ok {
		return nil, errors.Wrapf(ErrSchema, "%s.%s: unknown type %q", owner, fd.Name, fd.Type)
	}
	l, ok := ParseLabel(fd.Label)
	if !ok {
		return nil, errors.Wrapf(ErrSchema, "%s.%s: unknown label %q", owner, fd.Name, fd.Label)
	}
	f := &Field{
		Tag:     fd.Tag,
		Name:    fd.Name,
		Type:    t,
		Label:   l,
		Default: fd.Default,
		Packed:  fd.Packed,
		Oneof:   fd.Oneof,
	}
	switch t {
	case TypeMessage:
		if f.Message = s.Messages[fd.Message]; f.Message == nil {
			return nil, errors.Wrapf(ErrSchema, "%s.%s: unknown message %q", owner, fd.Name, fd.Message)
		}
	case TypeEnum:
		if f.Enum = s.Enums[fd.Enum]; f.Enum == nil {
			return nil, errors.Wrapf(ErrSchema, "%s.%s: unknown enum %q", owner, fd.Name, fd.Enum)
		}
		if name, isName := fd.Default.(string); isName {
			v, found := f.Enum.Value(name)
			if !found {
				return nil, errors.Wrapf(ErrSchema, "%s.%s: unknown enum default %q", owner, fd.Name, name)
			}
			f.Default = v
		}
	}
	return f, nil
}
