package codec

import (
	"reflect"
	"strconv"

	"github.com/pkg/errors"
	"github.com/vmihailenco/tagparser/v2"
)

// Kind is the structural variant of a shape.
type Kind int

const (
	KindPrimitive Kind = iota
	KindEnum
	KindNullable
	KindArray
	KindDictionary
	KindObject
)

// Shape describes a type to the synthesis visitor: its structural kind and,
// for objects, the declared properties. Shapes for structs are derived from
// `mpack` struct tags:
//
//	Name string `mpack:"name"`           // map layout, wire name "name"
//	Name string `mpack:"name,omitempty"` // skipped when zero
//	Name string `mpack:"0"`              // array layout, index 0
//	Name string `mpack:"2,async"`        // property prefers the async path
//	Name string `mpack:"-"`              // never serialized
//
// An integer tag on any property selects the array layout for the whole
// object; integer and string keys cannot be mixed. Untagged exported fields
// use the field name.
type Shape struct {
	Type       reflect.Type
	Kind       Kind
	Properties []Property
}

// Property is one declared property of an object shape.
type Property struct {
	Name        string
	Index       int // array-layout key; -1 when the property has a name key
	Field       []int
	Type        reflect.Type
	OmitEmpty   bool
	PreferAsync bool
}

// ShapeOf derives the shape of t.
func ShapeOf(t reflect.Type) (*Shape, error) {
	switch t.Kind() {
	case reflect.Ptr:
		return &Shape{Type: t, Kind: KindNullable}, nil
	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return &Shape{Type: t, Kind: KindPrimitive}, nil
		}
		return &Shape{Type: t, Kind: KindArray}, nil
	case reflect.Map:
		return &Shape{Type: t, Kind: KindDictionary}, nil
	case reflect.Struct:
		props, err := structProperties(t)
		if err != nil {
			return nil, err
		}
		return &Shape{Type: t, Kind: KindObject, Properties: props}, nil
	case reflect.Bool, reflect.Float32, reflect.Float64, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if t.PkgPath() != "" {
			return &Shape{Type: t, Kind: KindEnum}, nil
		}
		return &Shape{Type: t, Kind: KindPrimitive}, nil
	case reflect.Interface:
		// Codecable only through a registered subtype mapping; synthesis
		// decides.
		return &Shape{Type: t, Kind: KindObject}, nil
	}
	return nil, &NotSupportedError{Type: t}
}

func structProperties(t reflect.Type) ([]Property, error) {
	indexed := false
	named := false
	props := make([]Property, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		raw := f.Tag.Get("mpack")
		if raw == "-" {
			continue
		}
		tag := tagparser.Parse(raw)

		p := Property{
			Name:  f.Name,
			Index: -1,
			Field: f.Index,
			Type:  f.Type,
		}
		if tag.Name != "" {
			if idx, err := strconv.Atoi(tag.Name); err == nil {
				if idx < 0 {
					return nil, errors.Errorf("mpack: %s.%s: negative property index %d", t, f.Name, idx)
				}
				p.Index = idx
				indexed = true
			} else {
				p.Name = tag.Name
				named = true
			}
		} else {
			named = true
		}
		if _, ok := tag.Options["omitempty"]; ok {
			p.OmitEmpty = true
		}
		if _, ok := tag.Options["async"]; ok {
			p.PreferAsync = true
		}
		props = append(props, p)
	}

	if indexed && named {
		return nil, errors.Errorf("mpack: %s mixes integer and string property keys", t)
	}
	if indexed {
		seen := make(map[int]string, len(props))
		for _, p := range props {
			if prev, ok := seen[p.Index]; ok {
				return nil, errors.Errorf("mpack: %s: properties %s and %s share index %d", t, prev, p.Name, p.Index)
			}
			seen[p.Index] = p.Name
		}
	}
	return props, nil
}

// UsesArrayLayout reports whether the object's wire form is the
// integer-indexed array layout.
func (s *Shape) UsesArrayLayout() bool {
	for _, p := range s.Properties {
		if p.Index >= 0 {
			return true
		}
	}
	return false
}
