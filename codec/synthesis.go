package codec

import (
	"bytes"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// synthesize walks the shape of t and produces its converter. Member types
// are requested through GetOrMake, so every intermediate converter lands in
// the cache under the insert-once rule.
func (c *Cache) synthesize(t reflect.Type) (Converter, error) {
	if m := c.subTypesFor(t); m != nil {
		return c.makeSubTypes(m)
	}
	return c.synthesizeInner(t)
}

// synthesizeInner builds the converter for t without the polymorphic
// envelope. The envelope's base slot uses it directly to avoid re-wrapping.
func (c *Cache) synthesizeInner(t reflect.Type) (Converter, error) {
	shape, err := ShapeOf(t)
	if err != nil {
		return nil, err
	}

	switch shape.Kind {
	case KindPrimitive:
		if conv := lookupPrimitive(t); conv != nil {
			return conv, nil
		}
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return bytesConverter{}, nil
		}
		return nil, &NotSupportedError{Type: t}

	case KindEnum:
		return enumConverterFor(t)

	case KindNullable:
		elem, err := c.GetOrMake(t.Elem())
		if err != nil {
			return nil, err
		}
		return &ptrConverter{elemType: t.Elem(), elem: elem}, nil

	case KindArray:
		if c.opts.FlatMultiDim && t.Kind() == reflect.Array && t.Elem().Kind() == reflect.Array {
			elem, err := c.GetOrMake(t.Elem().Elem())
			if err != nil {
				return nil, err
			}
			return &flatArrayConverter{
				rows:     t.Len(),
				cols:     t.Elem().Len(),
				elemType: t.Elem().Elem(),
				elem:     elem,
			}, nil
		}
		elem, err := c.GetOrMake(t.Elem())
		if err != nil {
			return nil, err
		}
		if t.Kind() == reflect.Array {
			return &fixedArrayConverter{typ: t, elem: elem}, nil
		}
		return &sliceConverter{typ: t, elem: elem}, nil

	case KindDictionary:
		key, err := c.GetOrMake(t.Key())
		if err != nil {
			return nil, err
		}
		val, err := c.GetOrMake(t.Elem())
		if err != nil {
			return nil, err
		}
		return &mapConverter{typ: t, key: key, val: val}, nil

	case KindObject:
		if t.Kind() == reflect.Interface {
			// An interface is codecable only through a subtype mapping.
			return nil, &NotSupportedError{Type: t}
		}
		return c.makeObject(t, shape)
	}
	return nil, &NotSupportedError{Type: t}
}

func (c *Cache) makeObject(t reflect.Type, shape *Shape) (Converter, error) {
	h := hooksFor(t)
	arrayLayout := shape.UsesArrayLayout()

	props := make([]*property, 0, len(shape.Properties))
	for _, sp := range shape.Properties {
		conv, err := c.GetOrMake(sp.Type)
		if err != nil {
			return nil, err
		}
		p := &property{
			name:        sp.Name,
			index:       sp.Index,
			field:       sp.Field,
			conv:        conv,
			omitEmpty:   sp.OmitEmpty,
			conditional: h.cond,
			preferAsync: sp.PreferAsync || prefersAsync(conv),
		}
		if !arrayLayout {
			p.nameBytes = encodePropertyName(sp.Name)
		}
		props = append(props, p)
	}

	if arrayLayout {
		maxIdx := -1
		for _, p := range props {
			if p.index > maxIdx {
				maxIdx = p.index
			}
		}
		slots := make([]*property, maxIdx+1)
		for _, p := range props {
			slots[p.index] = p
		}
		return newObjectArrayConverter(t, slots, h), nil
	}

	deserializable := make(map[string]*property, len(props))
	for _, p := range props {
		deserializable[p.name] = p
	}
	return &objectMapConverter{
		typ:            t,
		serializable:   props,
		deserializable: deserializable,
		hooks:          h,
	}, nil
}

// property pairs one field's accessor with the converter for its type.
type property struct {
	name        string
	nameBytes   []byte // msgpack string header + UTF-8, for blitting
	index       int
	field       []int
	conv        Converter
	omitEmpty   bool
	conditional bool
	preferAsync bool
}

func (p *property) value(owner reflect.Value) reflect.Value {
	return owner.FieldByIndex(p.field)
}

// predicated reports whether the property carries a should-serialize
// predicate.
func (p *property) predicated() bool {
	return p.omitEmpty || p.conditional
}

// include evaluates the property's should-serialize predicate.
func (p *property) include(owner reflect.Value) bool {
	if p.conditional && !callShouldSerialize(owner, p.name) {
		return false
	}
	if p.omitEmpty && p.value(owner).IsZero() {
		return false
	}
	return true
}

func encodePropertyName(name string) []byte {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeString(name); err != nil {
		// Encoding a string into a bytes.Buffer cannot fail.
		panic(err)
	}
	return buf.Bytes()
}
