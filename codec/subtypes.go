package codec

import (
	"reflect"

	"github.com/pkg/errors"
)

// SubTypeMapping declares the closed set of subtypes for one base type.
// Aliases are integers or strings; the mapping is bijective — each alias
// names one subtype and each subtype carries one alias.
type SubTypeMapping struct {
	base    reflect.Type
	entries []subTypeEntry
}

type subTypeEntry struct {
	alias interface{} // int64 or string
	typ   reflect.Type
}

func NewSubTypes(base reflect.Type) *SubTypeMapping {
	return &SubTypeMapping{base: base}
}

func (m *SubTypeMapping) Base() reflect.Type {
	return m.base
}

// Add registers t under alias. Integer aliases of any signed width are
// normalized to int64.
func (m *SubTypeMapping) Add(alias interface{}, t reflect.Type) error {
	switch a := alias.(type) {
	case int:
		alias = int64(a)
	case int8:
		alias = int64(a)
	case int16:
		alias = int64(a)
	case int32:
		alias = int64(a)
	case int64:
	case string:
	default:
		return errors.Errorf("mpack: subtype alias must be an integer or string, got %T", alias)
	}
	if m.base.Kind() == reflect.Interface && !t.Implements(m.base) {
		return errors.Errorf("mpack: %s does not implement %s", t, m.base)
	}
	for _, e := range m.entries {
		if e.alias == alias {
			return errors.Errorf("mpack: alias %v is already mapped to %s", alias, e.typ)
		}
		if e.typ == t {
			return errors.Errorf("mpack: %s is already mapped to alias %v", t, e.alias)
		}
	}
	m.entries = append(m.entries, subTypeEntry{alias: alias, typ: t})
	return nil
}

type subTypeTarget struct {
	alias interface{}
	typ   reflect.Type
	conv  Converter
}

// subTypesConverter frames every instance of its base type as the
// two-element array [alias|nil, payload] and dispatches on the alias.
type subTypesConverter struct {
	base     reflect.Type
	baseConv Converter // nil when the base is an interface
	byAlias  map[interface{}]*subTypeTarget
	byType   map[reflect.Type]*subTypeTarget
}

func (c *Cache) makeSubTypes(m *SubTypeMapping) (Converter, error) {
	conv := &subTypesConverter{
		base:    m.base,
		byAlias: make(map[interface{}]*subTypeTarget, len(m.entries)),
		byType:  make(map[reflect.Type]*subTypeTarget, len(m.entries)),
	}
	if m.base.Kind() != reflect.Interface {
		bc, err := c.synthesizeInner(m.base)
		if err != nil {
			return nil, err
		}
		conv.baseConv = bc
	}
	for _, e := range m.entries {
		sub, err := c.GetOrMake(e.typ)
		if err != nil {
			return nil, err
		}
		t := &subTypeTarget{alias: e.alias, typ: e.typ, conv: sub}
		conv.byAlias[e.alias] = t
		conv.byType[e.typ] = t
	}
	return conv, nil
}

func (c *subTypesConverter) Write(w *Writer, v reflect.Value, sctx *Context) error {
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	inner := v
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return w.WriteNil()
		}
		inner = v.Elem()
	}
	rt := inner.Type()

	if rt == c.base && c.baseConv != nil {
		if err := w.WriteArrayHeader(2); err != nil {
			return err
		}
		if err := w.WriteNil(); err != nil {
			return err
		}
		return c.baseConv.Write(w, inner, sctx)
	}

	t := c.byType[rt]
	if t == nil {
		return &UnknownSubTypeError{Base: c.base, Runtime: rt}
	}
	if err := w.WriteArrayHeader(2); err != nil {
		return err
	}
	switch a := t.alias.(type) {
	case int64:
		if err := w.WriteInt(a); err != nil {
			return err
		}
	case string:
		if err := w.WriteString(a); err != nil {
			return err
		}
	}
	return t.conv.Write(w, inner, sctx)
}

func (c *subTypesConverter) Read(r *Reader, v reflect.Value, sctx *Context) error {
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	if v.Kind() == reflect.Interface && r.TryReadNil() {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}

	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	if n != 2 {
		return &EnvelopeError{Len: n}
	}

	if r.TryReadNil() {
		if c.baseConv == nil {
			return &UnknownAliasError{Alias: nil}
		}
		return c.readInto(r, v, c.base, c.baseConv, sctx)
	}

	pt, err := r.PeekType()
	if err != nil {
		return err
	}
	var alias interface{}
	switch pt {
	case TypeInt:
		a, err := r.ReadInt()
		if err != nil {
			return err
		}
		alias = a
	case TypeString:
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		alias = s
	default:
		return &WireError{Kind: "subtype alias", Pos: r.Position(), Err: errors.Errorf("unexpected %s", pt)}
	}

	t := c.byAlias[alias]
	if t == nil {
		return &UnknownAliasError{Alias: alias}
	}
	return c.readInto(r, v, t.typ, t.conv, sctx)
}

func (c *subTypesConverter) readInto(r *Reader, v reflect.Value, typ reflect.Type, conv Converter, sctx *Context) error {
	if v.Type() == typ {
		return conv.Read(r, v, sctx)
	}
	if v.Kind() == reflect.Interface {
		nv := reflect.New(typ).Elem()
		if err := conv.Read(r, nv, sctx); err != nil {
			return err
		}
		v.Set(nv)
		return nil
	}
	return errors.Errorf("mpack: cannot decode subtype %s into %s", typ, v.Type())
}
