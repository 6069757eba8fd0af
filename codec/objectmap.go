package codec

import "reflect"

// objectMapConverter encodes an object as a MessagePack map of property name
// to value. Serialization walks the properties in struct declaration order,
// which is the normative wire order. Decode matches keys against raw UTF-8
// byte spans and skips entries it does not recognize.
type objectMapConverter struct {
	typ            reflect.Type
	serializable   []*property
	deserializable map[string]*property
	hooks          hooks
}

func (c *objectMapConverter) Write(w *Writer, v reflect.Value, sctx *Context) error {
	if c.hooks.before {
		v = callBefore(v)
	}
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	count := 0
	for _, p := range c.serializable {
		if p.include(v) {
			count++
		}
	}
	if err := w.WriteMapHeader(count); err != nil {
		return err
	}
	for _, p := range c.serializable {
		if !p.include(v) {
			continue
		}
		if err := w.WriteRaw(p.nameBytes); err != nil {
			return err
		}
		if err := p.conv.Write(w, p.value(v), sctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectMapConverter) Read(r *Reader, v reflect.Value, sctx *Context) error {
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, ok, err := r.ReadKeyBytes()
		if err != nil {
			return err
		}
		if !ok {
			// Non-string key: skip the whole entry.
			if err := r.Skip(); err != nil {
				return err
			}
			if err := r.Skip(); err != nil {
				return err
			}
			continue
		}
		p := c.deserializable[string(key)]
		if p == nil {
			if err := r.Skip(); err != nil {
				return err
			}
			continue
		}
		if err := p.conv.Read(r, v.FieldByIndex(p.field), sctx); err != nil {
			return err
		}
	}
	if c.hooks.after {
		callAfter(v)
	}
	return nil
}
