package codec

import (
	"reflect"

	"github.com/pkg/errors"
)

// ptrConverter handles the nullable shape. It is transparent for depth
// accounting.
type ptrConverter struct {
	elemType reflect.Type
	elem     Converter
}

func (c *ptrConverter) Write(w *Writer, v reflect.Value, sctx *Context) error {
	if v.IsNil() {
		return w.WriteNil()
	}
	return c.elem.Write(w, v.Elem(), sctx)
}

func (c *ptrConverter) Read(r *Reader, v reflect.Value, sctx *Context) error {
	if r.TryReadNil() {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	nv := reflect.New(c.elemType)
	if err := c.elem.Read(r, nv.Elem(), sctx); err != nil {
		return err
	}
	v.Set(nv)
	return nil
}

type sliceConverter struct {
	typ  reflect.Type
	elem Converter
}

func (c *sliceConverter) Write(w *Writer, v reflect.Value, sctx *Context) error {
	if v.IsNil() {
		return w.WriteNil()
	}
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	if err := w.WriteArrayHeader(v.Len()); err != nil {
		return err
	}
	for i := 0; i < v.Len(); i++ {
		if err := c.elem.Write(w, v.Index(i), sctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *sliceConverter) Read(r *Reader, v reflect.Value, sctx *Context) error {
	if r.TryReadNil() {
		v.Set(reflect.Zero(c.typ))
		return nil
	}
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	if n < 0 {
		v.Set(reflect.Zero(c.typ))
		return nil
	}
	s := reflect.MakeSlice(c.typ, n, n)
	for i := 0; i < n; i++ {
		if err := c.elem.Read(r, s.Index(i), sctx); err != nil {
			return err
		}
	}
	v.Set(s)
	return nil
}

type fixedArrayConverter struct {
	typ  reflect.Type
	elem Converter
}

func (c *fixedArrayConverter) Write(w *Writer, v reflect.Value, sctx *Context) error {
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	if err := w.WriteArrayHeader(v.Len()); err != nil {
		return err
	}
	for i := 0; i < v.Len(); i++ {
		if err := c.elem.Write(w, v.Index(i), sctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *fixedArrayConverter) Read(r *Reader, v reflect.Value, sctx *Context) error {
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if i >= v.Len() {
			// Extra entries are not an error.
			if err := r.Skip(); err != nil {
				return err
			}
			continue
		}
		if err := c.elem.Read(r, v.Index(i), sctx); err != nil {
			return err
		}
	}
	for i := n; i < v.Len(); i++ {
		v.Index(i).Set(reflect.Zero(c.typ.Elem()))
	}
	return nil
}

// flatArrayConverter is the flat layout for two-dimensional fixed arrays:
// one array of rows*cols elements in row-major order.
type flatArrayConverter struct {
	rows     int
	cols     int
	elemType reflect.Type
	elem     Converter
}

func (c *flatArrayConverter) Write(w *Writer, v reflect.Value, sctx *Context) error {
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	if err := w.WriteArrayHeader(c.rows * c.cols); err != nil {
		return err
	}
	for i := 0; i < c.rows; i++ {
		row := v.Index(i)
		for j := 0; j < c.cols; j++ {
			if err := c.elem.Write(w, row.Index(j), sctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *flatArrayConverter) Read(r *Reader, v reflect.Value, sctx *Context) error {
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	if n != c.rows*c.cols {
		return &WireError{
			Kind: "flat array",
			Pos:  r.Position(),
			Err:  errors.Errorf("expected %d elements, got %d", c.rows*c.cols, n),
		}
	}
	for i := 0; i < c.rows; i++ {
		row := v.Index(i)
		for j := 0; j < c.cols; j++ {
			if err := c.elem.Read(r, row.Index(j), sctx); err != nil {
				return err
			}
		}
	}
	return nil
}

type mapConverter struct {
	typ reflect.Type
	key Converter
	val Converter
}

func (c *mapConverter) Write(w *Writer, v reflect.Value, sctx *Context) error {
	if v.IsNil() {
		return w.WriteNil()
	}
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	if err := w.WriteMapHeader(v.Len()); err != nil {
		return err
	}
	iter := v.MapRange()
	for iter.Next() {
		if err := c.key.Write(w, iter.Key(), sctx); err != nil {
			return err
		}
		if err := c.val.Write(w, iter.Value(), sctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *mapConverter) Read(r *Reader, v reflect.Value, sctx *Context) error {
	if r.TryReadNil() {
		v.Set(reflect.Zero(c.typ))
		return nil
	}
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	if n < 0 {
		v.Set(reflect.Zero(c.typ))
		return nil
	}
	m := reflect.MakeMapWithSize(c.typ, n)
	for i := 0; i < n; i++ {
		kv := reflect.New(c.typ.Key()).Elem()
		if err := c.key.Read(r, kv, sctx); err != nil {
			return err
		}
		vv := reflect.New(c.typ.Elem()).Elem()
		if err := c.val.Read(r, vv, sctx); err != nil {
			return err
		}
		m.SetMapIndex(kv, vv)
	}
	v.Set(m)
	return nil
}
