package codec

import (
	"reflect"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// The static primitive registry. Consulted after the instance cache, so a
// user-registered converter always wins over a built-in.
var (
	primitiveMux      sync.RWMutex
	primitiveRegistry = make(map[reflect.Type]Converter)
)

// RegisterPrimitive installs a built-in converter for t. Intended for
// package-init time; entries are never removed.
func RegisterPrimitive(t reflect.Type, conv Converter) {
	primitiveMux.Lock()
	defer primitiveMux.Unlock()
	primitiveRegistry[t] = conv
}

func lookupPrimitive(t reflect.Type) Converter {
	primitiveMux.RLock()
	defer primitiveMux.RUnlock()
	return primitiveRegistry[t]
}

func init() {
	ints := intConverter{}
	for _, v := range []interface{}{int(0), int8(0), int16(0), int32(0), int64(0)} {
		RegisterPrimitive(reflect.TypeOf(v), ints)
	}
	uints := uintConverter{}
	for _, v := range []interface{}{uint(0), uint8(0), uint16(0), uint32(0), uint64(0)} {
		RegisterPrimitive(reflect.TypeOf(v), uints)
	}
	RegisterPrimitive(reflect.TypeOf(false), boolConverter{})
	RegisterPrimitive(reflect.TypeOf(""), stringConverter{})
	RegisterPrimitive(reflect.TypeOf(float32(0)), float32Converter{})
	RegisterPrimitive(reflect.TypeOf(float64(0)), float64Converter{})
	RegisterPrimitive(reflect.TypeOf([]byte(nil)), bytesConverter{})
	RegisterPrimitive(reflect.TypeOf(time.Time{}), timeConverter{})
}

// enumConverterFor maps a named scalar type onto the converter for its
// underlying kind; the wire form is the underlying value.
func enumConverterFor(t reflect.Type) (Converter, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intConverter{}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintConverter{}, nil
	case reflect.String:
		return stringConverter{}, nil
	case reflect.Bool:
		return boolConverter{}, nil
	case reflect.Float32:
		return float32Converter{}, nil
	case reflect.Float64:
		return float64Converter{}, nil
	}
	return nil, &NotSupportedError{Type: t}
}

type intConverter struct{}

func (intConverter) Write(w *Writer, v reflect.Value, _ *Context) error {
	return w.WriteInt(v.Int())
}

func (intConverter) Read(r *Reader, v reflect.Value, _ *Context) error {
	n, err := r.ReadInt()
	if err != nil {
		return err
	}
	if v.OverflowInt(n) {
		return errors.Errorf("mpack: %d overflows %s", n, v.Type())
	}
	v.SetInt(n)
	return nil
}

type uintConverter struct{}

func (uintConverter) Write(w *Writer, v reflect.Value, _ *Context) error {
	return w.WriteUint(v.Uint())
}

func (uintConverter) Read(r *Reader, v reflect.Value, _ *Context) error {
	n, err := r.ReadUint()
	if err != nil {
		return err
	}
	if v.OverflowUint(n) {
		return errors.Errorf("mpack: %d overflows %s", n, v.Type())
	}
	v.SetUint(n)
	return nil
}

type boolConverter struct{}

func (boolConverter) Write(w *Writer, v reflect.Value, _ *Context) error {
	return w.WriteBool(v.Bool())
}

func (boolConverter) Read(r *Reader, v reflect.Value, _ *Context) error {
	b, err := r.ReadBool()
	if err != nil {
		return err
	}
	v.SetBool(b)
	return nil
}

type stringConverter struct{}

func (stringConverter) Write(w *Writer, v reflect.Value, _ *Context) error {
	return w.WriteString(v.String())
}

func (stringConverter) Read(r *Reader, v reflect.Value, _ *Context) error {
	s, err := r.ReadString()
	if err != nil {
		return err
	}
	v.SetString(s)
	return nil
}

type float32Converter struct{}

func (float32Converter) Write(w *Writer, v reflect.Value, _ *Context) error {
	return w.WriteFloat32(float32(v.Float()))
}

func (float32Converter) Read(r *Reader, v reflect.Value, _ *Context) error {
	f, err := r.ReadFloat32()
	if err != nil {
		return err
	}
	v.SetFloat(float64(f))
	return nil
}

type float64Converter struct{}

func (float64Converter) Write(w *Writer, v reflect.Value, _ *Context) error {
	return w.WriteFloat64(v.Float())
}

func (float64Converter) Read(r *Reader, v reflect.Value, _ *Context) error {
	f, err := r.ReadFloat64()
	if err != nil {
		return err
	}
	v.SetFloat(f)
	return nil
}

type bytesConverter struct{}

func (bytesConverter) Write(w *Writer, v reflect.Value, _ *Context) error {
	if v.IsNil() {
		return w.WriteNil()
	}
	return w.WriteBytes(v.Bytes())
}

func (bytesConverter) Read(r *Reader, v reflect.Value, _ *Context) error {
	if r.TryReadNil() {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	b, err := r.ReadBytes()
	if err != nil {
		return err
	}
	v.SetBytes(b)
	return nil
}

type timeConverter struct{}

func (timeConverter) Write(w *Writer, v reflect.Value, _ *Context) error {
	return w.WriteTime(v.Interface().(time.Time))
}

func (timeConverter) Read(r *Reader, v reflect.Value, _ *Context) error {
	tm, err := r.ReadTime()
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(tm))
	return nil
}
