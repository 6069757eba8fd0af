// Package serializer is the public entry point: it pairs the converter cache
// with pooled msgpack encoders/decoders and exposes serialize/deserialize
// over buffers and streams.
package serializer

import (
	"bytes"
	"context"
	"io"
	"reflect"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/webhookx-io/mpack/codec"
	"github.com/webhookx-io/mpack/config"
)

type Serializer struct {
	opts  *config.Options
	cache *codec.Cache
}

func New(opts *config.Options) *Serializer {
	if opts == nil {
		opts = config.New()
	}
	return &Serializer{
		opts: opts,
		cache: codec.NewCache(codec.SynthOptions{
			FlatMultiDim: opts.MultiDim == config.MultiDimFlat,
		}),
	}
}

// Default is the shared instance used by the package-level helpers.
var Default = New(nil)

func Serialize(val interface{}) ([]byte, error) {
	return Default.Serialize(val)
}

func Deserialize(b []byte, val interface{}) error {
	return Default.Deserialize(b, val)
}

func (s *Serializer) Serialize(val interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.SerializeWriter(&buf, val); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Serializer) SerializeWriter(w io.Writer, val interface{}) error {
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	cw := codec.WrapEncoder(enc, w)
	rv := reflect.ValueOf(val)
	if !rv.IsValid() {
		return cw.WriteNil()
	}
	conv, err := s.cache.GetOrMake(rv.Type())
	if err != nil {
		return err
	}
	return conv.Write(cw, rv, codec.NewContext(s.opts.MaxDepth))
}

// SerializeAs encodes val as the declared type t rather than its runtime
// type. This is how a polymorphic base is serialized at the top level: pass
// the base (or interface) type and any registered subtype value.
func (s *Serializer) SerializeAs(t reflect.Type, val interface{}) ([]byte, error) {
	conv, err := s.cache.GetOrMake(t)
	if err != nil {
		return nil, err
	}

	var rv reflect.Value
	if t.Kind() == reflect.Interface {
		rv = reflect.New(t).Elem()
		if val != nil {
			rv.Set(reflect.ValueOf(val))
		}
	} else {
		rv = reflect.ValueOf(val)
		if rv.Type() != t {
			return nil, errors.Errorf("value of type %s cannot be serialized as %s", rv.Type(), t)
		}
	}

	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	cw := codec.WrapEncoder(enc, &buf)
	if err := conv.Write(cw, rv, codec.NewContext(s.opts.MaxDepth)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Serializer) Deserialize(b []byte, val interface{}) error {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("val must be a non-nil pointer")
	}

	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)

	r := codec.WrapDecoderBytes(dec, b)
	conv, err := s.cache.GetOrMake(rv.Elem().Type())
	if err != nil {
		return err
	}
	return conv.Read(r, rv.Elem(), codec.NewContext(s.opts.MaxDepth))
}

func (s *Serializer) DeserializeReader(r io.Reader, val interface{}) error {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("val must be a non-nil pointer")
	}

	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)

	cr := codec.WrapDecoder(dec, r)
	conv, err := s.cache.GetOrMake(rv.Elem().Type())
	if err != nil {
		return err
	}
	return conv.Read(cr, rv.Elem(), codec.NewContext(s.opts.MaxDepth))
}

// SerializeContext streams the encoding to w with batched flushes,
// checking ctx for cancellation at flush boundaries.
func (s *Serializer) SerializeContext(ctx context.Context, w io.Writer, val interface{}) error {
	fw := codec.NewFlushWriter(w, s.opts.FlushThreshold)
	sctx := codec.NewContextWithCancel(ctx, s.opts.MaxDepth)

	rv := reflect.ValueOf(val)
	if !rv.IsValid() {
		if err := fw.SubWriter().WriteNil(); err != nil {
			return err
		}
		return fw.Flush(ctx)
	}
	conv, err := s.cache.GetOrMake(rv.Type())
	if err != nil {
		return err
	}
	if ac, ok := conv.(codec.AsyncConverter); ok {
		if err := ac.WriteAsync(ctx, fw, rv, sctx); err != nil {
			return err
		}
	} else {
		if err := conv.Write(fw.SubWriter(), rv, sctx); err != nil {
			return err
		}
	}
	return fw.Flush(ctx)
}

// DeserializeContext reads the encoding from r, refilling in batches of
// whole structures and checking ctx for cancellation between batches.
func (s *Serializer) DeserializeContext(ctx context.Context, r io.Reader, val interface{}) error {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("val must be a non-nil pointer")
	}

	conv, err := s.cache.GetOrMake(rv.Elem().Type())
	if err != nil {
		return err
	}
	sctx := codec.NewContextWithCancel(ctx, s.opts.MaxDepth)
	if ac, ok := conv.(codec.AsyncConverter); ok {
		sr := codec.NewStreamReader(r)
		return ac.ReadAsync(ctx, sr, rv.Elem(), sctx)
	}

	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	cr := codec.WrapDecoder(dec, r)
	return conv.Read(cr, rv.Elem(), sctx)
}

// RegisterConverter installs a custom converter for t. It fails once a
// converter for t exists; registrations must happen before first use.
func (s *Serializer) RegisterConverter(t reflect.Type, conv codec.Converter) error {
	return s.cache.Register(t, conv)
}

// RegisterSubTypes installs a polymorphic mapping for its base type. It
// fails once the base's converter has been synthesized.
func (s *Serializer) RegisterSubTypes(m *codec.SubTypeMapping) error {
	return s.cache.RegisterSubTypes(m)
}
