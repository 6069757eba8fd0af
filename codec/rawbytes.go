package codec

import (
	"bytes"
	"context"
	"io"
	"reflect"
)

// RawBytes carries one encoded MessagePack value verbatim. A value produced
// by decode may borrow the input buffer (Owned reports false); ToOwned
// promotes it to a private copy when it must outlive the input.
//
// The zero RawBytes holds no value and encodes as nil.
type RawBytes struct {
	data  []byte
	owned bool
}

// NewRawBytes wraps pre-encoded bytes the caller owns.
func NewRawBytes(b []byte) RawBytes {
	return RawBytes{data: b, owned: true}
}

func (r RawBytes) Bytes() []byte {
	return r.data
}

func (r RawBytes) Len() int {
	return len(r.data)
}

func (r RawBytes) Owned() bool {
	return r.owned
}

// ToOwned copies the bytes into fresh storage and marks ownership.
// Idempotent.
func (r *RawBytes) ToOwned() {
	if r.owned {
		return
	}
	cp := make([]byte, len(r.data))
	copy(cp, r.data)
	r.data = cp
	r.owned = true
}

// Equal compares by byte content; ownership does not participate.
func (r RawBytes) Equal(o RawBytes) bool {
	return bytes.Equal(r.data, o.data)
}

var rawBytesType = reflect.TypeOf(RawBytes{})

func init() {
	RegisterPrimitive(rawBytesType, rawBytesConverter{})
}

type rawBytesConverter struct{}

func (rawBytesConverter) Write(w *Writer, v reflect.Value, _ *Context) error {
	rb := v.Interface().(RawBytes)
	if rb.Len() == 0 {
		return w.WriteNil()
	}
	return w.WriteRaw(rb.data)
}

func (rawBytesConverter) Read(r *Reader, v reflect.Value, _ *Context) error {
	raw, owned, err := r.ReadRaw()
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(RawBytes{data: raw, owned: owned}))
	return nil
}

func (rawBytesConverter) PreferAsync() bool {
	return true
}

func (c rawBytesConverter) WriteAsync(ctx context.Context, fw *FlushWriter, v reflect.Value, sctx *Context) error {
	rb := v.Interface().(RawBytes)
	if rb.Len() == 0 {
		if err := fw.SubWriter().WriteNil(); err != nil {
			return err
		}
		return fw.FlushIfAppropriate(ctx)
	}
	return fw.WriteDirect(ctx, rb.data)
}

func (c rawBytesConverter) ReadAsync(ctx context.Context, sr *StreamReader, v reflect.Value, sctx *Context) error {
	avail, err := sr.FillStructures(ctx, 1, 1)
	if err != nil {
		return err
	}
	if avail < 1 {
		return &WireError{Kind: "raw value", Pos: -1, Err: io.ErrUnexpectedEOF}
	}
	r := sr.Reader()
	raw, _, err := r.ReadRaw()
	if err != nil {
		return err
	}
	// The stream buffer is reused; take a private copy.
	cp := make([]byte, len(raw))
	copy(cp, raw)
	v.Set(reflect.ValueOf(RawBytes{data: cp, owned: true}))
	sr.Advance(r.Position())
	return nil
}
