package codec

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Writer is the byte-layer write collaborator. It wraps a msgpack Encoder and
// keeps the destination around so pre-encoded spans can be blitted without
// re-encoding. The encoder writes through on every call, so blits and encoded
// values stay ordered.
type Writer struct {
	enc *msgpack.Encoder
	dst io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: msgpack.NewEncoder(w), dst: w}
}

// WrapEncoder reuses a pooled encoder.
func WrapEncoder(enc *msgpack.Encoder, w io.Writer) *Writer {
	enc.Reset(w)
	return &Writer{enc: enc, dst: w}
}

func (w *Writer) WriteNil() error {
	return errors.Wrap(w.enc.EncodeNil(), "write nil")
}

func (w *Writer) WriteBool(v bool) error {
	return errors.Wrap(w.enc.EncodeBool(v), "write bool")
}

func (w *Writer) WriteInt(v int64) error {
	return errors.Wrap(w.enc.EncodeInt(v), "write int")
}

func (w *Writer) WriteUint(v uint64) error {
	return errors.Wrap(w.enc.EncodeUint(v), "write uint")
}

func (w *Writer) WriteFloat32(v float32) error {
	return errors.Wrap(w.enc.EncodeFloat32(v), "write float32")
}

func (w *Writer) WriteFloat64(v float64) error {
	return errors.Wrap(w.enc.EncodeFloat64(v), "write float64")
}

func (w *Writer) WriteString(v string) error {
	return errors.Wrap(w.enc.EncodeString(v), "write string")
}

func (w *Writer) WriteBytes(v []byte) error {
	return errors.Wrap(w.enc.EncodeBytes(v), "write binary")
}

func (w *Writer) WriteTime(v time.Time) error {
	return errors.Wrap(w.enc.EncodeTime(v), "write time")
}

func (w *Writer) WriteArrayHeader(n int) error {
	return errors.Wrap(w.enc.EncodeArrayLen(n), "write array header")
}

func (w *Writer) WriteMapHeader(n int) error {
	return errors.Wrap(w.enc.EncodeMapLen(n), "write map header")
}

// WriteRaw blits pre-encoded bytes verbatim.
func (w *Writer) WriteRaw(b []byte) error {
	_, err := w.dst.Write(b)
	return errors.Wrap(err, "write raw")
}

// encodedIntLen is the wire size of n encoded as a MessagePack integer.
// Property indexes are non-negative, so only the unsigned forms matter.
func encodedIntLen(n int) int {
	switch {
	case n < 128:
		return 1
	case n < 256:
		return 2
	case n < 65536:
		return 3
	default:
		return 5
	}
}
