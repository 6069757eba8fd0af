package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Type is the wire-level family of the next value.
type Type int

const (
	TypeNil Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeArray
	TypeMap
	TypeBinary
	TypeExtension
)

func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeMap:
		return "map"
	case TypeBinary:
		return "binary"
	case TypeExtension:
		return "extension"
	}
	return "invalid"
}

// Reader is the byte-layer read collaborator. It wraps a msgpack Decoder.
// When constructed over a byte slice it additionally tracks offsets, which
// enables zero-copy raw spans and map keys.
type Reader struct {
	dec   *msgpack.Decoder
	input []byte // nil for stream inputs
	br    *bytes.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{dec: msgpack.NewDecoder(r)}
}

func NewReaderBytes(b []byte) *Reader {
	br := bytes.NewReader(b)
	return &Reader{dec: msgpack.NewDecoder(br), input: b, br: br}
}

// WrapDecoder reuses a pooled decoder for a stream input.
func WrapDecoder(dec *msgpack.Decoder, r io.Reader) *Reader {
	dec.Reset(r)
	return &Reader{dec: dec}
}

// WrapDecoderBytes reuses a pooled decoder for a byte-slice input.
func WrapDecoderBytes(dec *msgpack.Decoder, b []byte) *Reader {
	br := bytes.NewReader(b)
	dec.Reset(br)
	return &Reader{dec: dec, input: b, br: br}
}

// Position returns the offset of the next unread byte, or -1 for streams.
func (r *Reader) Position() int64 {
	if r.br == nil {
		return -1
	}
	return int64(len(r.input)) - int64(r.br.Len())
}

// PeekType classifies the next value without consuming it.
func (r *Reader) PeekType() (Type, error) {
	code, err := r.dec.PeekCode()
	if err != nil {
		return 0, wireErr(err, "type code", r.Position())
	}
	switch {
	case code == msgpcode.Nil:
		return TypeNil, nil
	case code == msgpcode.True, code == msgpcode.False:
		return TypeBool, nil
	case msgpcode.IsFixedNum(code),
		code == msgpcode.Uint8, code == msgpcode.Uint16, code == msgpcode.Uint32, code == msgpcode.Uint64,
		code == msgpcode.Int8, code == msgpcode.Int16, code == msgpcode.Int32, code == msgpcode.Int64:
		return TypeInt, nil
	case code == msgpcode.Float, code == msgpcode.Double:
		return TypeFloat, nil
	case msgpcode.IsString(code):
		return TypeString, nil
	case msgpcode.IsBin(code):
		return TypeBinary, nil
	case msgpcode.IsFixedArray(code), code == msgpcode.Array16, code == msgpcode.Array32:
		return TypeArray, nil
	case msgpcode.IsFixedMap(code), code == msgpcode.Map16, code == msgpcode.Map32:
		return TypeMap, nil
	case msgpcode.IsExt(code):
		return TypeExtension, nil
	}
	return 0, &WireError{Kind: "type code", Pos: r.Position(), Err: errors.Errorf("invalid code 0x%02x", code)}
}

func (r *Reader) ReadNil() error {
	return wireErr(r.dec.DecodeNil(), "nil", r.Position())
}

// TryReadNil consumes a nil value if one is next and reports whether it did.
func (r *Reader) TryReadNil() bool {
	code, err := r.dec.PeekCode()
	if err != nil || code != msgpcode.Nil {
		return false
	}
	return r.dec.DecodeNil() == nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.dec.DecodeBool()
	return v, wireErr(err, "bool", r.Position())
}

func (r *Reader) ReadInt() (int64, error) {
	v, err := r.dec.DecodeInt64()
	return v, wireErr(err, "int", r.Position())
}

func (r *Reader) ReadUint() (uint64, error) {
	v, err := r.dec.DecodeUint64()
	return v, wireErr(err, "uint", r.Position())
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.dec.DecodeFloat32()
	return v, wireErr(err, "float32", r.Position())
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.dec.DecodeFloat64()
	return v, wireErr(err, "float64", r.Position())
}

func (r *Reader) ReadString() (string, error) {
	v, err := r.dec.DecodeString()
	return v, wireErr(err, "string", r.Position())
}

func (r *Reader) ReadBytes() ([]byte, error) {
	v, err := r.dec.DecodeBytes()
	return v, wireErr(err, "binary", r.Position())
}

func (r *Reader) ReadTime() (time.Time, error) {
	v, err := r.dec.DecodeTime()
	return v, wireErr(err, "time", r.Position())
}

// ReadArrayHeader returns the element count, or -1 if the value is nil.
func (r *Reader) ReadArrayHeader() (int, error) {
	n, err := r.dec.DecodeArrayLen()
	return n, wireErr(err, "array header", r.Position())
}

// ReadMapHeader returns the entry count, or -1 if the value is nil.
func (r *Reader) ReadMapHeader() (int, error) {
	n, err := r.dec.DecodeMapLen()
	return n, wireErr(err, "map header", r.Position())
}

// Skip consumes the next value, descending into containers.
func (r *Reader) Skip() error {
	return wireErr(r.dec.Skip(), "skipped value", r.Position())
}

// ReadKeyBytes reads a map key as its raw UTF-8 bytes. On byte-slice inputs
// the returned span aliases the input; streams fall back to an allocating
// string read. ok is false, with nothing consumed, when the key is not a
// string.
func (r *Reader) ReadKeyBytes() (key []byte, ok bool, err error) {
	t, err := r.PeekType()
	if err != nil {
		return nil, false, err
	}
	if t != TypeString {
		return nil, false, nil
	}
	if r.input == nil {
		s, err := r.dec.DecodeString()
		if err != nil {
			return nil, false, wireErr(err, "map key", r.Position())
		}
		return []byte(s), true, nil
	}
	start := int(r.Position())
	code := r.input[start]
	var hdr, n int
	switch {
	case code >= msgpcode.FixedStrLow && code <= msgpcode.FixedStrHigh:
		hdr, n = 1, int(code&msgpcode.FixedStrMask)
	case code == msgpcode.Str8:
		if start+2 > len(r.input) {
			return nil, false, &WireError{Kind: "map key", Pos: int64(start), Err: io.ErrUnexpectedEOF}
		}
		hdr, n = 2, int(r.input[start+1])
	case code == msgpcode.Str16:
		if start+3 > len(r.input) {
			return nil, false, &WireError{Kind: "map key", Pos: int64(start), Err: io.ErrUnexpectedEOF}
		}
		hdr, n = 3, int(binary.BigEndian.Uint16(r.input[start+1:]))
	case code == msgpcode.Str32:
		if start+5 > len(r.input) {
			return nil, false, &WireError{Kind: "map key", Pos: int64(start), Err: io.ErrUnexpectedEOF}
		}
		hdr, n = 5, int(binary.BigEndian.Uint32(r.input[start+1:]))
	}
	if start+hdr+n > len(r.input) {
		return nil, false, &WireError{Kind: "map key", Pos: int64(start), Err: io.ErrUnexpectedEOF}
	}
	if err := r.dec.Skip(); err != nil {
		return nil, false, wireErr(err, "map key", r.Position())
	}
	return r.input[start+hdr : start+hdr+n], true, nil
}

// ReadRaw consumes exactly one value and returns its encoded bytes. On
// byte-slice inputs the span aliases the input and owned is false; streams
// return a private copy.
func (r *Reader) ReadRaw() (raw []byte, owned bool, err error) {
	if r.input != nil {
		start := r.Position()
		if err := r.dec.Skip(); err != nil {
			return nil, false, wireErr(err, "raw value", r.Position())
		}
		return r.input[start:r.Position()], false, nil
	}
	msg, err := r.dec.DecodeRaw()
	if err != nil {
		return nil, false, wireErr(err, "raw value", r.Position())
	}
	return []byte(msg), true, nil
}
