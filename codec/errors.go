package codec

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrDepthExceeded is returned when a value nests deeper than the configured
// maximum depth.
var ErrDepthExceeded = errors.New("maximum nesting depth exceeded")

// NotSupportedError is returned when a converter is requested for a type the
// engine cannot codec (chan, func, complex, unsafe pointer, or an interface
// without a registered subtype mapping).
type NotSupportedError struct {
	Type reflect.Type
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("mpack: type %s is not supported", e.Type)
}

// UnknownAliasError is returned on decode when a polymorphic envelope carries
// an alias with no registered subtype.
type UnknownAliasError struct {
	Alias interface{}
}

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("mpack: unknown subtype alias %v", e.Alias)
}

// UnknownSubTypeError is returned on encode when the runtime type is neither
// the declared base nor a registered subtype.
type UnknownSubTypeError struct {
	Base    reflect.Type
	Runtime reflect.Type
}

func (e *UnknownSubTypeError) Error() string {
	return fmt.Sprintf("mpack: runtime type %s is not a registered subtype of %s", e.Runtime, e.Base)
}

// EnvelopeError is returned when a polymorphic envelope is not a two-element
// array.
type EnvelopeError struct {
	Len int
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("mpack: polymorphic envelope must have 2 elements, got %d", e.Len)
}

// WireError wraps a byte-layer failure with the wire construct being read and
// the position it was read at. Pos is -1 when the input is a stream.
type WireError struct {
	Kind string
	Pos  int64
	Err  error
}

func (e *WireError) Error() string {
	return fmt.Sprintf("mpack: reading %s at offset %d: %v", e.Kind, e.Pos, e.Err)
}

func (e *WireError) Unwrap() error {
	return e.Err
}

func wireErr(err error, kind string, pos int64) error {
	if err == nil {
		return nil
	}
	return &WireError{Kind: kind, Pos: pos, Err: err}
}
