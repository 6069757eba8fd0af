// Package codec implements the shape-directed MessagePack converter engine.
//
// A Converter is synthesized once per Go type and cached; it encodes and
// decodes values of that type against the Reader/Writer byte layer. While a
// type is being synthesized the cache holds a forwarding cell for it that
// blocks its users until synthesis completes; no converter changes after
// that, so a converter tree is immutable and safe to share across goroutines.
package codec

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
)

// Converter is the codec for a single type. Read and Write must be inverses
// on every value the type admits.
type Converter interface {
	Read(r *Reader, v reflect.Value, sctx *Context) error
	Write(w *Writer, v reflect.Value, sctx *Context) error
}

// AsyncConverter is implemented by converters that participate in batched
// streaming. PreferAsync reports whether the converter wants the underlying
// stream directly instead of the batch buffer.
type AsyncConverter interface {
	Converter
	ReadAsync(ctx context.Context, sr *StreamReader, v reflect.Value, sctx *Context) error
	WriteAsync(ctx context.Context, fw *FlushWriter, v reflect.Value, sctx *Context) error
	PreferAsync() bool
}

func prefersAsync(c Converter) bool {
	ac, ok := c.(AsyncConverter)
	return ok && ac.PreferAsync()
}

// Context carries per-call state: the remaining nesting depth and an optional
// cancellation handle. One Context lives for exactly one serialize or
// deserialize call and is never shared.
type Context struct {
	remaining int
	cancel    context.Context
}

func NewContext(maxDepth int) *Context {
	return &Context{remaining: maxDepth}
}

func NewContextWithCancel(ctx context.Context, maxDepth int) *Context {
	return &Context{remaining: maxDepth, cancel: ctx}
}

// StepIn consumes one level of nesting. Every container converter calls it
// before descending and pairs it with StepOut.
func (c *Context) StepIn() error {
	if c.remaining <= 0 {
		return ErrDepthExceeded
	}
	c.remaining--
	return nil
}

func (c *Context) StepOut() {
	c.remaining++
}

// Err reports cancellation of the handle given to NewContextWithCancel. No
// converter polls it: the synchronous paths never block, and the async paths
// check the ctx argument they are given at each suspension point.
func (c *Context) Err() error {
	if c.cancel == nil {
		return nil
	}
	if err := c.cancel.Err(); err != nil {
		return errors.Wrap(err, "serialization cancelled")
	}
	return nil
}

func cancelErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "serialization cancelled")
	}
	return nil
}
