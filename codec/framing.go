package codec

import (
	"bytes"
	"context"
	"io"
	"reflect"

	"github.com/pkg/errors"
)

const (
	// DefaultFlushThreshold is the buffered-byte count past which the flush
	// signal fires.
	DefaultFlushThreshold = 4096

	readChunkSize = 4096
)

// FlushWriter batches encoded output in memory and flushes it to the
// destination between whole structures. It is the async write collaborator:
// converters write through SubWriter and honor IsTimeToFlush /
// FlushIfAppropriate at structure boundaries only, so a flush never splits a
// single value's bytes.
type FlushWriter struct {
	dst       io.Writer
	threshold int
	buf       *bytes.Buffer
	sub       *Writer
}

func NewFlushWriter(dst io.Writer, threshold int) *FlushWriter {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	buf := new(bytes.Buffer)
	return &FlushWriter{
		dst:       dst,
		threshold: threshold,
		buf:       buf,
		sub:       NewWriter(buf),
	}
}

// SubWriter returns the synchronous writer over the batch buffer.
func (w *FlushWriter) SubWriter() *Writer {
	return w.sub
}

// IsTimeToFlush reports whether the batch buffer has grown past the
// threshold. It is consulted between property writes.
func (w *FlushWriter) IsTimeToFlush(sctx *Context, sub *Writer) bool {
	return w.buf.Len() >= w.threshold
}

// FlushIfAppropriate flushes the batch buffer when it is past the threshold.
// Cancellation is checked here, at the suspension point.
func (w *FlushWriter) FlushIfAppropriate(ctx context.Context) error {
	if err := cancelErr(ctx); err != nil {
		return err
	}
	if w.buf.Len() < w.threshold {
		return nil
	}
	return w.Flush(ctx)
}

// Flush writes all buffered bytes to the destination.
func (w *FlushWriter) Flush(ctx context.Context) error {
	if err := cancelErr(ctx); err != nil {
		return err
	}
	if w.buf.Len() == 0 {
		return nil
	}
	_, err := w.dst.Write(w.buf.Bytes())
	w.buf.Reset()
	return errors.Wrap(err, "flush")
}

// WriteDirect flushes pending batched output, then writes b straight to the
// destination. The RawBytes converter uses it for every non-empty payload so
// the bytes never pass through the batch buffer.
func (w *FlushWriter) WriteDirect(ctx context.Context, b []byte) error {
	if err := w.Flush(ctx); err != nil {
		return err
	}
	_, err := w.dst.Write(b)
	return errors.Wrap(err, "direct write")
}

// StreamReader buffers a byte stream and hands out synchronous readers over
// prefixes that contain only whole structures. The decode side of async
// batching: converters read as many whole properties as are buffered, then
// Advance past what they consumed and refill. An entry consumed halfway (key
// read, value missing) is not advanced past, so the next fill re-presents the
// key.
type StreamReader struct {
	src io.Reader
	buf []byte
	off int
	eof bool
}

func NewStreamReader(src io.Reader) *StreamReader {
	return &StreamReader{src: src}
}

// Reader returns a synchronous reader positioned at the first unconsumed
// byte. Its Position is relative to that point and is what Advance expects.
func (r *StreamReader) Reader() *Reader {
	return NewReaderBytes(r.buf[r.off:])
}

// Advance marks n bytes as consumed.
func (r *StreamReader) Advance(n int64) {
	r.off += int(n)
	if r.off >= len(r.buf) {
		r.buf = r.buf[:0]
		r.off = 0
	}
}

// EnsureBuffered makes at least n bytes available unless the stream ends
// first.
func (r *StreamReader) EnsureBuffered(ctx context.Context, n int) error {
	for len(r.buf)-r.off < n && !r.eof {
		if err := r.fill(ctx); err != nil {
			return err
		}
	}
	return nil
}

// FillStructures buffers until at least min whole structures are available
// (counting at most budget) and returns how many are buffered. Fewer than min
// are returned only when the stream ends.
func (r *StreamReader) FillStructures(ctx context.Context, min, budget int) (int, error) {
	if budget < min {
		budget = min
	}
	for {
		count, _ := countStructures(r.buf[r.off:], budget)
		if count >= min || r.eof {
			return count, nil
		}
		if err := r.fill(ctx); err != nil {
			return 0, err
		}
	}
}

func (r *StreamReader) fill(ctx context.Context) error {
	if err := cancelErr(ctx); err != nil {
		return err
	}
	if r.off > 0 {
		r.buf = append(r.buf[:0], r.buf[r.off:]...)
		r.off = 0
	}
	chunk := make([]byte, readChunkSize)
	n, err := r.src.Read(chunk)
	r.buf = append(r.buf, chunk[:n]...)
	if err == io.EOF {
		r.eof = true
		return nil
	}
	return errors.Wrap(err, "stream read")
}

// countStructures counts whole top-level structures in b, up to max, and
// returns the offset just past the last whole one.
func countStructures(b []byte, max int) (count int, end int64) {
	r := NewReaderBytes(b)
	for count < max {
		if err := r.Skip(); err != nil {
			return count, end
		}
		count++
		end = r.Position()
	}
	return count, end
}

// writeAsyncValue writes one value through a converter on the async path,
// falling back to a buffered synchronous write for converters that have no
// async side.
func writeAsyncValue(ctx context.Context, fw *FlushWriter, conv Converter, v reflect.Value, sctx *Context) error {
	if ac, ok := conv.(AsyncConverter); ok {
		return ac.WriteAsync(ctx, fw, v, sctx)
	}
	if err := conv.Write(fw.SubWriter(), v, sctx); err != nil {
		return err
	}
	return fw.FlushIfAppropriate(ctx)
}

// readAsyncValue reads one value through a converter on the async path.
func readAsyncValue(ctx context.Context, sr *StreamReader, conv Converter, v reflect.Value, sctx *Context) error {
	if ac, ok := conv.(AsyncConverter); ok {
		return ac.ReadAsync(ctx, sr, v, sctx)
	}
	return readSyncFromStream(ctx, conv, sr, v, sctx)
}

// readSyncFromStream drives a synchronous converter against the stream by
// buffering one whole structure first.
func readSyncFromStream(ctx context.Context, conv Converter, sr *StreamReader, v reflect.Value, sctx *Context) error {
	avail, err := sr.FillStructures(ctx, 1, 1)
	if err != nil {
		return err
	}
	if avail < 1 {
		return &WireError{Kind: "value", Pos: -1, Err: io.ErrUnexpectedEOF}
	}
	r := sr.Reader()
	if err := conv.Read(r, v, sctx); err != nil {
		return err
	}
	sr.Advance(r.Position())
	return nil
}
