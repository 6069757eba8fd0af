package codec

import (
	"context"
	"io"
	"reflect"
	"sort"

	"github.com/pkg/errors"

	"github.com/webhookx-io/mpack/pkg/pool"
)

// Scratch buffers for the include-index computation. Borrowed slices are
// returned on every exit path.
var indexPool = pool.New(func() []int { return make([]int, 0, 16) })

// objectArrayConverter encodes an object whose properties carry integer keys.
// The wire form is an array indexed by key with nil holes, or, when
// should-serialize predicates thin the property set enough, a map of integer
// key to value. Decode accepts either form.
type objectArrayConverter struct {
	typ        reflect.Type
	slots      []*property // index = declared key; nil = hole
	predicated bool
	anyAsync   bool
	hooks      hooks
}

func newObjectArrayConverter(t reflect.Type, slots []*property, h hooks) *objectArrayConverter {
	c := &objectArrayConverter{typ: t, slots: slots, hooks: h}
	for _, p := range slots {
		if p == nil {
			continue
		}
		if p.predicated() {
			c.predicated = true
		}
		if p.preferAsync {
			c.anyAsync = true
		}
	}
	return c
}

func (c *objectArrayConverter) slotAt(i int) *property {
	if i < 0 || i >= len(c.slots) {
		return nil
	}
	return c.slots[i]
}

func (c *objectArrayConverter) Write(w *Writer, v reflect.Value, sctx *Context) error {
	if c.hooks.before {
		v = callBefore(v)
	}
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	if !c.predicated || len(c.slots) == 0 {
		if err := w.WriteArrayHeader(len(c.slots)); err != nil {
			return err
		}
		for _, p := range c.slots {
			if p == nil {
				if err := w.WriteNil(); err != nil {
					return err
				}
				continue
			}
			if err := p.conv.Write(w, p.value(v), sctx); err != nil {
				return err
			}
		}
		return nil
	}

	idxs := indexPool.Get()
	defer func() { indexPool.Put(idxs[:0]) }()
	for i, p := range c.slots {
		if p != nil && p.include(v) {
			idxs = append(idxs, i)
		}
	}
	if len(idxs) == 0 {
		return w.WriteArrayHeader(0)
	}

	k := idxs[len(idxs)-1]
	mapOverhead := encodedIntLen(k) * len(idxs)
	arrayOverhead := (k + 1) - len(idxs)
	if mapOverhead < arrayOverhead {
		if err := w.WriteMapHeader(len(idxs)); err != nil {
			return err
		}
		for _, i := range idxs {
			if err := w.WriteInt(int64(i)); err != nil {
				return err
			}
			p := c.slots[i]
			if err := p.conv.Write(w, p.value(v), sctx); err != nil {
				return err
			}
		}
		return nil
	}

	if err := w.WriteArrayHeader(k + 1); err != nil {
		return err
	}
	next := 0
	for i := 0; i <= k; i++ {
		if next < len(idxs) && idxs[next] == i {
			next++
			p := c.slots[i]
			if err := p.conv.Write(w, p.value(v), sctx); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteNil(); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectArrayConverter) Read(r *Reader, v reflect.Value, sctx *Context) error {
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	t, err := r.PeekType()
	if err != nil {
		return err
	}
	switch t {
	case TypeMap:
		n, err := r.ReadMapHeader()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			idx, err := r.ReadInt()
			if err != nil {
				return err
			}
			p := c.slotAt(int(idx))
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
	case TypeArray:
		n, err := r.ReadArrayHeader()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			p := c.slotAt(i)
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
	default:
		return &WireError{Kind: "object", Pos: r.Position(), Err: errors.Errorf("unexpected %s", t)}
	}

	if c.hooks.after {
		callAfter(v)
	}
	return nil
}

func (c *objectArrayConverter) PreferAsync() bool {
	return c.anyAsync
}

// WriteAsync encodes with batched flushing. Consecutive runs of properties
// that do not prefer async are written synchronously into the batch buffer,
// with the flush signal honored between properties; a property that prefers
// async is handed the stream with at most one such write in flight. Wire
// order always equals declaration (or selection) order, and the header count
// equals the number of property writes that follow.
func (c *objectArrayConverter) WriteAsync(ctx context.Context, fw *FlushWriter, v reflect.Value, sctx *Context) error {
	if c.hooks.before {
		v = callBefore(v)
	}
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	sub := fw.SubWriter()

	asMap := false
	n := len(c.slots)
	var idxs []int
	if c.predicated && len(c.slots) > 0 {
		scratch := indexPool.Get()
		defer func() { indexPool.Put(scratch[:0]) }()
		for i, p := range c.slots {
			if p != nil && p.include(v) {
				scratch = append(scratch, i)
			}
		}
		if len(scratch) == 0 {
			if err := sub.WriteArrayHeader(0); err != nil {
				return err
			}
			return fw.FlushIfAppropriate(ctx)
		}
		idxs = scratch
		k := idxs[len(idxs)-1]
		if encodedIntLen(k)*len(idxs) < (k+1)-len(idxs) {
			asMap = true
			n = len(idxs)
		} else {
			n = k + 1
		}
	}

	// propAt resolves element i of the chosen wire form to the property whose
	// value it carries, or nil for a hole.
	propAt := func(i int) *property {
		if asMap {
			return c.slots[idxs[i]]
		}
		p := c.slotAt(i)
		if p == nil {
			return nil
		}
		if idxs != nil {
			at := sort.SearchInts(idxs, i)
			if at >= len(idxs) || idxs[at] != i {
				return nil
			}
		}
		return p
	}
	wantsAsync := func(i int) bool {
		p := propAt(i)
		return p != nil && p.preferAsync
	}
	writeSyncElement := func(i int) error {
		if asMap {
			if err := sub.WriteInt(int64(idxs[i])); err != nil {
				return err
			}
		}
		p := propAt(i)
		if p == nil {
			return sub.WriteNil()
		}
		return p.conv.Write(sub, p.value(v), sctx)
	}

	if asMap {
		if err := sub.WriteMapHeader(n); err != nil {
			return err
		}
	} else {
		if err := sub.WriteArrayHeader(n); err != nil {
			return err
		}
	}

	i := 0
	for i < n {
		runEnd := i
		for runEnd < n && !wantsAsync(runEnd) {
			runEnd++
		}
		for i < runEnd {
			for i < runEnd && !fw.IsTimeToFlush(sctx, sub) {
				if err := writeSyncElement(i); err != nil {
					return err
				}
				i++
			}
			if err := fw.FlushIfAppropriate(ctx); err != nil {
				return err
			}
		}
		for i < n && wantsAsync(i) {
			p := propAt(i)
			if asMap {
				if err := sub.WriteInt(int64(idxs[i])); err != nil {
					return err
				}
			}
			if err := writeAsyncValue(ctx, fw, p.conv, p.value(v), sctx); err != nil {
				return err
			}
			i++
		}
	}
	return nil
}

// ReadAsync decodes with batched refills: it reads as many whole properties
// as the buffered structures allow, surrendering the buffer to the stream
// when the next property prefers async. In map form the unit is two
// structures per entry; an entry whose value is not yet buffered is
// re-presented, key included, by the next refill.
func (c *objectArrayConverter) ReadAsync(ctx context.Context, sr *StreamReader, v reflect.Value, sctx *Context) error {
	if err := sctx.StepIn(); err != nil {
		return err
	}
	defer sctx.StepOut()

	if err := sr.EnsureBuffered(ctx, 5); err != nil {
		return err
	}
	hr := sr.Reader()
	t, err := hr.PeekType()
	if err != nil {
		return err
	}
	var n int
	isMap := false
	switch t {
	case TypeMap:
		isMap = true
		n, err = hr.ReadMapHeader()
	case TypeArray:
		n, err = hr.ReadArrayHeader()
	default:
		return &WireError{Kind: "object", Pos: -1, Err: errors.Errorf("unexpected %s", t)}
	}
	if err != nil {
		return err
	}
	sr.Advance(hr.Position())

	unit := 1
	if isMap {
		unit = 2
	}

	read := 0
	for read < n {
		if !isMap {
			if p := c.slotAt(read); p != nil && p.preferAsync {
				if err := readAsyncValue(ctx, sr, p.conv, v.FieldByIndex(p.field), sctx); err != nil {
					return err
				}
				read++
				continue
			}
		}

		avail, err := sr.FillStructures(ctx, unit, unit*(n-read))
		if err != nil {
			return err
		}
		if avail < unit {
			return &WireError{Kind: "object entries", Pos: -1, Err: io.ErrUnexpectedEOF}
		}

		r := sr.Reader()
		handedOff := false
		for read < n && avail >= unit {
			if isMap {
				idx, err := r.ReadInt()
				if err != nil {
					return err
				}
				p := c.slotAt(int(idx))
				if p != nil && p.preferAsync {
					sr.Advance(r.Position())
					if err := readAsyncValue(ctx, sr, p.conv, v.FieldByIndex(p.field), sctx); err != nil {
						return err
					}
					read++
					handedOff = true
					break
				}
				if p != nil {
					if err := p.conv.Read(r, v.FieldByIndex(p.field), sctx); err != nil {
						return err
					}
				} else if err := r.Skip(); err != nil {
					return err
				}
				avail -= 2
			} else {
				p := c.slotAt(read)
				if p != nil && p.preferAsync {
					break
				}
				if p != nil {
					if err := p.conv.Read(r, v.FieldByIndex(p.field), sctx); err != nil {
						return err
					}
				} else if err := r.Skip(); err != nil {
					return err
				}
				avail--
			}
			read++
		}
		if !handedOff {
			sr.Advance(r.Position())
		}
	}

	if c.hooks.after {
		callAfter(v)
	}
	return nil
}
