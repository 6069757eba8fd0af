package codec

import (
	"reflect"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SynthOptions tune converter synthesis.
type SynthOptions struct {
	// FlatMultiDim encodes fixed-size nested arrays as one flat array in
	// row-major order instead of nested arrays.
	FlatMultiDim bool
}

// Cache maps types to their synthesized converters. Lookup order is instance
// cache, then the static primitive registry, then synthesis. Inserts are
// insert-once: the first published converter for a type wins and later
// synthesizers discard their own functionally-equivalent instance.
type Cache struct {
	opts SynthOptions

	mux        sync.Mutex
	converters map[reflect.Type]Converter
	subtypes   map[reflect.Type]*SubTypeMapping

	group singleflight.Group
}

func NewCache(opts SynthOptions) *Cache {
	return &Cache{
		opts:       opts,
		converters: make(map[reflect.Type]Converter),
		subtypes:   make(map[reflect.Type]*SubTypeMapping),
	}
}

func (c *Cache) get(t reflect.Type) Converter {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.converters[t]
}

// tryInsert publishes conv for t unless another converter is already
// published, and returns the winner.
func (c *Cache) tryInsert(t reflect.Type, conv Converter) Converter {
	c.mux.Lock()
	defer c.mux.Unlock()
	if existing, ok := c.converters[t]; ok {
		return existing
	}
	c.converters[t] = conv
	return conv
}

func (c *Cache) remove(t reflect.Type, conv Converter) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.converters[t] == conv {
		delete(c.converters, t)
	}
}

// Register publishes a user converter for t. It fails once a converter for t
// has been synthesized or registered; the cache never invalidates.
func (c *Cache) Register(t reflect.Type, conv Converter) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.converters[t]; ok {
		return errors.Errorf("mpack: a converter for %s is already registered", t)
	}
	c.converters[t] = conv
	return nil
}

// RegisterSubTypes installs the polymorphic mapping for its base type,
// replacing any previous mapping. It fails once a converter for the base has
// been synthesized.
func (c *Cache) RegisterSubTypes(m *SubTypeMapping) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.converters[m.base]; ok {
		return errors.Errorf("mpack: a converter for %s is already synthesized", m.base)
	}
	c.subtypes[m.base] = m
	zap.S().Debugf("registered %d subtypes for %s", len(m.entries), m.base)
	return nil
}

func (c *Cache) subTypesFor(t reflect.Type) *SubTypeMapping {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.subtypes[t]
}

// GetOrMake returns the converter for t, synthesizing and caching it on the
// first request. Concurrent requests for the same type are deduplicated, but
// callers must tolerate receiving an instance another goroutine synthesized.
func (c *Cache) GetOrMake(t reflect.Type) (Converter, error) {
	if conv := c.get(t); conv != nil {
		return conv, nil
	}
	if conv := lookupPrimitive(t); conv != nil {
		return c.tryInsert(t, conv), nil
	}

	v, err, _ := c.group.Do(cacheKey(t), func() (interface{}, error) {
		if conv := c.get(t); conv != nil {
			return conv, nil
		}

		// Publish a forwarding cell before synthesis so recursive requests
		// for t resolve to the same handle.
		cell := newForward(t)
		published := c.tryInsert(t, cell)
		if published != cell {
			return published, nil
		}

		zap.S().Debugf("synthesizing msgpack converter for %s", t)
		conv, err := c.synthesize(t)
		if err != nil {
			cell.fail(err)
			c.remove(t, cell)
			return nil, err
		}
		cell.fill(conv)
		return Converter(cell), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Converter), nil
}

// cacheKey is a process-unique key for t. reflect type descriptors are
// canonical, so the descriptor address identifies the type.
func cacheKey(t reflect.Type) string {
	return strconv.FormatUint(uint64(reflect.ValueOf(t).Pointer()), 16)
}
