package codec

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCache() *Cache {
	return NewCache(SynthOptions{})
}

func encodeValue(t *testing.T, c *Cache, v interface{}) []byte {
	t.Helper()
	conv, err := c.GetOrMake(reflect.TypeOf(v))
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, conv.Write(w, reflect.ValueOf(v), NewContext(64)))
	return buf.Bytes()
}

func decodeValue(t *testing.T, c *Cache, b []byte, into interface{}) {
	t.Helper()
	rv := reflect.ValueOf(into)
	require.Equal(t, reflect.Ptr, rv.Kind())

	conv, err := c.GetOrMake(rv.Elem().Type())
	require.NoError(t, err)
	require.NoError(t, conv.Read(NewReaderBytes(b), rv.Elem(), NewContext(64)))
}

func roundtrip(t *testing.T, v interface{}, into interface{}) []byte {
	t.Helper()
	c := newTestCache()
	b := encodeValue(t, c, v)
	decodeValue(t, c, b, into)
	return b
}
