package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawBytesToOwned(t *testing.T) {
	backing := []byte{0x2a}
	rb := RawBytes{data: backing, owned: false}

	rb.ToOwned()
	assert.True(t, rb.Owned())
	assert.Equal(t, []byte{0x2a}, rb.Bytes())

	first := rb.Bytes()
	rb.ToOwned()
	// idempotent: the second call must not reallocate
	assert.Equal(t, &first[0], &rb.Bytes()[0])

	// the copy is detached from the original backing storage
	backing[0] = 0xff
	assert.Equal(t, []byte{0x2a}, rb.Bytes())
}

func TestRawBytesEqual(t *testing.T) {
	a := NewRawBytes([]byte{0x01, 0x02})
	b := RawBytes{data: []byte{0x01, 0x02}, owned: false}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NewRawBytes([]byte{0x03})))
}

func TestRawBytesPassThrough(t *testing.T) {
	type envelope struct {
		Payload RawBytes `mpack:"payload"`
	}

	// an arbitrary pre-encoded value: [1, "x"]
	inner := []byte{0x92, 0x01, 0xa1, 'x'}

	c := newTestCache()
	b := encodeValue(t, c, envelope{Payload: NewRawBytes(inner)})

	var got envelope
	decodeValue(t, c, b, &got)
	assert.Equal(t, inner, got.Payload.Bytes())
	// decoded from a byte slice: the span is borrowed
	assert.False(t, got.Payload.Owned())

	// re-encoding emits the stored bytes verbatim
	assert.Equal(t, b, encodeValue(t, c, got))
}

func TestRawBytesCapturesWholeValue(t *testing.T) {
	// the converter must skip exactly one value, containers included
	var buf []byte
	{
		w := writerBuffer{}
		wr := NewWriter(&w)
		require.NoError(t, wr.WriteMapHeader(1))
		require.NoError(t, wr.WriteString("k"))
		require.NoError(t, wr.WriteArrayHeader(2))
		require.NoError(t, wr.WriteInt(1))
		require.NoError(t, wr.WriteInt(2))
		buf = []byte(w)
	}

	c := newTestCache()
	var got RawBytes
	decodeValue(t, c, buf, &got)
	assert.Equal(t, buf, got.Bytes())
}

func TestRawBytesZeroEncodesNil(t *testing.T) {
	c := newTestCache()
	b := encodeValue(t, c, RawBytes{})
	assert.Equal(t, []byte{0xc0}, b)
}
