package serializer

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webhookx-io/mpack/codec"
	"github.com/webhookx-io/mpack/config"
)

type event struct {
	ID      int64             `mpack:"id"`
	Name    string            `mpack:"name"`
	Tags    []string          `mpack:"tags,omitempty"`
	Headers map[string]string `mpack:"headers,omitempty"`
	Parent  *event            `mpack:"parent,omitempty"`
}

func TestRoundtrip(t *testing.T) {
	s := New(nil)
	in := event{
		ID:      42,
		Name:    "created",
		Tags:    []string{"a", "b"},
		Headers: map[string]string{"x": "y"},
		Parent:  &event{ID: 1, Name: "root"},
	}

	b, err := s.Serialize(in)
	require.NoError(t, err)

	var out event
	require.NoError(t, s.Deserialize(b, &out))
	assert.Equal(t, in, out)
}

func TestSerializeNil(t *testing.T) {
	s := New(nil)
	b, err := s.Serialize(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc0}, b)
}

func TestDeserializeRequiresPointer(t *testing.T) {
	s := New(nil)
	err := s.Deserialize([]byte{0xc0}, event{})
	assert.Equal(t, "val must be a non-nil pointer", err.Error())
}

func TestPrimitiveWire(t *testing.T) {
	s := New(nil)
	b, err := s.Serialize(int32(42))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2a}, b)

	var got int32
	require.NoError(t, s.Deserialize(b, &got))
	assert.EqualValues(t, 42, got)
}

func TestMaxDepth(t *testing.T) {
	opts := config.New()
	opts.MaxDepth = 2
	s := New(opts)

	_, err := s.Serialize([][]int{{1}})
	require.NoError(t, err)

	_, err = s.Serialize([][][]int{{{1}}})
	assert.ErrorIs(t, err, codec.ErrDepthExceeded)

	// decode honors the same limit
	deep, err := New(nil).Serialize([][][]int{{{1}}})
	require.NoError(t, err)
	var got [][][]int
	assert.ErrorIs(t, s.Deserialize(deep, &got), codec.ErrDepthExceeded)
}

func TestStreamRoundtrip(t *testing.T) {
	s := New(nil)
	in := event{ID: 9, Name: "stream"}

	var buf bytes.Buffer
	require.NoError(t, s.SerializeWriter(&buf, in))

	var out event
	require.NoError(t, s.DeserializeReader(&buf, &out))
	assert.Equal(t, in, out)
}

type document struct {
	ID   int            `mpack:"0"`
	Body codec.RawBytes `mpack:"1"`
	Note string         `mpack:"2"`
}

func TestContextRoundtrip(t *testing.T) {
	opts := config.New()
	opts.FlushThreshold = 8
	s := New(opts)

	in := document{
		ID:   3,
		Body: codec.NewRawBytes([]byte{0x93, 0x01, 0x02, 0x03}),
		Note: "n",
	}

	var buf bytes.Buffer
	require.NoError(t, s.SerializeContext(context.Background(), &buf, in))

	// streamed bytes match the buffered encoding
	plain, err := s.Serialize(in)
	require.NoError(t, err)
	assert.Equal(t, plain, buf.Bytes())

	var out document
	require.NoError(t, s.DeserializeContext(context.Background(), bytes.NewReader(buf.Bytes()), &out))
	assert.Equal(t, in.ID, out.ID)
	assert.True(t, in.Body.Equal(out.Body))
	assert.Equal(t, in.Note, out.Note)
}

func TestContextCancelled(t *testing.T) {
	opts := config.New()
	opts.FlushThreshold = 1
	s := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := s.SerializeContext(ctx, &buf, document{ID: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

type upper struct{}

func (upper) Write(w *codec.Writer, v reflect.Value, _ *codec.Context) error {
	return w.WriteString("!" + v.String())
}

func (upper) Read(r *codec.Reader, v reflect.Value, _ *codec.Context) error {
	s, err := r.ReadString()
	if err != nil {
		return err
	}
	v.SetString(s[1:])
	return nil
}

type tagged string

func TestRegisterConverter(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.RegisterConverter(reflect.TypeOf(tagged("")), upper{}))

	b, err := s.Serialize(tagged("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa2, '!', 'x'}, b)

	var got tagged
	require.NoError(t, s.Deserialize(b, &got))
	assert.Equal(t, tagged("x"), got)

	assert.Error(t, s.RegisterConverter(reflect.TypeOf(tagged("")), upper{}))
}

type vehicle interface {
	Wheels() int
}

type car struct {
	Brand string `mpack:"brand"`
}

func (car) Wheels() int { return 4 }

type bike struct {
	Gears int `mpack:"gears"`
}

func (bike) Wheels() int { return 2 }

var vehicleType = reflect.TypeOf((*vehicle)(nil)).Elem()

func TestSubTypesFacade(t *testing.T) {
	s := New(nil)
	m := codec.NewSubTypes(vehicleType)
	require.NoError(t, m.Add(1, reflect.TypeOf(car{})))
	require.NoError(t, m.Add(2, reflect.TypeOf(bike{})))
	require.NoError(t, s.RegisterSubTypes(m))

	b, err := s.SerializeAs(vehicleType, car{Brand: "ok"})
	require.NoError(t, err)
	assert.EqualValues(t, 0x92, b[0])
	assert.EqualValues(t, 0x01, b[1])

	type garage struct {
		Main vehicle `mpack:"main"`
	}
	g := garage{Main: bike{Gears: 3}}
	gb, err := s.Serialize(g)
	require.NoError(t, err)

	var got garage
	require.NoError(t, s.Deserialize(gb, &got))
	assert.Equal(t, g, got)
}

type stamped struct {
	Checksum string `mpack:"checksum"`
	Body     string `mpack:"body"`
}

func (s *stamped) BeforeSerialize() {
	s.Checksum = "v1:" + s.Body
}

func TestBeforeSerializeReachesWire(t *testing.T) {
	s := New(nil)

	// passed by value: the pointer-receiver hook must still mutate what gets
	// encoded
	b, err := s.Serialize(stamped{Body: "x"})
	require.NoError(t, err)

	var got stamped
	require.NoError(t, s.Deserialize(b, &got))
	assert.Equal(t, "v1:x", got.Checksum)
	assert.Equal(t, "x", got.Body)
}

func TestPackageLevelHelpers(t *testing.T) {
	b, err := Serialize("hello")
	require.NoError(t, err)

	var got string
	require.NoError(t, Deserialize(b, &got))
	assert.Equal(t, "hello", got)
}
