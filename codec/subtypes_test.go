package codec

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type animal interface {
	Kind() string
}

type cow struct {
	Name string `mpack:"name"`
}

func (cow) Kind() string { return "cow" }

type duck struct {
	Name string `mpack:"name"`
}

func (duck) Kind() string { return "duck" }

var animalType = reflect.TypeOf((*animal)(nil)).Elem()

func newAnimalCache(t *testing.T) *Cache {
	t.Helper()
	c := newTestCache()
	m := NewSubTypes(animalType)
	require.NoError(t, m.Add(1, reflect.TypeOf(cow{})))
	require.NoError(t, m.Add(2, reflect.TypeOf(duck{})))
	require.NoError(t, c.RegisterSubTypes(m))
	return c
}

func encodeAnimal(t *testing.T, c *Cache, v animal) []byte {
	t.Helper()
	conv, err := c.GetOrMake(animalType)
	require.NoError(t, err)

	rv := reflect.New(animalType).Elem()
	rv.Set(reflect.ValueOf(v))
	var buf bytes.Buffer
	require.NoError(t, conv.Write(NewWriter(&buf), rv, NewContext(64)))
	return buf.Bytes()
}

func decodeAnimal(t *testing.T, c *Cache, b []byte) (animal, error) {
	t.Helper()
	conv, err := c.GetOrMake(animalType)
	require.NoError(t, err)

	rv := reflect.New(animalType).Elem()
	if err := conv.Read(NewReaderBytes(b), rv, NewContext(64)); err != nil {
		return nil, err
	}
	if rv.IsNil() {
		return nil, nil
	}
	return rv.Interface().(animal), nil
}

func TestSubTypeEnvelope(t *testing.T) {
	c := newAnimalCache(t)

	b := encodeAnimal(t, c, cow{Name: "Bessie"})
	assert.Equal(t, []byte{
		0x92,
		0x01,
		0x81, 0xa4, 'n', 'a', 'm', 'e', 0xa6, 'B', 'e', 's', 's', 'i', 'e',
	}, b)

	got, err := decodeAnimal(t, c, b)
	require.NoError(t, err)
	assert.Equal(t, cow{Name: "Bessie"}, got)
}

func TestSubTypeDispatch(t *testing.T) {
	c := newAnimalCache(t)
	got, err := decodeAnimal(t, c, encodeAnimal(t, c, duck{Name: "Donald"}))
	require.NoError(t, err)
	assert.Equal(t, duck{Name: "Donald"}, got)
}

func TestUnknownAlias(t *testing.T) {
	c := newAnimalCache(t)
	// alias 100, empty map payload
	_, err := decodeAnimal(t, c, []byte{0x92, 0x64, 0x80})
	var aliasErr *UnknownAliasError
	require.ErrorAs(t, err, &aliasErr)
	assert.EqualValues(t, 100, aliasErr.Alias)
}

func TestMalformedEnvelope(t *testing.T) {
	c := newAnimalCache(t)
	_, err := decodeAnimal(t, c, []byte{0x93, 0x01, 0x80, 0xc0})
	var envErr *EnvelopeError
	require.ErrorAs(t, err, &envErr)
	assert.Equal(t, 3, envErr.Len)
}

type pig struct {
	Name string `mpack:"name"`
}

func (pig) Kind() string { return "pig" }

func TestUnknownSubTypeOnEncode(t *testing.T) {
	c := newAnimalCache(t)
	conv, err := c.GetOrMake(animalType)
	require.NoError(t, err)

	rv := reflect.New(animalType).Elem()
	rv.Set(reflect.ValueOf(pig{Name: "Babe"}))
	var buf bytes.Buffer
	err = conv.Write(NewWriter(&buf), rv, NewContext(64))
	var subErr *UnknownSubTypeError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, animalType, subErr.Base)
	assert.Equal(t, reflect.TypeOf(pig{}), subErr.Runtime)
}

type baseShape struct {
	Width int `mpack:"w"`
}

type roundShape struct {
	Radius int `mpack:"r"`
}

var baseShapeType = reflect.TypeOf(baseShape{})

func newShapeCache(t *testing.T) *Cache {
	t.Helper()
	c := newTestCache()
	m := NewSubTypes(baseShapeType)
	require.NoError(t, m.Add("round", reflect.TypeOf(roundShape{})))
	require.NoError(t, c.RegisterSubTypes(m))
	return c
}

func TestConcreteBaseWritesNilAlias(t *testing.T) {
	c := newShapeCache(t)
	b := encodeValue(t, c, baseShape{Width: 3})
	assert.Equal(t, []byte{
		0x92,
		0xc0,
		0x81, 0xa1, 'w', 0x03,
	}, b)

	var got baseShape
	decodeValue(t, c, b, &got)
	assert.Equal(t, baseShape{Width: 3}, got)
}

func TestStringAlias(t *testing.T) {
	c := newShapeCache(t)
	conv, err := c.GetOrMake(baseShapeType)
	require.NoError(t, err)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteArrayHeader(2))
	require.NoError(t, w.WriteString("round"))
	require.NoError(t, w.WriteMapHeader(1))
	require.NoError(t, w.WriteString("r"))
	require.NoError(t, w.WriteInt(5))

	var got roundShape
	rv := reflect.ValueOf(&got).Elem()
	require.NoError(t, conv.Read(NewReaderBytes(buf.Bytes()), rv, NewContext(64)))
	assert.Equal(t, roundShape{Radius: 5}, got)
}

func TestRegisterAfterSynthesisFails(t *testing.T) {
	c := newTestCache()
	_, err := c.GetOrMake(reflect.TypeOf(baseShape{}))
	require.NoError(t, err)

	m := NewSubTypes(baseShapeType)
	require.NoError(t, m.Add(1, reflect.TypeOf(roundShape{})))
	assert.ErrorContains(t, c.RegisterSubTypes(m), "already synthesized")
}

func TestSubTypeMappingValidation(t *testing.T) {
	m := NewSubTypes(animalType)
	require.NoError(t, m.Add(1, reflect.TypeOf(cow{})))
	assert.ErrorContains(t, m.Add(1, reflect.TypeOf(duck{})), "already mapped")
	assert.ErrorContains(t, m.Add(2, reflect.TypeOf(cow{})), "already mapped")
	assert.ErrorContains(t, m.Add(1.5, reflect.TypeOf(duck{})), "must be an integer or string")

	type boat struct{}
	assert.ErrorContains(t, m.Add(3, reflect.TypeOf(boat{})), "does not implement")
}

func TestInterfaceWithoutSubTypes(t *testing.T) {
	c := newTestCache()
	_, err := c.GetOrMake(animalType)
	var nsErr *NotSupportedError
	assert.ErrorAs(t, err, &nsErr)
}
