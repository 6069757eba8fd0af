package codec

import "reflect"

// BeforeSerializer is invoked on a value immediately before any of its bytes
// are written, once per encode.
type BeforeSerializer interface {
	BeforeSerialize()
}

// AfterDeserializer is invoked on a value after all of its entries have been
// read, once per decode.
type AfterDeserializer interface {
	AfterDeserialize()
}

// ConditionalSerializer lets a type suppress individual properties at encode
// time. The property argument is the declared property name.
type ConditionalSerializer interface {
	ShouldSerialize(property string) bool
}

var (
	beforeSerializerType      = reflect.TypeOf((*BeforeSerializer)(nil)).Elem()
	afterDeserializerType     = reflect.TypeOf((*AfterDeserializer)(nil)).Elem()
	conditionalSerializerType = reflect.TypeOf((*ConditionalSerializer)(nil)).Elem()
)

// hooks records, once at synthesis, which callback capabilities a type has,
// so encode and decode take no per-value dynamic checks.
type hooks struct {
	before bool
	after  bool
	cond   bool
}

func hooksFor(t reflect.Type) hooks {
	pt := reflect.PtrTo(t)
	return hooks{
		before: t.Implements(beforeSerializerType) || pt.Implements(beforeSerializerType),
		after:  t.Implements(afterDeserializerType) || pt.Implements(afterDeserializerType),
		cond:   t.Implements(conditionalSerializerType) || pt.Implements(conditionalSerializerType),
	}
}

// addrIface returns v as an interface value with a pointer receiver when the
// method set requires it, copying to fresh storage if v is unaddressable.
func addrIface(v reflect.Value, iface reflect.Type) interface{} {
	if v.Type().Implements(iface) {
		return v.Interface()
	}
	if v.CanAddr() {
		return v.Addr().Interface()
	}
	pv := reflect.New(v.Type())
	pv.Elem().Set(v)
	return pv.Interface()
}

// callBefore invokes the before-serialize hook and returns the value the
// encoder must read from. When the hook has a pointer receiver and v is not
// addressable, v is first copied to addressable storage so the hook and the
// encoder share it; invoking the hook on a throwaway copy would silently
// discard its mutations.
func callBefore(v reflect.Value) reflect.Value {
	if v.Type().Implements(beforeSerializerType) {
		v.Interface().(BeforeSerializer).BeforeSerialize()
		return v
	}
	if !v.CanAddr() {
		pv := reflect.New(v.Type())
		pv.Elem().Set(v)
		v = pv.Elem()
	}
	v.Addr().Interface().(BeforeSerializer).BeforeSerialize()
	return v
}

func callAfter(v reflect.Value) {
	// The callback must observe and mutate the decoded value, so the value is
	// expected to be addressable here; decode targets always are.
	addrIface(v, afterDeserializerType).(AfterDeserializer).AfterDeserialize()
}

func callShouldSerialize(v reflect.Value, property string) bool {
	return addrIface(v, conditionalSerializerType).(ConditionalSerializer).ShouldSerialize(property)
}
