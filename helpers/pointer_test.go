package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrPanic(t *testing.T) {
	assert.Equal(t, "x", StrPanic("x", "msg"))
	assert.PanicsWithValue(t, "msg", func() { StrPanic("", "msg") })
}

func TestNilPanic(t *testing.T) {
	v := 42
	assert.Equal(t, &v, NilPanic(&v, "msg"))
	assert.Equal(t, 0, NilPanic(0, "msg"))

	var nilPtr *int
	assert.PanicsWithValue(t, "msg", func() { NilPanic(nilPtr, "msg") })
	var nilMap map[string]int
	assert.PanicsWithValue(t, "msg", func() { NilPanic(nilMap, "msg") })
	var nilFunc func()
	assert.PanicsWithValue(t, "msg", func() { NilPanic(nilFunc, "msg") })
	var nilIface any
	assert.PanicsWithValue(t, "msg", func() { NilPanic(nilIface, "msg") })
}

func TestPtrValue(t *testing.T) {
	p := Ptr("hello")
	assert.Equal(t, "hello", *p)
	assert.Equal(t, "hello", Value(p))
	assert.Equal(t, 0, Value[int](nil))
	assert.Equal(t, "", Value[string](nil))
}
