package helpers

import "reflect"

// StrPanic panics with panicMessage if p is empty; otherwise returns p. Used for fail-fast validation of required
// constructor strings (listen addresses, Redis channel names).
//
// Called from constructors, e.g. myredis.NewEventPublisher.
func StrPanic(p string, panicMessage string) string {
	if p == "" {
		panic(panicMessage)
	}
	return p
}

// NilPanic panics with panicMessage if v is nil (nil interface, pointer, slice, map, chan or func); otherwise
// returns v unchanged.
//
// Called from constructors when validating required dependencies (registry.NewStore, session.NewManager,
// handlers.NewRegistrationServer and others).
func NilPanic[T any](v T, panicMessage string) T {
	if isNil(v) {
		panic(panicMessage)
	}
	return v
}

// isNil reports whether v is nil or a typed nil.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// Ptr returns a pointer whose value is v. Used to fill optional wire fields.
func Ptr[T any](v T) *T {
	return &v
}

// Value returns *p, or the zero value of T if p is nil. Used to read optional wire fields.
func Value[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
