package libemit

import (
	"reflect"
	"unsafe"
)

type (
	// Listener receives the notifications of a single event type. The receiver is the value
	// given to On when the listener was registered, args are the values passed to Trigger.
	//
	// Listeners are matched by identity in Off, so implementations should be pointer types
	// or plain functions adapted with ListenerFunc.
	Listener interface {
		OnEvent(receiver any, args ...any)
	}

	// ListenerFunc adapts an ordinary function to a Listener. Two ListenerFunc values are the
	// same listener when they hold the same func value: a top-level function always matches
	// itself, but every evaluation of a method value (x.Handle) or of a capturing closure
	// yields a new one. Keep the ListenerFunc given to On and pass that same value to Off.
	ListenerFunc func(receiver any, args ...any)
)

func (f ListenerFunc) OnEvent(receiver any, args ...any) {
	f(receiver, args...)
}

// sameListener reports whether a and b are the same listener without panicking on
// non-comparable dynamic types.
func sameListener(a, b Listener) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return identical(a, b)
}

// sameReceiver reports whether an entry registered with got matches the receiver filter
// want. A nil filter matches every receiver.
func sameReceiver(want, got any) bool {
	if want == nil {
		return true
	}
	if got == nil {
		return false
	}
	return identical(want, got)
}

func identical(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Func:
		return funcValue(va) == funcValue(vb)
	case reflect.Map, reflect.Slice, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		if va.Kind() == reflect.Slice && va.Len() != vb.Len() {
			return false
		}
		return va.Pointer() == vb.Pointer()
	}

	if !va.Type().Comparable() {
		return false
	}

	defer func() {
		// structs holding non-comparable values behind interfaces panic on ==
		_ = recover()
	}()
	return va.Interface() == vb.Interface()
}

// funcValue returns the pointer a func value is made of. Unlike the code pointer it differs
// between closures, and between method values bound to different receivers.
func funcValue(v reflect.Value) unsafe.Pointer {
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return *(*unsafe.Pointer)(p.UnsafePointer())
}
