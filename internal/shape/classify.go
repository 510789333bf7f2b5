package shape

import (
	"encoding/json"
	"math/big"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

var (
	_opaqueMu  sync.RWMutex
	_opaque    = defaultOpaque()
	_opaqueGen atomic.Uint64

	// Types that carry synchronization state rather than data.
	_excluded = map[reflect.Type]bool{
		reflect.TypeFor[sync.Mutex]():     true,
		reflect.TypeFor[sync.RWMutex]():   true,
		reflect.TypeFor[sync.Once]():      true,
		reflect.TypeFor[sync.WaitGroup](): true,
		reflect.TypeFor[sync.Map]():       true,
	}
)

func defaultOpaque() map[reflect.Type]bool {
	return map[reflect.Type]bool{
		reflect.TypeFor[time.Time]():     true,
		reflect.TypeFor[time.Location](): true,
		reflect.TypeFor[big.Int]():       true,
		reflect.TypeFor[big.Float]():     true,
		reflect.TypeFor[big.Rat]():       true,
		reflect.TypeFor[json.Number]():   true,
	}
}

// RegisterOpaque marks types as terminal leaves. Registering a type that is
// not yet opaque changes the opaque generation, which invalidates shapes
// built before.
func RegisterOpaque(types ...reflect.Type) {
	_opaqueMu.Lock()
	defer _opaqueMu.Unlock()
	changed := false
	for _, t := range types {
		if t == nil || _opaque[t] {
			continue
		}
		_opaque[t] = true
		changed = true
	}
	if changed {
		_opaqueGen.Add(1)
	}
}

// ResetOpaque restores the built-in opaque set.
func ResetOpaque() {
	_opaqueMu.Lock()
	_opaque = defaultOpaque()
	_opaqueMu.Unlock()
	_opaqueGen.Add(1)
}

// OpaqueGeneration identifies the current opaque set.
func OpaqueGeneration() uint64 { return _opaqueGen.Load() }

func isRegisteredOpaque(t reflect.Type) bool {
	_opaqueMu.RLock()
	ok := _opaque[t]
	_opaqueMu.RUnlock()
	return ok
}

// Unsupported reports whether values of t cannot be walked at all:
// pointer-like words, channels and functions.
func Unsupported(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.UnsafePointer, reflect.Uintptr, reflect.Chan, reflect.Func, reflect.Invalid:
		return true
	}
	return false
}

// Excluded reports whether members of type t are left out of shapes.
func Excluded(t reflect.Type) bool {
	if Unsupported(t) {
		return true
	}
	return _excluded[Deref(t)]
}

// Deref strips every pointer level from t.
func Deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// IsOpaque reports whether t (with pointers removed) is a terminal leaf.
func IsOpaque(t reflect.Type) bool {
	t = Deref(t)
	if isRegisteredOpaque(t) {
		return true
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	case reflect.Slice, reflect.Array:
		// Byte slices and arrays (net.IP, json.RawMessage, UUIDs, digests)
		// are blobs.
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

// Nullable reports whether t is a pointer to a primitive (bool, number or
// string kind). Such members read and write as the primitive, with nil for
// absent.
func Nullable(t reflect.Type) bool {
	if t == nil || t.Kind() != reflect.Pointer {
		return false
	}
	switch t.Elem().Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	}
	return false
}

// Classify maps a member type to how its values are walked.
func Classify(t reflect.Type) Class {
	if IsOpaque(t) {
		return ClassOpaque
	}
	switch Deref(t).Kind() {
	case reflect.Struct:
		return ClassAggregate
	case reflect.Slice, reflect.Array, reflect.Map:
		return ClassCollection
	case reflect.Interface:
		return ClassDynamic
	}
	return ClassOpaque
}
