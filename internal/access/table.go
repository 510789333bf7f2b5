// Package access resolves get/set closures for the members of a struct type.
//
// Tables are built once per type from shape.Members and looked up by member
// name, so a get or set costs one map lookup plus the closure call.
package access

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/reoring/treewalk/internal/shape"
)

var (
	// ErrNotFound is returned for a member name the table does not know.
	ErrNotFound = errors.New("access: member not found")
	// ErrReadOnly is returned when setting a member without a setter.
	ErrReadOnly = errors.New("access: member is read-only")
	// ErrNotAddressable is returned when the owning value is a detached copy
	// that cannot be written back to its origin.
	ErrNotAddressable = errors.New("access: value is not addressable; pass a pointer")
)

// TypeMismatchError reports a set whose value type is not assignable to the
// member type. No conversion is attempted.
type TypeMismatchError struct {
	Member string
	Want   reflect.Type
	Got    reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("access: cannot set %s: member type is %v, value type is %v", e.Member, e.Want, e.Got)
}

type getter func(v reflect.Value) reflect.Value
type setter func(v reflect.Value, x reflect.Value)

type entry struct {
	typ reflect.Type
	get getter
	set setter // nil when read-only
}

// Table holds the accessors of one struct type.
type Table struct {
	Type    reflect.Type
	entries map[string]*entry
}

var _tables sync.Map // map[reflect.Type]*Table

// For returns the table of struct type t, building it on first use.
func For(t reflect.Type) (*Table, error) {
	if v, ok := _tables.Load(t); ok {
		return v.(*Table), nil
	}
	tbl, err := build(t)
	if err != nil {
		return nil, err
	}
	v, _ := _tables.LoadOrStore(t, tbl)
	return v.(*Table), nil
}

// Reset drops every cached table.
func Reset() { _tables.Clear() }

func build(t reflect.Type) (*Table, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &shape.UnsupportedTypeError{Type: t, Reason: "member access needs a struct"}
	}
	members := shape.Members(t)
	tbl := &Table{Type: t, entries: make(map[string]*entry, len(members))}
	for _, m := range members {
		e := &entry{typ: m.Type}
		switch m.Kind {
		case shape.KindField:
			e.get, e.set = fieldFuncs(m.Field, m.Exported)
		case shape.KindProperty:
			e.get = methodGetter(m.Getter)
			if m.Setter >= 0 {
				e.set = methodSetter(m.Setter)
			}
		}
		tbl.entries[m.Name] = e
	}
	return tbl, nil
}

func fieldFuncs(index int, exported bool) (getter, setter) {
	if exported {
		return func(v reflect.Value) reflect.Value { return v.Field(index) },
			func(v reflect.Value, x reflect.Value) { v.Field(index).Set(x) }
	}
	get := func(v reflect.Value) reflect.Value {
		f := v.Field(index)
		return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
	}
	return get, func(v reflect.Value, x reflect.Value) { get(v).Set(x) }
}

func methodGetter(index int) getter {
	return func(v reflect.Value) reflect.Value {
		return v.Addr().Method(index).Call(nil)[0]
	}
}

func methodSetter(index int) setter {
	return func(v reflect.Value, x reflect.Value) {
		v.Addr().Method(index).Call([]reflect.Value{x})
	}
}

// Has reports whether the table knows name.
func (t *Table) Has(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// CanSet reports whether name has a setter.
func (t *Table) CanSet(name string) bool {
	e, ok := t.entries[name]
	return ok && e.set != nil
}

// Get reads member name of v. v must be an addressable value of the table's
// type; the result is usable with Interface and Set even for unexported
// fields.
func (t *Table) Get(v reflect.Value, name string) (reflect.Value, error) {
	e, ok := t.entries[name]
	if !ok {
		return reflect.Value{}, ErrNotFound
	}
	if !v.CanAddr() {
		return reflect.Value{}, ErrNotAddressable
	}
	return e.get(v), nil
}

// Set assigns x to member name of v. An invalid x stores the zero value of
// the member type.
func (t *Table) Set(v reflect.Value, name string, x reflect.Value) error {
	e, ok := t.entries[name]
	if !ok {
		return ErrNotFound
	}
	if e.set == nil {
		return ErrReadOnly
	}
	x, err := Assignable(name, e.typ, x)
	if err != nil {
		return err
	}
	if !v.CanAddr() {
		return ErrNotAddressable
	}
	e.set(v, x)
	return nil
}

// Assignable checks x against member type typ, turning an invalid x into
// the zero value.
func Assignable(name string, typ reflect.Type, x reflect.Value) (reflect.Value, error) {
	if !x.IsValid() {
		return reflect.Zero(typ), nil
	}
	if !x.Type().AssignableTo(typ) {
		return reflect.Value{}, &TypeMismatchError{Member: name, Want: typ, Got: x.Type()}
	}
	return x, nil
}
