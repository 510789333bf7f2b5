package treewalk

import (
	"reflect"

	"github.com/reoring/treewalk/internal/access"
)

// GetMember reads one member of a struct, or of the struct a pointer points
// to, by name. Unexported fields and properties are resolved the same way
// as during a traversal.
func GetMember(obj any, name string) (any, error) {
	v, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	if !v.CanAddr() {
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)
		v = cp
	}
	tbl, err := access.For(v.Type())
	if err != nil {
		return nil, err
	}
	x, err := tbl.Get(v, name)
	if err != nil {
		return nil, err
	}
	return x.Interface(), nil
}

// SetMember assigns one member of the struct obj points to. nil stores the
// zero value; a value of another type is a TypeMismatchError.
func SetMember(obj any, name string, value any) error {
	v, err := structValue(obj)
	if err != nil {
		return err
	}
	if !v.CanAddr() {
		return ErrNotAddressable
	}
	tbl, err := access.For(v.Type())
	if err != nil {
		return err
	}
	return tbl.Set(v, name, reflect.ValueOf(value))
}

func structValue(obj any) (reflect.Value, error) {
	if obj == nil {
		return reflect.Value{}, ErrNilRoot
	}
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, ErrNilRoot
		}
		v = v.Elem()
	}
	return v, nil
}
