package treewalk

import (
	"errors"
	"reflect"

	"github.com/reoring/treewalk/internal/access"
	"github.com/reoring/treewalk/internal/shape"
)

// MemberKind tells fields, properties and collection elements apart.
type MemberKind = shape.Kind

const (
	KindField             = shape.KindField
	KindProperty          = shape.KindProperty
	KindCollectionElement = shape.KindCollectionElement
)

// MemberAccessor is the call-scoped view of one visited member. It is only
// valid inside the visitor or predicate call that received it.
type MemberAccessor struct {
	name string
	typ  reflect.Type
	kind MemberKind
	path Path
	slot slot
	run  *run
}

// Name returns the member name. Collection elements carry the name of
// their collection.
func (m *MemberAccessor) Name() string { return m.name }

// DeclaredType returns the static type of the member.
func (m *MemberAccessor) DeclaredType() reflect.Type { return m.typ }

// Kind returns the member kind.
func (m *MemberAccessor) Kind() MemberKind { return m.kind }

// Path returns the steps from the root to this member.
func (m *MemberAccessor) Path() Path { return m.path }

// Depth returns the number of path steps.
func (m *MemberAccessor) Depth() int { return len(m.path) }

// CanSet reports whether SetValue can succeed for this member: it has a
// setter and every copy between it and the root can be written back.
func (m *MemberAccessor) CanSet() bool {
	return m.slot.canSet() && writable(m.slot.container()) == nil
}

// GetValue returns the current member value. A pointer to a primitive
// reads as the primitive, or nil.
func (m *MemberAccessor) GetValue() (any, error) {
	v, err := m.slot.get()
	if err != nil {
		return nil, m.fail(invariant(CodeMissingMember, m.path, err))
	}
	if !v.IsValid() {
		return nil, nil
	}
	if shape.Nullable(m.typ) && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		return v.Elem().Interface(), nil
	}
	return v.Interface(), nil
}

// SetValue assigns value to the member. nil stores the zero value of the
// member type; a pointer-to-primitive member also accepts the primitive.
// A value whose type is not assignable to the member type is rejected with
// a TypeMismatchError.
func (m *MemberAccessor) SetValue(value any) error {
	if err := writable(m.slot.container()); err != nil {
		return err
	}
	err := m.slot.set(m.wrap(reflect.ValueOf(value)))
	if IsInvariant(err) {
		return m.fail(err)
	}
	return err
}

// wrap boxes a primitive into a fresh pointer for a nullable member.
func (m *MemberAccessor) wrap(x reflect.Value) reflect.Value {
	if !x.IsValid() || !shape.Nullable(m.typ) || !x.Type().AssignableTo(m.typ.Elem()) {
		return x
	}
	p := reflect.New(m.typ.Elem())
	p.Elem().Set(x)
	return p
}

// TrySetValue is SetValue reporting only success.
func (m *MemberAccessor) TrySetValue(value any) bool {
	return m.SetValue(value) == nil
}

// fail records an invariant violation on the running traversal so that it
// aborts even when the callback drops the error.
func (m *MemberAccessor) fail(err error) error {
	if m.run != nil && m.run.fatal == nil {
		m.run.fatal = err
		m.run.w.log.Warn("invariant violation", logPath(m.path), logErr(err))
	}
	return err
}

// owner is an addressable struct or array whose members are being walked.
type owner struct {
	v reflect.Value
	// outer is set when v lives inside outer.v, so a write to v is a write
	// to outer.v and needs whatever outer needs.
	outer *owner
	// link is set when v is a detached copy that must be stored back.
	link *writeBack
}

// writeBack replaces a copied value in the slot it was read from. Storing
// through the slot commits the slot's own owner, so the chain continues up
// to a reference-backed value.
type writeBack struct {
	from     slot
	copy     reflect.Value
	detached bool // copy of a root passed by value; nowhere to store
	path     Path
}

// commit propagates a write to o up to the nearest reference-backed value.
func (o *owner) commit() error {
	for o != nil {
		switch {
		case o.link != nil:
			return o.link.store()
		case o.outer != nil:
			o = o.outer
		default:
			return nil
		}
	}
	return nil
}

func (w *writeBack) store() error {
	if w.detached {
		return ErrNotAddressable
	}
	err := w.from.set(w.copy)
	switch {
	case err == nil, IsInvariant(err):
		return err
	case errors.Is(err, ErrNotAddressable), errors.Is(err, ErrReadOnly):
		return err
	default:
		return invariant(CodeWriteBack, w.path, err)
	}
}

// writable walks the write-back chain without writing and reports the first
// link that could not be stored.
func writable(o *owner) error {
	for o != nil {
		switch {
		case o.link != nil:
			if o.link.detached {
				return ErrNotAddressable
			}
			if !o.link.from.canSet() {
				return ErrReadOnly
			}
			o = o.link.from.container()
		case o.outer != nil:
			o = o.outer
		default:
			return nil
		}
	}
	return nil
}

// slot is where a member value lives.
type slot interface {
	get() (reflect.Value, error)
	set(x reflect.Value) error
	canSet() bool
	// container is the owner whose memory holds the value, nil when the
	// value is reference-backed.
	container() *owner
}

// memberSlot is a named field or property of a struct owner.
type memberSlot struct {
	tbl  *access.Table
	own  *owner
	name string
}

func (s *memberSlot) get() (reflect.Value, error) { return s.tbl.Get(s.own.v, s.name) }

func (s *memberSlot) set(x reflect.Value) error {
	if err := s.tbl.Set(s.own.v, s.name, x); err != nil {
		return err
	}
	return s.own.commit()
}

func (s *memberSlot) canSet() bool      { return s.tbl.CanSet(s.name) }
func (s *memberSlot) container() *owner { return s.own }

// sliceSlot is an element of a slice; slice elements share the backing
// array, so writes need no write-back.
type sliceSlot struct {
	s    reflect.Value
	i    int
	name string
}

func (s *sliceSlot) get() (reflect.Value, error) { return s.s.Index(s.i), nil }

func (s *sliceSlot) set(x reflect.Value) error {
	e := s.s.Index(s.i)
	x, err := access.Assignable(s.name, e.Type(), x)
	if err != nil {
		return err
	}
	e.Set(x)
	return nil
}

func (s *sliceSlot) canSet() bool      { return true }
func (s *sliceSlot) container() *owner { return nil }

// arraySlot is an element of an array held by an addressable owner.
type arraySlot struct {
	own  *owner
	i    int
	name string
}

func (s *arraySlot) get() (reflect.Value, error) { return s.own.v.Index(s.i), nil }

func (s *arraySlot) set(x reflect.Value) error {
	e := s.own.v.Index(s.i)
	x, err := access.Assignable(s.name, e.Type(), x)
	if err != nil {
		return err
	}
	e.Set(x)
	return s.own.commit()
}

func (s *arraySlot) canSet() bool      { return true }
func (s *arraySlot) container() *owner { return s.own }

// mapValueSlot is the value stored under one key of a map.
type mapValueSlot struct {
	m    reflect.Value
	key  reflect.Value
	name string
}

func (s *mapValueSlot) get() (reflect.Value, error) { return s.m.MapIndex(s.key), nil }

func (s *mapValueSlot) set(x reflect.Value) error {
	x, err := access.Assignable(s.name, s.m.Type().Elem(), x)
	if err != nil {
		return err
	}
	s.m.SetMapIndex(s.key, x)
	return nil
}

func (s *mapValueSlot) canSet() bool      { return true }
func (s *mapValueSlot) container() *owner { return nil }

// mapKeySlot is a map key; keys cannot be replaced in place.
type mapKeySlot struct {
	key reflect.Value
}

func (s *mapKeySlot) get() (reflect.Value, error) { return s.key, nil }
func (s *mapKeySlot) set(reflect.Value) error     { return ErrReadOnly }
func (s *mapKeySlot) canSet() bool                { return false }
func (s *mapKeySlot) container() *owner           { return nil }
