package shape

import (
	"reflect"
	"sync"
)

// Member is one member of a struct type before any policy is applied.
type Member struct {
	Descriptor
	// Field is the struct field index, -1 for properties.
	Field int
	// Getter and Setter are indices into the method set of *T, -1 when absent.
	Getter int
	Setter int
	// Backing marks an unexported field that stores a property's value.
	Backing bool
	// Exported reports whether a field is reachable without unsafe access.
	Exported bool
}

var _members sync.Map // map[reflect.Type][]Member

// Members lists the members of struct type t in walk order: fields in
// declaration order, each property placed at its backing field (which
// follows it), then properties without a backing field in method order.
// Blank fields, walk:"-" fields and fields of unsupported or excluded
// types are omitted.
func Members(t reflect.Type) []Member {
	if t.Kind() != reflect.Struct {
		return nil
	}
	if v, ok := _members.Load(t); ok {
		return v.([]Member)
	}
	v, _ := _members.LoadOrStore(t, enumerate(t))
	return v.([]Member)
}

func enumerate(t reflect.Type) []Member {
	props := properties(t)
	byBacking := make(map[string]int, len(props))
	for i, p := range props {
		if p.backing >= 0 {
			byBacking[t.Field(p.backing).Name] = i
		}
	}

	out := make([]Member, 0, t.NumField()+len(props))
	emitted := make([]bool, len(props))
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" || Excluded(sf.Type) {
			continue
		}
		name := MemberName(sf)
		if name == "-" {
			continue
		}
		backing := false
		if pi, ok := byBacking[sf.Name]; ok {
			out = append(out, props[pi].Member)
			emitted[pi] = true
			backing = true
		}
		out = append(out, Member{
			Descriptor: Descriptor{
				Name:   name,
				Type:   sf.Type,
				Kind:   KindField,
				CanGet: true,
				CanSet: true,
			},
			Field:    i,
			Getter:   -1,
			Setter:   -1,
			Backing:  backing,
			Exported: sf.IsExported(),
		})
	}
	for i, p := range props {
		if !emitted[i] {
			out = append(out, p.Member)
		}
	}
	return out
}

type property struct {
	Member
	backing int
}

// properties finds getter methods X() T on *t that are backed by an
// unexported field x T or paired with a setter SetX(T). A bare getter is
// not treated as a property since arbitrary nullary methods may have side
// effects.
func properties(t reflect.Type) []property {
	pt := reflect.PointerTo(t)
	var out []property
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if m.Type.NumIn() != 1 || m.Type.NumOut() != 1 {
			continue
		}
		typ := m.Type.Out(0)
		if Excluded(typ) || promoted(t, m.Name) {
			continue
		}
		setter := -1
		if sm, ok := pt.MethodByName("Set" + m.Name); ok &&
			sm.Type.NumIn() == 2 && sm.Type.NumOut() == 0 && sm.Type.In(1) == typ {
			setter = sm.Index
		}
		backing := -1
		if sf, ok := t.FieldByName(backingName(m.Name)); ok &&
			len(sf.Index) == 1 && !sf.IsExported() && sf.Type == typ {
			backing = sf.Index[0]
		}
		if setter < 0 && backing < 0 {
			continue
		}
		out = append(out, property{
			Member: Member{
				Descriptor: Descriptor{
					Name:   m.Name,
					Type:   typ,
					Kind:   KindProperty,
					CanGet: true,
					CanSet: setter >= 0,
				},
				Field:    -1,
				Getter:   m.Index,
				Setter:   setter,
				Exported: true,
			},
			backing: backing,
		})
	}
	return out
}

// promoted reports whether method name on *t comes from an embedded field.
func promoted(t reflect.Type, name string) bool {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.Anonymous {
			continue
		}
		et := sf.Type
		if et.Kind() != reflect.Pointer && et.Kind() != reflect.Interface {
			et = reflect.PointerTo(et)
		}
		if _, ok := et.MethodByName(name); ok {
			return true
		}
	}
	return false
}
