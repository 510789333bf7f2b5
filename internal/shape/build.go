package shape

import (
	"fmt"
	"reflect"
)

// UnsupportedTypeError reports a root type that cannot be walked.
type UnsupportedTypeError struct {
	Type   reflect.Type
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("shape: unsupported type %v: %s", e.Type, e.Reason)
}

// RecursiveTypeError reports a type that contains itself through struct
// members or pointers. Walking such a type statically would never end.
type RecursiveTypeError struct {
	Type reflect.Type // type whose shape was requested
	Via  reflect.Type // type that recurs
}

func (e *RecursiveTypeError) Error() string {
	if e.Type == e.Via {
		return fmt.Sprintf("shape: type %v contains itself", e.Type)
	}
	return fmt.Sprintf("shape: type %v is recursive through %v", e.Type, e.Via)
}

type builder struct {
	cache  *Cache
	policy Policy
	root   reflect.Type
	active map[reflect.Type]bool
}

func (b *builder) shape(t reflect.Type) (*Shape, error) {
	s := &Shape{Type: t, Class: Classify(t)}
	if s.Class != ClassAggregate {
		return s, nil
	}
	roots, err := b.members(t)
	if err != nil {
		return nil, err
	}
	s.Roots = roots
	return s, nil
}

func (b *builder) members(t reflect.Type) ([]*Node, error) {
	if b.active[t] {
		return nil, &RecursiveTypeError{Type: b.root, Via: t}
	}
	b.active[t] = true
	defer delete(b.active, t)

	members := Members(t)
	nodes := make([]*Node, 0, len(members))
	for _, m := range members {
		if m.Backing && !b.policy.BackingFields {
			continue
		}
		n := &Node{Descriptor: m.Descriptor, Class: Classify(m.Type)}
		if n.Class == ClassAggregate {
			children, err := b.children(Deref(m.Type))
			if err != nil {
				return nil, err
			}
			n.Children = children
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// children returns the roots of a nested aggregate, sharing the cached
// shape when one exists and caching the one built otherwise.
func (b *builder) children(t reflect.Type) ([]*Node, error) {
	k := key{t: t, p: b.policy}
	if v, ok := b.cache.shapes.Load(k); ok {
		return v.(*Shape).Roots, nil
	}
	roots, err := b.members(t)
	if err != nil {
		return nil, err
	}
	v, _ := b.cache.shapes.LoadOrStore(k, &Shape{Type: t, Class: ClassAggregate, Roots: roots})
	return v.(*Shape).Roots, nil
}
