// Package shape computes and caches the walkable member tree of a Go type.
//
// A shape depends only on static types, never on instance data, which is
// what makes caching it by reflect.Type sound. Collections have no static
// children; their elements are expanded by the traversal engine.
package shape

import (
	"reflect"
	"strings"
)

// Kind is the variant of a member.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindField
	KindProperty
	KindCollectionElement
)

func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindProperty:
		return "property"
	case KindCollectionElement:
		return "element"
	default:
		return "unknown"
	}
}

// Class tells the traversal engine how to treat the value of a member.
type Class uint8

const (
	// ClassOpaque values are visited as a whole and never expanded.
	ClassOpaque Class = iota
	// ClassAggregate values are structs, possibly behind pointers.
	ClassAggregate
	// ClassCollection values are slices, arrays and maps, expanded per element.
	ClassCollection
	// ClassDynamic values are interfaces whose shape is resolved from the
	// dynamic type at traversal time.
	ClassDynamic
)

func (c Class) String() string {
	switch c {
	case ClassAggregate:
		return "aggregate"
	case ClassCollection:
		return "collection"
	case ClassDynamic:
		return "dynamic"
	default:
		return "opaque"
	}
}

// Descriptor is the immutable fact about one member.
type Descriptor struct {
	Name   string
	Type   reflect.Type
	Kind   Kind
	CanGet bool
	CanSet bool
}

// Node is one member of a shape together with the members of its type.
type Node struct {
	Descriptor
	Class    Class
	Children []*Node
}

// IsLeaf reports whether the node is a data vertex: nothing to expand,
// statically or at traversal time.
func (n *Node) IsLeaf() bool {
	switch n.Class {
	case ClassAggregate:
		return len(n.Children) == 0
	case ClassOpaque:
		return true
	default:
		return false
	}
}

// Shape is the cached member tree of a type.
type Shape struct {
	// Type is the inspected type with pointers removed.
	Type  reflect.Type
	Class Class
	Roots []*Node
}

// Count returns the number of nodes reachable from the roots.
func (s *Shape) Count() int {
	n := 0
	var walk func([]*Node)
	walk = func(nodes []*Node) {
		for _, c := range nodes {
			n++
			walk(c.Children)
		}
	}
	walk(s.Roots)
	return n
}

// String renders the shape one member per line, children indented.
func (s *Shape) String() string {
	b := &strings.Builder{}
	b.WriteString(s.Type.String())
	var walk func([]*Node, int)
	walk = func(nodes []*Node, depth int) {
		for _, c := range nodes {
			b.WriteByte('\n')
			b.WriteString(strings.Repeat("  ", depth+1))
			b.WriteString(c.Name)
			b.WriteString(" ")
			b.WriteString(c.Type.String())
			b.WriteString(" (")
			b.WriteString(c.Kind.String())
			if c.Class != ClassOpaque {
				b.WriteString(", ")
				b.WriteString(c.Class.String())
			}
			if !c.CanSet {
				b.WriteString(", read-only")
			}
			b.WriteString(")")
			walk(c.Children, depth+1)
		}
	}
	walk(s.Roots, 0)
	return b.String()
}

// Find returns the node reached by following names from the roots.
func (s *Shape) Find(names ...string) (*Node, bool) {
	nodes := s.Roots
	var cur *Node
	for _, name := range names {
		cur = nil
		for _, n := range nodes {
			if n.Name == name {
				cur = n
				break
			}
		}
		if cur == nil {
			return nil, false
		}
		nodes = cur.Children
	}
	return cur, cur != nil
}
