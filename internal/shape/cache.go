package shape

import (
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Policy is the configuration a shape depends on besides its type.
type Policy struct {
	// BackingFields includes the unexported fields that back properties.
	BackingFields bool
	// OpaqueGen is the opaque registry generation the shape was built with.
	OpaqueGen uint64
}

type key struct {
	t reflect.Type
	p Policy
}

type elemKey struct {
	t      reflect.Type
	p      Policy
	mapKey bool
}

// Cache maps types to shapes. Lookups never block; a race to build the same
// key is allowed since building is pure, and the first stored result wins.
type Cache struct {
	shapes   sync.Map // key -> *Shape
	elements sync.Map // elemKey -> *Node

	mu     sync.Mutex
	policy atomic.Pointer[Policy]
}

// Default is the process-wide shape cache.
var Default = &Cache{}

// Configure records the active policy. A policy different from the last one
// drops every cached entry.
func (c *Cache) Configure(p Policy) {
	if cur := c.policy.Load(); cur != nil && *cur == p {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur := c.policy.Load(); cur != nil && *cur == p {
		return
	}
	c.policy.Store(&p)
	c.shapes.Clear()
	c.elements.Clear()
	zap.L().Debug("shape cache invalidated",
		zap.Bool("backingFields", p.BackingFields),
		zap.Uint64("opaqueGen", p.OpaqueGen))
}

// Reset drops every cached entry.
func (c *Cache) Reset() {
	c.shapes.Clear()
	c.elements.Clear()
}

// Len returns the number of cached shapes.
func (c *Cache) Len() int {
	n := 0
	c.shapes.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Of returns the shape of t under policy p, building it on first use.
// Pointers are removed from t first.
func (c *Cache) Of(t reflect.Type, p Policy) (*Shape, error) {
	if t == nil {
		return nil, &UnsupportedTypeError{Reason: "nil type"}
	}
	t = Deref(t)
	if Unsupported(t) {
		return nil, &UnsupportedTypeError{Type: t, Reason: "pointer-like, channel and function values cannot be walked"}
	}
	k := key{t: t, p: p}
	if v, ok := c.shapes.Load(k); ok {
		return v.(*Shape), nil
	}
	b := &builder{cache: c, policy: p, root: t, active: map[reflect.Type]bool{}}
	s, err := b.shape(t)
	if err != nil {
		return nil, err
	}
	v, loaded := c.shapes.LoadOrStore(k, s)
	if !loaded {
		zap.L().Debug("shape built", zap.Stringer("type", t), zap.Int("nodes", s.Count()))
	}
	return v.(*Shape), nil
}

// Element returns the node describing one element of a collection whose
// element type is t. It returns nil when elements of t are not walked.
func (c *Cache) Element(t reflect.Type, p Policy) (*Node, error) {
	return c.element(elemKey{t: t, p: p})
}

// MapKey returns the read-only leaf node describing a map key of type t.
func (c *Cache) MapKey(t reflect.Type, p Policy) (*Node, error) {
	return c.element(elemKey{t: t, p: p, mapKey: true})
}

func (c *Cache) element(k elemKey) (*Node, error) {
	if v, ok := c.elements.Load(k); ok {
		return v.(*Node), nil
	}
	var n *Node
	switch {
	case Excluded(k.t):
	case k.mapKey:
		n = &Node{
			Descriptor: Descriptor{Type: k.t, Kind: KindCollectionElement, CanGet: true},
			Class:      ClassOpaque,
		}
	default:
		n = &Node{
			Descriptor: Descriptor{Type: k.t, Kind: KindCollectionElement, CanGet: true, CanSet: true},
			Class:      Classify(k.t),
		}
		if n.Class == ClassAggregate {
			s, err := c.Of(k.t, k.p)
			if err != nil {
				return nil, err
			}
			n.Children = s.Roots
		}
	}
	v, _ := c.elements.LoadOrStore(k, n)
	return v.(*Node), nil
}
