package treewalk

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reoring/treewalk/internal/access"
	"github.com/reoring/treewalk/internal/shape"
)

// Visitor is called for every leaf member. A non-nil error stops the
// traversal and is returned by Traverse.
type Visitor func(m *MemberAccessor) error

// Predicate is called for every member before it is read or expanded.
// Returning false drops the member and everything below it.
type Predicate func(m *MemberAccessor) bool

// StateVisitor is a Visitor threading caller state through the traversal.
type StateVisitor[S any] func(state *S, m *MemberAccessor) error

// StatePredicate is a Predicate that sees the current state.
type StatePredicate[S any] func(state S, m *MemberAccessor) bool

type (
	// Shape is the cached member tree of a type.
	Shape = shape.Shape
	// ShapeNode is one member of a Shape.
	ShapeNode = shape.Node
)

// Walker walks object graphs breadth-first. A Walker is safe for concurrent
// use; the shape and accessor caches it reads are process-wide.
type Walker struct {
	backing bool
	log     *zap.Logger
	shapes  *shape.Cache
}

// Option configures a Walker.
type Option func(*Walker)

// WithBackingFields includes the unexported fields that back properties.
// Changing this setting invalidates the cached shapes.
func WithBackingFields(include bool) Option {
	return func(w *Walker) { w.backing = include }
}

// WithLogger sets the logger used for diagnostics. The default is zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(w *Walker) {
		if l != nil {
			w.log = l
		}
	}
}

// WithOpaqueTypes registers types that are visited as a whole instead of
// being expanded. The registry is process-wide.
func WithOpaqueTypes(types ...reflect.Type) Option {
	return func(*Walker) { shape.RegisterOpaque(types...) }
}

// New returns a Walker.
func New(opts ...Option) *Walker {
	w := &Walker{log: zap.L(), shapes: shape.Default}
	for _, o := range opts {
		o(w)
	}
	w.shapes.Configure(w.policy())
	return w
}

var _default = New()

// Traverse walks root with the default Walker.
func Traverse(root any, visit Visitor, pred Predicate) error {
	return _default.Traverse(root, visit, pred)
}

// ResetCaches drops every cached shape and accessor table.
func ResetCaches() {
	shape.Default.Reset()
	access.Reset()
}

func (w *Walker) policy() shape.Policy {
	return shape.Policy{BackingFields: w.backing, OpaqueGen: shape.OpaqueGeneration()}
}

// Shape returns the cached shape of t.
func (w *Walker) Shape(t reflect.Type) (*Shape, error) {
	p := w.policy()
	w.shapes.Configure(p)
	return w.shapes.Of(t, p)
}

// Warm builds the shapes and accessor tables of types concurrently so that
// later traversals find them cached.
func (w *Walker) Warm(types ...reflect.Type) error {
	p := w.policy()
	w.shapes.Configure(p)
	var g errgroup.Group
	for _, t := range types {
		g.Go(func() error {
			s, err := w.shapes.Of(t, p)
			if err != nil {
				return err
			}
			return warmTables(s.Type, s.Roots)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	w.log.Debug("caches warmed", zap.Int("types", len(types)), zap.Int("shapes", w.shapes.Len()))
	return nil
}

func warmTables(t reflect.Type, nodes []*shape.Node) error {
	if t.Kind() == reflect.Struct {
		if _, err := access.For(t); err != nil {
			return err
		}
	}
	for _, n := range nodes {
		if len(n.Children) > 0 {
			if err := warmTables(shape.Deref(n.Type), n.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

// Traverse visits every leaf member of root breadth-first. Siblings are
// visited in declaration order, and a depth level is finished before the
// next one starts. pred may be nil.
//
// Pass a pointer to have mutations reach the caller's object; with a root
// passed by value SetValue returns ErrNotAddressable.
func (w *Walker) Traverse(root any, visit Visitor, pred Predicate) error {
	if visit == nil {
		return ErrNilVisitor
	}
	return w.traverse(root, visit, pred)
}

// TraverseWith is Traverse with state threaded through every callback. The
// final state is returned together with the traversal error.
func TraverseWith[S any](w *Walker, root any, init S, visit StateVisitor[S], pred StatePredicate[S]) (S, error) {
	if visit == nil {
		return init, ErrNilVisitor
	}
	if w == nil {
		w = _default
	}
	state := init
	var p Predicate
	if pred != nil {
		p = func(m *MemberAccessor) bool { return pred(state, m) }
	}
	err := w.traverse(root, func(m *MemberAccessor) error { return visit(&state, m) }, p)
	return state, err
}

// run is the state of one traversal.
type run struct {
	w      *Walker
	policy shape.Policy
	visit  Visitor
	pred   Predicate
	q      *queue
	// fatal holds the first invariant violation raised through an accessor.
	fatal error
}

func (w *Walker) traverse(root any, visit Visitor, pred Predicate) error {
	if root == nil {
		return ErrNilRoot
	}
	rv := reflect.ValueOf(root)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return ErrNilRoot
		}
		rv = rv.Elem()
	}
	p := w.policy()
	w.shapes.Configure(p)
	s, err := w.shapes.Of(rv.Type(), p)
	if err != nil {
		return err
	}

	r := &run{w: w, policy: p, visit: visit, pred: pred, q: getQueue()}
	defer putQueue(r.q)

	own := rootOwner(rv)
	switch s.Class {
	case shape.ClassAggregate:
		err = r.enqueueMembers(own, s.Roots, nil)
	case shape.ClassCollection:
		err = r.expand(own.v, own, "", nil)
	}
	if err != nil {
		return err
	}
	return r.drain()
}

// rootOwner binds the root value. A root reached through a pointer is
// reference-backed; one passed by value is copied and can not be written back.
func rootOwner(rv reflect.Value) *owner {
	if rv.CanAddr() {
		return &owner{v: rv}
	}
	cp := reflect.New(rv.Type()).Elem()
	cp.Set(rv)
	return &owner{v: cp, link: &writeBack{detached: true}}
}

func (r *run) drain() error {
	for {
		it, ok := r.q.pop()
		if !ok {
			return nil
		}
		if err := r.step(it); err != nil {
			return err
		}
		if r.fatal != nil {
			return r.fatal
		}
	}
}

func (r *run) push(n *shape.Node, m *MemberAccessor) {
	m.run = r
	r.q.push(item{node: n, acc: m})
}

func (r *run) step(it item) error {
	n, m := it.node, it.acc
	if r.pred != nil && !r.pred(m) {
		return r.fatal
	}
	if r.fatal != nil {
		return r.fatal
	}
	if n.IsLeaf() {
		return r.leaf(m)
	}
	val, err := m.slot.get()
	if err != nil {
		return m.fail(invariant(CodeMissingMember, m.path, err))
	}
	switch n.Class {
	case shape.ClassAggregate:
		own, err := r.bind(val, m.slot, m.path)
		if err != nil {
			return m.fail(err)
		}
		return r.enqueueMembers(own, n.Children, m.path)
	case shape.ClassCollection:
		return r.expandValue(val, m)
	case shape.ClassDynamic:
		return r.dispatch(val, m)
	}
	return m.fail(invariantf(CodeUnexpectedKind, m.path, "node class %v", n.Class))
}

func (r *run) leaf(m *MemberAccessor) error {
	err := r.visit(m)
	if r.fatal != nil {
		return r.fatal
	}
	return err
}

// bind turns an aggregate value read from a slot into the owner of its
// members. Pointer targets are reference-backed; addressable values live
// inside the slot's container; anything else is copied and linked back to
// the slot it came from.
func (r *run) bind(val reflect.Value, from slot, path Path) (*owner, error) {
	if val.Kind() == reflect.Pointer {
		for val.Kind() == reflect.Pointer {
			if val.IsNil() {
				return nil, invariantf(CodeNilAggregate, path, "%v is nil but its shape has members", val.Type())
			}
			val = val.Elem()
		}
		return &owner{v: val}, nil
	}
	if val.CanAddr() {
		return &owner{v: val, outer: from.container()}, nil
	}
	cp := reflect.New(val.Type()).Elem()
	cp.Set(val)
	return &owner{v: cp, link: &writeBack{from: from, copy: cp, path: path}}, nil
}

func (r *run) enqueueMembers(own *owner, nodes []*shape.Node, path Path) error {
	if len(nodes) == 0 {
		return nil
	}
	tbl, err := access.For(own.v.Type())
	if err != nil {
		return invariant(CodeShapeMismatch, path, err)
	}
	for _, n := range nodes {
		p := path.with(PathItem{Name: n.Name})
		if !tbl.Has(n.Name) {
			return invariantf(CodeMissingMember, p, "no accessor for %q on %v", n.Name, own.v.Type())
		}
		r.push(n, &MemberAccessor{
			name: n.Name,
			typ:  n.Type,
			kind: n.Kind,
			path: p,
			slot: &memberSlot{tbl: tbl, own: own, name: n.Name},
		})
	}
	return nil
}

// dispatch resolves an interface slot by the dynamic type of its content.
func (r *run) dispatch(val reflect.Value, m *MemberAccessor) error {
	from := m.slot
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return r.leaf(m)
		}
		val = val.Elem()
		from = &valueSlot{v: val}
	}
	if val.Kind() != reflect.Interface || val.IsNil() {
		return r.leaf(m)
	}
	dyn := val.Elem()
	if isNilValue(dyn) {
		return r.leaf(m)
	}
	s, err := r.w.shapes.Of(dyn.Type(), r.policy)
	if err != nil {
		var ut *UnsupportedTypeError
		if errors.As(err, &ut) {
			return nil
		}
		return err
	}
	switch s.Class {
	case shape.ClassAggregate:
		if len(s.Roots) == 0 {
			return r.leaf(m)
		}
		own, err := r.bind(dyn, from, m.path)
		if err != nil {
			return m.fail(err)
		}
		return r.enqueueMembers(own, s.Roots, m.path)
	case shape.ClassCollection:
		return r.expandFrom(dyn, from, m)
	}
	return r.leaf(m)
}

func (r *run) expandValue(val reflect.Value, m *MemberAccessor) error {
	return r.expandFrom(val, m.slot, m)
}

// expandFrom expands a collection read from slot from.
func (r *run) expandFrom(val reflect.Value, from slot, m *MemberAccessor) error {
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
		from = &valueSlot{v: val}
	}
	var own *owner
	if val.Kind() == reflect.Array {
		var err error
		if own, err = r.bind(val, from, m.path); err != nil {
			return m.fail(err)
		}
		val = own.v
	}
	return r.expand(val, own, m.name, m.path)
}

// expand enqueues one work item per element of a slice, array or map.
// Arrays are walked through own, which holds them addressably.
func (r *run) expand(coll reflect.Value, own *owner, name string, path Path) error {
	switch coll.Kind() {
	case reflect.Slice, reflect.Array:
		n, err := r.w.shapes.Element(coll.Type().Elem(), r.policy)
		if err != nil || n == nil {
			return err
		}
		for i := 0; i < coll.Len(); i++ {
			var s slot
			if coll.Kind() == reflect.Slice {
				s = &sliceSlot{s: coll, i: i, name: name}
			} else {
				s = &arraySlot{own: own, i: i, name: name}
			}
			r.push(n, &MemberAccessor{
				name: name,
				typ:  n.Type,
				kind: KindCollectionElement,
				path: path.with(PathItem{Name: name, Index: i, HasIndex: true}),
				slot: s,
			})
		}
	case reflect.Map:
		kn, err := r.w.shapes.MapKey(coll.Type().Key(), r.policy)
		if err != nil {
			return err
		}
		vn, err := r.w.shapes.Element(coll.Type().Elem(), r.policy)
		if err != nil {
			return err
		}
		for i, k := range sortedKeys(coll) {
			key := fmt.Sprint(k.Interface())
			if kn != nil {
				r.push(kn, &MemberAccessor{
					name: name,
					typ:  kn.Type,
					kind: KindCollectionElement,
					path: path.with(PathItem{Name: name, Index: i, HasIndex: true, IsDictionaryKey: true, IsMapEntry: true, Key: key}),
					slot: &mapKeySlot{key: k},
				})
			}
			if vn != nil {
				r.push(vn, &MemberAccessor{
					name: name,
					typ:  vn.Type,
					kind: KindCollectionElement,
					path: path.with(PathItem{Name: name, Index: i, HasIndex: true, IsMapEntry: true, Key: key}),
					slot: &mapValueSlot{m: coll, key: k, name: name},
				})
			}
		}
	}
	return nil
}

// isNilValue reports whether v is a typed nil, following pointers.
func isNilValue(v reflect.Value) bool {
	for {
		switch v.Kind() {
		case reflect.Pointer:
			if v.IsNil() {
				return true
			}
			v = v.Elem()
		case reflect.Map, reflect.Slice:
			return v.IsNil()
		default:
			return false
		}
	}
}

// sortedKeys orders map keys so that repeated traversals of an unchanged
// map see the same sequence.
func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b reflect.Value) int {
	if a.Kind() == reflect.Interface && b.Kind() == reflect.Interface && !a.IsNil() && !b.IsNil() {
		a, b = a.Elem(), b.Elem()
	}
	if a.Kind() == b.Kind() {
		switch a.Kind() {
		case reflect.String:
			return cmp.Compare(a.String(), b.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return cmp.Compare(a.Int(), b.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return cmp.Compare(a.Uint(), b.Uint())
		case reflect.Float32, reflect.Float64:
			return cmp.Compare(a.Float(), b.Float())
		case reflect.Bool:
			switch {
			case a.Bool() == b.Bool():
				return 0
			case !a.Bool():
				return -1
			default:
				return 1
			}
		}
	}
	return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}

// valueSlot is an addressable, reference-backed value such as a pointer
// target.
type valueSlot struct {
	v reflect.Value
}

func (s *valueSlot) get() (reflect.Value, error) { return s.v, nil }

func (s *valueSlot) set(x reflect.Value) error {
	x, err := access.Assignable("", s.v.Type(), x)
	if err != nil {
		return err
	}
	s.v.Set(x)
	return nil
}

func (s *valueSlot) canSet() bool      { return s.v.CanSet() }
func (s *valueSlot) container() *owner { return nil }

func logPath(p Path) zap.Field { return zap.String("path", p.Pointer()) }
func logErr(err error) zap.Field  { return zap.Error(err) }
