package treewalk_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/treewalk"
)

type FooBar struct {
	Foo1 int
	Foo2 int
	Foo3 int
}

func newFooBar() *FooBar { return &FooBar{Foo1: 111, Foo2: 222, Foo3: 333} }

type ComplexFooBar struct {
	Foo1 int
	Obj  *FooBar
	Foo4 int
}

func newComplexFooBar() *ComplexFooBar {
	return &ComplexFooBar{Foo1: 111, Obj: newFooBar(), Foo4: 456}
}

func collectInts(t *testing.T, root any, pred treewalk.Predicate) []int {
	t.Helper()
	var out []int
	err := treewalk.Traverse(root, func(m *treewalk.MemberAccessor) error {
		v, err := m.GetValue()
		if err != nil {
			return err
		}
		out = append(out, v.(int))
		return nil
	}, pred)
	require.NoError(t, err)
	return out
}

func TestTraverse_FlatDeclarationOrder(t *testing.T) {
	assert.Equal(t, []int{111, 222, 333}, collectInts(t, newFooBar(), nil))
}

func TestTraverse_BreadthFirst(t *testing.T) {
	assert.Equal(t, []int{111, 456, 111, 222, 333}, collectInts(t, newComplexFooBar(), nil))
}

func TestTraverse_PredicateSkipsMatchedNodeOnly(t *testing.T) {
	got := collectInts(t, newComplexFooBar(), func(m *treewalk.MemberAccessor) bool {
		return m.Name() != "Foo1"
	})
	assert.Equal(t, []int{456, 222, 333}, got)
}

func TestTraverse_PredicateDropsSubtree(t *testing.T) {
	got := collectInts(t, newComplexFooBar(), func(m *treewalk.MemberAccessor) bool {
		return m.Name() != "Obj"
	})
	assert.Equal(t, []int{111, 456}, got)
}

func TestTraverseWith_ThreadsState(t *testing.T) {
	type sums struct {
		Total int
		Seen  []int
	}
	var collected []int
	res, err := treewalk.TraverseWith(nil, newComplexFooBar(), sums{},
		func(s *sums, m *treewalk.MemberAccessor) error {
			v, err := m.GetValue()
			if err != nil {
				return err
			}
			s.Total += v.(int)
			s.Seen = append(s.Seen, v.(int))
			collected = append(collected, v.(int))
			return nil
		}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Total)
	sum := 0
	for _, v := range collected {
		sum += v
	}
	assert.Equal(t, sum, res.Total)
	assert.Equal(t, collected, res.Seen)
}

func TestTraverseWith_PredicateSeesState(t *testing.T) {
	// stop descending once two leaves have been counted
	n, err := treewalk.TraverseWith(treewalk.New(), newComplexFooBar(), 0,
		func(n *int, _ *treewalk.MemberAccessor) error { *n++; return nil },
		func(n int, _ *treewalk.MemberAccessor) bool { return n < 2 })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTraverse_Idempotent(t *testing.T) {
	root := newComplexFooBar()
	first := collectInts(t, root, nil)
	second := collectInts(t, root, nil)
	assert.Equal(t, first, second)
}

func TestTraverse_PropertyPaths(t *testing.T) {
	var paths []string
	var pointers []string
	err := treewalk.Traverse(newComplexFooBar(), func(m *treewalk.MemberAccessor) error {
		paths = append(paths, m.Path().String())
		pointers = append(pointers, m.Path().Pointer())
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo1", "Foo4", "Obj.Foo1", "Obj.Foo2", "Obj.Foo3"}, paths)
	assert.Equal(t, []string{"/Foo1", "/Foo4", "/Obj/Foo1", "/Obj/Foo2", "/Obj/Foo3"}, pointers)
}

func TestTraverse_MemberTypes(t *testing.T) {
	err := treewalk.Traverse(newComplexFooBar(), func(m *treewalk.MemberAccessor) error {
		assert.Equal(t, reflect.TypeFor[int](), m.DeclaredType())
		assert.Equal(t, treewalk.KindField, m.Kind())
		return nil
	}, nil)
	require.NoError(t, err)
}

type ObjWithString struct {
	StringProperty  string
	StringProperty2 string
}

type ComplexObjWithString struct {
	Foo string
	Bar *ObjWithString
}

type objectInterface interface{ marker() }

func (*ComplexObjWithString) marker() {}

func TestTraverse_ThroughInterfaceValue(t *testing.T) {
	var obj objectInterface = &ComplexObjWithString{Foo: "B", Bar: &ObjWithString{"A", "C"}}
	result := ""
	err := treewalk.Traverse(obj, func(m *treewalk.MemberAccessor) error {
		v, _ := m.GetValue()
		result += v.(string)
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "BAC", result)
}

type JustAFoobar struct {
	NumProperty    int
	StringProperty string
}

func fillFoobar(m *treewalk.MemberAccessor) error {
	switch m.Name() {
	case "NumProperty", "AnotherNumProperty":
		return m.SetValue(5)
	case "StringProperty", "AnotherStringProperty":
		return m.SetValue("abc")
	}
	return nil
}

func TestTraverse_SetsUninitializedObject(t *testing.T) {
	obj := &JustAFoobar{}
	require.NoError(t, treewalk.Traverse(obj, fillFoobar, nil))
	assert.Equal(t, JustAFoobar{NumProperty: 5, StringProperty: "abc"}, *obj)
}

func TestTraverse_RootByValueIsReadOnly(t *testing.T) {
	obj := JustAFoobar{NumProperty: 1}
	var setErr error
	err := treewalk.Traverse(obj, func(m *treewalk.MemberAccessor) error {
		assert.False(t, m.CanSet())
		if m.Name() == "NumProperty" {
			setErr = m.SetValue(7)
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, setErr, treewalk.ErrNotAddressable)
	assert.Equal(t, 1, obj.NumProperty)
}

type ObjectWithUpcast struct {
	Value any
}

func TestTraverse_UpcastPointerSlot(t *testing.T) {
	inner := &JustAFoobar{}
	holder := &ObjectWithUpcast{Value: inner}
	require.NoError(t, treewalk.Traverse(holder, fillFoobar, nil))
	assert.Equal(t, 5, inner.NumProperty)
	assert.Equal(t, "abc", inner.StringProperty)
}

func TestTraverse_UpcastStructValueIsWrittenBack(t *testing.T) {
	holder := &ObjectWithUpcast{Value: JustAFoobar{}}
	require.NoError(t, treewalk.Traverse(holder, fillFoobar, nil))
	assert.Equal(t, JustAFoobar{NumProperty: 5, StringProperty: "abc"}, holder.Value)
}

func TestTraverse_UpcastPathsContinueBelowSlot(t *testing.T) {
	holder := &ObjectWithUpcast{Value: JustAFoobar{NumProperty: 3}}
	var paths []string
	require.NoError(t, treewalk.Traverse(holder, func(m *treewalk.MemberAccessor) error {
		paths = append(paths, m.Path().String())
		return nil
	}, nil))
	assert.Equal(t, []string{"Value.NumProperty", "Value.StringProperty"}, paths)
}

func TestTraverse_NilInterfaceIsLeaf(t *testing.T) {
	holder := &ObjectWithUpcast{}
	var visited []string
	require.NoError(t, treewalk.Traverse(holder, func(m *treewalk.MemberAccessor) error {
		visited = append(visited, m.Name())
		return m.SetValue(42)
	}, nil))
	assert.Equal(t, []string{"Value"}, visited)
	assert.Equal(t, 42, holder.Value)
}

type typedNilHolder struct {
	X     int
	Value any
	Err   error
	Y     int
}

type holderErr struct{ Msg string }

func (e *holderErr) Error() string { return e.Msg }

func TestTraverse_TypedNilInInterfaceIsLeaf(t *testing.T) {
	obj := &typedNilHolder{X: 1, Value: (*FooBar)(nil), Err: (*holderErr)(nil), Y: 2}
	var visited []string
	require.NoError(t, treewalk.Traverse(obj, func(m *treewalk.MemberAccessor) error {
		visited = append(visited, m.Name())
		return nil
	}, nil))
	assert.Equal(t, []string{"X", "Value", "Err", "Y"}, visited)

	obj.Value = map[string]int(nil)
	require.NoError(t, treewalk.Traverse(obj, func(m *treewalk.MemberAccessor) error {
		if m.Name() == "Value" {
			return m.SetValue(&FooBar{Foo1: 7})
		}
		return nil
	}, nil))
	assert.Equal(t, &FooBar{Foo1: 7}, obj.Value)
}

type BarFooAsStruct struct {
	AnotherStringProperty string
	AnotherNumProperty    int
	DecimalProperty       float64
	BoolProperty          bool
}

type ComplexFoobarStructField struct {
	NumProperty    int
	StringProperty string
	Embedded       BarFooAsStruct
}

type nestedValueHolder struct {
	Items map[string]any
	Outer any
}

func TestTraverse_EmbeddedStructField(t *testing.T) {
	obj := &ComplexFoobarStructField{}
	require.NoError(t, treewalk.Traverse(obj, fillFoobar, nil))
	assert.Equal(t, 5, obj.NumProperty)
	assert.Equal(t, "abc", obj.StringProperty)
	assert.Equal(t, 5, obj.Embedded.AnotherNumProperty)
	assert.Equal(t, "abc", obj.Embedded.AnotherStringProperty)
}

func TestTraverse_WriteBackChainThroughCopies(t *testing.T) {
	// Outer holds a struct by value in an interface; its Embedded field is
	// a struct inside that copy. Items stores the same shape in a map.
	obj := &nestedValueHolder{
		Items: map[string]any{"x": ComplexFoobarStructField{NumProperty: 1}},
		Outer: ComplexFoobarStructField{NumProperty: 2},
	}
	require.NoError(t, treewalk.Traverse(obj, fillFoobar, nil))

	outer := obj.Outer.(ComplexFoobarStructField)
	assert.Equal(t, 5, outer.NumProperty)
	assert.Equal(t, 5, outer.Embedded.AnotherNumProperty)
	assert.Equal(t, "abc", outer.Embedded.AnotherStringProperty)

	item := obj.Items["x"].(ComplexFoobarStructField)
	assert.Equal(t, 5, item.NumProperty)
	assert.Equal(t, 5, item.Embedded.AnotherNumProperty)
}

type mapOfStructs struct {
	ByName map[string]BarFooAsStruct
}

func TestTraverse_MapValueStructIsWrittenBack(t *testing.T) {
	obj := &mapOfStructs{ByName: map[string]BarFooAsStruct{"a": {}, "b": {}}}
	require.NoError(t, treewalk.Traverse(obj, fillFoobar, nil))
	for k, v := range obj.ByName {
		assert.Equal(t, 5, v.AnotherNumProperty, k)
		assert.Equal(t, "abc", v.AnotherStringProperty, k)
	}
}

type arrayInInterface struct {
	Value any
}

func TestTraverse_ArrayInInterfaceIsWrittenBack(t *testing.T) {
	obj := &arrayInInterface{Value: [3]int{1, 2, 3}}
	require.NoError(t, treewalk.Traverse(obj, func(m *treewalk.MemberAccessor) error {
		v, _ := m.GetValue()
		return m.SetValue(v.(int) * 10)
	}, nil))
	assert.Equal(t, [3]int{10, 20, 30}, obj.Value)
}

type Node struct {
	Value int
	Next  *Node
}

type Tree struct {
	Value int
	Kids  []Tree
}

func TestTraverse_RecursiveTypeRejected(t *testing.T) {
	err := treewalk.Traverse(&Node{}, func(*treewalk.MemberAccessor) error { return nil }, nil)
	var rte *treewalk.RecursiveTypeError
	require.ErrorAs(t, err, &rte)
	assert.Equal(t, reflect.TypeFor[Node](), rte.Via)
}

func TestTraverse_TreeThroughSlices(t *testing.T) {
	tree := &Tree{Value: 1, Kids: []Tree{{Value: 2, Kids: []Tree{{Value: 4}}}, {Value: 3}}}
	assert.Equal(t, []int{1, 2, 3, 4}, collectInts(t, tree, nil))
}

func TestTraverse_NilAggregateIsInvariantViolation(t *testing.T) {
	obj := &ComplexFooBar{Foo1: 1}
	var visited int
	err := treewalk.Traverse(obj, func(*treewalk.MemberAccessor) error { visited++; return nil }, nil)
	require.Error(t, err)
	ie, ok := treewalk.AsInvariant(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, treewalk.CodeNilAggregate, ie.Code)
	assert.Equal(t, "/Obj", ie.Path)
	// Foo4 is queued behind Obj and never reached.
	assert.Equal(t, 1, visited)
}

func TestTraverse_NilAggregateCanBeSkipped(t *testing.T) {
	obj := &ComplexFooBar{Foo1: 1, Foo4: 4}
	got := collectInts(t, obj, func(m *treewalk.MemberAccessor) bool {
		v, err := m.GetValue()
		return err == nil && v != (*FooBar)(nil)
	})
	assert.Equal(t, []int{1, 4}, got)
}

func TestTraverse_ArgumentErrors(t *testing.T) {
	noop := func(*treewalk.MemberAccessor) error { return nil }
	assert.ErrorIs(t, treewalk.Traverse(nil, noop, nil), treewalk.ErrNilRoot)
	assert.ErrorIs(t, treewalk.Traverse((*FooBar)(nil), noop, nil), treewalk.ErrNilRoot)
	assert.ErrorIs(t, treewalk.Traverse(newFooBar(), nil, nil), treewalk.ErrNilVisitor)
	_, err := treewalk.TraverseWith[int](nil, newFooBar(), 0, nil, nil)
	assert.ErrorIs(t, err, treewalk.ErrNilVisitor)
}

func TestTraverse_UnsupportedRoot(t *testing.T) {
	noop := func(*treewalk.MemberAccessor) error { return nil }
	var ute *treewalk.UnsupportedTypeError
	require.ErrorAs(t, treewalk.Traverse(make(chan int), noop, nil), &ute)
	require.ErrorAs(t, treewalk.Traverse(func() {}, noop, nil), &ute)
}

type withChannels struct {
	Num  int
	Ch   chan int
	Fn   func()
	Lock sync.Mutex
	Name string
}

func TestTraverse_UnsupportedMembersSkipped(t *testing.T) {
	var names []string
	require.NoError(t, treewalk.Traverse(&withChannels{}, func(m *treewalk.MemberAccessor) error {
		names = append(names, m.Name())
		return nil
	}, nil))
	assert.Equal(t, []string{"Num", "Name"}, names)
}

func TestTraverse_TypeMismatchDoesNotAbort(t *testing.T) {
	obj := newFooBar()
	var mismatches int
	err := treewalk.Traverse(obj, func(m *treewalk.MemberAccessor) error {
		err := m.SetValue("not an int")
		var tme *treewalk.TypeMismatchError
		if errors.As(err, &tme) {
			mismatches++
			assert.Equal(t, reflect.TypeFor[int](), tme.Want)
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, mismatches)
	assert.Equal(t, newFooBar(), obj)
}

func TestTraverse_NoSilentCoercion(t *testing.T) {
	obj := newFooBar()
	require.NoError(t, treewalk.Traverse(obj, func(m *treewalk.MemberAccessor) error {
		assert.False(t, m.TrySetValue(int64(1)))
		return nil
	}, nil))
	assert.Equal(t, 111, obj.Foo1)
}

func TestTraverse_NilSetsZeroValue(t *testing.T) {
	obj := &JustAFoobar{NumProperty: 9, StringProperty: "x"}
	require.NoError(t, treewalk.Traverse(obj, func(m *treewalk.MemberAccessor) error {
		return m.SetValue(nil)
	}, nil))
	assert.Equal(t, JustAFoobar{}, *obj)
}

func TestTraverse_VisitorErrorStops(t *testing.T) {
	stop := errors.New("stop")
	var n int
	err := treewalk.Traverse(newComplexFooBar(), func(*treewalk.MemberAccessor) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	}, nil)
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, n)
}

type privateFields struct {
	num  int
	str  string
	Pub  int
	skip int `walk:"-"`
	Tag  int `walk:"name=Renamed"`
}

func TestTraverse_UnexportedAndTaggedFields(t *testing.T) {
	obj := &privateFields{num: 1, str: "s", Pub: 2, skip: 3, Tag: 4}
	var names []string
	require.NoError(t, treewalk.Traverse(obj, func(m *treewalk.MemberAccessor) error {
		names = append(names, m.Name())
		if m.Name() == "num" {
			return m.SetValue(10)
		}
		return nil
	}, nil))
	assert.Equal(t, []string{"num", "str", "Pub", "Renamed"}, names)
	assert.Equal(t, 10, obj.num)
	assert.Equal(t, 3, obj.skip)
}

func TestWalker_ConcurrentTraversals(t *testing.T) {
	treewalk.ResetCaches()
	w := treewalk.New()
	var wg sync.WaitGroup
	results := make([][]int, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out []int
			_ = w.Traverse(newComplexFooBar(), func(m *treewalk.MemberAccessor) error {
				v, _ := m.GetValue()
				out = append(out, v.(int))
				return nil
			}, nil)
			results[i] = out
		}()
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, []int{111, 456, 111, 222, 333}, r)
	}
}

func TestWalker_ShapeIsCached(t *testing.T) {
	w := treewalk.New()
	var wg sync.WaitGroup
	shapes := make([]*treewalk.Shape, 8)
	for i := range shapes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := w.Shape(reflect.TypeFor[ComplexFooBar]())
			assert.NoError(t, err)
			shapes[i] = s
		}()
	}
	wg.Wait()
	for _, s := range shapes[1:] {
		assert.Equal(t, shapes[0].String(), s.String())
	}
	again, err := w.Shape(reflect.TypeFor[*ComplexFooBar]())
	require.NoError(t, err)
	assert.Same(t, again, shapes[0])
}

func TestWalker_Warm(t *testing.T) {
	treewalk.ResetCaches()
	w := treewalk.New()
	require.NoError(t, w.Warm(reflect.TypeFor[ComplexFooBar](), reflect.TypeFor[Tree](), reflect.TypeFor[mapOfStructs]()))
	var rte *treewalk.RecursiveTypeError
	assert.ErrorAs(t, w.Warm(reflect.TypeFor[Node]()), &rte)
}
