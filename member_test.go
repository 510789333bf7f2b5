package treewalk_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/treewalk"
)

func TestGetSetMember(t *testing.T) {
	obj := &privateFields{num: 1}
	v, err := treewalk.GetMember(obj, "num")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, treewalk.SetMember(obj, "num", 5))
	assert.Equal(t, 5, obj.num)
	require.NoError(t, treewalk.SetMember(obj, "Renamed", 6))
	assert.Equal(t, 6, obj.Tag)

	v, err = treewalk.GetMember(*obj, "str")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestGetSetMember_Properties(t *testing.T) {
	obj := &PropFooBar{}
	require.NoError(t, treewalk.SetMember(obj, "Foo2", 8))
	v, err := treewalk.GetMember(obj, "Foo2")
	require.NoError(t, err)
	assert.Equal(t, 8, v)

	ro := &readOnlyProp{count: 2}
	assert.ErrorIs(t, treewalk.SetMember(ro, "Count", 3), treewalk.ErrReadOnly)
}

func TestGetSetMember_Errors(t *testing.T) {
	obj := &FooBar{}
	_, err := treewalk.GetMember(obj, "Missing")
	assert.ErrorIs(t, err, treewalk.ErrMemberNotFound)
	assert.ErrorIs(t, treewalk.SetMember(obj, "Missing", 1), treewalk.ErrMemberNotFound)
	assert.ErrorIs(t, treewalk.SetMember(*obj, "Foo1", 1), treewalk.ErrNotAddressable)
	assert.ErrorIs(t, treewalk.SetMember(nil, "Foo1", 1), treewalk.ErrNilRoot)

	var tme *treewalk.TypeMismatchError
	require.ErrorAs(t, treewalk.SetMember(obj, "Foo1", "x"), &tme)
	assert.Equal(t, "Foo1", tme.Member)

	require.NoError(t, treewalk.SetMember(&FooBar{Foo1: 3}, "Foo1", nil))
}

func TestInvariantError_Format(t *testing.T) {
	err := treewalk.Traverse(&ComplexFooBar{}, func(*treewalk.MemberAccessor) error { return nil }, nil)
	ie, ok := treewalk.AsInvariant(err)
	require.True(t, ok)
	assert.Contains(t, ie.Error(), "nil_aggregate")
	assert.Contains(t, ie.Error(), "/Obj")
	// %+v adds the stack of the cause
	assert.Greater(t, len(fmt.Sprintf("%+v", ie)), len(ie.Error()))
	assert.False(t, treewalk.IsInvariant(treewalk.ErrNilRoot))
	assert.False(t, treewalk.IsInvariant(nil))
}
