package treewalk

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/reoring/treewalk/internal/access"
	"github.com/reoring/treewalk/internal/shape"
)

// Argument errors, returned before any traversal work starts.
var (
	ErrNilRoot    = errors.New("treewalk: root is nil")
	ErrNilVisitor = errors.New("treewalk: visitor is nil")
)

// Set-time errors. They are returned by MemberAccessor.SetValue and do not
// stop the traversal unless the visitor returns them.
var (
	// ErrMemberNotFound means the owning type has no member by that name.
	ErrMemberNotFound = access.ErrNotFound
	// ErrReadOnly means the member has no setter (getter-only property, map key).
	ErrReadOnly = access.ErrReadOnly
	// ErrNotAddressable means the root was passed by value, so a mutation
	// could never reach the caller's object.
	ErrNotAddressable = access.ErrNotAddressable
)

type (
	// TypeMismatchError reports a set with a value not assignable to the
	// member type.
	TypeMismatchError = access.TypeMismatchError
	// UnsupportedTypeError reports a root of pointer-like, channel or
	// function type.
	UnsupportedTypeError = shape.UnsupportedTypeError
	// RecursiveTypeError reports a type containing itself through struct
	// members or pointers.
	RecursiveTypeError = shape.RecursiveTypeError
)

// Invariant codes identify which internal assumption broke.
const (
	CodeNilAggregate   = "nil_aggregate"
	CodeMissingMember  = "missing_member"
	CodeWriteBack      = "write_back"
	CodeShapeMismatch  = "shape_mismatch"
	CodeUnexpectedKind = "unexpected_kind"
)

// InvariantError signals a mismatch between the cached shape, the accessor
// tables and the walked value. It is never recoverable for the traversal
// that raised it. Err carries a stack trace; print it with %+v.
type InvariantError struct {
	Code string
	Path string
	Err  error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("treewalk: invariant violation (%s) at %s: %v", e.Code, e.Path, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// Format prints the stack trace of the cause with %+v.
func (e *InvariantError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "treewalk: invariant violation (%s) at %s: %+v", e.Code, e.Path, e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}

func invariant(code string, path Path, cause error) *InvariantError {
	return &InvariantError{Code: code, Path: path.Pointer(), Err: pkgerrors.WithStack(cause)}
}

func invariantf(code string, path Path, format string, args ...any) *InvariantError {
	return &InvariantError{Code: code, Path: path.Pointer(), Err: pkgerrors.Errorf(format, args...)}
}

// IsInvariant reports whether err is or wraps an InvariantError.
func IsInvariant(err error) bool {
	_, ok := AsInvariant(err)
	return ok
}

// AsInvariant extracts an InvariantError from err using errors.As.
func AsInvariant(err error) (*InvariantError, bool) {
	if err == nil {
		return nil, false
	}
	var ie *InvariantError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
