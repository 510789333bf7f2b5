// Package treewalk visits every leaf member of a Go value breadth-first,
// with optional mutation and subtree pruning.
//
// - Member discovery runs once per type and is cached as a Shape
// - Member access goes through per-type tables of get/set closures
// - Struct copies met along the way (interface contents, map values,
//   property results) are written back to where they came from after a set
// - Collections are expanded per element; interface members are resolved by
//   their dynamic type
//
// Design policy:
// - Keep only public APIs in the root package; shapes and accessor tables
//   live under internal/.
// - Place the CLI under cmd/treewalk with its commands in internal/cli.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	err := treewalk.Traverse(&cfg, func(m *treewalk.MemberAccessor) error {
//		if m.Name() == "Password" {
//			return m.SetValue("")
//		}
//		return nil
//	}, nil)
//
//	sum, err := treewalk.TraverseWith(nil, &order, 0,
//		func(total *int, m *treewalk.MemberAccessor) error {
//			if v, err := m.GetValue(); err == nil {
//				if n, ok := v.(int); ok {
//					*total += n
//				}
//			}
//			return nil
//		}, nil)
//
// Types that contain themselves through struct members or pointers are
// rejected with a RecursiveTypeError; trees built from slices or maps of
// their own type are fine, since collections are expanded per instance.
package treewalk
