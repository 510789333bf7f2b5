package treewalk

import (
	"strconv"
	"strings"
)

// PathItem is one step from the root to a member.
type PathItem struct {
	// Name is the member name; for collection elements it is the name of the
	// collection member.
	Name string
	// Index is the element position within its collection. Valid only when
	// HasIndex is set.
	Index    int
	HasIndex bool
	// IsDictionaryKey marks the visit of a map key rather than its value.
	IsDictionaryKey bool
	// IsMapEntry marks a map key or value; Key is rendered in place of Index.
	IsMapEntry bool
	// Key is the rendered map key for map entries. It may be empty.
	Key string
}

// IsPartOfCollection reports whether the item addresses a collection element.
func (p PathItem) IsPartOfCollection() bool { return p.HasIndex }

// Path lists the steps from the root to a member, root first.
type Path []PathItem

// Last returns the final item, or the zero item for an empty path.
func (p Path) Last() PathItem {
	if len(p) == 0 {
		return PathItem{}
	}
	return p[len(p)-1]
}

// Names returns the member names along the path, skipping element steps.
func (p Path) Names() []string {
	out := make([]string, 0, len(p))
	for _, it := range p {
		if !it.HasIndex {
			out = append(out, it.Name)
		}
	}
	return out
}

// String renders the path as Obj.Items[2].Labels[app].
func (p Path) String() string {
	b := &strings.Builder{}
	for i, it := range p {
		switch {
		case it.IsMapEntry:
			b.WriteByte('[')
			b.WriteString(it.Key)
			b.WriteByte(']')
		case it.HasIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(it.Index))
			b.WriteByte(']')
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(it.Name)
		}
		if it.IsDictionaryKey {
			b.WriteString("#key")
		}
	}
	return b.String()
}

// Pointer renders the path as an RFC 6901 JSON Pointer. Map entries use the
// key, other elements their index. A map key visit gets no extra segment, so
// the key and the value of an entry share a pointer.
func (p Path) Pointer() string {
	if len(p) == 0 {
		return "/"
	}
	b := &strings.Builder{}
	for _, it := range p {
		b.WriteByte('/')
		switch {
		case it.IsMapEntry:
			b.WriteString(escapePointer(it.Key))
		case it.HasIndex:
			b.WriteString(strconv.Itoa(it.Index))
		default:
			b.WriteString(escapePointer(it.Name))
		}
	}
	return b.String()
}

// escape '~' -> '~0', '/' -> '~1'
func escapePointer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

func (p Path) with(it PathItem) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, it)
}
