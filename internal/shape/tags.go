package shape

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TagKey is the struct tag consulted for member naming.
const TagKey = "walk"

// MemberName resolves the name a struct field is walked under.
// Priority: walk:"name=..." > field name; walk:"-" removes the field.
func MemberName(sf reflect.StructField) string {
	if wt, ok := sf.Tag.Lookup(TagKey); ok {
		if wt == "-" {
			return "-"
		}
		for _, p := range strings.Split(wt, ",") {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, "name=") {
				if n := strings.TrimPrefix(p, "name="); n != "" {
					return n
				}
			}
		}
	}
	return sf.Name
}

// backingName is the conventional unexported field behind a property:
// Name -> name. Only the first rune is lowered.
func backingName(property string) string {
	r, size := utf8.DecodeRuneInString(property)
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToLower(r)) + property[size:]
}
