package heapgraph

import "strings"

const staticClassPrefix = "java.lang.Class<"
const staticClassSuffix = ">"

// GetStaticClassTypeName detects the "java.lang.Class<Inner>" wrapper a
// static-class object's type name carries and returns Inner. ok is false
// for any type name that isn't wrapped.
func GetStaticClassTypeName(t string) (inner string, ok bool) {
	if !strings.HasPrefix(t, staticClassPrefix) || !strings.HasSuffix(t, staticClassSuffix) {
		return "", false
	}
	return t[len(staticClassPrefix) : len(t)-len(staticClassSuffix)], true
}

// NumberOfArrays strips trailing "[]" pairs from t and reports how many it
// removed.
func NumberOfArrays(t string) (base string, count int) {
	base = t
	for strings.HasSuffix(base, "[]") {
		base = base[:len(base)-2]
		count++
	}
	return base, count
}

// NormalizeTypeName reduces a raw type name to its base name plus the flags
// recording what was stripped: whether it was a java.lang.Class<…> wrapper
// and how many trailing array dimensions it carried.
func NormalizeTypeName(t string) TypeDescriptor {
	isStatic := false
	s := t
	if inner, ok := GetStaticClassTypeName(s); ok {
		isStatic = true
		s = inner
	}
	base, arrays := NumberOfArrays(s)
	return TypeDescriptor{Name: base, IsStaticClass: isStatic, Arrays: arrays}
}

// DenormalizeTypeName re-applies the array suffix and, if set, the
// static-class wrapper NormalizeTypeName stripped, so that
// DenormalizeTypeName(NormalizeTypeName(t)) == t for every t.
func DenormalizeTypeName(d TypeDescriptor) string {
	s := d.Name + strings.Repeat("[]", d.Arrays)
	if d.IsStaticClass {
		s = staticClassPrefix + s + staticClassSuffix
	}
	return s
}

// isOrdinaryClass reports whether d excludes array and static-class
// synthetic types from superclass resolution and flamegraph folding, per
// spec.md §4.9's "is_static_class || arrays > 0" predicate.
func isOrdinaryClass(d TypeDescriptor) bool {
	return !d.IsStaticClass && d.Arrays == 0
}
