package heapgraph

// AddDeobfuscationMapping records that the obfuscated type name normalizes
// to deobfuscated, optionally scoped to pkg (empty pkg matches any
// package).
func (t *Tracker) AddDeobfuscationMapping(pkg, obfuscated, deobfuscated string) {
	key := deobfKey{pkg: pkg, obfuscated: NormalizeTypeName(obfuscated).Name}
	t.deobfuscation[key] = deobfuscated
}

// MaybeDeobfuscate normalizes id, looks it up (scoped to pkg, then
// unscoped), and returns a denormalized deobfuscated name if one was
// recorded, or id unchanged otherwise.
func (t *Tracker) MaybeDeobfuscate(pkg, id string) string {
	d := NormalizeTypeName(id)
	if name, ok := t.deobfuscation[deobfKey{pkg: pkg, obfuscated: d.Name}]; ok {
		return DenormalizeTypeName(TypeDescriptor{Name: name, IsStaticClass: d.IsStaticClass, Arrays: d.Arrays})
	}
	if pkg != "" {
		if name, ok := t.deobfuscation[deobfKey{pkg: "", obfuscated: d.Name}]; ok {
			return DenormalizeTypeName(TypeDescriptor{Name: name, IsStaticClass: d.IsStaticClass, Arrays: d.Arrays})
		}
	}
	return id
}
