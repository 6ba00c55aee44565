package cache

// Sym is a 4-byte id into a cache-local string table.
type Sym uint32

// Interner deduplicates span contents within one DiffCache. It is dropped
// with the cache; there is no global interner.
type Interner struct {
	ids     map[string]Sym
	strings []string
}

// NewInterner returns an empty interner.
func NewInterner() *Interner {
	return &Interner{ids: make(map[string]Sym)}
}

// Intern returns the id for s, allocating one on first sight. Ids are
// assigned in insertion order, so identical build inputs produce identical
// tables.
func (in *Interner) Intern(s string) Sym {
	if id, ok := in.ids[s]; ok {
		return id
	}
	id := Sym(len(in.strings))
	in.ids[s] = id
	in.strings = append(in.strings, s)
	return id
}

// Resolve returns the string for an id, "" when out of range.
func (in *Interner) Resolve(id Sym) string {
	if int(id) >= len(in.strings) {
		return ""
	}
	return in.strings[id]
}

// Len returns the number of interned strings.
func (in *Interner) Len() int {
	return len(in.strings)
}
