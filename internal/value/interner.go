package value

// Interner owns the string-intern table and the intrusive singly-linked
// list of every heap object allocated through it (spec.md §3's "objects"
// and "strings" VM fields). The VM owns it: string constants are interned
// when they are loaded or used as global names, and the results of runtime
// concatenation are interned as they are built, so every string the
// program observes is a canonical object. The compiler does not use it.
type Interner struct {
	strings Table
	objects *Object
}

func NewInterner() *Interner {
	return &Interner{}
}

// InternString returns the canonical *Object for s, allocating and
// linking a new one only if no equal string has been interned yet.
// Probing is hash first, length second, bytes last (spec.md §4.6).
func (in *Interner) InternString(s string) *Object {
	hash := fnv1a32(s)
	if existing := in.strings.FindString(s, hash); existing != nil {
		return existing
	}
	obj := &Object{Kind: ObjString, Str: s, Hash: hash, Next: in.objects}
	in.objects = obj
	in.strings.Set(obj, NewNil())
	return obj
}

// Release drops every reference reachable from this Interner, mirroring
// freeVM's bulk teardown of the intrusive object list. Go's collector
// does the actual reclamation; this exists so tests can observe that
// nothing allocated through the Interner remains reachable afterward.
func (in *Interner) Release() {
	in.objects = nil
	in.strings = Table{}
}

// LiveObjects walks the intrusive list and counts it, for tests
// exercising the "no allocation remains reachable after freeVM" property.
func (in *Interner) LiveObjects() int {
	n := 0
	for o := in.objects; o != nil; o = o.Next {
		n++
	}
	return n
}
