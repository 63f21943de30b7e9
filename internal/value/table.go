package value

const tableMaxLoad = 0.75

// tombstone is a sentinel key marking a deleted entry. It is a distinct,
// never-otherwise-used pointer so Entry.Key == tombstone can be tested by
// identity without an extra bool field on every entry.
var tombstone = &Object{}

// Entry is one slot of a Table's open-addressed backing array. Key == nil
// means the slot was never occupied; Key == tombstone means a deleted
// entry that lookups must probe past but insertions may reuse.
type Entry struct {
	Key   *Object
	Value Value
}

// Table is the string-keyed hash table spec.md §3/§4.6 describes: open
// addressing, linear probing, load factor capped at 0.75, capacity always
// a power of two grown from an initial 8, tombstones for deletion. The VM
// uses one Table for the string-intern set (values unused, see
// FindString) and one per-VM Table for globals.
type Table struct {
	count   int // occupied slots, including tombstones
	entries []Entry
}

// Get returns the value bound to key, or (Value{}, false) if key is not
// present. Tombstones are transparent continuations of the probe, never a
// match.
func (t *Table) Get(key *Object) (Value, bool) {
	if len(t.entries) == 0 {
		return Value{}, false
	}
	e := t.findEntry(t.entries, key)
	if e.Key == nil || e.Key == tombstone {
		return Value{}, false
	}
	return e.Value, true
}

// Set inserts or overwrites the binding for key. It returns true if key
// was not bound before (the binding went into an empty slot or a reused
// tombstone), false if an existing binding was overwritten.
func (t *Table) Set(key *Object, val Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow()
	}
	e := t.findEntry(t.entries, key)
	isNewKey := e.Key == nil || e.Key == tombstone
	if e.Key == nil {
		// Only a truly empty slot grows count; reusing a tombstone does not,
		// since the tombstone was already counted toward the load factor.
		t.count++
	}
	e.Key = key
	e.Value = val
	return isNewKey
}

// Delete removes key's binding, if any, leaving a tombstone so later
// probes that passed through this slot for a different key still find it.
func (t *Table) Delete(key *Object) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.Key == nil {
		return false
	}
	e.Key = tombstone
	e.Value = Value{Type: VAL_NIL}
	return true
}

// FindString probes the table by raw content instead of by *Object
// identity: it is the operation the intern table uses to decide whether a
// byte sequence already has a canonical Object before allocating a new
// one. Probe order is hash first, length second, bytes last, exactly as
// spec.md §4.6 specifies.
func (t *Table) FindString(s string, hash uint32) *Object {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := len(t.entries)
	index := hash & uint32(capacity-1)
	for {
		e := &t.entries[index]
		if e.Key == nil {
			return nil
		}
		if e.Key != tombstone && e.Key.Hash == hash && len(e.Key.Str) == len(s) && e.Key.Str == s {
			return e.Key
		}
		index = (index + 1) & uint32(capacity-1)
	}
}

func (t *Table) findEntry(entries []Entry, key *Object) *Entry {
	capacity := len(entries)
	index := key.Hash & uint32(capacity-1)
	var tombstoneSlot *Entry
	for {
		e := &entries[index]
		switch {
		case e.Key == nil:
			if tombstoneSlot != nil {
				return tombstoneSlot
			}
			return e
		case e.Key == tombstone:
			if tombstoneSlot == nil {
				tombstoneSlot = e
			}
		case e.Key == key:
			return e
		}
		index = (index + 1) & uint32(capacity-1)
	}
}

func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	newEntries := make([]Entry, newCap)

	// Rebuilding count here (clox's tableAdjustCapacity) so tombstones from
	// the old table do not keep inflating the load factor forever.
	t.count = 0
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key == nil || e.Key == tombstone {
			continue
		}
		dest := findEntryIn(newEntries, e.Key)
		dest.Key = e.Key
		dest.Value = e.Value
		t.count++
	}
	t.entries = newEntries
}

func findEntryIn(entries []Entry, key *Object) *Entry {
	capacity := len(entries)
	index := key.Hash & uint32(capacity-1)
	for {
		e := &entries[index]
		if e.Key == nil || e.Key == key {
			return e
		}
		index = (index + 1) & uint32(capacity-1)
	}
}

// Len reports the number of live (non-tombstone) bindings. Used only by
// tests exercising the growth/tombstone invariants.
func (t *Table) Len() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].Key != nil && t.entries[i].Key != tombstone {
			n++
		}
	}
	return n
}
