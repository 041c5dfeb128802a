package hpack

// DynamicTable is the per-connection, bounded HPACK dynamic table (RFC 7541
// §2.3.2). Index space starts at 62 relative to the combined table; entries
// is kept newest-first as the RFC's eviction order requires.
//
// A DynamicTable is not safe for concurrent use; H2Connection serializes
// access to its encoder/decoder pair (spec §5, HPACK tables are per
// connection, not shared).
type DynamicTable struct {
	entries []HeaderField // index 0 == most recently inserted
	size    int           // sum of entries[i].Size()
	maxSize int
}

// DefaultMaxTableSize is RFC 7541's default SETTINGS_HEADER_TABLE_SIZE.
const DefaultMaxTableSize = 4096

func NewDynamicTable() *DynamicTable {
	return &DynamicTable{maxSize: DefaultMaxTableSize}
}

// MaxSize returns the negotiated maximum size.
func (t *DynamicTable) MaxSize() int { return t.maxSize }

// SetMaxSize updates the table's maximum size, evicting as necessary. A
// value exceeding the connection's negotiated maximum must be rejected by
// the caller before reaching here (see Decoder.DecodeBlock).
func (t *DynamicTable) SetMaxSize(n int) {
	t.maxSize = n
	t.evictToFit()
}

// Len returns the number of live entries.
func (t *DynamicTable) Len() int { return len(t.entries) }

// Size returns the current accounted size (RFC 7541 §4.1).
func (t *DynamicTable) Size() int { return t.size }

// Get returns the entry at 1-based dynamic-table index i (i.e. combined
// index i+61).
func (t *DynamicTable) Get(i int) (HeaderField, bool) {
	if i < 1 || i > len(t.entries) {
		return HeaderField{}, false
	}
	return t.entries[i-1], true
}

// Insert prepends f as the newest entry, evicting old entries until the
// table fits maxSize. An entry larger than maxSize by itself results in an
// empty table (RFC 7541 §4.4).
func (t *DynamicTable) Insert(f HeaderField) {
	t.entries = append([]HeaderField{f}, t.entries...)
	t.size += f.Size()
	t.evictToFit()
}

func (t *DynamicTable) evictToFit() {
	for t.size > t.maxSize && len(t.entries) > 0 {
		last := t.entries[len(t.entries)-1]
		t.entries = t.entries[:len(t.entries)-1]
		t.size -= last.Size()
	}
}

// find looks up f across the static+dynamic combined table, preferring an
// exact (name,value) match, falling back to a name-only match. fullMatch
// reports whether the returned index is for an exact pair.
func (t *DynamicTable) find(f HeaderField) (idx uint64, fullMatch, found bool) {
	if i, ok := staticFullIndex[f]; ok {
		return i, true, true
	}

	var nameIdx uint64
	var nameFound bool

	for i, e := range t.entries {
		if e == f {
			return uint64(i + 1 + staticTableSize), true, true
		}
		if !nameFound && e.Name == f.Name {
			nameIdx = uint64(i + 1 + staticTableSize)
			nameFound = true
		}
	}

	if i, ok := staticNameIndex[f.Name]; ok && !nameFound {
		return i, false, true
	}
	if nameFound {
		return nameIdx, false, true
	}
	return 0, false, false
}
