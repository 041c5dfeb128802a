package stream

import "sync"

// Table owns all Streams of one connection (spec §3 Ownership: "The
// StreamTable exclusively owns Stream objects"). Grounded on dgrr-http2's
// streams.go sorted-slice index, generalized to a map since the spec's
// high-water-mark check (new client IDs must strictly increase) needs O(1)
// membership testing more than it needs sorted iteration.
type Table struct {
	mu sync.Mutex

	byID map[uint32]*Stream

	// highWaterClient/highWaterServer track the largest stream id this
	// connection has opened for each initiator, per spec §3: "for a given
	// connection, new client-initiated IDs strictly increase; any frame
	// arriving on an ID below the high-water mark on an IDLE stream is a
	// protocol error."
	highWaterClient uint32
	highWaterServer uint32

	initialWindow int32
}

func NewTable(initialWindow int32) *Table {
	return &Table{
		byID:          make(map[uint32]*Stream),
		initialWindow: initialWindow,
	}
}

// Get returns the existing stream for id, if any.
func (t *Table) Get(id uint32) (*Stream, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byID[id]
	return s, ok
}

// Open returns the stream for id, creating it if this is the first frame
// seen for it. ok is false (with the stream nil) if id is new but falls at
// or below the existing high-water mark for its initiator, which is a
// protocol error the caller (h2conn) must turn into a connection error.
func (t *Table) Open(id uint32, clientInitiated bool) (s *Stream, created bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, found := t.byID[id]; found {
		return existing, false, true
	}

	hwm := &t.highWaterServer
	if clientInitiated {
		hwm = &t.highWaterClient
	}
	if id <= *hwm && *hwm != 0 {
		return nil, false, false
	}
	if id == 0 {
		return nil, false, false
	}

	*hwm = id
	s = New(id, t.initialWindow)
	t.byID[id] = s
	return s, true, true
}

// Delete removes a stream from the table (bookkeeping only; callers should
// call Stream.Close/Reset first so the stream's own state stays CLOSED).
func (t *Table) Delete(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

// Len returns the number of live (not yet deleted) streams.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}

// Each calls fn for a snapshot of the current streams. fn must not call
// back into the Table.
func (t *Table) Each(fn func(*Stream)) {
	t.mu.Lock()
	snapshot := make([]*Stream, 0, len(t.byID))
	for _, s := range t.byID {
		snapshot = append(snapshot, s)
	}
	t.mu.Unlock()

	for _, s := range snapshot {
		fn(s)
	}
}

// CloseAll resets every live stream, e.g. when the connection is closing.
func (t *Table) CloseAll() {
	t.Each(func(s *Stream) { s.Reset() })
}
