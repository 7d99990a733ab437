package pbjournal

// EditKind classifies a journal mutation.
type EditKind uint8

const (
	// EditInsert adds bytes without removing any.
	EditInsert EditKind = iota
	// EditReplace overwrites a range in place; a handle anchored exactly at
	// the start of the range survives it.
	EditReplace
	// EditErase removes a range; handles anchored inside it are gone.
	EditErase
)

func (k EditKind) String() string {
	switch k {
	case EditInsert:
		return "insert"
	case EditReplace:
		return "replace"
	case EditErase:
		return "erase"
	default:
		return "unknown"
	}
}

// Edit records one splice: Old bytes at Pos were replaced by New bytes.
// Version is the journal version the edit produced.
type Edit struct {
	Version uint64
	Kind    EditKind
	Pos     int
	Old     int
	New     int
}

// remap maps a handle anchor across the edit.
func (e Edit) remap(pos int) (int, bool) {
	switch {
	case pos < e.Pos:
		return pos, true
	case e.Old == 0:
		return pos + e.New, true
	case pos >= e.Pos+e.Old:
		return pos + e.New - e.Old, true
	case pos == e.Pos && e.Kind == EditReplace:
		return pos, true
	default:
		return 0, false
	}
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithAllocator sets the allocator used for the backing storage.
func WithAllocator(a Allocator) JournalOption {
	return func(j *Journal) {
		if a != nil {
			j.alloc = a
		}
	}
}

// WithObserver registers a callback invoked after every edit.
func WithObserver(fn func(Edit)) JournalOption {
	return func(j *Journal) { j.observer = fn }
}

// WithHistoryLimit caps the edit log at n entries. Older entries are
// dropped as new ones arrive, and handles last aligned before the oldest
// kept entry fail with ErrInvalid. n <= 0 keeps the whole history.
func WithHistoryLimit(n int) JournalOption {
	return func(j *Journal) { j.limit = n }
}

// WithCopy makes the journal copy the initial buffer into storage obtained
// from its allocator instead of taking ownership of it.
func WithCopy() JournalOption {
	return func(j *Journal) { j.copyInit = true }
}

// Journal is the mutable, versioned byte store backing one top-level message
// tree. Every mutation increments Version and is recorded so that handles
// created at an older version can realign.
//
// The edit log grows by one entry per mutation until Checkpoint is called,
// and realigning a handle replays every entry since its version. Long editing
// sessions should call Checkpoint once no handle needs older offsets, or
// bound the log with WithHistoryLimit.
//
// A Journal is not safe for concurrent use.
type Journal struct {
	buf      []byte
	version  uint64
	base     uint64
	log      []Edit
	alloc    Allocator
	observer func(Edit)
	copyInit bool
	limit    int
}

// NewJournal returns a journal over buf. Without WithCopy the journal takes
// ownership of buf and may write into its spare capacity.
func NewJournal(buf []byte, opts ...JournalOption) (*Journal, error) {
	j := &Journal{alloc: HeapAllocator}
	for _, o := range opts {
		o(j)
	}
	if j.copyInit || buf == nil {
		b, err := j.alloc.Allocate(len(buf))
		if err != nil {
			return nil, newError("journal.new", 0, -1, err)
		}
		j.buf = append(b[:0], buf...)
		return j, nil
	}
	j.buf = buf
	return j, nil
}

// Bytes returns the current contents. The slice is invalidated by the next
// mutation.
func (j *Journal) Bytes() []byte { return j.buf }

// Len is the current size in bytes.
func (j *Journal) Len() int { return len(j.buf) }

// Version is incremented by every mutation.
func (j *Journal) Version() uint64 { return j.version }

// Reserve makes room for n more bytes so that subsequent growth up to that
// amount cannot fail.
func (j *Journal) Reserve(n int) error {
	if n <= 0 || len(j.buf)+n <= cap(j.buf) {
		return nil
	}
	b, err := j.alloc.Resize(j.buf, len(j.buf)+n)
	if err != nil {
		return newError("journal.reserve", 0, len(j.buf), err)
	}
	j.buf = b
	return nil
}

// Write replaces [from,to) with data, shifting everything after to. An empty
// range inserts.
func (j *Journal) Write(from, to int, data []byte) error {
	kind := EditReplace
	if from == to {
		kind = EditInsert
	}
	return j.splice(kind, from, to, data)
}

// Clear removes [from,to).
func (j *Journal) Clear(from, to int) error {
	return j.splice(EditErase, from, to, nil)
}

func (j *Journal) splice(kind EditKind, from, to int, data []byte) error {
	n := len(j.buf)
	if from < 0 || to < from || to > n {
		return newError("journal."+kind.String(), 0, from, ErrOffset)
	}
	size := n + len(data) - (to - from)
	if err := j.Reserve(size - n); err != nil {
		return err
	}
	if size > n {
		j.buf = j.buf[:size]
	}
	copy(j.buf[from+len(data):], j.buf[to:n])
	copy(j.buf[from:], data)
	j.buf = j.buf[:size]

	j.version++
	e := Edit{Version: j.version, Kind: kind, Pos: from, Old: to - from, New: len(data)}
	j.log = append(j.log, e)
	if j.limit > 0 && len(j.log) > j.limit {
		drop := len(j.log) - j.limit
		j.log = append(j.log[:0], j.log[drop:]...)
		j.base += uint64(drop)
	}
	if j.observer != nil {
		j.observer(e)
	}
	return nil
}

// Remap translates an offset recorded at version since into the current
// buffer. It fails with ErrInvalid when the bytes at pos were removed or
// rewritten, or when the history has been dropped by Checkpoint.
func (j *Journal) Remap(pos int, since uint64) (int, error) {
	if since < j.base || since > j.version {
		return 0, ErrInvalid
	}
	for _, e := range j.log[since-j.base:] {
		var ok bool
		if pos, ok = e.remap(pos); !ok {
			return 0, ErrInvalid
		}
	}
	return pos, nil
}

// Edits returns the edits made after version since.
func (j *Journal) Edits(since uint64) []Edit {
	if since < j.base || since >= j.version {
		return nil
	}
	return j.log[since-j.base:]
}

// Checkpoint drops the edit history. Handles created before the checkpoint
// can no longer realign.
func (j *Journal) Checkpoint() {
	j.base = j.version
	j.log = j.log[:0]
}

// Release returns the backing storage to the allocator. The journal is empty
// afterwards and every handle is invalid.
func (j *Journal) Release() {
	j.alloc.Free(j.buf)
	j.buf = nil
	j.version++
	j.Checkpoint()
}
