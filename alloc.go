package pbjournal

// Allocator supplies the backing storage of journals and encoders so that
// callers can substitute arena or pool allocators.
type Allocator interface {
	// Allocate returns a zero-length slice with capacity of at least size.
	Allocate(size int) ([]byte, error)
	// Resize returns a slice holding the contents of buf with capacity of at
	// least size. buf must not be used afterwards.
	Resize(buf []byte, size int) ([]byte, error)
	// Free releases buf.
	Free(buf []byte)
}

// HeapAllocator allocates from the Go heap.
var HeapAllocator Allocator = heapAllocator{}

type heapAllocator struct{}

func (heapAllocator) Allocate(size int) ([]byte, error) { return make([]byte, 0, size), nil }

func (heapAllocator) Resize(buf []byte, size int) ([]byte, error) {
	if cap(buf) >= size {
		return buf, nil
	}
	// amortize repeated small growth
	c := 2 * cap(buf)
	if c < size {
		c = size
	}
	out := make([]byte, len(buf), c)
	copy(out, buf)
	return out, nil
}

func (heapAllocator) Free([]byte) {}

// LimitAllocator wraps another allocator and refuses to hand out more than
// Max bytes of capacity in a single buffer.
type LimitAllocator struct {
	Max  int
	Base Allocator
}

func (a LimitAllocator) base() Allocator {
	if a.Base == nil {
		return HeapAllocator
	}
	return a.Base
}

func (a LimitAllocator) Allocate(size int) ([]byte, error) {
	if size > a.Max {
		return nil, ErrAlloc
	}
	return a.base().Allocate(size)
}

func (a LimitAllocator) Resize(buf []byte, size int) ([]byte, error) {
	if size > a.Max {
		return nil, ErrAlloc
	}
	out, err := a.base().Resize(buf, size)
	if err != nil {
		return nil, err
	}
	if cap(out) > a.Max {
		// keep the reported capacity inside the limit
		out = out[:len(out):a.Max]
	}
	return out, nil
}

func (a LimitAllocator) Free(buf []byte) { a.base().Free(buf) }
