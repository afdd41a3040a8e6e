package reader

// Scratch is a fixed-size buffer handed to a single host query.
type Scratch interface {
	Bytes() []byte
	Release()
}

// Allocator hands out scratch buffers. Every successful Alloc must be paired
// with exactly one Release.
type Allocator interface {
	Alloc(size int) (Scratch, error)
}

// HeapAllocator allocates scratch buffers on the Go heap. Release is a no-op
// beyond dropping the reference.
type HeapAllocator struct{}

// Alloc returns a zeroed buffer of size bytes.
func (HeapAllocator) Alloc(size int) (Scratch, error) {
	return &heapScratch{buf: make([]byte, size)}, nil
}

type heapScratch struct {
	buf []byte
}

func (s *heapScratch) Bytes() []byte { return s.buf }

func (s *heapScratch) Release() { s.buf = nil }
