package hostbridge

/*
#include <stdlib.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/vehicle-extractor/extension/internal/reader"
)

// CAllocator hands out scratch buffers from the C heap, for natives that
// write through a raw pointer.
type CAllocator struct{}

var _ reader.Allocator = CAllocator{}

// Alloc returns a zeroed buffer of size bytes.
func (CAllocator) Alloc(size int) (reader.Scratch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid scratch size %d", size)
	}
	p := C.calloc(1, C.size_t(size))
	if p == nil {
		return nil, errors.New("calloc failed")
	}
	return &cScratch{ptr: p, size: size}, nil
}

type cScratch struct {
	ptr  unsafe.Pointer
	size int
}

func (s *cScratch) Bytes() []byte {
	if s.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(s.ptr), s.size)
}

// Release frees the buffer. Further calls are no-ops.
func (s *cScratch) Release() {
	if s.ptr == nil {
		return
	}
	C.free(s.ptr)
	s.ptr = nil
}
