package base

import (
	"sync"
	"unsafe"
)

// chunkSize is the size of each reservation the Bump allocator requests
// from the platform reservation hook. Chosen as a handful of pages: big
// enough to amortize the reservation call, small enough that a test
// exercising many interior-node allocations still forces a handful of
// chunk rollovers.
const chunkSize = 64 * 1024

// reserveFn is supplied per-platform (bump_unix.go / bump_other.go) and
// returns a zeroed, page-backed region of exactly n bytes, or ok=false
// if the platform cannot satisfy the reservation.
var reserveFn func(n uintptr) ([]byte, bool)

// Bump is a page-granularity bump allocator: it reserves address space
// in chunkSize-sized pieces and hands out sub-slices of the current
// chunk, advancing a watermark. Storage handed out is never freed back;
// it is only ever recycled by the caller's own free-lists (see
// internal/edatapool), matching spec.md's "never freed to the base
// allocator" lifetime rule.
type Bump struct {
	mu sync.Mutex

	// chunks retains every reservation ever made, forever: base
	// allocator memory is never returned, so nothing here is ever
	// released, and keeping the slices around is what keeps the Go
	// garbage collector from reclaiming memory whose address we have
	// already handed out as a bare uintptr.
	chunks [][]byte
	chunk  []byte // current (last) chunk, sub-allocated via offset
	offset uintptr

	allocs    int64
	failAfter int64 // 0 means unlimited
}

// NewBump creates a ready-to-use Bump allocator.
func NewBump() *Bump {
	return &Bump{}
}

// SetFailAfter makes the allocator refuse every Alloc call once it has
// granted n successful allocations, simulating exhaustion of the
// underlying page source. Used by tests exercising the base-allocator
// exhaustion failure mode (spec.md S6); n == 0 disables the limit.
func (b *Bump) SetFailAfter(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAfter = n
	b.allocs = 0
}

// Alloc implements Allocator.
func (b *Bump) Alloc(size, align uintptr) (uintptr, bool) {
	if size == 0 {
		size = 1
	}
	if align == 0 {
		align = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failAfter != 0 && b.allocs >= b.failAfter {
		return 0, false
	}

	if !b.reserveRoom(size, align) {
		return 0, false
	}

	base := uintptr(0)
	start := alignUp(b.offset, align)
	if start+size > uintptr(len(b.chunk)) {
		// Shouldn't happen: reserveRoom guarantees room, but guard
		// anyway since alignUp can push past the chunk boundary for
		// pathological alignments.
		if !b.growFor(size, align) {
			return 0, false
		}
		start = alignUp(b.offset, align)
	}

	base = sliceAddr(b.chunk) + start
	b.offset = start + size
	b.allocs++
	return base, true
}

// reserveRoom ensures the current chunk can satisfy size bytes at the
// given alignment, growing (replacing) the chunk if necessary.
func (b *Bump) reserveRoom(size, align uintptr) bool {
	if b.chunk == nil {
		return b.growFor(size, align)
	}
	start := alignUp(b.offset, align)
	if start+size <= uintptr(len(b.chunk)) {
		return true
	}
	return b.growFor(size, align)
}

// growFor reserves a new chunk big enough for size bytes at align,
// discarding whatever room remained in the old one -- base allocators
// never free, so this is simply a forward-only watermark reset.
func (b *Bump) growFor(size, align uintptr) bool {
	need := size + align
	n := uintptr(chunkSize)
	for n < need {
		n *= 2
	}
	chunk, ok := reserveFn(n)
	if !ok {
		return false
	}
	b.chunks = append(b.chunks, chunk)
	b.chunk = chunk
	b.offset = 0
	return true
}

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

// sliceAddr returns the address of a byte slice's backing array.
func sliceAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
