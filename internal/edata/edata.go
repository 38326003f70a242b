// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package edata defines the extent descriptor: a fixed-size record
// describing one contiguous, page-aligned range of virtual memory.
//
// An [Edata] is never referenced by value. The radix tree and the extent
// map hold *Edata references; ownership of the pointed-to storage always
// belongs to exactly one external collaborator (an arena bin, an ecache,
// or an in-flight split/merge transaction) at a time, never to the tree
// itself.
package edata

import "fmt"

// NSIZES is the sentinel size-class index meaning "unknown or not a
// cached size class". A large (non-slab) extent may carry it, in which
// case its actual size class is recovered from the descriptor itself by
// higher layers, not from the radix tree leaf.
const NSIZES = ^uint32(0)

// NBINS is the number of small, slab-backed size classes. A descriptor
// with Slab set must carry an Szind below NBINS: slabs are only ever
// used for small, fixed-size regions.
const NBINS = 36

// PageShift is the base-2 logarithm of the page size (LG_PAGE). All
// addresses and sizes handled by this package are multiples of
// 1<<PageShift.
const PageShift = 12

// PageSize is 1<<PageShift.
const PageSize = 1 << PageShift

// State describes where in the allocator's lifecycle an extent
// currently sits. The core stores and copies this field across splits
// and merges but never changes it unilaterally -- state transitions are
// entirely a decision of the external collaborator (ecache) that owns
// the extent at the time.
type State uint8

const (
	StateActive State = iota
	StateDirty
	StateMuzzy
	StateRetained
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDirty:
		return "dirty"
	case StateMuzzy:
		return "muzzy"
	case StateRetained:
		return "retained"
	default:
		return "invalid"
	}
}

// NotHead and Head mark whether an extent is the first extent obtained
// from a single, larger reservation ("head" of the reservation). This is
// bookkeeping inherited unmodified from the extent being split or
// merged.
const (
	NotHead = false
	IsHead  = true
)

// Edata is the descriptor for one contiguous, page-aligned range of
// virtual memory.
//
// Invariants (enforced by the emap layer, not by Edata itself -- this
// type is a plain record, not an actor):
//
//   - Size is > 0 and a multiple of PageSize; Base is page-aligned.
//   - If Slab, Szind < NBINS.
//   - Alignment: an *Edata is never placed at an odd address (Go's
//     allocator already guarantees >= pointer-size alignment for any
//     heap-allocated struct, and pool-recycled descriptors are reused
//     in place), which is what lets the radix-tree leaf's lock bit live
//     outside of the pointer value (see internal/rtree).
type Edata struct {
	Base uintptr
	Size uintptr

	ArenaInd uint32
	Szind    uint32 // NSIZES if unknown/uncached
	Sn       uint64 // monotonic serial number, age ordering

	Slab      bool
	Zeroed    bool
	Committed bool
	Dumpable  bool
	Head      bool

	State State

	// Intrusive link fields are owned by external collaborators (bins,
	// ecaches) and MUST NOT be touched by the radix tree or emap.
	// Exported as opaque slots so callers can thread their own
	// heap/list bookkeeping through the same descriptor the core
	// already tracks, without the core knowing their shape.
	Link1 uintptr
	Link2 uintptr
}

// Last returns the address of the last page in the extent, i.e. the
// page whose mapping, together with Base's, constitutes the extent's
// boundary registration.
func (e *Edata) Last() uintptr {
	return e.Base + e.Size - PageSize
}

// NPages returns the number of pages covered by the extent.
func (e *Edata) NPages() int {
	return int(e.Size >> PageShift)
}

// Init (re-)initializes an edata in place. It is used both for brand
// new descriptors pulled from a pool and for the stack-local "fake"
// descriptors emap's split path uses purely to drive a lookup (see
// emap's SplitPrepare).
func (e *Edata) Init(arenaInd uint32, base uintptr, size uintptr, slab bool, szind uint32, sn uint64, state State, zeroed, committed, dumpable, head bool) {
	e.ArenaInd = arenaInd
	e.Base = base
	e.Size = size
	e.Slab = slab
	e.Szind = szind
	e.Sn = sn
	e.State = state
	e.Zeroed = zeroed
	e.Committed = committed
	e.Dumpable = dumpable
	e.Head = head
	e.Link1 = 0
	e.Link2 = 0
}

// Reset clears an edata's fields to their zero value before the
// descriptor is returned to a free-list for reuse. Intentionally
// mirrors the shape of node reset helpers elsewhere in this codebase:
// storage is retained, content is wiped.
func (e *Edata) Reset() {
	*e = Edata{}
}

func (e *Edata) String() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("edata{base=%#x size=%#x szind=%d slab=%t state=%s arena=%d}",
		e.Base, e.Size, e.Szind, e.Slab, e.State, e.ArenaInd)
}

// Contains reports whether addr falls within the extent's range.
func (e *Edata) Contains(addr uintptr) bool {
	return addr >= e.Base && addr < e.Base+e.Size
}
