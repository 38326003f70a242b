// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package rtree

import (
	"runtime"
	"sync/atomic"

	"github.com/arenamap/emap/internal/edata"
)

// LeafElm is one radix-tree leaf: the mapping from a single page-
// aligned address to (descriptor, size-class index, slab bit).
//
// spec.md's design notes (§9) describe the original C structure as a
// single machine word whose low bit is repurposed as a spin lock
// alongside the descriptor pointer, justified by descriptors always
// being allocated at alignment >= 2. Go's garbage collector must be
// able to see every live pointer, so bit-tagging a *edata.Edata the
// way the C original does is unsound here (a collector that can't see
// the tag bit can't tell the tagged word is a pointer at all, and the
// descriptor it points to could be collected out from under it). This
// type keeps the exact semantics -- one exclusive spin-bit guarding a
// release/acquire-ordered descriptor pointer, plus two fields that
// ride along without their own ordering guarantees -- by using a
// genuine atomic.Pointer for the descriptor and a separate atomic.Bool
// for the lock bit, rather than packing both into one word.
type LeafElm struct {
	locked atomic.Bool
	ptr    atomic.Pointer[edata.Edata]
	szind  atomic.Uint32
	slab   atomic.Bool
}

// ReadDescriptor returns the leaf's current descriptor pointer, or nil
// if the leaf is empty. The dependent parameter documents the same
// distinction spec.md draws for rtree reads (a dependent read is one
// the caller can only make because it already holds proof the mapping
// exists) but has no effect here: Go's sync/atomic operations are
// already sequentially consistent, a strictly stronger guarantee than
// the acquire-only semantics a non-dependent read requires.
func (e *LeafElm) ReadDescriptor(dependent bool) *edata.Edata {
	_ = dependent
	return e.ptr.Load()
}

// ReadMeta returns the szind/slab fields. Per spec.md §4.1, a caller
// that needs these must have already performed an acquiring read of
// the descriptor pointer (ReadDescriptor) first, establishing that the
// mapping it is about to inspect is the current one.
func (e *LeafElm) ReadMeta() (szind uint32, slab bool) {
	return e.szind.Load(), e.slab.Load()
}

// Write installs (edataPtr, szind, slab) into the leaf. Meta fields are
// stored before the descriptor pointer so that any reader who observes
// a non-nil descriptor via ReadDescriptor is guaranteed -- under Go's
// sequentially consistent atomics -- to observe the meta fields that
// were written immediately before it, without the meta store itself
// needing to be load-bearing for ordering on its own.
func (e *LeafElm) Write(ed *edata.Edata, szind uint32, slab bool) {
	e.szind.Store(szind)
	e.slab.Store(slab)
	e.ptr.Store(ed)
}

// Clear installs the empty value (nil, NSIZES, false).
func (e *LeafElm) Clear() {
	e.Write(nil, edata.NSIZES, false)
}

// Acquire spins until it sets the leaf's exclusive lock bit, then
// returns. Modeled on hmarui66/blinktree's SpinLatch.SpinWriteLock: a
// tight CAS retry with runtime.Gosched() between attempts, appropriate
// because the critical sections this lock guards (a handful of field
// reads/writes during split/merge commit) are short.
func (e *LeafElm) Acquire() {
	for !e.locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// TryAcquire attempts to set the lock bit without spinning, reporting
// whether it succeeded.
func (e *LeafElm) TryAcquire() bool {
	return e.locked.CompareAndSwap(false, true)
}

// Release clears the leaf's exclusive lock bit.
func (e *LeafElm) Release() {
	e.locked.Store(false)
}
