// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package emap

import (
	"github.com/arenamap/emap/internal/base"
	"github.com/arenamap/emap/internal/mutexpool"
	"github.com/arenamap/emap/internal/rtree"
	"github.com/arenamap/emap/internal/witness"
)

// Map is one extent map instance: a radix tree plus the mutex pool
// that serializes access to whatever descriptors it points at. A Map
// is safe for concurrent use by multiple goroutines.
type Map struct {
	tree *rtree.Tree
	mus  *mutexpool.Pool
}

// New creates an empty Map whose radix tree materializes interior
// nodes through alloc. Callers that want debug-build lock-rank
// checking should thread a *witness.Tracker through every method that
// accepts one; passing nil disables checking regardless of build tag.
func New(alloc base.Allocator) *Map {
	return &Map{
		tree: rtree.New(alloc),
		mus:  mutexpool.New(),
	}
}

// rtreeLeafElmsLookup looks up the leaf elements for the first and
// last page of [base, last], mirroring emap_rtree_leaf_elms_lookup: on
// a non-dependent lookup (initMissing true, used by register/split) a
// miss is reported as ok=false; on a dependent lookup (used by
// deregister/merge, where the mapping is known to already exist) the
// two elements are simply returned. tr is forwarded to the tree and
// only actually consulted when initMissing materializes a new node;
// callers with nothing to materialize (deregister, merge) may pass nil.
func (m *Map) rtreeLeafElmsLookup(cache *rtree.Cache, tr *witness.Tracker, base, last uintptr, initMissing bool) (a, b *rtree.LeafElm, ok bool) {
	a = m.tree.Elm(cache, tr, base, initMissing)
	if initMissing && a == nil {
		return nil, nil, false
	}
	b = m.tree.Elm(cache, tr, last, initMissing)
	if initMissing && b == nil {
		return nil, nil, false
	}
	return a, b, true
}

// rtreeWriteAcquired writes (ed, szind, slab) to a, and to b too if b
// is non-nil and distinct from a (a single-page extent's first and
// last page are the same leaf element, which needs only one write).
// Per spec.md §5 ("writers use the
// acquire primitive"), each leaf is taken under its own spin lock for
// the duration of the write, excluding any other writer -- register,
// deregister, split-commit, and merge-commit -- from touching the same
// leaf concurrently. Readers never take this lock; they only ever
// read the descriptor pointer's own release/acquire ordering.
func rtreeWriteAcquired(a, b *rtree.LeafElm, ed *Edata, szind uint32, slab bool) {
	writeLeafAcquired(a, ed, szind, slab)
	if b != nil && b != a {
		writeLeafAcquired(b, ed, szind, slab)
	}
}

func writeLeafAcquired(elm *rtree.LeafElm, ed *Edata, szind uint32, slab bool) {
	elm.Acquire()
	elm.Write(ed, szind, slab)
	elm.Release()
}
