// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package rtree implements the fixed-height, fixed-fanout radix tree
// that maps page-aligned addresses to extent descriptors (edata.Edata),
// as described in spec.md §4. The tree has a fixed height (see
// level.go) and a preallocated root, so every lookup is a bounded chain
// of array indexing operations -- no recursion, no variable-depth walk.
//
// Interior levels are materialized lazily on first write, following
// the same lazy double-checked-locking publication the teacher package
// uses for its own lock-free node construction (see node.go). Unlike
// the C original, which hides a live pointer and a spin-lock bit inside
// one tagged machine word, every pointer a reader can observe here is a
// real Go pointer the garbage collector can see and trace; node.go's
// and leaf.go's doc comments explain why that divergence is required.
package rtree

import (
	"sync"

	"github.com/arenamap/emap/internal/base"
	"github.com/arenamap/emap/internal/edata"
	"github.com/arenamap/emap/internal/witness"
)

// Tree is one radix tree instance: a preallocated root node plus the
// base allocator used to materialize further levels. A Tree is safe
// for concurrent use by multiple goroutines, but must never be copied
// after its first use -- see noCopy.
type Tree struct {
	_ noCopy

	root   node
	initMu sync.Mutex // guards lazy materialization at every level
	alloc  base.Allocator
}

// noCopy may be added to structs which must not be copied after the
// first use.
//
//	type My struct {
//		_ noCopy
//		A state
//		b foo
//	}
//
// See https://golang.org/issues/8005#issuecomment-190753527 for
// details.
//
// Note that it must not be embedded, due to the Lock and Unlock
// methods.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New creates an empty Tree backed by alloc. alloc must not be nil;
// pass base.NewBump() for a standalone tree, or share one Allocator
// across every Tree/edatapool in a single arena's address space to
// keep the bookkeeping accounting unified.
func New(alloc base.Allocator) *Tree {
	return &Tree{alloc: alloc}
}

// Cache is per-call scratch state threaded through Lookup to remember
// the most recently visited leaf, avoiding a full redescent for
// repeated accesses to the same neighborhood. It is deliberately not a
// goroutine-local: like witness.Tracker, it is owned and passed by
// whoever is making the call, matching spec.md §4's requirement that
// rtree caches are explicit, caller-supplied scratch space rather than
// implicit thread-locals. A Cache must not be shared between
// goroutines used concurrently.
type Cache struct {
	lastKey  uint64
	lastNode *leafNode
}

// NewCache returns a ready-to-use, empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) invalidate() {
	c.lastNode = nil
}

// descend walks from the root down to the leaf array that would hold
// addr's mapping, materializing interior nodes along the way if write
// is true. It returns nil if write is false and an intervening level
// has not been materialized yet, or if write is true and
// materialization failed (base allocator exhausted). tr is threaded
// straight through to materializeNode/materializeLeaves, which push
// witness.RankBase around the materialization lock; it is never
// consulted when write is false, since a read-only descent never
// takes t.initMu.
func (t *Tree) descend(tr *witness.Tracker, addr uintptr, write bool) *leafNode {
	key := keyOf(addr)
	cur := &t.root

	for lvl := 0; lvl < height-1; lvl++ {
		slot := &cur.children[idx(key, lvl)]

		if lvl == height-2 {
			if write {
				return materializeLeaves(tr, &t.initMu, slot, t.alloc)
			}
			return slot.leaves.Load()
		}

		if write {
			n := materializeNode(tr, &t.initMu, slot, t.alloc)
			if n == nil {
				return nil
			}
			cur = n
			continue
		}
		n := slot.node.Load()
		if n == nil {
			return nil
		}
		cur = n
	}
	// height == 1: the root's own children are the leaf array.
	return nil
}

// Lookup returns the leaf element for addr, using and updating cache
// to skip the descent when addr falls in the same leaf array as the
// previous call. It does not materialize any node; if the relevant
// interior levels have never been written, Lookup returns nil,
// matching a miss in jemalloc's rtree_elm_lookup with dependent=false.
func (t *Tree) Lookup(cache *Cache, addr uintptr) *LeafElm {
	key := keyOf(addr)
	leafIdx := idx(key, height-1)

	if cache != nil && cache.lastNode != nil && cache.lastKey == key>>levelBits {
		return &cache.lastNode.elms[leafIdx]
	}

	leaves := t.descend(nil, addr, false)
	if leaves == nil {
		if cache != nil {
			cache.invalidate()
		}
		return nil
	}
	if cache != nil {
		cache.lastKey = key >> levelBits
		cache.lastNode = leaves
	}
	return &leaves.elms[leafIdx]
}

// Elm returns the leaf element for addr. With initMissing false it
// behaves exactly like Lookup (returns nil on a miss without touching
// the tree, and tr is ignored). With initMissing true it materializes
// any interior level along the path that does not exist yet -- without
// installing any mapping into the returned element -- and returns nil
// only if materialization failed (base allocator exhausted); tr is
// pushed to witness.RankBase for the duration of any materialization
// this call performs. This is the building block emap's boundary
// register/split/merge operations use to obtain a writable leaf
// element before deciding what to write into it, mirroring jemalloc's
// rtree_leaf_elm_lookup(dependent, init_missing).
func (t *Tree) Elm(cache *Cache, tr *witness.Tracker, addr uintptr, initMissing bool) *LeafElm {
	if !initMissing {
		return t.Lookup(cache, addr)
	}

	leaves := t.descend(tr, addr, true)
	if leaves == nil {
		return nil
	}
	key := keyOf(addr)
	if cache != nil {
		cache.lastKey = key >> levelBits
		cache.lastNode = leaves
	}
	return &leaves.elms[idx(key, height-1)]
}

// Write installs (ed, szind, slab) at addr, materializing every
// interior level on the path as needed; tr is pushed to
// witness.RankBase for the duration of any materialization this call
// performs. It returns false only if a level could not be
// materialized because the base allocator is exhausted (spec.md S6);
// the caller is responsible for propagating that as a register/split
// failure.
func (t *Tree) Write(cache *Cache, tr *witness.Tracker, addr uintptr, ed *edata.Edata, szind uint32, slab bool) bool {
	leaves := t.descend(tr, addr, true)
	if leaves == nil {
		return false
	}
	key := keyOf(addr)
	leafIdx := idx(key, height-1)
	leaves.elms[leafIdx].Write(ed, szind, slab)
	if cache != nil {
		cache.lastKey = key >> levelBits
		cache.lastNode = leaves
	}
	return true
}

// Clear removes the mapping at addr, if any. It does not remove the
// interior nodes themselves, matching the original's choice never to
// shrink the tree back down: node materialization is monotonic for the
// lifetime of the Tree.
func (t *Tree) Clear(cache *Cache, addr uintptr) {
	if elm := t.Lookup(cache, addr); elm != nil {
		elm.Clear()
	}
}

// Acquire locks the leaf element at addr and returns it along with its
// current descriptor, or returns (nil, nil) if no interior level
// covering addr has been materialized. tr, if non-nil, is asserted
// against witness.RankRtree before the spin loop begins, matching
// spec.md §5's rank ordering (mutex pool above rtree, rtree above
// base).
func (t *Tree) Acquire(cache *Cache, tr *witness.Tracker, addr uintptr) (*LeafElm, *edata.Edata) {
	elm := t.Lookup(cache, addr)
	if elm == nil {
		return nil, nil
	}
	tr.Push(witness.RankRtree)
	elm.Acquire()
	return elm, elm.ReadDescriptor(true)
}

// Release unlocks elm, previously returned by Acquire.
func (t *Tree) Release(tr *witness.Tracker, elm *LeafElm) {
	elm.Release()
	tr.Pop()
}
