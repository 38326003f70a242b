// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package rtree

import (
	"sync"
	"sync/atomic"

	"github.com/arenamap/emap/internal/base"
	"github.com/arenamap/emap/internal/witness"
)

// node is one interior level of the tree: fanout slots, each either
// nil or pointing at the next level down. The bottom interior level
// (level height-2) points at leaf arrays instead of further nodes; see
// materializeNode / materializeLeaves and Tree's descent.
type node struct {
	children [fanout]child
}

// child is a union of "next interior node" and "leaf array" -- Tree
// already knows, from its own descent depth, which field a given slot
// uses, so child carries no discriminant of its own. Both fields are
// atomic.Pointer so that the lazy double-checked-locking materializer
// below can publish them with a genuine happens-before edge: a reader
// racing the allocator must either see nil (and fall back to taking
// the lock itself) or see the fully initialized node/leafNode, never a
// partially constructed one.
type child struct {
	node   atomic.Pointer[node]
	leaves atomic.Pointer[leafNode]
}

// leafNode is the bottom level: fanout individually lockable leaf
// elements.
type leafNode struct {
	elms [fanout]LeafElm
}

// nodeSizeAccounted/leafNodeSizeAccounted are the sizes charged against the base
// allocator when materializing each level, matching spec.md's
// "materializing a node consumes base-allocator storage" accounting
// rule. The tree never actually carves the returned storage out of
// base's bump region and casts it into a *node -- see the package doc
// comment in rtree.go for why -- so these only gate whether
// materialization may proceed.
const (
	nodeSizeAccounted     = fanout * 16 // two pointer-sized words per slot
	leafNodeSizeAccounted = fanout * 24 // LeafElm is ptr + bool + uint32 + bool, rounded
)

// materializeNode performs the lazy, double-checked-locked publication
// of an interior node into slot, the same pattern jemalloc's
// rtree_node_init uses and the same shape as the teacher's node.go
// lazy-child allocation: check unlocked, lock, recheck, allocate,
// publish, unlock. alloc gates whether materialization is allowed to
// happen at all (spec.md: base-allocator exhaustion must propagate as
// a failure here) without backing the Go allocation itself, because a
// []byte region from alloc is invisible to the garbage collector's
// pointer scanner and cannot safely hold real *edata.Edata pointers
// (see DESIGN.md). tr, if non-nil, is pushed to witness.RankBase for
// the span during which mu is held, so a debug build panics if the
// caller already holds a rank at or below base -- spec.md §5's lock
// rank order applies here just as it does to the mutex pool and rtree
// leaf locks.
func materializeNode(tr *witness.Tracker, mu *sync.Mutex, slot *child, alloc base.Allocator) *node {
	if n := slot.node.Load(); n != nil {
		return n
	}
	tr.Push(witness.RankBase)
	defer tr.Pop()
	mu.Lock()
	defer mu.Unlock()
	if n := slot.node.Load(); n != nil {
		return n
	}
	if _, ok := alloc.Alloc(nodeSizeAccounted, 8); !ok {
		return nil
	}
	n := new(node)
	slot.node.Store(n)
	return n
}

// materializeLeaves is materializeNode's counterpart for the bottom
// (leaf-array) level.
func materializeLeaves(tr *witness.Tracker, mu *sync.Mutex, slot *child, alloc base.Allocator) *leafNode {
	if l := slot.leaves.Load(); l != nil {
		return l
	}
	tr.Push(witness.RankBase)
	defer tr.Pop()
	mu.Lock()
	defer mu.Unlock()
	if l := slot.leaves.Load(); l != nil {
		return l
	}
	if _, ok := alloc.Alloc(leafNodeSizeAccounted, 8); !ok {
		return nil
	}
	l := new(leafNode)
	slot.leaves.Store(l)
	return l
}
