// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package emap

import (
	"github.com/arenamap/emap/internal/edata"
	"github.com/arenamap/emap/internal/witness"
)

// RegisterBoundary writes the mapping for ed's first and last page,
// installing (ed, szind, slab) at both. Both writes either succeed
// together or neither happens: the leaf elements for both pages are
// obtained (materializing any missing interior nodes) before either is
// written, so a base-allocator failure midway never leaves one
// boundary registered and the other not. tr, if non-nil, is asserted
// against witness.RankBase while any interior node this call needs is
// being materialized.
func (m *Map) RegisterBoundary(cache *Cache, tr *witness.Tracker, ed *Edata, szind uint32, slab bool) bool {
	a, b, ok := m.rtreeLeafElmsLookup(cache, tr, ed.Base, ed.Last(), true)
	if !ok {
		return false
	}
	rtreeWriteAcquired(a, b, ed, szind, slab)
	return true
}

// RegisterInterior writes the mapping at every interior page (indices
// 1..n-2) of a slab extent. Only valid when ed.Slab is true. Unlike
// RegisterBoundary, interior writes are not required to be atomic with
// respect to each other or with the boundary write: interior pages are
// not reachable as allocation results until the owning bin finishes
// registering the slab. tr is forwarded to each page's materialization.
func (m *Map) RegisterInterior(cache *Cache, tr *witness.Tracker, ed *Edata, szind uint32) bool {
	n := ed.NPages()
	for i := 1; i < n-1; i++ {
		addr := ed.Base + uintptr(i)<<edata.PageShift
		elm := m.tree.Elm(cache, tr, addr, true)
		if elm == nil {
			return false
		}
		writeLeafAcquired(elm, ed, szind, true)
	}
	return true
}

// DeregisterBoundary clears the mapping at ed's first and last page.
// The caller must already hold proof of exclusive access to ed (its
// mutex-pool lock, or equivalent uniqueness guarantee) before calling
// this: the lookup here uses dependent-read semantics and trusts that
// the mapping still exists.
func (m *Map) DeregisterBoundary(cache *Cache, ed *Edata) {
	a := m.tree.Elm(cache, nil, ed.Base, false)
	b := m.tree.Elm(cache, nil, ed.Last(), false)
	rtreeWriteAcquired(a, b, nil, edata.NSIZES, false)
}

// DeregisterInterior clears the mapping at every interior page of a
// slab extent.
func (m *Map) DeregisterInterior(cache *Cache, ed *Edata) {
	n := ed.NPages()
	for i := 1; i < n-1; i++ {
		addr := ed.Base + uintptr(i)<<edata.PageShift
		if elm := m.tree.Lookup(cache, addr); elm != nil {
			writeLeafAcquired(elm, nil, edata.NSIZES, false)
		}
	}
}
