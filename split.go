// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package emap

import (
	"github.com/arenamap/emap/internal/rtree"
	"github.com/arenamap/emap/internal/witness"
)

// Transaction holds the four leaf elements a split or merge operates
// on, obtained during prepare and written during commit. Keeping
// prepare and commit separate is what lets a base-allocator failure
// during prepare abandon the whole operation without having touched
// any rtree state -- jemalloc's emap_split_prepare_t plays the same
// role, and is reused unmodified for merge in the original source.
type Transaction struct {
	LeadElmA, LeadElmB   *rtree.LeafElm
	TrailElmA, TrailElmB *rtree.LeafElm
}

// SplitPrepare looks up the leaf elements that splitting ed at offset
// sizeA will need to write, materializing any missing interior nodes.
// trail is initialized in place with base ed.Base+sizeA and size
// sizeB, inheriting ed's mutable flags (sn, state, zeroed, committed,
// dumpable) but keeping trail's own arena index, so that cross-arena
// transfers (e.g. through a shared range cache) stay possible.
//
// SplitPrepare returns ok=false, touching no rtree state, if any of
// the four leaf elements could not be materialized (base allocator
// exhausted). The caller must not call SplitCommit in that case. tr,
// if non-nil, is asserted against witness.RankBase while any interior
// node this call needs is being materialized.
func (m *Map) SplitPrepare(cache *Cache, tr *witness.Tracker, ed *Edata, sizeA uintptr, szindA uint32, slabA bool, trail *Edata, sizeB uintptr, szindB uint32, slabB bool) (*Transaction, bool) {
	trail.Init(trail.ArenaInd, ed.Base+sizeA, sizeB, slabB, szindB, ed.Sn,
		ed.State, ed.Zeroed, ed.Committed, ed.Dumpable, NotHead)

	// A stack-local, purely-for-lookup descriptor: its arena index,
	// zeroed/committed/dumpable/head fields are placeholders, never
	// observed by anything but this lookup.
	var lead Edata
	lead.Init(0, ed.Base, sizeA, slabA, szindA, 0, StateActive, false, false, false, NotHead)

	leadA, leadB, ok := m.rtreeLeafElmsLookup(cache, tr, lead.Base, lead.Last(), true)
	if !ok {
		return nil, false
	}
	trailA, trailB, ok := m.rtreeLeafElmsLookup(cache, tr, trail.Base, trail.Last(), true)
	if !ok {
		return nil, false
	}
	return &Transaction{leadA, leadB, trailA, trailB}, true
}

// SplitCommit updates lead in place (size, szind) and writes the four
// leaf elements gathered by SplitPrepare to point at lead and trail
// respectively. Commit never fails: every allocation SplitCommit could
// have needed already happened during SplitPrepare.
func (m *Map) SplitCommit(tx *Transaction, lead *Edata, sizeA uintptr, szindA uint32, slabA bool, trail *Edata, sizeB uintptr, szindB uint32, slabB bool) {
	lead.Size = sizeA
	lead.Szind = szindA

	rtreeWriteAcquired(tx.LeadElmA, tx.LeadElmB, lead, szindA, slabA)
	rtreeWriteAcquired(tx.TrailElmA, tx.TrailElmB, trail, szindB, slabB)
}
