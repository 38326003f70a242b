// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package emap

// MergePrepare looks up the four boundary leaf elements of adjacent
// lead and trail (lead.Base+lead.Size == trail.Base) using dependent
// reads: both extents are already registered, so prepare trusts they
// exist rather than materializing anything. Merge never fails, so
// there is no ok return -- see MergeCommit.
func (m *Map) MergePrepare(cache *Cache, lead, trail *Edata) *Transaction {
	leadA, leadB, _ := m.rtreeLeafElmsLookup(cache, nil, lead.Base, lead.Last(), false)
	trailA, trailB, _ := m.rtreeLeafElmsLookup(cache, nil, trail.Base, trail.Last(), false)
	return &Transaction{leadA, leadB, trailA, trailB}
}

// MergeCommit clears the inner two boundaries (lead's last page,
// trail's first page), folds trail's size/szind/sn/zeroed fields into
// lead, and writes the outer two boundaries (lead's first page,
// trail's last page) to point at the now-merged lead. After
// MergeCommit returns, trail is logically dead; returning its storage
// to a free-list (internal/edatapool) is the caller's responsibility.
func (m *Map) MergeCommit(tx *Transaction, lead, trail *Edata) {
	if tx.LeadElmB != nil {
		writeLeafAcquired(tx.LeadElmB, nil, NSIZES, false)
	}

	var mergedB = tx.TrailElmA
	if tx.TrailElmB != nil {
		writeLeafAcquired(tx.TrailElmA, nil, NSIZES, false)
		mergedB = tx.TrailElmB
	}

	lead.Size += trail.Size
	lead.Szind = NSIZES
	if trail.Sn < lead.Sn {
		lead.Sn = trail.Sn
	}
	lead.Zeroed = lead.Zeroed && trail.Zeroed
	// Committed/Dumpable are left untouched: spec.md requires the core
	// not silently drop a disagreement between lead and trail on these
	// fields, which is the caller's contract to uphold before merging.

	rtreeWriteAcquired(tx.LeadElmA, mergedB, lead, NSIZES, false)
}
