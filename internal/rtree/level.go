// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package rtree

import (
	"math/bits"

	"github.com/arenamap/emap/internal/edata"
)

// Fixed tree shape: three levels of 12 bits each cover 36 significant
// bits, which together with the 12 bits discarded as the page offset
// (edata.PageShift) spans exactly the 48-bit virtual address space
// spec.md's worked examples (§8) assume.
const (
	levelBits = 12
	height    = 3
	totalBits = height * levelBits
	fanout    = 1 << levelBits
	fanoutMax = fanout - 1
)

// keyOf reduces a page-aligned address to its radix-tree key: the
// upper bits only, with the low LG_PAGE bits (the in-page offset, which
// is always zero for a page-aligned address) discarded.
func keyOf(addr uintptr) uint64 {
	return uint64(addr) >> edata.PageShift
}

// idx extracts the bit field for level out of key: level 0 is the
// field nearest the top (root), level height-1 the field nearest the
// bottom (leaf).
func idx(key uint64, level int) int {
	shift := totalBits - (level+1)*levelBits
	return int((key >> uint(shift)) & fanoutMax)
}

// startLevel computes the shallowest level whose cumulative bit count
// (counted from the top of the key's totalBits-wide space) already
// covers key's highest set bit -- the level at which descent could, in
// principle, begin directly, because every level above it would
// necessarily index slot 0 for this particular key. This is the direct
// analogue of jemalloc's rtree_start_level (rtree_inlines.h), lets
// small keys skip empty top levels, and is unit-tested against that
// same selection rule in level_test.go.
//
// This implementation's tree descends through a single, preallocated
// root array (see Tree.root) rather than jemalloc's per-level
// alternate entry points, so Lookup/Write do not currently call this
// function on their hot path: array indexing through an always-present
// root is already cheaper than maintaining a second family of subtree
// roots to avoid it. It is kept as a tested, addressable building block
// for a future sparse (pointer-chained, rather than flat-array) rtree
// variant, and to keep the selection rule itself verified against the
// original algorithm. See DESIGN.md.
func startLevel(key uint64) int {
	if key == 0 {
		return height - 1
	}
	need := bits.Len64(key)
	for lvl := height - 1; lvl >= 0; lvl-- {
		cumBefore := lvl * levelBits
		if need <= totalBits-cumBefore {
			return lvl
		}
	}
	return 0
}
