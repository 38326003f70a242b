// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package emap is the address-space bookkeeping core of a multi-arena
// page allocator: a radix tree mapping page-aligned addresses to
// extent descriptors (internal/edata.Edata), plus a transactional
// façade that exposes register/deregister/split/merge as the only ways
// to mutate it.
//
// emap itself never decides when to reclaim, coalesce, or hand out
// address ranges -- see internal/collab for the boundary to whatever
// owns that policy. It only guarantees that every address currently
// backing a live extent resolves, under concurrent lookup, to exactly
// one descriptor, and that split/merge never expose a half-updated
// mapping to a concurrent reader.
package emap

import (
	"github.com/arenamap/emap/internal/edata"
	"github.com/arenamap/emap/internal/rtree"
)

// Edata is the extent descriptor type, aliased from internal/edata so
// that callers never need to import the internal package directly --
// the same alias-for-readability pattern the teacher package uses for
// its own internal stride-path type.
type Edata = edata.Edata

// NSIZES is the sentinel szind meaning "no cached size class".
const NSIZES = edata.NSIZES

// PageShift and PageSize describe the page granularity every address
// and size this package handles is aligned to.
const (
	PageShift = edata.PageShift
	PageSize  = edata.PageSize
)

// NotHead/IsHead mark whether an extent is the first extent carved out
// of a larger reservation.
const (
	NotHead = edata.NotHead
	IsHead  = edata.IsHead
)

// State aliases edata.State.
type State = edata.State

const (
	StateActive   = edata.StateActive
	StateDirty    = edata.StateDirty
	StateMuzzy    = edata.StateMuzzy
	StateRetained = edata.StateRetained
)

// Cache is the per-call rtree lookup cache every hot-path Map method
// accepts. Callers own its storage; a Cache must not be shared between
// goroutines used concurrently. Pass nil to opt out of caching.
type Cache = rtree.Cache

// NewCache returns a ready-to-use, empty Cache.
func NewCache() *Cache {
	return rtree.NewCache()
}
