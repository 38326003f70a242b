// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package collab names, without implementing, the external
// collaborators this module's Non-goals explicitly exclude: the
// page-hook/commit policy, the per-arena bin and slab allocator, and
// per-arena statistics aggregation. spec.md is clear that registering
// and deregistering extents is this module's job, while deciding when
// to reclaim, commit, or account for them belongs one layer up; these
// interfaces exist only so that boundary has a concrete, documented
// shape instead of an implicit one, the same way the original C
// separates emap.c from extent.c and arena.c.
//
// Nothing in this module calls these interfaces. They are reference
// scaffolding for whatever owns an emap.Map instance.
package collab

import "github.com/arenamap/emap/internal/edata"

// PageSource models the page-hook collaborator: the component
// responsible for actually reserving, committing, and decommitting
// address-space ranges. emap only ever registers mappings for ranges
// PageSource has already produced; it never calls PageSource itself.
type PageSource interface {
	// Reserve returns a fresh, uncommitted range of n bytes, or ok=false
	// if the platform's address space is exhausted.
	Reserve(n uintptr) (base uintptr, ok bool)

	// Commit marks [base, base+n) as backed by physical storage.
	Commit(base, n uintptr) bool

	// Decommit returns [base, base+n) to an uncommitted state without
	// releasing the address-space reservation itself.
	Decommit(base, n uintptr) bool
}

// Accountant models the per-arena statistics collaborator: whatever
// aggregates extent lifecycle events (register/deregister/split/merge)
// into the size-class and arena-level counters spec.md's Non-goals
// exclude from this module. Its methods are named after the emap
// operation that would report to it.
type Accountant interface {
	OnRegister(ed *edata.Edata)
	OnDeregister(ed *edata.Edata)
	OnSplit(lead, trail *edata.Edata)
	OnMerge(survivor, absorbed *edata.Edata)
}
