// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package edatapool is a sync.Pool-backed free-list for *edata.Edata
// descriptors. Descriptors are never freed back to the base allocator
// (spec.md's extents are bookkeeping-only: the underlying page range
// outlives any one descriptor), so the only way to avoid unbounded
// allocation churn across repeated split/merge cycles is to recycle
// the descriptor structs themselves, the same role the teacher
// package's pool[V] plays for its own node structs.
package edatapool

import (
	"sync"
	"sync/atomic"

	"github.com/arenamap/emap/internal/edata"
)

// Pool is a type-safe wrapper around sync.Pool specialized for
// *edata.Edata, adapted directly from the teacher's pool[V]
// (collapsing what was there a three-way node/leaf/fringe pool split
// into a single descriptor shape, since edata.Edata has only the one
// shape to begin with).
type Pool struct {
	sync.Pool

	totalAllocated atomic.Int64 // total number of *edata.Edata ever allocated
	currentLive    atomic.Int64 // number of descriptors currently checked out
}

// New creates a ready-to-use Pool.
func New() *Pool {
	p := &Pool{}
	p.Pool.New = func() any {
		p.totalAllocated.Add(1)
		return new(edata.Edata)
	}
	return p
}

// Get retrieves a zero-valued *edata.Edata from the pool, allocating a
// new one if the pool is empty. If p is nil, a new descriptor is
// returned without any tracking, matching the teacher's nil-receiver
// convention for optional pools.
func (p *Pool) Get() *edata.Edata {
	if p == nil {
		return new(edata.Edata)
	}
	p.currentLive.Add(1)
	return p.Pool.Get().(*edata.Edata)
}

// Put resets ed and returns it to the pool for reuse. If p is nil, ed
// is discarded.
func (p *Pool) Put(ed *edata.Edata) {
	if p == nil {
		return
	}
	p.currentLive.Add(-1)
	ed.Reset()
	p.Pool.Put(ed)
}

// Stats returns the number of descriptors currently checked out and
// the total ever allocated by this pool, for tests and diagnostics.
func (p *Pool) Stats() (live int64, total int64) {
	if p == nil {
		return 0, 0
	}
	return p.currentLive.Load(), p.totalAllocated.Load()
}
