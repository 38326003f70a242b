package main

import (
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/arenamap/emap"
)

// registry tracks which extents are currently live and registered with
// a Map, so the stress workload can pick split/merge/lookup candidates
// without racing itself into operating on the same descriptor twice.
// The Map's own rtree and mutex pool already serialize access to any
// one address's mapping; registry serializes the higher-level decision
// of *which* descriptor to operate on next, the same division of labor
// spec.md draws between the core and whatever ecache or bin owns a
// descriptor at a given moment. Every pick removes its result from the
// registry; callers must always eventually put it (or its replacement)
// back, whether their operation succeeded or was abandoned.
type registry struct {
	mu    sync.Mutex
	order []*emap.Edata // sorted by Base; reservation is contiguous
}

func newRegistry(first *emap.Edata) *registry {
	return &registry{order: []*emap.Edata{first}}
}

func (r *registry) insertLocked(ed *emap.Edata) {
	i := sort.Search(len(r.order), func(i int) bool { return r.order[i].Base >= ed.Base })
	r.order = append(r.order, nil)
	copy(r.order[i+1:], r.order[i:])
	r.order[i] = ed
}

// takeSplit removes and returns a random live extent with at least two
// pages, for a goroutine that is about to split it. ok is false if
// nothing currently qualifies.
func (r *registry) takeSplit(prng *rand.Rand) (ed *emap.Edata, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := make([]int, 0, len(r.order))
	for i, e := range r.order {
		if e.NPages() >= 2 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	i := candidates[prng.IntN(len(candidates))]
	ed = r.order[i]
	r.order = append(r.order[:i], r.order[i+1:]...)
	return ed, true
}

// putBackOne reinserts a single extent (a split that was prepared but
// then abandoned, e.g. on base-allocator exhaustion) in address order.
func (r *registry) putBackOne(ed *emap.Edata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(ed)
}

// putBackSplit reinserts the lead/trail pair produced by a successful
// split.
func (r *registry) putBackSplit(lead, trail *emap.Edata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(lead)
	r.insertLocked(trail)
}

// takeMergePair removes and returns two adjacent (lead.Base+lead.Size ==
// trail.Base) live extents, for a goroutine that is about to merge
// them. Neighbouring slice entries are not necessarily address-adjacent
// -- an extent between them may currently be checked out to a
// splitterLoop goroutine, opening a temporary gap -- so candidates are
// filtered for true address adjacency, not just slice adjacency. ok is
// false if no adjacent pair is currently available.
func (r *registry) takeMergePair(prng *rand.Rand) (lead, trail *emap.Edata, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []int
	for i := 0; i+1 < len(r.order); i++ {
		if r.order[i].Base+r.order[i].Size == r.order[i+1].Base {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil, nil, false
	}
	i := candidates[prng.IntN(len(candidates))]
	lead, trail = r.order[i], r.order[i+1]
	r.order = append(r.order[:i], r.order[i+2:]...)
	return lead, trail, true
}

// putBackMerged reinserts the survivor of a merge.
func (r *registry) putBackMerged(merged *emap.Edata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(merged)
}

// randomLiveAddr returns an address known to have fallen inside some
// registered extent at the instant of the call, for the lookup/free-
// path simulation goroutines. It does not remove anything: a concurrent
// split or merge racing this read is exactly the scenario spec.md §8's
// S5 describes, and the lookup itself (not this snapshot) is what must
// stay correct.
func (r *registry) randomLiveAddr(prng *rand.Rand) (uintptr, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return 0, false
	}
	ed := r.order[prng.IntN(len(r.order))]
	n := ed.NPages()
	page := prng.IntN(n)
	return ed.Base + uintptr(page)<<emap.PageShift, true
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
