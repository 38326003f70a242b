// Command emapstress drives a single emap.Map through a sustained,
// concurrent mix of register/split/merge/lookup operations and logs
// periodic progress, the same shape as the teacher package's own
// concurrent stress program (main.go / SyncLite) but exercising this
// core's transactional API instead of a persistent routing table.
//
// It never terminates on its own; run it under the race detector and
// Ctrl-C it once satisfied:
//
//	go run -tags emapdebug -race ./cmd
package main

import (
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/arenamap/emap"
	"github.com/arenamap/emap/internal/base"
	"github.com/arenamap/emap/internal/witness"
)

// arenaPages is the size, in pages, of the single simulated arena
// reservation the workload carves up and reassembles.
const arenaPages = 1 << 16

func main() {
	log.SetFlags(log.Lmicroseconds)

	m := emap.New(base.NewBump())

	root := &emap.Edata{}
	root.Init(0, 0x1000_0000_0000, emap.PageSize*arenaPages, false, emap.NSIZES, 0,
		emap.StateActive, true, true, true, emap.IsHead)
	if !m.RegisterBoundary(emap.NewCache(), witness.NewTracker(), root, emap.NSIZES, false) {
		log.Fatal("failed to register the initial arena reservation")
	}

	reg := newRegistry(root)

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go splitterLoop(&wg, m, reg, rand.New(rand.NewPCG(uint64(i), 7)))
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go mergerLoop(&wg, m, reg, rand.New(rand.NewPCG(uint64(i)+100, 7)))
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go lookupLoop(&wg, m, reg, rand.New(rand.NewPCG(uint64(i)+200, 7)))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			log.Printf("live extents: %d", reg.size())
			time.Sleep(time.Second)
		}
	}()

	wg.Wait()
}

// splitterLoop repeatedly picks a live extent with at least two pages
// and splits off a random-sized lead, mirroring free-path coalescing's
// counterpart: the decision to carve a chunk out of a larger range
// before handing it to a bin.
func splitterLoop(wg *sync.WaitGroup, m *emap.Map, reg *registry, prng *rand.Rand) {
	defer wg.Done()
	cache := emap.NewCache()
	tr := witness.NewTracker()
	for {
		ed, ok := reg.takeSplit(prng)
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}

		n := ed.NPages()
		pagesA := 1 + prng.IntN(n-1)
		sizeA := uintptr(pagesA) * emap.PageSize
		sizeB := ed.Size - sizeA

		trail := &emap.Edata{ArenaInd: ed.ArenaInd}
		tx, ok := m.SplitPrepare(cache, tr, ed, sizeA, emap.NSIZES, false, trail, sizeB, emap.NSIZES, false)
		if !ok {
			log.Printf("splitterLoop: base allocator exhausted, abandoning split of %s", ed)
			reg.putBackOne(ed) // prepare touched no rtree state; ed is unchanged
			time.Sleep(time.Millisecond)
			continue
		}
		m.SplitCommit(tx, ed, sizeA, emap.NSIZES, false, trail, sizeB, emap.NSIZES, false)
		reg.putBackSplit(ed, trail)

		time.Sleep(time.Millisecond)
	}
}

// mergerLoop repeatedly picks two adjacent live extents and merges
// them back into one, simulating an ecache coalescing neighbours on
// deallocation.
func mergerLoop(wg *sync.WaitGroup, m *emap.Map, reg *registry, prng *rand.Rand) {
	defer wg.Done()
	cache := emap.NewCache()
	for {
		lead, trail, ok := reg.takeMergePair(prng)
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}

		tx := m.MergePrepare(cache, lead, trail)
		m.MergeCommit(tx, lead, trail)
		reg.putBackMerged(lead)

		time.Sleep(time.Millisecond)
	}
}

// lookupLoop simulates the free() hot path: resolve a live address back
// to its descriptor, lock it briefly, and release it, verifying the
// descriptor it got back actually covers the address it asked for
// (testable property 5 in spec.md §8).
func lookupLoop(wg *sync.WaitGroup, m *emap.Map, reg *registry, prng *rand.Rand) {
	defer wg.Done()
	cache := emap.NewCache()
	tr := witness.NewTracker()
	for {
		addr, ok := reg.randomLiveAddr(prng)
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}

		ed := m.LockEdataFromAddr(cache, tr, addr, false)
		if ed == nil {
			// A concurrent split/merge can legitimately make a
			// previously-sampled address momentarily unresolvable
			// between registry.randomLiveAddr's snapshot and this
			// lookup; that race is expected and not itself a bug.
			continue
		}
		if !ed.Contains(addr) {
			log.Fatalf("lookup returned descriptor %s that does not cover addr %#x", ed, addr)
		}
		m.UnlockEdata(tr, ed)
	}
}
