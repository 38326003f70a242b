package emap

import (
	"sync"
	"testing"

	"github.com/arenamap/emap/internal/base"
	"github.com/arenamap/emap/internal/witness"
	"github.com/stretchr/testify/require"
)

const page = uintptr(1) << 12

func newTestMap() *Map {
	return New(base.NewBump())
}

func newExtent(addr uintptr, npages int, szind uint32, slab bool) *Edata {
	ed := &Edata{}
	ed.Init(0, addr, page*uintptr(npages), slab, szind, 1, StateActive, true, true, true, IsHead)
	return ed
}

// S1: registering a single extent makes every boundary lookup resolve
// back to it, and deregistering removes the mapping.
func TestS1SingleExtentRoundTrip(t *testing.T) {
	t.Parallel()
	m := newTestMap()
	cache := NewCache()
	tr := witness.NewTracker()

	ed := newExtent(0x10000*page, 4, 3, false)
	require.True(t, m.RegisterBoundary(cache, tr, ed, 3, false))

	got := m.LockEdataFromAddr(cache, tr, ed.Base, false)
	require.Same(t, ed, got)
	m.UnlockEdata(tr, got)

	got2 := m.LockEdataFromAddr(cache, tr, ed.Last(), false)
	require.Same(t, ed, got2)
	m.UnlockEdata(tr, got2)

	m.DeregisterBoundary(cache, ed)
	require.Nil(t, m.LockEdataFromAddr(cache, tr, ed.Base, false))
}

// S2: a slab extent registers both its boundary and its interior
// pages, and every interior page resolves to the same descriptor with
// the slab bit set.
func TestS2SlabInteriorRegistration(t *testing.T) {
	t.Parallel()
	m := newTestMap()
	cache := NewCache()
	tr := witness.NewTracker()

	ed := newExtent(0x20000*page, 5, 7, true)
	require.True(t, m.RegisterBoundary(cache, tr, ed, 7, true))
	require.True(t, m.RegisterInterior(cache, tr, ed, 7))

	for i := 0; i < 5; i++ {
		addr := ed.Base + uintptr(i)*page
		elm := m.tree.Lookup(cache, addr)
		require.NotNil(t, elm, "page %d should be mapped", i)
		got := elm.ReadDescriptor(true)
		require.Same(t, ed, got)
		szind, slab := elm.ReadMeta()
		require.Equal(t, uint32(7), szind)
		require.True(t, slab)
	}

	// LockEdataFromAddr with inactiveOnly=true must skip slabs.
	require.Nil(t, m.LockEdataFromAddr(cache, tr, ed.Base, true))

	m.DeregisterInterior(cache, ed)
	m.DeregisterBoundary(cache, ed)
	for i := 0; i < 5; i++ {
		addr := ed.Base + uintptr(i)*page
		elm := m.tree.Lookup(cache, addr)
		require.NotNil(t, elm)
		require.Nil(t, elm.ReadDescriptor(true))
	}
}

// S3: splitting an extent makes the lead and trail regions resolve to
// two distinct descriptors with the requested sizes.
func TestS3Split(t *testing.T) {
	t.Parallel()
	m := newTestMap()
	cache := NewCache()
	tr := witness.NewTracker()

	ed := newExtent(0x30000*page, 8, 2, false)
	require.True(t, m.RegisterBoundary(cache, tr, ed, 2, false))

	sizeA := page * 3
	sizeB := ed.Size - sizeA
	trail := &Edata{ArenaInd: ed.ArenaInd}

	tx, ok := m.SplitPrepare(cache, tr, ed, sizeA, 9, false, trail, sizeB, 11, false)
	require.True(t, ok)

	m.SplitCommit(tx, ed, sizeA, 9, false, trail, sizeB, 11, false)

	require.Equal(t, sizeA, ed.Size)
	require.Equal(t, uint32(9), ed.Szind)
	require.Equal(t, sizeB, trail.Size)
	require.Equal(t, uint32(11), trail.Szind)

	leadElm := m.tree.Lookup(cache, ed.Base)
	require.Same(t, ed, leadElm.ReadDescriptor(true))

	trailElm := m.tree.Lookup(cache, trail.Base)
	require.Same(t, trail, trailElm.ReadDescriptor(true))

	// The page just before trail's base must still resolve to lead.
	lastLeadElm := m.tree.Lookup(cache, ed.Last())
	require.Same(t, ed, lastLeadElm.ReadDescriptor(true))
}

// S4: merging two adjacent extents folds trail into lead and clears
// the inner boundary.
func TestS4Merge(t *testing.T) {
	t.Parallel()
	m := newTestMap()
	cache := NewCache()
	tr := witness.NewTracker()

	lead := newExtent(0x40000*page, 3, 1, false)
	trail := newExtent(lead.Base+lead.Size, 2, 1, false)
	lead.Sn, trail.Sn = 5, 2
	lead.Zeroed, trail.Zeroed = true, false

	require.True(t, m.RegisterBoundary(cache, tr, lead, 1, false))
	require.True(t, m.RegisterBoundary(cache, tr, trail, 1, false))

	tx := m.MergePrepare(cache, lead, trail)
	m.MergeCommit(tx, lead, trail)

	require.Equal(t, page*5, lead.Size)
	require.Equal(t, uint32(NSIZES), lead.Szind)
	require.Equal(t, uint64(2), lead.Sn, "merged sn must be the minimum of the two")
	require.False(t, lead.Zeroed, "merged zeroed must be the conjunction of the two")

	innerElm := m.tree.Lookup(cache, lead.Last())
	// lead.Last() was recomputed after Size grew; it is now trail's
	// original last page, the merged extent's outer boundary, which
	// must point at lead.
	require.Same(t, lead, innerElm.ReadDescriptor(true))
}

// S5: concurrent lookups racing a split never observe a torn mapping:
// every lookup sees either the whole original extent or one of the two
// halves, never a null/garbage descriptor mid-flight.
func TestS5ConcurrentLookupDuringSplit(t *testing.T) {
	t.Parallel()
	m := newTestMap()
	prepCache := NewCache()
	tr := witness.NewTracker()

	ed := newExtent(0x50000*page, 8, 0, false)
	require.True(t, m.RegisterBoundary(prepCache, tr, ed, 0, false))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 64)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache := NewCache()
			for {
				select {
				case <-stop:
					return
				default:
				}
				elm := m.tree.Lookup(cache, ed.Base)
				if elm == nil {
					continue
				}
				got := elm.ReadDescriptor(true)
				if got == nil {
					errs <- errNilDuringSplit
					return
				}
			}
		}()
	}

	sizeA := page * 3
	trail := &Edata{ArenaInd: ed.ArenaInd}
	tx, ok := m.SplitPrepare(prepCache, tr, ed, sizeA, 0, false, trail, ed.Size-sizeA, 0, false)
	require.True(t, ok)
	m.SplitCommit(tx, ed, sizeA, 0, false, trail, ed.Size-sizeA, 0, false)

	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

// S6: when the base allocator is exhausted, registering a boundary far
// enough away to require fresh interior nodes fails cleanly rather
// than installing a partial mapping.
func TestS6BaseAllocatorExhaustion(t *testing.T) {
	t.Parallel()
	b := base.NewBump()
	m := New(b)
	cache := NewCache()
	tr := witness.NewTracker()

	b.SetFailAfter(1)

	ed := newExtent(0xABCDEF*page, 1, 0, false)
	ok := m.RegisterBoundary(cache, tr, ed, 0, false)
	if ok {
		// A fresh path needs an interior node and a leaf array, so a
		// limit of one allocation does not reach this branch with the
		// current tree shape; if it ever does, the mapping must be
		// complete rather than half-registered.
		elm := m.tree.Lookup(cache, ed.Base)
		require.NotNil(t, elm)
		return
	}
	elm := m.tree.Lookup(cache, ed.Base)
	if elm != nil {
		require.Nil(t, elm.ReadDescriptor(true), "a failed register must not leave a partial mapping")
	}
}

var errNilDuringSplit = &splitRaceError{}

type splitRaceError struct{}

func (*splitRaceError) Error() string {
	return "lookup observed a nil descriptor for an address that was never deregistered"
}
