// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package emap_test

import (
	"fmt"

	"github.com/arenamap/emap"
	"github.com/arenamap/emap/internal/base"
	"github.com/arenamap/emap/internal/witness"
)

// ExampleMap_registerLookupSplit walks an extent through register,
// lookup, and split, printing the observable state after each step.
func ExampleMap_registerLookupSplit() {
	m := emap.New(base.NewBump())
	cache := emap.NewCache()
	tr := witness.NewTracker()

	ed := &emap.Edata{}
	ed.Init(0, 0x1000_0000, emap.PageSize*4, false, emap.NSIZES, 1,
		emap.StateActive, true, true, true, emap.IsHead)
	m.RegisterBoundary(cache, tr, ed, emap.NSIZES, false)

	got := m.LockEdataFromAddr(cache, tr, ed.Base, false)
	fmt.Println("resolved:", got == ed)
	m.UnlockEdata(tr, got)

	sizeA := uintptr(emap.PageSize)
	trail := &emap.Edata{}
	tx, ok := m.SplitPrepare(cache, tr, ed, sizeA, emap.NSIZES, false, trail, ed.Size-sizeA, emap.NSIZES, false)
	fmt.Println("split prepared:", ok)
	m.SplitCommit(tx, ed, sizeA, emap.NSIZES, false, trail, ed.Size-sizeA, emap.NSIZES, false)
	fmt.Println("lead size:", ed.Size)
	fmt.Println("trail size:", trail.Size)

	// Output:
	// resolved: true
	// split prepared: true
	// lead size: 4096
	// trail size: 12288
}

// ExampleMap_concurrentLookups demonstrates that a Map may be read from
// many goroutines at once while a writer registers and deregisters an
// unrelated extent, mirroring the teacher's own SyncTable concurrency
// example. It is intended to be run with the Go race detector enabled.
func ExampleMap_concurrentLookups() {
	m := emap.New(base.NewBump())

	seed := &emap.Edata{}
	seed.Init(0, 0x2000_0000, emap.PageSize, false, emap.NSIZES, 1,
		emap.StateActive, true, true, true, emap.IsHead)
	m.RegisterBoundary(emap.NewCache(), witness.NewTracker(), seed, emap.NSIZES, false)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			cache := emap.NewCache()
			tr := witness.NewTracker()
			for j := 0; j < 100; j++ {
				if ed := m.LockEdataFromAddr(cache, tr, seed.Base, false); ed != nil {
					m.UnlockEdata(tr, ed)
				}
			}
			done <- struct{}{}
		}()
	}

	other := &emap.Edata{}
	other.Init(0, 0x3000_0000, emap.PageSize, false, emap.NSIZES, 1,
		emap.StateActive, true, true, true, emap.IsHead)
	writerCache, writerTr := emap.NewCache(), witness.NewTracker()
	for j := 0; j < 100; j++ {
		m.RegisterBoundary(writerCache, writerTr, other, emap.NSIZES, false)
		m.DeregisterBoundary(writerCache, other)
	}

	for i := 0; i < 4; i++ {
		<-done
	}

	// Output:
}
