// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package emap

import (
	"unsafe"

	"github.com/arenamap/emap/internal/witness"
)

// edataKey is the mutex-pool hash key for a descriptor: its own
// address. Two goroutines locking the same *Edata always compute the
// same key, and distinct descriptors almost always hash to distinct
// mutex-pool slots.
func edataKey(ed *Edata) uintptr {
	return uintptr(unsafe.Pointer(ed))
}

// LockEdata acquires the pool mutex protecting ed. tr, if non-nil, is
// asserted against witness.RankMutexPool first, per spec.md §5's lock
// rank (mutex pool above rtree, rtree above base allocator).
func (m *Map) LockEdata(tr *witness.Tracker, ed *Edata) {
	tr.Push(witness.RankMutexPool)
	m.mus.Lock(edataKey(ed))
}

// UnlockEdata releases the pool mutex protecting ed.
func (m *Map) UnlockEdata(tr *witness.Tracker, ed *Edata) {
	m.mus.Unlock(edataKey(ed))
	tr.Pop()
}

// LockEdata2 acquires the pool mutexes protecting both ed1 and ed2,
// ordered by (mutex index, then descriptor address) to avoid deadlock
// against a concurrent LockEdata2(ed2, ed1); if both hash to the same
// mutex, only one lock is taken.
func (m *Map) LockEdata2(tr *witness.Tracker, ed1, ed2 *Edata) {
	tr.Push(witness.RankMutexPool)
	m.mus.Lock2(edataKey(ed1), edataKey(ed2))
}

// UnlockEdata2 is the symmetric counterpart of LockEdata2.
func (m *Map) UnlockEdata2(tr *witness.Tracker, ed1, ed2 *Edata) {
	m.mus.Unlock2(edataKey(ed1), edataKey(ed2))
	tr.Pop()
}

// LockEdataFromAddr resolves addr to its registered descriptor and
// returns it already locked, or returns nil if no mapping exists (or,
// with inactiveOnly set, if the mapping is a slab -- slabs are always
// active). The caller must later call UnlockEdata on the result.
//
// This implements the procedure spec.md §4.3.1 describes: read the
// descriptor, lock it, then reread and recheck, because a concurrent
// split or merge can replace the mapping between the first read and
// the lock acquisition. The recheck is the linearization point; on a
// mismatch the stale lock is dropped and the whole sequence retries.
func (m *Map) LockEdataFromAddr(cache *Cache, tr *witness.Tracker, addr uintptr, inactiveOnly bool) *Edata {
	elm := m.tree.Lookup(cache, addr)
	if elm == nil {
		return nil
	}
	for {
		ed1 := elm.ReadDescriptor(true)
		if ed1 == nil {
			return nil
		}
		if inactiveOnly {
			if _, slab := elm.ReadMeta(); slab {
				return nil
			}
		}

		m.LockEdata(tr, ed1)
		ed2 := elm.ReadDescriptor(true)
		if ed1 == ed2 {
			return ed1
		}
		m.UnlockEdata(tr, ed1)
	}
}
