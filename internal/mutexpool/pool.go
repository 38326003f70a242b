// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package mutexpool implements a fixed-size array of mutexes indexed by
// hashing a protected object's address, used to serialize operations on
// an extent descriptor without storing a lock inside every descriptor.
//
// The spin/CAS style used by the rtree leaf lock (internal/rtree) comes
// from hmarui66/blinktree's SpinLatch: a tight retry loop with
// runtime.Gosched() between attempts rather than a blocking primitive,
// because the critical sections involved are only a handful of
// instructions. This package's locks, in contrast, can be held across a
// register/deregister or the body of a split/merge commit, so it uses
// real sync.Mutex values rather than spinning.
package mutexpool

import "sync"

// defaultSize is the number of mutexes in the pool. Must be a power of
// two so index masking is a single AND.
const defaultSize = 256

// Pool is a fixed-size array of mutexes shared by hashing the address
// of whatever each mutex protects.
type Pool struct {
	mus [defaultSize]sync.Mutex
}

// New returns a ready-to-use Pool.
func New() *Pool {
	return &Pool{}
}

// index hashes key down to a slot in the pool. The mixing constants are
// the 64-bit splitmix finalizer: cheap, good avalanche, no import
// needed for a fixed-size, address-keyed hash table this small.
func (p *Pool) index(key uintptr) int {
	h := uint64(key)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return int(h & (defaultSize - 1))
}

// Lock acquires the mutex that key hashes to.
func (p *Pool) Lock(key uintptr) {
	p.mus[p.index(key)].Lock()
}

// Unlock releases the mutex that key hashes to.
func (p *Pool) Unlock(key uintptr) {
	p.mus[p.index(key)].Unlock()
}

// Lock2 acquires the mutexes for k1 and k2, ordered by (mutex index,
// then key) to prevent deadlock against a concurrent Lock2(k2, k1). If
// both keys hash to the same mutex, only one Lock call is made.
func (p *Pool) Lock2(k1, k2 uintptr) {
	i1, i2 := p.index(k1), p.index(k2)
	if i1 == i2 {
		p.mus[i1].Lock()
		return
	}

	// order by index, then by key, so any two callers locking the same
	// pair always take them in the same order.
	if i1 > i2 || (i1 == i2 && k1 > k2) {
		i1, i2 = i2, i1
	}
	p.mus[i1].Lock()
	p.mus[i2].Lock()
}

// Unlock2 is the symmetric counterpart of Lock2.
func (p *Pool) Unlock2(k1, k2 uintptr) {
	i1, i2 := p.index(k1), p.index(k2)
	if i1 == i2 {
		p.mus[i1].Unlock()
		return
	}
	p.mus[i1].Unlock()
	p.mus[i2].Unlock()
}
