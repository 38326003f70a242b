//go:build !unix

package base

func init() {
	reserveFn = goHeapReserve
}

// goHeapReserve is the non-unix fallback: plain Go-heap memory instead
// of an mmap reservation. Correct but gives up the "real OS pages"
// realism the unix build gets from golang.org/x/sys/unix.Mmap.
func goHeapReserve(n uintptr) ([]byte, bool) {
	return make([]byte, n), true
}
