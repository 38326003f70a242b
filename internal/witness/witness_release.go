//go:build !emapdebug

package witness

// Enabled is false in release builds: every Tracker method becomes a
// no-op the compiler can eliminate, per spec.md §7 ("Debug-only;
// no-op in release").
const Enabled = false
