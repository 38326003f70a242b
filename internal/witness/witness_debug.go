//go:build emapdebug

package witness

// Enabled gates every Tracker check at compile time: built with the
// emapdebug tag, the checks run; without it (the default), the
// compiler dead-code-eliminates them entirely.
const Enabled = true
