package rtree

import "testing"

func TestKeyOfDiscardsPageOffset(t *testing.T) {
	t.Parallel()
	const page = 1 << 12
	a := uintptr(0x1234_5000)
	b := a + page - 1 // same page, would-be offset irrelevant pre-shift
	if keyOf(a) != keyOf(b) {
		t.Fatalf("keyOf(%#x)=%d != keyOf(%#x)=%d, want equal for same page",
			a, keyOf(a), b, keyOf(b))
	}
}

func TestIdxRoundTrips(t *testing.T) {
	t.Parallel()
	key := uint64(0x123_456_789)
	var rebuilt uint64
	for lvl := 0; lvl < height; lvl++ {
		rebuilt = (rebuilt << levelBits) | uint64(idx(key, lvl))
	}
	want := key & ((1 << totalBits) - 1)
	if rebuilt != want {
		t.Fatalf("rebuilding key from per-level idx() fields = %#x, want %#x", rebuilt, want)
	}
}

// TestStartLevel checks startLevel against the same rule jemalloc's
// rtree_start_level implements: the deepest level whose remaining bit
// budget (from that level down to the leaf) still covers the key's
// significant bits.
func TestStartLevel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		key  uint64
		want int
	}{
		{0, height - 1},
		{1, height - 1},                    // fits in the last level's 12 bits alone
		{1 << (levelBits - 1), height - 1}, // still fits in 12 bits
		{1 << levelBits, height - 2},        // needs 13 bits -> spills into the level above
		{1 << (2 * levelBits), height - 3},  // needs 25 bits -> spills to the top level
	}
	for _, c := range cases {
		if got := startLevel(c.key); got != c.want {
			t.Errorf("startLevel(%#x) = %d, want %d", c.key, got, c.want)
		}
	}
}
