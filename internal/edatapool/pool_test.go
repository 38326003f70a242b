package edatapool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPutReusesStorage(t *testing.T) {
	t.Parallel()
	p := New()

	ed := p.Get()
	ed.Base = 0x1000
	ed.Size = 0x1000
	ed.Szind = 7

	p.Put(ed)

	live, total := p.Stats()
	require.Equal(t, int64(0), live)
	require.Equal(t, int64(1), total)

	ed2 := p.Get()
	require.Equal(t, uintptr(0), ed2.Base, "Put must reset fields before returning to the pool")
	require.Equal(t, uint32(0), ed2.Szind)

	live, total = p.Stats()
	require.Equal(t, int64(1), live)
	require.Equal(t, int64(1), total, "Get after Put should reuse, not allocate again")
}

func TestNilPoolIsUntracked(t *testing.T) {
	t.Parallel()
	var p *Pool
	ed := p.Get()
	require.NotNil(t, ed)
	p.Put(ed) // must not panic
	live, total := p.Stats()
	require.Equal(t, int64(0), live)
	require.Equal(t, int64(0), total)
}
