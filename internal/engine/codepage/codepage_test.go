package codepage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPage_EmitWords(t *testing.T) {
	p := NewPage(1)
	require.Equal(t, PC(PageCellCount), p.Base())
	require.Equal(t, PC(PageCellCount), p.PC())
	require.Equal(t, PageCellCount, p.NumFreeWords())

	p.EmitWord(7)
	p.EmitWord32(0xfffffff0)
	p.EmitWord64(1 << 40)

	require.Equal(t, []uint64{7, 0xfffffff0, 1 << 40}, p.Words())
	require.Equal(t, p.Base()+3, p.PC())
	require.Equal(t, PageCellCount-3, p.NumFreeWords())
}

func TestPage_ReservePatch(t *testing.T) {
	p := NewPage(2)
	p.EmitWord(1)
	ref := p.Reserve()
	p.EmitWord(3)

	require.True(t, ref.IsValid())
	require.Equal(t, []uint64{1, 0, 3}, p.Words())

	ref.Set(PC(4096))
	require.Equal(t, []uint64{1, 4096, 3}, p.Words())
	require.Equal(t, uint64(4096), p.WordAt(1))
}

func TestRef_ZeroValueInvalid(t *testing.T) {
	var ref Ref
	require.False(t, ref.IsValid())
}
