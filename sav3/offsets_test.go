package sav3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxwxnvermx/witcher3-save-edit/cursor"
)

func TestParseOffsetTableSortsStablyByOffset(t *testing.T) {
	t.Parallel()

	b := new(buf)
	b.u32(3)
	b.i32(200).i32(10)
	b.i32(100).i32(20)
	b.i32(100).i32(30) // ties offset with the previous entry; stability matters

	c := cursor.New(b.Bytes())
	entries, err := parseOffsetTable(c)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(100), entries[0].Offset)
	assert.Equal(t, int64(20), entries[0].Size)
	assert.Equal(t, int64(100), entries[1].Offset)
	assert.Equal(t, int64(30), entries[1].Size)
	assert.Equal(t, int64(200), entries[2].Offset)
}

func TestOffsetIndexEntryCovering(t *testing.T) {
	t.Parallel()

	entries := []offsetEntry{
		{Offset: 100, Size: 30},
		{Offset: 200, Size: 15},
	}
	idx := newOffsetIndex(entries)
	assert.Equal(t, 2, idx.NumEntries())

	got, ok := idx.EntryCovering(110)
	require.True(t, ok)
	assert.Equal(t, int64(100), got.Offset)

	_, ok = idx.EntryCovering(99)
	assert.False(t, ok)

	_, ok = idx.EntryCovering(130)
	assert.False(t, ok)
}
