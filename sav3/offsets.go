package sav3

import (
	"sort"

	"github.com/google/btree"

	"github.com/pxwxnvermx/witcher3-save-edit/cursor"
)

// offsetEntry is one (offset, size) pair of the variable offset table
// (spec §3 "Variable offset table").
type offsetEntry struct {
	seq    int // original declaration order, for stable sort
	Offset int64
	Size   int64
}

func parseOffsetTable(c *cursor.Cursor) ([]offsetEntry, error) {
	count, err := c.ReadInt(4)
	if err != nil {
		return nil, fail(ShortRead, c.Tell(), "variable table entry_count: %w", err)
	}

	entries := make([]offsetEntry, 0, count)
	for i := int64(0); i < count; i++ {
		off, err := c.ReadInt(4)
		if err != nil {
			return nil, fail(ShortRead, c.Tell(), "variable table entry[%d].offset: %w", i, err)
		}
		size, err := c.ReadInt(4)
		if err != nil {
			return nil, fail(ShortRead, c.Tell(), "variable table entry[%d].size: %w", i, err)
		}
		entries = append(entries, offsetEntry{seq: int(i), Offset: off, Size: size})
	}

	// Stable by offset: the format never produces equal offsets in
	// practice, but §8 requires the sort to be observably stable among
	// ties anyway.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Offset < entries[j].Offset
	})

	return entries, nil
}

// offsetIndexItem adapts offsetEntry for btree.BTreeG, which needs a
// pointer-or-value type with an ordering — following the teacher's
// FrameOffsetEntry/Less pattern in env/frame_offset.go.
type offsetIndexItem struct {
	entry offsetEntry
}

func lessByOffset(a, b *offsetIndexItem) bool {
	return a.entry.Offset < b.entry.Offset
}

// OffsetIndex is a B-tree-backed view over the variable offset table giving
// O(log n) "which entry covers this image offset" queries — an additive
// random-access API symmetrical to the teacher's Decoder.GetIndexByDecompOffset,
// not required by spec §4.3.5's left-to-right walk but useful for tools
// built on top of a dump.
type OffsetIndex struct {
	tree    *btree.BTreeG[*offsetIndexItem]
	entries []offsetEntry
}

func newOffsetIndex(entries []offsetEntry) *OffsetIndex {
	tree := btree.NewG(8, lessByOffset)
	for _, e := range entries {
		e := e
		tree.ReplaceOrInsert(&offsetIndexItem{entry: e})
	}
	return &OffsetIndex{tree: tree, entries: entries}
}

// EntryCovering returns the offset-table entry whose declared range
// contains offset, and true if one was found.
func (idx *OffsetIndex) EntryCovering(offset int64) (offsetEntry, bool) {
	var found *offsetIndexItem
	idx.tree.DescendLessOrEqual(&offsetIndexItem{entry: offsetEntry{Offset: offset}}, func(item *offsetIndexItem) bool {
		found = item
		return false
	})
	if found == nil {
		return offsetEntry{}, false
	}
	if offset >= found.entry.Offset && offset < found.entry.Offset+found.entry.Size {
		return found.entry, true
	}
	return offsetEntry{}, false
}

// NumEntries returns the number of entries in the variable offset table.
func (idx *OffsetIndex) NumEntries() int {
	return len(idx.entries)
}
