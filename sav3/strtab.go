package sav3

import (
	"github.com/pxwxnvermx/witcher3-save-edit/cursor"
	"github.com/pxwxnvermx/witcher3-save-edit/diag"
)

// unknownName is the sentinel returned for index 0 or an out-of-range
// index, per spec §3's "Invariants" and the GLOSSARY's Name/type index
// entry.
const unknownName = "Unknown"

// StringTable is the per-file table of short strings read once before
// variable parsing and treated as read-only afterwards (spec §3
// "Lifecycles"). Its entries double as both variable names and dynamic
// type tags, looked up by 1-based index.
type StringTable struct {
	entries []string
}

// NewStringTable wraps an already-decoded string list, for callers
// assembling a StringTable outside of a full Decode (tests, tools reading a
// previously-dumped name list).
func NewStringTable(entries []string) *StringTable {
	return &StringTable{entries: entries}
}

// Resolve returns the string at 1-based idx, or the "Unknown" sentinel for
// index 0 or an out-of-range index. Never fails: bad indices are
// recoverable, not fatal (spec §4.4).
func (t *StringTable) Resolve(idx int64, offset int64, tr *diag.Tracker) string {
	if idx <= 0 || int(idx) > len(t.entries) {
		if tr != nil {
			tr.BadStringIndex(offset, int(idx), len(t.entries))
		}
		return unknownName
	}
	return t.entries[idx-1]
}

func (t *StringTable) Len() int {
	return len(t.entries)
}

// parseNameTableBody decodes a MANU record's body (spec §4.3.3): the 4-byte
// "MANU" magic has already been consumed by the caller (the dispatcher, or
// Decode for the NM section); this reads string_count, a discard i32, the
// length-prefixed strings themselves, another discard i32, and the "ENOD"
// trailer.
func parseNameTableBody(c *cursor.Cursor, tr *diag.Tracker) ([]string, int64, error) {
	start := c.Tell()

	count, err := c.ReadInt(4)
	if err != nil {
		return nil, 0, fail(ShortRead, start, "MANU string_count: %w", err)
	}
	if _, err := c.ReadInt(4); err != nil {
		return nil, 0, fail(ShortRead, c.Tell(), "MANU leading discard: %w", err)
	}

	strs := make([]string, 0, count)
	for i := int64(0); i < count; i++ {
		entryOffset := c.Tell()
		h, err := c.ReadUint(1)
		if err != nil {
			return nil, 0, fail(ShortRead, entryOffset, "MANU entry[%d] length: %w", i, err)
		}
		raw, err := c.ReadBytes(int(h & 0x7f))
		if err != nil {
			return nil, 0, fail(ShortRead, entryOffset, "MANU entry[%d] bytes: %w", i, err)
		}
		s := cursor.LossyString(raw)
		if tr != nil && string(raw) != s {
			tr.LossyDecode(entryOffset, raw)
		}
		strs = append(strs, s)
	}

	if _, err := c.ReadInt(4); err != nil {
		return nil, 0, fail(ShortRead, c.Tell(), "MANU trailing discard: %w", err)
	}

	trailer, err := c.ReadAscii(4)
	if err != nil {
		return nil, 0, fail(ShortRead, c.Tell(), "MANU trailer magic: %w", err)
	}
	if trailer != "ENOD" {
		return nil, 0, fail(BadMagic, c.Tell()-4, "MANU trailer: got %q, want ENOD", trailer)
	}

	return strs, c.Tell() - start, nil
}

// rbEntry is one entry of the RB ancillary table (spec §4.3.1 step 6).
// Retained but not interpreted further by this decoder, matching the
// source's own treatment of the table.
type rbEntry struct {
	Size   int16
	Offset int32
}

func parseRBTable(c *cursor.Cursor) ([]rbEntry, error) {
	magic, err := c.ReadAscii(2)
	if err != nil {
		return nil, fail(ShortRead, c.Tell(), "RB magic: %w", err)
	}
	if magic != "RB" {
		return nil, fail(BadMagic, c.Tell()-2, "RB magic: got %q, want RB", magic)
	}

	count, err := c.ReadInt(4)
	if err != nil {
		return nil, fail(ShortRead, c.Tell(), "RB count: %w", err)
	}

	entries := make([]rbEntry, 0, count)
	for i := int64(0); i < count; i++ {
		size, err := c.ReadInt(2)
		if err != nil {
			return nil, fail(ShortRead, c.Tell(), "RB entry[%d].size: %w", i, err)
		}
		offset, err := c.ReadInt(4)
		if err != nil {
			return nil, fail(ShortRead, c.Tell(), "RB entry[%d].offset: %w", i, err)
		}
		entries = append(entries, rbEntry{Size: int16(size), Offset: int32(offset)})
	}
	return entries, nil
}
