package sav3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxwxnvermx/witcher3-save-edit/cursor"
	"github.com/pxwxnvermx/witcher3-save-edit/diag"
)

func TestStringTableResolve(t *testing.T) {
	t.Parallel()

	tr := diag.New()
	st := &StringTable{entries: []string{"HP", "Stamina"}}

	assert.Equal(t, "HP", st.Resolve(1, 0, tr))
	assert.Equal(t, "Stamina", st.Resolve(2, 0, tr))
	assert.Equal(t, unknownName, st.Resolve(0, 0, tr))
	assert.Equal(t, unknownName, st.Resolve(3, 0, tr))
}

func TestParseNameTableBody(t *testing.T) {
	t.Parallel()

	b := new(buf)
	b.i32(2) // string_count
	b.i32(0) // leading discard
	b.u8(2).ascii("HP")
	b.u8(7).ascii("Stamina")
	b.i32(0) // trailing discard
	b.ascii("ENOD")

	c := cursor.New(b.Bytes())
	strs, consumed, err := parseNameTableBody(c, diag.New())
	require.NoError(t, err)
	assert.Equal(t, int64(b.Len()), consumed)
	assert.Equal(t, []string{"HP", "Stamina"}, strs)
}

func TestParseNameTableBodyBadTrailer(t *testing.T) {
	t.Parallel()

	b := new(buf)
	b.i32(0).i32(0).i32(0).ascii("NOPE")

	c := cursor.New(b.Bytes())
	_, _, err := parseNameTableBody(c, diag.New())
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, BadMagic, perr.Kind)
}

func TestParseRBTable(t *testing.T) {
	t.Parallel()

	b := new(buf)
	b.ascii("RB")
	b.i32(2)
	b.i16(4).i32(1000)
	b.i16(8).i32(2000)

	c := cursor.New(b.Bytes())
	entries, err := parseRBTable(c)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int16(4), entries[0].Size)
	assert.Equal(t, int32(1000), entries[0].Offset)
}
