package sav3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestImage assembles a minimal SAV3 image by hand, laying out each
// section at a fixed, pre-computed offset: the container's SAV3 header, the
// RB table, the NM string table, the variable offset table, a single VL
// record, and the trailing variable_table_offset/"SE" footer (spec §4.3.1).
func buildTestImage(t *testing.T) []byte {
	t.Helper()

	img := new(buf)

	// [0:16) SAV3 section header: magic + 12 bytes of retained type codes.
	img.ascii("SAV3")
	for i := 0; i < 12; i++ {
		img.u8(0)
	}
	require.Equal(t, int64(16), int64(img.Len()))

	// [16:22) RB table: magic + zero entries.
	img.ascii("RB")
	img.i32(0)
	require.Equal(t, int64(22), int64(img.Len()))

	// [22:24) NM section tag.
	img.ascii("NM")
	require.Equal(t, int64(24), int64(img.Len()))

	// [24:28) MANU magic, consumed before the string table body itself.
	img.ascii("MANU")
	require.Equal(t, int64(28), int64(img.Len()))

	// [28:53) string table body: ["HP", "Int32"].
	img.i32(2) // string_count
	img.i32(0) // leading discard
	img.u8(2).ascii("HP")
	img.u8(5).ascii("Int32")
	img.i32(0) // trailing discard
	img.ascii("ENOD")
	require.Equal(t, int64(53), int64(img.Len()))

	// [53:61) string table footer: nm_section_offset, rb_section_offset.
	img.i32(22)
	img.i32(16)
	require.Equal(t, int64(61), int64(img.Len()))

	// [61:63) 2 bytes of padding before the variable table.
	img.u8(0).u8(0)
	require.Equal(t, int64(63), int64(img.Len()))

	// [63:75) variable offset table: one entry, (offset=75, size=10).
	img.i32(1)
	img.i32(75)
	img.i32(10)
	require.Equal(t, int64(75), int64(img.Len()))

	// [75:85) one VL record: ("HP", "Int32", 42).
	img.ascii("VL").i16(1).i16(2).i32(42)
	require.Equal(t, int64(85), int64(img.Len()))

	// [85:91) footer: variable_table_offset=63, "SE".
	img.i32(63)
	img.ascii("SE")
	require.Equal(t, int64(91), int64(img.Len()))

	return img.Bytes()
}

func TestDecodeFullImage(t *testing.T) {
	t.Parallel()

	d := NewDecoder(buildTestImage(t), 0)
	result, err := d.Decode()
	require.NoError(t, err)

	require.Equal(t, 2, result.Names.Len())
	require.Equal(t, 1, result.Offsets.NumEntries())
	require.Len(t, result.Groups, 1)
	require.Len(t, result.Groups[0], 1)

	node := result.Groups[0][0]
	assert.Equal(t, KindValue, node.Kind)
	assert.Equal(t, "HP", node.Name)
	assert.Equal(t, "Int32", node.TypeName)
	assert.Equal(t, int64(42), node.Value.Scalar)
	assert.NoError(t, result.Diagnostics.Issues())
}

func TestDecodeCalledTwiceErrors(t *testing.T) {
	t.Parallel()

	d := NewDecoder(buildTestImage(t), 0)
	_, err := d.Decode()
	require.NoError(t, err)

	_, err = d.Decode()
	require.Error(t, err)
}

func TestDecodeBadSAV3Magic(t *testing.T) {
	t.Parallel()

	img := buildTestImage(t)
	img[0] = 'X'

	d := NewDecoder(img, 0)
	_, err := d.Decode()
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, BadMagic, perr.Kind)
}
