package sav3json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxwxnvermx/witcher3-save-edit/diag"
	"github.com/pxwxnvermx/witcher3-save-edit/sav3"
)

func TestProjectValueNode(t *testing.T) {
	t.Parallel()

	result := &sav3.Result{
		Names: namesForTest(t, "HP", "Int32"),
		Groups: [][]*sav3.Node{
			{
				{
					Kind:     sav3.KindValue,
					Name:     "HP",
					TypeName: "Int32",
					Value:    &sav3.Token{TypeName: "Int32", Scalar: int64(42)},
				},
			},
		},
		Diagnostics: diag.New(),
	}

	doc, err := Project(result)
	require.NoError(t, err)
	assert.Equal(t, []string{"HP", "Int32"}, doc.Names)
	require.Len(t, doc.Groups, 1)
	require.Len(t, doc.Groups[0], 1)

	m, ok := doc.Groups[0][0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "VL", m["kind"])
	assert.Equal(t, "HP", m["name"])
	assert.Equal(t, int64(42), m["value"])
}

func TestProjectUnknownTokenIsOpaque(t *testing.T) {
	t.Parallel()

	tok := &sav3.Token{TypeName: "WeirdType", Scalar: []byte{0xde, 0xad}, Unknown: true}
	v, err := token(tok)
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "dead", m["opaque"])
	assert.Equal(t, "WeirdType", m["unknown_type"])
}

func namesForTest(t *testing.T, entries ...string) *sav3.StringTable {
	t.Helper()
	return sav3.NewStringTable(entries)
}
