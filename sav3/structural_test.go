package sav3

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxwxnvermx/witcher3-save-edit/cursor"
	"github.com/pxwxnvermx/witcher3-save-edit/diag"
)

// buf is a tiny little-endian byte-buffer builder, used throughout sav3's
// tests to assemble record bytes by hand.
type buf struct {
	bytes.Buffer
}

func (b *buf) ascii(s string) *buf {
	b.WriteString(s)
	return b
}

func (b *buf) u8(v uint8) *buf {
	b.WriteByte(v)
	return b
}

func (b *buf) i16(v int16) *buf {
	return b.u16(uint16(v))
}

func (b *buf) u16(v uint16) *buf {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.Write(tmp[:])
	return b
}

func (b *buf) i32(v int32) *buf {
	return b.u32(uint32(v))
}

func (b *buf) u32(v uint32) *buf {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:])
	return b
}

func (b *buf) f32(v float32) *buf {
	return b.u32(math.Float32bits(v))
}

func newTestParser(t *testing.T, data []byte, names []string) *parser {
	t.Helper()
	return &parser{
		c:        cursor.New(data),
		strs:     &StringTable{entries: names},
		diag:     diag.New(),
		maxDepth: 512,
	}
}

func TestParseVLPrimitive(t *testing.T) {
	t.Parallel()

	// VL name_idx=1("HP") type_idx=2("Int32") value=42, as described by the
	// VL record shape of §4.3.3.
	b := new(buf)
	b.ascii("VL").i16(1).i16(2).i32(42)
	p := newTestParser(t, b.Bytes(), []string{"HP", "Int32"})

	bucket := newBucket(0, int64(b.Len()))
	node, consumed, err := p.dispatch(bucket)
	require.NoError(t, err)
	assert.Equal(t, int64(10), consumed)
	assert.Equal(t, KindValue, node.Kind)
	assert.Equal(t, "HP", node.Name)
	assert.Equal(t, "Int32", node.TypeName)
	require.NotNil(t, node.Value)
	assert.Equal(t, int64(42), node.Value.Scalar)
	assert.True(t, bucket.exhausted())
}

func TestParsePORPWrappingFloat(t *testing.T) {
	t.Parallel()

	b := new(buf)
	b.ascii("PORP").i16(1).i16(2).i32(4).f32(3.5)
	p := newTestParser(t, b.Bytes(), []string{"speed", "Float"})

	bucket := newBucket(0, int64(b.Len()))
	node, consumed, err := p.dispatch(bucket)
	require.NoError(t, err)
	assert.Equal(t, int64(b.Len()), consumed)
	assert.Equal(t, KindProperty, node.Kind)
	assert.Equal(t, "speed", node.Name)
	assert.Equal(t, "Float", node.TypeName)
	assert.Equal(t, float32(3.5), node.Value.Scalar)
	assert.True(t, bucket.exhausted())
}

func TestParsePORPSizeMismatchIsFatal(t *testing.T) {
	t.Parallel()

	b := new(buf)
	// Declares value_size=8 but only provides 4 bytes of value.
	b.ascii("PORP").i16(1).i16(2).i32(8).f32(1)
	p := newTestParser(t, b.Bytes(), []string{"x", "Float"})

	bucket := newBucket(0, int64(b.Len()))
	_, _, err := p.dispatch(bucket)
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, SizeMismatch, perr.Kind)
}

func TestParseSSNested(t *testing.T) {
	t.Parallel()

	inner := new(buf)
	inner.ascii("VL").i16(1).i16(2).i32(7)

	outer := new(buf)
	outer.ascii("SS").i32(int32(inner.Len()))
	outer.Write(inner.Bytes())

	p := newTestParser(t, outer.Bytes(), []string{"n", "Int32"})
	bucket := newBucket(0, int64(outer.Len()))
	node, consumed, err := p.dispatch(bucket)
	require.NoError(t, err)
	assert.Equal(t, int64(outer.Len()), consumed)
	assert.Equal(t, KindSubStream, node.Kind)
	require.Len(t, node.Children, 1)
	assert.Equal(t, KindValue, node.Children[0].Kind)
	assert.True(t, bucket.exhausted())
}

func TestParseUnknownMagicIsFailSoft(t *testing.T) {
	t.Parallel()

	b := new(buf)
	b.ascii("ZZZZ").u8(1).u8(2).u8(3)
	p := newTestParser(t, b.Bytes(), nil)

	bucket := newBucket(0, int64(b.Len()))
	node, consumed, err := p.dispatch(bucket)
	require.NoError(t, err)
	assert.Equal(t, int64(b.Len()), consumed)
	assert.Equal(t, KindUnknown, node.Kind)
	assert.Equal(t, "ZZZZ", node.RawMagic)
	assert.True(t, bucket.exhausted())
}

func TestParseArrayToken(t *testing.T) {
	t.Parallel()

	b := new(buf)
	b.u32(3).i32(1).i32(2).i32(3)
	p := newTestParser(t, b.Bytes(), nil)

	bucket := newBucket(0, int64(b.Len()))
	tok, err := p.parseToken("array:2,0,Int32", bucket)
	require.NoError(t, err)
	require.Len(t, tok.Elements, 3)
	assert.Equal(t, int64(1), tok.Elements[0].Scalar)
	assert.Equal(t, int64(2), tok.Elements[1].Scalar)
	assert.Equal(t, int64(3), tok.Elements[2].Scalar)
	assert.True(t, bucket.exhausted())
}

func TestParseUnknownType(t *testing.T) {
	t.Parallel()

	b := new(buf)
	b.ascii("whatever")
	p := newTestParser(t, b.Bytes(), nil)

	bucket := newBucket(0, int64(b.Len()))
	tok, err := p.parseToken("WeirdType", bucket)
	require.NoError(t, err)
	assert.True(t, tok.Unknown)
	assert.Equal(t, []byte("whatever"), tok.Scalar)
	assert.Contains(t, p.diag.UnknownTypes(), "WeirdType")
	assert.True(t, bucket.exhausted())
}

func TestParseHandleAndSoftPassThrough(t *testing.T) {
	t.Parallel()

	for _, prefix := range []string{"handle:Int32", "soft:Int32", "Int32"} {
		prefix := prefix
		t.Run(prefix, func(t *testing.T) {
			t.Parallel()
			b := new(buf)
			b.i32(99)
			p := newTestParser(t, b.Bytes(), nil)
			bucket := newBucket(0, int64(b.Len()))
			tok, err := p.parseToken(prefix, bucket)
			require.NoError(t, err)
			assert.Equal(t, int64(99), tok.Scalar)
		})
	}
}
