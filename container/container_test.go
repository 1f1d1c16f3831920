package container

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putU32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

// buildMinimal builds the scenario from spec.md §8 scenario 1: a single
// chunk whose "compressed" bytes are a sentinel the test decompressor turns
// into `uncompressedSize` zero bytes.
func buildMinimal(t *testing.T, headerSize, compSize, uncompSize int32) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	buf.WriteString(magic)
	putU32(buf, 1) // chunk_count
	putU32(buf, headerSize)
	putU32(buf, compSize)
	putU32(buf, uncompSize)
	putU32(buf, headerSize+compSize) // eof_offset

	for int32(buf.Len()) < headerSize {
		buf.WriteByte(0xAA)
	}

	buf.Write(bytes.Repeat([]byte{0x01}, int(compSize)))
	return buf.Bytes()
}

func TestLoadMinimalContainer(t *testing.T) {
	t.Parallel()

	const headerSize, compSize, uncompSize = 32, 4, 16

	raw := buildMinimal(t, headerSize, compSize, uncompSize)

	fakeDecompress := func(src []byte, expectedLen int) ([]byte, error) {
		return make([]byte, expectedLen), nil
	}

	img, err := Load(raw, WithDecompressor(fakeDecompress))
	require.NoError(t, err)

	assert.Equal(t, int32(headerSize), img.HeaderSize)
	assert.Len(t, img.Bytes, headerSize+uncompSize)
	assert.Equal(t, raw[:headerSize], img.Bytes[:headerSize])
	assert.Equal(t, make([]byte, uncompSize), img.Bytes[headerSize:])
}

func TestLoadSkipsPassthroughChunk(t *testing.T) {
	t.Parallel()

	// compressed_size == uncompressed_size: the strict "<" predicate means
	// this chunk is skipped, not treated as a raw passthrough (§8 boundary case).
	const headerSize = 16
	buf := &bytes.Buffer{}
	buf.WriteString(magic)
	putU32(buf, 1)
	putU32(buf, headerSize)
	putU32(buf, 8) // compressed_size
	putU32(buf, 8) // uncompressed_size == compressed_size
	putU32(buf, headerSize+8)
	for int32(buf.Len()) < headerSize {
		buf.WriteByte(0)
	}
	buf.Write(bytes.Repeat([]byte{0xFF}, 8))

	called := false
	img, err := Load(buf.Bytes(), WithDecompressor(func(src []byte, n int) ([]byte, error) {
		called = true
		return make([]byte, n), nil
	}))
	require.NoError(t, err)
	assert.False(t, called, "decompressor must not be invoked for a skipped chunk")
	assert.Len(t, img.Bytes, headerSize)
	assert.True(t, img.Chunks[0].Skipped)
}

func TestLoadBadMagic(t *testing.T) {
	t.Parallel()

	_, err := Load([]byte("NOTRIGHT"))
	assert.Error(t, err)
}

func TestLoadEOFOffsetMismatchIsFatal(t *testing.T) {
	t.Parallel()

	const headerSize = 8
	buf := &bytes.Buffer{}
	buf.WriteString(magic)
	putU32(buf, 1)
	putU32(buf, headerSize)
	putU32(buf, 4)
	putU32(buf, 4)
	putU32(buf, 9999) // wrong eof_offset
	for int32(buf.Len()) < headerSize {
		buf.WriteByte(0)
	}
	buf.Write([]byte{1, 2, 3, 4})

	_, err := Load(buf.Bytes(), WithDecompressor(func(src []byte, n int) ([]byte, error) {
		return make([]byte, n), nil
	}))
	assert.Error(t, err)
}
