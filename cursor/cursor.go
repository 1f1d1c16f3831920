// Package cursor implements a random-access byte reader over an in-memory
// image, as used by the container and variable decoders: sequential and
// absolute reads, little-endian integer decoding, and a peek that never
// advances the position.
package cursor

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Whence mirrors io.Seeker's origin constants so callers don't need to
// import "io" just to seek a Cursor.
const (
	Start   = io.SeekStart
	Current = io.SeekCurrent
	End     = io.SeekEnd
)

// ErrShortRead is wrapped into every underflow error a Cursor produces.
var ErrShortRead = fmt.Errorf("cursor: short read")

// Cursor is a random-access reader over a fixed byte slice. It never
// allocates beyond what a read itself returns, and it is not safe for
// concurrent use by multiple goroutines.
type Cursor struct {
	buf []byte
	pos int64
}

// New wraps buf. The Cursor does not take ownership of buf's backing array
// in a hostile sense, but callers should not mutate buf while the Cursor is
// in use.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Len returns the total number of bytes in the underlying image.
func (c *Cursor) Len() int64 {
	return int64(len(c.buf))
}

// Tell returns the current absolute position.
func (c *Cursor) Tell() int64 {
	return c.pos
}

// Seek repositions the cursor relative to whence (Start, Current, End).
func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case Start:
		base = 0
	case Current:
		base = c.pos
	case End:
		base = int64(len(c.buf))
	default:
		return c.pos, fmt.Errorf("cursor: unknown whence %d", whence)
	}

	next := base + offset
	if next < 0 || next > int64(len(c.buf)) {
		return c.pos, fmt.Errorf("cursor: seek out of range: %d (base %d + offset %d), len %d",
			next, base, offset, len(c.buf))
	}
	c.pos = next
	return c.pos, nil
}

// ReadBytes returns the next n bytes and advances the position by n. The
// returned slice aliases the underlying image; callers must copy it if they
// need to retain it past a subsequent mutation of the source buffer.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("cursor: negative read length %d", n)
	}
	if c.pos+int64(n) > int64(len(c.buf)) {
		return nil, fmt.Errorf("%w: need %d bytes at %d, have %d", ErrShortRead, n, c.pos, len(c.buf)-int(c.pos))
	}
	b := c.buf[c.pos : c.pos+int64(n)]
	c.pos += int64(n)
	return b, nil
}

// PeekBytes returns the next n bytes without advancing the position.
func (c *Cursor) PeekBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("cursor: negative peek length %d", n)
	}
	if c.pos+int64(n) > int64(len(c.buf)) {
		return nil, fmt.Errorf("%w: need %d bytes at %d, have %d", ErrShortRead, n, c.pos, len(c.buf)-int(c.pos))
	}
	return c.buf[c.pos : c.pos+int64(n)], nil
}

// ReadUint reads an n-byte (n in {1,2,4,8}) little-endian unsigned integer.
func (c *Cursor) ReadUint(n int) (uint64, error) {
	b, err := c.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return decodeUint(b)
}

// ReadInt reads an n-byte (n in {1,2,4,8}) little-endian signed integer,
// sign-extended to int64.
func (c *Cursor) ReadInt(n int) (int64, error) {
	u, err := c.ReadUint(n)
	if err != nil {
		return 0, err
	}
	return signExtend(u, n), nil
}

func decodeUint(b []byte) (uint64, error) {
	switch len(b) {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 8:
		return binary.LittleEndian.Uint64(b), nil
	default:
		return 0, fmt.Errorf("cursor: unsupported integer width %d", len(b))
	}
}

func signExtend(u uint64, n int) int64 {
	switch n {
	case 1:
		return int64(int8(u))
	case 2:
		return int64(int16(u))
	case 4:
		return int64(int32(u))
	case 8:
		return int64(u)
	default:
		return int64(u)
	}
}

// ReadFloat32 reads a 4-byte IEEE-754 little-endian float.
func (c *Cursor) ReadFloat32() (float32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return float32FromBits(binary.LittleEndian.Uint32(b)), nil
}

// ReadFloat64 reads an 8-byte IEEE-754 little-endian double.
func (c *Cursor) ReadFloat64() (float64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return float64FromBits(binary.LittleEndian.Uint64(b)), nil
}

// ReadAscii decodes n bytes as ASCII text. Bytes outside the printable ASCII
// range are not an error: it's a lossy, best-effort decode, used for magic
// checks where the alternative of failing outright would turn "no magic
// here" into a hard error.
func (c *Cursor) ReadAscii(n int) (string, error) {
	b, err := c.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return lossyAscii(b), nil
}

// PeekAscii is ReadAscii without advancing the position. Safe to call even
// when the next n bytes aren't valid ASCII; the caller compares the result
// against an expected magic and treats a mismatch as "try the next dispatch
// branch", not as an error.
func (c *Cursor) PeekAscii(n int) (string, error) {
	b, err := c.PeekBytes(n)
	if err != nil {
		return "", err
	}
	return lossyAscii(b), nil
}

func lossyAscii(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			out[i] = '.'
		} else {
			out[i] = c
		}
	}
	return string(out)
}

// LossyString decodes b as best-effort text, substituting the UTF-8
// replacement rune for invalid sequences rather than failing. Used for
// string-table entries, which the format does not guarantee are valid
// UTF-8.
func LossyString(b []byte) string {
	return lossyUTF8(b)
}
