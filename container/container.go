// Package container assembles the decompressed image of a save file: it
// validates the outer "SNFHFZLC" header, walks the chunk table, and
// concatenates the literal header bytes with each chunk's decompressed
// payload so that absolute offsets stored elsewhere in the file apply
// directly against the result.
package container

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pxwxnvermx/witcher3-save-edit/cursor"
)

const magic = "SNFHFZLC"

// Chunk describes one entry of the container's chunk table.
type Chunk struct {
	CompressedSize   int32
	UncompressedSize int32
	EOFOffset        int32
	// Skipped is true when the chunk does not satisfy
	// 0 < CompressedSize < UncompressedSize and was therefore not
	// decompressed into the image (a metadata sentinel, per §4.2/§8).
	Skipped bool
}

func (c Chunk) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt32("compressed_size", c.CompressedSize)
	enc.AddInt32("uncompressed_size", c.UncompressedSize)
	enc.AddInt32("eof_offset", c.EOFOffset)
	enc.AddBool("skipped", c.Skipped)
	return nil
}

// Image is the result of assembling a container: the decompressed byte
// buffer and the size of the literal header prefix that precedes the first
// chunk's payload within it.
type Image struct {
	Bytes      []byte
	HeaderSize int32
	Chunks     []Chunk
}

// Decompressor matches the external LZ4 collaborator's contract from §1:
// decompress src, which is known to inflate to exactly expectedLen bytes.
type Decompressor func(src []byte, expectedLen int) ([]byte, error)

// DecompressBlock is the default Decompressor, backed by pierrec/lz4's raw
// block API.
func DecompressBlock(src []byte, expectedLen int) ([]byte, error) {
	dst := make([]byte, expectedLen)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 block decode: %w", err)
	}
	if n != expectedLen {
		return nil, fmt.Errorf("lz4 block decode: got %d bytes, expected %d", n, expectedLen)
	}
	return dst, nil
}

type options struct {
	logger       *zap.Logger
	decompressor Decompressor
}

func (o *options) setDefault() {
	*o = options{
		logger:       zap.NewNop(),
		decompressor: DecompressBlock,
	}
}

// Option configures Load.
type Option func(*options)

// WithLogger attaches structured logging to the assembly pass.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDecompressor overrides the LZ4 block decompressor, e.g. for tests that
// want to exercise the chunk-table bookkeeping without real LZ4 data.
func WithDecompressor(d Decompressor) Option {
	return func(o *options) { o.decompressor = d }
}

// Load reads the full container from raw (the entire save file, already in
// memory) and returns the assembled image. Corruption anywhere in the
// header or chunk table is fatal, per §4.4.
func Load(raw []byte, opts ...Option) (*Image, error) {
	var o options
	o.setDefault()
	for _, opt := range opts {
		opt(&o)
	}

	c := cursor.New(raw)

	got, err := c.ReadAscii(len(magic))
	if err != nil {
		return nil, fmt.Errorf("reading container magic: %w", err)
	}
	if got != magic {
		return nil, fmt.Errorf("container: bad magic %q, want %q", got, magic)
	}

	chunkCount, err := c.ReadInt(4)
	if err != nil {
		return nil, fmt.Errorf("reading chunk_count: %w", err)
	}
	headerSize, err := c.ReadInt(4)
	if err != nil {
		return nil, fmt.Errorf("reading header_size: %w", err)
	}
	if headerSize < 0 || headerSize > int64(len(raw)) {
		return nil, fmt.Errorf("container: header_size %d out of range (file is %d bytes)", headerSize, len(raw))
	}

	chunks := make([]Chunk, 0, chunkCount)
	for i := int64(0); i < chunkCount; i++ {
		compSize, err := c.ReadInt(4)
		if err != nil {
			return nil, fmt.Errorf("reading chunk[%d].compressed_size: %w", i, err)
		}
		uncompSize, err := c.ReadInt(4)
		if err != nil {
			return nil, fmt.Errorf("reading chunk[%d].uncompressed_size: %w", i, err)
		}
		eofOffset, err := c.ReadInt(4)
		if err != nil {
			return nil, fmt.Errorf("reading chunk[%d].eof_offset: %w", i, err)
		}
		chunks = append(chunks, Chunk{
			CompressedSize:   int32(compSize),
			UncompressedSize: int32(uncompSize),
			EOFOffset:        int32(eofOffset),
			Skipped:          !(compSize > 0 && compSize < uncompSize),
		})
	}

	o.logger.Debug("parsed chunk table", zap.Int64("chunk_count", chunkCount), zap.Int64("header_size", headerSize))

	if _, err := c.Seek(0, cursor.Start); err != nil {
		return nil, fmt.Errorf("rewinding to copy header: %w", err)
	}
	header, err := c.ReadBytes(int(headerSize))
	if err != nil {
		return nil, fmt.Errorf("reading literal header: %w", err)
	}

	image := make([]byte, 0, int(headerSize)+estimateDecompressedSize(chunks))
	image = append(image, header...)

	if _, err := c.Seek(headerSize, cursor.Start); err != nil {
		return nil, fmt.Errorf("seeking to first chunk: %w", err)
	}

	for i, chunk := range chunks {
		body, err := c.ReadBytes(int(chunk.CompressedSize))
		if err != nil {
			return nil, fmt.Errorf("reading chunk[%d] body (%d bytes): %w", i, chunk.CompressedSize, err)
		}

		if chunk.EOFOffset != 0 && int64(chunk.EOFOffset) != c.Tell() {
			return nil, fmt.Errorf("container: chunk[%d] eof_offset mismatch: expected %d, at %d",
				i, chunk.EOFOffset, c.Tell())
		}

		if chunk.Skipped {
			o.logger.Debug("skipping chunk (not 0 < compressed < uncompressed)", zap.Int("index", i))
			continue
		}

		decoded, err := o.decompressor(body, int(chunk.UncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("decompressing chunk[%d]: %w", i, err)
		}
		if len(decoded) != int(chunk.UncompressedSize) {
			return nil, fmt.Errorf("container: chunk[%d] decompressed to %d bytes, expected %d",
				i, len(decoded), chunk.UncompressedSize)
		}
		image = append(image, decoded...)
	}

	return &Image{
		Bytes:      image,
		HeaderSize: int32(headerSize),
		Chunks:     chunks,
	}, nil
}

func estimateDecompressedSize(chunks []Chunk) int {
	total := 0
	for _, c := range chunks {
		if !c.Skipped {
			total += int(c.UncompressedSize)
		}
	}
	return total
}
