// Package sav3 implements the variable decoder: locating the string table,
// the RB ancillary table, and the variable offset table inside a decoded
// container image, then walking that offset table to materialise the
// game's serialised object graph (spec §4.3).
package sav3

import (
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/pxwxnvermx/witcher3-save-edit/cursor"
	"github.com/pxwxnvermx/witcher3-save-edit/diag"
)

const (
	containerSectionMagic = "SAV3"
	footerMagic           = "SE"
	nameTableSectionTag   = "NM"
)

type options struct {
	logger     *zap.Logger
	checksums  bool
	maxDepth   int
	onProgress func(done, total int)
}

func (o *options) setDefault() {
	*o = options{
		logger:   zap.NewNop(),
		maxDepth: 512,
	}
}

// Option configures Decode.
type Option func(*options)

// WithLogger attaches structured logging to the decode pass.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithChecksums enables xxhash-based deduplication of repeated unknown
// payloads in the resulting Diagnostics (see diag.WithChecksums).
func WithChecksums(enabled bool) Option {
	return func(o *options) { o.checksums = enabled }
}

// WithDepthLimit bounds the variable decoder's recursion depth (spec §9).
func WithDepthLimit(n int) Option {
	return func(o *options) { o.maxDepth = n }
}

// WithProgress registers a callback invoked as variable-table entries are
// consumed, for a caller driving a progress bar from another goroutine.
func WithProgress(fn func(done, total int)) Option {
	return func(o *options) { o.onProgress = fn }
}

// Result is the fully decoded tree plus the supporting tables and
// diagnostics produced by one Decode call.
type Result struct {
	Names *StringTable
	// Groups holds the top-level sibling groups reconstructed by §4.3.5:
	// the variable offset table is a flat list, but a head entry plus the
	// following entries whose stored sizes cover the part of the head's
	// declared size that its own parse did not consume was originally one
	// nested object, so each such run is emitted here as one slice (the
	// "arrays-of-arrays" shape spec §6 calls for).
	Groups      [][]*Node
	Offsets     *OffsetIndex
	Diagnostics *diag.Tracker
}

// Decoder wraps a single-use Decode call. Matching spec §5's concurrency
// model, a Decoder instance is exclusively owned by one parse; Decode may
// only be called once, and the closed flag mirrors the teacher's
// readerImpl.closed guard against reuse after the image has been consumed.
type Decoder struct {
	image      []byte
	headerSize int64
	opts       options
	closed     atomic.Bool
}

// NewDecoder wraps an already-assembled container image (container.Image.Bytes)
// together with the header size the container reported.
func NewDecoder(image []byte, headerSize int64, opts ...Option) *Decoder {
	d := &Decoder{image: image, headerSize: headerSize}
	d.opts.setDefault()
	for _, o := range opts {
		o(&d.opts)
	}
	return d
}

// Decode walks the image and returns the decoded tree. It may be called
// exactly once per Decoder.
func (d *Decoder) Decode() (*Result, error) {
	if !d.closed.CAS(false, true) {
		return nil, fmt.Errorf("sav3: Decode already called on this Decoder")
	}

	c := cursor.New(d.image)
	tracker := diag.New(
		diag.WithLogger(d.opts.logger),
		diag.WithChecksums(d.opts.checksums),
		diag.WithProgress(d.opts.onProgress),
	)

	if _, err := c.Seek(d.headerSize, cursor.Start); err != nil {
		return nil, fail(ShortRead, d.headerSize, "seeking to SAV3 section: %w", err)
	}

	got, err := c.ReadAscii(len(containerSectionMagic))
	if err != nil {
		return nil, fail(ShortRead, c.Tell(), "reading SAV3 magic: %w", err)
	}
	if got != containerSectionMagic {
		return nil, fail(BadMagic, c.Tell()-int64(len(containerSectionMagic)), "SAV3 magic: got %q, want %q", got, containerSectionMagic)
	}
	// Three type codes follow: retained but not interpreted (spec §4.3.1.1).
	if _, err := c.ReadBytes(12); err != nil {
		return nil, fail(ShortRead, c.Tell(), "reading SAV3 type codes: %w", err)
	}

	if _, err := c.Seek(-6, cursor.End); err != nil {
		return nil, fail(ShortRead, c.Tell(), "seeking to variable table footer: %w", err)
	}
	variableTableOffset, err := c.ReadInt(4)
	if err != nil {
		return nil, fail(ShortRead, c.Tell(), "reading variable_table_offset: %w", err)
	}
	seMagic, err := c.ReadAscii(2)
	if err != nil {
		return nil, fail(ShortRead, c.Tell(), "reading SE magic: %w", err)
	}
	if seMagic != footerMagic {
		return nil, fail(BadMagic, c.Tell()-2, "footer magic: got %q, want %q", seMagic, footerMagic)
	}

	stringTableFooterOffset := variableTableOffset - 10

	if _, err := c.Seek(stringTableFooterOffset, cursor.Start); err != nil {
		return nil, fail(ShortRead, stringTableFooterOffset, "seeking to string table footer: %w", err)
	}
	nmSectionOffset, err := c.ReadInt(4)
	if err != nil {
		return nil, fail(ShortRead, c.Tell(), "reading nm_section_offset: %w", err)
	}
	rbSectionOffset, err := c.ReadInt(4)
	if err != nil {
		return nil, fail(ShortRead, c.Tell(), "reading rb_section_offset: %w", err)
	}

	if _, err := c.Seek(nmSectionOffset, cursor.Start); err != nil {
		return nil, fail(ShortRead, nmSectionOffset, "seeking to NM section: %w", err)
	}
	nmMagic, err := c.ReadAscii(2)
	if err != nil {
		return nil, fail(ShortRead, c.Tell(), "reading NM magic: %w", err)
	}
	if nmMagic != nameTableSectionTag {
		return nil, fail(BadMagic, c.Tell()-2, "NM magic: got %q, want %q", nmMagic, nameTableSectionTag)
	}
	stringTableOffset := c.Tell()

	if _, err := c.Seek(rbSectionOffset, cursor.Start); err != nil {
		return nil, fail(ShortRead, rbSectionOffset, "seeking to RB section: %w", err)
	}
	if _, err := parseRBTable(c); err != nil {
		return nil, err
	}

	if _, err := c.Seek(stringTableOffset, cursor.Start); err != nil {
		return nil, fail(ShortRead, stringTableOffset, "seeking to string table: %w", err)
	}
	manuMagic, err := c.ReadAscii(4)
	if err != nil {
		return nil, fail(ShortRead, c.Tell(), "reading MANU magic: %w", err)
	}
	if manuMagic != string(KindNameTable) {
		return nil, fail(BadMagic, c.Tell()-4, "MANU magic: got %q, want %q", manuMagic, KindNameTable)
	}
	names, _, err := parseNameTableBody(c, tracker)
	if err != nil {
		return nil, err
	}
	strs := &StringTable{entries: names}

	if _, err := c.Seek(variableTableOffset, cursor.Start); err != nil {
		return nil, fail(ShortRead, variableTableOffset, "seeking to variable table: %w", err)
	}
	entries, err := parseOffsetTable(c)
	if err != nil {
		return nil, err
	}

	p := &parser{c: c, strs: strs, diag: tracker, maxDepth: d.opts.maxDepth}
	groups, err := walkOffsetTable(p, entries)
	if err != nil {
		return nil, err
	}

	return &Result{
		Names:       strs,
		Groups:      groups,
		Offsets:     newOffsetIndex(entries),
		Diagnostics: tracker,
	}, nil
}

// walkOffsetTable drives the sorted variable offset table (spec §4.3.5):
// for each entry it computes the effective parse budget (the gap to the
// next entry's offset, or the stored size for the tail two entries), skips
// entries already absorbed by a prior SS/BLCK, and regroups the flat list
// back into the sibling structure the format originally had before it was
// flattened into a table.
func walkOffsetTable(p *parser, entries []offsetEntry) ([][]*Node, error) {
	type parsed struct {
		entry    offsetEntry
		node     *Node
		consumed int64
	}

	results := make([]parsed, 0, len(entries))

	currentPos := int64(-1)
	for i, e := range entries {
		if i > 0 && e.Offset < currentPos {
			// Already covered by the previous entry's BLCK/SS (spec §4.3.5).
			continue
		}

		budget := e.Size
		if i < len(entries)-2 {
			budget = entries[i+1].Offset - e.Offset
		}

		if _, err := p.c.Seek(e.Offset, cursor.Start); err != nil {
			return nil, fail(ShortRead, e.Offset, "seeking to variable table entry[%d]: %w", i, err)
		}

		b := newBucket(e.Offset, budget)
		node, consumed, err := p.dispatch(b)
		if err != nil {
			return nil, err
		}
		p.diag.AddBytesConsumed(consumed)
		p.diag.Progress(i+1, len(entries))

		results = append(results, parsed{entry: e, node: node, consumed: consumed})
		currentPos = e.Offset + consumed
	}

	// Group post-processing: start from the head's declared size minus the
	// bytes its parse consumed, and keep appending following entries,
	// subtracting each one's stored size, while that remainder is positive.
	var groups [][]*Node
	i := 0
	for i < len(results) {
		head := results[i]
		remaining := head.entry.Size - head.consumed
		group := []*Node{head.node}
		j := i + 1
		for remaining > 0 && j < len(results) {
			group = append(group, results[j].node)
			remaining -= results[j].entry.Size
			j++
		}
		groups = append(groups, group)
		i = j
	}

	return groups, nil
}
