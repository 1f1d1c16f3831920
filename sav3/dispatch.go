package sav3

import (
	"github.com/pxwxnvermx/witcher3-save-edit/cursor"
	"github.com/pxwxnvermx/witcher3-save-edit/diag"
)

// twoByteTags and fourByteTags together form the unified dispatch table
// keyed by tag width, per spec §4.3.2's footnote: ROTS is listed among the
// "short" magics in the prose table but is actually a 4-byte ASCII tag, so
// it lives in fourByteTags and is never matched by the 2-byte peek.
var twoByteTags = map[string]bool{
	"VL": true, "BS": true, "OP": true, "SS": true,
}

var fourByteTags = map[string]bool{
	"SXAP": true, "BLCK": true, "AVAL": true, "PORP": true, "MANU": true, "SBDF": true, "ROTS": true,
}

// parser carries the shared, read-only state of one decode (the string
// table) plus the mutable diagnostics/recursion-depth state threaded
// through every structural and token parser.
type parser struct {
	c     *cursor.Cursor
	strs  *StringTable
	diag  *diag.Tracker
	depth int
	// maxDepth bounds recursion, per spec §9's "bound recursion depth by
	// the image size... a depth guard is nonetheless recommended" — every
	// level consumes at least 2 bytes of magic, so image size already
	// bounds it, but a guard catches pathological inputs faster.
	maxDepth int
}

func (p *parser) resolve(idx int64, offset int64) string {
	return p.strs.Resolve(idx, offset, p.diag)
}

// dispatch reads one record's magic out of bucket and parses its payload.
// It returns the decoded node and the number of bytes this single top-level
// call consumed (its own magic plus its full payload), which the offset
// table driver in decoder.go needs for the §4.3.5 grouping algorithm.
func (p *parser) dispatch(bucket *bucket) (*Node, int64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxDepth {
		return nil, 0, fail(NegativeBucket, p.c.Tell(), "recursion depth exceeded %d", p.maxDepth)
	}

	start := p.c.Tell()

	peek2, err := p.c.PeekAscii(2)
	if err != nil {
		return nil, 0, fail(ShortRead, start, "peeking record magic: %w", err)
	}

	if twoByteTags[peek2] {
		if _, err := p.c.ReadAscii(2); err != nil {
			return nil, 0, fail(ShortRead, start, "consuming magic %q: %w", peek2, err)
		}
		if err := bucket.debit(2, start); err != nil {
			return nil, 0, err
		}
		node, err := p.parseShort(peek2, bucket)
		if err != nil {
			return nil, 0, err
		}
		return node, p.c.Tell() - start, nil
	}

	peek4, err4 := p.c.PeekAscii(4)
	if err4 == nil && fourByteTags[peek4] {
		if _, err := p.c.ReadAscii(4); err != nil {
			return nil, 0, fail(ShortRead, start, "consuming magic %q: %w", peek4, err)
		}
		if err := bucket.debit(4, start); err != nil {
			return nil, 0, err
		}
		node, err := p.parseLong(peek4, bucket)
		if err != nil {
			return nil, 0, err
		}
		return node, p.c.Tell() - start, nil
	}

	// Unknown magic: fail-soft. Drain whatever remains of the bucket as
	// opaque bytes and record the finding (spec §4.3.2/§4.4).
	tag := peek2
	if err4 == nil {
		tag = peek4
	}
	n := int(bucket.remaining)
	raw, err := p.c.ReadBytes(n)
	if err != nil {
		return nil, 0, fail(ShortRead, start, "draining unknown-magic bucket (%d bytes): %w", n, err)
	}
	if err := bucket.debit(int64(n), start); err != nil {
		return nil, 0, err
	}
	p.diag.UnknownMagic(start, tag, raw)
	return &Node{Kind: KindUnknown, RawMagic: tag, RawBytes: raw}, p.c.Tell() - start, nil
}

// parseShort dispatches the four 2-byte-magic record kinds.
func (p *parser) parseShort(tag string, bucket *bucket) (*Node, error) {
	switch tag {
	case "VL":
		return p.parseVL(bucket)
	case "BS":
		return p.parseBS(bucket)
	case "OP":
		return p.parseOP(bucket)
	case "SS":
		return p.parseSS(bucket)
	default:
		panic("unreachable: tag not in twoByteTags")
	}
}

// parseLong dispatches the 4-byte-magic record kinds.
func (p *parser) parseLong(tag string, bucket *bucket) (*Node, error) {
	switch tag {
	case "SXAP":
		return p.parseSXAP(bucket)
	case "BLCK":
		return p.parseBLCK(bucket)
	case "AVAL":
		return p.parseAVAL(bucket)
	case "PORP":
		return p.parsePORP(bucket)
	case "MANU":
		return p.parseMANURecord(bucket)
	case "SBDF":
		return p.parseSBDF(bucket)
	case "ROTS":
		return p.parseROTS(bucket)
	default:
		panic("unreachable: tag not in fourByteTags")
	}
}

// parseChildren parses records from bucket until it is exhausted, used by
// SS and BLCK (spec §4.3.3).
func (p *parser) parseChildren(bucket *bucket) ([]*Node, error) {
	var children []*Node
	for !bucket.exhausted() {
		node, _, err := p.dispatch(bucket)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}
	return children, nil
}
