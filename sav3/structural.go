package sav3

import "github.com/pxwxnvermx/witcher3-save-edit/cursor"

// This file implements the per-record parsers of spec §4.3.3. Every parser
// here is called immediately after its magic bytes have already been
// consumed and debited from bucket by dispatch; each parser is responsible
// for debiting bucket for everything else it reads.

func (p *parser) parseVL(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	nameIdx, err := p.readAndDebit16(bucket, start)
	if err != nil {
		return nil, err
	}
	typeIdx, err := p.readAndDebit16(bucket, start)
	if err != nil {
		return nil, err
	}

	name := p.resolve(nameIdx, start)
	typeName := p.resolve(typeIdx, start)

	tok, err := p.parseToken(typeName, bucket)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindValue, Name: name, TypeName: typeName, Value: tok}, nil
}

func (p *parser) parseBS(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	nameIdx, err := p.readAndDebit16(bucket, start)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindScopeBegin, Name: p.resolve(nameIdx, start)}, nil
}

func (p *parser) parseOP(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	nameIdx, err := p.readAndDebitU16(bucket, start)
	if err != nil {
		return nil, err
	}
	typeIdx, err := p.readAndDebitU16(bucket, start)
	if err != nil {
		return nil, err
	}

	name := p.resolve(int64(nameIdx), start)
	typeName := p.resolve(int64(typeIdx), start)

	tok, err := p.parseToken(typeName, bucket)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindOption, Name: name, TypeName: typeName, Value: tok}, nil
}

func (p *parser) parseSS(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	innerSize, err := p.c.ReadInt(4)
	if err != nil {
		return nil, fail(ShortRead, start, "SS inner_size: %w", err)
	}
	if err := bucket.debit(4, start); err != nil {
		return nil, err
	}
	if bucket.remaining != innerSize {
		return nil, fail(SizeMismatch, start, "SS inner_size %d does not match enclosing bucket %d", innerSize, bucket.remaining)
	}

	inner := newBucket(p.c.Tell(), innerSize)
	children, err := p.parseChildren(inner)
	if err != nil {
		return nil, err
	}
	if err := bucket.debit(innerSize, start); err != nil {
		return nil, err
	}
	return &Node{Kind: KindSubStream, InnerSize: innerSize, Children: children}, nil
}

func (p *parser) parseSXAP(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	var codes [3]int32
	for i := range codes {
		v, err := p.c.ReadInt(4)
		if err != nil {
			return nil, fail(ShortRead, start, "SXAP code[%d]: %w", i, err)
		}
		codes[i] = int32(v)
	}
	if err := bucket.debit(12, start); err != nil {
		return nil, err
	}
	return &Node{Kind: KindStreamMark, StreamMarkCodes: codes}, nil
}

func (p *parser) parseBLCK(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	nameIdx, err := p.c.ReadUint(2)
	if err != nil {
		return nil, fail(ShortRead, start, "BLCK name_idx: %w", err)
	}
	blckSize, err := p.c.ReadUint(2)
	if err != nil {
		return nil, fail(ShortRead, start, "BLCK blck_size: %w", err)
	}
	aux, err := p.c.ReadUint(2)
	if err != nil {
		return nil, fail(ShortRead, start, "BLCK aux: %w", err)
	}
	if err := bucket.debit(6, start); err != nil {
		return nil, err
	}

	name := p.resolve(int64(nameIdx), start)

	inner := newBucket(p.c.Tell(), int64(blckSize))
	children, err := p.parseChildren(inner)
	if err != nil {
		return nil, err
	}
	if err := bucket.debit(int64(blckSize), start); err != nil {
		return nil, err
	}

	return &Node{
		Kind:      KindBlock,
		Name:      name,
		Aux:       uint32(aux),
		InnerSize: int64(blckSize),
		Children:  children,
	}, nil
}

func (p *parser) parseAVAL(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	nameIdx, err := p.readAndDebit16(bucket, start)
	if err != nil {
		return nil, err
	}
	typeIdx, err := p.readAndDebit16(bucket, start)
	if err != nil {
		return nil, err
	}
	aux, err := p.c.ReadInt(4)
	if err != nil {
		return nil, fail(ShortRead, start, "AVAL aux: %w", err)
	}
	if err := bucket.debit(4, start); err != nil {
		return nil, err
	}

	name := p.resolve(nameIdx, start)
	typeName := p.resolve(typeIdx, start)

	tok, err := p.parseToken(typeName, bucket)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindArrayValue, Name: name, TypeName: typeName, Aux: uint32(aux), Value: tok}, nil
}

func (p *parser) parsePORP(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	nameIdx, err := p.readAndDebit16(bucket, start)
	if err != nil {
		return nil, err
	}
	typeIdx, err := p.readAndDebit16(bucket, start)
	if err != nil {
		return nil, err
	}
	valueSize, err := p.c.ReadInt(4)
	if err != nil {
		return nil, fail(ShortRead, start, "PORP value_size: %w", err)
	}
	if err := bucket.debit(4, start); err != nil {
		return nil, err
	}

	name := p.resolve(nameIdx, start)
	typeName := p.resolve(typeIdx, start)

	inner := newBucket(p.c.Tell(), valueSize)
	tok, err := p.parseToken(typeName, inner)
	if err != nil {
		return nil, err
	}
	if inner.remaining != 0 {
		return nil, fail(SizeMismatch, start, "PORP value_size %d did not fully consume (remaining %d)", valueSize, inner.remaining)
	}
	if err := bucket.debit(valueSize, start); err != nil {
		return nil, err
	}

	return &Node{Kind: KindProperty, Name: name, TypeName: typeName, InnerSize: valueSize, Value: tok}, nil
}

func (p *parser) parseMANURecord(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	strs, consumed, err := parseNameTableBody(p.c, p.diag)
	if err != nil {
		return nil, err
	}
	if err := bucket.debit(consumed, start); err != nil {
		return nil, err
	}
	return &Node{Kind: KindNameTable, NameTable: strs}, nil
}

func (p *parser) parseSBDF(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	count, err := p.c.ReadInt(4)
	if err != nil {
		return nil, fail(ShortRead, start, "SBDF string_count: %w", err)
	}
	if err := bucket.debit(4, start); err != nil {
		return nil, err
	}

	bindings := make([]Binding, 0, count)
	for i := int64(0); i < count; i++ {
		entryStart := p.c.Tell()
		h, err := p.c.ReadUint(1)
		if err != nil {
			return nil, fail(ShortRead, entryStart, "SBDF entry[%d] length: %w", i, err)
		}
		n := 1

		markerSeen := false
		peek, err := p.c.PeekBytes(1)
		if err == nil && len(peek) == 1 && peek[0] == 0x01 {
			if _, err := p.c.ReadBytes(1); err != nil {
				return nil, fail(ShortRead, entryStart, "SBDF entry[%d] marker byte: %w", i, err)
			}
			markerSeen = true
			n++
		}

		raw, err := p.c.ReadBytes(int(h & 0x7f))
		if err != nil {
			return nil, fail(ShortRead, entryStart, "SBDF entry[%d] name: %w", i, err)
		}
		n += len(raw)

		throwaway, err := p.c.ReadInt(2)
		if err != nil {
			return nil, fail(ShortRead, entryStart, "SBDF entry[%d] throwaway: %w", i, err)
		}
		n += 2

		valueCount, err := p.c.ReadInt(2)
		if err != nil {
			return nil, fail(ShortRead, entryStart, "SBDF entry[%d] count: %w", i, err)
		}
		n += 2

		values := make([]BindingValue, 0, valueCount)
		for j := int64(0); j < valueCount; j++ {
			tag, err := p.c.ReadInt(2)
			if err != nil {
				return nil, fail(ShortRead, p.c.Tell(), "SBDF entry[%d].value[%d] tag: %w", i, j, err)
			}
			val, err := p.c.ReadInt(8)
			if err != nil {
				return nil, fail(ShortRead, p.c.Tell(), "SBDF entry[%d].value[%d] value: %w", i, j, err)
			}
			values = append(values, BindingValue{Tag: int16(tag), Value: val})
			n += 10
		}

		if err := bucket.debit(int64(n), entryStart); err != nil {
			return nil, err
		}

		bindings = append(bindings, Binding{
			Name:       cursor.LossyString(raw),
			MarkerSeen: markerSeen,
			Throwaway:  int16(throwaway),
			Values:     values,
		})
	}

	trailer, err := p.c.ReadAscii(4)
	if err != nil {
		return nil, fail(ShortRead, p.c.Tell(), "SBDF trailer magic: %w", err)
	}
	if trailer != "EBDF" {
		return nil, fail(BadMagic, p.c.Tell()-4, "SBDF trailer: got %q, want EBDF", trailer)
	}
	if err := bucket.debit(4, start); err != nil {
		return nil, err
	}

	return &Node{Kind: KindBindingList, Bindings: bindings}, nil
}

func (p *parser) parseROTS(bucket *bucket) (*Node, error) {
	start := p.c.Tell()
	v, err := p.c.ReadInt(4)
	if err != nil {
		return nil, fail(ShortRead, start, "ROTS payload: %w", err)
	}
	if err := bucket.debit(4, start); err != nil {
		return nil, err
	}
	return &Node{Kind: KindStub, StubValue: int32(v)}, nil
}

// readAndDebit16 reads a signed 16-bit index and debits 2 bytes.
func (p *parser) readAndDebit16(bucket *bucket, at int64) (int64, error) {
	v, err := p.c.ReadInt(2)
	if err != nil {
		return 0, fail(ShortRead, at, "reading 16-bit index: %w", err)
	}
	if err := bucket.debit(2, at); err != nil {
		return 0, err
	}
	return v, nil
}

// readAndDebitU16 reads an unsigned 16-bit index and debits 2 bytes, used
// by OP per spec §4.3.3 ("name_idx:u16, type_idx:u16; out-of-range indices
// resolve to Unknown (permissive)").
func (p *parser) readAndDebitU16(bucket *bucket, at int64) (uint64, error) {
	v, err := p.c.ReadUint(2)
	if err != nil {
		return 0, fail(ShortRead, at, "reading 16-bit index: %w", err)
	}
	if err := bucket.debit(2, at); err != nil {
		return 0, err
	}
	return v, nil
}
