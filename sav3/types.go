package sav3

// RecordKind identifies which of the closed set of record shapes a Node
// represents (spec §3's magic table), plus the Unknown escape hatch for a
// magic the dispatcher didn't recognise.
type RecordKind string

const (
	KindValue       RecordKind = "VL"
	KindScopeBegin  RecordKind = "BS"
	KindOption      RecordKind = "OP"
	KindSubStream   RecordKind = "SS"
	KindStreamMark  RecordKind = "SXAP"
	KindBlock       RecordKind = "BLCK"
	KindArrayValue  RecordKind = "AVAL"
	KindProperty    RecordKind = "PORP"
	KindNameTable   RecordKind = "MANU"
	KindBindingList RecordKind = "SBDF"
	KindStub        RecordKind = "ROTS"
	KindUnknown     RecordKind = "unknown"
)

// Node is one record of the decoded tree (spec §3 "Record (variable)").
// Only the fields relevant to Kind are populated; this mirrors the source's
// dynamic shape while keeping Go's static typing by making every field's
// applicability explicit in the doc comment rather than splitting into a
// dozen single-use structs.
type Node struct {
	Kind RecordKind

	// Name/Type are resolved through the string table; both default to
	// "Unknown" for a 0 or out-of-range index (spec §3 invariants).
	Name     string
	TypeName string

	// Value holds a VL/OP/AVAL/PORP record's typed token (see Token).
	Value *Token

	// Children holds the nested records of an SS or BLCK record. The
	// top-level sibling grouping is in Result.Groups, not here.
	Children []*Node

	// Aux is AVAL's 32-bit auxiliary field, or BLCK's 16-bit aux field
	// widened to 32 bits.
	Aux uint32

	// InnerSize is the declared size of an SS/BLCK/PORP record.
	InnerSize int64

	// NameTable holds a MANU record's decoded strings.
	NameTable []string

	// Bindings holds an SBDF record's decoded entries.
	Bindings []Binding

	// StreamMarkCodes holds SXAP's three opaque 32-bit type codes.
	StreamMarkCodes [3]int32

	// StubValue holds ROTS's opaque 32-bit payload.
	StubValue int32

	// RawMagic and RawBytes are populated for KindUnknown: the magic bytes
	// peeked (2 or 4 of them) and the raw bytes of the drained bucket.
	RawMagic string
	RawBytes []byte
}

// Binding is one entry of an SBDF binding-list record. The marker byte and
// string-length high bit are speculative per spec §9; MarkerSeen exposes
// whether the conditional 0x01 marker byte was consumed for this entry.
type Binding struct {
	Name         string
	MarkerSeen   bool
	Throwaway    int16
	Values       []BindingValue
}

// BindingValue is one (int16, int64) pair inside an SBDF entry.
type BindingValue struct {
	Tag   int16
	Value int64
}

// Token is a typed value decoded from a type name drawn from the string
// table (spec §4.3.4). Which of Scalar and Elements is populated depends on
// TypeName; Unknown and Opaque document the deliberately-imprecise
// fallbacks from spec §9.
type Token struct {
	TypeName string

	// Scalar holds any fixed-width primitive, string, CName, GUID,
	// EntityHandle tag+payload, enum byte pair, or similar leaf value as a
	// plain Go value (bool, int64, uint64, uint8, float32, float64, string,
	// []byte).
	Scalar any

	// Elements holds the decoded components of a compound token: an
	// array:2,0,T's elements, a TagList's entries, or a Vector-family
	// token's packed floats or full-form per-component sub-records. A
	// handle:T/soft:T token is not wrapped: it is the decoded T token itself.
	Elements []*Token

	// SchemaUncertain marks Vector/Vector2/EulerAngles-family tokens whose
	// concrete shape was chosen by the size-bucket-modulo heuristic from
	// spec §9, not a confirmed schema.
	SchemaUncertain bool

	// Opaque marks a known type whose layout isn't reverse engineered
	// (spec §9): a fixed-width blob such as EngineTime/IdTag/CGUID, or a type
	// read as the remaining bucket bytes. Unrecognised type names set
	// Unknown instead.
	Opaque bool

	// Unknown is true when TypeName was not found in the builtin type
	// list; Scalar then holds the raw opaque bytes ([]byte).
	Unknown bool
}
