// Package sav3json projects a decoded sav3.Result into the JSON shape spec
// §6 describes for the record tree: every leaf is either a primitive or a
// compact representation of opaque bytes, and object graphs are
// arrays-of-arrays matching the §4.3.5 grouping — the decoder's Groups field
// is carried straight through rather than re-nested.
package sav3json

import (
	"encoding/hex"
	"fmt"

	"github.com/pxwxnvermx/witcher3-save-edit/sav3"
)

// Document is the top-level JSON document produced for one decoded save.
type Document struct {
	Names        []string       `json:"names"`
	Groups       [][]any        `json:"groups"`
	UnknownTypes map[string]int `json:"unknown_types,omitempty"`
	Stats        Stats          `json:"stats"`
}

// Stats mirrors the observability counters a diag.Tracker accumulates during
// the walk (spec §6 "observability outputs").
type Stats struct {
	RecordsParsed int64 `json:"records_parsed"`
	BytesConsumed int64 `json:"bytes_consumed"`
	UnknownCount  int64 `json:"unknown_count"`
}

// Project converts a decoded Result into a JSON-marshalable Document.
func Project(result *sav3.Result) (*Document, error) {
	groups := make([][]any, len(result.Groups))
	for i, group := range result.Groups {
		nodes := make([]any, len(group))
		for j, n := range group {
			v, err := node(n)
			if err != nil {
				return nil, fmt.Errorf("sav3json: group[%d][%d]: %w", i, j, err)
			}
			nodes[j] = v
		}
		groups[i] = nodes
	}

	names := make([]string, result.Names.Len())
	for i := 0; i < result.Names.Len(); i++ {
		names[i] = result.Names.Resolve(int64(i+1), 0, nil)
	}

	return &Document{
		Names:        names,
		Groups:       groups,
		UnknownTypes: result.Diagnostics.UnknownTypes(),
		Stats: Stats{
			RecordsParsed: result.Diagnostics.RecordsParsed(),
			BytesConsumed: result.Diagnostics.BytesConsumed(),
			UnknownCount:  result.Diagnostics.UnknownCount(),
		},
	}, nil
}

// node projects one sav3.Node into a JSON-able value, keyed by its Kind.
func node(n *sav3.Node) (any, error) {
	out := map[string]any{"kind": string(n.Kind)}

	if n.Name != "" {
		out["name"] = n.Name
	}
	if n.TypeName != "" {
		out["type"] = n.TypeName
	}

	switch n.Kind {
	case sav3.KindValue, sav3.KindOption, sav3.KindArrayValue, sav3.KindProperty:
		v, err := token(n.Value)
		if err != nil {
			return nil, err
		}
		out["value"] = v
		if n.Kind == sav3.KindArrayValue {
			out["aux"] = n.Aux
		}
	case sav3.KindSubStream, sav3.KindBlock:
		children := make([]any, len(n.Children))
		for i, c := range n.Children {
			v, err := node(c)
			if err != nil {
				return nil, err
			}
			children[i] = v
		}
		out["children"] = children
		if n.Kind == sav3.KindBlock {
			out["aux"] = n.Aux
		}
	case sav3.KindStreamMark:
		out["codes"] = n.StreamMarkCodes
	case sav3.KindNameTable:
		out["names"] = n.NameTable
	case sav3.KindBindingList:
		bindings := make([]any, len(n.Bindings))
		for i, b := range n.Bindings {
			values := make([]any, len(b.Values))
			for j, v := range b.Values {
				values[j] = map[string]any{"tag": v.Tag, "value": v.Value}
			}
			bindings[i] = map[string]any{
				"name":      b.Name,
				"throwaway": b.Throwaway,
				"values":    values,
			}
		}
		out["bindings"] = bindings
	case sav3.KindStub:
		out["value"] = n.StubValue
	case sav3.KindUnknown:
		out["magic"] = n.RawMagic
		out["bytes"] = opaque(n.RawBytes)
	}

	return out, nil
}

// token projects one sav3.Token into a JSON-able value: a bare primitive for
// the common case, or a compact {"opaque": "<hex>"} form for byte blobs
// whose layout isn't modeled further.
func token(t *sav3.Token) (any, error) {
	if t == nil {
		return nil, nil
	}

	if len(t.Elements) > 0 {
		elements := make([]any, len(t.Elements))
		for i, e := range t.Elements {
			v, err := token(e)
			if err != nil {
				return nil, err
			}
			elements[i] = v
		}
		if t.TypeName == "TagList" {
			return map[string]any{"flag": t.Scalar, "elements": elements}, nil
		}
		out := map[string]any{"elements": elements}
		if t.SchemaUncertain {
			out["schema_uncertain"] = true
		}
		return out, nil
	}

	switch v := t.Scalar.(type) {
	case []byte:
		out := map[string]any{"opaque": opaque(v)}
		if t.Unknown {
			out["unknown_type"] = t.TypeName
		}
		return out, nil
	default:
		return v, nil
	}
}

func opaque(b []byte) string {
	return hex.EncodeToString(b)
}
