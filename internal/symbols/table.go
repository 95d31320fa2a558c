// Package symbols produces and queries per-file symbol tables: the
// definition spans that turn raw byte or line ranges into a symbol-level
// view of a location set. Tables come from tree-sitter parsing or from a
// prebuilt SCIP index; resolution against a table is pure and shared.
package symbols

import (
	"sort"

	"crev/internal/intervals"
	"crev/internal/location"
)

// Symbol is one definition extracted from source text. Identity is
// (File, Name); kind and spans are carried for containment tests and audit.
type Symbol struct {
	File      string `json:"file"`
	Name      string `json:"name"` // qualified: Container.Name for members
	Kind      string `json:"kind"` // "function", "method", "class", "type", "interface"
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	StartByte int    `json:"startByte"`
	EndByte   int    `json:"endByte"`
}

// ID returns the symbol's identity.
func (s Symbol) ID() location.SymbolID {
	return location.SymbolID{File: s.File, Name: s.Name}
}

// Table holds every definition of one file, sorted by start offset.
type Table struct {
	File    string   `json:"file"`
	Symbols []Symbol `json:"symbols"`
}

// NewTable builds a table with its symbols sorted by position.
func NewTable(file string, syms []Symbol) *Table {
	sorted := make([]Symbol, len(syms))
	copy(sorted, syms)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartByte != sorted[j].StartByte {
			return sorted[i].StartByte < sorted[j].StartByte
		}
		return sorted[i].EndByte > sorted[j].EndByte
	})
	return &Table{File: file, Symbols: sorted}
}

// Resolve returns every symbol whose span intersects the interval set.
// Intersection, not containment: viewing one line of a function counts as
// having seen it. Nested definitions and their enclosing definitions are
// both reported.
func (t *Table) Resolve(spans intervals.Set, unit location.Unit) []location.SymbolID {
	if t == nil || len(spans) == 0 {
		return nil
	}
	var out []location.SymbolID
	for _, sym := range t.Symbols {
		r := sym.span(unit)
		if spans.Overlaps(r) {
			out = append(out, sym.ID())
		}
	}
	return out
}

// ResolveNames maps reported symbol names to known definitions. A dotted
// name falls back to its last component, matching how agent logs often
// report `Class.method` against a table keyed by qualified names.
func (t *Table) ResolveNames(names []string) []location.SymbolID {
	if t == nil || len(names) == 0 {
		return nil
	}
	byName := make(map[string][]location.SymbolID, len(t.Symbols))
	for _, sym := range t.Symbols {
		byName[sym.Name] = append(byName[sym.Name], sym.ID())
		if i := lastDot(sym.Name); i >= 0 {
			short := sym.Name[i+1:]
			byName[short] = append(byName[short], sym.ID())
		}
	}

	var out []location.SymbolID
	for _, raw := range names {
		candidates := []string{raw}
		if i := lastDot(raw); i >= 0 {
			candidates = append(candidates, raw[i+1:])
		}
		for _, cand := range candidates {
			if ids, ok := byName[cand]; ok {
				out = append(out, ids...)
				break
			}
		}
	}
	return out
}

func (s Symbol) span(unit location.Unit) intervals.Range {
	if unit == location.UnitLine {
		return intervals.Range{Start: s.StartLine, End: s.EndLine}
	}
	return intervals.Range{Start: s.StartByte, End: s.EndByte}
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
