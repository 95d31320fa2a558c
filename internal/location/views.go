package location

import (
	"sort"

	"crev/internal/fileio"
	"crev/internal/intervals"
)

// SymbolID identifies a symbol as (file, qualified name). Kind and spans are
// audit data, not identity.
type SymbolID struct {
	File string `json:"file"`
	Name string `json:"name"`
}

// Views is one location set projected onto the three comparable
// granularities. Derived on demand, never stored, so it cannot go stale
// against its source LocationSet.
type Views struct {
	Files   map[string]bool
	Symbols map[SymbolID]bool
	Spans   map[string]intervals.Set

	// SymbolExcluded lists files whose symbol table could not be produced.
	// These files are dropped from symbol-granularity numerators and
	// denominators, and the count is surfaced on the instance record.
	SymbolExcluded []string
}

// SpanLength returns the total span length across all files.
func (v Views) SpanLength() int {
	total := 0
	for _, set := range v.Spans {
		total += set.TotalLength()
	}
	return total
}

// ContentSource supplies line tables for repository files so line spans can
// be translated into byte spans.
type ContentSource interface {
	LineTable(file string) (*fileio.LineTable, error)
}

// SymbolResolver maps spans or reported names within one file to symbol
// identities. Implemented by the symbols package; the deriver only depends
// on this capability.
type SymbolResolver interface {
	// ResolveSpans returns every symbol whose definition span intersects the
	// interval set, in the given unit. Enclosing and nested symbols are both
	// included.
	ResolveSpans(file string, spans intervals.Set, unit Unit) ([]SymbolID, error)
	// ResolveNames maps agent-reported symbol names to known definitions.
	ResolveNames(file string, names []string) ([]SymbolID, error)
}

// Deriver projects location sets onto granularity views. The same deriver
// must be used for gold and predicted sets so the two sides are translated
// identically.
type Deriver struct {
	Unit    Unit
	Content ContentSource
	Symbols SymbolResolver
}

// Derive computes the three granularity views of a location set. The input
// is not mutated. Per-file failures are absorbed: an unreadable file keeps
// its file-granularity contribution but drops out of span translation, and a
// file without a symbol table is recorded in SymbolExcluded.
func (d *Deriver) Derive(loc *LocationSet) Views {
	v := Views{
		Files:   make(map[string]bool),
		Symbols: make(map[SymbolID]bool),
		Spans:   make(map[string]intervals.Set),
	}
	if loc == nil {
		return v
	}

	for _, f := range loc.FileList() {
		v.Files[f] = true
	}

	// Deterministic file order so exclusion lists are stable.
	files := make([]string, 0, len(loc.Spans))
	for f := range loc.Spans {
		files = append(files, f)
	}
	sort.Strings(files)

	excluded := make(map[string]bool)
	for _, f := range files {
		set := loc.Spans[f]
		if len(set) == 0 {
			continue
		}

		spans := set
		if d.Unit == UnitByte {
			converted, ok := d.toBytes(f, set)
			if !ok {
				// File content unavailable: no span or symbol signal for
				// this file, file granularity already counted.
				excluded[f] = true
				continue
			}
			spans = converted
		}
		if len(spans) > 0 {
			v.Spans[f] = spans
		}

		if d.Symbols == nil {
			continue
		}
		ids, err := d.Symbols.ResolveSpans(f, spans, d.Unit)
		if err != nil {
			excluded[f] = true
			continue
		}
		for _, id := range ids {
			v.Symbols[id] = true
		}
	}

	for f := range excluded {
		v.SymbolExcluded = append(v.SymbolExcluded, f)
	}
	sort.Strings(v.SymbolExcluded)
	return v
}

// DeriveStep derives views for a single step, honoring directly reported
// symbol names when the agent log carries them.
func (d *Deriver) DeriveStep(step Step) Views {
	v := d.Derive(step.Locations())
	if d.Symbols == nil || len(step.Symbols) == 0 {
		return v
	}

	files := make([]string, 0, len(step.Symbols))
	for f := range step.Symbols {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		ids, err := d.Symbols.ResolveNames(f, step.Symbols[f])
		if err != nil {
			continue
		}
		for _, id := range ids {
			v.Symbols[id] = true
		}
	}
	return v
}

func (d *Deriver) toBytes(file string, lines intervals.Set) (intervals.Set, bool) {
	if d.Content == nil {
		return nil, false
	}
	table, err := d.Content.LineTable(file)
	if err != nil || table == nil {
		return nil, false
	}
	ranges := make([]intervals.Range, 0, len(lines))
	for _, lr := range lines {
		br, ok := table.ByteRange(lr.Start, lr.End)
		if !ok {
			continue
		}
		ranges = append(ranges, br)
	}
	return intervals.New(ranges...), true
}
