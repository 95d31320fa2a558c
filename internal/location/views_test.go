package location

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"crev/internal/fileio"
	"crev/internal/intervals"
)

// memContent serves line tables from in-memory file content.
type memContent map[string]string

func (m memContent) LineTable(file string) (*fileio.LineTable, error) {
	content, ok := m[file]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", file)
	}
	return fileio.NewLineTable([]byte(content)), nil
}

// memResolver resolves every span of a known file to one symbol per file and
// fails for files in the fail set.
type memResolver struct {
	fail map[string]bool
}

func (r *memResolver) ResolveSpans(file string, spans intervals.Set, unit Unit) ([]SymbolID, error) {
	if r.fail[file] {
		return nil, fmt.Errorf("unparseable: %s", file)
	}
	if len(spans) == 0 {
		return nil, nil
	}
	return []SymbolID{{File: file, Name: "sym"}}, nil
}

func (r *memResolver) ResolveNames(file string, names []string) ([]SymbolID, error) {
	if r.fail[file] {
		return nil, fmt.Errorf("unparseable: %s", file)
	}
	out := make([]SymbolID, 0, len(names))
	for _, n := range names {
		out = append(out, SymbolID{File: file, Name: n})
	}
	return out, nil
}

func TestDerive_ByteUnit(t *testing.T) {
	content := memContent{
		"a.py": "aaaa\nbbbb\ncccc\n", // lines start at bytes 0, 5, 10
	}
	d := &Deriver{Unit: UnitByte, Content: content, Symbols: &memResolver{}}

	loc := NewLocationSet()
	loc.AddRange("a.py", intervals.Range{Start: 1, End: 2})

	v := d.Derive(loc)
	require.True(t, v.Files["a.py"])
	require.Equal(t, intervals.New(intervals.Range{Start: 0, End: 9}), v.Spans["a.py"])
	require.True(t, v.Symbols[SymbolID{File: "a.py", Name: "sym"}])
	require.Empty(t, v.SymbolExcluded)
}

func TestDerive_UnreadableFileKeepsFileGranularity(t *testing.T) {
	d := &Deriver{Unit: UnitByte, Content: memContent{}, Symbols: &memResolver{}}

	loc := NewLocationSet()
	loc.AddRange("missing.py", intervals.Range{Start: 1, End: 5})

	v := d.Derive(loc)
	require.True(t, v.Files["missing.py"])
	require.NotContains(t, v.Spans, "missing.py")
	require.Empty(t, v.Symbols)
	require.Equal(t, []string{"missing.py"}, v.SymbolExcluded)
}

func TestDerive_LineUnitNeedsNoContent(t *testing.T) {
	d := &Deriver{Unit: UnitLine, Symbols: &memResolver{}}

	loc := NewLocationSet()
	loc.AddRange("a.py", intervals.Range{Start: 3, End: 7})

	v := d.Derive(loc)
	require.Equal(t, 5, v.Spans["a.py"].TotalLength())
	require.True(t, v.Symbols[SymbolID{File: "a.py", Name: "sym"}])
}

func TestDerive_SymbolFailureExcludesFile(t *testing.T) {
	d := &Deriver{
		Unit:    UnitLine,
		Symbols: &memResolver{fail: map[string]bool{"bad.py": true}},
	}

	loc := NewLocationSet()
	loc.AddRange("good.py", intervals.Range{Start: 1, End: 2})
	loc.AddRange("bad.py", intervals.Range{Start: 1, End: 2})

	v := d.Derive(loc)
	require.Equal(t, []string{"bad.py"}, v.SymbolExcluded)
	// Span granularity is unaffected by symbol-table failures.
	require.Equal(t, 2, v.Spans["bad.py"].TotalLength())
	require.True(t, v.Symbols[SymbolID{File: "good.py", Name: "sym"}])
}

func TestDeriveStep_ReportedNames(t *testing.T) {
	d := &Deriver{Unit: UnitLine, Symbols: &memResolver{}}

	st := Step{
		Files:   []string{"a.py"},
		Symbols: map[string][]string{"a.py": {"Widget.render"}},
	}
	v := d.DeriveStep(st)
	require.True(t, v.Symbols[SymbolID{File: "a.py", Name: "Widget.render"}])
	require.True(t, v.Files["a.py"])
}
