package metrics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"crev/internal/intervals"
	"crev/internal/location"
)

// stubResolver resolves spans against a fixed symbol layout, failing for
// files marked unparseable.
type stubResolver struct {
	syms map[string][]stubSym
	fail map[string]bool
}

type stubSym struct {
	name       string
	start, end int
}

func (r *stubResolver) ResolveSpans(file string, spans intervals.Set, unit location.Unit) ([]location.SymbolID, error) {
	if r.fail[file] {
		return nil, fmt.Errorf("unparseable: %s", file)
	}
	var out []location.SymbolID
	for _, s := range r.syms[file] {
		if spans.Overlaps(intervals.Range{Start: s.start, End: s.end}) {
			out = append(out, location.SymbolID{File: file, Name: s.name})
		}
	}
	return out, nil
}

func (r *stubResolver) ResolveNames(file string, names []string) ([]location.SymbolID, error) {
	if r.fail[file] {
		return nil, fmt.Errorf("unparseable: %s", file)
	}
	var out []location.SymbolID
	for _, want := range names {
		for _, s := range r.syms[file] {
			if s.name == want {
				out = append(out, location.SymbolID{File: file, Name: s.name})
			}
		}
	}
	return out, nil
}

func lineDeriver(res location.SymbolResolver) *location.Deriver {
	return &location.Deriver{Unit: location.UnitLine, Symbols: res}
}

func locSet(spans ...location.Span) *location.LocationSet {
	loc := location.NewLocationSet()
	for _, s := range spans {
		loc.AddRange(s.File, intervals.Range{Start: s.StartLine, End: s.EndLine})
	}
	return loc
}

func TestCompute_FileGranularityScenario(t *testing.T) {
	// Gold files {a.py, b.py}, predicted files {a.py, c.py}:
	// coverage = 1/2, precision = 1/2.
	d := lineDeriver(nil)

	gold := location.NewLocationSet()
	gold.AddFile("a.py")
	gold.AddFile("b.py")
	pred := location.NewLocationSet()
	pred.AddFile("a.py")
	pred.AddFile("c.py")

	res := Compute(d.Derive(gold), d.Derive(pred), DefaultOptions())
	require.NotNil(t, res.File)
	require.Equal(t, 0.5, res.File.Coverage)
	require.Equal(t, 0.5, res.File.Precision)
	require.Equal(t, 1, res.File.Intersection)
	require.Equal(t, 2, res.File.GoldSize)
	require.Equal(t, 2, res.File.PredSize)
}

func TestCompute_SpanGranularity(t *testing.T) {
	d := lineDeriver(nil)
	gold := locSet(location.Span{File: "file.py", StartLine: 10, EndLine: 20})
	pred := locSet(location.Span{File: "file.py", StartLine: 10, EndLine: 15})

	res := Compute(d.Derive(gold), d.Derive(pred), DefaultOptions())
	require.NotNil(t, res.Span)
	require.Equal(t, 6, res.Span.Intersection)
	require.Equal(t, 11, res.Span.GoldSize)
	require.Equal(t, 6, res.Span.PredSize)
	require.InDelta(t, 6.0/11.0, res.Span.Coverage, 1e-6)
	require.Equal(t, 1.0, res.Span.Precision)
}

func TestCompute_SpanOnlySharedFilesIntersect(t *testing.T) {
	d := lineDeriver(nil)
	gold := locSet(
		location.Span{File: "a.py", StartLine: 1, EndLine: 10},
		location.Span{File: "b.py", StartLine: 1, EndLine: 10},
	)
	pred := locSet(
		location.Span{File: "a.py", StartLine: 1, EndLine: 10},
		location.Span{File: "c.py", StartLine: 1, EndLine: 10},
	)

	res := Compute(d.Derive(gold), d.Derive(pred), DefaultOptions())
	// Only a.py overlaps; both denominators still count every file.
	require.Equal(t, 10, res.Span.Intersection)
	require.Equal(t, 20, res.Span.GoldSize)
	require.Equal(t, 20, res.Span.PredSize)
	require.Equal(t, 0.5, res.Span.Coverage)
	require.Equal(t, 0.5, res.Span.Precision)
}

func TestCompute_SelfComparisonPerfect(t *testing.T) {
	resolver := &stubResolver{syms: map[string][]stubSym{
		"a.py": {{"f", 1, 10}, {"g", 12, 20}},
	}}
	d := lineDeriver(resolver)
	loc := locSet(location.Span{File: "a.py", StartLine: 5, EndLine: 15})

	res := Compute(d.Derive(loc), d.Derive(loc), DefaultOptions())
	for name, g := range map[string]*GranularityResult{
		"file": res.File, "symbol": res.Symbol, "span": res.Span,
	} {
		require.NotNil(t, g, name)
		require.Equal(t, 1.0, g.Coverage, name)
		require.Equal(t, 1.0, g.Precision, name)
	}
}

func TestCompute_SupersetFullCoverage(t *testing.T) {
	d := lineDeriver(nil)
	gold := locSet(location.Span{File: "a.py", StartLine: 5, EndLine: 10})
	pred := locSet(
		location.Span{File: "a.py", StartLine: 1, EndLine: 50},
		location.Span{File: "b.py", StartLine: 1, EndLine: 5},
	)

	res := Compute(d.Derive(gold), d.Derive(pred), DefaultOptions())
	require.Equal(t, 1.0, res.File.Coverage)
	require.Equal(t, 1.0, res.Span.Coverage)
}

func TestCompute_VacuousCases(t *testing.T) {
	d := lineDeriver(nil)
	empty := location.NewLocationSet()
	gold := locSet(location.Span{File: "a.py", StartLine: 1, EndLine: 10})

	t.Run("empty predicted non-empty gold", func(t *testing.T) {
		res := Compute(d.Derive(gold), d.Derive(empty), DefaultOptions())
		require.Equal(t, 0.0, res.Span.Coverage)
		require.Equal(t, 1.0, res.Span.Precision) // vacuous, per default policy
		require.Equal(t, 0.0, res.File.Coverage)
		require.Equal(t, 1.0, res.File.Precision)
	})

	t.Run("empty gold", func(t *testing.T) {
		res := Compute(d.Derive(empty), d.Derive(gold), DefaultOptions())
		require.Equal(t, 1.0, res.Span.Coverage)
		require.Equal(t, 1.0, res.File.Coverage)
	})

	t.Run("both empty", func(t *testing.T) {
		res := Compute(d.Derive(empty), d.Derive(empty), DefaultOptions())
		require.Equal(t, 1.0, res.File.Coverage)
		require.Equal(t, 1.0, res.File.Precision)
	})

	t.Run("strict empty-pred policy", func(t *testing.T) {
		opt := DefaultOptions()
		opt.EmptyPredPrecision = 0.0
		res := Compute(d.Derive(gold), d.Derive(empty), opt)
		require.Equal(t, 0.0, res.File.Precision)
		// Both-empty stays vacuously perfect regardless of the knob.
		both := Compute(d.Derive(location.NewLocationSet()), d.Derive(location.NewLocationSet()), opt)
		require.Equal(t, 1.0, both.File.Precision)
	})
}

func TestCompute_SymbolGranularity(t *testing.T) {
	resolver := &stubResolver{syms: map[string][]stubSym{
		"a.py": {{"Widget", 1, 40}, {"Widget.render", 5, 15}, {"Widget.close", 20, 30}},
	}}
	d := lineDeriver(resolver)

	gold := locSet(location.Span{File: "a.py", StartLine: 5, EndLine: 30})
	pred := locSet(location.Span{File: "a.py", StartLine: 6, EndLine: 8})

	res := Compute(d.Derive(gold), d.Derive(pred), DefaultOptions())
	require.NotNil(t, res.Symbol)
	// Gold touches all three; pred touches Widget and Widget.render.
	require.Equal(t, 3, res.Symbol.GoldSize)
	require.Equal(t, 2, res.Symbol.PredSize)
	require.Equal(t, 2, res.Symbol.Intersection)
	require.InDelta(t, 2.0/3.0, res.Symbol.Coverage, 1e-6)
	require.Equal(t, 1.0, res.Symbol.Precision)
}

func TestCompute_SymbolExclusionSymmetric(t *testing.T) {
	resolver := &stubResolver{
		syms: map[string][]stubSym{
			"ok.py": {{"f", 1, 10}},
		},
		fail: map[string]bool{"bad.py": true},
	}
	d := lineDeriver(resolver)

	gold := locSet(
		location.Span{File: "ok.py", StartLine: 1, EndLine: 10},
		location.Span{File: "bad.py", StartLine: 1, EndLine: 10},
	)
	pred := locSet(location.Span{File: "ok.py", StartLine: 1, EndLine: 10})

	res := Compute(d.Derive(gold), d.Derive(pred), DefaultOptions())
	// bad.py is out of both numerator and denominator, surfaced as a count.
	require.Equal(t, 1, res.Symbol.ExcludedFiles)
	require.Equal(t, 1, res.Symbol.GoldSize)
	require.Equal(t, 1.0, res.Symbol.Coverage)
	// File and span granularities are unaffected by the parse failure.
	require.Equal(t, 0.5, res.File.Coverage)
	require.Equal(t, 0.5, res.Span.Coverage)
}

func TestOptions_DisabledGranularityIsNil(t *testing.T) {
	d := lineDeriver(nil)
	opt := DefaultOptions()
	opt.Symbol = false

	res := Compute(d.Derive(location.NewLocationSet()), d.Derive(location.NewLocationSet()), opt)
	require.Nil(t, res.Symbol)
	require.NotNil(t, res.File)
	require.NotNil(t, res.Span)
}
