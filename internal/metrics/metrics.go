// Package metrics computes context-retrieval quality scores at file, symbol,
// and span granularity: final coverage/precision, step-wise trajectory
// aggregates, and edit-localization recall/precision. All functions are pure
// over derived granularity views.
package metrics

import (
	"crev/internal/intervals"
	"crev/internal/location"
	"crev/internal/output"
)

// Granularity names used as keys in per-granularity result maps.
const (
	GranFile   = "file"
	GranSymbol = "symbol"
	GranSpan   = "span"
)

// Options is the explicit metric configuration. Every recognized knob is a
// field here; there is no pass-through of unvalidated options.
type Options struct {
	// File, Symbol, Span select which granularities to compute.
	File   bool
	Symbol bool
	Span   bool

	// EmptyGoldCoverage is the coverage reported when the gold side is
	// empty: nothing to cover is trivially satisfied. Policy, not a
	// divide-by-zero guard.
	EmptyGoldCoverage float64
	// EmptyPredPrecision is the precision reported when the predicted side
	// is empty and gold is not. Evaluators disagree on this case (vacuous
	// correctness vs zero credit), so it is a knob; when gold is also
	// empty precision is always 1.0.
	EmptyPredPrecision float64
}

// DefaultOptions computes all granularities with vacuous cases scored 1.0,
// matching the reference evaluator's behavior.
func DefaultOptions() Options {
	return Options{
		File:               true,
		Symbol:             true,
		Span:               true,
		EmptyGoldCoverage:  1.0,
		EmptyPredPrecision: 1.0,
	}
}

// CoveragePrecision applies the shared ratio formulas with the configured
// vacuous-case policies.
func (o Options) CoveragePrecision(intersection, goldSize, predSize int) (coverage, precision float64) {
	switch {
	case goldSize > 0:
		coverage = float64(intersection) / float64(goldSize)
	default:
		coverage = o.EmptyGoldCoverage
	}
	switch {
	case predSize > 0:
		precision = float64(intersection) / float64(predSize)
	case goldSize == 0:
		precision = 1.0
	default:
		precision = o.EmptyPredPrecision
	}
	return output.RoundFloat(coverage), output.RoundFloat(precision)
}

// GranularityResult is the per-granularity metric block, with the raw counts
// kept for auditability and micro-averaged aggregation.
type GranularityResult struct {
	Coverage     float64 `json:"coverage"`
	Precision    float64 `json:"precision"`
	Intersection int     `json:"intersection"`
	GoldSize     int     `json:"gold_size"`
	PredSize     int     `json:"pred_size"`
	// ExcludedFiles counts files dropped from symbol-granularity scoring
	// because no symbol table could be produced. Only set for the symbol
	// block.
	ExcludedFiles int `json:"excluded_files,omitempty"`
}

// FinalResult holds the final-context metrics. A nil granularity block means
// that granularity was disabled or could not be computed; it marshals as
// JSON null per the error-handling contract.
type FinalResult struct {
	File   *GranularityResult `json:"file"`
	Symbol *GranularityResult `json:"symbol"`
	Span   *GranularityResult `json:"span"`
}

// Compute derives final-context metrics from gold and predicted views. Both
// views must come from the same Deriver so the two sides were translated
// identically.
func Compute(gold, pred location.Views, opt Options) *FinalResult {
	res := &FinalResult{}
	if opt.File {
		res.File = fileMetrics(gold, pred, opt)
	}
	if opt.Symbol {
		res.Symbol = symbolMetrics(gold, pred, opt)
	}
	if opt.Span {
		res.Span = spanMetrics(gold, pred, opt)
	}
	return res
}

func fileMetrics(gold, pred location.Views, opt Options) *GranularityResult {
	inter := 0
	for f := range pred.Files {
		if gold.Files[f] {
			inter++
		}
	}
	cov, prec := opt.CoveragePrecision(inter, len(gold.Files), len(pred.Files))
	return &GranularityResult{
		Coverage:     cov,
		Precision:    prec,
		Intersection: inter,
		GoldSize:     len(gold.Files),
		PredSize:     len(pred.Files),
	}
}

// symbolMetrics compares symbol identity sets, first excluding symbols from
// files that either side failed to resolve. The exclusion is symmetric so
// the comparison stays fair, and the excluded-file count is surfaced rather
// than silently dropped.
func symbolMetrics(gold, pred location.Views, opt Options) *GranularityResult {
	excluded := make(map[string]bool)
	for _, f := range gold.SymbolExcluded {
		excluded[f] = true
	}
	for _, f := range pred.SymbolExcluded {
		excluded[f] = true
	}

	goldSize, predSize, inter := 0, 0, 0
	for id := range gold.Symbols {
		if excluded[id.File] {
			continue
		}
		goldSize++
		if pred.Symbols[id] {
			inter++
		}
	}
	for id := range pred.Symbols {
		if !excluded[id.File] {
			predSize++
		}
	}

	cov, prec := opt.CoveragePrecision(inter, goldSize, predSize)
	return &GranularityResult{
		Coverage:      cov,
		Precision:     prec,
		Intersection:  inter,
		GoldSize:      goldSize,
		PredSize:      predSize,
		ExcludedFiles: len(excluded),
	}
}

// spanMetrics compares interval overlap length file by file. Only shared
// files contribute to the numerator; the denominators sum each side's
// interval length across all of its files.
func spanMetrics(gold, pred location.Views, opt Options) *GranularityResult {
	inter := 0
	for f, predSet := range pred.Spans {
		if goldSet, ok := gold.Spans[f]; ok {
			inter += intervals.IntersectionLength(goldSet, predSet)
		}
	}
	goldSize := gold.SpanLength()
	predSize := pred.SpanLength()

	cov, prec := opt.CoveragePrecision(inter, goldSize, predSize)
	return &GranularityResult{
		Coverage:     cov,
		Precision:    prec,
		Intersection: inter,
		GoldSize:     goldSize,
		PredSize:     predSize,
	}
}
