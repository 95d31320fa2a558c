package metrics

import (
	"sort"

	"crev/internal/intervals"
	"crev/internal/location"
	"crev/internal/output"
)

// StepCoverage is the coverage of the cumulative predicted set against gold
// after one step, per granularity.
type StepCoverage struct {
	Step     int                `json:"step"`
	Coverage map[string]float64 `json:"coverage"`
}

// TrajectoryResult holds the step-wise aggregates. AUCCoverage and
// Redundancy are nil (JSON null) when the trajectory retained no steps.
type TrajectoryResult struct {
	Steps       []StepCoverage     `json:"steps"`
	AUCCoverage map[string]float64 `json:"auc_coverage"`
	Redundancy  map[string]float64 `json:"redundancy"`
}

// Aggregator walks a step sequence maintaining the cumulative predicted
// views, which never shrink; per-step coverage is therefore non-decreasing
// by construction.
type Aggregator struct {
	Deriver *location.Deriver
	Opt     Options
}

// Aggregate computes per-step coverage, AUC-coverage, and redundancy over
// the retained (non-empty) steps. It returns the trajectory metrics together
// with the terminal cumulative views, which stand in as the final predicted
// context when the extractor supplied no explicit one.
func (a *Aggregator) Aggregate(steps []location.Step, gold location.Views) (*TrajectoryResult, location.Views) {
	cumulative := emptyViews()

	result := &TrajectoryResult{Steps: make([]StepCoverage, 0, len(steps))}
	if len(steps) == 0 {
		return result, cumulative
	}

	grans := a.enabled()
	aucSum := make(map[string]float64, len(grans))
	redundant := make(map[string]int, len(grans))
	var prevInter map[string]int

	for i, step := range steps {
		stepViews := a.Deriver.DeriveStep(step)
		mergeViews(&cumulative, stepViews)

		cov := make(map[string]float64, len(grans))
		inter := make(map[string]int, len(grans))
		for _, g := range grans {
			block := a.granMetrics(g, gold, cumulative)
			cov[g] = block.Coverage
			inter[g] = block.Intersection
		}
		result.Steps = append(result.Steps, StepCoverage{Step: i + 1, Coverage: cov})

		for _, g := range grans {
			aucSum[g] += cov[g]
			// A step is redundant at a granularity when it moved coverage
			// nowhere; the first step has no prior state to be redundant
			// against. Gold is fixed across steps, so coverage grows exactly
			// when the raw intersection count does; comparing the counts
			// keeps gains below the rounding resolution from being miscounted
			// as redundant.
			if prevInter != nil && inter[g] == prevInter[g] {
				redundant[g]++
			}
		}
		prevInter = inter
	}

	n := len(steps)
	result.AUCCoverage = make(map[string]float64, len(grans))
	result.Redundancy = make(map[string]float64, len(grans))
	for _, g := range grans {
		result.AUCCoverage[g] = output.RoundFloat(aucSum[g] / float64(n))
		if n > 1 {
			result.Redundancy[g] = output.RoundFloat(float64(redundant[g]) / float64(n-1))
		} else {
			result.Redundancy[g] = 0
		}
	}
	return result, cumulative
}

func (a *Aggregator) enabled() []string {
	var grans []string
	if a.Opt.File {
		grans = append(grans, GranFile)
	}
	if a.Opt.Symbol {
		grans = append(grans, GranSymbol)
	}
	if a.Opt.Span {
		grans = append(grans, GranSpan)
	}
	return grans
}

func (a *Aggregator) granMetrics(gran string, gold, cumulative location.Views) *GranularityResult {
	switch gran {
	case GranFile:
		return fileMetrics(gold, cumulative, a.Opt)
	case GranSymbol:
		return symbolMetrics(gold, cumulative, a.Opt)
	default:
		return spanMetrics(gold, cumulative, a.Opt)
	}
}

func emptyViews() location.Views {
	return location.Views{
		Files:   make(map[string]bool),
		Symbols: make(map[location.SymbolID]bool),
		Spans:   make(map[string]intervals.Set),
	}
}

// mergeViews folds src into dst: union of files and symbols, union-then-merge
// of per-file interval sets, deduplicated exclusion lists.
func mergeViews(dst *location.Views, src location.Views) {
	for f := range src.Files {
		dst.Files[f] = true
	}
	for id := range src.Symbols {
		dst.Symbols[id] = true
	}
	for f, set := range src.Spans {
		dst.Spans[f] = intervals.Union(dst.Spans[f], set)
	}
	if len(src.SymbolExcluded) > 0 {
		seen := make(map[string]bool, len(dst.SymbolExcluded)+len(src.SymbolExcluded))
		for _, f := range dst.SymbolExcluded {
			seen[f] = true
		}
		for _, f := range src.SymbolExcluded {
			seen[f] = true
		}
		merged := make([]string, 0, len(seen))
		for f := range seen {
			merged = append(merged, f)
		}
		sort.Strings(merged)
		dst.SymbolExcluded = merged
	}
}
