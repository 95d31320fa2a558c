// Package evaluate orchestrates per-instance scoring: repository checkout,
// view derivation for gold and predicted contexts, trajectory aggregation,
// and edit localization. Per-file anomalies degrade single granularities;
// only checkout failures and empty trajectories fail a whole instance.
package evaluate

import (
	"context"
	"fmt"

	"crev/internal/config"
	"crev/internal/diffparse"
	"crev/internal/errors"
	"crev/internal/gold"
	"crev/internal/intervals"
	"crev/internal/location"
	"crev/internal/logging"
	"crev/internal/metrics"
	"crev/internal/repos"
	"crev/internal/symbols"
	"crev/internal/trajparse"
)

// Evaluator holds the shared machinery for scoring instances. It is safe for
// concurrent use: per-instance state lives in the symbol provider created
// inside EvaluateInstance.
type Evaluator struct {
	cfg       *config.Config
	goldSet   *gold.Loader
	repoCache *repos.Cache
	scip      *symbols.SCIPSource
	symCache  symbols.Cache
	logger    *logging.Logger
}

// NewEvaluator wires an evaluator from its collaborators. scip and symCache
// may be nil.
func NewEvaluator(cfg *config.Config, goldSet *gold.Loader, repoCache *repos.Cache,
	scip *symbols.SCIPSource, symCache symbols.Cache, logger *logging.Logger) *Evaluator {
	return &Evaluator{
		cfg:       cfg,
		goldSet:   goldSet,
		repoCache: repoCache,
		scip:      scip,
		symCache:  symCache,
		logger:    logger,
	}
}

// Options returns the metric options this evaluator scores instances with.
func (e *Evaluator) Options() metrics.Options {
	return e.cfg.MetricsOptions()
}

// SymbolSourceAvailable reports whether any symbol source can serve the
// symbol granularity.
func (e *Evaluator) SymbolSourceAvailable() bool {
	return e.scip != nil || symbols.Available()
}

// EvaluateInstance scores one prediction. It always returns a record; on
// instance-level failure the record carries an error instead of metrics.
func (e *Evaluator) EvaluateInstance(ctx context.Context, pred *trajparse.Prediction) *metrics.InstanceResult {
	log := e.logger.With(map[string]interface{}{"instance": pred.InstanceID})

	annot, err := e.goldSet.Get(pred.InstanceID)
	if err != nil {
		log.Warn("no gold context", map[string]interface{}{"error": err.Error()})
		return metrics.ErrorResult(pred.InstanceID, string(errors.CodeOf(err)))
	}

	repoURL := pred.RepoURL
	if repoURL == "" {
		repoURL = annot.RepoURL
	}
	commit := pred.Commit
	if commit == "" {
		commit = annot.Commit
	}

	repoDir, err := e.repoCache.Checkout(ctx, repoURL, commit)
	if err != nil {
		log.Error("checkout failed", map[string]interface{}{"error": err.Error()})
		return metrics.ErrorResult(pred.InstanceID, string(errors.CheckoutFailed))
	}

	steps := pred.Trajectory.Retained()
	final := pred.Trajectory.Final
	if len(steps) == 0 && (final == nil || final.Empty()) {
		log.Warn("no context extracted", nil)
		return metrics.ErrorResult(pred.InstanceID, string(errors.NoContextExtracted))
	}

	provider := symbols.NewProvider(repoDir, commit, e.scip, e.symCache)
	opt := e.cfg.MetricsOptions()
	if !e.SymbolSourceAvailable() {
		opt.Symbol = false
	}
	deriver := &location.Deriver{
		Unit:    e.cfg.SpanUnit(),
		Content: provider,
	}
	if opt.Symbol {
		deriver.Symbols = provider
	}

	var notes []string
	goldLoc, invalid := annot.Locations()
	for _, item := range invalid {
		notes = append(notes, fmt.Sprintf("gold: dropped invalid span %s:%d-%d",
			item.File, item.StartLine, item.EndLine))
	}
	goldViews := deriver.Derive(goldLoc)

	agg := &metrics.Aggregator{Deriver: deriver, Opt: opt}
	trajRes, cumulative := agg.Aggregate(steps, goldViews)

	// An explicit final context overrides the accumulated union for the
	// final metrics; trajectory metrics always come from accumulation.
	finalViews := cumulative
	if final != nil && !final.Empty() {
		finalViews = deriver.DeriveStep(*final)
	}
	finalRes := metrics.Compute(goldViews, finalViews, opt)
	// Malformed gold spans leave the line-level gold set incomplete, so
	// scores built on it would overstate coverage. The file view is unharmed
	// (file identity needs no line numbers); span and symbol are nulled.
	if len(invalid) > 0 {
		finalRes.Span = nil
		finalRes.Symbol = nil
	}

	for _, f := range goldViews.SymbolExcluded {
		notes = append(notes, "gold: no symbol table for "+f)
	}
	for _, f := range finalViews.SymbolExcluded {
		notes = append(notes, "pred: no symbol table for "+f)
	}

	editRes, editNotes := e.scoreEditLoc(annot, pred.Trajectory.Patch, deriver, opt)
	notes = append(notes, editNotes...)

	log.Debug("instance scored", map[string]interface{}{
		"steps": len(steps),
		"files": len(finalViews.Files),
	})
	return metrics.Assemble(pred.InstanceID, len(steps), finalRes, trajRes, editRes, notes)
}

// scoreEditLoc compares the predicted patch's touched spans against the gold
// init context, both translated by the shared deriver.
func (e *Evaluator) scoreEditLoc(annot *gold.Annotation, patch string,
	deriver *location.Deriver, opt metrics.Options) (*metrics.EditLocResult, []string) {
	if patch == "" {
		return nil, nil
	}

	var notes []string
	predSpans, err := diffparse.ChangedLines(patch)
	if err != nil {
		return nil, []string{"editloc: unparseable patch: " + err.Error()}
	}

	predLoc := location.NewLocationSet()
	for _, s := range predSpans {
		if !s.Valid() {
			notes = append(notes, "editloc: dropped invalid span "+s.String())
			continue
		}
		predLoc.AddRange(s.File, intervals.Range{Start: s.StartLine, End: s.EndLine})
	}

	goldLoc, invalid := annot.InitLocations()
	if len(invalid) > 0 {
		// Same rule as the final span block: an incomplete gold set cannot
		// anchor a score, so the editloc block is nulled rather than computed
		// from whatever survived.
		for _, item := range invalid {
			notes = append(notes, fmt.Sprintf("editloc: invalid gold span %s:%d-%d",
				item.File, item.StartLine, item.EndLine))
		}
		return nil, notes
	}

	goldViews := deriver.Derive(goldLoc)
	predViews := deriver.Derive(predLoc)
	return metrics.ScoreEditLoc(goldViews.Spans, predViews.Spans, opt), notes
}
