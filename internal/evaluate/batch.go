package evaluate

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"crev/internal/logging"
	"crev/internal/metrics"
	"crev/internal/trajparse"
)

// BatchResult is the outcome of one evaluation run: per-instance records in
// input order plus the cross-instance summary.
type BatchResult struct {
	RunID   string                    `json:"run_id"`
	Results []*metrics.InstanceResult `json:"results"`
	Summary *Summary                  `json:"summary"`
}

// Runner fans instances out over a worker pool.
type Runner struct {
	Eval    *Evaluator
	Workers int
	Logger  *logging.Logger
}

// Run evaluates all predictions and aggregates the results. Output order
// matches input order regardless of worker scheduling.
func (r *Runner) Run(ctx context.Context, preds []*trajparse.Prediction) *BatchResult {
	runID := uuid.New().String()
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(preds) {
		workers = len(preds)
	}

	r.Logger.Info("starting evaluation run", map[string]interface{}{
		"run_id":    runID,
		"instances": len(preds),
		"workers":   workers,
	})

	results := make([]*metrics.InstanceResult, len(preds))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.Eval.EvaluateInstance(ctx, preds[i])
			}
		}()
	}
feed:
	for i := range preds {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	// Cancellation can leave trailing nil slots; mark them.
	for i, res := range results {
		if res == nil {
			results[i] = metrics.ErrorResult(preds[i].InstanceID, "cancelled")
		}
	}

	return &BatchResult{
		RunID:   runID,
		Results: results,
		Summary: Summarize(results, r.Eval.Options()),
	}
}

// CoveragePair is an aggregated coverage/precision pair.
type CoveragePair struct {
	Coverage  float64 `json:"coverage"`
	Precision float64 `json:"precision"`
}

// EditLocPair is the aggregated edit-localization scores.
type EditLocPair struct {
	Recall    float64 `json:"recall"`
	Precision float64 `json:"precision"`
}

// Summary aggregates instance records. Final-context and EditLoc scores are
// micro-averaged from the raw counts; trajectory scores are macro-averaged,
// since AUC and redundancy have no meaningful counts to pool.
type Summary struct {
	NumValid int `json:"num_valid"`
	NumTotal int `json:"num_total"`

	Final          map[string]CoveragePair `json:"final"`
	TrajAUC        map[string]float64      `json:"traj_auc"`
	TrajRedundancy map[string]float64      `json:"traj_redundancy"`
	EditLoc        *EditLocPair            `json:"editloc,omitempty"`
}

// Summarize computes the batch summary over instance records using the same
// metric options the instances were scored with, so vacuous-case policies
// carry through to the pooled ratios. Instances with errors count toward the
// total only; nulled granularity blocks are skipped per granularity.
func Summarize(results []*metrics.InstanceResult, opt metrics.Options) *Summary {
	s := &Summary{
		NumTotal:       len(results),
		Final:          make(map[string]CoveragePair),
		TrajAUC:        make(map[string]float64),
		TrajRedundancy: make(map[string]float64),
	}

	type counts struct{ inter, gold, pred int }
	finalCounts := make(map[string]*counts)
	aucSum := make(map[string]float64)
	aucN := make(map[string]int)
	redSum := make(map[string]float64)
	redN := make(map[string]int)
	var edit counts
	editSeen := false

	for _, r := range results {
		if r.Error != "" {
			continue
		}
		s.NumValid++

		if r.Final != nil {
			blocks := map[string]*metrics.GranularityResult{
				metrics.GranFile:   r.Final.File,
				metrics.GranSymbol: r.Final.Symbol,
				metrics.GranSpan:   r.Final.Span,
			}
			for gran, block := range blocks {
				if block == nil {
					continue
				}
				c := finalCounts[gran]
				if c == nil {
					c = &counts{}
					finalCounts[gran] = c
				}
				c.inter += block.Intersection
				c.gold += block.GoldSize
				c.pred += block.PredSize
			}
		}

		if r.Trajectory != nil {
			for gran, v := range r.Trajectory.AUCCoverage {
				aucSum[gran] += v
				aucN[gran]++
			}
			for gran, v := range r.Trajectory.Redundancy {
				redSum[gran] += v
				redN[gran]++
			}
		}

		if r.EditLoc != nil {
			editSeen = true
			edit.inter += r.EditLoc.Intersection
			edit.gold += r.EditLoc.GoldSize
			edit.pred += r.EditLoc.PredSize
		}
	}

	for gran, c := range finalCounts {
		cov, prec := opt.CoveragePrecision(c.inter, c.gold, c.pred)
		s.Final[gran] = CoveragePair{Coverage: cov, Precision: prec}
	}
	for gran, n := range aucN {
		s.TrajAUC[gran] = aucSum[gran] / float64(n)
	}
	for gran, n := range redN {
		s.TrajRedundancy[gran] = redSum[gran] / float64(n)
	}
	if editSeen {
		recall, prec := opt.CoveragePrecision(edit.inter, edit.gold, edit.pred)
		s.EditLoc = &EditLocPair{Recall: recall, Precision: prec}
	}
	return s
}
