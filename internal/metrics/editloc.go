package metrics

import (
	"crev/internal/intervals"
	"crev/internal/output"
)

// EditLocResult scores how well the predicted diff's touched locations match
// the gold diff's. The formulas are the span coverage/precision formulas;
// the fields are named recall/precision because edit localization is
// conventionally reported that way.
type EditLocResult struct {
	Recall       float64 `json:"recall"`
	Precision    float64 `json:"precision"`
	Intersection int     `json:"intersection"`
	GoldSize     int     `json:"gold_size"`
	PredSize     int     `json:"pred_size"`
}

// ScoreEditLoc compares predicted edit spans against gold edit spans, both
// keyed by repository-relative path. No trajectory concept applies: this is
// a single final comparison, independent of the view history.
func ScoreEditLoc(gold, pred map[string]intervals.Set, opt Options) *EditLocResult {
	inter := 0
	for f, predSet := range pred {
		if goldSet, ok := gold[f]; ok {
			inter += intervals.IntersectionLength(goldSet, predSet)
		}
	}

	goldSize, predSize := totalLength(gold), totalLength(pred)
	recall, precision := opt.CoveragePrecision(inter, goldSize, predSize)
	return &EditLocResult{
		Recall:       output.RoundFloat(recall),
		Precision:    output.RoundFloat(precision),
		Intersection: inter,
		GoldSize:     goldSize,
		PredSize:     predSize,
	}
}

func totalLength(spans map[string]intervals.Set) int {
	total := 0
	for _, set := range spans {
		total += set.TotalLength()
	}
	return total
}
