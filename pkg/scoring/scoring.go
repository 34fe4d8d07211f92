// Package scoring computes the deterministic 0-100 health score of a run.
// The score is a pure function of the flattened finding list and the run
// status: equal inputs always produce equal scores.
package scoring

import "github.com/quietops/criblscope/pkg/model"

// Deduction per finding severity.
var deductions = map[model.Severity]int{
	model.SeverityCritical: 25,
	model.SeverityHigh:     10,
	model.SeverityMedium:   4,
	model.SeverityLow:      1,
	model.SeverityInfo:     0,
}

const partialPenalty = 5

// Band is the informational health band of a score.
type Band string

const (
	BandExcellent Band = "excellent" // 90-100
	BandGood      Band = "good"      // 70-89
	BandFair      Band = "fair"      // 50-69
	BandPoor      Band = "poor"      // 0-49
)

// Score computes the health score for findings under the given status.
func Score(findings []model.Finding, status model.RunStatus) int {
	if status == model.StatusFailed {
		return 0
	}

	deducted := 0
	for _, f := range findings {
		deducted += deductions[f.Severity]
	}
	if deducted > 100 {
		deducted = 100
	}

	score := 100 - deducted
	if status == model.StatusPartial {
		score -= partialPenalty
	}

	return clamp(score)
}

// ScoreRun computes and returns the score of a finalized run.
func ScoreRun(run *model.AnalysisRun) int {
	return Score(run.FindingsFlat, run.Status)
}

// BandOf maps a score to its informational band.
func BandOf(score int) Band {
	switch {
	case score >= 90:
		return BandExcellent
	case score >= 70:
		return BandGood
	case score >= 50:
		return BandFair
	default:
		return BandPoor
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
