package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// AnalysisRun is the top-level artifact of one end-to-end analysis.
type AnalysisRun struct {
	RunID               string                     `json:"run_id"`
	DeploymentID        string                     `json:"deployment_id"`
	ProductType         Product                    `json:"product_type"`
	ProductVersion      string                     `json:"product_version,omitempty"`
	StartedAt           time.Time                  `json:"started_at"`
	CompletedAt         *time.Time                 `json:"completed_at,omitempty"`
	Status              RunStatus                  `json:"status"`
	ObjectivesRequested []string                   `json:"objectives_requested"`
	ObjectivesCompleted []string                   `json:"objectives_completed"`
	ObjectivesFailed    []string                   `json:"objectives_failed"`
	Results             map[string]*AnalyzerResult `json:"results"`
	HealthScore         int                        `json:"health_score"`
	APICallsUsed        int                        `json:"api_calls_used"`
	APICallsBudget      int                        `json:"api_calls_budget"`
	DurationSeconds     float64                    `json:"duration_seconds"`
	FindingsFlat        []Finding                  `json:"findings_flat"`
	RecommendationsFlat []Recommendation           `json:"recommendations_flat"`
	Partial             bool                       `json:"partial"`
}

// NewRun creates a pending run with a fresh run id, UTC start time and
// the requested objectives recorded.
func NewRun(deploymentID string, objectives []string, budget int) *AnalysisRun {
	return &AnalysisRun{
		RunID:               uuid.NewString(),
		DeploymentID:        deploymentID,
		StartedAt:           time.Now().UTC(),
		Status:              StatusPending,
		ObjectivesRequested: append([]string(nil), objectives...),
		ObjectivesCompleted: []string{},
		ObjectivesFailed:    []string{},
		Results:             map[string]*AnalyzerResult{},
		APICallsBudget:      budget,
	}
}

// Finalize stamps completion time, derives the flattened finding and
// recommendation views and the partial flag. Flattened items follow the
// alphabetical objective order so the view is deterministic.
func (r *AnalysisRun) Finalize(completed time.Time) {
	t := completed.UTC()
	r.CompletedAt = &t
	r.DurationSeconds = t.Sub(r.StartedAt).Seconds()
	r.Partial = len(r.ObjectivesFailed) > 0 && len(r.ObjectivesCompleted) > 0

	r.FindingsFlat = []Finding{}
	r.RecommendationsFlat = []Recommendation{}
	for _, name := range r.sortedObjectives() {
		res := r.Results[name]
		r.FindingsFlat = append(r.FindingsFlat, res.Findings...)
		r.RecommendationsFlat = append(r.RecommendationsFlat, res.Recommendations...)
	}
}

func (r *AnalysisRun) sortedObjectives() []string {
	names := make([]string, 0, len(r.Results))
	for name := range r.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilterByProduct returns a shallow copy of the run with every result
// filtered down to items relevant for product p.
func (r *AnalysisRun) FilterByProduct(p Product) *AnalysisRun {
	out := *r
	out.Results = make(map[string]*AnalyzerResult, len(r.Results))
	for name, res := range r.Results {
		out.Results[name] = res.FilterByProduct(p)
	}
	out.Finalize(r.StartedAt.Add(time.Duration(r.DurationSeconds * float64(time.Second))))
	if r.CompletedAt != nil {
		out.CompletedAt = r.CompletedAt
		out.DurationSeconds = r.DurationSeconds
	}
	return &out
}

// Validate enforces the run invariants.
func (r *AnalysisRun) Validate() error {
	if r.APICallsUsed > r.APICallsBudget {
		return fmt.Errorf("run %s: api_calls_used %d exceeds budget %d", r.RunID, r.APICallsUsed, r.APICallsBudget)
	}
	switch r.Status {
	case StatusCompleted:
		if len(r.ObjectivesFailed) != 0 {
			return fmt.Errorf("run %s: completed run has failed objectives", r.RunID)
		}
	case StatusPartial:
		if len(r.ObjectivesCompleted) == 0 || len(r.ObjectivesFailed) == 0 {
			return fmt.Errorf("run %s: partial run needs both completed and failed objectives", r.RunID)
		}
	case StatusFailed:
		if len(r.ObjectivesCompleted) != 0 {
			return fmt.Errorf("run %s: failed run has completed objectives", r.RunID)
		}
	}

	ids := map[string]bool{}
	for _, res := range r.Results {
		for _, f := range res.Findings {
			if ids[f.ID] {
				return fmt.Errorf("run %s: duplicate finding id %q", r.RunID, f.ID)
			}
			ids[f.ID] = true
		}
	}
	for _, res := range r.Results {
		for _, rec := range res.Recommendations {
			for _, fid := range rec.RelatedFindingIDs {
				if !ids[fid] {
					return fmt.Errorf("run %s: recommendation %q references unknown finding %q", r.RunID, rec.ID, fid)
				}
			}
		}
	}
	return nil
}
