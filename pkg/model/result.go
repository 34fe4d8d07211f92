package model

import "sort"

// AnalyzerResult is the output of one analyzer for one objective.
type AnalyzerResult struct {
	ObjectiveName   string           `json:"objective_name"`
	Success         bool             `json:"success"`
	DurationSeconds float64          `json:"duration_seconds"`
	APICallsUsed    int              `json:"api_calls_used"`
	Findings        []Finding        `json:"findings"`
	Recommendations []Recommendation `json:"recommendations"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// SortFindingsBySeverity orders findings in place, critical first.
// The sort is stable: equal-severity findings keep their input order.
func (r *AnalyzerResult) SortFindingsBySeverity() {
	sort.SliceStable(r.Findings, func(i, j int) bool {
		return r.Findings[i].Severity.Rank() > r.Findings[j].Severity.Rank()
	})
}

// SortRecommendationsByPriority orders recommendations in place, p0 first.
func (r *AnalyzerResult) SortRecommendationsByPriority() {
	sort.SliceStable(r.Recommendations, func(i, j int) bool {
		return r.Recommendations[i].Priority.Rank() > r.Recommendations[j].Priority.Rank()
	})
}

// FilterByProduct returns a new result holding only the findings and
// recommendations tagged for product p. Untagged items are universal and
// always retained.
func (r *AnalyzerResult) FilterByProduct(p Product) *AnalyzerResult {
	out := &AnalyzerResult{
		ObjectiveName:   r.ObjectiveName,
		Success:         r.Success,
		DurationSeconds: r.DurationSeconds,
		APICallsUsed:    r.APICallsUsed,
		Metadata:        r.Metadata,
	}
	for _, f := range r.Findings {
		if f.AppliesTo(p) {
			out.Findings = append(out.Findings, f)
		}
	}
	for _, rec := range r.Recommendations {
		if rec.AppliesTo(p) {
			out.Recommendations = append(out.Recommendations, rec)
		}
	}
	return out
}

// AddFinding appends a finding.
func (r *AnalyzerResult) AddFinding(f Finding) {
	r.Findings = append(r.Findings, f)
}

// AddRecommendation appends a recommendation.
func (r *AnalyzerResult) AddRecommendation(rec Recommendation) {
	r.Recommendations = append(r.Recommendations, rec)
}

// SetMeta records a metadata key on the result.
func (r *AnalyzerResult) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	r.Metadata[key] = value
}
