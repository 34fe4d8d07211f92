package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkFinding(id string, sev Severity, tags ...Product) Finding {
	return Finding{
		ID:                 id,
		Category:           "health",
		Severity:           sev,
		Title:              "test finding " + id,
		AffectedComponents: []string{OverallComponent},
		ProductTags:        tags,
	}
}

func TestFindingValidate(t *testing.T) {
	f := mkFinding("f-1", SeverityHigh)
	require.NoError(t, f.Validate())

	f.Severity = "urgent"
	require.Error(t, f.Validate())

	f = mkFinding("f-2", SeverityLow)
	f.AffectedComponents = nil
	require.Error(t, f.Validate())

	f = mkFinding("", SeverityLow)
	require.Error(t, f.Validate())
}

func TestSortFindingsBySeverityStable(t *testing.T) {
	r := &AnalyzerResult{Findings: []Finding{
		mkFinding("a", SeverityLow),
		mkFinding("b", SeverityCritical),
		mkFinding("c", SeverityLow),
		mkFinding("d", SeverityHigh),
	}}
	r.SortFindingsBySeverity()

	ids := []string{}
	for _, f := range r.Findings {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)

	// Idempotent: a second sort must not reorder equal severities.
	r.SortFindingsBySeverity()
	ids2 := []string{}
	for _, f := range r.Findings {
		ids2 = append(ids2, f.ID)
	}
	assert.Equal(t, ids, ids2)
}

func TestSortRecommendationsByPriority(t *testing.T) {
	r := &AnalyzerResult{Recommendations: []Recommendation{
		{ID: "r1", Type: "cost", Priority: PriorityP2, Title: "t"},
		{ID: "r2", Type: "cost", Priority: PriorityP0, Title: "t"},
		{ID: "r3", Type: "cost", Priority: PriorityP3, Title: "t"},
	}}
	r.SortRecommendationsByPriority()
	assert.Equal(t, "r2", r.Recommendations[0].ID)
	assert.Equal(t, "r3", r.Recommendations[2].ID)
}

func TestFilterByProduct(t *testing.T) {
	r := &AnalyzerResult{
		ObjectiveName: "health",
		Success:       true,
		Findings: []Finding{
			mkFinding("universal", SeverityLow),
			mkFinding("edge-only", SeverityHigh, ProductEdge),
			mkFinding("stream-only", SeverityHigh, ProductStream),
		},
	}

	edge := r.FilterByProduct(ProductEdge)
	require.Len(t, edge.Findings, 2)
	for _, f := range edge.Findings {
		assert.True(t, f.AppliesTo(ProductEdge))
	}

	// Idempotent.
	again := edge.FilterByProduct(ProductEdge)
	assert.Equal(t, edge.Findings, again.Findings)

	// Filter and sort commute.
	sorted := r.FilterByProduct(ProductEdge)
	sorted.SortFindingsBySeverity()

	presorted := &AnalyzerResult{Findings: append([]Finding(nil), r.Findings...)}
	presorted.SortFindingsBySeverity()
	other := presorted.FilterByProduct(ProductEdge)
	assert.Equal(t, sorted.Findings, other.Findings)
}

func TestRunInvariants(t *testing.T) {
	run := NewRun("prod-leader", []string{"health"}, 100)
	require.NotEmpty(t, run.RunID)
	assert.Equal(t, StatusPending, run.Status)

	run.Status = StatusCompleted
	run.ObjectivesFailed = []string{"health"}
	require.Error(t, run.Validate())

	run.Status = StatusPartial
	run.ObjectivesCompleted = []string{}
	require.Error(t, run.Validate())

	run.Status = StatusFailed
	run.ObjectivesCompleted = []string{"health"}
	require.Error(t, run.Validate())

	run.ObjectivesCompleted = []string{}
	run.ObjectivesFailed = []string{}
	run.APICallsUsed = 101
	require.Error(t, run.Validate())
}

func TestRunDuplicateFindingIDs(t *testing.T) {
	run := NewRun("d", []string{"health", "config"}, 100)
	run.Results["health"] = &AnalyzerResult{Findings: []Finding{mkFinding("dup", SeverityLow)}}
	run.Results["config"] = &AnalyzerResult{Findings: []Finding{mkFinding("dup", SeverityLow)}}
	require.Error(t, run.Validate())
}

func TestRunRelatedFindingResolution(t *testing.T) {
	run := NewRun("d", []string{"cost"}, 100)
	run.Results["cost"] = &AnalyzerResult{
		Findings: []Finding{mkFinding("lic-1", SeverityCritical)},
		Recommendations: []Recommendation{
			{ID: "rec-1", Type: "cost", Priority: PriorityP0, Title: "t", RelatedFindingIDs: []string{"lic-1"}},
		},
	}
	require.NoError(t, run.Validate())

	run.Results["cost"].Recommendations[0].RelatedFindingIDs = []string{"ghost"}
	require.Error(t, run.Validate())
}
