// Package search reviews Cribl Search job history and saved searches.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/model"
)

const objective = "search"

// longRunningSeconds marks jobs that likely scan unbounded time ranges.
const longRunningSeconds = 600

// Analyzer flags failed and long-running search jobs and saved searches
// without a schedule owner.
type Analyzer struct{}

// New builds the search analyzer.
func New() *Analyzer { return &Analyzer{} }

func (a *Analyzer) ObjectiveName() string { return objective }
func (a *Analyzer) SupportedProducts() []model.Product {
	return []model.Product{model.ProductSearch}
}
func (a *Analyzer) EstimatedAPICalls() int { return 2 }
func (a *Analyzer) RequiredPermissions() []string {
	return []string{"GET search jobs", "GET saved searches"}
}

func (a *Analyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	start := time.Now()
	callsBefore := c.Limiter().Used()
	res := analyzer.NewResult(objective)

	jobs, err := c.GetSearchJobs(ctx)
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, job := range jobs {
		status := analyzer.Str(job.Raw, "status", "state")
		switch status {
		case "failed", "error":
			failed++
			res.AddFinding(model.Finding{
				ID:                 analyzer.FindingID(objective, "failed-job", job.ID),
				Category:           "search",
				Severity:           model.SeverityMedium,
				Title:              fmt.Sprintf("Search job %s failed", job.ID),
				Description:        fmt.Sprintf("Job %q ended in state %q. Repeated failures usually point at dataset permissions or malformed queries.", job.ID, status),
				AffectedComponents: []string{job.ID},
				ConfidenceLevel:    model.ConfidenceHigh,
			})
		}

		if secs := analyzer.Num(job.Raw, "elapsedSecs", "elapsed_secs", "durationSecs"); secs >= longRunningSeconds {
			res.AddFinding(model.Finding{
				ID:                 analyzer.FindingID(objective, "long-job", job.ID),
				Category:           "search",
				Severity:           model.SeverityLow,
				Title:              fmt.Sprintf("Search job %s ran for %.0f seconds", job.ID, secs),
				Description:        "Long scans usually mean an unbounded time range or a missing dataset filter; they consume shared executor capacity.",
				AffectedComponents: []string{job.ID},
				ConfidenceLevel:    model.ConfidenceMedium,
				RemediationSteps:   []string{"Narrow the time range or add a dataset filter to the query"},
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	saved, err := c.GetSavedSearches(ctx)
	switch {
	case errors.Is(err, client.ErrNotAvailable):
		res.AddFinding(analyzer.DataUnavailableFinding(objective, "saved-searches", "/api/v1/m/main/search/saved-searches"))
	case err != nil:
		return nil, err
	default:
		for _, s := range saved {
			if sched := analyzer.SubMap(s.Raw, "schedule"); sched != nil && !analyzer.Bool(sched, "enabled", true) {
				res.AddFinding(model.Finding{
					ID:                 analyzer.FindingID(objective, "disabled-schedule", s.ID),
					Category:           "search",
					Severity:           model.SeverityLow,
					Title:              fmt.Sprintf("Saved search %s has a disabled schedule", s.ID),
					Description:        "A scheduled search that never runs silently stops feeding whatever consumed its results.",
					AffectedComponents: []string{s.ID},
					ConfidenceLevel:    model.ConfidenceMedium,
				})
			}
		}
		res.SetMeta("saved_search_count", len(saved))
	}

	res.SetMeta("job_count", len(jobs))
	res.SetMeta("failed_job_count", failed)
	analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
	return res, nil
}
