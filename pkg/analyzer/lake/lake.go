// Package lake inspects Cribl Lake datasets and lakehouses for
// retention and provisioning problems.
package lake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/model"
)

const objective = "lake"

// Retention bounds in days. Below the minimum data disappears before
// most investigations start; above the maximum storage cost dominates.
const (
	minRetentionDays = 7
	maxRetentionDays = 365
)

// Analyzer reviews dataset retention windows and lakehouse states.
type Analyzer struct{}

// New builds the lake analyzer.
func New() *Analyzer { return &Analyzer{} }

func (a *Analyzer) ObjectiveName() string { return objective }
func (a *Analyzer) SupportedProducts() []model.Product {
	return []model.Product{model.ProductLake}
}
func (a *Analyzer) EstimatedAPICalls() int { return 2 }
func (a *Analyzer) RequiredPermissions() []string {
	return []string{"GET lake datasets", "GET lakehouses"}
}

func (a *Analyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	start := time.Now()
	callsBefore := c.Limiter().Used()
	res := analyzer.NewResult(objective)

	datasets, err := c.GetLakeDatasets(ctx)
	if err != nil {
		return nil, err
	}

	for _, ds := range datasets {
		retention := analyzer.Num(ds.Raw, "retentionPeriodInDays", "retention_days")
		switch {
		case retention <= 0:
			res.AddFinding(model.Finding{
				ID:                 analyzer.FindingID(objective, "no-retention", ds.ID),
				Category:           "lake",
				Severity:           model.SeverityMedium,
				Title:              fmt.Sprintf("Dataset %s has no retention policy", ds.ID),
				Description:        "Without a retention window the dataset grows without bound.",
				AffectedComponents: []string{ds.ID},
				ConfidenceLevel:    model.ConfidenceHigh,
				RemediationSteps:   []string{fmt.Sprintf("Set a retention period on dataset %q", ds.ID)},
			})
		case retention < minRetentionDays:
			res.AddFinding(model.Finding{
				ID:                 analyzer.FindingID(objective, "short-retention", ds.ID),
				Category:           "lake",
				Severity:           model.SeverityLow,
				Title:              fmt.Sprintf("Dataset %s retains data for only %.0f day(s)", ds.ID, retention),
				Description:        fmt.Sprintf("Retention below %d days loses data before most investigations begin.", minRetentionDays),
				AffectedComponents: []string{ds.ID},
				ConfidenceLevel:    model.ConfidenceMedium,
			})
		case retention > maxRetentionDays:
			res.AddFinding(model.Finding{
				ID:                 analyzer.FindingID(objective, "long-retention", ds.ID),
				Category:           "lake",
				Severity:           model.SeverityLow,
				Title:              fmt.Sprintf("Dataset %s retains data for %.0f days", ds.ID, retention),
				Description:        fmt.Sprintf("Retention beyond %d days usually outlives any compliance requirement and keeps paying for storage.", maxRetentionDays),
				AffectedComponents: []string{ds.ID},
				ConfidenceLevel:    model.ConfidenceLow,
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lakehouses, err := c.GetLakehouses(ctx)
	switch {
	case errors.Is(err, client.ErrNotAvailable):
		res.AddFinding(analyzer.DataUnavailableFinding(objective, "lakehouses", "/api/v1/products/lake/lakehouses"))
	case err != nil:
		return nil, err
	default:
		for _, lh := range lakehouses {
			state := analyzer.Str(lh.Raw, "state", "status")
			if state == "" || state == "ready" || state == "running" {
				continue
			}
			res.AddFinding(model.Finding{
				ID:                 analyzer.FindingID(objective, "lakehouse", lh.ID),
				Category:           "lake",
				Severity:           model.SeverityHigh,
				Title:              fmt.Sprintf("Lakehouse %s is %s", lh.ID, state),
				Description:        fmt.Sprintf("Lakehouse %q is not serving queries while in state %q.", lh.ID, state),
				AffectedComponents: []string{lh.ID},
				ConfidenceLevel:    model.ConfidenceHigh,
			})
		}
		res.SetMeta("lakehouse_count", len(lakehouses))
	}

	res.SetMeta("dataset_count", len(datasets))
	analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
	return res, nil
}
