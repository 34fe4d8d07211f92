// Package cost tracks license consumption against allocation and
// forecasts exhaustion from daily-usage history.
package cost

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/config"
	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/predict"
	"github.com/quietops/criblscope/pkg/pricing"
)

const objective = "cost"

// Analyzer reads license allocation and usage. History, when supplied by
// the caller, drives the days-to-exhaustion forecast.
type Analyzer struct {
	Thresholds config.Thresholds
	Pricing    *pricing.Table
	// History is prior daily usage in GB, oldest first. When set, its
	// last value takes precedence over the live used_gb_per_day reading.
	History []float64
}

// New builds the cost analyzer.
func New(th config.Thresholds, table *pricing.Table) *Analyzer {
	if table == nil {
		table = pricing.DefaultTable()
	}
	return &Analyzer{Thresholds: th, Pricing: table}
}

func (a *Analyzer) ObjectiveName() string              { return objective }
func (a *Analyzer) SupportedProducts() []model.Product { return nil }
func (a *Analyzer) EstimatedAPICalls() int             { return 1 }
func (a *Analyzer) RequiredPermissions() []string {
	return []string{"GET system/licenses"}
}

func (a *Analyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	start := time.Now()
	callsBefore := c.Limiter().Used()
	res := analyzer.NewResult(objective)

	license, err := c.GetLicenseInfo(ctx)
	switch {
	case errors.Is(err, client.ErrNotAvailable):
		res.AddFinding(analyzer.DataUnavailableFinding(objective, "license", "/api/v1/system/licenses"))
		analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
		return res, nil
	case err != nil:
		return nil, err
	}

	allocated := analyzer.Num(license, "allocated_gb_per_day", "allocatedGBPerDay")
	used := analyzer.Num(license, "used_gb_per_day", "usedGBPerDay")
	if len(a.History) > 0 {
		used = a.History[len(a.History)-1]
	}

	res.SetMeta("allocated_gb_per_day", allocated)
	res.SetMeta("used_gb_per_day", used)

	if allocated <= 0 {
		analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
		return res, nil
	}

	usedPct := used / allocated * 100
	res.SetMeta("used_percent", usedPct)

	if usedPct >= a.Thresholds.LicenseHighPercent {
		severity := model.SeverityHigh
		if usedPct >= a.Thresholds.LicenseCriticalPercent {
			severity = model.SeverityCritical
		}
		res.AddFinding(model.Finding{
			ID:                 analyzer.FindingID(objective, "license-usage"),
			Category:           "cost",
			Severity:           severity,
			Title:              fmt.Sprintf("License usage at %.0f%% of allocation", usedPct),
			Description:        fmt.Sprintf("Daily ingest of %.0f GB is consuming %.0f%% of the %.0f GB/day license.", used, usedPct, allocated),
			AffectedComponents: []string{model.OverallComponent},
			ConfidenceLevel:    model.ConfidenceHigh,
			RemediationSteps: []string{
				"Reduce ingest with sampling or filtering",
				"Negotiate a larger allocation before overage charges apply",
			},
		})
	}

	a.forecast(res, allocated, used)

	analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
	return res, nil
}

func (a *Analyzer) forecast(res *model.AnalyzerResult, allocated, used float64) {
	if len(a.History) < 2 {
		return
	}

	slope := predict.Slope(predict.Series(a.History))
	days := predict.TimeToThreshold(used, allocated, slope)
	confidence := predict.Confidence(len(a.History))

	res.SetMeta("usage_slope_gb_per_day", slope)
	if !math.IsInf(days, 1) {
		res.SetMeta("days_to_exhaustion", days)
	}

	if math.IsInf(days, 1) || days > a.Thresholds.LicenseHighDays {
		return
	}

	severity := model.SeverityHigh
	priority := model.PriorityP1
	if days <= a.Thresholds.LicenseCriticalDays {
		severity = model.SeverityCritical
		priority = model.PriorityP0
	}

	findingID := analyzer.FindingID(objective, "license-exhaustion")
	res.AddFinding(model.Finding{
		ID:                 findingID,
		Category:           "cost",
		Severity:           severity,
		Title:              fmt.Sprintf("License exhaustion forecast in %.0f day(s)", days),
		Description:        fmt.Sprintf("Usage is growing %.1f GB/day; at that rate the %.0f GB/day allocation is exhausted in %.0f day(s).", slope, allocated, days),
		AffectedComponents: []string{model.OverallComponent},
		ConfidenceLevel:    confidence,
		Metadata:           map[string]any{"days_to_exhaustion": days, "slope_gb_per_day": slope},
	})

	res.AddRecommendation(model.Recommendation{
		ID:          analyzer.FindingID(objective, "rec", "license-exhaustion"),
		Type:        "capacity",
		Priority:    priority,
		Title:       "Act on license consumption before allocation is exhausted",
		Description: "Cut ingest growth with sampling and filtering, or expand the license before the forecast exhaustion date.",
		Rationale:   fmt.Sprintf("Daily usage trend of +%.1f GB/day reaches the allocation in %.0f day(s).", slope, days),
		ImplementationSteps: []string{
			"Identify the highest-volume sources from recent usage",
			"Apply sampling or filtering to low-value events",
			"If volume is legitimate, expand the allocation",
		},
		ImplementationEffort: model.EffortMedium,
		BeforeState:          fmt.Sprintf("Allocation exhausted in %.0f day(s)", days),
		AfterState:           "Usage trend flat or allocation expanded with headroom",
		RelatedFindingIDs:    []string{findingID},
	})
}
