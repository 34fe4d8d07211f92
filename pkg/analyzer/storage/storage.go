// Package storage looks for volume-reduction opportunities on
// high-throughput destinations and prices their savings.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/config"
	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/pricing"
)

const objective = "storage"

// Reduction assumptions behind the priced recommendations.
const (
	samplingReductionPct    = 30
	filteringReductionPct   = 20
	aggregationReductionPct = 70
)

// Analyzer cross-references destination volume metrics with the price
// table to surface sampling, filtering and aggregation opportunities.
type Analyzer struct {
	Thresholds config.Thresholds
	Pricing    *pricing.Table
}

// New builds the storage analyzer.
func New(th config.Thresholds, table *pricing.Table) *Analyzer {
	if table == nil {
		table = pricing.DefaultTable()
	}
	return &Analyzer{Thresholds: th, Pricing: table}
}

func (a *Analyzer) ObjectiveName() string              { return objective }
func (a *Analyzer) SupportedProducts() []model.Product { return nil }
func (a *Analyzer) EstimatedAPICalls() int             { return 2 }
func (a *Analyzer) RequiredPermissions() []string {
	return []string{"GET outputs", "GET metrics"}
}

func (a *Analyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	start := time.Now()
	callsBefore := c.Limiter().Used()
	res := analyzer.NewResult(objective)

	outputs, err := c.GetOutputs(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics, err := c.GetMetrics(ctx)
	switch {
	case errors.Is(err, client.ErrNotAvailable):
		res.AddFinding(analyzer.DataUnavailableFinding(objective, "volume-metrics", "/api/v1/metrics"))
		analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
		return res, nil
	case err != nil:
		return nil, err
	}

	volumes := analyzer.SubMap(metrics, "outputs")
	var totalGB float64

	for _, out := range outputs {
		per, ok := volumes[out.ID].(map[string]any)
		if !ok {
			continue
		}
		gbPerDay := analyzer.Num(per, "gb_per_day", "gbPerDay")
		if gbPerDay <= 0 {
			continue
		}
		totalGB += gbPerDay
		destType := analyzer.Str(out.Raw, "type")

		if gbPerDay >= a.Thresholds.SamplingMinGB {
			a.recommend(res, out.ID, destType, gbPerDay, "sampling",
				model.PriorityP1, samplingReductionPct,
				fmt.Sprintf("Sample high-volume traffic to %s", out.ID),
				"Verbose event classes at this volume usually tolerate 10:1 sampling with no loss of analytical value.")
		} else if gbPerDay >= a.Thresholds.FilteringMinGB {
			a.recommend(res, out.ID, destType, gbPerDay, "filtering",
				model.PriorityP2, filteringReductionPct,
				fmt.Sprintf("Filter low-value events sent to %s", out.ID),
				"Dropping debug and heartbeat events typically trims a fifth of the volume.")
		}

		if destType == "prometheus" || destType == "statsd" || destType == "graphite" {
			if gbPerDay >= a.Thresholds.AggregationMinGB {
				a.recommend(res, out.ID, destType, gbPerDay, "aggregation",
					model.PriorityP2, aggregationReductionPct,
					fmt.Sprintf("Aggregate metrics before sending to %s", out.ID),
					"Pre-aggregating raw metric points collapses most of the cardinality at the source.")
			}
		}
	}

	res.SetMeta("total_gb_per_day", totalGB)
	res.SetMeta("destination_count", len(outputs))
	analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
	return res, nil
}

func (a *Analyzer) recommend(res *model.AnalyzerResult, outputID, destType string, gbPerDay float64, technique string, priority model.Priority, reductionPct float64, title, rationale string) {
	savings := a.Pricing.AnnualSavingsUSD(destType, gbPerDay, reductionPct)

	findingID := analyzer.FindingID(objective, technique, outputID)
	res.AddFinding(model.Finding{
		ID:                 findingID,
		Category:           "storage",
		Severity:           model.SeverityMedium,
		Title:              fmt.Sprintf("%.0f GB/day flowing to %s without %s", gbPerDay, outputID, technique),
		Description:        fmt.Sprintf("Destination %q receives %.0f GB/day; applying %s would reduce it by about %.0f%%.", outputID, gbPerDay, technique, reductionPct),
		AffectedComponents: []string{outputID},
		ConfidenceLevel:    model.ConfidenceMedium,
		Metadata:           map[string]any{"gb_per_day": gbPerDay, "destination_type": destType},
	})

	rec := model.Recommendation{
		ID:          analyzer.FindingID(objective, "rec", technique, outputID),
		Type:        technique,
		Priority:    priority,
		Title:       title,
		Description: fmt.Sprintf("Apply %s to the pipeline feeding %q to reduce its %.0f GB/day volume by roughly %.0f%%.", technique, outputID, gbPerDay, reductionPct),
		Rationale:   rationale,
		ImplementationSteps: []string{
			fmt.Sprintf("Profile the event mix flowing to %q", outputID),
			fmt.Sprintf("Add a %s function to the feeding pipeline", technique),
			"Validate downstream dashboards still resolve",
		},
		ImplementationEffort: model.EffortMedium,
		BeforeState:          fmt.Sprintf("%.0f GB/day to %s", gbPerDay, outputID),
		AfterState:           fmt.Sprintf("~%.0f GB/day after %s", gbPerDay*(100-reductionPct)/100, technique),
		RelatedFindingIDs:    []string{findingID},
	}
	if savings > 0 {
		rec.ImpactEstimate = &model.ImpactEstimate{
			CostImpact:           fmt.Sprintf("~$%.0f/year saved at %s ingest rates", savings, destType),
			CostSavingsAnnualUSD: &savings,
			TimeToValue:          "days",
		}
	}
	res.AddRecommendation(rec)
}
