// Package predictive runs trend and anomaly detection over historical
// metric series supplied by the caller.
package predictive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/config"
	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/predict"
)

const objective = "predictive"

// Analyzer detects z-score outliers in each series and forecasts when a
// growing series crosses its capacity ceiling. Series and Capacity come
// from the caller, typically persisted snapshots of prior runs.
type Analyzer struct {
	Thresholds config.Thresholds
	// Series maps metric name to historical values, oldest first.
	Series map[string][]float64
	// Capacity maps metric name to its hard ceiling, where one exists.
	Capacity map[string]float64
}

// New builds the predictive analyzer over the given history.
func New(th config.Thresholds, series map[string][]float64, capacity map[string]float64) *Analyzer {
	return &Analyzer{Thresholds: th, Series: series, Capacity: capacity}
}

func (a *Analyzer) ObjectiveName() string              { return objective }
func (a *Analyzer) SupportedProducts() []model.Product { return nil }
func (a *Analyzer) EstimatedAPICalls() int             { return 1 }
func (a *Analyzer) RequiredPermissions() []string {
	return []string{"GET metrics"}
}

func (a *Analyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	start := time.Now()
	callsBefore := c.Limiter().Used()
	res := analyzer.NewResult(objective)

	// Current metrics anchor the forecast; absence is tolerated since the
	// history alone still supports trend analysis.
	if _, err := c.GetMetrics(ctx); err != nil && !errors.Is(err, client.ErrNotAvailable) {
		return nil, err
	}

	names := make([]string, 0, len(a.Series))
	for name := range a.Series {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := a.Series[name]
		confidence := predict.Confidence(len(values))

		if anomalies := predict.ZScoreAnomalies(values, a.Thresholds.ZScoreThreshold); len(anomalies) > 0 {
			last := anomalies[len(anomalies)-1]
			res.AddFinding(model.Finding{
				ID:                 analyzer.FindingID(objective, "anomaly", name),
				Category:           "predictive",
				Severity:           model.SeverityMedium,
				Title:              fmt.Sprintf("Anomalous readings detected in %s", name),
				Description:        fmt.Sprintf("%d of %d samples of %q deviate more than %.1f standard deviations from the mean (latest at index %d, value %.1f).", len(anomalies), len(values), name, a.Thresholds.ZScoreThreshold, last, values[last]),
				AffectedComponents: []string{model.OverallComponent},
				ConfidenceLevel:    confidence,
				Metadata:           map[string]any{"metric": name, "anomaly_indices": anomalies},
			})
		}

		ceiling, ok := a.Capacity[name]
		if !ok || len(values) < 2 {
			continue
		}
		slope := predict.Slope(predict.Series(values))
		current := values[len(values)-1]
		days := predict.TimeToThreshold(current, ceiling, slope)
		if math.IsInf(days, 1) || days > 90 {
			continue
		}

		severity := model.SeverityMedium
		if days <= 14 {
			severity = model.SeverityHigh
		}
		res.AddFinding(model.Finding{
			ID:                 analyzer.FindingID(objective, "capacity", name),
			Category:           "predictive",
			Severity:           severity,
			Title:              fmt.Sprintf("%s reaches capacity in %.0f day(s)", name, days),
			Description:        fmt.Sprintf("At the current growth of %.2f/day, %q crosses its ceiling of %.0f in %.0f day(s).", slope, name, ceiling, days),
			AffectedComponents: []string{model.OverallComponent},
			ConfidenceLevel:    confidence,
			Metadata:           map[string]any{"metric": name, "days_to_capacity": days, "slope_per_day": slope},
		})
	}

	res.SetMeta("series_count", len(a.Series))
	analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
	return res, nil
}
