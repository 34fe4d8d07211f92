// Package configcheck validates the routing configuration: routes,
// pipelines and outputs must reference each other consistently.
package configcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/model"
)

const objective = "config"

// Analyzer flags routes pointing at missing outputs, pipelines no route
// uses, and rewards a clean non-empty configuration with a positive
// finding.
type Analyzer struct{}

// New builds the config analyzer.
func New() *Analyzer { return &Analyzer{} }

func (a *Analyzer) ObjectiveName() string              { return objective }
func (a *Analyzer) SupportedProducts() []model.Product { return nil }
func (a *Analyzer) EstimatedAPICalls() int             { return 3 }
func (a *Analyzer) RequiredPermissions() []string {
	return []string{"GET pipelines", "GET routes", "GET outputs"}
}

func (a *Analyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	start := time.Now()
	callsBefore := c.Limiter().Used()
	res := analyzer.NewResult(objective)

	pipelines, err := c.GetPipelines(ctx)
	if err != nil {
		return nil, err
	}
	routes, err := c.GetRoutes(ctx)
	if err != nil {
		return nil, err
	}
	outputs, err := c.GetOutputs(ctx)
	if err != nil {
		return nil, err
	}

	outputIDs := map[string]bool{}
	for _, o := range outputs {
		outputIDs[o.ID] = true
	}

	usedPipelines := map[string]bool{}
	for _, r := range routes {
		pipeline := analyzer.Str(r.Raw, "pipeline")
		if pipeline != "" {
			usedPipelines[pipeline] = true
		}

		output := analyzer.Str(r.Raw, "output")
		if output != "" && !outputIDs[output] {
			res.AddFinding(model.Finding{
				ID:                 analyzer.FindingID(objective, "route-missing-output", r.ID),
				Category:           "config",
				Severity:           model.SeverityHigh,
				Title:              fmt.Sprintf("Route %s references missing output %s", r.ID, output),
				Description:        "Events matching this route are sent to a destination that does not exist; they will be dropped or blocked.",
				AffectedComponents: []string{r.ID},
				ConfidenceLevel:    model.ConfidenceHigh,
				RemediationSteps: []string{
					fmt.Sprintf("Create output %q or repoint route %q", output, r.ID),
				},
			})
		}
	}

	for _, p := range pipelines {
		if usedPipelines[p.ID] || p.ID == "main" || p.ID == "passthru" {
			continue
		}
		res.AddFinding(model.Finding{
			ID:                 analyzer.FindingID(objective, "unused-pipeline", p.ID),
			Category:           "config",
			Severity:           model.SeverityLow,
			Title:              fmt.Sprintf("Pipeline %s is not referenced by any route", p.ID),
			Description:        "Unused pipelines accumulate drift and confuse reviews. Remove or wire it into a route.",
			AffectedComponents: []string{p.ID},
			ConfidenceLevel:    model.ConfidenceMedium,
		})
	}

	nonEmpty := len(pipelines)+len(routes)+len(outputs) > 0
	if nonEmpty && !hasAtOrAbove(res.Findings, model.SeverityHigh) {
		res.AddFinding(model.Finding{
			ID:                 analyzer.FindingID(objective, "clean"),
			Category:           "config",
			Severity:           model.SeverityInfo,
			Title:              "Clean Configuration Detected",
			Description:        fmt.Sprintf("Validated %d pipelines, %d routes and %d outputs with no high or critical configuration issues.", len(pipelines), len(routes), len(outputs)),
			AffectedComponents: []string{model.OverallComponent},
			ConfidenceLevel:    model.ConfidenceHigh,
		})
	}

	res.SetMeta("pipeline_count", len(pipelines))
	res.SetMeta("route_count", len(routes))
	res.SetMeta("output_count", len(outputs))
	analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
	return res, nil
}

func hasAtOrAbove(findings []model.Finding, floor model.Severity) bool {
	for _, f := range findings {
		if f.Severity.Rank() >= floor.Rank() {
			return true
		}
	}
	return false
}
