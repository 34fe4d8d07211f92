// Package health checks worker/node connectivity and leader health.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/model"
)

const objective = "health"

// Analyzer flags disconnected nodes, unhealthy leaders and single-worker
// deployments with no failover headroom.
type Analyzer struct{}

// New builds the health analyzer.
func New() *Analyzer { return &Analyzer{} }

func (a *Analyzer) ObjectiveName() string              { return objective }
func (a *Analyzer) SupportedProducts() []model.Product { return nil }
func (a *Analyzer) EstimatedAPICalls() int             { return 2 }
func (a *Analyzer) RequiredPermissions() []string {
	return []string{"GET workers/nodes", "GET health"}
}

func (a *Analyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	start := time.Now()
	callsBefore := c.Limiter().Used()
	res := analyzer.NewResult(objective)

	nodes, err := c.GetNodes(ctx)
	if err != nil {
		return nil, err
	}

	kind := "worker"
	if c.IsEdge() {
		kind = "node"
	}

	for _, n := range nodes {
		if n.Healthy() {
			continue
		}
		res.AddFinding(model.Finding{
			ID:                 analyzer.FindingID(objective, kind, n.ID),
			Category:           "health",
			Severity:           model.SeverityHigh,
			Title:              fmt.Sprintf("%s %s is %s", kind, n.ID, n.Status),
			Description:        fmt.Sprintf("The %s %q last reported at %d and is currently %s. Data routed through it is at risk.", kind, n.ID, n.LastMsgTime, n.Status),
			AffectedComponents: []string{n.ID},
			ConfidenceLevel:    model.ConfidenceHigh,
			RemediationSteps: []string{
				fmt.Sprintf("Check connectivity and process state on %s", n.ID),
				"Review leader logs for disconnect reasons",
			},
		})
	}

	switch len(nodes) {
	case 0:
		res.AddFinding(model.Finding{
			ID:                 analyzer.FindingID(objective, "no-nodes"),
			Category:           "health",
			Severity:           model.SeverityHigh,
			Title:              fmt.Sprintf("No %ss connected", kind),
			Description:        "The leader reports no connected processing capacity.",
			AffectedComponents: []string{model.OverallComponent},
			ConfidenceLevel:    model.ConfidenceHigh,
		})
	case 1:
		res.AddFinding(model.Finding{
			ID:                 analyzer.FindingID(objective, "single-node"),
			Category:           "health",
			Severity:           model.SeverityMedium,
			Title:              fmt.Sprintf("Single %s deployment has no failover", kind),
			Description:        fmt.Sprintf("Only one %s is connected; a restart or crash interrupts all traffic.", kind),
			AffectedComponents: []string{nodes[0].ID},
			ConfidenceLevel:    model.ConfidenceHigh,
			RemediationSteps:   []string{fmt.Sprintf("Add at least one more %s for availability", kind)},
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	leader, err := c.GetHealth(ctx)
	switch {
	case errors.Is(err, client.ErrNotAvailable):
		res.AddFinding(analyzer.DataUnavailableFinding(objective, "leader-health", "/api/v1/health"))
	case err != nil:
		return nil, err
	default:
		if status := analyzer.Str(leader, "status"); status != "" && status != "healthy" && status != "ok" {
			res.AddFinding(model.Finding{
				ID:                 analyzer.FindingID(objective, "leader"),
				Category:           "health",
				Severity:           model.SeverityHigh,
				Title:              fmt.Sprintf("Leader health is %s", status),
				Description:        "The leader itself reports a degraded state.",
				AffectedComponents: []string{model.OverallComponent},
				ConfidenceLevel:    model.ConfidenceHigh,
			})
		}
	}

	res.SetMeta("node_count", len(nodes))
	analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
	return res, nil
}
