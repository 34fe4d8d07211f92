// Package resource evaluates CPU, memory and disk utilization against
// the configured thresholds.
package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/config"
	"github.com/quietops/criblscope/pkg/model"
)

const objective = "resource"

// Analyzer reads leader metrics and flags utilization above the high
// (>=80%) and critical (>=90%) thresholds. Disk checks are skipped for
// Stream on Cloud, where the deployment does not own its disks.
type Analyzer struct {
	Thresholds config.Thresholds
}

// New builds the resource analyzer with the given thresholds.
func New(th config.Thresholds) *Analyzer { return &Analyzer{Thresholds: th} }

func (a *Analyzer) ObjectiveName() string { return objective }
func (a *Analyzer) SupportedProducts() []model.Product {
	return []model.Product{model.ProductStream, model.ProductEdge}
}
func (a *Analyzer) EstimatedAPICalls() int { return 2 }
func (a *Analyzer) RequiredPermissions() []string {
	return []string{"GET system/status", "GET metrics"}
}

func (a *Analyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	start := time.Now()
	callsBefore := c.Limiter().Used()
	res := analyzer.NewResult(objective)

	onCloud := false
	status, err := c.GetSystemStatus(ctx)
	switch {
	case errors.Is(err, client.ErrNotAvailable):
		// Cloud deployments do not expose system status.
		onCloud = true
	case err != nil:
		return nil, err
	}

	if s, ok := status["status"].(string); ok && s != "ok" && s != "healthy" {
		res.AddFinding(model.Finding{
			ID:                 analyzer.FindingID(objective, "system-status"),
			Category:           "resource",
			Severity:           model.SeverityMedium,
			Title:              fmt.Sprintf("system status reports %q", s),
			Description:        "The leader reports a degraded system status.",
			AffectedComponents: []string{model.OverallComponent},
			ConfidenceLevel:    model.ConfidenceMedium,
			RemediationSteps:   []string{"Inspect the leader system status and recent process restarts"},
			Metadata:           map[string]any{"status": s},
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics, err := c.GetMetrics(ctx)
	switch {
	case errors.Is(err, client.ErrNotAvailable):
		res.AddFinding(analyzer.DataUnavailableFinding(objective, "disk-metrics", "/api/v1/metrics"))
		res.SetMeta("metrics_available", false)
		analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
		return res, nil
	case err != nil:
		return nil, err
	}

	a.checkUtilization(res, "cpu", analyzer.Num(metrics, "cpuPercent", "cpu_percent"), a.Thresholds.CPUHighPercent, a.Thresholds.CPUCriticalPercent)
	a.checkUtilization(res, "memory", analyzer.Num(metrics, "memPercent", "mem_percent"), a.Thresholds.MemHighPercent, a.Thresholds.MemCriticalPercent)

	skipDisk := onCloud && c.ProductType() == model.ProductStream
	if !skipDisk {
		a.checkUtilization(res, "disk", analyzer.Num(metrics, "diskPercent", "disk_percent"), a.Thresholds.DiskHighPercent, a.Thresholds.DiskCriticalPercent)
	}

	res.SetMeta("metrics_available", true)
	analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
	return res, nil
}

func (a *Analyzer) checkUtilization(res *model.AnalyzerResult, what string, pct, high, critical float64) {
	if pct <= 0 || pct < high {
		return
	}
	severity := model.SeverityHigh
	if pct >= critical {
		severity = model.SeverityCritical
	}
	res.AddFinding(model.Finding{
		ID:                 analyzer.FindingID(objective, what),
		Category:           "resource",
		Severity:           severity,
		Title:              fmt.Sprintf("%s utilization at %.0f%%", what, pct),
		Description:        fmt.Sprintf("Sustained %s utilization above %.0f%% degrades throughput and risks backpressure.", what, high),
		AffectedComponents: []string{model.OverallComponent},
		ConfidenceLevel:    model.ConfidenceHigh,
		RemediationSteps:   []string{fmt.Sprintf("Scale out or reduce %s pressure on the deployment", what)},
		Metadata:           map[string]any{"percent": pct},
	})
}
