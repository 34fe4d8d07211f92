// Package analyzer defines the plugin contract every analysis objective
// implements, and the process-wide registry the orchestrator selects from.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/model"
)

// Analyzer is one pluggable analysis objective. Implementations must not
// share mutable state; the API client is their only external dependency,
// and they must honor ctx cancellation between API calls.
type Analyzer interface {
	// ObjectiveName is the unique, lowercase objective identifier.
	ObjectiveName() string
	// SupportedProducts lists the products this analyzer applies to.
	SupportedProducts() []model.Product
	// EstimatedAPICalls is the call budget the orchestrator reserves for
	// admission control. Always >= 1.
	EstimatedAPICalls() int
	// RequiredPermissions lists informational permission hints.
	RequiredPermissions() []string
	// Analyze runs the objective against the deployment.
	Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error)
}

// Factory builds a fresh analyzer instance for one run.
type Factory func() Analyzer

// NewResult initializes an empty result for an objective.
func NewResult(objective string) *model.AnalyzerResult {
	return &model.AnalyzerResult{
		ObjectiveName:   objective,
		Findings:        []model.Finding{},
		Recommendations: []model.Recommendation{},
	}
}

// FinishResult stamps success, duration and call usage on a result.
func FinishResult(r *model.AnalyzerResult, start time.Time, callsBefore, callsAfter int) {
	r.Success = true
	r.DurationSeconds = time.Since(start).Seconds()
	r.APICallsUsed = callsAfter - callsBefore
}

// FindingID builds a run-stable finding id from the objective and a
// discriminating suffix.
func FindingID(objective string, parts ...string) string {
	id := objective
	for _, p := range parts {
		id += "-" + p
	}
	return id
}

// Supports reports whether the analyzer covers product p. An empty
// product list means all products.
func Supports(a Analyzer, p model.Product) bool {
	products := a.SupportedProducts()
	if len(products) == 0 {
		return true
	}
	for _, sp := range products {
		if sp == p {
			return true
		}
	}
	return false
}

// DataUnavailableFinding is the standard low-severity finding emitted
// when an optional endpoint is missing on this deployment.
func DataUnavailableFinding(objective, what, endpoint string) model.Finding {
	return model.Finding{
		ID:                 FindingID(objective, "data-unavailable", what),
		Category:           "data_unavailable",
		Severity:           model.SeverityLow,
		Title:              fmt.Sprintf("%s data not available", what),
		Description:        fmt.Sprintf("The deployment does not expose %s; the derived %s checks were skipped.", endpoint, what),
		AffectedComponents: []string{model.OverallComponent},
		ConfidenceLevel:    model.ConfidenceHigh,
	}
}
