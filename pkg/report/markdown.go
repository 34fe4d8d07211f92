package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/scoring"
)

// RenderMarkdown renders the run as a human-readable Markdown report.
// Output is deterministic: objectives alphabetical, severities most to
// least severe first, equal-severity findings in emission order.
func RenderMarkdown(run *model.AnalysisRun) string {
	var b strings.Builder

	b.WriteString("# Cribl Health Report\n\n")
	fmt.Fprintf(&b, "- **Deployment:** %s\n", run.DeploymentID)
	product := string(run.ProductType)
	if run.ProductVersion != "" {
		product += " " + run.ProductVersion
	}
	fmt.Fprintf(&b, "- **Product:** %s\n", product)
	fmt.Fprintf(&b, "- **Run:** %s\n", run.RunID)
	fmt.Fprintf(&b, "- **Started:** %s\n", run.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Status:** %s\n", run.Status)
	fmt.Fprintf(&b, "- **Health score:** %d/100 (%s)\n", run.HealthScore, scoring.BandOf(run.HealthScore))
	fmt.Fprintf(&b, "- **API calls:** %d of %d\n", run.APICallsUsed, run.APICallsBudget)
	fmt.Fprintf(&b, "- **Duration:** %.1fs\n", run.DurationSeconds)

	counts := map[model.Severity]int{}
	for _, f := range run.FindingsFlat {
		counts[f.Severity]++
	}
	b.WriteString("\n## Summary\n\n| Severity | Count |\n|----------|-------|\n")
	severities := model.Severities()
	for i := len(severities) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "| %s | %d |\n", severities[i], counts[severities[i]])
	}

	b.WriteString("\n## Findings\n")
	if len(run.FindingsFlat) == 0 {
		b.WriteString("\nNo findings.\n")
	}
	for _, name := range sortedObjectives(run) {
		res := run.Results[name]
		if len(res.Findings) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n", name)
		for i := len(severities) - 1; i >= 0; i-- {
			for _, f := range res.Findings {
				if f.Severity != severities[i] {
					continue
				}
				writeFinding(&b, f)
			}
		}
	}

	if len(run.RecommendationsFlat) > 0 {
		b.WriteString("\n## Recommendations\n")
		for _, name := range sortedObjectives(run) {
			res := run.Results[name]
			if len(res.Recommendations) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n### %s\n", name)
			for _, p := range []model.Priority{model.PriorityP0, model.PriorityP1, model.PriorityP2, model.PriorityP3} {
				for _, rec := range res.Recommendations {
					if rec.Priority != p {
						continue
					}
					writeRecommendation(&b, rec)
				}
			}
		}
	}

	if len(run.ObjectivesFailed) > 0 {
		b.WriteString("\n## Failed objectives\n\n")
		for _, name := range run.ObjectivesFailed {
			fmt.Fprintf(&b, "- %s: %s\n", name, failureReason(run, name))
		}
	}

	return b.String()
}

// WriteMarkdown renders the run to a file.
func WriteMarkdown(path string, run *model.AnalysisRun) error {
	if err := os.WriteFile(path, []byte(RenderMarkdown(run)), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

func writeFinding(b *strings.Builder, f model.Finding) {
	fmt.Fprintf(b, "\n- **[%s]** %s (`%s`)\n", strings.ToUpper(string(f.Severity)), f.Title, f.ID)
	if f.Description != "" {
		fmt.Fprintf(b, "  %s\n", f.Description)
	}
	if len(f.AffectedComponents) > 0 {
		fmt.Fprintf(b, "  - Components: %s\n", strings.Join(f.AffectedComponents, ", "))
	}
	for _, step := range f.RemediationSteps {
		fmt.Fprintf(b, "  - Remediation: %s\n", step)
	}
}

func writeRecommendation(b *strings.Builder, rec model.Recommendation) {
	fmt.Fprintf(b, "\n- **[%s]** %s (`%s`)\n", strings.ToUpper(string(rec.Priority)), rec.Title, rec.ID)
	if rec.Description != "" {
		fmt.Fprintf(b, "  %s\n", rec.Description)
	}
	if rec.ImpactEstimate != nil && rec.ImpactEstimate.CostSavingsAnnualUSD != nil {
		fmt.Fprintf(b, "  - Estimated savings: $%.0f/year\n", *rec.ImpactEstimate.CostSavingsAnnualUSD)
	}
	if rec.BeforeState != "" {
		fmt.Fprintf(b, "  - Before: %s\n", rec.BeforeState)
	}
	if rec.AfterState != "" {
		fmt.Fprintf(b, "  - After: %s\n", rec.AfterState)
	}
}

func failureReason(run *model.AnalysisRun, objective string) string {
	if res := run.Results[objective]; res != nil && res.Metadata != nil {
		if reason, ok := res.Metadata["error"].(string); ok && reason != "" {
			return reason
		}
	}
	return "unknown"
}

func sortedObjectives(run *model.AnalysisRun) []string {
	names := make([]string, 0, len(run.Results))
	for name := range run.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
