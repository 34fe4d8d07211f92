package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quietops/criblscope/pkg/analyzer/all"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/config"
	"github.com/quietops/criblscope/pkg/engine"
	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/policy"
	"github.com/quietops/criblscope/pkg/pricing"
	"github.com/quietops/criblscope/pkg/ratelimit"
	"github.com/quietops/criblscope/pkg/report"
	"github.com/quietops/criblscope/pkg/scoring"
	"github.com/quietops/criblscope/pkg/telemetry"
	"github.com/quietops/criblscope/pkg/version"
)

var (
	scanObjectives   []string
	scanBudget       int
	scanParallel     int
	scanDeploymentID string
	scanOutputDir    string
	scanRulesFile    string
	scanPricingFile  string
	scanJSONOnly     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a health assessment against a deployment",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanObjectives, "objectives", nil, "Objectives to run (default: all applicable)")
	scanCmd.Flags().IntVar(&scanBudget, "budget", engine.DefaultAPICallBudget, "API call budget for the run")
	scanCmd.Flags().IntVar(&scanParallel, "parallel", engine.DefaultMaxParallel, "Max analyzers running concurrently")
	scanCmd.Flags().StringVar(&scanDeploymentID, "deployment-id", "", "Deployment identifier in the report (default: leader URL)")
	scanCmd.Flags().StringVar(&scanOutputDir, "output-dir", "criblscope-out", "Directory for report artifacts")
	scanCmd.Flags().StringVar(&scanRulesFile, "rules", "", "CEL suppression rules file (YAML)")
	scanCmd.Flags().StringVar(&scanPricingFile, "pricing", "", "Price table override (YAML)")
	scanCmd.Flags().BoolVar(&scanJSONOnly, "json", false, "Write only the JSON artifact")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger := buildLogger()
	shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, "")
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
	} else {
		defer func() { _ = shutdown(ctx) }()
	}

	table := pricing.DefaultTable()
	if scanPricingFile != "" {
		table, err = pricing.Load(scanPricingFile)
		if err != nil {
			return err
		}
	}

	var pol *policy.Engine
	if scanRulesFile != "" {
		rules, err := policy.LoadRules(scanRulesFile)
		if err != nil {
			return err
		}
		pol, err = policy.NewEngine(logger)
		if err != nil {
			return err
		}
		if err := pol.Compile(rules); err != nil {
			return err
		}
	}

	limiter := ratelimit.New(ratelimit.DefaultRate, scanBudget)
	c, url, err := buildClient(ctx, client.WithLimiter(limiter), client.WithLogger(logger))
	if err != nil {
		return err
	}

	deploymentID := scanDeploymentID
	if deploymentID == "" {
		deploymentID = url
	}

	registry := all.NewRegistry(all.Options{
		Thresholds: config.DefaultThresholds(),
		Pricing:    table,
	})
	e := engine.New(engine.WithConfig(engine.Config{
		MaxParallelAnalyzers: scanParallel,
		APICallBudget:        scanBudget,
		Logger:               logger,
		Registry:             registry,
		Policy:               pol,
	}))

	run, runErr := e.Run(ctx, c, deploymentID, scanObjectives)

	if err := writeArtifacts(run); err != nil {
		return err
	}
	printSummary(run)

	if runErr != nil {
		return runErr
	}
	return nil
}

func buildLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	var out io.Writer = os.Stderr
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: engine.RedactSensitiveData,
	}))
}

func writeArtifacts(run *model.AnalysisRun) error {
	if err := os.MkdirAll(scanOutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	base := filepath.Join(scanOutputDir, "run-"+run.RunID)
	if err := report.WriteJSON(base+".json", run); err != nil {
		return err
	}
	if !scanJSONOnly {
		if err := report.WriteMarkdown(base+".md", run); err != nil {
			return err
		}
	}
	return nil
}

var (
	scoreStyles = map[scoring.Band]lipgloss.Style{
		scoring.BandExcellent: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF99")),
		scoring.BandGood:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#99CC00")),
		scoring.BandFair:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFCC00")),
		scoring.BandPoor:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF3333")),
	}
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

func printSummary(run *model.AnalysisRun) {
	band := scoring.BandOf(run.HealthScore)
	style, ok := scoreStyles[band]
	if !ok {
		style = dimStyle
	}

	fmt.Println()
	fmt.Println(style.Render(fmt.Sprintf("Health score: %d/100 (%s)", run.HealthScore, band)))
	fmt.Println(dimStyle.Render(fmt.Sprintf("Status: %s  Product: %s %s", run.Status, run.ProductType, run.ProductVersion)))
	fmt.Println(dimStyle.Render(fmt.Sprintf("Findings: %d  Recommendations: %d  API calls: %d/%d",
		len(run.FindingsFlat), len(run.RecommendationsFlat), run.APICallsUsed, run.APICallsBudget)))
	fmt.Println(dimStyle.Render(fmt.Sprintf("Artifacts: %s", filepath.Join(scanOutputDir, "run-"+run.RunID+".json"))))
}
