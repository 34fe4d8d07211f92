package engine

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/analyzer/all"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/config"
	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/ratelimit"
)

func quietEngine(t *testing.T, opts all.Options, cfg Config) *Engine {
	t.Helper()
	cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg.Registry = all.NewRegistry(opts)
	return New(WithConfig(cfg))
}

func mustClient(t *testing.T, mock *client.MockTransport, ceiling int) *client.Client {
	t.Helper()
	c, err := client.New("https://leader.example.com",
		client.WithBearerToken("test-token"),
		client.WithTransport(mock),
		client.WithLimiter(ratelimit.New(100000, ceiling)),
	)
	require.NoError(t, err)
	return c
}

func healthyStreamMock() *client.MockTransport {
	return client.NewMockTransport().
		Handle("/api/v1/version", 200, `{"version":"4.8.0","product":"stream"}`).
		Handle("/api/v1/master/workers", 200, `{"items":[{"id":"w1","status":"healthy"},{"id":"w2","status":"healthy"}],"count":2}`).
		Handle("/api/v1/health", 200, `{"status":"healthy"}`).
		Handle("/api/v1/m/default/pipelines", 200, `{"items":[{"id":"main"},{"id":"syslog"}],"count":2}`).
		Handle("/api/v1/m/default/routes", 200, `{"items":[{"id":"default","routes":[{"id":"r1","pipeline":"syslog","output":"splunk"}]}],"count":1}`).
		Handle("/api/v1/m/default/inputs", 200, `{"items":[{"id":"in-syslog","conf":{"authType":"token","tls":{"enabled":true,"minVersion":"TLSv1.2"}}}],"count":1}`).
		Handle("/api/v1/m/default/outputs", 200, `{"items":[{"id":"splunk","type":"splunk","conf":{"tls":{"enabled":true,"minVersion":"TLSv1.2"}}}],"count":1}`).
		Handle("/api/v1/system/status", 200, `{"status":"ok"}`).
		Handle("/api/v1/metrics", 200, `{"cpuPercent":35,"memPercent":50,"diskPercent":40,"outputs":{"splunk":{"gb_per_day":100}}}`).
		Handle("/api/v1/system/licenses", 200, `{"allocated_gb_per_day":1000,"used_gb_per_day":400}`)
}

func TestHealthyStreamScoresOneHundred(t *testing.T) {
	e := quietEngine(t, all.Options{Thresholds: config.DefaultThresholds()}, Config{})
	c := mustClient(t, healthyStreamMock(), 100)

	run, err := e.Run(context.Background(), c, "prod-stream", nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, run.Status)
	assert.Equal(t, 100, run.HealthScore)
	assert.Equal(t, model.ProductStream, run.ProductType)
	assert.Empty(t, run.ObjectivesFailed)
	require.NoError(t, run.Validate())

	// Lake and Search objectives are skipped on a Stream deployment.
	assert.NotContains(t, run.ObjectivesRequested, "lake")
	assert.NotContains(t, run.ObjectivesRequested, "search")

	require.Len(t, run.FindingsFlat, 1)
	assert.Equal(t, "config-clean", run.FindingsFlat[0].ID)
	assert.Equal(t, model.SeverityInfo, run.FindingsFlat[0].Severity)

	// Connection check plus the per-analyzer estimates, one call each.
	assert.Equal(t, 14, run.APICallsUsed)
}

func TestEdgeDisconnectedNodeScoresNinety(t *testing.T) {
	mock := healthyStreamMock().
		Handle("/api/v1/version", 200, `{"version":"4.8.0","product":"edge"}`).
		Handle("/api/v1/edge/nodes", 200, `{"items":[{"id":"n1","status":"connected","fleet":"f1"},{"id":"n2","status":"disconnected","fleet":"f1"}],"count":2}`)

	e := quietEngine(t, all.Options{Thresholds: config.DefaultThresholds()}, Config{})
	c := mustClient(t, mock, 100)

	run, err := e.Run(context.Background(), c, "edge-fleet", nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, run.Status)
	assert.Equal(t, model.ProductEdge, run.ProductType)
	assert.Equal(t, 90, run.HealthScore)

	var disconnected bool
	for _, f := range run.FindingsFlat {
		if f.ID == "health-node-n2" {
			disconnected = true
			assert.Equal(t, model.SeverityHigh, f.Severity)
		}
	}
	assert.True(t, disconnected)
}

func TestCloudMissingMetricsStillCompletes(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/version", 200, `{"version":"4.8.0","product":"stream"}`)

	e := quietEngine(t, all.Options{Thresholds: config.DefaultThresholds()}, Config{})
	c := mustClient(t, mock, 100)

	run, err := e.Run(context.Background(), c, "cloud", []string{"resource"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, run.Status)
	require.Len(t, run.FindingsFlat, 1)
	assert.Equal(t, "data_unavailable", run.FindingsFlat[0].Category)
	assert.Equal(t, 99, run.HealthScore)
}

func TestAuthFailureFailsRun(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/version", 401, `{"message":"unauthorized"}`)

	e := quietEngine(t, all.Options{Thresholds: config.DefaultThresholds()}, Config{})
	c := mustClient(t, mock, 100)

	run, err := e.Run(context.Background(), c, "prod", nil)
	require.Error(t, err)

	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, 0, run.HealthScore)
	assert.Empty(t, run.Results)
	assert.Equal(t, 1, run.APICallsUsed)
}

func TestBudgetAdmissionRejectsRun(t *testing.T) {
	e := quietEngine(t, all.Options{Thresholds: config.DefaultThresholds()}, Config{APICallBudget: 10})
	c := mustClient(t, healthyStreamMock(), 10)

	run, err := e.Run(context.Background(), c, "prod", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceed budget")
	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, 0, run.APICallsUsed)
	assert.Equal(t, 0, run.HealthScore)
}

func TestMidRunBudgetExhaustionIsPartial(t *testing.T) {
	e := quietEngine(t, all.Options{Thresholds: config.DefaultThresholds()},
		Config{MaxParallelAnalyzers: 1})
	// Ceiling 5 admits the connection check plus one analyzer but not both.
	c := mustClient(t, healthyStreamMock(), 5)

	run, err := e.Run(context.Background(), c, "prod", []string{"health", "config"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPartial, run.Status)
	assert.True(t, run.Partial)
	require.Len(t, run.ObjectivesFailed, 1)
	failed := run.Results[run.ObjectivesFailed[0]]
	assert.Equal(t, "budget_exhausted", failed.Metadata["error"])
	require.NoError(t, run.Validate())
}

func TestBudgetDrainedBeforeAnalyzersStart(t *testing.T) {
	e := quietEngine(t, all.Options{Thresholds: config.DefaultThresholds()},
		Config{MaxParallelAnalyzers: 1})
	// Ceiling 1 is spent on the connection check alone, so every
	// objective fails before its analyzer makes a call.
	c := mustClient(t, healthyStreamMock(), 1)

	run, err := e.Run(context.Background(), c, "prod", []string{"health", "config"})
	require.Error(t, err)

	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, 1, run.APICallsUsed)
	for _, name := range []string{"health", "config"} {
		require.Contains(t, run.Results, name)
		assert.Equal(t, "budget_exhausted_pre_run", run.Results[name].Metadata["error"])
	}
}

func TestLicenseRegressionCriticalForecast(t *testing.T) {
	mock := healthyStreamMock().
		Handle("/api/v1/system/licenses", 200, `{"allocated_gb_per_day":1000,"used_gb_per_day":750}`)

	e := quietEngine(t, all.Options{
		Thresholds: config.DefaultThresholds(),
		History:    []float64{500, 550, 600, 650, 700, 750},
	}, Config{})
	c := mustClient(t, mock, 100)

	run, err := e.Run(context.Background(), c, "prod", []string{"cost"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, run.Status)
	assert.Equal(t, 75, run.HealthScore)

	require.Len(t, run.FindingsFlat, 1)
	assert.Equal(t, "cost-license-exhaustion", run.FindingsFlat[0].ID)
	assert.Equal(t, model.SeverityCritical, run.FindingsFlat[0].Severity)

	require.Len(t, run.RecommendationsFlat, 1)
	assert.Equal(t, model.PriorityP0, run.RecommendationsFlat[0].Priority)
}

func TestUnsupportedExplicitObjectiveFails(t *testing.T) {
	e := quietEngine(t, all.Options{Thresholds: config.DefaultThresholds()}, Config{})
	c := mustClient(t, healthyStreamMock(), 100)

	run, err := e.Run(context.Background(), c, "prod", []string{"health", "lake"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPartial, run.Status)
	assert.Equal(t, []string{"lake"}, run.ObjectivesFailed)
	assert.Equal(t, "unsupported_product", run.Results["lake"].Metadata["error"])
}

func TestUnknownObjectiveFailsRun(t *testing.T) {
	e := quietEngine(t, all.Options{Thresholds: config.DefaultThresholds()}, Config{})
	c := mustClient(t, healthyStreamMock(), 100)

	run, err := e.Run(context.Background(), c, "prod", []string{"nonsense"})
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, run.Status)
}

// sleeperAnalyzer ignores ctx, modeling a misbehaving plugin.
type sleeperAnalyzer struct{ d time.Duration }

func (s *sleeperAnalyzer) ObjectiveName() string              { return "sleeper" }
func (s *sleeperAnalyzer) SupportedProducts() []model.Product { return nil }
func (s *sleeperAnalyzer) EstimatedAPICalls() int             { return 1 }
func (s *sleeperAnalyzer) RequiredPermissions() []string      { return nil }
func (s *sleeperAnalyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	time.Sleep(s.d)
	return analyzer.NewResult("sleeper"), nil
}

func TestStuckAnalyzerIsAbandoned(t *testing.T) {
	reg := all.NewRegistry(all.Options{Thresholds: config.DefaultThresholds()})
	reg.MustRegister(func() analyzer.Analyzer { return &sleeperAnalyzer{d: 30 * time.Second} })

	e := New(WithConfig(Config{
		RunTimeout: 500 * time.Millisecond,
		Logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Registry:   reg,
	}))
	c := mustClient(t, healthyStreamMock(), 100)

	type result struct {
		run *model.AnalysisRun
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := e.Run(context.Background(), c, "prod", []string{"health", "sleeper"})
		done <- result{run, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after the abandon grace")
	}

	require.NoError(t, r.err)
	assert.Equal(t, model.StatusPartial, r.run.Status)
	assert.Contains(t, r.run.ObjectivesCompleted, "health")
	assert.Equal(t, []string{"sleeper"}, r.run.ObjectivesFailed)
	assert.Equal(t, "timeout", r.run.Results["sleeper"].Metadata["error"])
	require.NoError(t, r.run.Validate())
}

func TestLogHandlerRedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: RedactSensitiveData}))

	logger.Info("authenticated", "bearer_token", "raw-token-value", "deployment", "prod")

	out := buf.String()
	assert.NotContains(t, out, "raw-token-value")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "prod")
}

func TestRunStreamEmitsTerminalEvent(t *testing.T) {
	e := quietEngine(t, all.Options{Thresholds: config.DefaultThresholds()}, Config{})
	c := mustClient(t, healthyStreamMock(), 100)

	var events []ProgressEvent
	for ev := range e.RunStream(context.Background(), c, "prod", []string{"health", "config"}) {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventRunCompleted, last.Type)
	require.NotNil(t, last.Run)
	assert.Equal(t, model.StatusCompleted, last.Run.Status)

	started, completed := 0, 0
	for _, ev := range events[:len(events)-1] {
		switch ev.Type {
		case EventAnalyzerStarted:
			started++
		case EventAnalyzerCompleted:
			completed++
		}
	}
	assert.Equal(t, 2, started)
	assert.Equal(t, 2, completed)
}
