// Package engine orchestrates an analysis run: it admits objectives
// against the call budget, verifies connectivity, fans analyzers out
// under a concurrency cap and assembles the scored run artifact.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/policy"
	"github.com/quietops/criblscope/pkg/scoring"
)

// Defaults for the run envelope.
const (
	DefaultMaxParallel     = 4
	DefaultRunTimeout      = 300 * time.Second
	DefaultAnalyzerTimeout = 90 * time.Second
	DefaultAPICallBudget   = 100

	// abandonGrace is how long past the run deadline the engine waits for
	// outstanding analyzers before abandoning them.
	abandonGrace = 2 * time.Second
)

// Config holds engine settings.
type Config struct {
	MaxParallelAnalyzers int
	RunTimeout           time.Duration
	AnalyzerTimeout      time.Duration
	APICallBudget        int

	// Dependencies.
	Logger   *slog.Logger
	Policy   *policy.Engine
	Registry *analyzer.Registry
}

// Engine is the runtime core.
type Engine struct {
	Logger *slog.Logger
	Tracer trace.Tracer

	config   Config
	registry *analyzer.Registry
	policy   *policy.Engine
}

// Option defines a functional configuration override.
type Option func(*Engine)

// New initializes the Engine.
func New(opts ...Option) *Engine {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: RedactSensitiveData,
	})
	e := &Engine{
		Logger: slog.New(handler),
		Tracer: otel.Tracer("criblscope/engine"),
		config: Config{
			MaxParallelAnalyzers: DefaultMaxParallel,
			RunTimeout:           DefaultRunTimeout,
			AnalyzerTimeout:      DefaultAnalyzerTimeout,
			APICallBudget:        DefaultAPICallBudget,
		},
		registry: analyzer.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.Logger = l
		}
	}
}

// WithRegistry sets the analyzer registry to select from.
func WithRegistry(r *analyzer.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithPolicy sets the suppression policy applied before scoring.
func WithPolicy(p *policy.Engine) Option {
	return func(e *Engine) { e.policy = p }
}

// WithConfig sets raw config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.MaxParallelAnalyzers > 0 {
			e.config.MaxParallelAnalyzers = cfg.MaxParallelAnalyzers
		}
		if cfg.RunTimeout > 0 {
			e.config.RunTimeout = cfg.RunTimeout
		}
		if cfg.AnalyzerTimeout > 0 {
			e.config.AnalyzerTimeout = cfg.AnalyzerTimeout
		}
		if cfg.APICallBudget > 0 {
			e.config.APICallBudget = cfg.APICallBudget
		}
		if cfg.Logger != nil {
			e.Logger = cfg.Logger
		}
		if cfg.Registry != nil {
			e.registry = cfg.Registry
		}
		if cfg.Policy != nil {
			e.policy = cfg.Policy
		}
	}
}

// Run executes the requested objectives against the deployment behind c
// and returns the finished run. An empty objective list selects every
// registered objective. The returned run is always non-nil; the error
// reports why a run ended failed.
func (e *Engine) Run(ctx context.Context, c *client.Client, deploymentID string, objectives []string) (*model.AnalysisRun, error) {
	return e.run(ctx, c, deploymentID, objectives, nil)
}

// RunStream is Run with progress events. The channel closes after the
// terminal run_completed or run_failed event; the consumer must drain it.
func (e *Engine) RunStream(ctx context.Context, c *client.Client, deploymentID string, objectives []string) <-chan ProgressEvent {
	out := make(chan ProgressEvent, 16)
	// The inner channel is never closed: an abandoned analyzer may emit
	// long after the run finished, and that send must not panic.
	inner := make(chan ProgressEvent, 16)
	go func() {
		run, err := e.run(ctx, c, deploymentID, objectives, inner)
		if run.Status == model.StatusFailed {
			inner <- ProgressEvent{Type: EventRunFailed, Error: errString(err), Run: run}
			return
		}
		inner <- ProgressEvent{Type: EventRunCompleted, Run: run}
	}()
	go func() {
		defer close(out)
		for ev := range inner {
			out <- ev
			if ev.Type == EventRunCompleted || ev.Type == EventRunFailed {
				return
			}
		}
	}()
	return out
}

// errBudgetPreRun marks an objective whose analyzer never started because
// earlier objectives drained the call budget.
var errBudgetPreRun = errors.New("engine: call budget exhausted before objective started")

type outcome struct {
	name string
	res  *model.AnalyzerResult
	err  error
}

func (e *Engine) run(ctx context.Context, c *client.Client, deploymentID string, objectives []string, events chan<- ProgressEvent) (*model.AnalysisRun, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.RunTimeout)
	defer cancel()

	ctx, span := e.Tracer.Start(ctx, "Engine.Run")
	defer span.End()

	defaulted := len(objectives) == 0
	if defaulted {
		objectives = e.registry.Objectives()
	}
	run := model.NewRun(deploymentID, objectives, e.config.APICallBudget)
	run.Status = model.StatusRunning
	span.SetAttributes(
		attribute.String("run.id", run.RunID),
		attribute.StringSlice("run.objectives", objectives),
	)

	analyzers := make(map[string]analyzer.Analyzer, len(objectives))
	estimated := 0
	for _, name := range objectives {
		f, err := e.registry.Lookup(name)
		if err != nil {
			return e.fail(run, span, c, err)
		}
		a := f()
		analyzers[name] = a
		estimated += a.EstimatedAPICalls()
	}

	// One call is reserved for the connection check.
	if estimated+1 > e.config.APICallBudget {
		err := fmt.Errorf("engine: estimated %d calls plus connection check exceed budget %d", estimated, e.config.APICallBudget)
		return e.fail(run, span, c, err)
	}

	info, err := c.TestConnection(ctx)
	if err != nil {
		e.Logger.Error("connection check failed", "deployment", deploymentID, "error_kind", string(client.KindOf(err)))
		span.RecordError(err)
		return e.fail(run, span, c, err)
	}
	run.ProductType = info.Product
	run.ProductVersion = info.Version

	// A defaulted objective list means "everything applicable": analyzers
	// for other products are silently skipped. Explicitly requested
	// objectives keep their unsupported-product failure.
	if defaulted {
		applicable := make([]string, 0, len(analyzers))
		for name, a := range analyzers {
			if !analyzer.Supports(a, info.Product) {
				delete(analyzers, name)
				continue
			}
			applicable = append(applicable, name)
		}
		sort.Strings(applicable)
		run.ObjectivesRequested = applicable
	}

	e.Logger.Info("run started",
		"run_id", run.RunID,
		"product", string(info.Product),
		"remote_version", info.Version,
		"objectives", len(analyzers),
	)

	sem := semaphore.NewWeighted(int64(e.config.MaxParallelAnalyzers))
	outcomes := make(chan outcome, len(analyzers))
	for name, a := range analyzers {
		go e.runAnalyzer(ctx, sem, c, name, a, info.Product, outcomes, events)
	}

	// Analyzers must honor ctx. One that does not is abandoned a short
	// grace past the run deadline instead of blocking the run forever.
	deadline, _ := ctx.Deadline()
	abandon := time.NewTimer(time.Until(deadline) + abandonGrace)
	defer abandon.Stop()

	pending := make(map[string]bool, len(analyzers))
	for name := range analyzers {
		pending[name] = true
	}
collect:
	for len(pending) > 0 {
		select {
		case o := <-outcomes:
			delete(pending, o.name)
			run.Results[o.name] = o.res
			if o.err == nil {
				run.ObjectivesCompleted = append(run.ObjectivesCompleted, o.name)
				continue
			}
			run.ObjectivesFailed = append(run.ObjectivesFailed, o.name)
			e.Logger.Warn("objective failed", "objective", o.name, "error_kind", string(client.KindOf(o.err)))
		case <-abandon.C:
			break collect
		}
	}
	for name := range pending {
		failed := analyzer.NewResult(name)
		failed.Success = false
		failed.SetMeta("error", "timeout")
		run.Results[name] = failed
		run.ObjectivesFailed = append(run.ObjectivesFailed, name)
		e.Logger.Warn("objective abandoned", "objective", name, "error_kind", "timeout")
		emit(events, ProgressEvent{Type: EventAnalyzerFailed, Objective: name, Error: "timeout"})
	}
	sort.Strings(run.ObjectivesCompleted)
	sort.Strings(run.ObjectivesFailed)

	switch {
	case len(run.ObjectivesCompleted) == 0:
		run.Status = model.StatusFailed
	case len(run.ObjectivesFailed) > 0:
		run.Status = model.StatusPartial
	default:
		run.Status = model.StatusCompleted
	}

	if e.policy != nil {
		if removed := e.policy.Apply(run); removed > 0 {
			e.Logger.Info("policy suppressed findings", "count", removed)
		}
	}

	run.APICallsUsed = c.Limiter().Used()
	run.Finalize(time.Now())
	run.HealthScore = scoring.ScoreRun(run)

	span.SetAttributes(
		attribute.String("run.status", string(run.Status)),
		attribute.Int("run.health_score", run.HealthScore),
		attribute.Int("run.api_calls_used", run.APICallsUsed),
	)
	e.Logger.Info("run finished",
		"run_id", run.RunID,
		"status", string(run.Status),
		"health_score", run.HealthScore,
		"findings", len(run.FindingsFlat),
		"api_calls_used", run.APICallsUsed,
	)

	if run.Status == model.StatusFailed {
		err := fmt.Errorf("engine: no objective completed")
		span.SetStatus(codes.Error, err.Error())
		return run, err
	}
	return run, nil
}

func (e *Engine) runAnalyzer(ctx context.Context, sem *semaphore.Weighted, c *client.Client, name string, a analyzer.Analyzer, product model.Product, outcomes chan<- outcome, events chan<- ProgressEvent) {
	res, err := func() (res *model.AnalyzerResult, err error) {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				e.Logger.Error("analyzer panicked", "objective", name, "panic", fmt.Sprintf("%v", r), "stack", string(debug.Stack()))
				res, err = nil, fmt.Errorf("analyzer %s panicked: %v", name, r)
			}
		}()

		if !analyzer.Supports(a, product) {
			return nil, fmt.Errorf("objective %s does not support product %s", name, product)
		}
		if c.Limiter().Remaining() == 0 {
			return nil, errBudgetPreRun
		}

		emit(events, ProgressEvent{Type: EventAnalyzerStarted, Objective: name})

		actx, cancel := context.WithTimeout(ctx, e.config.AnalyzerTimeout)
		defer cancel()

		actx, span := e.Tracer.Start(actx, "Analyzer."+name)
		defer span.End()

		res, err = a.Analyze(actx, c)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(client.KindOf(err)))
		}
		return res, err
	}()

	if err != nil {
		reason := string(client.KindOf(err))
		switch {
		case !analyzer.Supports(a, product):
			reason = "unsupported_product"
		case errors.Is(err, errBudgetPreRun):
			reason = "budget_exhausted_pre_run"
		}
		failed := analyzer.NewResult(name)
		failed.Success = false
		failed.SetMeta("error", reason)
		emit(events, ProgressEvent{Type: EventAnalyzerFailed, Objective: name, Error: reason})
		outcomes <- outcome{name: name, res: failed, err: err}
		return
	}

	emit(events, ProgressEvent{Type: EventAnalyzerCompleted, Objective: name, FindingCount: len(res.Findings)})
	outcomes <- outcome{name: name, res: res}
}

// fail stamps the run failed before any objective ran.
func (e *Engine) fail(run *model.AnalysisRun, span trace.Span, c *client.Client, err error) (*model.AnalysisRun, error) {
	run.Status = model.StatusFailed
	run.APICallsUsed = c.Limiter().Used()
	run.Finalize(time.Now())
	run.HealthScore = scoring.ScoreRun(run)
	span.SetStatus(codes.Error, err.Error())
	return run, err
}

func emit(events chan<- ProgressEvent, ev ProgressEvent) {
	if events == nil {
		return
	}
	events <- ev
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// RedactSensitiveData is a slog ReplaceAttr that scrubs sensitive keys.
// Every handler that can see credentials must install it.
func RedactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"password": true, "token": true, "secret": true, "api_key": true,
		"client_secret": true, "auth_token": true, "bearer_token": true,
		"private_key": true, "credential": true, "certificate": true,
	}
	if sensitiveKeys[a.Key] {
		return slog.Attr{Key: a.Key, Value: slog.StringValue("[REDACTED]")}
	}
	return a
}
