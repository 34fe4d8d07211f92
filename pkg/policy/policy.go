// Package policy evaluates operator-defined suppression rules against
// findings. Rules are CEL expressions; a finding matching any rule is
// dropped from the run before scoring and reporting.
package policy

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"gopkg.in/yaml.v3"

	"github.com/quietops/criblscope/pkg/model"
)

// Rule is a user-defined suppression rule (typically from YAML).
type Rule struct {
	ID        string `yaml:"id" json:"id"`
	Condition string `yaml:"condition" json:"condition"` // CEL: "severity == 'low' && category == 'config'"
	Reason    string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Engine compiles and executes suppression rules.
type Engine struct {
	env      *cel.Env
	programs map[string]cel.Program
	logger   *slog.Logger
}

// NewEngine initializes the CEL environment with the finding variables.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("id", decls.String),
			decls.NewVar("category", decls.String),
			decls.NewVar("severity", decls.String),
			decls.NewVar("title", decls.String),
			decls.NewVar("components", decls.NewListType(decls.String)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: create CEL env: %w", err)
	}
	return &Engine{
		env:      env,
		programs: map[string]cel.Program{},
		logger:   logger,
	}, nil
}

// Compile compiles rules into executable programs.
func (e *Engine) Compile(rules []Rule) error {
	for _, r := range rules {
		ast, issues := e.env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("policy: rule %s: %w", r.ID, issues.Err())
		}
		prg, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("policy: rule %s: %w", r.ID, err)
		}
		e.programs[r.ID] = prg
	}
	return nil
}

// Suppressed reports whether any rule matches the finding.
func (e *Engine) Suppressed(f *model.Finding) bool {
	if len(e.programs) == 0 {
		return false
	}
	vars := map[string]any{
		"id":         f.ID,
		"category":   f.Category,
		"severity":   string(f.Severity),
		"title":      f.Title,
		"components": f.AffectedComponents,
	}
	for id, prg := range e.programs {
		out, _, err := prg.Eval(vars)
		if err != nil {
			e.logger.Error("suppression rule evaluation failed", "rule_id", id, "error", err)
			continue
		}
		if match, ok := out.Value().(bool); ok && match {
			return true
		}
	}
	return false
}

// Apply drops suppressed findings from every result in the run and
// returns how many were removed. Runs before Finalize. Recommendations
// keep no references to suppressed findings: a recommendation whose
// related findings were all suppressed is dropped with them.
func (e *Engine) Apply(run *model.AnalysisRun) int {
	if len(e.programs) == 0 {
		return 0
	}
	removed := 0
	suppressed := map[string]bool{}
	for _, res := range run.Results {
		kept := res.Findings[:0]
		for i := range res.Findings {
			if e.Suppressed(&res.Findings[i]) {
				suppressed[res.Findings[i].ID] = true
				removed++
				continue
			}
			kept = append(kept, res.Findings[i])
		}
		res.Findings = kept
	}
	if len(suppressed) == 0 {
		return 0
	}

	for _, res := range run.Results {
		keptRecs := res.Recommendations[:0]
		for _, rec := range res.Recommendations {
			before := len(rec.RelatedFindingIDs)
			refs := rec.RelatedFindingIDs[:0]
			for _, id := range rec.RelatedFindingIDs {
				if !suppressed[id] {
					refs = append(refs, id)
				}
			}
			if before > 0 && len(refs) == 0 {
				continue
			}
			rec.RelatedFindingIDs = refs
			keptRecs = append(keptRecs, rec)
		}
		res.Recommendations = keptRecs
	}
	return removed
}

// LoadRules reads suppression rules from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	return doc.Rules, nil
}
