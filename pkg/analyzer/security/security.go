// Package security audits input and output configurations for TLS gaps,
// weak authentication and hardcoded secrets, and derives a security
// posture score.
package security

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/model"
)

const objective = "security"

// secretKeys are conf keys whose literal values count as hardcoded
// secrets unless they reference an environment variable or are an
// obvious placeholder.
var secretKeys = []string{"password", "passwd", "secret", "apiKey", "api_key", "authToken", "auth_token", "token", "privateKey"}

var envRefPattern = regexp.MustCompile(`^\$\{?[A-Za-z_][A-Za-z0-9_]*\}?$`)

var placeholders = map[string]bool{
	"": true, "changeme": true, "change_me": true, "placeholder": true,
	"redacted": true, "xxx": true, "xxxx": true, "example": true, "your-token-here": true,
}

// Analyzer inspects sources and destinations. Posture starts at 100 and
// loses 30 for disabled TLS, 20 for weak TLS versions, 15 for
// certificate verification turned off, 5 per hardcoded secret (capped
// at 25) and 10 for unauthenticated inputs.
type Analyzer struct{}

// New builds the security analyzer.
func New() *Analyzer { return &Analyzer{} }

func (a *Analyzer) ObjectiveName() string              { return objective }
func (a *Analyzer) SupportedProducts() []model.Product { return nil }
func (a *Analyzer) EstimatedAPICalls() int             { return 2 }
func (a *Analyzer) RequiredPermissions() []string {
	return []string{"GET inputs", "GET outputs"}
}

func (a *Analyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	start := time.Now()
	callsBefore := c.Limiter().Used()
	res := analyzer.NewResult(objective)

	inputs, err := c.GetInputs(ctx)
	if err != nil {
		return nil, err
	}
	outputs, err := c.GetOutputs(ctx)
	if err != nil {
		return nil, err
	}

	posture := 100
	tlsDisabled, weakTLS, noVerify, unauthenticated := false, false, false, false
	secretCount := 0

	check := func(kind string, cfg client.NamedConfig) {
		conf := cfg.Conf
		if conf == nil {
			conf = cfg.Raw
		}
		component := cfg.ID

		if tls := analyzer.SubMap(conf, "tls"); tls != nil {
			enabled := analyzer.Bool(tls, "enabled", true) && !analyzer.Bool(tls, "disabled", false)
			if !enabled {
				tlsDisabled = true
				res.AddFinding(model.Finding{
					ID:                 analyzer.FindingID(objective, "tls-disabled", component),
					Category:           "security",
					Severity:           model.SeverityHigh,
					Title:              fmt.Sprintf("TLS disabled on %s %s", kind, component),
					Description:        fmt.Sprintf("The %s %q transports data in cleartext.", kind, component),
					AffectedComponents: []string{component},
					ConfidenceLevel:    model.ConfidenceHigh,
					RemediationSteps:   []string{fmt.Sprintf("Enable TLS on %s %q", kind, component)},
				})
			} else {
				if min := analyzer.Str(tls, "minVersion", "min_version"); min == "TLSv1" || min == "TLSv1.1" {
					weakTLS = true
					res.AddFinding(model.Finding{
						ID:                 analyzer.FindingID(objective, "weak-tls", component),
						Category:           "security",
						Severity:           model.SeverityMedium,
						Title:              fmt.Sprintf("Weak TLS minimum version %s on %s", min, component),
						Description:        "TLS versions below 1.2 are deprecated and vulnerable to downgrade attacks.",
						AffectedComponents: []string{component},
						ConfidenceLevel:    model.ConfidenceHigh,
						RemediationSteps:   []string{"Raise minVersion to TLSv1.2 or later"},
					})
				}
				if reject, ok := tls["rejectUnauthorized"].(bool); ok && !reject {
					noVerify = true
					res.AddFinding(model.Finding{
						ID:                 analyzer.FindingID(objective, "no-cert-verify", component),
						Category:           "security",
						Severity:           model.SeverityMedium,
						Title:              fmt.Sprintf("Certificate verification disabled on %s", component),
						Description:        "rejectUnauthorized is false; the connection accepts any certificate.",
						AffectedComponents: []string{component},
						ConfidenceLevel:    model.ConfidenceHigh,
					})
				}
			}
		}

		for _, key := range secretKeys {
			v, ok := conf[key].(string)
			if !ok || !isHardcodedSecret(v) {
				continue
			}
			secretCount++
			res.AddFinding(model.Finding{
				ID:                 analyzer.FindingID(objective, "hardcoded-secret", component, key),
				Category:           "security",
				Severity:           model.SeverityCritical,
				Title:              fmt.Sprintf("Hardcoded secret in %s %s (%s)", kind, component, key),
				Description:        fmt.Sprintf("The %q field of %s %q holds a literal credential visible to anyone who can read the configuration.", key, kind, component),
				AffectedComponents: []string{component},
				ConfidenceLevel:    model.ConfidenceHigh,
				RemediationSteps: []string{
					"Move the credential into a secret store or environment variable reference",
					"Rotate the exposed credential",
				},
			})
		}

		if kind == "input" {
			switch analyzer.Str(conf, "authType", "auth_type") {
			case "none":
				unauthenticated = true
				res.AddFinding(model.Finding{
					ID:                 analyzer.FindingID(objective, "no-auth", component),
					Category:           "security",
					Severity:           model.SeverityHigh,
					Title:              fmt.Sprintf("Input %s accepts unauthenticated data", component),
					Description:        "Anyone who can reach this listener can inject events.",
					AffectedComponents: []string{component},
					ConfidenceLevel:    model.ConfidenceHigh,
					RemediationSteps:   []string{"Require token or credential authentication on the input"},
				})
			case "basic":
				res.AddFinding(model.Finding{
					ID:                 analyzer.FindingID(objective, "basic-auth", component),
					Category:           "security",
					Severity:           model.SeverityLow,
					Title:              fmt.Sprintf("Input %s uses basic authentication", component),
					Description:        "Basic auth is acceptable only over TLS; prefer token auth.",
					AffectedComponents: []string{component},
					ConfidenceLevel:    model.ConfidenceMedium,
				})
			}
		}
	}

	for _, in := range inputs {
		check("input", in)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, out := range outputs {
		check("output", out)
	}

	if tlsDisabled {
		posture -= 30
	}
	if weakTLS {
		posture -= 20
	}
	if noVerify {
		posture -= 15
	}
	if secretCount > 0 {
		posture -= min(5*secretCount, 25)
	}
	if unauthenticated {
		posture -= 10
	}
	if posture < 0 {
		posture = 0
	}

	res.SetMeta("security_posture_score", posture)
	res.SetMeta("input_count", len(inputs))
	res.SetMeta("output_count", len(outputs))
	analyzer.FinishResult(res, start, callsBefore, c.Limiter().Used())
	return res, nil
}

func isHardcodedSecret(v string) bool {
	if envRefPattern.MatchString(v) {
		return false
	}
	return !placeholders[strings.ToLower(v)]
}
