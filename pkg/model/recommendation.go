package model

import "fmt"

// ImpactEstimate attaches descriptive impact prose to a recommendation.
// The engine never does arithmetic over these fields.
type ImpactEstimate struct {
	PerformanceImprovement string   `json:"performance_improvement,omitempty"`
	CostImpact             string   `json:"cost_impact,omitempty"`
	CostSavingsAnnualUSD   *float64 `json:"cost_savings_annual_usd,omitempty"`
	TimeToValue            string   `json:"time_to_value,omitempty"`
}

// Recommendation is actionable guidance derived from one or more findings.
type Recommendation struct {
	ID                   string          `json:"id" validate:"required"`
	Type                 string          `json:"type" validate:"required"`
	Priority             Priority        `json:"priority" validate:"required"`
	Title                string          `json:"title" validate:"required,max=120"`
	Description          string          `json:"description"`
	Rationale            string          `json:"rationale,omitempty"`
	ImplementationSteps  []string        `json:"implementation_steps,omitempty"`
	ImpactEstimate       *ImpactEstimate `json:"impact_estimate,omitempty"`
	ImplementationEffort Effort          `json:"implementation_effort,omitempty"`
	BeforeState          string          `json:"before_state,omitempty"`
	AfterState           string          `json:"after_state,omitempty"`
	ProductTags          []Product       `json:"product_tags,omitempty"`
	RelatedFindingIDs    []string        `json:"related_finding_ids,omitempty"`
}

// Validate enforces enum membership on the recommendation.
// Resolution of RelatedFindingIDs is checked at run level, where the
// full finding set is known.
func (r *Recommendation) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("recommendation %q: %w", r.ID, err)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("recommendation %q: unknown priority %q", r.ID, r.Priority)
	}
	return nil
}

// AppliesTo reports whether the recommendation is relevant for product p.
func (r *Recommendation) AppliesTo(p Product) bool {
	if len(r.ProductTags) == 0 {
		return true
	}
	for _, tag := range r.ProductTags {
		if tag == p {
			return true
		}
	}
	return false
}
