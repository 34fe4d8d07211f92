package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// OverallComponent is the sentinel component id for deployment-wide findings
// that do not map to a specific worker, pipeline or destination.
const OverallComponent = "overall"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Finding is an atomic observation about the deployment.
type Finding struct {
	ID                 string         `json:"id" validate:"required"`
	Category           string         `json:"category" validate:"required"`
	Severity           Severity       `json:"severity" validate:"required"`
	Title              string         `json:"title" validate:"required,max=120"`
	Description        string         `json:"description"`
	AffectedComponents []string       `json:"affected_components"`
	ConfidenceLevel    Confidence     `json:"confidence_level,omitempty"`
	EstimatedImpact    string         `json:"estimated_impact,omitempty"`
	RemediationSteps   []string       `json:"remediation_steps,omitempty"`
	ProductTags        []Product      `json:"product_tags,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// Validate enforces the finding invariants: enum membership, title length,
// and at least one affected component (or the "overall" sentinel).
func (f *Finding) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("finding %q: %w", f.ID, err)
	}
	if !f.Severity.Valid() {
		return fmt.Errorf("finding %q: unknown severity %q", f.ID, f.Severity)
	}
	if len(f.AffectedComponents) == 0 {
		return fmt.Errorf("finding %q: no affected components (use %q for deployment-wide findings)", f.ID, OverallComponent)
	}
	for _, p := range f.ProductTags {
		if !p.Valid() {
			return fmt.Errorf("finding %q: unknown product tag %q", f.ID, p)
		}
	}
	return nil
}

// AppliesTo reports whether the finding is relevant for product p.
// An empty tag set is universal.
func (f *Finding) AppliesTo(p Product) bool {
	if len(f.ProductTags) == 0 {
		return true
	}
	for _, tag := range f.ProductTags {
		if tag == p {
			return true
		}
	}
	return false
}
