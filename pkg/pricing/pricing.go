// Package pricing estimates the dollar impact of volume-reduction
// recommendations using a per-destination price table. The shipped table
// can be overridden from a YAML file.
package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Table maps destination types to ingest cost in USD per GB per month.
type Table struct {
	// PerGBUSD is keyed by destination type (e.g. "splunk", "s3").
	PerGBUSD map[string]float64 `yaml:"per_gb_usd"`
	// DefaultPerGBUSD applies to destination types not in the table.
	DefaultPerGBUSD float64 `yaml:"default_per_gb_usd"`
}

// DefaultTable returns the shipped price calibration.
func DefaultTable() *Table {
	return &Table{
		PerGBUSD: map[string]float64{
			"splunk":        4.50,
			"splunk_hec":    4.50,
			"elastic":       2.80,
			"elasticsearch": 2.80,
			"datadog":       3.10,
			"new_relic":     2.50,
			"s3":            0.023,
			"azure_blob":    0.021,
			"gcs":           0.020,
			"cribl_lake":    0.35,
		},
		DefaultPerGBUSD: 1.00,
	}
}

// Load reads a price table from a YAML file, filling gaps from the
// shipped defaults.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pricing: read %s: %w", path, err)
	}
	t := DefaultTable()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("pricing: parse %s: %w", path, err)
	}
	if t.DefaultPerGBUSD <= 0 {
		t.DefaultPerGBUSD = DefaultTable().DefaultPerGBUSD
	}
	return t, nil
}

// PerGB returns the per-GB monthly ingest cost for a destination type.
func (t *Table) PerGB(destType string) float64 {
	if price, ok := t.PerGBUSD[destType]; ok {
		return price
	}
	return t.DefaultPerGBUSD
}

// AnnualSavingsUSD estimates yearly savings from reducing the daily
// volume to destType by reductionPct percent.
func (t *Table) AnnualSavingsUSD(destType string, gbPerDay, reductionPct float64) float64 {
	if gbPerDay <= 0 || reductionPct <= 0 {
		return 0
	}
	savedPerDay := gbPerDay * reductionPct / 100
	return savedPerDay * 365 * t.PerGB(destType)
}
