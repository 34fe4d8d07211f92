// Package all wires the built-in analyzers into a registry. Callers pick
// the thresholds and price table once; every analyzer factory closes
// over them.
package all

import (
	"github.com/quietops/criblscope/pkg/analyzer"
	"github.com/quietops/criblscope/pkg/analyzer/configcheck"
	"github.com/quietops/criblscope/pkg/analyzer/cost"
	"github.com/quietops/criblscope/pkg/analyzer/health"
	"github.com/quietops/criblscope/pkg/analyzer/lake"
	"github.com/quietops/criblscope/pkg/analyzer/predictive"
	"github.com/quietops/criblscope/pkg/analyzer/resource"
	"github.com/quietops/criblscope/pkg/analyzer/search"
	"github.com/quietops/criblscope/pkg/analyzer/security"
	"github.com/quietops/criblscope/pkg/analyzer/storage"
	"github.com/quietops/criblscope/pkg/config"
	"github.com/quietops/criblscope/pkg/pricing"
)

// Options carries the shared calibration the built-in analyzers need.
type Options struct {
	Thresholds config.Thresholds
	Pricing    *pricing.Table
	// History feeds the cost forecast (daily license usage, oldest first).
	History []float64
	// Series and Capacity feed the predictive analyzer.
	Series   map[string][]float64
	Capacity map[string]float64
}

// Register adds every built-in analyzer to reg.
func Register(reg *analyzer.Registry, opts Options) {
	th := opts.Thresholds
	table := opts.Pricing
	if table == nil {
		table = pricing.DefaultTable()
	}

	reg.MustRegister(func() analyzer.Analyzer { return health.New() })
	reg.MustRegister(func() analyzer.Analyzer { return configcheck.New() })
	reg.MustRegister(func() analyzer.Analyzer { return resource.New(th) })
	reg.MustRegister(func() analyzer.Analyzer { return security.New() })
	reg.MustRegister(func() analyzer.Analyzer {
		a := cost.New(th, table)
		a.History = opts.History
		return a
	})
	reg.MustRegister(func() analyzer.Analyzer { return storage.New(th, table) })
	reg.MustRegister(func() analyzer.Analyzer { return predictive.New(th, opts.Series, opts.Capacity) })
	reg.MustRegister(func() analyzer.Analyzer { return lake.New() })
	reg.MustRegister(func() analyzer.Analyzer { return search.New() })
}

// NewRegistry builds a registry holding every built-in analyzer.
func NewRegistry(opts Options) *analyzer.Registry {
	reg := analyzer.NewRegistry()
	Register(reg, opts)
	return reg
}
