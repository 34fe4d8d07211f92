package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/model"
)

type stubAnalyzer struct {
	name     string
	products []model.Product
}

func (s *stubAnalyzer) ObjectiveName() string               { return s.name }
func (s *stubAnalyzer) SupportedProducts() []model.Product  { return s.products }
func (s *stubAnalyzer) EstimatedAPICalls() int              { return 1 }
func (s *stubAnalyzer) RequiredPermissions() []string       { return nil }
func (s *stubAnalyzer) Analyze(ctx context.Context, c *client.Client) (*model.AnalyzerResult, error) {
	return NewResult(s.name), nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(func() Analyzer { return &stubAnalyzer{name: "health"} }))

	f, err := r.Lookup("health")
	require.NoError(t, err)
	assert.Equal(t, "health", f().ObjectiveName())
}

func TestRegistryDuplicateFailsLoudly(t *testing.T) {
	r := NewRegistry()
	f := func() Analyzer { return &stubAnalyzer{name: "health"} }
	require.NoError(t, r.Register(f))
	require.Error(t, r.Register(f))
	assert.Panics(t, func() { r.MustRegister(f) })
}

func TestRegistryUnknownObjective(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("nope")
	require.Error(t, err)
}

func TestObjectivesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"security", "health", "config"} {
		n := name
		require.NoError(t, r.Register(func() Analyzer { return &stubAnalyzer{name: n} }))
	}
	assert.Equal(t, []string{"config", "health", "security"}, r.Objectives())
}

func TestSupports(t *testing.T) {
	universal := &stubAnalyzer{name: "a"}
	assert.True(t, Supports(universal, model.ProductStream))
	assert.True(t, Supports(universal, model.ProductLake))

	edgeOnly := &stubAnalyzer{name: "b", products: []model.Product{model.ProductEdge}}
	assert.True(t, Supports(edgeOnly, model.ProductEdge))
	assert.False(t, Supports(edgeOnly, model.ProductStream))
}
