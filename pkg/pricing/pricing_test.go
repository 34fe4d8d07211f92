package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerGBFallsBackToDefault(t *testing.T) {
	table := DefaultTable()
	assert.Equal(t, 4.50, table.PerGB("splunk"))
	assert.Equal(t, table.DefaultPerGBUSD, table.PerGB("some_unknown_destination"))
}

func TestAnnualSavings(t *testing.T) {
	table := DefaultTable()

	// 600 GB/day to splunk, 30% reduction: 180 GB/day * 365 * 4.50.
	savings := table.AnnualSavingsUSD("splunk", 600, 30)
	assert.InDelta(t, 180*365*4.50, savings, 0.01)

	assert.Equal(t, 0.0, table.AnnualSavingsUSD("splunk", 0, 30))
	assert.Equal(t, 0.0, table.AnnualSavingsUSD("splunk", 600, 0))
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("per_gb_usd:\n  splunk: 9.99\n"), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9.99, table.PerGB("splunk"))
	// Defaults still apply for everything else.
	assert.Greater(t, table.DefaultPerGBUSD, 0.0)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
