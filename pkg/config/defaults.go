// Package config holds the tunable thresholds the built-in analyzers
// evaluate against, plus the environment fallbacks the core recognizes.
package config

import "os"

// Thresholds groups every analyzer threshold with its default calibration.
type Thresholds struct {
	// Resource utilization (percent).
	CPUHighPercent      float64
	CPUCriticalPercent  float64
	MemHighPercent      float64
	MemCriticalPercent  float64
	DiskHighPercent     float64
	DiskCriticalPercent float64

	// License consumption vs allocation (percent).
	LicenseHighPercent     float64
	LicenseCriticalPercent float64
	// Days-to-exhaustion bands for the consumption forecast.
	LicenseCriticalDays float64
	LicenseHighDays     float64

	// Storage optimization opportunities (GB/day per destination).
	SamplingMinGB    float64
	FilteringMinGB   float64
	AggregationMinGB float64

	// Anomaly detection.
	ZScoreThreshold float64
}

// DefaultThresholds returns the shipped calibration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUHighPercent:      80,
		CPUCriticalPercent:  90,
		MemHighPercent:      80,
		MemCriticalPercent:  90,
		DiskHighPercent:     80,
		DiskCriticalPercent: 90,

		LicenseHighPercent:     85,
		LicenseCriticalPercent: 95,
		LicenseCriticalDays:    7,
		LicenseHighDays:        30,

		SamplingMinGB:    500,
		FilteringMinGB:   300,
		AggregationMinGB: 10,

		ZScoreThreshold: 3.0,
	}
}

// Environment variables consulted only when no explicit profile or
// credential is passed.
const (
	EnvURL   = "CRIBL_URL"
	EnvToken = "CRIBL_TOKEN"
)

// URLFromEnv returns the default target URL, if set.
func URLFromEnv() string { return os.Getenv(EnvURL) }

// TokenFromEnv returns the default bearer token, if set.
func TokenFromEnv() string { return os.Getenv(EnvToken) }
