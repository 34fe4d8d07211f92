// Package model defines the shared report data model: findings,
// recommendations, per-analyzer results and the top-level analysis run.
package model

// Severity classifies how bad a finding is, least to most severe.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordinal position of the severity (info=0 .. critical=4).
// Unknown severities rank below info.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is a member of the severity enum.
func (s Severity) Valid() bool { _, ok := severityRank[s]; return ok }

// Severities lists all severities, least to most severe.
func Severities() []Severity {
	return []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Priority classifies how urgent a recommendation is, least to most urgent.
type Priority string

const (
	PriorityP3 Priority = "p3"
	PriorityP2 Priority = "p2"
	PriorityP1 Priority = "p1"
	PriorityP0 Priority = "p0"
)

var priorityRank = map[Priority]int{
	PriorityP3: 0,
	PriorityP2: 1,
	PriorityP1: 2,
	PriorityP0: 3,
}

// Rank returns the ordinal position of the priority (p3=0 .. p0=3).
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return -1
}

// Valid reports whether p is a member of the priority enum.
func (p Priority) Valid() bool { _, ok := priorityRank[p]; return ok }

// Confidence expresses how sure an analyzer is about a finding.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Effort expresses how much work a recommendation takes to implement.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Product identifies the Cribl product kind under analysis.
type Product string

const (
	ProductStream Product = "stream"
	ProductEdge   Product = "edge"
	ProductLake   Product = "lake"
	ProductSearch Product = "search"
)

// AllProducts lists every known product.
func AllProducts() []Product {
	return []Product{ProductStream, ProductEdge, ProductLake, ProductSearch}
}

// Valid reports whether p is a known product.
func (p Product) Valid() bool {
	switch p {
	case ProductStream, ProductEdge, ProductLake, ProductSearch:
		return true
	}
	return false
}

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusPartial   RunStatus = "partial"
	StatusFailed    RunStatus = "failed"
)
