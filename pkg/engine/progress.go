package engine

import "github.com/quietops/criblscope/pkg/model"

// EventType tags one progress event.
type EventType string

const (
	EventAnalyzerStarted   EventType = "analyzer_started"
	EventAnalyzerCompleted EventType = "analyzer_completed"
	EventAnalyzerFailed    EventType = "analyzer_failed"
	EventRunCompleted      EventType = "run_completed"
	EventRunFailed         EventType = "run_failed"
)

// ProgressEvent is one step of a streaming run. The terminal event
// (run_completed or run_failed) carries the finished run; the channel is
// closed right after it.
type ProgressEvent struct {
	Type         EventType          `json:"type"`
	Objective    string             `json:"objective,omitempty"`
	FindingCount int                `json:"finding_count,omitempty"`
	Error        string             `json:"error,omitempty"`
	Run          *model.AnalysisRun `json:"run,omitempty"`
}
