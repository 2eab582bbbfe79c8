package domain

import "time"

// RunState is the lifecycle state of one analysis run.
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
	RunFailed    RunState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunCancelled || s == RunFailed
}

// RunStatus is a point-in-time snapshot of an analysis run.
type RunStatus struct {
	ID         string        `json:"id"`
	State      RunState      `json:"state"`
	TotalPages int           `json:"total_pages"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Error      string        `json:"error,omitempty"`
	Outcome    *BatchOutcome `json:"outcome,omitempty"`
}

// AnalysisMetrics summarizes the most recently finished run.
type AnalysisMetrics struct {
	TotalPages           int     `json:"total_pages"`
	AnalysisTimeMs       int64   `json:"analysis_time_ms"`
	AverageTimePerPageMs float64 `json:"average_time_per_page_ms"`
	SuccessRatePercent   float64 `json:"success_rate_percent"`
	PagesWithViolations  int     `json:"pages_with_violations"`
	TotalViolations      int     `json:"total_violations"`
}
