package model

import "time"

// RunStatus is the pipeline run state machine. Transitions are
// one-directional; COMPLETED and FAILED are terminal.
type RunStatus string

const (
	StatusPending         RunStatus = "pending"
	StatusExtracting      RunStatus = "extracting"
	StatusTransforming    RunStatus = "transforming"
	StatusQualityChecking RunStatus = "quality_checking"
	StatusLoading         RunStatus = "loading"
	StatusCompleted       RunStatus = "completed"
	StatusFailed          RunStatus = "failed"
)

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusEvent is one timestamped transition, appended for external
// observers.
type StatusEvent struct {
	Status RunStatus `json:"status"`
	At     time.Time `json:"at"`
}

// RunCounts aggregates record counts across stages. A completed run may
// still carry rejected or failed records: callers judge success by the
// counts, not only the status.
type RunCounts struct {
	Extracted   int `json:"extracted"`
	Transformed int `json:"transformed"`
	Loaded      int `json:"loaded"`
	Rejected    int `json:"rejected"`    // rejected by transform
	FailedLoads int `json:"failed_loads"` // rejected by the sink
}

// StageError records a stage-level failure with its classification.
type StageError struct {
	Stage   string    `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// PipelineRun aggregates one end-to-end execution. The orchestrator owns
// it exclusively and mutates it only at stage boundaries; once the status
// is terminal it never changes again.
type PipelineRun struct {
	RunID         string         `json:"run_id"`
	Source        Source         `json:"source"`
	Status        RunStatus      `json:"status"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       *time.Time     `json:"ended_at,omitempty"`
	Counts        RunCounts      `json:"counts"`
	Report        *QualityReport `json:"report,omitempty"`
	Errors        []StageError   `json:"errors,omitempty"`
	Events        []StatusEvent  `json:"events"`
	RetryAttempts int            `json:"retry_attempts"`
}

// Clone returns a deep copy suitable for serving to external callers
// while the run is still executing.
func (r PipelineRun) Clone() PipelineRun {
	out := r
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	if r.Report != nil {
		rep := *r.Report
		rep.Findings = append([]Finding(nil), r.Report.Findings...)
		out.Report = &rep
	}
	out.Errors = append([]StageError(nil), r.Errors...)
	out.Events = append([]StatusEvent(nil), r.Events...)
	return out
}
