package model

import (
	"sync"
	"time"
)

// JobStatus is an AnalysisJob's phase-status (spec.md §3). The first four
// values are non-terminal, the last three are terminal.
type JobStatus string

const (
	StatusQueued          JobStatus = "queued"
	StatusStaticAnalysis   JobStatus = "static_analysis"
	StatusDynamicAnalysis  JobStatus = "dynamic_analysis"
	StatusAIOptimization   JobStatus = "ai_optimization"
	StatusCompleted        JobStatus = "completed"
	StatusFailed           JobStatus = "failed"
	StatusCancelled        JobStatus = "cancelled"
)

// IsTerminal reports whether a status is one of completed/failed/cancelled.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ProgressEvent is one message on a job's progress timeline.
type ProgressEvent struct {
	Phase     JobStatus `json:"phase"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StaticFunction is one function fragment reported by the static analysis
// phase's parser collaborator.
type StaticFunction struct {
	Name        string     `json:"name"`
	Visibility  string     `json:"visibility"`
	Mutability  Mutability `json:"mutability"`
}

// StaticProfile is the output of the static_analysis phase.
type StaticProfile struct {
	ContractName string           `json:"contractName"`
	Functions    []StaticFunction `json:"functions"`
}

// EditOperation is one edit the AI proposed against the original source.
type EditOperation struct {
	Action    string `json:"action"` // replace | insert | delete
	LineStart int    `json:"lineStart"`
	LineEnd   int    `json:"lineEnd"`
	Before    string `json:"before"`
	After     string `json:"after"`
	Rationale string `json:"rationale"`
}

// Optimization is one named optimization the AI claims to have applied.
type Optimization struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AIMeta carries bookkeeping about how the AI result was produced.
type AIMeta struct {
	Provider             string   `json:"provider"`
	Model                string   `json:"model"`
	Retries              int      `json:"retries"`
	SchemaRepairAttempts int      `json:"schemaRepairAttempts"`
	VerifierVerdict      string   `json:"verifierVerdict,omitempty"`
	Warnings             []string `json:"warnings,omitempty"`
}

// AIResult is the AI optimization loop's output, whether a cycle succeeded
// or every cycle was exhausted and a fallback was returned (spec.md §4.3).
type AIResult struct {
	Optimizations         []Optimization  `json:"optimizations"`
	Edits                 []EditOperation `json:"edits"`
	OptimizedSource       string          `json:"optimizedSource"`
	TotalEstimatedSaving   string          `json:"totalEstimatedSaving"`
	Meta                   AIMeta          `json:"meta"`
}

// AcceptanceChecks is the set of measurements behind an acceptance verdict.
type AcceptanceChecks struct {
	Compiled                           bool    `json:"compiled"`
	ABICompatible                      bool    `json:"abiCompatible"`
	DeploymentGasRegressionPct         float64 `json:"deploymentGasRegressionPct"`
	AverageMutableFunctionRegressionPct float64 `json:"averageMutableFunctionRegressionPct"`
	Improved                           bool    `json:"improved"`
}

// AcceptanceVerdict is the sum type Accepted(reason, checks) |
// Rejected(reason, checks) flattened into one struct with a boolean tag,
// matching the JSON shape required by spec.md §3.
type AcceptanceVerdict struct {
	Accepted bool             `json:"accepted"`
	Reason   string           `json:"reason"`
	Checks   AcceptanceChecks `json:"checks"`
}

// AnalysisResult is emitted when an AnalysisJob reaches StatusCompleted.
type AnalysisResult struct {
	OriginalContract    string             `json:"originalContract"`
	StaticProfile       StaticProfile      `json:"staticProfile"`
	BaselineProfile     *GasProfile        `json:"baselineProfile"`
	OptimizedProfile    *GasProfile        `json:"optimizedProfile"`
	AI                  AIResult           `json:"ai"`
	Acceptance          AcceptanceVerdict  `json:"acceptance"`
	Attempts            int                `json:"attempts"`
}

// AnalysisJob is the orchestrator's owned job record (spec.md §3). It is
// never persisted — the orchestrator carries no job history across
// restarts, by design (spec.md §1 Non-goals).
type AnalysisJob struct {
	mu sync.Mutex

	ID              string
	Source          string
	Status          JobStatus
	Events          []ProgressEvent
	Result          *AnalysisResult
	Err             string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// JobView is the public projection of an AnalysisJob — the source text is
// never leaked to callers, per spec.md §4.1 getJob.
type JobView struct {
	ID        string          `json:"jobId"`
	Status    JobStatus       `json:"status"`
	Error     string          `json:"error,omitempty"`
	Result    *AnalysisResult `json:"result,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// View snapshots the job under its lock, safe for concurrent callers.
func (j *AnalysisJob) View() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobView{
		ID:        j.ID,
		Status:    j.Status,
		Error:     j.Err,
		Result:    j.Result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ViewLocked snapshots the job without locking — callers must already
// hold the lock via Lock(). Used by code that needs to mutate several
// fields and read back a consistent view in the same critical section.
func (j *AnalysisJob) ViewLocked() JobView {
	return JobView{
		ID:        j.ID,
		Status:    j.Status,
		Error:     j.Err,
		Result:    j.Result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// Lock/Unlock expose the job's mutex to the owning pipeline task so it can
// perform a multi-field mutation atomically (status + event append, etc).
// Only the pipeline goroutine that owns this job and the registry's
// CancelJob call should ever call these.
func (j *AnalysisJob) Lock()   { j.mu.Lock() }
func (j *AnalysisJob) Unlock() { j.mu.Unlock() }
