package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// WorkerStatus is a WorkerJob's lifecycle status (spec.md §3).
type WorkerStatus string

const (
	WorkerQueued     WorkerStatus = "queued"
	WorkerProcessing WorkerStatus = "processing"
	WorkerCompleted  WorkerStatus = "completed"
	WorkerFailed     WorkerStatus = "failed"
	WorkerCancelled  WorkerStatus = "cancelled"
)

// IsTerminal reports whether the status is completed/failed/cancelled.
func (s WorkerStatus) IsTerminal() bool {
	switch s {
	case WorkerCompleted, WorkerFailed, WorkerCancelled:
		return true
	default:
		return false
	}
}

// WorkerResultJSON wraps a *GasProfile so gorm can store it as a single
// JSON column, mirroring the teacher's StringArray Value/Scan pattern in
// internal/model/analysis.go (qs3c) adapted to a richer payload.
type WorkerResultJSON struct {
	DeploymentGas int64                       `json:"deploymentGas"`
	Functions     map[string]FunctionGasEntry `json:"functions"`
	ABI           json.RawMessage             `json:"abi,omitempty"`
	Bytecode      string                      `json:"bytecode,omitempty"`
	ContractName  string                      `json:"contractName,omitempty"`
}

func (r WorkerResultJSON) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *WorkerResultJSON) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, r)
}

// ToGasProfile converts the persisted result back into a *GasProfile, or
// nil if empty.
func (r *WorkerResultJSON) ToGasProfile() *GasProfile {
	if r == nil {
		return nil
	}
	return &GasProfile{
		DeploymentGas: r.DeploymentGas,
		Functions:     r.Functions,
		ABI:           r.ABI,
		Bytecode:      r.Bytecode,
		ContractName:  r.ContractName,
	}
}

// WorkerResultFromGasProfile builds the persisted result shape from a profile.
func WorkerResultFromGasProfile(p *GasProfile) *WorkerResultJSON {
	if p == nil {
		return nil
	}
	return &WorkerResultJSON{
		DeploymentGas: p.DeploymentGas,
		Functions:     p.Functions,
		ABI:           p.ABI,
		Bytecode:      p.Bytecode,
		ContractName:  p.ContractName,
	}
}

// WorkerJob is the worker's durable job record (spec.md §3, §4.10). It is
// upserted on every status transition and retained after terminal states
// for retry/inspection.
type WorkerJob struct {
	ID              string             `gorm:"primaryKey;size:36" json:"id"`
	SourceCode      string             `gorm:"type:text;not null" json:"-"`
	Status          WorkerStatus       `gorm:"size:20;not null;index" json:"status"`
	Attempts        int                `gorm:"not null;default:1" json:"attempts"`
	CancelRequested bool               `gorm:"not null;default:false" json:"cancelRequested"`
	CreatedAt       time.Time          `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	Error           string             `gorm:"type:text" json:"error,omitempty"`
	Result          *WorkerResultJSON  `gorm:"type:json" json:"result,omitempty"`
	RetryOf         *string            `gorm:"size:36;index" json:"retryOf,omitempty"`
}

func (WorkerJob) TableName() string {
	return "analysis_jobs"
}

// View is the public projection of a WorkerJob — SourceCode is never
// leaked outside the worker process, per spec.md §4.7 get(id).
type WorkerJobView struct {
	ID              string            `json:"jobId"`
	Status          WorkerStatus      `json:"status"`
	Attempts        int               `json:"attempts"`
	CancelRequested bool              `json:"cancelRequested"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	Error           string            `json:"error,omitempty"`
	Result          *WorkerResultJSON `json:"result,omitempty"`
	RetryOf         *string           `json:"retryOf,omitempty"`
}

func (j *WorkerJob) View() WorkerJobView {
	return WorkerJobView{
		ID:              j.ID,
		Status:          j.Status,
		Attempts:        j.Attempts,
		CancelRequested: j.CancelRequested,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		Error:           j.Error,
		Result:          j.Result,
		RetryOf:         j.RetryOf,
	}
}
