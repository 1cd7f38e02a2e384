// Package dto holds request/response shapes for the orchestrator's HTTP
// surface (spec.md §6.1), kept separate from internal/model so the wire
// contract can evolve independently of the in-process job types.
package dto

import (
	"time"

	"github.com/gasopt/optimizer/internal/model"
)

// CreateAnalysisJobRequest is the POST /api/analyze/jobs body (spec.md §6.1).
type CreateAnalysisJobRequest struct {
	Code string `json:"code" binding:"required"`
}

// CreateAnalysisJobResponse is returned on 202 Accepted, whether the job is
// new or reused via the CodeFingerprint dedupe index (spec.md §4.1).
type CreateAnalysisJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Reused bool   `json:"reused"`
}

// JobStatusResponse is the GET /api/analyze/jobs/{id} body.
type JobStatusResponse struct {
	JobID     string                 `json:"jobId"`
	Status    model.JobStatus        `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Result    *model.AnalysisResult  `json:"result,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// FromJobView adapts a model.JobView into the wire response.
func FromJobView(v model.JobView) JobStatusResponse {
	return JobStatusResponse{
		JobID:     v.ID,
		Status:    v.Status,
		Error:     v.Error,
		Result:    v.Result,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

// CancelJobResponse is returned by POST /api/analyze/jobs/{id}/cancel.
type CancelJobResponse struct {
	JobID  string          `json:"jobId"`
	Status model.JobStatus `json:"status"`
}

// ProofPayloadRequest is the POST /api/analyze/jobs/{id}/proof-payload body.
// Both fields are optional overrides; the job id comes from the path.
type ProofPayloadRequest struct {
	ContractAddress string `json:"contractAddress,omitempty"`
	ContractName    string `json:"contractName,omitempty"`
}

// ProofPayloadResponse carries the hashes and savings the ProofBuilder
// computed, ready for on-chain submission. ContractAddress/ContractName are
// the resolved values (caller override, or zero address / parsed contract
// name) that a subsequent mint-proof call would submit.
type ProofPayloadResponse struct {
	ContractAddress     string `json:"contractAddress"`
	ContractName        string `json:"contractName"`
	OriginalCodeHash    string `json:"originalCodeHash"`
	OptimizedCodeHash   string `json:"optimizedCodeHash"`
	DeploymentGasBefore int64  `json:"deploymentGasBefore"`
	DeploymentGasAfter  int64  `json:"deploymentGasAfter"`
	SavingsBps          int64  `json:"savingsBps"`
}

// MintProofRequest is the POST /api/analyze/jobs/{id}/mint-proof body. Both
// fields are optional overrides, mirroring ProofPayloadRequest, so minting
// is not forced to reuse whatever was passed to an earlier proof-payload
// call.
type MintProofRequest struct {
	ContractAddress string `json:"contractAddress,omitempty"`
	ContractName    string `json:"contractName,omitempty"`
}

// MintProofResponse is the POST /api/analyze/jobs/{id}/mint-proof body
// (spec.md §6.1): the payload minted plus the ChainSubmitter's receipt.
type MintProofResponse struct {
	Minted  bool                 `json:"minted"`
	Payload ProofPayloadResponse `json:"payload"`
	Receipt MintReceipt          `json:"receipt"`
}

// MintReceipt is the ChainSubmitter's confirmed transaction, relayed verbatim
// (spec.md §4.11: txHash, tokenId?, registryAddress, chainId).
type MintReceipt struct {
	TxHash          string `json:"txHash"`
	TokenID         string `json:"tokenId,omitempty"`
	RegistryAddress string `json:"registryAddress"`
	ChainID         int64  `json:"chainId"`
}
