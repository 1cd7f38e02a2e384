package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gasopt/optimizer/internal/model/dto"
	"github.com/gasopt/optimizer/internal/orchestrator"
	"github.com/gasopt/optimizer/internal/pkg/response"
)

// AnalyzeHandler serves the orchestrator's HTTP surface (spec.md §6.1).
type AnalyzeHandler struct {
	registry *orchestrator.JobRegistry
	proof    *orchestrator.ProofBuilder
}

func NewAnalyzeHandler(registry *orchestrator.JobRegistry, proof *orchestrator.ProofBuilder) *AnalyzeHandler {
	return &AnalyzeHandler{registry: registry, proof: proof}
}

// Create handles POST /api/analyze/jobs.
func (h *AnalyzeHandler) Create(c *gin.Context) {
	var req dto.CreateAnalysisJobRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		response.BadRequest(c, "code must not be empty")
		return
	}

	view, reused := h.registry.CreateOrReuseJob(c.Request.Context(), req.Code)
	c.JSON(http.StatusAccepted, dto.CreateAnalysisJobResponse{
		JobID:  view.ID,
		Status: string(view.Status),
		Reused: reused,
	})
}

// Get handles GET /api/analyze/jobs/{id}.
func (h *AnalyzeHandler) Get(c *gin.Context) {
	view, ok := h.registry.GetJob(c.Param("id"))
	if !ok {
		response.NotFound(c, "job not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromJobView(view))
}

// Cancel handles POST /api/analyze/jobs/{id}/cancel.
func (h *AnalyzeHandler) Cancel(c *gin.Context) {
	view, ok := h.registry.CancelJob(c.Param("id"))
	if !ok {
		response.NotFound(c, "job not found")
		return
	}
	c.JSON(http.StatusOK, dto.CancelJobResponse{JobID: view.ID, Status: view.Status})
}

// Events handles GET /api/analyze/jobs/{id}/events, streaming the job's
// progress timeline as server-sent events (spec.md §6.1). Backlog-then-live
// delivery comes from JobRegistry.Subscribe; this handler's only job is
// framing and closing after a terminal event.
func (h *AnalyzeHandler) Events(c *gin.Context) {
	events, detach, ok := h.registry.Subscribe(c.Param("id"))
	if !ok {
		response.NotFound(c, "job not found")
		return
	}
	defer detach()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, canFlush := c.Writer.(http.Flusher)

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			writeSSE(c.Writer, "progress", fmt.Sprintf(`{"phase":%q,"message":%q,"timestamp":%q}`,
				event.Phase, event.Message, event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")))
			if canFlush {
				flusher.Flush()
			}
			if event.Phase.IsTerminal() {
				writeSSE(c.Writer, "done", fmt.Sprintf(`{"status":%q}`, event.Phase))
				if canFlush {
					flusher.Flush()
				}
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// ProofPayload handles POST /api/analyze/jobs/{id}/proof-payload.
func (h *AnalyzeHandler) ProofPayload(c *gin.Context) {
	view, ok := h.registry.GetJob(c.Param("id"))
	if !ok {
		response.NotFound(c, "job not found")
		return
	}

	var req dto.ProofPayloadRequest
	_ = c.ShouldBindJSON(&req) // both fields optional, absent body is fine

	payload, err := h.proof.BuildPayload(view, req.ContractAddress, req.ContractName)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, toProofPayloadResponse(payload))
}

// MintProof handles POST /api/analyze/jobs/{id}/mint-proof.
func (h *AnalyzeHandler) MintProof(c *gin.Context) {
	view, ok := h.registry.GetJob(c.Param("id"))
	if !ok {
		response.NotFound(c, "job not found")
		return
	}

	var req dto.MintProofRequest
	_ = c.ShouldBindJSON(&req) // both fields optional, absent body is fine

	payload, err := h.proof.BuildPayload(view, req.ContractAddress, req.ContractName)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	receipt, err := h.proof.Submit(c.Request.Context(), view, req.ContractAddress, req.ContractName)
	if err != nil {
		if err == orchestrator.ErrChainNotConfigured {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.MintProofResponse{
		Minted:  true,
		Payload: toProofPayloadResponse(payload),
		Receipt: dto.MintReceipt{
			TxHash:          receipt.TxHash,
			TokenID:         receipt.TokenID,
			RegistryAddress: receipt.RegistryAddress,
			ChainID:         receipt.ChainID,
		},
	})
}

func toProofPayloadResponse(p orchestrator.Payload) dto.ProofPayloadResponse {
	return dto.ProofPayloadResponse{
		ContractAddress:     p.ContractAddress,
		ContractName:        p.ContractName,
		OriginalCodeHash:    p.OriginalCodeHash,
		OptimizedCodeHash:   p.OptimizedCodeHash,
		DeploymentGasBefore: p.DeploymentGasBefore,
		DeploymentGasAfter:  p.DeploymentGasAfter,
		SavingsBps:          p.SavingsBps,
	}
}
