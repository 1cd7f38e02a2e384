package orchestrator

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"

	"golang.org/x/crypto/sha3"

	"github.com/gasopt/optimizer/internal/model"
)

// ProofBuilder turns a completed, accepted AnalysisResult into an on-chain
// proof submission, per spec.md §4.11. It refuses anything that is not
// status=completed, acceptance.accepted, with an optimized profile present.
type ProofBuilder struct {
	chain ChainSubmitter
}

func NewProofBuilder(chain ChainSubmitter) *ProofBuilder {
	return &ProofBuilder{chain: chain}
}

// ErrJobNotEligibleForProof is returned when the job's terminal state does
// not satisfy spec.md §4.11's eligibility rule.
var ErrJobNotEligibleForProof = fmt.Errorf("job is not eligible for a gas-optimization proof")

// zeroAddress is the registry-call default when a caller submits no
// contractAddress override, per spec.md §4.11's `contractAddress|zero`.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// Payload is the hashed, gas-summarized view minted on-chain, also returned
// to callers of the proof-payload endpoint before minting.
type Payload struct {
	ContractAddress     string
	ContractName        string
	OriginalCodeHash    string
	OptimizedCodeHash   string
	DeploymentGasBefore int64
	DeploymentGasAfter  int64
	SavingsBps          int64
}

// resolveContractAddress honors a caller-supplied override, defaulting to
// the zero address when absent, per spec.md §4.11.
func resolveContractAddress(override string) string {
	if override == "" {
		return zeroAddress
	}
	return override
}

// resolveContractName honors a caller-supplied override, defaulting to the
// name the static parser found on the original source.
func resolveContractName(override, parsed string) string {
	if override == "" {
		return parsed
	}
	return override
}

// keccak256 hashes the UTF-8 bytes of parts concatenated in order, matching
// spec.md §4.11's optimizedHash = keccak256(utf8(optimizedSource ||
// originalSource)).
func keccak256(parts ...string) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// BuildPayload computes the hashes and gas summary for a completed,
// accepted job, without submitting anything on-chain. contractAddress and
// contractName are optional caller overrides (spec.md §6.1's
// `{contractAddress?, contractName?}`); contractAddress defaults to the
// zero address and contractName to the parser's static contract name.
func (b *ProofBuilder) BuildPayload(view model.JobView, contractAddress, contractName string) (Payload, error) {
	if !eligibleForProof(view) {
		return Payload{}, ErrJobNotEligibleForProof
	}

	result := view.Result
	originalHash := keccak256(result.OriginalContract, "")
	optimizedHash := keccak256(result.AI.OptimizedSource, result.OriginalContract)

	before := gasSummary(result.BaselineProfile)
	after := gasSummary(result.OptimizedProfile)
	savingsBps := savingsPercentBps(before, after)

	return Payload{
		ContractAddress:     resolveContractAddress(contractAddress),
		ContractName:        resolveContractName(contractName, result.StaticProfile.ContractName),
		OriginalCodeHash:    "0x" + hex.EncodeToString(originalHash[:]),
		OptimizedCodeHash:   "0x" + hex.EncodeToString(optimizedHash[:]),
		DeploymentGasBefore: before,
		DeploymentGasAfter:  after,
		SavingsBps:          savingsBps,
	}, nil
}

// Submit builds the payload and relays it to the ChainSubmitter collaborator.
// contractAddress and contractName are the same optional overrides
// BuildPayload takes; Submit resolves them the same way before handing them
// to the registry call (spec.md §4.11).
func (b *ProofBuilder) Submit(ctx context.Context, view model.JobView, contractAddress, contractName string) (SubmitProofReceipt, error) {
	if b.chain == nil {
		return SubmitProofReceipt{}, ErrChainNotConfigured
	}
	if !eligibleForProof(view) {
		return SubmitProofReceipt{}, ErrJobNotEligibleForProof
	}

	result := view.Result
	originalHash := keccak256(result.OriginalContract, "")
	optimizedHash := keccak256(result.AI.OptimizedSource, result.OriginalContract)

	before := gasSummary(result.BaselineProfile)
	after := gasSummary(result.OptimizedProfile)

	receipt, err := b.chain.SubmitProof(ctx, SubmitProofArgs{
		OriginalHash:      originalHash,
		OptimizedHash:     optimizedHash,
		ContractAddress:   resolveContractAddress(contractAddress),
		ContractName:      resolveContractName(contractName, result.StaticProfile.ContractName),
		OriginalGas:       clampToUint32(before),
		OptimizedGas:      clampToUint32(after),
		SavingsPercentBps: clampToUint32(savingsPercentBps(before, after)),
	})
	if err != nil {
		return SubmitProofReceipt{}, err
	}

	// RegistryAddress/ChainID identify which registry and network the
	// receipt's tx hash actually belongs to (spec.md §4.11); the submitter
	// already knows both, so Submit attaches them rather than asking every
	// caller to look them up separately.
	receipt.RegistryAddress = b.chain.RegistryAddress()
	receipt.ChainID = b.chain.ChainID()
	return receipt, nil
}

func eligibleForProof(view model.JobView) bool {
	if view.Status != model.StatusCompleted || view.Result == nil {
		return false
	}
	result := view.Result
	return result.Acceptance.Accepted && result.OptimizedProfile != nil
}

// gasSummary is the average measured gas over nonpayable/payable entries,
// falling back to deployment gas when no such entry was measured, per
// spec.md §4.11.
func gasSummary(profile *model.GasProfile) int64 {
	if profile == nil {
		return 0
	}
	if avg := profile.AverageMutableFunctionGas(); avg > 0 {
		return int64(avg)
	}
	return profile.DeploymentGas
}

// savingsPercentBps clamps the computed savings into [0, 10000] basis
// points, per spec.md §4.11.
func savingsPercentBps(before, after int64) int64 {
	if before <= 0 {
		return 0
	}
	pct := float64(before-after) / float64(before) * 100
	bps := int64(math.Round(pct * 100))
	if bps < 0 {
		bps = 0
	}
	if bps > 10000 {
		bps = 10000
	}
	return bps
}

func clampToUint32(v int64) uint32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
