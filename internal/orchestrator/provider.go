package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gasopt/optimizer/config"
)

// AIProvider is the AI-model collaborator: an opaque text-in/text-out (or
// json-in/json-out) endpoint. Real provider SDKs live outside this
// system's hard core (spec.md §1 Non-goals); this interface is the seam.
type AIProvider interface {
	Name() string
	Models() []string
	Complete(ctx context.Context, modelName string, prompt string, jsonMode bool) (string, error)
}

// retriableMarkers mirrors the teacher's classifyCloneError string-match
// approach (internal/worker/git.go isTransient), adapted to the AI
// provider error vocabulary named in spec.md §4.3.
var retriableMarkers = []string{
	"429", "500", "502", "503", "504",
	"timeout", "temporar", "rate", "fetch failed", "econnreset",
}

// isRetriable reports whether err's message suggests a transient failure
// worth retrying, per the ProviderError = Retriable | Terminal sum type
// named in spec.md §9.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range retriableMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ctxCancelled is a non-blocking check used between stages of a longer
// operation (the optimizer's draft/repair/generate/verify cycle) so a
// cancellation is observed before the next stage's call is even made,
// not only once that call's own ctx-aware request fails.
func ctxCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// backoff computes base*2^retry plus 0-150ms of jitter, per spec.md §4.3.
func backoff(base time.Duration, retry int) time.Duration {
	mult := time.Duration(1)
	for i := 0; i < retry; i++ {
		mult *= 2
	}
	jitter := time.Duration(rand.Intn(150)) * time.Millisecond
	return base*mult + jitter
}

// HTTPProvider is a generic chat-completion-shaped AIProvider adapter. It
// speaks the OpenAI-style /chat/completions contract, which covers most
// hosted model gateways closely enough for this system's purposes — the
// provider SDK itself is explicitly out of scope (spec.md §1).
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	models  []string
	client  *http.Client
}

func NewHTTPProvider(cfg config.ProviderConfig) *HTTPProvider {
	return &HTTPProvider{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		models:  cfg.Models,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *HTTPProvider) Name() string     { return p.name }
func (p *HTTPProvider) Models() []string { return p.models }

type chatCompletionRequest struct {
	Model          string                 `json:"model"`
	Messages       []chatMessage          `json:"messages"`
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *HTTPProvider) Complete(ctx context.Context, modelName string, prompt string, jsonMode bool) (string, error) {
	body := chatCompletionRequest{
		Model:    modelName,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	if jsonMode {
		body.ResponseFormat = map[string]interface{}{"type": "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("provider %s returned %d: %s", p.name, resp.StatusCode, string(raw))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse provider response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// ProviderPlan drives the provider/model/retry fallback loop described in
// spec.md §4.3: for provider in providers, for model in provider.models,
// for retry in 0..retries, try; non-retriable errors skip straight to the
// next model.
type ProviderPlan struct {
	providers []AIProvider
	retries   int
	baseDelay time.Duration
}

func NewProviderPlan(providers []AIProvider, cfg config.AIConfig) *ProviderPlan {
	return &ProviderPlan{
		providers: providers,
		retries:   cfg.ProviderRetries,
		baseDelay: time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
	}
}

// CallResult carries the bookkeeping AIMeta needs from one fallback call.
type CallResult struct {
	Text     string
	Provider string
	Model    string
	Retries  int
}

// Call runs the provider/model/retry plan and returns the first successful
// completion, or a "All providers/models failed" error enumerating every
// attempt, per spec.md §4.3.
func (p *ProviderPlan) Call(ctx context.Context, prompt string, jsonMode bool) (CallResult, error) {
	var attempts []string
	totalRetries := 0

	for _, provider := range p.providers {
		for _, modelName := range provider.Models() {
			for retry := 0; retry <= p.retries; retry++ {
				// Checked before every attempt, not just the backoff
				// branch, so a cancellation lands before the first
				// provider/model pair is ever tried, not only between
				// retries of one.
				select {
				case <-ctx.Done():
					return CallResult{}, ctx.Err()
				default:
				}

				if retry > 0 {
					select {
					case <-ctx.Done():
						return CallResult{}, ctx.Err()
					case <-time.After(backoff(p.baseDelay, retry-1)):
					}
				}

				text, err := provider.Complete(ctx, modelName, prompt, jsonMode)
				if err == nil {
					return CallResult{Text: text, Provider: provider.Name(), Model: modelName, Retries: totalRetries}, nil
				}

				totalRetries++
				attempts = append(attempts, fmt.Sprintf("%s/%s attempt %d: %v", provider.Name(), modelName, retry+1, err))

				if !isRetriable(err) {
					break
				}
			}
		}
	}

	return CallResult{}, fmt.Errorf("All providers/models failed: %s", strings.Join(attempts, "; "))
}
