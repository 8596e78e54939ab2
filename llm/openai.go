package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maiahq/maia/types"
)

// OpenAIOptions configures an OpenAI-compatible chat completion endpoint.
// Most self-hosted gateways (vLLM, LiteLLM, Ollama) speak the same protocol,
// so BaseURL is the only required field.
type OpenAIOptions struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	// PricePer1K maps model name to USD per 1K total tokens, used to report
	// observed cost. Unknown models report zero cost.
	PricePer1K map[string]float64
}

// OpenAIProvider implements Provider over the OpenAI chat completions API.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	prices  map[string]float64
	logger  *zap.Logger
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint.
func NewOpenAIProvider(opts OpenAIOptions, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OpenAIProvider{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  client,
		prices:  opts.PricePer1K,
		logger:  logger.With(zap.String("component", "llm.openai")),
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, types.NewError(types.ErrModelInvocation, "encode completion request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrModelInvocation, "build completion request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrModelInvocation, "completion request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, types.NewError(types.ErrModelInvocation,
			fmt.Sprintf("completion status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))).
			WithRetryable(retryable)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, types.NewError(types.ErrModelInvocation, "decode completion response").
			WithCause(err).WithRetryable(true)
	}
	if len(cr.Choices) == 0 {
		return nil, types.NewError(types.ErrModelInvocation, "completion returned no choices")
	}

	latency := time.Since(start)
	cost := float64(cr.Usage.TotalTokens) / 1000.0 * p.prices[req.Model]
	p.logger.Debug("completion",
		zap.String("model", req.Model),
		zap.Int("tokens", cr.Usage.TotalTokens),
		zap.Float64("cost", cost),
		zap.Duration("latency", latency),
	)
	return &Completion{
		Text:    cr.Choices[0].Message.Content,
		Cost:    cost,
		Latency: latency,
		Tokens:  cr.Usage.TotalTokens,
	}, nil
}
