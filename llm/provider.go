// Package llm defines the model invocation interface consumed by the
// dispatch policy and the prompt-chain executor. Implementations wrap a
// concrete provider API; the core only depends on this contract.
package llm

import (
	"context"
	"time"
)

// CompletionRequest is one unit of model work, already routed to a concrete
// model by the dispatch policy.
type CompletionRequest struct {
	Model    string            `json:"model"`
	Prompt   string            `json:"prompt"`
	Timeout  time.Duration     `json:"timeout,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Completion is the provider's answer with its observed cost and latency.
type Completion struct {
	Text    string        `json:"text"`
	Cost    float64       `json:"cost"` // USD
	Latency time.Duration `json:"latency"`
	Tokens  int           `json:"tokens,omitempty"`
}

// Provider executes model completions. Implementations must honor the
// request timeout through ctx and be safe for concurrent use.
type Provider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}
