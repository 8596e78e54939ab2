// Package mocks provides test doubles for the handler and model provider
// interfaces. They support fixed responses, scripted per-call behavior, and
// error injection.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/maiahq/maia/llm"
)

// ProviderCall records one Complete invocation.
type ProviderCall struct {
	Model  string
	Prompt string
}

// MockProvider is a scriptable llm.Provider.
type MockProvider struct {
	mu sync.Mutex

	// Response configuration.
	response string
	cost     float64
	err      error

	// completeFn, when set, overrides all other configuration.
	completeFn func(ctx context.Context, req *llm.CompletionRequest) (*llm.Completion, error)

	calls []ProviderCall
}

// NewMockProvider returns a provider answering with a fixed response.
func NewMockProvider(response string, cost float64) *MockProvider {
	return &MockProvider{response: response, cost: cost}
}

// WithError makes every call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithCompleteFunc scripts call behavior entirely.
func (m *MockProvider) WithCompleteFunc(fn func(ctx context.Context, req *llm.CompletionRequest) (*llm.Completion, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFn = fn
	return m
}

// Complete implements llm.Provider.
func (m *MockProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.Completion, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ProviderCall{Model: req.Model, Prompt: req.Prompt})
	fn := m.completeFn
	response, cost, err := m.response, m.cost, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return &llm.Completion{
		Text:    response,
		Cost:    cost,
		Latency: time.Millisecond,
	}, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockProvider) Calls() []ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ProviderCall, len(m.calls))
	copy(out, m.calls)
	return out
}
