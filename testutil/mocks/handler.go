package mocks

import (
	"context"
	"sync"

	"github.com/maiahq/maia/registry"
)

// MockHandler implements registry.Handler with function callbacks, in the
// shape the orchestrator tests need: fixed outcomes, scripted sequences, or
// full custom behavior.
type MockHandler struct {
	mu sync.Mutex

	name string
	caps []string

	// invokeFn, when set, overrides outcome/err.
	invokeFn func(ctx context.Context, view map[string]any) (*registry.Outcome, error)
	outcome  *registry.Outcome
	err      error

	invocations int
}

// NewMockHandler creates a handler that returns a final "done" outcome.
func NewMockHandler(name string, caps ...string) *MockHandler {
	return &MockHandler{name: name, caps: caps, outcome: registry.Final("done")}
}

// Returning fixes the handler's outcome.
func (m *MockHandler) Returning(outcome *registry.Outcome) *MockHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcome = outcome
	return m
}

// Failing makes every invocation return err.
func (m *MockHandler) Failing(err error) *MockHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithInvokeFunc scripts invocation behavior entirely.
func (m *MockHandler) WithInvokeFunc(fn func(ctx context.Context, view map[string]any) (*registry.Outcome, error)) *MockHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invokeFn = fn
	return m
}

// Name implements registry.Handler.
func (m *MockHandler) Name() string { return m.name }

// Capabilities implements registry.Handler.
func (m *MockHandler) Capabilities() []string { return m.caps }

// Invoke implements registry.Handler.
func (m *MockHandler) Invoke(ctx context.Context, view map[string]any) (*registry.Outcome, error) {
	m.mu.Lock()
	m.invocations++
	fn, outcome, err := m.invokeFn, m.outcome, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, view)
	}
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Invocations returns how many times the handler was invoked.
func (m *MockHandler) Invocations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invocations
}
