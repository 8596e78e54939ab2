package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// HandoffRequest is emitted by a handler instead of a final result: it names
// the next handler, carries an audit reason, and the enrichment delta to
// merge into the execution context.
type HandoffRequest struct {
	Target string         `json:"target"`
	Reason string         `json:"reason"`
	Delta  map[string]any `json:"delta,omitempty"`
}

// Outcome is the result of one handler invocation. Exactly one of Output or
// Handoff is set: a final output terminates the chain, a handoff request
// continues it.
type Outcome struct {
	Output  any             `json:"output,omitempty"`
	Handoff *HandoffRequest `json:"handoff,omitempty"`
}

// Final wraps a terminal output in an Outcome.
func Final(output any) *Outcome {
	return &Outcome{Output: output}
}

// HandoffTo builds a handoff outcome toward target.
func HandoffTo(target, reason string, delta map[string]any) *Outcome {
	return &Outcome{Handoff: &HandoffRequest{Target: target, Reason: reason, Delta: delta}}
}

// Handler is the invocation contract every task handler implements. Invoke
// receives a read copy of the execution context and must be idempotent-safe:
// the orchestrator retries transient failures, so a handler may see the same
// context more than once.
type Handler interface {
	Name() string
	Capabilities() []string
	Invoke(ctx context.Context, view map[string]any) (*Outcome, error)
}

// Descriptor is the immutable registration record for a handler.
type Descriptor struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// Registry maps handler names to handlers. Registration happens at startup;
// afterwards the registry is only read, guarded by an RWMutex for the
// concurrent chains that share it.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *zap.Logger
}

// New creates an empty Registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger.With(zap.String("component", "registry")),
	}
}

// Register adds a handler. Names are unique; re-registering a name fails.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := h.Name()
	if name == "" {
		return fmt.Errorf("handler name must not be empty")
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler already registered: %s", name)
	}
	r.handlers[name] = h
	r.logger.Info("registered handler",
		zap.String("name", name),
		zap.Strings("capabilities", h.Capabilities()),
	)
	return nil
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Descriptors returns the registration records sorted by handler name, so
// iteration order is stable for deterministic classification.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.handlers))
	for name, h := range r.handlers {
		out = append(out, Descriptor{
			Name:         name,
			Capabilities: append([]string(nil), h.Capabilities()...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Fallback finds an alternate handler sharing at least one capability tag
// with the failed handler, skipping the failed handler itself and anything
// in exclude. Candidates are considered in name order for determinism.
func (r *Registry) Fallback(failed string, exclude map[string]struct{}) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.handlers[failed]
	if !ok {
		return nil, false
	}
	tags := make(map[string]struct{}, len(src.Capabilities()))
	for _, t := range src.Capabilities() {
		tags[t] = struct{}{}
	}

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == failed {
			continue
		}
		if _, skip := exclude[name]; skip {
			continue
		}
		for _, t := range r.handlers[name].Capabilities() {
			if _, shared := tags[t]; shared {
				return r.handlers[name], true
			}
		}
	}
	return nil, false
}
