package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/maiahq/maia/dispatch"
	"github.com/maiahq/maia/llm"
	"github.com/maiahq/maia/registry"
)

// llmHandler is a provider-backed handler. It wraps the request in a fixed
// instruction, routes the prompt through the dispatch policy, and either
// finishes the chain with the model output or hands it to a successor with
// the output attached as an enrichment delta.
type llmHandler struct {
	name        string
	caps        []string
	quality     dispatch.Tier
	instruction string
	successor   string
	outputKey   string

	policy   *dispatch.Policy
	provider llm.Provider
	logger   *zap.Logger
}

func (h *llmHandler) Name() string { return h.name }

func (h *llmHandler) Capabilities() []string { return h.caps }

func (h *llmHandler) Invoke(ctx context.Context, view map[string]any) (*registry.Outcome, error) {
	request, _ := view["request"].(string)
	prompt := h.instruction + "\n\nRequest: " + request
	if findings, ok := view["findings"].(string); ok {
		prompt += "\n\nFindings so far:\n" + findings
	}
	if plan, ok := view["plan"].(string); ok {
		prompt += "\n\nPlan:\n" + plan
	}

	route, warning, err := h.policy.Route(prompt, h.quality)
	if err != nil {
		return nil, err
	}
	if warning != nil {
		h.logger.Warn("dispatch warning",
			zap.String("handler", h.name),
			zap.String("code", string(warning.Code)),
			zap.String("message", warning.Message),
		)
	}
	if err := h.policy.Acquire(ctx); err != nil {
		return nil, err
	}

	completion, err := h.provider.Complete(ctx, &llm.CompletionRequest{
		Model:  route.Model,
		Prompt: prompt,
	})
	if err != nil {
		return nil, err
	}
	h.policy.RecordCost(route, completion.Cost)

	if h.successor != "" {
		reason := fmt.Sprintf("%s done, continuing with %s", h.name, h.successor)
		return registry.HandoffTo(h.successor, reason, map[string]any{h.outputKey: completion.Text}), nil
	}
	return registry.Final(completion.Text), nil
}

// registerBuiltins installs the default handler set: a planner and a
// researcher that hand work forward, and terminal writer and coder handlers.
func registerBuiltins(reg *registry.Registry, policy *dispatch.Policy, provider llm.Provider, logger *zap.Logger) error {
	handlers := []*llmHandler{
		{
			name:        "planner",
			caps:        []string{"planning", "coordination", "analysis"},
			quality:     dispatch.TierStandard,
			instruction: "Break the request into a short ordered plan of concrete steps.",
			successor:   "researcher",
			outputKey:   "plan",
		},
		{
			name:        "researcher",
			caps:        []string{"research", "analysis", "search"},
			quality:     dispatch.TierStandard,
			instruction: "Gather the key facts needed to answer the request. List them plainly.",
			successor:   "writer",
			outputKey:   "findings",
		},
		{
			name:        "writer",
			caps:        []string{"writing", "summarization", "text"},
			quality:     dispatch.TierPremium,
			instruction: "Write the final answer to the request, incorporating any findings below.",
		},
		{
			name:        "coder",
			caps:        []string{"code", "programming", "debugging"},
			quality:     dispatch.TierStandard,
			instruction: "Write the code the request asks for, with a brief explanation.",
		},
	}
	for _, h := range handlers {
		h.policy = policy
		h.provider = provider
		h.logger = logger
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}
