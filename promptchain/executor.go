package promptchain

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/maiahq/maia/dispatch"
	"github.com/maiahq/maia/llm"
)

// SubtaskError reports which step aborted the chain and why. An incomplete
// chain is not actionable output, so there is no partial-result fallback.
type SubtaskError struct {
	Step  int
	Cause error
}

func (e *SubtaskError) Error() string {
	return fmt.Sprintf("subtask %d failed: %v", e.Step, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *SubtaskError) Unwrap() error { return e.Cause }

// StepOutput is the persisted record of one executed step.
type StepOutput struct {
	Index     int     `json:"index"`
	OutputKey string  `json:"output_key"`
	Model     string  `json:"model"`
	Text      string  `json:"text"`
	Cost      float64 `json:"cost"`
	LatencyMS int64   `json:"latency_ms"`
}

// Result is the terminal outcome of a chain run. Steps holds every
// completed step's output even when the run ultimately failed.
type Result struct {
	Final    string             `json:"final"`
	Steps    []StepOutput       `json:"steps"`
	Warnings []dispatch.Warning `json:"warnings,omitempty"`
}

// Executor runs prompt chains strictly in sequence.
type Executor struct {
	policy   *dispatch.Policy
	provider llm.Provider
	logger   *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(policy *dispatch.Policy, provider llm.Provider, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		policy:   policy,
		provider: provider,
		logger:   logger.With(zap.String("component", "promptchain")),
	}
}

// Run executes the chain. Each step's template is rendered against the
// initial input, the caller-supplied variables, and every prior step's
// output; its invocation routes through the dispatch policy. The first
// failing step aborts the run with a SubtaskError, returning the outputs
// collected so far.
func (e *Executor) Run(ctx context.Context, chain *Chain, input string, vars map[string]any) (*Result, error) {
	data := make(map[string]any, len(vars)+1+len(chain.Steps))
	for k, v := range vars {
		data[k] = v
	}
	data["input"] = input

	result := &Result{}
	for i, step := range chain.Steps {
		if err := ctx.Err(); err != nil {
			return result, &SubtaskError{Step: i, Cause: err}
		}

		prompt, err := render(step, data)
		if err != nil {
			return result, &SubtaskError{Step: i, Cause: err}
		}

		route, warning, err := e.policy.Route(prompt, step.Quality)
		if err != nil {
			return result, &SubtaskError{Step: i, Cause: err}
		}
		if warning != nil {
			result.Warnings = append(result.Warnings, *warning)
		}

		if err := e.policy.Acquire(ctx); err != nil {
			return result, &SubtaskError{Step: i, Cause: err}
		}

		start := time.Now()
		completion, err := e.provider.Complete(ctx, &llm.CompletionRequest{
			Model:  route.Model,
			Prompt: prompt,
		})
		if err != nil {
			e.logger.Warn("chain step failed",
				zap.String("chain", chain.Name),
				zap.Int("step", i),
				zap.String("model", route.Model),
				zap.Error(err),
			)
			return result, &SubtaskError{Step: i, Cause: err}
		}

		e.policy.RecordCost(route, completion.Cost)
		data[step.OutputKey] = completion.Text
		result.Steps = append(result.Steps, StepOutput{
			Index:     i,
			OutputKey: step.OutputKey,
			Model:     route.Model,
			Text:      completion.Text,
			Cost:      completion.Cost,
			LatencyMS: time.Since(start).Milliseconds(),
		})
		result.Final = completion.Text

		e.logger.Debug("chain step completed",
			zap.String("chain", chain.Name),
			zap.Int("step", i),
			zap.String("output_key", step.OutputKey),
			zap.Float64("cost", completion.Cost),
		)
	}
	return result, nil
}

// render fills the step template from the accumulated data map.
func render(step SubtaskSpec, data map[string]any) (string, error) {
	tpl, err := template.New(step.OutputKey).Option("missingkey=error").Parse(step.Template)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
