package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/maiahq/maia/audit"
	"github.com/maiahq/maia/dispatch"
	"github.com/maiahq/maia/internal/metrics"
	"github.com/maiahq/maia/promptchain"
	"github.com/maiahq/maia/registry"
	"github.com/maiahq/maia/retry"
	"github.com/maiahq/maia/routing"
	"github.com/maiahq/maia/state"
	"github.com/maiahq/maia/types"
)

// Default bounds applied when Options leaves them zero.
const (
	DefaultMaxHandoffs   = 5
	DefaultRetryAttempts = 3
	DefaultBackoffBase   = time.Second
	DefaultCallTimeout   = 30 * time.Second
)

// ChainedHandler is an optional extension of registry.Handler: a handler
// that refines its terminal output through a prompt chain implements Chain.
// The orchestrator runs the chain after the handler's final turn, feeding
// the handler output in as the chain input.
type ChainedHandler interface {
	registry.Handler
	Chain() *promptchain.Chain
}

// Options configures an Orchestrator. Zero values fall back to the
// documented defaults; nil collaborators degrade to no-ops.
type Options struct {
	MaxHandoffs   int
	RetryAttempts int
	BackoffBase   time.Duration
	CallTimeout   time.Duration
	AuditSink     audit.Sink
	Stats         *routing.Stats
	Metrics       *metrics.Collector
	Executor      *promptchain.Executor
	Logger        *zap.Logger
}

// Orchestrator drives handoff chains over a handler registry. It is safe
// for concurrent use: all per-chain state lives on the Execute stack.
type Orchestrator struct {
	registry *registry.Registry
	opts     Options
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New creates an Orchestrator over the given registry.
func New(reg *registry.Registry, opts Options) *Orchestrator {
	if opts.MaxHandoffs <= 0 {
		opts.MaxHandoffs = DefaultMaxHandoffs
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = DefaultRetryAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.AuditSink == nil {
		opts.AuditSink = audit.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		registry: reg,
		opts:     opts,
		logger:   opts.Logger.With(zap.String("component", "orchestrator")),
		tracer:   otel.Tracer("github.com/maiahq/maia/orchestrator"),
	}
}

// Execute runs one chain for the task under the selected plan and returns
// its terminal result. Chain-level failures are reported through the
// result's Status and Cause; the returned error is reserved for invalid
// arguments.
func (o *Orchestrator) Execute(ctx context.Context, task *types.Task, plan *routing.Plan) (*ChainResult, error) {
	if task == nil {
		return nil, fmt.Errorf("task must not be nil")
	}
	if plan == nil || plan.Initial == "" {
		return nil, fmt.Errorf("plan must name an initial handler")
	}

	ctx = types.WithTaskID(ctx, task.ID)
	ctx, span := o.tracer.Start(ctx, "orchestrator.Execute",
		trace.WithAttributes(
			attribute.String("task.id", task.ID),
			attribute.String("plan.strategy", string(plan.Strategy)),
			attribute.String("plan.initial", plan.Initial),
		))
	defer span.End()

	start := time.Now()
	result := o.run(ctx, task, plan)

	span.SetAttributes(attribute.String("chain.status", string(result.Status)))
	if o.opts.Metrics != nil {
		o.opts.Metrics.ObserveChain(string(result.Status), time.Since(start))
	}
	o.logger.Info("chain finished",
		zap.String("task_id", task.ID),
		zap.String("status", string(result.Status)),
		zap.Int("steps", len(result.Steps)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// run is the chain state machine. Each iteration executes one handler turn:
// a final output completes the chain, a handoff advances it, and the visited
// set, the step ceiling, and the retention invariant each terminate it early.
func (o *Orchestrator) run(ctx context.Context, task *types.Task, plan *routing.Plan) *ChainResult {
	result := &ChainResult{TaskID: task.ID, Status: StatusFailed, Steps: []Step{}}
	ec := state.New(task)
	bound := o.stepBound(plan)
	visited := make(map[string]struct{})
	current := plan.Initial

	// One retention-violation substitution per chain.
	substituted := false

	for {
		if err := ctx.Err(); err != nil {
			result.Cause = types.NewError(types.ErrCancelled, "chain cancelled").WithCause(err)
			return result
		}
		if len(result.Steps)+1 > bound {
			result.Status = StatusMaxHandoffs
			result.Cause = types.NewError(types.ErrMaxHandoffsExceeded,
				fmt.Sprintf("handoff ceiling %d reached before %s", bound, current))
			return result
		}
		if _, seen := visited[current]; seen {
			result.Cause = types.NewError(types.ErrCycleDetected,
				fmt.Sprintf("handoff cycle at %s", current)).WithHandler(current)
			return result
		}

		h, ok := o.registry.Get(current)
		if !ok {
			result.Cause = types.NewError(types.ErrUnknownHandler,
				fmt.Sprintf("no handler registered as %s", current)).WithHandler(current)
			return result
		}
		visited[current] = struct{}{}

		keysIn := ec.Len()
		turnStart := time.Now()
		outcome, used, err := o.invoke(ctx, h, ec, visited)
		turnDur := time.Since(turnStart)

		if err != nil {
			o.recordTurn(task.ID, len(result.Steps), nameOf(used, current), OutcomeFailed, turnDur, ec.Len())
			if o.opts.Stats != nil {
				o.opts.Stats.RecordFailure(current)
			}
			cause, ok := err.(*types.Error)
			if !ok {
				cause = types.NewError(types.ErrHandlerInvocation, "handler invocation failed").WithCause(err)
			}
			result.Cause = cause.WithHandler(nameOf(used, current))
			return result
		}
		usedName := used.Name()
		if o.opts.Stats != nil {
			o.opts.Stats.RecordSuccess(usedName)
			if usedName != current {
				o.opts.Stats.RecordFailure(current)
			}
		}

		if outcome.Handoff == nil {
			// Terminal turn.
			output := outcome.Output
			if ch, ok := used.(ChainedHandler); ok && o.opts.Executor != nil && ch.Chain() != nil {
				refined, warnings, err := o.runChain(ctx, ch, outcome.Output, ec)
				result.Warnings = append(result.Warnings, warnings...)
				if err != nil {
					o.recordTurn(task.ID, len(result.Steps), usedName, OutcomeFailed, time.Since(turnStart), ec.Len())
					result.Cause = types.NewError(types.ErrSubtaskFailed,
						fmt.Sprintf("prompt chain %s failed", ch.Chain().Name)).
						WithCause(err).WithHandler(usedName)
					return result
				}
				output = refined
			}
			o.appendStep(result, ec, Step{
				Handler:    usedName,
				Outcome:    OutcomeCompleted,
				DurationMS: time.Since(turnStart).Milliseconds(),
				KeysIn:     keysIn,
				KeysOut:    ec.Len(),
			})
			o.recordTurn(task.ID, len(result.Steps)-1, usedName, OutcomeCompleted, time.Since(turnStart), ec.Len())
			result.Status = StatusCompleted
			result.Output = output
			return result
		}

		// Handoff turn: enrich under the retention invariant.
		snap := ec.Snapshot()
		enriched := ec.Enrich(outcome.Handoff.Delta)
		if err := state.VerifyRetention(snap, enriched); err != nil {
			o.recordTurn(task.ID, len(result.Steps), usedName, OutcomeContextLoss, turnDur, ec.Len())
			if o.opts.Metrics != nil {
				o.opts.Metrics.ObserveStep(usedName, OutcomeContextLoss)
			}
			o.logger.Warn("handoff rejected for context loss",
				zap.String("task_id", task.ID),
				zap.String("handler", usedName),
				zap.String("target", outcome.Handoff.Target),
			)
			if !substituted {
				if fb, ok := o.registry.Fallback(usedName, visited); ok {
					substituted = true
					current = fb.Name()
					if o.opts.Metrics != nil {
						o.opts.Metrics.ObserveFallback(usedName, current)
					}
					continue
				}
			}
			result.Cause = err.(*types.Error).WithHandler(usedName)
			return result
		}

		ec = enriched
		o.appendStep(result, ec, Step{
			Handler:    usedName,
			Outcome:    OutcomeHandoff,
			Reason:     outcome.Handoff.Reason,
			DurationMS: turnDur.Milliseconds(),
			KeysIn:     keysIn,
			KeysOut:    ec.Len(),
		})
		o.recordTurn(task.ID, len(result.Steps)-1, usedName, OutcomeHandoff, turnDur, ec.Len())
		current = outcome.Handoff.Target
	}
}

// invoke executes one handler turn under the per-call timeout, retrying
// transient failures with exponential backoff and, once the retries are
// exhausted, trying a single capability-sharing fallback handler. It returns
// the outcome together with the handler that actually produced it.
func (o *Orchestrator) invoke(ctx context.Context, h registry.Handler, ec *state.ExecutionContext, visited map[string]struct{}) (*registry.Outcome, registry.Handler, error) {
	retryer := retry.New(&retry.Policy{
		MaxRetries:   o.opts.RetryAttempts,
		InitialDelay: o.opts.BackoffBase,
		Multiplier:   2.0,
		RetryIf: func(err error) bool {
			return !types.IsStructural(types.GetErrorCode(err))
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			if o.opts.Metrics != nil {
				o.opts.Metrics.ObserveRetry(h.Name())
			}
		},
	}, o.logger)

	outcome, err := retry.DoTyped(retryer, ctx, func() (*registry.Outcome, error) {
		return o.callOnce(ctx, h, ec)
	})
	if err == nil {
		return outcome, h, nil
	}
	if ctx.Err() != nil {
		return nil, h, types.NewError(types.ErrCancelled, "chain cancelled").WithCause(ctx.Err())
	}
	if types.IsStructural(types.GetErrorCode(err)) {
		return nil, h, err
	}

	fb, ok := o.registry.Fallback(h.Name(), visited)
	if !ok {
		return nil, h, err
	}
	visited[fb.Name()] = struct{}{}
	if o.opts.Metrics != nil {
		o.opts.Metrics.ObserveFallback(h.Name(), fb.Name())
	}
	o.logger.Warn("substituting fallback handler",
		zap.String("failed", h.Name()),
		zap.String("fallback", fb.Name()),
		zap.Error(err),
	)
	outcome, fbErr := o.callOnce(ctx, fb, ec)
	if fbErr != nil {
		// Report the original failure; the fallback was best-effort.
		return nil, h, err
	}
	return outcome, fb, nil
}

// callOnce runs a single handler invocation under the call timeout and
// normalizes its failures into typed errors.
func (o *Orchestrator) callOnce(ctx context.Context, h registry.Handler, ec *state.ExecutionContext) (*registry.Outcome, error) {
	cctx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	outcome, err := h.Invoke(cctx, ec.View())
	if err != nil {
		if te, ok := err.(*types.Error); ok {
			return nil, te
		}
		if cctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, types.NewError(types.ErrHandlerTimeout,
				fmt.Sprintf("handler %s timed out after %s", h.Name(), o.opts.CallTimeout)).
				WithCause(err).WithRetryable(true).WithHandler(h.Name())
		}
		return nil, types.NewError(types.ErrHandlerInvocation, "handler invocation failed").
			WithCause(err).WithRetryable(true).WithHandler(h.Name())
	}
	if outcome == nil || (outcome.Output == nil && outcome.Handoff == nil) {
		return nil, types.NewError(types.ErrHandlerInvocation,
			fmt.Sprintf("handler %s returned neither output nor handoff", h.Name())).
			WithRetryable(true).WithHandler(h.Name())
	}
	return outcome, nil
}

// runChain executes a chained handler's prompt chain with the terminal
// output as the chain input and the context view as template variables.
func (o *Orchestrator) runChain(ctx context.Context, ch ChainedHandler, output any, ec *state.ExecutionContext) (string, []dispatch.Warning, error) {
	res, err := o.opts.Executor.Run(ctx, ch.Chain(), fmt.Sprint(output), ec.View())
	var warnings []dispatch.Warning
	if res != nil {
		warnings = res.Warnings
	}
	if err != nil {
		return "", warnings, err
	}
	return res.Final, warnings, nil
}

// appendStep records the step in both the result and the execution context.
func (o *Orchestrator) appendStep(result *ChainResult, ec *state.ExecutionContext, step Step) {
	result.Steps = append(result.Steps, step)
	ec.AppendStep(state.StepSummary{
		Handler:   step.Handler,
		Outcome:   step.Outcome,
		Timestamp: time.Now(),
	})
}

// recordTurn emits one audit record and the per-step metric. Audit failures
// never fail the chain.
func (o *Orchestrator) recordTurn(taskID string, index int, handler, outcome string, dur time.Duration, keyCount int) {
	if o.opts.Metrics != nil && outcome != OutcomeContextLoss {
		o.opts.Metrics.ObserveStep(handler, outcome)
	}
	err := o.opts.AuditSink.Append(audit.Record{
		TaskID:          taskID,
		StepIndex:       index,
		Handler:         handler,
		Outcome:         outcome,
		DurationMS:      dur.Milliseconds(),
		ContextKeyCount: keyCount,
		Timestamp:       time.Now(),
	})
	if err != nil {
		o.logger.Warn("audit append failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

// stepBound derives the chain's step ceiling from the plan strategy: single
// runs exactly one turn, sequential is capped by its candidate list, and
// swarm gets the full configured ceiling.
func (o *Orchestrator) stepBound(plan *routing.Plan) int {
	switch plan.Strategy {
	case routing.StrategySingle:
		return 1
	case routing.StrategySequential:
		if n := len(plan.Candidates); n > 0 && n < o.opts.MaxHandoffs {
			return n
		}
		return o.opts.MaxHandoffs
	default:
		return o.opts.MaxHandoffs
	}
}

func nameOf(h registry.Handler, fallback string) string {
	if h != nil {
		return h.Name()
	}
	return fallback
}
