package routing

import (
	"go.uber.org/zap"

	"github.com/maiahq/maia/types"
)

// Strategy is how the orchestrator executes a classified request.
type Strategy string

const (
	// StrategySingle runs one handler with no handoffs.
	StrategySingle Strategy = "single"
	// StrategySequential runs an ordered list of up to three candidates.
	StrategySequential Strategy = "sequential"
	// StrategySwarm lets the chain explore handoffs freely within the
	// configured ceiling.
	StrategySwarm Strategy = "swarm"
)

// Thresholds on the classifier output. Below lowConfidence the selector is
// conservative regardless of complexity.
const (
	sequentialComplexity = 3
	swarmComplexity      = 7
	lowConfidence        = 0.4
	maxSequential        = 3
)

// Plan is the selector's execution decision.
type Plan struct {
	Strategy   Strategy `json:"strategy"`
	Initial    string   `json:"initial_handler"`
	Candidates []string `json:"candidates"`
}

// Selector maps a classification to an execution plan. It is a pure
// function of the classification; the registry snapshot is already baked
// into the candidate list.
type Selector struct {
	logger *zap.Logger
}

// NewSelector creates a Selector.
func NewSelector(logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{logger: logger.With(zap.String("component", "selector"))}
}

// Select decides the execution strategy: complexity under 3 runs a single
// handler, 3-6 runs a sequential list, 7 and above frees the swarm. Low
// classifier confidence forces the single strategy so ambiguity resolves
// conservatively.
func (s *Selector) Select(cls *Classification) (*Plan, error) {
	if cls == nil || len(cls.Candidates) == 0 {
		return nil, types.NewError(types.ErrClassification, "classification has no candidates")
	}

	names := make([]string, len(cls.Candidates))
	for i, c := range cls.Candidates {
		names[i] = c.Handler
	}

	plan := &Plan{Initial: names[0]}
	switch {
	case cls.Confidence < lowConfidence:
		plan.Strategy = StrategySingle
		plan.Candidates = names[:1]
	case cls.Complexity < sequentialComplexity:
		plan.Strategy = StrategySingle
		plan.Candidates = names[:1]
	case cls.Complexity < swarmComplexity:
		plan.Strategy = StrategySequential
		n := maxSequential
		if len(names) < n {
			n = len(names)
		}
		plan.Candidates = names[:n]
	default:
		plan.Strategy = StrategySwarm
		plan.Candidates = names
	}

	s.logger.Debug("selected plan",
		zap.String("strategy", string(plan.Strategy)),
		zap.String("initial", plan.Initial),
		zap.Int("candidates", len(plan.Candidates)),
	)
	return plan, nil
}
