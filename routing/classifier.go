package routing

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/maiahq/maia/registry"
	"github.com/maiahq/maia/types"
)

// Candidate is one scored domain candidate: the handler owning the domain
// and the capability tag that matched.
type Candidate struct {
	Handler string  `json:"handler"`
	Domain  string  `json:"domain"`
	Score   float64 `json:"score"`
}

// Classification is the classifier's verdict on a request.
type Classification struct {
	Intent     string  `json:"intent"`
	Complexity int     `json:"complexity"` // 0-10
	Confidence float64 `json:"confidence"` // 0-1
	// Candidates are ordered best-first. Every registered handler appears;
	// zero-score handlers trail in name order so downstream selection is
	// total and deterministic.
	Candidates []Candidate `json:"candidates"`
}

// Domains returns the candidate domains in rank order.
func (c *Classification) Domains() []string {
	out := make([]string, 0, len(c.Candidates))
	seen := make(map[string]struct{}, len(c.Candidates))
	for _, cand := range c.Candidates {
		if _, dup := seen[cand.Domain]; dup {
			continue
		}
		seen[cand.Domain] = struct{}{}
		out = append(out, cand.Domain)
	}
	return out
}

// multiStepMarkers indicate a request that decomposes into ordered steps.
var multiStepMarkers = []string{
	"and then", "after that", "first", "finally",
	"step by step", "followed by", "once done",
}

// Classifier scores requests against the registry's capability vocabulary.
// Classification is deterministic for identical input against a fixed
// registry snapshot; the optional failure-rate source only participates in
// exact-score tie-breaks.
type Classifier struct {
	registry *registry.Registry
	rates    FailureRates
	logger   *zap.Logger
}

// NewClassifier creates a Classifier. rates may be nil.
func NewClassifier(reg *registry.Registry, rates FailureRates, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		registry: reg,
		rates:    rates,
		logger:   logger.With(zap.String("component", "classifier")),
	}
}

// Classify maps request text to an intent, a 0-10 complexity score, and
// ranked candidate domains. It fails only when the registry is empty;
// ambiguous input yields a best-effort guess with low confidence.
func (c *Classifier) Classify(request string) (*Classification, error) {
	descs := c.registry.Descriptors()
	if len(descs) == 0 {
		return nil, types.NewError(types.ErrClassification, "no handlers registered")
	}

	words := tokenize(request)
	candidates := make([]Candidate, 0, len(descs))
	var totalScore float64
	material := 0
	for _, d := range descs {
		score, domain := scoreHandler(d, words)
		if domain == "" && len(d.Capabilities) > 0 {
			domain = d.Capabilities[0]
		}
		candidates = append(candidates, Candidate{Handler: d.Name, Domain: domain, Score: score})
		totalScore += score
		if score > 0 {
			material++
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		// Exact tie: prefer the historically more reliable handler, then
		// stable name order so repeated runs agree.
		if c.rates != nil {
			ri := c.rates.FailureRate(candidates[i].Handler)
			rj := c.rates.FailureRate(candidates[j].Handler)
			if ri != rj {
				return ri < rj
			}
		}
		return candidates[i].Handler < candidates[j].Handler
	})

	cls := &Classification{
		Intent:     intentOf(candidates),
		Complexity: complexityOf(request, words, material),
		Confidence: confidenceOf(candidates, totalScore),
		Candidates: candidates,
	}
	c.logger.Debug("classified request",
		zap.String("intent", cls.Intent),
		zap.Int("complexity", cls.Complexity),
		zap.Float64("confidence", cls.Confidence),
	)
	return cls, nil
}

// scoreHandler scores one handler against the request words and returns the
// best-matching capability tag.
func scoreHandler(d registry.Descriptor, words map[string]int) (float64, string) {
	var best string
	var bestTag float64
	var total float64
	for _, tag := range d.Capabilities {
		tagScore := 0.0
		lt := strings.ToLower(tag)
		if n, ok := words[lt]; ok {
			tagScore += 2.0 * float64(n)
		}
		for w, n := range words {
			if w == lt {
				continue
			}
			if len(w) >= 4 && (strings.Contains(lt, w) || strings.Contains(w, lt)) {
				tagScore += 1.0 * float64(n)
			}
		}
		total += tagScore
		if tagScore > bestTag || (tagScore == bestTag && best == "") {
			bestTag = tagScore
			best = tag
		}
	}
	if total == 0 {
		return 0, ""
	}
	return total, best
}

func intentOf(candidates []Candidate) string {
	if len(candidates) == 0 || candidates[0].Score == 0 {
		return "general"
	}
	return candidates[0].Domain
}

// complexityOf blends request length, the number of domains with material
// score, and multi-step indicator phrases into a 0-10 estimate.
func complexityOf(request string, words map[string]int, material int) int {
	wordCount := 0
	for _, n := range words {
		wordCount += n
	}

	var score int
	switch {
	case wordCount <= 6:
		score = 1
	case wordCount <= 15:
		score = 2
	case wordCount <= 30:
		score = 4
	default:
		score = 5
	}

	if material > 1 {
		score += material - 1
		if score > 7 {
			score = 7
		}
	}

	lower := strings.ToLower(request)
	for _, m := range multiStepMarkers {
		if strings.Contains(lower, m) {
			score += 2
			break
		}
	}

	if score > 10 {
		score = 10
	}
	return score
}

// confidenceOf is the top candidate's share of the total score, dampened
// when nothing matched.
func confidenceOf(candidates []Candidate, total float64) float64 {
	if len(candidates) == 0 || total == 0 {
		return 0
	}
	return candidates[0].Score / total
}

// tokenize lowercases the request and counts alphanumeric words.
func tokenize(request string) map[string]int {
	words := make(map[string]int)
	var sb strings.Builder
	flush := func() {
		if sb.Len() > 0 {
			words[sb.String()]++
			sb.Reset()
		}
	}
	for _, r := range strings.ToLower(request) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return words
}
