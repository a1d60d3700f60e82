// Package escalation decides whether an inbound message must be handed to a person.
// The rule is deterministic and independent of the generative backend: escalate when the
// sentiment is below the threshold or the raw message mentions a trigger term.
package escalation

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// DefaultThreshold is the sentiment below which a message escalates.
const DefaultThreshold = 0.3

// DefaultTriggerTerms are matched case-insensitively against the raw message.
var DefaultTriggerTerms = []string{"legal", "sue", "lawyer", "refund"}

// MatchMode selects how trigger terms are matched.
type MatchMode string

const (
	// MatchSubstring matches a term anywhere in the text ("issue" contains "sue").
	MatchSubstring MatchMode = "substring"
	// MatchWordStart matches a term only at the start of a word ("sued" matches, "issue" does not).
	MatchWordStart MatchMode = "word"
)

// ReasonLowSentiment is reported when the sentiment is below the threshold.
const ReasonLowSentiment = "low_sentiment"

// TriggerReason is the reason reported for a matched trigger term.
func TriggerReason(term string) string { return "trigger_term:" + term }

// Input is what the rule sees.
type Input struct {
	Message   string
	Sentiment float64
	Channel   string
}

// Decision is the outcome of an evaluation. Reasons are sorted.
type Decision struct {
	Escalate bool
	Reasons  []string
}

// Evaluator evaluates the escalation rule.
type Evaluator interface {
	Evaluate(ctx context.Context, in Input) (Decision, error)
}

// StaticEvaluator is the rule in plain Go. Build it with NewStaticEvaluator.
type StaticEvaluator struct {
	Threshold float64
	Terms     []string
	Mode      MatchMode

	// word-start patterns, one per term, compiled once
	patterns []*regexp.Regexp
}

// NewStaticEvaluator returns the default rule with the given match mode.
func NewStaticEvaluator(mode MatchMode) StaticEvaluator {
	return NewStaticEvaluatorWithTerms(DefaultThreshold, DefaultTriggerTerms, mode)
}

// NewStaticEvaluatorWithTerms returns a rule over the given threshold and terms.
func NewStaticEvaluatorWithTerms(threshold float64, terms []string, mode MatchMode) StaticEvaluator {
	s := StaticEvaluator{Threshold: threshold, Terms: terms, Mode: mode}
	if mode == MatchWordStart {
		s.patterns = wordStartPatterns(terms)
	}
	return s
}

// Evaluate never returns an error.
func (s StaticEvaluator) Evaluate(_ context.Context, in Input) (Decision, error) {
	var reasons []string
	if in.Sentiment < s.Threshold {
		reasons = append(reasons, ReasonLowSentiment)
	}
	for _, term := range s.MatchedTerms(in.Message) {
		reasons = append(reasons, TriggerReason(term))
	}
	sort.Strings(reasons)
	return Decision{Escalate: len(reasons) > 0, Reasons: reasons}, nil
}

// MatchedTerms returns the terms found in text, in the order given.
func (s StaticEvaluator) MatchedTerms(text string) []string {
	lower := strings.ToLower(text)
	patterns := s.patterns
	if s.Mode == MatchWordStart && len(patterns) != len(s.Terms) {
		patterns = wordStartPatterns(s.Terms)
	}
	var out []string
	for i, term := range s.Terms {
		var hit bool
		if s.Mode == MatchWordStart {
			hit = patterns[i].MatchString(lower)
		} else {
			hit = strings.Contains(lower, strings.ToLower(term))
		}
		if hit {
			out = append(out, term)
		}
	}
	return out
}

func wordStartPatterns(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(terms))
	for i, term := range terms {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(term)))
	}
	return out
}
