package escalation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const decisionQuery = "data.support.escalation.decision"

// DefaultPolicy is the built-in Rego form of the escalation rule. A custom policy must define
// data.support.escalation.decision as {"escalate": bool, "reasons": [string]}.
const DefaultPolicy = `package support.escalation

sentiment_threshold := 0.3

trigger_terms := {"legal", "sue", "lawyer", "refund"}

default low_sentiment := false

low_sentiment if input.sentiment < sentiment_threshold

term_matches(term) if {
	not input.word_start
	contains(lower(input.message), term)
}

term_matches(term) if {
	input.word_start
	regex.match(sprintf("\\b%s", [term]), lower(input.message))
}

matched_terms contains term if {
	some term in trigger_terms
	term_matches(term)
}

reasons contains "low_sentiment" if low_sentiment

reasons contains reason if {
	some term in matched_terms
	reason := sprintf("trigger_term:%s", [term])
}

default escalate := false

escalate if count(reasons) > 0

decision := {"escalate": escalate, "reasons": reasons}
`

// OPAEvaluator evaluates the escalation rule with an OPA Rego policy. When evaluation fails the
// static rule is applied so escalation never depends on the policy engine being healthy.
type OPAEvaluator struct {
	query    rego.PreparedEvalQuery
	modules  map[string]string
	mode     MatchMode
	fallback StaticEvaluator
}

// NewOPAEvaluator compiles policy (DefaultPolicy when empty).
func NewOPAEvaluator(ctx context.Context, policy string, mode MatchMode) (*OPAEvaluator, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	modules := map[string]string{"escalation.rego": policy}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile escalation policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare escalation policy: %w", err)
	}
	return &OPAEvaluator{query: pq, modules: modules, mode: mode, fallback: NewStaticEvaluator(mode)}, nil
}

// NewOPAEvaluatorFromFile loads the policy from path; an empty path uses DefaultPolicy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string, mode MatchMode) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "", mode)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read escalation policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(raw), mode)
}

// Evaluate runs the policy. Policy failures are logged and answered by the static rule.
func (e *OPAEvaluator) Evaluate(ctx context.Context, in Input) (Decision, error) {
	d, err := e.eval(ctx, in)
	if err != nil {
		log.Printf("escalation: policy evaluation failed: %v, using static rule", err)
		return e.fallback.Evaluate(ctx, in)
	}
	return d, nil
}

// HealthCheck verifies the loaded policy compiles and answers a neutral input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := ast.CompileModules(e.modules)
	if err != nil {
		return fmt.Errorf("compile escalation policy: %w", err)
	}
	rs, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
		rego.Input(policyInput(Input{Message: "hello", Sentiment: 0.5}, e.mode)),
	).Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval escalation policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return errors.New("escalation policy query returned no result")
	}
	return nil
}

func (e *OPAEvaluator) eval(ctx context.Context, in Input) (Decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(policyInput(in, e.mode)))
	if err != nil {
		return Decision{}, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, errors.New("policy returned no decision")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("decision has type %T, want object", rs[0].Expressions[0].Value)
	}
	var d Decision
	if v, ok := obj["escalate"].(bool); ok {
		d.Escalate = v
	} else {
		return Decision{}, errors.New("decision.escalate is not a boolean")
	}
	if list, ok := obj["reasons"].([]interface{}); ok {
		for _, r := range list {
			if s, ok := r.(string); ok {
				d.Reasons = append(d.Reasons, s)
			}
		}
	}
	sort.Strings(d.Reasons)
	return d, nil
}

func policyInput(in Input, mode MatchMode) map[string]interface{} {
	return map[string]interface{}{
		"message":    in.Message,
		"sentiment":  in.Sentiment,
		"channel":    in.Channel,
		"word_start": mode == MatchWordStart,
	}
}
