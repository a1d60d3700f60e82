// Package response produces the reply text, sentiment and escalation decision for an inbound
// message. It never fails: generation problems fall back to a canned reply.
package response

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"omnichannel-support/internal/errs"
	"omnichannel-support/internal/escalation"
	"omnichannel-support/internal/event"
	"omnichannel-support/internal/knowledge"
)

// DefaultTimeout bounds one generation call.
const DefaultTimeout = 20 * time.Second

// Source says where the reply text came from.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

// Request is one generation call.
type Request struct {
	System string
	User   string
}

// Generator is a generative text backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Result is the engine's answer for one message.
type Result struct {
	Text      string
	Sentiment float64
	Escalate  bool
	Reasons   []string
	Source    Source
	// GenErr is the generation error that caused a fallback, if any.
	GenErr error
}

// Engine builds prompts, calls the generator and applies the escalation rule.
type Engine struct {
	gen     Generator
	rule    escalation.Evaluator
	timeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the generation timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine returns an engine. gen may be nil, in which case every reply is a fallback.
// rule nil uses the static escalation rule.
func NewEngine(gen Generator, rule escalation.Evaluator, opts ...Option) *Engine {
	if rule == nil {
		rule = escalation.NewStaticEvaluator(escalation.MatchSubstring)
	}
	e := &Engine{gen: gen, rule: rule, timeout: DefaultTimeout}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Respond returns the reply for message. It never returns an error.
func (e *Engine) Respond(ctx context.Context, message string, channel event.Channel, kb knowledge.Result) Result {
	res := Result{Sentiment: NeutralSentiment, Source: SourceFallback}

	if e.gen != nil {
		text, err := e.generate(ctx, SystemPrompt(channel, kb), message)
		if err != nil {
			log.Printf("response: generation failed, using fallback: %v", err)
			res.GenErr = errs.Generation("response.generate", err)
		} else {
			clean, score, _ := ParseSentiment(text)
			res.Sentiment = score
			if clean != "" {
				res.Text = clean
				res.Source = SourceGenerated
			}
		}
	}
	if res.Text == "" {
		res.Text = FallbackText(message)
	}

	d, err := e.rule.Evaluate(ctx, escalation.Input{Message: message, Sentiment: res.Sentiment, Channel: string(channel)})
	if err != nil {
		log.Printf("response: escalation rule failed, using static rule: %v", err)
		d, _ = escalation.NewStaticEvaluator(escalation.MatchSubstring).Evaluate(ctx, escalation.Input{Message: message, Sentiment: res.Sentiment})
	}
	res.Escalate = d.Escalate
	res.Reasons = d.Reasons
	return res
}

func (e *Engine) generate(ctx context.Context, system, user string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	text, err := e.gen.Generate(gctx, Request{System: system, User: user})
	if err != nil {
		if errors.Is(gctx.Err(), context.DeadlineExceeded) {
			return "", errors.Join(context.DeadlineExceeded, err)
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}
