package main

import (
	"context"
	"fmt"
	"log"

	"omnichannel-support/internal/config"
	"omnichannel-support/internal/delivery"
	"omnichannel-support/internal/escalation"
	"omnichannel-support/internal/llm/anthropic"
	"omnichannel-support/internal/llm/openai"
	"omnichannel-support/internal/response"
	"omnichannel-support/internal/secrets"
)

// SSM parameter names under SSM_PARAMETER_PREFIX.
const (
	openAIKeyParam    = "openai-api-key"
	anthropicKeyParam = "anthropic-api-key"
)

// newGenerator returns the configured backend, or nil when generation is disabled and every
// reply comes from the fallback policy.
func newGenerator(ctx context.Context, cfg *config.Config) (response.Generator, error) {
	if !cfg.GenerationEnabled() {
		log.Println("processor: generative backend disabled; using fallback replies")
		return nil, nil
	}
	var store secrets.Getter
	if cfg.SSMParameterPrefix != "" {
		ps, err := secrets.NewParamStoreFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("ssm: %w", err)
		}
		store = ps
	}
	switch cfg.GenerationProvider {
	case config.ProviderAnthropic:
		key, err := secrets.ResolveAPIKey(ctx, cfg.AnthropicAPIKey, store, cfg.SSMParameterPrefix, anthropicKeyParam)
		if err != nil {
			return nil, err
		}
		return anthropic.New(key, cfg.AnthropicModel)
	default:
		key, err := secrets.ResolveAPIKey(ctx, cfg.OpenAIAPIKey, store, cfg.SSMParameterPrefix, openAIKeyParam)
		if err != nil {
			return nil, err
		}
		var opts []openai.Option
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return openai.New(key, cfg.OpenAIModel, opts...)
	}
}

// newEvaluator returns the escalation rule and, for the OPA engine, the evaluator used as the
// health policy check.
func newEvaluator(ctx context.Context, cfg *config.Config) (escalation.Evaluator, *escalation.OPAEvaluator, error) {
	mode := escalation.MatchMode(cfg.EscalationMatch)
	if cfg.EscalationEngine == "static" {
		return escalation.NewStaticEvaluator(mode), nil, nil
	}
	var (
		ev  *escalation.OPAEvaluator
		err error
	)
	if cfg.EscalationPolicyFile != "" {
		ev, err = escalation.NewOPAEvaluatorFromFile(ctx, cfg.EscalationPolicyFile, mode)
	} else {
		ev, err = escalation.NewOPAEvaluator(ctx, escalation.DefaultPolicy, mode)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("escalation policy: %w", err)
	}
	return ev, ev, nil
}

// newDispatcher routes every channel through the webhook gateway when configured, else logs.
func newDispatcher(cfg *config.Config) delivery.Dispatcher {
	if cfg.DeliveryWebhookURL == "" {
		return delivery.NewRouter(delivery.LogDispatcher{})
	}
	return delivery.NewRouter(delivery.NewWebhookDispatcher(cfg.DeliveryWebhookURL, cfg.DeliveryAPIKey))
}

func newNotifier(cfg *config.Config) escalation.Notifier {
	if cfg.SlackBotToken == "" || cfg.SlackChannel == "" {
		return escalation.NopNotifier{}
	}
	return escalation.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel)
}
