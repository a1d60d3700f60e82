// Package config loads and validates pipeline config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Security protocols accepted for KAFKA_SECURITY_PROTOCOL.
const (
	SecurityPlaintext     = "PLAINTEXT"
	SecuritySSL           = "SSL"
	SecuritySASLSSL       = "SASL_SSL"
	SecuritySASLPlaintext = "SASL_PLAINTEXT"
)

// Generation providers accepted for GENERATION_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment (e.g. "development", "production"). MOCK_AI is rejected in production.
	Env string `mapstructure:"APP_ENV"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// KafkaBootstrapServers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	KafkaBootstrapServers string `mapstructure:"KAFKA_BOOTSTRAP_SERVERS"`
	// KafkaSecurityProtocol is one of PLAINTEXT, SSL, SASL_SSL, SASL_PLAINTEXT.
	KafkaSecurityProtocol string `mapstructure:"KAFKA_SECURITY_PROTOCOL"`
	// KafkaSSLCAFile is the CA bundle used to verify brokers.
	KafkaSSLCAFile string `mapstructure:"KAFKA_SSL_CAFILE"`
	// KafkaSSLCertFile is the client certificate (SSL only).
	KafkaSSLCertFile string `mapstructure:"KAFKA_SSL_CERTFILE"`
	// KafkaSSLKeyFile is the client private key (SSL only).
	KafkaSSLKeyFile string `mapstructure:"KAFKA_SSL_KEYFILE"`
	// KafkaSASLMechanism is SCRAM-SHA-256, SCRAM-SHA-512 or PLAIN.
	KafkaSASLMechanism string `mapstructure:"KAFKA_SASL_MECHANISM"`
	KafkaUsername      string `mapstructure:"KAFKA_USERNAME"`
	KafkaPassword      string `mapstructure:"KAFKA_PASSWORD"`
	// KafkaGroupID overrides the consumer group of the running worker. Each binary has its own default.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	TopicIncoming string `mapstructure:"TOPIC_INCOMING"`
	TopicMetrics  string `mapstructure:"TOPIC_METRICS"`
	TopicDLQ      string `mapstructure:"TOPIC_DLQ"`

	// GenerationProvider selects the generative backend: openai or anthropic.
	GenerationProvider string `mapstructure:"GENERATION_PROVIDER"`
	OpenAIAPIKey       string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel        string `mapstructure:"OPENAI_MODEL"`
	// OpenAIBaseURL points the OpenAI client at a compatible gateway; empty uses the public API.
	OpenAIBaseURL   string `mapstructure:"OPENAI_BASE_URL"`
	AnthropicAPIKey string `mapstructure:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `mapstructure:"ANTHROPIC_MODEL"`
	// GenerationTimeout bounds one generation call (e.g. "20s"). A timeout triggers the fallback response.
	GenerationTimeout string `mapstructure:"GENERATION_TIMEOUT"`
	// MockAI bypasses the generative backend; every reply comes from the fallback policy.
	MockAI bool `mapstructure:"MOCK_AI"`
	// SSMParameterPrefix, when set, resolves missing API keys from AWS SSM Parameter Store
	// under <prefix>/openai-api-key and <prefix>/anthropic-api-key.
	SSMParameterPrefix string `mapstructure:"SSM_PARAMETER_PREFIX"`

	// SessionWindow is how long an active conversation stays reusable after its last activity.
	SessionWindow string `mapstructure:"SESSION_WINDOW"`

	// EscalationEngine is "opa" (Rego policy) or "static".
	EscalationEngine string `mapstructure:"ESCALATION_ENGINE"`
	// EscalationPolicyFile is an optional Rego file replacing the built-in escalation policy.
	EscalationPolicyFile string `mapstructure:"ESCALATION_POLICY_FILE"`
	// EscalationMatch is "substring" (a trigger term anywhere in the text) or "word" (at a word start).
	EscalationMatch string `mapstructure:"ESCALATION_MATCH"`
	// SlackBotToken and SlackChannel enable best-effort notification of the human support team on escalation.
	SlackBotToken string `mapstructure:"SLACK_BOT_TOKEN"`
	SlackChannel  string `mapstructure:"SLACK_ESCALATION_CHANNEL"`

	// DeliveryWebhookURL is the outbound provider gateway. Empty uses the log dispatcher.
	DeliveryWebhookURL string `mapstructure:"DELIVERY_WEBHOOK_URL"`
	DeliveryAPIKey     string `mapstructure:"DELIVERY_API_KEY"`

	// LokiURL makes the sinks forward every consumed event to Loki (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`

	// HealthAddr is the gRPC health listener of the processor. Empty disables it.
	HealthAddr string `mapstructure:"HEALTH_ADDR"`
	// IntakeAddr is the HTTP listener of `ingest serve`.
	IntakeAddr string `mapstructure:"INTAKE_ADDR"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092")
	v.SetDefault("KAFKA_SECURITY_PROTOCOL", SecurityPlaintext)
	v.SetDefault("KAFKA_SSL_CAFILE", "")
	v.SetDefault("KAFKA_SSL_CERTFILE", "")
	v.SetDefault("KAFKA_SSL_KEYFILE", "")
	v.SetDefault("KAFKA_SASL_MECHANISM", "SCRAM-SHA-256")
	v.SetDefault("KAFKA_USERNAME", "")
	v.SetDefault("KAFKA_PASSWORD", "")
	v.SetDefault("KAFKA_GROUP_ID", "")
	v.SetDefault("TOPIC_INCOMING", "fte.tickets.incoming")
	v.SetDefault("TOPIC_METRICS", "fte.metrics")
	v.SetDefault("TOPIC_DLQ", "fte.dlq")
	v.SetDefault("GENERATION_PROVIDER", ProviderOpenAI)
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest")
	v.SetDefault("GENERATION_TIMEOUT", "20s")
	v.SetDefault("MOCK_AI", false)
	v.SetDefault("SSM_PARAMETER_PREFIX", "")
	v.SetDefault("SESSION_WINDOW", "24h")
	v.SetDefault("ESCALATION_ENGINE", "opa")
	v.SetDefault("ESCALATION_POLICY_FILE", "")
	v.SetDefault("ESCALATION_MATCH", "substring")
	v.SetDefault("SLACK_BOT_TOKEN", "")
	v.SetDefault("SLACK_ESCALATION_CHANNEL", "")
	v.SetDefault("DELIVERY_WEBHOOK_URL", "")
	v.SetDefault("DELIVERY_API_KEY", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "")
	v.SetDefault("HEALTH_ADDR", ":8081")
	v.SetDefault("INTAKE_ADDR", ":8080")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.BrokerList()) == 0 {
		return errors.New("config: KAFKA_BOOTSTRAP_SERVERS must be set")
	}
	c.KafkaSecurityProtocol = strings.ToUpper(strings.TrimSpace(c.KafkaSecurityProtocol))
	switch c.KafkaSecurityProtocol {
	case SecurityPlaintext:
	case SecuritySSL:
		if c.KafkaSSLCAFile == "" || c.KafkaSSLCertFile == "" || c.KafkaSSLKeyFile == "" {
			return errors.New("config: KAFKA_SECURITY_PROTOCOL=SSL requires KAFKA_SSL_CAFILE, KAFKA_SSL_CERTFILE and KAFKA_SSL_KEYFILE")
		}
	case SecuritySASLSSL, SecuritySASLPlaintext:
		if c.KafkaUsername == "" || c.KafkaPassword == "" {
			return fmt.Errorf("config: KAFKA_SECURITY_PROTOCOL=%s requires KAFKA_USERNAME and KAFKA_PASSWORD", c.KafkaSecurityProtocol)
		}
	default:
		return fmt.Errorf("config: unsupported KAFKA_SECURITY_PROTOCOL %q", c.KafkaSecurityProtocol)
	}
	if c.TopicIncoming == "" || c.TopicMetrics == "" || c.TopicDLQ == "" {
		return errors.New("config: TOPIC_INCOMING, TOPIC_METRICS and TOPIC_DLQ must be set")
	}
	c.GenerationProvider = strings.ToLower(strings.TrimSpace(c.GenerationProvider))
	if c.GenerationProvider != ProviderOpenAI && c.GenerationProvider != ProviderAnthropic {
		return fmt.Errorf("config: unsupported GENERATION_PROVIDER %q", c.GenerationProvider)
	}
	if c.MockAI && c.Env == "production" {
		return errors.New("config: MOCK_AI must not be true when APP_ENV=production")
	}
	if c.EscalationEngine != "opa" && c.EscalationEngine != "static" {
		return fmt.Errorf("config: ESCALATION_ENGINE must be opa or static, got %q", c.EscalationEngine)
	}
	c.EscalationMatch = strings.ToLower(strings.TrimSpace(c.EscalationMatch))
	if c.EscalationMatch != "substring" && c.EscalationMatch != "word" {
		return fmt.Errorf("config: ESCALATION_MATCH must be substring or word, got %q", c.EscalationMatch)
	}
	return nil
}

// BrokerList returns Kafka broker addresses from the comma-separated config.
func (c *Config) BrokerList() []string {
	if c == nil || c.KafkaBootstrapServers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBootstrapServers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GenerationTimeoutDuration parses GenerationTimeout. Returns 20s if unset or invalid.
func (c *Config) GenerationTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.GenerationTimeout)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}

// SessionWindowDuration parses SessionWindow. Returns 24h if unset or invalid.
func (c *Config) SessionWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionWindow)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// GenerationEnabled reports whether the generative backend should be called at all.
// API keys may still arrive later from SSM; see APIKey resolution in cmd/processor.
func (c *Config) GenerationEnabled() bool {
	if c.MockAI {
		return false
	}
	switch c.GenerationProvider {
	case ProviderAnthropic:
		return c.AnthropicAPIKey != "" || c.SSMParameterPrefix != ""
	default:
		return c.OpenAIAPIKey != "" || c.SSMParameterPrefix != ""
	}
}

// GroupID returns KafkaGroupID when set, otherwise fallback.
func (c *Config) GroupID(fallback string) string {
	if c.KafkaGroupID != "" {
		return c.KafkaGroupID
	}
	return fallback
}
