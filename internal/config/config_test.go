package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.KafkaBootstrapServers != "localhost:9092" {
		t.Errorf("KafkaBootstrapServers = %q, want %q", cfg.KafkaBootstrapServers, "localhost:9092")
	}
	if cfg.KafkaSecurityProtocol != SecurityPlaintext {
		t.Errorf("KafkaSecurityProtocol = %q, want %q", cfg.KafkaSecurityProtocol, SecurityPlaintext)
	}
	if cfg.TopicIncoming != "fte.tickets.incoming" {
		t.Errorf("TopicIncoming = %q, want %q", cfg.TopicIncoming, "fte.tickets.incoming")
	}
	if cfg.TopicMetrics != "fte.metrics" {
		t.Errorf("TopicMetrics = %q, want %q", cfg.TopicMetrics, "fte.metrics")
	}
	if cfg.TopicDLQ != "fte.dlq" {
		t.Errorf("TopicDLQ = %q, want %q", cfg.TopicDLQ, "fte.dlq")
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("OpenAIModel = %q, want %q", cfg.OpenAIModel, "gpt-4o-mini")
	}
	if cfg.GenerationProvider != ProviderOpenAI {
		t.Errorf("GenerationProvider = %q, want %q", cfg.GenerationProvider, ProviderOpenAI)
	}
	if cfg.MockAI {
		t.Error("MockAI should default to false")
	}
	if cfg.HealthAddr != ":8081" {
		t.Errorf("HealthAddr = %q, want %q", cfg.HealthAddr, ":8081")
	}
	if cfg.IntakeAddr != ":8080" {
		t.Errorf("IntakeAddr = %q, want %q", cfg.IntakeAddr, ":8080")
	}
	if cfg.EscalationEngine != "opa" {
		t.Errorf("EscalationEngine = %q, want opa", cfg.EscalationEngine)
	}
	if cfg.EscalationMatch != "substring" {
		t.Errorf("EscalationMatch = %q, want substring", cfg.EscalationMatch)
	}
	if cfg.SessionWindowDuration() != 24*time.Hour {
		t.Errorf("SessionWindowDuration = %v, want 24h", cfg.SessionWindowDuration())
	}
	if cfg.GenerationTimeoutDuration() != 20*time.Second {
		t.Errorf("GenerationTimeoutDuration = %v, want 20s", cfg.GenerationTimeoutDuration())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("KAFKA_BOOTSTRAP_SERVERS", "k1:9092, k2:9092")
	os.Setenv("TOPIC_INCOMING", "support.in")
	os.Setenv("MOCK_AI", "true")
	os.Setenv("SESSION_WINDOW", "2h")
	os.Setenv("GENERATION_PROVIDER", "Anthropic")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TopicIncoming != "support.in" {
		t.Errorf("TopicIncoming = %q, want %q", cfg.TopicIncoming, "support.in")
	}
	if !cfg.MockAI {
		t.Error("MockAI should be true")
	}
	if cfg.SessionWindowDuration() != 2*time.Hour {
		t.Errorf("SessionWindowDuration = %v, want 2h", cfg.SessionWindowDuration())
	}
	if cfg.GenerationProvider != ProviderAnthropic {
		t.Errorf("GenerationProvider = %q, want %q", cfg.GenerationProvider, ProviderAnthropic)
	}
	want := []string{"k1:9092", "k2:9092"}
	if got := cfg.BrokerList(); !reflect.DeepEqual(got, want) {
		t.Errorf("BrokerList = %v, want %v", got, want)
	}
}

func TestLoad_SecurityProtocol(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		err  bool
	}{
		{"plaintext", map[string]string{"KAFKA_SECURITY_PROTOCOL": "plaintext"}, false},
		{"ssl missing files", map[string]string{"KAFKA_SECURITY_PROTOCOL": "SSL"}, true},
		{"ssl complete", map[string]string{
			"KAFKA_SECURITY_PROTOCOL": "SSL",
			"KAFKA_SSL_CAFILE":        "ca.pem",
			"KAFKA_SSL_CERTFILE":      "cert.pem",
			"KAFKA_SSL_KEYFILE":       "key.pem",
		}, false},
		{"sasl missing credentials", map[string]string{"KAFKA_SECURITY_PROTOCOL": "SASL_SSL"}, true},
		{"sasl complete", map[string]string{
			"KAFKA_SECURITY_PROTOCOL": "SASL_SSL",
			"KAFKA_USERNAME":          "svc",
			"KAFKA_PASSWORD":          "secret",
		}, false},
		{"unknown", map[string]string{"KAFKA_SECURITY_PROTOCOL": "KERBEROS"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tc.env {
				os.Setenv(k, v)
			}
			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				if cfg != nil {
					t.Error("Load should return nil config on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestLoad_MockAIProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("MOCK_AI", "true")
	os.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when MOCK_AI=true and APP_ENV=production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
	if err.Error() != "config: MOCK_AI must not be true when APP_ENV=production" {
		t.Errorf("error = %q, want production message", err.Error())
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	os.Clearenv()
	os.Setenv("GENERATION_PROVIDER", "markov")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject unknown GENERATION_PROVIDER")
	}
}

func TestLoad_EscalationSettings(t *testing.T) {
	os.Clearenv()
	os.Setenv("ESCALATION_MATCH", " WORD ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EscalationMatch != "word" {
		t.Errorf("EscalationMatch = %q, want word", cfg.EscalationMatch)
	}

	os.Clearenv()
	os.Setenv("ESCALATION_MATCH", "fuzzy")
	if _, err := Load(); err == nil {
		t.Error("Load should reject unknown ESCALATION_MATCH")
	}

	os.Clearenv()
	os.Setenv("ESCALATION_ENGINE", "ml")
	if _, err := Load(); err == nil {
		t.Error("Load should reject unknown ESCALATION_ENGINE")
	}
}

func TestDurations_InvalidFallBack(t *testing.T) {
	cfg := &Config{GenerationTimeout: "soon", SessionWindow: "-1h"}
	if d := cfg.GenerationTimeoutDuration(); d != 20*time.Second {
		t.Errorf("GenerationTimeoutDuration = %v, want 20s", d)
	}
	if d := cfg.SessionWindowDuration(); d != 24*time.Hour {
		t.Errorf("SessionWindowDuration = %v, want 24h", d)
	}
}

func TestGenerationEnabled(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"openai key", Config{GenerationProvider: ProviderOpenAI, OpenAIAPIKey: "sk"}, true},
		{"openai no key", Config{GenerationProvider: ProviderOpenAI}, false},
		{"mock overrides key", Config{GenerationProvider: ProviderOpenAI, OpenAIAPIKey: "sk", MockAI: true}, false},
		{"anthropic key", Config{GenerationProvider: ProviderAnthropic, AnthropicAPIKey: "ak"}, true},
		{"anthropic wrong key", Config{GenerationProvider: ProviderAnthropic, OpenAIAPIKey: "sk"}, false},
		{"ssm prefix", Config{GenerationProvider: ProviderOpenAI, SSMParameterPrefix: "/support"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.GenerationEnabled(); got != tc.want {
				t.Errorf("GenerationEnabled = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBrokerList_Empty(t *testing.T) {
	var nilCfg *Config
	if got := nilCfg.BrokerList(); got != nil {
		t.Errorf("nil config BrokerList = %v, want nil", got)
	}
	cfg := &Config{KafkaBootstrapServers: " , "}
	if got := cfg.BrokerList(); len(got) != 0 {
		t.Errorf("BrokerList = %v, want empty", got)
	}
}

func TestGroupID(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GroupID("support-processor"); got != "support-processor" {
		t.Errorf("GroupID = %q, want fallback", got)
	}
	cfg.KafkaGroupID = "custom"
	if got := cfg.GroupID("support-processor"); got != "custom" {
		t.Errorf("GroupID = %q, want custom", got)
	}
}
