package bus

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"omnichannel-support/internal/config"
)

const dialTimeout = 10 * time.Second

// Security describes how clients authenticate to the brokers.
type Security struct {
	Protocol  string
	CAFile    string
	CertFile  string
	KeyFile   string
	Mechanism string
	Username  string
	Password  string
}

// SecurityFromConfig copies the Kafka security settings out of cfg.
func SecurityFromConfig(cfg *config.Config) Security {
	return Security{
		Protocol:  cfg.KafkaSecurityProtocol,
		CAFile:    cfg.KafkaSSLCAFile,
		CertFile:  cfg.KafkaSSLCertFile,
		KeyFile:   cfg.KafkaSSLKeyFile,
		Mechanism: cfg.KafkaSASLMechanism,
		Username:  cfg.KafkaUsername,
		Password:  cfg.KafkaPassword,
	}
}

func (s Security) usesTLS() bool {
	return s.Protocol == config.SecuritySSL || s.Protocol == config.SecuritySASLSSL
}

func (s Security) usesSASL() bool {
	return s.Protocol == config.SecuritySASLSSL || s.Protocol == config.SecuritySASLPlaintext
}

// TLSConfig returns nil for protocols without TLS. The CA file is optional for SASL_SSL
// (system roots are used); the client key pair is loaded only when both files are set.
func (s Security) TLSConfig() (*tls.Config, error) {
	if !s.usesTLS() {
		return nil, nil
	}
	tc := &tls.Config{MinVersion: tls.VersionTLS12}
	if s.CAFile != "" {
		pem, err := os.ReadFile(s.CAFile)
		if err != nil {
			return nil, fmt.Errorf("bus: read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("bus: no certificates found in %s", s.CAFile)
		}
		tc.RootCAs = pool
	}
	if s.CertFile != "" && s.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("bus: load client key pair: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

// SASLMechanism returns nil for protocols without SASL.
func (s Security) SASLMechanism() (sasl.Mechanism, error) {
	if !s.usesSASL() {
		return nil, nil
	}
	switch strings.ToUpper(strings.TrimSpace(s.Mechanism)) {
	case "", "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, s.Username, s.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, s.Username, s.Password)
	case "PLAIN":
		return plain.Mechanism{Username: s.Username, Password: s.Password}, nil
	default:
		return nil, fmt.Errorf("bus: unsupported SASL mechanism %q", s.Mechanism)
	}
}

// NewDialer returns a dialer for consumer-group readers and admin connections.
func NewDialer(s Security) (*kafka.Dialer, error) {
	tc, err := s.TLSConfig()
	if err != nil {
		return nil, err
	}
	mech, err := s.SASLMechanism()
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		Timeout:       dialTimeout,
		DualStack:     true,
		TLS:           tc,
		SASLMechanism: mech,
	}, nil
}

// NewTransport returns a transport for writers.
func NewTransport(s Security) (*kafka.Transport, error) {
	tc, err := s.TLSConfig()
	if err != nil {
		return nil, err
	}
	mech, err := s.SASLMechanism()
	if err != nil {
		return nil, err
	}
	return &kafka.Transport{
		DialTimeout: dialTimeout,
		TLS:         tc,
		SASL:        mech,
	}, nil
}
