// Package secrets resolves API keys from the environment or AWS SSM Parameter Store.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the subset of *ssm.Client used by ParamStore.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter reads one parameter by name.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ParamStore reads decrypted parameters from SSM.
type ParamStore struct {
	api ssmAPI
}

// NewParamStore wraps an SSM API.
func NewParamStore(api ssmAPI) (*ParamStore, error) {
	if api == nil {
		return nil, errors.New("secrets: ssm api must not be nil")
	}
	return &ParamStore{api: api}, nil
}

// NewParamStoreFromEnv builds a ParamStore from the default AWS credential chain.
func NewParamStoreFromEnv(ctx context.Context) (*ParamStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("secrets: load aws config: %w", err)
	}
	return NewParamStore(ssm.NewFromConfig(cfg))
}

// GetParameter returns the decrypted value of name.
func (p *ParamStore) GetParameter(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("secrets: parameter name is required")
	}
	out, err := p.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("secrets: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("secrets: parameter %q has no value", name)
	}
	return *out.Parameter.Value, nil
}

// tokenPayload is the JSON form a key may be stored in.
type tokenPayload struct {
	Token string `json:"token"`
}

// ResolveAPIKey returns explicit when set. Otherwise it reads <prefix>/<name> through g. The stored
// value may be the raw key or a JSON object {"token": "..."}.
func ResolveAPIKey(ctx context.Context, explicit string, g Getter, prefix, name string) (string, error) {
	if k := strings.TrimSpace(explicit); k != "" {
		return k, nil
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if g == nil || prefix == "" {
		return "", errors.New("secrets: no API key configured")
	}
	raw, err := g.GetParameter(ctx, prefix+"/"+name)
	if err != nil {
		return "", err
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("secrets: decode %s/%s: %w", prefix, name, err)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", fmt.Errorf("secrets: %s/%s is empty", prefix, name)
	}
	return raw, nil
}
