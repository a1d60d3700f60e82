// Package anthropic is the Anthropic Messages backend for the response engine.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"omnichannel-support/internal/response"
)

const (
	maxTokens   = 1024
	temperature = 0.7
)

// Client generates replies with the Messages API.
type Client struct {
	api   sdk.Client
	model string
}

// Option configures a Client.
type Option func(*settings)

type settings struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = strings.TrimSpace(u) }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// New returns a client for model. Retries are disabled: the engine falls back instead.
func New(apiKey, model string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic: api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("anthropic: model must not be empty")
	}
	var s settings
	for _, o := range opts {
		o(&s)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	if s.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(s.httpClient))
	}
	return &Client{api: sdk.NewClient(reqOpts...), model: model}, nil
}

// Generate sends the prompt and concatenates the text blocks of the reply.
func (c *Client) Generate(ctx context.Context, req response.Request) (string, error) {
	msg, err := c.api.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   maxTokens,
		System:      []sdk.TextBlockParam{{Text: req.System}},
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.User))},
		Temperature: sdk.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: create message: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic: no text in response")
	}
	return b.String(), nil
}
