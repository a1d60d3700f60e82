// Package openai is the OpenAI chat-completions backend for the response engine.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"omnichannel-support/internal/response"
)

const temperature = 0.7

// Client generates replies with the Chat Completions API.
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

// WithBaseURL points the client at an OpenAI-compatible gateway.
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
		return nil, errors.New("openai: api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai: model must not be empty")
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

// Generate sends the system and user messages and returns the first choice.
func (c *Client) Generate(ctx context.Context, req response.Request) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(req.System),
			sdk.UserMessage(req.User),
		},
		Temperature: sdk.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
