package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured means no API key was supplied; the model is treated
	// as unavailable.
	ErrNotConfigured = errors.New("enhance: openai api key not configured")
	// ErrEmptyCompletion means the model answered with no content.
	ErrEmptyCompletion = errors.New("enhance: empty completion")
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a provider-neutral chat completion call that must
// answer with a JSON object.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
}

// Completer returns the raw text of a model completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// JSONPoster is the part of fetch.Client the OpenAI client needs.
type JSONPoster interface {
	PostJSON(ctx context.Context, url string, headers map[string]string, payload any) ([]byte, error)
}

// OpenAIConfig configures the chat completions endpoint.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// DefaultOpenAIConfig returns the public endpoint and model.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:   "gpt-4-turbo-preview",
		BaseURL: "https://api.openai.com/v1",
	}
}

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	cfg  OpenAIConfig
	http JSONPoster
}

var _ Completer = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client. Empty Model or BaseURL take the defaults.
func NewOpenAIClient(cfg OpenAIConfig, http JSONPoster) *OpenAIClient {
	def := DefaultOpenAIConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIClient{cfg: cfg, http: http}
}

type chatRequest struct {
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
	Temperature    float64   `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends req and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	body.ResponseFormat.Type = "json_object"

	respBody, err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}, body)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil || *resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return *resp.Choices[0].Message.Content, nil
}
