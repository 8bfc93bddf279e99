package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/n0dr1e/internal/domain/ai"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/infra/ai/prompt"
)

const (
	maxTokens    = 1024
	DefaultModel = "gpt-4o-mini"
)

type Client struct {
	*openai.Client
	Model string
}

// NewClient creates an advisor client. baseURL and hc are optional and let
// the client talk to compatible gateways.
func NewClient(apiKey, model, baseURL string, hc *http.Client) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

type advicePayload struct {
	Summary     string   `json:"summary"`
	RiskLevel   string   `json:"risk_level"`
	Recommended string   `json:"recommended_action"`
	Steps       []string `json:"steps"`
}

func (c *Client) Advise(ctx context.Context, t *threats.Threat) (ai.Advice, error) {
	req := openai.ChatCompletionRequest{
		Model: c.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(t)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if reasoningModel(c.Model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.Type == "insufficient_quota") {
			return ai.Advice{}, fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, apiErr.Message)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return ai.Advice{}, ai.ErrQuotaExceeded
		}
		return ai.Advice{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ai.Advice{}, fmt.Errorf("%w: empty response", ai.ErrMalformedAdvice)
	}

	var p advicePayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &p); err != nil {
		return ai.Advice{}, fmt.Errorf("%w: %v", ai.ErrMalformedAdvice, err)
	}
	if strings.TrimSpace(p.Summary) == "" {
		return ai.Advice{}, fmt.Errorf("%w: missing summary", ai.ErrMalformedAdvice)
	}
	action := threats.Action(strings.ToLower(p.Recommended))
	if action.Status() == "" {
		action = threats.ActionQuarantine
	}
	return ai.Advice{
		ThreatID:    t.ID,
		Summary:     p.Summary,
		RiskLevel:   strings.ToLower(p.RiskLevel),
		Steps:       p.Steps,
		Recommended: action,
		Model:       resp.Model,
	}, nil
}

func reasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
