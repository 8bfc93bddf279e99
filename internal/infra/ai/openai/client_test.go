package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/n0dr1e/internal/domain/ai"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
)

const testBaseURL = "https://llm.test/v1"

func newMockedClient(t *testing.T, model string) *Client {
	t.Helper()
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewClient("sk-test", model, testBaseURL, hc)
}

var sampleThreat = &threats.Threat{
	ID:       "t1",
	Name:     "Threat.k3x9qa",
	Type:     threats.TypeTrojan,
	Severity: threats.SeverityHigh,
	FilePath: `C:\Temp\suspicious.tmp`,
	Status:   threats.StatusDetected,
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini-2024-07-18",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func TestAdvise(t *testing.T) {
	c := newMockedClient(t, "")

	var sent map[string]any
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
			return httpmock.NewJsonResponse(http.StatusOK, completion(
				`{"summary":"Trojan dropper in a temp folder.","risk_level":"HIGH","recommended_action":"delete","steps":["Delete the file","Run a full scan"]}`,
			))
		})

	adv, err := c.Advise(context.Background(), sampleThreat)
	require.NoError(t, err)
	assert.Equal(t, threats.ThreatID("t1"), adv.ThreatID)
	assert.Equal(t, "high", adv.RiskLevel)
	assert.Equal(t, threats.ActionDelete, adv.Recommended)
	assert.Len(t, adv.Steps, 2)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", adv.Model)

	assert.Equal(t, DefaultModel, sent["model"])
	assert.Contains(t, sent, "max_tokens")
	msgs, ok := sent["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)["content"].(string)
	assert.Contains(t, user, "Threat.k3x9qa")
	assert.Contains(t, user, "trojan")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestAdvise_ReasoningModelUsesCompletionTokens(t *testing.T) {
	c := newMockedClient(t, "o3-mini")

	var sent map[string]any
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
			return httpmock.NewJsonResponse(http.StatusOK, completion(`{"summary":"ok","risk_level":"low","recommended_action":"maybe","steps":[]}`))
		})

	adv, err := c.Advise(context.Background(), sampleThreat)
	require.NoError(t, err)
	assert.Equal(t, threats.ActionQuarantine, adv.Recommended, "unknown action falls back to quarantine")
	assert.Contains(t, sent, "max_completion_tokens")
	assert.NotContains(t, sent, "max_tokens")
}

func TestAdvise_QuotaExceeded(t *testing.T) {
	c := newMockedClient(t, "")
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		httpmock.NewJsonResponderOrPanic(http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{
				"message": "You exceeded your current quota",
				"type":    "insufficient_quota",
				"code":    "insufficient_quota",
			},
		}))

	_, err := c.Advise(context.Background(), sampleThreat)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ai.ErrQuotaExceeded))
}

func TestAdvise_Malformed(t *testing.T) {
	c := newMockedClient(t, "")
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, completion("not json")))

	_, err := c.Advise(context.Background(), sampleThreat)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ai.ErrMalformedAdvice))
}

func TestAdvise_ServerError(t *testing.T) {
	c := newMockedClient(t, "gpt-4o")
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`))

	_, err := c.Advise(context.Background(), sampleThreat)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ai.ErrQuotaExceeded))
}
