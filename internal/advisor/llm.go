package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

const systemPrompt = `You are the decision advisor for an EV battery swap station network.
You receive one station's current metrics and the triggers that fired during evaluation.
Return exactly one recommendation per trigger as a JSON object:
{"recommendations":[{"trigger":"<trigger name>","severity":"Warning|Critical","action":"<action>","explanation":{"why":"...","expectedImpact":"...","confidence":"High|Medium|Low","probableRootCause":"optional"}}]}
Allowed actions: "Reroute Drivers", "Initiate Inventory Rebalance", "Create Maintenance Ticket", "Alert Maintenance Team", "Escalate to On-Call Manager".
Do not invent triggers that are not in the input.`

// LLMConfig 大模型顾问配置
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMClient 兼容 OpenAI chat completions 接口的顾问
type LLMClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewLLMClient 创建大模型顾问
func NewLLMClient(cfg LLMConfig) *LLMClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &LLMClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type recommendationSet struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// Advise 请求大模型给出推荐
func (c *LLMClient) Advise(ctx context.Context, req Request) ([]Recommendation, error) {
	snapshot, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal advisor request: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(snapshot)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create advisor request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("advisor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("advisor request failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("%w: decode chat response: %v", ErrMalformedResponse, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	var set recommendationSet
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &set); err != nil {
		return nil, fmt.Errorf("%w: decode recommendations: %v", ErrMalformedResponse, err)
	}

	return Validate(set.Recommendations, req.Triggers)
}
