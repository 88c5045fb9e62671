// Package llm provides the OpenAI-compatible chat client the intent router
// classifies with. Only the structured-output completion path is modeled;
// conversational generation belongs to the agents.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Config represents the classifier LLM configuration.
type Config struct {
	Provider    string // openai, deepseek, siliconflow, dashscope, openrouter, zai, ollama
	Model       string // gpt-4o-mini, deepseek-chat, ...
	APIKey      string
	BaseURL     string
	MaxTokens   int           // default: 512
	Temperature float32       // default: 0
	Timeout     time.Duration // per-request bound (default: 1s)
}

// Client performs structured-output completions against any OpenAI-compatible
// provider.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration

	maxTokens   int
	temperature float32
}

// Provider base URLs applied when Config.BaseURL is empty.
var providerBaseURLs = map[string]string{
	"deepseek":    "https://api.deepseek.com",
	"siliconflow": "https://api.siliconflow.cn/v1",
	"dashscope":   "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"openrouter":  "https://openrouter.ai/api/v1",
	"zai":         "https://open.bigmodel.cn/api/paas/v4",
	"ollama":      "http://localhost:11434",
}

// NewClient creates a classifier client. Unknown providers are treated as
// generic OpenAI-compatible endpoints.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.HTTPClient = newHTTPClient()

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if preset, ok := providerBaseURLs[cfg.Provider]; ok {
			baseURL = preset
		} else if cfg.Provider != "" && cfg.Provider != "openai" {
			slog.Info("llm: using generic OpenAI-compatible provider", "provider", cfg.Provider)
		}
	}
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		timeout:     timeout,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// CompleteJSON runs one system+user exchange constrained to schema and
// returns the raw JSON content. The call is bounded by the configured
// timeout.
func (c *Client) CompleteJSON(ctx context.Context, system, user, schemaName string, schema *JSONSchema) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from LLM")
	}

	slog.Debug("llm: structured completion",
		"model", c.model,
		"schema", schemaName,
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return resp.Choices[0].Message.Content, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
