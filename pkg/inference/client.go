package inference

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/facegate/internal/httpc"
)

const providerClient = "client"

// Client talks to any OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL string
	cfg     *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a Client. A model is required; the API key is not, so
// local servers work without one.
func NewClient(opts ...Option) (*Client, error) {
	cfg, err := newConfig(DefaultConfig(), opts)
	if err != nil {
		return nil, WrapError(providerClient, err)
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		cfg:     cfg,
		http:    httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "inference.client", "model", cfg.Model),
	}, nil
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat sends one completion request.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	body := completionRequest{
		Model:       cmp.Or(req.Model, c.cfg.Model),
		Messages:    req.Messages,
		MaxTokens:   cmp.Or(req.MaxTokens, c.cfg.MaxTokens),
		Temperature: cmp.Or(req.Temperature, c.cfg.Temperature),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, WrapError(providerClient, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, WrapError(providerClient, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerClient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseOpenAIError(resp)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, WrapError(providerClient, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return nil, WrapError(providerClient, ErrEmptyResponse)
	}

	latency := time.Since(start)
	c.logger.Debug("chat", "latency", latency, "tokens", out.Usage.TotalTokens)

	first := out.Choices[0]
	return &ChatResponse{
		Message:      NewAssistantMessage(first.Message.Content),
		FinishReason: first.FinishReason,
		Usage: Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
		Model:     out.Model,
		LatencyMs: latency.Milliseconds(),
	}, nil
}

// Health lists models, which checks the address and the key.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return WrapError(providerClient, err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return WrapError(providerClient, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseOpenAIError(resp)
	}
	return nil
}

// Close drops idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

func parseOpenAIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var e struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	apiErr := &APIError{Provider: providerClient, StatusCode: resp.StatusCode, Message: string(body)}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		apiErr.Message = e.Error.Message
		apiErr.Code = e.Error.Code
	}
	return apiErr
}

var _ Provider = (*Client)(nil)
