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
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/facegate/internal/httpc"
)

const providerGemini = "gemini"

// Gemini calls Google's generateContent API. System messages become the
// system instruction; the rest are sent as contents.
type Gemini struct {
	baseURL string
	cfg     *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewGemini builds a Gemini provider. An API key is required.
func NewGemini(opts ...Option) (*Gemini, error) {
	base := DefaultConfig()
	base.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	base.Model = "gemini-2.0-flash"

	cfg, err := newConfig(base, opts)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}
	return &Gemini{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		cfg:     cfg,
		http:    httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "inference.gemini", "model", cfg.Model),
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Chat sends one generateContent request.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	model := cmp.Or(req.Model, g.cfg.Model)

	body := geminiRequest{Contents: toGeminiContents(req.Messages)}
	if system := systemText(req.Messages); system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	body.GenerationConfig.Temperature = cmp.Or(req.Temperature, g.cfg.Temperature)
	body.GenerationConfig.MaxOutputTokens = cmp.Or(req.MaxTokens, g.cfg.MaxTokens)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.modelURL(model, ":generateContent"), bytes.NewReader(payload))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseGeminiError(resp)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	latency := time.Since(start)
	g.logger.Debug("chat", "latency", latency, "tokens", out.UsageMetadata.TotalTokenCount)

	first := out.Candidates[0]
	return &ChatResponse{
		Message:      NewAssistantMessage(first.Content.Parts[0].Text),
		FinishReason: first.FinishReason,
		Usage: Usage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		},
		Model:     model,
		LatencyMs: latency.Milliseconds(),
	}, nil
}

// Health fetches the model resource, which checks the key and the model name.
func (g *Gemini) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.modelURL(g.cfg.Model, ""), nil)
	if err != nil {
		return WrapError(providerGemini, err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return WrapError(providerGemini, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseGeminiError(resp)
	}
	return nil
}

// Close drops idle connections.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

func (g *Gemini) modelURL(model, method string) string {
	return fmt.Sprintf("%s/models/%s%s?key=%s", g.baseURL, model, method, url.QueryEscape(g.cfg.APIKey))
}

func systemText(msgs []Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func toGeminiContents(msgs []Message) []geminiContent {
	var out []geminiContent
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			continue
		case RoleAssistant:
			out = append(out, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			out = append(out, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	return out
}

func parseGeminiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var e struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	apiErr := &APIError{Provider: providerGemini, StatusCode: resp.StatusCode, Message: string(body)}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		apiErr.Message = e.Error.Message
		apiErr.Code = e.Error.Status
	}
	return apiErr
}

var _ Provider = (*Gemini)(nil)
