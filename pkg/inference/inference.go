// Package inference sends short chat prompts to a hosted or local LLM.
//
// Client speaks the OpenAI chat completions format (OpenAI, Ollama, vLLM,
// Groq). Gemini speaks Google's generateContent API. Chain tries several
// providers in order. Mock stands in for all of them in tests.
//
//	client, _ := inference.NewClient(
//	    inference.WithAPIKey(key),
//	    inference.WithModel("gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	resp, _ := client.Chat(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{
//	        inference.NewSystemMessage("Give one short camera instruction."),
//	        inference.NewUserMessage(`{"issue":"low_light"}`),
//	    },
//	})
//
// Every call is a single attempt; callers bound it with their context.
package inference

import "context"

// Provider is implemented by every backend.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Health reports whether the backend answers with the configured
	// credentials and model.
	Health(ctx context.Context) error

	Close() error
}

// ChatRequest is one completion call. Zero fields fall back to the
// provider's Config.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the first choice of a completion.
type ChatResponse struct {
	Message      Message
	FinishReason string
	Usage        Usage
	Model        string
	LatencyMs    int64
}

// Usage is the token count reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
