package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abelbrown/digest/internal/work"
)

// OllamaProvider implements Provider and StructuredProvider against a
// local Ollama server's /api/chat endpoint.
type OllamaProvider struct {
	endpoint string
	model    string
	client   *http.Client
}

// ollamaChatRequest is the request body for POST /api/chat.
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Format   string              `json:"format,omitempty"` // "json" forces a JSON reply
	Stream   bool                `json:"stream"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse is the non-streaming response from /api/chat.
type ollamaChatResponse struct {
	Model   string            `json:"model"`
	Message ollamaChatMessage `json:"message"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(endpoint, model string) *OllamaProvider {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &OllamaProvider{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OllamaProvider) Name() string {
	return "ollama"
}

// Available returns true if the Ollama server responds to a tags probe.
// Uses a 3-second timeout so startup never hangs on a missing server.
func (o *OllamaProvider) Available() bool {
	if o.model == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *OllamaProvider) Generate(ctx context.Context, req Request) (Response, error) {
	return o.chat(ctx, req, "")
}

// GenerateJSON asks Ollama for a JSON-formatted reply.
func (o *OllamaProvider) GenerateJSON(ctx context.Context, req Request) (string, error) {
	resp, err := o.chat(ctx, req, "json")
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (o *OllamaProvider) chat(ctx context.Context, req Request, format string) (Response, error) {
	var messages []ollamaChatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: req.UserPrompt})

	body := ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Format:   format,
		Stream:   false,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return Response{}, fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("ollama: request cancelled: %w", ctx.Err())
		}
		return Response{}, work.Classify(work.ErrTransient, fmt.Errorf("ollama: request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return Response{}, fmt.Errorf("ollama: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return Response{}, work.Classify(work.ErrTransient, err)
		}
		return Response{}, err
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return Response{}, work.Classify(work.ErrMalformed, fmt.Errorf("ollama: parse response: %w", err))
	}

	return Response{
		Content: chatResp.Message.Content,
		Model:   chatResp.Model,
	}, nil
}
