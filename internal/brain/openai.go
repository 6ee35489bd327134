package brain

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/abelbrown/digest/internal/logging"
	"github.com/abelbrown/digest/internal/work"
)

// OpenAIProvider implements Provider and StructuredProvider on top of
// the OpenAI chat completions API. An OpenAI-compatible endpoint
// (including a local Ollama /v1) can be targeted via baseURL.
type OpenAIProvider struct {
	client *openai.Client
	apiKey string
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		apiKey: apiKey,
		model:  model,
	}
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}

func (o *OpenAIProvider) Available() bool {
	return o.apiKey != ""
}

func (o *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	return o.chat(ctx, req, false)
}

// GenerateJSON uses the chat API's JSON response mode so the reply is
// guaranteed to be a single JSON object.
func (o *OpenAIProvider) GenerateJSON(ctx context.Context, req Request) (string, error) {
	resp, err := o.chat(ctx, req, true)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (o *OpenAIProvider) chat(ctx context.Context, req Request, jsonMode bool) (Response, error) {
	if !o.Available() {
		return Response{}, fmt.Errorf("openai provider not configured")
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if jsonMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, work.Classify(work.ErrMalformed, fmt.Errorf("openai: no response choices"))
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		logging.Warn("OpenAI response truncated", "model", resp.Model, "max_tokens", maxTokens)
	}

	return Response{
		Content: choice.Message.Content,
		Model:   resp.Model,
	}, nil
}

// classifyOpenAIError tags SDK errors with the work failure taxonomy so
// the retry policy can tell rate limits from hard failures.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return work.Classify(work.ErrTransient, err)
		}
		return err
	}
	// Transport-level failure
	return work.Classify(work.ErrTransient, err)
}
