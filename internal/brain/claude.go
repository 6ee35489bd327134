package brain

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/abelbrown/digest/internal/work"
)

// ClaudeProvider implements Provider on top of the Anthropic messages
// API. Claude has no JSON response mode, so this is a text-only
// provider; callers needing structured output fall back to lenient
// parsing of the generated text.
type ClaudeProvider struct {
	client *anthropic.Client
	apiKey string
	model  string
}

// NewClaudeProvider creates a new Claude provider
func NewClaudeProvider(apiKey, model string) *ClaudeProvider {
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	return &ClaudeProvider{
		client: anthropic.NewClient(apiKey),
		apiKey: apiKey,
		model:  model,
	}
}

func (c *ClaudeProvider) Name() string {
	return "claude"
}

func (c *ClaudeProvider) Available() bool {
	return c.apiKey != ""
}

func (c *ClaudeProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if !c.Available() {
		return Response{}, fmt.Errorf("claude provider not configured")
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	msgReq := anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.UserPrompt),
		},
		MaxTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		msgReq.System = req.SystemPrompt
	}

	resp, err := c.client.CreateMessages(ctx, msgReq)
	if err != nil {
		return Response{}, classifyClaudeError(err)
	}

	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return Response{}, work.Classify(work.ErrMalformed, fmt.Errorf("claude: no response content"))
	}

	return Response{
		Content: *resp.Content[0].Text,
		Model:   string(resp.Model),
	}, nil
}

func classifyClaudeError(err error) error {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.StatusCode == http.StatusTooManyRequests || reqErr.StatusCode >= 500 {
			return work.Classify(work.ErrTransient, err)
		}
		return err
	}
	return work.Classify(work.ErrTransient, err)
}
