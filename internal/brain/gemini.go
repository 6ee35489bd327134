package brain

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/abelbrown/digest/internal/work"
)

// GeminiProvider implements Provider and StructuredProvider on top of
// the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider. Construction dials
// the API client, so it can fail.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{
		client: client,
		model:  model,
	}, nil
}

func (g *GeminiProvider) Name() string {
	return "gemini"
}

func (g *GeminiProvider) Available() bool {
	return g.client != nil
}

func (g *GeminiProvider) Generate(ctx context.Context, req Request) (Response, error) {
	return g.generate(ctx, req, "")
}

// GenerateJSON constrains the response MIME type so the reply is a
// single JSON document.
func (g *GeminiProvider) GenerateJSON(ctx context.Context, req Request) (string, error) {
	resp, err := g.generate(ctx, req, "application/json")
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (g *GeminiProvider) generate(ctx context.Context, req Request, mimeType string) (Response, error) {
	if !g.Available() {
		return Response{}, fmt.Errorf("gemini provider not configured")
	}

	model := g.client.GenerativeModel(g.model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}
	if mimeType != "" {
		model.GenerationConfig.ResponseMIMEType = mimeType
	}
	if req.MaxTokens > 0 {
		model.GenerationConfig.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		// The SDK does not expose status codes uniformly; let the
		// retry policy's heuristics decide from the error text.
		return Response{}, err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Response{}, work.Classify(work.ErrMalformed, fmt.Errorf("gemini: no response candidates"))
	}

	if txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
		return Response{Content: string(txt), Model: g.model}, nil
	}
	return Response{}, work.Classify(work.ErrMalformed, fmt.Errorf("gemini: unexpected response part type"))
}
