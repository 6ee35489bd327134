package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/digest/internal/logging"
)

// JinaEmbedder generates embeddings via the Jina AI API.
type JinaEmbedder struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

type jinaEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Task       string   `json:"task"`
	Dimensions int      `json:"dimensions"`
	Truncate   bool     `json:"truncate"`
}

type jinaEmbedResponse struct {
	Data []jinaEmbedding `json:"data"`
}

type jinaEmbedding struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// NewJinaEmbedder creates a new JinaEmbedder with the given API key and
// model. If model is empty, jina-embeddings-v3 is used.
func NewJinaEmbedder(apiKey, model string) *JinaEmbedder {
	if model == "" {
		model = "jina-embeddings-v3"
	}
	return &JinaEmbedder{
		apiKey:   apiKey,
		model:    model,
		endpoint: "https://api.jina.ai/v1/embeddings",
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(750*time.Millisecond), 1), // ~80 RPM
	}
}

// Available returns true if the Jina API key is configured.
func (e *JinaEmbedder) Available() bool {
	return e.apiKey != ""
}

// Embed generates a vector embedding for the given text.
func (e *JinaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, chunked to
// respect API limits. Each vector lands at its input position via the
// response index field.
func (e *JinaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))

	const chunkSize = 25
	for start := 0; start < len(texts); start += chunkSize {
		end := min(start+chunkSize, len(texts))
		chunk := texts[start:end]

		resp, err := e.embedChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("embed: chunk starting at %d: %w", start, err)
		}

		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(chunk) {
				return nil, fmt.Errorf("embed: jina returned out-of-range index %d for chunk of %d", item.Index, len(chunk))
			}
			results[start+item.Index] = item.Embedding
		}
	}

	for i, r := range results {
		if r == nil {
			return nil, fmt.Errorf("embed: missing embedding for index %d", i)
		}
	}
	return results, nil
}

// embedChunk sends one API request with retry for transient errors.
// Retries up to 3 times on 429/5xx or truncated bodies, honoring the
// Retry-After header on 429.
func (e *JinaEmbedder) embedChunk(ctx context.Context, input []string) (*jinaEmbedResponse, error) {
	reqBody, err := json.Marshal(jinaEmbedRequest{
		Model:      e.model,
		Input:      input,
		Task:       "retrieval.passage",
		Dimensions: 1024,
		Truncate:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	maxRetries := 3
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, retryable, err := e.doRequest(ctx, reqBody)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable || attempt == maxRetries {
			break
		}

		wait := backoffs[attempt]
		if ra, ok := retryAfter(err); ok {
			wait = ra
		}
		logging.Debug("Jina request failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("cancelled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// retryAfterError carries the server's requested backoff on 429.
type retryAfterError struct {
	err   error
	after time.Duration
}

func (e *retryAfterError) Error() string { return e.err.Error() }
func (e *retryAfterError) Unwrap() error { return e.err }

func retryAfter(err error) (time.Duration, bool) {
	if ra, ok := err.(*retryAfterError); ok && ra.after > 0 {
		return ra.after, true
	}
	return 0, false
}

func (e *JinaEmbedder) doRequest(ctx context.Context, reqBody []byte) (*jinaEmbedResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var embedResp jinaEmbedResponse
		if err := json.Unmarshal(body, &embedResp); err != nil {
			// Truncated or malformed body; the next attempt usually succeeds.
			return nil, true, fmt.Errorf("parse response: %w", err)
		}
		return &embedResp, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		raErr := &retryAfterError{err: fmt.Errorf("jina rate limited (429)")}
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, perr := strconv.Atoi(s); perr == nil {
				raErr.after = time.Duration(secs) * time.Second
			}
		}
		return nil, true, raErr

	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("jina server error (status %d): %s", resp.StatusCode, string(body))

	default:
		return nil, false, fmt.Errorf("jina request rejected (status %d): %s", resp.StatusCode, string(body))
	}
}
