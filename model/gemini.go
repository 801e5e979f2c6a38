package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEmbedTimeout = 30 * time.Second

// GeminiEmbedder calls the Gemini embedContent endpoint. One request per
// text; no caching, batching or retries at this layer.
type GeminiEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	timeout    time.Duration
	budget     *TokenBudget
}

type geminiEmbedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func NewGeminiEmbedder(baseURL, apiKey, modelName string) *GeminiEmbedder {
	return &GeminiEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      modelName,
		httpClient: &http.Client{},
		timeout:    defaultEmbedTimeout,
		budget:     NewTokenBudget(embedTokenLimit),
	}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string, task TaskType) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &EmbeddingError{Model: e.model, Err: errors.New("empty input")}
	}
	text = e.budget.Truncate(text)

	req := geminiEmbedRequest{
		Model:    "models/" + e.model,
		Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType: string(task),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s:embedContent", e.baseURL, e.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, &EmbeddingError{Model: e.model, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &EmbeddingError{Model: e.model, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &EmbeddingError{
			Model: e.model,
			Err:   fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var parsed geminiEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &EmbeddingError{Model: e.model, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, &EmbeddingError{Model: e.model, Err: errors.New("no embedding in response")}
	}
	return parsed.Embedding.Values, nil
}
