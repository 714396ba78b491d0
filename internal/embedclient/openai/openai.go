// Package openai implements embedclient.Provider against the OpenAI
// embeddings API, adapted from the teacher's hand-rolled HTTP client: same
// retry/backoff policy, same status-code-to-sentinel mapping.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Cooksey99/nucleus/internal/embedclient"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 30 * time.Second
)

// modelDimensions lists known embedding dimensions; an unlisted model falls
// back to the dimension supplied in Config (rag.embedding_model.embedding_dim).
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the OpenAI embedding client.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int

	// Dimension overrides the modelDimensions lookup, used when the config
	// declares rag.embedding_model.embedding_dim for a model this client
	// doesn't recognize.
	Dimension int
}

// Client implements embedclient.Provider for OpenAI.
type Client struct {
	cfg        Config
	httpClient *http.Client
	dimension  int
}

// NewClient creates a new OpenAI embedding client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedclient: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		var ok bool
		dimension, ok = modelDimensions[cfg.Model]
		if !ok {
			dimension = 1536
		}
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		dimension:  dimension,
	}, nil
}

type embeddingRequest struct {
	Input interface{} `json:"input"`
	Model string      `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Embed converts a single text into a vector embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, embedclient.ErrEmptyInput
	}
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("openai embedclient: no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch converts multiple texts into vector embeddings, preserving
// input order and filling empty input slots with zero vectors.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, embedclient.ErrEmptyInput
	}

	validTexts := make([]string, 0, len(texts))
	validIndices := make([]int, 0, len(texts))
	for i, text := range texts {
		if text != "" {
			validTexts = append(validTexts, text)
			validIndices = append(validIndices, i)
		}
	}
	if len(validTexts) == 0 {
		return nil, embedclient.ErrEmptyInput
	}

	reqBody := embeddingRequest{Input: validTexts, Model: c.cfg.Model}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("openai embedclient: marshal request: %w", err)
	}

	var resp *embeddingResponse
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * 100 * time.Millisecond)
		}

		resp, lastErr = c.doRequest(ctx, reqJSON)
		if lastErr == nil {
			break
		}
		if lastErr == embedclient.ErrInvalidAPIKey || lastErr == embedclient.ErrContextTooLong {
			return nil, lastErr
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	results := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < len(validIndices) {
			if len(data.Embedding) != c.dimension {
				return nil, fmt.Errorf("openai embedclient: embedding has %d dimensions, expected %d", len(data.Embedding), c.dimension)
			}
			results[validIndices[data.Index]] = data.Embedding
		}
	}
	for i, text := range texts {
		if text == "" {
			results[i] = make([]float32, c.dimension)
		}
	}
	return results, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (*embeddingResponse, error) {
	url := c.cfg.BaseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai embedclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embedclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai embedclient: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return nil, embedclient.ErrInvalidAPIKey
			case http.StatusTooManyRequests:
				return nil, embedclient.ErrRateLimited
			case http.StatusBadRequest:
				if errResp.Error.Code == "context_length_exceeded" {
					return nil, embedclient.ErrContextTooLong
				}
			}
			return nil, fmt.Errorf("openai embedclient: API error: %s", errResp.Error.Message)
		}
		return nil, fmt.Errorf("openai embedclient: API error: status %d", resp.StatusCode)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("openai embedclient: parse response: %w", err)
	}
	return &embResp, nil
}

// Dimension returns the embedding dimension for this model.
func (c *Client) Dimension() int { return c.dimension }

// ModelName returns the configured model name.
func (c *Client) ModelName() string { return c.cfg.Model }
