// Package embedclient defines the embedding client contract: turn text into
// a dense vector of a model-described dimension, with an in-memory cache
// wrapper any backend can be composed with.
package embedclient

import (
	"context"
	"errors"
)

// Sentinel errors, matching the teacher's embedding package.
var (
	ErrEmptyInput     = errors.New("embedclient: empty input text")
	ErrRateLimited    = errors.New("embedclient: rate limited by provider")
	ErrInvalidAPIKey  = errors.New("embedclient: invalid API key")
	ErrContextTooLong = errors.New("embedclient: input text exceeds model context length")
)

// Provider converts text into vector embeddings.
type Provider interface {
	// Embed converts a single text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts at once.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension asserted against the
	// model's configured embedding_dim.
	Dimension() int

	// ModelName returns the configured model name.
	ModelName() string
}

// Cached wraps a Provider with an in-memory, unbounded-below-maxSize cache
// keyed by exact text match.
type Cached struct {
	provider Provider
	cache    map[string][]float32
	maxSize  int
}

// NewCached wraps provider with a cache holding at most maxSize entries
// (default 10000 if maxSize <= 0).
func NewCached(provider Provider, maxSize int) *Cached {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Cached{
		provider: provider,
		cache:    make(map[string][]float32),
		maxSize:  maxSize,
	}
}

// Embed returns the cached embedding or computes and caches it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache[text]; ok {
		return cloneVector(cached), nil
	}

	embedding, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.store(text, embedding)
	return embedding, nil
}

// EmbedBatch embeds multiple texts, serving cache hits directly and
// delegating the rest to the wrapped provider in one batch call.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var uncached []string
	var uncachedIdx []int

	for i, text := range texts {
		if cached, ok := c.cache[text]; ok {
			results[i] = cloneVector(cached)
		} else {
			uncached = append(uncached, text)
			uncachedIdx = append(uncachedIdx, i)
		}
	}

	if len(uncached) > 0 {
		embeddings, err := c.provider.EmbedBatch(ctx, uncached)
		if err != nil {
			return nil, err
		}
		for i, embedding := range embeddings {
			idx := uncachedIdx[i]
			results[idx] = embedding
			c.store(uncached[i], embedding)
		}
	}

	return results, nil
}

func (c *Cached) store(text string, embedding []float32) {
	if len(c.cache) < c.maxSize {
		c.cache[text] = cloneVector(embedding)
	}
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// Dimension returns the wrapped provider's dimension.
func (c *Cached) Dimension() int { return c.provider.Dimension() }

// ModelName returns the wrapped provider's model name.
func (c *Cached) ModelName() string { return c.provider.ModelName() }

// CacheSize returns the current number of cached entries.
func (c *Cached) CacheSize() int { return len(c.cache) }

// ClearCache empties the cache.
func (c *Cached) ClearCache() { c.cache = make(map[string][]float32) }
