// Package embedding wraps the hosted and local embedding providers behind
// one small interface. The local provider is an Ollama server speaking the
// OpenAI-compatible API, so both sides share a client.
package embedding

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/semops/curator/pkg/circuitbreaker"
	"github.com/semops/curator/pkg/logger"
	"github.com/semops/curator/pkg/retry"
	"github.com/semops/curator/pkg/utils"
)

// Embedder turns text into a vector. Implementations must return vectors
// of a fixed dimensionality per model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimensions() int
}

type client struct {
	api         *openai.Client
	model       string
	dimensions  int
	timeout     time.Duration
	cb          *circuitbreaker.Breaker
	retryConfig retry.Config
}

// NewHosted builds an embedder against the hosted OpenAI API.
func NewHosted(apiKey, model string, dimensions int, timeout time.Duration) Embedder {
	return newClient(openai.NewClient(apiKey), "openai-embeddings", model, dimensions, timeout)
}

// NewLocal builds an embedder against a local Ollama server. Ollama exposes
// an OpenAI-compatible endpoint under /v1 and ignores the API key.
func NewLocal(baseURL, model string, dimensions int, timeout time.Duration) Embedder {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = baseURL + "/v1"
	return newClient(openai.NewClientWithConfig(cfg), "ollama-embeddings", model, dimensions, timeout)
}

func newClient(api *openai.Client, name, model string, dimensions int, timeout time.Duration) *client {
	cb := circuitbreaker.New(name, circuitbreaker.Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Embedding provider initialized",
		zap.String("provider", name),
		zap.String("model", model),
		zap.Int("dimensions", dimensions),
	)

	return &client{
		api:         api,
		model:       model,
		dimensions:  dimensions,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *client) Model() string   { return c.model }
func (c *client) Dimensions() int { return c.dimensions }

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var embedding []float32
	err := c.cb.Do(func() error {
		result, err := retry.DoWithResult(ctx, c.retryConfig, func() ([]float32, error) {
			resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
				Input: []string{text},
				Model: openai.EmbeddingModel(c.model),
			})
			if err != nil {
				return nil, fmt.Errorf("embedding request failed: %w", err)
			}
			if len(resp.Data) == 0 {
				return nil, fmt.Errorf("embedding response contained no data")
			}
			return resp.Data[0].Embedding, nil
		})
		if err != nil {
			return err
		}
		embedding = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d for model %s",
			len(embedding), c.dimensions, c.model)
	}
	return embedding, nil
}

// EmbeddingCache is the subset of the redis client the cached decorator
// needs.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32) error
}

type cached struct {
	inner Embedder
	cache EmbeddingCache
}

// WithCache wraps an embedder with a cache keyed by model and text. Cache
// failures degrade to provider calls, never to errors.
func WithCache(inner Embedder, cache EmbeddingCache) Embedder {
	if cache == nil {
		return inner
	}
	return &cached{inner: inner, cache: cache}
}

func (c *cached) Model() string   { return c.inner.Model() }
func (c *cached) Dimensions() int { return c.inner.Dimensions() }

func (c *cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := utils.InputHash(c.inner.Model() + "|" + text)

	if embedding, ok, err := c.cache.GetEmbedding(ctx, key); err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	} else if ok {
		return embedding, nil
	}

	embedding, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetEmbedding(ctx, key, embedding); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}
	return embedding, nil
}
