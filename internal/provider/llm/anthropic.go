// Package llm wraps the Anthropic messages API for rubric scoring.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/semops/curator/pkg/circuitbreaker"
	"github.com/semops/curator/pkg/logger"
	"github.com/semops/curator/pkg/retry"
)

// Generator produces a single text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

type Client struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.Breaker
	retryConfig retry.Config
}

func NewClient(apiKey, model string, maxTokens int, timeout time.Duration) *Client {
	cb := circuitbreaker.New("anthropic", circuitbreaker.Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Anthropic client initialized", zap.String("model", model))

	return &Client{
		client:      anthropic.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Model() string { return c.model }

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var text string
	err := c.cb.Do(func() error {
		result, err := retry.DoWithResult(ctx, c.retryConfig, func() (string, error) {
			resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
				Model: anthropic.Model(c.model),
				Messages: []anthropic.Message{
					{
						Role: anthropic.RoleUser,
						Content: []anthropic.MessageContent{
							anthropic.NewTextMessageContent(prompt),
						},
					},
				},
				MaxTokens: c.maxTokens,
			})
			if err != nil {
				return "", fmt.Errorf("message request failed: %w", err)
			}
			if len(resp.Content) == 0 || resp.Content[0].Text == nil {
				return "", fmt.Errorf("message response contained no text")
			}
			return *resp.Content[0].Text, nil
		})
		if err != nil {
			return err
		}
		text = result
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
