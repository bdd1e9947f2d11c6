// Package llm talks to an OpenAI-compatible chat-completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "anthropic/claude-sonnet-4"
	defaultTimeout = 60 * time.Second
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
	maxTokens      = 4096
)

// ErrNotConfigured is returned by Complete when no API key is set.
var ErrNotConfigured = errors.New("llm not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is what the assistant needs from a model.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// Observe, when set, receives the latency of every completed HTTP attempt.
	Observe func(time.Duration)
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	backoff    time.Duration
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
		backoff:    initialBackoff,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// NewClientWithBaseURL points a client at a custom endpoint, mostly for tests.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	return NewClient(Config{APIKey: apiKey, BaseURL: baseURL}, nil)
}

func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends the system prompt and conversation and returns the reply
// text. Rate limits and server errors are retried with exponential backoff;
// repeated failures open the breaker and later calls fail fast.
func (c *Client) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	all := make([]Message, 0, len(messages)+1)
	if strings.TrimSpace(system) != "" {
		all = append(all, Message{Role: "system", Content: system})
	}
	all = append(all, messages...)
	body, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: all, MaxTokens: maxTokens})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.completeWithRetry(ctx, body)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) completeWithRetry(ctx context.Context, body []byte) (string, error) {
	var lastErr error
	for attempt := range maxAttempts {
		text, err := c.do(ctx, body)
		if err == nil {
			return text, nil
		}
		var statusErr *statusError
		if !errors.As(err, &statusErr) || !statusErr.retryable() {
			return "", err
		}
		lastErr = err
		if attempt < maxAttempts-1 {
			backoff := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt)))
			c.logger.Debug("retrying completion", zap.Int("status", statusErr.status), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", maxAttempts, lastErr)
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func (e *statusError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= http.StatusInternalServerError
}

func (c *Client) do(ctx context.Context, body []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	if c.cfg.Observe != nil {
		c.cfg.Observe(time.Since(start))
	}

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
