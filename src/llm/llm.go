// Package llm talks to an OpenAI-compatible chat completions endpoint.
package llm

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

const (
	completionsPath = "/v1/chat/completions"
	defaultTimeout  = 30 * time.Second
	maxRetries      = 3
	initialDelay    = 1 * time.Second
	temperature     = 0.3
	maxTokens       = 4096
	testTimeout     = 10 * time.Second
)

var ErrNotConfigured = errors.New("llm client not configured")

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAI wire structures
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	Choices []Choice  `json:"choices"`
	Usage   *Usage    `json:"usage,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Message ChatMessage `json:"message"`
}

type Usage struct {
	TotalTokens int `json:"total_tokens"`
}

type APIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"` // string or number depending on provider
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
}

type Response struct {
	Text string
	// TokensUsed is zero when the provider does not report usage.
	TokensUsed int
	Duration   time.Duration
}

// StatusError is a non-2xx reply from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	switch {
	case e.Code == http.StatusUnauthorized:
		return "Invalid API key. Check your API key in settings."
	case e.Code == http.StatusForbidden:
		return "Access denied. Your API key may not have permission for this model."
	case e.Code == http.StatusNotFound:
		return fmt.Sprintf("Model not found. Check the model name in settings. Response: %s", e.Body)
	case e.Code == http.StatusTooManyRequests:
		return "Rate limited. Please wait and try again."
	case e.Code >= 500:
		return fmt.Sprintf("Provider server error (%d): %s", e.Code, e.Body)
	default:
		return fmt.Sprintf("API error (%d): %s", e.Code, e.Body)
	}
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	retries    int
	sleep      func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		retries:    maxRetries,
		sleep:      sleepContext,
	}
}

func (c *Client) Model() string { return c.cfg.Model }

func (c *Client) validate() error {
	switch {
	case c.cfg.BaseURL == "":
		return fmt.Errorf("%w: base URL is required", ErrNotConfigured)
	case c.cfg.APIKey == "":
		return fmt.Errorf("%w: API key is required", ErrNotConfigured)
	case c.cfg.Model == "":
		return fmt.Errorf("%w: model is required", ErrNotConfigured)
	}
	return nil
}

// Complete sends one system+user exchange and returns the raw reply text.
// Transport failures, rate limits and server errors are retried with backoff.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if err := c.validate(); err != nil {
		return Response{}, err
	}

	body := ChatRequest{
		Model: c.cfg.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(initialDelay) * (1.5 * float64(attempt)))
			if err := c.sleep(ctx, delay); err != nil {
				return Response{}, err
			}
		}

		resp, err := c.do(ctx, body)
		if err != nil {
			lastErr = err
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.retryable() {
				return Response{}, err
			}
			if ctx.Err() != nil {
				return Response{}, err
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no choices in API response")
			continue
		}

		out := Response{Text: resp.Choices[0].Message.Content, Duration: time.Since(start)}
		if resp.Usage != nil {
			out.TokensUsed = resp.Usage.TotalTokens
		}
		return out, nil
	}

	return Response{}, fmt.Errorf("failed after %d attempts: %w", c.retries, lastErr)
}

func (c *Client) do(ctx context.Context, body ChatRequest) (*ChatResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := strings.TrimRight(c.cfg.BaseURL, "/") + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("request timed out. Check your provider URL and network connection: %w", err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var response ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s (type: %s, code: %v)", response.Error.Message, response.Error.Type, response.Error.Code)
	}
	return &response, nil
}

type ConnectionResult struct {
	Success   bool
	LatencyMS int64
	ModelName string
	Error     string
}

// TestConnection sends a trivial prompt once, without retries.
func (c *Client) TestConnection(ctx context.Context) ConnectionResult {
	probe := *c
	probe.retries = 1
	if probe.cfg.Timeout > testTimeout {
		probe.cfg.Timeout = testTimeout
	}

	start := time.Now()
	_, err := probe.Complete(ctx, Request{
		SystemPrompt: "You are a test assistant.",
		UserPrompt:   "Reply with exactly: OK",
	})
	result := ConnectionResult{
		Success:   err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
		ModelName: c.cfg.Model,
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
