// Package generation produces answers through an OpenAI-compatible
// chat-completions endpoint, OpenRouter by default.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/fyrsmithlabs/bookseek/internal/generation"

// Default configuration values.
const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "openai/gpt-3.5-turbo"
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 1024
	DefaultTimeout     = 60 * time.Second
	DefaultAttempt     = 20 * time.Second
	DefaultMaxRetries  = 2
	defaultBaseBackoff = 500 * time.Millisecond
	defaultBurst       = 1
)

// Config configures the chat-completions client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Stop        []string
	// Timeout bounds a whole Generate call, retries and backoff included.
	Timeout time.Duration
	// AttemptTimeout bounds each HTTP attempt. Zero or anything above
	// Timeout means Timeout.
	AttemptTimeout time.Duration
	MaxRetries     int
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
	// SiteURL and SiteName are sent as HTTP-Referer and X-Title when set.
	SiteURL  string
	SiteName string
	// BaseBackoff is the first retry delay; later delays double.
	BaseBackoff time.Duration
	// HTTPClient overrides the transport. Its Timeout is replaced by
	// AttemptTimeout.
	HTTPClient *http.Client
}

// DefaultConfig returns OpenRouter defaults without an API key.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Model:          DefaultModel,
		Temperature:    DefaultTemperature,
		MaxTokens:      DefaultMaxTokens,
		Timeout:        DefaultTimeout,
		AttemptTimeout: DefaultAttempt,
		MaxRetries:     DefaultMaxRetries,
		Stop:           []string{},
	}
}

// Client calls the chat-completions endpoint.
type Client struct {
	cfg        Config
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stop        []string      `json:"stop"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// NewClient creates a Client. The API key is required.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("generation API key required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.AttemptTimeout <= 0 || cfg.AttemptTimeout > cfg.Timeout {
		cfg.AttemptTimeout = cfg.Timeout
	}
	if cfg.Stop == nil {
		cfg.Stop = []string{}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		httpClient = &c
	}
	httpClient.Timeout = cfg.AttemptTimeout

	return &Client{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, defaultBurst),
		logger:     logger,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Generate sends prompt as a single user message and returns the reply.
//
// Server errors and transport failures are retried with exponential backoff
// up to MaxRetries times, all within Timeout. Client errors are returned
// immediately. Every failure is a *GenerationFailedError.
func (c *Client) Generate(ctx context.Context, prompt string) (answer string, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "generation.Generate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	span.SetAttributes(attribute.String("model", c.cfg.Model), attribute.Int("prompt_chars", len(prompt)))

	start := time.Now()
	defer func() {
		status := "ok"
		var gf *GenerationFailedError
		if errors.As(err, &gf) {
			status = "error"
			if gf.StatusCode != 0 {
				status = strconv.Itoa(gf.StatusCode)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		}
		requestsTotal.WithLabelValues(c.cfg.Model, status).Inc()
		requestDuration.WithLabelValues(c.cfg.Model).Observe(time.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &GenerationFailedError{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stop:        c.cfg.Stop,
	})
	if err != nil {
		return "", &GenerationFailedError{Err: fmt.Errorf("encoding request: %w", err)}
	}

	var lastErr *GenerationFailedError
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.BaseBackoff * time.Duration(1<<(attempt-1))
			c.logger.Warn("retrying answer generation",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Int("status", lastErr.StatusCode))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr.Err = errors.Join(lastErr.Err, ctx.Err())
				return "", lastErr
			}
		}

		answer, gf := c.doRequest(ctx, body)
		if gf == nil {
			span.SetAttributes(attribute.Int("attempts", attempt+1))
			return answer, nil
		}
		gf.Attempts = attempt + 1
		lastErr = gf
		if !gf.Retryable() || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (c *Client) doRequest(ctx context.Context, body []byte) (string, *GenerationFailedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &GenerationFailedError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.cfg.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.cfg.SiteURL)
	}
	if c.cfg.SiteName != "" {
		req.Header.Set("X-Title", c.cfg.SiteName)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &GenerationFailedError{Err: fmt.Errorf("request failed: %w", err), transport: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", &GenerationFailedError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err), transport: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &GenerationFailedError{StatusCode: resp.StatusCode, Body: truncateBody(raw)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &GenerationFailedError{Body: truncateBody(raw), Err: fmt.Errorf("malformed response: %w", err)}
	}
	if parsed.Error != nil && len(parsed.Choices) == 0 {
		return "", &GenerationFailedError{Body: truncateBody(raw), Err: fmt.Errorf("provider error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &GenerationFailedError{Body: truncateBody(raw), Err: errors.New("response has no choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}
