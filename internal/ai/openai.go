package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAI calls an OpenAI-compatible /chat/completions endpoint with retry,
// backoff and a guaranteed fallback reply.
type OpenAI struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	httpClient *http.Client
	logger     *zap.Logger

	// sleep is swapped out in tests so backoff does not wall-clock wait.
	sleep func(ctx context.Context, d time.Duration)
}

// NewOpenAI creates the client. MaxRetries defaults to 3.
func NewOpenAI(opts Options, logger *zap.Logger) *OpenAI {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &OpenAI{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Name identifies the provider and model for logging.
func (o *OpenAI) Name() string {
	return "openai:" + o.model
}

// Wire types for the OpenAI-compatible chat completions API.

type chatRequest struct {
	Model    string `json:"model"`
	Messages []Turn `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// callErr classifies a failed attempt so the retry loop can pick the right
// backoff path.
type callErr struct {
	err       error
	rateLimit bool
	transient bool
}

func (e *callErr) Error() string { return e.err.Error() }

// GenerateResponse prepends the system prompt, then attempts the call up to
// maxRetries times. Rate limits wait min(2^(attempt+2), 30)s and retry
// within the same budget; transient API errors back off 2^attempt seconds;
// anything else abandons retries. All exits land on a usable string.
func (o *OpenAI) GenerateResponse(ctx context.Context, history []Turn, systemPrompt string) string {
	messages := make([]Turn, 0, len(history)+1)
	messages = append(messages, Turn{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)

	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		content, err := o.complete(ctx, messages)
		if err == nil {
			if content == "" {
				o.logger.Warn("provider returned empty completion, using fallback")
				return FallbackMessage
			}
			return content
		}
		lastErr = err

		ce, ok := err.(*callErr)
		switch {
		case ok && ce.rateLimit:
			wait := min(1<<(attempt+2), 30)
			o.logger.Warn("rate limited, backing off",
				zap.Int("wait_seconds", wait),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", o.maxRetries))
			o.sleep(ctx, time.Duration(wait)*time.Second)
		case ok && ce.transient:
			if attempt < o.maxRetries-1 {
				wait := 1 << attempt
				o.logger.Warn("provider error, retrying",
					zap.Error(ce.err),
					zap.Int("wait_seconds", wait),
					zap.Int("attempt", attempt+1),
					zap.Int("max_retries", o.maxRetries))
				o.sleep(ctx, time.Duration(wait)*time.Second)
			} else {
				o.logger.Error("provider error, retries exhausted",
					zap.Error(ce.err), zap.Int("max_retries", o.maxRetries))
			}
		default:
			o.logger.Error("unexpected provider error, not retrying", zap.Error(err))
			return FallbackMessage
		}
	}

	o.logger.Error("falling back after failed generation",
		zap.Int("max_retries", o.maxRetries), zap.Error(lastErr))
	return FallbackMessage
}

// complete performs a single chat completion request.
func (o *OpenAI) complete(ctx context.Context, messages []Turn) (string, error) {
	body, err := json.Marshal(chatRequest{Model: o.model, Messages: messages})
	if err != nil {
		return "", &callErr{err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &callErr{err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		// Network-level failures (timeouts, refused connections) are transient.
		return "", &callErr{err: fmt.Errorf("request: %w", err), transient: true}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &callErr{err: fmt.Errorf("read response: %w", err), transient: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &callErr{err: fmt.Errorf("rate limited (status %d)", resp.StatusCode), rateLimit: true}
	case resp.StatusCode >= 500:
		return "", &callErr{err: fmt.Errorf("server error (status %d): %s", resp.StatusCode, truncate(respBody)), transient: true}
	case resp.StatusCode != http.StatusOK:
		return "", &callErr{err: fmt.Errorf("api error (status %d): %s", resp.StatusCode, truncate(respBody))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &callErr{err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &callErr{err: fmt.Errorf("api error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
