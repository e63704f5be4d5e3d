package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/velora-ai/velora-backend/internal/platform/envutil"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

// ErrRateLimited wraps provider 429 responses so callers can match with
// errors.Is. Only this error class is retried.
var ErrRateLimited = errors.New("openai: rate limited")

const (
	defaultModel = "gpt-4o-mini"

	// Retry policy for rate-limit signals: small fixed bound, waits clamped
	// so a turn never accrues more than maxRetries*waitCap of added latency.
	maxRetries = 2
	waitCap    = 5 * time.Second
)

type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Tool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ChatRequest struct {
	Messages    []Message
	Tools       []Tool
	Temperature float64
	MaxTokens   int
}

// ChatResponse is either plain assistant text or a tool-call request.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client

	maxRetries int
	sleep      func(time.Duration)
}

func NewClient(log *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := envutil.String("OPENAI_BASE_URL", "https://api.openai.com")
	baseURL = strings.TrimRight(baseURL, "/")
	model := envutil.String("OPENAI_MODEL", defaultModel)
	timeoutSec := envutil.Int("OPENAI_TIMEOUT_SECONDS", 60)
	retries := envutil.Int("OPENAI_MAX_RETRIES", maxRetries)

	return &Client{
		log:        log.With("client", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: retries,
		sleep:      time.Sleep,
	}, nil
}

type rateLimitError struct {
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("openai http 429 (retry-after %s)", e.retryAfter)
}

func (e *rateLimitError) Is(target error) bool { return target == ErrRateLimited }

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion issues one completion call. A 429 from the provider is
// retried up to the configured bound, waiting the provider's Retry-After hint
// when present and a linearly increasing default otherwise, each wait clamped
// to waitCap. Every other error class propagates immediately.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := chatCompletionRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Tools:       req.Tools,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		out, err := c.doOnce(ctx, body)
		if err == nil {
			return out, nil
		}

		var rle *rateLimitError
		if !errors.As(err, &rle) {
			return nil, err
		}
		lastErr = err
		if attempt == c.maxRetries {
			break
		}

		wait := rle.retryAfter
		if wait <= 0 {
			wait = time.Duration(attempt+1) * time.Second
		}
		if wait > waitCap {
			wait = waitCap
		}
		c.log.Warn("OpenAI rate limited, retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"wait", wait.String(),
		)
		c.sleep(wait)
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, body chatCompletionRequest) (*ChatResponse, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitError{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai http %d: %s", resp.StatusCode, truncate(raw))
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("openai decode: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices")
	}
	msg := decoded.Choices[0].Message
	return &ChatResponse{Content: msg.Content, ToolCalls: msg.ToolCalls}, nil
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func truncate(raw []byte) string {
	const max = 256
	s := string(raw)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
