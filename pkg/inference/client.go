package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-companion/internal/httpc"
)

// Client is the HTTP client for an OpenAI-compatible upstream.
type Client struct {
	baseURL string
	apiKey  string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a new upstream client. A missing API key is allowed here;
// calls then fail with ErrNoAPIKey so the proxy can answer with a clear error.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		config:  cfg,
		http:    hc,
		logger:  cfg.Logger.With("component", "inference.client"),
	}, nil
}

// HasAPIKey reports whether a key is configured.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// CreateRealtimeSession mints an ephemeral realtime session.
func (c *Client) CreateRealtimeSession(ctx context.Context, model string) (json.RawMessage, error) {
	if model == "" {
		model = c.config.RealtimeModel
	}

	resp, err := c.post(ctx, "/realtime/sessions", map[string]any{"model": model})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	if !json.Valid(body) {
		return nil, WrapError(providerOpenAI, fmt.Errorf("session response is not JSON"))
	}

	c.logger.Debug("realtime session created", "model", model)
	return json.RawMessage(body), nil
}

// Vision answers a prompt about one image.
func (c *Client) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	start := time.Now()

	if req == nil || req.ImageBase64 == "" {
		return nil, ErrNoImage
	}

	model := req.Model
	if model == "" {
		model = c.config.VisionModel
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = DefaultVisionPrompt
	}
	mime := req.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.VisionMaxTokens
	}

	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": prompt},
				{"type": "image_url", "image_url": map[string]string{"url": DataURI(mime, req.ImageBase64)}},
			},
		}},
		"max_tokens": maxTokens,
	}

	resp, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("decode response: %w", err))
	}
	if len(result.Choices) == 0 {
		return nil, WrapError(providerOpenAI, ErrNoChoices)
	}

	return &VisionResponse{
		Content:   result.Choices[0].Message.Content,
		Model:     result.Model,
		Usage:     result.Usage,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Responses forwards a Responses API body.
func (c *Client) Responses(ctx context.Context, body []byte) (*RawResponse, error) {
	resp, err := c.postRaw(ctx, "/responses", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
	}
	return &RawResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// Health checks API connectivity.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.get(ctx, "/models")
	if err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// post makes a JSON POST request.
func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}
	return c.postRaw(ctx, path, body)
}

func (c *Client) postRaw(ctx context.Context, path string, body []byte) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.doWithRetry(ctx, req, body)
}

// get makes a GET request.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.http.Do(req)
}

// doWithRetry performs the request, retrying 429 and 5xx up to MaxRetries.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = WrapError(providerOpenAI, err)
			c.logger.Warn("upstream request failed",
				"path", req.URL.Path,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		retryable := resp.StatusCode == 429 || resp.StatusCode >= 500
		if retryable && attempt < c.config.MaxRetries {
			resp.Body.Close()
			c.logger.Warn("retrying upstream request",
				"path", req.URL.Path,
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return newAPIError(resp.StatusCode, body)
}

func newAPIError(status int, body []byte) *APIError {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}

	return &APIError{
		StatusCode: status,
		Message:    message,
		Code:       code,
		Body:       string(body),
		Provider:   providerOpenAI,
	}
}

// API response types
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Verify Client implements Upstream at compile time.
var _ Upstream = (*Client)(nil)
