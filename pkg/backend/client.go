// Package backend is the companion's client for its own backend proxy.
package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teslashibe/go-companion/internal/httpc"
)

// NoVisionAnswer is shown when the backend returns an empty answer.
const NoVisionAnswer = "No answer from Vision API."

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. The default has no timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.With("component", "backend.client")
		}
	}
}

// Client talks to the backend proxy.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpc.Client,
		logger:  slog.Default().With("component", "backend.client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type sessionResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	ClientSecret *struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// FetchCredential asks the backend for an ephemeral realtime credential.
func (c *Client) FetchCredential(ctx context.Context) (*oauth2.Token, error) {
	c.logger.Debug("fetching session token", "event", "fetch_session_token_request", "url", "/session")

	resp, err := httpc.DoJSON(ctx, c.http, http.MethodGet, c.baseURL+"/api/session", nil, nil)
	if err != nil {
		c.logger.Error("fetch ephemeral key failed", "event", "error.fetch_ephemeral_key_failed", "error", err)
		return nil, &CredentialError{Err: err}
	}
	if !resp.OK() {
		c.logger.Error("session API failed", "event", "error.session_api_failed", "status", resp.StatusCode, "body", string(resp.Body))
		return nil, &CredentialError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var data sessionResponse
	if err := resp.Decode(&data); err != nil {
		c.logger.Error("fetch ephemeral key failed", "event", "error.fetch_ephemeral_key_failed", "error", err)
		return nil, &CredentialError{Err: err}
	}
	c.logger.Debug("session token received", "event", "fetch_session_token_response", "session", data.ID)

	if data.ClientSecret == nil || data.ClientSecret.Value == "" {
		c.logger.Error("no ephemeral key", "event", "error.no_ephemeral_key")
		return nil, &CredentialError{Body: string(resp.Body), Err: ErrNoEphemeralKey}
	}

	tok := &oauth2.Token{
		AccessToken: data.ClientSecret.Value,
		TokenType:   "Bearer",
	}
	if data.ClientSecret.ExpiresAt > 0 {
		tok.Expiry = time.Unix(data.ClientSecret.ExpiresAt, 0)
	}
	return tok, nil
}

// Vision uploads a base64 PNG (no data URI prefix) and returns the answer.
func (c *Client) Vision(ctx context.Context, imageBase64 string) (string, error) {
	if imageBase64 == "" {
		return "", ErrNoImage
	}

	resp, err := httpc.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/vision", map[string]string{"image": imageBase64}, nil)
	if err != nil {
		return "", &UploadError{Endpoint: "Vision", Err: err}
	}
	if !resp.OK() {
		return "", &UploadError{Endpoint: "Vision", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var data struct {
		Answer string `json:"answer"`
	}
	if err := resp.Decode(&data); err != nil {
		return "", &UploadError{Endpoint: "Vision", Err: err}
	}
	if data.Answer == "" {
		return NoVisionAnswer, nil
	}
	return data.Answer, nil
}

// InputMessage is one entry of a Responses API input list.
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponsesRequest is the body sent to POST /api/responses.
type ResponsesRequest struct {
	Model string         `json:"model"`
	Input []InputMessage `json:"input"`

	// Text carries output format options such as a JSON schema.
	Text map[string]any `json:"text,omitempty"`
}

// Respond posts a Responses API request and returns the raw body. The status
// is not checked; error bodies are handed back for the caller to interpret.
func (c *Client) Respond(ctx context.Context, req ResponsesRequest) (json.RawMessage, error) {
	resp, err := httpc.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/responses", req, nil)
	if err != nil {
		return nil, &UploadError{Endpoint: "Responses", Err: err}
	}
	if !resp.OK() {
		c.logger.Warn("responses API returned error status", "status", resp.StatusCode)
	}
	if !json.Valid(resp.Body) {
		return nil, &UploadError{Endpoint: "Responses", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return json.RawMessage(resp.Body), nil
}
