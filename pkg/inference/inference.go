// Package inference is the backend's client for the upstream OpenAI API.
//
// It covers the three upstream calls the companion relies on: minting an
// ephemeral realtime session, answering a question about a screenshot, and
// passing a free-form Responses request through untouched.
//
// Example usage:
//
//	client, _ := inference.NewClient(
//	    inference.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    inference.WithVisionModel("gpt-4o"),
//	)
//	defer client.Close()
//
//	session, _ := client.CreateRealtimeSession(ctx, "gpt-realtime-mini")
//	answer, _ := client.Vision(ctx, &inference.VisionRequest{
//	    ImageBase64: b64,
//	    Prompt:      inference.DefaultVisionPrompt,
//	})
package inference

import (
	"context"
	"encoding/json"
)

// Upstream is the set of upstream calls the backend proxy makes.
type Upstream interface {
	// CreateRealtimeSession mints an ephemeral realtime session and returns
	// the upstream JSON verbatim.
	CreateRealtimeSession(ctx context.Context, model string) (json.RawMessage, error)

	// Vision answers a prompt about one image.
	Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	// Responses forwards a Responses API body and returns the upstream
	// status and body unchanged.
	Responses(ctx context.Context, body []byte) (*RawResponse, error)

	// Health checks connectivity and key validity.
	Health(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// DefaultVisionPrompt is the instruction sent with every screenshot.
const DefaultVisionPrompt = "Solve the problem shown in this image. If it is a coding problem, " +
	"provide a complete code solution and a concise explanation in no more than 3-6 lines. " +
	"If it is a multiple choice question, select the correct answer and explain your reasoning in 3-6 lines."

// VisionRequest asks a question about one image.
type VisionRequest struct {
	// ImageBase64 is the encoded image without a data URI prefix.
	ImageBase64 string

	// MIMEType defaults to image/png.
	MIMEType string

	// Prompt defaults to DefaultVisionPrompt.
	Prompt string

	// Model overrides the configured vision model.
	Model string

	// MaxTokens defaults to 512.
	MaxTokens int
}

// VisionResponse is the answer to a VisionRequest.
type VisionResponse struct {
	Content   string
	Model     string
	Usage     Usage
	LatencyMs int64
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RawResponse is an upstream reply relayed as-is.
type RawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}
