package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-companion/pkg/inference"
)

// Error bodies returned to the companion.
const (
	msgKeyNotConfigured = "OpenAI API key not configured"
	msgInternal         = "Internal Server Error"
	msgNoImage          = "No image provided"
	msgVisionError      = "Vision API error"
	msgResponsesError   = "Responses API error"
	msgNoAnswer         = "No answer."
)

// VisionRequest is the body of POST /api/vision.
type VisionRequest struct {
	Image string `json:"image"`
}

// VisionResponse is the success body of POST /api/vision.
type VisionResponse struct {
	Answer string `json:"answer"`
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// handleSession mints an ephemeral realtime session.
func (s *Server) handleSession(c *fiber.Ctx) error {
	s.logger.Debug("session requested", "event", "fetch_session_token_request")

	raw, err := s.upstream.CreateRealtimeSession(c.UserContext(), s.realtimeModel)
	if err != nil {
		if errors.Is(err, inference.ErrNoAPIKey) {
			s.logger.Error("OPENAI_API_KEY is not set")
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msgKeyNotConfigured})
		}
		if apiErr, ok := inference.AsAPIError(err); ok {
			s.logger.Error("upstream session error", "status", apiErr.StatusCode, "body", apiErr.Body)
			return c.Status(apiErr.StatusCode).JSON(ErrorResponse{
				Error:   fmt.Sprintf("OpenAI API error: %d", apiErr.StatusCode),
				Details: apiErr.Body,
			})
		}
		s.logger.Error("session request failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msgInternal, Details: err.Error()})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

// handleVision answers a question about a screenshot.
func (s *Server) handleVision(c *fiber.Ctx) error {
	var req VisionRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msgVisionError, Details: err.Error()})
	}
	image := strings.TrimSpace(inference.StripDataURI(req.Image))
	if image == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msgNoImage})
	}

	resp, err := s.upstream.Vision(c.UserContext(), &inference.VisionRequest{
		ImageBase64: image,
		MIMEType:    "image/png",
		Prompt:      s.visionPrompt,
	})
	if errors.Is(err, inference.ErrNoChoices) {
		return c.JSON(VisionResponse{Answer: msgNoAnswer})
	}
	if err != nil {
		s.logger.Error("vision request failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msgVisionError, Details: err.Error()})
	}

	answer := resp.Content
	if strings.TrimSpace(answer) == "" {
		answer = msgNoAnswer
	}
	s.logger.Info("vision answered", "model", resp.Model, "latency_ms", resp.LatencyMs, "tokens", resp.Usage.TotalTokens)
	return c.JSON(VisionResponse{Answer: answer})
}

// handleResponses relays a Responses API call.
func (s *Server) handleResponses(c *fiber.Ctx) error {
	body := c.Body()
	if !json.Valid(body) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msgResponsesError, Details: "request body is not JSON"})
	}

	resp, err := s.upstream.Responses(c.UserContext(), body)
	if err != nil {
		if errors.Is(err, inference.ErrNoAPIKey) {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msgKeyNotConfigured})
		}
		s.logger.Error("responses request failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msgResponsesError, Details: err.Error()})
	}

	ct := resp.ContentType
	if ct == "" {
		ct = fiber.MIMEApplicationJSON
	}
	c.Set(fiber.HeaderContentType, ct)
	return c.Status(resp.StatusCode).Send(resp.Body)
}

// handleHealth reports liveness. With ?upstream=1 it also checks the upstream.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	out := fiber.Map{"status": "ok"}
	if c.Query("upstream") == "" {
		return c.JSON(out)
	}
	if err := s.upstream.Health(c.UserContext()); err != nil {
		out["status"] = "degraded"
		out["upstream"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(out)
	}
	out["upstream"] = "ok"
	return c.JSON(out)
}
