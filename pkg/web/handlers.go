package web

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-companion/pkg/hub"
	"github.com/teslashibe/go-companion/pkg/transcript"
)

// qaEntry adds the code/explanation split to a pair.
type qaEntry struct {
	transcript.QAPair
	Code        string `json:"code,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.source.Status())
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.source.Transcript())
}

func (s *Server) handleQA(c *fiber.Ctx) error {
	pairs := transcript.Pairs(s.source.Transcript())
	out := make([]qaEntry, 0, len(pairs))
	for _, p := range pairs {
		code, explanation := transcript.SplitAnswer(p.Answer)
		out = append(out, qaEntry{QAPair: p, Code: code, Explanation: explanation})
	}
	return c.JSON(out)
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	if data, err := json.Marshal(s.source.Status()); err == nil {
		client.Send(hub.NewJSONMessage(data))
	}
	client.Run()
}

func (s *Server) handleTranscriptWS(c *websocket.Conn) {
	client := hub.NewClient(s.transcriptHub, c)
	snapshot := TranscriptEvent{Kind: "snapshot", Items: s.source.Transcript()}
	if data, err := json.Marshal(snapshot); err == nil {
		client.Send(hub.NewJSONMessage(data))
	}
	client.Run()
}
