package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teslashibe/go-companion/pkg/backend"
	"github.com/teslashibe/go-companion/pkg/qa"
)

// Moderation categories.
const (
	CategoryOffensive = "OFFENSIVE"
	CategoryOffBrand  = "OFF_BRAND"
	CategoryViolence  = "VIOLENCE"
	CategoryNone      = "NONE"
)

// GuardrailResult is the outcome of one guardrail check.
type GuardrailResult struct {
	Name      string `json:"name"`
	Tripped   bool   `json:"tripped"`
	Category  string `json:"category,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// OutputGuardrail inspects completed assistant text.
type OutputGuardrail interface {
	Name() string
	Check(ctx context.Context, text string) (GuardrailResult, error)
}

// Responder sends a Responses API request. *backend.Client implements it.
type Responder interface {
	Respond(ctx context.Context, req backend.ResponsesRequest) (json.RawMessage, error)
}

// DefaultGuardrailModel classifies assistant output.
const DefaultGuardrailModel = "gpt-4o-mini"

type moderationGuardrail struct {
	company   string
	responder Responder
	model     string
}

// ModerationGuardrail classifies assistant output as OFFENSIVE, OFF_BRAND,
// VIOLENCE or NONE and trips on anything but NONE. Classifier failures
// are returned as errors and never trip.
func ModerationGuardrail(companyName string, r Responder, model string) OutputGuardrail {
	if model == "" {
		model = DefaultGuardrailModel
	}
	return &moderationGuardrail{company: companyName, responder: r, model: model}
}

func (g *moderationGuardrail) Name() string {
	return "moderation_guardrail"
}

func (g *moderationGuardrail) Check(ctx context.Context, text string) (GuardrailResult, error) {
	res := GuardrailResult{Name: g.Name(), Category: CategoryNone}
	if strings.TrimSpace(text) == "" {
		return res, nil
	}

	raw, err := g.responder.Respond(ctx, backend.ResponsesRequest{
		Model: g.model,
		Input: []backend.InputMessage{{Role: "user", Content: moderationPrompt(g.company, text)}},
		Text:  moderationFormat,
	})
	if err != nil {
		return res, err
	}

	out, ok := qa.ExtractText(raw)
	if !ok {
		return res, fmt.Errorf("realtime: guardrail classifier returned no output")
	}
	var verdict struct {
		Rationale string `json:"moderationRationale"`
		Category  string `json:"moderationCategory"`
	}
	if err := json.Unmarshal([]byte(out), &verdict); err != nil {
		return res, fmt.Errorf("realtime: parse guardrail verdict: %w", err)
	}

	switch verdict.Category {
	case CategoryOffensive, CategoryOffBrand, CategoryViolence:
		res.Tripped = true
	case CategoryNone:
	default:
		return res, fmt.Errorf("realtime: unknown moderation category %q", verdict.Category)
	}
	res.Category = verdict.Category
	res.Rationale = verdict.Rationale
	return res, nil
}

func moderationPrompt(company, message string) string {
	return fmt.Sprintf(`You are an expert at classifying text according to moderation policies. Consider the provided message, analyze potential classes from output_classes, and output the best classification. Output json, following the provided schema. Keep your analysis and reasoning short and to the point, maximum 2 sentences.

<info>
- Company name: %s
</info>

<message>
%s
</message>

<output_classes>
- OFFENSIVE: Content that includes hate speech, discriminatory language, insults, slurs, or harassment.
- OFF_BRAND: Content that discusses competitors in a disparaging way.
- VIOLENCE: Content that includes explicit threats, incitement of harm, or graphic descriptions of physical injury or violence.
- NONE: If no other classes are appropriate and the message is fine.
</output_classes>`, company, message)
}

var moderationFormat = map[string]any{
	"format": map[string]any{
		"type":   "json_schema",
		"name":   "output_format",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"moderationRationale": map[string]any{"type": "string"},
				"moderationCategory": map[string]any{
					"type": "string",
					"enum": []string{CategoryOffensive, CategoryOffBrand, CategoryViolence, CategoryNone},
				},
			},
			"required":             []string{"moderationRationale", "moderationCategory"},
			"additionalProperties": false,
		},
	},
}
