// Package qa is the free-form question panel: typed questions answered
// through the Responses API and revealed word by word.
package qa

import (
	"encoding/json"
	"strings"
)

// NoAnswer is shown when a response has no recognizable answer.
const NoAnswer = "No answer."

// strategy pulls an answer out of one response shape. matched reports
// whether the shape was present, even if it held no text.
type strategy func(data map[string]any) (text string, matched bool)

// strategies are tried in order; the first matching shape decides.
var strategies = []strategy{
	outputContent,
	choicesContent,
	answerField,
}

// Extract returns the answer text from a Responses API body, or NoAnswer.
func Extract(raw json.RawMessage) string {
	if text, ok := ExtractText(raw); ok && text != "" {
		return text
	}
	return NoAnswer
}

// ExtractText returns the answer text and whether any known shape matched.
func ExtractText(raw json.RawMessage) (string, bool) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", false
	}
	for _, s := range strategies {
		if text, matched := s(data); matched {
			return text, text != ""
		}
	}
	return "", false
}

// outputContent handles output[0].content as a string, a list whose first
// element has text, or an object with text.
func outputContent(data map[string]any) (string, bool) {
	output, ok := data["output"].([]any)
	if !ok || len(output) == 0 {
		return "", false
	}
	first, ok := output[0].(map[string]any)
	if !ok || first["content"] == nil {
		return "", false
	}

	switch c := first["content"].(type) {
	case string:
		return c, c != ""
	case []any:
		if len(c) > 0 {
			if part, ok := c[0].(map[string]any); ok {
				if text, ok := part["text"].(string); ok {
					return text, true
				}
			}
		}
	case map[string]any:
		if text, ok := c["text"].(string); ok {
			return text, true
		}
	}
	return "", true
}

// choicesContent handles choices[0].message.content.
func choicesContent(data map[string]any) (string, bool) {
	choices, ok := data["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	first, _ := choices[0].(map[string]any)
	msg, _ := first["message"].(map[string]any)
	text, _ := msg["content"].(string)
	if text == "" {
		return "", false
	}
	return text, true
}

// answerField handles answer as a string or an object with text.
func answerField(data map[string]any) (string, bool) {
	switch a := data["answer"].(type) {
	case string:
		return a, a != ""
	case map[string]any:
		text, _ := a["text"].(string)
		return text, true
	case nil:
		return "", false
	default:
		return "", true
	}
}

// Tokenize splits text into words and whitespace runs, keeping both so
// joining any prefix reproduces the original spacing.
func Tokenize(text string) []string {
	var tokens []string
	start := 0
	for i, r := range text {
		if i == 0 {
			continue
		}
		prev := isSpace(rune(text[i-1]))
		if isSpace(r) != prev {
			tokens = append(tokens, text[start:i])
			start = i
		}
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

func isSpace(r rune) bool {
	return strings.ContainsRune(" \t\n\r\v\f", r)
}
