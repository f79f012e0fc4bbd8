package transcript

import (
	"fmt"
	"regexp"
	"strings"
)

// QAPair is one user question with the assistant text that followed it.
type QAPair struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

// Pairs projects items into question/answer pairs with one forward scan.
//
// Every user message opens a pair. Assistant messages up to the next user
// message are joined with a single space to form its answer. Assistant
// messages before the first user message and all breadcrumbs are skipped.
// A user message with no reply yet keeps an empty answer.
func Pairs(items []Item) []QAPair {
	var (
		pairs   []QAPair
		current *QAPair
	)
	flush := func() {
		if current != nil {
			pairs = append(pairs, *current)
			current = nil
		}
	}

	for _, item := range items {
		if item.Type != TypeMessage {
			continue
		}
		switch item.Role {
		case RoleUser:
			flush()
			current = &QAPair{
				ID:        fmt.Sprintf("qa-%d", len(pairs)),
				Question:  item.Title,
				Timestamp: item.Timestamp,
			}
		case RoleAssistant:
			if current == nil {
				continue
			}
			if current.Answer != "" {
				current.Answer += " "
			}
			current.Answer += item.Title
		}
	}
	flush()
	return pairs
}

// Latest returns the newest pair.
func Latest(pairs []QAPair) (QAPair, bool) {
	if len(pairs) == 0 {
		return QAPair{}, false
	}
	return pairs[len(pairs)-1], true
}

// History returns every pair except the newest, newest first.
func History(pairs []QAPair) []QAPair {
	if len(pairs) < 2 {
		return nil
	}
	out := make([]QAPair, 0, len(pairs)-1)
	for i := len(pairs) - 2; i >= 0; i-- {
		out = append(out, pairs[i])
	}
	return out
}

var codeBlock = regexp.MustCompile("```[a-zA-Z]*\\n?([\\s\\S]*?)```")

// SplitAnswer separates the first fenced code block from the prose around it.
func SplitAnswer(answer string) (code, explanation string) {
	m := codeBlock.FindStringSubmatchIndex(answer)
	if m == nil {
		return "", answer
	}
	code = strings.TrimSpace(answer[m[2]:m[3]])
	explanation = strings.TrimSpace(answer[:m[0]] + answer[m[1]:])
	return code, explanation
}
