package ai

import (
	"encoding/json"
	"strings"
)

// Question is a single follow-up question about a specification section.
type Question struct {
	Section string `json:"section"`
	Prompt  string `json:"question"`
}

// ParseQuestions extracts follow-up questions from model output. The prompt
// asks for a JSON array of {section, question} objects, but models wrap
// output in markdown fences or drift into prose, so parsing is tolerant:
// first try the JSON array (fenced or bare), then fall back to a line scan
// that recovers at most one question. An empty slice means the model found
// nothing left to ask.
func ParseQuestions(raw string) []Question {
	if qs, ok := parseQuestionJSON(raw); ok {
		return qs
	}
	return scanQuestionLines(raw)
}

func parseQuestionJSON(raw string) ([]Question, bool) {
	candidate := ExtractJSON(raw)
	if candidate == "" {
		return nil, false
	}
	var qs []Question
	if err := json.Unmarshal([]byte(candidate), &qs); err != nil {
		return nil, false
	}
	out := qs[:0]
	for _, q := range qs {
		q.Prompt = strings.TrimSpace(q.Prompt)
		q.Section = strings.TrimSpace(q.Section)
		if q.Prompt == "" {
			continue
		}
		if q.Section == "" {
			q.Section = "General"
		}
		out = append(out, q)
	}
	return out, true
}

// ExtractJSON pulls a JSON value out of model output that may be wrapped in
// markdown fences or surrounded by prose. Returns "" when no JSON array or
// object boundary is found.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if fenced, ok := stripFence(s); ok {
		s = fenced
	}
	for _, pair := range [][2]byte{{'[', ']'}, {'{', '}'}} {
		start := strings.IndexByte(s, pair[0])
		end := strings.LastIndexByte(s, pair[1])
		if start >= 0 && end > start {
			return s[start : end+1]
		}
	}
	return ""
}

func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	body := s[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// The first line may carry a language tag such as ```json.
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body), true
}

// scanQuestionLines is the fallback for unstructured output. It walks the
// text tracking short header-ish lines ending in ':' as section names and
// returns the first line that looks like a question. Capped at one so a
// rambling response cannot flood the user.
func scanQuestionLines(raw string) []Question {
	section := "General"
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ":") && len(line) < 50 {
			section = strings.TrimSuffix(line, ":")
			continue
		}
		if strings.Contains(line, "?") && len(line) > 10 {
			return []Question{{Section: section, Prompt: strings.TrimLeft(line, "-*0123456789. ")}}
		}
	}
	return nil
}
