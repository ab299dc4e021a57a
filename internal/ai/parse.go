package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/promptguild/promptguild/internal/model"
)

var ErrNoJSON = errors.New("no JSON object in backend reply")

// extractObject returns the first balanced {...} region of s. Braces inside
// JSON string literals are ignored.
func extractObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > 0 {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the brace closing s[start], or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseAnalysis pulls {summary, useCase, tags} out of a free-form reply.
// Missing fields default to empty values; tags is never nil.
func parseAnalysis(reply string) (model.Analysis, error) {
	obj, ok := extractObject(reply)
	if !ok {
		return model.Analysis{}, ErrNoJSON
	}
	var raw struct {
		Summary string          `json:"summary"`
		UseCase string          `json:"useCase"`
		Tags    json.RawMessage `json:"tags"`
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return model.Analysis{}, fmt.Errorf("parse analysis: %w", err)
	}
	tags, err := parseTags(raw.Tags)
	if err != nil {
		return model.Analysis{}, err
	}
	return model.Analysis{
		Summary: strings.TrimSpace(raw.Summary),
		UseCase: strings.TrimSpace(raw.UseCase),
		Tags:    tags,
	}, nil
}

// parseTags accepts a list of strings or a single comma separated string.
func parseTags(b json.RawMessage) ([]string, error) {
	tags := []string{}
	if len(b) == 0 || string(b) == "null" {
		return tags, nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		var joined string
		if json.Unmarshal(b, &joined) != nil {
			return nil, fmt.Errorf("parse analysis tags: %w", err)
		}
		list = strings.Split(joined, ",")
	}
	for _, t := range list {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags, nil
}
