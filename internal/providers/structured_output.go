package providers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences returns the body of a fenced block, or "" if content is
// not fenced.
func StripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// FirstJSONArray returns the first top-level JSON array in model output.
// The whole text (fences stripped) wins if it is an array; otherwise each
// [ is tried in order and the first balanced span that decodes is used.
func FirstJSONArray(content string) ([]json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if stripped := StripCodeFences(content); stripped != "" {
		content = stripped
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(content), &elems); err == nil {
		return elems, nil
	}
	for i := 0; i < len(content); i++ {
		if content[i] != '[' {
			continue
		}
		span := BalancedSpan(content, i)
		if span == "" {
			break
		}
		if err := json.Unmarshal([]byte(span), &elems); err == nil {
			return elems, nil
		}
	}
	return nil, fmt.Errorf("no JSON array in output")
}

// BalancedSpan returns content[start:end+1] where end closes the bracket
// opened at start. Brackets inside JSON strings are ignored. It returns ""
// if start is not an opener or the bracket is never closed.
func BalancedSpan(content string, start int) string {
	if start < 0 || start >= len(content) || (content[start] != '[' && content[start] != '{') {
		return ""
	}
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(content); i++ {
		c := content[i]
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
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return ""
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
