package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when model output contains no JSON object
var ErrNoJSON = errors.New("no JSON object in model output")

var (
	thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)
	fence      = regexp.MustCompile("```(?:json|JSON)?")
)

// CleanText strips reasoning blocks and Markdown fences from model output
func CleanText(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	text = fence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ExtractJSON returns the span from the first '{' to the last '}' of the
// cleaned text. Without a closing brace the rest of the text is returned so
// that a truncated object can still be repaired.
func ExtractJSON(text string) (string, error) {
	text = CleanText(text)
	start := strings.Index(text, "{")
	if start < 0 {
		return "", ErrNoJSON
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return text[start:], nil
	}
	return text[start : end+1], nil
}

// ParseJSON decodes model output into out. When the extracted span does not
// parse, the text from the first '{' onward is repaired and parsed again.
func ParseJSON(text string, out any) error {
	span, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(span), out); err == nil {
		return nil
	}

	cleaned := CleanText(text)
	repaired := RepairTruncatedJSON(cleaned[strings.Index(cleaned, "{"):])
	return json.Unmarshal([]byte(repaired), out)
}

// RepairTruncatedJSON closes an object cut off mid-stream: an open string is
// terminated, a dangling comma or colon is resolved and open brackets are
// closed in order. When that is not enough the last incomplete member is
// dropped and the repair retried.
func RepairTruncatedJSON(s string) string {
	s = strings.TrimSpace(s)
	for i := 0; i < 16 && s != ""; i++ {
		fixed := closeOpen(s)
		if json.Valid([]byte(fixed)) {
			return fixed
		}
		cut := lastTopComma(s)
		if cut <= 0 {
			break
		}
		s = s[:cut]
	}
	return closeOpen(s)
}

func closeOpen(s string) string {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		if escaped {
			b.WriteString(`\`)
		}
		b.WriteByte('"')
	}
	out := strings.TrimRight(b.String(), " \t\r\n")
	out = strings.TrimSuffix(out, ",")
	if strings.HasSuffix(out, ":") {
		out += "null"
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out
}

// lastTopComma returns the index of the last comma outside strings
func lastTopComma(s string) int {
	last := -1
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
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
		case ',':
			last = i
		}
	}
	return last
}
