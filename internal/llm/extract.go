package llm

import "strings"

// StripFences removes a markdown code-fence wrapper (```json ... ``` or
// ``` ... ```) from model output, returning the inner text. Text without
// a fence is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	rest := strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence line.
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(rest[:idx])
		if firstLine == "" || !strings.ContainsAny(firstLine, " {[\"") {
			rest = rest[idx+1:]
		}
	}

	if idx := strings.LastIndex(rest, "```"); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}

// FirstJSONObject returns the first balanced {...} span in s, honoring
// string literals and escapes. Returns false when no balanced object
// exists.
func FirstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
