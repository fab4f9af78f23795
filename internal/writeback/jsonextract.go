// Package writeback implements the post-generation extraction pipeline
// (§4.8): drafting a strict-JSON summary/facts/foreshadowing document
// from a chapter's text via the completion port, tolerating malformed
// LLM output.
package writeback

import "encoding/json"

// ParseLLMJSON best-effort extracts the first balanced {...} substring
// from raw and unmarshals it into a generic map, falling back to
// fallback when no balanced object parses as valid JSON. Reused by the
// consistency critic for its own strict-JSON contract.
func ParseLLMJSON(raw string, fallback map[string]any) map[string]any {
	candidate := firstBalancedObject(raw)
	if candidate == "" {
		return fallback
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return fallback
	}
	return decoded
}

// firstBalancedObject scans raw for the first top-level {...} substring
// with balanced braces, respecting string literals so braces inside
// quoted strings don't affect the depth count.
func firstBalancedObject(raw string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return raw[start : i+1]
				}
			}
		}
	}
	return ""
}
