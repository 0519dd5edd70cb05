// Package jsonutil parses JSON objects out of LLM responses. Model output is
// frequently wrapped in markdown code fences or surrounded by prose; the
// classifiers only ever ask for a single JSON object, so extraction is a
// first-{ / last-} scan after fence removal.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parse extracts the first JSON object from raw LLM output and unmarshals it
// into T. It tolerates ```json fences and leading/trailing prose.
func Parse[T any](raw string) (T, error) {
	var zero T

	text := stripFences(raw)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return zero, fmt.Errorf("no JSON object found (raw length: %d)", len(raw))
	}

	var result T
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		preview := text[start : end+1]
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}

// stripFences removes a ```json ... ``` (or bare ```) wrapper if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	// Drop the opening fence line.
	if nl := strings.Index(text, "\n"); nl != -1 {
		text = text[nl+1:]
	}
	// Drop everything from the closing fence on.
	if idx := strings.LastIndex(text, "```"); idx != -1 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
