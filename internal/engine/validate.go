package engine

import (
	"regexp"
	"strings"
)

// LinkPlaceholder replaces raw URLs in outgoing replies. Platforms penalize
// or strip shortened links in bot replies, and a generated URL is never
// trusted anyway.
const LinkPlaceholder = "[LINK]"

// fillerText pads replies that come out shorter than the platform minimum.
const fillerText = " Feel free to reach out if you have more questions!"

var urlPattern = regexp.MustCompile(`http\S+`)

// Validate normalizes a reply draft for posting: markup is stripped, URLs are
// replaced with a placeholder, and the result is padded or truncated into the
// [minLen, maxLen] rune range. Truncation reserves three runes for an
// ellipsis so the output never exceeds maxLen.
func Validate(text string, minLen, maxLen int) string {
	out := strings.TrimSpace(text)

	// Markdown emphasis survives generation surprisingly often and renders
	// as literal asterisks on every target platform.
	out = strings.ReplaceAll(out, "**", "")
	out = strings.ReplaceAll(out, "*", "")

	// A reply that already carries the placeholder is left alone so it
	// cannot accumulate duplicates.
	if !strings.Contains(out, LinkPlaceholder) {
		out = urlPattern.ReplaceAllString(out, LinkPlaceholder)
	}

	for minLen > 0 && len([]rune(out)) < minLen {
		out = strings.TrimSpace(out + fillerText)
	}

	if maxLen > 3 {
		if runes := []rune(out); len(runes) > maxLen {
			out = string(runes[:maxLen-3]) + "..."
		}
	}
	return out
}
