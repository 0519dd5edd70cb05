package signals

import "strings"

// toxicTerms is the local blocklist for outgoing replies. This is a cheap
// word-boundary gate, not a full toxicity model: it exists so an obviously
// hostile generated reply never reaches a platform, with the safe-fallback
// substitution handling the rest.
var toxicTerms = []string{
	"hate",
	"stupid",
	"idiot",
	"moron",
	"pathetic",
	"worthless",
	"shut up",
	"fuck",
	"shit",
	"damn",
}

// CheckToxicity reports whether the candidate reply contains a blocked term,
// and which term matched. It is applied to outgoing text only, never to the
// incoming mention.
func CheckToxicity(text string) (bool, string) {
	lower := strings.ToLower(text)
	for _, term := range toxicTerms {
		idx := strings.Index(lower, term)
		for idx != -1 {
			if isWordBoundary(lower, idx, len(term)) {
				return true, term
			}
			next := strings.Index(lower[idx+1:], term)
			if next == -1 {
				break
			}
			idx += 1 + next
		}
	}
	return false, ""
}

// isWordBoundary reports whether lower[start:start+length] is delimited by
// non-letter characters, so "assessment" never trips a substring match.
func isWordBoundary(lower string, start, length int) bool {
	if start > 0 && isLetter(lower[start-1]) {
		return false
	}
	end := start + length
	if end < len(lower) && isLetter(lower[end]) {
		return false
	}
	return true
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
