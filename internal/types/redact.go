package types

import "regexp"

const Redacted = "[REDACTED]"

// redactPatterns matches the secret shapes called out by the LLM Gateway and
// logging boundaries: long opaque tokens, Bearer headers, sk-prefixed keys,
// and "key: <value>" style fields.
var redactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z0-9_-]{32,}`),
	regexp.MustCompile(`(?i)Bearer\s+\S+`),
	regexp.MustCompile(`sk-[A-Za-z0-9_-]+`),
	regexp.MustCompile(`(?i)key:\s*\S+`),
}

// Sanitize replaces every span matching a known secret shape with a fixed
// marker. It is applied at the logger boundary and to provider error
// surfaces before they are logged or propagated.
func Sanitize(s string) string {
	for _, p := range redactPatterns {
		s = p.ReplaceAllString(s, Redacted)
	}
	return s
}

// Truncate caps s at n runes, appending an ellipsis marker when truncated.
// Used for free-text fields (PR titles, comment bodies) in post-ACK logging.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
