package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// HTML-style markers embedded in bot-posted bodies so later passes can
// recognize and deduplicate against a prior automated review.
const (
	MarkerSummary = "<!-- code-critics-review -->"
	MarkerInline  = "<!-- code-critics-comment -->"
)

var timestampMarkerPattern = regexp.MustCompile(`<!--\s*timestamp:\s*(\d+)\s*-->`)

// TimestampMarker renders the dedup timestamp marker for a summary comment.
func TimestampMarker(epochMillis int64) string {
	return fmt.Sprintf("<!-- timestamp: %d -->", epochMillis)
}

// ParseTimestampMarker extracts the epoch-millis timestamp embedded in a
// summary comment body, if present.
func ParseTimestampMarker(body string) (int64, bool) {
	m := timestampMarkerPattern.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Comment is a PR comment as surfaced by the host client, used by the Dedup
// Oracle.
type Comment struct {
	Body      string
	CreatedAt int64 // epoch millis
}
