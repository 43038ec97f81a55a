package diffproc

import (
	"regexp"
	"strconv"

	"github.com/codecritics/codecritic/internal/domain"
)

// hunkHeaderPattern matches a unified diff hunk header's right-side
// (new-file) range, e.g. "@@ -12,5 +14,8 @@".
var hunkHeaderPattern = regexp.MustCompile(`(?m)^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// LineRange is an inclusive range of new-file line numbers a diff hunk shows.
type LineRange struct {
	Start, End int
}

// VisibleRanges returns, per file path, the new-file line ranges a unified
// diff's hunks actually show. A path absent from the map (or mapped to no
// ranges) means the diff carries no hunk information for it, e.g. the diff
// doesn't mention the file at all, or it's a rename with no content change.
func VisibleRanges(diff string) map[string][]LineRange {
	ranges := make(map[string][]LineRange)
	for _, f := range splitFiles(diff) {
		if f.path == "" {
			continue
		}
		for _, m := range hunkHeaderPattern.FindAllStringSubmatch(f.content, -1) {
			start, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			count := 1
			if m[2] != "" {
				if count, err = strconv.Atoi(m[2]); err != nil {
					continue
				}
			}
			if count == 0 {
				continue
			}
			ranges[f.path] = append(ranges[f.path], LineRange{Start: start, End: start + count - 1})
		}
	}
	return ranges
}

// ClampFindings adjusts each finding's line to the nearest line diff's hunks
// actually show for that finding's path, leaving findings for a path with no
// known ranges untouched. A model frequently cites a line of surrounding
// context that isn't part of any hunk's right-side range; posting that line
// verbatim gets the inline comment rejected by the host's review API.
func ClampFindings(findings []domain.Finding, diff string) []domain.Finding {
	if len(findings) == 0 {
		return findings
	}
	ranges := VisibleRanges(diff)
	out := make([]domain.Finding, len(findings))
	for i, f := range findings {
		out[i] = f
		fr := ranges[f.Path]
		if len(fr) == 0 {
			continue
		}
		out[i].Line = clampToRanges(f.Line, fr)
	}
	return out
}

func clampToRanges(line int, ranges []LineRange) int {
	for _, r := range ranges {
		if line >= r.Start && line <= r.End {
			return line
		}
	}

	best := ranges[0].Start
	bestDist := abs(line - best)
	for _, r := range ranges {
		for _, candidate := range [2]int{r.Start, r.End} {
			if d := abs(line - candidate); d < bestDist {
				bestDist = d
				best = candidate
			}
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
