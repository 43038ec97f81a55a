// Package parser implements the Response Parser: it turns an LLM's raw reply
// text into a list of domain.Finding values, tolerating malformed blocks
// rather than failing the whole response.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/codecritics/codecritic/internal/domain"
)

const noIssuesSentinel = "No significant issues found. Good job!"

const (
	labelLocation        = "Location"
	labelIssueType       = "Issue Type"
	labelDescription     = "Description"
	labelSeverity        = "Severity"
	labelSuggestedChange = "Suggested Change"
)

var labels = []string{labelLocation, labelIssueType, labelDescription, labelSeverity, labelSuggestedChange}

// Parse returns the Findings encoded in reply, or an empty slice if reply is
// (or contains) the no-issues sentinel. It never returns an error: malformed
// blocks are dropped, not propagated, per the parser's tolerance contract.
func Parse(reply string) []domain.Finding {
	if strings.Contains(reply, noIssuesSentinel) {
		return nil
	}

	var findings []domain.Finding
	for _, block := range strings.Split(reply, "\n---\n") {
		if f, ok := parseBlock(block); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

type rawBlock struct {
	location                                 string
	issueType, description, severity, change string
}

func parseBlock(block string) (domain.Finding, bool) {
	raw := rawBlock{}
	var active *string

	for _, line := range strings.Split(block, "\n") {
		label, value, isLabeled := splitLabel(line)
		if isLabeled {
			switch label {
			case labelLocation:
				raw.location = value
				active = nil
			case labelIssueType:
				raw.issueType = value
				active = nil
			case labelDescription:
				raw.description = value
				active = &raw.description
			case labelSeverity:
				raw.severity = value
				active = nil
			case labelSuggestedChange:
				raw.change = value
				active = &raw.change
			default:
				active = nil
			}
			continue
		}

		// The inline marker Render appends belongs to no field.
		if strings.TrimSpace(line) == domain.MarkerInline {
			continue
		}

		// Unlabeled line: continue the most recent multi-line-capable field.
		if active != nil {
			if strings.TrimSpace(line) != "" || *active != "" {
				*active += "\n" + line
			}
		}
	}

	return toFinding(raw)
}

// splitLabel recognizes a leading "**Label**: value" line and reports its
// label and value; labels not in the known set are reported as unlabeled so
// callers can treat them as continuation text.
func splitLabel(line string) (label, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "**") {
		return "", "", false
	}
	end := strings.Index(trimmed[2:], "**")
	if end < 0 {
		return "", "", false
	}
	end += 2
	candidate := trimmed[2:end]

	rest := strings.TrimPrefix(trimmed[end+2:], ":")
	rest = strings.TrimSpace(rest)

	for _, l := range labels {
		if l == candidate {
			return l, rest, true
		}
	}
	return "", "", false
}

// toFinding applies the tolerance rules: defaults for missing fields, and
// drops the block if location parsing left it with no path at all.
func toFinding(raw rawBlock) (domain.Finding, bool) {
	path, line := parseLocation(raw.location)
	if path == "" {
		return domain.Finding{}, false
	}

	issueType := strings.TrimSpace(raw.issueType)
	if issueType == "" {
		issueType = "Code Issue"
	}
	description := strings.TrimSpace(raw.description)
	if description == "" {
		description = "No description provided"
	}
	change := strings.TrimSpace(raw.change)
	if change == "" {
		change = "No specific change suggested"
	}

	return domain.Finding{
		Path:        path,
		Line:        line,
		IssueType:   issueType,
		Description: description,
		Severity:    parseSeverity(raw.severity),
		Suggestion:  change,
	}, true
}

// parseLocation splits "path[:line]", stripping backticks. If line is
// absent or not a positive integer, it defaults to 1 while keeping path.
func parseLocation(location string) (path string, line int) {
	location = strings.Trim(strings.TrimSpace(location), "`")
	if location == "" {
		return "", 1
	}

	idx := strings.LastIndex(location, ":")
	if idx < 0 {
		return location, 1
	}

	n, err := strconv.Atoi(strings.TrimSpace(location[idx+1:]))
	if err != nil || n <= 0 {
		return location, 1
	}
	return location[:idx], n
}

func parseSeverity(raw string) domain.Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical":
		return domain.SeverityCritical
	case "high":
		return domain.SeverityHigh
	case "low":
		return domain.SeverityLow
	case "medium":
		return domain.SeverityMedium
	default:
		return domain.SeverityMedium
	}
}

// Render produces the stable comment body for one Finding, including the
// dedup marker the Dedup Oracle and Publisher rely on.
func Render(f domain.Finding) string {
	return fmt.Sprintf(
		"**Location**: `%s:%d`\n**Issue Type**: %s\n**Description**: %s\n**Severity**: %s\n**Suggested Change**: %s\n\n%s",
		f.Path, f.Line, f.IssueType, f.Description, f.Severity, f.Suggestion, domain.MarkerInline,
	)
}
