package parser

import (
	"strings"
	"testing"

	"github.com/codecritics/codecritic/internal/domain"
)

func TestParse_NoIssuesSentinelYieldsNoFindings(t *testing.T) {
	got := Parse("No significant issues found. Good job!")
	if got != nil {
		t.Errorf("expected nil findings, got %v", got)
	}
}

func TestParse_NoIssuesSentinelAnywhereInReplyShortCircuits(t *testing.T) {
	reply := "Some preamble.\n\nNo significant issues found. Good job!\n\nTrailing text."
	got := Parse(reply)
	if got != nil {
		t.Errorf("expected nil findings, got %v", got)
	}
}

func TestParse_SingleFullBlock(t *testing.T) {
	reply := "**Location**: `internal/foo.go:42`\n" +
		"**Issue Type**: Bug\n" +
		"**Description**: off-by-one in loop bound\n" +
		"**Severity**: High\n" +
		"**Suggested Change**: use < instead of <="

	got := Parse(reply)
	if len(got) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(got), got)
	}
	f := got[0]
	if f.Path != "internal/foo.go" {
		t.Errorf("Path = %q, want %q", f.Path, "internal/foo.go")
	}
	if f.Line != 42 {
		t.Errorf("Line = %d, want 42", f.Line)
	}
	if f.IssueType != "Bug" {
		t.Errorf("IssueType = %q, want %q", f.IssueType, "Bug")
	}
	if f.Description != "off-by-one in loop bound" {
		t.Errorf("Description = %q", f.Description)
	}
	if f.Severity != domain.SeverityHigh {
		t.Errorf("Severity = %q, want High", f.Severity)
	}
	if f.Suggestion != "use < instead of <=" {
		t.Errorf("Suggestion = %q", f.Suggestion)
	}
}

func TestParse_MultipleBlocksSeparatedByDelimiter(t *testing.T) {
	reply := "**Location**: `a.go:1`\n**Description**: first issue\n" +
		"\n---\n" +
		"**Location**: `b.go:2`\n**Description**: second issue"

	got := Parse(reply)
	if len(got) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(got))
	}
	if got[0].Path != "a.go" || got[1].Path != "b.go" {
		t.Errorf("unexpected paths: %+v", got)
	}
}

func TestParse_LocationWithoutLineDefaultsToOne(t *testing.T) {
	reply := "**Location**: `a.go`\n**Description**: whole-file concern"
	got := Parse(reply)
	if len(got) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(got))
	}
	if got[0].Line != 1 {
		t.Errorf("Line = %d, want 1", got[0].Line)
	}
	if got[0].Path != "a.go" {
		t.Errorf("Path = %q, want %q", got[0].Path, "a.go")
	}
}

func TestParse_LocationWithNonPositiveLineKeepsPathDefaultsLine(t *testing.T) {
	reply := "**Location**: `a.go:0`\n**Description**: zero line number"
	got := Parse(reply)
	if len(got) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(got))
	}
	if got[0].Line != 1 {
		t.Errorf("Line = %d, want 1", got[0].Line)
	}
	if got[0].Path != "a.go:0" {
		t.Errorf("Path = %q, want the unsplit location since the suffix wasn't a valid line", got[0].Path)
	}
}

func TestParse_BlockWithoutPathIsDropped(t *testing.T) {
	reply := "**Issue Type**: Bug\n**Description**: no location given at all"
	got := Parse(reply)
	if len(got) != 0 {
		t.Errorf("expected block without a path to be dropped, got %+v", got)
	}
}

func TestParse_MissingFieldsGetTolerantDefaults(t *testing.T) {
	reply := "**Location**: `a.go:1`"
	got := Parse(reply)
	if len(got) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(got))
	}
	f := got[0]
	if f.IssueType != "Code Issue" {
		t.Errorf("IssueType = %q, want default", f.IssueType)
	}
	if f.Description != "No description provided" {
		t.Errorf("Description = %q, want default", f.Description)
	}
	if f.Suggestion != "No specific change suggested" {
		t.Errorf("Suggestion = %q, want default", f.Suggestion)
	}
	if f.Severity != domain.SeverityMedium {
		t.Errorf("Severity = %q, want Medium default", f.Severity)
	}
}

func TestParse_UnknownSeverityDefaultsToMedium(t *testing.T) {
	reply := "**Location**: `a.go:1`\n**Severity**: Catastrophic"
	got := Parse(reply)
	if len(got) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(got))
	}
	if got[0].Severity != domain.SeverityMedium {
		t.Errorf("Severity = %q, want Medium", got[0].Severity)
	}
}

func TestParse_SeverityIsCaseInsensitive(t *testing.T) {
	for _, raw := range []string{"critical", "CRITICAL", "Critical"} {
		reply := "**Location**: `a.go:1`\n**Severity**: " + raw
		got := Parse(reply)
		if len(got) != 1 || got[0].Severity != domain.SeverityCritical {
			t.Errorf("raw severity %q: got %+v", raw, got)
		}
	}
}

func TestParse_MultilineDescriptionContinues(t *testing.T) {
	reply := "**Location**: `a.go:1`\n" +
		"**Description**: first line\nsecond line\nthird line\n" +
		"**Severity**: Low"

	got := Parse(reply)
	if len(got) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(got))
	}
	want := "first line\nsecond line\nthird line"
	if got[0].Description != want {
		t.Errorf("Description = %q, want %q", got[0].Description, want)
	}
}

func TestParse_MultilineSuggestedChangeContinues(t *testing.T) {
	reply := "**Location**: `a.go:1`\n" +
		"**Suggested Change**: ```go\nfoo := 1\n```"

	got := Parse(reply)
	if len(got) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(got))
	}
	if !strings.Contains(got[0].Suggestion, "foo := 1") {
		t.Errorf("Suggestion = %q, want it to contain the fenced snippet", got[0].Suggestion)
	}
}

func TestParse_EmptyReplyYieldsNoFindings(t *testing.T) {
	got := Parse("")
	if len(got) != 0 {
		t.Errorf("expected no findings for empty reply, got %+v", got)
	}
}

func TestRender_IncludesMarkerAndFields(t *testing.T) {
	f := domain.Finding{
		Path:        "internal/foo.go",
		Line:        7,
		IssueType:   "Bug",
		Description: "desc",
		Severity:    domain.SeverityHigh,
		Suggestion:  "fix it",
	}
	body := Render(f)
	for _, want := range []string{"internal/foo.go:7", "Bug", "desc", string(domain.SeverityHigh), "fix it", domain.MarkerInline} {
		if !strings.Contains(body, want) {
			t.Errorf("rendered body missing %q: %s", want, body)
		}
	}
}

func TestParse_RoundTripsThroughRender(t *testing.T) {
	original := domain.Finding{
		Path:        "pkg/bar.go",
		Line:        13,
		IssueType:   "Style",
		Description: "inconsistent naming",
		Severity:    domain.SeverityLow,
		Suggestion:  "rename to camelCase",
	}
	reparsed := Parse(Render(original))
	if len(reparsed) != 1 {
		t.Fatalf("expected 1 finding after round trip, got %d", len(reparsed))
	}
	got := reparsed[0]
	if got.Path != original.Path || got.Line != original.Line || got.IssueType != original.IssueType ||
		got.Description != original.Description || got.Severity != original.Severity || got.Suggestion != original.Suggestion {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, original)
	}
}
