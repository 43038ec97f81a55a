package diffproc

import (
	"testing"

	"github.com/codecritics/codecritic/internal/domain"
)

func sampleHunkDiff() string {
	return "diff --git a/main.go b/main.go\n" +
		"@@ -10,3 +12,5 @@\n context\n-old\n+new\n+extra\n context\n" +
		"diff --git a/README.md b/README.md\n" +
		"@@ -1,2 +1,2 @@\n-old line\n+new line\n context\n"
}

func TestVisibleRanges_ParsesRightSideHunkBounds(t *testing.T) {
	ranges := VisibleRanges(sampleHunkDiff())

	main := ranges["main.go"]
	if len(main) != 1 || main[0] != (LineRange{Start: 12, End: 16}) {
		t.Fatalf("unexpected ranges for main.go: %+v", main)
	}
	readme := ranges["README.md"]
	if len(readme) != 1 || readme[0] != (LineRange{Start: 1, End: 2}) {
		t.Fatalf("unexpected ranges for README.md: %+v", readme)
	}
}

func TestClampFindings_LeavesLineInsideRangeAlone(t *testing.T) {
	findings := []domain.Finding{{Path: "main.go", Line: 14}}
	out := ClampFindings(findings, sampleHunkDiff())
	if out[0].Line != 14 {
		t.Errorf("expected line to stay at 14, got %d", out[0].Line)
	}
}

func TestClampFindings_ClampsLineOutsideRangeToNearestBound(t *testing.T) {
	findings := []domain.Finding{
		{Path: "main.go", Line: 1},   // below the hunk, should clamp up to 12
		{Path: "main.go", Line: 500}, // above the hunk, should clamp down to 16
	}
	out := ClampFindings(findings, sampleHunkDiff())
	if out[0].Line != 12 {
		t.Errorf("expected line clamped to 12, got %d", out[0].Line)
	}
	if out[1].Line != 16 {
		t.Errorf("expected line clamped to 16, got %d", out[1].Line)
	}
}

func TestClampFindings_LeavesUnknownPathUntouched(t *testing.T) {
	findings := []domain.Finding{{Path: "other.go", Line: 999}}
	out := ClampFindings(findings, sampleHunkDiff())
	if out[0].Line != 999 {
		t.Errorf("expected line for an unknown path to stay untouched, got %d", out[0].Line)
	}
}

func TestClampFindings_EmptyDiffLeavesFindingsUntouched(t *testing.T) {
	findings := []domain.Finding{{Path: "main.go", Line: 3}}
	out := ClampFindings(findings, "")
	if out[0].Line != 3 {
		t.Errorf("expected line to stay untouched for an empty diff, got %d", out[0].Line)
	}
}
