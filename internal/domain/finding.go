package domain

// Severity is the normalized severity band of a Finding.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Finding is one parsed unit from a model reply.
//
// Invariant: Path is non-empty (a block missing it is dropped by the
// parser). Line is >= 1, defaulting to 1 when unparseable, and is clamped to
// the visible right-side range of the diff when that range is known.
type Finding struct {
	Path        string
	Line        int
	IssueType   string
	Severity    Severity
	Description string
	Suggestion  string
}
