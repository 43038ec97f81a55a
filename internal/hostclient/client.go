// Package hostclient defines the source-hosting API capability contract the
// core consumes (identity, pull request metadata, diffs, comments, reviews,
// commit status) and an MCP-backed implementation of it.
package hostclient

import (
	"context"
	"time"

	"github.com/codecritics/codecritic/internal/domain"
)

// ReviewEvent mirrors the host's review submission verdicts.
type ReviewEvent string

const (
	ReviewComment        ReviewEvent = "COMMENT"
	ReviewRequestChanges ReviewEvent = "REQUEST_CHANGES"
	ReviewApprove        ReviewEvent = "APPROVE"
)

// CommitState mirrors the host's commit status states.
type CommitState string

const (
	StatusPending CommitState = "pending"
	StatusSuccess CommitState = "success"
	StatusFailure CommitState = "failure"
	StatusError   CommitState = "error"
)

// PullRequest is the subset of pull-request metadata the core needs.
type PullRequest struct {
	Number  int
	Title   string
	Body    string
	HeadSHA string
	BaseSHA string
	Files   []domain.FileChange
}

// InlineComment is one comment to attach to a line in a review submission.
type InlineComment struct {
	Path string
	Line int
	Body string
}

// RateLimitStatus mirrors the host's API rate-limit accounting, surfaced by
// the health endpoint.
type RateLimitStatus struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Client is the capability set the core consumes from the source host.
// Every method surfaces retriable vs permanent failures as a *types.Error
// (see internal/types) so callers can classify without inspecting strings.
type Client interface {
	// ValidateIdentity confirms the configured credential is usable and
	// returns the authenticated login and numeric id.
	ValidateIdentity(ctx context.Context) (login string, id int64, err error)

	GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error)
	ListFiles(ctx context.Context, owner, repo string, number int) ([]domain.FileChange, error)

	// CompareCommits returns a unified diff between base and head.
	CompareCommits(ctx context.Context, owner, repo, base, head string) (string, error)

	ListPRComments(ctx context.Context, owner, repo string, number int) ([]domain.Comment, error)
	CreatePRIssueComment(ctx context.Context, owner, repo string, number int, body string) error
	CreateReview(ctx context.Context, owner, repo string, number int, body string, event ReviewEvent, comments []InlineComment) error
	CreateCommitStatus(ctx context.Context, owner, repo, sha string, state CommitState, description, context_ string) error

	// RateLimit reports the host API's current rate-limit accounting, used by
	// the health endpoint; it is best-effort and never blocks a review job.
	RateLimit(ctx context.Context) (RateLimitStatus, error)
}
