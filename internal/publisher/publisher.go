// Package publisher implements the Publisher (C11): it turns a terminal
// Outcome into posted comments, a review, and a commit status on the source
// host. Each capability fails independently and is logged, never aborting
// the others.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/domain"
	"github.com/codecritics/codecritic/internal/hostclient"
	"github.com/codecritics/codecritic/internal/metrics"
	"github.com/codecritics/codecritic/internal/parser"
	"github.com/codecritics/codecritic/internal/types"
)

const commitStatusContext = "CodeCritic AI Review"

// Publisher posts review results to the source host.
type Publisher struct {
	host                    hostclient.Client
	failingStatusOnFindings bool
}

func NewPublisher(host hostclient.Client, cfg *config.Config) *Publisher {
	return &Publisher{host: host, failingStatusOnFindings: cfg.Job.FailingStatusOnFindings}
}

// PublishNoIssues posts the "no issues" summary comment and sets a success
// commit status.
func (p *Publisher) PublishNoIssues(ctx context.Context, repo domain.Repo, number int, headSHA string, now int64) {
	body := "No significant issues found. Good job!\n\n" + domain.MarkerSummary + "\n" + domain.TimestampMarker(now)
	p.postComment(ctx, repo, number, body)
	p.setStatus(ctx, repo, headSHA, hostclient.StatusSuccess, "No issues found")
}

// PublishFindings posts a summary comment, a review carrying one inline
// comment per finding, and a commit status. A successfully published review
// with findings sets the commit status to `failure` so the PR UI surfaces it
// as blocking, unless the operator has disabled that via
// FAILING_STATUS_ON_FINDINGS.
func (p *Publisher) PublishFindings(ctx context.Context, repo domain.Repo, number int, headSHA string, outcome domain.Outcome, now int64) {
	summary := renderSummary(outcome, now)
	p.postComment(ctx, repo, number, summary)

	event := hostclient.ReviewComment
	if outcome.HasBlockingSeverity() {
		event = hostclient.ReviewRequestChanges
	}

	comments := make([]hostclient.InlineComment, 0, len(outcome.Findings))
	for _, f := range outcome.Findings {
		comments = append(comments, hostclient.InlineComment{
			Path: f.Path,
			Line: f.Line,
			Body: parser.Render(f),
		})
	}

	reviewErr := p.host.CreateReview(ctx, repo.Owner, repo.Name, number, summary, event, comments)
	if reviewErr != nil {
		metrics.PublisherActions.WithLabelValues("review", "error").Inc()
		slog.Warn("publisher: create review failed", "repo", repo.FullName, "number", number, "error", types.Sanitize(reviewErr.Error()))
	} else {
		metrics.PublisherActions.WithLabelValues("review", "success").Inc()
	}

	state := hostclient.StatusSuccess
	if reviewErr == nil && p.failingStatusOnFindings {
		state = hostclient.StatusFailure
	}
	p.setStatus(ctx, repo, headSHA, state, fmt.Sprintf("%d issue(s) found", len(outcome.Findings)))
}

// PublishSkipNotice posts an informational notice for a Skipped outcome and
// sets a success status. The Orchestrator calls this only for the skip
// reasons that are user-visible (rate limiting, diff-size policy); a
// disallowed repository or a duplicate-recent skip is silent and never
// reaches the Publisher at all.
func (p *Publisher) PublishSkipNotice(ctx context.Context, repo domain.Repo, number int, headSHA string, reason domain.SkipReason, now int64) {
	body := skipMessage(reason) + "\n\n" + domain.MarkerSummary + "\n" + domain.TimestampMarker(now)
	p.postComment(ctx, repo, number, body)
	p.setStatus(ctx, repo, headSHA, hostclient.StatusSuccess, skipMessage(reason))
}

// PublishFailure posts a user-facing failure notice and sets an error commit
// status. The comment body names kind's category, never the underlying
// error: the raw (even sanitized) error text can still carry internal detail
// that doesn't belong in a public PR comment, so the caller's logs are the
// place to find it.
func (p *Publisher) PublishFailure(ctx context.Context, repo domain.Repo, number int, headSHA string, kind types.Kind) {
	body := "CodeCritic hit an error while reviewing this pull request: " + userMessage(kind) +
		"\n\n" + domain.MarkerSummary
	p.postComment(ctx, repo, number, body)
	p.setStatus(ctx, repo, headSHA, hostclient.StatusError, "Review failed")
}

// userMessage maps a failure's category to one of a small, stable set of
// phrases shown in the PR comment.
func userMessage(kind types.Kind) string {
	switch kind {
	case types.KindPermanent:
		return "Authentication configuration issue detected."
	case types.KindTransient:
		return "Network connectivity issue encountered."
	case types.KindTimeout:
		return "Request timeout — the review took too long to complete."
	case types.KindRateLimited:
		return "Rate limit exceeded — please try again later."
	default:
		return "An unexpected error occurred during the review process."
	}
}

// SetPending marks the review as in progress; called when the Orchestrator
// admits a job.
func (p *Publisher) SetPending(ctx context.Context, repo domain.Repo, headSHA string) {
	p.setStatus(ctx, repo, headSHA, hostclient.StatusPending, "Reviewing pull request…")
}

func (p *Publisher) postComment(ctx context.Context, repo domain.Repo, number int, body string) {
	if err := p.host.CreatePRIssueComment(ctx, repo.Owner, repo.Name, number, body); err != nil {
		metrics.PublisherActions.WithLabelValues("comment", "error").Inc()
		slog.Warn("publisher: post comment failed", "repo", repo.FullName, "number", number, "error", types.Sanitize(err.Error()))
		return
	}
	metrics.PublisherActions.WithLabelValues("comment", "success").Inc()
}

func (p *Publisher) setStatus(ctx context.Context, repo domain.Repo, sha string, state hostclient.CommitState, description string) {
	if sha == "" {
		return
	}
	if err := p.host.CreateCommitStatus(ctx, repo.Owner, repo.Name, sha, state, description, commitStatusContext); err != nil {
		metrics.PublisherActions.WithLabelValues("status", "error").Inc()
		slog.Warn("publisher: set commit status failed", "repo", repo.FullName, "sha", sha, "error", types.Sanitize(err.Error()))
		return
	}
	metrics.PublisherActions.WithLabelValues("status", "success").Inc()
}

func renderSummary(outcome domain.Outcome, now int64) string {
	var sb strings.Builder
	sb.WriteString(domain.MarkerSummary + "\n" + domain.TimestampMarker(now) + "\n\n")
	fmt.Fprintf(&sb, "## CodeCritic review — %d issue(s) found (highest severity: %s)\n\n", len(outcome.Findings), outcome.SummarySeverity)
	for i, f := range outcome.Findings {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&sb, "**%s:%d** — %s (%s)\n\n%s\n", f.Path, f.Line, f.IssueType, f.Severity, f.Description)
	}
	return sb.String()
}

func skipMessage(reason domain.SkipReason) string {
	switch reason {
	case domain.SkipDiffTooLarge:
		return "This pull request's diff is too large for CodeCritic to review."
	case domain.SkipNoSupportedFiles:
		return "This pull request has no files in a language CodeCritic reviews."
	case domain.SkipDuplicateRecent:
		return "CodeCritic already reviewed the latest changes on this pull request."
	case domain.SkipRateLimited:
		return "CodeCritic's review budget for this repository is exhausted; please try again later."
	default:
		return "CodeCritic skipped this review."
	}
}
