package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codecritics/codecritic/internal/admission"
	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/dedup"
	"github.com/codecritics/codecritic/internal/diffproc"
	"github.com/codecritics/codecritic/internal/domain"
	"github.com/codecritics/codecritic/internal/hostclient"
	"github.com/codecritics/codecritic/internal/llm"
	"github.com/codecritics/codecritic/internal/publisher"
	"github.com/codecritics/codecritic/internal/syncutil"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeHost struct {
	hostclient.Client
	pr           *hostclient.PullRequest
	getPRErr     error
	compareDiff  string
	compareErr   error
	comments     []domain.Comment
	statuses     []hostclient.CommitState
	reviewCount  int
	commentCount int
}

func (f *fakeHost) GetPullRequest(ctx context.Context, owner, repo string, number int) (*hostclient.PullRequest, error) {
	return f.pr, f.getPRErr
}

func (f *fakeHost) CompareCommits(ctx context.Context, owner, repo, base, head string) (string, error) {
	return f.compareDiff, f.compareErr
}

func (f *fakeHost) ListPRComments(ctx context.Context, owner, repo string, number int) ([]domain.Comment, error) {
	return f.comments, nil
}

func (f *fakeHost) CreatePRIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	f.commentCount++
	return nil
}

func (f *fakeHost) CreateReview(ctx context.Context, owner, repo string, number int, body string, event hostclient.ReviewEvent, comments []hostclient.InlineComment) error {
	f.reviewCount++
	return nil
}

func (f *fakeHost) CreateCommitStatus(ctx context.Context, owner, repo, sha string, state hostclient.CommitState, description, context_ string) error {
	f.statuses = append(f.statuses, state)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Diff.MaxDiffSize = 10_000
	cfg.Diff.LargeDiffMultiplier = 2
	cfg.Diff.ChunkByteBudget = 4_000
	cfg.Job.DeadlineSeconds = 5
	cfg.Job.FailingStatusOnFindings = true
	cfg.Admission.AutoRateLimit = 1000
	cfg.Admission.ManualRateLimit = 1000
	cfg.Admission.RateLimitWindow = time.Hour
	cfg.Admission.RateLimitCacheCap = 1000
	return cfg
}

func newTestOrchestrator(cfg *config.Config, host hostclient.Client, gw completer) *Orchestrator {
	return &Orchestrator{
		host:      host,
		admission: admission.NewController(cfg),
		fetcher:   diffproc.NewFetcher(host, nil),
		processor: diffproc.NewProcessor(cfg),
		gateway:   gw,
		oracle:    dedup.NewOracle(host),
		publisher: publisher.NewPublisher(host, cfg),
		locks:     syncutil.NewKeyLock(),
		deadline:  time.Duration(cfg.Job.DeadlineSeconds) * time.Second,
	}
}

func testEnvelope() domain.Envelope {
	return domain.Envelope{
		DeliveryID: "d1",
		EventKind:  domain.EventPRChanged,
		Repo:       domain.Repo{Owner: "acme", Name: "widget", FullName: "acme/widget"},
		PullNumber: 42,
		HeadSHA:    "headsha",
	}
}

func TestRun_HappyPathWithFindings(t *testing.T) {
	host := &fakeHost{pr: &hostclient.PullRequest{Number: 42, Title: "t", HeadSHA: "headsha", BaseSHA: "basesha"}}
	gw := &fakeCompleter{reply: "**Location**: `a.go:1`\n**Description**: bad\n**Severity**: High"}
	o := newTestOrchestrator(testConfig(), host, gw)

	o.Run(context.Background(), testEnvelope())

	if gw.calls != 1 {
		t.Errorf("expected 1 LLM call, got %d", gw.calls)
	}
	if host.reviewCount != 1 {
		t.Errorf("expected 1 review posted, got %d", host.reviewCount)
	}
	if len(host.statuses) == 0 || host.statuses[len(host.statuses)-1] != hostclient.StatusFailure {
		t.Errorf("expected final status failure, got %+v", host.statuses)
	}
}

func TestRun_NoIssuesPublishesSuccess(t *testing.T) {
	host := &fakeHost{pr: &hostclient.PullRequest{Number: 42, HeadSHA: "headsha"}}
	gw := &fakeCompleter{reply: "No significant issues found. Good job!"}
	o := newTestOrchestrator(testConfig(), host, gw)

	o.Run(context.Background(), testEnvelope())

	if host.commentCount != 1 {
		t.Errorf("expected 1 comment posted, got %d", host.commentCount)
	}
	if len(host.statuses) == 0 || host.statuses[len(host.statuses)-1] != hostclient.StatusSuccess {
		t.Errorf("expected final status success, got %+v", host.statuses)
	}
}

func TestRun_DisallowedRepoSkipsSilently(t *testing.T) {
	cfg := testConfig()
	cfg.Admission.AllowedRepositories = []string{"other/repo"}
	host := &fakeHost{pr: &hostclient.PullRequest{Number: 42, HeadSHA: "headsha"}}
	gw := &fakeCompleter{reply: "No significant issues found. Good job!"}
	o := newTestOrchestrator(cfg, host, gw)

	o.Run(context.Background(), testEnvelope())

	if host.commentCount != 0 || len(host.statuses) != 0 {
		t.Errorf("expected no publisher activity for a disallowed repo, got comments=%d statuses=%+v", host.commentCount, host.statuses)
	}
	if gw.calls != 0 {
		t.Error("expected no LLM call for a disallowed repo")
	}
}

func TestRun_OversizedDiffSkipsWithNotice(t *testing.T) {
	cfg := testConfig()
	cfg.Diff.MaxDiffSize = 10
	cfg.Diff.LargeDiffMultiplier = 1
	cfg.Diff.AllowedExtensions = []string{".md"}
	host := &fakeHost{pr: &hostclient.PullRequest{Number: 42, HeadSHA: "headsha"}}
	hugeDiff := "diff --git a/a.go b/a.go\n" + strings.Repeat("+line of change\n", 500)
	host.compareDiff = hugeDiff
	gw := &fakeCompleter{reply: "No significant issues found. Good job!"}
	o := newTestOrchestrator(cfg, host, gw)

	o.Run(context.Background(), testEnvelope())

	if gw.calls != 0 {
		t.Error("expected diff processor to skip before reaching the LLM Gateway")
	}
	if host.commentCount != 1 {
		t.Errorf("expected a skip notice comment, got %d", host.commentCount)
	}
}

func TestRun_ManualTriggerIgnoresRecentDuplicate(t *testing.T) {
	host := &fakeHost{
		pr: &hostclient.PullRequest{Number: 42, HeadSHA: "headsha"},
		comments: []domain.Comment{
			{Body: domain.MarkerSummary + domain.TimestampMarker(time.Now().UnixMilli()), CreatedAt: time.Now().UnixMilli()},
		},
	}
	gw := &fakeCompleter{reply: "No significant issues found. Good job!"}
	o := newTestOrchestrator(testConfig(), host, gw)

	env := testEnvelope()
	env.EventKind = domain.EventMentionComment

	o.Run(context.Background(), env)

	if gw.calls != 1 {
		t.Errorf("expected manual trigger to proceed despite a recent duplicate, got %d calls", gw.calls)
	}
}

func TestRun_AutoTriggerSkipsOnRecentDuplicate(t *testing.T) {
	host := &fakeHost{
		pr: &hostclient.PullRequest{Number: 42, HeadSHA: "headsha"},
		comments: []domain.Comment{
			{Body: domain.MarkerSummary + domain.TimestampMarker(time.Now().UnixMilli()), CreatedAt: time.Now().UnixMilli()},
		},
	}
	gw := &fakeCompleter{reply: "No significant issues found. Good job!"}
	o := newTestOrchestrator(testConfig(), host, gw)

	o.Run(context.Background(), testEnvelope())

	if gw.calls != 0 {
		t.Errorf("expected auto trigger to skip on recent duplicate, got %d calls", gw.calls)
	}
}

func TestRun_ProviderFailureOverAllRetriesPublishesFailure(t *testing.T) {
	host := &fakeHost{pr: &hostclient.PullRequest{Number: 42, HeadSHA: "headsha"}}
	gw := &fakeCompleter{err: errors.New("401 unauthorized")}
	o := newTestOrchestrator(testConfig(), host, gw)

	o.Run(context.Background(), testEnvelope())

	if len(host.statuses) == 0 || host.statuses[len(host.statuses)-1] != hostclient.StatusError {
		t.Errorf("expected final status error, got %+v", host.statuses)
	}
}

func TestRun_FetchFailurePublishesFailureStatus(t *testing.T) {
	host := &fakeHost{getPRErr: errors.New("404 not found")}
	gw := &fakeCompleter{}
	o := newTestOrchestrator(testConfig(), host, gw)

	o.Run(context.Background(), testEnvelope())

	if len(host.statuses) == 0 || host.statuses[len(host.statuses)-1] != hostclient.StatusError {
		t.Errorf("expected final status error, got %+v", host.statuses)
	}
	if gw.calls != 0 {
		t.Error("expected no LLM call when the pull request fetch itself fails")
	}
}
