// Package orchestrator implements the Review Orchestrator (C10): the state
// machine that drives an admitted webhook envelope through admission, diff
// fetching and processing, the LLM Gateway, response parsing, and
// publishing, owning the job's deadline, cancellation, and per-(repo, pull)
// serialization.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/codecritics/codecritic/internal/admission"
	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/dedup"
	"github.com/codecritics/codecritic/internal/diffproc"
	"github.com/codecritics/codecritic/internal/domain"
	"github.com/codecritics/codecritic/internal/hostclient"
	"github.com/codecritics/codecritic/internal/llm"
	"github.com/codecritics/codecritic/internal/metrics"
	"github.com/codecritics/codecritic/internal/parser"
	"github.com/codecritics/codecritic/internal/promptlib"
	"github.com/codecritics/codecritic/internal/publisher"
	"github.com/codecritics/codecritic/internal/syncutil"
	"github.com/codecritics/codecritic/internal/types"
)

// timeFunc lets tests stamp deterministic timestamps on posted markers.
var timeFunc = func() time.Time { return time.Now() }

// completer is the narrow view of *llm.Gateway the Orchestrator depends on,
// so tests can substitute a fake without exercising a real provider.
type completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Orchestrator wires every component into the review pipeline's state
// machine and implements webhook.Runner.
type Orchestrator struct {
	host      hostclient.Client
	admission *admission.Controller
	fetcher   *diffproc.Fetcher
	processor *diffproc.Processor
	gateway   completer
	oracle    *dedup.Oracle
	publisher *publisher.Publisher
	locks     *syncutil.KeyLock
	deadline  time.Duration
}

func New(cfg *config.Config, host hostclient.Client, gateway *llm.Gateway, fetcher *diffproc.Fetcher, processor *diffproc.Processor) *Orchestrator {
	return &Orchestrator{
		host:      host,
		admission: admission.NewController(cfg),
		fetcher:   fetcher,
		processor: processor,
		gateway:   gateway,
		oracle:    dedup.NewOracle(host),
		publisher: publisher.NewPublisher(host, cfg),
		locks:     syncutil.NewKeyLock(),
		deadline:  time.Duration(cfg.Job.DeadlineSeconds) * time.Second,
	}
}

// Run drives one envelope through the full pipeline. It never returns an
// error to the caller: every terminal state is recorded via metrics and logs,
// per the Dispatcher's fire-and-forget contract.
func (o *Orchestrator) Run(_ context.Context, env domain.Envelope) {
	job := domain.NewJob(env.DeliveryID, env, o.deadline)
	defer job.Cancel()

	o.locks.Lock(job.Key())
	defer o.locks.Unlock(job.Key())

	start := time.Now()
	outcomeKind := o.run(job, env)
	metrics.ReviewJobs.WithLabelValues(string(outcomeKind)).Inc()
	metrics.ReviewDuration.WithLabelValues(string(outcomeKind)).Observe(time.Since(start).Seconds())
}

func (o *Orchestrator) run(job *domain.Job, env domain.Envelope) domain.OutcomeKind {
	ctx := job.Context()
	log := slog.With("job_id", job.ID, "repo", env.Repo.FullName, "pull_number", env.PullNumber, "trigger", job.Trigger)

	// Admitting
	job.State = domain.StateAdmitting
	switch o.admission.Admit(env.Repo, job.Trigger) {
	case admission.Disallowed:
		log.Debug("admission: repository not allow-listed")
		return domain.OutcomeSkipped
	case admission.RateLimited:
		log.Info("admission: rate limited")
		o.publisher.PublishSkipNotice(ctx, env.Repo, env.PullNumber, env.HeadSHA, domain.SkipRateLimited, timeFunc().UnixMilli())
		return domain.OutcomeSkipped
	}

	if job.Trigger == domain.TriggerAuto {
		dup, err := o.oracle.IsDuplicate(ctx, env.Repo.Owner, env.Repo.Name, env.PullNumber)
		if err != nil {
			log.Warn("dedup oracle check failed, proceeding with review", "error", types.Sanitize(err.Error()))
		} else if dup {
			log.Info("dedup: recent bot summary found, skipping")
			return domain.OutcomeSkipped
		}
	}

	o.publisher.SetPending(ctx, env.Repo, env.HeadSHA)
	job.State = domain.StateFetching

	// Fetching
	headSHA := env.HeadSHA
	pr, err := o.host.GetPullRequest(ctx, env.Repo.Owner, env.Repo.Name, env.PullNumber)
	if err != nil {
		return o.fail(ctx, log, env, job, headSHA, err)
	}
	if pr.HeadSHA != "" {
		headSHA = pr.HeadSHA
	}

	diff, err := o.fetcher.Fetch(ctx, env.Repo.Owner, env.Repo.Name, env.PullNumber, pr.BaseSHA, headSHA, env.DiffURL)
	if err != nil {
		return o.fail(ctx, log, env, job, headSHA, err)
	}

	// Processing
	job.State = domain.StateProcessing
	result := o.processor.Apply(diff)
	if result.Skipped {
		log.Info("diff processor skipped review", "reason", result.SkipReason)
		o.publisher.PublishSkipNotice(ctx, env.Repo, env.PullNumber, headSHA, result.SkipReason, timeFunc().UnixMilli())
		return domain.OutcomeSkipped
	}

	snapshot := domain.Snapshot{
		Number:  pr.Number,
		Title:   pr.Title,
		Body:    pr.Body,
		HeadSHA: headSHA,
		BaseSHA: pr.BaseSHA,
		Files:   pr.Files,
		Diff:    result.Diff,
	}

	// Prompting
	job.State = domain.StatePrompting
	userMsg, err := promptlib.RenderUserMessage(snapshot.Number, snapshot.Title, snapshot.Diff)
	if err != nil {
		return o.fail(ctx, log, env, job, headSHA, types.Internal("orchestrator.prompt", err))
	}
	reply, err := o.gateway.Complete(ctx, []llm.Message{
		{Role: "system", Content: promptlib.SystemPrompt},
		{Role: "user", Content: userMsg},
	})
	if err != nil {
		return o.fail(ctx, log, env, job, headSHA, err)
	}

	// Parsing
	job.State = domain.StateParsing
	findings := diffproc.ClampFindings(parser.Parse(reply), snapshot.Diff)
	if len(findings) == 0 {
		job.State = domain.StateReporting
		o.publisher.PublishNoIssues(ctx, env.Repo, env.PullNumber, headSHA, timeFunc().UnixMilli())
		return domain.OutcomeNoIssues
	}

	// Publishing
	job.State = domain.StatePublishing
	outcome := domain.WithFindings(findings)
	o.publisher.PublishFindings(ctx, env.Repo, env.PullNumber, headSHA, outcome, timeFunc().UnixMilli())
	job.State = domain.StateReporting
	return domain.OutcomeFindings
}

func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, env domain.Envelope, job *domain.Job, headSHA string, err error) domain.OutcomeKind {
	kind := types.KindOf(err)
	log.Error("review job failed", "state", job.State, "kind", kind, "error", types.Sanitize(err.Error()))
	job.State = domain.StateFailed
	o.publisher.PublishFailure(ctx, env.Repo, env.PullNumber, headSHA, kind)
	return domain.OutcomeFailed
}
