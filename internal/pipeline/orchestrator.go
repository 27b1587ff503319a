package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/leadsync/internal/model"
)

// DefaultThreshold is the unapplied backlog size that triggers a notification.
const DefaultThreshold = 10

// RunLock guards a sync run against concurrent runs.
type RunLock interface {
	// Acquire returns model.ErrRunInProgress if another run holds the lock.
	Acquire(ctx context.Context) (release func(), err error)
}

// RunObserver is told about every run that completed.
type RunObserver interface {
	RunFinished(summary model.RunSummary)
}

// Options tunes an Orchestrator. The zero value gives the sequential baseline
// with the default threshold.
type Options struct {
	Threshold int         // notify when unapplied >= Threshold; <= 0 means DefaultThreshold
	Workers   int         // concurrent classifier calls; <= 1 means sequential
	Lock      RunLock     // optional
	Observer  RunObserver // optional
	Now       func() time.Time
}

// Orchestrator owns one end-to-end sync run:
// fetch → dedup → classify → persist → threshold check → notify.
type Orchestrator struct {
	source     model.PostingSource
	classifier model.Classifier
	repo       model.Repository
	notifier   model.Notifier
	threshold  int
	workers    int
	lock       RunLock
	observer   RunObserver
	now        func() time.Time
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator wired with all its collaborators.
func NewOrchestrator(
	source model.PostingSource,
	classifier model.Classifier,
	repo model.Repository,
	notifier model.Notifier,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		source:     source,
		classifier: classifier,
		repo:       repo,
		notifier:   notifier,
		threshold:  opts.Threshold,
		workers:    opts.Workers,
		lock:       opts.Lock,
		observer:   opts.Observer,
		now:        opts.Now,
		logger:     logger,
	}
}

// Threshold returns the backlog size that triggers a notification.
func (o *Orchestrator) Threshold() int { return o.threshold }

// Run executes one sync run. Only a source failure (or a held run lock) fails
// the run before any work is done. If ctx is cancelled mid-batch the remaining
// postings are skipped, completed inserts stand, and the partial summary is
// returned together with the context error.
func (o *Orchestrator) Run(ctx context.Context) (model.RunSummary, error) {
	if o.lock != nil {
		release, err := o.lock.Acquire(ctx)
		if err != nil {
			return model.RunSummary{}, err
		}
		defer release()
	}

	start := o.now()
	postings, err := o.source.FetchPostings(ctx)
	if err != nil {
		if errors.Is(err, model.ErrSourceUnavailable) {
			return model.RunSummary{}, fmt.Errorf("fetching postings: %w", err)
		}
		return model.RunSummary{}, fmt.Errorf("fetching postings: %w: %w", model.ErrSourceUnavailable, err)
	}

	summary := model.RunSummary{
		Fetched:   len(postings),
		Unapplied: -1,
		StartedAt: start,
	}

	if o.workers > 1 {
		err = o.processConcurrent(ctx, postings, &summary)
	} else {
		err = o.processSequential(ctx, postings, &summary)
	}
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("sync run interrupted: %w", ctx.Err())
	}
	if err != nil {
		summary.Duration = o.now().Sub(start)
		o.logger.Warn("sync run interrupted",
			"processed_new", summary.NewJobsAdded,
			"fetched", summary.Fetched,
			"error", err,
		)
		return summary, err
	}

	o.checkBacklog(ctx, &summary)
	summary.Duration = o.now().Sub(start)

	o.logger.Info("sync run complete",
		"fetched", summary.Fetched,
		"new", summary.NewJobsAdded,
		"duplicates", summary.Duplicates,
		"ineligible", summary.Ineligible,
		"classifier_failures", summary.ClassifierFailures,
		"insert_failures", summary.InsertFailures,
		"unapplied", summary.Unapplied,
		"notified", summary.Notified,
		"notify_failed", summary.NotifyFailed,
		"duration", summary.Duration,
	)

	if o.observer != nil {
		o.observer.RunFinished(summary)
	}
	return summary, nil
}

func (o *Orchestrator) processSequential(ctx context.Context, postings []model.RawPosting, summary *model.RunSummary) error {
	for _, p := range postings {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync run interrupted: %w", err)
		}
		if o.alreadyStored(ctx, p.Link) {
			summary.Duplicates++
			continue
		}
		verdict, err := o.classifier.Classify(ctx, p.CompanyName, p.JobTitle, p.Description)
		o.persist(ctx, p, verdict, err, summary)
	}
	return nil
}

// processConcurrent checks existence in source order, classifies the remaining
// postings on a bounded worker pool, then inserts serially in source order.
// Repeated links inside the batch are collapsed to their first occurrence.
func (o *Orchestrator) processConcurrent(ctx context.Context, postings []model.RawPosting, summary *model.RunSummary) error {
	seen := make(map[string]struct{}, len(postings))
	var pending []model.RawPosting
	for _, p := range postings {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync run interrupted: %w", err)
		}
		if _, dup := seen[p.Link]; dup {
			summary.Duplicates++
			continue
		}
		seen[p.Link] = struct{}{}
		if o.alreadyStored(ctx, p.Link) {
			summary.Duplicates++
			continue
		}
		pending = append(pending, p)
	}

	verdicts := make([]model.EligibilityVerdict, len(pending))
	errs := make([]error, len(pending))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, p := range pending {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			verdicts[i], errs[i] = o.classifier.Classify(ctx, p.CompanyName, p.JobTitle, p.Description)
			return nil
		})
	}
	_ = g.Wait()

	for i, p := range pending {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync run interrupted: %w", err)
		}
		o.persist(ctx, p, verdicts[i], errs[i], summary)
	}
	return nil
}

// alreadyStored reports whether the link is known. A read failure counts as
// "not stored" and the insert's unique constraint decides.
func (o *Orchestrator) alreadyStored(ctx context.Context, link string) bool {
	exists, err := o.repo.Exists(ctx, link)
	if err != nil {
		o.logger.Warn("existence check failed, treating as new", "link", link, "error", err)
		return false
	}
	if exists {
		o.logger.Debug("posting already stored", "link", link)
	}
	return exists
}

// persist folds a classification outcome into the summary and inserts the
// posting when it is eligible. Classifier errors count as ineligible.
func (o *Orchestrator) persist(ctx context.Context, p model.RawPosting, verdict model.EligibilityVerdict, classifyErr error, summary *model.RunSummary) {
	if classifyErr != nil {
		summary.ClassifierFailures++
		o.logger.Warn("classification failed, treating as not eligible",
			"company", p.CompanyName,
			"title", p.JobTitle,
			"link", p.Link,
			"error", classifyErr,
		)
		return
	}
	if !verdict.Eligible {
		summary.Ineligible++
		o.logger.Debug("posting not eligible",
			"company", p.CompanyName,
			"title", p.JobTitle,
			"reasoning", verdict.Reasoning,
		)
		return
	}

	if err := o.repo.Insert(ctx, model.NewStoredPosting(p, verdict)); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			summary.Duplicates++
		} else {
			summary.InsertFailures++
		}
		o.logger.Error("inserting posting failed", "link", p.Link, "error", err)
		return
	}

	summary.NewJobsAdded++
	o.logger.Info("new posting stored",
		"company", p.CompanyName,
		"title", p.JobTitle,
		"category", verdict.Category,
	)
}

// checkBacklog counts unapplied postings and fires the notifier once when the
// count reaches the threshold. No memory of earlier notifications is kept.
func (o *Orchestrator) checkBacklog(ctx context.Context, summary *model.RunSummary) {
	count, err := o.repo.CountUnapplied(ctx)
	if err != nil {
		o.logger.Error("counting unapplied postings failed, skipping notification", "error", err)
		return
	}
	summary.Unapplied = count

	if count < o.threshold {
		o.logger.Debug("backlog below threshold", "unapplied", count, "threshold", o.threshold)
		return
	}

	if err := o.notifier.Notify(ctx, count); err != nil {
		summary.NotifyFailed = true
		o.logger.Error("backlog notification failed", "unapplied", count, "error", err)
		return
	}
	summary.Notified = true
	o.logger.Info("backlog notification sent", "unapplied", count, "threshold", o.threshold)
}
