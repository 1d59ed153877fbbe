// Package pipeline drives the email -> classify -> extract -> score ->
// persist -> notify runs.
//
// Failure handling follows three boundaries. An error before the per-email
// loop (mailbox or classifier outage) aborts the run and surfaces to the
// queue's retry machinery. An error inside the loop is contained to its
// email: the message is forced to "processed, zero postings", one error
// notification goes out, and the loop continues. Degraded writes that lose
// nothing durable (profile cache, archive call, notification sends) are
// logged and absorbed.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/amishk599/jobsift/internal/metrics"
	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/profile"
	"github.com/amishk599/jobsift/internal/ratelimit"
	"github.com/amishk599/jobsift/internal/scheduler"
)

// throttleKey spaces the courtesy pauses between posting persists.
const throttleKey = "posting"

// ProgressFunc receives coarse checkpoint updates (percent, short status).
// It must tolerate being called from the middle of a run; errors are the
// callback's problem, not the pipeline's.
type ProgressFunc func(percent int, step string)

// Config carries the tunable pipeline policy. The thresholds are
// deliberately injected, never literal.
type Config struct {
	ClassifyConfidence float64       // minimum confidence for a job-related verdict to count
	MinRelevance       float64       // postings below this never join the digest
	ClassifyBatchSize  int           // messages per classifier call
	PostingDelay       time.Duration // courtesy pause between posting persists

	SummaryRelevance  float64 // daily summary minimum relevance
	SummaryTopSources int     // daily summary source breakdown size

	ScanWindow scheduler.Window // for the "next run" hint
	Location   *time.Location
}

// Orchestrator owns one end-to-end run at a time. All collaborators are
// injected; the orchestrator holds no ambient state beyond them.
type Orchestrator struct {
	config     Config
	source     model.EmailSource
	classifier model.Classifier
	extractor  model.Extractor
	scorer     model.RelevanceScorer
	profiles   *profile.Cache
	jobs       model.JobStore
	ledger     model.ProcessedEmailLedger
	notifier   model.Notifier
	throttle   *ratelimit.Limiter
	sink       metrics.Sink
	logger     *slog.Logger
	clock      func() time.Time
}

// New wires an orchestrator with all its dependencies.
func New(
	config Config,
	source model.EmailSource,
	classifier model.Classifier,
	extractor model.Extractor,
	scorer model.RelevanceScorer,
	profiles *profile.Cache,
	jobs model.JobStore,
	ledger model.ProcessedEmailLedger,
	notifier model.Notifier,
	sink metrics.Sink,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:     config,
		source:     source,
		classifier: classifier,
		extractor:  extractor,
		scorer:     scorer,
		profiles:   profiles,
		jobs:       jobs,
		ledger:     ledger,
		notifier:   notifier,
		throttle:   ratelimit.New(config.PostingDelay),
		sink:       sink,
		logger:     logger,
		clock:      time.Now,
	}
}

// scanTotals accumulates the run's final report.
type scanTotals struct {
	fetched   int
	qualified int
	skipped   int
	processed int
	failed    int
	extracted int
	relevant  int
}

// RunAlertScan executes one alert-scan run. A returned error is a RunFailure:
// nothing inside the per-email loop escalates here.
func (o *Orchestrator) RunAlertScan(ctx context.Context, progress ProgressFunc) error {
	started := o.clock()
	progress(5, "starting scan")

	prof, err := o.profiles.Current(ctx)
	if err != nil {
		return fmt.Errorf("resume check: %w", err)
	}
	progress(10, "resume profile ready")

	msgs, err := o.source.ListRecent(ctx)
	if err != nil {
		return fmt.Errorf("fetching emails: %w", err)
	}
	o.logger.Info("emails fetched", "count", len(msgs))
	progress(20, fmt.Sprintf("classifying %d emails", len(msgs)))

	verdicts, err := o.classifyAll(ctx, msgs)
	if err != nil {
		return fmt.Errorf("classifying emails: %w", err)
	}

	totals := scanTotals{fetched: len(msgs)}
	qualified := o.filterQualified(msgs, verdicts)
	totals.qualified = len(qualified)
	progress(30, fmt.Sprintf("processing %d job-related emails", len(qualified)))

	// Per-email loop, arrival order. Everything in here is isolated to its
	// message.
	var digest []model.JobPosting
	for i, msg := range qualified {
		seen, err := o.ledger.Exists(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("ledger check for %s: %w", msg.ID, err)
		}
		if seen {
			totals.skipped++
			o.sink.EmailProcessed("skipped")
			continue
		}

		kept, extracted, emailErr := o.processEmail(ctx, msg, prof)
		if emailErr != nil {
			o.containEmailFailure(ctx, msg, emailErr)
			totals.failed++
			continue
		}

		digest = append(digest, kept...)
		totals.processed++
		totals.extracted += extracted
		totals.relevant += len(kept)
		o.sink.EmailProcessed("processed")

		// Coarse checkpoints only; per-email progress would thrash the
		// progress message and the lease writes.
		if len(qualified) > 0 && (i+1)%5 == 0 {
			pct := 30 + 50*(i+1)/len(qualified)
			progress(pct, fmt.Sprintf("processed %d/%d emails", i+1, len(qualified)))
		}
	}

	o.sink.PostingsExtracted(totals.extracted)
	o.sink.PostingsRelevant(totals.relevant)
	progress(85, "sending digest")

	o.deliverDigest(ctx, digest)

	progress(95, "finishing")
	o.sendCompletion(ctx, totals)
	progress(100, "done")

	o.logger.Info("alert scan complete",
		"fetched", totals.fetched,
		"qualified", totals.qualified,
		"processed", totals.processed,
		"skipped", totals.skipped,
		"failed", totals.failed,
		"extracted", totals.extracted,
		"relevant", totals.relevant,
		"duration", o.clock().Sub(started).String(),
	)
	return nil
}

// classifyAll batches classifier calls at the configured chunk size.
func (o *Orchestrator) classifyAll(ctx context.Context, msgs []model.EmailMessage) (map[string]model.Classification, error) {
	verdicts := make(map[string]model.Classification, len(msgs))
	size := o.config.ClassifyBatchSize
	for start := 0; start < len(msgs); start += size {
		end := start + size
		if end > len(msgs) {
			end = len(msgs)
		}
		batch, err := o.classifier.ClassifyBatch(ctx, msgs[start:end])
		if err != nil {
			return nil, err
		}
		for _, v := range batch {
			verdicts[v.EmailID] = v
		}
	}
	return verdicts, nil
}

// filterQualified keeps messages classified job-related with enough
// confidence, preserving arrival order. Sub-threshold mail is never
// extracted.
func (o *Orchestrator) filterQualified(msgs []model.EmailMessage, verdicts map[string]model.Classification) []model.EmailMessage {
	var qualified []model.EmailMessage
	for _, m := range msgs {
		v, ok := verdicts[m.ID]
		if ok && v.IsJobRelated && v.Confidence >= o.config.ClassifyConfidence {
			qualified = append(qualified, m)
		}
	}
	return qualified
}

// processEmail runs extract -> score -> persist -> finalize for one message.
// Returned postings met the relevance threshold. A non-nil error means the
// caller must force the zero-posting record.
func (o *Orchestrator) processEmail(ctx context.Context, msg model.EmailMessage, prof model.ResumeProfile) (kept []model.JobPosting, extracted int, err error) {
	// A panicking collaborator counts as a per-email failure, not a run
	// failure.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing email %s: %v", msg.ID, r)
		}
	}()

	drafts, err := o.extractor.ExtractJobs(ctx, msg)
	if err != nil {
		return nil, 0, fmt.Errorf("extracting from %s: %w", msg.ID, err)
	}

	if len(drafts) == 0 {
		// Job-related but no concrete posting. Record it, mark read, and
		// leave it in the inbox: such mail may still carry value.
		if err := o.ledger.Record(ctx, model.ProcessedEmailRecord{EmailID: msg.ID}); err != nil {
			return nil, 0, fmt.Errorf("recording %s: %w", msg.ID, err)
		}
		if err := o.source.MarkRead(ctx, msg.ID); err != nil {
			o.logger.Warn("mark read failed", "email_id", msg.ID, "error", err)
		}
		return nil, 0, nil
	}

	for _, draft := range drafts {
		score, err := o.scorer.Score(ctx, draft, prof)
		if err != nil {
			return nil, 0, fmt.Errorf("scoring %q from %s: %w", draft.Title, msg.ID, err)
		}

		posting := draftToPosting(draft, msg.ID, score)
		if err := o.jobs.Insert(ctx, &posting); err != nil {
			return nil, 0, fmt.Errorf("persisting %q from %s: %w", draft.Title, msg.ID, err)
		}
		if score >= o.config.MinRelevance {
			kept = append(kept, posting)
		}

		// Courtesy pause between postings; dependent systems set the pace,
		// not correctness.
		if err := o.throttle.Wait(ctx, throttleKey); err != nil {
			return nil, 0, err
		}
	}

	// The ledger write is the durability boundary: it lands before the
	// archive call and is never rolled back if archiving fails.
	rec := model.ProcessedEmailRecord{EmailID: msg.ID, JobsFound: len(drafts)}
	if err := o.ledger.Record(ctx, rec); err != nil {
		return nil, 0, fmt.Errorf("recording %s: %w", msg.ID, err)
	}

	if err := o.source.MarkReadAndArchive(ctx, msg.ID); err != nil {
		o.logger.Warn("archive failed, record kept", "email_id", msg.ID, "error", err)
	} else if err := o.ledger.MarkArchived(ctx, msg.ID); err != nil {
		o.logger.Warn("archived flag update failed", "email_id", msg.ID, "error", err)
	}

	return kept, len(drafts), nil
}

// containEmailFailure is the per-email boundary: force "processed, zero
// postings", send one error alert, and move on.
func (o *Orchestrator) containEmailFailure(ctx context.Context, msg model.EmailMessage, emailErr error) {
	o.logger.Error("email processing failed", "email_id", msg.ID, "error", emailErr)
	o.sink.EmailProcessed("failed")

	if err := o.ledger.Record(ctx, model.ProcessedEmailRecord{EmailID: msg.ID}); err != nil {
		o.logger.Error("failure record write failed", "email_id", msg.ID, "error", err)
	}

	text := fmt.Sprintf("email %s (%q) failed: %v", msg.ID, msg.Subject, emailErr)
	if err := o.notifier.SendError(ctx, text); err != nil {
		o.logger.Error("error notification failed", "email_id", msg.ID, "error", err)
	}
}

// deliverDigest sends the accumulated postings and flags delivered ones
// processed. Notification failure degrades: the store stays authoritative
// and nothing is retried mid-run.
func (o *Orchestrator) deliverDigest(ctx context.Context, digest []model.JobPosting) {
	if len(digest) == 0 {
		return
	}

	sort.SliceStable(digest, func(i, j int) bool {
		return digest[i].Relevance > digest[j].Relevance
	})

	if err := o.notifier.SendDigest(ctx, digest); err != nil {
		o.logger.Error("digest delivery failed", "postings", len(digest), "error", err)
		o.sink.NotificationSent(false)
		return
	}
	o.sink.NotificationSent(true)

	for _, p := range digest {
		if err := o.jobs.MarkProcessed(ctx, p.ID); err != nil {
			o.logger.Warn("processed flag update failed", "job_id", p.ID, "error", err)
		}
	}
}

// sendCompletion reports totals plus a human-readable next-run hint.
func (o *Orchestrator) sendCompletion(ctx context.Context, totals scanTotals) {
	next := scheduler.NextScanTime(o.clock(), o.config.ScanWindow, o.config.Location)
	text := fmt.Sprintf(
		"scan done: %d emails, %d job-related, %d postings (%d worth a look). Next scan around %s.",
		totals.fetched, totals.qualified, totals.extracted, totals.relevant,
		next.Format("15:04 MST"),
	)
	if err := o.notifier.SendStatus(ctx, text); err != nil {
		o.logger.Warn("completion message failed", "error", err)
	}
}

func draftToPosting(d model.JobPostingDraft, emailID string, score float64) model.JobPosting {
	return model.JobPosting{
		Title:        d.Title,
		Company:      d.Company,
		Location:     d.Location,
		Remote:       d.Remote,
		Description:  d.Description,
		Requirements: d.Requirements,
		ApplyURL:     d.ApplyURL,
		Salary:       d.Salary,
		PostedAt:     d.PostedAt,
		Source:       d.Source,
		Relevance:    score,
		EmailID:      emailID,
	}
}
