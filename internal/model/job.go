package model

import (
	"context"
	"time"
)

// JobPosting is the unified representation of one job opportunity extracted
// from an email. Created by the extractor and scorer; the pipeline only ever
// mutates Processed after a digest delivery.
type JobPosting struct {
	ID           string     // assigned on persist
	Title        string     // job title
	Company      string     // company name
	Location     string     // location string, may be empty
	Remote       bool       // remote-friendly role
	Description  string     // short description from the email
	Requirements []string   // ordered requirement bullets
	ApplyURL     string     // direct apply link
	Salary       string     // raw salary string, empty if absent
	PostedAt     *time.Time // nullable (not every alert carries a date)
	Source       string     // originating platform (linkedin, indeed, ...)
	Relevance    float64    // fit against the resume profile, in [0,1]
	EmailID      string     // message id the posting came from
	Processed    bool       // set true once delivered in a digest
	CreatedAt    time.Time  // our clock (set on persist)
}

// JobPostingDraft is what the extractor yields before scoring and persistence.
type JobPostingDraft struct {
	Title        string
	Company      string
	Location     string
	Remote       bool
	Description  string
	Requirements []string
	ApplyURL     string
	Salary       string
	PostedAt     *time.Time
	Source       string
}

// EmailMessage is one inbound message as seen by the pipeline.
type EmailMessage struct {
	ID      string
	Subject string
	From    string
	Body    string
}

// Preview returns at most n bytes of the body for classification calls.
func (m EmailMessage) Preview(n int) string {
	if len(m.Body) <= n {
		return m.Body
	}
	return m.Body[:n]
}

// Classification is the classifier's verdict for one message.
type Classification struct {
	EmailID      string
	IsJobRelated bool
	Confidence   float64
}

// Seniority buckets a resume profile into a coarse experience level.
type Seniority string

const (
	SeniorityEntry     Seniority = "entry"
	SeniorityMid       Seniority = "mid"
	SenioritySenior    Seniority = "senior"
	SeniorityStaff     Seniority = "staff"
	SeniorityExecutive Seniority = "executive"
)

// ResumeProfile is the analyzed summary of the operator's resume.
// At most one current profile is read per pipeline run.
type ResumeProfile struct {
	Skills         []string  // skill set, deduplicated
	Highlights     []string  // ordered experience highlights
	PreferredRoles []string  // role titles the operator targets
	Seniority      Seniority // coarse level
	AnalyzedAt     time.Time // when the analysis ran
}

// StaleAfter reports whether the profile is older than maxAge at now.
func (p ResumeProfile) StaleAfter(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.AnalyzedAt) > maxAge
}

// ProcessedEmailRecord is the idempotency ledger entry for one message.
// Its existence is the single source of truth for "do not reprocess".
type ProcessedEmailRecord struct {
	EmailID     string // message id, unique key
	JobsFound   int    // postings extracted from the message
	Archived    bool   // whether the archive side effect succeeded
	ProcessedAt time.Time
}

// EmailSource lists recent messages and applies read/archive side effects.
type EmailSource interface {
	ListRecent(ctx context.Context) ([]EmailMessage, error)
	MarkRead(ctx context.Context, id string) error
	MarkReadAndArchive(ctx context.Context, id string) error
}

// Classifier batch-labels messages as job-related or not, with confidence.
type Classifier interface {
	ClassifyBatch(ctx context.Context, msgs []EmailMessage) ([]Classification, error)
}

// Extractor turns one email into zero or more job posting drafts.
type Extractor interface {
	ExtractJobs(ctx context.Context, msg EmailMessage) ([]JobPostingDraft, error)
}

// RelevanceScorer scores a draft posting against a resume profile.
type RelevanceScorer interface {
	Score(ctx context.Context, draft JobPostingDraft, profile ResumeProfile) (float64, error)
}

// ResumeSource analyzes the raw resume document into a profile.
type ResumeSource interface {
	Analyze(ctx context.Context) (ResumeProfile, error)
}

// ProgressHandle identifies an editable progress message at the transport.
type ProgressHandle string

// Notifier delivers digests, status, errors, and editable progress messages.
type Notifier interface {
	SendDigest(ctx context.Context, postings []JobPosting) error
	SendStatus(ctx context.Context, text string) error
	SendError(ctx context.Context, text string) error
	CreateProgressMessage(ctx context.Context, text string) (ProgressHandle, error)
	UpdateProgressMessage(ctx context.Context, handle ProgressHandle, text string) error
}

// SourceStat is one row of the per-platform posting breakdown.
type SourceStat struct {
	Source string
	Count  int
}

// JobStore persists postings and answers the relevance queries the pipeline
// and the daily summary need.
type JobStore interface {
	Insert(ctx context.Context, posting *JobPosting) error
	MarkProcessed(ctx context.Context, id string) error
	RelevantSince(ctx context.Context, minRelevance float64, since time.Time) ([]JobPosting, error)
	CreatedBetween(ctx context.Context, from, to time.Time) ([]JobPosting, error)
	SourceStats(ctx context.Context, from, to time.Time, topN int) ([]SourceStat, error)
}

// ProcessedEmailLedger is the idempotency store keyed by message id.
// Record must be durably written before any archival side effect;
// MarkArchived only ever upgrades an existing record.
type ProcessedEmailLedger interface {
	Exists(ctx context.Context, emailID string) (bool, error)
	Record(ctx context.Context, rec ProcessedEmailRecord) error
	MarkArchived(ctx context.Context, emailID string) error
	Prune(ctx context.Context, olderThan time.Duration) error
}

// ProfileStore persists the single current resume profile.
type ProfileStore interface {
	Latest(ctx context.Context) (*ResumeProfile, error)
	Save(ctx context.Context, profile ResumeProfile) error
}
