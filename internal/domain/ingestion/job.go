// Package ingestion models bulk ingestion jobs and the feed records they
// consume.
package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sagerock/ai-law-research/pkg/errors"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusPartial   Status = "partial"
)

// IsTerminal reports succeeded, failed or partial.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusPartial
}

// allowedTransitions encodes the monotonic lifecycle. Terminal states have no
// successors; a retry is a new job that resumes from the old offset.
var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusSucceeded, StatusFailed, StatusPartial},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PredecessorsOf lists the states from which to may be entered.
func PredecessorsOf(to Status) []Status {
	var out []Status
	for from, tos := range allowedTransitions {
		for _, s := range tos {
			if s == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// JobType distinguishes feed kinds.
type JobType string

const (
	JobTypeBulkCases JobType = "bulk_cases"
)

// Job tracks one batch run.
type Job struct {
	ID               string            `json:"id"`
	Type             JobType           `json:"type"`
	FeedURI          string            `json:"feed_uri"`
	Status           Status            `json:"status"`
	RecordsProcessed int64             `json:"records_processed"`
	RecordsSkipped   int64             `json:"records_skipped"`
	ErrorCount       int64             `json:"error_count"`
	EdgesWritten     int64             `json:"edges_written"`
	CommittedOffset  int64             `json:"committed_offset"`
	ResumeFrom       int64             `json:"resume_from"`
	ParentJobID      string            `json:"parent_job_id,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	FinishedAt       *time.Time        `json:"finished_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewJob returns a pending job for feedURI.
func NewJob(feedURI string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New().String(),
		Type:      JobTypeBulkCases,
		FeedURI:   feedURI,
		Status:    StatusPending,
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewRetryJob returns a pending job that resumes parent's feed from its last
// committed offset.
func NewRetryJob(parent *Job) *Job {
	j := NewJob(parent.FeedURI)
	j.ParentJobID = parent.ID
	j.ResumeFrom = parent.CommittedOffset
	j.CommittedOffset = parent.CommittedOffset
	return j
}

// TransitionTo moves the job to next, stamping start and finish times.
func (j *Job) TransitionTo(next Status) error {
	if !CanTransition(j.Status, next) {
		return errors.New(errors.ErrCodeInvalidJobTransition, "invalid job status transition").
			WithDetail(string(j.Status) + " -> " + string(next))
	}
	now := time.Now().UTC()
	j.Status = next
	j.UpdatedAt = now
	if next == StatusRunning {
		j.StartedAt = &now
	}
	if next.IsTerminal() {
		j.FinishedAt = &now
	}
	return nil
}

// FinalStatus derives the terminal status of a run whose feed was read to the
// end: partial when some records failed and at least one succeeded.
func FinalStatus(succeeded, failed int64) Status {
	switch {
	case failed == 0:
		return StatusSucceeded
	case succeeded > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// Progress is an incremental counter update. Offsets only move forward.
type Progress struct {
	RecordsProcessed int64
	RecordsSkipped   int64
	ErrorCount       int64
	EdgesWritten     int64
	CommittedOffset  int64
	LastError        string
}

// Apply folds p into the job. CommittedOffset never regresses.
func (j *Job) Apply(p Progress) {
	j.RecordsProcessed = p.RecordsProcessed
	j.RecordsSkipped = p.RecordsSkipped
	j.ErrorCount = p.ErrorCount
	j.EdgesWritten = p.EdgesWritten
	if p.CommittedOffset > j.CommittedOffset {
		j.CommittedOffset = p.CommittedOffset
	}
	if p.LastError != "" {
		j.LastError = p.LastError
	}
	j.UpdatedAt = time.Now().UTC()
}

// JobRepository persists jobs. Implementations must reject status writes that
// violate CanTransition.
type JobRepository interface {
	CreateJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	SaveProgress(ctx context.Context, id string, p Progress) error

	// UpdateStatus persists j's status and timestamps provided the stored
	// status is a legal predecessor.
	UpdateStatus(ctx context.Context, j *Job) error

	ListJobs(ctx context.Context, limit int) ([]*Job, error)
}

// Lease is an exclusive hold on a feed. Release is idempotent.
type Lease interface {
	Extend(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// LeaseManager grants feed leases so two workers never run the same feed.
// TryAcquire fails with ErrCodeJobLeaseHeld while another holder owns name.
type LeaseManager interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

//Personal.AI order the ending
