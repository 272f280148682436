package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
	JobPartial   = "partial"
)

type Job struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	FeedURI          string            `json:"feed_uri"`
	Status           string            `json:"status"`
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

// Terminal reports whether the job will not change again.
func (j *Job) Terminal() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed || j.Status == JobPartial
}

// JobRequest starts a job over FeedURI, or retries RetryOf from its
// committed offset.
type JobRequest struct {
	FeedURI   string `json:"feed_uri"`
	RetryOf   string `json:"retry_of,omitempty"`
	Requester string `json:"requester,omitempty"`
	Wait      bool   `json:"wait,omitempty"`
}

type IngestionClient struct {
	client *Client
}

// Submit queues a job and returns it in pending state.
func (c *IngestionClient) Submit(ctx context.Context, req JobRequest) (*Job, error) {
	req.Wait = false
	return c.create(ctx, req)
}

// Run blocks server-side until the job finishes. Long feeds should use
// Submit and Wait instead.
func (c *IngestionClient) Run(ctx context.Context, req JobRequest) (*Job, error) {
	req.Wait = true
	return c.create(ctx, req)
}

func (c *IngestionClient) create(ctx context.Context, req JobRequest) (*Job, error) {
	var out Job
	if err := c.client.post(ctx, "/api/v1/ingestion/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *IngestionClient) Get(ctx context.Context, jobID string) (*Job, error) {
	var out Job
	if err := c.client.get(ctx, "/api/v1/ingestion/jobs/"+url.PathEscape(jobID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *IngestionClient) List(ctx context.Context, limit int) ([]Job, error) {
	path := "/api/v1/ingestion/jobs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

func (c *IngestionClient) Cancel(ctx context.Context, jobID string) error {
	return c.client.post(ctx, "/api/v1/ingestion/jobs/"+url.PathEscape(jobID)+"/cancel", nil, nil)
}

// Wait polls Get every interval until the job is terminal or ctx ends.
func (c *IngestionClient) Wait(ctx context.Context, jobID string, interval time.Duration) (*Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		job, err := c.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-t.C:
		}
	}
}

// DeleteCase removes a case and its outbound edges from every store.
func (c *IngestionClient) DeleteCase(ctx context.Context, caseID string) error {
	return c.client.delete(ctx, "/api/v1/cases/"+url.PathEscape(caseID))
}

//Personal.AI order the ending
