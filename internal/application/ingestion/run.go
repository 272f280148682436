package ingestion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	ingestdomain "github.com/sagerock/ai-law-research/internal/domain/ingestion"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Progress tracking
// ─────────────────────────────────────────────────────────────────────────────

// offsetTracker turns out-of-order completions into a committed offset: the
// first offset not yet known to be done.
type offsetTracker struct {
	mu   sync.Mutex
	next int64
	done map[int64]struct{}
}

func newOffsetTracker(from int64) *offsetTracker {
	return &offsetTracker{next: from, done: make(map[int64]struct{})}
}

func (t *offsetTracker) complete(off int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case off == t.next:
		t.next++
		for {
			if _, ok := t.done[t.next]; !ok {
				break
			}
			delete(t.done, t.next)
			t.next++
		}
	case off > t.next:
		t.done[off] = struct{}{}
	}
	return t.next
}

func (t *offsetTracker) committed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

// jobRun is the mutable state of one executing job.
type jobRun struct {
	job     *ingestdomain.Job
	lease   ingestdomain.Lease
	log     logging.Logger
	offsets *offsetTracker

	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	edges     atomic.Int64
	completed atomic.Int64

	mu        sync.Mutex
	keys      map[string]struct{}
	lastError string
}

func newJobRun(job *ingestdomain.Job, lease ingestdomain.Lease, log logging.Logger) *jobRun {
	r := &jobRun{
		job:     job,
		lease:   lease,
		log:     log,
		offsets: newOffsetTracker(job.ResumeFrom),
		keys:    make(map[string]struct{}),
	}
	r.processed.Store(job.RecordsProcessed)
	r.skipped.Store(job.RecordsSkipped)
	r.failed.Store(job.ErrorCount)
	r.edges.Store(job.EdgesWritten)
	return r
}

func (r *jobRun) addKeys(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.keys[k] = struct{}{}
	}
}

func (r *jobRun) keyList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.keys))
	for k := range r.keys {
		out = append(out, k)
	}
	return out
}

func (r *jobRun) fail(err error) {
	r.failed.Add(1)
	r.mu.Lock()
	r.lastError = err.Error()
	r.mu.Unlock()
}

func (r *jobRun) progress() ingestdomain.Progress {
	r.mu.Lock()
	last := r.lastError
	r.mu.Unlock()
	return ingestdomain.Progress{
		RecordsProcessed: r.processed.Load(),
		RecordsSkipped:   r.skipped.Load(),
		ErrorCount:       r.failed.Load(),
		EdgesWritten:     r.edges.Load(),
		CommittedOffset:  r.offsets.committed(),
		LastError:        last,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Job execution
// ─────────────────────────────────────────────────────────────────────────────

func (c *Coordinator) run(ctx context.Context, job *ingestdomain.Job, lease ingestdomain.Lease) *ingestdomain.Job {
	start := time.Now()
	log := c.logger.With(logging.JobID(job.ID), logging.String("feed", job.FeedURI))
	if lease != nil {
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Lease release failed", logging.Err(err))
			}
		}()
	}

	jctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.running[job.ID] = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.running, job.ID)
		c.mu.Unlock()
	}()

	if err := job.TransitionTo(ingestdomain.StatusRunning); err != nil {
		log.Error("Job cannot start", logging.Err(err))
		return job
	}
	if err := c.jobs.UpdateStatus(jctx, job); err != nil {
		log.Error("Failed to mark job running", logging.Err(err))
	}
	log.Info("Ingestion job started", logging.Int("workers", c.cfg.Workers))

	if err := c.citator.RebuildIndex(jctx); err != nil {
		log.Warn("Resolver index rebuild failed; resolving against the previous snapshot", logging.Err(err))
	}

	r := newJobRun(job, lease, log)
	feedErr := c.consume(jctx, r)

	status := ingestdomain.FinalStatus(r.processed.Load()+r.skipped.Load(), r.failed.Load())
	switch {
	case jctx.Err() != nil:
		status = ingestdomain.StatusFailed
		r.mu.Lock()
		r.lastError = "job cancelled"
		r.mu.Unlock()
		log.Warn("Ingestion job cancelled", logging.Int64("committed_offset", r.offsets.committed()))
	case feedErr != nil:
		status = ingestdomain.StatusFailed
		ferr := errors.FeedFailure(feedErr, job.FeedURI)
		r.mu.Lock()
		r.lastError = ferr.Error()
		r.mu.Unlock()
		log.Error("Feed failure", logging.Err(ferr), logging.Int64("committed_offset", r.offsets.committed()))
	}

	// Post-job work must run even when the job itself was cancelled.
	final := context.WithoutCancel(ctx)
	if r.processed.Load() > job.RecordsProcessed {
		c.reconcile(final, r)
		c.purgeCache(final)
	}

	p := r.progress()
	job.Apply(p)
	if err := c.jobs.SaveProgress(final, job.ID, p); err != nil {
		log.Error("Failed to save final progress", logging.Err(err))
	}
	if err := job.TransitionTo(status); err != nil {
		log.Error("Invalid final transition", logging.Err(err))
	} else if err := c.jobs.UpdateStatus(final, job); err != nil {
		log.Error("Failed to record final status", logging.Err(err))
	}

	c.metrics.RecordJob(string(status), time.Since(start))
	c.metrics.IngestCommitted.WithLabelValues(job.ID).Set(float64(p.CommittedOffset))
	log.Info("Ingestion job finished",
		logging.String("status", string(status)),
		logging.Int64("processed", p.RecordsProcessed),
		logging.Int64("skipped", p.RecordsSkipped),
		logging.Int64("errors", p.ErrorCount),
		logging.Int64("edges", p.EdgesWritten),
		logging.Int64("committed_offset", p.CommittedOffset),
		logging.Duration("elapsed", time.Since(start)))
	return job
}

// consume streams the feed through the worker pool. It returns the feed
// error, if any; per-record errors are counted, never returned.
func (c *Coordinator) consume(ctx context.Context, r *jobRun) error {
	rc, err := c.feeds.Open(ctx, r.job.FeedURI)
	if err != nil {
		return err
	}
	defer rc.Close()

	items := make(chan ingestdomain.FeedItem, c.cfg.QueueSize)
	var streamErr error
	var g errgroup.Group
	g.Go(func() error {
		streamErr = ingestdomain.Stream(ctx, rc, r.job.ResumeFrom, items)
		return nil
	})
	for i := 0; i < c.cfg.Workers; i++ {
		g.Go(func() error {
			for item := range items {
				if ctx.Err() != nil {
					continue
				}
				c.handle(ctx, r, item)
			}
			return nil
		})
	}
	_ = g.Wait()
	if streamErr != nil && ctx.Err() != nil {
		return nil
	}
	return streamErr
}

// handle processes one item and advances the committed offset. An item
// interrupted by cancellation is left uncommitted so a retry redoes it.
func (c *Coordinator) handle(ctx context.Context, r *jobRun, item ingestdomain.FeedItem) {
	gauge := c.metrics.IngestActiveWorkers.WithLabelValues(r.job.ID)
	gauge.Inc()
	defer gauge.Dec()

	outcome, err := c.ingestRecord(ctx, r, item)
	if err != nil && ctx.Err() != nil {
		return
	}
	switch outcome {
	case outcomeSkipped:
		r.skipped.Add(1)
	case outcomeProcessed:
		r.processed.Add(1)
	default:
		r.fail(err)
		r.log.Warn("Record failed",
			logging.Int64("offset", item.Offset),
			logging.CaseID(item.Record.ID),
			logging.Err(err))
	}
	c.metrics.IngestRecordsTotal.WithLabelValues(string(outcome)).Inc()

	committed := r.offsets.complete(item.Offset)
	if r.completed.Add(1)%int64(c.cfg.CheckpointEvery) == 0 {
		c.checkpoint(ctx, r, committed)
	}
}

func (c *Coordinator) checkpoint(ctx context.Context, r *jobRun, committed int64) {
	p := r.progress()
	if err := c.jobs.SaveProgress(ctx, r.job.ID, p); err != nil {
		r.log.Warn("Checkpoint failed", logging.Err(err))
		return
	}
	c.metrics.IngestCommitted.WithLabelValues(r.job.ID).Set(float64(committed))
	if r.lease != nil {
		if err := r.lease.Extend(ctx, c.cfg.LeaseTTL); err != nil {
			r.log.Warn("Lease extension failed", logging.Err(err))
		}
	}
	r.log.Debug("Checkpoint saved", logging.Int64("committed_offset", committed))
}

// reconcile resolves citations that pointed at cases ingested later in the
// same job.
func (c *Coordinator) reconcile(ctx context.Context, r *jobRun) {
	if err := c.citator.RebuildIndex(ctx); err != nil {
		r.log.Warn("Resolver index rebuild failed", logging.Err(err))
		return
	}
	keys := r.keyList()
	if len(keys) == 0 {
		return
	}
	n, err := c.citator.Reconcile(ctx, keys)
	if err != nil {
		r.log.Warn("Reconciliation failed", logging.Err(err))
		return
	}
	if n > 0 {
		r.edges.Add(int64(n))
		r.log.Info("Reconciled forward citations", logging.Int("edges", n))
	}
}

//Personal.AI order the ending
