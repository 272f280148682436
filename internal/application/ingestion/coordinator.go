// Package ingestion runs bulk ingestion jobs: it streams a feed through a
// worker pool that stores each case, writes its citation edges and refreshes
// the search indexes, checkpointing the committed offset as it goes.
package ingestion

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sagerock/ai-law-research/internal/application/citator"
	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/domain/citation"
	ingestdomain "github.com/sagerock/ai-law-research/internal/domain/ingestion"
	searchdomain "github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/prometheus"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// CaseStore is the slice of the case repository ingestion writes through.
type CaseStore interface {
	ContentHash(ctx context.Context, id string) (string, bool, error)
	UpsertCase(ctx context.Context, c *citation.Case) (bool, error)
	SetContentHash(ctx context.Context, id, hash string) error
	UpsertCourt(ctx context.Context, court *citation.Court) error
	CountEdges(ctx context.Context, caseID string) (int, int, error)
	EdgesFrom(ctx context.Context, caseID string, limit int) ([]citation.EdgeView, error)
}

// LexicalIndex maintains the keyword index.
type LexicalIndex interface {
	searchdomain.CaseIndexer
	UpdateCitationCount(ctx context.Context, id string, count int) error
}

// CachePurger drops cached search responses once the corpus changes.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

type Config struct {
	Workers         int
	QueueSize       int
	MaxRetries      int
	RetryBaseDelay  time.Duration
	CheckpointEvery int
	LeaseTTL        time.Duration
	MaxTextBytes    int
	ChunkWords      int
	ChunkOverlap    int
}

func DefaultConfig() Config {
	return Config{
		Workers:         config.DefaultIngestionWorkers,
		QueueSize:       config.DefaultQueueSize,
		MaxRetries:      config.DefaultMaxRetries,
		RetryBaseDelay:  config.DefaultRetryBaseDelay,
		CheckpointEvery: config.DefaultCheckpointEvery,
		LeaseTTL:        config.DefaultLeaseTTL,
		MaxTextBytes:    config.DefaultMaxTextBytes,
		ChunkWords:      config.DefaultChunkWords,
		ChunkOverlap:    config.DefaultChunkOverlap,
	}
}

func ConfigFromSettings(s config.IngestionConfig) Config {
	c := Config{
		Workers:         s.Workers,
		QueueSize:       s.QueueSize,
		MaxRetries:      s.MaxRetries,
		RetryBaseDelay:  s.RetryBaseDelay,
		CheckpointEvery: s.CheckpointEvery,
		LeaseTTL:        s.LeaseTTL,
		MaxTextBytes:    s.MaxTextBytes,
		ChunkWords:      s.ChunkWords,
		ChunkOverlap:    s.ChunkOverlap,
	}
	c.fill()
	return c
}

func (c *Config) fill() {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = d.RetryBaseDelay
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = d.CheckpointEvery
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = d.LeaseTTL
	}
	if c.MaxTextBytes <= 0 {
		c.MaxTextBytes = d.MaxTextBytes
	}
	if c.ChunkWords <= 0 {
		c.ChunkWords = d.ChunkWords
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkWords {
		c.ChunkOverlap = min(d.ChunkOverlap, c.ChunkWords/2)
	}
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Request names a feed to ingest, or a failed job to resume.
type Request struct {
	FeedURI   string `json:"feed_uri"`
	RetryOf   string `json:"retry_of,omitempty"`
	Requester string `json:"requester,omitempty"`
}

// Service is the ingestion surface used by the API, the CLI and the worker.
type Service interface {
	// RunJob runs a job to completion and returns its final record. A job
	// that ends failed or partial is not an error.
	RunJob(ctx context.Context, req Request) (*ingestdomain.Job, error)
	// Submit starts a job in the background and returns it while pending or
	// running.
	Submit(ctx context.Context, req Request) (*ingestdomain.Job, error)
	GetJobStatus(ctx context.Context, jobID string) (*ingestdomain.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*ingestdomain.Job, error)
	// CancelJob stops a running job between records; it ends failed and can
	// be retried from its committed offset.
	CancelJob(ctx context.Context, jobID string) error
	// DeleteCase removes a case from the graph and both search indexes.
	DeleteCase(ctx context.Context, caseID string) error
}

// Deps wires a Coordinator. Leases, indexes, embedder and cache are
// optional.
type Deps struct {
	Jobs     ingestdomain.JobRepository
	Store    CaseStore
	Citator  citator.Service
	Feeds    ingestdomain.FeedSource
	Leases   ingestdomain.LeaseManager
	Lexical  LexicalIndex
	Vectors  searchdomain.ChunkIndexer
	Embedder searchdomain.Embedder
	Cache    CachePurger
	Metrics  *prometheus.AppMetrics
	Logger   logging.Logger
	Config   Config
}

// Coordinator implements Service.
type Coordinator struct {
	jobs     ingestdomain.JobRepository
	store    CaseStore
	citator  citator.Service
	feeds    ingestdomain.FeedSource
	leases   ingestdomain.LeaseManager
	lexical  LexicalIndex
	vectors  searchdomain.ChunkIndexer
	embedder searchdomain.Embedder
	cache    CachePurger
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
	cfg      Config

	base    context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewCoordinator(deps Deps) (*Coordinator, error) {
	if deps.Jobs == nil || deps.Store == nil || deps.Citator == nil || deps.Feeds == nil {
		return nil, errors.InvalidParam("ingestion: jobs, store, citator and feeds are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = prometheus.NewNopMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	cfg := deps.Config
	cfg.fill()
	base, stop := context.WithCancel(context.Background())
	return &Coordinator{
		jobs:     deps.Jobs,
		store:    deps.Store,
		citator:  deps.Citator,
		feeds:    deps.Feeds,
		leases:   deps.Leases,
		lexical:  deps.Lexical,
		vectors:  deps.Vectors,
		embedder: deps.Embedder,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		logger:   deps.Logger.Named("ingestion"),
		cfg:      cfg,
		base:     base,
		stop:     stop,
		running:  make(map[string]context.CancelFunc),
	}, nil
}

func (c *Coordinator) RunJob(ctx context.Context, req Request) (*ingestdomain.Job, error) {
	job, lease, err := c.start(ctx, req)
	if err != nil {
		return job, err
	}
	return c.run(ctx, job, lease), nil
}

func (c *Coordinator) Submit(ctx context.Context, req Request) (*ingestdomain.Job, error) {
	job, lease, err := c.start(ctx, req)
	if err != nil {
		return job, err
	}
	snapshot := *job
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(c.base, job, lease)
	}()
	return &snapshot, nil
}

// Wait blocks until every submitted job has finished.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Close cancels running jobs and waits for them to record their status.
func (c *Coordinator) Close() error {
	c.stop()
	c.wg.Wait()
	return nil
}

func (c *Coordinator) GetJobStatus(ctx context.Context, jobID string) (*ingestdomain.Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.InvalidParam("job id is required")
	}
	return c.jobs.GetJob(ctx, jobID)
}

func (c *Coordinator) ListJobs(ctx context.Context, limit int) ([]*ingestdomain.Job, error) {
	return c.jobs.ListJobs(ctx, limit)
}

func (c *Coordinator) CancelJob(ctx context.Context, jobID string) error {
	c.mu.Lock()
	cancel, ok := c.running[jobID]
	c.mu.Unlock()
	if ok {
		cancel()
		c.logger.Info("Job cancellation requested", logging.JobID(jobID))
		return nil
	}
	job, err := c.GetJobStatus(ctx, jobID)
	if err != nil {
		return err
	}
	return errors.New(errors.ErrCodeInvalidJobTransition, "job is not running").WithDetail(string(job.Status))
}

// start creates the job record and takes the feed lease. A job whose lease
// is held elsewhere is recorded as failed.
func (c *Coordinator) start(ctx context.Context, req Request) (*ingestdomain.Job, ingestdomain.Lease, error) {
	job, err := c.newJob(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if err := c.jobs.CreateJob(ctx, job); err != nil {
		return nil, nil, err
	}
	log := c.logger.With(logging.JobID(job.ID), logging.String("feed", job.FeedURI))
	log.Info("Ingestion job created",
		logging.String("parent", job.ParentJobID),
		logging.Int64("resume_from", job.ResumeFrom),
		logging.String("requester", req.Requester))

	if c.leases == nil {
		return job, nil, nil
	}
	lease, err := c.leases.TryAcquire(ctx, leaseName(job.FeedURI), c.cfg.LeaseTTL)
	if err != nil {
		job.LastError = err.Error()
		if terr := job.TransitionTo(ingestdomain.StatusFailed); terr == nil {
			if uerr := c.jobs.UpdateStatus(ctx, job); uerr != nil {
				log.Error("Failed to record lease failure", logging.Err(uerr))
			}
		}
		log.Warn("Feed is already being ingested", logging.Err(err))
		return job, nil, err
	}
	return job, lease, nil
}

func (c *Coordinator) newJob(ctx context.Context, req Request) (*ingestdomain.Job, error) {
	uri := strings.TrimSpace(req.FeedURI)
	if req.RetryOf == "" {
		if uri == "" {
			return nil, errors.InvalidParam("feed uri is required")
		}
		return ingestdomain.NewJob(uri), nil
	}
	parent, err := c.jobs.GetJob(ctx, req.RetryOf)
	if err != nil {
		return nil, err
	}
	if parent.Status != ingestdomain.StatusFailed && parent.Status != ingestdomain.StatusPartial {
		return nil, errors.New(errors.ErrCodeInvalidJobTransition, "only failed or partial jobs can be retried").
			WithDetail(string(parent.Status))
	}
	if uri != "" && uri != parent.FeedURI {
		return nil, errors.InvalidParam("retry must use the parent job's feed").WithDetail(parent.FeedURI)
	}
	return ingestdomain.NewRetryJob(parent), nil
}

func leaseName(feedURI string) string { return "feed:" + feedURI }

// DeleteCase removes the case from the graph, both search indexes and the
// result cache, then refreshes the citation counts of the cases it cited.
func (c *Coordinator) DeleteCase(ctx context.Context, caseID string) error {
	if strings.TrimSpace(caseID) == "" {
		return errors.InvalidParam("case id is required")
	}
	cited, err := c.store.EdgesFrom(ctx, caseID, 0)
	if err != nil {
		return err
	}
	if err := c.citator.DeleteCase(ctx, caseID); err != nil {
		return err
	}
	log := c.logger.With(logging.CaseID(caseID))
	if c.lexical != nil {
		if err := c.lexical.DeleteCase(ctx, caseID); err != nil {
			log.Warn("Lexical index delete failed", logging.Err(err))
			c.metrics.RecordError("lexical_index", string(errors.GetCode(err)))
		}
		targets := make([]string, 0, len(cited))
		for _, e := range cited {
			targets = append(targets, e.TargetID)
		}
		c.refreshCounts(ctx, targets)
	}
	if c.vectors != nil {
		if err := c.vectors.DeleteCase(ctx, caseID); err != nil {
			log.Warn("Vector index delete failed", logging.Err(err))
			c.metrics.RecordError("vector_index", string(errors.GetCode(err)))
		}
	}
	c.purgeCache(ctx)
	log.Info("Case deleted", logging.Int("outbound_edges", len(cited)))
	return nil
}

func (c *Coordinator) purgeCache(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if n, err := c.cache.Purge(ctx); err != nil {
		c.logger.Warn("Search cache purge failed", logging.Err(err))
	} else if n > 0 {
		c.logger.Debug("Search cache purged", logging.Int64("entries", n))
	}
}

//Personal.AI order the ending
