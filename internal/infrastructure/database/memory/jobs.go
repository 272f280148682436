package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sagerock/ai-law-research/internal/domain/ingestion"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// JobStore implements ingestion.JobRepository in memory.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*ingestion.Job
}

var _ ingestion.JobRepository = (*JobStore)(nil)

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*ingestion.Job)}
}

func cloneJob(j *ingestion.Job) *ingestion.Job {
	cp := *j
	if j.Metadata != nil {
		cp.Metadata = make(map[string]string, len(j.Metadata))
		for k, v := range j.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func (s *JobStore) CreateJob(_ context.Context, j *ingestion.Job) error {
	if j == nil || j.ID == "" {
		return errors.InvalidParam("job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return errors.Conflict("job already exists").WithDetail(j.ID)
	}
	s.jobs[j.ID] = cloneJob(j)
	return nil
}

func (s *JobStore) GetJob(_ context.Context, id string) (*ingestion.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeJobNotFound, "ingestion job not found").WithDetail(id)
	}
	return cloneJob(j), nil
}

func (s *JobStore) SaveProgress(_ context.Context, id string, p ingestion.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return errors.New(errors.ErrCodeJobNotFound, "ingestion job not found").WithDetail(id)
	}
	j.Apply(p)
	return nil
}

func (s *JobStore) UpdateStatus(_ context.Context, j *ingestion.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[j.ID]
	if !ok {
		return errors.New(errors.ErrCodeJobNotFound, "ingestion job not found").WithDetail(j.ID)
	}
	if cur.Status != j.Status && !ingestion.CanTransition(cur.Status, j.Status) {
		return errors.New(errors.ErrCodeInvalidJobTransition, "invalid job status transition").
			WithDetail(string(cur.Status) + " -> " + string(j.Status))
	}
	cur.Status = j.Status
	cur.StartedAt = j.StartedAt
	cur.FinishedAt = j.FinishedAt
	cur.UpdatedAt = j.UpdatedAt
	if j.LastError != "" {
		cur.LastError = j.LastError
	}
	return nil
}

func (s *JobStore) ListJobs(_ context.Context, limit int) ([]*ingestion.Job, error) {
	s.mu.RLock()
	out := make([]*ingestion.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, cloneJob(j))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

//Personal.AI order the ending
