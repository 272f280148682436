package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sagerock/ai-law-research/internal/domain/ingestion"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// LeaseManager grants process-local leases. It serves single-node
// deployments and tests.
type LeaseManager struct {
	mu     sync.Mutex
	now    func() time.Time
	holder map[string]leaseEntry
}

type leaseEntry struct {
	token   string
	expires time.Time
}

var _ ingestion.LeaseManager = (*LeaseManager)(nil)

func NewLeaseManager() *LeaseManager {
	return &LeaseManager{now: time.Now, holder: make(map[string]leaseEntry)}
}

func (m *LeaseManager) TryAcquire(_ context.Context, name string, ttl time.Duration) (ingestion.Lease, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if cur, ok := m.holder[name]; ok && now.Before(cur.expires) {
		return nil, errors.New(errors.ErrCodeJobLeaseHeld, "feed lease is held").WithDetail(name)
	}
	token := uuid.New().String()
	m.holder[name] = leaseEntry{token: token, expires: now.Add(ttl)}
	return &memLease{m: m, name: name, token: token}, nil
}

type memLease struct {
	m        *LeaseManager
	name     string
	token    string
	released bool
}

func (l *memLease) Extend(_ context.Context, ttl time.Duration) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	cur, ok := l.m.holder[l.name]
	if l.released || !ok || cur.token != l.token {
		return errors.New(errors.ErrCodeJobLeaseHeld, "lease no longer held").WithDetail(l.name)
	}
	cur.expires = l.m.now().Add(ttl)
	l.m.holder[l.name] = cur
	return nil
}

func (l *memLease) Release(_ context.Context) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true
	if cur, ok := l.m.holder[l.name]; ok && cur.token == l.token {
		delete(l.m.holder, l.name)
	}
	return nil
}

//Personal.AI order the ending
