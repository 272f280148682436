package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sagerock/ai-law-research/internal/domain/ingestion"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

var (
	ErrLeaseHeld    = errors.New(errors.ErrCodeJobLeaseHeld, "ingestion job is running elsewhere")
	ErrLeaseNotHeld = errors.New(errors.ErrCodeJobLeaseHeld, "lease not held by this owner")
)

var leaseReleaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var leaseExtendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// LeaseManager grants feed leases backed by SET NX with an owner token. A
// granted lease renews itself every ttl/3 until released.
type LeaseManager struct {
	client   *Client
	logger   logging.Logger
	watchdog bool
	newToken func() string
}

type LeaseOption func(*LeaseManager)

// WithoutWatchdog disables automatic renewal. Callers must Extend manually.
func WithoutWatchdog() LeaseOption {
	return func(m *LeaseManager) { m.watchdog = false }
}

func NewLeaseManager(client *Client, log logging.Logger, opts ...LeaseOption) *LeaseManager {
	if log == nil {
		log = logging.NewNopLogger()
	}
	m := &LeaseManager{client: client, logger: log.Named("lease"), watchdog: true, newToken: uuid.NewString}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LeaseKey maps an arbitrary lease name (usually a feed URI) to a bounded key.
func (m *LeaseManager) LeaseKey(name string) string {
	sum := sha256.Sum256([]byte(name))
	return m.client.Key("lease", hex.EncodeToString(sum[:16]))
}

// TryAcquire makes one attempt. It never waits for a current holder.
func (m *LeaseManager) TryAcquire(ctx context.Context, name string, ttl time.Duration) (ingestion.Lease, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	l := &redisLease{
		client: m.client,
		key:    m.LeaseKey(name),
		token:  m.newToken(),
		ttl:    ttl,
		logger: m.logger.With(logging.String("lease", name)),
	}
	ok, err := m.client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to acquire lease")
	}
	if !ok {
		return nil, ErrLeaseHeld.WithDetail(name)
	}
	if m.watchdog {
		l.startWatchdog(ttl / 3)
	}
	return l, nil
}

type redisLease struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
	logger logging.Logger

	mu             sync.Mutex
	released       bool
	watchdogCancel context.CancelFunc
	watchdogDone   chan struct{}
}

func (l *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	res, err := leaseExtendScript.Run(ctx, l.client.Underlying(), []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to extend lease")
	}
	if res != 1 {
		return ErrLeaseNotHeld
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return nil
	}
	l.released = true
	l.mu.Unlock()

	l.stopWatchdog()
	res, err := leaseReleaseScript.Run(ctx, l.client.Underlying(), []string{l.key}, l.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lease")
	}
	if res == 0 {
		l.logger.Warn("lease expired before release")
	}
	return nil
}

func (l *redisLease) startWatchdog(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.watchdogCancel = cancel
	l.watchdogDone = make(chan struct{})
	go l.runWatchdog(ctx, interval)
}

func (l *redisLease) stopWatchdog() {
	if l.watchdogCancel != nil {
		l.watchdogCancel()
		<-l.watchdogDone
		l.watchdogCancel = nil
	}
}

func (l *redisLease) runWatchdog(ctx context.Context, interval time.Duration) {
	defer close(l.watchdogDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Extend(ctx, l.ttl); err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("watchdog failed to extend lease", logging.Err(err))
				return
			}
		}
	}
}

//Personal.AI order the ending
