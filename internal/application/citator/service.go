// Package citator provides the application service behind the citator:
// turning opinion text into citation edges, keeping badges current as the
// edge set changes, and serving the treatment panels shown on case pages.
package citator

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_extractor"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_resolver"
	"github.com/sagerock/ai-law-research/internal/intelligence/treatment_classifier"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/prometheus"
	"github.com/sagerock/ai-law-research/pkg/errors"
	"github.com/sagerock/ai-law-research/pkg/types/common"
)

// Service is the citator surface used by handlers, the CLI and ingestion.
type Service interface {
	// ResolveCitations extracts, resolves and classifies the citations in
	// text. Nothing is written; sourceID may be empty.
	ResolveCitations(ctx context.Context, sourceID, text string) (*ResolveResult, error)
	ResolveDocument(ctx context.Context, sourceID string, doc citation_extractor.Document) (*ResolveResult, error)

	// WriteCitations replaces the edges originated by res.SourceID's text
	// with res.Edges and its unresolved citations with res.Unresolved.
	WriteCitations(ctx context.Context, res *ResolveResult) (*WriteResult, error)

	GetCase(ctx context.Context, caseID string) (*CaseView, error)
	GetBadge(ctx context.Context, caseID string) (*BadgeView, error)
	GetTreatments(ctx context.Context, caseID string) ([]citation.TreatmentRecord, error)
	Citator(ctx context.Context, caseID string) (*Summary, error)
	CaseCitations(ctx context.Context, caseID string, limit int) (*CitationsPanel, error)
	BriefCheck(ctx context.Context, text string) (*BriefReport, error)
	Stats(ctx context.Context) (citation.CorpusStats, error)

	UpsertEdge(ctx context.Context, e *citation.Edge) (citation.UpsertResult, error)
	RemoveEdge(ctx context.Context, key citation.EdgeKey) (bool, error)

	// AttachCase runs after a case is written: it mirrors the case and
	// reattaches dangling edges that target it.
	AttachCase(ctx context.Context, c *citation.Case) (int, error)

	// Reconcile retries unresolved citations whose lookup key is in keys
	// against the current resolver snapshot.
	Reconcile(ctx context.Context, keys []string) (int, error)

	DeleteCase(ctx context.Context, caseID string) error
	RebuildIndex(ctx context.Context) error
}

// BadgeCache holds the last computed badge per case.
type BadgeCache interface {
	Badge(ctx context.Context, caseID string, compute func(context.Context) (citation.Badge, error)) (citation.Badge, error)
	Put(ctx context.Context, caseID string, badge citation.Badge) error
	Invalidate(ctx context.Context, caseIDs ...string) error
}

// GraphMirror is a secondary copy of the graph. Writes to it are best effort.
type GraphMirror interface {
	MirrorCase(ctx context.Context, c *citation.Case) error
	MirrorEdge(ctx context.Context, e *citation.Edge) error
	RemoveEdge(ctx context.Context, key citation.EdgeKey) error
	RemoveCase(ctx context.Context, id string) error
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config tunes classification context and panel sizes.
type Config struct {
	// ContextWindow is the number of bytes on each side of a mention given
	// to the classifier.
	ContextWindow int
	SnippetLength int
	PanelSize     int
}

func DefaultConfig() Config {
	return Config{
		ContextWindow: config.DefaultContextWindow,
		SnippetLength: config.DefaultSnippetLength,
		PanelSize:     5,
	}
}

// ConfigFromSettings maps the citation section of the service configuration.
func ConfigFromSettings(cfg config.CitationConfig) Config {
	c := DefaultConfig()
	if cfg.ContextWindow > 0 {
		c.ContextWindow = cfg.ContextWindow
	}
	if cfg.SnippetLength > 0 {
		c.SnippetLength = cfg.SnippetLength
	}
	return c
}

// ExtractorConfig maps the citation section onto the extractor settings.
func ExtractorConfig(cfg config.CitationConfig) citation_extractor.Config {
	return citation_extractor.Config{
		ParagraphWindow:     cfg.ParagraphWindow,
		FullConfidence:      cfg.FullConfidence,
		CaseNameConfidence:  cfg.CaseNameConfidence,
		ShortFormConfidence: cfg.ShortFormConfidence,
	}
}

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

// Deps holds the collaborators of the service. Store, Extractor, Resolver
// and Classifier are required.
type Deps struct {
	Store      citation.Store
	Extractor  *citation_extractor.Extractor
	Resolver   *citation_resolver.Resolver
	Classifier *treatment_classifier.Classifier
	Badges     BadgeCache
	Publisher  citation.EventPublisher
	Mirror     GraphMirror
	Metrics    *prometheus.AppMetrics
	Logger     logging.Logger
	Config     Config
}

type serviceImpl struct {
	store      citation.Store
	extractor  *citation_extractor.Extractor
	resolver   *citation_resolver.Resolver
	classifier *treatment_classifier.Classifier
	badges     BadgeCache
	publisher  citation.EventPublisher
	mirror     GraphMirror
	metrics    *prometheus.AppMetrics
	logger     logging.Logger
	cfg        Config
	locks      stripedLock
}

// NewService validates deps and fills optional collaborators with no-ops.
func NewService(deps Deps) (Service, error) {
	if deps.Store == nil || deps.Extractor == nil || deps.Resolver == nil || deps.Classifier == nil {
		return nil, errors.InvalidParam("citator: store, extractor, resolver and classifier are required")
	}
	if deps.Badges == nil {
		deps.Badges = uncachedBadges{}
	}
	if deps.Publisher == nil {
		deps.Publisher = citation.NopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = prometheus.NewNopMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	cfg := deps.Config
	d := DefaultConfig()
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = d.ContextWindow
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = d.SnippetLength
	}
	if cfg.PanelSize <= 0 {
		cfg.PanelSize = d.PanelSize
	}
	return &serviceImpl{
		store:      deps.Store,
		extractor:  deps.Extractor,
		resolver:   deps.Resolver,
		classifier: deps.Classifier,
		badges:     deps.Badges,
		publisher:  deps.Publisher,
		mirror:     deps.Mirror,
		metrics:    deps.Metrics,
		logger:     deps.Logger.Named("citator"),
		cfg:        cfg,
	}, nil
}

// uncachedBadges computes on every read.
type uncachedBadges struct{}

func (uncachedBadges) Badge(ctx context.Context, _ string, compute func(context.Context) (citation.Badge, error)) (citation.Badge, error) {
	return compute(ctx)
}
func (uncachedBadges) Put(context.Context, string, citation.Badge) error { return nil }
func (uncachedBadges) Invalidate(context.Context, ...string) error       { return nil }

// ---------------------------------------------------------------------------
// Edge writes
// ---------------------------------------------------------------------------

func (s *serviceImpl) UpsertEdge(ctx context.Context, e *citation.Edge) (citation.UpsertResult, error) {
	if e == nil {
		return citation.UpsertResult{}, errors.InvalidParam("edge is nil")
	}
	res, err := s.store.UpsertEdge(ctx, e)
	if err != nil {
		s.metrics.RecordError("citator", string(errors.GetCode(err)))
		return res, err
	}
	s.metrics.EdgesWrittenTotal.WithLabelValues(string(res.Outcome)).Inc()
	if !res.Changed() {
		return res, nil
	}

	if s.mirror != nil {
		if err := s.mirror.MirrorEdge(ctx, e); err != nil {
			s.mirrorFailed("mirror_edge", err)
		}
	}
	s.publish(ctx, citation.NewEdgeUpsertedEvent(e, res))

	added, replaced := e.Signal, citation.Signal("")
	if res.Outcome == citation.OutcomeUpdated {
		replaced = res.PreviousSignal
	}
	s.refreshBadge(ctx, e.TargetID, func(cur []citation.Signal) []citation.Signal {
		prev := withoutOne(cur, added)
		if replaced != "" {
			prev = append(prev, replaced)
		}
		return prev
	})
	return res, nil
}

func (s *serviceImpl) RemoveEdge(ctx context.Context, key citation.EdgeKey) (bool, error) {
	signal, found, err := s.edgeSignal(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return s.removeKnown(ctx, key, signal)
}

// removeKnown removes key whose current signal is signal.
func (s *serviceImpl) removeKnown(ctx context.Context, key citation.EdgeKey, signal citation.Signal) (bool, error) {
	removed, err := s.store.RemoveEdge(ctx, key)
	if err != nil || !removed {
		return removed, err
	}
	s.metrics.EdgesWrittenTotal.WithLabelValues("removed").Inc()

	if s.mirror != nil {
		if err := s.mirror.RemoveEdge(ctx, key); err != nil {
			s.mirrorFailed("remove_edge", err)
		}
	}
	s.publish(ctx, citation.NewEdgeRemovedEvent(key))
	s.refreshBadge(ctx, key.TargetID, func(cur []citation.Signal) []citation.Signal {
		return append(append([]citation.Signal(nil), cur...), signal)
	})
	return true, nil
}

func (s *serviceImpl) edgeSignal(ctx context.Context, key citation.EdgeKey) (citation.Signal, bool, error) {
	edges, err := s.store.EdgesByOrigin(ctx, key.Origin())
	if err != nil {
		return "", false, err
	}
	for _, e := range edges {
		if e.Key() == key {
			return e.Signal, true, nil
		}
	}
	return "", false, nil
}

// refreshBadge recomputes the badge of caseID after a mutation and stores it.
// previous rebuilds the signal set as it was before the mutation, so a
// transition event fires only when the badge actually moved. Recomputes for
// one case are serialized so the cached value is the last writer's.
func (s *serviceImpl) refreshBadge(ctx context.Context, caseID string, previous func([]citation.Signal) []citation.Signal) {
	start := time.Now()
	mu := s.locks.lock(caseID)
	defer mu.Unlock()

	signals, err := s.store.InboundSignals(ctx, caseID)
	if err != nil {
		s.logger.Warn("Badge recompute failed, invalidating", logging.CaseID(caseID), logging.Err(err))
		_ = s.badges.Invalidate(ctx, caseID)
		return
	}
	cur := citation.ComputeBadge(signals)
	prev := citation.ComputeBadge(previous(signals))
	s.metrics.BadgeComputeDuration.WithLabelValues("write").Observe(time.Since(start).Seconds())

	if err := s.badges.Put(ctx, caseID, cur); err != nil {
		s.logger.Warn("Badge cache write failed", logging.CaseID(caseID), logging.Err(err))
		_ = s.badges.Invalidate(ctx, caseID)
	}
	if prev != cur {
		s.metrics.BadgeChangesTotal.WithLabelValues(prev.String(), cur.String()).Inc()
		s.logger.Info("Badge changed",
			logging.CaseID(caseID),
			logging.String("from", prev.String()),
			logging.String("to", cur.String()))
		s.publish(ctx, citation.NewBadgeChangedEvent(caseID, prev, cur))
	}
}

// withoutOne drops the first occurrence of sig.
func withoutOne(signals []citation.Signal, sig citation.Signal) []citation.Signal {
	out := make([]citation.Signal, 0, len(signals))
	dropped := false
	for _, s := range signals {
		if !dropped && s == sig {
			dropped = true
			continue
		}
		out = append(out, s)
	}
	return out
}

func (s *serviceImpl) publish(ctx context.Context, ev common.DomainEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Event publish failed",
			logging.String("event_type", ev.EventType()),
			logging.String("aggregate_id", ev.AggregateID()),
			logging.Err(err))
	}
}

func (s *serviceImpl) mirrorFailed(op string, err error) {
	s.metrics.MirrorErrorsTotal.WithLabelValues(op).Inc()
	s.logger.Warn("Graph mirror write failed", logging.String("operation", op), logging.Err(err))
}

// ---------------------------------------------------------------------------
// Case lifecycle
// ---------------------------------------------------------------------------

func (s *serviceImpl) AttachCase(ctx context.Context, c *citation.Case) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if s.mirror != nil {
		if err := s.mirror.MirrorCase(ctx, c); err != nil {
			s.mirrorFailed("mirror_case", err)
		}
	}
	n, err := s.store.ReattachDangling(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("Reattached dangling edges", logging.CaseID(c.ID), logging.Int("edges", n))
	}
	return n, nil
}

func (s *serviceImpl) Reconcile(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	pending, err := s.store.TakeUnresolved(ctx, keys)
	if err != nil {
		return 0, err
	}
	reconciled := 0
	for i := range pending {
		u := &pending[i]
		res := s.resolver.ResolveCitation(u.LookupKey, "")
		if !res.Resolved() || res.CaseID == u.SourceID {
			u.Reason = res.Reason()
			if err := s.store.RecordUnresolved(ctx, u); err != nil {
				return reconciled, err
			}
			continue
		}
		e := u.ToEdge(res.CaseID)
		if _, err := s.UpsertEdge(ctx, &e); err != nil {
			return reconciled, err
		}
		reconciled++
	}
	if reconciled > 0 {
		s.logger.Info("Reconciled unresolved citations",
			logging.Int("reconciled", reconciled),
			logging.Int("taken", len(pending)))
	}
	return reconciled, nil
}

// DeleteCase removes the case with its outbound edges and the history edges
// its text originated. Inbound edges stay as dangling history; badges of every
// case that lost an edge are recomputed.
func (s *serviceImpl) DeleteCase(ctx context.Context, caseID string) error {
	if _, err := s.store.GetCase(ctx, caseID); err != nil {
		if errors.IsNotFound(err) {
			return errors.CaseNotFound(caseID)
		}
		return err
	}
	views, err := s.store.EdgesFrom(ctx, caseID, 0)
	if err != nil {
		return err
	}
	out := make([]citation.Edge, 0, len(views))
	for _, v := range views {
		out = append(out, v.Edge)
	}
	originated, err := s.store.EdgesByOrigin(ctx, caseID)
	if err != nil {
		return err
	}
	for _, e := range originated {
		if e.OriginID != "" {
			out = append(out, e)
		}
	}
	if err := s.store.DeleteCase(ctx, caseID); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.RemoveCase(ctx, caseID); err != nil {
			s.mirrorFailed("remove_case", err)
		}
	}

	removed := make(map[string][]citation.Signal)
	for _, e := range out {
		s.publish(ctx, citation.NewEdgeRemovedEvent(e.Key()))
		removed[e.TargetID] = append(removed[e.TargetID], e.Signal)
	}
	for target, signals := range removed {
		s.refreshBadge(ctx, target, func(cur []citation.Signal) []citation.Signal {
			return append(append([]citation.Signal(nil), cur...), signals...)
		})
	}
	s.logger.Info("Case deleted", logging.CaseID(caseID), logging.Int("removed_edges", len(out)))
	return nil
}

func (s *serviceImpl) RebuildIndex(ctx context.Context) error {
	_, err := s.resolver.Rebuild(ctx, s.store)
	return err
}

// ---------------------------------------------------------------------------
// Striped lock
// ---------------------------------------------------------------------------

const lockStripes = 64

type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu
}

//Personal.AI order the ending
