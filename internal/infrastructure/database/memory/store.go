// Package memory is an in-process citation store used by tests, the CLI demo
// mode and single-node deployments. Writes are serialized per shard, never
// globally.
package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

const shardCount = 64

type caseShard struct {
	mu    sync.RWMutex
	cases map[string]*citation.Case
}

// edgeShard holds edges grouped by target, so one case's inbound set lives
// under a single lock.
type edgeShard struct {
	mu   sync.RWMutex
	into map[string]map[citation.EdgeKey]*citation.Edge
}

// outShard indexes edge keys by an owning case: the source, or the origin of
// history edges.
type outShard struct {
	mu   sync.RWMutex
	from map[string]map[citation.EdgeKey]struct{}
}

// Store implements citation.Store. Lock order is edge shard before case
// shard; no method holds two shards of the same kind.
type Store struct {
	cases [shardCount]caseShard
	edges [shardCount]edgeShard
	out   [shardCount]outShard
	orig  [shardCount]outShard

	courtsMu sync.RWMutex
	courts   map[string]citation.Court

	unresolvedMu sync.Mutex
	unresolved   map[string][]citation.UnresolvedCitation

	now func() time.Time
}

var _ citation.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{
		courts:     make(map[string]citation.Court),
		unresolved: make(map[string][]citation.UnresolvedCitation),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for i := range s.cases {
		s.cases[i].cases = make(map[string]*citation.Case)
		s.edges[i].into = make(map[string]map[citation.EdgeKey]*citation.Edge)
		s.out[i].from = make(map[string]map[citation.EdgeKey]struct{})
		s.orig[i].from = make(map[string]map[citation.EdgeKey]struct{})
	}
	return s
}

func shardOf(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % shardCount)
}

func index(shards *[shardCount]outShard, owner string, key citation.EdgeKey) {
	sh := &shards[shardOf(owner)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	from := sh.from[owner]
	if from == nil {
		from = make(map[citation.EdgeKey]struct{})
		sh.from[owner] = from
	}
	from[key] = struct{}{}
}

func unindex(shards *[shardCount]outShard, owner string, key citation.EdgeKey) {
	sh := &shards[shardOf(owner)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if from := sh.from[owner]; from != nil {
		delete(from, key)
		if len(from) == 0 {
			delete(sh.from, owner)
		}
	}
}

func indexed(shards *[shardCount]outShard, owner string) []citation.EdgeKey {
	sh := &shards[shardOf(owner)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	keys := make([]citation.EdgeKey, 0, len(sh.from[owner]))
	for k := range sh.from[owner] {
		keys = append(keys, k)
	}
	return keys
}

func cloneCase(c *citation.Case) *citation.Case {
	cp := *c
	cp.Citations = append([]string(nil), c.Citations...)
	if c.DecisionDate != nil {
		d := *c.DecisionDate
		cp.DecisionDate = &d
	}
	return &cp
}

// ─────────────────────────────────────────────────────────────────────────────
// Cases
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) UpsertCase(_ context.Context, c *citation.Case) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	sh := &s.cases[shardOf(c.ID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()
	cp := cloneCase(c)
	prev, exists := sh.cases[c.ID]
	if exists {
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	sh.cases[c.ID] = cp
	return !exists, nil
}

func (s *Store) lookupCase(id string) (*citation.Case, bool) {
	sh := &s.cases[shardOf(id)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	c, ok := sh.cases[id]
	if !ok {
		return nil, false
	}
	return cloneCase(c), true
}

func (s *Store) caseExists(id string) bool {
	sh := &s.cases[shardOf(id)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.cases[id]
	return ok
}

func (s *Store) GetCase(_ context.Context, id string) (*citation.Case, error) {
	c, ok := s.lookupCase(id)
	if !ok {
		return nil, errors.CaseNotFound(id)
	}
	c.CitationCount = s.inDegree(id)
	return c, nil
}

func (s *Store) GetCases(_ context.Context, ids []string) (map[string]*citation.Case, error) {
	out := make(map[string]*citation.Case, len(ids))
	for _, id := range ids {
		if c, ok := s.lookupCase(id); ok {
			c.CitationCount = s.inDegree(id)
			out[id] = c
		}
	}
	return out, nil
}

func (s *Store) ContentHash(_ context.Context, id string) (string, bool, error) {
	sh := &s.cases[shardOf(id)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	c, ok := sh.cases[id]
	if !ok {
		return "", false, nil
	}
	return c.ContentHash, true, nil
}

func (s *Store) SetContentHash(_ context.Context, id, hash string) error {
	sh := &s.cases[shardOf(id)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	c, ok := sh.cases[id]
	if !ok {
		return errors.CaseNotFound(id)
	}
	c.ContentHash = hash
	c.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteCase(ctx context.Context, id string) error {
	sh := &s.cases[shardOf(id)]
	sh.mu.Lock()
	_, ok := sh.cases[id]
	delete(sh.cases, id)
	sh.mu.Unlock()
	if !ok {
		return errors.CaseNotFound(id)
	}

	// Outbound edges and edges its text originated go with the case.
	for _, k := range append(indexed(&s.out, id), indexed(&s.orig, id)...) {
		if _, err := s.RemoveEdge(ctx, k); err != nil {
			return err
		}
	}

	// Inbound edges stay, marked dangling.
	esh := &s.edges[shardOf(id)]
	esh.mu.Lock()
	now := s.now()
	for _, e := range esh.into[id] {
		e.Dangling = true
		e.UpdatedAt = now
	}
	esh.mu.Unlock()
	return nil
}

func (s *Store) ScanCitationRefs(ctx context.Context, fn func(citation.CaseRef) error) error {
	for i := range s.cases {
		sh := &s.cases[i]
		sh.mu.RLock()
		refs := make([]citation.CaseRef, 0, len(sh.cases))
		for _, c := range sh.cases {
			refs = append(refs, citation.CaseRef{
				ID:        c.ID,
				Title:     c.Title,
				Citations: append([]string(nil), c.Citations...),
			})
		}
		sh.mu.RUnlock()
		for _, r := range refs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) UpsertCourt(_ context.Context, court *citation.Court) error {
	if court == nil || court.ID == "" {
		return errors.InvalidParam("court id is required")
	}
	s.courtsMu.Lock()
	s.courts[court.ID] = *court
	s.courtsMu.Unlock()
	return nil
}

// Court returns a stored court.
func (s *Store) Court(id string) (citation.Court, bool) {
	s.courtsMu.RLock()
	defer s.courtsMu.RUnlock()
	c, ok := s.courts[id]
	return c, ok
}

func (s *Store) MostCited(_ context.Context, filter citation.AuthorityFilter, limit int) ([]citation.AuthorityEntry, error) {
	var allow map[string]bool
	if len(filter.CaseIDs) > 0 {
		allow = make(map[string]bool, len(filter.CaseIDs))
		for _, id := range filter.CaseIDs {
			allow[id] = true
		}
	}

	var out []citation.AuthorityEntry
	for i := range s.edges {
		sh := &s.edges[i]
		sh.mu.RLock()
		for target, in := range sh.into {
			if len(in) == 0 || (allow != nil && !allow[target]) {
				continue
			}
			signals := make([]citation.Signal, 0, len(in))
			for _, e := range in {
				signals = append(signals, e.Signal)
			}
			out = append(out, citation.AuthorityEntry{
				CaseID:   target,
				InDegree: len(in),
				Badge:    citation.ComputeBadge(signals),
			})
		}
		sh.mu.RUnlock()
	}

	kept := out[:0]
	for _, e := range out {
		c, ok := s.lookupCase(e.CaseID)
		if !ok {
			continue
		}
		if filter.Jurisdiction != "" && c.Jurisdiction != filter.Jurisdiction {
			continue
		}
		var d time.Time
		if c.DecisionDate != nil {
			d = *c.DecisionDate
		}
		if !filter.DateRange.Contains(d) {
			continue
		}
		kept = append(kept, e)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].InDegree != kept[j].InDegree {
			return kept[i].InDegree > kept[j].InDegree
		}
		return kept[i].CaseID < kept[j].CaseID
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, nil
}

func (s *Store) Stats(_ context.Context) (citation.CorpusStats, error) {
	var st citation.CorpusStats
	for i := range s.cases {
		sh := &s.cases[i]
		sh.mu.RLock()
		st.Cases += len(sh.cases)
		sh.mu.RUnlock()
	}
	for i := range s.edges {
		sh := &s.edges[i]
		sh.mu.RLock()
		for _, in := range sh.into {
			st.Edges += len(in)
			for _, e := range in {
				if e.Dangling {
					st.Dangling++
				}
			}
		}
		sh.mu.RUnlock()
	}
	st.Unresolved = s.UnresolvedCount()
	return st, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Edges
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) UpsertEdge(_ context.Context, e *citation.Edge) (citation.UpsertResult, error) {
	if err := e.Validate(); err != nil {
		return citation.UpsertResult{}, err
	}
	if !s.caseExists(e.SourceID) {
		return citation.UpsertResult{}, errors.CaseNotFound(e.SourceID)
	}
	key := e.Key()
	esh := &s.edges[shardOf(e.TargetID)]
	esh.mu.Lock()
	dangling := !s.caseExists(e.TargetID)
	in := esh.into[e.TargetID]
	if in == nil {
		in = make(map[citation.EdgeKey]*citation.Edge)
		esh.into[e.TargetID] = in
	}

	now := s.now()
	cp := *e
	cp.Dangling = dangling
	res := citation.UpsertResult{Outcome: citation.OutcomeCreated}
	if prev, ok := in[key]; ok {
		if prev.SameContent(&cp) && prev.Dangling == dangling {
			esh.mu.Unlock()
			return citation.UpsertResult{Outcome: citation.OutcomeUnchanged, PreviousSignal: prev.Signal}, nil
		}
		res = citation.UpsertResult{Outcome: citation.OutcomeUpdated, PreviousSignal: prev.Signal}
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	in[key] = &cp
	esh.mu.Unlock()

	index(&s.out, e.SourceID, key)
	if e.OriginID != "" {
		index(&s.orig, e.OriginID, key)
	}

	e.Dangling, e.CreatedAt, e.UpdatedAt = cp.Dangling, cp.CreatedAt, cp.UpdatedAt
	return res, nil
}

func (s *Store) RemoveEdge(_ context.Context, key citation.EdgeKey) (bool, error) {
	esh := &s.edges[shardOf(key.TargetID)]
	esh.mu.Lock()
	in := esh.into[key.TargetID]
	_, ok := in[key]
	if ok {
		delete(in, key)
		if len(in) == 0 {
			delete(esh.into, key.TargetID)
		}
	}
	esh.mu.Unlock()
	if !ok {
		return false, nil
	}

	unindex(&s.out, key.SourceID, key)
	if key.OriginID != "" {
		unindex(&s.orig, key.OriginID, key)
	}
	return true, nil
}

func (s *Store) edge(k citation.EdgeKey) (citation.Edge, bool) {
	esh := &s.edges[shardOf(k.TargetID)]
	esh.mu.RLock()
	defer esh.mu.RUnlock()
	e, ok := esh.into[k.TargetID][k]
	if !ok {
		return citation.Edge{}, false
	}
	return *e, true
}

func (s *Store) inbound(caseID string) []citation.Edge {
	esh := &s.edges[shardOf(caseID)]
	esh.mu.RLock()
	defer esh.mu.RUnlock()
	out := make([]citation.Edge, 0, len(esh.into[caseID]))
	for _, e := range esh.into[caseID] {
		out = append(out, *e)
	}
	return out
}

func (s *Store) inDegree(caseID string) int {
	esh := &s.edges[shardOf(caseID)]
	esh.mu.RLock()
	defer esh.mu.RUnlock()
	return len(esh.into[caseID])
}

func (s *Store) summary(id string) citation.CaseSummary {
	if c, ok := s.lookupCase(id); ok {
		return c.Summary()
	}
	return citation.CaseSummary{ID: id}
}

func (s *Store) EdgesInto(_ context.Context, caseID string, limit int) ([]citation.EdgeView, error) {
	edges := s.inbound(caseID)
	views := make([]citation.EdgeView, 0, len(edges))
	for _, e := range edges {
		views = append(views, citation.EdgeView{Edge: e, Neighbor: s.summary(e.SourceID)})
	}
	citation.SortByNeighborDate(views)
	return truncate(views, limit), nil
}

func (s *Store) EdgesFrom(_ context.Context, caseID string, limit int) ([]citation.EdgeView, error) {
	keys := indexed(&s.out, caseID)
	views := make([]citation.EdgeView, 0, len(keys))
	for _, k := range keys {
		if e, ok := s.edge(k); ok {
			views = append(views, citation.EdgeView{Edge: e, Neighbor: s.summary(k.TargetID)})
		}
	}
	citation.SortByNeighborDate(views)
	return truncate(views, limit), nil
}

func (s *Store) EdgesByOrigin(_ context.Context, caseID string) ([]citation.Edge, error) {
	var out []citation.Edge
	for _, k := range indexed(&s.out, caseID) {
		if k.OriginID != "" {
			continue
		}
		if e, ok := s.edge(k); ok {
			out = append(out, e)
		}
	}
	for _, k := range indexed(&s.orig, caseID) {
		if e, ok := s.edge(k); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func truncate(v []citation.EdgeView, limit int) []citation.EdgeView {
	if limit > 0 && len(v) > limit {
		return v[:limit]
	}
	return v
}

func (s *Store) InboundSignals(_ context.Context, caseID string) ([]citation.Signal, error) {
	edges := s.inbound(caseID)
	out := make([]citation.Signal, len(edges))
	for i, e := range edges {
		out[i] = e.Signal
	}
	return out, nil
}

func (s *Store) CountEdges(_ context.Context, caseID string) (int, int, error) {
	osh := &s.out[shardOf(caseID)]
	osh.mu.RLock()
	from := len(osh.from[caseID])
	osh.mu.RUnlock()
	return s.inDegree(caseID), from, nil
}

func (s *Store) ReattachDangling(_ context.Context, caseID string) (int, error) {
	esh := &s.edges[shardOf(caseID)]
	esh.mu.Lock()
	defer esh.mu.Unlock()
	n := 0
	now := s.now()
	for _, e := range esh.into[caseID] {
		if e.Dangling {
			e.Dangling = false
			e.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Unresolved citations
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) RecordUnresolved(_ context.Context, u *citation.UnresolvedCitation) error {
	if u == nil || u.SourceID == "" || u.LookupKey == "" {
		return errors.InvalidParam("unresolved citation needs source and lookup key")
	}
	s.unresolvedMu.Lock()
	defer s.unresolvedMu.Unlock()
	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	list := s.unresolved[u.LookupKey]
	for i := range list {
		if list[i].SourceID == u.SourceID && list[i].Paragraph == u.Paragraph {
			list[i] = cp
			return nil
		}
	}
	s.unresolved[u.LookupKey] = append(list, cp)
	return nil
}

func (s *Store) TakeUnresolved(_ context.Context, keys []string) ([]citation.UnresolvedCitation, error) {
	s.unresolvedMu.Lock()
	defer s.unresolvedMu.Unlock()
	var out []citation.UnresolvedCitation
	for _, k := range keys {
		out = append(out, s.unresolved[k]...)
		delete(s.unresolved, k)
	}
	return out, nil
}

func (s *Store) ClearUnresolved(_ context.Context, sourceID string) (int, error) {
	s.unresolvedMu.Lock()
	defer s.unresolvedMu.Unlock()
	n := 0
	for k, list := range s.unresolved {
		kept := list[:0]
		for _, u := range list {
			if u.SourceID == sourceID {
				n++
				continue
			}
			kept = append(kept, u)
		}
		if len(kept) == 0 {
			delete(s.unresolved, k)
		} else {
			s.unresolved[k] = kept
		}
	}
	return n, nil
}

// UnresolvedCount is the number of pending unresolved citations.
func (s *Store) UnresolvedCount() int {
	s.unresolvedMu.Lock()
	defer s.unresolvedMu.Unlock()
	n := 0
	for _, l := range s.unresolved {
		n += len(l)
	}
	return n
}

//Personal.AI order the ending
