// Package search answers case queries by fusing lexical relevance, semantic
// similarity and citation authority into one ranked list.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sagerock/ai-law-research/internal/application/citator"
	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/domain/citation"
	searchdomain "github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/prometheus"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// AuthoritySource lists cases by inbound citation count.
type AuthoritySource interface {
	MostCited(ctx context.Context, filter citation.AuthorityFilter, limit int) ([]citation.AuthorityEntry, error)
}

// CaseLookup loads case metadata for result enrichment.
type CaseLookup interface {
	GetCases(ctx context.Context, ids []string) (map[string]*citation.Case, error)
}

// BadgeSource serves the current badge of a case.
type BadgeSource interface {
	GetBadge(ctx context.Context, caseID string) (*citator.BadgeView, error)
}

// ResultCache stores whole responses by request hash.
type ResultCache interface {
	Get(ctx context.Context, hash string, dest interface{}) (bool, error)
	Set(ctx context.Context, hash string, value interface{}) error
	Purge(ctx context.Context) (int64, error)
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds the fusion parameters.
type Config struct {
	K              int
	Weights        searchdomain.Weights
	CandidateLimit int
	ResultLimit    int
	Deadline       time.Duration
}

func DefaultConfig() Config {
	return Config{
		K: config.DefaultRRFK,
		Weights: searchdomain.Weights{
			Lexical:   config.DefaultLexicalWeight,
			Semantic:  config.DefaultSemanticWeight,
			Authority: config.DefaultAuthorityWeight,
		},
		CandidateLimit: config.DefaultCandidateLimit,
		ResultLimit:    config.DefaultResultLimit,
		Deadline:       config.DefaultRankDeadline,
	}
}

func ConfigFromSettings(r config.RankingConfig) Config {
	c := Config{
		K:              r.K,
		Weights:        searchdomain.Weights{Lexical: r.LexicalWeight, Semantic: r.SemanticWeight, Authority: r.AuthorityWeight},
		CandidateLimit: r.CandidateLimit,
		ResultLimit:    r.ResultLimit,
		Deadline:       r.Deadline,
	}
	c.fill()
	return c
}

func (c *Config) fill() {
	d := DefaultConfig()
	if c.K <= 0 {
		c.K = d.K
	}
	if c.Weights.Validate() != nil {
		c.Weights = d.Weights
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = d.CandidateLimit
	}
	if c.ResultLimit <= 0 {
		c.ResultLimit = d.ResultLimit
	}
	if c.ResultLimit > c.CandidateLimit {
		c.ResultLimit = c.CandidateLimit
	}
	if c.Deadline <= 0 {
		c.Deadline = d.Deadline
	}
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service is the query-time ranking surface.
type Service interface {
	Search(ctx context.Context, q searchdomain.Query) (*searchdomain.Response, error)
	// Settings returns the fusion parameters in force.
	Settings() Config
	// Retune swaps the fusion parameters for subsequent queries.
	Retune(rc config.RankingConfig) error
}

// Deps wires a Ranker. Authority is required; the other sources are optional
// and a missing source is treated as unavailable.
type Deps struct {
	Lexical   searchdomain.LexicalSource
	Semantic  searchdomain.SemanticSource
	Embedder  searchdomain.Embedder
	Authority AuthoritySource
	Cases     CaseLookup
	Badges    BadgeSource
	Cache     ResultCache
	Metrics   *prometheus.AppMetrics
	Logger    logging.Logger
	Config    Config
}

// Ranker implements Service. It holds no per-query state; the config pointer
// is swapped atomically on Retune.
type Ranker struct {
	lexical   searchdomain.LexicalSource
	semantic  searchdomain.SemanticSource
	embedder  searchdomain.Embedder
	authority AuthoritySource
	cases     CaseLookup
	badges    BadgeSource
	cache     ResultCache
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
	cfg       atomic.Pointer[Config]
}

func NewRanker(deps Deps) (*Ranker, error) {
	if deps.Authority == nil {
		return nil, errors.InvalidParam("search: authority source is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = prometheus.NewNopMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	r := &Ranker{
		lexical:   deps.Lexical,
		semantic:  deps.Semantic,
		embedder:  deps.Embedder,
		authority: deps.Authority,
		cases:     deps.Cases,
		badges:    deps.Badges,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named("ranker"),
	}
	cfg := deps.Config
	cfg.fill()
	r.cfg.Store(&cfg)
	return r, nil
}

func (r *Ranker) Settings() Config { return *r.cfg.Load() }

func (r *Ranker) Retune(rc config.RankingConfig) error {
	if err := rc.ValidateWeights(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidWeights, "rejecting ranking config")
	}
	cfg := ConfigFromSettings(rc)
	r.cfg.Store(&cfg)
	r.logger.Info("Ranking retuned",
		logging.Int("k", cfg.K),
		logging.Float64("lexical", cfg.Weights.Lexical),
		logging.Float64("semantic", cfg.Weights.Semantic),
		logging.Float64("authority", cfg.Weights.Authority))
	return nil
}

// listResult is what one retrieval goroutine reports.
type listResult struct {
	source     searchdomain.Source
	candidates []searchdomain.Candidate
	err        error
}

// Search runs the configured sources, fuses what comes back before the
// deadline and enriches the top results. A failing or missing source never
// fails the query: the response is marked Degraded and fusion proceeds over
// the lists present, down to authority alone.
func (r *Ranker) Search(ctx context.Context, q searchdomain.Query) (resp *searchdomain.Response, err error) {
	start := time.Now()
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	cfg := r.Settings()
	weights := cfg.Weights
	if q.Weights != nil {
		weights = *q.Weights
	}
	limit := q.Limit
	if limit <= 0 {
		limit = cfg.ResultLimit
	}
	limit = min(limit, cfg.CandidateLimit)

	defer func() {
		n := 0
		if resp != nil {
			n = len(resp.Results)
		}
		r.metrics.RecordSearch(string(q.Mode), time.Since(start), n, err)
	}()

	hash := requestHash(q, weights, limit, cfg.K)
	if r.cache != nil {
		var cached searchdomain.Response
		hit, cerr := r.cache.Get(ctx, hash, &cached)
		if cerr != nil {
			r.logger.Warn("Search cache read failed", logging.Err(cerr))
		}
		r.metrics.RecordCacheAccess("search", hit)
		if hit {
			cached.Cached = true
			return &cached, nil
		}
	}

	rctx, cancel := context.WithTimeout(ctx, cfg.Deadline)
	defer cancel()

	resp = &searchdomain.Response{Results: []searchdomain.Result{}, Sources: []searchdomain.Source{}}
	var lists []RankedList

	// Topical lists run concurrently.
	wantLexical, wantSemantic := r.plan(q, weights)
	if q.Mode == searchdomain.ModeSemantic && wantSemantic && !r.semanticReady() {
		resp.Degraded = true
		r.metrics.SearchDegraded.WithLabelValues(string(searchdomain.SourceSemantic)).Inc()
		wantSemantic, wantLexical = false, r.lexical != nil && q.Text != ""
		weights.Lexical = max(weights.Lexical, weights.Semantic)
	}
	pending := 0
	results := make(chan listResult, 2)
	if wantLexical {
		if r.lexical == nil {
			r.degrade(resp, searchdomain.SourceLexical, nil)
		} else {
			pending++
			go func() {
				c, err := r.lexical.SearchCases(rctx, q.Text, q.Filter, cfg.CandidateLimit)
				results <- listResult{searchdomain.SourceLexical, c, err}
			}()
		}
	}
	if wantSemantic {
		if !r.semanticReady() {
			r.degrade(resp, searchdomain.SourceSemantic, nil)
		} else {
			pending++
			go func() {
				c, err := r.searchSemantic(rctx, q.Text, q.Filter, cfg.CandidateLimit)
				results <- listResult{searchdomain.SourceSemantic, c, err}
			}()
		}
	}

collect:
	for pending > 0 {
		select {
		case res := <-results:
			pending--
			if res.err != nil {
				r.degrade(resp, res.source, res.err)
				continue
			}
			resp.Sources = append(resp.Sources, res.source)
			lists = append(lists, RankedList{Source: res.source, Candidates: res.candidates})
		case <-rctx.Done():
			resp.Partial = true
			r.logger.Warn("Search deadline reached before all sources answered",
				logging.Int("pending", pending), logging.Duration("deadline", cfg.Deadline))
			break collect
		}
	}

	union := candidateUnion(lists)
	if len(union) == 0 {
		// Nothing topical: authority alone orders the corpus.
		if q.Text != "" && (wantLexical || wantSemantic) {
			resp.Degraded = true
		}
		weights = searchdomain.Weights{Authority: 1}
	}
	if weights.Authority > 0 && rctx.Err() == nil {
		filter := citation.AuthorityFilter{CaseIDs: union, Jurisdiction: q.Filter.Jurisdiction, DateRange: q.Filter.DateRange}
		n := len(union)
		if n == 0 {
			n = cfg.CandidateLimit
		}
		entries, aerr := r.authority.MostCited(rctx, filter, n)
		if aerr != nil {
			r.degrade(resp, searchdomain.SourceAuthority, aerr)
		} else {
			resp.Sources = append(resp.Sources, searchdomain.SourceAuthority)
			lists = append(lists, RankedList{Source: searchdomain.SourceAuthority, Candidates: AuthorityList(entries)})
		}
	} else if rctx.Err() != nil {
		resp.Partial = true
	}

	fused := Fuse(lists, weights, cfg.K)
	ectx, ecancel := context.WithTimeout(ctx, cfg.Deadline)
	defer ecancel()
	resp.Results, err = r.enrich(ectx, fused, q.Filter, limit)
	if err != nil {
		return nil, err
	}
	if ectx.Err() != nil {
		resp.Partial = true
		r.logger.Warn("Search enrichment deadline reached; remaining badges default to good",
			logging.Duration("deadline", cfg.Deadline))
	}

	if r.cache != nil && !resp.Partial && !resp.Degraded {
		if cerr := r.cache.Set(ctx, hash, resp); cerr != nil {
			r.logger.Warn("Search cache write failed", logging.Err(cerr))
		}
	}
	return resp, nil
}

func (r *Ranker) plan(q searchdomain.Query, w searchdomain.Weights) (lexical, semantic bool) {
	if q.Text == "" {
		return false, false
	}
	switch q.Mode {
	case searchdomain.ModeKeyword:
		return true, false
	case searchdomain.ModeSemantic:
		return false, true
	}
	return w.Lexical > 0, w.Semantic > 0
}

func (r *Ranker) semanticReady() bool { return r.semantic != nil && r.embedder != nil }

func (r *Ranker) searchSemantic(ctx context.Context, text string, filter searchdomain.Filter, limit int) ([]searchdomain.Candidate, error) {
	vec, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.semantic.SearchSimilar(ctx, vec, filter, limit)
}

func (r *Ranker) degrade(resp *searchdomain.Response, source searchdomain.Source, err error) {
	resp.Degraded = true
	r.metrics.SearchDegraded.WithLabelValues(string(source)).Inc()
	if err != nil {
		r.logger.Warn("Ranking source unavailable", logging.String("source", string(source)), logging.Err(err))
	}
}

// enrich attaches case metadata and badges, applies the court filter the
// sources cannot express, and drops hits for cases no longer in the corpus.
func (r *Ranker) enrich(ctx context.Context, fused []searchdomain.Result, filter searchdomain.Filter, limit int) ([]searchdomain.Result, error) {
	if r.cases == nil {
		if len(fused) > limit {
			fused = fused[:limit]
		}
		return r.attachBadges(ctx, fused), nil
	}

	courts := make(map[string]bool, len(filter.CourtIDs))
	for _, id := range filter.CourtIDs {
		courts[id] = true
	}
	out := make([]searchdomain.Result, 0, limit)
	for from := 0; from < len(fused) && len(out) < limit; {
		to := min(from+limit, len(fused))
		ids := make([]string, 0, to-from)
		for _, f := range fused[from:to] {
			ids = append(ids, f.CaseID)
		}
		cases, err := r.cases.GetCases(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, f := range fused[from:to] {
			c, ok := cases[f.CaseID]
			if !ok {
				r.logger.Debug("Dropping hit for unknown case", logging.CaseID(f.CaseID))
				continue
			}
			if len(courts) > 0 && !courts[c.CourtID] {
				continue
			}
			f.Title, f.CourtName, f.DecisionDate = c.Title, c.CourtName, c.DecisionDate
			if len(c.Citations) > 0 {
				f.Citation = c.Citations[0]
			}
			out = append(out, f)
			if len(out) == limit {
				break
			}
		}
		from = to
	}
	return r.attachBadges(ctx, out), nil
}

const badgeLookups = 8

// attachBadges looks badges up concurrently. A hit whose lookup fails or
// outlives ctx keeps the good badge.
func (r *Ranker) attachBadges(ctx context.Context, results []searchdomain.Result) []searchdomain.Result {
	for i := range results {
		results[i].Badge = citation.BadgeGood
	}
	if r.badges == nil || len(results) == 0 {
		return results
	}
	var g errgroup.Group
	g.SetLimit(badgeLookups)
	for i := range results {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			v, err := r.badges.GetBadge(ctx, results[i].CaseID)
			if err != nil {
				r.logger.Debug("Badge unavailable for search hit", logging.CaseID(results[i].CaseID), logging.Err(err))
				return nil
			}
			results[i].Badge = v.Badge
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func candidateUnion(lists []RankedList) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, c := range l.Candidates {
			if _, ok := seen[c.CaseID]; ok || c.CaseID == "" {
				continue
			}
			seen[c.CaseID] = struct{}{}
			out = append(out, c.CaseID)
		}
	}
	return out
}

// requestHash keys the result cache. Query text is case-folded.
func requestHash(q searchdomain.Query, w searchdomain.Weights, limit, k int) string {
	key := struct {
		Text    string               `json:"t"`
		Mode    searchdomain.Mode    `json:"m"`
		Filter  searchdomain.Filter  `json:"f"`
		Weights searchdomain.Weights `json:"w"`
		Limit   int                  `json:"l"`
		K       int                  `json:"k"`
	}{strings.ToLower(q.Text), q.Mode, q.Filter, w, limit, k}
	b, _ := json.Marshal(key)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

//Personal.AI order the ending
