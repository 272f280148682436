package search

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/application/citator"
	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/domain/citation"
	searchdomain "github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/database/memory"
	"github.com/sagerock/ai-law-research/internal/testutil"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

type fakeLexical struct {
	ids   []string
	err   error
	block bool
	calls atomic.Int32
}

func (f *fakeLexical) SearchCases(ctx context.Context, _ string, _ searchdomain.Filter, limit int) ([]searchdomain.Candidate, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return list(searchdomain.SourceLexical, f.ids...).Candidates, nil
}

type fakeSemantic struct {
	ids   []string
	err   error
	calls atomic.Int32
}

func (f *fakeSemantic) SearchSimilar(_ context.Context, vec []float32, _ searchdomain.Filter, _ int) ([]searchdomain.Candidate, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return list(searchdomain.SourceSemantic, f.ids...).Candidates, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }
func (fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func seedCorpus(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	for _, c := range []*citation.Case{
		{ID: "a", Title: "Alpha v. Beta", CourtID: "scotus", Jurisdiction: "federal", DecisionDate: testutil.Date(2001, 1, 1), Citations: []string{"1 U.S. 1"}},
		{ID: "b", Title: "Gamma v. Delta", CourtID: "ca9", Jurisdiction: "federal", DecisionDate: testutil.Date(2002, 1, 1), Citations: []string{"2 U.S. 2"}},
		{ID: "c", Title: "Epsilon v. Zeta", CourtID: "scotus", Jurisdiction: "federal", DecisionDate: testutil.Date(2003, 1, 1), Citations: []string{"3 U.S. 3"}},
		{ID: "d", Title: "Eta v. Theta", CourtID: "cal", Jurisdiction: "california", DecisionDate: testutil.Date(2004, 1, 1)},
	} {
		_, err := store.UpsertCase(ctx, c)
		require.NoError(t, err)
	}
	// In-degrees: c=3, d=2, b=1.
	for _, e := range []citation.Edge{
		{SourceID: "a", TargetID: "c"}, {SourceID: "b", TargetID: "c"}, {SourceID: "d", TargetID: "c"},
		{SourceID: "a", TargetID: "d"}, {SourceID: "b", TargetID: "d"},
		{SourceID: "a", TargetID: "b"},
	} {
		e.Signal, e.Confidence = citation.SignalCited, 0.9
		_, err := store.UpsertEdge(ctx, &e)
		require.NoError(t, err)
	}
	return store
}

func newTestRanker(t *testing.T, store *memory.Store, deps Deps) *Ranker {
	t.Helper()
	deps.Authority = store
	deps.Cases = store
	r, err := NewRanker(deps)
	require.NoError(t, err)
	return r
}

func TestNewRanker_RequiresAuthority(t *testing.T) {
	_, err := NewRanker(Deps{})
	assert.Error(t, err)
}

func TestSearch_HybridFusesAllSources(t *testing.T) {
	store := seedCorpus(t)
	lex := &fakeLexical{ids: []string{"a", "b"}}
	sem := &fakeSemantic{ids: []string{"b", "c"}}
	r := newTestRanker(t, store, Deps{Lexical: lex, Semantic: sem, Embedder: fakeEmbedder{}})

	resp, err := r.Search(context.Background(), searchdomain.Query{Text: "statute of frauds"})
	require.NoError(t, err)
	assert.False(t, resp.Degraded)
	assert.ElementsMatch(t, []searchdomain.Source{searchdomain.SourceLexical, searchdomain.SourceSemantic, searchdomain.SourceAuthority}, resp.Sources)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "b", resp.Results[0].CaseID)
	assert.Equal(t, "Gamma v. Delta", resp.Results[0].Title)
	assert.Equal(t, "2 U.S. 2", resp.Results[0].Citation)
	assert.Equal(t, citation.BadgeGood, resp.Results[0].Badge)

	// Authority is restricted to the topical candidates, so d never appears.
	assert.NotContains(t, ids(resp.Results), "d")
}

func TestSearch_SemanticFailureDegradesToLexicalPlusAuthority(t *testing.T) {
	store := seedCorpus(t)
	lex := &fakeLexical{ids: []string{"a", "b", "c"}}
	sem := &fakeSemantic{err: errors.New(errors.ErrCodeSearchUnavailable, "milvus down")}
	r := newTestRanker(t, store, Deps{Lexical: lex, Semantic: sem, Embedder: fakeEmbedder{}})

	resp, err := r.Search(context.Background(), searchdomain.Query{Text: "contract"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []searchdomain.Source{searchdomain.SourceLexical, searchdomain.SourceAuthority}, resp.Sources)

	entries, err := store.MostCited(context.Background(), citation.AuthorityFilter{CaseIDs: []string{"a", "b", "c"}}, 3)
	require.NoError(t, err)
	want := Fuse([]RankedList{
		list(searchdomain.SourceLexical, "a", "b", "c"),
		{Source: searchdomain.SourceAuthority, Candidates: AuthorityList(entries)},
	}, r.Settings().Weights, r.Settings().K)
	assert.Equal(t, ids(want), ids(resp.Results))
}

func TestSearch_NoEmbedderIsDegradedNotFailed(t *testing.T) {
	store := seedCorpus(t)
	r := newTestRanker(t, store, Deps{Lexical: &fakeLexical{ids: []string{"a"}}})

	resp, err := r.Search(context.Background(), searchdomain.Query{Text: "contract"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []string{"a"}, ids(resp.Results))
}

func TestSearch_AuthorityOnlyWhenNothingMatches(t *testing.T) {
	store := seedCorpus(t)
	r := newTestRanker(t, store, Deps{Lexical: &fakeLexical{}})

	resp, err := r.Search(context.Background(), searchdomain.Query{Text: "no such words", Mode: searchdomain.ModeKeyword})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []searchdomain.Source{searchdomain.SourceLexical, searchdomain.SourceAuthority}, resp.Sources)
	assert.Equal(t, []string{"c", "d", "b"}, ids(resp.Results))
}

func TestSearch_AuthorityFilterAndCourtFilter(t *testing.T) {
	store := seedCorpus(t)
	r := newTestRanker(t, store, Deps{})

	resp, err := r.Search(context.Background(), searchdomain.Query{Filter: searchdomain.Filter{Jurisdiction: "federal"}})
	require.NoError(t, err)
	assert.False(t, resp.Degraded)
	assert.Equal(t, []string{"c", "b"}, ids(resp.Results))

	resp, err = r.Search(context.Background(), searchdomain.Query{Filter: searchdomain.Filter{CourtIDs: []string{"scotus"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(resp.Results))
}

func TestSearch_KeywordModeSkipsSemantic(t *testing.T) {
	store := seedCorpus(t)
	lex := &fakeLexical{ids: []string{"a"}}
	sem := &fakeSemantic{ids: []string{"b"}}
	r := newTestRanker(t, store, Deps{Lexical: lex, Semantic: sem, Embedder: fakeEmbedder{}})

	_, err := r.Search(context.Background(), searchdomain.Query{Text: "x", Mode: searchdomain.ModeKeyword})
	require.NoError(t, err)
	assert.Zero(t, sem.calls.Load())

	_, err = r.Search(context.Background(), searchdomain.Query{Text: "y", Mode: searchdomain.ModeSemantic})
	require.NoError(t, err)
	assert.Equal(t, int32(1), lex.calls.Load())
	assert.Equal(t, int32(1), sem.calls.Load())
}

func TestSearch_SemanticModeWithoutVectorsFallsBackToLexical(t *testing.T) {
	store := seedCorpus(t)
	lex := &fakeLexical{ids: []string{"a"}}
	r := newTestRanker(t, store, Deps{Lexical: lex})

	resp, err := r.Search(context.Background(), searchdomain.Query{Text: "y", Mode: searchdomain.ModeSemantic})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []string{"a"}, ids(resp.Results))
}

func TestSearch_DeadlineReturnsPartialFusion(t *testing.T) {
	store := seedCorpus(t)
	lex := &fakeLexical{block: true}
	sem := &fakeSemantic{ids: []string{"c", "a"}}
	r := newTestRanker(t, store, Deps{
		Lexical: lex, Semantic: sem, Embedder: fakeEmbedder{},
		Config: Config{Deadline: 50 * time.Millisecond},
	})

	start := time.Now()
	resp, err := r.Search(context.Background(), searchdomain.Query{Text: "slow"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, resp.Partial)
	assert.Equal(t, []string{"c", "a"}, ids(resp.Results))
}

type slowBadges struct {
	block map[string]bool
	calls atomic.Int32
}

func (s *slowBadges) GetBadge(ctx context.Context, caseID string) (*citator.BadgeView, error) {
	s.calls.Add(1)
	if s.block[caseID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &citator.BadgeView{CaseID: caseID, Badge: citation.BadgeCaution}, nil
}

func TestSearch_BadgeLookupsAreBoundedByDeadline(t *testing.T) {
	store := seedCorpus(t)
	badges := &slowBadges{block: map[string]bool{"a": true}}
	r := newTestRanker(t, store, Deps{
		Lexical: &fakeLexical{ids: []string{"a", "c", "b"}},
		Badges:  badges,
		Config:  Config{Deadline: 50 * time.Millisecond},
	})

	start := time.Now()
	resp, err := r.Search(context.Background(), searchdomain.Query{Text: "x", Mode: searchdomain.ModeKeyword})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, resp.Partial)
	assert.Equal(t, int32(3), badges.calls.Load())

	byID := map[string]citation.Badge{}
	for _, res := range resp.Results {
		byID[res.CaseID] = res.Badge
	}
	assert.Equal(t, citation.BadgeGood, byID["a"])
	assert.Equal(t, citation.BadgeCaution, byID["c"])
	assert.Equal(t, citation.BadgeCaution, byID["b"])
}

func TestSearch_CachesCompleteResponses(t *testing.T) {
	store := seedCorpus(t)
	lex := &fakeLexical{ids: []string{"a", "c"}}
	r := newTestRanker(t, store, Deps{
		Lexical: lex, Semantic: &fakeSemantic{ids: []string{"c"}}, Embedder: fakeEmbedder{},
		Cache: memory.NewSearchCache(time.Minute),
	})
	q := searchdomain.Query{Text: "Cached Query"}

	first, err := r.Search(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := r.Search(context.Background(), searchdomain.Query{Text: "cached query"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, ids(first.Results), ids(second.Results))
	assert.Equal(t, int32(1), lex.calls.Load())

	w := searchdomain.Weights{Lexical: 1}
	_, err = r.Search(context.Background(), searchdomain.Query{Text: "cached query", Weights: &w})
	require.NoError(t, err)
	assert.Equal(t, int32(2), lex.calls.Load())
}

func TestSearch_RejectsBadQueries(t *testing.T) {
	r := newTestRanker(t, seedCorpus(t), Deps{})
	_, err := r.Search(context.Background(), searchdomain.Query{Mode: "fuzzy"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	w := searchdomain.Weights{}
	_, err = r.Search(context.Background(), searchdomain.Query{Text: "x", Weights: &w})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidWeights))
}

func TestSearch_DropsCasesMissingFromCorpus(t *testing.T) {
	store := seedCorpus(t)
	r := newTestRanker(t, store, Deps{Lexical: &fakeLexical{ids: []string{"ghost", "a"}}})
	resp, err := r.Search(context.Background(), searchdomain.Query{Text: "x", Mode: searchdomain.ModeKeyword, Limit: 5})
	require.NoError(t, err)
	assert.NotContains(t, ids(resp.Results), "ghost")
	assert.Contains(t, ids(resp.Results), "a")
}

func TestRetune(t *testing.T) {
	r := newTestRanker(t, seedCorpus(t), Deps{})
	assert.Equal(t, 60, r.Settings().K)

	rc := config.RankingConfig{K: 10, LexicalWeight: 2, SemanticWeight: 0, AuthorityWeight: 1}
	require.NoError(t, r.Retune(rc))
	s := r.Settings()
	assert.Equal(t, 10, s.K)
	assert.Equal(t, searchdomain.Weights{Lexical: 2, Authority: 1}, s.Weights)

	err := r.Retune(config.RankingConfig{K: 10})
	assert.Error(t, err)
	assert.Equal(t, 10, r.Settings().K)
}

//Personal.AI order the ending
