package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/domain/ingestion"
	"github.com/sagerock/ai-law-research/pkg/errors"
	"github.com/sagerock/ai-law-research/pkg/types/common"
)

func date(y int) *time.Time {
	d := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	return &d
}

func seed(t *testing.T, s *Store, cases ...*citation.Case) {
	t.Helper()
	for _, c := range cases {
		_, err := s.UpsertCase(context.Background(), c)
		require.NoError(t, err)
	}
}

func edge(src, dst string, sig citation.Signal, para int) *citation.Edge {
	return &citation.Edge{SourceID: src, TargetID: dst, Signal: sig, Confidence: 0.9, Paragraph: para}
}

func TestUpsertCase_CreatedThenUpdated(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	created, err := s.UpsertCase(ctx, &citation.Case{ID: "a", Title: "A", ContentHash: "h1"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.UpsertCase(ctx, &citation.Case{ID: "a", Title: "A2", ContentHash: "h2"})
	require.NoError(t, err)
	assert.False(t, created)

	hash, found, err := s.ContentHash(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "h2", hash)

	_, found, _ = s.ContentHash(ctx, "missing")
	assert.False(t, found)

	_, err = s.GetCase(ctx, "missing")
	assert.True(t, errors.IsCode(err, errors.ErrCodeCaseNotFound))

	_, err = s.UpsertCase(ctx, &citation.Case{})
	assert.Error(t, err)
}

func TestUpsertEdge_IdempotentLatestSignalWins(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, &citation.Case{ID: "src"}, &citation.Case{ID: "dst"})

	res, err := s.UpsertEdge(ctx, edge("src", "dst", citation.SignalFollowed, 2))
	require.NoError(t, err)
	assert.Equal(t, citation.OutcomeCreated, res.Outcome)

	res, err = s.UpsertEdge(ctx, edge("src", "dst", citation.SignalFollowed, 2))
	require.NoError(t, err)
	assert.Equal(t, citation.OutcomeUnchanged, res.Outcome)
	assert.False(t, res.Changed())

	res, err = s.UpsertEdge(ctx, edge("src", "dst", citation.SignalCriticized, 2))
	require.NoError(t, err)
	assert.Equal(t, citation.OutcomeUpdated, res.Outcome)
	assert.Equal(t, citation.SignalFollowed, res.PreviousSignal)

	into, err := s.EdgesInto(ctx, "dst", 0)
	require.NoError(t, err)
	require.Len(t, into, 1)
	assert.Equal(t, citation.SignalCriticized, into[0].Signal)

	in, out, err := s.CountEdges(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, 1, in)
	assert.Equal(t, 0, out)

	_, err = s.UpsertEdge(ctx, edge("src", "src", citation.SignalCited, 0))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidEdge))
}

func TestEdges_OrderedByNeighbourDateDesc(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s,
		&citation.Case{ID: "target", DecisionDate: date(1950)},
		&citation.Case{ID: "old", DecisionDate: date(1990)},
		&citation.Case{ID: "new", DecisionDate: date(2020)},
		&citation.Case{ID: "undated"},
	)
	for _, src := range []string{"old", "undated", "new"} {
		_, err := s.UpsertEdge(ctx, edge(src, "target", citation.SignalCited, 0))
		require.NoError(t, err)
	}
	into, err := s.EdgesInto(ctx, "target", 0)
	require.NoError(t, err)
	var ids []string
	for _, v := range into {
		ids = append(ids, v.Neighbor.ID)
	}
	assert.Equal(t, []string{"new", "old", "undated"}, ids)

	limited, err := s.EdgesInto(ctx, "target", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = s.UpsertEdge(ctx, edge("new", "old", citation.SignalFollowed, 1))
	require.NoError(t, err)
	from, err := s.EdgesFrom(ctx, "new", 0)
	require.NoError(t, err)
	require.Len(t, from, 2)
	assert.Equal(t, "old", from[0].Neighbor.ID)
	assert.Equal(t, "target", from[1].Neighbor.ID)
}

func TestDanglingTargetAndReattach(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, &citation.Case{ID: "src"})

	e := edge("src", "future", citation.SignalCited, 0)
	_, err := s.UpsertEdge(ctx, e)
	require.NoError(t, err)
	assert.True(t, e.Dangling)

	seed(t, s, &citation.Case{ID: "future"})
	n, err := s.ReattachDangling(ctx, "future")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	into, err := s.EdgesInto(ctx, "future", 0)
	require.NoError(t, err)
	require.Len(t, into, 1)
	assert.False(t, into[0].Dangling)
}

func TestDeleteCase_CascadesSourceKeepsTargetDangling(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, &citation.Case{ID: "a"}, &citation.Case{ID: "b"}, &citation.Case{ID: "c"})

	_, _ = s.UpsertEdge(ctx, edge("b", "c", citation.SignalFollowed, 0)) // b cites c
	_, _ = s.UpsertEdge(ctx, edge("a", "b", citation.SignalOverruled, 0)) // a cites b

	require.NoError(t, s.DeleteCase(ctx, "b"))

	into, _ := s.EdgesInto(ctx, "c", 0)
	assert.Empty(t, into, "edges from the deleted case are removed")

	intoB, _ := s.EdgesInto(ctx, "b", 0)
	require.Len(t, intoB, 1, "edges into the deleted case are retained")
	assert.True(t, intoB[0].Dangling)

	// Re-ingesting b reattaches its history.
	seed(t, s, &citation.Case{ID: "b"})
	n, err := s.ReattachDangling(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	signals, _ := s.InboundSignals(ctx, "b")
	assert.Equal(t, citation.BadgeNegative, citation.ComputeBadge(signals))

	assert.True(t, errors.IsNotFound(s.DeleteCase(ctx, "zzz")))
}

func TestRemoveEdge(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, &citation.Case{ID: "a"}, &citation.Case{ID: "b"})
	e := edge("a", "b", citation.SignalOverruled, 3)
	_, _ = s.UpsertEdge(ctx, e)

	removed, err := s.RemoveEdge(ctx, e.Key())
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.RemoveEdge(ctx, e.Key())
	require.NoError(t, err)
	assert.False(t, removed)

	from, _ := s.EdgesFrom(ctx, "a", 0)
	assert.Empty(t, from)
}

func TestConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, &citation.Case{ID: "hub"})
	for w := 0; w < 16; w++ {
		seed(t, s, &citation.Case{ID: fmt.Sprintf("src-%d", w)})
	}

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				src := fmt.Sprintf("src-%d", w)
				sig := citation.SignalCited
				if i%2 == 1 {
					sig = citation.SignalFollowed
				}
				_, err := s.UpsertEdge(ctx, edge(src, "hub", sig, i%5))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	in, _, err := s.CountEdges(ctx, "hub")
	require.NoError(t, err)
	assert.Equal(t, 16*5, in)
}

func TestUpsertEdge_UnknownSourceRejected(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, &citation.Case{ID: "dst"})

	_, err := s.UpsertEdge(ctx, edge("ghost", "dst", citation.SignalCited, 0))
	assert.True(t, errors.IsCode(err, errors.ErrCodeCaseNotFound))
	in, _, err := s.CountEdges(ctx, "dst")
	require.NoError(t, err)
	assert.Zero(t, in)
}

func TestEdgesByOrigin_HistoryEdgesKeyedApart(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, &citation.Case{ID: "memo"}, &citation.Case{ID: "brown"}, &citation.Case{ID: "smith"})

	own := edge("brown", "smith", citation.SignalFollowed, 2)
	history := edge("brown", "smith", citation.SignalOverruled, 2)
	history.OriginID = "memo"
	_, err := s.UpsertEdge(ctx, own)
	require.NoError(t, err)
	res, err := s.UpsertEdge(ctx, history)
	require.NoError(t, err)
	assert.Equal(t, citation.OutcomeCreated, res.Outcome)

	in, from, err := s.CountEdges(ctx, "smith")
	require.NoError(t, err)
	assert.Equal(t, 2, in)
	assert.Zero(t, from)

	byBrown, err := s.EdgesByOrigin(ctx, "brown")
	require.NoError(t, err)
	require.Len(t, byBrown, 1)
	assert.Equal(t, citation.SignalFollowed, byBrown[0].Signal)

	byMemo, err := s.EdgesByOrigin(ctx, "memo")
	require.NoError(t, err)
	require.Len(t, byMemo, 1)
	assert.Equal(t, "memo", byMemo[0].OriginID)

	fromBrown, err := s.EdgesFrom(ctx, "brown", 0)
	require.NoError(t, err)
	assert.Len(t, fromBrown, 2)

	require.NoError(t, s.DeleteCase(ctx, "memo"))
	in, _, err = s.CountEdges(ctx, "smith")
	require.NoError(t, err)
	assert.Equal(t, 1, in)
	byMemo, err = s.EdgesByOrigin(ctx, "memo")
	require.NoError(t, err)
	assert.Empty(t, byMemo)
}

func TestSetContentHash(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, &citation.Case{ID: "a", ContentHash: "old"})

	require.NoError(t, s.SetContentHash(ctx, "a", "new"))
	h, found, err := s.ContentHash(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "new", h)

	assert.True(t, errors.IsCode(s.SetContentHash(ctx, "ghost", "x"), errors.ErrCodeCaseNotFound))
}

func TestClearUnresolvedAndStats(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, &citation.Case{ID: "a"}, &citation.Case{ID: "b"})
	_, err := s.UpsertEdge(ctx, edge("a", "b", citation.SignalCited, 0))
	require.NoError(t, err)
	_, err = s.UpsertEdge(ctx, edge("a", "later", citation.SignalCited, 1))
	require.NoError(t, err)

	for _, u := range []*citation.UnresolvedCitation{
		{SourceID: "a", LookupKey: "1 U.S. 1", Paragraph: 0},
		{SourceID: "a", LookupKey: "2 U.S. 2", Paragraph: 1},
		{SourceID: "b", LookupKey: "1 U.S. 1", Paragraph: 0},
	} {
		require.NoError(t, s.RecordUnresolved(ctx, u))
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, citation.CorpusStats{Cases: 2, Edges: 2, Dangling: 1, Unresolved: 3}, st)

	n, err := s.ClearUnresolved(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, s.UnresolvedCount())

	left, err := s.TakeUnresolved(ctx, []string{"1 U.S. 1"})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "b", left[0].SourceID)
}

func TestUnresolvedRecordAndTake(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	u := &citation.UnresolvedCitation{SourceID: "a", Raw: "456 U.S. 789", LookupKey: "456 U.S. 789", Paragraph: 1}
	require.NoError(t, s.RecordUnresolved(ctx, u))
	require.NoError(t, s.RecordUnresolved(ctx, u))
	assert.Equal(t, 1, s.UnresolvedCount())

	got, err := s.TakeUnresolved(ctx, []string{"456 U.S. 789", "1 U.S. 1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].SourceID)
	assert.Zero(t, s.UnresolvedCount())

	assert.Error(t, s.RecordUnresolved(ctx, &citation.UnresolvedCitation{SourceID: "a"}))
}

func TestMostCited(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s,
		&citation.Case{ID: "a", Jurisdiction: "federal", DecisionDate: date(2000)},
		&citation.Case{ID: "b", Jurisdiction: "state", DecisionDate: date(1980)},
		&citation.Case{ID: "c", Jurisdiction: "federal", DecisionDate: date(2010)},
	)
	_, _ = s.UpsertEdge(ctx, edge("b", "a", citation.SignalCited, 0))
	_, _ = s.UpsertEdge(ctx, edge("c", "a", citation.SignalOverruled, 0))
	_, _ = s.UpsertEdge(ctx, edge("a", "b", citation.SignalFollowed, 0))

	all, err := s.MostCited(ctx, citation.AuthorityFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].CaseID)
	assert.Equal(t, 2, all[0].InDegree)
	assert.Equal(t, citation.BadgeNegative, all[0].Badge)

	fed, _ := s.MostCited(ctx, citation.AuthorityFilter{Jurisdiction: "federal"}, 10)
	require.Len(t, fed, 1)
	assert.Equal(t, "a", fed[0].CaseID)

	subset, _ := s.MostCited(ctx, citation.AuthorityFilter{CaseIDs: []string{"b", "c"}}, 10)
	require.Len(t, subset, 1)
	assert.Equal(t, "b", subset[0].CaseID)

	dated, _ := s.MostCited(ctx, citation.AuthorityFilter{DateRange: common.DateRange{To: date(1990)}}, 10)
	require.Len(t, dated, 1)
	assert.Equal(t, "b", dated[0].CaseID)

	got, _ := s.GetCase(ctx, "a")
	assert.Equal(t, 2, got.CitationCount)
}

func TestScanCitationRefs(t *testing.T) {
	s := NewStore()
	seed(t, s,
		&citation.Case{ID: "a", Title: "A v. B", Citations: []string{"1 U.S. 1"}},
		&citation.Case{ID: "b", Citations: []string{"2 U.S. 2", "3 S. Ct. 3"}},
	)
	seen := map[string]int{}
	err := s.ScanCitationRefs(context.Background(), func(r citation.CaseRef) error {
		seen[r.ID] = len(r.Citations)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, seen)
}

func TestJobStore_MonotonicStatus(t *testing.T) {
	ctx := context.Background()
	s := NewJobStore()
	j := ingestion.NewJob("minio://feeds/cases.jsonl")
	require.NoError(t, s.CreateJob(ctx, j))
	assert.Error(t, s.CreateJob(ctx, j))

	require.NoError(t, j.TransitionTo(ingestion.StatusRunning))
	require.NoError(t, s.UpdateStatus(ctx, j))

	require.NoError(t, s.SaveProgress(ctx, j.ID, ingestion.Progress{RecordsProcessed: 10, CommittedOffset: 10}))
	require.NoError(t, s.SaveProgress(ctx, j.ID, ingestion.Progress{RecordsProcessed: 12, CommittedOffset: 4}))

	require.NoError(t, j.TransitionTo(ingestion.StatusSucceeded))
	require.NoError(t, s.UpdateStatus(ctx, j))

	stale := *j
	stale.Status = ingestion.StatusRunning
	err := s.UpdateStatus(ctx, &stale)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidJobTransition))

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusSucceeded, got.Status)
	assert.Equal(t, int64(10), got.CommittedOffset)
	assert.Equal(t, int64(12), got.RecordsProcessed)

	_, err = s.GetJob(ctx, "nope")
	assert.True(t, errors.IsCode(err, errors.ErrCodeJobNotFound))

	list, err := s.ListJobs(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

//Personal.AI order the ending
