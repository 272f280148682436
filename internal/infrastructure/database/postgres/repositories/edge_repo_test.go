package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	pkgerrors "github.com/sagerock/ai-law-research/pkg/errors"
)

var prevEdgeColumns = []string{"signal", "confidence", "snippet", "dangling", "created_at", "updated_at"}

func (s *CitationStoreTestSuite) expectInsertEdge(inserted bool) {
	now := time.Now()
	s.mock.ExpectQuery("INSERT INTO citation_edges").
		WillReturnRows(sqlmock.NewRows([]string{"inserted", "created_at", "updated_at"}).AddRow(inserted, now, now))
}

func (s *CitationStoreTestSuite) TestUpsertEdge_Created() {
	e := &citation.Edge{SourceID: "brown", TargetID: "smith", Paragraph: 2, Signal: citation.SignalOverruled, Confidence: 0.9}

	s.mock.ExpectBegin()
	s.mock.ExpectQuery("SELECT signal, confidence, snippet, dangling, created_at, updated_at FROM citation_edges").
		WithArgs("brown", "smith", 2, "").
		WillReturnError(sql.ErrNoRows)
	s.mock.ExpectQuery("SELECT EXISTS").
		WithArgs("smith").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	s.expectInsertEdge(true)
	s.mock.ExpectExec("UPDATE cases SET citation_count = citation_count \\+ 1 WHERE id = \\$1").
		WithArgs("smith").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	res, err := s.store.UpsertEdge(context.Background(), e)
	s.Require().NoError(err)
	s.Equal(citation.OutcomeCreated, res.Outcome)
	s.False(e.Dangling)
}

func (s *CitationStoreTestSuite) TestUpsertEdge_IdenticalIsUnchanged() {
	e := &citation.Edge{SourceID: "brown", TargetID: "smith", Paragraph: 2, Signal: citation.SignalCited, Confidence: 0.9, Snippet: "see Smith"}
	now := time.Now()

	s.mock.ExpectBegin()
	s.mock.ExpectQuery("SELECT signal, confidence").
		WillReturnRows(sqlmock.NewRows(prevEdgeColumns).AddRow("cited", 0.9, "see Smith", false, now, now))
	s.mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	s.mock.ExpectCommit()

	res, err := s.store.UpsertEdge(context.Background(), e)
	s.Require().NoError(err)
	s.Equal(citation.OutcomeUnchanged, res.Outcome)
	s.False(res.Changed())
}

func (s *CitationStoreTestSuite) TestUpsertEdge_UpdatedReportsPreviousSignal() {
	e := &citation.Edge{SourceID: "brown", TargetID: "smith", Paragraph: 2, Signal: citation.SignalOverruled, Confidence: 0.9}
	now := time.Now()

	s.mock.ExpectBegin()
	s.mock.ExpectQuery("SELECT signal, confidence").
		WillReturnRows(sqlmock.NewRows(prevEdgeColumns).AddRow("followed", 0.9, "", false, now, now))
	s.mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	s.expectInsertEdge(false)
	s.mock.ExpectCommit()

	res, err := s.store.UpsertEdge(context.Background(), e)
	s.Require().NoError(err)
	s.Equal(citation.OutcomeUpdated, res.Outcome)
	s.Equal(citation.SignalFollowed, res.PreviousSignal)
}

func (s *CitationStoreTestSuite) TestUpsertEdge_MissingTargetIsDangling() {
	e := &citation.Edge{SourceID: "brown", TargetID: "later", Signal: citation.SignalCited, Confidence: 0.8}

	s.mock.ExpectBegin()
	s.mock.ExpectQuery("SELECT signal, confidence").WillReturnError(sql.ErrNoRows)
	s.mock.ExpectQuery("SELECT EXISTS").
		WithArgs("later").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	s.mock.ExpectQuery("INSERT INTO citation_edges").
		WithArgs("brown", "later", 0, "", "cited", 0.8, "", true).
		WillReturnRows(sqlmock.NewRows([]string{"inserted", "created_at", "updated_at"}).AddRow(true, time.Now(), time.Now()))
	s.mock.ExpectExec("UPDATE cases SET citation_count").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	_, err := s.store.UpsertEdge(context.Background(), e)
	s.Require().NoError(err)
	s.True(e.Dangling)
}

func (s *CitationStoreTestSuite) TestUpsertEdge_MissingSourceRollsBack() {
	e := &citation.Edge{SourceID: "ghost", TargetID: "smith", Signal: citation.SignalCited, Confidence: 0.8}

	s.mock.ExpectBegin()
	s.mock.ExpectQuery("SELECT signal, confidence").WillReturnError(sql.ErrNoRows)
	s.mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	s.mock.ExpectQuery("INSERT INTO citation_edges").
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation})
	s.mock.ExpectRollback()

	_, err := s.store.UpsertEdge(context.Background(), e)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCaseNotFound))
}

func (s *CitationStoreTestSuite) TestUpsertEdge_InvalidNeverTouchesDatabase() {
	_, err := s.store.UpsertEdge(context.Background(), &citation.Edge{SourceID: "a", TargetID: "a", Signal: citation.SignalCited})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidEdge))

	_, err = s.store.UpsertEdge(context.Background(), &citation.Edge{SourceID: "a", TargetID: "b", Signal: "affirmed"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidSignal))
}

func (s *CitationStoreTestSuite) TestRemoveEdge() {
	key := citation.EdgeKey{SourceID: "brown", TargetID: "smith", Paragraph: 2}

	s.mock.ExpectBegin()
	s.mock.ExpectExec("DELETE FROM citation_edges").
		WithArgs("brown", "smith", 2, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec("UPDATE cases SET citation_count = GREATEST").
		WithArgs("smith").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	s.mock.ExpectBegin()
	s.mock.ExpectExec("DELETE FROM citation_edges").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	removed, err := s.store.RemoveEdge(context.Background(), key)
	s.NoError(err)
	s.True(removed)

	removed, err = s.store.RemoveEdge(context.Background(), key)
	s.NoError(err)
	s.False(removed)
}

func (s *CitationStoreTestSuite) TestUpsertEdge_HistoryEdgeKeyedByOrigin() {
	e := &citation.Edge{SourceID: "brown", TargetID: "smith", Paragraph: 4, OriginID: "memo", Signal: citation.SignalOverruled, Confidence: 0.95}

	s.mock.ExpectBegin()
	s.mock.ExpectQuery("AND origin_id = \\$4\\s+FOR UPDATE").
		WithArgs("brown", "smith", 4, "memo").
		WillReturnError(sql.ErrNoRows)
	s.mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	s.mock.ExpectQuery("ON CONFLICT \\(source_id, target_id, paragraph, origin_id\\)").
		WithArgs("brown", "smith", 4, "memo", "overruled", 0.95, "", false).
		WillReturnRows(sqlmock.NewRows([]string{"inserted", "created_at", "updated_at"}).AddRow(true, time.Now(), time.Now()))
	s.mock.ExpectExec("UPDATE cases SET citation_count = citation_count \\+ 1").
		WithArgs("smith").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	s.mock.ExpectBegin()
	s.mock.ExpectExec("DELETE FROM citation_edges").
		WithArgs("brown", "smith", 4, "memo").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec("UPDATE cases SET citation_count = GREATEST").
		WithArgs("smith").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	res, err := s.store.UpsertEdge(context.Background(), e)
	s.Require().NoError(err)
	s.Equal(citation.OutcomeCreated, res.Outcome)

	removed, err := s.store.RemoveEdge(context.Background(), e.Key())
	s.NoError(err)
	s.True(removed)
}

func (s *CitationStoreTestSuite) TestEdgesByOrigin() {
	now := time.Now()
	s.mock.ExpectQuery("WHERE \\(source_id = \\$1 AND origin_id = ''\\) OR origin_id = \\$1").
		WithArgs("memo").
		WillReturnRows(sqlmock.NewRows([]string{"source_id", "target_id", "paragraph", "origin_id", "signal", "confidence", "snippet", "dangling", "created_at", "updated_at"}).
			AddRow("brown", "smith", 4, "memo", "overruled", 0.95, "", false, now, now).
			AddRow("memo", "brown", 1, "", "cited", 0.9, "", false, now, now))

	edges, err := s.store.EdgesByOrigin(context.Background(), "memo")
	s.Require().NoError(err)
	s.Require().Len(edges, 2)
	s.Equal("memo", edges[0].Origin())
	s.Equal(citation.SignalOverruled, edges[0].Signal)
	s.Equal("memo", edges[1].Origin())
	s.Empty(edges[1].OriginID)
}

var edgeViewColumns = []string{
	"source_id", "target_id", "paragraph", "origin_id", "signal", "confidence", "snippet", "dangling", "created_at", "updated_at",
	"id", "title", "court_name", "decision_date", "citation",
}

func (s *CitationStoreTestSuite) TestEdgesInto_FillsCitingCase() {
	decided := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	s.mock.ExpectQuery("LEFT JOIN cases c ON c.id = e.source_id WHERE e.target_id = \\$1").
		WithArgs("smith", 10).
		WillReturnRows(sqlmock.NewRows(edgeViewColumns).
			AddRow("brown", "smith", 2, "", "overruled", 0.9, "overruled", false, now, now,
				"brown", "Brown v. Board", "Supreme Court", decided, "347 U.S. 483"))

	views, err := s.store.EdgesInto(context.Background(), "smith", 10)
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.Equal(citation.SignalOverruled, views[0].Signal)
	s.Equal("Brown v. Board", views[0].Neighbor.Title)
	s.Equal("347 U.S. 483", views[0].Neighbor.Citation)
	s.Equal(citation.BadgeNegative, citation.ComputeBadgeFromEdges(views))
}

func (s *CitationStoreTestSuite) TestEdgesFrom_DanglingTargetHasOnlyID() {
	now := time.Now()
	s.mock.ExpectQuery("LEFT JOIN cases c ON c.id = e.target_id WHERE e.source_id = \\$1").
		WithArgs("brown", nil).
		WillReturnRows(sqlmock.NewRows(edgeViewColumns).
			AddRow("brown", "gone", 1, "", "cited", 0.8, "", true, now, now, nil, nil, nil, nil, nil))

	views, err := s.store.EdgesFrom(context.Background(), "brown", 0)
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.True(views[0].Dangling)
	s.Equal(citation.CaseSummary{ID: "gone"}, views[0].Neighbor)
}

func (s *CitationStoreTestSuite) TestInboundSignalsAndCounts() {
	s.mock.ExpectQuery("SELECT signal FROM citation_edges WHERE target_id = \\$1").
		WithArgs("smith").
		WillReturnRows(sqlmock.NewRows([]string{"signal"}).AddRow("followed").AddRow("distinguished"))
	s.mock.ExpectQuery("SELECT \\(SELECT COUNT").
		WithArgs("smith").
		WillReturnRows(sqlmock.NewRows([]string{"into", "from"}).AddRow(2, 5))

	signals, err := s.store.InboundSignals(context.Background(), "smith")
	s.Require().NoError(err)
	s.Equal([]citation.Signal{citation.SignalFollowed, citation.SignalDistinguished}, signals)

	into, from, err := s.store.CountEdges(context.Background(), "smith")
	s.NoError(err)
	s.Equal(2, into)
	s.Equal(5, from)
}

func (s *CitationStoreTestSuite) TestReattachDangling() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec("UPDATE citation_edges SET dangling = FALSE").
		WithArgs("smith").
		WillReturnResult(sqlmock.NewResult(0, 2))
	s.mock.ExpectExec("UPDATE cases c\\s+SET citation_count").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	n, err := s.store.ReattachDangling(context.Background(), "smith")
	s.NoError(err)
	s.Equal(2, n)
}

func (s *CitationStoreTestSuite) TestUnresolvedRoundTrip() {
	u := &citation.UnresolvedCitation{
		SourceID: "brown", Raw: "456 U.S. 789", LookupKey: "456 U.S. 789", Paragraph: 3,
		Signal: citation.SignalCited, Confidence: 0.9, Reason: citation.ReasonNoMatch,
	}
	s.mock.ExpectExec("INSERT INTO unresolved_citations").
		WithArgs("brown", "456 U.S. 789", 3, "456 U.S. 789", "cited", 0.9, "", "no_match", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectQuery("DELETE FROM unresolved_citations WHERE lookup_key = ANY\\(\\$1\\) RETURNING").
		WillReturnRows(sqlmock.NewRows([]string{"source_id", "lookup_key", "paragraph", "raw", "signal", "confidence", "snippet", "reason", "created_at"}).
			AddRow("brown", "456 U.S. 789", 3, "456 U.S. 789", "cited", 0.9, "", "no_match", time.Now()))

	s.Require().NoError(s.store.RecordUnresolved(context.Background(), u))
	s.False(u.CreatedAt.IsZero())

	taken, err := s.store.TakeUnresolved(context.Background(), []string{"456 U.S. 789"})
	s.Require().NoError(err)
	s.Require().Len(taken, 1)
	s.Equal(citation.ReasonNoMatch, taken[0].Reason)
	s.Equal("smith", taken[0].ToEdge("smith").TargetID)
}

func (s *CitationStoreTestSuite) TestClearUnresolved() {
	s.mock.ExpectExec("DELETE FROM unresolved_citations WHERE source_id = \\$1").
		WithArgs("brown").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.store.ClearUnresolved(context.Background(), "brown")
	s.NoError(err)
	s.Equal(3, n)
}

func (s *CitationStoreTestSuite) TestRecordUnresolved_RequiresKey() {
	err := s.store.RecordUnresolved(context.Background(), &citation.UnresolvedCitation{SourceID: "brown"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))

	taken, err := s.store.TakeUnresolved(context.Background(), nil)
	s.NoError(err)
	s.Empty(taken)
}

//Personal.AI order the ending
