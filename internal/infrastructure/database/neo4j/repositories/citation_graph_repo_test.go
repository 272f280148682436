package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/pkg/types/common"
	pkgerrors "github.com/sagerock/ai-law-research/pkg/errors"
)

type CitationGraphRepoTestSuite struct {
	suite.Suite
	driver *MockInfraDriver
	tx     *MockInfraTransaction
	repo   *CitationGraphRepo
}

func (s *CitationGraphRepoTestSuite) SetupTest() {
	s.driver, s.tx = SetupMockDriver()
	s.repo = NewCitationGraphRepo(s.driver, nil)
}

func (s *CitationGraphRepoTestSuite) TearDownTest() {
	s.tx.AssertExpectations(s.T())
}

func cypherContains(fragment string) interface{} {
	return mock.MatchedBy(func(q string) bool { return strings.Contains(q, fragment) })
}

func (s *CitationGraphRepoTestSuite) TestMirrorCase() {
	decided := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	s.tx.On("Run", mock.Anything, cypherContains("MERGE (c:Case {id: $id})"), mock.MatchedBy(func(p map[string]any) bool {
		return p["id"] == "smith" && p["decision_date"] == neo4j.DateOf(decided)
	})).Return(&MockResult{}, nil)

	s.NoError(s.repo.MirrorCase(context.Background(), &citation.Case{ID: "smith", Title: "Smith v. Jones", DecisionDate: &decided}))
}

func (s *CitationGraphRepoTestSuite) TestMirrorCase_RejectsMissingID() {
	err := s.repo.MirrorCase(context.Background(), &citation.Case{})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))
}

func (s *CitationGraphRepoTestSuite) TestMirrorEdge() {
	e := &citation.Edge{SourceID: "brown", TargetID: "smith", Paragraph: 3, Signal: citation.SignalOverruled, Confidence: 0.9, Snippet: "overruled"}
	s.tx.On("Run", mock.Anything, cypherContains("MERGE (s)-[r:CITES {paragraph: $paragraph, origin: $origin}]->(t)"), map[string]any{
		"source": "brown", "target": "smith", "paragraph": int64(3), "origin": "",
		"signal": "overruled", "confidence": 0.9, "snippet": "overruled",
	}).Return(&MockResult{}, nil)

	s.NoError(s.repo.MirrorEdge(context.Background(), e))
}

func (s *CitationGraphRepoTestSuite) TestMirrorEdge_InvalidSignal() {
	err := s.repo.MirrorEdge(context.Background(), &citation.Edge{SourceID: "a", TargetID: "b", Signal: "praised"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidSignal))
}

func (s *CitationGraphRepoTestSuite) TestMirrorEdge_DriverError() {
	s.tx.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))

	err := s.repo.MirrorEdge(context.Background(), &citation.Edge{SourceID: "a", TargetID: "b", Signal: citation.SignalCited, Confidence: 1})
	s.Error(err)
}

func (s *CitationGraphRepoTestSuite) TestRemoveEdgeAndCase() {
	s.tx.On("Run", mock.Anything, cypherContains("RETURN count(r) AS removed"), map[string]any{
		"source": "brown", "target": "smith", "paragraph": int64(0), "origin": "memo",
	}).Return(&MockResult{Records: []*neo4j.Record{NewRecord([]string{"removed"}, []any{int64(1)})}}, nil)
	s.tx.On("Run", mock.Anything, cypherContains("OPTIONAL MATCH ()-[h:CITES {origin: $id}]->()"), map[string]any{"id": "brown"}).
		Return(&MockResult{}, nil)

	s.NoError(s.repo.RemoveEdge(context.Background(), citation.EdgeKey{SourceID: "brown", TargetID: "smith", OriginID: "memo"}))
	s.NoError(s.repo.RemoveCase(context.Background(), "brown"))
}

func (s *CitationGraphRepoTestSuite) TestMostCited() {
	from := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	s.tx.On("Run", mock.Anything, cypherContains("ORDER BY in_degree DESC"), mock.MatchedBy(func(p map[string]any) bool {
		ids, _ := p["ids"].([]string)
		return len(ids) == 2 && p["jurisdiction"] == "us" && p["from"] == neo4j.DateOf(from) && p["to"] == nil && p["limit"] == int64(10)
	})).Return(&MockResult{Records: []*neo4j.Record{
		NewRecord([]string{"id", "in_degree", "signals"}, []any{"smith", int64(3), []any{"followed", "questioned", "cited"}}),
		NewRecord([]string{"id", "in_degree", "signals"}, []any{"brown", int64(1), []any{"cited"}}),
	}}, nil)

	got, err := s.repo.MostCited(context.Background(), citation.AuthorityFilter{
		CaseIDs:      []string{"smith", "brown"},
		Jurisdiction: "us",
		DateRange:    common.DateRange{From: &from},
	}, 10)
	s.Require().NoError(err)
	s.Equal([]citation.AuthorityEntry{
		{CaseID: "smith", InDegree: 3, Badge: citation.BadgeCaution},
		{CaseID: "brown", InDegree: 1, Badge: citation.BadgeGood},
	}, got)
}

func (s *CitationGraphRepoTestSuite) TestMostCited_EmptyFilterPassesNullIDs() {
	s.tx.On("Run", mock.Anything, mock.Anything, mock.MatchedBy(func(p map[string]any) bool {
		return p["ids"] == nil && p["limit"] == int64(100)
	})).Return(&MockResult{}, nil)

	got, err := s.repo.MostCited(context.Background(), citation.AuthorityFilter{}, 0)
	s.NoError(err)
	s.Empty(got)
}

func TestCitationGraphRepoTestSuite(t *testing.T) {
	suite.Run(t, new(CitationGraphRepoTestSuite))
}

//Personal.AI order the ending
