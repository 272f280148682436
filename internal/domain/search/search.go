// Package search defines the retrieval sources fused by the hybrid ranker and
// the documents kept in the lexical and vector indexes.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/pkg/errors"
	"github.com/sagerock/ai-law-research/pkg/types/common"
)

// Mode selects which retrieval lists a query consults.
type Mode string

const (
	ModeHybrid   Mode = "hybrid"
	ModeKeyword  Mode = "keyword"
	ModeSemantic Mode = "semantic"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeHybrid, ModeKeyword, ModeSemantic:
		return true
	}
	return false
}

// Source names one ranked candidate list.
type Source string

const (
	SourceLexical   Source = "lexical"
	SourceSemantic  Source = "semantic"
	SourceAuthority Source = "authority"
)

// Filter narrows every source the same way.
type Filter struct {
	Jurisdiction string           `json:"jurisdiction,omitempty"`
	CourtIDs     []string         `json:"court_ids,omitempty"`
	DateRange    common.DateRange `json:"date_range,omitempty"`
}

// Weights scale each list's reciprocal rank contribution.
type Weights struct {
	Lexical   float64 `json:"lexical"`
	Semantic  float64 `json:"semantic"`
	Authority float64 `json:"authority"`
}

func (w Weights) Validate() error {
	if w.Lexical < 0 || w.Semantic < 0 || w.Authority < 0 {
		return errors.New(errors.ErrCodeInvalidWeights, "weights must be non-negative")
	}
	if w.Lexical+w.Semantic+w.Authority == 0 {
		return errors.New(errors.ErrCodeInvalidWeights, "at least one weight must be positive")
	}
	return nil
}

func (w Weights) For(s Source) float64 {
	switch s {
	case SourceLexical:
		return w.Lexical
	case SourceSemantic:
		return w.Semantic
	case SourceAuthority:
		return w.Authority
	}
	return 0
}

// Query is a search request.
type Query struct {
	Text    string   `json:"query"`
	Mode    Mode     `json:"mode,omitempty"`
	Filter  Filter   `json:"filter,omitempty"`
	Weights *Weights `json:"weights,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Normalize trims the text and defaults the mode. It rejects unknown modes,
// bad weights and inverted date ranges.
func (q *Query) Normalize() error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Mode == "" {
		q.Mode = ModeHybrid
	}
	if !q.Mode.Valid() {
		return errors.InvalidParam("unknown search mode").WithDetail(string(q.Mode))
	}
	if q.Weights != nil {
		if err := q.Weights.Validate(); err != nil {
			return err
		}
	}
	if err := q.Filter.DateRange.Validate(); err != nil {
		return errors.InvalidParam(err.Error())
	}
	if q.Limit < 0 {
		return errors.InvalidParam("limit must be >= 0")
	}
	return nil
}

// Candidate is one entry of a source list. Lists are ordered best first;
// rank is the 1-based position.
type Candidate struct {
	CaseID string  `json:"case_id"`
	Score  float64 `json:"score"`
}

// Result is a fused hit.
type Result struct {
	CaseID       string         `json:"case_id"`
	FusedScore   float64        `json:"fused_score"`
	Ranks        map[Source]int `json:"ranks,omitempty"`
	Title        string         `json:"title,omitempty"`
	CourtName    string         `json:"court_name,omitempty"`
	DecisionDate *time.Time     `json:"decision_date,omitempty"`
	Citation     string         `json:"citation,omitempty"`
	Badge        citation.Badge `json:"badge,omitempty"`
}

// Response carries the fused list and which sources contributed.
type Response struct {
	Results  []Result `json:"results"`
	Sources  []Source `json:"sources"`
	Degraded bool     `json:"degraded"`
	Partial  bool     `json:"partial"`
	Cached   bool     `json:"cached"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Retrieval sources
// ─────────────────────────────────────────────────────────────────────────────

// LexicalSource returns keyword-relevance candidates.
type LexicalSource interface {
	SearchCases(ctx context.Context, text string, filter Filter, limit int) ([]Candidate, error)
}

// SemanticSource returns embedding-similarity candidates, one per case.
type SemanticSource interface {
	SearchSimilar(ctx context.Context, vector []float32, filter Filter, limit int) ([]Candidate, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Index maintenance
// ─────────────────────────────────────────────────────────────────────────────

// CaseDocument is the lexical index representation of a case.
type CaseDocument struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	CourtID       string     `json:"court_id,omitempty"`
	CourtName     string     `json:"court_name,omitempty"`
	Jurisdiction  string     `json:"jurisdiction,omitempty"`
	DecisionDate  *time.Time `json:"decision_date,omitempty"`
	Citations     []string   `json:"citations,omitempty"`
	Content       string     `json:"content"`
	CitationCount int        `json:"citation_count"`
}

func NewCaseDocument(c *citation.Case) CaseDocument {
	return CaseDocument{
		ID:            c.ID,
		Title:         c.Title,
		CourtID:       c.CourtID,
		CourtName:     c.CourtName,
		Jurisdiction:  c.Jurisdiction,
		DecisionDate:  c.DecisionDate,
		Citations:     c.Citations,
		Content:       c.Content,
		CitationCount: c.CitationCount,
	}
}

// CaseIndexer maintains the lexical index.
type CaseIndexer interface {
	IndexCase(ctx context.Context, doc CaseDocument) error
	DeleteCase(ctx context.Context, id string) error
}

// ChunkVector is an embedded chunk ready for the vector index.
type ChunkVector struct {
	CaseID       string
	Index        int
	Section      string
	Text         string
	CourtID      string
	Jurisdiction string
	DecisionDate *time.Time
	Vector       []float32
}

// ChunkIndexer maintains the vector index. UpsertChunks replaces every chunk
// of the case.
type ChunkIndexer interface {
	UpsertChunks(ctx context.Context, caseID string, chunks []ChunkVector) error
	DeleteCase(ctx context.Context, id string) error
}

//Personal.AI order the ending
