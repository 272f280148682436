package client

import (
	"context"
	"time"
)

// Search modes.
const (
	ModeHybrid   = "hybrid"
	ModeKeyword  = "keyword"
	ModeSemantic = "semantic"
)

type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

type SearchFilter struct {
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	CourtIDs     []string  `json:"court_ids,omitempty"`
	DateRange    DateRange `json:"date_range,omitempty"`
}

// Weights scale each ranked list; nil on a request means server defaults.
type Weights struct {
	Lexical   float64 `json:"lexical"`
	Semantic  float64 `json:"semantic"`
	Authority float64 `json:"authority"`
}

type SearchRequest struct {
	Query   string       `json:"query"`
	Mode    string       `json:"mode,omitempty"`
	Filter  SearchFilter `json:"filter,omitempty"`
	Weights *Weights     `json:"weights,omitempty"`
	Limit   int          `json:"limit,omitempty"`
}

type SearchResult struct {
	CaseID       string         `json:"case_id"`
	FusedScore   float64        `json:"fused_score"`
	Ranks        map[string]int `json:"ranks,omitempty"`
	Title        string         `json:"title,omitempty"`
	CourtName    string         `json:"court_name,omitempty"`
	DecisionDate *time.Time     `json:"decision_date,omitempty"`
	Citation     string         `json:"citation,omitempty"`
	Badge        string         `json:"badge,omitempty"`
}

// SearchResponse reports which ranked lists contributed. Degraded is set when
// a configured source failed; Partial when the deadline cut ranking short.
type SearchResponse struct {
	Results  []SearchResult `json:"results"`
	Sources  []string       `json:"sources"`
	Degraded bool           `json:"degraded"`
	Partial  bool           `json:"partial"`
	Cached   bool           `json:"cached"`
}

type SearchSettings struct {
	K              int     `json:"k"`
	Weights        Weights `json:"weights"`
	CandidateLimit int     `json:"candidate_limit"`
	ResultLimit    int     `json:"result_limit"`
	DeadlineMillis int64   `json:"deadline_ms"`
}

type SearchClient struct {
	client *Client
}

func (c *SearchClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var out SearchResponse
	if err := c.client.post(ctx, "/api/v1/search", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SearchClient) Settings(ctx context.Context) (*SearchSettings, error) {
	var out SearchSettings
	if err := c.client.get(ctx, "/api/v1/search/settings", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//Personal.AI order the ending
