package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

const dateLayout = "2006-01-02"

// Searcher runs BM25 queries over the case index. Scores are boosted by
// log1p(citation_count) so frequently cited cases rank higher among equally
// relevant matches.
type Searcher struct {
	transport opensearchapi.Transport
	index     string
	logger    logging.Logger
}

func NewSearcher(c *Client, logger logging.Logger) *Searcher {
	return newSearcher(c.Underlying(), c.Index(), logger)
}

func newSearcher(t opensearchapi.Transport, index string, logger logging.Logger) *Searcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if index == "" {
		index = DefaultIndex
	}
	return &Searcher{transport: t, index: index, logger: logger.Named("opensearch_searcher")}
}

// BuildQuery renders the request body for text under filter.
func BuildQuery(text string, filter search.Filter, limit int) map[string]any {
	var filters []any
	if filter.Jurisdiction != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"jurisdiction": filter.Jurisdiction}})
	}
	if len(filter.CourtIDs) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"court_id": filter.CourtIDs}})
	}
	if dr := filter.DateRange; dr.From != nil || dr.To != nil {
		r := map[string]any{"format": "yyyy-MM-dd"}
		if dr.From != nil {
			r["gte"] = dr.From.Format(dateLayout)
		}
		if dr.To != nil {
			r["lte"] = dr.To.Format(dateLayout)
		}
		filters = append(filters, map[string]any{"range": map[string]any{"decision_date": r}})
	}

	boolQuery := map[string]any{
		"must": []any{map[string]any{
			"multi_match": map[string]any{
				"query":  text,
				"fields": []string{"title^3", "citations^4", "court_name", "content"},
				"type":   "best_fields",
			},
		}},
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]any{
		"size":    limit,
		"_source": false,
		"query": map[string]any{
			"function_score": map[string]any{
				"query": map[string]any{"bool": boolQuery},
				"functions": []any{map[string]any{
					"field_value_factor": map[string]any{
						"field":    "citation_count",
						"modifier": "log1p",
						"factor":   1,
						"missing":  0,
					},
				}},
				"boost_mode": "sum",
			},
		},
	}
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Hits []struct {
			ID    string  `json:"_id"`
			Score float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchCases implements search.LexicalSource. Blank text yields no
// candidates rather than a match-all listing.
func (s *Searcher) SearchCases(ctx context.Context, text string, filter search.Filter, limit int) ([]search.Candidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	body, err := json.Marshal(BuildQuery(text, filter, limit))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal query")
	}

	start := time.Now()
	resp, err := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.transport)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "lexical search cancelled")
		}
		return nil, errors.Wrap(err, errors.ErrCodeSearchUnavailable, "lexical search request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, responseError(resp, errors.New(errors.ErrCodeSearchFailed, "lexical search failed"))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}
	out := make([]search.Candidate, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		out = append(out, search.Candidate{CaseID: h.ID, Score: h.Score})
	}
	s.logger.Debug("Lexical search executed",
		logging.Int("hits", len(out)),
		logging.Duration("elapsed", time.Since(start)))
	return out, nil
}

var _ search.LexicalSource = (*Searcher)(nil)

//Personal.AI order the ending
