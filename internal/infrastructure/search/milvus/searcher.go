package milvus

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

type SearcherConfig struct {
	Dimension int
	// Oversample multiplies the requested limit so that grouping chunks by
	// case still leaves enough distinct cases.
	Oversample       int
	MaxTopK          int
	MinEf            int
	ConsistencyLevel entity.ConsistencyLevel
	SearchTimeout    time.Duration
}

func (c *SearcherConfig) applyDefaults() {
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.Oversample == 0 {
		c.Oversample = 4
	}
	if c.MaxTopK == 0 {
		c.MaxTopK = 16384
	}
	if c.MinEf == 0 {
		c.MinEf = 64
	}
	if c.ConsistencyLevel == 0 {
		c.ConsistencyLevel = entity.ClBounded
	}
	if c.SearchTimeout == 0 {
		c.SearchTimeout = 10 * time.Second
	}
}

// Searcher stores chunk vectors and answers similarity queries with one
// candidate per case.
type Searcher struct {
	client     *Client
	collection string
	config     SearcherConfig
	logger     logging.Logger
}

func NewSearcher(c *Client, collection string, cfg SearcherConfig, logger logging.Logger) *Searcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Searcher{client: c, collection: collection, config: cfg, logger: logger.Named("milvus_searcher")}
}

// ChunkID is the primary key of a chunk row.
func ChunkID(caseID string, index int) string {
	return caseID + "#" + strconv.Itoa(index)
}

// DecisionDay encodes t as YYYYMMDD; nil is 0.
func DecisionDay(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	y, m, d := t.Date()
	return int64(y*10000 + int(m)*100 + d)
}

// BuildFilterExpr renders filter as a boolean expression over scalar fields.
func BuildFilterExpr(filter search.Filter) string {
	var parts []string
	if filter.Jurisdiction != "" {
		parts = append(parts, fmt.Sprintf("%s == %s", fieldJurisdiction, strconv.Quote(filter.Jurisdiction)))
	}
	if len(filter.CourtIDs) > 0 {
		quoted := make([]string, len(filter.CourtIDs))
		for i, id := range filter.CourtIDs {
			quoted[i] = strconv.Quote(id)
		}
		parts = append(parts, fmt.Sprintf("%s in [%s]", fieldCourtID, strings.Join(quoted, ",")))
	}
	if filter.DateRange.From != nil {
		parts = append(parts, fmt.Sprintf("%s >= %d", fieldDecisionDay, DecisionDay(filter.DateRange.From)))
	}
	if filter.DateRange.To != nil {
		parts = append(parts, fmt.Sprintf("%s <= %d", fieldDecisionDay, DecisionDay(filter.DateRange.To)))
	}
	return strings.Join(parts, " && ")
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// UpsertChunks replaces every stored chunk of caseID with chunks.
func (s *Searcher) UpsertChunks(ctx context.Context, caseID string, chunks []search.ChunkVector) error {
	if caseID == "" {
		return errors.InvalidParam("case id is required")
	}
	if err := s.DeleteCase(ctx, caseID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	n := len(chunks)
	ids := make([]string, n)
	caseIDs := make([]string, n)
	indexes := make([]int64, n)
	sections := make([]string, n)
	courts := make([]string, n)
	jurisdictions := make([]string, n)
	days := make([]int64, n)
	texts := make([]string, n)
	vectors := make([][]float32, n)
	for i, ch := range chunks {
		if len(ch.Vector) != s.config.Dimension {
			return errors.Newf(errors.ErrCodeEmbeddingFailed, "chunk %d has dimension %d, want %d", ch.Index, len(ch.Vector), s.config.Dimension)
		}
		ids[i] = ChunkID(caseID, ch.Index)
		caseIDs[i] = caseID
		indexes[i] = int64(ch.Index)
		sections[i] = ch.Section
		courts[i] = ch.CourtID
		jurisdictions[i] = ch.Jurisdiction
		days[i] = DecisionDay(ch.DecisionDate)
		texts[i] = truncateUTF8(ch.Text, maxTextLength)
		vectors[i] = ch.Vector
	}

	_, err := s.client.SDK().Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(fieldChunkID, ids),
		entity.NewColumnVarChar(fieldCaseID, caseIDs),
		entity.NewColumnInt64(fieldChunkIndex, indexes),
		entity.NewColumnVarChar(fieldSection, sections),
		entity.NewColumnVarChar(fieldCourtID, courts),
		entity.NewColumnVarChar(fieldJurisdiction, jurisdictions),
		entity.NewColumnInt64(fieldDecisionDay, days),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnFloatVector(fieldEmbedding, s.config.Dimension, vectors),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "upsert chunks failed").WithDetail(caseID)
	}
	s.logger.Debug("Chunks upserted", logging.CaseID(caseID), logging.Int("count", n))
	return nil
}

func (s *Searcher) DeleteCase(ctx context.Context, id string) error {
	expr := fmt.Sprintf("%s == %s", fieldCaseID, strconv.Quote(id))
	if err := s.client.SDK().Delete(ctx, s.collection, "", expr); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "delete chunks failed").WithDetail(id)
	}
	return nil
}

// SearchSimilar implements search.SemanticSource. Chunks are grouped by
// case and each case scores with its best chunk.
func (s *Searcher) SearchSimilar(ctx context.Context, vector []float32, filter search.Filter, limit int) ([]search.Candidate, error) {
	if len(vector) == 0 {
		return nil, errors.InvalidParam("query vector is empty")
	}
	if limit <= 0 {
		limit = 100
	}
	topK := limit * s.config.Oversample
	if topK > s.config.MaxTopK {
		topK = s.config.MaxTopK
	}
	ef := topK
	if ef < s.config.MinEf {
		ef = s.config.MinEf
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid search params")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.SearchTimeout)
	defer cancel()

	start := time.Now()
	results, err := s.client.SDK().Search(ctx, s.collection, nil, BuildFilterExpr(filter),
		[]string{fieldCaseID}, []entity.Vector{entity.FloatVector(vector)}, fieldEmbedding,
		entity.COSINE, topK, sp, client.WithSearchQueryConsistencyLevel(s.config.ConsistencyLevel))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchUnavailable, "vector search failed")
	}

	out := groupByCase(results, limit)
	s.logger.Debug("Vector search executed",
		logging.Int("hits", len(out)),
		logging.Duration("elapsed", time.Since(start)))
	return out, nil
}

func groupByCase(results []client.SearchResult, limit int) []search.Candidate {
	best := make(map[string]float64)
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		col := res.Fields.GetColumn(fieldCaseID)
		for i := 0; i < res.ResultCount && i < len(res.Scores); i++ {
			var caseID string
			if col != nil {
				caseID, _ = col.GetAsString(i)
			}
			if caseID == "" && res.IDs != nil {
				id, _ := res.IDs.GetAsString(i)
				caseID, _, _ = strings.Cut(id, "#")
			}
			if caseID == "" {
				continue
			}
			score := float64(res.Scores[i])
			if cur, ok := best[caseID]; !ok || score > cur {
				best[caseID] = score
			}
		}
	}

	out := make([]search.Candidate, 0, len(best))
	for id, score := range best {
		out = append(out, search.Candidate{CaseID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CaseID < out[j].CaseID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

var (
	_ search.ChunkIndexer   = (*Searcher)(nil)
	_ search.SemanticSource = (*Searcher)(nil)
)

//Personal.AI order the ending
