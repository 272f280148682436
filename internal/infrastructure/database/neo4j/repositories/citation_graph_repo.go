// Package repositories holds the Neo4j mirror of the citation graph. The
// relational store stays authoritative; the mirror serves graph-shaped reads
// such as the authority list.
package repositories

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	driver "github.com/sagerock/ai-law-research/internal/infrastructure/database/neo4j"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// Nodes whose case has not been ingested (or was deleted) carry stub = true
// and keep their inbound relationships, mirroring dangling edges.
const (
	cypherMergeCase = `
		MERGE (c:Case {id: $id})
		SET c.title = $title, c.court_id = $court_id, c.jurisdiction = $jurisdiction,
		    c.decision_date = $decision_date, c.stub = false, c.updated_at = datetime()`

	cypherMergeEdge = `
		MERGE (s:Case {id: $source})
		ON CREATE SET s.stub = true
		MERGE (t:Case {id: $target})
		ON CREATE SET t.stub = true
		MERGE (s)-[r:CITES {paragraph: $paragraph, origin: $origin}]->(t)
		SET r.signal = $signal, r.confidence = $confidence, r.snippet = $snippet, r.updated_at = datetime()`

	cypherRemoveEdge = `
		MATCH (:Case {id: $source})-[r:CITES {paragraph: $paragraph, origin: $origin}]->(:Case {id: $target})
		DELETE r
		RETURN count(r) AS removed`

	cypherRemoveCase = `
		MATCH (c:Case {id: $id})
		OPTIONAL MATCH (c)-[r:CITES]->()
		DELETE r
		WITH DISTINCT c
		SET c.stub = true
		WITH c
		OPTIONAL MATCH ()-[h:CITES {origin: $id}]->()
		DELETE h`

	cypherAuthority = `
		MATCH (:Case)-[r:CITES]->(c:Case)
		WHERE coalesce(c.stub, false) = false
		  AND ($ids IS NULL OR c.id IN $ids)
		  AND ($jurisdiction = '' OR c.jurisdiction = $jurisdiction)
		  AND ($from IS NULL OR c.decision_date >= $from)
		  AND ($to IS NULL OR c.decision_date <= $to)
		WITH c, count(r) AS in_degree, collect(r.signal) AS signals
		RETURN c.id AS id, in_degree, signals
		ORDER BY in_degree DESC, id ASC
		LIMIT $limit`
)

// CitationGraphRepo mirrors cases and edges into Neo4j with MERGE so replays
// are idempotent.
type CitationGraphRepo struct {
	driver driver.DriverInterface
	log    logging.Logger
}

func NewCitationGraphRepo(d driver.DriverInterface, log logging.Logger) *CitationGraphRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CitationGraphRepo{driver: d, log: log.Named("neo4j_mirror")}
}

func (r *CitationGraphRepo) write(ctx context.Context, cypher string, params map[string]any) error {
	_, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) { // drain
		}
		return nil, res.Err()
	})
	return err
}

// MirrorCase creates or refreshes the node of c and clears its stub marker.
func (r *CitationGraphRepo) MirrorCase(ctx context.Context, c *citation.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.write(ctx, cypherMergeCase, map[string]any{
		"id":            c.ID,
		"title":         c.Title,
		"court_id":      c.CourtID,
		"jurisdiction":  c.Jurisdiction,
		"decision_date": dateParam(c.DecisionDate),
	})
}

// MirrorEdge writes e keyed on (source, target, paragraph, origin).
func (r *CitationGraphRepo) MirrorEdge(ctx context.Context, e *citation.Edge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return r.write(ctx, cypherMergeEdge, map[string]any{
		"source":     e.SourceID,
		"target":     e.TargetID,
		"paragraph":  int64(e.Paragraph),
		"origin":     e.OriginID,
		"signal":     string(e.Signal),
		"confidence": e.Confidence,
		"snippet":    e.Snippet,
	})
}

func (r *CitationGraphRepo) RemoveEdge(ctx context.Context, key citation.EdgeKey) error {
	return r.write(ctx, cypherRemoveEdge, map[string]any{
		"source":    key.SourceID,
		"target":    key.TargetID,
		"paragraph": int64(key.Paragraph),
		"origin":    key.OriginID,
	})
}

// RemoveCase drops the outbound relationships of id and those it originated,
// then turns its node into a stub so inbound relationships survive.
func (r *CitationGraphRepo) RemoveCase(ctx context.Context, id string) error {
	return r.write(ctx, cypherRemoveCase, map[string]any{"id": id})
}

// MostCited ranks ingested cases by inbound relationship count.
func (r *CitationGraphRepo) MostCited(ctx context.Context, filter citation.AuthorityFilter, limit int) ([]citation.AuthorityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids any
	if len(filter.CaseIDs) > 0 {
		ids = filter.CaseIDs
	}
	params := map[string]any{
		"ids":          ids,
		"jurisdiction": filter.Jurisdiction,
		"from":         dateParam(filter.DateRange.From),
		"to":           dateParam(filter.DateRange.To),
		"limit":        int64(limit),
	}

	out, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, cypherAuthority, params)
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, res, authorityFromRecord)
	})
	if err != nil {
		return nil, err
	}
	entries, _ := out.([]citation.AuthorityEntry)
	return entries, nil
}

func authorityFromRecord(rec *neo4j.Record) (citation.AuthorityEntry, error) {
	id, ok := rec.Get("id")
	if !ok {
		return citation.AuthorityEntry{}, errors.New(errors.ErrCodeSerialization, "authority record without id")
	}
	entry := citation.AuthorityEntry{CaseID: asString(id)}
	if v, ok := rec.Get("in_degree"); ok {
		if n, ok := v.(int64); ok {
			entry.InDegree = int(n)
		}
	}
	var signals []citation.Signal
	if v, ok := rec.Get("signals"); ok {
		if list, ok := v.([]any); ok {
			for _, s := range list {
				signals = append(signals, citation.Signal(asString(s)))
			}
		}
	}
	entry.Badge = citation.ComputeBadge(signals)
	return entry, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func dateParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return neo4j.DateOf(*t)
}

//Personal.AI order the ending
