package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Edges
// ─────────────────────────────────────────────────────────────────────────────

// UpsertEdge writes e keyed by (source, target, paragraph, origin). The
// existing row is locked for the duration so concurrent writers of one key serialise.
func (r *postgresCitationStore) UpsertEdge(ctx context.Context, e *citation.Edge) (citation.UpsertResult, error) {
	if err := e.Validate(); err != nil {
		return citation.UpsertResult{}, err
	}
	var res citation.UpsertResult
	err := r.withTx(ctx, func(tx *postgresCitationStore) error {
		var (
			prev      citation.Edge
			hasPrev   = true
			prevSig   string
			targetHit bool
		)
		err := tx.executor.QueryRowContext(ctx, `
			SELECT signal, confidence, snippet, dangling, created_at, updated_at
			FROM citation_edges
			WHERE source_id = $1 AND target_id = $2 AND paragraph = $3 AND origin_id = $4
			FOR UPDATE
		`, e.SourceID, e.TargetID, e.Paragraph, e.OriginID).Scan(&prevSig, &prev.Confidence, &prev.Snippet, &prev.Dangling, &prev.CreatedAt, &prev.UpdatedAt)
		if err != nil {
			if !stderrors.Is(err, sql.ErrNoRows) {
				return dbError(err, "failed to read edge")
			}
			hasPrev = false
		}
		prev.Signal = citation.Signal(prevSig)

		if err := tx.executor.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM cases WHERE id = $1)`, e.TargetID).Scan(&targetHit); err != nil {
			return dbError(err, "failed to check edge target")
		}
		e.Dangling = !targetHit

		if hasPrev && prev.SameContent(e) && prev.Dangling == e.Dangling {
			e.CreatedAt, e.UpdatedAt = prev.CreatedAt, prev.UpdatedAt
			res = citation.UpsertResult{Outcome: citation.OutcomeUnchanged}
			return nil
		}

		var inserted bool
		err = tx.executor.QueryRowContext(ctx, `
			INSERT INTO citation_edges (source_id, target_id, paragraph, origin_id, signal, confidence, snippet, dangling)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (source_id, target_id, paragraph, origin_id) DO UPDATE SET
				signal = EXCLUDED.signal,
				confidence = EXCLUDED.confidence,
				snippet = EXCLUDED.snippet,
				dangling = EXCLUDED.dangling,
				updated_at = NOW()
			RETURNING (xmax = 0), created_at, updated_at
		`, e.SourceID, e.TargetID, e.Paragraph, e.OriginID, string(e.Signal), e.Confidence, e.Snippet, e.Dangling,
		).Scan(&inserted, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			if pqCode(err) == pqForeignKeyViolation {
				return errors.CaseNotFound(e.SourceID)
			}
			return dbError(err, "failed to upsert edge")
		}

		if !inserted {
			res = citation.UpsertResult{Outcome: citation.OutcomeUpdated}
			if hasPrev {
				res.PreviousSignal = prev.Signal
			}
			return nil
		}
		res = citation.UpsertResult{Outcome: citation.OutcomeCreated}
		if _, err := tx.executor.ExecContext(ctx,
			`UPDATE cases SET citation_count = citation_count + 1 WHERE id = $1`, e.TargetID); err != nil {
			return dbError(err, "failed to bump citation count")
		}
		return nil
	})
	if err != nil {
		return citation.UpsertResult{}, err
	}
	return res, nil
}

func (r *postgresCitationStore) RemoveEdge(ctx context.Context, key citation.EdgeKey) (bool, error) {
	var removed bool
	err := r.withTx(ctx, func(tx *postgresCitationStore) error {
		res, err := tx.executor.ExecContext(ctx,
			`DELETE FROM citation_edges WHERE source_id = $1 AND target_id = $2 AND paragraph = $3 AND origin_id = $4`,
			key.SourceID, key.TargetID, key.Paragraph, key.OriginID)
		if err != nil {
			return dbError(err, "failed to remove edge")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		removed = true
		if _, err := tx.executor.ExecContext(ctx,
			`UPDATE cases SET citation_count = GREATEST(citation_count - 1, 0) WHERE id = $1`, key.TargetID); err != nil {
			return dbError(err, "failed to lower citation count")
		}
		return nil
	})
	return removed, err
}

const edgeViewQuery = `
	SELECT e.source_id, e.target_id, e.paragraph, e.origin_id, e.signal, e.confidence, e.snippet, e.dangling,
		e.created_at, e.updated_at,
		c.id, c.title, c.court_name, c.decision_date, c.citations[1]
	FROM citation_edges e
	LEFT JOIN cases c ON c.id = e.%s
	WHERE e.%s = $1
	ORDER BY c.decision_date DESC NULLS LAST, e.%s, e.paragraph, e.origin_id
	LIMIT $2
`

var (
	edgesIntoQuery = fmt.Sprintf(edgeViewQuery, "source_id", "target_id", "source_id")
	edgesFromQuery = fmt.Sprintf(edgeViewQuery, "target_id", "source_id", "target_id")
)

// EdgesInto lists edges citing caseID, newest citing case first.
func (r *postgresCitationStore) EdgesInto(ctx context.Context, caseID string, limit int) ([]citation.EdgeView, error) {
	return r.edgeViews(ctx, edgesIntoQuery, caseID, limit, func(e *citation.Edge) string { return e.SourceID })
}

// EdgesFrom lists edges out of caseID, newest cited case first. Dangling
// targets carry only their id.
func (r *postgresCitationStore) EdgesFrom(ctx context.Context, caseID string, limit int) ([]citation.EdgeView, error) {
	return r.edgeViews(ctx, edgesFromQuery, caseID, limit, func(e *citation.Edge) string { return e.TargetID })
}

func (r *postgresCitationStore) edgeViews(ctx context.Context, query, caseID string, limit int, neighborID func(*citation.Edge) string) ([]citation.EdgeView, error) {
	rows, err := r.executor.QueryContext(ctx, query, caseID, limitArg(limit))
	if err != nil {
		return nil, dbError(err, "failed to list edges")
	}
	defer rows.Close()

	var out []citation.EdgeView
	for rows.Next() {
		var (
			v                   citation.EdgeView
			signal              string
			nID, nTitle, nCourt sql.NullString
			nCitation           sql.NullString
			nDecided            sql.NullTime
		)
		if err := rows.Scan(&v.SourceID, &v.TargetID, &v.Paragraph, &v.OriginID, &signal, &v.Confidence, &v.Snippet, &v.Dangling,
			&v.CreatedAt, &v.UpdatedAt, &nID, &nTitle, &nCourt, &nDecided, &nCitation); err != nil {
			return nil, dbError(err, "failed to scan edge")
		}
		v.Signal = citation.Signal(signal)
		v.Neighbor = citation.CaseSummary{ID: neighborID(&v.Edge)}
		if nID.Valid {
			v.Neighbor.Title = nTitle.String
			v.Neighbor.CourtName = nCourt.String
			v.Neighbor.Citation = nCitation.String
			if nDecided.Valid {
				d := nDecided.Time.UTC()
				v.Neighbor.DecisionDate = &d
			}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to iterate edges")
	}
	return out, nil
}

// EdgesByOrigin lists the edges caseID asserted: its own edges with no origin
// plus history edges it originated between other cases.
func (r *postgresCitationStore) EdgesByOrigin(ctx context.Context, caseID string) ([]citation.Edge, error) {
	rows, err := r.executor.QueryContext(ctx, `
		SELECT source_id, target_id, paragraph, origin_id, signal, confidence, snippet, dangling, created_at, updated_at
		FROM citation_edges
		WHERE (source_id = $1 AND origin_id = '') OR origin_id = $1
		ORDER BY source_id, target_id, paragraph
	`, caseID)
	if err != nil {
		return nil, dbError(err, "failed to list edges by origin")
	}
	defer rows.Close()

	var out []citation.Edge
	for rows.Next() {
		var (
			e      citation.Edge
			signal string
		)
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Paragraph, &e.OriginID, &signal, &e.Confidence,
			&e.Snippet, &e.Dangling, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, dbError(err, "failed to scan edge")
		}
		e.Signal = citation.Signal(signal)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to iterate edges")
	}
	return out, nil
}

func (r *postgresCitationStore) InboundSignals(ctx context.Context, caseID string) ([]citation.Signal, error) {
	rows, err := r.executor.QueryContext(ctx, `SELECT signal FROM citation_edges WHERE target_id = $1`, caseID)
	if err != nil {
		return nil, dbError(err, "failed to read inbound signals")
	}
	defer rows.Close()
	var out []citation.Signal
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, dbError(err, "failed to scan signal")
		}
		out = append(out, citation.Signal(s))
	}
	return out, rows.Err()
}

func (r *postgresCitationStore) CountEdges(ctx context.Context, caseID string) (into int, from int, err error) {
	err = r.executor.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM citation_edges WHERE target_id = $1),
			(SELECT COUNT(*) FROM citation_edges WHERE source_id = $1)
	`, caseID).Scan(&into, &from)
	if err != nil {
		return 0, 0, dbError(err, "failed to count edges")
	}
	return into, from, nil
}

// ReattachDangling clears the dangling flag on edges into a case that now
// exists and refreshes its citation count.
func (r *postgresCitationStore) ReattachDangling(ctx context.Context, caseID string) (int, error) {
	var n int64
	err := r.withTx(ctx, func(tx *postgresCitationStore) error {
		res, err := tx.executor.ExecContext(ctx,
			`UPDATE citation_edges SET dangling = FALSE, updated_at = NOW() WHERE target_id = $1 AND dangling`, caseID)
		if err != nil {
			return dbError(err, "failed to reattach edges")
		}
		n, _ = res.RowsAffected()
		if n == 0 {
			return nil
		}
		return tx.recount(ctx, []string{caseID})
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Debug("reattached dangling edges", logging.CaseID(caseID), logging.Int64("edges", n))
	}
	return int(n), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Unresolved citations
// ─────────────────────────────────────────────────────────────────────────────

func (r *postgresCitationStore) RecordUnresolved(ctx context.Context, u *citation.UnresolvedCitation) error {
	if u == nil || u.SourceID == "" || u.LookupKey == "" {
		return errors.InvalidParam("unresolved citation needs source and lookup key")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.executor.ExecContext(ctx, `
		INSERT INTO unresolved_citations
			(source_id, lookup_key, paragraph, raw, signal, confidence, snippet, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (lookup_key, source_id, paragraph) DO UPDATE SET
			raw = EXCLUDED.raw,
			signal = EXCLUDED.signal,
			confidence = EXCLUDED.confidence,
			snippet = EXCLUDED.snippet,
			reason = EXCLUDED.reason
	`, u.SourceID, u.LookupKey, u.Paragraph, u.Raw, string(u.Signal), u.Confidence, u.Snippet, string(u.Reason), u.CreatedAt)
	if err != nil {
		return dbError(err, "failed to record unresolved citation")
	}
	return nil
}

// ClearUnresolved drops every pending citation recorded for sourceID.
func (r *postgresCitationStore) ClearUnresolved(ctx context.Context, sourceID string) (int, error) {
	res, err := r.executor.ExecContext(ctx, `DELETE FROM unresolved_citations WHERE source_id = $1`, sourceID)
	if err != nil {
		return 0, dbError(err, "failed to clear unresolved citations")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// TakeUnresolved removes and returns every pending citation under keys.
func (r *postgresCitationStore) TakeUnresolved(ctx context.Context, keys []string) ([]citation.UnresolvedCitation, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := r.executor.QueryContext(ctx, `
		DELETE FROM unresolved_citations WHERE lookup_key = ANY($1)
		RETURNING source_id, lookup_key, paragraph, raw, signal, confidence, snippet, reason, created_at
	`, pq.Array(keys))
	if err != nil {
		return nil, dbError(err, "failed to take unresolved citations")
	}
	defer rows.Close()

	var out []citation.UnresolvedCitation
	for rows.Next() {
		var (
			u              citation.UnresolvedCitation
			signal, reason string
		)
		if err := rows.Scan(&u.SourceID, &u.LookupKey, &u.Paragraph, &u.Raw, &signal, &u.Confidence,
			&u.Snippet, &reason, &u.CreatedAt); err != nil {
			return nil, dbError(err, "failed to scan unresolved citation")
		}
		u.Signal = citation.Signal(signal)
		u.Reason = citation.UnresolvedReason(reason)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to iterate unresolved citations")
	}
	return out, nil
}

//Personal.AI order the ending
