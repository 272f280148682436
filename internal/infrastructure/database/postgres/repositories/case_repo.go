package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/infrastructure/database/postgres"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// postgresCitationStore implements citation.Store. Case methods live here,
// edge and unresolved-citation methods in edge_repo.go.
type postgresCitationStore struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

var _ citation.Store = (*postgresCitationStore)(nil)

func NewPostgresCitationStore(conn *postgres.Connection, log logging.Logger) citation.Store {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &postgresCitationStore{
		conn:     conn,
		log:      log,
		executor: conn.DB(),
	}
}

// withTx runs fn against a copy of the store bound to one transaction.
func (r *postgresCitationStore) withTx(ctx context.Context, fn func(tx *postgresCitationStore) error) error {
	if _, inTx := r.executor.(*sql.Tx); inTx {
		return fn(r)
	}
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&postgresCitationStore{conn: r.conn, log: r.log, executor: tx})
	})
}

const caseColumns = `c.id, c.title, c.court_id, c.court_name, c.jurisdiction, c.decision_date,
	c.citations, c.content, c.content_hash, c.citation_count, c.created_at, c.updated_at`

func scanCase(row scanner) (*citation.Case, error) {
	var (
		c         citation.Case
		decided   sql.NullTime
		citations pq.StringArray
	)
	err := row.Scan(&c.ID, &c.Title, &c.CourtID, &c.CourtName, &c.Jurisdiction, &decided,
		&citations, &c.Content, &c.ContentHash, &c.CitationCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if decided.Valid {
		d := decided.Time.UTC()
		c.DecisionDate = &d
	}
	c.Citations = []string(citations)
	return &c, nil
}

func nullDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// ─────────────────────────────────────────────────────────────────────────────
// Cases
// ─────────────────────────────────────────────────────────────────────────────

func (r *postgresCitationStore) UpsertCase(ctx context.Context, c *citation.Case) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	query := `
		INSERT INTO cases (
			id, title, court_id, court_name, jurisdiction, decision_date, citations, content, content_hash,
			citation_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
			(SELECT COUNT(*) FROM citation_edges WHERE target_id = $1))
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			court_id = EXCLUDED.court_id,
			court_name = EXCLUDED.court_name,
			jurisdiction = EXCLUDED.jurisdiction,
			decision_date = EXCLUDED.decision_date,
			citations = EXCLUDED.citations,
			content = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			updated_at = NOW()
		RETURNING (xmax = 0), citation_count, created_at, updated_at
	`
	var created bool
	err := r.executor.QueryRowContext(ctx, query,
		c.ID, c.Title, c.CourtID, c.CourtName, c.Jurisdiction, nullDate(c.DecisionDate),
		pq.Array(c.Citations), c.Content, c.ContentHash,
	).Scan(&created, &c.CitationCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return false, dbError(err, "failed to upsert case")
	}
	return created, nil
}

func (r *postgresCitationStore) GetCase(ctx context.Context, id string) (*citation.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases c WHERE c.id = $1`
	c, err := scanCase(r.executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.CaseNotFound(id)
		}
		return nil, dbError(err, "failed to get case")
	}
	return c, nil
}

func (r *postgresCitationStore) GetCases(ctx context.Context, ids []string) (map[string]*citation.Case, error) {
	out := make(map[string]*citation.Case, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT ` + caseColumns + ` FROM cases c WHERE c.id = ANY($1)`
	rows, err := r.executor.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, dbError(err, "failed to get cases")
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan case")
		}
		out[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to iterate cases")
	}
	return out, nil
}

func (r *postgresCitationStore) ContentHash(ctx context.Context, id string) (string, bool, error) {
	var hash string
	err := r.executor.QueryRowContext(ctx, `SELECT content_hash FROM cases WHERE id = $1`, id).Scan(&hash)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, dbError(err, "failed to read content hash")
	}
	return hash, true, nil
}

// SetContentHash records the hash of the text whose edges are fully written.
func (r *postgresCitationStore) SetContentHash(ctx context.Context, id, hash string) error {
	res, err := r.executor.ExecContext(ctx,
		`UPDATE cases SET content_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return dbError(err, "failed to set content hash")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.CaseNotFound(id)
	}
	return nil
}

// Stats counts cases, edges and pending citations across the corpus.
func (r *postgresCitationStore) Stats(ctx context.Context) (citation.CorpusStats, error) {
	var st citation.CorpusStats
	err := r.executor.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM cases),
			(SELECT COUNT(*) FROM citation_edges),
			(SELECT COUNT(*) FROM citation_edges WHERE dangling),
			(SELECT COUNT(*) FROM unresolved_citations)
	`).Scan(&st.Cases, &st.Edges, &st.Dangling, &st.Unresolved)
	if err != nil {
		return citation.CorpusStats{}, dbError(err, "failed to read corpus stats")
	}
	return st, nil
}

// DeleteCase drops the case with its outbound edges and the history edges it
// originated; inbound edges are kept and marked dangling.
func (r *postgresCitationStore) DeleteCase(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *postgresCitationStore) error {
		targets, err := tx.outboundTargets(ctx, id)
		if err != nil {
			return err
		}

		res, err := tx.executor.ExecContext(ctx, `DELETE FROM cases WHERE id = $1`, id)
		if err != nil {
			return dbError(err, "failed to delete case")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.CaseNotFound(id)
		}

		if _, err := tx.executor.ExecContext(ctx,
			`DELETE FROM citation_edges WHERE origin_id = $1`, id); err != nil {
			return dbError(err, "failed to delete originated edges")
		}
		if _, err := tx.executor.ExecContext(ctx,
			`UPDATE citation_edges SET dangling = TRUE, updated_at = NOW() WHERE target_id = $1`, id); err != nil {
			return dbError(err, "failed to mark inbound edges dangling")
		}
		if err := tx.recount(ctx, targets); err != nil {
			return err
		}
		tx.log.Info("case deleted", logging.CaseID(id), logging.Int("outbound_edges", len(targets)))
		return nil
	})
}

func (r *postgresCitationStore) outboundTargets(ctx context.Context, id string) ([]string, error) {
	rows, err := r.executor.QueryContext(ctx,
		`SELECT DISTINCT target_id FROM citation_edges WHERE source_id = $1 OR origin_id = $1`, id)
	if err != nil {
		return nil, dbError(err, "failed to list outbound edges")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, dbError(err, "failed to scan target")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// recount recomputes citation_count from the edge table for ids.
func (r *postgresCitationStore) recount(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.executor.ExecContext(ctx, `
		UPDATE cases c
		SET citation_count = (SELECT COUNT(*) FROM citation_edges e WHERE e.target_id = c.id)
		WHERE c.id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return dbError(err, "failed to refresh citation counts")
	}
	return nil
}

func (r *postgresCitationStore) ScanCitationRefs(ctx context.Context, fn func(citation.CaseRef) error) error {
	rows, err := r.executor.QueryContext(ctx, `SELECT id, title, citations FROM cases ORDER BY id`)
	if err != nil {
		return dbError(err, "failed to scan case citations")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ref   citation.CaseRef
			cites pq.StringArray
		)
		if err := rows.Scan(&ref.ID, &ref.Title, &cites); err != nil {
			return dbError(err, "failed to scan case citations")
		}
		ref.Citations = []string(cites)
		if err := fn(ref); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *postgresCitationStore) UpsertCourt(ctx context.Context, court *citation.Court) error {
	if court == nil || court.ID == "" {
		return errors.InvalidParam("court id is required")
	}
	_, err := r.executor.ExecContext(ctx, `
		INSERT INTO courts (id, name, jurisdiction) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, jurisdiction = EXCLUDED.jurisdiction, updated_at = NOW()
	`, court.ID, court.Name, court.Jurisdiction)
	if err != nil {
		return dbError(err, "failed to upsert court")
	}
	return nil
}

// MostCited ranks cases with at least one inbound edge by in-degree.
func (r *postgresCitationStore) MostCited(ctx context.Context, filter citation.AuthorityFilter, limit int) ([]citation.AuthorityEntry, error) {
	var (
		where = []string{"c.citation_count > 0"}
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(filter.CaseIDs) > 0 {
		where = append(where, "c.id = ANY("+arg(pq.Array(filter.CaseIDs))+")")
	}
	if filter.Jurisdiction != "" {
		where = append(where, "c.jurisdiction = "+arg(filter.Jurisdiction))
	}
	if filter.DateRange.From != nil {
		where = append(where, "c.decision_date >= "+arg(*filter.DateRange.From))
	}
	if filter.DateRange.To != nil {
		where = append(where, "c.decision_date <= "+arg(*filter.DateRange.To))
	}

	query := `
		SELECT c.id, c.citation_count, COALESCE(array_agg(e.signal) FILTER (WHERE e.signal IS NOT NULL), '{}')
		FROM cases c
		LEFT JOIN citation_edges e ON e.target_id = c.id
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY c.id, c.citation_count
		ORDER BY c.citation_count DESC, c.id
		LIMIT ` + arg(limitArg(limit))

	rows, err := r.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "failed to rank authorities")
	}
	defer rows.Close()

	var out []citation.AuthorityEntry
	for rows.Next() {
		var (
			entry   citation.AuthorityEntry
			signals pq.StringArray
		)
		if err := rows.Scan(&entry.CaseID, &entry.InDegree, &signals); err != nil {
			return nil, dbError(err, "failed to scan authority")
		}
		sigs := make([]citation.Signal, 0, len(signals))
		for _, s := range signals {
			sigs = append(sigs, citation.Signal(s))
		}
		entry.Badge = citation.ComputeBadge(sigs)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to iterate authorities")
	}
	return out, nil
}

//Personal.AI order the ending
