package ingestion

import (
	"context"
	"time"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	ingestdomain "github.com/sagerock/ai-law-research/internal/domain/ingestion"
	searchdomain "github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_extractor"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_resolver"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

type outcome string

const (
	outcomeProcessed outcome = "processed"
	outcomeSkipped   outcome = "skipped"
	outcomeFailed    outcome = "failed"
)

// ingestRecord stores one case and its outbound citations. A case whose
// cleaned content hashes the same as the stored copy is skipped untouched.
// The new hash is committed only after the citations are written, so a record
// interrupted in between is processed again on the next run.
func (c *Coordinator) ingestRecord(ctx context.Context, r *jobRun, item ingestdomain.FeedItem) (outcome, error) {
	if item.Err != nil {
		return outcomeFailed, item.Err
	}
	rec := item.Record
	cs := rec.ToCase(c.cfg.MaxTextBytes)
	if err := cs.Validate(); err != nil {
		return outcomeFailed, errors.IngestionFailure(err, rec.ID)
	}

	var (
		prev   string
		exists bool
	)
	err := c.withRetry(ctx, func() error {
		var err error
		prev, exists, err = c.store.ContentHash(ctx, cs.ID)
		return err
	})
	if err != nil {
		return outcomeFailed, errors.IngestionFailure(err, cs.ID)
	}
	if exists && prev == cs.ContentHash {
		return outcomeSkipped, nil
	}

	if court := rec.Court(); court != nil {
		if err := c.withRetry(ctx, func() error { return c.store.UpsertCourt(ctx, court) }); err != nil {
			return outcomeFailed, errors.IngestionFailure(err, cs.ID)
		}
	}
	staged := *cs
	staged.ContentHash = prev
	if err := c.withRetry(ctx, func() error {
		_, err := c.store.UpsertCase(ctx, &staged)
		return err
	}); err != nil {
		return outcomeFailed, errors.IngestionFailure(err, cs.ID)
	}
	if _, err := c.citator.AttachCase(ctx, cs); err != nil {
		return outcomeFailed, errors.IngestionFailure(err, cs.ID)
	}

	doc := citation_extractor.NewDocumentFromParagraphs(rec.ParagraphsOf(cs.Content))
	res, err := c.citator.ResolveDocument(ctx, cs.ID, doc)
	if err != nil {
		return outcomeFailed, errors.IngestionFailure(err, cs.ID)
	}
	var written int
	var changed []string
	if err := c.withRetry(ctx, func() error {
		wr, err := c.citator.WriteCitations(ctx, res)
		if wr != nil {
			written += wr.EdgesWritten()
			changed = append(changed, wr.CountChanged...)
		}
		return err
	}); err != nil {
		r.edges.Add(int64(written))
		return outcomeFailed, errors.IngestionFailure(err, cs.ID)
	}
	r.edges.Add(int64(written))
	if err := c.withRetry(ctx, func() error { return c.store.SetContentHash(ctx, cs.ID, cs.ContentHash) }); err != nil {
		return outcomeFailed, errors.IngestionFailure(err, cs.ID)
	}
	r.addKeys(citation_resolver.KeysFor(cs.Citations))

	c.index(ctx, cs, changed)
	return outcomeProcessed, nil
}

// index refreshes the lexical and vector indexes. Index failures are logged
// and counted; the graph stays authoritative.
func (c *Coordinator) index(ctx context.Context, cs *citation.Case, countChanged []string) {
	log := c.logger.With(logging.CaseID(cs.ID))
	if c.lexical != nil {
		doc := searchdomain.NewCaseDocument(cs)
		if in, _, err := c.store.CountEdges(ctx, cs.ID); err == nil {
			doc.CitationCount = in
		}
		if err := c.lexical.IndexCase(ctx, doc); err != nil {
			log.Warn("Lexical indexing failed", logging.Err(err))
			c.metrics.RecordError("lexical_index", string(errors.GetCode(err)))
		}
		c.refreshCounts(ctx, countChanged)
	}

	if c.vectors == nil || c.embedder == nil {
		return
	}
	chunks := ingestdomain.ChunkCase(cs.ID, cs.Content, c.cfg.ChunkWords, c.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vecs, err := c.embedder.EmbedDocuments(ctx, texts)
	if err == nil && len(vecs) != len(chunks) {
		err = errors.New(errors.ErrCodeEmbeddingFailed, "embedding count mismatch")
	}
	if err != nil {
		log.Warn("Chunk embedding failed", logging.Err(err))
		c.metrics.RecordError("embedding", string(errors.GetCode(err)))
		return
	}
	out := make([]searchdomain.ChunkVector, len(chunks))
	for i, ch := range chunks {
		out[i] = searchdomain.ChunkVector{
			CaseID:       cs.ID,
			Index:        ch.Index,
			Section:      ch.Section,
			Text:         ch.Text,
			CourtID:      cs.CourtID,
			Jurisdiction: cs.Jurisdiction,
			DecisionDate: cs.DecisionDate,
			Vector:       vecs[i],
		}
	}
	if err := c.vectors.UpsertChunks(ctx, cs.ID, out); err != nil {
		log.Warn("Vector indexing failed", logging.Err(err))
		c.metrics.RecordError("vector_index", string(errors.GetCode(err)))
	}
}

// refreshCounts pushes current inbound counts of ids to the lexical index.
func (c *Coordinator) refreshCounts(ctx context.Context, ids []string) {
	if c.lexical == nil {
		return
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		in, _, err := c.store.CountEdges(ctx, id)
		if err != nil {
			continue
		}
		if err := c.lexical.UpdateCitationCount(ctx, id, in); err != nil && !errors.IsNotFound(err) {
			c.logger.Debug("Citation count update failed", logging.CaseID(id), logging.Err(err))
		}
	}
}

// withRetry retries fn with exponential backoff on server-side errors.
func (c *Coordinator) withRetry(ctx context.Context, fn func() error) error {
	delay := c.cfg.RetryBaseDelay
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= c.cfg.MaxRetries || !retryable(err) {
			return err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	code := errors.GetCode(err)
	return !errors.IsClientError(code)
}

//Personal.AI order the ending
