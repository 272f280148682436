package citator

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_extractor"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_resolver"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// CitationResult is one extracted mention with its resolution and signal.
type CitationResult struct {
	Raw        string                   `json:"raw"`
	Citation   string                   `json:"citation"`
	CaseName   string                   `json:"case_name,omitempty"`
	Kind       citation_extractor.Kind  `json:"kind"`
	Paragraph  int                      `json:"paragraph"`
	Start      int                      `json:"start"`
	End        int                      `json:"end"`
	Status     citation_resolver.Status `json:"status"`
	CaseID     string                   `json:"case_id,omitempty"`
	Candidates []string                 `json:"candidates,omitempty"`
	Signal     citation.Signal          `json:"signal"`
	Confidence float64                  `json:"confidence"`
}

// ResolveResult is everything a document contributes to the graph. Edges may
// include subsequent-history edges whose source is not SourceID, as in
// "A, overruled by B" which yields B -> A with SourceID as its origin. A
// preview without SourceID carries only history edges.
type ResolveResult struct {
	SourceID   string                        `json:"source_id,omitempty"`
	Citations  []CitationResult              `json:"citations"`
	Edges      []citation.Edge               `json:"edges"`
	Unresolved []citation.UnresolvedCitation `json:"unresolved,omitempty"`
}

// WriteResult counts what WriteCitations changed.
type WriteResult struct {
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Removed    int `json:"removed"`
	Unresolved int `json:"unresolved"`

	// ClearedUnresolved is the number of earlier unresolved entries of the
	// source dropped before the new ones were recorded.
	ClearedUnresolved int `json:"cleared_unresolved"`

	// CountChanged lists cases whose inbound edge count moved.
	CountChanged []string `json:"count_changed,omitempty"`
}

// EdgesWritten is the number of edge mutations.
func (w *WriteResult) EdgesWritten() int { return w.Created + w.Updated + w.Removed }

func (w *WriteResult) touch(id string) {
	for _, have := range w.CountChanged {
		if have == id {
			return
		}
	}
	w.CountChanged = append(w.CountChanged, id)
}

func (s *serviceImpl) ResolveCitations(ctx context.Context, sourceID, text string) (*ResolveResult, error) {
	return s.ResolveDocument(ctx, sourceID, citation_extractor.NewDocument(text))
}

func (s *serviceImpl) ResolveDocument(ctx context.Context, sourceID string, doc citation_extractor.Document) (*ResolveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mentions := s.extractor.Extract(doc)
	out := &ResolveResult{SourceID: sourceID, Citations: make([]CitationResult, 0, len(mentions))}
	if len(mentions) == 0 {
		return out, nil
	}

	resolutions := make([]citation_resolver.Resolution, len(mentions))
	for i := range mentions {
		resolutions[i] = s.resolver.Resolve(&mentions[i])
	}

	// Subsequent history between neighbouring mentions.
	type link struct {
		earlier, later int
		signal         citation.Signal
	}
	var links []link
	skips := make(map[int][][2]int)
	for i := 0; i+1 < len(mentions); i++ {
		a, b := &mentions[i], &mentions[i+1]
		if a.Paragraph != b.Paragraph || b.IsShortForm() {
			continue
		}
		sig, ok := s.classifier.HistoryLink(doc.Text[a.End:b.Start])
		if !ok {
			continue
		}
		links = append(links, link{i, i + 1, sig})
		gap := [2]int{a.End, b.Start}
		skips[i] = append(skips[i], gap)
		skips[i+1] = append(skips[i+1], gap)
	}

	edges := newEdgeSet()
	seenUnresolved := make(map[string]struct{})
	for i := range mentions {
		m, res := &mentions[i], resolutions[i]
		lo, hi := paragraphBounds(doc, m.Paragraph)
		signal := s.classifier.Classify(contextText(doc.Text, m.Start, m.End, s.cfg.ContextWindow, lo, hi, skips[i]))
		snippet := doc.Window(m.Start, m.End, s.cfg.SnippetLength/2, lo, hi)

		out.Citations = append(out.Citations, CitationResult{
			Raw:        m.Raw,
			Citation:   m.Citation(),
			CaseName:   m.AdjacentCaseName(),
			Kind:       m.Kind,
			Paragraph:  m.Paragraph,
			Start:      m.Start,
			End:        m.End,
			Status:     res.Status,
			CaseID:     res.CaseID,
			Candidates: res.Candidates,
			Signal:     signal,
			Confidence: m.Confidence,
		})

		if !res.Resolved() {
			s.logger.Debug("Citation not resolved",
				logging.Citation(m.Raw),
				logging.String("status", string(res.Status)),
				logging.Int("paragraph", m.Paragraph))
			if res.Key == "" || sourceID == "" {
				continue
			}
			dedup := res.Key + "#" + strconv.Itoa(m.Paragraph)
			if _, dup := seenUnresolved[dedup]; dup {
				continue
			}
			seenUnresolved[dedup] = struct{}{}
			out.Unresolved = append(out.Unresolved, citation.UnresolvedCitation{
				SourceID:   sourceID,
				Raw:        m.Raw,
				LookupKey:  res.Key,
				Paragraph:  m.Paragraph,
				Signal:     signal,
				Confidence: m.Confidence,
				Snippet:    snippet,
				Reason:     res.Reason(),
			})
			continue
		}
		if sourceID == "" || res.CaseID == sourceID {
			continue
		}
		edges.add(citation.Edge{
			SourceID:   sourceID,
			TargetID:   res.CaseID,
			Signal:     signal,
			Confidence: m.Confidence,
			Paragraph:  m.Paragraph,
			Snippet:    snippet,
		})
	}

	for _, l := range links {
		a, b := resolutions[l.earlier], resolutions[l.later]
		if !a.Resolved() || !b.Resolved() || a.CaseID == b.CaseID {
			continue
		}
		ma, mb := &mentions[l.earlier], &mentions[l.later]
		origin := sourceID
		if origin == b.CaseID {
			origin = ""
		}
		edges.add(citation.Edge{
			SourceID:   b.CaseID,
			TargetID:   a.CaseID,
			Signal:     l.signal,
			Confidence: min(ma.Confidence, mb.Confidence),
			Paragraph:  ma.Paragraph,
			OriginID:   origin,
			Snippet:    clip(doc.Text[ma.Start:mb.End], s.cfg.SnippetLength),
		})
	}
	out.Edges = edges.list()
	return out, nil
}

func (s *serviceImpl) WriteCitations(ctx context.Context, res *ResolveResult) (*WriteResult, error) {
	if res == nil || strings.TrimSpace(res.SourceID) == "" {
		return nil, errors.InvalidParam("source id is required to write citations")
	}
	// History edges other documents asserted about this source stay.
	owned := make([]citation.Edge, 0, len(res.Edges))
	want := make(map[citation.EdgeKey]struct{}, len(res.Edges))
	for i := range res.Edges {
		if res.Edges[i].Origin() != res.SourceID {
			continue
		}
		owned = append(owned, res.Edges[i])
		want[res.Edges[i].Key()] = struct{}{}
	}

	existing, err := s.store.EdgesByOrigin(ctx, res.SourceID)
	if err != nil {
		return nil, err
	}
	wr := &WriteResult{}
	for _, e := range existing {
		if _, keep := want[e.Key()]; keep {
			continue
		}
		removed, err := s.removeKnown(ctx, e.Key(), e.Signal)
		if err != nil {
			return wr, err
		}
		if removed {
			wr.Removed++
			wr.touch(e.TargetID)
		}
	}

	for i := range owned {
		e := owned[i]
		if err := ctx.Err(); err != nil {
			return wr, err
		}
		up, err := s.UpsertEdge(ctx, &e)
		if err != nil {
			return wr, err
		}
		switch up.Outcome {
		case citation.OutcomeCreated:
			wr.Created++
			wr.touch(e.TargetID)
		case citation.OutcomeUpdated:
			wr.Updated++
		default:
			wr.Unchanged++
		}
	}

	cleared, err := s.store.ClearUnresolved(ctx, res.SourceID)
	if err != nil {
		return wr, err
	}
	wr.ClearedUnresolved = cleared
	for i := range res.Unresolved {
		u := res.Unresolved[i]
		if err := s.store.RecordUnresolved(ctx, &u); err != nil {
			return wr, err
		}
		s.metrics.UnresolvedTotal.WithLabelValues(string(u.Reason)).Inc()
		wr.Unresolved++
	}
	return wr, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// edgeSet merges edges sharing one key, keeping the
// highest-precedence signal and the higher confidence.
type edgeSet struct {
	order []citation.EdgeKey
	byKey map[citation.EdgeKey]*citation.Edge
}

func newEdgeSet() *edgeSet {
	return &edgeSet{byKey: make(map[citation.EdgeKey]*citation.Edge)}
}

func (s *edgeSet) add(e citation.Edge) {
	key := e.Key()
	have, ok := s.byKey[key]
	if !ok {
		s.order = append(s.order, key)
		s.byKey[key] = &e
		return
	}
	if e.Signal.Outranks(have.Signal) {
		have.Signal, have.Snippet = e.Signal, e.Snippet
	}
	if e.Confidence > have.Confidence {
		have.Confidence = e.Confidence
	}
}

func (s *edgeSet) list() []citation.Edge {
	out := make([]citation.Edge, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.byKey[k])
	}
	return out
}

func paragraphBounds(doc citation_extractor.Document, idx int) (int, int) {
	if idx >= 0 && idx < len(doc.Paragraphs) && doc.Paragraphs[idx].Index == idx {
		p := doc.Paragraphs[idx]
		return p.Start, p.Start + len(p.Text)
	}
	for _, p := range doc.Paragraphs {
		if p.Index == idx {
			return p.Start, p.Start + len(p.Text)
		}
	}
	return 0, len(doc.Text)
}

// contextText is the classifier input around [start, end): window bytes on
// each side, clipped to [lo, hi), with the skip ranges cut out.
func contextText(text string, start, end, window, lo, hi int, skip [][2]int) string {
	from, to := max(start-window, lo), min(end+window, hi)
	for from > 0 && from < len(text) && !utf8.RuneStart(text[from]) {
		from++
	}
	for to > 0 && to < len(text) && !utf8.RuneStart(text[to]) {
		to--
	}
	if from >= to {
		return ""
	}
	if len(skip) == 0 {
		return strings.TrimSpace(text[from:to])
	}
	sort.Slice(skip, func(i, j int) bool { return skip[i][0] < skip[j][0] })
	var b strings.Builder
	pos := from
	for _, r := range skip {
		s, e := max(r[0], from), min(r[1], to)
		if s >= e {
			continue
		}
		if s > pos {
			b.WriteString(text[pos:s])
		}
		b.WriteString(" ; ")
		pos = e
	}
	if pos < to {
		b.WriteString(text[pos:to])
	}
	return strings.TrimSpace(b.String())
}

func clip(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

//Personal.AI order the ending
