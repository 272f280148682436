// Package citation holds the core domain of the citator: cases, directed
// citation edges with their treatment signals, and the badge derived from a
// case's inbound edges.
package citation

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sagerock/ai-law-research/pkg/errors"
)

// Court is a deciding court.
type Court struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Jurisdiction string `json:"jurisdiction"`
}

// Case is a canonical legal decision.
type Case struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	CourtID      string     `json:"court_id,omitempty"`
	CourtName    string     `json:"court_name,omitempty"`
	Jurisdiction string     `json:"jurisdiction,omitempty"`
	DecisionDate *time.Time `json:"decision_date,omitempty"`

	// Citations holds normalized reporter and parallel citations,
	// e.g. "123 U.S. 456".
	Citations []string `json:"citations"`

	Content       string    `json:"content,omitempty"`
	ContentHash   string    `json:"content_hash"`
	CitationCount int       `json:"citation_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the identity fields.
func (c *Case) Validate() error {
	if c == nil {
		return errors.InvalidParam("case is nil")
	}
	if strings.TrimSpace(c.ID) == "" {
		return errors.InvalidParam("case id is required")
	}
	return nil
}

// PrimaryCitation returns the first citation string, if any.
func (c *Case) PrimaryCitation() string {
	if len(c.Citations) == 0 {
		return ""
	}
	return c.Citations[0]
}

// Summary projects the case onto the fields shown in citation panels.
func (c *Case) Summary() CaseSummary {
	return CaseSummary{
		ID:           c.ID,
		Title:        c.Title,
		CourtName:    c.CourtName,
		DecisionDate: c.DecisionDate,
		Citation:     c.PrimaryCitation(),
	}
}

// CaseSummary is the neighbour side of an edge as displayed in panels. For a
// dangling target only ID is set.
type CaseSummary struct {
	ID           string     `json:"id"`
	Title        string     `json:"title,omitempty"`
	CourtName    string     `json:"court_name,omitempty"`
	DecisionDate *time.Time `json:"decision_date,omitempty"`
	Citation     string     `json:"citation,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Edges
// ─────────────────────────────────────────────────────────────────────────────

// EdgeKey is the unit of idempotence and of write serialization. OriginID is
// empty for edges read from the source's own text.
type EdgeKey struct {
	SourceID  string `json:"source_id"`
	TargetID  string `json:"target_id"`
	Paragraph int    `json:"paragraph"`
	OriginID  string `json:"origin_id,omitempty"`
}

func (k EdgeKey) String() string {
	s := k.SourceID + "->" + k.TargetID + "#" + strconv.Itoa(k.Paragraph)
	if k.OriginID != "" {
		s += "@" + k.OriginID
	}
	return s
}

// Origin returns the case whose text produced the edge.
func (k EdgeKey) Origin() string {
	if k.OriginID == "" {
		return k.SourceID
	}
	return k.OriginID
}

// Edge is a directed citation from SourceID to TargetID. Edges reference cases
// by identifier only. A subsequent-history edge found in a third case's text
// ("Smith, aff'd, Brown") carries that case as OriginID; Paragraph is then a
// paragraph of the origin.
type Edge struct {
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	Signal     Signal    `json:"signal"`
	Confidence float64   `json:"confidence"`
	Paragraph  int       `json:"paragraph"`
	OriginID   string    `json:"origin_id,omitempty"`
	Snippet    string    `json:"snippet,omitempty"`
	Dangling   bool      `json:"dangling"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key returns the (source, target, paragraph, origin) identity.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{SourceID: e.SourceID, TargetID: e.TargetID, Paragraph: e.Paragraph, OriginID: e.OriginID}
}

// Origin returns the case whose text produced the edge.
func (e *Edge) Origin() string { return e.Key().Origin() }

// Validate checks identity, signal and confidence range.
func (e *Edge) Validate() error {
	if e.SourceID == "" || e.TargetID == "" {
		return errors.New(errors.ErrCodeInvalidEdge, "source and target are required")
	}
	if e.SourceID == e.TargetID {
		return errors.New(errors.ErrCodeInvalidEdge, "self citation").WithDetail(e.SourceID)
	}
	if !e.Signal.Valid() {
		return errors.New(errors.ErrCodeInvalidSignal, "invalid treatment signal").WithDetail(string(e.Signal))
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return errors.New(errors.ErrCodeInvalidEdge, "confidence must be within [0,1]")
	}
	if e.Paragraph < 0 {
		return errors.New(errors.ErrCodeInvalidEdge, "paragraph must be >= 0")
	}
	if e.OriginID == e.SourceID {
		return errors.New(errors.ErrCodeInvalidEdge, "origin equals source; leave it empty").WithDetail(e.SourceID)
	}
	return nil
}

// SameContent reports whether two edges with one key carry the same payload.
func (e *Edge) SameContent(o *Edge) bool {
	return e.Signal == o.Signal && e.Confidence == o.Confidence && e.Snippet == o.Snippet
}

// EdgeView is an edge joined with the case on its far side.
type EdgeView struct {
	Edge
	Neighbor CaseSummary `json:"neighbor"`
}

// SortByNeighborDate orders views by neighbour decision date, newest first.
// Undated neighbours go last; ties break on neighbour id then paragraph.
func SortByNeighborDate(views []EdgeView) {
	sort.SliceStable(views, func(i, j int) bool {
		di, dj := views[i].Neighbor.DecisionDate, views[j].Neighbor.DecisionDate
		switch {
		case di != nil && dj == nil:
			return true
		case di == nil && dj != nil:
			return false
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.After(*dj)
		}
		if views[i].Neighbor.ID != views[j].Neighbor.ID {
			return views[i].Neighbor.ID < views[j].Neighbor.ID
		}
		return views[i].Paragraph < views[j].Paragraph
	})
}

// UpsertOutcome describes what UpsertEdge did.
type UpsertOutcome string

const (
	OutcomeCreated   UpsertOutcome = "created"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

// UpsertResult reports the outcome and the replaced signal, if any.
type UpsertResult struct {
	Outcome        UpsertOutcome
	PreviousSignal Signal
}

// Changed reports whether the stored edge set was mutated.
func (r UpsertResult) Changed() bool { return r.Outcome != OutcomeUnchanged }

// ─────────────────────────────────────────────────────────────────────────────
// Treatments and unresolved citations
// ─────────────────────────────────────────────────────────────────────────────

// TreatmentRecord is one classified inbound citation of a case.
type TreatmentRecord struct {
	CitingCase CaseSummary `json:"citing_case"`
	Signal     Signal      `json:"signal"`
	Confidence float64     `json:"confidence"`
	Paragraph  int         `json:"paragraph"`
	Snippet    string      `json:"snippet,omitempty"`
}

// TreatmentsFromEdges converts inbound edge views, preserving order.
func TreatmentsFromEdges(views []EdgeView) []TreatmentRecord {
	out := make([]TreatmentRecord, 0, len(views))
	for _, v := range views {
		out = append(out, TreatmentRecord{
			CitingCase: v.Neighbor,
			Signal:     v.Signal,
			Confidence: v.Confidence,
			Paragraph:  v.Paragraph,
			Snippet:    v.Snippet,
		})
	}
	return out
}

// UnresolvedReason says why a mention produced no edge.
type UnresolvedReason string

const (
	ReasonNoMatch   UnresolvedReason = "no_match"
	ReasonAmbiguous UnresolvedReason = "ambiguous"
)

// UnresolvedCitation keeps a recognised but unmatched mention for later
// reconciliation against cases ingested afterwards.
type UnresolvedCitation struct {
	SourceID   string           `json:"source_id"`
	Raw        string           `json:"raw"`
	LookupKey  string           `json:"lookup_key"`
	Paragraph  int              `json:"paragraph"`
	Signal     Signal           `json:"signal"`
	Confidence float64          `json:"confidence"`
	Snippet    string           `json:"snippet,omitempty"`
	Reason     UnresolvedReason `json:"reason"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ToEdge builds the edge this citation becomes once its target is known.
func (u *UnresolvedCitation) ToEdge(targetID string) Edge {
	return Edge{
		SourceID:   u.SourceID,
		TargetID:   targetID,
		Signal:     u.Signal,
		Confidence: u.Confidence,
		Paragraph:  u.Paragraph,
		Snippet:    u.Snippet,
	}
}

//Personal.AI order the ending
