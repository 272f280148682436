package citation

import (
	"context"

	"github.com/sagerock/ai-law-research/pkg/types/common"
)

// CaseRef is the slice of a case needed to build the citation lookup index.
type CaseRef struct {
	ID        string
	Title     string
	Citations []string
}

// AuthorityFilter narrows an authority listing. Empty CaseIDs means the whole
// corpus.
type AuthorityFilter struct {
	CaseIDs      []string
	Jurisdiction string
	DateRange    common.DateRange
}

// AuthorityEntry is a case with its inbound citation count and badge.
type AuthorityEntry struct {
	CaseID   string
	InDegree int
	Badge    Badge
}

// CorpusStats counts what a store holds.
type CorpusStats struct {
	Cases      int `json:"cases"`
	Edges      int `json:"edges"`
	Dangling   int `json:"dangling_edges"`
	Unresolved int `json:"unresolved_citations"`
}

// CaseRepository persists cases and courts.
type CaseRepository interface {
	UpsertCase(ctx context.Context, c *Case) (created bool, err error)
	GetCase(ctx context.Context, id string) (*Case, error)
	GetCases(ctx context.Context, ids []string) (map[string]*Case, error)

	// ContentHash returns the stored hash of id, or found=false.
	ContentHash(ctx context.Context, id string) (hash string, found bool, err error)

	// SetContentHash records hash for id once its edges are written. It
	// fails with CaseNotFound for an unknown id.
	SetContentHash(ctx context.Context, id, hash string) error

	// DeleteCase removes a case, every edge it is the source of and every
	// edge its text originated. Edges that target it are kept and marked
	// dangling.
	DeleteCase(ctx context.Context, id string) error

	// ScanCitationRefs streams every case's citations to fn.
	ScanCitationRefs(ctx context.Context, fn func(CaseRef) error) error

	UpsertCourt(ctx context.Context, court *Court) error

	// MostCited lists cases by inbound edge count, highest first.
	MostCited(ctx context.Context, filter AuthorityFilter, limit int) ([]AuthorityEntry, error)

	Stats(ctx context.Context) (CorpusStats, error)
}

// GraphStore is the authoritative citation graph. UpsertEdge is serialized per
// EdgeKey only; writers touching different keys never block each other.
type GraphStore interface {
	// UpsertEdge inserts or replaces the edge with the same key. The source
	// must exist; a missing target marks the edge dangling.
	UpsertEdge(ctx context.Context, e *Edge) (UpsertResult, error)
	RemoveEdge(ctx context.Context, key EdgeKey) (removed bool, err error)

	// EdgesInto and EdgesFrom order by the neighbour's decision date, newest
	// first. limit <= 0 means no limit.
	EdgesInto(ctx context.Context, caseID string, limit int) ([]EdgeView, error)
	EdgesFrom(ctx context.Context, caseID string, limit int) ([]EdgeView, error)

	// EdgesByOrigin returns every edge whose Origin() is caseID, in no
	// particular order.
	EdgesByOrigin(ctx context.Context, caseID string) ([]Edge, error)

	InboundSignals(ctx context.Context, caseID string) ([]Signal, error)
	CountEdges(ctx context.Context, caseID string) (into int, from int, err error)

	// ReattachDangling clears the dangling marker of edges targeting caseID.
	ReattachDangling(ctx context.Context, caseID string) (int, error)

	RecordUnresolved(ctx context.Context, u *UnresolvedCitation) error

	// TakeUnresolved removes and returns unresolved citations whose lookup
	// key is one of keys.
	TakeUnresolved(ctx context.Context, keys []string) ([]UnresolvedCitation, error)

	// ClearUnresolved drops every unresolved citation recorded for sourceID.
	ClearUnresolved(ctx context.Context, sourceID string) (int, error)
}

// Store bundles both repositories; every backend implements it.
type Store interface {
	CaseRepository
	GraphStore
}

// EventPublisher emits domain events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, events ...common.DomainEvent) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...common.DomainEvent) error { return nil }

//Personal.AI order the ending
