package citation

import "github.com/sagerock/ai-law-research/pkg/types/common"

// Event types published on the event bus.
const (
	EventEdgeUpserted = "citation.edge.upserted"
	EventEdgeRemoved  = "citation.edge.removed"
	EventBadgeChanged = "citation.badge.changed"
)

// EdgeChangedEvent is keyed by the target case so consumers see a case's
// inbound edges in order.
type EdgeChangedEvent struct {
	common.BaseEvent
	Edge           Edge          `json:"edge"`
	Outcome        UpsertOutcome `json:"outcome,omitempty"`
	PreviousSignal Signal        `json:"previous_signal,omitempty"`
}

func NewEdgeUpsertedEvent(e *Edge, res UpsertResult) *EdgeChangedEvent {
	return &EdgeChangedEvent{
		BaseEvent:      common.NewBaseEvent(EventEdgeUpserted, e.TargetID),
		Edge:           *e,
		Outcome:        res.Outcome,
		PreviousSignal: res.PreviousSignal,
	}
}

func NewEdgeRemovedEvent(key EdgeKey) *EdgeChangedEvent {
	return &EdgeChangedEvent{
		BaseEvent: common.NewBaseEvent(EventEdgeRemoved, key.TargetID),
		Edge:      Edge{SourceID: key.SourceID, TargetID: key.TargetID, Paragraph: key.Paragraph, OriginID: key.OriginID},
	}
}

// BadgeChangedEvent fires when a recompute yields a different badge.
type BadgeChangedEvent struct {
	common.BaseEvent
	CaseID   string `json:"case_id"`
	Previous Badge  `json:"previous,omitempty"`
	Current  Badge  `json:"current"`
}

func NewBadgeChangedEvent(caseID string, previous, current Badge) *BadgeChangedEvent {
	return &BadgeChangedEvent{
		BaseEvent: common.NewBaseEvent(EventBadgeChanged, caseID),
		CaseID:    caseID,
		Previous:  previous,
		Current:   current,
	}
}

//Personal.AI order the ending
