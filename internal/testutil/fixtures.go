package testutil

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/domain/ingestion"
	"github.com/sagerock/ai-law-research/pkg/types/common"
)

// ScenarioText is the subsequent-history sentence used across tests.
const ScenarioText = "Smith v. Jones, 123 U.S. 456 (1990), overruled by Brown v. Board, 98 U.S. 12 (2000)"

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func newCase(id, title, cite string, decided *time.Time, content string) *citation.Case {
	return &citation.Case{
		ID:           id,
		Title:        title,
		CourtID:      "scotus",
		CourtName:    "Supreme Court of the United States",
		Jurisdiction: "federal",
		DecisionDate: decided,
		Citations:    []string{cite},
		Content:      content,
		ContentHash:  ingestion.ContentHash(content),
	}
}

func SmithCase() *citation.Case {
	return newCase("smith", "Smith v. Jones", "123 U.S. 456", Date(1990, 5, 1),
		"The statute is construed narrowly.")
}

func BrownCase() *citation.Case {
	return newCase("brown", "Brown v. Board", "98 U.S. 12", Date(2000, 3, 15),
		"We revisit the construction adopted in Smith v. Jones, 123 U.S. 456 (1990), and decline to follow it.")
}

// RecordLine renders a feed record as one JSONL line.
func RecordLine(r ingestion.Record) string {
	b, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Feed joins records into a JSONL document.
func Feed(records ...ingestion.Record) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, RecordLine(r))
	}
	return strings.Join(lines, "\n") + "\n"
}

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []common.DomainEvent
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, events ...common.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.Err
}

func (p *RecordingPublisher) Events() []common.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]common.DomainEvent(nil), p.events...)
}

// OfType filters events by type.
func (p *RecordingPublisher) OfType(eventType string) []common.DomainEvent {
	var out []common.DomainEvent
	for _, ev := range p.Events() {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

//Personal.AI order the ending
