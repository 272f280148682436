package kafka

import (
	"context"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
	"github.com/sagerock/ai-law-research/pkg/types/common"
)

const sourceService = "lawres"

type batchPublisher interface {
	Publish(ctx context.Context, msg *Message) error
	PublishBatch(ctx context.Context, msgs []*Message) (*BatchResult, error)
}

// EventPublisher puts citation domain events on the bus. Edge events go to the
// edge topic and badge events to the badge topic, both keyed by aggregate id.
type EventPublisher struct {
	producer batchPublisher
	topics   Topics
	logger   logging.Logger
}

func NewEventPublisher(p *Producer, topics Topics, logger logging.Logger) *EventPublisher {
	return newEventPublisher(p, topics, logger)
}

func newEventPublisher(p batchPublisher, topics Topics, logger logging.Logger) *EventPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &EventPublisher{producer: p, topics: topics, logger: logger.Named("event_publisher")}
}

func (p *EventPublisher) topicFor(ev common.DomainEvent) (string, bool) {
	switch ev.EventType() {
	case citation.EventEdgeUpserted, citation.EventEdgeRemoved:
		return p.topics.Edges, true
	case citation.EventBadgeChanged:
		return p.topics.Badges, true
	}
	return "", false
}

// Publish implements citation.EventPublisher. Unknown event types are skipped.
func (p *EventPublisher) Publish(ctx context.Context, events ...common.DomainEvent) error {
	msgs := make([]*Message, 0, len(events))
	for _, ev := range events {
		topic, ok := p.topicFor(ev)
		if !ok {
			p.logger.Debug("Skipping unrouted event", logging.String("event_type", ev.EventType()))
			continue
		}
		env, err := NewEventEnvelope(ev.EventType(), sourceService, ev)
		if err != nil {
			return err
		}
		env.EventID = ev.EventID()
		env.Timestamp = ev.OccurredAt()
		msg, err := env.ToMessage(topic, ev.AggregateID())
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	res, err := p.producer.PublishBatch(ctx, msgs)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return errors.Wrap(res.Errors[0], errors.ErrCodeExternalService, "event publish incomplete")
	}
	return nil
}

// RequestIngestion enqueues a feed ingestion request for a worker.
func (p *EventPublisher) RequestIngestion(ctx context.Context, req IngestionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	env, err := NewEventEnvelope(EventTypeIngestionRequested, sourceService, req)
	if err != nil {
		return "", err
	}
	key := req.FeedURI
	if key == "" {
		key = req.RetryOf
	}
	msg, err := env.ToMessage(p.topics.Ingestion, key)
	if err != nil {
		return "", err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return "", err
	}
	return env.EventID, nil
}

var _ citation.EventPublisher = (*EventPublisher)(nil)

//Personal.AI order the ending
