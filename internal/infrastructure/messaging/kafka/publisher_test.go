package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/pkg/types/common"
)

type fakeBatchPublisher struct {
	single  []*Message
	batches [][]*Message
	result  *BatchResult
	err     error
}

func (f *fakeBatchPublisher) Publish(_ context.Context, msg *Message) error {
	f.single = append(f.single, msg)
	return f.err
}

func (f *fakeBatchPublisher) PublishBatch(_ context.Context, msgs []*Message) (*BatchResult, error) {
	f.batches = append(f.batches, msgs)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &BatchResult{Succeeded: len(msgs)}, nil
}

type otherEvent struct{ common.BaseEvent }

func TestEventPublisher_RoutesByType(t *testing.T) {
	fake := &fakeBatchPublisher{}
	p := newEventPublisher(fake, TopicsFromConfig(config.KafkaConfig{}), nil)

	edge := &citation.Edge{SourceID: "brown", TargetID: "smith", Paragraph: 2, Signal: citation.SignalOverruled, Confidence: 0.9}
	upserted := citation.NewEdgeUpsertedEvent(edge, citation.UpsertResult{Outcome: citation.OutcomeCreated})
	badge := citation.NewBadgeChangedEvent("smith", citation.BadgeGood, citation.BadgeNegative)
	other := &otherEvent{common.NewBaseEvent("unrelated", "x")}

	require.NoError(t, p.Publish(context.Background(), upserted, badge, other))
	require.Len(t, fake.batches, 1)
	msgs := fake.batches[0]
	require.Len(t, msgs, 2)

	assert.Equal(t, TopicCitationEdges, msgs[0].Topic)
	assert.Equal(t, "smith", string(msgs[0].Key))
	assert.Equal(t, TopicCitationBadges, msgs[1].Topic)
	assert.Equal(t, "smith", string(msgs[1].Key))

	env, err := MessageToEventEnvelope(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, upserted.EventID(), env.EventID)
	assert.Equal(t, citation.EventEdgeUpserted, env.EventType)

	var payload struct {
		Edge struct {
			SourceID string `json:"source_id"`
			Signal   string `json:"signal"`
		} `json:"edge"`
	}
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "overruled", payload.Edge.Signal)
}

func TestEventPublisher_NothingRouted(t *testing.T) {
	fake := &fakeBatchPublisher{}
	p := newEventPublisher(fake, TopicsFromConfig(config.KafkaConfig{}), nil)
	require.NoError(t, p.Publish(context.Background(), &otherEvent{common.NewBaseEvent("unrelated", "x")}))
	assert.Empty(t, fake.batches)
}

func TestEventPublisher_PartialFailureIsError(t *testing.T) {
	fake := &fakeBatchPublisher{result: &BatchResult{Failed: 1, Errors: []error{errors.New("leader not available")}}}
	p := newEventPublisher(fake, TopicsFromConfig(config.KafkaConfig{}), nil)
	err := p.Publish(context.Background(), citation.NewBadgeChangedEvent("smith", citation.BadgeGood, citation.BadgeCaution))
	assert.Error(t, err)
}

func TestEventPublisher_RequestIngestion(t *testing.T) {
	fake := &fakeBatchPublisher{}
	p := newEventPublisher(fake, TopicsFromConfig(config.KafkaConfig{IngestionTopic: "ingest"}), nil)

	id, err := p.RequestIngestion(context.Background(), IngestionRequest{FeedURI: "minio://feeds/2024.jsonl.gz"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, fake.single, 1)
	assert.Equal(t, "ingest", fake.single[0].Topic)
	assert.Equal(t, "minio://feeds/2024.jsonl.gz", string(fake.single[0].Key))

	_, err = p.RequestIngestion(context.Background(), IngestionRequest{})
	assert.Error(t, err)
}

//Personal.AI order the ending
