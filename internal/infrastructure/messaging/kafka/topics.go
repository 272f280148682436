package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

const (
	TopicIngestionRequests   = "ingestion.requests"
	TopicCitationEdges       = "citation.edges"
	TopicCitationBadges      = "citation.badges"
	TopicDeadLetterIngestion = "dead_letter.ingestion"
)

const schemaVersion = "v1"

// EventEnvelope wraps every payload put on the bus.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// EventTypeIngestionRequested marks a feed ingestion request.
const EventTypeIngestionRequested = "ingestion.requested"

// IngestionRequest asks a worker to run a job over FeedURI. RetryOf names the
// failed or partial job whose committed offset the new job resumes from.
type IngestionRequest struct {
	FeedURI   string `json:"feed_uri"`
	RetryOf   string `json:"retry_of,omitempty"`
	Requester string `json:"requester,omitempty"`
}

func (r IngestionRequest) Validate() error {
	if strings.TrimSpace(r.FeedURI) == "" && r.RetryOf == "" {
		return errors.New(errors.ErrCodeValidation, "feed_uri or retry_of required")
	}
	return nil
}

func NewEventEnvelope(eventType, source string, payload any) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

func (e *EventEnvelope) DecodePayload(target any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "empty payload").WithDetail(e.EventType)
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode payload")
	}
	return nil
}

// ToMessage renders the envelope for topic, partitioned by key.
func (e *EventEnvelope) ToMessage(topic, key string) (*Message, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return &Message{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source_service": e.Source,
			"schema_version": e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

func MessageToEventEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// IngestionRequestHandler adapts fn into a MessageHandler for the ingestion
// request topic. Malformed messages are logged and acknowledged.
func IngestionRequestHandler(fn func(ctx context.Context, req IngestionRequest) error, logger logging.Logger) MessageHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(ctx context.Context, msg *Message) error {
		env, err := MessageToEventEnvelope(msg)
		if err != nil {
			logger.Warn("Dropping malformed ingestion request", logging.Int64("offset", msg.Offset), logging.Err(err))
			return nil
		}
		var req IngestionRequest
		if err := env.DecodePayload(&req); err != nil {
			logger.Warn("Dropping ingestion request without payload", logging.String("event_id", env.EventID), logging.Err(err))
			return nil
		}
		if err := req.Validate(); err != nil {
			logger.Warn("Dropping invalid ingestion request", logging.String("event_id", env.EventID), logging.Err(err))
			return nil
		}
		return fn(ctx, req)
	}
}

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to dial kafka").WithDetail(brokers[0])
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: logger.Named("kafka_topics")}, nil
}

func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "partitions and replication factor must be > 0").WithDetail(cfg.Name)
	}
	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: fmt.Sprintf("%d", cfg.RetentionMs)})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: cfg.CleanupPolicy})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeExternalService, "create topic failed").WithDetail(cfg.Name)
	}
	m.logger.Info("Topic created", logging.String("topic", cfg.Name))
	return nil
}

func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error { return m.conn.Close() }

// Topics resolves configured topic names, falling back to the defaults.
type Topics struct {
	Ingestion  string
	Edges      string
	Badges     string
	DeadLetter string
}

func TopicsFromConfig(cfg config.KafkaConfig) Topics {
	t := Topics{
		Ingestion:  cfg.IngestionTopic,
		Edges:      cfg.EdgeTopic,
		Badges:     cfg.BadgeTopic,
		DeadLetter: TopicDeadLetterIngestion,
	}
	if t.Ingestion == "" {
		t.Ingestion = TopicIngestionRequests
	}
	if t.Edges == "" {
		t.Edges = TopicCitationEdges
	}
	if t.Badges == "" {
		t.Badges = TopicCitationBadges
	}
	return t
}

const day = int64(24 * time.Hour / time.Millisecond)

// DefaultTopics lists the topics a deployment needs. Edge and badge topics
// are compacted so the latest event per case survives.
func DefaultTopics(t Topics) []TopicConfig {
	return []TopicConfig{
		{Name: t.Ingestion, NumPartitions: 3, ReplicationFactor: 1, RetentionMs: 7 * day},
		{Name: t.Edges, NumPartitions: 12, ReplicationFactor: 1, RetentionMs: 30 * day},
		{Name: t.Badges, NumPartitions: 6, ReplicationFactor: 1, CleanupPolicy: "compact"},
		{Name: t.DeadLetter, NumPartitions: 1, ReplicationFactor: 1, RetentionMs: 30 * day},
	}
}

//Personal.AI order the ending
