package milvus

import (
	"context"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

const (
	DefaultCollection = "case_chunks"

	fieldChunkID      = "chunk_id"
	fieldCaseID       = "case_id"
	fieldChunkIndex   = "chunk_index"
	fieldSection      = "section"
	fieldCourtID      = "court_id"
	fieldJurisdiction = "jurisdiction"
	fieldDecisionDay  = "decision_day"
	fieldText         = "text"
	fieldEmbedding    = "embedding"

	maxIDLength   = 256
	maxTextLength = 8192
)

// CollectionConfig controls the chunk collection layout.
type CollectionConfig struct {
	Name           string
	Dimension      int
	ShardsNum      int32
	HNSWM          int
	EfConstruction int
}

func (c *CollectionConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultCollection
	}
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.ShardsNum == 0 {
		c.ShardsNum = 2
	}
	if c.HNSWM == 0 {
		c.HNSWM = 16
	}
	if c.EfConstruction == 0 {
		c.EfConstruction = 200
	}
}

// ChunkSchema describes one row per opinion chunk. decision_day is YYYYMMDD
// with 0 for undated cases.
func ChunkSchema(name string, dim int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("embedded opinion chunks").
		WithField(entity.NewField().WithName(fieldChunkID).WithDataType(entity.FieldTypeVarChar).
			WithIsPrimaryKey(true).WithMaxLength(maxIDLength)).
		WithField(entity.NewField().WithName(fieldCaseID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxIDLength)).
		WithField(entity.NewField().WithName(fieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldSection).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName(fieldCourtID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxIDLength)).
		WithField(entity.NewField().WithName(fieldJurisdiction).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName(fieldDecisionDay).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTextLength)).
		WithField(entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))
}

// CollectionManager creates and loads the chunk collection.
type CollectionManager struct {
	client *Client
	config CollectionConfig
	logger logging.Logger
}

func NewCollectionManager(c *Client, cfg CollectionConfig, logger logging.Logger) *CollectionManager {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CollectionManager{client: c, config: cfg, logger: logger.Named("milvus_collection")}
}

func (m *CollectionManager) Name() string { return m.config.Name }

// EnsureCollection creates the collection and its HNSW index when missing,
// then loads it for search.
func (m *CollectionManager) EnsureCollection(ctx context.Context) error {
	mc := m.client.SDK()
	has, err := mc.HasCollection(ctx, m.config.Name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchUnavailable, "has collection failed")
	}
	if !has {
		if err := mc.CreateCollection(ctx, ChunkSchema(m.config.Name, m.config.Dimension), m.config.ShardsNum); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "create collection failed").WithDetail(m.config.Name)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.HNSWM, m.config.EfConstruction)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeValidation, "invalid index params")
		}
		if err := mc.CreateIndex(ctx, m.config.Name, fieldEmbedding, idx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "create index failed").WithDetail(m.config.Name)
		}
		m.logger.Info("Collection created",
			logging.String("name", m.config.Name),
			logging.Int("dimension", m.config.Dimension))
	}
	if err := mc.LoadCollection(ctx, m.config.Name, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "load collection failed").WithDetail(m.config.Name)
	}
	return nil
}

// DropCollection is used by reindex to start from an empty collection.
func (m *CollectionManager) DropCollection(ctx context.Context) error {
	mc := m.client.SDK()
	has, err := mc.HasCollection(ctx, m.config.Name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchUnavailable, "has collection failed")
	}
	if !has {
		return nil
	}
	if err := mc.DropCollection(ctx, m.config.Name); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "drop collection failed")
	}
	m.logger.Info("Collection dropped", logging.String("name", m.config.Name))
	return nil
}

//Personal.AI order the ending
