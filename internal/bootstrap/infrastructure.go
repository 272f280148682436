// Package bootstrap assembles the backends and services named by a Config.
// Every backend is optional except the case store; a disabled backend leaves
// its field nil and the services fall back or degrade.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/infrastructure/database/memory"
	neo4jdriver "github.com/sagerock/ai-law-research/internal/infrastructure/database/neo4j"
	"github.com/sagerock/ai-law-research/internal/infrastructure/database/postgres"
	redisclient "github.com/sagerock/ai-law-research/internal/infrastructure/database/redis"
	"github.com/sagerock/ai-law-research/internal/infrastructure/embedding"
	"github.com/sagerock/ai-law-research/internal/infrastructure/messaging/kafka"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/prometheus"
	"github.com/sagerock/ai-law-research/internal/infrastructure/search/milvus"
	"github.com/sagerock/ai-law-research/internal/infrastructure/search/opensearch"
	minioclient "github.com/sagerock/ai-law-research/internal/infrastructure/storage/minio"
	"github.com/sagerock/ai-law-research/internal/infrastructure/storage/s3"
)

// Infrastructure holds the opened backend clients.
type Infrastructure struct {
	Memory   *memory.Store
	Postgres *postgres.Connection
	Pool     *pgxpool.Pool
	Neo4j    *neo4jdriver.Driver
	Redis    *redisclient.Client
	Producer *kafka.Producer
	Search   *opensearch.Client
	Milvus   *milvus.Client
	MinIO    *minioclient.MinIOClient
	S3       *s3.FeedSource
	Embedder *embedding.Embedder

	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	logger logging.Logger
}

// Check is a named readiness check.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// OpenInfrastructure connects every enabled backend. On error the clients
// opened so far are closed.
func OpenInfrastructure(ctx context.Context, cfg *config.Config, logger logging.Logger) (infra *Infrastructure, err error) {
	infra = &Infrastructure{logger: logger}
	defer func() {
		if err != nil {
			infra.Close()
			infra = nil
		}
	}()

	if cfg.Metrics.Enabled {
		if infra.Collector, err = prometheus.NewCollectorFromConfig(cfg.Metrics, logger); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	} else {
		infra.Collector = prometheus.NewNopCollector()
	}
	infra.Metrics = prometheus.NewAppMetrics(infra.Collector)

	switch cfg.Store.Driver {
	case config.StorePostgres:
		pgCfg := postgres.ConfigFrom(cfg.Database)
		if infra.Postgres, err = postgres.NewConnection(pgCfg, logger); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err = infra.Postgres.RunMigrations(); err != nil {
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		if infra.Pool, err = postgres.NewPool(ctx, pgCfg, logger); err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
	default:
		infra.Memory = memory.NewStore()
	}

	if cfg.Neo4j.Enabled {
		if infra.Neo4j, err = neo4jdriver.NewDriver(cfg.Neo4j, logger); err != nil {
			return nil, fmt.Errorf("neo4j: %w", err)
		}
	}
	if cfg.Redis.Enabled {
		if infra.Redis, err = redisclient.NewClient(cfg.Redis, logger); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}
	if cfg.Kafka.Enabled {
		if infra.Producer, err = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:   cfg.Kafka.Brokers,
			BatchSize: cfg.Kafka.BatchSize,
		}, logger); err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
	}
	if cfg.OpenSearch.Enabled {
		if infra.Search, err = opensearch.NewClient(opensearch.ConfigFromSettings(cfg.OpenSearch), logger); err != nil {
			return nil, fmt.Errorf("opensearch: %w", err)
		}
	}
	if cfg.Milvus.Enabled {
		if infra.Milvus, err = milvus.NewClient(milvus.ConfigFromSettings(cfg.Milvus), logger); err != nil {
			return nil, fmt.Errorf("milvus: %w", err)
		}
	}
	if cfg.MinIO.Enabled {
		if infra.MinIO, err = minioclient.NewMinIOClient(minioclient.ConfigFromSettings(cfg.MinIO), logger); err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
	}
	if cfg.S3.Enabled {
		if infra.S3, err = s3.NewFeedSource(ctx, cfg.S3, logger); err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
	}
	if cfg.Embedding.Enabled {
		if infra.Embedder, err = embedding.NewEmbedder(ctx, cfg.Embedding, logger); err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
	}

	logger.Info("infrastructure initialized",
		logging.String("store", cfg.Store.Driver),
		logging.Strings("backends", infra.enabled()),
	)
	return infra, nil
}

func (i *Infrastructure) enabled() []string {
	var names []string
	for name, on := range map[string]bool{
		"neo4j":      i.Neo4j != nil,
		"redis":      i.Redis != nil,
		"kafka":      i.Producer != nil,
		"opensearch": i.Search != nil,
		"milvus":     i.Milvus != nil,
		"minio":      i.MinIO != nil,
		"s3":         i.S3 != nil,
		"embedding":  i.Embedder != nil,
	} {
		if on {
			names = append(names, name)
		}
	}
	return names
}

// Checks lists a readiness check per connected backend.
func (i *Infrastructure) Checks() []Check {
	var checks []Check
	if i.Postgres != nil {
		checks = append(checks, Check{"postgres", i.Postgres.HealthCheck})
	}
	if i.Neo4j != nil {
		checks = append(checks, Check{"neo4j", i.Neo4j.HealthCheck})
	}
	if i.Redis != nil {
		checks = append(checks, Check{"redis", i.Redis.Ping})
	}
	if i.Search != nil {
		checks = append(checks, Check{"opensearch", i.Search.Ping})
	}
	if i.Milvus != nil {
		checks = append(checks, Check{"milvus", i.Milvus.CheckHealth})
	}
	if i.MinIO != nil {
		checks = append(checks, Check{"minio", func(ctx context.Context) error {
			_, err := i.MinIO.HealthCheck(ctx)
			return err
		}})
	}
	return checks
}

// Ready runs every check and reports whether all passed.
func (i *Infrastructure) Ready(ctx context.Context) bool {
	for _, c := range i.Checks() {
		if err := c.Fn(ctx); err != nil {
			return false
		}
	}
	return true
}

// Close releases every client, newest first.
func (i *Infrastructure) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closeErr := func(name string, err error) {
		if err != nil {
			i.logger.Warn("close failed", logging.String("backend", name), logging.Err(err))
		}
	}
	if i.Embedder != nil {
		closeErr("embedding", i.Embedder.Close())
	}
	if i.MinIO != nil {
		closeErr("minio", i.MinIO.Close())
	}
	if i.Milvus != nil {
		closeErr("milvus", i.Milvus.Close())
	}
	if i.Search != nil {
		closeErr("opensearch", i.Search.Close())
	}
	if i.Producer != nil {
		closeErr("kafka", i.Producer.Close())
	}
	if i.Redis != nil {
		closeErr("redis", i.Redis.Close())
	}
	if i.Neo4j != nil {
		closeErr("neo4j", i.Neo4j.Close(ctx))
	}
	if i.Pool != nil {
		i.Pool.Close()
	}
	if i.Postgres != nil {
		closeErr("postgres", i.Postgres.Close())
	}
}

//Personal.AI order the ending
