package bootstrap

import (
	"context"
	"fmt"

	"github.com/sagerock/ai-law-research/internal/application/citator"
	"github.com/sagerock/ai-law-research/internal/application/ingestion"
	"github.com/sagerock/ai-law-research/internal/application/search"
	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/domain/citation"
	ingestdomain "github.com/sagerock/ai-law-research/internal/domain/ingestion"
	searchdomain "github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/database/memory"
	neo4jrepo "github.com/sagerock/ai-law-research/internal/infrastructure/database/neo4j/repositories"
	"github.com/sagerock/ai-law-research/internal/infrastructure/database/postgres"
	pgrepo "github.com/sagerock/ai-law-research/internal/infrastructure/database/postgres/repositories"
	redisclient "github.com/sagerock/ai-law-research/internal/infrastructure/database/redis"
	"github.com/sagerock/ai-law-research/internal/infrastructure/messaging/kafka"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/infrastructure/search/milvus"
	"github.com/sagerock/ai-law-research/internal/infrastructure/search/opensearch"
	"github.com/sagerock/ai-law-research/internal/infrastructure/storage/feed"
	minioclient "github.com/sagerock/ai-law-research/internal/infrastructure/storage/minio"
	"github.com/sagerock/ai-law-research/internal/infrastructure/storage/s3"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_extractor"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_resolver"
	"github.com/sagerock/ai-law-research/internal/intelligence/treatment_classifier"
)

// Services are the application services built over an Infrastructure.
type Services struct {
	Store       citation.Store
	Citator     citator.Service
	Ranker      *search.Ranker
	Coordinator *ingestion.Coordinator
	Publisher   *kafka.EventPublisher
	Topics      kafka.Topics
	Feeds       *feed.Router

	resolver *citation_resolver.Resolver
	refs     citation_resolver.RefSource
}

// BuildServices wires the citator, ranker and ingestion coordinator and
// prepares the backing indexes. The resolver index is not loaded; call
// Warm before serving.
func BuildServices(ctx context.Context, cfg *config.Config, infra *Infrastructure, logger logging.Logger) (*Services, error) {
	svc := &Services{Topics: kafka.TopicsFromConfig(cfg.Kafka)}

	var jobs ingestdomain.JobRepository
	var leases ingestdomain.LeaseManager
	switch {
	case infra.Postgres != nil:
		svc.Store = pgrepo.NewPostgresCitationStore(infra.Postgres, logger)
		jobs = pgrepo.NewPostgresJobRepo(infra.Postgres, logger)
	default:
		svc.Store = infra.Memory
		jobs = memory.NewJobStore()
	}
	svc.refs = svc.Store
	if infra.Pool != nil {
		svc.refs = postgres.NewCitationIndexLoader(infra.Pool)
	}

	var badges citator.BadgeCache = memory.NewBadgeCache()
	var results interface {
		search.ResultCache
		ingestion.CachePurger
	} = memory.NewSearchCache(cfg.Ranking.CacheTTL)
	leases = memory.NewLeaseManager()
	if infra.Redis != nil {
		badges = redisclient.NewBadgeCache(infra.Redis, cfg.Redis.BadgeTTL, logger)
		results = redisclient.NewSearchCache(infra.Redis, cfg.Ranking.CacheTTL, logger)
		leases = redisclient.NewLeaseManager(infra.Redis, logger)
	}

	var publisher citation.EventPublisher = citation.NopPublisher{}
	if infra.Producer != nil {
		svc.Publisher = kafka.NewEventPublisher(infra.Producer, svc.Topics, logger)
		publisher = svc.Publisher
		if err := ensureTopics(ctx, cfg, svc.Topics, logger); err != nil {
			logger.Warn("kafka topics not verified", logging.Err(err))
		}
	}

	var mirror citator.GraphMirror
	if infra.Neo4j != nil {
		mirror = neo4jrepo.NewCitationGraphRepo(infra.Neo4j, logger)
	}

	svc.resolver = citation_resolver.NewResolver(logger)
	cit, err := citator.NewService(citator.Deps{
		Store:      svc.Store,
		Extractor:  citation_extractor.NewExtractor(citator.ExtractorConfig(cfg.Citation), logger),
		Resolver:   svc.resolver,
		Classifier: treatment_classifier.NewDefault(),
		Badges:     badges,
		Publisher:  publisher,
		Mirror:     mirror,
		Metrics:    infra.Metrics,
		Logger:     logger,
		Config:     citator.ConfigFromSettings(cfg.Citation),
	})
	if err != nil {
		return nil, fmt.Errorf("citator: %w", err)
	}
	svc.Citator = cit

	var (
		lexical    searchdomain.LexicalSource
		lexicalIdx ingestion.LexicalIndex
		semantic   searchdomain.SemanticSource
		vectors    searchdomain.ChunkIndexer
		embedder   searchdomain.Embedder
	)
	if infra.Search != nil {
		idx := opensearch.NewIndexer(infra.Search, "false", logger)
		if err := idx.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("opensearch index: %w", err)
		}
		lexical = opensearch.NewSearcher(infra.Search, logger)
		lexicalIdx = idx
	}
	if infra.Milvus != nil {
		dim := cfg.Milvus.Dimension
		coll := milvus.NewCollectionManager(infra.Milvus, milvus.CollectionConfig{Name: cfg.Milvus.Collection, Dimension: dim}, logger)
		if err := coll.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("milvus collection: %w", err)
		}
		s := milvus.NewSearcher(infra.Milvus, coll.Name(), milvus.SearcherConfig{Dimension: dim}, logger)
		semantic, vectors = s, s
	}
	if infra.Embedder != nil {
		embedder = infra.Embedder
	}

	svc.Ranker, err = search.NewRanker(search.Deps{
		Lexical:   lexical,
		Semantic:  semantic,
		Embedder:  embedder,
		Authority: svc.Store,
		Cases:     svc.Store,
		Badges:    cit,
		Cache:     results,
		Metrics:   infra.Metrics,
		Logger:    logger,
		Config:    search.ConfigFromSettings(cfg.Ranking),
	})
	if err != nil {
		return nil, fmt.Errorf("ranker: %w", err)
	}

	svc.Feeds = feed.NewRouter()
	if infra.MinIO != nil {
		if err := infra.MinIO.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("minio bucket: %w", err)
		}
		svc.Feeds.Register(minioclient.Scheme, minioclient.NewFeedStore(infra.MinIO, logger))
	}
	if infra.S3 != nil {
		svc.Feeds.Register(s3.Scheme, infra.S3)
	}

	svc.Coordinator, err = ingestion.NewCoordinator(ingestion.Deps{
		Jobs:     jobs,
		Store:    svc.Store,
		Citator:  cit,
		Feeds:    svc.Feeds,
		Leases:   leases,
		Lexical:  lexicalIdx,
		Vectors:  vectors,
		Embedder: embedder,
		Cache:    results,
		Metrics:  infra.Metrics,
		Logger:   logger,
		Config:   ingestion.ConfigFromSettings(cfg.Ingestion),
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}
	return svc, nil
}

// Warm loads the resolver index from the store. With Postgres the scan runs
// over the pgx pool.
func (s *Services) Warm(ctx context.Context) error {
	_, err := s.resolver.Rebuild(ctx, s.refs)
	return err
}

// Close stops the coordinator; in-flight jobs are cancelled and left
// resumable.
func (s *Services) Close() error {
	return s.Coordinator.Close()
}

func ensureTopics(ctx context.Context, cfg *config.Config, topics kafka.Topics, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(topics))
}

//Personal.AI order the ending
