package config

import (
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort      = 8080
	DefaultServerMode      = "release"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodySize     = 4 << 20
	DefaultRateLimitBurst  = 20

	DefaultGRPCPort = 9090

	DefaultStoreDriver = StoreMemory

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "lawres"
	DefaultDBSSLMode  = "disable"
	DefaultDBMaxConns = 25
	DefaultDBMaxIdle  = 10

	DefaultNeo4jURI      = "bolt://localhost:7687"
	DefaultNeo4jDatabase = "neo4j"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 20
	DefaultRedisBadgeTTL  = 24 * time.Hour
	DefaultRedisKeyPrefix = "lawres"

	DefaultKafkaBroker         = "localhost:9092"
	DefaultKafkaGroupID        = "lawres-worker"
	DefaultKafkaIngestionTopic = "ingestion.requests"
	DefaultKafkaEdgeTopic      = "citation.edges"
	DefaultKafkaBadgeTopic     = "citation.badges"

	DefaultOpenSearchAddr  = "http://localhost:9200"
	DefaultOpenSearchIndex = "cases"

	DefaultMilvusAddr       = "localhost:19530"
	DefaultMilvusCollection = "case_chunks"
	DefaultEmbeddingDim     = 768

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "feeds"
	DefaultS3Region      = "us-east-1"

	DefaultEmbeddingModel   = "text-embedding-004"
	DefaultEmbeddingTimeout = 5 * time.Second

	DefaultParagraphWindow     = 3
	DefaultContextWindow       = 200
	DefaultFullConfidence      = 0.9
	DefaultCaseNameConfidence  = 0.8
	DefaultShortFormConfidence = 0.6
	DefaultSnippetLength       = 300

	DefaultRRFK            = 60
	DefaultLexicalWeight   = 1.0
	DefaultSemanticWeight  = 1.0
	DefaultAuthorityWeight = 0.5
	DefaultCandidateLimit  = 100
	DefaultResultLimit     = 10
	DefaultRankDeadline    = 2 * time.Second
	DefaultSearchCacheTTL  = 300 * time.Second

	DefaultIngestionWorkers = 8
	DefaultQueueSize        = 256
	DefaultMaxRetries       = 2
	DefaultRetryBaseDelay   = 200 * time.Millisecond
	DefaultCheckpointEvery  = 500
	DefaultLeaseTTL         = 2 * time.Minute
	DefaultMaxTextBytes     = 1 << 20
	DefaultChunkWords       = 1000
	DefaultChunkOverlap     = 200

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "lawres"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg. Explicit values win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	setInt(&cfg.Server.Port, DefaultServerPort)
	setString(&cfg.Server.Mode, DefaultServerMode)
	setDuration(&cfg.Server.ReadTimeout, DefaultReadTimeout)
	setDuration(&cfg.Server.WriteTimeout, DefaultWriteTimeout)
	setDuration(&cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Server.RateLimitRPS > 0 {
		setInt(&cfg.Server.RateLimitBurst, DefaultRateLimitBurst)
	}
	setInt(&cfg.GRPC.Port, DefaultGRPCPort)
	setString(&cfg.Store.Driver, DefaultStoreDriver)

	// ── Database ──────────────────────────────────────────────────────────────
	setString(&cfg.Database.Host, DefaultDBHost)
	setInt(&cfg.Database.Port, DefaultDBPort)
	setString(&cfg.Database.DBName, DefaultDBName)
	setString(&cfg.Database.SSLMode, DefaultDBSSLMode)
	setInt(&cfg.Database.MaxConns, DefaultDBMaxConns)
	setInt(&cfg.Database.MaxIdleConns, DefaultDBMaxIdle)
	setDuration(&cfg.Database.ConnMaxLifetime, 30*time.Minute)

	setString(&cfg.Neo4j.URI, DefaultNeo4jURI)
	setString(&cfg.Neo4j.Database, DefaultNeo4jDatabase)
	setInt(&cfg.Neo4j.MaxConnectionPoolSize, 50)
	setDuration(&cfg.Neo4j.ConnectionTimeout, 5*time.Second)

	// ── Redis ─────────────────────────────────────────────────────────────────
	setString(&cfg.Redis.Addr, DefaultRedisAddr)
	setInt(&cfg.Redis.PoolSize, DefaultRedisPoolSize)
	setDuration(&cfg.Redis.DialTimeout, 5*time.Second)
	setDuration(&cfg.Redis.ReadTimeout, 3*time.Second)
	setDuration(&cfg.Redis.WriteTimeout, 3*time.Second)
	setDuration(&cfg.Redis.BadgeTTL, DefaultRedisBadgeTTL)
	setString(&cfg.Redis.KeyPrefix, DefaultRedisKeyPrefix)

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	setString(&cfg.Kafka.GroupID, DefaultKafkaGroupID)
	setString(&cfg.Kafka.IngestionTopic, DefaultKafkaIngestionTopic)
	setString(&cfg.Kafka.EdgeTopic, DefaultKafkaEdgeTopic)
	setString(&cfg.Kafka.BadgeTopic, DefaultKafkaBadgeTopic)
	setInt(&cfg.Kafka.BatchSize, 100)

	// ── Search ────────────────────────────────────────────────────────────────
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddr}
	}
	setString(&cfg.OpenSearch.Index, DefaultOpenSearchIndex)
	setString(&cfg.Milvus.Address, DefaultMilvusAddr)
	setString(&cfg.Milvus.Collection, DefaultMilvusCollection)
	setInt(&cfg.Milvus.Dimension, DefaultEmbeddingDim)

	// ── Storage ───────────────────────────────────────────────────────────────
	setString(&cfg.MinIO.Endpoint, DefaultMinIOEndpoint)
	setString(&cfg.MinIO.Bucket, DefaultMinIOBucket)
	setString(&cfg.MinIO.Region, DefaultS3Region)
	setString(&cfg.S3.Region, DefaultS3Region)

	// ── Embedding ─────────────────────────────────────────────────────────────
	setString(&cfg.Embedding.Model, DefaultEmbeddingModel)
	setInt(&cfg.Embedding.Dimension, DefaultEmbeddingDim)
	setDuration(&cfg.Embedding.Timeout, DefaultEmbeddingTimeout)

	// ── Citation ──────────────────────────────────────────────────────────────
	setInt(&cfg.Citation.ParagraphWindow, DefaultParagraphWindow)
	setInt(&cfg.Citation.ContextWindow, DefaultContextWindow)
	setFloat(&cfg.Citation.FullConfidence, DefaultFullConfidence)
	setFloat(&cfg.Citation.CaseNameConfidence, DefaultCaseNameConfidence)
	setFloat(&cfg.Citation.ShortFormConfidence, DefaultShortFormConfidence)
	setInt(&cfg.Citation.SnippetLength, DefaultSnippetLength)

	// ── Ranking ───────────────────────────────────────────────────────────────
	setInt(&cfg.Ranking.K, DefaultRRFK)
	if cfg.Ranking.LexicalWeight == 0 && cfg.Ranking.SemanticWeight == 0 && cfg.Ranking.AuthorityWeight == 0 {
		cfg.Ranking.LexicalWeight = DefaultLexicalWeight
		cfg.Ranking.SemanticWeight = DefaultSemanticWeight
		cfg.Ranking.AuthorityWeight = DefaultAuthorityWeight
	}
	setInt(&cfg.Ranking.CandidateLimit, DefaultCandidateLimit)
	setInt(&cfg.Ranking.ResultLimit, DefaultResultLimit)
	setDuration(&cfg.Ranking.Deadline, DefaultRankDeadline)
	setDuration(&cfg.Ranking.CacheTTL, DefaultSearchCacheTTL)

	// ── Ingestion ─────────────────────────────────────────────────────────────
	setInt(&cfg.Ingestion.Workers, DefaultIngestionWorkers)
	setInt(&cfg.Ingestion.QueueSize, DefaultQueueSize)
	setInt(&cfg.Ingestion.MaxRetries, DefaultMaxRetries)
	setDuration(&cfg.Ingestion.RetryBaseDelay, DefaultRetryBaseDelay)
	setInt(&cfg.Ingestion.CheckpointEvery, DefaultCheckpointEvery)
	setDuration(&cfg.Ingestion.LeaseTTL, DefaultLeaseTTL)
	setInt(&cfg.Ingestion.MaxTextBytes, DefaultMaxTextBytes)
	setInt(&cfg.Ingestion.ChunkWords, DefaultChunkWords)
	setInt(&cfg.Ingestion.ChunkOverlap, DefaultChunkOverlap)

	// ── Observability ─────────────────────────────────────────────────────────
	setString(&cfg.Metrics.Path, DefaultMetricsPath)
	setString(&cfg.Metrics.Namespace, DefaultMetricsNamespace)
	setString(&cfg.Log.Level, DefaultLogLevel)
	setString(&cfg.Log.Format, DefaultLogFormat)
}

// registerKeys seeds viper with every key so AutomaticEnv can override keys
// that are absent from the YAML file.
func registerKeys(v *viper.Viper) {
	def := &Config{}
	ApplyDefaults(def)

	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.mode", def.Server.Mode)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout)
	v.SetDefault("server.max_body_size", def.Server.MaxBodySize)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", DefaultRateLimitBurst)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("grpc.port", def.GRPC.Port)
	v.SetDefault("grpc.debug", false)
	v.SetDefault("store.driver", def.Store.Driver)

	v.SetDefault("database.host", def.Database.Host)
	v.SetDefault("database.port", def.Database.Port)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", def.Database.DBName)
	v.SetDefault("database.ssl_mode", def.Database.SSLMode)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.uri", def.Neo4j.URI)
	v.SetDefault("neo4j.user", "")
	v.SetDefault("neo4j.password", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.password", "")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", def.Kafka.Brokers)

	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.addresses", def.OpenSearch.Addresses)
	v.SetDefault("opensearch.username", "")
	v.SetDefault("opensearch.password", "")

	v.SetDefault("milvus.enabled", false)
	v.SetDefault("milvus.address", def.Milvus.Address)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", def.MinIO.Endpoint)
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", def.MinIO.Bucket)

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", def.S3.Region)
	v.SetDefault("s3.bucket", "")

	v.SetDefault("embedding.enabled", false)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", def.Embedding.Model)

	v.SetDefault("ranking.k", def.Ranking.K)
	v.SetDefault("ranking.deadline", def.Ranking.Deadline)

	v.SetDefault("ingestion.workers", def.Ingestion.Workers)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("metrics.enabled", true)
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setFloat(dst *float64, def float64) {
	if *dst == 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}

//Personal.AI order the ending
