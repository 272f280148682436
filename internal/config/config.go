// Package config defines the configuration structures of the citation
// service. Loading lives in loader.go and defaults in defaults.go; this file
// holds only data types and validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RateLimitRPS caps search and brief-check calls per client IP; 0 disables.
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

// GRPCConfig holds the health/reflection gRPC listener.
type GRPCConfig struct {
	Port           int  `mapstructure:"port"`
	Debug          bool `mapstructure:"debug"`
	MaxRecvMsgSize int  `mapstructure:"max_recv_msg_size"`
}

// StoreConfig selects the backing store for cases, edges and jobs.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "memory" | "postgres"
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// Neo4jConfig holds the citation graph mirror connection.
type Neo4jConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	URI                   string        `mapstructure:"uri"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	Database              string        `mapstructure:"database"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BadgeTTL     time.Duration `mapstructure:"badge_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds event bus parameters.
type KafkaConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	IngestionTopic string   `mapstructure:"ingestion_topic"`
	EdgeTopic      string   `mapstructure:"edge_topic"`
	BadgeTopic     string   `mapstructure:"badge_topic"`
	BatchSize      int      `mapstructure:"batch_size"`
}

// OpenSearchConfig holds the lexical index connection.
type OpenSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Addresses          []string `mapstructure:"addresses"`
	Username           string   `mapstructure:"username"`
	Password           string   `mapstructure:"password"`
	Index              string   `mapstructure:"index"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
}

// MilvusConfig holds the vector index connection.
type MilvusConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Collection string `mapstructure:"collection"`
	Dimension  int    `mapstructure:"dimension"`
}

// MinIOConfig holds the feed object store.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// S3Config holds the alternate AWS feed source.
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
}

// EmbeddingConfig configures the query/chunk embedder.
type EmbeddingConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CitationConfig tunes extraction, resolution and classification.
type CitationConfig struct {
	// ParagraphWindow is how many paragraphs back a short form may look for
	// its antecedent. 0 means the same paragraph only.
	ParagraphWindow int `mapstructure:"paragraph_window"`

	// ContextWindow is the number of characters on each side of a mention
	// handed to the treatment classifier.
	ContextWindow int `mapstructure:"context_window"`

	FullConfidence      float64 `mapstructure:"full_confidence"`
	CaseNameConfidence  float64 `mapstructure:"case_name_confidence"`
	ShortFormConfidence float64 `mapstructure:"short_form_confidence"`
	SnippetLength       int     `mapstructure:"snippet_length"`
}

// RankingConfig holds reciprocal rank fusion parameters. Weights are
// hot-reloadable through Watch.
type RankingConfig struct {
	K               int           `mapstructure:"k"`
	LexicalWeight   float64       `mapstructure:"lexical_weight"`
	SemanticWeight  float64       `mapstructure:"semantic_weight"`
	AuthorityWeight float64       `mapstructure:"authority_weight"`
	CandidateLimit  int           `mapstructure:"candidate_limit"`
	ResultLimit     int           `mapstructure:"result_limit"`
	Deadline        time.Duration `mapstructure:"deadline"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

// IngestionConfig tunes the bulk ingestion coordinator.
type IngestionConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	CheckpointEvery int           `mapstructure:"checkpoint_every"`
	LeaseTTL        time.Duration `mapstructure:"lease_ttl"`
	MaxTextBytes    int           `mapstructure:"max_text_bytes"`
	ChunkWords      int           `mapstructure:"chunk_words"`
	ChunkOverlap    int           `mapstructure:"chunk_overlap"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	GRPC       GRPCConfig        `mapstructure:"grpc"`
	Store      StoreConfig       `mapstructure:"store"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Neo4j      Neo4jConfig       `mapstructure:"neo4j"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	OpenSearch OpenSearchConfig  `mapstructure:"opensearch"`
	Milvus     MilvusConfig      `mapstructure:"milvus"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	S3         S3Config          `mapstructure:"s3"`
	Embedding  EmbeddingConfig   `mapstructure:"embedding"`
	Citation   CitationConfig    `mapstructure:"citation"`
	Ranking    RankingConfig     `mapstructure:"ranking"`
	Ingestion  IngestionConfig   `mapstructure:"ingestion"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Log        logging.LogConfig `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate checks the invariants that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.GRPC.Port < 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("config: grpc.port %d out of range", c.GRPC.Port)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("config: database.user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
	default:
		return fmt.Errorf("config: store.driver %q must be %q or %q", c.Store.Driver, StoreMemory, StorePostgres)
	}

	if c.Neo4j.Enabled && c.Neo4j.URI == "" {
		return fmt.Errorf("config: neo4j.uri is required when neo4j is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers is required when kafka is enabled")
	}
	if c.OpenSearch.Enabled && len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: opensearch.addresses is required when opensearch is enabled")
	}
	if c.Milvus.Enabled && c.Milvus.Address == "" {
		return fmt.Errorf("config: milvus.address is required when milvus is enabled")
	}
	if c.MinIO.Enabled && (c.MinIO.Endpoint == "" || c.MinIO.Bucket == "") {
		return fmt.Errorf("config: minio.endpoint and minio.bucket are required when minio is enabled")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("config: s3.bucket is required when s3 is enabled")
	}
	if c.Embedding.Enabled && c.Embedding.APIKey == "" {
		return fmt.Errorf("config: embedding.api_key is required when embedding is enabled")
	}

	if c.Citation.ParagraphWindow < 0 {
		return fmt.Errorf("config: citation.paragraph_window must be >= 0")
	}
	for name, v := range map[string]float64{
		"full_confidence":       c.Citation.FullConfidence,
		"case_name_confidence":  c.Citation.CaseNameConfidence,
		"short_form_confidence": c.Citation.ShortFormConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: citation.%s must be within [0,1]", name)
		}
	}

	if err := c.Ranking.ValidateWeights(); err != nil {
		return err
	}

	if c.Ingestion.Workers <= 0 {
		return fmt.Errorf("config: ingestion.workers must be > 0")
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkWords {
		return fmt.Errorf("config: ingestion.chunk_overlap must be smaller than ingestion.chunk_words")
	}
	return nil
}

// ValidateWeights checks the fusion parameters on their own so reloads can
// be vetted before they are applied.
func (r RankingConfig) ValidateWeights() error {
	if r.K <= 0 {
		return fmt.Errorf("config: ranking.k must be > 0")
	}
	if r.LexicalWeight < 0 || r.SemanticWeight < 0 || r.AuthorityWeight < 0 {
		return fmt.Errorf("config: ranking weights must be non-negative")
	}
	if r.LexicalWeight+r.SemanticWeight+r.AuthorityWeight == 0 {
		return fmt.Errorf("config: at least one ranking weight must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// DSN returns a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// URL returns a postgres:// URL, used by pgx and golang-migrate.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

//Personal.AI order the ending
