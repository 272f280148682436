package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/config"
)

// validConfig returns a Config that passes Validate with the postgres store.
func validConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Store.Driver = config.StorePostgres
	cfg.Database.User = "lawres"
	cfg.Database.Password = "secret"
	return cfg
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
	assert.NoError(t, config.NewDefaultConfig().Validate())
}

func TestConfig_Validate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing db host", func(c *config.Config) { c.Database.Host = "" }, "database.host"},
		{"missing db user", func(c *config.Config) { c.Database.User = "" }, "database.user"},
		{"bad port", func(c *config.Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad driver", func(c *config.Config) { c.Store.Driver = "sqlite" }, "store.driver"},
		{"neo4j without uri", func(c *config.Config) { c.Neo4j.Enabled = true; c.Neo4j.URI = "" }, "neo4j.uri"},
		{"kafka without brokers", func(c *config.Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"embedding without key", func(c *config.Config) { c.Embedding.Enabled = true }, "embedding.api_key"},
		{"confidence above one", func(c *config.Config) { c.Citation.FullConfidence = 1.5 }, "full_confidence"},
		{"negative window", func(c *config.Config) { c.Citation.ParagraphWindow = -1 }, "paragraph_window"},
		{"zero k", func(c *config.Config) { c.Ranking.K = 0 }, "ranking.k"},
		{"negative weight", func(c *config.Config) { c.Ranking.SemanticWeight = -1 }, "non-negative"},
		{"overlap too large", func(c *config.Config) { c.Ingestion.ChunkOverlap = c.Ingestion.ChunkWords }, "chunk_overlap"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRankingConfig_AllZeroWeightsRejected(t *testing.T) {
	t.Parallel()
	r := config.RankingConfig{K: 60}
	assert.Error(t, r.ValidateWeights())
	r.AuthorityWeight = 1
	assert.NoError(t, r.ValidateWeights())
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Ranking.K = 10
	cfg.Ranking.SemanticWeight = 2
	cfg.Ingestion.Workers = 3
	config.ApplyDefaults(cfg)

	assert.Equal(t, 10, cfg.Ranking.K)
	assert.Equal(t, 2.0, cfg.Ranking.SemanticWeight)
	assert.Zero(t, cfg.Ranking.LexicalWeight, "partial weights are respected")
	assert.Equal(t, 3, cfg.Ingestion.Workers)
	assert.Equal(t, config.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultSearchCacheTTL, cfg.Ranking.CacheTTL)
	assert.Equal(t, config.StoreMemory, cfg.Store.Driver)
}

func TestApplyDefaults_NilSafe(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { config.ApplyDefaults(nil) })
}

func TestDatabaseConfig_URL(t *testing.T) {
	t.Parallel()
	d := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "law", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/law?sslmode=disable", d.URL())
	assert.Contains(t, d.DSN(), "dbname=law")
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
store:
  driver: memory
ranking:
  k: 30
  lexical_weight: 1
  semantic_weight: 0.5
  authority_weight: 0.25
  deadline: 750ms
citation:
  paragraph_window: 2
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Ranking.K)
	assert.Equal(t, 0.5, cfg.Ranking.SemanticWeight)
	assert.Equal(t, 750*time.Millisecond, cfg.Ranking.Deadline)
	assert.Equal(t, 2, cfg.Citation.ParagraphWindow)
	assert.Equal(t, config.DefaultIngestionWorkers, cfg.Ingestion.Workers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("LAWRES_SERVER_PORT", "9100")
	t.Setenv("LAWRES_RANKING_K", "42")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 42, cfg.Ranking.K)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: postgres\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.user")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LAWRES_STORE_DRIVER", "postgres")
	t.Setenv("LAWRES_DATABASE_USER", "envuser")
	t.Setenv("LAWRES_DATABASE_HOST", "pg.internal")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "envuser", cfg.Database.User)
	assert.Equal(t, "pg.internal", cfg.Database.Host)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LAWRES_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LAWRES_TEST_DOTENV") })

	config.LoadDotEnv(path)
	assert.Equal(t, "loaded", os.Getenv("LAWRES_TEST_DOTENV"))
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { config.MustLoad(filepath.Join(t.TempDir(), "nope.yaml")) })
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "ranking:\n  k: 60\n  lexical_weight: 1\n")

	changed := make(chan *config.Config, 4)
	require.NoError(t, config.Watch(path, func(c *config.Config) { changed <- c }, nil))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("ranking:\n  k: 15\n  lexical_weight: 1\n"), 0o600))

	select {
	case cfg := <-changed:
		assert.Equal(t, 15, cfg.Ranking.K)
	case <-time.After(3 * time.Second):
		t.Fatal("expected reload callback")
	}
}
