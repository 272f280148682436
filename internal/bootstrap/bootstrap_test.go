package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/application/ingestion"
	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/domain/citation"
	ingestdomain "github.com/sagerock/ai-law-research/internal/domain/ingestion"
	searchdomain "github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/testutil"
)

func memoryConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Store.Driver = config.StoreMemory
	return cfg
}

func build(t *testing.T, cfg *config.Config) (*Infrastructure, *Services) {
	t.Helper()
	ctx := context.Background()
	log := logging.NewNopLogger()
	infra, err := OpenInfrastructure(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(infra.Close)

	svc, err := BuildServices(ctx, cfg, infra, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return infra, svc
}

func TestOpenInfrastructure_MemoryOnly(t *testing.T) {
	infra, _ := build(t, memoryConfig())
	assert.NotNil(t, infra.Memory)
	assert.Nil(t, infra.Postgres)
	assert.Nil(t, infra.Redis)
	assert.Empty(t, infra.Checks())
	assert.True(t, infra.Ready(context.Background()))
	assert.Empty(t, infra.enabled())
}

func TestOpenInfrastructure_MetricsDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Metrics.Enabled = false
	infra, _ := build(t, cfg)
	assert.NotNil(t, infra.Metrics)
}

func TestOpenInfrastructure_UnreachablePostgresFails(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Driver = config.StorePostgres
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 1
	_, err := OpenInfrastructure(context.Background(), cfg, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestBuildServices_IngestResolveAndSearch(t *testing.T) {
	_, svc := build(t, memoryConfig())
	ctx := context.Background()

	smith := testutil.SmithCase()
	brown := testutil.BrownCase()
	feedPath := filepath.Join(t.TempDir(), "cases.jsonl")
	require.NoError(t, os.WriteFile(feedPath, []byte(testutil.Feed(
		ingestdomain.Record{ID: smith.ID, Title: smith.Title, CourtID: smith.CourtID, Jurisdiction: "federal",
			DecisionDate: "1990-05-01", Citations: smith.Citations, Text: smith.Content},
		ingestdomain.Record{ID: brown.ID, Title: brown.Title, CourtID: brown.CourtID, Jurisdiction: "federal",
			DecisionDate: "2000-03-15", Citations: brown.Citations, Text: brown.Content},
	)), 0o600))

	require.NoError(t, svc.Warm(ctx))

	job, err := svc.Coordinator.RunJob(ctx, ingestion.Request{FeedURI: feedPath})
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusSucceeded, job.Status)
	assert.Equal(t, int64(2), job.RecordsProcessed)

	badge, err := svc.Citator.GetBadge(ctx, "smith")
	require.NoError(t, err)
	assert.Equal(t, citation.BadgeCaution, badge.Badge)

	resp, err := svc.Ranker.Search(ctx, searchdomain.Query{Text: "construction", Mode: searchdomain.ModeHybrid})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "smith", resp.Results[0].CaseID)
}

func TestBuildServices_FileSchemeOnly(t *testing.T) {
	_, svc := build(t, memoryConfig())
	assert.ElementsMatch(t, []string{"file"}, svc.Feeds.Schemes())
	assert.Nil(t, svc.Publisher)
}

//Personal.AI order the ending
