package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/application/citator"
	"github.com/sagerock/ai-law-research/internal/application/ingestion"
	"github.com/sagerock/ai-law-research/internal/application/search"
	"github.com/sagerock/ai-law-research/internal/domain/citation"
	ingestdomain "github.com/sagerock/ai-law-research/internal/domain/ingestion"
	searchdomain "github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/database/memory"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_extractor"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_resolver"
	"github.com/sagerock/ai-law-research/internal/intelligence/treatment_classifier"
	"github.com/sagerock/ai-law-research/internal/interfaces/http/handlers"
	"github.com/sagerock/ai-law-research/internal/interfaces/http/middleware"
	"github.com/sagerock/ai-law-research/internal/testutil"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticFeeds map[string]string

func (f staticFeeds) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	body, ok := f[uri]
	if !ok {
		return nil, errors.NotFound("feed " + uri)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type keywordIndex struct{ ids []string }

func (k keywordIndex) SearchCases(context.Context, string, searchdomain.Filter, int) ([]searchdomain.Candidate, error) {
	out := make([]searchdomain.Candidate, len(k.ids))
	for i, id := range k.ids {
		out[i] = searchdomain.Candidate{CaseID: id, Score: float64(len(k.ids) - i)}
	}
	return out, nil
}

func newTestRouter(t *testing.T, limiter middleware.RateLimiter) *gin.Engine {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	for _, c := range []*citation.Case{testutil.SmithCase(), testutil.BrownCase()} {
		_, err := store.UpsertCase(ctx, c)
		require.NoError(t, err)
	}

	svc, err := citator.NewService(citator.Deps{
		Store:      store,
		Extractor:  citation_extractor.NewExtractor(citation_extractor.DefaultConfig(), nil),
		Resolver:   citation_resolver.NewResolver(nil),
		Classifier: treatment_classifier.NewDefault(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.RebuildIndex(ctx))
	res, err := svc.ResolveCitations(ctx, "brown", testutil.BrownCase().Content)
	require.NoError(t, err)
	_, err = svc.WriteCitations(ctx, res)
	require.NoError(t, err)

	ranker, err := search.NewRanker(search.Deps{
		Lexical:   keywordIndex{ids: []string{"brown", "smith"}},
		Authority: store,
		Cases:     store,
		Badges:    svc,
	})
	require.NoError(t, err)

	coord, err := ingestion.NewCoordinator(ingestion.Deps{
		Jobs:    memory.NewJobStore(),
		Store:   store,
		Citator: svc,
		Feeds: staticFeeds{"feed": testutil.Feed(ingestdomain.Record{
			ID: "roe", Title: "Roe v. Wade", Text: "The court followed Smith v. Jones, 123 U.S. 456 (1990).",
		})},
		Leases: memory.NewLeaseManager(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = coord.Close() })

	return NewRouter(RouterConfig{
		CitatorHandler:   handlers.NewCitatorHandler(svc),
		SearchHandler:    handlers.NewSearchHandler(ranker),
		IngestionHandler: handlers.NewIngestionHandler(coord),
		HealthHandler:    handlers.NewHealthHandler("test", nil),
		RateLimiter:      limiter,
		MaxBodySize:      1 << 20,
	})
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func TestRouter_HealthEndpoints(t *testing.T) {
	r := newTestRouter(t, nil)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/readyz", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/unknown", nil).Code)
}

func TestRouter_ReadinessReportsFailingComponent(t *testing.T) {
	health := handlers.NewHealthHandler("test", nil, handlers.CheckFunc{
		Component: "postgres",
		Fn:        func(context.Context) error { return errors.New(errors.ErrCodeDatabaseError, "down") },
	})
	r := NewRouter(RouterConfig{HealthHandler: health})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/readyz", nil).Code)
}

func TestRouter_MalformedBody(t *testing.T) {
	r := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestRouter_ResolveCitations(t *testing.T) {
	r := newTestRouter(t, nil)
	w := do(r, http.MethodPost, "/api/v1/citations/resolve", handlers.ResolveRequest{Text: testutil.ScenarioText})
	require.Equal(t, http.StatusOK, w.Code)

	var res citator.ResolveResult
	decode(t, w, &res)
	require.Len(t, res.Citations, 2)
	var overruled bool
	for _, e := range res.Edges {
		if e.SourceID == "brown" && e.TargetID == "smith" && e.Signal == citation.SignalOverruled {
			overruled = true
		}
	}
	assert.True(t, overruled)

	w = do(r, http.MethodPost, "/api/v1/citations/resolve", handlers.ResolveRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body middleware.ErrorBody
	decode(t, w, &body)
	assert.Equal(t, string(errors.ErrCodeBadRequest), body.Code)
	assert.NotEmpty(t, body.RequestID)
}

func TestRouter_CaseEndpoints(t *testing.T) {
	r := newTestRouter(t, nil)

	var badge citator.BadgeView
	w := do(r, http.MethodGet, "/api/v1/cases/smith/badge", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &badge)
	assert.Equal(t, citation.BadgeCaution, badge.Badge)

	var treatments handlers.TreatmentsResponse
	w = do(r, http.MethodGet, "/api/v1/cases/smith/treatments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &treatments)
	require.Len(t, treatments.Treatments, 1)
	assert.Equal(t, "brown", treatments.Treatments[0].CitingCase.ID)

	var sum citator.Summary
	w = do(r, http.MethodGet, "/api/v1/cases/smith/citator", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &sum)
	assert.Equal(t, 1, sum.CitingCount)

	var panel citator.CitationsPanel
	w = do(r, http.MethodGet, "/api/v1/cases/brown/citations?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &panel)
	assert.Equal(t, 1, panel.CitesCount)

	w = do(r, http.MethodGet, "/api/v1/cases/ghost/citator", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var body middleware.ErrorBody
	decode(t, w, &body)
	assert.Equal(t, string(errors.ErrCodeCaseNotFound), body.Code)
}

func TestRouter_CaseRecordAndStats(t *testing.T) {
	r := newTestRouter(t, nil)

	var view citator.CaseView
	w := do(r, http.MethodGet, "/api/v1/cases/smith", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	require.NotNil(t, view.Case)
	assert.Equal(t, "smith", view.ID)
	assert.Equal(t, testutil.SmithCase().Title, view.Title)
	assert.Equal(t, 1, view.CitationCount)
	assert.Equal(t, citation.BadgeCaution, view.Badge)

	w = do(r, http.MethodGet, "/api/v1/cases/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var body middleware.ErrorBody
	decode(t, w, &body)
	assert.Equal(t, string(errors.ErrCodeCaseNotFound), body.Code)

	var st citation.CorpusStats
	w = do(r, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &st)
	assert.Equal(t, 2, st.Cases)
	assert.Equal(t, 1, st.Edges)
	assert.Zero(t, st.Dangling)
}

func TestRouter_BriefCheck(t *testing.T) {
	r := newTestRouter(t, nil)
	w := do(r, http.MethodPost, "/api/v1/briefcheck", handlers.BriefCheckRequest{
		Text: "Plaintiff relies on Smith v. Jones, 123 U.S. 456 (1990) and Doe v. Roe, 999 F.3d 1 (2020).",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var report citator.BriefReport
	decode(t, w, &report)
	assert.Equal(t, 2, report.Total)
	assert.Len(t, report.Problematic, 2)
}

func TestRouter_Search(t *testing.T) {
	r := newTestRouter(t, nil)
	w := do(r, http.MethodPost, "/api/v1/search", searchdomain.Query{Text: "statute", Mode: searchdomain.ModeKeyword})
	require.Equal(t, http.StatusOK, w.Code)
	var resp searchdomain.Response
	decode(t, w, &resp)
	ids := make([]string, 0, len(resp.Results))
	for _, res := range resp.Results {
		ids = append(ids, res.CaseID)
	}
	assert.Contains(t, ids, "smith")
	assert.Contains(t, ids, "brown")

	w = do(r, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"query": "x", "weights": map[string]float64{"lexical": -1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/search/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var settings handlers.SettingsResponse
	decode(t, w, &settings)
	assert.Equal(t, 60, settings.K)
}

func TestRouter_IngestionJobs(t *testing.T) {
	r := newTestRouter(t, nil)
	w := do(r, http.MethodPost, "/api/v1/ingestion/jobs", handlers.CreateJobRequest{FeedURI: "feed", Wait: true})
	require.Equal(t, http.StatusOK, w.Code)
	var job ingestdomain.Job
	decode(t, w, &job)
	assert.Equal(t, ingestdomain.StatusSucceeded, job.Status)
	assert.Equal(t, int64(1), job.RecordsProcessed)

	w = do(r, http.MethodGet, "/api/v1/ingestion/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/ingestion/jobs?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list handlers.JobListResponse
	decode(t, w, &list)
	assert.Len(t, list.Jobs, 1)

	w = do(r, http.MethodGet, "/api/v1/ingestion/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/v1/ingestion/jobs/"+job.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/v1/ingestion/jobs", handlers.CreateJobRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/v1/cases/roe", nil).Code)
}

func TestRouter_RateLimitGuardsHeavyRoutes(t *testing.T) {
	r := newTestRouter(t, middleware.NewTokenBucketLimiter(0.001, 1, 0))
	q := searchdomain.Query{Text: "statute"}
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/search", q).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/v1/search", q).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/cases/smith/badge", nil).Code)
}

//Personal.AI order the ending
