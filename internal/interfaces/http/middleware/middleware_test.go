package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/testutil"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(logging.NewNopLogger()))
	var seen string
	var scoped bool
	r.GET("/x", func(c *gin.Context) {
		seen = GetRequestID(c)
		scoped = logging.FromContext(c.Request.Context()) != nil
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/x", nil)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
	assert.True(t, scoped)

	w = serve(r, http.MethodGet, "/x", map[string]string{HeaderRequestID: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "abc-123", seen)
}

func TestRecovery(t *testing.T) {
	log := testutil.NewMockLogger()
	r := gin.New()
	r.Use(RequestID(nil), Recovery(log))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, http.MethodGet, "/boom", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(errors.ErrCodeInternal), body.Code)
	assert.Equal(t, w.Header().Get(HeaderRequestID), body.RequestID)
	assert.True(t, log.HasMessage("error", "Panic recovered"))
}

func TestRequestLogging_LevelByStatus(t *testing.T) {
	log := testutil.NewMockLogger()
	r := gin.New()
	r.Use(RequestLogging(log, DefaultLoggingConfig()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/ok", nil)
	serve(r, http.MethodGet, "/bad", nil)
	serve(r, http.MethodGet, "/fail", nil)
	serve(r, http.MethodGet, "/healthz", nil)

	assert.Equal(t, 1, log.CountLevel("info"))
	assert.Equal(t, 1, log.CountLevel("warn"))
	assert.Equal(t, 1, log.CountLevel("error"))
}

func TestCORS(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com", "*.court.gov"}
	cfg.AllowWildcard = true
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/x", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), HeaderRequestID)

	w = serve(r, http.MethodOptions, "/x", map[string]string{"Origin": "https://docs.court.gov"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = serve(r, http.MethodGet, "/x", map[string]string{"Origin": "https://evil.test"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTokenBucketLimiter(t *testing.T) {
	l := NewTokenBucketLimiter(1, 2, 0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, info := l.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, info.Remaining)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.False(t, ok)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "buckets are per key")

	now = now.Add(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 2, l.BucketCount())
}

func TestRateLimit_Rejects(t *testing.T) {
	l := NewTokenBucketLimiter(0.001, 1, 0)
	r := gin.New()
	r.Use(RateLimit(l))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", nil).Code)
	w := serve(r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
}

func TestMetrics_DoesNotDisturbResponse(t *testing.T) {
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/cases/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	w := serve(r, http.MethodGet, "/cases/abc", nil)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/nope", nil).Code)
}

//Personal.AI order the ending
