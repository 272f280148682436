package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/interfaces/http/middleware"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(t *testing.T, method, path string, register func(r *gin.Engine)) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorBody {
	t.Helper()
	var body middleware.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// ─────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    errors.ErrorCode
		message string
	}{
		{"client error keeps message", errors.CaseNotFound("ghost"), http.StatusNotFound, errors.ErrCodeCaseNotFound, "case not found"},
		{"server error hides message", errors.Internal("pool exhausted"), http.StatusInternalServerError, errors.ErrCodeInternal, "internal server error"},
		{"plain error is internal", stderrors.New("boom"), http.StatusInternalServerError, errors.ErrCodeInternal, "internal server error"},
		{"feed failure is bad gateway", errors.FeedFailure(stderrors.New("dial"), "s3://b/k"), http.StatusBadGateway, errors.ErrCodeFeedFailure, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, http.MethodGet, "/x", func(r *gin.Engine) {
				r.GET("/x", func(c *gin.Context) { writeAppError(c, tt.err) })
			})
			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, string(tt.code), body.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Message)
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=0", 20},
		{"limit=-3", 20},
		{"limit=abc", 20},
		{"limit=500", 100},
	}
	for _, tt := range tests {
		var got int
		serve(t, http.MethodGet, "/q?"+tt.query, func(r *gin.Engine) {
			r.GET("/q", func(c *gin.Context) { got = queryInt(c, "limit", 20, 100) })
		})
		assert.Equal(t, tt.want, got, tt.query)
	}
}

// ─────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────

func TestHealthHandler(t *testing.T) {
	ok := CheckFunc{Component: "postgres", Fn: func(context.Context) error { return nil }}
	down := CheckFunc{Component: "redis", Fn: func(context.Context) error { return stderrors.New("connection refused") }}

	t.Run("liveness ignores dependencies", func(t *testing.T) {
		h := NewHealthHandler("v1.2.3", nil, down)
		w := serve(t, http.MethodGet, "/healthz", func(r *gin.Engine) { h.RegisterRoutes(r) })
		assert.Equal(t, http.StatusOK, w.Code)
		var resp LivenessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "alive", resp.Status)
		assert.Equal(t, "v1.2.3", resp.Version)
	})

	t.Run("readiness ok", func(t *testing.T) {
		h := NewHealthHandler("v1", nil, ok)
		w := serve(t, http.MethodGet, "/readyz", func(r *gin.Engine) { h.RegisterRoutes(r) })
		assert.Equal(t, http.StatusOK, w.Code)
		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, "healthy", resp.Components["postgres"].Status)
	})

	t.Run("detail reports degraded component", func(t *testing.T) {
		h := NewHealthHandler("v1", nil, ok, down)
		w := serve(t, http.MethodGet, "/healthz/detail", func(r *gin.Engine) { h.RegisterRoutes(r) })
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "unhealthy", resp.Components["redis"].Status)
		assert.Equal(t, "connection refused", resp.Components["redis"].Error)
	})

	t.Run("no checkers is ready", func(t *testing.T) {
		_, ready := NewHealthHandler("v1", nil).CheckAll(context.Background())
		assert.True(t, ready)
	})
}

//Personal.AI order the ending
