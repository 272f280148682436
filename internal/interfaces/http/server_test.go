package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/interfaces/http/handlers"
	"github.com/sagerock/ai-law-research/internal/testutil"
)

func TestNewServer_UsesConfiguredAddress(t *testing.T) {
	router := NewRouter(RouterConfig{HealthHandler: handlers.NewHealthHandler("test", nil)})
	s := NewServer(config.ServerConfig{Port: 18081, ReadTimeout: time.Second}, router, nil)
	assert.Equal(t, ":18081", s.srv.Addr)
	assert.Equal(t, time.Second, s.srv.ReadTimeout)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_StartStop(t *testing.T) {
	logger := testutil.NewMockLogger()
	s := NewServer(config.ServerConfig{Port: 0, ShutdownTimeout: time.Second}, NewRouter(RouterConfig{}), logger)
	s.srv.Addr = "127.0.0.1:0"

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	require.Eventually(t, func() bool {
		return logger.HasMessage("info", "HTTP server listening")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

//Personal.AI order the ending
