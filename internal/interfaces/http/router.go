package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/prometheus"
	"github.com/sagerock/ai-law-research/internal/interfaces/http/handlers"
	"github.com/sagerock/ai-law-research/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	CitatorHandler   *handlers.CitatorHandler
	SearchHandler    *handlers.SearchHandler
	IngestionHandler *handlers.IngestionHandler
	HealthHandler    *handlers.HealthHandler

	// RateLimiter guards the expensive endpoints (search, resolve, brief
	// check). Nil disables limiting.
	RateLimiter middleware.RateLimiter
	CORS        *middleware.CORSConfig
	MaxBodySize int64

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter builds the gin engine: global middleware, health checks, metrics and
// the /api/v1 tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(cfg.Logger),
		middleware.Recovery(cfg.Logger),
		middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()),
		middleware.Metrics(cfg.Metrics),
	)
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.MaxBodySize > 0 {
		r.Use(limitBody(cfg.MaxBodySize))
	}

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	var heavy []gin.HandlerFunc
	if cfg.RateLimiter != nil {
		heavy = append(heavy, middleware.RateLimit(cfg.RateLimiter))
	}

	api := r.Group("/api/v1")
	if cfg.CitatorHandler != nil {
		cfg.CitatorHandler.RegisterRoutes(api, heavy...)
	}
	if cfg.SearchHandler != nil {
		cfg.SearchHandler.RegisterRoutes(api, heavy...)
	}
	if cfg.IngestionHandler != nil {
		cfg.IngestionHandler.RegisterRoutes(api)
	}
	return r
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

//Personal.AI order the ending
