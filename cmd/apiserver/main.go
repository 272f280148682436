// API server entry point: HTTP API plus the gRPC health listener.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sagerock/ai-law-research/internal/bootstrap"
	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/sagerock/ai-law-research/internal/interfaces/grpc"
	httpserver "github.com/sagerock/ai-law-research/internal/interfaces/http"
	"github.com/sagerock/ai-law-research/internal/interfaces/http/handlers"
	"github.com/sagerock/ai-law-research/internal/interfaces/http/middleware"
)

const (
	readinessInterval = 10 * time.Second
	limiterCleanup    = 5 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC health port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *httpPort, *grpcPort); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, httpPort, grpcPort int) error {
	config.LoadDotEnv()
	cfg, err := config.LoadOrEnv(configPath)
	if err != nil {
		return err
	}
	if httpPort > 0 {
		cfg.Server.Port = httpPort
	}
	if grpcPort > 0 {
		cfg.GRPC.Port = grpcPort
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	logger.Info("starting research API server",
		logging.String("version", config.Version),
		logging.Int("http_port", cfg.Server.Port),
		logging.Int("grpc_port", cfg.GRPC.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.OpenInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc, err := bootstrap.BuildServices(ctx, cfg, infra, logger)
	if err != nil {
		return err
	}
	if err := svc.Warm(ctx); err != nil {
		return fmt.Errorf("resolver index: %w", err)
	}

	health := handlers.NewHealthHandler(config.Version, infra.Metrics, healthCheckers(infra)...)
	routerCfg := httpserver.RouterConfig{
		CitatorHandler:   handlers.NewCitatorHandler(svc.Citator),
		SearchHandler:    handlers.NewSearchHandler(svc.Ranker),
		IngestionHandler: handlers.NewIngestionHandler(svc.Coordinator),
		HealthHandler:    health,
		MaxBodySize:      cfg.Server.MaxBodySize,
		Logger:           logger,
		Metrics:          infra.Metrics,
		MetricsPath:      cfg.Metrics.Path,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = infra.Collector
	}
	if cfg.Server.RateLimitRPS > 0 {
		limiter := middleware.NewTokenBucketLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, limiterCleanup)
		defer limiter.Stop()
		routerCfg.RateLimiter = limiter
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSOrigins
		routerCfg.CORS = &cors
	}

	httpSrv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)
	grpcSrv, err := grpcserver.NewServer(cfg.GRPC,
		grpcserver.WithLogger(logger),
		grpcserver.WithMetrics(infra.Metrics),
		grpcserver.WithReadiness(func(ctx context.Context) bool {
			_, ok := health.CheckAll(ctx)
			return ok
		}, readinessInterval),
	)
	if err != nil {
		return err
	}

	if configPath != "" {
		watchRanking(configPath, svc, logger)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Start() }()
	go func() { errCh <- grpcSrv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}
	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", logging.Err(err))
	}
	if err := svc.Close(); err != nil {
		logger.Warn("ingestion coordinator close", logging.Err(err))
	}
	logger.Info("servers stopped")
	return nil
}

// watchRanking applies ranking weight changes without a restart. Other
// sections need a restart and are ignored here.
func watchRanking(path string, svc *bootstrap.Services, logger logging.Logger) {
	err := config.Watch(path, func(c *config.Config) {
		if err := svc.Ranker.Retune(c.Ranking); err != nil {
			logger.Warn("ranking reload rejected", logging.Err(err))
			return
		}
		logger.Info("ranking weights reloaded",
			logging.Float64("lexical", c.Ranking.LexicalWeight),
			logging.Float64("semantic", c.Ranking.SemanticWeight),
			logging.Float64("authority", c.Ranking.AuthorityWeight),
		)
	}, func(err error) {
		logger.Warn("config reload failed", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch not started", logging.Err(err))
	}
}

//Personal.AI order the ending
