// Worker entry point: consumes ingestion requests from Kafka and runs each
// as an ingestion job. It serves health checks and metrics over HTTP and the gRPC
// health service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sagerock/ai-law-research/internal/application/ingestion"
	"github.com/sagerock/ai-law-research/internal/bootstrap"
	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/infrastructure/messaging/kafka"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/sagerock/ai-law-research/internal/interfaces/grpc"
	httpserver "github.com/sagerock/ai-law-research/internal/interfaces/http"
	"github.com/sagerock/ai-law-research/internal/interfaces/http/handlers"
)

const (
	maxRetries        = 3
	retryBackoff      = time.Second
	maxRetryBackoff   = 4 * time.Second
	readinessInterval = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	groupID := flag.String("group", "", "consumer group (overrides kafka.group_id)")
	flag.Parse()

	if err := run(*configPath, *groupID); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, groupID string) error {
	config.LoadDotEnv()
	cfg, err := config.LoadOrEnv(configPath)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka must be enabled for the worker")
	}
	if groupID != "" {
		cfg.Kafka.GroupID = groupID
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

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

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  []string{svc.Topics.Ingestion},
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      maxRetries,
			RetryBackoff:    retryBackoff,
			MaxRetryBackoff: maxRetryBackoff,
			DeadLetterTopic: svc.Topics.DeadLetter,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Subscribe(svc.Topics.Ingestion, kafka.IngestionRequestHandler(runJob(svc.Coordinator, logger), logger))

	checkers := make([]handlers.HealthChecker, 0)
	for _, c := range infra.Checks() {
		checkers = append(checkers, handlers.CheckFunc{Component: c.Name, Fn: c.Fn})
	}
	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(config.Version, infra.Metrics, checkers...),
		Logger:        logger,
		Metrics:       infra.Metrics,
		MetricsPath:   cfg.Metrics.Path,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = infra.Collector
	}
	httpSrv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)
	grpcSrv, err := grpcserver.NewServer(cfg.GRPC,
		grpcserver.WithLogger(logger),
		grpcserver.WithMetrics(infra.Metrics),
		grpcserver.WithReadiness(infra.Ready, readinessInterval),
	)
	if err != nil {
		return err
	}

	if configPath != "" {
		watchIngestionLog(configPath, logger)
	}

	errCh := make(chan error, 3)
	go func() { errCh <- httpSrv.Start() }()
	go func() { errCh <- grpcSrv.Start() }()
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("kafka consumer start: %w", err)
	}
	logger.Info("worker started",
		logging.String("topic", svc.Topics.Ingestion),
		logging.String("group", cfg.Kafka.GroupID),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", logging.Err(err))
		}
	}

	if err := consumer.Stop(); err != nil {
		logger.Warn("kafka consumer stop", logging.Err(err))
	}
	if err := svc.Close(); err != nil {
		logger.Warn("ingestion coordinator close", logging.Err(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}
	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", logging.Err(err))
	}
	logger.Info("worker stopped",
		logging.Int64("processed", consumer.Processed()),
		logging.Int64("dead_lettered", consumer.DeadLettered()),
	)
	return nil
}

// runJob runs one request to completion. Failed and partial jobs are
// recorded on the job and acknowledged; only errors that prevented the job
// from running are returned for redelivery.
func runJob(svc ingestion.Service, logger logging.Logger) func(context.Context, kafka.IngestionRequest) error {
	return func(ctx context.Context, req kafka.IngestionRequest) error {
		job, err := svc.RunJob(ctx, ingestion.Request{
			FeedURI:   req.FeedURI,
			RetryOf:   req.RetryOf,
			Requester: req.Requester,
		})
		if err != nil {
			return err
		}
		logger.Info("ingestion job finished",
			logging.JobID(job.ID),
			logging.String("status", string(job.Status)),
			logging.Int64("processed", job.RecordsProcessed),
			logging.Int64("errors", job.ErrorCount),
		)
		return nil
	}
}

// watchIngestionLog reports config edits. Ingestion settings apply to the
// next process start.
func watchIngestionLog(path string, logger logging.Logger) {
	err := config.Watch(path, func(c *config.Config) {
		logger.Info("config changed; ingestion settings apply on restart",
			logging.Int("workers", c.Ingestion.Workers),
			logging.Int("checkpoint_every", c.Ingestion.CheckpointEvery),
		)
	}, func(err error) {
		logger.Warn("config reload failed", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch not started", logging.Err(err))
	}
}

//Personal.AI order the ending
