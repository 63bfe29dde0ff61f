package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docvault/internal/config"
	"docvault/internal/logging"
	"docvault/internal/metrics"
	"docvault/internal/mirror"
	"docvault/internal/otel"
	"docvault/internal/secondary"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.NewJSON(os.Stdout, cfg.Location()).With("service", "docvault-mirrorworker")

	shutdownTracing, err := otel.Init(ctx, "docvault-mirrorworker", logger)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	mirrorCfg := cfg.Client.Mirror
	conn, err := mirror.RedisConnOpt(mirrorCfg.QueueDSN)
	if err != nil {
		log.Fatalf("mirror queue: %v", err)
	}

	mongoStore, err := secondary.Connect(ctx, cfg.Client.Mongo)
	if err != nil {
		log.Fatalf("connect secondary store: %v", err)
	}
	defer func() { _ = mongoStore.Close(context.Background()) }()
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		logger.Warn(ctx, "secondary indexes not created", "error", err)
	}

	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	if err != nil {
		log.Fatalf("register metrics: %v", err)
	}
	if mirrorCfg.MetricsAddr != "" {
		go serveMetrics(ctx, mirrorCfg.MetricsAddr, reg, logger)
	}

	server := asynq.NewServer(conn, asynq.Config{
		Concurrency:    mirrorCfg.Workers,
		RetryDelayFunc: mirror.RetryDelay,
	})
	processor := mirror.NewProcessor(secondary.New(mongoStore, logger), logger, rec)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info(ctx, "mirror worker started", "concurrency", mirrorCfg.Workers)
	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", otelhttp.NewHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), "metrics"))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(ctx, "metrics server stopped", "error", err)
	}
}
