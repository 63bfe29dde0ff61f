package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"docvault/internal/config"
	"docvault/internal/coordinator"
	"docvault/internal/gateway"
	"docvault/internal/identity"
	"docvault/internal/logging"
	"docvault/internal/metrics"
	"docvault/internal/mirror"
	"docvault/internal/otel"
	"docvault/internal/primary"
	"docvault/internal/secondary"
)

// session owns everything one command invocation needs. close drains the mirror queue so
// background writes submitted by the command get a chance to land.
type session struct {
	coord   *coordinator.Coordinator
	closers []func(context.Context) error
}

func openSession(ctx context.Context, stderr io.Writer) (*session, error) {
	cfg := config.Load()
	if identityFlag != "" {
		cfg.Client.Identity = identityFlag
	}
	if primaryURLFlag != "" {
		cfg.Client.PrimaryURL = primaryURLFlag
	}
	logger := logging.NewJSON(stderr, cfg.Location()).With("service", "docsync")
	s := &session{}

	shutdownTracing, err := otel.Init(ctx, "docsync", logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	s.closers = append(s.closers, shutdownTracing)

	rec, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	var (
		store secondary.RecordStore = secondary.Disabled{}
		queue mirror.Queue          = mirror.Discard{}
	)
	if cfg.Client.Mongo.URI != "" {
		mongoStore, err := secondary.Connect(ctx, cfg.Client.Mongo)
		if err != nil {
			logger.Warn(ctx, "secondary store unavailable", "error", err)
		} else {
			store = mongoStore
			s.closers = append(s.closers, mongoStore.Close)
		}
	}
	sec := secondary.New(store, logger)

	// in-process mirroring needs a reachable store; the durable queue hands it to mirrorworker
	mirrorCfg := cfg.Client.Mirror
	durable := strings.HasPrefix(strings.ToLower(mirrorCfg.QueueDSN), "redis")
	if _, disabled := store.(secondary.Disabled); !disabled || durable {
		queue, err = mirror.NewQueue(mirrorCfg.QueueDSN, sec, mirror.Options{
			Workers:    mirrorCfg.Workers,
			Capacity:   mirrorCfg.Capacity,
			MaxRetries: mirrorCfg.MaxRetries,
			Logger:     logger,
			Metrics:    rec,
		})
		if err != nil {
			_ = s.close(ctx)
			return nil, err
		}
		// queue first: it still needs the store while draining
		s.closers = append([]func(context.Context) error{queue.Close}, s.closers...)
	}

	gwOpts := []gateway.Option{
		gateway.WithBudgets(gateway.BudgetsFromConfig(cfg.Client.Budgets)),
		gateway.WithLogger(logger),
	}
	if cfg.Auth.JWTSecret != "" {
		gwOpts = append(gwOpts, gateway.WithTokenSource(identity.NewJWTTokenSource(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)))
	}
	gw := gateway.New(identity.Static(cfg.Client.Identity), gwOpts...)

	s.coord = coordinator.New(gw, primary.NewHTTPClient(cfg.Client.PrimaryURL, nil),
		coordinator.WithFallback(sec),
		coordinator.WithMirror(queue),
		coordinator.WithLogger(logger),
		coordinator.WithMetrics(rec),
		coordinator.WithDownload(cfg.Client.Platform, cfg.Client.DownloadGrace, ""),
	)
	return s, nil
}

func (s *session) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	var first error
	for _, c := range s.closers {
		if err := c(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// withSession opens a session for fn and closes it afterwards.
func withSession(ctx context.Context, stderr io.Writer, fn func(*session) error) error {
	s, err := openSession(ctx, stderr)
	if err != nil {
		return err
	}
	runErr := fn(s)
	if err := s.close(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("close session: %w", err)
	}
	return runErr
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
