// Package app boots the server: configuration, logging, engine, loop, hub,
// and HTTP listener, assembled once and torn down together.
package app

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	server "dustline/server"
	"dustline/server/internal/config"
	servernet "dustline/server/internal/net"
	"dustline/server/internal/sim"
	"dustline/server/internal/telemetry"
)

// Run assembles the server from cfg and blocks until ctx is cancelled or a
// component fails. The loop, the hub's idle sweep, and the HTTP listener
// share one errgroup; the first failure tears the rest down.
func Run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	metrics := telemetry.NewCounters()

	engine := sim.NewEngine(sim.EngineConfig{
		World:   cfg.World,
		Logger:  logger.Named("sim"),
		Metrics: metrics,
	})

	hub := server.NewHub(engine, server.HubConfig{
		HeartbeatInterval: cfg.HeartbeatInterval.Duration(),
		IdleTimeout:       cfg.IdleTimeout.Duration(),
		SnapshotEvery:     cfg.SnapshotEvery,
		Logger:            logger.Named("hub"),
		Metrics:           metrics,
	})

	loop := sim.NewLoop(engine, cfg.LoopConfig(), sim.LoopHooks{
		OnSnapshot: hub.BroadcastSnapshot,
	})

	handler := servernet.NewHTTPHandler(engine, loop, hub, servernet.HTTPHandlerConfig{
		ClientDir: cfg.ClientDir,
		Logger:    logger.Named("http"),
	})

	srv := &nethttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("simulation loop starting",
			zap.Int("tick_rate", cfg.TickRate),
			zap.Int("snapshot_every", cfg.SnapshotEvery),
			zap.Int64("world_seed", cfg.World.Seed),
		)
		return loop.Run(groupCtx)
	})

	group.Go(func() error {
		return hub.Run(groupCtx)
	})

	group.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace.Duration())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = group.Wait()
	loop.Stop()
	logger.Info("server stopped")
	return err
}
