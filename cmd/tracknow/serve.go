package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/tracknow/internal/config"
	"github.com/alfredjeanlab/tracknow/internal/events"
	"github.com/alfredjeanlab/tracknow/internal/server"
	"github.com/alfredjeanlab/tracknow/internal/store/postgres"
	fencesync "github.com/alfredjeanlab/tracknow/internal/sync"
	"github.com/alfredjeanlab/tracknow/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the tracknow server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// The server needs no API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, cfg, logger)
	},
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("error flushing traces", "err", err)
		}
	}()

	store, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
	}()

	var publisher events.Publisher = &events.NoopPublisher{}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return err
		}
		publisher = events.NewAsyncPublisher(pub, cfg.PublishQueue, cfg.DeliveryTimeout, logger)
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		logger.Info("events disabled (TRACKNOW_NATS_URL not set)")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
	}()

	srv := server.New(store, publisher, server.Options{
		DeliveryTimeout: cfg.DeliveryTimeout,
		MemberQueue:     cfg.MemberQueue,
		IdleTimeout:     cfg.IdleTimeout,
		Logger:          logger,
	})
	defer srv.Close()

	if err := srv.LoadFences(ctx); err != nil {
		return err
	}

	if cfg.SyncEnabled() {
		scheduler := fencesync.NewScheduler(store, syncDestinations(ctx, cfg, logger), cfg.SyncInterval, logger)
		scheduler.Start()
		logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
		defer func() {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.NewHTTPHandler(cfg.AuthToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if grpcLis != nil {
		grpcServer, healthServer := server.NewGRPCServer(cfg.AuthToken)
		g.Go(func() error {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(grpcLis); err != nil {
				return fmt.Errorf("gRPC server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			healthServer.Shutdown()
			grpcServer.GracefulStop()
			logger.Info("gRPC server stopped")
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	})

	logger.Info("tracknow server started",
		"http_addr", cfg.HTTPAddr,
		"grpc_addr", cfg.GRPCAddr,
		"fences", srv.Fences().Len(),
	)

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// syncDestinations builds the configured export targets. A destination that
// fails to initialise is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []fencesync.Destination {
	var dests []fencesync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := fencesync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("sync destination enabled", "dest", d.String())
		}
	}
	if cfg.SyncFile != "" {
		d := fencesync.NewFileDestination(cfg.SyncFile)
		dests = append(dests, d)
		logger.Info("sync destination enabled", "dest", d.String())
	}
	return dests
}
