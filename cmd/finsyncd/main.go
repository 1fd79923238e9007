package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finsync/internal/amqp"
	"finsync/internal/budget"
	"finsync/internal/cli"
	"finsync/internal/remote"
	syncpkg "finsync/internal/sync"
)

func main() {
	cli.LoadEnvFile()
	cli.SetupLogger()

	slog.Info("Starting finsyncd")

	cfg := cli.LoadAndValidateConfig()

	// Initialize local storage
	store := cli.InitStore(cfg)
	defer store.Close()

	// Initialize remote source
	source, err := remote.NewHTTPSource(cfg.RemoteBaseURL, cfg.FetchTimeout)
	if err != nil {
		slog.Error("Failed to initialize remote source", "error", err, "url", cfg.RemoteBaseURL)
		os.Exit(1)
	}

	// Initialize AMQP client (optional)
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRequestQueue, cfg.AMQPOutcomeQueue)
		if err != nil {
			slog.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		slog.Info("AMQP disabled - no AMQP_URL provided")
	}

	// Wire the sync engine
	aggregator := budget.NewAggregator(store, cfg.BudgetFreshness)
	syncer := syncpkg.NewSyncer(source, store, aggregator, cfg.FetchTimeout)
	coordinator := syncpkg.NewCoordinator(syncer, syncpkg.CoordinatorConfig{
		SyncInterval: cfg.SyncInterval,
		QueueSize:    1,
	})

	if amqpClient != nil {
		coordinator.OnOutcome(func(ctx context.Context, oc syncpkg.Outcome) {
			msg := amqp.NewSyncOutcomeMessage(oc)
			if err := amqpClient.PublishSyncOutcome(ctx, msg); err != nil {
				slog.ErrorContext(ctx, "Failed to publish sync outcome",
					"entity", oc.Entity, "error", err)
			}
		})
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coordinator.Start(ctx); err != nil {
		slog.Error("Failed to start sync coordinator", "error", err)
		os.Exit(1)
	}

	// Consume inbound sync requests from the queue
	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeSyncRequests(ctx, func(msg *amqp.SyncRequestMessage) error {
				entity := syncpkg.Entity(msg.Entity)
				if !entity.IsValid() {
					slog.Warn("Ignoring sync request for unknown entity", "entity", msg.Entity)
					return nil
				}
				if !coordinator.Request(entity) {
					slog.Info("Sync request coalesced with a pending one", "entity", msg.Entity)
				}
				return nil
			})
			if err != nil && err != context.Canceled {
				slog.Error("Sync request consumption failed", "error", err)
				cancel()
			}
		}()
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled")
	}

	// Graceful shutdown: let in-flight cycles finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := coordinator.Stop(shutdownCtx); err != nil {
		slog.Warn("Sync coordinator did not stop cleanly", "error", err)
	}
	cancel()

	slog.Info("finsyncd shutdown complete")
}
