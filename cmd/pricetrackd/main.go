package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pricetrack/pricetrack"
	"github.com/pricetrack/pricetrack/internal/async"
	"github.com/pricetrack/pricetrack/internal/common"
	"github.com/pricetrack/pricetrack/internal/remote"
	"github.com/pricetrack/pricetrack/internal/repository"
	"github.com/pricetrack/pricetrack/internal/watch"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repository.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	repo := repository.NewReceiptRepository(db, logger,
		repository.WithPersistenceFailureHook(func(err error) {
			logger.Error("store.unrecovered_write", "error", err)
		}),
	)
	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, logger)
	tracker := pricetrack.New(repo, client, logger)

	queue := async.NewUploadQueue(tracker, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithUploadTimeout(cfg.Queue.UploadTimeout),
	)

	if cfg.Watch.Dir != "" {
		events, errs, err := watch.Start(ctx, watch.Config{
			Roots:       []string{cfg.Watch.Dir},
			InitialScan: true,
			Debounce:    cfg.Watch.Debounce,
		}, logger)
		if err != nil {
			logger.Error("failed to start capture watcher", "dir", cfg.Watch.Dir, "error", err)
			os.Exit(1)
		}
		go func() {
			for events != nil || errs != nil {
				select {
				case path, ok := <-events:
					if !ok {
						events = nil
						continue
					}
					queue.Enqueue(ctx, async.Job{Path: path, SubmittedAt: time.Now()})
				case _, ok := <-errs:
					if !ok {
						errs = nil
					}
				}
			}
		}()
		logger.Info("watching capture folder", "dir", cfg.Watch.Dir)
	}

	// Periodic reconciliation; each cycle is independent, so a slow cycle
	// never blocks shutdown.
	go func() {
		ticker := time.NewTicker(cfg.Sync.Interval)
		defer ticker.Stop()
		for {
			if _, err := tracker.SyncNow(ctx); err != nil {
				logger.Warn("sync cycle failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	logger.Info("pricetrackd running", "store", cfg.Store.Path, "remote", cfg.Remote.BaseURL, "sync_interval", cfg.Sync.Interval.String())

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
