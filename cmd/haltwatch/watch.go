package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/haltwatch/internal/connection"
	"github.com/rickgao/haltwatch/internal/database"
	"github.com/rickgao/haltwatch/internal/journal"
	"github.com/rickgao/haltwatch/internal/metrics"
	"github.com/rickgao/haltwatch/internal/model"
	"github.com/rickgao/haltwatch/internal/notify"
	"github.com/rickgao/haltwatch/internal/reconcile"
	"github.com/rickgao/haltwatch/internal/version"
	"github.com/rickgao/haltwatch/internal/watcher"
)

func newWatchCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream halt updates and serve health and metrics",
		Long: `Open the halt push stream and keep a categorized copy of all halts.

The snapshot is seeded from the fetch-all endpoint, then updated from the
stream. A failed stream is reopened by the supervisor with a fresh ticket.
Notifications are printed as they are shown. /health, /halts and the
metrics path are served on metrics.port, together with POST /halts/action,
which submits a mutation and writes the record provisionally into the
local snapshot until the stream confirms it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runWatch(ctx context.Context, rootOpts *rootOptions, out, logOut io.Writer) error {
	a, err := newApp(ctx, rootOpts, logOut)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger

	logger.Info("starting haltwatch",
		"version", version.Version,
		"commit", version.Commit,
		"transport", cfg.Stream.Transport,
	)

	store := reconcile.NewStore()
	store.OnCommit(func(snap model.Snapshot) {
		logger.Debug("snapshot committed",
			"active_reg", len(snap.ActiveReg),
			"active_sscb", len(snap.ActiveSSCB),
			"pending", len(snap.Pending),
			"lifted", len(snap.Lifted),
			"non_extended", snap.NonExtendedCount(),
		)
	})

	banner := notify.NewBanner(cfg.Notify.DismissAfter, logger)
	banner.OnChange(func(msg string) {
		if msg != "" {
			fmt.Fprintf(out, "%s  %s\n", time.Now().Format(model.DisplayLayout), msg)
		}
	})
	defer banner.Dismiss()

	factory, err := connection.NewFactory(connection.Transport(cfg.Stream.Transport), connection.ClientConfig{
		BufferSize:   cfg.Stream.BufferSize,
		ReadTimeout:  cfg.Stream.ReadTimeout,
		WriteTimeout: connection.DefaultClientConfig().WriteTimeout,
		PingInterval: cfg.Stream.PingInterval,
	}, logger)
	if err != nil {
		return err
	}

	engineOpts := []reconcile.Option{
		reconcile.WithScheduler(reconcile.FrameScheduler{Interval: cfg.Stream.FrameInterval}),
		reconcile.WithNotifier(banner),
		reconcile.WithLogger(logger),
	}

	var pinger func(context.Context) error
	if cfg.Journal.Enabled {
		logger.Info("connecting to journal database",
			"host", cfg.Journal.Database.Host,
			"port", cfg.Journal.Database.Port,
			"database", cfg.Journal.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Journal.Database)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()
		pinger = pool.Ping

		jw := journal.NewWriter(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, pool, logger)
		if err := jw.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := jw.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := jw.Stop(stopCtx); err != nil {
				logger.Error("journal final flush failed", "error", err)
			}
		}()
		engineOpts = append(engineOpts, reconcile.WithFlushObserver(jw.Observe))
	}

	engine := reconcile.NewEngine(reconcile.Config{BufferSize: cfg.Stream.BufferSize}, store, factory, engineOpts...)
	defer engine.Close()

	sup := watcher.NewSupervisor("haltwatch", watcher.SupervisorConfig{}, logger)
	sup.Add(watcher.New(a.client, engine, store, cfg.Stream.URL,
		watcher.WithSession(a.session),
		watcher.WithLogger(logger),
	))

	mux := newStatusHandler(engine, store, pinger, cfg.Metrics.Path, logger)
	mux.Handle("POST /halts/action", newMutationHandler(newDispatcher(a), store, cfg.API.MutationPath, logger))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := sup.Serve(gctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("supervisor: %w", err)
	})

	g.Go(func() error {
		logger.Info("starting status server", "addr", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	stats := engine.Stats()
	logger.Info("haltwatch stopped",
		"flushes", stats.Flushes,
		"events_applied", stats.EventsApplied,
		"skipped", stats.Skipped,
		"stream_errors", stats.StreamErrors,
	)
	return err
}

// streamStatus is the part of the engine the status handler reports.
type streamStatus interface {
	Connected() bool
	Stats() reconcile.Stats
}

// newStatusHandler serves /health, /halts and metrics.
func newStatusHandler(stream streamStatus, store *reconcile.Store, ping func(context.Context) error, metricsPath string, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		snap := store.Snapshot()
		stats := stream.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if stream.Connected() {
			health.Components["stream"] = "connected"
		} else {
			health.Status = "degraded"
			health.Components["stream"] = "disconnected"
		}

		counts := make(map[string]int, len(model.CollectionNames)+1)
		for name, n := range snap.Counts() {
			counts[string(name)] = n
		}
		counts["nonExtended"] = snap.NonExtendedCount()
		health.Components["halts"] = counts
		health.Components["engine"] = map[string]int64{
			"flushes":       stats.Flushes,
			"eventsApplied": stats.EventsApplied,
			"skipped":       stats.Skipped,
			"streamErrors":  stats.StreamErrors,
		}

		if ping != nil {
			if err := ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["journal"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["journal"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Debug("write health response", "error", err)
		}
	})

	mux.HandleFunc("/halts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(store.Snapshot()); err != nil {
			logger.Debug("write halts response", "error", err)
		}
	})

	mux.Handle(metricsPath, metrics.Handler())

	return mux
}
