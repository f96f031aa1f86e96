package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/hivewatch/hivewatch/pkg/logging"
	"github.com/hivewatch/hivewatch/pkg/store"
	"github.com/hivewatch/hivewatch/updater/internal/alerts"
	"github.com/hivewatch/hivewatch/updater/internal/config"
	"github.com/hivewatch/hivewatch/updater/internal/metrics"
	"github.com/hivewatch/hivewatch/updater/internal/schedule"
	"github.com/hivewatch/hivewatch/updater/internal/simulate"
	"github.com/hivewatch/hivewatch/updater/internal/updater"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single tick and exit (for an external trigger)")
	seed := flag.Int("seed", 0, "create N empty hives if the collection is empty")
	flag.Parse()

	logging.Setup(logging.DefaultConfig(), os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level := logging.Setup(cfg.Log, os.Stdout)

	slog.Info("hivewatch-updater starting",
		"config", *configPath,
		"collection", cfg.Updater.Collection,
		"schedule", cfg.Updater.Schedule,
		"timezone", cfg.Updater.Timezone,
		"store", cfg.Store.Backend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *configPath, *once, *seed, level); err != nil {
		slog.Error("hivewatch-updater failed", "err", err)
		os.Exit(1)
	}
	slog.Info("hivewatch-updater stopped")
}

func run(ctx context.Context, cfg *config.Config, configPath string, once bool, seed int, level *slog.LevelVar) error {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if seed > 0 {
		n, err := store.Seed(ctx, st, cfg.Updater.Collection, seed)
		if err != nil {
			return err
		}
		slog.Info("seeded hives", "created", n, "collection", cfg.Updater.Collection)
	}

	targets, closeTargets, err := alerts.TargetsFromConfig(cfg.Updater.Alerts)
	if err != nil {
		return err
	}
	defer closeTargets()
	notifier := alerts.NewNotifier(cfg.Updater.Alerts.Cooldown, targets...)
	defer notifier.Wait()

	up := updater.New(st, cfg.Updater.Collection, simulate.NewSeeded(cfg.Updater.Seed))
	m := metrics.New()

	tick := func(ctx context.Context, _ time.Time) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.Updater.WriteTimeout)
		defer cancel()

		report, err := up.Run(ctx)
		m.Observe(report, err)
		if report != nil {
			notifier.Observe(report.Records())
		}
		if path := cfg.Updater.Metrics.Textfile; path != "" {
			if werr := m.WriteTextfile(path); werr != nil {
				slog.Warn("metrics textfile not written", "path", path, "err", werr)
			}
		}
		return err
	}

	if once {
		return tick(ctx, time.Now())
	}

	if port := cfg.Updater.Metrics.Port; port > 0 {
		srv := metricsServer(port, m)
		go func() {
			slog.Info("metrics listening", "port", port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Hot-reload applies the log level; store and schedule changes need a restart.
	go func() {
		if err := config.Watch(ctx, configPath, func(updated *config.Config) {
			logging.Apply(level, updated.Log)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	runner := schedule.NewRunner(cfg.Updater.Interval(), cfg.Updater.Location())
	m.TrackSkipped(runner.Skipped)
	return runner.Run(ctx, tick)
}

func metricsServer(port int, m *metrics.Metrics) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
