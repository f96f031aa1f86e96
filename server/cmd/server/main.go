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
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/hivewatch/hivewatch/pkg/logging"
	"github.com/hivewatch/hivewatch/pkg/store"
	"github.com/hivewatch/hivewatch/server/internal/api"
	"github.com/hivewatch/hivewatch/server/internal/auth"
	"github.com/hivewatch/hivewatch/server/internal/config"
	"github.com/hivewatch/hivewatch/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve dashboard static files from this directory; leave empty to disable")
	seed := flag.Int("seed", 0, "create N empty hives if the collection is empty")
	flag.Parse()

	logging.Setup(logging.DefaultConfig(), os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log, os.Stdout)

	slog.Info("hivewatch-server starting",
		"config", *configPath,
		"http_port", cfg.Server.HTTPPort,
		"collection", cfg.Server.Collection,
		"auth_mode", cfg.Server.Auth.Mode,
		"store", cfg.Store.Backend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *uiDir, *seed); err != nil {
		slog.Error("hivewatch-server failed", "err", err)
		os.Exit(1)
	}
	slog.Info("hivewatch-server stopped")
}

func run(ctx context.Context, cfg *config.Config, uiDir string, seed int) error {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if seed > 0 {
		n, err := store.Seed(ctx, st, cfg.Server.Collection, seed)
		if err != nil {
			return err
		}
		slog.Info("seeded hives", "created", n, "collection", cfg.Server.Collection)
	}

	apiHandler := api.New(st, cfg.Server.Collection)
	hub := ws.New(apiHandler, cfg.Server.StreamInterval)
	go hub.Run(ctx)

	requireKey := auth.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)
	if cfg.Server.Auth.Mode == "apikey" && cfg.Server.Auth.Key() == "" {
		slog.Warn("auth: mode is apikey but the key env var is empty, serving unauthenticated",
			"key_env", cfg.Server.Auth.KeyEnv)
	}

	r := mux.NewRouter()
	r.PathPrefix("/api/").Handler(requireKey(apiHandler))
	r.Handle("/ws/stream", requireKey(hub)).Methods(http.MethodGet)
	if uiDir != "" {
		r.PathPrefix("/").Handler(spaHandler(uiDir))
		slog.Info("serving UI static files", "dir", uiDir)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("hivewatch-server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// spaHandler serves files from dir and falls back to index.html for unknown
// paths so client-side routes resolve.
func spaHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}
