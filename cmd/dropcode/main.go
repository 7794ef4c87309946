// Package main provides the dropcode binary entry point: a code-based file
// sharing server. It loads configuration from environment variables, selects
// the share store backend (remote Postgres when DROPCODE_DATABASE_URL is set,
// local SQLite otherwise), and starts the HTTP server with the background
// sweep and metrics loops attached.
//
// The application flow:
//  1. Load optional .env overrides, then configuration.
//  2. Ensure the data directory exists.
//  3. Open the selected share store and the node-local metrics database.
//  4. Assemble the lifecycle service, janitor, and HTTP handler.
//  5. Start the HTTP server.
//
// It blocks until the server exits with an error (other than
// http.ErrServerClosed).
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/cors"

	"github.com/dropcode/dropcode/internal/app"
	"github.com/dropcode/dropcode/internal/config"
	"github.com/dropcode/dropcode/internal/httpx"
	"github.com/dropcode/dropcode/internal/janitor"
	"github.com/dropcode/dropcode/internal/metrics"
	"github.com/dropcode/dropcode/internal/store/postgres"
	"github.com/dropcode/dropcode/internal/store/sqlite"
)

// realClock implements app.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func loadConfig() *config.Config {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(2)
	}
	return cfg
}

func ensureDataDir(dir string) {
	if st, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
				slog.Error("failed to create data directory", "dir", dir, "err", mkErr)
				os.Exit(3)
			}
		} else {
			slog.Error("stat data directory", "dir", dir, "err", err)
			os.Exit(3)
		}
	} else if !st.IsDir() {
		slog.Error("data path not directory", "dir", dir)
		os.Exit(3)
	}
}

// openShareStore selects and opens the configured backend. It returns the
// store plus a readiness probe for /readyz and a close func.
func openShareStore(cfg *config.Config) (app.ShareStore, func(context.Context) error, func()) {
	if cfg.UseRemoteStore() {
		st, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			slog.Error("connect postgres", "err", err)
			os.Exit(4)
		}
		return st, st.Ping, func() { _ = st.Close() }
	}
	db, err := sql.Open("sqlite3", cfg.SQLiteDSN())
	if err != nil {
		slog.Error("open sqlite driver", "err", err)
		os.Exit(4)
	}
	st, err := sqlite.New(db)
	if err != nil {
		slog.Error("init sqlite schema", "err", err)
		os.Exit(4)
	}
	return st, db.PingContext, func() { _ = db.Close() }
}

func openMetrics(ctx context.Context, cfg *config.Config) (*metrics.Manager, func()) {
	db, err := sql.Open("sqlite3", cfg.MetricsDSN())
	if err != nil {
		slog.Error("open metrics database", "err", err)
		os.Exit(5)
	}
	m := metrics.New(db, metrics.Config{FlushInterval: cfg.MetricsFlushInterval})
	if err := m.InitSchema(ctx); err != nil {
		slog.Error("init metrics schema", "err", err)
		os.Exit(5)
	}
	return m, func() { _ = db.Close() }
}

func buildService(store app.ShareStore, cfg *config.Config) *app.Service {
	return &app.Service{
		Store:               store,
		Clock:               realClock{},
		MaxFileBytes:        cfg.MaxFileBytes,
		DefaultTTL:          cfg.DefaultTTL,
		DefaultMaxDownloads: cfg.DefaultMaxDownloads,
		Logger:              slog.Default(),
	}
}

func buildHandler(cfg *config.Config, svc *app.Service, readiness func(context.Context) error, m *metrics.Manager) http.Handler {
	h := httpx.New(svc, cfg.MaxFileBytes, readiness)
	h.Recorder = m
	h.Metrics = metrics.Handler(m, cfg.MetricsToken)
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", httpx.PasswordHeader, httpx.CorrelationIDHeader, "Authorization"},
		ExposedHeaders: []string{"Content-Disposition", httpx.CorrelationIDHeader},
	})
	return c.Handler(h.Router())
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func run() error {
	ctx := context.Background()
	cfg := loadConfig()
	ensureDataDir(cfg.DataDir)

	store, readiness, closeStore := openShareStore(cfg)
	defer closeStore()

	m, closeMetrics := openMetrics(ctx, cfg)
	defer closeMetrics()
	m.Start(ctx)
	defer m.Stop(ctx)

	svc := buildService(store, cfg)

	j := janitor.New(store, janitor.Config{Interval: cfg.SweepInterval, Recorder: m})
	j.Start(ctx)
	defer j.Stop()

	srv := newServer(cfg, buildHandler(cfg, svc, readiness, m))
	slog.Info("starting server", "addr", cfg.Addr, "backend", backendName(cfg), "pid", os.Getpid())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func backendName(cfg *config.Config) string {
	if cfg.UseRemoteStore() {
		return "postgres"
	}
	return "sqlite"
}

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
