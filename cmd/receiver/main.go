// Service receiver is the device-telemetry filter: password-gated batch
// ingest with device-identity rewrite, token-gated query endpoints, and
// operational probes.
//
//	@title						AWARE Filter API
//	@version					1.0
//	@description				Device telemetry ingest and retrieval service.
//	@host						localhost:3446
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/rantahar/aware-filter/internal/auth"
	"github.com/rantahar/aware-filter/internal/config"
	"github.com/rantahar/aware-filter/internal/db"
	"github.com/rantahar/aware-filter/internal/identity"
	"github.com/rantahar/aware-filter/internal/ingest"
	"github.com/rantahar/aware-filter/internal/query"
	"github.com/rantahar/aware-filter/internal/receiver"
	"github.com/rantahar/aware-filter/internal/stats"
	"github.com/rantahar/aware-filter/internal/storage"
	"github.com/rantahar/aware-filter/internal/storage/memstore"
	"github.com/rantahar/aware-filter/internal/storage/sqlstore"

	_ "github.com/rantahar/aware-filter/docs/swagger" // generated swagger docs
)

func main() {
	cfg := config.LoadReceiver()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	if cfg.StudyPassword == "" {
		slog.Error("STUDY_PASSWORD must be set")
		os.Exit(1)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var resolver *identity.Resolver
	if cfg.DeviceCacheTTL > 0 {
		resolver, err = identity.NewCachedResolver(store, cfg.DeviceCacheTTL)
		if err != nil {
			slog.Error("failed to build device cache", "error", err)
			os.Exit(1)
		}
	} else {
		resolver = identity.NewResolver(store)
	}

	registry := stats.NewRegistry()
	prometheus.MustRegister(stats.NewCollector(registry))

	writer := ingest.NewWriter(store, resolver, registry)
	engine := query.NewEngine(store, resolver, cfg.MergeFetchCap)
	authsvc := auth.New(cfg.StudyPassword, cfg.TokenSecret, cfg.TokenExpiry)

	h := receiver.NewHandler(store, writer, engine, authsvc, registry, receiver.Options{
		SlowQueryWarn: cfg.SlowQueryWarn,
		TimeoutStatus: cfg.TimeoutStatus,
		MemoryWarnMB:  cfg.MemoryWarnMB,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(receiver.Metrics())

	// Probes and counters.
	r.Get("/health", h.Health)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "receiver"})
	})
	r.Get("/stats", h.Stats)
	r.Handle("/metrics", promhttp.Handler())

	// Ingest and auth.
	r.Post("/webservice/index/{study_id}/{password}/{table}", h.Insert)
	r.Post("/login", h.Login)

	// Query endpoints behind bearer tokens.
	r.Group(func(r chi.Router) {
		r.Use(h.RequireToken)
		r.Get("/data", h.Data)
		r.Get("/tables-for-device", h.TablesForDevice)
	})

	// Swagger UI.
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	serve(cfg.Base, r)
}

// openStore builds the configured storage backend. The memory backend needs
// no database and keeps data for the process lifetime only.
func openStore(cfg config.Receiver) (storage.Store, func(), error) {
	if cfg.Backend == "memory" {
		slog.Info("using in-memory storage")
		return memstore.New(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	driver := db.DriverFor(cfg.DatabaseURL)
	if driver == "pgx" {
		if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, nil, err
		}
	} else {
		// The bundled migration files are written for PostgreSQL.
		slog.Info("skipping migrations", "driver", driver)
	}

	return sqlstore.New(pool, sqlstore.DialectFor(driver)), func() { pool.Close() }, nil
}

func serve(cfg config.Base, handler http.Handler) {
	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// Merged reads may legitimately run for minutes before the 408 path
		// reports them; the write timeout has to outlive that.
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("receiver listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
